package orders

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError lists every problem found in a set of lines.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid order: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Thickness is compared as a number.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	// token: usable as a resource key attribute.
	_ = v.RegisterValidation("token", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), ": \t\n")
	})

	return v
}

// ValidateLines checks that there is at least one line and that every line
// has a positive quantity and a well formed resource key.
func ValidateLines(lines []Line) error {
	if len(lines) == 0 {
		return &ValidationError{Problems: []string{"order has no lines"}}
	}

	var problems []string
	for i, l := range lines {
		if l == nil {
			problems = append(problems, fmt.Sprintf("line %d: empty", i+1))
			continue
		}

		if err := validate.Struct(l); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				problems = append(problems, fmt.Sprintf("line %d: %v", i+1, err))
				continue
			}
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("line %d: %s %s", i+1, fe.Field(), describe(fe)))
			}
			continue
		}

		if err := l.Key().Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("line %d: %v", i+1, err))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "token":
		return "must not contain ':' or whitespace"
	}
	return "failed " + fe.Tag()
}
