// Package inventory implements the resource ledger: keyed stock records that
// never go negative, with atomic single and multi-key mutations.
package inventory

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind is a resource kind. Its value is the prefix of the key's string form.
type Kind string

const (
	KindFinishedGood Kind = "panel"
	KindRawFilm      Kind = "film"
	KindBlankPanel   Kind = "blank"
	KindJointProfile Kind = "joint"
	KindAdhesive     Kind = "glue"
)

// Kinds lists every resource kind.
var Kinds = []Kind{KindFinishedGood, KindRawFilm, KindBlankPanel, KindJointProfile, KindAdhesive}

func (k Kind) Valid() bool {
	switch k {
	case KindFinishedGood, KindRawFilm, KindBlankPanel, KindJointProfile, KindAdhesive:
		return true
	}
	return false
}

// Continuous reports whether quantities of this kind are real-valued.
// Film is measured in meters; everything else is counted in units.
func (k Kind) Continuous() bool {
	return k == KindRawFilm
}

// Key identifies one fungible stock bucket. Which attributes are set depends
// on Kind:
//
//	panel  Code (color), Thickness
//	film   Code (film code)
//	blank  Thickness
//	joint  JointType, Code (color), Thickness
//	glue   none
//
// Thickness holds the canonical decimal string so that equal thicknesses
// compare equal.
type Key struct {
	Kind      Kind
	Code      string
	JointType string
	Thickness string
}

func FinishedGood(color string, thickness decimal.Decimal) Key {
	return Key{Kind: KindFinishedGood, Code: color, Thickness: thickness.String()}
}

func RawFilm(code string) Key {
	return Key{Kind: KindRawFilm, Code: code}
}

func BlankPanel(thickness decimal.Decimal) Key {
	return Key{Kind: KindBlankPanel, Thickness: thickness.String()}
}

func JointProfile(jointType, color string, thickness decimal.Decimal) Key {
	return Key{Kind: KindJointProfile, JointType: jointType, Code: color, Thickness: thickness.String()}
}

func Adhesive() Key {
	return Key{Kind: KindAdhesive}
}

// String returns the canonical form, e.g. "panel:A1:0.5" or "joint:T:A1:0.5".
// Locks are taken in lexicographic order of this form.
func (k Key) String() string {
	switch k.Kind {
	case KindFinishedGood:
		return fmt.Sprintf("%s:%s:%s", k.Kind, k.Code, k.Thickness)
	case KindRawFilm:
		return fmt.Sprintf("%s:%s", k.Kind, k.Code)
	case KindBlankPanel:
		return fmt.Sprintf("%s:%s", k.Kind, k.Thickness)
	case KindJointProfile:
		return fmt.Sprintf("%s:%s:%s:%s", k.Kind, k.JointType, k.Code, k.Thickness)
	case KindAdhesive:
		return string(k.Kind)
	}
	return fmt.Sprintf("unknown(%s)", string(k.Kind))
}

// Validate checks that exactly the attributes of the key's kind are set and
// well formed.
func (k Key) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidKey, fmt.Sprintf(format, args...))
	}

	needThickness := func() error {
		th, err := ParseThickness(k.Thickness)
		if err != nil {
			return bad("%s: %v", k, err)
		}
		if th.String() != k.Thickness {
			return bad("%s: thickness not in canonical form", k)
		}
		return nil
	}
	needCode := func(what string) error {
		if !validToken(k.Code) {
			return bad("%s: %s %q", k, what, k.Code)
		}
		return nil
	}

	switch k.Kind {
	case KindFinishedGood:
		if err := needCode("color"); err != nil {
			return err
		}
		if k.JointType != "" {
			return bad("%s: unexpected joint type", k)
		}
		return needThickness()
	case KindRawFilm:
		if err := needCode("film code"); err != nil {
			return err
		}
		if k.JointType != "" || k.Thickness != "" {
			return bad("%s: film takes only a code", k)
		}
		return nil
	case KindBlankPanel:
		if k.Code != "" || k.JointType != "" {
			return bad("%s: blank panels take only a thickness", k)
		}
		return needThickness()
	case KindJointProfile:
		if !validToken(k.JointType) {
			return bad("%s: joint type %q", k, k.JointType)
		}
		if err := needCode("color"); err != nil {
			return err
		}
		return needThickness()
	case KindAdhesive:
		if k.Code != "" || k.JointType != "" || k.Thickness != "" {
			return bad("glue takes no attributes")
		}
		return nil
	}
	return bad("unknown kind %q", string(k.Kind))
}

// ParseKey parses the canonical string form produced by Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	kind := Kind(strings.ToLower(parts[0]))
	args := parts[1:]

	want := map[Kind]int{
		KindFinishedGood: 2,
		KindRawFilm:      1,
		KindBlankPanel:   1,
		KindJointProfile: 3,
		KindAdhesive:     0,
	}
	n, ok := want[kind]
	if !ok {
		return Key{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidKey, parts[0])
	}
	if len(args) != n {
		return Key{}, fmt.Errorf("%w: %s keys have %d attributes, got %d", ErrInvalidKey, kind, n, len(args))
	}

	var key Key
	switch kind {
	case KindFinishedGood:
		th, err := ParseThickness(args[1])
		if err != nil {
			return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		key = FinishedGood(args[0], th)
	case KindRawFilm:
		key = RawFilm(args[0])
	case KindBlankPanel:
		th, err := ParseThickness(args[0])
		if err != nil {
			return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		key = BlankPanel(th)
	case KindJointProfile:
		th, err := ParseThickness(args[2])
		if err != nil {
			return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		key = JointProfile(args[0], args[1], th)
	case KindAdhesive:
		key = Adhesive()
	}

	if err := key.Validate(); err != nil {
		return Key{}, err
	}
	return key, nil
}

// ParseThickness parses a positive decimal thickness.
func ParseThickness(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid thickness %q", s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("thickness must be positive, got %s", d)
	}
	return d, nil
}

// validToken accepts non-empty attribute values that cannot break the
// key's string form.
func validToken(s string) bool {
	return s != "" && !strings.ContainsAny(s, ": \t\n")
}
