package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/buildtall-systems/panelbot/internal/orders"
)

// ParseLine reads one order line:
//
//	panel:<color>:<thickness>:<qty>
//	joint:<type>:<color>:<thickness>:<qty>
//	glue:<qty>
func ParseLine(s string) (orders.Line, error) {
	parts := strings.Split(s, ":")
	kind := inventory.Kind(strings.ToLower(parts[0]))

	want := map[inventory.Kind]int{
		inventory.KindFinishedGood: 4,
		inventory.KindJointProfile: 5,
		inventory.KindAdhesive:     2,
	}
	n, ok := want[kind]
	if !ok {
		return nil, fmt.Errorf("%q: only panel, joint and glue can be ordered", s)
	}
	if len(parts) != n {
		return nil, fmt.Errorf("%q: expected %d fields, got %d", s, n, len(parts))
	}

	qty, err := strconv.ParseInt(parts[n-1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%q: quantity must be a whole number", s)
	}

	switch kind {
	case inventory.KindFinishedGood:
		th, err := inventory.ParseThickness(parts[2])
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		return orders.FinishedGoodLine{Color: parts[1], Thickness: th, Quantity: qty}, nil
	case inventory.KindJointProfile:
		th, err := inventory.ParseThickness(parts[3])
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		return orders.JointLine{JointType: parts[1], Color: parts[2], Thickness: th, Quantity: qty}, nil
	default:
		return orders.AdhesiveLine{Quantity: qty}, nil
	}
}

// ParseLines reads every argument as an order line.
func ParseLines(args []string) ([]orders.Line, error) {
	lines := make([]orders.Line, 0, len(args))
	for _, a := range args {
		l, err := ParseLine(a)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, nil
}
