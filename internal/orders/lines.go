// Package orders owns open orders and their line items up to fulfillment,
// and exposes the archived form produced by it.
package orders

import (
	"fmt"

	"github.com/buildtall-systems/panelbot/internal/db"
	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/shopspring/decimal"
)

// Line is one requested quantity against one resource key. The set of
// implementations is closed: FinishedGoodLine, JointLine and AdhesiveLine.
type Line interface {
	Key() inventory.Key
	Amount() inventory.Amount
	fmt.Stringer
	isLine()
}

type FinishedGoodLine struct {
	Color     string          `validate:"required,token"`
	Thickness decimal.Decimal `validate:"gt=0"`
	Quantity  int64           `validate:"gt=0"`
}

type JointLine struct {
	JointType string          `validate:"required,token"`
	Color     string          `validate:"required,token"`
	Thickness decimal.Decimal `validate:"gt=0"`
	Quantity  int64           `validate:"gt=0"`
}

type AdhesiveLine struct {
	Quantity int64 `validate:"gt=0"`
}

func (FinishedGoodLine) isLine() {}
func (JointLine) isLine()        {}
func (AdhesiveLine) isLine()     {}

func (l FinishedGoodLine) Key() inventory.Key {
	return inventory.FinishedGood(l.Color, l.Thickness)
}

func (l JointLine) Key() inventory.Key {
	return inventory.JointProfile(l.JointType, l.Color, l.Thickness)
}

func (l AdhesiveLine) Key() inventory.Key {
	return inventory.Adhesive()
}

func (l FinishedGoodLine) Amount() inventory.Amount {
	return inventory.Amount{Key: l.Key(), Quantity: decimal.NewFromInt(l.Quantity)}
}

func (l JointLine) Amount() inventory.Amount {
	return inventory.Amount{Key: l.Key(), Quantity: decimal.NewFromInt(l.Quantity)}
}

func (l AdhesiveLine) Amount() inventory.Amount {
	return inventory.Amount{Key: l.Key(), Quantity: decimal.NewFromInt(l.Quantity)}
}

func (l FinishedGoodLine) String() string {
	return fmt.Sprintf("%d x panel %s/%s", l.Quantity, l.Color, l.Thickness)
}

func (l JointLine) String() string {
	return fmt.Sprintf("%d x joint %s %s/%s", l.Quantity, l.JointType, l.Color, l.Thickness)
}

func (l AdhesiveLine) String() string {
	return fmt.Sprintf("%d x glue", l.Quantity)
}

// Amounts maps lines to the ledger amounts they consume.
func Amounts(lines []Line) []inventory.Amount {
	amounts := make([]inventory.Amount, len(lines))
	for i, l := range lines {
		amounts[i] = l.Amount()
	}
	return amounts
}

func toRow(l Line) (db.OrderLine, error) {
	switch v := l.(type) {
	case FinishedGoodLine:
		return db.OrderLine{Kind: string(inventory.KindFinishedGood), Color: v.Color, Thickness: v.Thickness.String(), Quantity: v.Quantity}, nil
	case JointLine:
		return db.OrderLine{Kind: string(inventory.KindJointProfile), JointType: v.JointType, Color: v.Color, Thickness: v.Thickness.String(), Quantity: v.Quantity}, nil
	case AdhesiveLine:
		return db.OrderLine{Kind: string(inventory.KindAdhesive), Quantity: v.Quantity}, nil
	}
	return db.OrderLine{}, fmt.Errorf("unsupported line type %T", l)
}

func fromRow(r db.OrderLine) (Line, error) {
	switch inventory.Kind(r.Kind) {
	case inventory.KindFinishedGood:
		th, err := decimal.NewFromString(r.Thickness)
		if err != nil {
			return nil, fmt.Errorf("line %d: thickness %q: %w", r.Position, r.Thickness, err)
		}
		return FinishedGoodLine{Color: r.Color, Thickness: th, Quantity: r.Quantity}, nil
	case inventory.KindJointProfile:
		th, err := decimal.NewFromString(r.Thickness)
		if err != nil {
			return nil, fmt.Errorf("line %d: thickness %q: %w", r.Position, r.Thickness, err)
		}
		return JointLine{JointType: r.JointType, Color: r.Color, Thickness: th, Quantity: r.Quantity}, nil
	case inventory.KindAdhesive:
		return AdhesiveLine{Quantity: r.Quantity}, nil
	}
	return nil, fmt.Errorf("line %d: unknown kind %q", r.Position, r.Kind)
}

func linesFromRows(rows []db.OrderLine) ([]Line, error) {
	lines := make([]Line, 0, len(rows))
	for _, r := range rows {
		l, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, nil
}
