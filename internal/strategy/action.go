package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind identifies the variant of an Action.
type Kind string

const (
	Hold             Kind = "hold"
	Buy              Kind = "buy"
	SellLimit        Kind = "sell_limit"
	CancelAndReplace Kind = "cancel_and_replace"
)

// Action is the single decision produced per tick. Which fields are set
// depends on Kind:
//
//	Buy:              DollarAmount, Quantity (asset units at the ask), ClientOrderID
//	SellLimit:        Quantity, LimitPrice, ClientOrderID
//	CancelAndReplace: OrderID (to cancel), Quantity, LimitPrice, ClientOrderID (replacement)
type Action struct {
	Kind          Kind
	DollarAmount  decimal.Decimal
	Quantity      decimal.Decimal
	LimitPrice    decimal.Decimal
	OrderID       string
	ClientOrderID string
	Reason        string
}

// IsHold reports whether the action submits nothing.
func (a Action) IsHold() bool {
	return a.Kind == Hold || a.Kind == ""
}

// Equivalent reports whether a and b describe the same trade, ignoring the
// client order id.
func (a Action) Equivalent(b Action) bool {
	return a.Kind == b.Kind &&
		a.DollarAmount.Equal(b.DollarAmount) &&
		a.Quantity.Equal(b.Quantity) &&
		a.LimitPrice.Equal(b.LimitPrice) &&
		a.OrderID == b.OrderID &&
		a.Reason == b.Reason
}

func (a Action) String() string {
	switch a.Kind {
	case Buy:
		return fmt.Sprintf("buy $%s (%s)", a.DollarAmount, a.Quantity)
	case SellLimit:
		return fmt.Sprintf("sell_limit %s @ %s", a.Quantity, a.LimitPrice)
	case CancelAndReplace:
		return fmt.Sprintf("cancel_and_replace %s -> %s @ %s", a.OrderID, a.Quantity, a.LimitPrice)
	default:
		return "hold: " + a.Reason
	}
}

func hold(reason string) Action {
	return Action{Kind: Hold, Reason: reason}
}
