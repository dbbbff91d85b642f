package scheduler

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/rh-crypto-trader/internal/api"
	"github.com/rickgao/rh-crypto-trader/internal/model"
	"github.com/rickgao/rh-crypto-trader/internal/position"
	"github.com/rickgao/rh-crypto-trader/internal/strategy"
)

// Outcome is what executing a tick's action led to.
type Outcome string

const (
	OutcomeNone          Outcome = "none"           // hold, nothing submitted
	OutcomeFilled        Outcome = "filled"         // submission confirmed filled
	OutcomeResting       Outcome = "resting"        // submission accepted, tracked as open order
	OutcomeRejected      Outcome = "rejected"       // exchange refused the submission
	OutcomeCanceled      Outcome = "canceled"       // cancel confirmed, nothing left to replace
	OutcomeCancelPending Outcome = "cancel_pending" // cancel not yet confirmed, old order still tracked
	OutcomeFailed        Outcome = "failed"         // transport or parse failure
)

// TickResult describes one tick.
type TickResult struct {
	Symbol      string
	At          time.Time
	Duration    time.Duration
	BuyingPower decimal.Decimal
	Quote       model.Quote
	Action      strategy.Action
	Order       *model.Order // last order submitted this tick
	Outcome     Outcome
	SkipReason  string
	FailedOp    string // gateway operation that failed, if any
	Err         error
	State       position.State
}

// Result is the ticks_total label: "ok", "skipped" or "error".
func (r TickResult) Result() string {
	switch {
	case r.Err != nil:
		return "error"
	case r.SkipReason != "":
		return "skipped"
	default:
		return "ok"
	}
}

// ErrorKind classifies err as "transport", "parse", "rejected" or "other".
func ErrorKind(err error) string {
	var rej *api.OrderRejectedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rej):
		return "rejected"
	case api.IsTransport(err):
		return "transport"
	case api.IsParse(err):
		return "parse"
	default:
		return "other"
	}
}

type tickJSON struct {
	Symbol      string          `json:"symbol"`
	At          time.Time       `json:"at"`
	DurationMS  int64           `json:"duration_ms"`
	Result      string          `json:"result"`
	BuyingPower decimal.Decimal `json:"buying_power"`
	Bid         decimal.Decimal `json:"bid"`
	Ask         decimal.Decimal `json:"ask"`
	Action      string          `json:"action"`
	Reason      string          `json:"reason,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	LimitPrice  decimal.Decimal `json:"limit_price"`
	OrderID     string          `json:"order_id,omitempty"`
	Outcome     Outcome         `json:"outcome,omitempty"`
	SkipReason  string          `json:"skip_reason,omitempty"`
	FailedOp    string          `json:"failed_op,omitempty"`
	Error       string          `json:"error,omitempty"`
	OpenOrderID string          `json:"open_order_id,omitempty"`
}

// MarshalJSON renders the result for the event stream.
func (r TickResult) MarshalJSON() ([]byte, error) {
	out := tickJSON{
		Symbol:      r.Symbol,
		At:          r.At,
		DurationMS:  r.Duration.Milliseconds(),
		Result:      r.Result(),
		BuyingPower: r.BuyingPower,
		Bid:         r.Quote.Bid,
		Ask:         r.Quote.Ask,
		Action:      string(r.Action.Kind),
		Reason:      r.Action.Reason,
		Quantity:    r.Action.Quantity,
		LimitPrice:  r.Action.LimitPrice,
		Outcome:     r.Outcome,
		SkipReason:  r.SkipReason,
		FailedOp:    r.FailedOp,
		OpenOrderID: r.State.OpenOrderID,
	}
	if r.Order != nil {
		out.OrderID = r.Order.ID
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}
