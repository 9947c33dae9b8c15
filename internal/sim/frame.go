package sim

import (
	"github.com/shopspring/decimal"

	"github.com/jacob-jarick/Falculator/internal/model"
)

// ItemState is one item's runtime state projected into a frame.
type ItemState struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Value          decimal.Decimal `json:"value"`
	CashInAmount   decimal.Decimal `json:"cash_in_amount"`
	CashOutAmount  decimal.Decimal `json:"cash_out_amount"`
	InterestAmount decimal.Decimal `json:"interest_amount"`
	CashFlow       decimal.Decimal `json:"cash_flow"`
	EnabledBySim   bool            `json:"enabled_by_sim"`
	TaxPaid        decimal.Decimal `json:"tax_paid"`
}

// EventRecord is one effect emitted during a tick: a transfer, a state
// change, a liquidation, or a terminal condition.
type EventRecord struct {
	Date     model.Date      `json:"date"`
	Kind     string          `json:"kind"`
	SourceID string          `json:"source_id,omitempty"`
	TargetID string          `json:"target_id,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Message  string          `json:"message"`
}

// Event record kinds. Overdraw is the only terminal one.
const (
	EventKindTransfer    = "Transfer"
	EventKindStateChange = "StateChange"
	EventKindLiquidate   = "Liquidate"
	EventKindOverdraw    = "Overdraw"
)

// Frame is the immutable snapshot of every item at one instant, plus the
// run's accumulated tax and the events emitted during the tick. Frames are
// append-only history; once emitted they are never mutated.
type Frame struct {
	FrameDate    model.Date      `json:"frame_date"`
	Items        []ItemState     `json:"items_state"`
	TotalTaxPaid decimal.Decimal `json:"total_tax_paid"`
	Events       []EventRecord   `json:"events,omitempty"`
}

// ItemState finds an item's state in the frame, nil when absent.
func (f *Frame) ItemState(id string) *ItemState {
	for i := range f.Items {
		if f.Items[i].ID == id {
			return &f.Items[i]
		}
	}
	return nil
}

// HasOverdraw reports whether this frame carries the overdraw terminal
// event.
func (f *Frame) HasOverdraw() bool {
	for _, ev := range f.Events {
		if ev.Kind == EventKindOverdraw {
			return true
		}
	}
	return false
}
