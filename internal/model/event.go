package model

import (
	"encoding/json"

	"github.com/jacob-jarick/Falculator/internal/logging"
)

// EventKind is what an EventItem does when its triggers fire. Exactly one
// kind survives Sanitize.
type EventKind int

const (
	EventNone EventKind = iota
	EventPush
	EventPull
	EventLiquidate
	EventStateChange
)

var eventKindNames = []string{"None", "Push", "Pull", "Liquidate", "StateChange"}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "EventKind(?)"
}

// EventItem is a conditional inter-item operation attached to a source item:
// push cash to a target, pull cash from it, change its state, or liquidate
// it into main savings.
type EventItem struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Enabled           bool              `json:"enabled"`
	TargetID          string            `json:"target_id,omitempty"`
	TargetName        string            `json:"target_name,omitempty"`
	SetStateOnTrigger bool              `json:"set_state_on_trigger"`
	TargetStateAction StateAction       `json:"target_state_action"`
	CashOut           AmountFreq        `json:"cash_out"`
	CashIn            AmountFreq        `json:"cash_in"`
	Liquidate         bool              `json:"liquidate"`
	Triggers          TriggerConditions `json:"triggers"`

	// target is resolved by Config.Sanitize and not serialized.
	target *FinancialItem
}

// UnmarshalJSON defaults Enabled to true when absent.
func (e *EventItem) UnmarshalJSON(data []byte) error {
	type alias EventItem
	raw := struct {
		Enabled *bool `json:"enabled"`
		*alias
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Enabled = raw.Enabled == nil || *raw.Enabled
	return nil
}

// Target returns the resolved target item, nil until Sanitize resolves it.
func (e *EventItem) Target() *FinancialItem { return e.target }

// Kind reports the single operation this event performs.
func (e *EventItem) Kind() EventKind {
	switch {
	case e.Liquidate:
		return EventLiquidate
	case e.CashOut.Enabled:
		return EventPush
	case e.CashIn.Enabled:
		return EventPull
	case e.SetStateOnTrigger:
		return EventStateChange
	default:
		return EventNone
	}
}

// sanitize normalizes the event's amount specs and enforces that operation
// kinds are mutually exclusive, in priority order liquidate, push, pull,
// state change.
func (e *EventItem) sanitize(rep *Report, log *logging.Logger, ids *IdRegistry, owner *FinancialItem) {
	e.ID = ids.Ensure(e.ID)
	if e.Name == "" {
		e.Name = "event " + e.ID
	}
	e.CashOut.sanitize(rep, log, e.ID, e.Name, "cash_out", true)
	e.CashIn.sanitize(rep, log, e.ID, e.Name, "cash_in", true)

	if e.Liquidate {
		if e.CashOut.Enabled || e.CashIn.Enabled {
			rep.correct("EventItem", e.ID, "cash flows", "enabled", "disabled", "liquidation excludes cash transfers")
			log.Warn(e.ID, e.Name, "cash transfer disabled on liquidation event")
			e.CashOut.Enabled = false
			e.CashIn.Enabled = false
		}
		if e.SetStateOnTrigger {
			rep.correct("EventItem", e.ID, "set_state_on_trigger", "true", "false", "liquidation already disables the target")
			e.SetStateOnTrigger = false
		}
	} else if e.CashOut.Enabled {
		if e.CashIn.Enabled {
			rep.correct("EventItem", e.ID, "cash_in.enabled", "true", "false", "an event transfers in one direction")
			log.Warn(e.ID, e.Name, "cash pull disabled; push takes precedence")
			e.CashIn.Enabled = false
		}
		if e.SetStateOnTrigger {
			rep.correct("EventItem", e.ID, "set_state_on_trigger", "true", "false", "cash transfer excludes state change")
			e.SetStateOnTrigger = false
		}
	} else if e.CashIn.Enabled && e.SetStateOnTrigger {
		rep.correct("EventItem", e.ID, "set_state_on_trigger", "true", "false", "cash transfer excludes state change")
		e.SetStateOnTrigger = false
	}
}

// resolveTarget binds the event to its target item, preferring the id and
// falling back to a name lookup. Self-references and dangling references
// disable the event.
func (e *EventItem) resolveTarget(rep *Report, log *logging.Logger, owner *FinancialItem, items []*FinancialItem) {
	e.target = nil
	if !e.Enabled {
		return
	}
	var found *FinancialItem
	for _, item := range items {
		if e.TargetID != "" && item.ID == e.TargetID {
			found = item
			break
		}
	}
	if found == nil && e.TargetName != "" {
		for _, item := range items {
			if item.Name == e.TargetName {
				found = item
				break
			}
		}
	}
	switch {
	case found == nil:
		rep.correct("EventItem", e.ID, "enabled", "true", "false", "target does not resolve")
		log.Warn(e.ID, e.Name, "event disabled: unresolvable target")
		e.Enabled = false
	case found.ID == owner.ID:
		rep.correct("EventItem", e.ID, "enabled", "true", "false", "event cannot target its own item")
		log.Warn(e.ID, e.Name, "event disabled: self reference")
		e.Enabled = false
	default:
		e.target = found
		e.TargetID = found.ID
		e.TargetName = found.Name
	}
}
