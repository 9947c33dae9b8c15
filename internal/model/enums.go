package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Enums serialize by symbolic name; legacy documents that stored integer
// codes are accepted on read.

func marshalEnum(name string) ([]byte, error) {
	return json.Marshal(name)
}

func unmarshalEnum(data []byte, names []string, what string) (int, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		for i, n := range names {
			if strings.EqualFold(n, s) {
				return i, nil
			}
		}
		return 0, fmt.Errorf("unknown %s %q", what, s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n < 0 || n >= len(names) {
		return 0, fmt.Errorf("invalid %s %s", what, string(data))
	}
	return n, nil
}

// ItemType is the closed set of financial item kinds. Per-type behavior
// (CreditCard forced-enable, Loan zero-disable, Shares unit math) keys off
// this tag.
type ItemType int

const (
	Income ItemType = iota
	Expense
	Savings
	Asset
	Liability
	Loan
	Shares
	CreditCard
)

var itemTypeNames = []string{"Income", "Expense", "Savings", "Asset", "Liability", "Loan", "Shares", "CreditCard"}

func (t ItemType) String() string {
	if int(t) < len(itemTypeNames) {
		return itemTypeNames[t]
	}
	return fmt.Sprintf("ItemType(%d)", int(t))
}

func (t ItemType) MarshalJSON() ([]byte, error) { return marshalEnum(t.String()) }

func (t *ItemType) UnmarshalJSON(data []byte) error {
	n, err := unmarshalEnum(data, itemTypeNames, "item type")
	if err != nil {
		return err
	}
	*t = ItemType(n)
	return nil
}

// Frequency is a calendar recurrence granularity, shared by schedules and
// the simulation step increment.
type Frequency int

const (
	Daily Frequency = iota
	Weekly
	Fortnightly
	Monthly
	Annual
)

var frequencyNames = []string{"Daily", "Weekly", "Fortnightly", "Monthly", "Annual"}

func (f Frequency) String() string {
	if int(f) < len(frequencyNames) {
		return frequencyNames[f]
	}
	return fmt.Sprintf("Frequency(%d)", int(f))
}

func (f Frequency) MarshalJSON() ([]byte, error) { return marshalEnum(f.String()) }

func (f *Frequency) UnmarshalJSON(data []byte) error {
	n, err := unmarshalEnum(data, frequencyNames, "frequency")
	if err != nil {
		return err
	}
	*f = Frequency(n)
	return nil
}

// StepsPerYear is the tick count one simulated year contributes for this
// granularity.
func (f Frequency) StepsPerYear() int {
	switch f {
	case Daily:
		return 365
	case Weekly:
		return 52
	case Fortnightly:
		return 26
	case Monthly:
		return 12
	default:
		return 1
	}
}

// MatchType combines a list of boolean conditions.
type MatchType int

const (
	MatchAll MatchType = iota
	MatchAny
	MatchNone
)

var matchTypeNames = []string{"All", "Any", "None"}

func (m MatchType) String() string {
	if int(m) < len(matchTypeNames) {
		return matchTypeNames[m]
	}
	return fmt.Sprintf("MatchType(%d)", int(m))
}

func (m MatchType) MarshalJSON() ([]byte, error) { return marshalEnum(m.String()) }

func (m *MatchType) UnmarshalJSON(data []byte) error {
	n, err := unmarshalEnum(data, matchTypeNames, "match type")
	if err != nil {
		return err
	}
	*m = MatchType(n)
	return nil
}

// Operator is a comparison in a ValueTrigger.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
)

var operatorNames = []string{"Equal", "NotEqual", "GreaterThan", "GreaterThanOrEqual", "LessThan", "LessThanOrEqual"}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

func (o Operator) MarshalJSON() ([]byte, error) { return marshalEnum(o.String()) }

func (o *Operator) UnmarshalJSON(data []byte) error {
	n, err := unmarshalEnum(data, operatorNames, "operator")
	if err != nil {
		return err
	}
	*o = Operator(n)
	return nil
}

// PercentageBasis selects which balance a percentage AmountFreq is applied
// against. Destination is legal only on EventItem transfers.
type PercentageBasis int

const (
	BasisSource PercentageBasis = iota
	BasisDestination
	BasisSelf
)

var basisNames = []string{"Source", "Destination", "Self"}

func (b PercentageBasis) String() string {
	if int(b) < len(basisNames) {
		return basisNames[b]
	}
	return fmt.Sprintf("PercentageBasis(%d)", int(b))
}

func (b PercentageBasis) MarshalJSON() ([]byte, error) { return marshalEnum(b.String()) }

func (b *PercentageBasis) UnmarshalJSON(data []byte) error {
	n, err := unmarshalEnum(data, basisNames, "percentage basis")
	if err != nil {
		return err
	}
	*b = PercentageBasis(n)
	return nil
}

// StateAction is the state transition an EventItem applies to its target.
type StateAction int

const (
	ActionEnable StateAction = iota
	ActionDisable
	ActionToggle
)

var stateActionNames = []string{"Enable", "Disable", "Toggle"}

func (a StateAction) String() string {
	if int(a) < len(stateActionNames) {
		return stateActionNames[a]
	}
	return fmt.Sprintf("StateAction(%d)", int(a))
}

func (a StateAction) MarshalJSON() ([]byte, error) { return marshalEnum(a.String()) }

func (a *StateAction) UnmarshalJSON(data []byte) error {
	n, err := unmarshalEnum(data, stateActionNames, "state action")
	if err != nil {
		return err
	}
	*a = StateAction(n)
	return nil
}

// TaxMode selects the withholding model. AustralianComprehensive is a stub
// that currently behaves as NoTax.
type TaxMode int

const (
	NoTax TaxMode = iota
	FlatTax
	AustralianComprehensive
)

var taxModeNames = []string{"NoTax", "FlatTax", "AustralianComprehensive"}

func (t TaxMode) String() string {
	if int(t) < len(taxModeNames) {
		return taxModeNames[t]
	}
	return fmt.Sprintf("TaxMode(%d)", int(t))
}

func (t TaxMode) MarshalJSON() ([]byte, error) { return marshalEnum(t.String()) }

func (t *TaxMode) UnmarshalJSON(data []byte) error {
	n, err := unmarshalEnum(data, taxModeNames, "tax mode")
	if err != nil {
		return err
	}
	*t = TaxMode(n)
	return nil
}

// Weekday wraps time.Weekday with name-or-integer JSON.
type Weekday time.Weekday

var weekdayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

func (w Weekday) String() string { return time.Weekday(w).String() }

func (w Weekday) MarshalJSON() ([]byte, error) { return marshalEnum(w.String()) }

func (w *Weekday) UnmarshalJSON(data []byte) error {
	n, err := unmarshalEnum(data, weekdayNames, "weekday")
	if err != nil {
		return err
	}
	*w = Weekday(n)
	return nil
}

// Month wraps time.Month with name-or-integer JSON. Serialized integers are
// 1-based like time.Month.
type Month time.Month

func (m Month) String() string { return time.Month(m).String() }

func (m Month) MarshalJSON() ([]byte, error) { return marshalEnum(m.String()) }

func (m *Month) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		for i := time.January; i <= time.December; i++ {
			if strings.EqualFold(i.String(), s) {
				*m = Month(i)
				return nil
			}
		}
		return fmt.Errorf("unknown month %q", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n < 1 || n > 12 {
		return fmt.Errorf("invalid month %s", string(data))
	}
	*m = Month(n)
	return nil
}
