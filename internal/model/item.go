package model

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jacob-jarick/Falculator/internal/logging"
)

// ShareDetails carries the unitized state of a Shares item. Units are whole
// numbers; only shares are unitized.
type ShareDetails struct {
	UnitCount     decimal.Decimal `json:"unit_count"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalCostBase decimal.Decimal `json:"total_cost_base"`
}

// Value is the market value of the holding.
func (s *ShareDetails) Value() decimal.Decimal {
	return s.UnitCount.Mul(s.UnitPrice)
}

// FinancialItem is one entity in the portfolio: an income, expense, savings
// account, asset, liability, loan, share holding, or credit card. The
// simulator mutates it only through value updates, trigger counters, and the
// enabled-by-sim flag.
type FinancialItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Type        ItemType `json:"type"`

	Value        decimal.Decimal `json:"value"`
	CashIn       AmountFreq      `json:"cash_in"`
	CashOut      AmountFreq      `json:"cash_out"`
	Interest     AmountFreq      `json:"interest"`
	ShareDetails *ShareDetails   `json:"share_details,omitempty"`

	Events      []*EventItem      `json:"events,omitempty"`
	SelfTrigger TriggerConditions `json:"self_trigger"`

	StartEnabled   bool `json:"start_enabled"`
	DisabledByUser bool `json:"disabled_by_user"`
	EnabledBySim   bool `json:"enabled_by_sim"`

	StartDate Date `json:"start_date,omitempty"`
	EndDate   Date `json:"end_date,omitempty"`

	IsMainSavings          bool `json:"is_main_savings"`
	IsLiquidAsset          bool `json:"is_liquid_asset"`
	EvalOrder              int  `json:"eval_order"`
	LiquidateSelfOnTrigger bool `json:"liquidate_self_on_trigger"`
}

// UnmarshalJSON defaults StartEnabled to true when absent.
func (f *FinancialItem) UnmarshalJSON(data []byte) error {
	type alias FinancialItem
	raw := struct {
		StartEnabled *bool `json:"start_enabled"`
		*alias
	}{alias: (*alias)(f)}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.StartEnabled = raw.StartEnabled == nil || *raw.StartEnabled
	return nil
}

func (f *FinancialItem) hasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range f.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// EvaluateSelfTrigger decides whether the item is active this step and
// updates EnabledBySim. Per-type rules run before the trigger engine:
// user-disabled items are skipped outright, credit cards are always on, and
// paid-off loans stay off.
func (f *FinancialItem) EvaluateSelfTrigger(in TriggerInput) bool {
	if f.DisabledByUser {
		f.EnabledBySim = false
		return false
	}
	if f.Type == CreditCard {
		f.EnabledBySim = true
		return true
	}
	if f.Type == Loan && f.Value.IsZero() {
		f.EnabledBySim = false
		return false
	}
	if !f.StartDate.IsZero() && f.StartDate.After(in.SimDate) {
		f.EnabledBySim = false
		return false
	}
	if !f.EndDate.IsZero() && f.EndDate.Before(in.SimDate) {
		f.EnabledBySim = false
		return false
	}
	if f.SelfTrigger.HasAnyConditions() {
		// An empty TriggerConditions evaluates false, so the no-conditions
		// cases below cannot be delegated to the trigger engine.
		f.EnabledBySim = f.SelfTrigger.Evaluate(in)
		return f.EnabledBySim
	}
	if f.Type == Loan {
		f.EnabledBySim = true
		return true
	}
	// No conditions: EnabledBySim keeps its value from the previous step
	// (seeded from StartEnabled at step 0); triggers are its only mutator.
	return f.EnabledBySim
}

// SyncSharesValue re-derives Value from the unit state. Disabled-by-user
// share holdings are carried at zero.
func (f *FinancialItem) SyncSharesValue() {
	if f.Type != Shares || f.ShareDetails == nil {
		return
	}
	if f.DisabledByUser {
		f.Value = decimal.Zero
		return
	}
	f.Value = f.ShareDetails.Value()
}

// sanitize normalizes one item: the shared AmountFreq invariants, the
// type-specific rules, the self trigger, and each owned event. Target
// resolution is left to the Config pass, which sees every item.
func (f *FinancialItem) sanitize(rep *Report, log *logging.Logger, ids *IdRegistry) {
	f.ID = ids.Ensure(f.ID)
	if f.Name == "" {
		f.Name = fmt.Sprintf("%s %s", f.Type, f.ID)
		rep.correct("FinancialItem", f.ID, "name", "", f.Name, "items need a display name")
	}
	f.Tags = dedupeTags(f.Tags)

	f.CashIn.sanitize(rep, log, f.ID, f.Name, "cash_in", false)
	f.CashOut.sanitize(rep, log, f.ID, f.Name, "cash_out", false)
	f.Interest.sanitize(rep, log, f.ID, f.Name, "interest", false)
	if !f.Interest.IsPercentage {
		rep.correct("FinancialItem", f.ID, "interest.is_percentage", "false", "true", "interest is always a percentage")
		log.Warn(f.ID, f.Name, "interest forced to percentage")
		f.Interest.IsPercentage = true
	}

	switch f.Type {
	case Shares:
		f.sanitizeShares(rep, log)
	case CreditCard:
		f.sanitizeCreditCard(rep, log)
	}

	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.StartDate.After(f.EndDate) {
		rep.correct("FinancialItem", f.ID, "start_date", f.StartDate.String(), f.EndDate.String(), "start date cannot follow end date")
		log.Warn(f.ID, f.Name, "start date moved to end date")
		f.StartDate = f.EndDate
	}

	for _, ev := range f.Events {
		ev.sanitize(rep, log, ids, f)
	}
}

func (f *FinancialItem) sanitizeShares(rep *Report, log *logging.Logger) {
	if f.ShareDetails == nil {
		f.ShareDetails = &ShareDetails{}
		rep.correct("FinancialItem", f.ID, "share_details", "", "{}", "shares items carry unit state")
	}
	if f.ShareDetails.UnitCount.IsNegative() {
		rep.correct("FinancialItem", f.ID, "share_details.unit_count", f.ShareDetails.UnitCount.String(), "0", "unit count cannot be negative")
		log.Warn(f.ID, f.Name, "negative unit count reset to 0")
		f.ShareDetails.UnitCount = decimal.Zero
	}
	if !f.ShareDetails.UnitCount.Equal(f.ShareDetails.UnitCount.Truncate(0)) {
		rep.correct("FinancialItem", f.ID, "share_details.unit_count", f.ShareDetails.UnitCount.String(),
			f.ShareDetails.UnitCount.Truncate(0).String(), "units are whole numbers")
		f.ShareDetails.UnitCount = f.ShareDetails.UnitCount.Truncate(0)
	}
	if f.CashOut.Enabled {
		rep.correct("FinancialItem", f.ID, "cash_out.enabled", "true", "false", "shares produce no direct cash out")
		log.Warn(f.ID, f.Name, "shares cash_out disabled")
		f.CashOut.Enabled = false
	}
	if f.CashIn.Enabled && !f.CashIn.IsPercentage {
		rep.correct("FinancialItem", f.ID, "cash_in.is_percentage", "false", "true", "shares cash in is a yield percentage")
		f.CashIn.IsPercentage = true
	}
	old := f.Value
	f.SyncSharesValue()
	if !old.Equal(f.Value) {
		rep.correct("FinancialItem", f.ID, "value", old.String(), f.Value.String(), "value is unit_count x unit_price")
	}
}

func (f *FinancialItem) sanitizeCreditCard(rep *Report, log *logging.Logger) {
	if f.Value.IsNegative() {
		rep.correct("FinancialItem", f.ID, "value", f.Value.String(), "0", "credit card balance cannot be negative")
		log.Warn(f.ID, f.Name, "negative credit card balance reset to 0")
		f.Value = decimal.Zero
	}
	if !f.Interest.Enabled {
		rep.correct("FinancialItem", f.ID, "interest.enabled", "false", "true", "credit cards always accrue interest")
		log.Warn(f.ID, f.Name, "credit card interest enabled")
		f.Interest.Enabled = true
	}
	if f.Interest.Amount.IsNegative() {
		rep.correct("FinancialItem", f.ID, "interest.amount", f.Interest.Amount.String(), "0", "credit card rate cannot be negative")
		f.Interest.Amount = decimal.Zero
	}
	if !f.Interest.IsPercentage || !f.Interest.AnnualRateMonthlyCompounding {
		rep.correct("FinancialItem", f.ID, "interest", "", "annualized monthly percentage", "credit card interest compounds monthly")
		f.Interest.IsPercentage = true
		f.Interest.AnnualRateMonthlyCompounding = true
	}
	sched := &f.Interest.Schedule
	if sched.Frequency != Monthly || sched.DayOfMonth != 31 || sched.MonthOfYear != nil || sched.TriggerLimit != 0 {
		rep.correct("FinancialItem", f.ID, "interest.schedule", sched.Frequency.String(), "Monthly/31",
			"credit card interest bills at month end")
		want := MonthlyLastDay()
		want.TriggerCount = sched.TriggerCount
		f.Interest.Schedule = want
	}
	if f.DisabledByUser {
		rep.correct("FinancialItem", f.ID, "disabled_by_user", "true", "false", "credit cards cannot be user disabled")
		f.DisabledByUser = false
	}
	if !f.StartEnabled {
		rep.correct("FinancialItem", f.ID, "start_enabled", "false", "true", "credit cards start enabled")
		f.StartEnabled = true
	}
	if f.IsLiquidAsset {
		rep.correct("FinancialItem", f.ID, "is_liquid_asset", "true", "false", "credit card debt is not a liquid asset")
		f.IsLiquidAsset = false
	}
	if f.SelfTrigger.HasAnyConditions() {
		rep.correct("FinancialItem", f.ID, "self_trigger", "configured", "cleared", "credit cards ignore self triggers")
		log.Warn(f.ID, f.Name, "credit card self trigger cleared")
		f.SelfTrigger = TriggerConditions{ID: f.SelfTrigger.ID, TriggerMatchValue: true}
	}
}

func dedupeTags(tags []string) []string {
	if len(tags) < 2 {
		return tags
	}
	seen := make(map[string]bool, len(tags))
	out := tags[:0]
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
