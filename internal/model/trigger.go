package model

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jacob-jarick/Falculator/internal/logging"
)

// ValueTrigger is a single `value ⊙ k` comparison with trigger-limit
// accounting. TriggerCount is monotonic increasing.
type ValueTrigger struct {
	Enabled         bool            `json:"enabled"`
	Operator        Operator        `json:"operator"`
	ComparisonValue decimal.Decimal `json:"comparison_value"`
	TriggerLimit    int             `json:"trigger_limit"`
	TriggerCount    int             `json:"trigger_count"`
	LastTriggerDate Date            `json:"last_trigger_date,omitempty"`
}

// Check applies the comparison. A disabled trigger never matches; a trigger
// whose limit is exhausted never matches.
func (v *ValueTrigger) Check(val decimal.Decimal) bool {
	if !v.Enabled {
		return false
	}
	var match bool
	switch v.Operator {
	case OpEqual:
		match = val.Equal(v.ComparisonValue)
	case OpNotEqual:
		match = !val.Equal(v.ComparisonValue)
	case OpGreaterThan:
		match = val.GreaterThan(v.ComparisonValue)
	case OpGreaterThanOrEqual:
		match = val.GreaterThanOrEqual(v.ComparisonValue)
	case OpLessThan:
		match = val.LessThan(v.ComparisonValue)
	case OpLessThanOrEqual:
		match = val.LessThanOrEqual(v.ComparisonValue)
	}
	if !match {
		return false
	}
	if v.TriggerLimit > 0 && v.TriggerCount >= v.TriggerLimit {
		return false
	}
	return true
}

// Record books one firing. Called exactly once per firing, exactly when the
// enclosing TriggerConditions returned true.
func (v *ValueTrigger) Record(now Date) {
	v.TriggerCount++
	v.LastTriggerDate = now
}

// TagPredicate is a boolean condition over the set of items carrying any of
// the listed tags. The owner item is excluded so an item never predicates on
// itself.
type TagPredicate struct {
	Enabled    bool      `json:"enabled"`
	Tags       []string  `json:"tags"`
	MatchType  MatchType `json:"match_type"`
	MatchValue bool      `json:"match_value"`
}

// UnmarshalJSON defaults Enabled and MatchValue to true when absent.
func (p *TagPredicate) UnmarshalJSON(data []byte) error {
	type alias TagPredicate
	raw := struct {
		Enabled    *bool `json:"enabled"`
		MatchValue *bool `json:"match_value"`
		*alias
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Enabled = raw.Enabled == nil || *raw.Enabled
	p.MatchValue = raw.MatchValue == nil || *raw.MatchValue
	return nil
}

// Evaluate runs the predicate over items, excluding owner.
func (p *TagPredicate) Evaluate(items []*FinancialItem, owner *FinancialItem, log *logging.Logger) bool {
	if len(p.Tags) == 0 {
		if log != nil && owner != nil {
			log.Warn(owner.ID, owner.Name, "tag predicate has no tags; treated as true")
		}
		return true
	}
	var candidates, matching int
	for _, item := range items {
		if item == owner || !item.hasAnyTag(p.Tags) {
			continue
		}
		candidates++
		if item.EnabledBySim == p.MatchValue {
			matching++
		}
	}
	switch p.MatchType {
	case MatchAll:
		return candidates > 0 && matching == candidates
	case MatchAny:
		return matching > 0
	default: // MatchNone
		return matching == 0
	}
}

// TriggerConditions is the composite predicate gating item activation and
// event firing: tag predicates, a date range, and value triggers over age,
// liquid assets, main-savings balance, and (for events) the target balance.
type TriggerConditions struct {
	ID                 string         `json:"id"`
	TriggerMatchType   MatchType      `json:"trigger_match_type"`
	TriggerMatchValue  bool           `json:"trigger_match_value"`
	TagMatchType       MatchType      `json:"tag_match_type"`
	Age                ValueTrigger   `json:"age"`
	LiquidAssets       ValueTrigger   `json:"liquid_assets"`
	MainSavingsBalance ValueTrigger   `json:"main_savings_balance"`
	TargetBalance      ValueTrigger   `json:"target_balance"`
	TagRules           []TagPredicate `json:"tag_rules,omitempty"`
	StartDate          Date           `json:"start_date,omitempty"`
	EndDate            Date           `json:"end_date,omitempty"`

	// Deprecated parse-only fields migrated by Sanitize and never written
	// back. See migrateLegacy.
	LegacyMinAge     *decimal.Decimal `json:"MinAge,omitempty"`
	LegacyMaxAge     *decimal.Decimal `json:"MaxAge,omitempty"`
	LegacyMinEnabled *bool            `json:"MinEnabled,omitempty"`
	LegacyMinValue   *decimal.Decimal `json:"MinValue,omitempty"`
	LegacyMaxEnabled *bool            `json:"MaxEnabled,omitempty"`
	LegacyMaxValue   *decimal.Decimal `json:"MaxValue,omitempty"`
}

// UnmarshalJSON defaults TriggerMatchValue to true when absent.
func (c *TriggerConditions) UnmarshalJSON(data []byte) error {
	type alias TriggerConditions
	raw := struct {
		TriggerMatchValue *bool `json:"trigger_match_value"`
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.TriggerMatchValue = raw.TriggerMatchValue == nil || *raw.TriggerMatchValue
	return nil
}

// HasAnyConditions reports whether any condition is configured. An
// unconstrained TriggerConditions never fires, so callers that want
// "no conditions means always on" must check this first. The target-balance
// trigger is not counted: it only carries meaning in an event context, and
// a self trigger ignores it.
func (c *TriggerConditions) HasAnyConditions() bool {
	if c.Age.Enabled || c.LiquidAssets.Enabled || c.MainSavingsBalance.Enabled {
		return true
	}
	if !c.StartDate.IsZero() || !c.EndDate.IsZero() {
		return true
	}
	for i := range c.TagRules {
		if c.TagRules[i].Enabled {
			return true
		}
	}
	return false
}

// TriggerInput carries the sim-wide aggregates a trigger evaluation reads.
// TargetValue is non-nil only in an EventItem context; a TargetBalance
// trigger without one is ignored rather than failed.
type TriggerInput struct {
	Items              []*FinancialItem
	Owner              *FinancialItem
	SimDate            Date
	Age                decimal.Decimal
	LiquidAssets       decimal.Decimal
	MainSavingsBalance decimal.Decimal
	TargetValue        *decimal.Decimal
	Log                *logging.Logger
}

// Evaluate computes the composite result and, when it is true, records each
// value trigger whose check was consumed.
func (c *TriggerConditions) Evaluate(in TriggerInput) bool {
	var results []bool
	var fired []*ValueTrigger

	// Condition order is fixed: tag rules first, then dates, then value
	// triggers, so sequences of frames are reproducible.
	var tagResults []bool
	for i := range c.TagRules {
		if !c.TagRules[i].Enabled {
			continue
		}
		tagResults = append(tagResults, c.TagRules[i].Evaluate(in.Items, in.Owner, in.Log))
	}
	if len(tagResults) > 0 {
		results = append(results, combine(tagResults, c.TagMatchType, true))
	}
	if !c.StartDate.IsZero() {
		results = append(results, !in.SimDate.Before(c.StartDate))
	}
	if !c.EndDate.IsZero() {
		results = append(results, !in.SimDate.After(c.EndDate))
	}
	if c.Age.Enabled {
		ok := c.Age.Check(in.Age)
		results = append(results, ok)
		if ok {
			fired = append(fired, &c.Age)
		}
	}
	if c.LiquidAssets.Enabled {
		ok := c.LiquidAssets.Check(in.LiquidAssets)
		results = append(results, ok)
		if ok {
			fired = append(fired, &c.LiquidAssets)
		}
	}
	if c.MainSavingsBalance.Enabled {
		ok := c.MainSavingsBalance.Check(in.MainSavingsBalance)
		results = append(results, ok)
		if ok {
			fired = append(fired, &c.MainSavingsBalance)
		}
	}
	if c.TargetBalance.Enabled && in.TargetValue != nil {
		ok := c.TargetBalance.Check(*in.TargetValue)
		results = append(results, ok)
		if ok {
			fired = append(fired, &c.TargetBalance)
		}
	}

	if len(results) == 0 {
		return false
	}
	if !combine(results, c.TriggerMatchType, c.TriggerMatchValue) {
		return false
	}
	for _, v := range fired {
		v.Record(in.SimDate)
	}
	return true
}

// combine folds a non-empty result list under a match type against a match
// value.
func combine(results []bool, mt MatchType, matchValue bool) bool {
	matches := 0
	for _, r := range results {
		if r == matchValue {
			matches++
		}
	}
	switch mt {
	case MatchAll:
		return matches == len(results)
	case MatchAny:
		return matches > 0
	default: // MatchNone
		return matches == 0
	}
}

// migrateLegacy translates deprecated Min/Max fields into operator-based
// value triggers and erases them.
func (c *TriggerConditions) migrateLegacy(rep *Report, log *logging.Logger, ownerID, ownerName string) {
	if c.LegacyMinAge != nil {
		c.Age = ValueTrigger{Enabled: true, Operator: OpGreaterThanOrEqual, ComparisonValue: *c.LegacyMinAge}
		rep.correct("TriggerConditions", ownerID, "MinAge", c.LegacyMinAge.String(), "age >=", "legacy property migrated")
		c.LegacyMinAge = nil
	}
	if c.LegacyMaxAge != nil {
		c.Age = ValueTrigger{Enabled: true, Operator: OpLessThanOrEqual, ComparisonValue: *c.LegacyMaxAge}
		rep.correct("TriggerConditions", ownerID, "MaxAge", c.LegacyMaxAge.String(), "age <=", "legacy property migrated")
		c.LegacyMaxAge = nil
	}
	if c.LegacyMinEnabled != nil && *c.LegacyMinEnabled && c.LegacyMinValue != nil {
		c.MainSavingsBalance = ValueTrigger{Enabled: true, Operator: OpGreaterThanOrEqual, ComparisonValue: *c.LegacyMinValue}
		rep.correct("TriggerConditions", ownerID, "MinValue", c.LegacyMinValue.String(), "main_savings_balance >=", "legacy property migrated")
	}
	if c.LegacyMaxEnabled != nil && *c.LegacyMaxEnabled && c.LegacyMaxValue != nil {
		c.MainSavingsBalance = ValueTrigger{Enabled: true, Operator: OpLessThanOrEqual, ComparisonValue: *c.LegacyMaxValue}
		rep.correct("TriggerConditions", ownerID, "MaxValue", c.LegacyMaxValue.String(), "main_savings_balance <=", "legacy property migrated")
	}
	c.LegacyMinEnabled, c.LegacyMinValue, c.LegacyMaxEnabled, c.LegacyMaxValue = nil, nil, nil, nil

	if !c.StartDate.IsZero() && !c.EndDate.IsZero() && c.StartDate.After(c.EndDate) {
		rep.correct("TriggerConditions", ownerID, "start_date", c.StartDate.String(), c.EndDate.String(), "start date cannot follow end date")
		log.Warn(ownerID, ownerName, fmt.Sprintf("trigger start date %s moved to end date %s", c.StartDate, c.EndDate))
		c.StartDate = c.EndDate
	}
}

// sanitize validates tag references against the registry and disables
// predicates that mention unknown tags.
func (c *TriggerConditions) sanitize(rep *Report, log *logging.Logger, tags *TagRegistry, ids *IdRegistry, ownerID, ownerName string) {
	c.ID = ids.Ensure(c.ID)
	c.migrateLegacy(rep, log, ownerID, ownerName)
	for i := range c.TagRules {
		p := &c.TagRules[i]
		if !p.Enabled {
			continue
		}
		if missing := tags.Missing(p.Tags); len(missing) > 0 {
			rep.correct("TagPredicate", ownerID, fmt.Sprintf("tag_rules[%d]", i), fmt.Sprint(p.Tags), "disabled",
				fmt.Sprintf("unknown tags %v", missing))
			log.Warn(ownerID, ownerName, fmt.Sprintf("tag predicate disabled: unknown tags %v", missing))
			p.Enabled = false
		}
	}
	for _, v := range []*ValueTrigger{&c.Age, &c.LiquidAssets, &c.MainSavingsBalance, &c.TargetBalance} {
		if v.TriggerLimit < 0 {
			rep.correct("ValueTrigger", ownerID, "trigger_limit", fmt.Sprint(v.TriggerLimit), "0", "trigger limit cannot be negative")
			v.TriggerLimit = 0
		}
	}
}
