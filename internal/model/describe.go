package model

// FieldSpec is one entry of an entity's GUI-facing schema: enough for
// property-editor code generation without runtime reflection.
type FieldSpec struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Constraints string `json:"constraints,omitempty"`
}

// Describe lists the Config schema.
func (c *Config) Describe() []FieldSpec {
	return []FieldSpec{
		{Name: "version", Kind: "int", Constraints: "always 1"},
		{Name: "sim_name", Kind: "string"},
		{Name: "birth_date", Kind: "date"},
		{Name: "years_to_sim", Kind: "int", Constraints: ">= 1"},
		{Name: "step_increment", Kind: "enum", Constraints: "Daily|Weekly|Fortnightly|Monthly|Annual"},
		{Name: "start_date_is_today", Kind: "bool"},
		{Name: "start_date", Kind: "date"},
		{Name: "tax_mode", Kind: "enum", Constraints: "NoTax|FlatTax|AustralianComprehensive"},
		{Name: "tax_percent", Kind: "decimal", Constraints: "0..100"},
		{Name: "end_of_fy", Kind: "date"},
		{Name: "items", Kind: "[]FinancialItem"},
		{Name: "log_level", Kind: "enum", Constraints: "Debug|Info|Warn|Error"},
		{Name: "fail_on_overdraw", Kind: "bool"},
	}
}

// Describe lists the FinancialItem schema.
func (f *FinancialItem) Describe() []FieldSpec {
	return []FieldSpec{
		{Name: "id", Kind: "string", Constraints: "8 ascii chars, unique"},
		{Name: "name", Kind: "string"},
		{Name: "description", Kind: "string"},
		{Name: "tags", Kind: "[]string", Constraints: "case-sensitive, deduped"},
		{Name: "type", Kind: "enum", Constraints: "Income|Expense|Savings|Asset|Liability|Loan|Shares|CreditCard"},
		{Name: "value", Kind: "decimal"},
		{Name: "cash_in", Kind: "AmountFreq"},
		{Name: "cash_out", Kind: "AmountFreq"},
		{Name: "interest", Kind: "AmountFreq", Constraints: "always percentage"},
		{Name: "share_details", Kind: "ShareDetails", Constraints: "Shares only"},
		{Name: "events", Kind: "[]EventItem"},
		{Name: "self_trigger", Kind: "TriggerConditions"},
		{Name: "start_enabled", Kind: "bool"},
		{Name: "disabled_by_user", Kind: "bool"},
		{Name: "start_date", Kind: "date"},
		{Name: "end_date", Kind: "date"},
		{Name: "is_main_savings", Kind: "bool", Constraints: "exactly one per config"},
		{Name: "is_liquid_asset", Kind: "bool"},
		{Name: "eval_order", Kind: "int", Constraints: "distinct; main savings 0"},
		{Name: "liquidate_self_on_trigger", Kind: "bool"},
	}
}

// Describe lists the AmountFreq schema.
func (f *AmountFreq) Describe() []FieldSpec {
	return []FieldSpec{
		{Name: "enabled", Kind: "bool"},
		{Name: "amount", Kind: "decimal", Constraints: "percentage stored as whole number"},
		{Name: "is_percentage", Kind: "bool"},
		{Name: "percentage_basis", Kind: "enum", Constraints: "Source|Destination|Self; Destination on events only"},
		{Name: "annual_rate_monthly_compounding", Kind: "bool", Constraints: "forces monthly month-end schedule"},
		{Name: "schedule", Kind: "AmountSchedule"},
	}
}

// Describe lists the AmountSchedule schema.
func (s *AmountSchedule) Describe() []FieldSpec {
	return []FieldSpec{
		{Name: "frequency", Kind: "enum", Constraints: "Daily|Weekly|Fortnightly|Monthly|Annual"},
		{Name: "day_of_week", Kind: "weekday", Constraints: "weekly/fortnightly; default Monday"},
		{Name: "day_of_month", Kind: "int", Constraints: "1..31; 31 is month end"},
		{Name: "month_of_year", Kind: "month", Constraints: "annual only"},
		{Name: "trigger_limit", Kind: "int", Constraints: ">= 0; 0 is unlimited"},
		{Name: "trigger_count", Kind: "int", Constraints: "runtime"},
	}
}

// Describe lists the EventItem schema.
func (e *EventItem) Describe() []FieldSpec {
	return []FieldSpec{
		{Name: "id", Kind: "string", Constraints: "8 ascii chars, unique"},
		{Name: "name", Kind: "string"},
		{Name: "enabled", Kind: "bool"},
		{Name: "target_id", Kind: "string", Constraints: "resolves to another item"},
		{Name: "target_name", Kind: "string", Constraints: "fallback lookup"},
		{Name: "set_state_on_trigger", Kind: "bool"},
		{Name: "target_state_action", Kind: "enum", Constraints: "Enable|Disable|Toggle"},
		{Name: "cash_out", Kind: "AmountFreq", Constraints: "push to target"},
		{Name: "cash_in", Kind: "AmountFreq", Constraints: "pull from target"},
		{Name: "liquidate", Kind: "bool", Constraints: "excludes cash flows"},
		{Name: "triggers", Kind: "TriggerConditions"},
	}
}

// Describe lists the TriggerConditions schema.
func (c *TriggerConditions) Describe() []FieldSpec {
	return []FieldSpec{
		{Name: "id", Kind: "string"},
		{Name: "trigger_match_type", Kind: "enum", Constraints: "All|Any|None"},
		{Name: "trigger_match_value", Kind: "bool"},
		{Name: "tag_match_type", Kind: "enum", Constraints: "All|Any|None"},
		{Name: "age", Kind: "ValueTrigger"},
		{Name: "liquid_assets", Kind: "ValueTrigger"},
		{Name: "main_savings_balance", Kind: "ValueTrigger"},
		{Name: "target_balance", Kind: "ValueTrigger", Constraints: "event context only"},
		{Name: "tag_rules", Kind: "[]TagPredicate"},
		{Name: "start_date", Kind: "date"},
		{Name: "end_date", Kind: "date"},
	}
}

// Describe lists the ValueTrigger schema.
func (v *ValueTrigger) Describe() []FieldSpec {
	return []FieldSpec{
		{Name: "enabled", Kind: "bool"},
		{Name: "operator", Kind: "enum", Constraints: "Equal|NotEqual|GreaterThan|GreaterThanOrEqual|LessThan|LessThanOrEqual"},
		{Name: "comparison_value", Kind: "decimal"},
		{Name: "trigger_limit", Kind: "int", Constraints: ">= 0; 0 is unlimited"},
		{Name: "trigger_count", Kind: "int", Constraints: "runtime, monotonic"},
		{Name: "last_trigger_date", Kind: "date", Constraints: "runtime"},
	}
}

// Describe lists the TagPredicate schema.
func (p *TagPredicate) Describe() []FieldSpec {
	return []FieldSpec{
		{Name: "enabled", Kind: "bool"},
		{Name: "tags", Kind: "[]string", Constraints: "must exist on some item"},
		{Name: "match_type", Kind: "enum", Constraints: "All|Any|None"},
		{Name: "match_value", Kind: "bool"},
	}
}
