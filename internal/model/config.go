package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jacob-jarick/Falculator/internal/logging"
)

// CurrentVersion is the config document version this build writes.
const CurrentVersion = 1

// mainSavingsHorizonYears is the minimum end-date horizon on the main
// savings item: it must outlive any plausible simulation.
const mainSavingsHorizonYears = 95

// Config is the root container: every financial item, the global simulation
// settings, and the cross-item invariants. Running the simulator on an
// unsanitized Config is undefined; Sanitize is run on load, save, and
// simulation start.
type Config struct {
	Version          int              `json:"version"`
	SimName          string           `json:"sim_name"`
	BirthDate        Date             `json:"birth_date"`
	YearsToSim       int              `json:"years_to_sim"`
	StepIncrement    Frequency        `json:"step_increment"`
	StartDateIsToday bool             `json:"start_date_is_today"`
	StartDate        Date             `json:"start_date"`
	TaxMode          TaxMode          `json:"tax_mode"`
	TaxPercent       decimal.Decimal  `json:"tax_percent"`
	EndOfFY          Date             `json:"end_of_fy"`
	Items            []*FinancialItem `json:"items"`
	MainSavingsIdx   int              `json:"main_savings_idx"`
	LogLevel         logging.Level    `json:"log_level"`
	FailOnOverdraw   bool             `json:"fail_on_overdraw"`
}

// DefaultConfig returns a runnable config with a synthesized main savings
// item. Callers still run Sanitize before simulating.
func DefaultConfig() *Config {
	return &Config{
		Version:          CurrentVersion,
		SimName:          "New Simulation",
		BirthDate:        NewDate(1990, time.January, 1),
		YearsToSim:       10,
		StepIncrement:    Monthly,
		StartDateIsToday: true,
		TaxMode:          NoTax,
		MainSavingsIdx:   -1,
		LogLevel:         logging.LevelInfo,
	}
}

// MainSavings returns the designated main savings item, nil when the config
// is unrunnable (none resolved).
func (c *Config) MainSavings() *FinancialItem {
	if c.MainSavingsIdx < 0 || c.MainSavingsIdx >= len(c.Items) {
		return nil
	}
	return c.Items[c.MainSavingsIdx]
}

// ItemByID finds an item, nil when absent.
func (c *Config) ItemByID(id string) *FinancialItem {
	for _, item := range c.Items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// Clone deep-copies the config through its serialized form, then re-resolves
// runtime-only references. The simulator clones so callers keep an untouched
// document.
func (c *Config) Clone() (*Config, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("clone config: %w", err)
	}
	var out Config
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone config: %w", err)
	}
	out.resolveTargets(&Report{}, logging.NewNop())
	return &out, nil
}

// Sanitize is the idempotent normalization pass. Errors are non-fatal by
// default: every correction is collected into the returned report, and only
// the fatal kinds (multiple main savings, zero-unit-price share purchases)
// make Report.Err non-nil.
func (c *Config) Sanitize(log *logging.Logger) *Report {
	if log == nil {
		log = logging.NewNop()
	}
	rep := &Report{}
	ids := NewIdRegistry()

	c.normalizeTopLevel(rep, log)

	if len(c.Items) == 0 {
		c.Items = append(c.Items, c.newDefaultMainSavings())
		rep.correct("Config", "", "items", "[]", "[Main Savings]", "a config needs at least the main savings item")
		log.Warn("", c.SimName, "no items; synthesized default main savings")
	}

	for _, item := range c.Items {
		item.sanitize(rep, log, ids)
	}

	c.resolveMainSavings(rep, log)
	c.dedupeEvalOrder(rep, log)

	tags := NewTagRegistry()
	for _, item := range c.Items {
		for _, t := range item.Tags {
			tags.Add(t)
		}
	}
	for _, item := range c.Items {
		item.SelfTrigger.sanitize(rep, log, tags, ids, item.ID, item.Name)
		for _, ev := range item.Events {
			ev.Triggers.sanitize(rep, log, tags, ids, ev.ID, ev.Name)
		}
	}

	c.resolveTargets(rep, log)
	c.checkShareEventDivisors(rep, log)
	return rep
}

func (c *Config) normalizeTopLevel(rep *Report, log *logging.Logger) {
	if c.Version != CurrentVersion {
		rep.correct("Config", "", "version", fmt.Sprint(c.Version), fmt.Sprint(CurrentVersion), "document version pinned")
		c.Version = CurrentVersion
	}
	if c.EndOfFY.IsZero() {
		c.EndOfFY = NewDate(Today().Year(), time.June, 30)
		rep.correct("Config", "", "end_of_fy", "", c.EndOfFY.String(), "financial year end defaults to June 30")
	}
	if c.YearsToSim < 1 {
		rep.correct("Config", "", "years_to_sim", fmt.Sprint(c.YearsToSim), "1", "simulations run at least one year")
		c.YearsToSim = 1
	}
	if c.StartDateIsToday {
		today := Today()
		if !c.StartDate.Equal(today) {
			rep.correct("Config", "", "start_date", c.StartDate.String(), today.String(), "start date pinned to today")
			c.StartDate = today
		}
	}
	if c.StartDate.IsZero() {
		c.StartDate = Today()
		rep.correct("Config", "", "start_date", "", c.StartDate.String(), "start date required")
	}
	if c.TaxPercent.IsNegative() {
		rep.correct("Config", "", "tax_percent", c.TaxPercent.String(), "0", "tax percent range is [0,100]")
		c.TaxPercent = decimal.Zero
	}
	if c.TaxPercent.GreaterThan(decimal.NewFromInt(100)) {
		rep.correct("Config", "", "tax_percent", c.TaxPercent.String(), "100", "tax percent range is [0,100]")
		c.TaxPercent = decimal.NewFromInt(100)
	}
	if !c.BirthDate.IsZero() && c.StartDate.Before(c.BirthDate) {
		log.Warn("", c.SimName, fmt.Sprintf("start date %s precedes birth date %s", c.StartDate, c.BirthDate))
	}
}

func (c *Config) newDefaultMainSavings() *FinancialItem {
	return &FinancialItem{
		Name:          "Main Savings",
		Type:          Savings,
		StartEnabled:  true,
		IsMainSavings: true,
		IsLiquidAsset: true,
		EndDate:       Today().AddYears(100),
		Interest:      AmountFreq{IsPercentage: true, PercentageBasis: BasisSelf, Schedule: MonthlyLastDay()},
		CashIn:        AmountFreq{Schedule: AmountSchedule{Frequency: Monthly, DayOfMonth: 1}},
		CashOut:       AmountFreq{Schedule: AmountSchedule{Frequency: Monthly, DayOfMonth: 1}},
		SelfTrigger:   TriggerConditions{TriggerMatchValue: true},
	}
}

// resolveMainSavings finds the single cash-flow hub. Zero candidates
// synthesizes one; two or more is fatal and the simulation refuses to start.
func (c *Config) resolveMainSavings(rep *Report, log *logging.Logger) {
	var idxs []int
	for i, item := range c.Items {
		if item.IsMainSavings {
			idxs = append(idxs, i)
		}
	}
	switch len(idxs) {
	case 0:
		item := c.newDefaultMainSavings()
		item.sanitize(rep, log, rebuildIds(c.Items))
		c.Items = append(c.Items, item)
		c.MainSavingsIdx = len(c.Items) - 1
		rep.correct("Config", "", "main_savings_idx", "-1", fmt.Sprint(c.MainSavingsIdx), "no main savings; synthesized one")
		log.Warn("", c.SimName, "no main savings item; synthesized default")
	case 1:
		c.MainSavingsIdx = idxs[0]
	default:
		log.Error("", c.SimName, fmt.Sprintf("%d items flagged as main savings", len(idxs)))
		rep.fatal(fmt.Errorf("%w: %d candidates", ErrMultipleMainSavings, len(idxs)))
		c.MainSavingsIdx = -1
		return
	}
	c.enforceMainSavings(rep, log, c.Items[c.MainSavingsIdx])
}

// rebuildIds replays existing item ids into a fresh registry so late
// synthesis cannot collide.
func rebuildIds(items []*FinancialItem) *IdRegistry {
	ids := NewIdRegistry()
	for _, item := range items {
		ids.Register(item.ID)
		for _, ev := range item.Events {
			ids.Register(ev.ID)
		}
	}
	return ids
}

func (c *Config) enforceMainSavings(rep *Report, log *logging.Logger, ms *FinancialItem) {
	if ms.Type != Savings {
		rep.correct("FinancialItem", ms.ID, "type", ms.Type.String(), Savings.String(), "main savings must be a savings item")
		log.Warn(ms.ID, ms.Name, "main savings type forced to Savings")
		ms.Type = Savings
	}
	if !ms.StartEnabled {
		rep.correct("FinancialItem", ms.ID, "start_enabled", "false", "true", "main savings is always active")
		ms.StartEnabled = true
	}
	if ms.DisabledByUser {
		rep.correct("FinancialItem", ms.ID, "disabled_by_user", "true", "false", "main savings cannot be disabled")
		ms.DisabledByUser = false
	}
	if !ms.IsLiquidAsset {
		rep.correct("FinancialItem", ms.ID, "is_liquid_asset", "false", "true", "main savings is liquid")
		ms.IsLiquidAsset = true
	}
	horizon := Today().AddYears(mainSavingsHorizonYears)
	if ms.EndDate.IsZero() || ms.EndDate.Before(horizon) {
		old := ms.EndDate.String()
		ms.EndDate = Today().AddYears(100)
		rep.correct("FinancialItem", ms.ID, "end_date", old, ms.EndDate.String(), "main savings must outlive the simulation")
	}
	if ms.EvalOrder != 0 {
		rep.correct("FinancialItem", ms.ID, "eval_order", fmt.Sprint(ms.EvalOrder), "0", "main savings evaluates first")
		ms.EvalOrder = 0
	}
}

// dedupeEvalOrder makes eval orders distinct by shifting conflicting values
// upward while preserving relative order. Main savings keeps 0.
func (c *Config) dedupeEvalOrder(rep *Report, log *logging.Logger) {
	order := make([]*FinancialItem, len(c.Items))
	copy(order, c.Items)
	pos := make(map[*FinancialItem]int, len(c.Items))
	for i, item := range c.Items {
		pos[item] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if ia.EvalOrder != ib.EvalOrder {
			return ia.EvalOrder < ib.EvalOrder
		}
		if ia.IsMainSavings != ib.IsMainSavings {
			return ia.IsMainSavings
		}
		return pos[ia] < pos[ib]
	})
	last := -1
	for _, item := range order {
		if item.EvalOrder <= last {
			shifted := last + 1
			rep.correct("FinancialItem", item.ID, "eval_order", fmt.Sprint(item.EvalOrder), fmt.Sprint(shifted), "eval orders must be distinct")
			log.Warn(item.ID, item.Name, fmt.Sprintf("eval_order shifted to %d", shifted))
			item.EvalOrder = shifted
		}
		last = item.EvalOrder
	}
}

func (c *Config) resolveTargets(rep *Report, log *logging.Logger) {
	for _, item := range c.Items {
		for _, ev := range item.Events {
			ev.resolveTarget(rep, log, item, c.Items)
		}
	}
}

// checkShareEventDivisors surfaces the one arithmetic failure a tick could
// otherwise hit: buying or selling shares priced at zero.
func (c *Config) checkShareEventDivisors(rep *Report, log *logging.Logger) {
	for _, item := range c.Items {
		for _, ev := range item.Events {
			if !ev.Enabled || ev.target == nil || ev.target.Type != Shares {
				continue
			}
			if ev.Kind() != EventPush && ev.Kind() != EventPull {
				continue
			}
			if ev.target.ShareDetails == nil || ev.target.ShareDetails.UnitPrice.IsZero() {
				log.Error(ev.ID, ev.Name, "share transfer target has zero unit price")
				rep.fatal(fmt.Errorf("%w: event %s -> item %s", ErrZeroUnitPrice, ev.ID, ev.target.ID))
			}
		}
	}
}

// TotalSteps is the tick count for a full run at the configured increment.
func (c *Config) TotalSteps() int {
	return c.YearsToSim * c.StepIncrement.StepsPerYear()
}

// StepDate returns the simulation date at step index n (step 0 is the start
// date).
func (c *Config) StepDate(n int) Date {
	switch c.StepIncrement {
	case Daily:
		return c.StartDate.AddDays(n)
	case Weekly:
		return c.StartDate.AddDays(7 * n)
	case Fortnightly:
		return c.StartDate.AddDays(14 * n)
	case Monthly:
		return c.StartDate.AddMonths(n)
	default:
		return c.StartDate.AddYears(n)
	}
}
