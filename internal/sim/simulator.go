// Package sim drives the deterministic discrete-time simulation: it owns a
// private sanitized copy of the config, advances the clock in fixed steps,
// and emits an immutable Frame per step. Processing is single-threaded and
// strictly sequential per config; two simulators over separate configs are
// independent.
package sim

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/jacob-jarick/Falculator/internal/logging"
	"github.com/jacob-jarick/Falculator/internal/model"
	"github.com/jacob-jarick/Falculator/internal/money"
)

var (
	// ErrOverdraw terminates a run when fail_on_overdraw is set and main
	// savings goes negative.
	ErrOverdraw = errors.New("main savings overdrawn")
	// ErrCancelled reports cooperative cancellation between ticks.
	ErrCancelled = errors.New("simulation cancelled")
)

// Simulator iterates ticks over its own clone of a sanitized config. Callers
// must not mutate the source config during a run; between ticks, values may
// be adjusted through SetItemValue (interactive mode).
type Simulator struct {
	cfg   *model.Config
	items []*model.FinancialItem // ascending eval order
	log   *logging.Logger

	frames     []*Frame
	step       int
	totalSteps int
	finished   bool
	cancelled  atomic.Bool

	totalTax decimal.Decimal
}

// New sanitizes cfg, refuses to start on fatal findings, and snapshots the
// initial frame from a private clone. The caller's config is not mutated
// beyond the sanitize it explicitly ran.
func New(cfg *model.Config, log *logging.Logger) (*Simulator, error) {
	if log == nil {
		log = logging.NewNop()
	}
	clone, err := cfg.Clone()
	if err != nil {
		return nil, err
	}
	if rep := clone.Sanitize(logging.NewNop()); rep.Err() != nil {
		return nil, fmt.Errorf("config not runnable: %w", rep.Err())
	}
	if clone.MainSavings() == nil {
		return nil, model.ErrMultipleMainSavings
	}

	s := &Simulator{
		cfg:        clone,
		log:        log,
		totalSteps: clone.TotalSteps(),
	}
	s.items = make([]*model.FinancialItem, len(clone.Items))
	copy(s.items, clone.Items)
	sort.SliceStable(s.items, func(a, b int) bool {
		return s.items[a].EvalOrder < s.items[b].EvalOrder
	})

	// Step 0 emits the initial snapshot only; EnabledBySim seeds from
	// StartEnabled and the per-type overrides.
	for _, item := range s.items {
		item.EnabledBySim = item.StartEnabled && !item.DisabledByUser
		if item.Type == model.CreditCard {
			item.EnabledBySim = true
		}
		item.SyncSharesValue()
	}
	s.appendFrame(clone.StartDate, nil, nil)
	return s, nil
}

// Config exposes the simulator's private runtime config. Interactive-mode
// drivers read it between ticks; mutating it mid-tick is undefined.
func (s *Simulator) Config() *model.Config { return s.cfg }

// Frames is the read-only emitted history.
func (s *Simulator) Frames() []*Frame { return s.frames }

// Progress reports (completed step index, total steps).
func (s *Simulator) Progress() (int, int) { return s.step, s.totalSteps }

// Cancel signals cooperative cancellation. The tick in flight completes and
// its frame is appended; no further ticks run.
func (s *Simulator) Cancel() { s.cancelled.Store(true) }

// SetItemValue adjusts one item's value between ticks (interactive mode).
func (s *Simulator) SetItemValue(id string, v decimal.Decimal) error {
	item := s.cfg.ItemByID(id)
	if item == nil {
		return fmt.Errorf("no item %s", id)
	}
	item.Value = v
	if item.Type == model.Shares && item.ShareDetails != nil && !item.ShareDetails.UnitPrice.IsZero() {
		item.ShareDetails.UnitCount = v.Div(item.ShareDetails.UnitPrice).Floor()
		item.SyncSharesValue()
	}
	return nil
}

// Run iterates ticks until natural end, overdraw, or cancellation. The
// logger sink is released on every exit path.
func (s *Simulator) Run() ([]*Frame, error) {
	defer s.log.Close()
	for {
		if s.cancelled.Load() {
			s.finished = true
			s.log.Info("", s.cfg.SimName, "simulation cancelled")
			return s.frames, ErrCancelled
		}
		frame, err := s.Tick()
		if err != nil {
			return s.frames, err
		}
		if frame == nil {
			return s.frames, nil
		}
	}
}

// Tick advances one step and returns the emitted frame, nil on natural end.
// ErrOverdraw is returned together with the terminal frame's emission.
func (s *Simulator) Tick() (*Frame, error) {
	if s.finished || s.step >= s.totalSteps {
		s.finished = true
		return nil, nil
	}
	s.step++
	currDate := s.cfg.StepDate(s.step)
	prevDate := s.cfg.StepDate(s.step - 1)

	// Sim-wide aggregates come from the previous frame's state.
	agg := s.aggregates(currDate)

	states := make(map[string]*ItemState, len(s.items))
	for _, item := range s.items {
		states[item.ID] = &ItemState{ID: item.ID, Name: item.Name}
	}
	var events []EventRecord

	for _, item := range s.items {
		active := item.EvaluateSelfTrigger(model.TriggerInput{
			Items:              s.cfg.Items,
			Owner:              item,
			SimDate:            currDate,
			Age:                agg.age,
			LiquidAssets:       agg.liquidAssets,
			MainSavingsBalance: agg.mainSavings,
			Log:                s.log,
		})
		if !active {
			continue
		}
		selfFired := item.SelfTrigger.HasAnyConditions()

		st := states[item.ID]
		if err := s.applyInterest(item, st, prevDate, currDate); err != nil {
			return nil, err
		}
		if err := s.applyCashFlows(item, st, prevDate, currDate); err != nil {
			return nil, err
		}
		for _, ev := range item.Events {
			recs, err := s.applyEvent(item, ev, states, prevDate, currDate, agg)
			if err != nil {
				return nil, err
			}
			events = append(events, recs...)
		}
		if item.LiquidateSelfOnTrigger && selfFired {
			events = append(events, s.liquidate(item, item, states, currDate))
		}
	}

	// Main-savings sweep: every item's cash flow lands in the hub's value.
	main := s.cfg.MainSavings()
	sweep := decimal.Zero
	for _, st := range states {
		sweep = sweep.Add(st.CashFlow)
	}
	main.Value = main.Value.Add(sweep)

	var terminal error
	if s.cfg.FailOnOverdraw && main.Value.IsNegative() {
		events = append(events, EventRecord{
			Date:     currDate,
			Kind:     EventKindOverdraw,
			TargetID: main.ID,
			Amount:   main.Value,
			Message:  fmt.Sprintf("main savings overdrawn: %s", money.Cents(main.Value)),
		})
		s.log.Error(main.ID, main.Name, "simulation stopped: main savings overdrawn")
		s.finished = true
		terminal = ErrOverdraw
	}

	frame := s.appendFrame(currDate, states, events)
	s.log.Debug("", s.cfg.SimName, fmt.Sprintf("step %d/%d at %s", s.step, s.totalSteps, currDate))
	return frame, terminal
}

type tickAggregates struct {
	age          decimal.Decimal
	liquidAssets decimal.Decimal
	mainSavings  decimal.Decimal
}

func (s *Simulator) aggregates(simDate model.Date) tickAggregates {
	agg := tickAggregates{age: decimal.Zero}
	if !s.cfg.BirthDate.IsZero() {
		agg.age = decimal.NewFromInt(int64(simDate.YearsSince(s.cfg.BirthDate)))
	}
	for _, item := range s.items {
		if item.IsLiquidAsset && item.EnabledBySim {
			agg.liquidAssets = agg.liquidAssets.Add(item.Value)
		}
	}
	agg.mainSavings = s.cfg.MainSavings().Value
	return agg
}

// applyInterest accrues the item's interest into its value. Shares grow
// through unit price; Savings interest is taxed at the withholding rate
// before the net lands.
func (s *Simulator) applyInterest(item *model.FinancialItem, st *ItemState, prev, curr model.Date) error {
	if item.Type == model.Shares {
		if item.ShareDetails == nil {
			return nil
		}
		delta, n, err := item.Interest.Compute(prev, curr, item.ShareDetails.UnitPrice, nil)
		if err != nil {
			return fmt.Errorf("interest on %s: %w", item.ID, err)
		}
		if delta.IsZero() {
			return nil
		}
		item.ShareDetails.UnitPrice = item.ShareDetails.UnitPrice.Add(delta)
		old := item.Value
		item.SyncSharesValue()
		st.InterestAmount = item.Value.Sub(old)
		item.Interest.Schedule.RecordFires(n)
		return nil
	}

	delta, n, err := item.Interest.Compute(prev, curr, item.Value, nil)
	if err != nil {
		return fmt.Errorf("interest on %s: %w", item.ID, err)
	}
	if delta.IsZero() {
		return nil
	}
	st.InterestAmount = delta
	net := delta
	if item.Type == model.Savings {
		tax := s.withhold(delta)
		if !tax.IsZero() {
			st.TaxPaid = st.TaxPaid.Add(tax)
			s.totalTax = s.totalTax.Add(tax)
			net = delta.Sub(tax)
		}
	}
	item.Value = item.Value.Add(net)
	item.Interest.Schedule.RecordFires(n)
	return nil
}

// applyCashFlows produces the item's own cash in and cash out. Flows
// accumulate for the sweep and do not touch the item's value, except that
// cash out on a Loan or Liability with a negative balance also pays that
// balance down.
func (s *Simulator) applyCashFlows(item *model.FinancialItem, st *ItemState, prev, curr model.Date) error {
	cin, nIn, err := item.CashIn.Compute(prev, curr, item.Value, nil)
	if err != nil {
		return fmt.Errorf("cash in on %s: %w", item.ID, err)
	}
	if !cin.IsZero() {
		st.CashInAmount = cin
		net := cin
		tax := s.withhold(cin)
		if !tax.IsZero() {
			st.TaxPaid = st.TaxPaid.Add(tax)
			s.totalTax = s.totalTax.Add(tax)
			net = cin.Sub(tax)
		}
		st.CashFlow = st.CashFlow.Add(net)
		item.CashIn.Schedule.RecordFires(nIn)
	}

	cout, nOut, err := item.CashOut.Compute(prev, curr, item.Value, nil)
	if err != nil {
		return fmt.Errorf("cash out on %s: %w", item.ID, err)
	}
	if !cout.IsZero() {
		// On a debt, cash out is a principal payment: the balance moves
		// toward zero and snaps exactly to it rather than crossing sign,
		// so the loan auto-disable equality is deterministic.
		if (item.Type == model.Loan || item.Type == model.Liability) && item.Value.IsNegative() {
			payment := cout
			if item.Value.Add(payment).IsPositive() {
				payment = item.Value.Neg()
			}
			item.Value = item.Value.Add(payment)
			cout = payment
		}
		st.CashOutAmount = cout
		st.CashFlow = st.CashFlow.Sub(cout)
		item.CashOut.Schedule.RecordFires(nOut)
	}
	return nil
}

// withhold returns the flat-rate tax on a positive amount. Stubbed modes
// behave as NoTax.
func (s *Simulator) withhold(amount decimal.Decimal) decimal.Decimal {
	if s.cfg.TaxMode != model.FlatTax || !amount.IsPositive() {
		return decimal.Zero
	}
	return money.Pct(amount, s.cfg.TaxPercent)
}

// applyEvent fires one EventItem if its triggers hold, mutating source and
// target state per the operation kind.
func (s *Simulator) applyEvent(source *model.FinancialItem, ev *model.EventItem, states map[string]*ItemState, prev, curr model.Date, agg tickAggregates) ([]EventRecord, error) {
	target := ev.Target()
	if !ev.Enabled || target == nil {
		return nil, nil
	}
	targetValue := target.Value
	fired := ev.Triggers.Evaluate(model.TriggerInput{
		Items:              s.cfg.Items,
		Owner:              source,
		SimDate:            curr,
		Age:                agg.age,
		LiquidAssets:       agg.liquidAssets,
		MainSavingsBalance: agg.mainSavings,
		TargetValue:        &targetValue,
		Log:                s.log,
	})
	if !fired {
		return nil, nil
	}

	switch ev.Kind() {
	case model.EventPush:
		return s.applyPush(source, ev, target, states, prev, curr)
	case model.EventPull:
		return s.applyPull(source, ev, target, states, prev, curr)
	case model.EventLiquidate:
		return []EventRecord{s.liquidate(source, target, states, curr)}, nil
	case model.EventStateChange:
		return s.applyStateChange(ev, target, curr), nil
	}
	return nil, nil
}

// applyPush moves cash from the source's flow into the target: loan and
// liability balances move toward zero with an overpayment snap, share
// purchases buy whole units, and everything else transfers flow-to-flow
// through the sweep.
func (s *Simulator) applyPush(source *model.FinancialItem, ev *model.EventItem, target *model.FinancialItem, states map[string]*ItemState, prev, curr model.Date) ([]EventRecord, error) {
	delta, n, err := ev.CashOut.Compute(prev, curr, source.Value, &target.Value)
	if err != nil {
		return nil, fmt.Errorf("event %s push: %w", ev.ID, err)
	}
	if delta.IsZero() {
		return nil, nil
	}
	srcState := states[source.ID]

	switch target.Type {
	case model.Loan, model.Liability:
		// Balance is negative debt; payments snap to exactly zero rather
		// than crossing the sign.
		if target.Value.Add(delta).IsPositive() {
			delta = target.Value.Neg()
		}
		if delta.IsZero() {
			return nil, nil
		}
		target.Value = target.Value.Add(delta)
		srcState.CashFlow = srcState.CashFlow.Sub(delta)
	case model.Shares:
		units := delta.Div(target.ShareDetails.UnitPrice).Floor()
		if !units.IsPositive() {
			return nil, nil
		}
		cost := units.Mul(target.ShareDetails.UnitPrice)
		target.ShareDetails.UnitCount = target.ShareDetails.UnitCount.Add(units)
		target.ShareDetails.TotalCostBase = target.ShareDetails.TotalCostBase.Add(cost)
		target.SyncSharesValue()
		// The leftover below one unit stays in the source's flow.
		srcState.CashFlow = srcState.CashFlow.Sub(cost)
		delta = cost
	default:
		srcState.CashFlow = srcState.CashFlow.Sub(delta)
		states[target.ID].CashFlow = states[target.ID].CashFlow.Add(delta)
	}
	ev.CashOut.Schedule.RecordFires(n)
	return []EventRecord{{
		Date: curr, Kind: EventKindTransfer, SourceID: source.ID, TargetID: target.ID, Amount: delta,
		Message: fmt.Sprintf("%s pushed %s to %s", source.Name, money.Cents(delta), target.Name),
	}}, nil
}

// applyPull is the symmetric transfer in: share sales sell whole units
// capped at the holding, debts redraw away from zero, and everything else
// transfers flow-to-flow.
func (s *Simulator) applyPull(source *model.FinancialItem, ev *model.EventItem, target *model.FinancialItem, states map[string]*ItemState, prev, curr model.Date) ([]EventRecord, error) {
	delta, n, err := ev.CashIn.Compute(prev, curr, source.Value, &target.Value)
	if err != nil {
		return nil, fmt.Errorf("event %s pull: %w", ev.ID, err)
	}
	if delta.IsZero() {
		return nil, nil
	}
	srcState := states[source.ID]

	switch target.Type {
	case model.Shares:
		units := delta.Div(target.ShareDetails.UnitPrice).Ceil()
		if units.GreaterThan(target.ShareDetails.UnitCount) {
			units = target.ShareDetails.UnitCount
		}
		if !units.IsPositive() {
			return nil, nil
		}
		proceeds := units.Mul(target.ShareDetails.UnitPrice)
		target.ShareDetails.UnitCount = target.ShareDetails.UnitCount.Sub(units)
		target.SyncSharesValue()
		srcState.CashFlow = srcState.CashFlow.Add(proceeds)
		delta = proceeds
	case model.Loan, model.Liability:
		target.Value = target.Value.Sub(delta)
		srcState.CashFlow = srcState.CashFlow.Add(delta)
	default:
		srcState.CashFlow = srcState.CashFlow.Add(delta)
		states[target.ID].CashFlow = states[target.ID].CashFlow.Sub(delta)
	}
	ev.CashIn.Schedule.RecordFires(n)
	return []EventRecord{{
		Date: curr, Kind: EventKindTransfer, SourceID: target.ID, TargetID: source.ID, Amount: delta,
		Message: fmt.Sprintf("%s pulled %s from %s", source.Name, money.Cents(delta), target.Name),
	}}, nil
}

// liquidate moves the target's full value into main savings through its
// cash flow and disables it.
func (s *Simulator) liquidate(source, target *model.FinancialItem, states map[string]*ItemState, curr model.Date) EventRecord {
	amount := target.Value
	states[target.ID].CashFlow = states[target.ID].CashFlow.Add(amount)
	target.Value = decimal.Zero
	if target.Type == model.Shares && target.ShareDetails != nil {
		target.ShareDetails.UnitCount = decimal.Zero
	}
	target.EnabledBySim = false
	s.log.Info(target.ID, target.Name, fmt.Sprintf("liquidated for %s", money.Cents(amount)))
	return EventRecord{
		Date: curr, Kind: EventKindLiquidate, SourceID: source.ID, TargetID: target.ID, Amount: amount,
		Message: fmt.Sprintf("%s liquidated for %s", target.Name, money.Cents(amount)),
	}
}

func (s *Simulator) applyStateChange(ev *model.EventItem, target *model.FinancialItem, curr model.Date) []EventRecord {
	before := target.EnabledBySim
	switch ev.TargetStateAction {
	case model.ActionEnable:
		target.EnabledBySim = true
	case model.ActionDisable:
		target.EnabledBySim = false
	case model.ActionToggle:
		target.EnabledBySim = !target.EnabledBySim
	}
	if before == target.EnabledBySim {
		return nil
	}
	return []EventRecord{{
		Date: curr, Kind: EventKindStateChange, SourceID: ev.ID, TargetID: target.ID,
		Message: fmt.Sprintf("%s set %s enabled=%t", ev.Name, target.Name, target.EnabledBySim),
	}}
}

// appendFrame snapshots all item state in eval order into an immutable
// frame.
func (s *Simulator) appendFrame(date model.Date, states map[string]*ItemState, events []EventRecord) *Frame {
	frame := &Frame{
		FrameDate:    date,
		TotalTaxPaid: s.totalTax,
		Events:       events,
	}
	for _, item := range s.items {
		st := ItemState{ID: item.ID, Name: item.Name}
		if states != nil {
			if acc, ok := states[item.ID]; ok {
				st = *acc
			}
		}
		st.Value = item.Value
		st.EnabledBySim = item.EnabledBySim
		frame.Items = append(frame.Items, st)
	}
	s.frames = append(s.frames, frame)
	return frame
}
