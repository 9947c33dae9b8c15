package sim

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jacob-jarick/Falculator/internal/logging"
	"github.com/jacob-jarick/Falculator/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decClose(t *testing.T, got, want decimal.Decimal, tolerance, what string) {
	t.Helper()
	if got.Sub(want).Abs().GreaterThan(dec(tolerance)) {
		t.Errorf("%s = %s, want %s (tolerance %s)", what, got, want, tolerance)
	}
}

func baseConfig(items ...*model.FinancialItem) *model.Config {
	return &model.Config{
		Version:        model.CurrentVersion,
		SimName:        "sim test",
		BirthDate:      model.NewDate(1990, time.January, 1),
		YearsToSim:     1,
		StepIncrement:  model.Monthly,
		StartDate:      model.NewDate(2025, time.January, 1),
		EndOfFY:        model.NewDate(2025, time.June, 30),
		Items:          items,
		MainSavingsIdx: -1,
		LogLevel:       logging.LevelError,
	}
}

func mainSavings(value string) *model.FinancialItem {
	return &model.FinancialItem{
		ID:            "mainsave",
		Name:          "Main Savings",
		Type:          model.Savings,
		Value:         dec(value),
		StartEnabled:  true,
		IsMainSavings: true,
		IsLiquidAsset: true,
		EndDate:       model.Today().AddYears(100),
		Interest:      model.AmountFreq{IsPercentage: true, Schedule: model.MonthlyLastDay()},
		SelfTrigger:   model.TriggerConditions{TriggerMatchValue: true},
	}
}

func monthlyFixed(amount string, day int) model.AmountFreq {
	return model.AmountFreq{
		Enabled:  true,
		Amount:   dec(amount),
		Schedule: model.AmountSchedule{Frequency: model.Monthly, DayOfMonth: day},
	}
}

func run(t *testing.T, cfg *model.Config) (*Simulator, []*Frame, error) {
	t.Helper()
	s, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	frames, runErr := s.Run()
	return s, frames, runErr
}

// A 5% savings account compounding monthly lands at 10511.62 after a year.
func TestCompoundInterestSanity(t *testing.T) {
	ms := mainSavings("10000")
	ms.Interest = model.AmountFreq{
		Enabled:                      true,
		Amount:                       dec("5.0"),
		IsPercentage:                 true,
		AnnualRateMonthlyCompounding: true,
		Schedule:                     model.MonthlyLastDay(),
	}
	cfg := baseConfig(ms)

	s, frames, err := run(t, cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(frames) != 13 {
		t.Fatalf("frames = %d, want 13 (initial + 12 ticks)", len(frames))
	}
	final := frames[len(frames)-1].ItemState(s.Config().MainSavings().ID)
	decClose(t, final.Value, dec("10511.62"), "0.01", "final savings value")
}

// A loan paid down past its balance snaps to exactly zero, disables, and
// stays frozen.
func TestLoanPayoffDisables(t *testing.T) {
	loan := &model.FinancialItem{
		ID:        "loanloan",
		Name:      "Loan",
		Type:      model.Loan,
		Value:     dec("-10000"),
		EvalOrder: 1,
		Interest: model.AmountFreq{
			Enabled:                      true,
			Amount:                       dec("6.5"),
			IsPercentage:                 true,
			AnnualRateMonthlyCompounding: true,
			Schedule:                     model.MonthlyLastDay(),
		},
		CashOut:     monthlyFixed("500", 1),
		SelfTrigger: model.TriggerConditions{TriggerMatchValue: true},
	}
	cfg := baseConfig(mainSavings("50000"), loan)
	cfg.YearsToSim = 3

	s, frames, err := run(t, cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	loanID := s.Config().ItemByID("loanloan").ID

	payoff := -1
	for i, f := range frames {
		st := f.ItemState(loanID)
		if st.Value.IsZero() && !st.EnabledBySim {
			payoff = i
			break
		}
	}
	if payoff < 0 {
		t.Fatal("loan never paid off and disabled")
	}
	if payoff >= len(frames)-1 {
		t.Fatal("payoff only at final frame; extend the run")
	}
	for _, f := range frames[payoff:] {
		st := f.ItemState(loanID)
		if !st.Value.IsZero() {
			t.Errorf("loan value %s after payoff at frame %s", st.Value, f.FrameDate)
		}
		if st.EnabledBySim {
			t.Errorf("loan re-enabled at frame %s", f.FrameDate)
		}
	}
}

// Pushing $1000 at $95.50 a share buys 10 whole units; the $45 remainder
// stays in the source's cash flow.
func TestSharesPushBuysWholeUnits(t *testing.T) {
	shares := &model.FinancialItem{
		ID: "sharesxx", Name: "Shares", Type: model.Shares, EvalOrder: 2,
		StartEnabled: true,
		ShareDetails: &model.ShareDetails{UnitPrice: dec("95.50")},
		SelfTrigger:  model.TriggerConditions{TriggerMatchValue: true},
	}
	salary := &model.FinancialItem{
		ID: "salaryxx", Name: "Salary", Type: model.Income, EvalOrder: 1,
		StartEnabled: true,
		CashIn:       monthlyFixed("1000", 1),
		Events: []*model.EventItem{{
			ID: "buyshare", Name: "buy shares", Enabled: true, TargetID: "sharesxx",
			CashOut:  monthlyFixed("1000", 1),
			Triggers: model.TriggerConditions{TriggerMatchValue: true, StartDate: model.NewDate(2025, time.January, 1)},
		}},
		SelfTrigger: model.TriggerConditions{TriggerMatchValue: true},
	}
	cfg := baseConfig(mainSavings("0"), salary, shares)

	s, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	frame, err := s.Tick()
	if err != nil {
		t.Fatalf("tick: %v", err)
	}

	sh := s.Config().ItemByID("sharesxx")
	if !sh.ShareDetails.UnitCount.Equal(dec("10")) {
		t.Errorf("unit count = %s, want 10", sh.ShareDetails.UnitCount)
	}
	decClose(t, sh.Value, dec("955"), "0", "shares value")
	decClose(t, sh.ShareDetails.TotalCostBase, dec("955"), "0", "cost base")

	// Salary flow: 1000 in, 955 to shares; 45 sweeps to main savings.
	sal := frame.ItemState("salaryxx")
	decClose(t, sal.CashFlow, dec("45"), "0", "salary cash flow")
	decClose(t, s.Config().MainSavings().Value, dec("45"), "0", "main savings after sweep")

	if len(frame.Events) != 1 || frame.Events[0].Kind != EventKindTransfer {
		t.Fatalf("events = %+v, want one transfer", frame.Events)
	}
	decClose(t, frame.Events[0].Amount, dec("955"), "0", "transfer amount")
}

// Pulling from a holding sells whole units, capped at the position.
func TestSharesPullSellsWholeUnits(t *testing.T) {
	shares := &model.FinancialItem{
		ID: "sharesxx", Name: "Shares", Type: model.Shares, EvalOrder: 2,
		StartEnabled: true,
		ShareDetails: &model.ShareDetails{UnitCount: dec("10"), UnitPrice: dec("95.50")},
		SelfTrigger:  model.TriggerConditions{TriggerMatchValue: true},
	}
	drawer := &model.FinancialItem{
		ID: "drawerxx", Name: "Drawdown", Type: model.Income, EvalOrder: 1,
		StartEnabled: true,
		Events: []*model.EventItem{{
			ID: "sellshrs", Name: "sell shares", Enabled: true, TargetID: "sharesxx",
			CashIn:   monthlyFixed("300", 1),
			Triggers: model.TriggerConditions{TriggerMatchValue: true, StartDate: model.NewDate(2025, time.January, 1)},
		}},
		SelfTrigger: model.TriggerConditions{TriggerMatchValue: true},
	}
	cfg := baseConfig(mainSavings("0"), drawer, shares)

	s, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	if _, err := s.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}

	sh := s.Config().ItemByID("sharesxx")
	// ceil(300 / 95.50) = 4 units sold for 382.
	if !sh.ShareDetails.UnitCount.Equal(dec("6")) {
		t.Errorf("unit count = %s, want 6", sh.ShareDetails.UnitCount)
	}
	decClose(t, s.Config().MainSavings().Value, dec("382"), "0", "main savings after sale sweep")
}

// Three tagged items flip on; the watcher's All-predicate activates it on
// the following tick.
func TestTagPredicateActivation(t *testing.T) {
	prop := func(id string, order int) *model.FinancialItem {
		return &model.FinancialItem{
			ID: id, Name: id, Type: model.Asset, EvalOrder: order,
			Tags:         []string{"property"},
			StartEnabled: false,
			SelfTrigger:  model.TriggerConditions{TriggerMatchValue: true},
		}
	}
	p1, p2, p3 := prop("property", 2), prop("prop0002", 3), prop("prop0003", 4)

	watcher := &model.FinancialItem{
		ID: "watcherx", Name: "Watcher", Type: model.Expense, EvalOrder: 1,
		StartEnabled: false,
		SelfTrigger: model.TriggerConditions{
			TriggerMatchType:  model.MatchAll,
			TriggerMatchValue: true,
			TagRules: []model.TagPredicate{
				{Enabled: true, Tags: []string{"property"}, MatchType: model.MatchAll, MatchValue: true},
			},
		},
	}

	enableAt := model.NewDate(2025, time.March, 1)
	var enableEvents []*model.EventItem
	for i, id := range []string{"property", "prop0002", "prop0003"} {
		enableEvents = append(enableEvents, &model.EventItem{
			ID: "enable0" + string(rune('1'+i)), Name: "enable " + id, Enabled: true, TargetID: id,
			SetStateOnTrigger: true,
			TargetStateAction: model.ActionEnable,
			Triggers:          model.TriggerConditions{TriggerMatchValue: true, StartDate: enableAt},
		})
	}
	controller := &model.FinancialItem{
		ID: "controlx", Name: "Controller", Type: model.Income, EvalOrder: 5,
		StartEnabled: true,
		Events:       enableEvents,
		SelfTrigger:  model.TriggerConditions{TriggerMatchValue: true},
	}

	cfg := baseConfig(mainSavings("1000"), watcher, p1, p2, p3, controller)
	_, frames, err := run(t, cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	stateAt := func(date model.Date) bool {
		for _, f := range frames {
			if f.FrameDate.Equal(date) {
				return f.ItemState("watcherx").EnabledBySim
			}
		}
		t.Fatalf("no frame at %s", date)
		return false
	}
	if stateAt(model.NewDate(2025, time.February, 1)) {
		t.Error("watcher active before properties enabled")
	}
	// The controller enables the properties during the March tick, after the
	// watcher already evaluated: the watcher flips on one tick later.
	if stateAt(model.NewDate(2025, time.March, 1)) {
		t.Error("watcher active on the same tick the properties enabled")
	}
	if !stateAt(model.NewDate(2025, time.April, 1)) {
		t.Error("watcher not active the tick after all properties enabled")
	}
}

// fail_on_overdraw stops the run at the first negative main savings.
func TestOverdrawTermination(t *testing.T) {
	rent := &model.FinancialItem{
		ID: "rentrent", Name: "Rent", Type: model.Expense, EvalOrder: 1,
		StartEnabled: true,
		CashOut:      monthlyFixed("200", 1),
		SelfTrigger:  model.TriggerConditions{TriggerMatchValue: true},
	}
	cfg := baseConfig(mainSavings("300"), rent)
	cfg.FailOnOverdraw = true

	_, frames, err := run(t, cfg)
	if !errors.Is(err, ErrOverdraw) {
		t.Fatalf("run err = %v, want ErrOverdraw", err)
	}
	// 300 - 200 - 200 goes negative on the second tick.
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3 (initial + 2 ticks)", len(frames))
	}
	last := frames[len(frames)-1]
	if !last.HasOverdraw() {
		t.Error("terminal frame missing overdraw event")
	}
	decClose(t, last.ItemState("mainsave").Value, dec("-100"), "0", "overdrawn balance")
}

// The sweep moves exactly the sum of per-item cash flows into main savings.
func TestCashConservation(t *testing.T) {
	income := &model.FinancialItem{
		ID: "incomexx", Name: "Income", Type: model.Income, EvalOrder: 1,
		StartEnabled: true,
		CashIn:       monthlyFixed("300", 1),
		SelfTrigger:  model.TriggerConditions{TriggerMatchValue: true},
	}
	expense := &model.FinancialItem{
		ID: "expensex", Name: "Expense", Type: model.Expense, EvalOrder: 2,
		StartEnabled: true,
		CashOut:      monthlyFixed("100", 1),
		SelfTrigger:  model.TriggerConditions{TriggerMatchValue: true},
	}
	cfg := baseConfig(mainSavings("1000"), income, expense)

	_, frames, err := run(t, cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	prev := dec("1000")
	for _, f := range frames[1:] {
		flowSum := decimal.Zero
		for _, st := range f.Items {
			flowSum = flowSum.Add(st.CashFlow)
		}
		got := f.ItemState("mainsave").Value
		decClose(t, got.Sub(prev), flowSum, "0", "sweep delta at "+f.FrameDate.String())
		prev = got
	}
	decClose(t, prev, dec("3400"), "0", "final balance")
}

// Flat tax withholds on savings interest and on every cash in.
func TestFlatTaxWithholding(t *testing.T) {
	ms := mainSavings("1000")
	ms.Interest = model.AmountFreq{
		Enabled:                      true,
		Amount:                       dec("12"),
		IsPercentage:                 true,
		AnnualRateMonthlyCompounding: true,
		Schedule:                     model.MonthlyLastDay(),
	}
	income := &model.FinancialItem{
		ID: "incomexx", Name: "Income", Type: model.Income, EvalOrder: 1,
		StartEnabled: true,
		CashIn:       monthlyFixed("100", 1),
		SelfTrigger:  model.TriggerConditions{TriggerMatchValue: true},
	}
	cfg := baseConfig(ms, income)
	cfg.TaxMode = model.FlatTax
	cfg.TaxPercent = dec("50")

	s, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	frame, err := s.Tick()
	if err != nil {
		t.Fatalf("tick: %v", err)
	}

	// Interest: 1% of 1000 = 10 gross, 5 net after 50% withholding.
	msState := frame.ItemState("mainsave")
	decClose(t, msState.InterestAmount, dec("10"), "0.000001", "gross interest")
	decClose(t, msState.TaxPaid, dec("5"), "0.000001", "interest tax")

	// Cash in: 100 gross, 50 withheld, 50 swept.
	inState := frame.ItemState("incomexx")
	decClose(t, inState.TaxPaid, dec("50"), "0", "cash-in tax")
	decClose(t, inState.CashFlow, dec("50"), "0", "net cash flow")

	decClose(t, frame.TotalTaxPaid, dec("55"), "0.000001", "frame tax total")
	// 1000 + 5 net interest + 50 net sweep.
	decClose(t, s.Config().MainSavings().Value, dec("1055"), "0.000001", "main savings")
}

// Liquidation moves the target's full value into main savings and disables
// it.
func TestLiquidateEvent(t *testing.T) {
	boat := &model.FinancialItem{
		ID: "boatboat", Name: "Boat", Type: model.Asset, EvalOrder: 2,
		StartEnabled: true,
		Value:        dec("5000"),
		SelfTrigger:  model.TriggerConditions{TriggerMatchValue: true},
	}
	seller := &model.FinancialItem{
		ID: "sellerxx", Name: "Seller", Type: model.Income, EvalOrder: 1,
		StartEnabled: true,
		Events: []*model.EventItem{{
			ID: "sellboat", Name: "sell boat", Enabled: true, TargetID: "boatboat",
			Liquidate: true,
			Triggers:  model.TriggerConditions{TriggerMatchValue: true, StartDate: model.NewDate(2025, time.February, 1)},
		}},
		SelfTrigger: model.TriggerConditions{TriggerMatchValue: true},
	}
	cfg := baseConfig(mainSavings("0"), seller, boat)

	s, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	frame, err := s.Tick()
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(frame.Events) != 1 || frame.Events[0].Kind != EventKindLiquidate {
		t.Fatalf("events = %+v, want one liquidation", frame.Events)
	}
	b := s.Config().ItemByID("boatboat")
	if !b.Value.IsZero() || b.EnabledBySim {
		t.Errorf("boat not liquidated: value=%s enabled=%t", b.Value, b.EnabledBySim)
	}
	decClose(t, s.Config().MainSavings().Value, dec("5000"), "0", "main savings after liquidation")
}

// Identical configs yield bit-identical frame histories.
func TestDeterministicReplay(t *testing.T) {
	build := func() *model.Config {
		loan := &model.FinancialItem{
			ID: "loanloan", Name: "Loan", Type: model.Loan, EvalOrder: 1,
			Value: dec("-5000"),
			Interest: model.AmountFreq{
				Enabled: true, Amount: dec("6.5"), IsPercentage: true,
				AnnualRateMonthlyCompounding: true, Schedule: model.MonthlyLastDay(),
			},
			CashOut:     monthlyFixed("250", 1),
			SelfTrigger: model.TriggerConditions{TriggerMatchValue: true},
		}
		return baseConfig(mainSavings("20000"), loan)
	}
	_, framesA, errA := run(t, build())
	_, framesB, errB := run(t, build())
	if errA != nil || errB != nil {
		t.Fatalf("runs failed: %v / %v", errA, errB)
	}
	a, _ := json.Marshal(framesA)
	b, _ := json.Marshal(framesB)
	if string(a) != string(b) {
		t.Error("replay produced different frame histories")
	}
}

// A schedule trigger limit caps total fires across the whole run.
func TestScheduleTriggerLimitHonored(t *testing.T) {
	bonus := &model.FinancialItem{
		ID: "bonusxxx", Name: "Bonus", Type: model.Income, EvalOrder: 1,
		StartEnabled: true,
		CashIn: model.AmountFreq{
			Enabled: true,
			Amount:  dec("100"),
			Schedule: model.AmountSchedule{
				Frequency: model.Monthly, DayOfMonth: 1, TriggerLimit: 3,
			},
		},
		SelfTrigger: model.TriggerConditions{TriggerMatchValue: true},
	}
	cfg := baseConfig(mainSavings("0"), bonus)

	s, frames, err := run(t, cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	decClose(t, frames[len(frames)-1].ItemState("mainsave").Value, dec("300"), "0", "capped total")
	if got := s.Config().ItemByID("bonusxxx").CashIn.Schedule.TriggerCount; got != 3 {
		t.Errorf("trigger count = %d, want 3", got)
	}
}

// Cancellation between ticks ends the run cleanly with the history so far.
func TestCancellation(t *testing.T) {
	cfg := baseConfig(mainSavings("1000"))
	s, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	if _, err := s.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	s.Cancel()
	frames, runErr := s.Run()
	if !errors.Is(runErr, ErrCancelled) {
		t.Fatalf("run err = %v, want ErrCancelled", runErr)
	}
	if len(frames) != 2 {
		t.Errorf("frames = %d, want 2 (initial + one tick)", len(frames))
	}
	step, total := s.Progress()
	if step != 1 || total != 12 {
		t.Errorf("progress = %d/%d, want 1/12", step, total)
	}
}

// A credit card is always enabled and its balance never goes negative.
func TestCreditCardAlwaysEnabled(t *testing.T) {
	card := &model.FinancialItem{
		ID: "cardcard", Name: "Card", Type: model.CreditCard, EvalOrder: 1,
		Value: dec("500"),
		Interest: model.AmountFreq{
			Enabled: true, Amount: dec("19.9"), IsPercentage: true,
			AnnualRateMonthlyCompounding: true, Schedule: model.MonthlyLastDay(),
		},
	}
	cfg := baseConfig(mainSavings("1000"), card)
	_, frames, err := run(t, cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, f := range frames {
		st := f.ItemState("cardcard")
		if !st.EnabledBySim {
			t.Errorf("card disabled at %s", f.FrameDate)
		}
		if st.Value.IsNegative() {
			t.Errorf("card balance %s negative at %s", st.Value, f.FrameDate)
		}
	}
}

// Shares value stays exactly unit_count x unit_price through interest
// growth.
func TestSharesIdentityThroughGrowth(t *testing.T) {
	shares := &model.FinancialItem{
		ID: "sharesxx", Name: "Shares", Type: model.Shares, EvalOrder: 1,
		StartEnabled: true,
		ShareDetails: &model.ShareDetails{UnitCount: dec("100"), UnitPrice: dec("10")},
		Interest: model.AmountFreq{
			Enabled: true, Amount: dec("8"), IsPercentage: true,
			Schedule: model.MonthlyLastDay(),
		},
		SelfTrigger: model.TriggerConditions{TriggerMatchValue: true},
	}
	cfg := baseConfig(mainSavings("0"), shares)
	s, frames, err := run(t, cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(frames) != 13 {
		t.Fatalf("frames = %d, want 13", len(frames))
	}
	sh := s.Config().ItemByID("sharesxx")
	if !sh.Value.Equal(sh.ShareDetails.UnitCount.Mul(sh.ShareDetails.UnitPrice)) {
		t.Errorf("value %s != units %s x price %s", sh.Value, sh.ShareDetails.UnitCount, sh.ShareDetails.UnitPrice)
	}
	if !sh.ShareDetails.UnitPrice.GreaterThan(dec("10")) {
		t.Error("unit price did not grow")
	}
}

// An item self-liquidates when its trigger fires with
// liquidate_self_on_trigger set.
func TestLiquidateSelfOnTrigger(t *testing.T) {
	nest := &model.FinancialItem{
		ID: "nesteggx", Name: "Nest Egg", Type: model.Asset, EvalOrder: 1,
		StartEnabled:           true,
		Value:                  dec("2500"),
		LiquidateSelfOnTrigger: true,
		SelfTrigger: model.TriggerConditions{
			TriggerMatchValue: true,
			StartDate:         model.NewDate(2025, time.March, 1),
		},
	}
	cfg := baseConfig(mainSavings("0"), nest)
	s, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	// February: trigger not yet in range, nothing happens.
	if _, err := s.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !s.Config().ItemByID("nesteggx").Value.Equal(dec("2500")) {
		t.Fatal("liquidated before trigger date")
	}
	// March: trigger fires and the item liquidates itself.
	frame, err := s.Tick()
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !s.Config().ItemByID("nesteggx").Value.IsZero() {
		t.Error("item not liquidated on trigger")
	}
	decClose(t, s.Config().MainSavings().Value, dec("2500"), "0", "main savings after self liquidation")
	if len(frame.Events) != 1 || frame.Events[0].Kind != EventKindLiquidate {
		t.Errorf("events = %+v, want one liquidation", frame.Events)
	}
}
