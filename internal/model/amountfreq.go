package model

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jacob-jarick/Falculator/internal/logging"
	"github.com/jacob-jarick/Falculator/internal/money"
)

// AmountFreq is a recurring monetary delta: an amount (fixed or percentage)
// applied on every fire of its embedded schedule.
type AmountFreq struct {
	Enabled                      bool            `json:"enabled"`
	Amount                       decimal.Decimal `json:"amount"`
	IsPercentage                 bool            `json:"is_percentage"`
	PercentageBasis              PercentageBasis `json:"percentage_basis"`
	AnnualRateMonthlyCompounding bool            `json:"annual_rate_monthly_compounding"`
	Schedule                     AmountSchedule  `json:"schedule"`
}

// Compute returns the signed delta this spec produces over (prev, curr] and
// the number of schedule fires consumed. dest is the destination balance for
// Destination-basis event transfers; nil everywhere else.
func (f *AmountFreq) Compute(prev, curr Date, source decimal.Decimal, dest *decimal.Decimal) (decimal.Decimal, int, error) {
	if !f.Enabled || f.Amount.IsZero() {
		return decimal.Zero, 0, nil
	}
	n := f.Schedule.Occurrences(prev, curr)
	if n == 0 {
		return decimal.Zero, 0, nil
	}
	if !f.IsPercentage {
		return f.Amount.Mul(decimal.NewFromInt(int64(n))), n, nil
	}
	basis := source
	if f.PercentageBasis == BasisDestination && dest != nil {
		basis = *dest
	}
	exp := decimal.NewFromInt(int64(n))
	rate := f.Amount
	if f.AnnualRateMonthlyCompounding {
		// Nominal annual rate billed monthly: each fire applies rate/12, so
		// a 5% account lands at (1 + 0.05/12)^12 after a year.
		rate = rate.Div(money.Twelve)
	}
	delta, err := money.CompoundDelta(basis, rate, exp)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("compound delta: %w", err)
	}
	return delta, n, nil
}

// sanitize enforces the structural invariants shared by every AmountFreq.
// allowDestination is true only for EventItem transfer specs.
func (f *AmountFreq) sanitize(rep *Report, log *logging.Logger, ownerID, ownerName, slot string, allowDestination bool) {
	if !allowDestination && f.PercentageBasis == BasisDestination {
		rep.correct("AmountFreq", ownerID, slot+".percentage_basis", f.PercentageBasis.String(), BasisSource.String(),
			"destination basis is only legal on event transfers")
		log.Warn(ownerID, ownerName, "percentage basis reset to Source")
		f.PercentageBasis = BasisSource
	}
	if f.IsPercentage && f.Amount.LessThanOrEqual(money.Hundred.Neg()) {
		rep.correct("AmountFreq", ownerID, slot+".amount", f.Amount.String(), "-99.99",
			"percentage amounts at or below -100% have no positive growth factor")
		f.Amount = money.Hundred.Neg().Add(money.FromString("0.01"))
	}
	if f.AnnualRateMonthlyCompounding {
		if !f.IsPercentage {
			rep.correct("AmountFreq", ownerID, slot+".is_percentage", "false", "true",
				"annualized monthly compounding implies a percentage amount")
			f.IsPercentage = true
		}
		want := MonthlyLastDay()
		if f.Schedule.Frequency != Monthly || f.Schedule.DayOfMonth != 31 || f.Schedule.MonthOfYear != nil {
			rep.correct("AmountFreq", ownerID, slot+".schedule",
				f.Schedule.Frequency.String(), "Monthly/31",
				"annualized monthly compounding fixes the schedule to month end")
			want.TriggerLimit = f.Schedule.TriggerLimit
			want.TriggerCount = f.Schedule.TriggerCount
			f.Schedule = want
		}
	}
	f.Schedule.sanitize(rep, log, ownerID, ownerName)
}
