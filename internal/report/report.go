// Package report computes summary statistics over an emitted frame
// sequence. It consumes the immutable frames only; the simulation core does
// not format output.
package report

import (
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/jacob-jarick/Falculator/internal/sim"
)

// Summary aggregates one run.
type Summary struct {
	Frames           int             `json:"frames"`
	FinalNetWorth    decimal.Decimal `json:"final_net_worth"`
	FinalMainSavings decimal.Decimal `json:"final_main_savings"`
	TotalTaxPaid     decimal.Decimal `json:"total_tax_paid"`
	EventCount       int             `json:"event_count"`
	Overdrawn        bool            `json:"overdrawn"`

	// Main-savings balance statistics across frames. Computed in float64;
	// these are descriptive only, never fed back into simulation state.
	MainSavingsMean   float64 `json:"main_savings_mean"`
	MainSavingsStdDev float64 `json:"main_savings_std_dev"`
	MainSavingsMin    float64 `json:"main_savings_min"`
	MainSavingsMax    float64 `json:"main_savings_max"`
	MaxDrawdown       float64 `json:"max_drawdown"`
}

// Summarize folds a frame history. The main savings item is identified by
// id so callers pass it from the simulator's config.
func Summarize(frames []*sim.Frame, mainSavingsID string) Summary {
	s := Summary{Frames: len(frames)}
	if len(frames) == 0 {
		return s
	}

	series := make([]float64, 0, len(frames))
	for _, f := range frames {
		if st := f.ItemState(mainSavingsID); st != nil {
			series = append(series, st.Value.InexactFloat64())
		}
		s.EventCount += len(f.Events)
		if f.HasOverdraw() {
			s.Overdrawn = true
		}
	}

	last := frames[len(frames)-1]
	s.TotalTaxPaid = last.TotalTaxPaid
	for _, st := range last.Items {
		s.FinalNetWorth = s.FinalNetWorth.Add(st.Value)
	}
	if st := last.ItemState(mainSavingsID); st != nil {
		s.FinalMainSavings = st.Value
	}

	if len(series) > 0 {
		s.MainSavingsMean = stat.Mean(series, nil)
		s.MainSavingsStdDev = stat.StdDev(series, nil)
		s.MainSavingsMin, s.MainSavingsMax = minMax(series)
		s.MaxDrawdown = maxDrawdown(series)
	}
	return s
}

func minMax(series []float64) (float64, float64) {
	min, max := series[0], series[0]
	for _, v := range series[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// maxDrawdown is the largest peak-to-trough drop in the series.
func maxDrawdown(series []float64) float64 {
	peak := series[0]
	dd := 0.0
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if drop := peak - v; drop > dd {
			dd = drop
		}
	}
	return dd
}
