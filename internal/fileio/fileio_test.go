package fileio

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jacob-jarick/Falculator/internal/logging"
	"github.com/jacob-jarick/Falculator/internal/model"
)

func TestLoadMissingFileYieldsDefault(t *testing.T) {
	cfg, rep, err := Load(filepath.Join(t.TempDir(), "nope.json"), logging.NewNop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MainSavings() == nil {
		t.Fatal("default config has no main savings")
	}
	if rep == nil {
		t.Fatal("no report returned")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := &model.Config{
		Version:       model.CurrentVersion,
		SimName:       "round trip",
		BirthDate:     model.NewDate(1985, time.April, 2),
		YearsToSim:    5,
		StepIncrement: model.Fortnightly,
		StartDate:     model.NewDate(2025, time.January, 6),
		EndOfFY:       model.NewDate(2025, time.June, 30),
		TaxMode:       model.FlatTax,
		TaxPercent:    decimal.RequireFromString("32.5"),
		Items: []*model.FinancialItem{
			{
				ID:            "mainsave",
				Name:          "Main Savings",
				Type:          model.Savings,
				Value:         decimal.RequireFromString("2500.75"),
				StartEnabled:  true,
				IsMainSavings: true,
				IsLiquidAsset: true,
				EndDate:       model.Today().AddYears(100),
				Interest:      model.AmountFreq{IsPercentage: true, Schedule: model.MonthlyLastDay()},
			},
			{
				ID:           "salaryxx",
				Name:         "Salary",
				Type:         model.Income,
				StartEnabled: true,
				EvalOrder:    1,
				Tags:         []string{"work"},
				CashIn: model.AmountFreq{
					Enabled:  true,
					Amount:   decimal.NewFromInt(2000),
					Schedule: model.AmountSchedule{Frequency: model.Fortnightly},
				},
			},
		},
		MainSavingsIdx: -1,
	}

	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(cfg, path, logging.NewNop()); err != nil {
		t.Fatalf("save: %v", err)
	}

	back, rep, err := Load(path, logging.NewNop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Save already sanitized, so loading its output corrects nothing.
	if len(rep.Corrections) != 0 {
		t.Errorf("load of saved config produced corrections: %v", rep.Corrections)
	}
	if back.SimName != "round trip" || back.StepIncrement != model.Fortnightly || back.TaxMode != model.FlatTax {
		t.Errorf("top-level fields lost: %+v", back)
	}
	if !back.TaxPercent.Equal(decimal.RequireFromString("32.5")) {
		t.Errorf("tax percent = %s, want 32.5", back.TaxPercent)
	}
	salary := back.ItemByID("salaryxx")
	if salary == nil {
		t.Fatal("salary item lost")
	}
	if !salary.CashIn.Amount.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("salary amount = %s", salary.CashIn.Amount)
	}
	if back.MainSavings() == nil || back.MainSavings().ID != "mainsave" {
		t.Error("main savings identity lost")
	}
}
