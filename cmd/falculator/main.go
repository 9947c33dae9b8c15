// Command falculator loads a portfolio config, sanitizes it, and runs the
// deterministic simulation, printing a run summary. The GUI, exporters, and
// wizard surfaces live elsewhere; this binary is the core's CLI boundary.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jacob-jarick/Falculator/internal/fileio"
	"github.com/jacob-jarick/Falculator/internal/logging"
	"github.com/jacob-jarick/Falculator/internal/model"
	"github.com/jacob-jarick/Falculator/internal/report"
	"github.com/jacob-jarick/Falculator/internal/sim"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "falculator:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:           "falculator",
		Short:         "Deterministic discrete-time financial simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "path to the config JSON document")
	flags.Bool("run", false, "run the simulation")
	flags.String("loglevel", "", "log level override: Debug, Info, Warn, Error")
	flags.String("savepath", "", "directory to write the sanitized config and results into")
	flags.Int("years-override", 0, "override years_to_sim for this run")
	flags.Bool("sanitize-config", false, "sanitize the config, print the correction diff, and save it back")
	flags.Bool("generate-schemas", false, "print the entity schemas as JSON and exit")

	v.SetEnvPrefix("FALCULATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, name := range []string{"config", "run", "loglevel", "savepath", "years-override", "sanitize-config", "generate-schemas"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func run(v *viper.Viper) error {
	if v.GetBool("generate-schemas") {
		return generateSchemas()
	}

	bootLog, err := logging.New(logging.LevelInfo)
	if err != nil {
		return err
	}
	cfgPath := v.GetString("config")
	if cfgPath == "" {
		bootLog.Close()
		return errors.New("--config is required")
	}

	cfg, rep, err := fileio.Load(cfgPath, bootLog)
	bootLog.Close()
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if s := v.GetString("loglevel"); s != "" {
		level, err = logging.ParseLevel(s)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if n := v.GetInt("years-override"); n > 0 {
		cfg.YearsToSim = n
	}

	log, err := logging.New(level)
	if err != nil {
		return err
	}
	defer log.Close()

	if v.GetBool("sanitize-config") {
		for _, c := range rep.Corrections {
			fmt.Println(c)
		}
		out := cfgPath
		if dir := v.GetString("savepath"); dir != "" {
			out = filepath.Join(dir, filepath.Base(cfgPath))
		}
		return fileio.Save(cfg, out, log)
	}

	if !v.GetBool("run") {
		fmt.Printf("%s: %d items, %d corrections, ready to run\n", cfg.SimName, len(cfg.Items), len(rep.Corrections))
		return nil
	}

	simulator, err := sim.New(cfg, log)
	if err != nil {
		return err
	}
	frames, runErr := simulator.Run()
	switch {
	case errors.Is(runErr, sim.ErrOverdraw):
		fmt.Println("simulation terminated: main savings overdrawn")
	case runErr != nil && !errors.Is(runErr, sim.ErrCancelled):
		return runErr
	}

	summary := report.Summarize(frames, simulator.Config().MainSavings().ID)
	printSummary(summary)

	if dir := v.GetString("savepath"); dir != "" {
		if err := writeResults(dir, cfg, frames, summary, log); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(s report.Summary) {
	fmt.Printf("frames:        %d\n", s.Frames)
	fmt.Printf("net worth:     %s\n", s.FinalNetWorth.RoundBank(2))
	fmt.Printf("main savings:  %s\n", s.FinalMainSavings.RoundBank(2))
	fmt.Printf("tax paid:      %s\n", s.TotalTaxPaid.RoundBank(2))
	fmt.Printf("events:        %d\n", s.EventCount)
	if s.Overdrawn {
		fmt.Println("status:        overdrawn")
	}
}

func writeResults(dir string, cfg *model.Config, frames []*sim.Frame, summary report.Summary, log *logging.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := fileio.Save(cfg, filepath.Join(dir, "config.json"), log); err != nil {
		return err
	}
	out := struct {
		Summary report.Summary `json:"summary"`
		Frames  []*sim.Frame   `json:"frames"`
	}{Summary: summary, Frames: frames}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "results.json"), append(data, '\n'), 0o644)
}

func generateSchemas() error {
	schemas := map[string][]model.FieldSpec{
		"Config":            (&model.Config{}).Describe(),
		"FinancialItem":     (&model.FinancialItem{}).Describe(),
		"AmountFreq":        (&model.AmountFreq{}).Describe(),
		"AmountSchedule":    (&model.AmountSchedule{}).Describe(),
		"EventItem":         (&model.EventItem{}).Describe(),
		"TriggerConditions": (&model.TriggerConditions{}).Describe(),
		"ValueTrigger":      (&model.ValueTrigger{}).Describe(),
		"TagPredicate":      (&model.TagPredicate{}).Describe(),
	}
	data, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
