package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/canosim/internal/config"
	"github.com/san-kum/canosim/internal/experiment"
	"github.com/san-kum/canosim/internal/metrics"
	"github.com/san-kum/canosim/internal/report"
	"github.com/san-kum/canosim/internal/sobol"
	"github.com/san-kum/canosim/internal/storage"
	"github.com/san-kum/canosim/internal/tui"
)

var (
	dataDir    string
	configFile string
	preset     string

	initialState float64
	startYear    float64
	endYear      float64
	stepYears    float64
	seed         int64

	samples   int
	bootstrap int
	workers   int
	progress  bool

	plotHeight int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "canosim",
		Short: "canopy growth simulation and sensitivity analysis",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".canosim", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "integrate the nominal growth trajectory",
		RunE:  runNominal,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().IntVar(&plotHeight, "plot-height", 12, "trajectory plot height")

	sensitivityCmd := &cobra.Command{
		Use:   "sensitivity",
		Short: "run the Sobol sensitivity analysis",
		RunE:  runSensitivity,
	}
	addConfigFlags(sensitivityCmd)
	sensitivityCmd.Flags().IntVar(&samples, "samples", 0, "base matrix size N")
	sensitivityCmd.Flags().IntVar(&bootstrap, "bootstrap", 0, "bootstrap resamples (0 = N)")
	sensitivityCmd.Flags().IntVar(&workers, "workers", 0, "worker count (0 = NumCPU)")
	sensitivityCmd.Flags().BoolVar(&progress, "progress", false, "show live progress")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list analysis presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				fmt.Printf("  %-12s samples=%d bootstrap=%d\n", name, cfg.Samples, cfg.Bootstrap)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	exportCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	initConfigCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write the default configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if preset != "" {
				if cfg = config.GetPreset(preset); cfg == nil {
					return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
				}
			}
			return config.Save(args[0], cfg)
		},
	}
	initConfigCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")

	rootCmd.AddCommand(runCmd, sensitivityCmd, presetsCmd, listCmd, exportCmd, initConfigCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&initialState, "initial", config.DefaultInitialState, "initial stock")
	cmd.Flags().Float64Var(&startYear, "start", config.DefaultStartYear, "first output year")
	cmd.Flags().Float64Var(&endYear, "end", config.DefaultEndYear, "last output year")
	cmd.Flags().Float64Var(&stepYears, "step", config.DefaultStep, "output interval in years")
	cmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "random seed")
}

// loadConfig resolves preset, config file, and flag overrides, in that
// order of precedence (lowest first).
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("initial") {
		cfg.InitialState = initialState
	}
	if cmd.Flags().Changed("start") {
		cfg.Times.Start = startYear
	}
	if cmd.Flags().Changed("end") {
		cfg.Times.End = endYear
	}
	if cmd.Flags().Changed("step") {
		cfg.Times.Step = stepYears
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("samples") {
		cfg.Samples = samples
	}
	if cmd.Flags().Changed("bootstrap") {
		cfg.Bootstrap = bootstrap
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workers
	}

	return cfg, nil
}

func runNominal(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	exp, err := experiment.New(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	tr, result, err := exp.NominalRun(context.Background())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.SaveRun(cfg.Seed, cfg.InitialState, tr, result)
	if err != nil {
		return err
	}

	fmt.Println(report.TrajectoryPlot(tr, plotHeight))
	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("peak:   %.4f at year %.1f\n", result.PeakValue, result.PeakTime)
	fmt.Printf("mean:   %.4f\n", result.MeanValue)
	return nil
}

func runSensitivity(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	exp, err := experiment.New(cfg)
	if err != nil {
		return err
	}

	total := exp.DesignSize()
	fmt.Printf("running %d integrations (N=%d)...\n", total, cfg.Samples)
	start := time.Now()

	var rep *sobol.Report
	if progress {
		rep, err = runWithProgress(exp, total)
	} else {
		rep, err = exp.Sensitivity(context.Background(), nil)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.SaveSensitivity(cfg.Seed, cfg.InitialState, rep)
	if err != nil {
		return err
	}

	fmt.Println(report.IndexTable(rep))
	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func runWithProgress(exp *experiment.Experiment, total int) (*sobol.Report, error) {
	events := make(chan sobol.Progress, total)

	type outcome struct {
		report *sobol.Report
		err    error
	}
	done := make(chan outcome, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		rep, err := exp.Sensitivity(ctx, events)
		close(events)
		done <- outcome{report: rep, err: err}
	}()

	p := tea.NewProgram(tui.NewProgress(total, events))
	model, err := p.Run()
	if err != nil {
		cancel()
		<-done
		return nil, err
	}
	if m, ok := model.(tui.Model); ok && m.Aborted() {
		cancel()
		<-done
		return nil, context.Canceled
	}

	out := <-done
	return out.report, out.err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tTIME\tSAMPLES\tFAILED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			run.ID, run.Kind, run.Timestamp.Format(time.RFC3339), run.Samples, run.FailedRows)
	}
	return w.Flush()
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	if meta.Kind == "sensitivity" {
		exp, err := st.LoadSensitivityExport(args[0])
		if err != nil {
			return err
		}
		return report.WriteJSON(os.Stdout, exp)
	}

	tr, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	var result metrics.Result
	if meta.Metrics != nil {
		result = metrics.Result{
			PeakValue: meta.Metrics.PeakValue,
			PeakTime:  meta.Metrics.PeakTime,
			MeanValue: meta.Metrics.MeanValue,
		}
	}
	return report.WriteJSON(os.Stdout, report.NewTrajectoryExport(meta.InitialState, tr, result))
}
