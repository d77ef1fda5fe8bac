package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/san-kum/rotorbridge/internal/analysis"
	"github.com/san-kum/rotorbridge/internal/automation"
	"github.com/san-kum/rotorbridge/internal/config"
	"github.com/san-kum/rotorbridge/internal/experiment"
	"github.com/san-kum/rotorbridge/internal/export"
	"github.com/san-kum/rotorbridge/internal/logging"
	"github.com/san-kum/rotorbridge/internal/metrics"
	"github.com/san-kum/rotorbridge/internal/optim"
	"github.com/san-kum/rotorbridge/internal/storage"
	"github.com/san-kum/rotorbridge/internal/viz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	dataDir     string
	configFile  string
	preset      string
	duration    float64
	stepSize    float64
	integrator  string
	controller  string
	target      float64
	rate        float64
	period      float64
	tolerance   float64
	delay       float64
	queueThread bool
	logLevel    string
	metricsAddr string
	save        bool
	runName     string
	every       int
	realtime    bool
	theme       string
	plotColumns []string
	csvColumns  []string
	outPath     string
	numRuns     int
	delayStep   float64
	column      string
	gridParams  []string
	objective   string
	maximize    bool
	numTrials   int
	seed        int64
	band        float64
	perturb     map[string]float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "rotorbridge",
		Short:        "quadrotor propulsion bridge simulator",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".rotorbridge", "data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "fly one simulated run",
		Args:  cobra.NoArgs,
		RunE:  runFlight,
	}
	addFlightFlags(runCmd)
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (e.g. :9100)")
	runCmd.Flags().BoolVar(&save, "save", true, "store the run under the data directory")
	runCmd.Flags().StringVar(&runName, "name", "", "run name (defaults to the preset or \"run\")")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "fly a run with a live terminal monitor",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addFlightFlags(liveCmd)
	liveCmd.Flags().IntVar(&every, "every", 10, "show every n-th step")
	liveCmd.Flags().BoolVar(&realtime, "realtime", true, "pace the flight to the wall clock")
	liveCmd.Flags().StringVar(&theme, "theme", viz.Themes[0].Name, "color theme")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "fly several robots side by side with increasing command delay",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addFlightFlags(sweepCmd)
	sweepCmd.Flags().IntVar(&numRuns, "runs", 4, "number of robots")
	sweepCmd.Flags().Float64Var(&delayStep, "delay-step", 0.005, "extra command delay per robot (s)")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid-search controller and timing parameters",
		Args:  cobra.NoArgs,
		RunE:  runTune,
	}
	addFlightFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&gridParams, "param", nil, "grid axis as name=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&objective, "metric", "stability", "summary metric to optimize")
	tuneCmd.Flags().BoolVar(&maximize, "maximize", true, "prefer higher metric values")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "fly the steps of a YAML scenario and store each run",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "fly randomly perturbed copies of a configuration",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	addFlightFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&numTrials, "trials", 20, "number of trials")
	monteCarloCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	monteCarloCmd.Flags().Float64Var(&band, "band", 0.2, "allowed final altitude error (m)")
	monteCarloCmd.Flags().StringToFloat64Var(&perturb, "perturb", map[string]float64{"delay": 0.01}, "perturbation per tunable, e.g. delay=0.01,kp=5")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "command latency and oscillation analysis",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&column, "column", "z", "telemetry column for the spectrum")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot telemetry of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&plotColumns, "column", []string{"z", "thrust", "voltage"}, "telemetry columns to plot")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export selected telemetry columns to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringSliceVar(&csvColumns, "column", nil, "columns to export (default all)")
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run with its telemetry to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := outPath
			if path == "" {
				path = args[0] + ".json"
			}
			if err := storage.New(dataDir).ExportJSON(args[0], path); err != nil {
				return err
			}
			fmt.Printf("exported to %s\n", path)
			return nil
		},
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <run_id>.json)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render one telemetry column to an SVG chart",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVar(&column, "column", "z", "telemetry column")
	exportSVGCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <run_id>_<column>.svg)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list timing presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRESET\tRATE\tTOL\tDELAY\tSTEP\tQUEUE THREAD")
			for _, name := range config.ListPresets() {
				b := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%.0f Hz\t%.3fs\t%.3fs\t%.4fs\t%v\n",
					name, b.Bridge.ControlRate, b.Bridge.ControlTolerance,
					b.Bridge.ControlDelay, b.World.StepSize, b.Bridge.QueueThread)
			}
			return w.Flush()
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
	addFlightFlags(configCmd)

	rootCmd.AddCommand(runCmd, liveCmd, sweepCmd, tuneCmd, scenarioCmd, monteCarloCmd, analyzeCmd, listCmd, plotCmd, exportCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd, presetsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addFlightFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "start from a timing preset")
	f.Float64Var(&duration, "duration", config.DefaultDuration, "simulated seconds")
	f.Float64Var(&stepSize, "step", config.DefaultStepSize, "physics step size (s)")
	f.StringVar(&integrator, "integrator", "rk4", "rigid-body integrator")
	f.StringVar(&controller, "controller", "pid", "altitude controller (pid, none, off)")
	f.Float64Var(&target, "target", 1.0, "target altitude (m)")
	f.Float64Var(&rate, "rate", 0, "control rate (Hz)")
	f.Float64Var(&period, "period", 0, "control period (s), used when rate is 0")
	f.Float64Var(&tolerance, "tolerance", 0, "command timestamp tolerance (s)")
	f.Float64Var(&delay, "delay", 0, "artificial command delay (s)")
	f.BoolVar(&queueThread, "queue-thread", false, "drain callbacks on a background goroutine")
	f.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// resolveConfig layers defaults, preset, config file and explicitly set flags.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
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

	f := cmd.Flags()
	if f.Changed("duration") {
		cfg.World.Duration = duration
	}
	if f.Changed("step") {
		cfg.World.StepSize = stepSize
	}
	if f.Changed("integrator") {
		cfg.World.Integrator = integrator
	}
	if f.Changed("controller") {
		cfg.Controller.Type = controller
	}
	if f.Changed("target") {
		cfg.Controller.Target = target
	}
	if f.Changed("rate") {
		cfg.Bridge.ControlRate = rate
	}
	if f.Changed("period") {
		cfg.Bridge.ControlPeriod = period
	}
	if f.Changed("tolerance") {
		cfg.Bridge.ControlTolerance = tolerance
	}
	if f.Changed("delay") {
		cfg.Bridge.ControlDelay = delay
	}
	if f.Changed("queue-thread") {
		cfg.Bridge.QueueThread = queueThread
	}
	if f.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	return cfg, cfg.Validate()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runFlight(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Close()
		log.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	exp := experiment.New(cfg, experiment.WithLogger(log), experiment.WithRecorder(recorder))
	if err := exp.Setup(experiment.NewRegistry()); err != nil {
		return err
	}

	fmt.Printf("flying %.1fs at %.4fs steps...\n", cfg.World.Duration, cfg.World.StepSize)
	result, err := exp.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	printResult(result)

	if save {
		name := runName
		if name == "" {
			name = preset
		}
		if name == "" {
			name = "run"
		}
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(name, cfg, result)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}
	return nil
}

func printResult(r *experiment.Result) {
	fmt.Printf("completed in %v (sim %v)\n", r.WallTime.Round(time.Millisecond), r.SimTime)
	fmt.Printf("steps: %d  triggers: %d  applied: %d  commands: %d\n", r.StepsTaken, r.Triggers, r.Applied, r.Commands)
	if n := len(r.Samples); n > 0 {
		last := r.Samples[n-1]
		fmt.Printf("final altitude: %.3f m  supply: %.2f V\n", last.Position.Z, last.Voltage)
	}
	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, r.Metrics[name])
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	// stderr belongs to the terminal UI; only log when an output file is set
	log := zap.NewNop()
	if len(cfg.Log.Outputs) > 0 {
		if log, err = logging.New(cfg.Log); err != nil {
			return err
		}
		defer log.Sync()
	}

	ctx, cancel := signalContext()
	defer cancel()

	exp := experiment.New(cfg, experiment.WithLogger(log))
	if err := exp.Setup(experiment.NewRegistry()); err != nil {
		return err
	}

	feed := viz.NewFeed(every, realtime)
	exp.AddObserver(feed)

	title := preset
	if title == "" {
		title = "rotorbridge"
	}
	mon := viz.NewMonitor(title, feed, cancel)
	mon.SetTheme(theme)

	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := exp.Run(ctx)
		feed.Finish(res, err)
	}()

	uiErr := viz.Run(mon)
	cancel()
	<-done
	return uiErr
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	base := cfg.Bridge.ControlDelay
	ens := experiment.NewEnsemble(cfg, numRuns, func(i int, c *config.Config) {
		c.Bridge.ControlDelay = base + float64(i)*delayStep
	})
	ens.SetLogger(log)

	results, err := ens.Run(ctx, experiment.NewRegistry())
	if err != nil {
		return err
	}

	cfgs := ens.Configs()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROBOT\tDELAY\tTRIGGERS\tAPPLIED\tALTITUDE\tSTABILITY\tENERGY")
	for i, r := range results {
		alt := 0.0
		if n := len(r.Samples); n > 0 {
			alt = r.Samples[n-1].Position.Z
		}
		fmt.Fprintf(w, "%s\t%.3fs\t%d\t%d\t%.3f\t%.3f\t%.1f\n",
			cfgs[i].Bridge.RobotNamespace, cfgs[i].Bridge.ControlDelay,
			r.Triggers, r.Applied, alt, r.Metrics["stability"], r.Metrics["energy"])
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tDURATION\tSTEP\tPERIOD\tDELAY\tTRIGGERS\tAPPLIED\tCTRL")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.2fs\t%.4fs\t%.3fs\t%.3fs\t%d\t%d\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.StepSize,
			run.ControlPeriod,
			run.Delay,
			run.Triggers,
			run.Applied,
			run.Controller,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	tel, err := st.LoadTelemetry(args[0])
	if err != nil {
		return err
	}
	if len(tel.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("samples: %d\n\n", len(tel.Rows))

	for _, name := range plotColumns {
		data := tel.Column(name)
		if data == nil {
			return fmt.Errorf("unknown column %q (available: %v)", name, tel.Columns)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name+" vs time"),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	meta, err := storage.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	tel, err := storage.New(dataDir).LoadTelemetry(args[0])
	if err != nil {
		return err
	}

	names := csvColumns
	if len(names) == 0 {
		names = tel.Columns
	}
	series := make([][]float64, len(names))
	for i, name := range names {
		if series[i] = tel.Column(name); series[i] == nil {
			return fmt.Errorf("unknown column %q", name)
		}
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	if err := w.Write(append([]string{"time"}, names...)); err != nil {
		return err
	}
	for r, t := range tel.Times {
		row := []string{strconv.FormatFloat(t, 'f', 6, 64)}
		for _, s := range series {
			row = append(row, strconv.FormatFloat(s[r], 'g', 8, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func parseGrid(specs []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok || name == "" || list == "" {
			return nil, nil, fmt.Errorf("bad --param %q, want name=v1,v2", spec)
		}
		var vals []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("bad value in --param %q: %w", spec, err)
			}
			vals = append(vals, v)
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(gridParams)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no --param given (tunable: %v)", optim.TunableNames())
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	g := optim.NewGridSearch(names, ranges)
	if maximize {
		g.Maximize()
	}
	obj := optim.FlightObjective(cfg, experiment.NewRegistry(), objective, experiment.WithLogger(log))
	best, trials, err := g.Search(ctx, obj)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(objective))
	for _, t := range trials {
		row := make([]string, 0, len(names)+1)
		for _, n := range names {
			row = append(row, strconv.FormatFloat(t.Params[n], 'g', 6, 64))
		}
		if t.Err != nil {
			row = append(row, "error: "+t.Err.Error())
		} else {
			row = append(row, strconv.FormatFloat(t.Score, 'f', 4, 64))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
	if err != nil {
		return err
	}

	fmt.Printf("\nbest %s = %.4f with", objective, best.Score)
	for _, n := range names {
		fmt.Printf(" %s=%g", n, best.Params[n])
	}
	fmt.Println()
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	tel, err := st.LoadTelemetry(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("analysis: %s\n\n", meta.ID)

	lat := analysis.Latency(tel.Times, tel.Column("trigger"), tel.Column("applied"))
	fmt.Printf("triggers: %d  answered: %d\n", lat.Triggers, lat.Answered)
	if lat.Answered > 0 {
		fmt.Printf("command latency: mean %.2f ms  min %.2f ms  max %.2f ms\n\n",
			lat.Mean*1e3, lat.Min*1e3, lat.Max*1e3)
	}

	series := tel.Column(column)
	if series == nil {
		return fmt.Errorf("unknown column %q (available: %v)", column, tel.Columns)
	}
	sp, err := analysis.PowerSpectrum(series, meta.StepSize)
	if err != nil {
		return err
	}

	// airframe motion lives below 50 Hz
	n := len(sp.Freqs)
	for n > 1 && sp.Freqs[n-1] > 50 {
		n--
	}
	fmt.Println(asciigraph.Plot(sp.Power[:n],
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("spectrum of %s, 0-%.0f Hz", column, sp.Freqs[n-1])),
	))
	fmt.Println()

	f, _ := sp.Dominant()
	fmt.Printf("dominant frequency: %.3f hz\n", f)
	if f > 0 {
		fmt.Printf("period: %.3f s\n", 1/f)
	}
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	tel, err := storage.New(dataDir).LoadTelemetry(args[0])
	if err != nil {
		return err
	}
	ys := tel.Column(column)
	if ys == nil {
		return fmt.Errorf("unknown column %q (available: %v)", column, tel.Columns)
	}

	chart := export.DefaultChart()
	chart.Title = fmt.Sprintf("%s: %s vs time", args[0], column)
	svg, err := chart.Series(tel.Times, ys)
	if err != nil {
		return err
	}

	path := outPath
	if path == "" {
		path = args[0] + "_" + column + ".svg"
	}
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Options{Level: logLevel})
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunScenario(ctx, sc, experiment.NewRegistry(), log)

	st := storage.New(dataDir)
	if initErr := st.Init(); initErr != nil {
		return initErr
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tRUN ID\tTRIGGERS\tAPPLIED\tSTABILITY")
	for i, r := range results {
		name := r.Step.Name
		if name == "" {
			name = fmt.Sprintf("%s-%d", sc.Name, i+1)
		}
		runID, saveErr := st.Save(name, r.Config, r.Result)
		if saveErr != nil {
			return saveErr
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.3f\n", name, runID, r.Result.Triggers, r.Result.Applied, r.Result.Metrics["stability"])
	}
	w.Flush()
	return err
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunMonteCarlo(ctx, &automation.MonteCarloConfig{
		Base:         cfg,
		Perturbation: perturb,
		NumTrials:    numTrials,
		Seed:         seed,
		Band:         band,
	}, experiment.NewRegistry(), log)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stable, unstable, failed := automation.MonteCarloStats(results)
	fmt.Printf("trials: %d  stable: %d  unstable: %d  failed: %d\n", len(results), stable, unstable, failed)
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("  trial %d: %v\n", r.TrialID, r.Err)
		} else if !r.Stable {
			fmt.Printf("  trial %d: altitude %.3f m with %v\n", r.TrialID, r.Altitude, r.Params)
		}
	}
	return nil
}
