package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/aerotrim/internal/analysis"
	"github.com/san-kum/aerotrim/internal/config"
	"github.com/san-kum/aerotrim/internal/export"
	"github.com/san-kum/aerotrim/internal/linearize"
	"github.com/san-kum/aerotrim/internal/scenario"
	"github.com/san-kum/aerotrim/internal/storage"
	"github.com/san-kum/aerotrim/internal/trim"
	"github.com/san-kum/aerotrim/internal/viz"
	"github.com/spf13/cobra"
)

var (
	configFile  string
	modelName   string
	modelFile   string
	logLevel    string
	logDir      string
	metricsAddr string
	runsDir     string
	dt          float64

	// flight condition
	preset   string
	altitude float64
	mach     float64
	phi      float64
	psi      float64
	gamma    float64

	method    string
	trimDebug int
	force     bool

	plotColumns []string
	save        bool
	jsonFile    string
	theme       string

	stageName string
	xAxis     string
	outFile   string

	altitudes []float64
	machs     []float64
	workers   int
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "aerotrim",
		Short:         "trim and linearize flight dynamics models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&modelName, "model", config.DefaultModel, "model name")
	pf.StringVar(&modelFile, "model-file", "", "load a model from a yaml file")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error")
	pf.StringVar(&logDir, "log-dir", "", "log directory (default: user config dir)")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	pf.Float64Var(&dt, "dt", 0, "override the model time step")

	trimCmd := &cobra.Command{
		Use:   "trim",
		Short: "trim for wings-level flight",
		Args:  cobra.NoArgs,
		RunE:  runTrim,
	}
	conditionFlags(trimCmd)
	trimFlags(trimCmd)

	linearizeCmd := &cobra.Command{
		Use:   "linearize [preset]",
		Short: "trim, then linearize around the trim point",
		Long:  "presets: " + strings.Join(linearize.ListPresets(), ", "),
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLinearize,
	}
	conditionFlags(linearizeCmd)
	trimFlags(linearizeCmd)

	modesCmd := &cobra.Command{
		Use:   "modes [preset]",
		Short: "dynamic modes of a linearized model",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runModes,
	}
	conditionFlags(modesCmd)
	trimFlags(modesCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "trim across altitudes and Mach numbers",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	conditionFlags(sweepCmd)
	trimFlags(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&altitudes, "altitudes", nil, "altitudes in ft (default: the condition's)")
	sweepCmd.Flags().Float64SliceVar(&machs, "machs", nil, "Mach numbers (default: the condition's)")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "concurrent trims (default: GOMAXPROCS)")

	runCmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "run a scenario file or built-in scenario",
		Long:  "built-in scenarios: " + strings.Join(scenario.BuiltinNames(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	trimFlags(runCmd)
	runCmd.Flags().StringSliceVar(&plotColumns, "plot", nil, "plot logged columns")
	runCmd.Flags().BoolVar(&save, "save", false, "store the run under --runs")
	runCmd.Flags().StringVar(&jsonFile, "json", "", "also export the run as JSON to this file")
	runCmd.Flags().StringVar(&runsDir, "runs", config.DefaultRunsDir, "run storage directory")

	liveCmd := &cobra.Command{
		Use:   "live [scenario]",
		Short: "run a scenario in real time with a live view",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	trimFlags(liveCmd)
	liveCmd.Flags().StringVar(&theme, "theme", viz.ThemeCockpit.Name, "color theme: "+strings.Join(viz.ThemeNames(), ", "))

	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "list the model's properties",
		Args:  cobra.NoArgs,
		RunE:  runCatalog,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list available models",
		Args:  cobra.NoArgs,
		RunE:  listModels,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list flight condition and linearization presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("flight conditions:")
			for _, name := range config.ListPresets() {
				c, _ := config.GetPreset(name)
				fmt.Printf("  %-10s h=%gft mach=%g gamma=%grad\n", name, c.AltitudeFt, c.Mach, c.GammaRad)
			}
			fmt.Println("linearization:")
			for _, name := range linearize.ListPresets() {
				p, _ := linearize.GetPreset(name)
				fmt.Printf("  %-18s %s\n", name, p.Description)
			}
		},
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list stored scenario runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
	runsCmd.Flags().StringVar(&runsDir, "runs", config.DefaultRunsDir, "run storage directory")

	plotCmd := &cobra.Command{
		Use:   "plot [run_id] [column...]",
		Short: "plot columns of a stored run",
		Args:  cobra.MinimumNArgs(2),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&runsDir, "runs", config.DefaultRunsDir, "run storage directory")

	spectrumCmd := &cobra.Command{
		Use:   "spectrum [run_id] [column]",
		Short: "dominant frequency of a stored column",
		Args:  cobra.ExactArgs(2),
		RunE:  spectrumRun,
	}
	spectrumCmd.Flags().StringVar(&runsDir, "runs", config.DefaultRunsDir, "run storage directory")
	spectrumCmd.Flags().StringVar(&stageName, "stage", "", "only use records from this stage")

	svgCmd := &cobra.Command{
		Use:   "svg [run_id] [column]",
		Short: "export a stored column as an SVG plot",
		Args:  cobra.ExactArgs(2),
		RunE:  svgRun,
	}
	svgCmd.Flags().StringVar(&runsDir, "runs", config.DefaultRunsDir, "run storage directory")
	svgCmd.Flags().StringVar(&xAxis, "x", export.TimeAxis, "column for the x axis")
	svgCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default: <run_id>-<column>.svg)")

	rootCmd.AddCommand(trimCmd, linearizeCmd, modesCmd, sweepCmd, runCmd, liveCmd,
		catalogCmd, modelsCmd, presetsCmd, runsCmd, plotCmd, spectrumCmd, svgCmd)
	return rootCmd
}

func conditionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&preset, "preset", "", "flight condition preset: "+strings.Join(config.ListPresets(), ", "))
	f.Float64Var(&altitude, "altitude", config.DefaultAltitude, "altitude above sea level, ft")
	f.Float64Var(&mach, "mach", config.DefaultMach, "Mach number")
	f.Float64Var(&phi, "phi", 0, "bank angle, rad")
	f.Float64Var(&psi, "psi", 0, "true heading, rad")
	f.Float64Var(&gamma, "gamma", 0, "flight path angle, rad")
}

func trimFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&method, "method", trim.BFGS.String(), "trim minimizer: bfgs or nelder-mead")
	f.IntVar(&trimDebug, "debug", config.DefaultTrimDebug, "trim debug level (0-2)")
	f.BoolVar(&force, "force", false, "linearize even when the trim does not converge")
}

func runTrim(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	r, err := e.trim(cmd)
	if err != nil {
		return err
	}
	fmt.Println(viz.RenderTrim(r))
	return r.Err
}

// trim runs a wings-level trim at the command's flight condition.
func (e *env) trim(cmd *cobra.Command) (*trim.Result, error) {
	if err := e.require(trim.WingsLevelRequired()...); err != nil {
		return nil, err
	}
	c, err := condition(cmd, e.cfg)
	if err != nil {
		return nil, err
	}
	opts, err := e.cfg.TrimOptions(e.logger)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	r, err := trim.WingsLevel(e.handle, c.Input(), opts)
	e.collector.Observe(cmd.Context(), "trim", err == nil && r.Converged, time.Since(start))
	if err != nil {
		return nil, err
	}
	e.collector.ObserveTrim(r.Cost, r.Evaluations)
	return r, nil
}

// linearizeAt trims, then linearizes the named preset at the trim point.
func (e *env) linearizeAt(cmd *cobra.Command, name string) (*linearize.Model, error) {
	p, err := linearize.GetPreset(name)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %v)", err, linearize.ListPresets())
	}
	if err := e.require(p.Required()...); err != nil {
		return nil, err
	}
	r, err := e.trim(cmd)
	if err != nil {
		return nil, err
	}
	if r.Err != nil {
		if !force {
			return nil, fmt.Errorf("%w; use --force to linearize anyway", r.Err)
		}
		e.logger.Warn("linearizing an untrimmed point", "preset", name, "max_constraint", r.MaxViolation())
	}

	start := time.Now()
	m, err := p.Run(e.handle, r.Point, e.cfg.LinearizeOptions(e.logger))
	e.collector.Observe(cmd.Context(), "linearize", err == nil, time.Since(start))
	return m, err
}

func presetArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "longitudinal"
}

func runLinearize(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	m, err := e.linearizeAt(cmd, presetArg(args))
	if err != nil {
		return err
	}
	fmt.Println(viz.RenderModel(m))
	return nil
}

func runModes(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	m, err := e.linearizeAt(cmd, presetArg(args))
	if err != nil {
		return err
	}
	modes, err := analysis.Modes(m.A)
	if err != nil {
		return err
	}
	rank, err := analysis.ControllabilityRank(m.A, m.B, analysis.DefaultRankTolerance)
	if err != nil {
		return err
	}
	fmt.Println(viz.RenderModes(modes))
	fmt.Printf("controllability rank: %d of %d\n", rank, len(m.States))
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.require(trim.WingsLevelRequired()...); err != nil {
		return err
	}
	c, err := condition(cmd, e.cfg)
	if err != nil {
		return err
	}
	opts, err := e.cfg.TrimOptions(e.logger)
	if err != nil {
		return err
	}
	hs, ms := altitudes, machs
	if len(hs) == 0 {
		hs = []float64{c.AltitudeFt}
	}
	if len(ms) == 0 {
		ms = []float64{c.Mach}
	}
	var inputs []trim.WingsLevelInput
	for _, h := range hs {
		for _, m := range ms {
			in := c.Input()
			in.AltitudeFt, in.Mach = h, m
			inputs = append(inputs, in)
		}
	}

	points, err := trim.Sweep(cmd.Context(), e.build, inputs, workers, opts)
	fmt.Println(viz.RenderSweep(points))
	return err
}

// loadScenario resolves a built-in name or a file path.
func loadScenario(name string) (*scenario.Scenario, error) {
	sc, err := scenario.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("%w (built-in: %v)", err, scenario.BuiltinNames())
	}
	return sc, nil
}

func (e *env) runner() (*scenario.Runner, error) {
	opts, err := e.cfg.TrimOptions(e.logger)
	if err != nil {
		return nil, err
	}
	return &scenario.Runner{
		Logger:    e.logger,
		Recorder:  e.collector,
		Trim:      opts,
		Linearize: e.cfg.LinearizeOptions(e.logger),
	}, nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	sc, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	if err := e.require(sc.Required()...); err != nil {
		return err
	}
	runner, err := e.runner()
	if err != nil {
		return err
	}

	fmt.Printf("running %s on %s...\n", sc.Name, e.model)
	start := time.Now()
	report, runErr := runner.Run(cmd.Context(), e.handle, sc)
	if report == nil {
		return runErr
	}
	fmt.Println(viz.RenderReport(report))
	fmt.Printf("wall time: %v\n", time.Since(start).Round(time.Millisecond))

	for _, col := range plotColumns {
		chart, err := viz.PlotSeries(report.Log, col, viz.PlotOptions{})
		if err != nil {
			return err
		}
		fmt.Println(chart)
	}

	if save {
		st := storage.New(e.cfg.RunsDir)
		if err := st.Init(); err != nil {
			return err
		}
		id, err := st.Save(e.model, report)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", id)
	}
	if jsonFile != "" {
		if err := exportJSON(jsonFile, e.model, report); err != nil {
			return err
		}
	}
	return runErr
}

func exportJSON(path, model string, report *scenario.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := storage.ExportJSON(f, model, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runLive(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	sc, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	if err := e.require(sc.Required()...); err != nil {
		return err
	}
	runner, err := e.runner()
	if err != nil {
		return err
	}
	t, ok := viz.GetTheme(theme)
	if !ok {
		return fmt.Errorf("unknown theme: %s (available: %v)", theme, viz.ThemeNames())
	}

	m := viz.NewLiveModel(cmd.Context(), runner, e.handle, sc, nil).WithTheme(t)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	if report, err := m.Report(); report != nil {
		fmt.Println(viz.RenderReport(report))
		if err != nil && cmd.Context().Err() == nil {
			return err
		}
	}
	return nil
}

func runCatalog(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	for _, line := range e.handle.FDM().PropertyCatalog() {
		fmt.Println(line)
	}
	return nil
}

func listModels(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, name := range e.registry.List() {
		fmt.Fprintf(w, "%s\t%s\n", name, e.registry.Describe(name))
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runs, err := storage.New(cfg.RunsDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tMODEL\tTIME\tELAPSED\tCOMPLETED\tRECORDS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2fs\t%v\t%d\n",
			r.ID, r.Scenario, r.Model, r.Timestamp.Local().Format(time.DateTime), r.Elapsed, r.Completed, r.Records)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	l, err := storage.New(cfg.RunsDir).LoadLog(args[0])
	if err != nil {
		return err
	}
	for _, col := range args[1:] {
		chart, err := viz.PlotSeries(l, col, viz.PlotOptions{})
		if err != nil {
			return fmt.Errorf("%w (logged: %v)", err, l.Columns)
		}
		fmt.Println(chart)
	}
	return nil
}

func spectrumRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	l, err := storage.New(cfg.RunsDir).LoadLog(args[0])
	if err != nil {
		return err
	}
	col := -1
	for i, c := range l.Columns {
		if c == args[1] {
			col = i
		}
	}
	if col < 0 {
		return fmt.Errorf("column %q was not logged (logged: %v)", args[1], l.Columns)
	}

	var values, times []float64
	for _, rec := range l.Records {
		if stageName != "" && rec.Stage != stageName {
			continue
		}
		values = append(values, rec.Values[col])
		times = append(times, rec.Time)
	}
	if len(times) < 2 {
		return fmt.Errorf("not enough records")
	}
	sampling := (times[len(times)-1] - times[0]) / float64(len(times)-1)

	s, err := analysis.PowerSpectrum(values, sampling)
	if err != nil {
		return err
	}
	f := s.Dominant()
	fmt.Printf("%s: dominant frequency %.4g Hz (%.4g rad/s) over %d samples\n", args[1], f, 2*math.Pi*f, len(values))
	return nil
}

func svgRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	l, err := storage.New(cfg.RunsDir).LoadLog(args[0])
	if err != nil {
		return err
	}
	path := outFile
	if path == "" {
		path = fmt.Sprintf("%s-%s.svg", args[0], strings.NewReplacer("/", "_", "[", "", "]", "").Replace(args[1]))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteSVG(f, l, xAxis, args[1], export.SVGOptions{}); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
