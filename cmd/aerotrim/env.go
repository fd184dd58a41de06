package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/san-kum/aerotrim/internal/config"
	"github.com/san-kum/aerotrim/internal/fdm"
	"github.com/san-kum/aerotrim/internal/log"
	"github.com/san-kum/aerotrim/internal/metrics"
	"github.com/san-kum/aerotrim/internal/models"
	"github.com/san-kum/aerotrim/internal/props"
	"github.com/spf13/cobra"
)

// env is everything a command needs: the merged configuration, a logger, a
// fresh engine behind its handle and the metrics collector.
type env struct {
	cfg       *config.Config
	logger    *log.Logger
	registry  *models.Registry
	model     string
	handle    *fdm.Handle
	collector *metrics.Collector
	server    *http.Server
	// required accumulates the properties the command needs; every engine
	// built afterwards is checked against them.
	required []string
}

// loadConfig reads --config (or the defaults) and lets explicitly set flags
// win over file values.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = modelName
	}
	if flags.Changed("model-file") {
		cfg.ModelFile = modelFile
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-dir") {
		cfg.Log.Dir = logDir
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if flags.Changed("runs") {
		cfg.RunsDir = runsDir
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("method") {
		cfg.Trim.Method = method
	}
	if flags.Changed("debug") {
		cfg.Trim.Debug = trimDebug
	}
	return cfg, cfg.Validate()
}

func newEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	e := &env{
		cfg:       cfg,
		logger:    log.New(cfg.Log.Level, cfg.Log.Dir, os.Stderr),
		registry:  models.NewRegistry(),
		model:     cfg.Model,
		collector: metrics.NewCollector(),
	}
	if cfg.ModelFile != "" {
		name, err := e.registry.RegisterFile(cfg.ModelFile)
		if err != nil {
			return nil, err
		}
		if !cmd.Flags().Changed("model") {
			e.model = name
		}
	}
	if e.handle, err = e.build(); err != nil {
		return nil, err
	}
	if extra := props.NewRegistry().Unrecognized(fdm.CatalogNames(e.handle.FDM())); len(extra) > 0 {
		e.logger.Debug("model exposes extra properties", "model", e.model, "names", extra)
	}

	if cfg.MetricsAddr != "" {
		e.server = &http.Server{Addr: cfg.MetricsAddr, Handler: e.collector.Handler()}
		go func() {
			if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.logger.Error("metrics server", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		e.logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}
	return e, nil
}

// build returns a new engine for the configured model.
func (e *env) build() (*fdm.Handle, error) {
	spec, err := e.registry.Spec(e.model)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %v)", err, e.registry.List())
	}
	if e.cfg.Dt > 0 {
		spec.Dt = e.cfg.Dt
	}
	a, err := models.NewAffine(spec)
	if err != nil {
		return nil, err
	}
	if err := props.NewRegistry().Validate(fdm.CatalogNames(a), e.required); err != nil {
		return nil, fmt.Errorf("model %s: %w", e.model, err)
	}
	h := fdm.NewHandle(a)
	h.Instrument(e.collector)
	return h, nil
}

// require checks names against the current engine and records them for any
// engine built later.
func (e *env) require(names ...string) error {
	e.required = append(e.required, names...)
	if err := props.NewRegistry().Validate(fdm.CatalogNames(e.handle.FDM()), e.required); err != nil {
		return fmt.Errorf("model %s: %w", e.model, err)
	}
	return nil
}

func (e *env) close() {
	if e.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = e.server.Shutdown(ctx)
}

// condition resolves the flight condition: config, then --preset, then the
// individual flags.
func condition(cmd *cobra.Command, cfg *config.Config) (config.Condition, error) {
	c := cfg.Condition
	if preset != "" {
		p, ok := config.GetPreset(preset)
		if !ok {
			return c, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		c = p
	}
	flags := cmd.Flags()
	if flags.Changed("altitude") {
		c.AltitudeFt = altitude
	}
	if flags.Changed("mach") {
		c.Mach = mach
	}
	if flags.Changed("phi") {
		c.PhiRad = phi
	}
	if flags.Changed("psi") {
		c.PsiRad = psi
	}
	if flags.Changed("gamma") {
		c.GammaRad = gamma
	}
	return c, nil
}
