package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/san-kum/aerotrim/internal/linearize"
	"github.com/san-kum/aerotrim/internal/log"
	"github.com/san-kum/aerotrim/internal/trim"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel     = "c172-linear"
	DefaultLogLevel  = "info"
	DefaultAltitude  = 3000.0
	DefaultMach      = 0.16123
	DefaultRunsDir   = "runs"
	DefaultTrimDebug = 0
)

type Config struct {
	Model     string `yaml:"model"`
	ModelFile string `yaml:"model_file,omitempty"`
	// Dt overrides the model's own step when non-zero.
	Dt          float64         `yaml:"dt,omitempty"`
	Log         LogConfig       `yaml:"log"`
	Linearize   LinearizeConfig `yaml:"linearize"`
	Trim        TrimConfig      `yaml:"trim"`
	Condition   Condition       `yaml:"condition"`
	RunsDir     string          `yaml:"runs_dir"`
	MetricsAddr string          `yaml:"metrics_addr,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir,omitempty"`
}

type LinearizeConfig struct {
	Dx        float64 `yaml:"dx"`
	Precision int     `yaml:"precision"`
}

type TrimConfig struct {
	Tolerance           float64 `yaml:"tolerance,omitempty"`
	ConstraintTolerance float64 `yaml:"constraint_tolerance"`
	MaxIterations       int     `yaml:"max_iterations"`
	Method              string  `yaml:"method"`
	Debug               int     `yaml:"debug,omitempty"`
}

// Condition is a wings-level flight condition.
type Condition struct {
	AltitudeFt float64 `yaml:"altitude_ft"`
	Mach       float64 `yaml:"mach"`
	PhiRad     float64 `yaml:"phi_rad"`
	PsiRad     float64 `yaml:"psi_rad"`
	GammaRad   float64 `yaml:"gamma_rad"`
}

func (c Condition) Input() trim.WingsLevelInput {
	return trim.WingsLevelInput{
		AltitudeFt: c.AltitudeFt,
		Mach:       c.Mach,
		PhiRad:     c.PhiRad,
		PsiRad:     c.PsiRad,
		GammaRad:   c.GammaRad,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Model: DefaultModel,
		Log:   LogConfig{Level: DefaultLogLevel},
		Linearize: LinearizeConfig{
			Dx:        linearize.DefaultDx,
			Precision: linearize.DefaultPrecision,
		},
		Trim: TrimConfig{
			ConstraintTolerance: trim.DefaultConstraintTolerance,
			MaxIterations:       trim.DefaultMaxIterations,
			Method:              trim.BFGS.String(),
			Debug:               DefaultTrimDebug,
		},
		Condition: Condition{AltitudeFt: DefaultAltitude, Mach: DefaultMach},
		RunsDir:   DefaultRunsDir,
	}
}

// Load overlays the file at path on DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Model == "" && c.ModelFile == "" {
		return fmt.Errorf("config: model or model_file is required")
	}
	if c.Dt < 0 {
		return fmt.Errorf("config: dt must not be negative, got %g", c.Dt)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Linearize.Dx < 0 || c.Linearize.Precision < 0 {
		return fmt.Errorf("config: linearize dx and precision must not be negative")
	}
	if c.Linearize.Precision > linearize.MaxPrecision {
		return fmt.Errorf("config: linearize precision must not exceed %d, got %d", linearize.MaxPrecision, c.Linearize.Precision)
	}
	if c.Trim.Tolerance < 0 || c.Trim.ConstraintTolerance < 0 || c.Trim.MaxIterations < 0 {
		return fmt.Errorf("config: trim tolerances and iterations must not be negative")
	}
	if _, err := trim.ParseMethod(c.Trim.Method); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Condition.Mach < 0 {
		return fmt.Errorf("config: mach must not be negative")
	}
	return nil
}

// TrimOptions converts the trim section; the caller supplies the logger.
func (c *Config) TrimOptions(logger *log.Logger) (trim.Options, error) {
	m, err := trim.ParseMethod(c.Trim.Method)
	if err != nil {
		return trim.Options{}, err
	}
	return trim.Options{
		Tolerance:           c.Trim.Tolerance,
		ConstraintTolerance: c.Trim.ConstraintTolerance,
		MaxIterations:       c.Trim.MaxIterations,
		Method:              m,
		Logger:              logger,
		Debug:               c.Trim.Debug,
	}, nil
}

func (c *Config) LinearizeOptions(logger *log.Logger) linearize.Options {
	return linearize.Options{Dx: c.Linearize.Dx, Logger: logger}.WithPrecision(c.Linearize.Precision)
}
