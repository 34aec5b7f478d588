// Package config loads optimization run configuration from YAML files
// and validates it before any job starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/evostrat/internal/store"
)

// RunConfig is the root configuration structure for a single run.
type RunConfig struct {
	Problem   string `yaml:"problem" validate:"required"`
	Dim       int    `yaml:"dim" validate:"min=0"` // 0 selects the problem default
	Optimizer string `yaml:"optimizer" validate:"oneof=es mayfly"`
	Iters     int    `yaml:"iters" validate:"min=1"`
	Seed      int64  `yaml:"seed"` // 0 seeds from the clock
	Workers   int    `yaml:"workers" validate:"min=0"`
	Trace     bool   `yaml:"trace"` // write per-generation trace.jsonl

	ES         ESConfig         `yaml:"es"`
	Mayfly     MayflyConfig     `yaml:"mayfly"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Archive    ArchiveConfig    `yaml:"archive"`
}

// ESConfig defines evolution strategy parameters.
type ESConfig struct {
	Mu        int     `yaml:"mu" validate:"min=1"`
	Rho       int     `yaml:"rho" validate:"min=0"` // 0 recombines all mu parents
	Lambda    int     `yaml:"lambda" validate:"min=1"`
	Selection string  `yaml:"selection" validate:"oneof=plus comma"`
	SigmaFrac float64 `yaml:"sigma_frac" validate:"gt=0"` // initial step size as a fraction of the search range
	SigmaTol  float64 `yaml:"sigma_tol" validate:"min=0"` // stop when all step sizes fall below (0 = disabled)
	Patience  int     `yaml:"patience" validate:"min=0"`  // convergence window in generations (0 = disabled)
	Threshold float64 `yaml:"threshold" validate:"min=0"` // relative improvement considered significant
}

// MayflyConfig defines mayfly algorithm parameters.
type MayflyConfig struct {
	PopSize int `yaml:"pop_size" validate:"min=1"`
}

// CheckpointConfig defines checkpoint persistence parameters.
type CheckpointConfig struct {
	Dir      string `yaml:"dir" validate:"required"`
	Interval int    `yaml:"interval" validate:"min=0"` // seconds between checkpoints (0 = disabled)
}

// ArchiveConfig defines where finished runs are recorded.
type ArchiveConfig struct {
	Backend    string `yaml:"backend" validate:"oneof=memory sqlite"`
	SQLitePath string `yaml:"sqlite_path" validate:"required_if=Backend sqlite"`
}

// Load reads a YAML config file, applies defaults and validates the result.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &RunConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize applies defaults and validates the configuration.
// Call it on configs assembled in code (e.g. from CLI flags); Load calls
// it automatically.
func (c *RunConfig) Finalize() error {
	applyDefaults(c)
	return c.Validate()
}

func applyDefaults(cfg *RunConfig) {
	if cfg.Optimizer == "" {
		cfg.Optimizer = "es"
	}
	if cfg.Iters == 0 {
		cfg.Iters = 500
	}
	if cfg.ES.Mu == 0 {
		cfg.ES.Mu = 20
	}
	if cfg.ES.Lambda == 0 {
		cfg.ES.Lambda = 7 * cfg.ES.Mu
	}
	if cfg.ES.Selection == "" {
		cfg.ES.Selection = "plus"
	}
	if cfg.ES.SigmaFrac == 0 {
		cfg.ES.SigmaFrac = 0.1
	}
	if cfg.ES.Patience == 0 {
		cfg.ES.Patience = 25
	}
	if cfg.ES.Threshold == 0 {
		cfg.ES.Threshold = 0.001
	}
	if cfg.Mayfly.PopSize == 0 {
		cfg.Mayfly.PopSize = 30
	}
	if cfg.Checkpoint.Dir == "" {
		cfg.Checkpoint.Dir = "data"
	}
	if cfg.Archive.Backend == "" {
		cfg.Archive.Backend = "memory"
	}
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules the tag
// syntax cannot express. All violations are reported at once.
func (c *RunConfig) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		for _, e := range verrs {
			problems = append(problems, validationMessage(e))
		}
	}

	if c.ES.Rho > c.ES.Mu {
		problems = append(problems, fmt.Sprintf("es.rho must not exceed es.mu (%d > %d)", c.ES.Rho, c.ES.Mu))
	}
	if c.ES.Selection == "comma" && c.ES.Mu >= c.ES.Lambda {
		problems = append(problems, fmt.Sprintf("comma selection requires es.mu < es.lambda (%d >= %d)", c.ES.Mu, c.ES.Lambda))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Namespace())
	case "required_if":
		return fmt.Sprintf("%s is required (%s)", e.Namespace(), e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", e.Namespace(), e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", e.Namespace(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Namespace(), e.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", e.Namespace(), e.Tag())
	}
}

// JobConfig converts the run configuration to its checkpoint form.
// dim is the resolved problem dimension (config dim 0 means "problem
// default", which checkpoints must not carry).
func (c *RunConfig) JobConfig(dim int) store.JobConfig {
	return store.JobConfig{
		Problem:            c.Problem,
		Dim:                dim,
		Optimizer:          c.Optimizer,
		Iters:              c.Iters,
		Mu:                 c.ES.Mu,
		Rho:                c.ES.Rho,
		Lambda:             c.ES.Lambda,
		Selection:          c.ES.Selection,
		PopSize:            c.Mayfly.PopSize,
		Seed:               c.Seed,
		Workers:            c.Workers,
		CheckpointInterval: c.Checkpoint.Interval,
	}
}
