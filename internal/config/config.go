package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/danielpatrickdp/stopper/internal/stopper"
	"github.com/danielpatrickdp/stopper/internal/trainloop"
)

// EnvPrefix prefixes every environment override, e.g. STOPPER_STOPPER_PATIENCE.
const EnvPrefix = "STOPPER"

// Tracker backends.
const (
	TrackerNone   = "none"
	TrackerLog    = "log"
	TrackerSQLite = "sqlite"
)

// #region types
// Config is the full stopperctl configuration.
type Config struct {
	Stopper   StopperConfig    `mapstructure:"stopper"`
	Training  trainloop.Config `mapstructure:"training"`
	Evaluator EvaluatorConfig  `mapstructure:"evaluator"`
	Tracker   TrackerConfig    `mapstructure:"tracker"`
	Log       LogConfig        `mapstructure:"log"`
}

// StopperConfig accepts the direction either as direction or as the
// larger_is_better flag stored in checkpoints.
type StopperConfig struct {
	stopper.Config `mapstructure:",squash"`
	LargerIsBetter *bool `mapstructure:"larger_is_better"`
}

// EvaluatorConfig points at a remote evaluation service.
type EvaluatorConfig struct {
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TrackerConfig selects where results are reported.
type TrackerConfig struct {
	Backend string `mapstructure:"backend"`
	DBPath  string `mapstructure:"db_path"`
	Prefix  string `mapstructure:"prefix"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Verbose bool `mapstructure:"verbose"`
	Level   int  `mapstructure:"level"` // logr V level enabled in verbose mode
}

// #endregion types

// #region load
// Load reads configuration with precedence (highest to lowest):
// 1. Environment variables (STOPPER_<SECTION>_<KEY>)
// 2. The YAML file at path, or ./stopper.yaml when path is empty
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	} else {
		v.SetConfigName("stopper")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// No default, so AutomaticEnv alone would not see it during Unmarshal.
	if err := v.BindEnv("stopper.larger_is_better"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	d := stopper.DefaultConfig()
	return &Config{
		Stopper:   StopperConfig{Config: d},
		Training:  trainloop.Config{MaxEpochs: 1000, CheckpointPath: "checkpoint.db", CheckpointEvery: 10},
		Evaluator: EvaluatorConfig{Addr: "localhost:50061", Timeout: 30 * time.Second},
		Tracker:   TrackerConfig{Backend: TrackerLog, DBPath: "tracking.db", Prefix: "validation"},
		Log:       LogConfig{Level: 1},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("stopper.enabled", d.Stopper.Enabled)
	v.SetDefault("stopper.frequency", d.Stopper.Frequency)
	v.SetDefault("stopper.patience", d.Stopper.Patience)
	v.SetDefault("stopper.relative_delta", d.Stopper.RelativeDelta)
	v.SetDefault("stopper.metric", d.Stopper.Metric)
	v.SetDefault("stopper.direction", "")

	v.SetDefault("training.max_epochs", d.Training.MaxEpochs)
	v.SetDefault("training.path", d.Training.CheckpointPath)
	v.SetDefault("training.every", d.Training.CheckpointEvery)
	v.SetDefault("training.run_name", "")

	v.SetDefault("evaluator.addr", d.Evaluator.Addr)
	v.SetDefault("evaluator.timeout", d.Evaluator.Timeout.String())

	v.SetDefault("tracker.backend", d.Tracker.Backend)
	v.SetDefault("tracker.db_path", d.Tracker.DBPath)
	v.SetDefault("tracker.prefix", d.Tracker.Prefix)

	v.SetDefault("log.verbose", false)
	v.SetDefault("log.level", d.Log.Level)
}

// #endregion load

// #region validate
// Validate resolves the stopper direction and checks every section.
func (c *Config) Validate() error {
	resolved, err := c.Stopper.Resolve()
	if err != nil {
		return err
	}
	c.Stopper.Config = resolved
	if resolved.Enabled {
		if _, err := resolved.Summary(); err != nil {
			return err
		}
	}
	if c.Training.MaxEpochs < 1 || c.Training.CheckpointEvery < 0 {
		return fmt.Errorf("%w: training needs max_epochs >= 1 and every >= 0", stopper.ErrConfiguration)
	}
	if c.Evaluator.Timeout < 0 {
		return fmt.Errorf("%w: evaluator timeout must not be negative", stopper.ErrConfiguration)
	}
	switch c.Tracker.Backend {
	case TrackerNone, TrackerLog:
	case TrackerSQLite:
		if c.Tracker.DBPath == "" {
			return fmt.Errorf("%w: sqlite tracker needs db_path", stopper.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown tracker backend %q", stopper.ErrConfiguration, c.Tracker.Backend)
	}
	return nil
}

// Resolve folds larger_is_better into the direction. Giving both is allowed
// only when they agree.
func (s StopperConfig) Resolve() (stopper.Config, error) {
	cfg := s.Config
	if s.LargerIsBetter == nil {
		if cfg.Direction == "" {
			cfg.Direction = stopper.Maximize
		}
		return cfg, nil
	}
	want := stopper.Minimize
	if *s.LargerIsBetter {
		want = stopper.Maximize
	}
	if cfg.Direction != "" && cfg.Direction != want {
		return stopper.Config{}, fmt.Errorf("%w: direction %q contradicts larger_is_better=%t",
			stopper.ErrConfiguration, cfg.Direction, *s.LargerIsBetter)
	}
	cfg.Direction = want
	return cfg, nil
}

// #endregion validate
