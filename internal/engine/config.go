package engine

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"scout/internal/calibrate"
	"scout/internal/errors"
	"scout/internal/scan"
)

// ConfigFileName is the optional per-repo engine configuration, read
// from `.scout/config.json` under the target root. Reading it is the
// only thing the engine ever does with it; absence means defaults.
const ConfigFileName = "config.json"

// Config is the tunable engine surface. Every field has a default; a
// config file or SCOUT_* environment variable overrides it, and CLI
// flags override both.
type Config struct {
	MinConfidence      float64 `mapstructure:"min_confidence"`
	AmbiguityThreshold float64 `mapstructure:"ambiguity_threshold"`
	MaxFiles           int     `mapstructure:"max_files"`
	MaxSeconds         int     `mapstructure:"max_seconds"`
	Workers            int     `mapstructure:"workers"`
	ReuseMaxMinutes    int     `mapstructure:"reuse_max_minutes"`
}

// LoadConfig resolves the engine configuration for a target root.
// A missing file yields defaults; an unparseable one is a ConfigError,
// because silently ignoring explicit tuning would mask typos.
func LoadConfig(targetRoot string) (Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("SCOUT")
	v.AutomaticEnv()

	defaults := calibrate.DefaultThresholds()
	budget := scan.DefaultBudget()
	reuse := scan.DefaultReusePolicy()
	v.SetDefault("min_confidence", defaults.MinConfidence)
	v.SetDefault("ambiguity_threshold", defaults.AmbiguityThreshold)
	v.SetDefault("max_files", budget.MaxFiles)
	v.SetDefault("max_seconds", int(budget.MaxDuration/time.Second))
	v.SetDefault("workers", 4)
	v.SetDefault("reuse_max_minutes", int(reuse.MaxAge/time.Minute))

	path := filepath.Join(targetRoot, ".scout", ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.New(errors.ConfigError, "failed to parse engine config", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.New(errors.ConfigError, "failed to decode engine config", err)
	}
	return cfg, nil
}

// Thresholds converts the config into calibration thresholds.
func (c Config) Thresholds() calibrate.Thresholds {
	return calibrate.Thresholds{
		MinConfidence:      c.MinConfidence,
		AmbiguityThreshold: c.AmbiguityThreshold,
	}
}

// Budget converts the config into a scan budget.
func (c Config) Budget() scan.Budget {
	return scan.Budget{
		MaxFiles:    c.MaxFiles,
		MaxDuration: time.Duration(c.MaxSeconds) * time.Second,
	}
}

// Reuse converts the config into a reuse policy, keeping the stock
// sampling parameters.
func (c Config) Reuse() scan.ReusePolicy {
	p := scan.DefaultReusePolicy()
	p.MaxAge = time.Duration(c.ReuseMaxMinutes) * time.Minute
	return p
}
