// Package config loads process configuration for the searchexpr binaries
// from searchexpr.yaml and SEARCHEXPR_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. SEARCHEXPR_LOG_LEVEL.
const EnvPrefix = "SEARCHEXPR"

// Config is the full process configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Eval     EvalConfig     `mapstructure:"eval"`
	Provider ProviderConfig `mapstructure:"provider"`
	Server   ServerConfig   `mapstructure:"server"`
	Batch    BatchConfig    `mapstructure:"batch"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EvalConfig holds evaluator defaults.
type EvalConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheSize int           `mapstructure:"cache_size"`
	MaxDepth  int           `mapstructure:"max_depth"`
	// Seed fixes the random source of the random evaluator; 0 keeps it random.
	Seed  uint64 `mapstructure:"seed"`
	Debug bool   `mapstructure:"debug"`
}

// ProviderConfig points at the record data.
type ProviderConfig struct {
	Dataset string `mapstructure:"dataset"`
	SQLite  string `mapstructure:"sqlite"`
	Schema  string `mapstructure:"schema"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// BatchConfig configures batch evaluation.
type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Eval:   EvalConfig{Timeout: 30 * time.Second, CacheSize: 256, MaxDepth: 1000},
		Server: ServerConfig{Addr: ":8080"},
		Batch:  BatchConfig{Workers: 4},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("eval.timeout", d.Eval.Timeout)
	v.SetDefault("eval.cache_size", d.Eval.CacheSize)
	v.SetDefault("eval.max_depth", d.Eval.MaxDepth)
	v.SetDefault("eval.seed", d.Eval.Seed)
	v.SetDefault("eval.debug", d.Eval.Debug)
	v.SetDefault("provider.dataset", d.Provider.Dataset)
	v.SetDefault("provider.sqlite", d.Provider.SQLite)
	v.SetDefault("provider.schema", d.Provider.Schema)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("batch.workers", d.Batch.Workers)
}

// Load reads the configuration. With an empty path, searchexpr.yaml is
// looked up in the working directory and may be absent; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("searchexpr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config")
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.Errorf("invalid log format %q", c.Log.Format)
	}
	if c.Eval.Timeout < 0 {
		return errors.Errorf("invalid eval timeout %s", c.Eval.Timeout)
	}
	if c.Eval.CacheSize < 0 {
		return errors.Errorf("invalid eval cache size %d", c.Eval.CacheSize)
	}
	if c.Batch.Workers < 1 {
		return errors.Errorf("invalid batch workers %d", c.Batch.Workers)
	}
	return nil
}
