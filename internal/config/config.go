// Package config loads graphrecon settings from defaults, an optional YAML
// file, GRAPHRECON_* environment variables and bound command flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when reading the environment:
// GRAPHRECON_DB, GRAPHRECON_ACTOR_ID, ...
const EnvPrefix = "GRAPHRECON"

// Keys understood by Load.
const (
	KeyDB             = "db"
	KeyActorID        = "actor_id"
	KeyOwnedByID      = "owned_by_id"
	KeyDraft          = "draft"
	KeyMaxConcurrency = "max_concurrency"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"
)

// Config holds resolved settings.
type Config struct {
	DB             string `mapstructure:"db"`
	ActorID        string `mapstructure:"actor_id"`
	OwnedByID      string `mapstructure:"owned_by_id"`
	Draft          bool   `mapstructure:"draft"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`

	// ConfigFile is the file that was read, if any.
	ConfigFile string `mapstructure:"-"`
}

// New returns a viper instance with defaults and environment binding set up.
// Callers bind command flags onto it with BindPFlag before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyDB, "graphrecon.db")
	v.SetDefault(KeyActorID, "")
	v.SetDefault(KeyOwnedByID, "")
	v.SetDefault(KeyDraft, false)
	v.SetDefault(KeyMaxConcurrency, 0)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configFile (when non-empty) into v and decodes the result.
// A named file that cannot be read is an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("%s must be >= 0, got %d", KeyMaxConcurrency, c.MaxConcurrency))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%s must be \"text\" or \"json\", got %q", KeyLogFormat, c.LogFormat))
	}
	return errors.Join(errs...)
}

// Logger builds a slog logger writing to w with the configured level and
// format.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	return level, nil
}
