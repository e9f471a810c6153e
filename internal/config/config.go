// Package config loads scriptdelta's YAML configuration.
//
// A missing file means defaults. Environment variables override the file:
//
//	SCRIPTDELTA_MODE  analysis.mode
//	SCRIPTDELTA_DB    store.path
//	LOG_LEVEL         log.level
//	LOG_FORMAT        log.format
//
// The merged result is validated before use.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/scriptdelta/internal/orchestrator"
	"github.com/roach88/scriptdelta/internal/tracker"
)

// CurrentVersion is the only supported config file version.
const CurrentVersion = 1

// Environment variable names.
const (
	EnvMode      = "SCRIPTDELTA_MODE"
	EnvDB        = "SCRIPTDELTA_DB"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"
)

// Config is the root of the configuration file.
type Config struct {
	Version  int            `yaml:"version" validate:"eq=1"`
	Analysis AnalysisConfig `yaml:"analysis"`
	History  HistoryConfig  `yaml:"history"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
}

// AnalysisConfig configures the orchestrator.
type AnalysisConfig struct {
	CacheEnabled  bool     `yaml:"cache_enabled"`
	CacheTTL      Duration `yaml:"cache_ttl" validate:"gt=0"`
	MaxConcurrent int      `yaml:"max_concurrent" validate:"gte=1,lte=64"`
	SmartBatching bool     `yaml:"smart_batching"`
	Mode          string   `yaml:"mode" validate:"oneof=aggressive balanced conservative"`
	MaxPreload    int      `yaml:"max_preload" validate:"gte=0,lte=16"`
	PreloadDelay  Duration `yaml:"preload_delay" validate:"gte=0"`
}

// HistoryConfig bounds the change tracker.
type HistoryConfig struct {
	MaxEventsPerScript int `yaml:"max_events_per_script" validate:"gte=1"`
	MaxScripts         int `yaml:"max_scripts" validate:"gte=1"`
}

// StoreConfig locates the sqlite history database. An empty path disables
// persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Duration is a time.Duration written as a Go duration string ("30m").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in configuration.
func Default() Config {
	o := orchestrator.DefaultConfig()
	return Config{
		Version: CurrentVersion,
		Analysis: AnalysisConfig{
			CacheEnabled:  o.CacheEnabled,
			CacheTTL:      Duration(o.CacheTTL),
			MaxConcurrent: o.MaxConcurrent,
			SmartBatching: o.SmartBatching,
			Mode:          string(o.Mode),
			MaxPreload:    o.MaxPreload,
			PreloadDelay:  Duration(o.PreloadDelay),
		},
		History: HistoryConfig{
			MaxEventsPerScript: tracker.DefaultMaxEventsPerScript,
			MaxScripts:         tracker.DefaultMaxScripts,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := Parse(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg. Fields absent from data keep cfg's values;
// unknown fields are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from the environment. getenv is os.Getenv outside
// tests.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvMode); v != "" {
		c.Analysis.Mode = strings.ToLower(v)
	}
	if v := getenv(EnvDB); v != "" {
		c.Store.Path = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv(EnvLogFormat); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
}

var validate = validator.New()

// Validate checks every field constraint and reports all violations.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Orchestrator converts the analysis section.
func (c *Config) Orchestrator() orchestrator.Config {
	return orchestrator.Config{
		CacheEnabled:  c.Analysis.CacheEnabled,
		CacheTTL:      time.Duration(c.Analysis.CacheTTL),
		MaxConcurrent: c.Analysis.MaxConcurrent,
		SmartBatching: c.Analysis.SmartBatching,
		Mode:          orchestrator.Mode(c.Analysis.Mode),
		MaxPreload:    c.Analysis.MaxPreload,
		PreloadDelay:  time.Duration(c.Analysis.PreloadDelay),
	}
}
