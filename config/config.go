// Package config loads marshalling options from defaults, a config file and
// the environment, in that order of increasing priority.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/reoring/beantree"
	"github.com/reoring/beantree/format"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "BEANTREE_"

// sections are nested config maps; their env variables map
// BEANTREE_FORMAT_MAX_DEPTH to format.max_depth.
var sections = []string{"format", "log"}

// Config is the file and environment shape of the settings.
type Config struct {
	TrimNullProperties   bool   `koanf:"trim_null_properties"`
	TrimEmptyMaps        bool   `koanf:"trim_empty_maps"`
	TrimEmptyCollections bool   `koanf:"trim_empty_collections"`
	DetectRecursions     bool   `koanf:"detect_recursions"`
	IgnoreRecursions     bool   `koanf:"ignore_recursions"`
	SortProperties       bool   `koanf:"sort_properties"`
	Unknown              string `koanf:"unknown"`
	MaxDepth             int    `koanf:"max_depth"`

	Format FormatConfig `koanf:"format"`
	Log    LogConfig    `koanf:"log"`
}

// FormatConfig configures the wire format parsers and emitters.
type FormatConfig struct {
	Indent     string `koanf:"indent"`
	Duplicates string `koanf:"duplicates"`
	MaxDepth   int    `koanf:"max_depth"`
	MaxBytes   int64  `koanf:"max_bytes"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Defaults returns the configuration of an empty file and environment.
func Defaults() map[string]any {
	m := beantree.DefaultOptions().AsMap()
	m["format.indent"] = ""
	m["format.duplicates"] = "error"
	m["format.max_depth"] = format.DefaultMaxDepth
	m["format.max_bytes"] = 0
	m["log.level"] = "info"
	m["log.format"] = "text"
	return m
}

// Option configures Load.
type Option func(*loader)

type loader struct {
	file      string
	envPrefix string
	noEnv     bool
	overrides map[string]any
}

// WithFile loads path between the defaults and the environment. The parser
// follows the extension: .yaml/.yml, .json or .jsonc.
func WithFile(path string) Option { return func(l *loader) { l.file = path } }

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option { return func(l *loader) { l.envPrefix = prefix } }

// WithoutEnv skips the environment.
func WithoutEnv() Option { return func(l *loader) { l.noEnv = true } }

// WithOverrides applies flat keys ("format.indent") last, for command line
// flags.
func WithOverrides(m map[string]any) Option {
	return func(l *loader) {
		if l.overrides == nil {
			l.overrides = map[string]any{}
		}
		for k, v := range m {
			l.overrides[k] = v
		}
	}
}

// Load reads the configuration.
func Load(opts ...Option) (*Config, error) {
	l := &loader{envPrefix: DefaultEnvPrefix}
	for _, o := range opts {
		o(l)
	}

	k := koanf.New(".")
	if err := k.Load(mapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if l.file != "" {
		p, err := parserFor(l.file)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(l.file), p); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", l.file, err)
		}
	}
	if !l.noEnv {
		if err := k.Load(env.Provider(l.envPrefix, ".", envKey(l.envPrefix)), nil); err != nil {
			return nil, fmt.Errorf("load env: %w", err)
		}
	}
	if len(l.overrides) > 0 {
		if err := k.Load(mapProvider(l.overrides), nil); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := c.Options(); err != nil {
		return nil, err
	}
	return &c, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json", ".jsonc":
		return jsoncParser{}, nil
	}
	return nil, fmt.Errorf("config file %s: unsupported extension", path)
}

// envKey maps BEANTREE_TRIM_NULL_PROPERTIES to trim_null_properties and
// BEANTREE_LOG_LEVEL to log.level.
func envKey(prefix string) func(string) string {
	return func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, prefix))
		for _, sec := range sections {
			if strings.HasPrefix(s, sec+"_") {
				return sec + "." + strings.TrimPrefix(s, sec+"_")
			}
		}
		return s
	}
}

// Options converts the top-level settings.
func (c *Config) Options() (beantree.Options, error) {
	u, err := beantree.ParseUnknownPolicy(c.Unknown)
	if err != nil {
		return beantree.Options{}, err
	}
	o := beantree.Options{
		TrimNullProperties:   c.TrimNullProperties,
		TrimEmptyMaps:        c.TrimEmptyMaps,
		TrimEmptyCollections: c.TrimEmptyCollections,
		DetectRecursions:     c.DetectRecursions,
		IgnoreRecursions:     c.IgnoreRecursions,
		SortProperties:       c.SortProperties,
		Unknown:              u,
		MaxDepth:             c.MaxDepth,
	}
	if o.MaxDepth < 0 {
		return o, fmt.Errorf("%w: max_depth must not be negative", beantree.ErrInvalidOptions)
	}
	return o, nil
}

// FormatOptions returns the options for format.Lookup.
func (c *Config) FormatOptions() format.Options {
	return format.Options{
		Indent:     c.Format.Indent,
		Duplicates: c.Format.Duplicates,
		MaxDepth:   c.Format.MaxDepth,
		MaxBytes:   c.Format.MaxBytes,
	}
}

// NewBuilder returns a Builder carrying the loaded options.
func (c *Config) NewBuilder() (*beantree.Builder, error) {
	o, err := c.Options()
	if err != nil {
		return nil, err
	}
	return beantree.NewBuilder().Apply(o), nil
}

// ErrLogLevel reports an unrecognized log.level.
var ErrLogLevel = errors.New("config: unknown log level")

// Level parses log.level.
func (c *Config) Level() (slog.Level, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return lv, fmt.Errorf("%w %q", ErrLogLevel, c.Log.Level)
	}
	return lv, nil
}
