package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/reoring/beantree"
	"github.com/reoring/beantree/config"
	"github.com/reoring/beantree/format"
	_ "github.com/reoring/beantree/format/cbor"
	_ "github.com/reoring/beantree/format/json"
	_ "github.com/reoring/beantree/format/yaml"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

const (
	metaConfig = "config"
	metaLogger = "logger"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "beantree",
		Usage:   "convert documents through the canonical tree",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			convertCommand(),
			optionsCommand(),
			digestCommand(),
		},
		Before:   setup,
		Metadata: map[string]any{},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "config file (.yaml, .yml, .json, .jsonc)",
			EnvVars: []string{"BEANTREE_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "text or json",
		},
	}
}

// setup loads the configuration and the logger into the app metadata.
func setup(c *cli.Context) error {
	opts := []config.Option{}
	if f := c.String("config"); f != "" {
		opts = append(opts, config.WithFile(f))
	}
	over := map[string]any{}
	if c.IsSet("log-level") {
		over["log.level"] = c.String("log-level")
	}
	if c.IsSet("log-format") {
		over["log.format"] = c.String("log-format")
	}
	opts = append(opts, config.WithOverrides(over))

	cfg, err := config.Load(opts...)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, c.App.ErrWriter)
	if err != nil {
		return err
	}
	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaLogger] = log
	return nil
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	lv, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	ho := &slog.HandlerOptions{Level: lv}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, ho)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, ho)), nil
	}
	return nil, fmt.Errorf("config: unknown log format %q", cfg.Log.Format)
}

func loadedConfig(c *cli.Context) *config.Config {
	cfg, _ := c.App.Metadata[metaConfig].(*config.Config)
	return cfg
}

func logger(c *cli.Context) *slog.Logger {
	if l, ok := c.App.Metadata[metaLogger].(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// newContext builds the marshalling context from the loaded configuration.
func newContext(c *cli.Context) (*beantree.Context, error) {
	b, err := loadedConfig(c).NewBuilder()
	if err != nil {
		return nil, err
	}
	return b.Logger(logger(c)).Build()
}

// formatOptions returns the configured format options. Duplicate key
// warnings go to the log.
func formatOptions(c *cli.Context, name string) format.Options {
	fo := loadedConfig(c).FormatOptions()
	log := logger(c)
	fo.Warn = func(path, message string) {
		log.Warn("input issue", "format", name, "path", path, "message", message)
	}
	return fo
}

// readInput reads the first argument, or stdin when it is absent or "-".
func readInput(c *cli.Context) ([]byte, error) {
	name := c.Args().First()
	if name == "" || name == "-" {
		r := c.App.Reader
		if r == nil {
			r = os.Stdin
		}
		return io.ReadAll(r)
	}
	return os.ReadFile(name)
}

func writeOutput(c *cli.Context, b []byte) error {
	w := c.App.Writer
	if w == nil {
		w = os.Stdout
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	if n := len(b); n > 0 && b[n-1] != '\n' && isText(c) {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

// isText reports whether the command writes a text format.
func isText(c *cli.Context) bool {
	if c.String("compress") != "" && c.String("compress") != "none" {
		return false
	}
	return c.String("to") != "cbor"
}
