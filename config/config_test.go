package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/beantree"
	"github.com/reoring/beantree/config"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := config.Load(config.WithoutEnv())
	require.NoError(t, err)
	o, err := c.Options()
	require.NoError(t, err)
	assert.Equal(t, beantree.DefaultOptions(), o)
	assert.Equal(t, "error", c.Format.Duplicates)
	assert.Equal(t, "text", c.Log.Format)
	lv, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lv)
}

func TestLoad_YAMLFile(t *testing.T) {
	p := write(t, "beantree.yaml", `
trim_null_properties: true
detect_recursions: true
ignore_recursions: true
unknown: passthrough
max_depth: 64
format:
  indent: "  "
  duplicates: warn
log:
  level: debug
`)
	c, err := config.Load(config.WithFile(p), config.WithoutEnv())
	require.NoError(t, err)
	o, err := c.Options()
	require.NoError(t, err)
	assert.True(t, o.TrimNullProperties)
	assert.True(t, o.IgnoreRecursions)
	assert.Equal(t, beantree.UnknownPassthrough, o.Unknown)
	assert.Equal(t, 64, o.MaxDepth)

	fo := c.FormatOptions()
	assert.Equal(t, "  ", fo.Indent)
	assert.Equal(t, "warn", fo.Duplicates)

	lv, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lv)

	b, err := c.NewBuilder()
	require.NoError(t, err)
	ctx, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "passthrough", ctx.AsMap()["unknown"])
}

func TestLoad_JSONCFile(t *testing.T) {
	p := write(t, "beantree.jsonc", `{
  // comments and trailing commas are fine
  "sort_properties": true,
  "format": {"max_bytes": 1024,},
}`)
	c, err := config.Load(config.WithFile(p), config.WithoutEnv())
	require.NoError(t, err)
	assert.True(t, c.SortProperties)
	assert.EqualValues(t, 1024, c.Format.MaxBytes)
	assert.Equal(t, "error", c.Format.Duplicates, "defaults survive a partial section")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	p := write(t, "beantree.yml", "trim_empty_maps: false\nformat:\n  indent: \"\\t\"\n")
	t.Setenv("BEANTREE_TRIM_EMPTY_MAPS", "true")
	t.Setenv("BEANTREE_FORMAT_MAX_DEPTH", "7")
	t.Setenv("BEANTREE_LOG_LEVEL", "warn")

	c, err := config.Load(config.WithFile(p))
	require.NoError(t, err)
	assert.True(t, c.TrimEmptyMaps)
	assert.Equal(t, 7, c.Format.MaxDepth)
	assert.Equal(t, "\t", c.Format.Indent)
	assert.Equal(t, "warn", c.Log.Level)
}

func TestLoad_OverridesWin(t *testing.T) {
	t.Setenv("BEANTREE_LOG_FORMAT", "json")
	c, err := config.Load(config.WithOverrides(map[string]any{"log.format": "text", "sort_properties": true}))
	require.NoError(t, err)
	assert.Equal(t, "text", c.Log.Format)
	assert.True(t, c.SortProperties)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(config.WithFile(filepath.Join(t.TempDir(), "missing.yaml")), config.WithoutEnv())
	assert.Error(t, err)

	_, err = config.Load(config.WithFile(write(t, "c.toml", "")), config.WithoutEnv())
	assert.ErrorContains(t, err, "unsupported extension")

	_, err = config.Load(config.WithFile(write(t, "c.yaml", "unknown: sometimes\n")), config.WithoutEnv())
	assert.True(t, errors.Is(err, beantree.ErrInvalidOptions))

	c, err := config.Load(config.WithoutEnv(), config.WithOverrides(map[string]any{"log.level": "loud"}))
	require.NoError(t, err)
	_, err = c.Level()
	assert.ErrorIs(t, err, config.ErrLogLevel)
}
