package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the app with stdin and returns what it wrote to stdout.
func run(t *testing.T, stdin []byte, args ...string) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	app := App()
	app.Reader = bytes.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"beantree"}, args...))
	return out.Bytes(), err
}

func TestConvert_JSONToYAML(t *testing.T) {
	out, err := run(t, []byte(`{"b":1,"a":[true,null]}`), "convert", "--to", "yaml")
	require.NoError(t, err)
	assert.Equal(t, "b: 1\na:\n  - true\n  - null\n", string(out))
}

func TestConvert_IndentAndFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "in.yaml")
	require.NoError(t, os.WriteFile(p, []byte("a: 1\n"), 0o644))

	out, err := run(t, nil, "convert", "--from", "yaml", "--indent", "  ", p)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}\n", string(out))
}

func TestConvert_CompressedCBORRoundTrip(t *testing.T) {
	for _, algo := range []string{"zstd", "lz4"} {
		t.Run(algo, func(t *testing.T) {
			packed, err := run(t, []byte(`{"b":"x","a":[1,2]}`), "convert", "--to", "cbor", "--compress", algo)
			require.NoError(t, err)

			out, err := run(t, packed, "convert", "--from", "cbor", "--decompress", "auto")
			require.NoError(t, err)
			assert.Equal(t, `{"a":[1,2],"b":"x"}`+"\n", string(out))
		})
	}
}

func TestDigest_IndependentOfFormatAndOrder(t *testing.T) {
	a, err := run(t, []byte(`{"name":"x","n":[1,2]}`), "digest")
	require.NoError(t, err)
	b, err := run(t, []byte("n: [1, 2]\nname: x\n"), "digest", "--from", "yaml")
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Len(t, strings.TrimSpace(string(a)), 64)

	c, err := run(t, []byte(`{"name":"y","n":[1,2]}`), "digest")
	require.NoError(t, err)
	assert.NotEqual(t, string(a), string(c))
}

func TestOptions_FromConfigFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "beantree.yaml")
	require.NoError(t, os.WriteFile(p, []byte("sort_properties: true\nunknown: strip\n"), 0o644))

	out, err := run(t, nil, "--config", p, "options", "--to", "json")
	require.NoError(t, err)
	assert.Contains(t, string(out), `"sort_properties":true`)
	assert.Contains(t, string(out), `"unknown":"strip"`)
	assert.Contains(t, string(out), `"max_depth":`)
}

func TestErrors(t *testing.T) {
	_, err := run(t, []byte(`{}`), "convert", "--to", "toml")
	assert.ErrorContains(t, err, "unknown format")

	_, err = run(t, []byte(`{"a":1,"a":2}`), "convert")
	assert.ErrorContains(t, err, "duplicate_key")

	_, err = run(t, []byte(`{}`), "convert", "--compress", "gzip")
	assert.ErrorContains(t, err, "unknown algorithm")

	_, err = run(t, []byte(`{}`), "--log-level", "loud", "options")
	assert.ErrorContains(t, err, "unknown log level")
}

func TestDuplicateWarningIsLogged(t *testing.T) {
	p := filepath.Join(t.TempDir(), "beantree.yaml")
	require.NoError(t, os.WriteFile(p, []byte("format:\n  duplicates: warn\n"), 0o644))

	var logs bytes.Buffer
	var out bytes.Buffer
	app := App()
	app.Reader = strings.NewReader(`{"a":1,"a":2}`)
	app.Writer = &out
	app.ErrWriter = &logs
	require.NoError(t, app.Run([]string{"beantree", "--config", p, "convert"}))
	assert.Equal(t, `{"a":2}`+"\n", out.String())
	assert.Contains(t, logs.String(), "path=/a")
}
