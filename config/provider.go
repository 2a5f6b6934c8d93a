package config

import (
	"errors"
	"strings"

	j "github.com/goccy/go-json"
	"github.com/tidwall/jsonc"
)

// ErrReadBytesNotSupported is returned by providers that only support Read.
var ErrReadBytesNotSupported = errors.New("config: ReadBytes not supported")

// mapProvider is a koanf provider over flat or nested maps.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) { return nil, ErrReadBytesNotSupported }

// Read unflattens dotted keys so they merge with file sections.
func (m mapProvider) Read() (map[string]any, error) {
	out := map[string]any{}
	for k, v := range m {
		cur := out
		parts := strings.Split(k, ".")
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[p] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = v
	}
	return out, nil
}

// jsoncParser parses JSON with comments and trailing commas.
type jsoncParser struct{}

func (jsoncParser) Unmarshal(b []byte) (map[string]any, error) {
	var out map[string]any
	if err := j.Unmarshal(jsonc.ToJSON(b), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (jsoncParser) Marshal(m map[string]any) ([]byte, error) { return j.Marshal(m) }
