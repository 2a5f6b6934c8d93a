package beantree

import (
	"fmt"
	"strings"
)

// UnknownPolicy controls how the binder handles map keys that name no
// property of the target bean.
type UnknownPolicy int

const (
	UnknownStrict      UnknownPolicy = iota // Reject unknown keys with an error.
	UnknownStrip                            // Drop unknown keys.
	UnknownPassthrough                      // Keep unknown keys in the field tagged `unknown` (dropped when absent).
)

// String returns the config spelling of the policy.
func (p UnknownPolicy) String() string {
	switch p {
	case UnknownStrip:
		return "strip"
	case UnknownPassthrough:
		return "passthrough"
	default:
		return "strict"
	}
}

// ParseUnknownPolicy parses "strict", "strip" or "passthrough".
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return UnknownStrict, nil
	case "strip", "ignore":
		return UnknownStrip, nil
	case "passthrough":
		return UnknownPassthrough, nil
	default:
		return UnknownStrict, fmt.Errorf("%w: unknown policy %q", ErrInvalidOptions, s)
	}
}

// DefaultMaxDepth bounds traversal depth when no explicit limit is set.
const DefaultMaxDepth = 256

// Options is the full set of recognized settings frozen into a Context.
type Options struct {
	TrimNullProperties   bool // Omit null-valued bean properties.
	TrimEmptyMaps        bool // Omit bean properties whose value is an empty map.
	TrimEmptyCollections bool // Omit bean properties whose value is an empty list.
	DetectRecursions     bool // Scan ancestors for the object being entered.
	IgnoreRecursions     bool // On a cycle, omit the edge instead of failing. Requires DetectRecursions.
	SortProperties       bool // Emit bean properties sorted by name.
	Unknown              UnknownPolicy
	MaxDepth             int // Traversal depth guard; 0 means DefaultMaxDepth.
}

// DefaultOptions returns the options of a fresh Builder.
func DefaultOptions() Options {
	return Options{MaxDepth: DefaultMaxDepth}
}

func (o Options) validate() error {
	if o.IgnoreRecursions && !o.DetectRecursions {
		return fmt.Errorf("%w: IgnoreRecursions requires DetectRecursions", ErrInvalidOptions)
	}
	if o.MaxDepth < 0 {
		return fmt.Errorf("%w: MaxDepth must not be negative", ErrInvalidOptions)
	}
	return nil
}

// AsMap returns the options keyed by their config names.
func (o Options) AsMap() map[string]any {
	return map[string]any{
		"trim_null_properties":   o.TrimNullProperties,
		"trim_empty_maps":        o.TrimEmptyMaps,
		"trim_empty_collections": o.TrimEmptyCollections,
		"detect_recursions":      o.DetectRecursions,
		"ignore_recursions":      o.IgnoreRecursions,
		"sort_properties":        o.SortProperties,
		"unknown":                o.Unknown.String(),
		"max_depth":              o.MaxDepth,
	}
}
