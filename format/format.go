// Package format defines the boundary between canonical trees and wire
// formats. Implementations live in the subpackages and register themselves
// on import.
package format

import (
	"fmt"
	"sort"
	"sync"

	"github.com/reoring/beantree"
	eng "github.com/reoring/beantree/internal/engine"
)

// Format renders and parses canonical trees.
type Format interface {
	Name() string
	Marshal(n *beantree.Node) ([]byte, error)
	Unmarshal(data []byte) (*beantree.Node, error)
}

// Options configures a Format instance. The zero value is usable.
type Options struct {
	// Indent pretty-prints with the given indent where the format supports it.
	Indent string
	// Duplicates is "error" (default), "warn" or "ignore".
	Duplicates string
	// MaxDepth bounds nesting while parsing. Zero means DefaultMaxDepth.
	MaxDepth int
	// MaxBytes rejects larger inputs. Zero disables the check.
	MaxBytes int64
	// Warn receives non-fatal parse issues such as tolerated duplicate keys.
	Warn func(path, message string)
}

// DefaultMaxDepth is the parse nesting limit when Options.MaxDepth is zero.
const DefaultMaxDepth = 512

// Factory builds a Format from options.
type Factory func(Options) Format

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a format available to Lookup. Registering a name twice
// replaces the earlier factory.
func Register(name string, f Factory) {
	if f == nil {
		return
	}
	mu.Lock()
	factories[name] = f
	mu.Unlock()
}

// Lookup returns the registered format called name.
func Lookup(name string, opt Options) (Format, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("format: unknown format %q (have %v)", name, Names())
	}
	return f(opt), nil
}

// Names lists the registered formats.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// CheckSize enforces MaxBytes on a whole input.
func (o Options) CheckSize(data []byte) error {
	if o.MaxBytes > 0 && int64(len(data)) > o.MaxBytes {
		return eng.IssueError{SimpleIssue: eng.SimpleIssue{Code: eng.CodeTruncated, Path: "/",
			Message: fmt.Sprintf("input of %d bytes exceeds %d", len(data), o.MaxBytes)}}
	}
	return nil
}

// Depth returns the effective nesting limit.
func (o Options) Depth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// Tree builds a tree from src under the duplicate key and depth limits of o.
func (o Options) Tree(src eng.TokenSource) (*beantree.Node, error) {
	dup, ok := eng.ParseDuplicateStrictness(o.Duplicates)
	if !ok {
		return nil, fmt.Errorf("format: unknown duplicate policy %q", o.Duplicates)
	}
	var sink func(eng.SimpleIssue)
	if o.Warn != nil {
		sink = func(si eng.SimpleIssue) {
			if si.Code == eng.CodeDuplicateKey && dup == eng.DupWarn {
				o.Warn(si.Path, si.Message)
			}
		}
	}
	return eng.Tree(eng.WrapWithEnforcement(src, eng.EnforceOptions{
		OnDuplicate: dup,
		MaxDepth:    o.Depth(),
		MaxBytes:    o.MaxBytes,
		IssueSink:   sink,
	}))
}
