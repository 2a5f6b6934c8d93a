// Package codec provides swaps: bidirectional converters between a domain
// type that the engine should not introspect (URLs, times, durations, ...)
// and a surrogate wire value the engine walks instead.
package codec

import (
	"errors"
	"fmt"
	"reflect"
)

// Swap performs bidirectional transformation between a domain type and its
// wire surrogate.
type Swap interface {
	// Name identifies the swap for property-level declarations (swap=<name>).
	Name() string
	// Domain is the type being replaced. It may be an interface type, in which
	// case the swap applies to every concrete type implementing it.
	Domain() reflect.Type
	// Wire is the surrogate type produced by Encode and consumed by Decode.
	Wire() reflect.Type
	// Encode converts a domain value into its surrogate (domain -> wire).
	Encode(v reflect.Value) (any, error)
	// Decode converts a bound surrogate back into a value assignable to
	// target (wire -> domain).
	Decode(w reflect.Value, target reflect.Type) (reflect.Value, error)
}

// Prioritized is implemented by interface-domain swaps that must win over
// other matching interface swaps. Higher wins; the default is 0.
type Prioritized interface {
	Priority() int
}

// Generic is implemented by swaps declared against a type parameter (an
// interface domain). Instantiate resolves the parameter against the concrete
// type met at runtime and returns a swap bound to it.
type Generic interface {
	Swap
	Instantiate(concrete reflect.Type) Swap
}

// Matcher is implemented by interface-domain swaps that convert only some of
// the types implementing Domain.
type Matcher interface {
	Matches(t reflect.Type) bool
}

// Matches reports whether s converts values of type t itself.
func Matches(s Swap, t reflect.Type) bool {
	if m, ok := s.(Matcher); ok {
		return m.Matches(t)
	}
	d := s.Domain()
	if d.Kind() == reflect.Interface {
		return t.Implements(d)
	}
	return t == d || t.AssignableTo(d)
}

// Formatter optionally names the JSON Schema format of the wire value
// ("date-time", "uri", ...).
type Formatter interface {
	Format() string
}

// ErrAmbiguous is matched by *AmbiguousError via errors.Is.
var ErrAmbiguous = errors.New("codec: ambiguous swap")

// AmbiguousError reports that more than one swap applies to Type with no
// precedence between them.
type AmbiguousError struct {
	Type       reflect.Type
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("codec: swaps %v all apply to %v with equal priority", e.Candidates, e.Type)
}

func (e *AmbiguousError) Is(target error) bool { return target == ErrAmbiguous }

// New returns a Swap converting D to W with encode and back with decode.
func New[D, W any](name string, encode func(D) (W, error), decode func(W) (D, error)) Swap {
	return &funcSwap[D, W]{
		name:   name,
		domain: reflect.TypeFor[D](),
		wire:   reflect.TypeFor[W](),
		enc:    encode,
		dec:    decode,
	}
}

// WithFormat attaches a JSON Schema format name to s.
func WithFormat(s Swap, format string) Swap { return &formatted{Swap: s, format: format} }

type formatted struct {
	Swap
	format string
}

func (f *formatted) Format() string { return f.format }

type funcSwap[D, W any] struct {
	name   string
	domain reflect.Type
	wire   reflect.Type
	enc    func(D) (W, error)
	dec    func(W) (D, error)
}

func (s *funcSwap[D, W]) Name() string         { return s.name }
func (s *funcSwap[D, W]) Domain() reflect.Type { return s.domain }
func (s *funcSwap[D, W]) Wire() reflect.Type   { return s.wire }

func (s *funcSwap[D, W]) Encode(v reflect.Value) (any, error) {
	d, ok := v.Interface().(D)
	if !ok {
		return nil, fmt.Errorf("codec: %s: cannot encode %v", s.name, v.Type())
	}
	return s.enc(d)
}

func (s *funcSwap[D, W]) Decode(w reflect.Value, target reflect.Type) (reflect.Value, error) {
	wv, ok := w.Interface().(W)
	if !ok {
		return reflect.Value{}, fmt.Errorf("codec: %s: cannot decode from %v", s.name, w.Type())
	}
	d, err := s.dec(wv)
	if err != nil {
		return reflect.Value{}, err
	}
	return convertTo(reflect.ValueOf(&d).Elem(), target, s.name)
}

// convertTo adapts a decoded domain value to the requested target type.
func convertTo(v reflect.Value, target reflect.Type, name string) (reflect.Value, error) {
	switch {
	case target == nil || v.Type() == target:
		return v, nil
	case v.Type().AssignableTo(target):
		out := reflect.New(target).Elem()
		out.Set(v)
		return out, nil
	case target.Kind() == reflect.Pointer && v.Type().AssignableTo(target.Elem()):
		p := reflect.New(target.Elem())
		p.Elem().Set(v)
		return p, nil
	case v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Type().AssignableTo(target):
		return v.Elem(), nil
	}
	return reflect.Value{}, fmt.Errorf("codec: %s: decoded %v is not assignable to %v", name, v.Type(), target)
}
