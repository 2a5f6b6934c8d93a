package codec

import (
	"encoding"
	"fmt"
	"net/url"
	"reflect"
	"time"
)

// URL returns a Swap that converts between *url.URL and its string form.
func URL() Swap {
	return WithFormat(New("url",
		func(u *url.URL) (string, error) {
			if u == nil {
				return "", nil
			}
			return u.String(), nil
		},
		url.Parse,
	), "uri")
}

// Duration returns a Swap that converts between time.Duration and the
// strings produced by Duration.String ("1h2m3s").
func Duration() Swap {
	return WithFormat(New("duration",
		func(d time.Duration) (string, error) { return d.String(), nil },
		time.ParseDuration,
	), "duration")
}

// Defaults returns the swaps registered by a Builder unless disabled.
func Defaults() []Swap {
	return []Swap{URL(), TimeRFC3339(), Duration(), Text()}
}

// Extras returns named swaps that are only used when a property declares
// them.
func Extras() []Swap {
	return []Swap{TimeUnix()}
}

var (
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	stringType          = reflect.TypeFor[string]()
)

// Text returns a generic Swap for types whose pointer implements both
// encoding.TextMarshaler and encoding.TextUnmarshaler. T and *T match
// alike, so a value converts the same way however it is held. It is
// instantiated per concrete type.
func Text() Generic { return &textSwap{} }

type textSwap struct {
	concrete reflect.Type
}

func (s *textSwap) Name() string         { return "text" }
func (s *textSwap) Domain() reflect.Type { return textMarshalerType }
func (s *textSwap) Wire() reflect.Type   { return stringType }
func (s *textSwap) Priority() int        { return -1 }

// Matches accepts T and *T when *T round-trips through text.
func (s *textSwap) Matches(t reflect.Type) bool {
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() == reflect.Pointer || base.Kind() == reflect.Interface {
		return false
	}
	pt := reflect.PointerTo(base)
	return pt.Implements(textMarshalerType) && pt.Implements(textUnmarshalerType)
}

func (s *textSwap) Instantiate(concrete reflect.Type) Swap {
	return &textSwap{concrete: concrete}
}

func (s *textSwap) Encode(v reflect.Value) (any, error) {
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, nil
	}
	if v.Kind() != reflect.Pointer {
		// pointer receivers need an addressable copy
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		v = p
	}
	m, ok := v.Interface().(encoding.TextMarshaler)
	if !ok {
		return nil, fmt.Errorf("codec: text: %v does not implement encoding.TextMarshaler", v.Type())
	}
	b, err := m.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *textSwap) Decode(w reflect.Value, target reflect.Type) (reflect.Value, error) {
	t := target
	if t == nil {
		t = s.concrete
	}
	if t == nil {
		return reflect.Value{}, fmt.Errorf("codec: text: no concrete type to decode into")
	}
	isPtr := t.Kind() == reflect.Pointer
	base := t
	if isPtr {
		base = t.Elem()
	}
	if !reflect.PointerTo(base).Implements(textUnmarshalerType) {
		return reflect.Value{}, fmt.Errorf("codec: text: %v does not implement encoding.TextUnmarshaler", reflect.PointerTo(base))
	}
	p := reflect.New(base)
	if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(w.String())); err != nil {
		return reflect.Value{}, err
	}
	if isPtr {
		return p, nil
	}
	return p.Elem(), nil
}
