package beantree_test

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/beantree"
)

func TestRoundtrip_NoTrimming(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder())
	orig := pair{S1: nil, S2: ptr("s2")}
	back, n, err := beantree.Roundtrip(c, orig)
	require.NoError(t, err)
	assert.Equal(t, `{s1:null,s2:"s2"}`, n.String())
	assert.Equal(t, orig, back)
}

func TestRoundtrip_TrimNullLeavesUnset(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder().TrimNullProperties(true))
	orig := pair{S2: ptr("s2")}
	back, n, err := beantree.Roundtrip(c, orig)
	require.NoError(t, err)
	_, present := n.Get("s1")
	assert.False(t, present)
	assert.Nil(t, back.S1)
	assert.Equal(t, orig, back)
}

func TestRoundtrip_TrimEmptyContainersLeavesUnset(t *testing.T) {
	orig := containers{F1: map[string]string{}, F2: []string{}}

	plain := mustContext(t, beantree.NewBuilder())
	back, _, err := beantree.Roundtrip(plain, orig)
	require.NoError(t, err)
	assert.NotNil(t, back.F1, "an explicit {} binds to an empty map")
	assert.NotNil(t, back.F2, "an explicit [] binds to an empty slice")

	trimmed := mustContext(t, beantree.NewBuilder().TrimEmptyMaps(true).TrimEmptyCollections(true))
	back, n, err := beantree.Roundtrip(trimmed, orig)
	require.NoError(t, err)
	assert.Equal(t, 0, n.Len())
	assert.Nil(t, back.F1, "trimmed maps stay unset")
	assert.Nil(t, back.F2, "trimmed collections stay unset")
}

func TestRoundtrip_SwapsAndNesting(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder())
	link, _ := url.Parse("https://example.com/a")
	at := time.Date(2025, 1, 1, 12, 30, 0, 0, time.UTC)
	orig := stamped{At: at, Unix: at, Link: link, TTL: time.Minute}
	back, n, err := beantree.Roundtrip(c, orig)
	require.NoError(t, err, spew.Sdump(n))
	assert.True(t, back.At.Equal(at))
	assert.True(t, back.Unix.Equal(at))
	assert.Equal(t, link.String(), back.Link.String())
	assert.Equal(t, time.Minute, back.TTL)
	assert.Nil(t, back.Addr)
}

func TestRoundtrip_BytesMapsAndInterfaces(t *testing.T) {
	type doc struct {
		Raw    []byte            `json:"raw"`
		Counts map[string]int    `json:"counts"`
		ByID   map[int]string    `json:"by_id"`
		Extra  any               `json:"extra"`
		Fixed  [2]int            `json:"fixed"`
		Nested map[string][]bool `json:"nested"`
	}
	c := mustContext(t, beantree.NewBuilder())
	orig := doc{
		Raw:    []byte{0, 1, 2},
		Counts: map[string]int{"a": 1},
		ByID:   map[int]string{3: "c"},
		Extra:  map[string]any{"k": "v"},
		Fixed:  [2]int{4, 5},
		Nested: map[string][]bool{"x": {true, false}},
	}
	back, _, err := beantree.Roundtrip(c, orig)
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

func TestParse_UnknownPolicies(t *testing.T) {
	n := beantree.NewMap(
		beantree.Entry{Key: "s2", Value: beantree.String("x")},
		beantree.Entry{Key: "zz", Value: beantree.Int(1)},
	)

	strict := mustContext(t, beantree.NewBuilder())
	var p pair
	err := strict.Parse(n, &p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, beantree.ErrUnknownProperty))
	e, _ := beantree.AsError(err)
	assert.Equal(t, "/zz", e.Path)
	assert.Equal(t, "zz", e.Params["property"])

	strip := mustContext(t, beantree.NewBuilder().Unknown(beantree.UnknownStrip))
	p = pair{}
	require.NoError(t, strip.Parse(n, &p))
	assert.Equal(t, "x", *p.S2)

	type bag struct {
		S2    string         `json:"s2"`
		Extra map[string]any `beantree:",unknown"`
	}
	pass := mustContext(t, beantree.NewBuilder().Unknown(beantree.UnknownPassthrough))
	b, err := beantree.Bind[bag](pass, n)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"zz": int64(1)}, b.Extra)

	// without a collector, passthrough drops
	p = pair{}
	require.NoError(t, pass.Parse(n, &p))
}

func TestParse_TypeMismatchCarriesPath(t *testing.T) {
	type inner struct {
		Count int8 `json:"count"`
	}
	type outer struct {
		Items []inner `json:"items"`
	}
	c := mustContext(t, beantree.NewBuilder())

	n := beantree.NewMap(beantree.Entry{Key: "items", Value: beantree.NewList(
		beantree.NewMap(beantree.Entry{Key: "count", Value: beantree.Int(1)}),
		beantree.NewMap(beantree.Entry{Key: "count", Value: beantree.String("two")}),
	)})
	_, err := beantree.Bind[outer](c, n)
	require.Error(t, err)
	assert.True(t, errors.Is(err, beantree.ErrTypeMismatch))
	e, _ := beantree.AsError(err)
	assert.Equal(t, "/items/1/count", e.Path)

	overflow := beantree.NewMap(beantree.Entry{Key: "items", Value: beantree.NewList(
		beantree.NewMap(beantree.Entry{Key: "count", Value: beantree.Int(300)}),
	)})
	_, err = beantree.Bind[outer](c, overflow)
	require.Error(t, err)
	e, _ = beantree.AsError(err)
	assert.Equal(t, "/items/0/count", e.Path)
	assert.Contains(t, e.Message, "does not fit")

	_, err = beantree.Bind[outer](c, beantree.NewList())
	assert.True(t, errors.Is(err, beantree.ErrTypeMismatch))
}

func TestParse_IntegralFloatTextBindsToInt(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder())
	v, err := beantree.Bind[int](c, beantree.Number("3.0"))
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = beantree.Bind[int](c, beantree.Number("3.5"))
	assert.True(t, errors.Is(err, beantree.ErrTypeMismatch))

	_, err = beantree.Bind[uint](c, beantree.Int(-1))
	assert.True(t, errors.Is(err, beantree.ErrTypeMismatch))
}

func TestParse_ReadonlyIsNotBound(t *testing.T) {
	type ro struct {
		ID   string `beantree:"id,readonly"`
		Name string `json:"name"`
	}
	c := mustContext(t, beantree.NewBuilder())
	n := beantree.NewMap(
		beantree.Entry{Key: "id", Value: beantree.String("x")},
		beantree.Entry{Key: "name", Value: beantree.String("n")},
	)
	v, err := beantree.Bind[ro](c, n)
	require.NoError(t, err)
	assert.Equal(t, ro{Name: "n"}, v)

	out, err := c.Serialize(ro{ID: "i", Name: "n"})
	require.NoError(t, err)
	assert.Equal(t, `{id:"i",name:"n"}`, out.String())
}

func TestParse_NullResetsAndTargetMustBePointer(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder())
	p := pair{S1: ptr("a")}
	require.NoError(t, c.Parse(beantree.NewMap(beantree.Entry{Key: "s1", Value: beantree.Null()}), &p))
	assert.Nil(t, p.S1)

	err := c.Parse(beantree.Null(), p)
	assert.True(t, errors.Is(err, beantree.ErrTypeMismatch))
}

func TestParse_EmbeddedPointerIsAllocated(t *testing.T) {
	type Meta struct {
		Rev int `json:"rev"`
	}
	type doc struct {
		*Meta
		Name string `json:"name"`
	}
	c := mustContext(t, beantree.NewBuilder())
	n := beantree.NewMap(
		beantree.Entry{Key: "rev", Value: beantree.Int(4)},
		beantree.Entry{Key: "name", Value: beantree.String("d")},
	)
	d, err := beantree.Bind[doc](c, n)
	require.NoError(t, err)
	require.NotNil(t, d.Meta)
	assert.Equal(t, 4, d.Rev)

	out, err := c.Serialize(doc{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, `{name:"x"}`, out.String(), "properties behind a nil embedded pointer are absent")
}

func TestParse_NodeTargetsKeepTheTree(t *testing.T) {
	type envelope struct {
		Kind    string         `json:"kind"`
		Payload *beantree.Node `json:"payload"`
	}
	c := mustContext(t, beantree.NewBuilder())
	payload := beantree.NewMap(beantree.Entry{Key: "b", Value: beantree.Int(2)}, beantree.Entry{Key: "a", Value: beantree.Int(1)})
	back, n, err := beantree.Roundtrip(c, envelope{Kind: "k", Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, `{kind:"k",payload:{b:2,a:1}}`, n.String())
	assert.True(t, payload.Equal(back.Payload))
}

func TestSafeBind(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder())
	_, ok := beantree.SafeBind[int](c, beantree.String("x"))
	assert.False(t, ok)
	v, ok := beantree.SafeBind[string](c, beantree.String("x"))
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

type label struct{ A string }

func (l *label) MarshalText() ([]byte, error) { return []byte("label:" + l.A), nil }
func (l *label) UnmarshalText(b []byte) error {
	l.A = strings.TrimPrefix(string(b), "label:")
	return nil
}

// sealed can render itself as text but not parse it back.
type sealed struct {
	A string `json:"a"`
}

func (s *sealed) MarshalText() ([]byte, error) { return []byte("sealed"), nil }

func TestRoundtrip_TextTypesMatchHoweverHeld(t *testing.T) {
	type doc struct {
		P *label  `json:"p"`
		V label   `json:"v"`
		S *sealed `json:"s"`
		W sealed  `json:"w"`
	}
	c := mustContext(t, beantree.NewBuilder())
	orig := doc{P: &label{A: "x"}, V: label{A: "y"}, S: &sealed{A: "s"}, W: sealed{A: "w"}}
	back, n, err := beantree.Roundtrip(c, orig)
	require.NoError(t, err, spew.Sdump(n))
	assert.Equal(t, `{p:"label:x",v:"label:y",s:{a:"s"},w:{a:"w"}}`, n.String())
	assert.Equal(t, orig, back)
}
