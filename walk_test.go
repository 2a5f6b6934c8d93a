package beantree_test

import (
	"errors"
	"math"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/beantree"
	"github.com/reoring/beantree/codec"
)

type pair struct {
	S1 *string `json:"s1"`
	S2 *string `json:"s2"`
}

type containers struct {
	F1 map[string]string `json:"f1"`
	F2 []string          `json:"f2"`
	F3 [0]int            `json:"f3"`
}

type base struct {
	ID   int    `json:"id"`
	Kind string `json:"kind"`
}

type derived struct {
	base
	Name   string `beantree:"name"`
	Hidden string `beantree:"-"`
	Alias  string `json:"alias,omitempty"`
	Kind   string `json:"kind"`
	secret string
}

type stamped struct {
	At   time.Time     `json:"at"`
	Unix time.Time     `beantree:"unix,swap=unix"`
	Link *url.URL      `json:"link"`
	TTL  time.Duration `json:"ttl"`
	Addr net.IP        `json:"addr"`
}

type opaqueID struct{ v string }

func (o opaqueID) String() string { return "id-" + o.v }

type holder struct {
	Raw  []byte         `json:"raw"`
	ID   opaqueID       `json:"id"`
	Any  any            `json:"any"`
	Nums map[int]string `json:"nums"`
}

func ptr[T any](v T) *T { return &v }

func mustContext(t *testing.T, b *beantree.Builder) *beantree.Context {
	t.Helper()
	c, err := b.Build()
	require.NoError(t, err)
	return c
}

func TestSerialize_DeclarationOrderAndNull(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder())
	n, err := c.Serialize(pair{S2: ptr("s2")})
	require.NoError(t, err)
	assert.Equal(t, `{s1:null,s2:"s2"}`, n.String())
}

func TestSerialize_SortProperties(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder().SortProperties(true))
	n, err := c.Serialize(derived{Name: "n", Alias: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alias", "id", "kind", "name"}, n.Keys())
}

func TestSerialize_EmbeddedPromotionAndShadowing(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder())
	n, err := c.Serialize(derived{base: base{ID: 7, Kind: "inner"}, Name: "n", Hidden: "h", Kind: "outer", secret: "s"})
	require.NoError(t, err)
	assert.Equal(t, `{id:7,name:"n",alias:"",kind:"outer"}`, n.String(), spew.Sdump(n.Interface()))
}

func TestSerialize_TrimNullProperties(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder().TrimNullProperties(true))
	n, err := c.Serialize(pair{S2: ptr("s2")})
	require.NoError(t, err)
	_, ok := n.Get("s1")
	assert.False(t, ok)
	assert.Equal(t, `{s2:"s2"}`, n.String())
}

func TestSerialize_TrimEmptyContainers(t *testing.T) {
	v := containers{F1: map[string]string{}, F2: []string{}}

	plain := mustContext(t, beantree.NewBuilder())
	n, err := plain.Serialize(v)
	require.NoError(t, err)
	assert.Equal(t, `{f1:{},f2:[],f3:[]}`, n.String())

	trimmed := mustContext(t, beantree.NewBuilder().TrimEmptyMaps(true).TrimEmptyCollections(true))
	n, err = trimmed.Serialize(v)
	require.NoError(t, err)
	assert.Equal(t, `{}`, n.String())

	onlyMaps := mustContext(t, beantree.NewBuilder().TrimEmptyMaps(true))
	n, err = onlyMaps.Serialize(v)
	require.NoError(t, err)
	assert.Equal(t, `{f2:[],f3:[]}`, n.String())
}

func TestSerialize_Swaps(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder())
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	link, _ := url.Parse("https://example.com/x?y=1")
	n, err := c.Serialize(&stamped{At: at, Unix: at, Link: link, TTL: 90 * time.Second, Addr: net.ParseIP("10.0.0.1")})
	require.NoError(t, err)
	assert.Equal(t, `{at:"2025-01-01T00:00:00Z",unix:1735689600,link:"https://example.com/x?y=1",ttl:"1m30s",addr:"10.0.0.1"}`, n.String())
}

func TestSerialize_ScalarsBytesAndOpaque(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder())
	n, err := c.Serialize(holder{
		Raw:  []byte("hi"),
		ID:   opaqueID{v: "7"},
		Any:  []any{1, "a", true, nil, 1.5},
		Nums: map[int]string{10: "ten", 2: "two"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{raw:"aGk=",id:"id-7",any:[1,"a",true,null,1.5],nums:{10:"ten",2:"two"}}`, n.String())
}

func TestSerialize_GoMapsAreSorted(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder())
	n, err := c.Serialize(map[string]int{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, n.Keys())
}

func TestSerialize_InterfaceMapKeys(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder())
	orig := map[any]any{"b": "y", "a": "x"}
	back, n, err := beantree.Roundtrip(c, orig)
	require.NoError(t, err)
	assert.Equal(t, `{a:"x",b:"y"}`, n.String())
	assert.Equal(t, orig, back)

	_, err = c.Serialize(map[any]int{1: 1, "1": 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, beantree.ErrTypeMismatch))
}

func TestSerialize_Float32KeepsShortForm(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder())
	n, err := c.Serialize(float32(0.1))
	require.NoError(t, err)
	assert.Equal(t, "0.1", n.Text())
}

func TestSerialize_Unsupported(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder())

	_, err := c.Serialize(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, beantree.ErrTypeMismatch))
	e, ok := beantree.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "/ch", e.Path)

	_, err = c.Serialize([]float64{1, math.NaN()})
	require.Error(t, err)
	e, _ = beantree.AsError(err)
	assert.Equal(t, "/1", e.Path)
}

type shouter interface{ Shout() string }

type loud string

func (l loud) Shout() string { return string(l) + "!" }
func (l loud) Greet() string { return "hi " + string(l) }

type greeter interface{ Greet() string }

func TestSerialize_AmbiguousSwapIsSurfaced(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder().Swaps(
		codec.New("shout", func(s shouter) (string, error) { return s.Shout(), nil }, func(w string) (shouter, error) { return loud(w), nil }),
		codec.New("greet", func(g greeter) (string, error) { return g.Greet(), nil }, func(w string) (greeter, error) { return loud(w), nil }),
	))
	_, err := c.Serialize(map[string]loud{"x": "a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, beantree.ErrAmbiguousSwap))
	assert.True(t, errors.Is(err, codec.ErrAmbiguous))
	e, _ := beantree.AsError(err)
	assert.Equal(t, "/x", e.Path)
}

func TestSerialize_CustomSwapOverridesDefault(t *testing.T) {
	day := codec.New("day",
		func(t time.Time) (string, error) { return t.Format(time.DateOnly), nil },
		func(s string) (time.Time, error) { return time.Parse(time.DateOnly, s) },
	)
	c := mustContext(t, beantree.NewBuilder().Swaps(day))
	n, err := c.Serialize(time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2025-03-04", n.Str())
}

func TestSerialize_NoDefaultSwapsFallsBackToOpaque(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder().NoDefaultSwaps())
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	n, err := c.Serialize(at)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T00:00:00Z", n.Str(), "time.Time is a TextMarshaler")
}

func TestSerialize_SwapFailure(t *testing.T) {
	bad := codec.New("bad",
		func(l loud) (string, error) { return "", errors.New("boom") },
		func(s string) (loud, error) { return loud(s), nil },
	)
	c := mustContext(t, beantree.NewBuilder().Swaps(bad))
	_, err := c.Serialize(struct {
		L loud `json:"l"`
	}{L: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, beantree.ErrSwapFailed))
	assert.Contains(t, err.Error(), "boom")
	e, _ := beantree.AsError(err)
	assert.Equal(t, "/l", e.Path)
}

func TestSession_SingleUse(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder())
	s := c.NewSession()
	_, err := s.Serialize(1)
	require.NoError(t, err)
	_, err = s.Serialize(1)
	assert.ErrorIs(t, err, beantree.ErrSessionUsed)
	assert.ErrorIs(t, s.Parse(beantree.Int(1), new(int)), beantree.ErrSessionUsed)
}

func TestContext_ConcurrentSessions(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder().TrimNullProperties(true))
	done := make(chan string, 32)
	for i := 0; i < 32; i++ {
		go func() {
			n, err := c.Serialize(&pair{S2: ptr("s2")})
			if err != nil {
				done <- err.Error()
				return
			}
			done <- n.String()
		}()
	}
	for i := 0; i < 32; i++ {
		assert.Equal(t, `{s2:"s2"}`, <-done)
	}
}

func TestContext_AsMapAndDerivedBuilder(t *testing.T) {
	c := mustContext(t, beantree.NewBuilder().TrimNullProperties(true).Unknown(beantree.UnknownStrip))
	m := c.AsMap()
	assert.Equal(t, true, m["trim_null_properties"])
	assert.Equal(t, "strip", m["unknown"])
	assert.Equal(t, beantree.DefaultMaxDepth, m["max_depth"])
	assert.Contains(t, m["swaps"], "rfc3339")

	d := mustContext(t, c.Builder().SortProperties(true))
	assert.True(t, d.Options().SortProperties)
	assert.True(t, d.Options().TrimNullProperties)
	assert.False(t, c.Options().SortProperties, "the source context is unchanged")
}

func TestBuilder_InvalidOptions(t *testing.T) {
	_, err := beantree.NewBuilder().IgnoreRecursions(true).Build()
	assert.ErrorIs(t, err, beantree.ErrInvalidOptions)

	_, err = beantree.NewBuilder().MaxDepth(-1).Build()
	assert.ErrorIs(t, err, beantree.ErrInvalidOptions)
}
