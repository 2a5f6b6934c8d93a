package beantree

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/reoring/beantree/codec"
	js "github.com/reoring/beantree/jsonschema"
)

// Builder assembles an immutable Context. A Builder is not safe for
// concurrent use; the Context it builds is.
type Builder struct {
	opts       Options
	swaps      []codec.Swap
	named      []codec.Swap
	noDefaults bool
	beans      map[reflect.Type]*BeanConfig
	log        *slog.Logger
}

// NewBuilder returns a Builder holding DefaultOptions and the default swaps.
func NewBuilder() *Builder {
	return &Builder{opts: DefaultOptions(), beans: map[reflect.Type]*BeanConfig{}}
}

// TrimNullProperties omits null-valued bean properties.
func (b *Builder) TrimNullProperties(on bool) *Builder { b.opts.TrimNullProperties = on; return b }

// TrimEmptyMaps omits bean properties whose value is an empty map.
func (b *Builder) TrimEmptyMaps(on bool) *Builder { b.opts.TrimEmptyMaps = on; return b }

// TrimEmptyCollections omits bean properties whose value is an empty list.
func (b *Builder) TrimEmptyCollections(on bool) *Builder { b.opts.TrimEmptyCollections = on; return b }

// DetectRecursions enables the ancestor identity scan.
func (b *Builder) DetectRecursions(on bool) *Builder { b.opts.DetectRecursions = on; return b }

// IgnoreRecursions omits cyclic edges instead of failing.
func (b *Builder) IgnoreRecursions(on bool) *Builder { b.opts.IgnoreRecursions = on; return b }

// SortProperties emits bean properties sorted by name.
func (b *Builder) SortProperties(on bool) *Builder { b.opts.SortProperties = on; return b }

// Unknown sets the binder's unknown property policy.
func (b *Builder) Unknown(p UnknownPolicy) *Builder { b.opts.Unknown = p; return b }

// MaxDepth sets the traversal depth guard. Zero restores DefaultMaxDepth.
func (b *Builder) MaxDepth(n int) *Builder { b.opts.MaxDepth = n; return b }

// Apply replaces all options at once.
func (b *Builder) Apply(o Options) *Builder { b.opts = o; return b }

// Swaps registers swaps for type-level resolution. A swap whose domain
// equals a default swap's domain replaces that default.
func (b *Builder) Swaps(s ...codec.Swap) *Builder { b.swaps = append(b.swaps, s...); return b }

// NamedSwaps registers swaps reachable only through swap=<name> declarations.
func (b *Builder) NamedSwaps(s ...codec.Swap) *Builder { b.named = append(b.named, s...); return b }

// NoDefaultSwaps drops codec.Defaults from type-level resolution.
func (b *Builder) NoDefaultSwaps() *Builder { b.noDefaults = true; return b }

// Bean declares the properties of sample's type explicitly. sample may be a
// value, a pointer or a reflect.Type.
func (b *Builder) Bean(sample any, cfg BeanConfig) *Builder {
	t, ok := sample.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(sample)
	}
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil {
		c := cfg
		b.beans[t] = &c
	}
	return b
}

// Logger sets the logger receiving debug records. The default discards.
func (b *Builder) Logger(l *slog.Logger) *Builder { b.log = l; return b }

// Build validates the options, registers the swaps and introspects the
// explicitly declared beans.
func (b *Builder) Build() (*Context, error) {
	opts := b.opts
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	log := b.log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	swaps := append([]codec.Swap(nil), b.swaps...)
	if !b.noDefaults {
		for _, d := range codec.Defaults() {
			if !overridden(d, b.swaps) {
				swaps = append(swaps, d)
			}
		}
	}
	named := append(codec.Extras(), b.named...)
	res, err := codec.NewResolver(swaps, named...)
	if err != nil {
		return nil, newError(CodeAmbiguousSwap, "", "duplicate swap registration", err, nil)
	}

	configs := make(map[reflect.Type]*BeanConfig, len(b.beans))
	for t, c := range b.beans {
		configs[t] = c
	}
	c := &Context{
		opts:    opts,
		res:     res,
		log:     log,
		builder: b.snapshot(),
	}
	c.reg = newRegistry(res, configs, log)
	for t := range configs {
		if _, err := c.reg.BeanMeta(t); err != nil {
			return nil, err
		}
	}
	log.Debug("context built", slog.Any("options", opts.AsMap()), slog.Any("swaps", res.Names()))
	return c, nil
}

func overridden(d codec.Swap, user []codec.Swap) bool {
	for _, u := range user {
		if u.Domain() == d.Domain() || u.Name() == d.Name() {
			return true
		}
	}
	return false
}

func (b *Builder) snapshot() *Builder {
	cp := *b
	cp.swaps = append([]codec.Swap(nil), b.swaps...)
	cp.named = append([]codec.Swap(nil), b.named...)
	cp.beans = make(map[reflect.Type]*BeanConfig, len(b.beans))
	for t, c := range b.beans {
		cp.beans[t] = c
	}
	return &cp
}

// Context is a frozen marshalling configuration. It is safe for concurrent
// use by any number of Sessions.
type Context struct {
	opts    Options
	reg     *Registry
	res     *codec.Resolver
	log     *slog.Logger
	builder *Builder
}

// Options returns a copy of the effective options.
func (c *Context) Options() Options { return c.opts }

// Registry returns the BeanMeta cache shared by all sessions of c.
func (c *Context) Registry() *Registry { return c.reg }

// Resolver returns the swap resolver.
func (c *Context) Resolver() *codec.Resolver { return c.res }

// Logger returns the configured logger.
func (c *Context) Logger() *slog.Logger { return c.log }

// Builder returns a new Builder preloaded with c's configuration, for
// deriving a modified Context. c itself is unaffected.
func (c *Context) Builder() *Builder { return c.builder.snapshot() }

// NewSession creates a single-use session bound to c.
func (c *Context) NewSession() *Session {
	return &Session{ctx: c, opts: c.opts, log: c.log}
}

// AsMap returns the effective options plus the registered swap names.
func (c *Context) AsMap() map[string]any {
	m := c.opts.AsMap()
	m["swaps"] = c.res.Names()
	return m
}

// Serialize walks v into a canonical tree using a fresh session.
func (c *Context) Serialize(v any) (*Node, error) { return c.NewSession().Serialize(v) }

// Parse binds n into target (a non-nil pointer) using a fresh session.
func (c *Context) Parse(n *Node, target any) error { return c.NewSession().Parse(n, target) }

// SchemaOf describes the shape of sample's type. sample may be a value, a
// pointer or a reflect.Type.
func (c *Context) SchemaOf(sample any) (*js.Schema, error) {
	t, ok := sample.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(sample)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: SchemaOf(nil)", ErrInvalidOptions)
	}
	return c.NewSession().Schema(t)
}
