package beantree

import (
	"reflect"
	"sync"

	js "github.com/reoring/beantree/jsonschema"
)

// ---- Convenience wrappers ----

// Bind parses n into a new T using a fresh session of c.
func Bind[T any](c *Context, n *Node) (T, error) {
	var out T
	if err := c.NewSession().Parse(n, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// SafeBind binds n into T, returning (zero, false) on any error.
func SafeBind[T any](c *Context, n *Node) (T, bool) {
	v, err := Bind[T](c, n)
	if err != nil {
		return v, false
	}
	return v, true
}

// SchemaFor describes the shape of T.
func SchemaFor[T any](c *Context) (*js.Schema, error) {
	return c.NewSession().Schema(reflect.TypeFor[T]())
}

// BeanMetaOf returns the cached metadata of T.
func BeanMetaOf[T any](c *Context) (*BeanMeta, error) {
	return c.Registry().BeanMeta(reflect.TypeFor[T]())
}

// Roundtrip serializes v and binds the tree into a new T. It is the
// round-trip contract of the engine in one call.
func Roundtrip[T any](c *Context, v T) (T, *Node, error) {
	n, err := c.Serialize(v)
	if err != nil {
		var zero T
		return zero, nil, err
	}
	out, err := Bind[T](c, n)
	return out, n, err
}

var defaultContext = sync.OnceValue(func() *Context {
	c, err := NewBuilder().Build()
	if err != nil {
		panic("beantree: default context: " + err.Error())
	}
	return c
})

// Default returns a process-wide Context built from DefaultOptions.
func Default() *Context { return defaultContext() }

// Serialize walks v with the default context.
func Serialize(v any) (*Node, error) { return Default().Serialize(v) }

// Parse binds n into target with the default context.
func Parse(n *Node, target any) error { return Default().Parse(n, target) }
