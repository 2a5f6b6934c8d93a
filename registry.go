package beantree

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/reoring/beantree/codec"
)

// Registry introspects types once and caches their BeanMeta for the lifetime
// of the owning Context. It is safe for concurrent use.
type Registry struct {
	resolver *codec.Resolver
	configs  map[reflect.Type]*BeanConfig
	log      *slog.Logger

	metas sync.Map // reflect.Type -> *BeanMeta
	group singleflight.Group
}

func newRegistry(resolver *codec.Resolver, configs map[reflect.Type]*BeanConfig, log *slog.Logger) *Registry {
	return &Registry{resolver: resolver, configs: configs, log: log}
}

// BeanMeta returns the cached metadata of t, introspecting it on first use.
// Pointer types are dereferenced first. Concurrent first calls for the same
// type share one computation and every caller receives the same instance.
func (r *Registry) BeanMeta(t reflect.Type) (*BeanMeta, error) {
	if t == nil {
		return nil, newError(CodeIntrospection, "", "nil type", nil, nil)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if v, ok := r.metas.Load(t); ok {
		return v.(*BeanMeta), nil
	}
	// *rtype identity is unique per type, so %p keys the flight exactly.
	key := fmt.Sprintf("%p", t)
	v, err, _ := r.group.Do(key, func() (any, error) {
		if v, ok := r.metas.Load(t); ok {
			return v, nil
		}
		m, err := introspect(t, r.configs[t], r.resolver)
		if err != nil {
			return nil, err
		}
		actual, loaded := r.metas.LoadOrStore(t, m)
		if !loaded {
			r.log.Debug("bean introspected",
				slog.String("type", typeName(t)),
				slog.Int("properties", len(m.props)),
				slog.Bool("swap", m.swap != nil))
		}
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*BeanMeta), nil
}

// Resolver returns the swap resolver shared with the registry.
func (r *Registry) Resolver() *codec.Resolver { return r.resolver }

// Len reports how many types have been introspected.
func (r *Registry) Len() int {
	n := 0
	r.metas.Range(func(_, _ any) bool { n++; return true })
	return n
}
