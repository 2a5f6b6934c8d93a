package codec

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Resolver matches runtime types to registered swaps. It is immutable after
// NewResolver; only its per-type cache grows.
type Resolver struct {
	exact  map[reflect.Type]Swap
	ifaces []Swap
	named  map[string]Swap

	cache sync.Map // reflect.Type -> resolution
}

type resolution struct {
	swap Swap
	err  error
}

// NewResolver registers swaps for type-level resolution and, by name, for
// property-level declarations. named lists swaps that are only reachable by
// name. Two swaps registered for the same concrete domain type fail with
// *AmbiguousError.
func NewResolver(swaps []Swap, named ...Swap) (*Resolver, error) {
	r := &Resolver{
		exact: make(map[reflect.Type]Swap),
		named: make(map[string]Swap),
	}
	for _, s := range swaps {
		d := s.Domain()
		if d.Kind() == reflect.Interface {
			r.ifaces = append(r.ifaces, s)
		} else {
			if prev, ok := r.exact[d]; ok {
				return nil, &AmbiguousError{Type: d, Candidates: []string{prev.Name(), s.Name()}}
			}
			r.exact[d] = s
		}
		r.named[s.Name()] = s
	}
	for _, s := range named {
		if _, ok := r.named[s.Name()]; !ok {
			r.named[s.Name()] = s
		}
	}
	return r, nil
}

// Resolve returns the swap for t, or nil when none applies. Exact
// registrations win over interface registrations; among interface swaps the
// highest priority wins and a tie is an *AmbiguousError.
func (r *Resolver) Resolve(t reflect.Type) (Swap, error) {
	if r == nil || t == nil {
		return nil, nil
	}
	if v, ok := r.cache.Load(t); ok {
		res := v.(resolution)
		return res.swap, res.err
	}
	s, err := r.resolve(t)
	v, _ := r.cache.LoadOrStore(t, resolution{swap: s, err: err})
	res := v.(resolution)
	return res.swap, res.err
}

func (r *Resolver) resolve(t reflect.Type) (Swap, error) {
	if s, ok := r.exact[t]; ok {
		return s, nil
	}
	if t.Kind() == reflect.Interface {
		return nil, nil
	}
	type candidate struct {
		swap     Swap
		priority int
	}
	var cands []candidate
	for _, s := range r.ifaces {
		if !Matches(s, t) {
			continue
		}
		p := 0
		if ps, ok := s.(Prioritized); ok {
			p = ps.Priority()
		}
		cands = append(cands, candidate{swap: s, priority: p})
	}
	if len(cands) == 0 {
		return nil, nil
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].priority > cands[j].priority })
	if len(cands) > 1 && cands[0].priority == cands[1].priority {
		names := []string{}
		for _, c := range cands {
			if c.priority == cands[0].priority {
				names = append(names, c.swap.Name())
			}
		}
		return nil, &AmbiguousError{Type: t, Candidates: names}
	}
	win := cands[0].swap
	if g, ok := win.(Generic); ok {
		return g.Instantiate(t), nil
	}
	return win, nil
}

// Named returns a swap by registration name.
func (r *Resolver) Named(name string) (Swap, bool) {
	if r == nil {
		return nil, false
	}
	s, ok := r.named[name]
	return s, ok
}

// Names returns the registered swap names in sorted order.
func (r *Resolver) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.named))
	for n := range r.named {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Bind specializes s for a concrete type when s is generic and the type
// matches; otherwise s is returned unchanged.
func Bind(s Swap, concrete reflect.Type) Swap {
	g, ok := s.(Generic)
	if !ok || concrete == nil || s.Domain().Kind() != reflect.Interface {
		return s
	}
	if !Matches(s, concrete) {
		return s
	}
	return g.Instantiate(concrete)
}

// String lists registrations for diagnostics.
func (r *Resolver) String() string {
	return fmt.Sprintf("codec.Resolver{exact:%d interface:%d named:%d}", len(r.exact), len(r.ifaces), len(r.named))
}
