package beantree

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/reoring/beantree/codec"
)

// PropertyMeta describes one property of a bean. It is immutable.
type PropertyMeta struct {
	name     string
	field    string
	typ      reflect.Type
	index    []int
	readable bool
	writable bool
	swap     codec.Swap
	subset   []string
	keep     map[string]struct{}
}

// Name returns the property name used in the tree.
func (p *PropertyMeta) Name() string { return p.name }

// FieldName returns the Go struct field backing the property.
func (p *PropertyMeta) FieldName() string { return p.field }

// Type returns the declared value type.
func (p *PropertyMeta) Type() reflect.Type { return p.typ }

// Readable reports whether the walker reads the property.
func (p *PropertyMeta) Readable() bool { return p.readable }

// Writable reports whether the binder assigns the property.
func (p *PropertyMeta) Writable() bool { return p.writable }

// Swap returns the property-level swap, or nil.
func (p *PropertyMeta) Swap() codec.Swap { return p.swap }

// Subset returns the retained sub-property names, or nil when the property
// declares no subset filter.
func (p *PropertyMeta) Subset() []string {
	if p.keep == nil {
		return nil
	}
	return append([]string(nil), p.subset...)
}

// get reads the property from an addressable or plain struct value. ok is
// false when an embedded pointer on the path is nil.
func (p *PropertyMeta) get(bean reflect.Value) (reflect.Value, bool) {
	v := bean
	for i, x := range p.index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

// set assigns val, allocating nil embedded pointers on the way.
func (p *PropertyMeta) set(bean reflect.Value, val reflect.Value) {
	v := bean
	for i, x := range p.index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	v.Set(val)
}

// BeanMeta is the cached structural description of a type. A BeanMeta with
// no properties describes an opaque scalar.
type BeanMeta struct {
	typ     reflect.Type
	props   []*PropertyMeta
	sorted  []*PropertyMeta
	byName  map[string]*PropertyMeta
	swap    codec.Swap
	unknown *PropertyMeta
	newFn   func() reflect.Value
	ctor    bool
}

// Type returns the described type (never a pointer).
func (m *BeanMeta) Type() reflect.Type { return m.typ }

// IsBean reports whether the type has at least one property.
func (m *BeanMeta) IsBean() bool { return len(m.props) > 0 }

// Properties returns the properties in declaration order.
func (m *BeanMeta) Properties() []*PropertyMeta { return append([]*PropertyMeta(nil), m.props...) }

// SortedProperties returns the properties sorted by name.
func (m *BeanMeta) SortedProperties() []*PropertyMeta { return append([]*PropertyMeta(nil), m.sorted...) }

// Property looks up a property by name.
func (m *BeanMeta) Property(name string) (*PropertyMeta, bool) {
	p, ok := m.byName[name]
	return p, ok
}

// Swap returns the type's own swap, or nil.
func (m *BeanMeta) Swap() codec.Swap { return m.swap }

// New returns a new addressable zero instance built with the registered
// constructor.
func (m *BeanMeta) New() reflect.Value { return m.newFn() }

func (m *BeanMeta) ordered(sorted bool) []*PropertyMeta {
	if sorted {
		return m.sorted
	}
	return m.props
}

// BeanConfig declares properties explicitly instead of, or on top of, struct
// tags.
type BeanConfig struct {
	// Properties restricts and orders the properties. Nil keeps all properties
	// in declaration order.
	Properties []string
	// Subsets declares subset filters per property name.
	Subsets map[string][]string
	// Swaps declares property-level swaps by name.
	Swaps map[string]string
	// New constructs an instance for binding. It must return T or *T.
	New func() any
}

type fieldCandidate struct {
	prop   *PropertyMeta
	depth  int
	tagged bool
}

// introspect builds the BeanMeta of t. It never recurses into property
// types, so recursive types are described without looping.
func introspect(t reflect.Type, cfg *BeanConfig, resolver *codec.Resolver) (*BeanMeta, error) {
	m := &BeanMeta{typ: t, byName: map[string]*PropertyMeta{}}
	m.newFn = func() reflect.Value { return reflect.New(t).Elem() }

	s, err := resolver.Resolve(t)
	if err != nil {
		return nil, newError(CodeAmbiguousSwap, "", typeName(t), err, map[string]any{"type": typeName(t)})
	}
	m.swap = s

	if t.Kind() != reflect.Struct {
		return m, nil
	}

	cands := map[string][]fieldCandidate{}
	var order []string
	if err := collectFields(t, nil, 0, map[reflect.Type]bool{t: true}, resolver, cands, &order); err != nil {
		return nil, err
	}

	for _, name := range order {
		list := cands[name]
		best := list[0]
		for _, c := range list[1:] {
			if c.depth < best.depth {
				best = c
			}
		}
		var dominant []fieldCandidate
		for _, c := range list {
			if c.depth == best.depth {
				dominant = append(dominant, c)
			}
		}
		if len(dominant) > 1 {
			// a tagged field beats untagged ones at the same depth
			var tagged []fieldCandidate
			for _, c := range dominant {
				if c.tagged {
					tagged = append(tagged, c)
				}
			}
			if len(tagged) == 1 {
				dominant = tagged
				best = tagged[0]
			}
		}
		if len(dominant) > 1 {
			return nil, newError(CodeIntrospection, "/"+name,
				fmt.Sprintf("%s declares property %q more than once", typeName(t), name), nil,
				map[string]any{"type": typeName(t), "property": name})
		}
		if best.prop == nil {
			continue
		}
		if best.prop.name == "" {
			// the `unknown` collector
			m.unknown = best.prop
			continue
		}
		m.props = append(m.props, best.prop)
		m.byName[name] = best.prop
	}
	// declaration order is field index order, as with encoding/json
	sort.SliceStable(m.props, func(i, j int) bool { return indexLess(m.props[i].index, m.props[j].index) })

	if cfg != nil {
		if err := applyConfig(m, cfg, resolver); err != nil {
			return nil, err
		}
	}

	m.sorted = append([]*PropertyMeta(nil), m.props...)
	sort.SliceStable(m.sorted, func(i, j int) bool { return m.sorted[i].name < m.sorted[j].name })
	return m, nil
}

func collectFields(t reflect.Type, prefix []int, depth int, seen map[reflect.Type]bool, resolver *codec.Resolver, cands map[string][]fieldCandidate, order *[]string) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := parseTag(sf)
		if tag.skip {
			continue
		}
		index := append(append([]int(nil), prefix...), i)

		if sf.Anonymous && tag.nameSource == "field" {
			et := sf.Type
			isPtr := et.Kind() == reflect.Pointer
			if isPtr {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct {
				if !sf.IsExported() && isPtr {
					// cannot allocate through an unexported pointer
					continue
				}
				if seen[et] {
					continue
				}
				seen[et] = true
				err := collectFields(et, index, depth+1, seen, resolver, cands, order)
				delete(seen, et)
				if err != nil {
					return err
				}
				continue
			}
		}

		if !sf.IsExported() {
			if tag.hasBTTag {
				return newError(CodeIntrospection, "/"+tag.name,
					fmt.Sprintf("tagged field %s.%s is unexported", typeName(t), sf.Name), nil,
					map[string]any{"type": typeName(t), "field": sf.Name})
			}
			continue
		}

		if tag.unknown {
			if sf.Type != reflect.TypeFor[map[string]any]() {
				return newError(CodeIntrospection, "/"+sf.Name,
					fmt.Sprintf("unknown collector %s.%s must be map[string]any", typeName(t), sf.Name), nil, nil)
			}
			key := "\x00unknown"
			if _, ok := cands[key]; !ok {
				*order = append(*order, key)
			}
			cands[key] = append(cands[key], fieldCandidate{
				prop:  &PropertyMeta{field: sf.Name, typ: sf.Type, index: index, readable: false, writable: true},
				depth: depth,
			})
			continue
		}

		p := &PropertyMeta{
			name:     tag.name,
			field:    sf.Name,
			typ:      sf.Type,
			index:    index,
			readable: true,
			writable: !tag.readonly,
		}
		if tag.swap != "" {
			s, ok := resolver.Named(tag.swap)
			if !ok {
				return newError(CodeIntrospection, "/"+tag.name,
					fmt.Sprintf("property %q of %s declares unknown swap %q", tag.name, typeName(t), tag.swap), nil,
					map[string]any{"type": typeName(t), "swap": tag.swap})
			}
			p.swap = codec.Bind(s, sf.Type)
		}
		if tag.hasSubset {
			if err := setSubset(p, tag.subset, t); err != nil {
				return err
			}
		}
		if _, ok := cands[tag.name]; !ok {
			*order = append(*order, tag.name)
		}
		cands[tag.name] = append(cands[tag.name], fieldCandidate{prop: p, depth: depth, tagged: tag.nameSource != "field"})
	}
	return nil
}

func indexLess(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func setSubset(p *PropertyMeta, names []string, owner reflect.Type) error {
	if !canHoldBeans(p.typ) {
		return newError(CodeIntrospection, "/"+p.name,
			fmt.Sprintf("property %q of %s declares a subset filter but %v cannot hold beans or maps", p.name, typeName(owner), p.typ), nil,
			map[string]any{"type": typeName(owner), "property": p.name})
	}
	p.subset = append([]string(nil), names...)
	p.keep = make(map[string]struct{}, len(names))
	for _, n := range names {
		p.keep[n] = struct{}{}
	}
	return nil
}

// canHoldBeans reports whether a subset filter makes sense for t: a bean, a
// map, or a collection of those (interfaces may hold either).
func canHoldBeans(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Map, reflect.Interface:
		return true
	case reflect.Slice, reflect.Array:
		e := t.Elem()
		for e.Kind() == reflect.Pointer {
			e = e.Elem()
		}
		switch e.Kind() {
		case reflect.Struct, reflect.Map, reflect.Interface:
			return true
		}
	}
	return false
}

func applyConfig(m *BeanMeta, cfg *BeanConfig, resolver *codec.Resolver) error {
	tn := typeName(m.typ)
	for name, subset := range cfg.Subsets {
		p, ok := m.byName[name]
		if !ok {
			return newError(CodeIntrospection, "/"+name, fmt.Sprintf("subset declared for unknown property %q of %s", name, tn), nil, nil)
		}
		if err := setSubset(p, subset, m.typ); err != nil {
			return err
		}
	}
	for name, swapName := range cfg.Swaps {
		p, ok := m.byName[name]
		if !ok {
			return newError(CodeIntrospection, "/"+name, fmt.Sprintf("swap declared for unknown property %q of %s", name, tn), nil, nil)
		}
		s, ok := resolver.Named(swapName)
		if !ok {
			return newError(CodeIntrospection, "/"+name, fmt.Sprintf("property %q of %s declares unknown swap %q", name, tn, swapName), nil, nil)
		}
		p.swap = codec.Bind(s, p.typ)
	}
	if cfg.Properties != nil {
		props := make([]*PropertyMeta, 0, len(cfg.Properties))
		byName := make(map[string]*PropertyMeta, len(cfg.Properties))
		for _, name := range cfg.Properties {
			p, ok := m.byName[name]
			if !ok {
				return newError(CodeIntrospection, "/"+name, fmt.Sprintf("%s has no property %q", tn, name), nil, nil)
			}
			if _, dup := byName[name]; dup {
				return newError(CodeIntrospection, "/"+name, fmt.Sprintf("property %q listed twice for %s", name, tn), nil, nil)
			}
			props = append(props, p)
			byName[name] = p
		}
		m.props = props
		m.byName = byName
	}
	if cfg.New != nil {
		t := m.typ
		ctor := cfg.New
		m.ctor = true
		m.newFn = func() reflect.Value {
			v := reflect.ValueOf(ctor())
			if v.Kind() == reflect.Pointer && v.Type().Elem() == t && !v.IsNil() {
				return v.Elem()
			}
			out := reflect.New(t).Elem()
			if v.IsValid() && v.Type() == t {
				out.Set(v)
			}
			return out
		}
	}
	return nil
}
