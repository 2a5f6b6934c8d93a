package beantree

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/reoring/beantree/codec"
	js "github.com/reoring/beantree/jsonschema"
)

var defNamer = strings.NewReplacer("/", ".", "~", "_")

// schemaWalk describes types instead of values. Struct types are emitted
// once under $defs and referenced afterwards, so cyclic type graphs end at
// the first repeated type. A subset view gets its own definition keyed by
// the type and the retained names.
type schemaWalk struct {
	s    *Session
	defs map[string]*js.Schema
}

func (s *Session) schema(t reflect.Type) (*js.Schema, error) {
	w := &schemaWalk{s: s, defs: map[string]*js.Schema{}}
	root, err := w.of(t, RootPath(), nil, nil)
	if err != nil {
		return nil, err
	}
	out := *root
	out.Dialect = js.Draft
	if len(w.defs) > 0 {
		out.Defs = w.defs
	}
	return &out, nil
}

func (w *schemaWalk) of(t reflect.Type, path PathRef, keep keepSet, ps codec.Swap) (*js.Schema, error) {
	if t == nodeType || (t.Kind() == reflect.Interface && ps == nil) {
		return &js.Schema{}, nil
	}

	if ps != nil && !swapApplies(t, ps) {
		ct := t
		for ct.Kind() == reflect.Pointer {
			ct = ct.Elem()
		}
		switch ct.Kind() {
		case reflect.Slice, reflect.Array:
			items, err := w.of(ct.Elem(), path.Index(0), keep, ps)
			if err != nil {
				return nil, err
			}
			return &js.Schema{Type: "array", Items: items}, nil
		case reflect.Map:
			vals, err := w.of(ct.Elem(), path.Field("*"), nil, ps)
			if err != nil {
				return nil, err
			}
			return &js.Schema{Type: "object", AdditionalProperties: vals}, nil
		}
	}
	sw := ps
	if sw == nil {
		var err error
		if sw, err = w.s.typeSwap(t, path); err != nil {
			return nil, err
		}
	}
	if sw != nil {
		ws, err := w.kind(sw.Wire(), path, keep)
		if err != nil {
			return nil, err
		}
		if f, ok := sw.(codec.Formatter); ok {
			cp := *ws
			cp.Format = f.Format()
			ws = &cp
		}
		return ws, nil
	}
	return w.kind(t, path, keep)
}

func (w *schemaWalk) kind(t reflect.Type, path PathRef, keep keepSet) (*js.Schema, error) {
	switch t.Kind() {
	case reflect.Pointer:
		return w.of(t.Elem(), path, keep, nil)
	case reflect.Interface:
		return &js.Schema{}, nil
	case reflect.Bool:
		return &js.Schema{Type: "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return &js.Schema{Type: "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return &js.Schema{Type: "number"}, nil
	case reflect.String:
		return &js.Schema{Type: "string"}, nil
	case reflect.Slice, reflect.Array:
		if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			return &js.Schema{Type: "string", Format: "byte"}, nil
		}
		items, err := w.of(t.Elem(), path.Index(0), keep, nil)
		if err != nil {
			return nil, err
		}
		sc := &js.Schema{Type: "array", Items: items}
		if t.Kind() == reflect.Array {
			n := t.Len()
			sc.MinItems, sc.MaxItems = &n, &n
		}
		return sc, nil
	case reflect.Map:
		vals, err := w.of(t.Elem(), path.Field("*"), nil, nil)
		if err != nil {
			return nil, err
		}
		return &js.Schema{Type: "object", AdditionalProperties: vals}, nil
	case reflect.Struct:
		return w.bean(t, path, keep)
	}
	return nil, newError(CodeTypeMismatch, path.Pointer(), fmt.Sprintf("%v has no schema", t), nil,
		map[string]any{"type": t.String()})
}

func (w *schemaWalk) bean(t reflect.Type, path PathRef, keep keepSet) (*js.Schema, error) {
	meta, err := w.s.ctx.reg.BeanMeta(t)
	if err != nil {
		return nil, rebase(err, path)
	}
	if !meta.IsBean() {
		return &js.Schema{Type: "string"}, nil
	}
	name := defNamer.Replace(typeName(t))
	if keep != nil {
		name += "[" + strings.Join(sortedKeys(keep), "|") + "]"
	}
	ref := &js.Schema{Ref: js.DefRef(name)}
	if _, ok := w.defs[name]; ok {
		return ref, nil
	}
	w.defs[name] = &js.Schema{}
	obj, err := w.object(meta, path, keep)
	if err != nil {
		return nil, err
	}
	obj.Title = typeName(t)
	w.defs[name] = obj
	return ref, nil
}

func (w *schemaWalk) object(meta *BeanMeta, path PathRef, keep keepSet) (*js.Schema, error) {
	obj := &js.Schema{Type: "object", Properties: map[string]*js.Schema{}}
	if w.s.opts.Unknown == UnknownStrict {
		obj.AdditionalProperties = false
	}
	for _, p := range meta.ordered(w.s.opts.SortProperties) {
		if !p.readable {
			continue
		}
		if keep != nil {
			if _, ok := keep[p.name]; !ok {
				continue
			}
		}
		ps, err := w.of(p.typ, path.Field(p.name), p.keep, p.swap)
		if err != nil {
			return nil, err
		}
		obj.Properties[p.name] = ps
		obj.PropertyOrder = append(obj.PropertyOrder, p.name)
	}
	return obj, nil
}

func sortedKeys(keep keepSet) []string {
	out := make([]string, 0, len(keep))
	for k := range keep {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
