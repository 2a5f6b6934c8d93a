package beantree

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/reoring/beantree/codec"
)

// maxSwapChain bounds swap-of-a-surrogate chains so a swap whose wire type
// resolves back to itself fails instead of looping.
const maxSwapChain = 8

var nodeType = reflect.TypeFor[*Node]()

type keepSet = map[string]struct{}

// walk enters v as a new frame, applies the recursion policy and dispatches.
// omit reports that the edge leading to v must be dropped.
func (s *Session) walk(v reflect.Value, name string, path PathRef, keep keepSet, ps codec.Swap) (n *Node, omit bool, err error) {
	for v.IsValid() && v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if isNilValue(v) {
		return Null(), false, nil
	}

	s.push(Frame{Name: name, Type: typeName(v.Type()), id: identityOf(v)})
	defer s.pop()

	if omit, err := s.checkRecursion(path); err != nil || omit {
		return nil, omit, err
	}
	n, err = s.dispatch(v, path, keep, ps, 0)
	return n, false, err
}

func isNilValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// checkRecursion inspects the frame just pushed.
func (s *Session) checkRecursion(path PathRef) (bool, error) {
	depth := len(s.stack)
	if !s.opts.DetectRecursions {
		if depth > s.opts.MaxDepth {
			return false, newError(CodeRecursion, path.Pointer(),
				fmt.Sprintf("depth %d exceeded; it's recommended you enable DetectRecursions to help locate the loop", s.opts.MaxDepth),
				nil, map[string]any{"max_depth": s.opts.MaxDepth})
		}
		return false, nil
	}
	top := s.stack[depth-1]
	if top.id.valid() {
		for _, f := range s.stack[:depth-1] {
			if f.id != top.id {
				continue
			}
			if s.opts.IgnoreRecursions {
				s.log.Debug("recursion edge omitted", slog.String("path", path.Pointer()), slog.String("type", top.Type))
				return true, nil
			}
			chain := renderStack(s.stack)
			return false, newError(CodeRecursion, path.Pointer(), "stack="+chain, nil, map[string]any{"stack": chain})
		}
	}
	if depth > s.opts.MaxDepth {
		return false, newError(CodeRecursion, path.Pointer(),
			fmt.Sprintf("depth %d exceeded without a cycle", s.opts.MaxDepth), nil, map[string]any{"max_depth": s.opts.MaxDepth})
	}
	return false, nil
}

// dispatch converts v, which is neither nil nor an interface wrapper at the
// top level, into a node. It never pushes a frame for v itself.
func (s *Session) dispatch(v reflect.Value, path PathRef, keep keepSet, ps codec.Swap, chain int) (*Node, error) {
	if v.Type() == nodeType {
		return s.walkNode(v.Interface().(*Node), path, keep)
	}

	if ps != nil && !swapApplies(v.Type(), ps) {
		// a property swap on a collection converts each element
		switch v.Kind() {
		case reflect.Slice, reflect.Array:
			return s.walkList(v, path, keep, ps)
		case reflect.Map:
			return s.walkMap(v, path, keep, ps)
		}
	}
	sw := ps
	if sw == nil {
		var err error
		if sw, err = s.typeSwap(v.Type(), path); err != nil {
			return nil, err
		}
	}
	if sw != nil {
		return s.applySwap(sw, v, path, keep, chain)
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return Null(), nil
		}
		return s.dispatch(v.Elem(), path, keep, nil, chain)
	case reflect.Bool:
		return Bool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, newError(CodeTypeMismatch, path.Pointer(), fmt.Sprintf("%v has no canonical number form", f), nil, nil)
		}
		return Number(strconv.FormatFloat(f, 'g', -1, v.Type().Bits())), nil
	case reflect.String:
		return String(v.String()), nil
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return String(base64.StdEncoding.EncodeToString(v.Bytes())), nil
		}
		return s.walkList(v, path, keep, nil)
	case reflect.Array:
		return s.walkList(v, path, keep, nil)
	case reflect.Map:
		return s.walkMap(v, path, keep, nil)
	case reflect.Struct:
		return s.walkStruct(v, path, keep)
	}
	return nil, newError(CodeTypeMismatch, path.Pointer(), fmt.Sprintf("%v values cannot be serialized", v.Type()), nil,
		map[string]any{"type": typeName(v.Type())})
}

// typeSwap resolves the pointee first so *time.Time uses the time.Time swap
// rather than a TextMarshaler match on the pointer.
func (s *Session) typeSwap(t reflect.Type, path PathRef) (codec.Swap, error) {
	if t.Kind() == reflect.Pointer {
		if sw, err := s.typeSwap(t.Elem(), path); sw != nil || err != nil {
			return sw, err
		}
	}
	sw, err := s.ctx.res.Resolve(t)
	if err != nil {
		return nil, newError(CodeAmbiguousSwap, path.Pointer(), typeName(t), err, map[string]any{"type": typeName(t)})
	}
	return sw, nil
}

func (s *Session) applySwap(sw codec.Swap, v reflect.Value, path PathRef, keep keepSet, chain int) (*Node, error) {
	if chain >= maxSwapChain {
		return nil, newError(CodeSwapFailed, path.Pointer(), fmt.Sprintf("swap chain longer than %d at %s", maxSwapChain, sw.Name()), nil,
			map[string]any{"swap": sw.Name()})
	}
	for !codec.Matches(sw, v.Type()) && v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return Null(), nil
		}
		v = v.Elem()
	}
	w, err := sw.Encode(v)
	if err != nil {
		return nil, newError(CodeSwapFailed, path.Pointer(), sw.Name(), err, map[string]any{"swap": sw.Name()})
	}
	wv := reflect.ValueOf(w)
	for wv.IsValid() && wv.Kind() == reflect.Interface && !wv.IsNil() {
		wv = wv.Elem()
	}
	if isNilValue(wv) {
		return Null(), nil
	}
	return s.dispatch(wv, path, keep, nil, chain+1)
}

// swapApplies reports whether sw converts t itself, possibly through
// pointers.
func swapApplies(t reflect.Type, sw codec.Swap) bool {
	for {
		if codec.Matches(sw, t) {
			return true
		}
		if t.Kind() != reflect.Pointer {
			return false
		}
		t = t.Elem()
	}
}

func (s *Session) walkList(v reflect.Value, path PathRef, keep keepSet, elem codec.Swap) (*Node, error) {
	out := NewList()
	for i := 0; i < v.Len(); i++ {
		child, omit, err := s.walk(v.Index(i), strconv.Itoa(i), path.Index(i), keep, elem)
		if err != nil {
			return nil, err
		}
		if omit {
			continue
		}
		out.Append(child)
	}
	return out, nil
}

// walkMap emits entries sorted by key: Go maps have no order of their own.
func (s *Session) walkMap(v reflect.Value, path PathRef, keep keepSet, elem codec.Swap) (*Node, error) {
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k, err := mapKeyString(iter.Key())
		if err != nil {
			return nil, newError(CodeTypeMismatch, path.Pointer(), err.Error(), nil, nil)
		}
		if keep != nil {
			if _, ok := keep[k]; !ok {
				continue
			}
		}
		entries = append(entries, entry{key: k, val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	for i := 1; i < len(entries); i++ {
		if entries[i].key == entries[i-1].key {
			return nil, newError(CodeTypeMismatch, path.Pointer(), fmt.Sprintf("map keys collide on %q", entries[i].key), nil, nil)
		}
	}

	out := NewMap()
	for _, e := range entries {
		child, omit, err := s.walk(e.val, e.key, path.Field(e.key), nil, elem)
		if err != nil {
			return nil, err
		}
		if omit {
			continue
		}
		out.Set(e.key, child)
	}
	return out, nil
}

func mapKeyString(k reflect.Value) (string, error) {
	for k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		b, err := tm.MarshalText()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", fmt.Errorf("map key type %v is not supported", k.Type())
}

func (s *Session) walkStruct(v reflect.Value, path PathRef, keep keepSet) (*Node, error) {
	meta, err := s.ctx.reg.BeanMeta(v.Type())
	if err != nil {
		return nil, rebase(err, path)
	}
	if !meta.IsBean() {
		return opaque(v), nil
	}
	out := NewMap()
	for _, p := range meta.ordered(s.opts.SortProperties) {
		if !p.readable {
			continue
		}
		if keep != nil {
			if _, ok := keep[p.name]; !ok {
				continue
			}
		}
		pv, ok := p.get(v)
		if !ok {
			continue
		}
		child, omit, err := s.walk(pv, p.name, path.Field(p.name), p.keep, p.swap)
		if err != nil {
			return nil, err
		}
		if omit || s.trimmed(child) {
			continue
		}
		out.Set(p.name, child)
	}
	return out, nil
}

func (s *Session) trimmed(n *Node) bool {
	switch n.Kind() {
	case KindNull:
		return s.opts.TrimNullProperties
	case KindMap:
		return s.opts.TrimEmptyMaps && n.Len() == 0
	case KindList:
		return s.opts.TrimEmptyCollections && n.Len() == 0
	}
	return false
}

// opaque renders a struct without properties as a string scalar.
func opaque(v reflect.Value) *Node {
	cands := []reflect.Value{v}
	if v.CanAddr() {
		cands = append(cands, v.Addr())
	}
	for _, c := range cands {
		if tm, ok := c.Interface().(encoding.TextMarshaler); ok {
			if b, err := tm.MarshalText(); err == nil {
				return String(string(b))
			}
		}
	}
	for _, c := range cands {
		if st, ok := c.Interface().(fmt.Stringer); ok {
			return String(st.String())
		}
	}
	return String(fmt.Sprint(v.Interface()))
}

// walkNode re-walks an existing tree as a plain map/list graph. Trim
// policies apply only to bean properties, so the result equals the input.
func (s *Session) walkNode(n *Node, path PathRef, keep keepSet) (*Node, error) {
	switch n.Kind() {
	case KindMap:
		out := NewMap()
		for _, e := range n.entries {
			if keep != nil {
				if _, ok := keep[e.Key]; !ok {
					continue
				}
			}
			child, omit, err := s.walk(reflect.ValueOf(e.Value), e.Key, path.Field(e.Key), nil, nil)
			if err != nil {
				return nil, err
			}
			if omit {
				continue
			}
			out.Set(e.Key, child)
		}
		return out, nil
	case KindList:
		out := NewList()
		for i, it := range n.items {
			child, omit, err := s.walk(reflect.ValueOf(it), strconv.Itoa(i), path.Index(i), keep, nil)
			if err != nil {
				return nil, err
			}
			if omit {
				continue
			}
			out.Append(child)
		}
		return out, nil
	}
	return n.Clone(), nil
}

// rebase prefixes the path of an *Error raised relative to a bean with the
// bean's own location.
func rebase(err error, at PathRef) error {
	e, ok := AsError(err)
	if !ok || at.Len() == 0 {
		return err
	}
	cp := *e
	if cp.Path == "" || cp.Path == "/" {
		cp.Path = at.Pointer()
	} else {
		cp.Path = at.Pointer() + cp.Path
	}
	return &cp
}
