package beantree

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strconv"

	"github.com/reoring/beantree/codec"
)

var anyType = reflect.TypeFor[any]()

// bind assigns n to dst, which must be settable.
func (s *Session) bind(n *Node, dst reflect.Value, path PathRef, ps codec.Swap) error {
	name := "root"
	if path.Len() > 0 {
		name = path.parts[path.Len()-1]
	}
	s.push(Frame{Name: name, Type: typeName(dst.Type())})
	defer s.pop()
	if len(s.stack) > s.opts.MaxDepth {
		return newError(CodeRecursion, path.Pointer(), fmt.Sprintf("depth %d exceeded while binding", s.opts.MaxDepth), nil,
			map[string]any{"max_depth": s.opts.MaxDepth})
	}

	if n.IsNull() {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	return s.bindValue(n, dst, path, ps)
}

func (s *Session) bindValue(n *Node, dst reflect.Value, path PathRef, ps codec.Swap) error {
	t := dst.Type()
	if t == nodeType {
		dst.Set(reflect.ValueOf(n.Clone()))
		return nil
	}

	if ps != nil && !swapApplies(t, ps) {
		switch t.Kind() {
		case reflect.Slice, reflect.Array:
			return s.bindList(n, dst, path, ps)
		case reflect.Map:
			return s.bindMap(n, dst, path, ps)
		}
	}
	sw := ps
	if sw == nil {
		var err error
		if sw, err = s.typeSwap(t, path); err != nil {
			return err
		}
	}
	if sw != nil {
		return s.bindSwap(sw, n, dst, path)
	}
	return s.bindKind(n, dst, path)
}

// bindSwap binds n to the swap's wire type, then converts back to the
// domain type.
func (s *Session) bindSwap(sw codec.Swap, n *Node, dst reflect.Value, path PathRef) error {
	w := reflect.New(sw.Wire()).Elem()
	if err := s.bindKind(n, w, path); err != nil {
		return err
	}
	out, err := sw.Decode(w, dst.Type())
	if err != nil {
		return newError(CodeSwapFailed, path.Pointer(), sw.Name(), err, map[string]any{"swap": sw.Name()})
	}
	if !out.Type().AssignableTo(dst.Type()) {
		return newError(CodeSwapFailed, path.Pointer(), fmt.Sprintf("%s decoded %v, want %v", sw.Name(), out.Type(), dst.Type()), nil,
			map[string]any{"swap": sw.Name()})
	}
	dst.Set(out)
	return nil
}

func (s *Session) bindKind(n *Node, dst reflect.Value, path PathRef) error {
	t := dst.Type()
	switch t.Kind() {
	case reflect.Pointer:
		p := reflect.New(t.Elem())
		if err := s.bindValue(n, p.Elem(), path, nil); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	case reflect.Interface:
		if t.NumMethod() != 0 {
			return mismatch(path, n, t)
		}
		v := n.Interface()
		if v == nil {
			dst.Set(reflect.Zero(t))
		} else {
			dst.Set(reflect.ValueOf(v))
		}
		return nil
	case reflect.Bool:
		if n.Kind() != KindBool {
			return mismatch(path, n, t)
		}
		dst.SetBool(n.BoolValue())
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n.Kind() != KindNumber {
			return mismatch(path, n, t)
		}
		i, ok := parseInt(n.Text())
		if !ok || dst.OverflowInt(i) {
			return overflow(path, n, t)
		}
		dst.SetInt(i)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n.Kind() != KindNumber {
			return mismatch(path, n, t)
		}
		u, ok := parseUint(n.Text())
		if !ok || dst.OverflowUint(u) {
			return overflow(path, n, t)
		}
		dst.SetUint(u)
		return nil
	case reflect.Float32, reflect.Float64:
		if n.Kind() != KindNumber {
			return mismatch(path, n, t)
		}
		f, err := strconv.ParseFloat(n.Text(), t.Bits())
		if err != nil {
			return overflow(path, n, t)
		}
		dst.SetFloat(f)
		return nil
	case reflect.String:
		if n.Kind() != KindString {
			return mismatch(path, n, t)
		}
		dst.SetString(n.Str())
		return nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && n.Kind() == KindString {
			b, err := base64.StdEncoding.DecodeString(n.Str())
			if err != nil {
				return newError(CodeTypeMismatch, path.Pointer(), "invalid base64", err, nil)
			}
			dst.SetBytes(b)
			return nil
		}
		return s.bindList(n, dst, path, nil)
	case reflect.Array:
		return s.bindList(n, dst, path, nil)
	case reflect.Map:
		return s.bindMap(n, dst, path, nil)
	case reflect.Struct:
		return s.bindStruct(n, dst, path)
	}
	return mismatch(path, n, t)
}

func (s *Session) bindList(n *Node, dst reflect.Value, path PathRef, elem codec.Swap) error {
	t := dst.Type()
	if n.Kind() != KindList {
		return mismatch(path, n, t)
	}
	items := n.Items()
	if t.Kind() == reflect.Array {
		if len(items) > t.Len() {
			return newError(CodeTypeMismatch, path.Pointer(), fmt.Sprintf("%d items do not fit %v", len(items), t), nil, nil)
		}
		for i, it := range items {
			if err := s.bind(it, dst.Index(i), path.Index(i), elem); err != nil {
				return err
			}
		}
		return nil
	}
	out := reflect.MakeSlice(t, len(items), len(items))
	for i, it := range items {
		if err := s.bind(it, out.Index(i), path.Index(i), elem); err != nil {
			return err
		}
	}
	dst.Set(out)
	return nil
}

func (s *Session) bindMap(n *Node, dst reflect.Value, path PathRef, elem codec.Swap) error {
	t := dst.Type()
	if n.Kind() != KindMap {
		return mismatch(path, n, t)
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMapWithSize(t, n.Len()))
	}
	for _, e := range n.Entries() {
		kp := path.Field(e.Key)
		k, err := mapKeyValue(e.Key, t.Key())
		if err != nil {
			return newError(CodeTypeMismatch, kp.Pointer(), err.Error(), nil, nil)
		}
		v := reflect.New(t.Elem()).Elem()
		if err := s.bind(e.Value, v, kp, elem); err != nil {
			return err
		}
		dst.SetMapIndex(k, v)
	}
	return nil
}

func mapKeyValue(key string, kt reflect.Type) (reflect.Value, error) {
	if kt.Kind() == reflect.String || (kt.Kind() == reflect.Interface && kt.NumMethod() == 0) {
		return reflect.ValueOf(key).Convert(kt), nil
	}
	if reflect.PointerTo(kt).Implements(reflect.TypeFor[encoding.TextUnmarshaler]()) {
		p := reflect.New(kt)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(key)); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	}
	k := reflect.New(kt).Elem()
	switch kt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(key, 10, 64)
		if err != nil || k.OverflowInt(i) {
			return reflect.Value{}, fmt.Errorf("map key %q does not fit %v", key, kt)
		}
		k.SetInt(i)
		return k, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := strconv.ParseUint(key, 10, 64)
		if err != nil || k.OverflowUint(u) {
			return reflect.Value{}, fmt.Errorf("map key %q does not fit %v", key, kt)
		}
		k.SetUint(u)
		return k, nil
	}
	return reflect.Value{}, fmt.Errorf("map key type %v is not supported", kt)
}

func (s *Session) bindStruct(n *Node, dst reflect.Value, path PathRef) error {
	meta, err := s.ctx.reg.BeanMeta(dst.Type())
	if err != nil {
		return rebase(err, path)
	}
	if !meta.IsBean() {
		return bindOpaque(n, dst, path)
	}
	if n.Kind() != KindMap {
		return mismatch(path, n, dst.Type())
	}
	if meta.ctor {
		dst.Set(meta.New())
	}
	for _, e := range n.Entries() {
		kp := path.Field(e.Key)
		p, ok := meta.Property(e.Key)
		if !ok {
			if err := s.unknownProperty(meta, dst, e, kp); err != nil {
				return err
			}
			continue
		}
		if !p.writable {
			continue
		}
		v := reflect.New(p.typ).Elem()
		if cur, ok := p.get(dst); ok {
			v.Set(cur)
		}
		if err := s.bind(e.Value, v, kp, p.swap); err != nil {
			return err
		}
		p.set(dst, v)
	}
	return nil
}

func (s *Session) unknownProperty(meta *BeanMeta, dst reflect.Value, e Entry, at PathRef) error {
	switch s.opts.Unknown {
	case UnknownStrip:
		s.log.Debug("unknown property dropped", slog.String("path", at.Pointer()))
		return nil
	case UnknownPassthrough:
		if meta.unknown == nil {
			s.log.Debug("unknown property dropped", slog.String("path", at.Pointer()))
			return nil
		}
		bag, ok := meta.unknown.get(dst)
		if !ok || bag.IsNil() {
			meta.unknown.set(dst, reflect.ValueOf(map[string]any{}))
			bag, _ = meta.unknown.get(dst)
		}
		val := reflect.Zero(anyType)
		if v := e.Value.Interface(); v != nil {
			val = reflect.ValueOf(v)
		}
		bag.SetMapIndex(reflect.ValueOf(e.Key), val)
		return nil
	default:
		tn := typeName(meta.typ)
		return newError(CodeUnknownProperty, at.Pointer(), fmt.Sprintf("%q is not a property of %s", e.Key, tn), nil,
			map[string]any{"property": e.Key, "type": tn})
	}
}

func bindOpaque(n *Node, dst reflect.Value, path PathRef) error {
	if n.Kind() != KindString {
		return mismatch(path, n, dst.Type())
	}
	if tu, ok := dst.Addr().Interface().(encoding.TextUnmarshaler); ok {
		if err := tu.UnmarshalText([]byte(n.Str())); err != nil {
			return newError(CodeTypeMismatch, path.Pointer(), err.Error(), err, nil)
		}
		return nil
	}
	return newError(CodeTypeMismatch, path.Pointer(), fmt.Sprintf("%v has no properties and no swap to bind a string into", dst.Type()), nil,
		map[string]any{"type": typeName(dst.Type())})
}

func parseInt(text string) (int64, bool) {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func parseUint(text string) (uint64, bool) {
	if u, err := strconv.ParseUint(text, 10, 64); err == nil {
		return u, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
		return 0, false
	}
	return uint64(f), true
}

func mismatch(path PathRef, n *Node, t reflect.Type) error {
	return newError(CodeTypeMismatch, path.Pointer(), fmt.Sprintf("cannot bind %s to %v", n.Kind(), t), nil,
		map[string]any{"kind": n.Kind().String(), "type": t.String()})
}

func overflow(path PathRef, n *Node, t reflect.Type) error {
	return newError(CodeTypeMismatch, path.Pointer(), fmt.Sprintf("number %s does not fit %v", n.Text(), t), nil,
		map[string]any{"number": n.Text(), "type": t.String()})
}
