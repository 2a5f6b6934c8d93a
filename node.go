package beantree

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the shape of a canonical tree node.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindMap
	KindList
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Entry is a single key/value pair of a map node.
type Entry struct {
	Key   string
	Value *Node
}

// Node is one node of the canonical tree that every wire format serializes
// from and parses into. Map keys are unique and keep insertion order.
// A nil *Node reads as null.
type Node struct {
	kind Kind

	text    string // string value, or the decimal text of a number
	boolVal bool

	entries []Entry
	index   map[string]int
	items   []*Node
}

// ============================================================
// Constructors
// ============================================================

// Null creates a null node.
func Null() *Node { return &Node{kind: KindNull} }

// String creates a string node.
func String(s string) *Node { return &Node{kind: KindString, text: s} }

// Number creates a number node from its decimal text. The text is not
// validated; use Int, Uint or Float for values computed in Go.
func Number(text string) *Node { return &Node{kind: KindNumber, text: text} }

// Int creates a number node from a signed integer.
func Int(v int64) *Node { return Number(strconv.FormatInt(v, 10)) }

// Uint creates a number node from an unsigned integer.
func Uint(v uint64) *Node { return Number(strconv.FormatUint(v, 10)) }

// Float creates a number node from a float. NaN and infinities have no
// canonical representation and are rejected by the walker before reaching here.
func Float(v float64) *Node { return Number(strconv.FormatFloat(v, 'g', -1, 64)) }

// Bool creates a boolean node.
func Bool(v bool) *Node { return &Node{kind: KindBool, boolVal: v} }

// NewMap creates a map node. Later duplicates of a key replace earlier ones
// in place.
func NewMap(entries ...Entry) *Node {
	n := &Node{kind: KindMap, index: make(map[string]int, len(entries))}
	for _, e := range entries {
		n.Set(e.Key, e.Value)
	}
	return n
}

// NewList creates a list node.
func NewList(items ...*Node) *Node {
	n := &Node{kind: KindList}
	n.Append(items...)
	return n
}

// ============================================================
// Accessors
// ============================================================

// Kind returns the node kind.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

// IsNull reports whether n is null.
func (n *Node) IsNull() bool { return n.Kind() == KindNull }

// Str returns the string value of a string node.
func (n *Node) Str() string {
	if n.Kind() != KindString {
		return ""
	}
	return n.text
}

// Text returns the textual scalar value: the string of a string node, the
// decimal text of a number, "true"/"false" for booleans and "" otherwise.
func (n *Node) Text() string {
	switch n.Kind() {
	case KindString, KindNumber:
		return n.text
	case KindBool:
		return strconv.FormatBool(n.boolVal)
	default:
		return ""
	}
}

// BoolValue returns the value of a boolean node.
func (n *Node) BoolValue() bool { return n.Kind() == KindBool && n.boolVal }

// Int64 parses a number node as a signed integer.
func (n *Node) Int64() (int64, error) {
	if n.Kind() != KindNumber {
		return 0, fmt.Errorf("beantree: %s node is not a number", n.Kind())
	}
	return strconv.ParseInt(n.text, 10, 64)
}

// Uint64 parses a number node as an unsigned integer.
func (n *Node) Uint64() (uint64, error) {
	if n.Kind() != KindNumber {
		return 0, fmt.Errorf("beantree: %s node is not a number", n.Kind())
	}
	return strconv.ParseUint(n.text, 10, 64)
}

// Float64 parses a number node as a float.
func (n *Node) Float64() (float64, error) {
	if n.Kind() != KindNumber {
		return 0, fmt.Errorf("beantree: %s node is not a number", n.Kind())
	}
	return strconv.ParseFloat(n.text, 64)
}

// Len returns the number of entries of a map or items of a list.
func (n *Node) Len() int {
	switch n.Kind() {
	case KindMap:
		return len(n.entries)
	case KindList:
		return len(n.items)
	default:
		return 0
	}
}

// Get returns the value stored under key in a map node.
func (n *Node) Get(key string) (*Node, bool) {
	if n.Kind() != KindMap {
		return nil, false
	}
	i, ok := n.index[key]
	if !ok {
		return nil, false
	}
	return n.entries[i].Value, true
}

// Set stores v under key, replacing an existing value in place so the key
// keeps its original position. A nil v is stored as null. Set panics on
// non-map nodes.
func (n *Node) Set(key string, v *Node) *Node {
	if n.Kind() != KindMap {
		panic("beantree: Set on " + n.Kind().String() + " node")
	}
	if v == nil {
		v = Null()
	}
	if n.index == nil {
		n.index = make(map[string]int)
	}
	if i, ok := n.index[key]; ok {
		n.entries[i].Value = v
		return n
	}
	n.index[key] = len(n.entries)
	n.entries = append(n.entries, Entry{Key: key, Value: v})
	return n
}

// Delete removes key from a map node. It reports whether the key existed.
func (n *Node) Delete(key string) bool {
	if n.Kind() != KindMap {
		return false
	}
	i, ok := n.index[key]
	if !ok {
		return false
	}
	n.entries = append(n.entries[:i], n.entries[i+1:]...)
	delete(n.index, key)
	for j := i; j < len(n.entries); j++ {
		n.index[n.entries[j].Key] = j
	}
	return true
}

// Keys returns the keys of a map node in order.
func (n *Node) Keys() []string {
	if n.Kind() != KindMap {
		return nil
	}
	keys := make([]string, len(n.entries))
	for i, e := range n.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the entries of a map node in order.
func (n *Node) Entries() []Entry {
	if n.Kind() != KindMap {
		return nil
	}
	return append([]Entry(nil), n.entries...)
}

// Append adds items to a list node. Nil items are stored as null.
func (n *Node) Append(items ...*Node) *Node {
	if n.Kind() != KindList {
		panic("beantree: Append on " + n.Kind().String() + " node")
	}
	for _, it := range items {
		if it == nil {
			it = Null()
		}
		n.items = append(n.items, it)
	}
	return n
}

// Items returns a copy of the items of a list node.
func (n *Node) Items() []*Node {
	if n.Kind() != KindList {
		return nil
	}
	return append([]*Node(nil), n.items...)
}

// At returns the i-th item of a list node, or nil when out of range.
func (n *Node) At(i int) *Node {
	if n.Kind() != KindList || i < 0 || i >= len(n.items) {
		return nil
	}
	return n.items[i]
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	switch n.Kind() {
	case KindNull:
		return Null()
	case KindMap:
		c := &Node{kind: KindMap, index: make(map[string]int, len(n.entries)), entries: make([]Entry, 0, len(n.entries))}
		for _, e := range n.entries {
			c.Set(e.Key, e.Value.Clone())
		}
		return c
	case KindList:
		c := &Node{kind: KindList, items: make([]*Node, 0, len(n.items))}
		for _, it := range n.items {
			c.items = append(c.items, it.Clone())
		}
		return c
	default:
		cp := *n
		return &cp
	}
}

// Equal reports whether n and o are the same tree, including map key order.
func (n *Node) Equal(o *Node) bool {
	if n.Kind() != o.Kind() {
		return false
	}
	switch n.Kind() {
	case KindNull:
		return true
	case KindString, KindNumber:
		return n.text == o.text
	case KindBool:
		return n.boolVal == o.boolVal
	case KindMap:
		if len(n.entries) != len(o.entries) {
			return false
		}
		for i := range n.entries {
			if n.entries[i].Key != o.entries[i].Key || !n.entries[i].Value.Equal(o.entries[i].Value) {
				return false
			}
		}
		return true
	case KindList:
		if len(n.items) != len(o.items) {
			return false
		}
		for i := range n.items {
			if !n.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts n into a plain Go graph: nil, string, bool, int64,
// uint64 or float64, map[string]any and []any. Key order is lost.
func (n *Node) Interface() any {
	switch n.Kind() {
	case KindString:
		return n.text
	case KindNumber:
		return numberValue(n.text)
	case KindBool:
		return n.boolVal
	case KindMap:
		m := make(map[string]any, len(n.entries))
		for _, e := range n.entries {
			m[e.Key] = e.Value.Interface()
		}
		return m
	case KindList:
		arr := make([]any, len(n.items))
		for i, it := range n.items {
			arr[i] = it.Interface()
		}
		return arr
	default:
		return nil
	}
}

func numberValue(text string) any {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(text, 10, 64); err == nil {
		return u
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	return text
}

// String renders n in a compact, JSON-like debug notation.
func (n *Node) String() string {
	b := &strings.Builder{}
	n.writeDebug(b)
	return b.String()
}

func (n *Node) writeDebug(b *strings.Builder) {
	switch n.Kind() {
	case KindNull:
		b.WriteString("null")
	case KindString:
		b.WriteString(strconv.Quote(n.text))
	case KindNumber:
		b.WriteString(n.text)
	case KindBool:
		b.WriteString(strconv.FormatBool(n.boolVal))
	case KindMap:
		b.WriteByte('{')
		for i, e := range n.entries {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(e.Key)
			b.WriteByte(':')
			e.Value.writeDebug(b)
		}
		b.WriteByte('}')
	case KindList:
		b.WriteByte('[')
		for i, it := range n.items {
			if i > 0 {
				b.WriteByte(',')
			}
			it.writeDebug(b)
		}
		b.WriteByte(']')
	}
}

// FromInterface converts a plain Go graph (as produced by Interface or by
// generic decoders) into a tree. Map keys of Go maps are sorted because Go
// maps carry no order.
func FromInterface(v any) (*Node, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case *Node:
		return t.Clone(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Uint(uint64(t)), nil
	case uint8:
		return Uint(uint64(t)), nil
	case uint16:
		return Uint(uint64(t)), nil
	case uint32:
		return Uint(uint64(t)), nil
	case uint64:
		return Uint(t), nil
	case float32:
		return floatNode(float64(t))
	case float64:
		return floatNode(t)
	case []any:
		out := NewList()
		for _, it := range t {
			c, err := FromInterface(it)
			if err != nil {
				return nil, err
			}
			out.Append(c)
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := NewMap()
		for _, k := range keys {
			c, err := FromInterface(t[k])
			if err != nil {
				return nil, err
			}
			out.Set(k, c)
		}
		return out, nil
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("beantree: map key %v (%T) is not a string", k, k)
			}
			m[ks] = vv
		}
		return FromInterface(m)
	case interface {
		Float64() (float64, error)
		String() string
	}:
		// json.Number and look-alikes keep their text.
		return Number(t.String()), nil
	case fmt.Stringer:
		return String(t.String()), nil
	default:
		return nil, fmt.Errorf("beantree: cannot convert %T to a tree node", v)
	}
}

func floatNode(f float64) (*Node, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("beantree: unsupported float value %v", f)
	}
	return Float(f), nil
}
