package beantree

import (
	"reflect"
	"strconv"
	"strings"
)

// Frame is one entry of a session's ancestor stack.
type Frame struct {
	Index int    // position in the stack; the root is 0
	Name  string // "root", a property name, a map key or a list index
	Type  string // fully-qualified type name of the value
	id    identity
}

// String renders "[index]name:type".
func (f Frame) String() string {
	return "[" + strconv.Itoa(f.Index) + "]" + f.Name + ":" + f.Type
}

// identity distinguishes object instances for cycle detection. The type is
// part of it because a struct and its first field share an address.
type identity struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

func (id identity) valid() bool { return id.ptr != 0 }

// identityOf returns the identity of reference values; scalars and inline
// structs have none and can never close a cycle.
func identityOf(v reflect.Value) identity {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return identity{}
		}
		return identity{ptr: v.Pointer(), typ: v.Type()}
	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 {
			return identity{}
		}
		return identity{ptr: v.Pointer(), typ: v.Type(), n: v.Len()}
	}
	return identity{}
}

// renderStack joins frames as "[0]root:T0->[1]p1:T1->...".
func renderStack(frames []Frame) string {
	b := &strings.Builder{}
	for i, f := range frames {
		if i > 0 {
			b.WriteString("->")
		}
		b.WriteString(f.String())
	}
	return b.String()
}
