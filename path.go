package beantree

import (
	"strconv"
	"strings"
)

// PathRef builds JSON Pointer paths in a chain-safe way: every step returns
// a new value and never aliases its parent's storage.
type PathRef struct {
	parts []string
}

// RootPath is the pointer of the root value.
func RootPath() PathRef { return PathRef{} }

// ParsePath splits a JSON Pointer into a PathRef. Segments stay escaped.
func ParsePath(path string) PathRef {
	if path == "" || path == "/" {
		return RootPath()
	}
	return PathRef{parts: strings.Split(strings.TrimPrefix(path, "/"), "/")}
}

// Field appends a property name or map key.
func (p PathRef) Field(name string) PathRef {
	// escape '~' -> '~0', '/' -> '~1' per RFC6901
	esc := strings.ReplaceAll(strings.ReplaceAll(name, "~", "~0"), "/", "~1")
	return PathRef{parts: append(append(make([]string, 0, len(p.parts)+1), p.parts...), esc)}
}

// Index appends a list position.
func (p PathRef) Index(i int) PathRef {
	return PathRef{parts: append(append(make([]string, 0, len(p.parts)+1), p.parts...), strconv.Itoa(i))}
}

// Len is the number of steps from the root.
func (p PathRef) Len() int { return len(p.parts) }

// Pointer renders the path; the root renders as "/".
func (p PathRef) Pointer() string {
	if len(p.parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(p.parts, "/")
}

func (p PathRef) String() string { return p.Pointer() }
