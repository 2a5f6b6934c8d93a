package beantree

import (
	"reflect"
	"strings"
)

// tagOptions is the parsed form of a `beantree:"..."` struct tag.
type tagOptions struct {
	name       string
	subset     []string
	hasSubset  bool
	swap       string
	readonly   bool
	unknown    bool
	hasBTTag   bool
	skip       bool
	nameSource string // "beantree", "json" or "field"
}

// ResolveStructKey applies the repository-wide rule to resolve a struct
// field's property name.
// Priority: beantree:"name" > json tag name > field name; "-" disables the field.
func ResolveStructKey(sf reflect.StructField) string {
	return parseTag(sf).name
}

// parseTag reads `beantree:"name,properties=a|b,swap=x,readonly,unknown"`.
func parseTag(sf reflect.StructField) tagOptions {
	var opt tagOptions
	bt, hasBT := sf.Tag.Lookup("beantree")
	opt.hasBTTag = hasBT
	if hasBT {
		if bt == "-" {
			opt.skip = true
			opt.name = "-"
			return opt
		}
		parts := strings.Split(bt, ",")
		if n := strings.TrimSpace(parts[0]); n != "" {
			opt.name = n
			opt.nameSource = "beantree"
		}
		for _, p := range parts[1:] {
			p = strings.TrimSpace(p)
			switch {
			case strings.HasPrefix(p, "properties="):
				opt.hasSubset = true
				for _, s := range strings.Split(strings.TrimPrefix(p, "properties="), "|") {
					if s = strings.TrimSpace(s); s != "" {
						opt.subset = append(opt.subset, s)
					}
				}
			case strings.HasPrefix(p, "swap="):
				opt.swap = strings.TrimPrefix(p, "swap=")
			case p == "readonly":
				opt.readonly = true
			case p == "unknown":
				opt.unknown = true
			}
		}
	}
	if opt.name == "" {
		if jt := sf.Tag.Get("json"); jt != "" {
			if jt == "-" {
				opt.skip = true
				opt.name = "-"
				return opt
			}
			if i := strings.IndexByte(jt, ','); i >= 0 {
				jt = jt[:i]
			}
			if jt != "" {
				opt.name = jt
				opt.nameSource = "json"
			}
		}
	}
	if opt.name == "" {
		opt.name = sf.Name
		opt.nameSource = "field"
	}
	return opt
}

// PropertyOf returns the property name for a top-level field of S selected
// by selector, for declaring subsets and BeanConfig entries without string
// literals.
// Example: PropertyOf(func(i *Item) *string { return &i.SKU }) -> "sku".
func PropertyOf[S any, F any](selector func(*S) *F) string {
	if selector == nil {
		panic("beantree.PropertyOf: selector must not be nil")
	}
	var zero S
	fp := reflect.ValueOf(selector(&zero)).Pointer()
	rv := reflect.ValueOf(&zero).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		if rv.Field(i).Addr().Pointer() == fp {
			name := ResolveStructKey(sf)
			if name == "-" {
				panic("beantree.PropertyOf: selected field is excluded")
			}
			return name
		}
	}
	panic("beantree.PropertyOf: selector must return the address of a top-level field")
}

// typeName renders the fully-qualified name of t with pointers removed, as
// used in traversal frames and schema definitions.
func typeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
