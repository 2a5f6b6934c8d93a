// Package cbor renders canonical trees as CBOR with fxamacker/cbor using
// Core Deterministic Encoding: map keys are sorted, so equal trees always
// produce equal bytes regardless of key order.
package cbor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/reoring/beantree"
	"github.com/reoring/beantree/format"
	eng "github.com/reoring/beantree/internal/engine"
)

// Name is the registration name.
const Name = "cbor"

func init() { format.Register(Name, func(o format.Options) format.Format { return New(o) }) }

var encMode = sync.OnceValues(func() (cbor.EncMode, error) {
	return cbor.CoreDetEncOptions().EncMode()
})

// Format is the CBOR format.
type Format struct{ opt format.Options }

// New returns a CBOR format. Options.Indent is ignored.
func New(opt format.Options) *Format { return &Format{opt: opt} }

// Name returns "cbor".
func (*Format) Name() string { return Name }

// Marshal encodes n deterministically. Integral numbers become CBOR
// integers (bignums beyond 64 bits), other numbers float64.
func (f *Format) Marshal(n *beantree.Node) ([]byte, error) {
	v, err := toValue(n)
	if err != nil {
		return nil, err
	}
	em, err := encMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(v)
}

func toValue(n *beantree.Node) (any, error) {
	switch n.Kind() {
	case beantree.KindMap:
		m := make(map[string]any, n.Len())
		for _, e := range n.Entries() {
			v, err := toValue(e.Value)
			if err != nil {
				return nil, err
			}
			m[e.Key] = v
		}
		return m, nil
	case beantree.KindList:
		items := n.Items()
		out := make([]any, len(items))
		for i, it := range items {
			v, err := toValue(it)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case beantree.KindString:
		return n.Str(), nil
	case beantree.KindBool:
		return n.BoolValue(), nil
	case beantree.KindNumber:
		return number(n.Text())
	default:
		return nil, nil
	}
}

func number(text string) (any, error) {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i, nil
	}
	if u, err := strconv.ParseUint(text, 10, 64); err == nil {
		return u, nil
	}
	if b, ok := new(big.Int).SetString(text, 10); ok {
		return b, nil
	}
	fl, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("cbor: invalid number %q", text)
	}
	return fl, nil
}

// Unmarshal decodes one CBOR data item. Map keys must be text strings;
// byte strings become base64 text as the walker produces for []byte.
func (f *Format) Unmarshal(data []byte) (*beantree.Node, error) {
	if err := f.opt.CheckSize(data); err != nil {
		return nil, err
	}
	dup := cbor.DupMapKeyQuiet
	if f.opt.Duplicates == "" || f.opt.Duplicates == "error" {
		dup = cbor.DupMapKeyEnforcedAPF
	}
	levels := min(max(f.opt.Depth(), 4), 65535)
	dm, err := cbor.DecOptions{
		DupMapKey:       dup,
		MaxNestedLevels: levels,
		IntDec:          cbor.IntDecConvertNone,
		DefaultMapType:  reflect.TypeFor[map[string]any](),
	}.DecMode()
	if err != nil {
		return nil, err
	}
	var v any
	if err := dm.Unmarshal(data, &v); err != nil {
		var de *cbor.DupMapKeyError
		if errors.As(err, &de) {
			return nil, eng.IssueError{SimpleIssue: eng.SimpleIssue{Code: eng.CodeDuplicateKey, Path: "/",
				Message: fmt.Sprintf("key %v duplicated", de.Key)}}
		}
		return nil, err
	}
	var toks []eng.Token
	if err := tokens(v, &toks); err != nil {
		return nil, err
	}
	return f.opt.Tree(&eng.Slice{Tokens: toks})
}

func tokens(v any, out *[]eng.Token) error {
	emit := func(t eng.Token) { t.Offset = -1; *out = append(*out, t) }
	switch t := v.(type) {
	case nil:
		emit(eng.Token{Kind: eng.KindNull})
	case bool:
		emit(eng.Token{Kind: eng.KindBool, Bool: t})
	case string:
		emit(eng.Token{Kind: eng.KindString, String: t})
	case []byte:
		emit(eng.Token{Kind: eng.KindString, String: base64.StdEncoding.EncodeToString(t)})
	case uint64:
		emit(eng.Token{Kind: eng.KindNumber, Number: strconv.FormatUint(t, 10)})
	case int64:
		emit(eng.Token{Kind: eng.KindNumber, Number: strconv.FormatInt(t, 10)})
	case big.Int:
		emit(eng.Token{Kind: eng.KindNumber, Number: t.String()})
	case *big.Int:
		emit(eng.Token{Kind: eng.KindNumber, Number: t.String()})
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("cbor: %v has no tree representation", t)
		}
		emit(eng.Token{Kind: eng.KindNumber, Number: strconv.FormatFloat(t, 'g', -1, 64)})
	case []any:
		emit(eng.Token{Kind: eng.KindBeginArray})
		for _, it := range t {
			if err := tokens(it, out); err != nil {
				return err
			}
		}
		emit(eng.Token{Kind: eng.KindEndArray})
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		emit(eng.Token{Kind: eng.KindBeginObject})
		for _, k := range keys {
			emit(eng.Token{Kind: eng.KindKey, String: k})
			if err := tokens(t[k], out); err != nil {
				return err
			}
		}
		emit(eng.Token{Kind: eng.KindEndObject})
	default:
		return fmt.Errorf("cbor: unsupported data item %T", v)
	}
	return nil
}
