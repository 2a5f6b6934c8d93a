// Package json renders canonical trees as JSON with goccy/go-json. Object
// keys keep tree order and numbers keep their text.
package json

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	j "github.com/goccy/go-json"

	"github.com/reoring/beantree"
	"github.com/reoring/beantree/format"
	eng "github.com/reoring/beantree/internal/engine"
)

// Name is the registration name.
const Name = "json"

func init() { format.Register(Name, func(o format.Options) format.Format { return New(o) }) }

// Format is the JSON format.
type Format struct{ opt format.Options }

// New returns a JSON format.
func New(opt format.Options) *Format { return &Format{opt: opt} }

// Name returns "json".
func (*Format) Name() string { return Name }

// Marshal renders n. Numbers are written as their text, which must be valid
// JSON.
func (f *Format) Marshal(n *beantree.Node) ([]byte, error) {
	var b bytes.Buffer
	w := &writer{b: &b}
	if err := eng.Walk(n, w.token); err != nil {
		return nil, err
	}
	if f.opt.Indent == "" {
		return b.Bytes(), nil
	}
	var out bytes.Buffer
	if err := j.Indent(&out, b.Bytes(), "", f.opt.Indent); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Unmarshal parses exactly one JSON value.
func (f *Format) Unmarshal(data []byte) (*beantree.Node, error) {
	if err := f.opt.CheckSize(data); err != nil {
		return nil, err
	}
	// the token stream skips separators without checking them
	if !j.Valid(data) {
		var v any
		if err := j.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
		return nil, errors.New("json: invalid syntax")
	}
	return f.opt.Tree(NewBytes(data))
}

// Decode reads r to the end and parses it as one JSON value.
func (f *Format) Decode(r io.Reader) (*beantree.Node, error) {
	if f.opt.MaxBytes > 0 {
		r = io.LimitReader(r, f.opt.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return f.Unmarshal(data)
}

type writer struct {
	b *bytes.Buffer
	// per open container: whether it has at least one member
	open []bool
	// a key was just written
	afterKey bool
}

func (w *writer) sep() {
	if w.afterKey {
		w.afterKey = false
		return
	}
	if n := len(w.open); n > 0 {
		if w.open[n-1] {
			w.b.WriteByte(',')
		}
		w.open[n-1] = true
	}
}

func (w *writer) token(t eng.Token) error {
	switch t.Kind {
	case eng.KindBeginObject, eng.KindBeginArray:
		w.sep()
		w.open = append(w.open, false)
		if t.Kind == eng.KindBeginObject {
			w.b.WriteByte('{')
		} else {
			w.b.WriteByte('[')
		}
	case eng.KindEndObject:
		w.open = w.open[:len(w.open)-1]
		w.b.WriteByte('}')
	case eng.KindEndArray:
		w.open = w.open[:len(w.open)-1]
		w.b.WriteByte(']')
	case eng.KindKey:
		w.sep()
		if err := w.quote(t.String); err != nil {
			return err
		}
		w.b.WriteByte(':')
		w.afterKey = true
	case eng.KindString:
		w.sep()
		return w.quote(t.String)
	case eng.KindNumber:
		w.sep()
		if !validNumber(t.Number) {
			return errors.New("json: invalid number " + strconv.Quote(t.Number))
		}
		w.b.WriteString(t.Number)
	case eng.KindBool:
		w.sep()
		w.b.WriteString(strconv.FormatBool(t.Bool))
	case eng.KindNull:
		w.sep()
		w.b.WriteString("null")
	}
	return nil
}

func (w *writer) quote(s string) error {
	q, err := j.MarshalWithOption(s, j.DisableHTMLEscape())
	if err != nil {
		return err
	}
	w.b.Write(q)
	return nil
}

func validNumber(s string) bool {
	if s == "" {
		return false
	}
	return j.Valid([]byte(s)) && s[0] != '"' && s[0] != '{' && s[0] != '[' && s != "true" && s != "false" && s != "null"
}
