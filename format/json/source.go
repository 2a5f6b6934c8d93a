package json

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	j "github.com/goccy/go-json"

	eng "github.com/reoring/beantree/internal/engine"
)

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

type frame struct {
	kind         containerKind
	expectingKey bool
}

// source is an engine.TokenSource over a go-json Decoder.
type source struct {
	dec   *j.Decoder
	stack []frame
}

// NewReader wraps r into a token source.
func NewReader(r io.Reader) eng.TokenSource {
	dec := j.NewDecoder(r)
	dec.UseNumber()
	return &source{dec: dec}
}

// NewBytes wraps b into a token source.
func NewBytes(b []byte) eng.TokenSource { return NewReader(bytes.NewReader(b)) }

func (s *source) NextToken() (eng.Token, error) {
	off := s.dec.InputOffset()
	tok, err := s.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return eng.Token{}, io.EOF
		}
		return eng.Token{}, fmt.Errorf("json: offset %d: %w", off, err)
	}
	if d, ok := tok.(j.Delim); ok {
		return s.delim(d, off), nil
	}

	// a string in key position is a key; everything else is a value
	if n := len(s.stack); n > 0 {
		top := &s.stack[n-1]
		if top.kind == kindObject {
			if top.expectingKey {
				if k, ok := tok.(string); ok {
					top.expectingKey = false
					return eng.Token{Kind: eng.KindKey, String: k, Offset: off}, nil
				}
			} else {
				top.expectingKey = true
			}
		}
	}
	switch v := tok.(type) {
	case string:
		return eng.Token{Kind: eng.KindString, String: v, Offset: off}, nil
	case bool:
		return eng.Token{Kind: eng.KindBool, Bool: v, Offset: off}, nil
	case j.Number:
		return eng.Token{Kind: eng.KindNumber, Number: string(v), Offset: off}, nil
	case float64:
		return eng.Token{Kind: eng.KindNumber, Number: strconv.FormatFloat(v, 'g', -1, 64), Offset: off}, nil
	case nil:
		return eng.Token{Kind: eng.KindNull, Offset: off}, nil
	}
	return eng.Token{}, fmt.Errorf("json: offset %d: unexpected token %T", off, tok)
}

func (s *source) delim(d j.Delim, off int64) eng.Token {
	switch d {
	case '{':
		s.valueStarted()
		s.stack = append(s.stack, frame{kind: kindObject, expectingKey: true})
		return eng.Token{Kind: eng.KindBeginObject, Offset: off}
	case '[':
		s.valueStarted()
		s.stack = append(s.stack, frame{kind: kindArray})
		return eng.Token{Kind: eng.KindBeginArray, Offset: off}
	case '}':
		s.pop()
		return eng.Token{Kind: eng.KindEndObject, Offset: off}
	default:
		s.pop()
		return eng.Token{Kind: eng.KindEndArray, Offset: off}
	}
}

// valueStarted marks the enclosing object as waiting for its next key once
// the value that starts here is complete.
func (s *source) valueStarted() {
	if n := len(s.stack); n > 0 {
		top := &s.stack[n-1]
		if top.kind == kindObject && !top.expectingKey {
			top.expectingKey = true
		}
	}
}

func (s *source) pop() {
	if n := len(s.stack); n > 0 {
		s.stack = s.stack[:n-1]
	}
}

func (s *source) Location() int64 { return s.dec.InputOffset() }
