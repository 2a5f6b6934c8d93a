package engine

import (
	"errors"
	"fmt"
	"io"

	"github.com/reoring/beantree"
)

// Kind represents token kinds from a generic source.
type Kind int

const (
	KindBeginObject Kind = iota
	KindEndObject
	KindBeginArray
	KindEndArray
	KindKey
	KindString
	KindNumber
	KindBool
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindBeginObject:
		return "{"
	case KindEndObject:
		return "}"
	case KindBeginArray:
		return "["
	case KindEndArray:
		return "]"
	case KindKey:
		return "key"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindNull:
		return "null"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token represents a streaming token with approximate input offset.
type Token struct {
	Kind   Kind
	String string
	Number string
	Bool   bool
	Offset int64
}

// TokenSource is a minimal interface required by the engine.
type TokenSource interface {
	NextToken() (Token, error)
	Location() int64
}

// ErrTrailingData is returned by Tree when the source holds more than one
// top-level value.
var ErrTrailingData = errors.New("engine: trailing data after top-level value")

// Tree builds a canonical tree from the streaming token source. Object keys
// keep their input order and numbers keep their text. The source must hold
// exactly one value.
func Tree(src TokenSource) (*beantree.Node, error) {
	tok, err := src.NextToken()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	n, err := value(src, tok)
	if err != nil {
		return nil, err
	}
	if extra, err := src.NextToken(); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrTrailingData, extra.Kind)
	} else if !errors.Is(err, io.EOF) {
		return nil, err
	}
	return n, nil
}

func value(src TokenSource, tok Token) (*beantree.Node, error) {
	switch tok.Kind {
	case KindBeginObject:
		return object(src)
	case KindBeginArray:
		return array(src)
	case KindString:
		return beantree.String(tok.String), nil
	case KindNumber:
		return beantree.Number(tok.Number), nil
	case KindBool:
		return beantree.Bool(tok.Bool), nil
	case KindNull:
		return beantree.Null(), nil
	default:
		return nil, fmt.Errorf("engine: unexpected %s token", tok.Kind)
	}
}

func object(src TokenSource) (*beantree.Node, error) {
	m := beantree.NewMap()
	for {
		tok, err := next(src)
		if err != nil {
			return nil, err
		}
		if tok.Kind == KindEndObject {
			return m, nil
		}
		if tok.Kind != KindKey {
			return nil, fmt.Errorf("engine: expected key, got %s", tok.Kind)
		}
		vt, err := next(src)
		if err != nil {
			return nil, err
		}
		v, err := value(src, vt)
		if err != nil {
			return nil, err
		}
		// duplicates that got past enforcement: last one wins, first position kept
		m.Set(tok.String, v)
	}
}

func array(src TokenSource) (*beantree.Node, error) {
	l := beantree.NewList()
	for {
		tok, err := next(src)
		if err != nil {
			return nil, err
		}
		if tok.Kind == KindEndArray {
			return l, nil
		}
		v, err := value(src, tok)
		if err != nil {
			return nil, err
		}
		l.Append(v)
	}
}

// next turns EOF inside a container into io.ErrUnexpectedEOF.
func next(src TokenSource) (Token, error) {
	tok, err := src.NextToken()
	if errors.Is(err, io.EOF) {
		return Token{}, io.ErrUnexpectedEOF
	}
	return tok, err
}

// Walk replays n as a token stream into sink, in tree order. Emitters for
// the wire formats are written against it.
func Walk(n *beantree.Node, sink func(Token) error) error {
	switch n.Kind() {
	case beantree.KindMap:
		if err := sink(Token{Kind: KindBeginObject, Offset: -1}); err != nil {
			return err
		}
		for _, e := range n.Entries() {
			if err := sink(Token{Kind: KindKey, String: e.Key, Offset: -1}); err != nil {
				return err
			}
			if err := Walk(e.Value, sink); err != nil {
				return err
			}
		}
		return sink(Token{Kind: KindEndObject, Offset: -1})
	case beantree.KindList:
		if err := sink(Token{Kind: KindBeginArray, Offset: -1}); err != nil {
			return err
		}
		for _, it := range n.Items() {
			if err := Walk(it, sink); err != nil {
				return err
			}
		}
		return sink(Token{Kind: KindEndArray, Offset: -1})
	case beantree.KindString:
		return sink(Token{Kind: KindString, String: n.Str(), Offset: -1})
	case beantree.KindNumber:
		return sink(Token{Kind: KindNumber, Number: n.Text(), Offset: -1})
	case beantree.KindBool:
		return sink(Token{Kind: KindBool, Bool: n.BoolValue(), Offset: -1})
	default:
		return sink(Token{Kind: KindNull, Offset: -1})
	}
}

// Slice is an in-memory TokenSource, mainly for tests and for replaying a
// tree through enforcement.
type Slice struct {
	Tokens []Token
	pos    int
}

// NextToken returns the next token or io.EOF.
func (s *Slice) NextToken() (Token, error) {
	if s.pos >= len(s.Tokens) {
		return Token{}, io.EOF
	}
	t := s.Tokens[s.pos]
	s.pos++
	return t, nil
}

// Location returns the token index.
func (s *Slice) Location() int64 { return int64(s.pos) }
