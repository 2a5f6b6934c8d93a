package beantree

import (
	"fmt"
	"log/slog"
	"reflect"

	js "github.com/reoring/beantree/jsonschema"
)

// Session runs exactly one Serialize, Parse or Schema call against a
// Context. It is not safe for concurrent use and must not be reused.
type Session struct {
	ctx   *Context
	opts  Options
	log   *slog.Logger
	stack []Frame
	used  bool
}

// Context returns the context the session was created from.
func (s *Session) Context() *Context { return s.ctx }

// Depth reports the current ancestor stack depth. It is zero outside a call.
func (s *Session) Depth() int { return len(s.stack) }

func (s *Session) begin() error {
	if s.used {
		return ErrSessionUsed
	}
	s.used = true
	return nil
}

// end drains the stack so no frame outlives the call, whatever its outcome.
func (s *Session) end() { s.stack = s.stack[:0] }

func (s *Session) push(f Frame) {
	f.Index = len(s.stack)
	s.stack = append(s.stack, f)
}

func (s *Session) pop() { s.stack = s.stack[:len(s.stack)-1] }

// Serialize walks v into a canonical tree.
func (s *Session) Serialize(v any) (*Node, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()
	n, omit, err := s.walk(reflect.ValueOf(v), "root", RootPath(), nil, nil)
	if err != nil {
		return nil, err
	}
	if omit {
		return Null(), nil
	}
	return n, nil
}

// Parse binds n into target, which must be a non-nil pointer.
func (s *Session) Parse(n *Node, target any) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return newError(CodeTypeMismatch, "/", fmt.Sprintf("Parse target must be a non-nil pointer, got %T", target), nil, nil)
	}
	return s.bind(n, rv.Elem(), RootPath(), nil)
}

// Schema describes the shape of t.
func (s *Session) Schema(t reflect.Type) (*js.Schema, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()
	return s.schema(t)
}
