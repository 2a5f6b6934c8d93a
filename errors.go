package beantree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reoring/beantree/i18n"
)

// Error codes (exported consts for IDE completion and type safety by convention)
const (
	CodeIntrospection   = "introspection"
	CodeAmbiguousSwap   = "ambiguous_swap"
	CodeRecursion       = "recursion"
	CodeUnknownProperty = "unknown_property"
	CodeTypeMismatch    = "type_mismatch"
	CodeSwapFailed      = "swap_failed"
)

// Error is the single error type raised by the engine. Path is a JSON Pointer
// to the offending property ("/" for the root).
type Error struct {
	Code    string
	Path    string
	Message string
	Cause   error
	// Params carries structured parameters (for example {"type": "pkg.T"}) for
	// i18n and observability.
	Params map[string]any
}

// Error renders "beantree: <code> at <path>: <message>[: <cause>]".
func (e *Error) Error() string {
	b := &strings.Builder{}
	path := e.Path
	if path == "" {
		path = "/"
	}
	msg := e.Message
	if msg == "" {
		msg = i18n.T(e.Code, nil)
	}
	fmt.Fprintf(b, "beantree: %s at %s: %s", e.Code, path, msg)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by code, so the sentinels below work with
// errors.Is regardless of path or message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Path == "" && t.Message == ""
}

// Sentinels for errors.Is.
var (
	ErrIntrospection   = &Error{Code: CodeIntrospection}
	ErrAmbiguousSwap   = &Error{Code: CodeAmbiguousSwap}
	ErrRecursion       = &Error{Code: CodeRecursion}
	ErrUnknownProperty = &Error{Code: CodeUnknownProperty}
	ErrTypeMismatch    = &Error{Code: CodeTypeMismatch}
	ErrSwapFailed      = &Error{Code: CodeSwapFailed}
)

// ErrSessionUsed is returned when a Session is asked to run a second call.
var ErrSessionUsed = errors.New("beantree: session already used; create a new session per call")

// ErrInvalidOptions is returned by Builder.Build for inconsistent options.
var ErrInvalidOptions = errors.New("beantree: invalid options")

// AsError extracts *Error from an error using errors.As internally.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// newError builds an *Error whose message is the localized code message
// followed by detail.
func newError(code, path, detail string, cause error, params map[string]any) *Error {
	msg := i18n.T(code, nil)
	if detail != "" {
		msg += ": " + detail
	}
	return &Error{Code: code, Path: path, Message: msg, Cause: cause, Params: params}
}
