package i18n

import "testing"

func TestTranslator_DefaultAndJapanese(t *testing.T) {
	// default is en
	if msg := T("type_mismatch", nil); msg == "type_mismatch" || msg == "" {
		t.Fatalf("expected a human message, got %q", msg)
	}

	SetLanguage("ja")
	if msg := T("type_mismatch", nil); msg == "type mismatch" {
		t.Fatalf("expected japanese message, got %q", msg)
	}

	// reset to en
	SetLanguage("en")
}

func TestTranslator_DataRenderedInKeyOrder(t *testing.T) {
	msg := T("unknown_property", map[string]string{"type": "pkg.T", "property": "x"})
	if msg != "unknown property (property=x, type=pkg.T)" {
		t.Fatalf("unexpected message %q", msg)
	}
}

type fixed string

func (f fixed) Message(code string, data map[string]string) string { return string(f) }

func TestTranslator_Custom(t *testing.T) {
	SetTranslator(fixed("custom"))
	defer SetTranslator(nil)
	if msg := T("recursion", nil); msg != "custom" {
		t.Fatalf("expected custom translator output, got %q", msg)
	}
}

func TestTranslator_UnknownCodeFallsBackToCode(t *testing.T) {
	if msg := T("no_such_code", nil); msg != "no_such_code" {
		t.Fatalf("expected code fallback, got %q", msg)
	}
}
