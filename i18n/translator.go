package i18n

import (
	"sort"
	"strings"
	"sync/atomic"
)

// Translator retrieves localized messages for error codes.
// data provides optional metadata to embed in the message (for example,
// "type" or "property").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	var base string
	switch t.lang {
	case "ja":
		switch code {
		case "introspection":
			base = "型を解析できません"
		case "ambiguous_swap":
			base = "適用可能なスワップが複数あります"
		case "recursion":
			base = "再帰が検出されました"
		case "unknown_property":
			base = "未知のプロパティです"
		case "type_mismatch":
			base = "型が一致しません"
		case "swap_failed":
			base = "スワップ変換に失敗しました"
		case "duplicate_key":
			base = "キーが重複しています"
		case "parse_error":
			base = "解析エラー"
		}
	default: // "en"
		switch code {
		case "introspection":
			base = "type cannot be introspected"
		case "ambiguous_swap":
			base = "more than one swap applies"
		case "recursion":
			base = "recursion occurred"
		case "unknown_property":
			base = "unknown property"
		case "type_mismatch":
			base = "type mismatch"
		case "swap_failed":
			base = "swap conversion failed"
		case "duplicate_key":
			base = "duplicate key"
		case "parse_error":
			base = "parse error"
		}
	}
	if base == "" {
		base = code
	}
	return base + renderData(data)
}

// renderData appends data as " (k=v, ...)" in key order.
func renderData(data map[string]string) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b := &strings.Builder{}
	b.WriteString(" (")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(data[k])
	}
	b.WriteByte(')')
	return b.String()
}

type holder struct{ tr Translator }

var current atomic.Pointer[holder]

func init() { current.Store(&holder{tr: dictTranslator{lang: "en"}}) }

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	current.Store(&holder{tr: dictTranslator{lang: lang}})
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version). nil restores the English dictionary.
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	current.Store(&holder{tr: tr})
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return current.Load().tr.Message(code, data) }
