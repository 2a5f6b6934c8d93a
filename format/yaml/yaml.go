// Package yaml renders canonical trees as YAML through gopkg.in/yaml.v3
// node trees, so mapping order survives in both directions.
package yaml

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reoring/beantree"
	"github.com/reoring/beantree/format"
	eng "github.com/reoring/beantree/internal/engine"
)

// Name is the registration name.
const Name = "yaml"

func init() { format.Register(Name, func(o format.Options) format.Format { return New(o) }) }

// Format is the YAML format.
type Format struct{ opt format.Options }

// New returns a YAML format. Options.Indent sets the indentation width by
// its length (default 2).
func New(opt format.Options) *Format { return &Format{opt: opt} }

// Name returns "yaml".
func (*Format) Name() string { return Name }

// Marshal renders n as a single YAML document.
func (f *Format) Marshal(n *beantree.Node) ([]byte, error) {
	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	indent := len(f.opt.Indent)
	if indent < 2 {
		indent = 2
	}
	enc.SetIndent(indent)
	if err := enc.Encode(ToYAML(n)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// ToYAML converts a tree into a yaml.Node.
func ToYAML(n *beantree.Node) *yaml.Node {
	switch n.Kind() {
	case beantree.KindMap:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, e := range n.Entries() {
			out.Content = append(out.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key},
				ToYAML(e.Value))
		}
		return out
	case beantree.KindList:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, it := range n.Items() {
			out.Content = append(out.Content, ToYAML(it))
		}
		return out
	case beantree.KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: n.Str()}
	case beantree.KindNumber:
		tag := "!!int"
		if strings.ContainsAny(n.Text(), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: n.Text()}
	case beantree.KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(n.BoolValue())}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

// Unmarshal parses a single YAML document. Aliases are expanded; duplicate
// keys and nesting follow the format options.
func (f *Format) Unmarshal(data []byte) (*beantree.Node, error) {
	if err := f.opt.CheckSize(data); err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	root := &doc
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return beantree.Null(), nil
		}
		root = doc.Content[0]
	}
	if doc.Kind == 0 {
		// empty input
		return beantree.Null(), nil
	}
	t := &tokenizer{maxDepth: f.opt.Depth()}
	if err := t.node(root, 0); err != nil {
		return nil, err
	}
	return f.opt.Tree(&eng.Slice{Tokens: t.out})
}

type tokenizer struct {
	out      []eng.Token
	maxDepth int
}

func (t *tokenizer) emit(tok eng.Token) { tok.Offset = -1; t.out = append(t.out, tok) }

// node flattens n into tokens. depth bounds alias expansion, which could
// otherwise loop or blow up.
func (t *tokenizer) node(n *yaml.Node, depth int) error {
	if depth > t.maxDepth {
		return fmt.Errorf("yaml: line %d: nesting deeper than %d", n.Line, t.maxDepth)
	}
	switch n.Kind {
	case yaml.AliasNode:
		return t.node(n.Alias, depth+1)
	case yaml.MappingNode:
		t.emit(eng.Token{Kind: eng.KindBeginObject})
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			for k.Kind == yaml.AliasNode {
				k = k.Alias
			}
			if k.Kind != yaml.ScalarNode {
				return fmt.Errorf("yaml: line %d: mapping key must be a scalar", k.Line)
			}
			if k.ShortTag() == "!!merge" {
				return fmt.Errorf("yaml: line %d: merge keys are not supported", k.Line)
			}
			t.emit(eng.Token{Kind: eng.KindKey, String: k.Value})
			if err := t.node(n.Content[i+1], depth+1); err != nil {
				return err
			}
		}
		t.emit(eng.Token{Kind: eng.KindEndObject})
	case yaml.SequenceNode:
		t.emit(eng.Token{Kind: eng.KindBeginArray})
		for _, c := range n.Content {
			if err := t.node(c, depth+1); err != nil {
				return err
			}
		}
		t.emit(eng.Token{Kind: eng.KindEndArray})
	case yaml.ScalarNode:
		tok, err := scalar(n)
		if err != nil {
			return err
		}
		t.emit(tok)
	default:
		return fmt.Errorf("yaml: line %d: unsupported node kind %d", n.Line, n.Kind)
	}
	return nil
}

func scalar(n *yaml.Node) (eng.Token, error) {
	switch n.ShortTag() {
	case "!!null":
		return eng.Token{Kind: eng.KindNull}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return eng.Token{}, err
		}
		return eng.Token{Kind: eng.KindBool, Bool: b}, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return eng.Token{Kind: eng.KindNumber, Number: strconv.FormatInt(i, 10)}, nil
		}
		var u uint64
		if err := n.Decode(&u); err == nil {
			return eng.Token{Kind: eng.KindNumber, Number: strconv.FormatUint(u, 10)}, nil
		}
		return eng.Token{Kind: eng.KindNumber, Number: strings.ReplaceAll(n.Value, "_", "")}, nil
	case "!!float":
		var fl float64
		if err := n.Decode(&fl); err != nil {
			return eng.Token{}, err
		}
		if math.IsNaN(fl) || math.IsInf(fl, 0) {
			return eng.Token{}, fmt.Errorf("yaml: line %d: %s has no tree representation", n.Line, n.Value)
		}
		if _, err := strconv.ParseFloat(n.Value, 64); err == nil {
			return eng.Token{Kind: eng.KindNumber, Number: n.Value}, nil
		}
		return eng.Token{Kind: eng.KindNumber, Number: strconv.FormatFloat(fl, 'g', -1, 64)}, nil
	default:
		// !!str, !!timestamp, !!binary and custom tags keep their text
		return eng.Token{Kind: eng.KindString, String: n.Value}, nil
	}
}
