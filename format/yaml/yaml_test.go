package yaml_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/beantree"
	"github.com/reoring/beantree/format"
	fyaml "github.com/reoring/beantree/format/yaml"
	eng "github.com/reoring/beantree/internal/engine"
)

func TestMarshal_QuotesAmbiguousStrings(t *testing.T) {
	n := beantree.NewMap(
		beantree.Entry{Key: "name", Value: beantree.String("foo")},
		beantree.Entry{Key: "count", Value: beantree.Int(3)},
		beantree.Entry{Key: "text", Value: beantree.String("3")},
		beantree.Entry{Key: "flag", Value: beantree.String("true")},
		beantree.Entry{Key: "on", Value: beantree.Bool(true)},
		beantree.Entry{Key: "none", Value: beantree.Null()},
		beantree.Entry{Key: "list", Value: beantree.NewList(beantree.Number("1.5"))},
	)
	out, err := fyaml.New(format.Options{}).Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, "name: foo\ncount: 3\ntext: \"3\"\nflag: \"true\"\non: true\nnone: null\nlist:\n  - 1.5\n", string(out))

	back, err := fyaml.New(format.Options{}).Unmarshal(out)
	require.NoError(t, err)
	assert.True(t, n.Equal(back), "%s != %s", n, back)
}

func TestUnmarshal_ScalarsAndAliases(t *testing.T) {
	in := `
base: &b
  x: 0x10
  y: 1_000
copy: *b
f: 2.50
s: !!str 12
t: 2025-01-01
`
	n, err := fyaml.New(format.Options{}).Unmarshal([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, `{base:{x:16,y:1000},copy:{x:16,y:1000},f:2.50,s:"12",t:"2025-01-01"}`, n.String())
}

func TestUnmarshal_Rejections(t *testing.T) {
	f := fyaml.New(format.Options{})

	_, err := f.Unmarshal([]byte("a: 1\na: 2\n"))
	var ie eng.IssueError
	if assert.ErrorAs(t, err, &ie) {
		assert.Equal(t, eng.CodeDuplicateKey, ie.Code)
	}

	_, err = f.Unmarshal([]byte("a: .nan\n"))
	assert.Error(t, err)

	_, err = f.Unmarshal([]byte("? [1, 2]\n: x\n"))
	assert.Error(t, err)

	_, err = f.Unmarshal([]byte("base: &b {x: 1}\nchild:\n  <<: *b\n"))
	assert.Error(t, err)

	n, err := f.Unmarshal(nil)
	require.NoError(t, err)
	assert.True(t, n.IsNull())
}
