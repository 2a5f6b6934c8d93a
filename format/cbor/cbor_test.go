package cbor_test

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/beantree"
	"github.com/reoring/beantree/format"
	fcbor "github.com/reoring/beantree/format/cbor"
	eng "github.com/reoring/beantree/internal/engine"
)

func TestMarshal_IsDeterministic(t *testing.T) {
	a := beantree.NewMap(
		beantree.Entry{Key: "b", Value: beantree.Int(-1)},
		beantree.Entry{Key: "a", Value: beantree.NewList(beantree.String("x"), beantree.Float(0.5))},
	)
	b := beantree.NewMap(
		beantree.Entry{Key: "a", Value: beantree.NewList(beantree.String("x"), beantree.Float(0.5))},
		beantree.Entry{Key: "b", Value: beantree.Int(-1)},
	)
	f := fcbor.New(format.Options{})
	ea, err := f.Marshal(a)
	require.NoError(t, err)
	eb, err := f.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, ea, eb)

	back, err := f.Unmarshal(ea)
	require.NoError(t, err)
	assert.Equal(t, `{a:["x",0.5],b:-1}`, back.String())
}

func TestRoundtrip_Numbers(t *testing.T) {
	f := fcbor.New(format.Options{})
	for in, want := range map[string]string{
		"18446744073709551615":  "18446744073709551615",
		"-9223372036854775808":  "-9223372036854775808",
		"123456789012345678901": "123456789012345678901",
		"1e3":                   "1000",
	} {
		data, err := f.Marshal(beantree.Number(in))
		require.NoError(t, err, in)
		n, err := f.Unmarshal(data)
		require.NoError(t, err, in)
		assert.Equal(t, want, n.Text(), in)
	}
	_, err := f.Marshal(beantree.Number("nope"))
	assert.Error(t, err)
}

func TestUnmarshal_ByteStringsAndRejections(t *testing.T) {
	data, err := cbor.Marshal(map[string]any{"raw": []byte{0, 1, 2}})
	require.NoError(t, err)
	n, err := fcbor.New(format.Options{}).Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, `{raw:"AAEC"}`, n.String())

	data, err = cbor.Marshal(map[int]string{1: "x"})
	require.NoError(t, err)
	_, err = fcbor.New(format.Options{}).Unmarshal(data)
	assert.Error(t, err, "non-text keys")

	// {"a":1,"a":2} written by hand: map(2) "a" 1 "a" 2
	dup := []byte{0xa2, 0x61, 'a', 0x01, 0x61, 'a', 0x02}
	_, err = fcbor.New(format.Options{}).Unmarshal(dup)
	var ie eng.IssueError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, eng.CodeDuplicateKey, ie.Code)

	_, err = fcbor.New(format.Options{Duplicates: "ignore"}).Unmarshal(dup)
	assert.NoError(t, err)
}
