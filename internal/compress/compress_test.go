package compress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlgorithmNames(t *testing.T) {
	for _, name := range []string{"none", "zstd", "lz4"} {
		a, err := ParseAlgorithm(name)
		require.NoError(t, err)
		assert.Equal(t, name, a.String())
	}
	a, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, a)

	_, err = ParseAlgorithm("gzip")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
	assert.Equal(t, "unknown(9)", Algorithm(9).String())
}

func TestRoundTrip(t *testing.T) {
	doc := []byte(strings.Repeat(`{"id":1,"name":"widget","tags":["a","b"]},`, 200))
	for _, a := range []Algorithm{None, Zstd, LZ4} {
		t.Run(a.String(), func(t *testing.T) {
			c, err := Compress(a, doc)
			require.NoError(t, err)
			if a != None {
				assert.Less(t, len(c), len(doc))
			}
			assert.Equal(t, a, Detect(c))

			out, got, err := DecompressAuto(c, 0)
			require.NoError(t, err)
			assert.Equal(t, a, got)
			assert.True(t, bytes.Equal(doc, out))
		})
	}
}

func TestDecompress_Limit(t *testing.T) {
	doc := bytes.Repeat([]byte("x"), 4096)
	for _, a := range []Algorithm{Zstd, LZ4} {
		c, err := Compress(a, doc)
		require.NoError(t, err)
		_, err = Decompress(a, c, 1024)
		assert.ErrorContains(t, err, "exceeds 1024 bytes", a.String())
		_, err = Decompress(a, c, 4096)
		assert.NoError(t, err, a.String())
	}
}

func TestDecompress_Corrupt(t *testing.T) {
	_, err := Decompress(Zstd, []byte{0x28, 0xb5, 0x2f, 0xfd, 0xff}, 0)
	assert.Error(t, err)
	_, err = Decompress(Algorithm(7), nil, 0)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}
