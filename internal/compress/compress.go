// Package compress wraps serialized documents in zstd or LZ4 frames.
// Frames carry their own magic number so Decompress can detect the
// algorithm of its input.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm identifies a compression algorithm.
type Algorithm uint8

const (
	// None passes data through unchanged.
	None Algorithm = iota
	// Zstd is zstd at the default level. Good ratios on text formats.
	Zstd
	// LZ4 is the LZ4 frame format. Faster, with a lower ratio.
	LZ4
)

// String returns the name of a.
func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ErrUnknownAlgorithm is returned for names and tags outside the known set.
var ErrUnknownAlgorithm = errors.New("compress: unknown algorithm")

// ParseAlgorithm parses a name. The empty string means None.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return None, nil
	case "zstd", "zst":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Detect returns the algorithm whose frame magic prefixes data, or None.
func Detect(data []byte) Algorithm {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return Zstd
	case bytes.HasPrefix(data, lz4Magic):
		return LZ4
	}
	return None
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use with
// EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress frames data with a. For None it returns data unchanged.
func Compress(a Algorithm, data []byte) ([]byte, error) {
	switch a {
	case None:
		return data, nil
	case Zstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	case LZ4:
		var b bytes.Buffer
		w := lz4.NewWriter(&b)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return b.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, a)
}

// Decompress reverses Compress. limit bounds the decompressed size when
// positive.
func Decompress(a Algorithm, data []byte, limit int64) ([]byte, error) {
	var out []byte
	switch a {
	case None:
		out = data
	case Zstd:
		var err error
		out, err = zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
	case LZ4:
		var r io.Reader = lz4.NewReader(bytes.NewReader(data))
		if limit > 0 {
			r = io.LimitReader(r, limit+1)
		}
		var err error
		out, err = io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, a)
	}
	if limit > 0 && int64(len(out)) > limit {
		return nil, fmt.Errorf("%s decompress: output exceeds %d bytes", a, limit)
	}
	return out, nil
}

// DecompressAuto decompresses data framed by any known algorithm and
// returns other input unchanged.
func DecompressAuto(data []byte, limit int64) ([]byte, Algorithm, error) {
	a := Detect(data)
	out, err := Decompress(a, data, limit)
	return out, a, err
}
