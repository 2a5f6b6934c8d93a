package main

import (
	"github.com/urfave/cli/v2"

	"github.com/reoring/beantree"
	"github.com/reoring/beantree/format"
	"github.com/reoring/beantree/internal/compress"
)

// decodeInput reads, decompresses and parses the command input.
func decodeInput(c *cli.Context) (*beantree.Node, error) {
	raw, err := readInput(c)
	if err != nil {
		return nil, err
	}
	limit := loadedConfig(c).Format.MaxBytes
	var data []byte
	switch name := c.String("decompress"); name {
	case "auto":
		var algo compress.Algorithm
		if data, algo, err = compress.DecompressAuto(raw, limit); err != nil {
			return nil, err
		}
		logger(c).Debug("detected compression", "algorithm", algo)
	default:
		algo, err := compress.ParseAlgorithm(name)
		if err != nil {
			return nil, err
		}
		if data, err = compress.Decompress(algo, raw, limit); err != nil {
			return nil, err
		}
	}
	name := c.String("from")
	from, err := format.Lookup(name, formatOptions(c, name))
	if err != nil {
		return nil, err
	}
	return from.Unmarshal(data)
}
