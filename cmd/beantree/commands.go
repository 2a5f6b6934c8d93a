package main

import (
	"encoding/hex"

	"github.com/urfave/cli/v2"
	"github.com/zeebo/blake3"

	"github.com/reoring/beantree/format"
	"github.com/reoring/beantree/format/cbor"
	"github.com/reoring/beantree/internal/compress"
)

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Re-encode a document in another format",
		ArgsUsage: "[FILE]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Aliases: []string{"f"}, Value: "json", Usage: "input format"},
			&cli.StringFlag{Name: "to", Aliases: []string{"t"}, Value: "json", Usage: "output format"},
			&cli.StringFlag{Name: "indent", Usage: "indent text output (overrides format.indent)"},
			&cli.StringFlag{Name: "compress", Usage: "compress output: none, zstd, lz4"},
			&cli.StringFlag{Name: "decompress", Usage: "decompress input: none, zstd, lz4, auto"},
		},
		Action: runConvert,
	}
}

func runConvert(c *cli.Context) error {
	in, err := decodeInput(c)
	if err != nil {
		return err
	}
	ctx, err := newContext(c)
	if err != nil {
		return err
	}
	tree, err := ctx.Serialize(in)
	if err != nil {
		return err
	}

	fo := formatOptions(c, c.String("to"))
	if c.IsSet("indent") {
		fo.Indent = c.String("indent")
	}
	to, err := format.Lookup(c.String("to"), fo)
	if err != nil {
		return err
	}
	out, err := to.Marshal(tree)
	if err != nil {
		return err
	}
	algo, err := compress.ParseAlgorithm(c.String("compress"))
	if err != nil {
		return err
	}
	packed, err := compress.Compress(algo, out)
	if err != nil {
		return err
	}
	logger(c).Debug("converted", "from", c.String("from"), "to", to.Name(), "compress", algo, "bytes", len(packed))
	return writeOutput(c, packed)
}

func optionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "options",
		Usage: "Print the effective marshalling options",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "to", Aliases: []string{"t"}, Value: "yaml", Usage: "output format"},
		},
		Action: func(c *cli.Context) error {
			ctx, err := newContext(c)
			if err != nil {
				return err
			}
			tree, err := ctx.Serialize(ctx.AsMap())
			if err != nil {
				return err
			}
			f, err := format.Lookup(c.String("to"), formatOptions(c, c.String("to")))
			if err != nil {
				return err
			}
			out, err := f.Marshal(tree)
			if err != nil {
				return err
			}
			return writeOutput(c, out)
		},
	}
}

func digestCommand() *cli.Command {
	return &cli.Command{
		Name:      "digest",
		Usage:     "Print the BLAKE3 digest of a document's canonical CBOR encoding",
		ArgsUsage: "[FILE]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Aliases: []string{"f"}, Value: "json", Usage: "input format"},
			&cli.StringFlag{Name: "decompress", Usage: "decompress input: none, zstd, lz4, auto"},
		},
		Action: func(c *cli.Context) error {
			in, err := decodeInput(c)
			if err != nil {
				return err
			}
			b, err := cbor.New(loadedConfig(c).FormatOptions()).Marshal(in)
			if err != nil {
				return err
			}
			sum := blake3.Sum256(b)
			return writeOutput(c, []byte(hex.EncodeToString(sum[:])+"\n"))
		},
	}
}
