// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/spf13/pflag"

	"github.com/trellis-ml/trellis/cmd/trellis/cli"
	"github.com/trellis-ml/trellis/lib/attention"
	"github.com/trellis-ml/trellis/lib/maskview"
	"github.com/trellis-ml/trellis/lib/secret"
	"github.com/trellis-ml/trellis/lib/shard"
	"github.com/trellis-ml/trellis/lib/token"
)

func inspectCommand() *cli.Command {
	var (
		keyFile  string
		index    int
		mask     bool
		limit    int
		asJSON   bool
		validate bool
	)
	return &cli.Command{
		Name:    "inspect",
		Summary: "Dump a shard's header and records",
		Usage:   "trellis inspect <shard-file> [flags]",
		Description: `Open a shard file, print its header, and dump a record. With --mask
the record's turn-aware attention mask is rendered as a grid. With
--validate the whole shard is drained, which verifies its digest
trailer; a corrupt shard exits nonzero.`,
		Examples: []cli.Example{
			{
				Description: "Show record 3 with its attention mask",
				Command:     "trellis inspect shards/000000.trl --index 3 --mask --limit 96",
			},
			{
				Description: "Verify a shard end to end",
				Command:     "trellis inspect shards/000000.trl --validate",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			flags.StringVar(&keyFile, "key-file", "", "dataset key file for encrypted shards")
			flags.IntVar(&index, "index", 0, "record ordinal to dump")
			flags.BoolVar(&mask, "mask", false, "render the record's attention mask")
			flags.IntVar(&limit, "limit", 128, "mask positions rendered (0 = all)")
			flags.BoolVar(&asJSON, "json", false, "output as JSON")
			flags.BoolVar(&validate, "validate", false, "drain the shard and verify its digest")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one shard file argument")
			}
			return runInspect(args[0], inspectOptions{
				keyFile:  keyFile,
				index:    index,
				mask:     mask,
				limit:    limit,
				asJSON:   asJSON,
				validate: validate,
			})
		},
	}
}

type inspectOptions struct {
	keyFile  string
	index    int
	mask     bool
	limit    int
	asJSON   bool
	validate bool
}

// recordView is the JSON shape of a dumped record.
type recordView struct {
	Index       int      `json:"index"`
	Packed      bool     `json:"packed"`
	TrimmedLen  int      `json:"trimmed_len"`
	InputIDs    []int32  `json:"input_ids"`
	Labels      []int32  `json:"labels"`
	PositionIDs []int32  `json:"position_ids"`
	Roles       []string `json:"roles"`
	SegmentIDs  []int32  `json:"segment_ids,omitempty"`
}

func runInspect(path string, opts inspectOptions) error {
	var key *secret.Buffer
	if opts.keyFile != "" {
		var err error
		key, err = secret.ReadFile(opts.keyFile)
		if err != nil {
			return fmt.Errorf("loading dataset key: %w", err)
		}
		defer key.Close()
	}

	reader, err := shard.Open(path, key)
	if err != nil {
		return err
	}
	defer reader.Close()

	if opts.validate {
		return validateShard(path, reader)
	}

	header := reader.Header()
	record, err := recordAt(reader, opts.index)
	if err != nil {
		return err
	}

	view, example, segments, err := expand(record, opts.index)
	if err != nil {
		return err
	}

	if opts.asJSON {
		return cli.WriteJSON(struct {
			Header shard.Header `json:"header"`
			Record recordView   `json:"record"`
		}{header, view})
	}

	fmt.Printf("shard %s\n", path)
	fmt.Printf("  template=%s cutoff=%d dtype=%s packed=%t reasoning=%t encrypted=%t\n",
		header.Template, header.Cutoff, header.DType, header.Packed,
		header.Reasoning, header.Encrypted)

	if err := printRecord(view); err != nil {
		return err
	}

	if opts.mask {
		return printMask(example, segments, opts.limit)
	}
	return nil
}

// validateShard drains the reader; Next returns io.EOF only after the
// digest trailer verifies.
func validateShard(path string, reader *shard.Reader) error {
	count := 0
	for {
		_, err := reader.Next()
		if errors.Is(err, io.EOF) {
			fmt.Printf("%s: %d records, digest verified\n", path, count)
			return nil
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			return &cli.ExitError{Code: 1}
		}
		count++
	}
}

func recordAt(reader *shard.Reader, index int) (shard.Record, error) {
	for skipped := 0; ; skipped++ {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return shard.Record{}, fmt.Errorf("shard has only %d records, wanted index %d", skipped, index)
		}
		if err != nil {
			return shard.Record{}, err
		}
		if skipped == index {
			return record, nil
		}
	}
}

// expand decodes a record into its display view plus the channels the
// mask renderer needs.
func expand(record shard.Record, index int) (recordView, token.Example, []int32, error) {
	var example token.Example
	var segments []int32
	if record.Packed() {
		packed, err := record.PackedExample()
		if err != nil {
			return recordView{}, token.Example{}, nil, err
		}
		example = packed.Example
		segments = packed.SegmentIDs
	} else {
		var err error
		example, err = record.Example()
		if err != nil {
			return recordView{}, token.Example{}, nil, err
		}
	}

	roles := make([]string, len(example.Roles))
	for position, role := range example.Roles {
		roles[position] = role.String()
	}
	view := recordView{
		Index:       index,
		Packed:      record.Packed(),
		TrimmedLen:  example.TrimmedLen(),
		InputIDs:    example.InputIDs,
		Labels:      example.Labels,
		PositionIDs: example.PositionIDs,
		Roles:       roles,
		SegmentIDs:  segments,
	}
	return view, example, segments, nil
}

// printRecord writes the record as indented JSON, syntax-highlighted
// when stdout is a terminal.
func printRecord(view recordView) error {
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return err
	}
	if cli.IsTerminal() {
		return quick.Highlight(os.Stdout, string(data)+"\n", "json", "terminal256", "monokai")
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}

func printMask(example token.Example, segments []int32, limit int) error {
	builder := attention.Builder{}
	input := attention.Input{Roles: example.Roles, Segments: segments}
	visibility, err := builder.Visibility([]attention.Input{input})
	if err != nil {
		return err
	}
	grid, err := maskview.Bool(visibility, example.Roles, 0, maskview.Options{
		Limit: limit,
		Plain: !cli.IsTerminal(),
	})
	if err != nil {
		return err
	}
	_, err = os.Stdout.WriteString(grid)
	return err
}
