// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package preprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/trellis-ml/trellis/lib/clock"
	"github.com/trellis-ml/trellis/lib/config"
	"github.com/trellis-ml/trellis/lib/dataset"
	"github.com/trellis-ml/trellis/lib/dialogue"
	"github.com/trellis-ml/trellis/lib/encode"
	"github.com/trellis-ml/trellis/lib/packing"
	"github.com/trellis-ml/trellis/lib/template"
	"github.com/trellis-ml/trellis/lib/token"
)

// Stats summarizes one pass.
type Stats struct {
	// Dialogues is the count of structurally valid dialogues fed to
	// the encoder; Malformed the count dropped before it.
	Dialogues int
	Malformed int

	// Turns and Tokens count encoded turns and non-padding positions
	// across the produced examples.
	Turns  int
	Tokens int

	// Overlong counts dialogues dropped for exceeding the cutoff.
	// Nonzero only in packed runs; an unpacked run aborts instead.
	Overlong int

	// Examples is the produced example count; Containers the packed
	// container count (zero when packing is off). PackerDropped
	// counts examples the packer refused (oversized after trimming).
	Examples      int
	Containers    int
	PackerDropped int

	// Duration is the wall time of the pass.
	Duration time.Duration
}

// Result is the output of one pass: Examples in unpacked mode, Packed
// in packed mode, never both.
type Result struct {
	Examples []token.Example
	Packed   []token.PackedExample
	Stats    Stats
}

// Runner executes preparation passes for one configuration.
type Runner struct {
	Config   *config.Config
	Template *template.Template

	// Logger receives warnings and the pass summary. Nil means
	// slog.Default.
	Logger *slog.Logger

	// Clock times the pass. Nil means the real clock.
	Clock clock.Clock
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) clock() clock.Clock {
	if r.Clock != nil {
		return r.Clock
	}
	return clock.Real()
}

func (r *Runner) workers() int {
	if r.Config.Workers > 0 {
		return r.Config.Workers
	}
	return runtime.NumCPU()
}

// item is one worker result, reassembled by input index.
type item struct {
	example token.Example
	turns   int
	skipped bool
	fatal   error
}

// Run executes the pass over the corpus.
func (r *Runner) Run(ctx context.Context, corpus *dataset.Corpus) (*Result, error) {
	start := r.clock().Now()

	dialogues, _ := corpus.Dialogues()
	stats := Stats{
		Dialogues: len(dialogues),
		Malformed: corpus.Len() - len(dialogues),
	}

	items := make([]item, len(dialogues))
	r.encodeAll(ctx, dialogues, items)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	packed := r.Config.Packing.Enabled
	examples := make([]token.Example, 0, len(items))
	for index := range items {
		entry := &items[index]
		switch {
		case entry.fatal != nil:
			var overlong *encode.OverlongError
			if errors.As(entry.fatal, &overlong) {
				if packed {
					r.logger().Warn("skipping overlong dialogue",
						"index", index, "length", overlong.Length, "cutoff", overlong.Cutoff)
					stats.Overlong++
					continue
				}
				return nil, fmt.Errorf("dialogue %d: %w", index, entry.fatal)
			}
			return nil, fmt.Errorf("dialogue %d: %w", index, entry.fatal)
		case entry.skipped:
			stats.Malformed++
			continue
		}
		stats.Turns += entry.turns
		stats.Tokens += entry.example.TrimmedLen()
		examples = append(examples, entry.example)
	}

	result := &Result{Stats: stats}
	if packed {
		packer := packing.Packer{
			Capacity:    r.Config.Cutoff,
			PadID:       r.Config.PadID,
			IgnoreLabel: r.Config.IgnoreLabel,
			Logger:      r.logger(),
		}
		containers, dropped, err := packer.Pack(examples)
		if err != nil {
			// Packer invariant violations must never be repaired.
			return nil, err
		}
		result.Packed = containers
		result.Stats.Containers = len(containers)
		result.Stats.PackerDropped = len(dropped)
		result.Stats.Examples = len(examples) - len(dropped)
	} else {
		result.Examples = examples
		result.Stats.Examples = len(examples)
	}

	result.Stats.Duration = r.clock().Since(start)
	r.logger().Info("pass complete",
		"dialogues", result.Stats.Dialogues,
		"malformed", result.Stats.Malformed,
		"examples", result.Stats.Examples,
		"containers", result.Stats.Containers,
		"overlong", result.Stats.Overlong,
		"packer_dropped", result.Stats.PackerDropped,
		"turns", result.Stats.Turns,
		"tokens", result.Stats.Tokens,
		"duration", result.Stats.Duration,
	)
	return result, nil
}

// encodeAll renders and encodes the dialogues with a fixed worker
// count over disjoint contiguous slices, writing results in place.
func (r *Runner) encodeAll(ctx context.Context, dialogues []dialogue.Dialogue, items []item) {
	workers := r.workers()
	if workers > len(dialogues) {
		workers = len(dialogues)
	}
	if workers <= 1 {
		r.encodeSlice(ctx, dialogues, items, 0, len(dialogues))
		return
	}

	var group sync.WaitGroup
	chunk := (len(dialogues) + workers - 1) / workers
	for begin := 0; begin < len(dialogues); begin += chunk {
		end := begin + chunk
		if end > len(dialogues) {
			end = len(dialogues)
		}
		group.Add(1)
		go func(begin, end int) {
			defer group.Done()
			r.encodeSlice(ctx, dialogues, items, begin, end)
		}(begin, end)
	}
	group.Wait()
}

func (r *Runner) encodeSlice(ctx context.Context, dialogues []dialogue.Dialogue, items []item, begin, end int) {
	encoder := encode.Encoder{
		Cutoff:      r.Config.Cutoff,
		PadID:       r.Config.PadID,
		IgnoreLabel: r.Config.IgnoreLabel,
	}
	for index := begin; index < end; index++ {
		if ctx.Err() != nil {
			return
		}
		turns, err := r.Template.Render(&dialogues[index])
		if err != nil {
			var malformed *dialogue.MalformedError
			if errors.As(err, &malformed) {
				r.logger().Warn("skipping malformed dialogue", "index", index, "error", err)
				items[index].skipped = true
				continue
			}
			items[index].fatal = err
			continue
		}
		example, err := encoder.Encode(turns)
		if err != nil {
			items[index].fatal = err
			continue
		}
		items[index].example = example
		items[index].turns = len(turns)
	}
}
