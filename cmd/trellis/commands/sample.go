// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/trellis-ml/trellis/cmd/trellis/cli"
	"github.com/trellis-ml/trellis/lib/dataset"
	"github.com/trellis-ml/trellis/lib/dialogue"
)

func sampleCommand() *cli.Command {
	var (
		configPath string
		output     string
		pruneDepth int
		pruneKeep  int
		total      int
		seed       int64
		augment    bool
	)
	return &cli.Command{
		Name:    "sample",
		Summary: "Prune, sample, and augment a ShareGPT corpus",
		Description: `Prepare a ShareGPT corpus for encoding: cap a depth bucket, draw a
proportional sample with a per-depth floor, and optionally expand each
dialogue into one example per assistant message. The result is written
as JSONL, ready for trellis encode.`,
		Examples: []cli.Example{
			{
				Description: "Cap six-turn dialogues at 30000 and sample 100k examples",
				Command:     "trellis sample --prune-depth 6 --prune-keep 30000 --total 100000 --output sampled.jsonl",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("sample", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "config file (default $TRELLIS_CONFIG)")
			flags.StringVar(&output, "output", "", "output JSONL path (required)")
			flags.IntVar(&pruneDepth, "prune-depth", 0, "depth bucket to cap (0 disables)")
			flags.IntVar(&pruneKeep, "prune-keep", 30000, "records kept in the pruned bucket")
			flags.IntVar(&total, "total", 0, "proportional sample target (0 uses config, -1 disables)")
			flags.Int64Var(&seed, "seed", 0, "sampling seed (0 uses config)")
			flags.BoolVar(&augment, "augment", false, "one example per assistant message")
			return flags
		},
		Run: func(args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger := cli.NewCommandLogger().With("command", "sample")

			corpus, err := dataset.Load(logger, cfg.Dataset.Paths...)
			if err != nil {
				return err
			}
			if corpus.Len() == 0 {
				return fmt.Errorf("corpus is empty (dataset.paths: %v)", cfg.Dataset.Paths)
			}

			if pruneDepth > 0 {
				corpus.PruneDepth(pruneDepth, pruneKeep)
			}

			sampleTotal := total
			if sampleTotal == 0 {
				sampleTotal = cfg.Dataset.SampleTotal
			}
			sampleSeed := seed
			if sampleSeed == 0 {
				sampleSeed = cfg.Dataset.SampleSeed
			}
			if sampleTotal > 0 {
				corpus.SampleProportional(sampleTotal, sampleSeed)
			}

			if augment || cfg.Dataset.AugmentPrefixes {
				corpus.AugmentPrefixes()
			}

			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			if err := dialogue.EncodeRecords(file, corpus.Records); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("closing %s: %w", output, err)
			}

			logger.Info("corpus written", "path", output, "records", corpus.Len())
			return nil
		},
	}
}
