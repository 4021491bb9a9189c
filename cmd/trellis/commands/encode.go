// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/trellis-ml/trellis/cmd/trellis/cli"
	"github.com/trellis-ml/trellis/lib/clock"
	"github.com/trellis-ml/trellis/lib/config"
	"github.com/trellis-ml/trellis/lib/datacard"
	"github.com/trellis-ml/trellis/lib/dataset"
	"github.com/trellis-ml/trellis/lib/manifest"
	"github.com/trellis-ml/trellis/lib/preprocess"
	"github.com/trellis-ml/trellis/lib/shard"
)

func encodeCommand() *cli.Command {
	var (
		configPath string
		cardPath   string
		pack       bool
	)
	return &cli.Command{
		Name:    "encode",
		Summary: "Encode a corpus into fixed-length example shards",
		Description: `Run the full preparation pass: load the corpus, render dialogues
through the chat template, encode them into fixed-length examples
(optionally bin-packed into containers), and write digest-verified
shard files. When a manifest database is configured, the run, its
shards, and its drops are catalogued there.`,
		Examples: []cli.Example{
			{
				Description: "Encode with the configured settings",
				Command:     "trellis encode --config trellis.yaml",
			},
			{
				Description: "Force packing on for this run",
				Command:     "trellis encode --config trellis.yaml --pack",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("encode", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "config file (default $TRELLIS_CONFIG)")
			flags.StringVar(&cardPath, "card", "", "dataset card recorded into the manifest")
			flags.BoolVar(&pack, "pack", false, "bin-pack examples into containers")
			return flags
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if pack {
				cfg.Packing.Enabled = true
				cfg.Packing.Provenance = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runEncode(context.Background(), cfg, cardPath)
		},
	}
}

func runEncode(ctx context.Context, cfg *config.Config, cardPath string) error {
	logger := cli.NewCommandLogger().With("command", "encode")
	clk := clock.Real()

	var card *datacard.Card
	if cardPath != "" {
		var err error
		card, err = datacard.ReadFile(cardPath)
		if err != nil {
			return err
		}
	}

	tmpl, err := buildTemplate(cfg)
	if err != nil {
		return err
	}

	corpus, err := dataset.Load(logger, cfg.Dataset.Paths...)
	if err != nil {
		return err
	}
	if cfg.Dataset.SampleTotal > 0 {
		corpus.SampleProportional(cfg.Dataset.SampleTotal, cfg.Dataset.SampleSeed)
	}
	if cfg.Dataset.AugmentPrefixes {
		corpus.AugmentPrefixes()
	}

	var store *manifest.Store
	var runID int64
	if cfg.ManifestPath != "" {
		store, err = manifest.Open(cfg.ManifestPath, logger, clk)
		if err != nil {
			return err
		}
		defer store.Close()

		info := manifest.RunInfo{Config: cfg}
		if card != nil {
			info.CardName = card.Front.Name
			info.CardLicense = card.Front.License
		}
		runID, err = store.BeginRun(ctx, info)
		if err != nil {
			return err
		}
	}

	runner := preprocess.Runner{
		Config:   cfg,
		Template: tmpl,
		Logger:   logger,
		Clock:    clk,
	}
	result, err := runner.Run(ctx, corpus)
	if err != nil {
		return err
	}

	written, err := writeShards(cfg, tmpl.Definition.Name, result, clk, logger)
	if err != nil {
		return err
	}

	if store != nil {
		for _, entry := range written {
			if err := store.AddShard(ctx, runID, entry.path, entry.digest, entry.records, entry.bytes); err != nil {
				return err
			}
		}
		if err := store.FinishRun(ctx, runID, result.Stats); err != nil {
			return err
		}
	}

	logger.Info("encode complete", "shards", len(written), "examples", result.Stats.Examples)
	return nil
}

// writtenShard is one shard file produced by the pass.
type writtenShard struct {
	path    string
	digest  shard.Digest
	records int64
	bytes   int64
}

// writeShards writes the pass result into rolling shard files.
func writeShards(cfg *config.Config, templateName string, result *preprocess.Result,
	clk clock.Clock, logger *slog.Logger) ([]writtenShard, error) {
	if cfg.Shards.Dir == "" {
		return nil, fmt.Errorf("shards.dir is not configured")
	}
	if err := os.MkdirAll(cfg.Shards.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating shard directory: %w", err)
	}

	key, err := loadDatasetKey(cfg)
	if err != nil {
		return nil, err
	}
	if key != nil {
		defer key.Close()
	}

	tag, auto := cfg.Compression()
	options := shard.WriterOptions{Compression: tag, Auto: auto, DatasetKey: key}
	header := shard.Header{
		Template:    templateName,
		Cutoff:      cfg.Cutoff,
		DType:       cfg.DType,
		Packed:      cfg.Packing.Enabled,
		Reasoning:   cfg.Reasoning,
		CreatedUnix: clk.Now().Unix(),
	}

	records := len(result.Examples)
	if cfg.Packing.Enabled {
		records = len(result.Packed)
	}
	maxRecords := cfg.Shards.MaxRecords
	if maxRecords <= 0 {
		maxRecords = 8192
	}

	var written []writtenShard
	for begin := 0; begin < records; begin += maxRecords {
		end := begin + maxRecords
		if end > records {
			end = records
		}
		path := filepath.Join(cfg.Shards.Dir, fmt.Sprintf("%06d.trl", len(written)))

		writer, err := shard.Create(path, header, options)
		if err != nil {
			return nil, err
		}
		for index := begin; index < end; index++ {
			var record shard.Record
			if cfg.Packing.Enabled {
				record = shard.FromPacked(&result.Packed[index])
			} else {
				record = shard.FromExample(&result.Examples[index])
			}
			if err := writer.Append(record); err != nil {
				writer.Close()
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
		digest, err := writer.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		stat, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		written = append(written, writtenShard{
			path:    path,
			digest:  digest,
			records: int64(end - begin),
			bytes:   stat.Size(),
		})
		logger.Info("shard written",
			"path", path, "records", end-begin,
			"bytes", stat.Size(), "digest", shard.FormatDigest(digest))
	}
	return written, nil
}
