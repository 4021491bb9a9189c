// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the trellis CLI command tree.
package commands

import (
	"fmt"

	"github.com/trellis-ml/trellis/cmd/trellis/cli"
	"github.com/trellis-ml/trellis/lib/config"
	"github.com/trellis-ml/trellis/lib/secret"
	"github.com/trellis-ml/trellis/lib/shard"
	"github.com/trellis-ml/trellis/lib/template"
)

// Root builds and returns the complete trellis CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "trellis",
		Description: `Trellis: dialogue preprocessing for reasoning-supervised training.

Prepare ShareGPT corpora, encode multi-turn dialogues with per-turn
reasoning supervision into fixed-length examples, pack them into
capacity-bound containers, and store them as digest-verified shards.`,
		Subcommands: []*cli.Command{
			sampleCommand(),
			encodeCommand(),
			inspectCommand(),
			statsCommand(),
			versionCommand(),
		},
	}
}

// loadConfig loads the run configuration from --config or, when the
// flag is empty, from TRELLIS_CONFIG.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// loadDatasetKey loads the configured dataset key into an mlocked
// buffer, or returns nil when encryption is off.
func loadDatasetKey(cfg *config.Config) (*secret.Buffer, error) {
	if cfg.Shards.KeyFile == "" {
		return nil, nil
	}
	key, err := secret.ReadFile(cfg.Shards.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading dataset key: %w", err)
	}
	if key.Len() != shard.KeySize {
		key.Close()
		return nil, fmt.Errorf("dataset key is %d bytes, want %d", key.Len(), shard.KeySize)
	}
	return key, nil
}

// buildTemplate resolves the configured template definition and pairs
// it with the CLI's byte tokenizer.
func buildTemplate(cfg *config.Config) (*template.Template, error) {
	var definition *template.Definition
	var err error
	if cfg.Template.Path != "" {
		definition, err = template.ReadFile(cfg.Template.Path)
	} else {
		definition, err = template.Builtin(cfg.Template.Name)
	}
	if err != nil {
		return nil, err
	}
	return template.New(definition, template.ByteTokenizer{Offset: 1}, cfg.Reasoning)
}
