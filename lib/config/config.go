// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/trellis-ml/trellis/lib/attention"
	"github.com/trellis-ml/trellis/lib/shard"
)

// ConflictError reports mutually exclusive options requested
// together. It is raised at validation time, before any data is
// touched, and aborts the run.
type ConflictError struct {
	// First and Second name the conflicting options.
	First  string
	Second string

	// Reason states why the combination has no defined meaning.
	Reason string
}

// Error implements error.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("configuration conflict: %s with %s: %s", e.First, e.Second, e.Reason)
}

// Config is the run configuration for a preprocessing pass. Commands
// consume it; no package mutates it after Load.
type Config struct {
	// Cutoff is the exact length of every encoded example and the
	// nominal capacity of every packed container.
	Cutoff int `yaml:"cutoff"`

	// PadID is the tokenizer's padding token id.
	PadID int32 `yaml:"pad_id"`

	// IgnoreLabel is the label sentinel at untrained positions. Must
	// be negative so it can never collide with a token id. Zero
	// means -100.
	IgnoreLabel int32 `yaml:"ignore_label"`

	// Reasoning enables reasoning-mode encoding: separately
	// supervised reasoning spans and duplicate answer runs.
	Reasoning bool `yaml:"reasoning"`

	// DType is the training dtype the additive mask is built for:
	// float32, float16, or bfloat16.
	DType string `yaml:"dtype"`

	// AttentionBackend selects the attention implementation the
	// batch is destined for: "eager" (dense additive masks) or
	// "flash" (structural masks only).
	AttentionBackend string `yaml:"attention_backend"`

	// Workers is the preprocessing worker count. Zero means one per
	// CPU.
	Workers int `yaml:"workers"`

	Packing  PackingConfig  `yaml:"packing"`
	Template TemplateConfig `yaml:"template"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Shards   ShardConfig    `yaml:"shards"`

	// ManifestPath is the SQLite manifest database path. Empty
	// disables manifest recording.
	ManifestPath string `yaml:"manifest_path"`
}

// PackingConfig configures the sequence packer.
type PackingConfig struct {
	// Enabled turns on bin-packing of trimmed examples.
	Enabled bool `yaml:"enabled"`

	// Provenance tracks per-token segment indices so attention never
	// crosses packed-member boundaries. Packing without it would let
	// unrelated dialogues attend each other, so Validate requires it
	// whenever Enabled is set.
	Provenance bool `yaml:"provenance"`
}

// TemplateConfig selects and parameterizes the chat template.
type TemplateConfig struct {
	// Name selects a built-in template. Ignored when Path is set.
	Name string `yaml:"name"`

	// Path loads a JSONC template definition file.
	Path string `yaml:"path"`

	// MaskHistory trains only on the final turn, masking prior
	// assistant turns. Undefined under reasoning duplication.
	MaskHistory bool `yaml:"mask_history"`

	// TrainOnPrompt extends supervision onto source tokens.
	// Undefined under reasoning duplication.
	TrainOnPrompt bool `yaml:"train_on_prompt"`

	// EfficientEOS merges the turn terminator into the next turn's
	// source span. Undefined under reasoning duplication.
	EfficientEOS bool `yaml:"efficient_eos"`
}

// DatasetConfig locates and parameterizes the input corpus.
type DatasetConfig struct {
	// Paths are the ShareGPT corpus files (JSON array or JSONL).
	Paths []string `yaml:"paths"`

	// SampleTotal is the target example count for proportional
	// sampling. Zero disables sampling.
	SampleTotal int `yaml:"sample_total"`

	// SampleSeed seeds the sampling shuffle for reproducibility.
	SampleSeed int64 `yaml:"sample_seed"`

	// AugmentPrefixes emits one example per assistant message.
	AugmentPrefixes bool `yaml:"augment_prefixes"`
}

// ShardConfig configures shard output.
type ShardConfig struct {
	// Dir is the output directory for shard files.
	Dir string `yaml:"dir"`

	// MaxRecords rolls to a new shard file after this many records.
	// Zero means 8192.
	MaxRecords int `yaml:"max_records"`

	// Compression is the record block compression: none, lz4, zstd,
	// bg4_lz4, or auto. Empty means auto.
	Compression string `yaml:"compression"`

	// KeyFile enables encryption: the path of a 32-byte dataset key
	// file loaded into an mlocked buffer.
	KeyFile string `yaml:"key_file"`
}

// Attention backend names accepted by Validate.
const (
	BackendEager = "eager"
	BackendFlash = "flash"
)

// Default returns a Config with the defaults a minimal file inherits.
// The config file is still required; these exist so every field has a
// sensible zero state, not as a fallback.
func Default() *Config {
	return &Config{
		Cutoff:           4096,
		IgnoreLabel:      -100,
		DType:            "bfloat16",
		AttentionBackend: BackendEager,
		Template:         TemplateConfig{Name: "plain"},
		Shards:           ShardConfig{MaxRecords: 8192, Compression: "auto"},
	}
}

// Load loads configuration from the file named by the TRELLIS_CONFIG
// environment variable. There are no fallbacks: if the variable is
// unset, Load fails.
func Load() (*Config, error) {
	path := os.Getenv("TRELLIS_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("TRELLIS_CONFIG environment variable not set; " +
			"set it to the path of your trellis.yaml config file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path. The file is
// the single source of truth; environment variables do not override
// values. The only expansion performed is ${VAR} and ${VAR:-default}
// on path fields.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandPaths()
	return cfg, nil
}

// expandPaths expands ${VAR} and ${VAR:-default} patterns in every
// path-valued field.
func (c *Config) expandPaths() {
	for index, path := range c.Dataset.Paths {
		c.Dataset.Paths[index] = expandVars(path)
	}
	c.Template.Path = expandVars(c.Template.Path)
	c.Shards.Dir = expandVars(c.Shards.Dir)
	c.Shards.KeyFile = expandVars(c.Shards.KeyFile)
	c.ManifestPath = expandVars(c.ManifestPath)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration, including the mutual-exclusion
// matrix, before any data is touched. Conflicts come back as
// *ConflictError; other problems as joined plain errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Cutoff <= 0 {
		errs = append(errs, fmt.Errorf("cutoff must be positive, got %d", c.Cutoff))
	}
	if c.IgnoreLabel >= 0 {
		errs = append(errs, fmt.Errorf("ignore_label must be negative so it cannot collide with a token id, got %d",
			c.IgnoreLabel))
	}
	if _, err := attention.ParseDType(c.DType); err != nil {
		errs = append(errs, err)
	}
	if c.AttentionBackend != BackendEager && c.AttentionBackend != BackendFlash {
		errs = append(errs, fmt.Errorf("unknown attention backend %q (want %s or %s)",
			c.AttentionBackend, BackendEager, BackendFlash))
	}
	if c.Shards.Compression != "" && c.Shards.Compression != "auto" {
		if _, err := shard.ParseCompressionTag(c.Shards.Compression); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Reasoning {
		if c.Template.MaskHistory {
			errs = append(errs, &ConflictError{
				First:  "reasoning",
				Second: "template.mask_history",
				Reason: "history masking has no defined interaction with duplicate answer runs",
			})
		}
		if c.Template.TrainOnPrompt {
			errs = append(errs, &ConflictError{
				First:  "reasoning",
				Second: "template.train_on_prompt",
				Reason: "prompt supervision is undefined when answers are duplicated per turn",
			})
		}
		if c.Template.EfficientEOS {
			errs = append(errs, &ConflictError{
				First:  "reasoning",
				Second: "template.efficient_eos",
				Reason: "merged terminators cannot be duplicated consistently across answer copies",
			})
		}
		if c.AttentionBackend == BackendFlash {
			errs = append(errs, &ConflictError{
				First:  "reasoning",
				Second: "attention_backend=flash",
				Reason: "fused attention accepts only structural masks, not the dense turn-aware mask",
			})
		}
	}
	if c.Packing.Enabled && !c.Packing.Provenance {
		errs = append(errs, &ConflictError{
			First:  "packing.enabled",
			Second: "packing.provenance=false",
			Reason: "packing without provenance lets attention leak across packed sequences",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Compression resolves the shard compression setting into writer
// options. Call only after Validate.
func (c *Config) Compression() (tag shard.CompressionTag, auto bool) {
	if c.Shards.Compression == "" || c.Shards.Compression == "auto" {
		return 0, true
	}
	tag, err := shard.ParseCompressionTag(c.Shards.Compression)
	if err != nil {
		// Validate has already vetted the string.
		panic("config: " + err.Error())
	}
	return tag, false
}
