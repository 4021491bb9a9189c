// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/trellis-ml/trellis/lib/config"
	"github.com/trellis-ml/trellis/lib/shard"
)

func TestRootTree(t *testing.T) {
	root := Root()
	want := map[string]bool{
		"sample": false, "encode": false, "inspect": false,
		"stats": false, "version": false,
	}
	for _, sub := range root.Subcommands {
		if _, known := want[sub.Name]; !known {
			t.Errorf("unexpected subcommand %q", sub.Name)
			continue
		}
		want[sub.Name] = true
		if sub.Summary == "" {
			t.Errorf("subcommand %q has no summary", sub.Name)
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("subcommand %q missing", name)
		}
	}
}

const testCorpus = `
{"conversations": [{"from": "human", "value": "what is two plus two"}, {"from": "gpt", "value": "four"}]}
{"conversations": [{"from": "human", "value": "and doubled"}, {"from": "gpt", "value": "eight"}]}
`

func writeTestCorpus(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	if err := os.WriteFile(path, []byte(testCorpus), 0o644); err != nil {
		t.Fatalf("writing corpus: %v", err)
	}
	return path
}

func testEncodeConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Cutoff = 256
	cfg.Dataset.Paths = []string{writeTestCorpus(t)}
	cfg.Shards.Dir = filepath.Join(dir, "shards")
	cfg.ManifestPath = filepath.Join(dir, "manifest.db")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

func TestRunEncodeEndToEnd(t *testing.T) {
	cfg := testEncodeConfig(t)
	if err := runEncode(context.Background(), cfg, ""); err != nil {
		t.Fatalf("runEncode: %v", err)
	}

	entries, err := os.ReadDir(cfg.Shards.Dir)
	if err != nil {
		t.Fatalf("reading shard dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d shard files, want 1", len(entries))
	}

	reader, err := shard.Open(filepath.Join(cfg.Shards.Dir, entries[0].Name()), nil)
	if err != nil {
		t.Fatalf("opening shard: %v", err)
	}
	defer reader.Close()

	header := reader.Header()
	if header.Cutoff != 256 || header.Packed || header.Template != "plain" {
		t.Errorf("header = %+v", header)
	}

	records := 0
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("reading record %d: %v", records, err)
		}
		example, err := record.Example()
		if err != nil {
			t.Fatalf("decoding record %d: %v", records, err)
		}
		if example.Len() != 256 {
			t.Errorf("record %d has length %d", records, example.Len())
		}
		records++
	}
	if records != 2 {
		t.Errorf("shard has %d records, want 2", records)
	}

	if _, err := os.Stat(cfg.ManifestPath); err != nil {
		t.Errorf("manifest not written: %v", err)
	}
}

func TestRunEncodePacked(t *testing.T) {
	cfg := testEncodeConfig(t)
	cfg.Packing.Enabled = true
	cfg.Packing.Provenance = true
	if err := runEncode(context.Background(), cfg, ""); err != nil {
		t.Fatalf("runEncode: %v", err)
	}

	entries, err := os.ReadDir(cfg.Shards.Dir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("no shard files: %v", err)
	}
	reader, err := shard.Open(filepath.Join(cfg.Shards.Dir, entries[0].Name()), nil)
	if err != nil {
		t.Fatalf("opening shard: %v", err)
	}
	defer reader.Close()

	if !reader.Header().Packed {
		t.Error("header does not mark the shard packed")
	}
	record, err := reader.Next()
	if err != nil {
		t.Fatalf("reading record: %v", err)
	}
	packed, err := record.PackedExample()
	if err != nil {
		t.Fatalf("decoding packed record: %v", err)
	}
	// Both tiny dialogues fit one container of cutoff+1 positions.
	if packed.Len() != cfg.Cutoff+1 {
		t.Errorf("container length %d, want %d", packed.Len(), cfg.Cutoff+1)
	}
}

func TestLoadDatasetKeyRejectsWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.key")
	if err := os.WriteFile(path, []byte("too short"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Shards.KeyFile = path
	if _, err := loadDatasetKey(cfg); err == nil {
		t.Error("short key accepted")
	}
}

func TestBuildTemplateUnknownName(t *testing.T) {
	cfg := config.Default()
	cfg.Template.Name = "gpt9"
	if _, err := buildTemplate(cfg); err == nil {
		t.Error("unknown template accepted")
	}
}
