// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"

	"github.com/trellis-ml/trellis/lib/dialogue"
)

// Corpus is an ordered ShareGPT corpus under preparation.
type Corpus struct {
	// Records holds the rows in corpus order. Operations mutate this
	// slice in place.
	Records []dialogue.Record

	// Logger receives drop warnings. Nil means slog.Default.
	Logger *slog.Logger
}

func (c *Corpus) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Load reads one or more corpus files (JSON array or JSONL) into a
// single Corpus, concatenated in argument order.
func Load(logger *slog.Logger, paths ...string) (*Corpus, error) {
	corpus := &Corpus{Logger: logger}
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		records, err := dialogue.DecodeRecords(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		corpus.Records = append(corpus.Records, records...)
	}
	return corpus, nil
}

// Len returns the record count.
func (c *Corpus) Len() int {
	return len(c.Records)
}

// DepthMap buckets record indices by exchange depth, preserving
// corpus order within each bucket.
func (c *Corpus) DepthMap() map[int][]int {
	buckets := make(map[int][]int)
	for index := range c.Records {
		depth := c.Records[index].Depth()
		buckets[depth] = append(buckets[depth], index)
	}
	return buckets
}

// PruneDepth caps the number of records at exactly the given depth,
// keeping the earliest. Other depths are untouched.
func (c *Corpus) PruneDepth(depth, keep int) {
	kept := c.Records[:0]
	count := 0
	for index := range c.Records {
		if c.Records[index].Depth() == depth {
			if count >= keep {
				continue
			}
			count++
		}
		kept = append(kept, c.Records[index])
	}
	if dropped := len(c.Records) - len(kept); dropped > 0 {
		c.logger().Info("pruned depth bucket", "depth", depth, "kept", keep, "dropped", dropped)
	}
	c.Records = kept
}

// SampleProportional downsamples the corpus to roughly total records,
// allocating each depth bucket its proportional share but never less
// than min(200, bucket size). Selection within a bucket is a seeded
// shuffle, so the same seed reproduces the same sample. A total of
// zero or one covering the corpus leaves it unchanged.
func (c *Corpus) SampleProportional(total int, seed int64) {
	if total <= 0 || total >= len(c.Records) {
		return
	}

	buckets := c.DepthMap()
	depths := make([]int, 0, len(buckets))
	for depth := range buckets {
		depths = append(depths, depth)
	}
	sort.Ints(depths)

	rng := rand.New(rand.NewSource(seed))
	var selected []int
	for _, depth := range depths {
		bucket := buckets[depth]
		share := len(bucket) * total / len(c.Records)
		floor := len(bucket)
		if floor > 200 {
			floor = 200
		}
		count := share
		if count < floor {
			count = floor
		}
		if count > len(bucket) {
			count = len(bucket)
		}

		shuffled := append([]int(nil), bucket...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		selected = append(selected, shuffled[:count]...)
	}

	// Corpus order is restored after per-bucket selection.
	sort.Ints(selected)
	records := make([]dialogue.Record, len(selected))
	for position, index := range selected {
		records[position] = c.Records[index]
	}
	c.logger().Info("sampled corpus", "before", len(c.Records), "after", len(records), "seed", seed)
	c.Records = records
}

// AugmentPrefixes replaces each record with one record per assistant
// message, each carrying the dialogue prefix up to and including that
// message. A record with a single assistant message is unchanged.
func (c *Corpus) AugmentPrefixes() {
	augmented := make([]dialogue.Record, 0, len(c.Records))
	for _, record := range c.Records {
		for index, utterance := range record.Conversations {
			if !utterance.IsAssistant() {
				continue
			}
			prefix := record
			prefix.Conversations = record.Conversations[:index+1]
			augmented = append(augmented, prefix)
		}
	}
	c.logger().Info("augmented prefixes", "before", len(c.Records), "after", len(augmented))
	c.Records = augmented
}

// AttachReasoning attaches generated reasoning strings to the
// corpus's assistant messages in corpus order. The thought count must
// match the assistant message count exactly; anything else means the
// generation run and the corpus are out of step.
func (c *Corpus) AttachReasoning(thoughts []string) error {
	next := 0
	for recordIndex := range c.Records {
		conversations := c.Records[recordIndex].Conversations
		for index := range conversations {
			if !conversations[index].IsAssistant() {
				continue
			}
			if next >= len(thoughts) {
				return fmt.Errorf("dataset: ran out of reasoning strings at record %d (%d supplied)",
					recordIndex, len(thoughts))
			}
			conversations[index].Reasoning = thoughts[next]
			next++
		}
	}
	if next != len(thoughts) {
		return fmt.Errorf("dataset: %d reasoning strings left over after %d assistant messages",
			len(thoughts)-next, next)
	}
	return nil
}

// Dialogues converts the records into validated dialogues, dropping
// malformed rows with a warning. The returned indices map each
// dialogue back to its record.
func (c *Corpus) Dialogues() ([]dialogue.Dialogue, []int) {
	dialogues := make([]dialogue.Dialogue, 0, len(c.Records))
	indices := make([]int, 0, len(c.Records))
	for index := range c.Records {
		converted, err := c.Records[index].Dialogue()
		if err != nil {
			c.logger().Warn("skipping malformed record", "index", index, "error", err)
			continue
		}
		dialogues = append(dialogues, converted)
		indices = append(indices, index)
	}
	return dialogues, indices
}
