// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package attention

import (
	"runtime"
	"sync"
)

// Placement chooses how the O(seq²) mask fill is executed. It is an
// execution strategy only: every placement produces bit-identical
// masks, workers write disjoint rows and share nothing else.
type Placement interface {
	fill(rows int, fillRow func(row int))
}

// Serial fills mask rows on the calling goroutine.
func Serial() Placement {
	return serialPlacement{}
}

type serialPlacement struct{}

func (serialPlacement) fill(rows int, fillRow func(row int)) {
	for row := 0; row < rows; row++ {
		fillRow(row)
	}
}

// Parallel fills mask rows on the given number of worker goroutines,
// each taking a contiguous shard of rows. A worker count of zero or
// less means one worker per available CPU.
func Parallel(workers int) Placement {
	return parallelPlacement{workers: workers}
}

type parallelPlacement struct {
	workers int
}

func (p parallelPlacement) fill(rows int, fillRow func(row int)) {
	workers := p.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > rows {
		workers = rows
	}
	if workers <= 1 {
		serialPlacement{}.fill(rows, fillRow)
		return
	}

	shard := (rows + workers - 1) / workers
	var group sync.WaitGroup
	for start := 0; start < rows; start += shard {
		end := start + shard
		if end > rows {
			end = rows
		}
		group.Add(1)
		go func(start, end int) {
			defer group.Done()
			for row := start; row < end; row++ {
				fillRow(row)
			}
		}(start, end)
	}
	group.Wait()
}
