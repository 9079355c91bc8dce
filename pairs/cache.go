// elPart: a high-performance tool for partitioning reads into clonal families.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elprep/blob/master/LICENSE.txt>.

package pairs

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync/atomic"
	"unsafe"

	"github.com/exascience/pargo/sync"

	"github.com/exascience/elpart/internal"
)

// A scoreHandle wraps the score of a pair in a box to enable
// claiming and recording it with atomic operations.
type scoreHandle struct {
	score unsafe.Pointer
}

func (h *scoreHandle) load() (float64, bool) {
	p := (*float64)(atomic.LoadPointer(&h.score))
	if p == nil {
		return math.NaN(), false
	}
	return *p, true
}

func (h *scoreHandle) store(score float64) bool {
	return atomic.CompareAndSwapPointer(&h.score, nil, unsafe.Pointer(&score))
}

// A Cache maps pair keys to scores. A pair is first claimed with
// MarkScored, and its score is later filled in with Record. A Cache
// is scoped to one pipeline stage: each stage uses a fresh one.
//
// It is safe for multiple goroutines to use a Cache concurrently.
type Cache struct {
	entries *sync.Map
	marked  int64
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: sync.NewMap(16 * runtime.GOMAXPROCS(0))}
}

// MarkScored claims the given key. It returns true for exactly one
// caller per key, no matter how many goroutines try to claim it; all
// other callers get false. Only the caller that gets true may emit the
// pair to a scorer.
func (c *Cache) MarkScored(key Key) bool {
	_, loaded := c.entries.LoadOrStore(key, new(scoreHandle))
	if !loaded {
		atomic.AddInt64(&c.marked, 1)
	}
	return !loaded
}

// Record stores the score for the given key, claiming the key first
// if necessary. Recording a second score for the same key is a logic
// error and panics.
func (c *Cache) Record(key Key, score float64) {
	entry, loaded := c.entries.LoadOrStore(key, new(scoreHandle))
	if !loaded {
		atomic.AddInt64(&c.marked, 1)
	}
	if !entry.(*scoreHandle).store(score) {
		panic(fmt.Errorf("%w: %v", internal.ErrDuplicateScore, key))
	}
}

// Lookup returns the score recorded for the given key. It returns
// false if the key is not claimed, or claimed but not yet scored.
func (c *Cache) Lookup(key Key) (score float64, ok bool) {
	entry, found := c.entries.Load(key)
	if !found {
		return math.NaN(), false
	}
	return entry.(*scoreHandle).load()
}

// Len returns the number of claimed keys.
func (c *Cache) Len() int {
	return int(atomic.LoadInt64(&c.marked))
}

// A Score is a recorded score together with its key.
type Score struct {
	Key   Key
	Score float64
}

// Scores returns all recorded scores, sorted by key.
func (c *Cache) Scores() []Score {
	result := c.entries.ParallelReduce(func(entries map[interface{}]interface{}) interface{} {
		var scores []Score
		for key, value := range entries {
			if score, ok := value.(*scoreHandle).load(); ok {
				scores = append(scores, Score{key.(Key), score})
			}
		}
		return scores
	}, func(x, y interface{}) interface{} {
		return append(x.([]Score), y.([]Score)...)
	})
	var scores []Score
	if result != nil {
		scores = result.([]Score)
	}
	sort.Slice(scores, func(i, j int) bool {
		return scores[i].Key.less(scores[j].Key)
	})
	return scores
}

func (k Key) less(l Key) bool {
	if k.first != l.first {
		return k.first < l.first
	}
	if k.second != l.second {
		return k.second < l.second
	}
	return !k.unpaired && l.unpaired
}
