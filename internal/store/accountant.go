// Copyright 2025 TimeFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"sync/atomic"
)

// Accountant tracks aggregate bytes consumed by version records against a
// configured ceiling. The running total is a single atomically updated
// counter since Charge/Release are invoked from many per-file sections
// concurrently; the exact value is reconciled against the index on open and
// after cleanup.
type Accountant struct {
	ceiling int64 // 0 = unlimited
	total   atomic.Int64
}

// NewAccountant creates an accountant with the given ceiling in bytes.
func NewAccountant(ceiling int64) *Accountant {
	return &Accountant{ceiling: ceiling}
}

// Seed resets the running total to an exact recomputed value.
func (a *Accountant) Seed(total int64) {
	a.total.Store(total)
}

// Charge adds bytes after a successful snapshot and returns the new total.
// Negative deltas are allowed for coalescing upserts that shrink a record.
func (a *Accountant) Charge(bytes int64) int64 {
	return a.total.Add(bytes)
}

// Release subtracts bytes after a delete and returns the new total.
func (a *Accountant) Release(bytes int64) int64 {
	return a.total.Add(-bytes)
}

// Total returns the current consumption in bytes.
func (a *Accountant) Total() int64 {
	return a.total.Load()
}

// Ceiling returns the configured limit, 0 for unlimited.
func (a *Accountant) Ceiling() int64 {
	return a.ceiling
}

// OverBudget reports whether consumption exceeds the ceiling.
func (a *Accountant) OverBudget() bool {
	return a.ceiling > 0 && a.total.Load() > a.ceiling
}

// SelectEvictionCandidates returns records to delete to free at least
// targetBytes, oldest timestamp first across the entire mount, ties broken by
// largest size first. A file's sole remaining record is never selected, so
// every tracked file keeps at least one version. The view may be slightly
// stale with respect to concurrent snapshots; eviction is approximate global
// LRU, not strict.
func (a *Accountant) SelectEvictionCandidates(ctx context.Context, idx *Index, targetBytes int64) ([]Record, error) {
	counts, err := idx.PathCounts(ctx)
	if err != nil {
		return nil, err
	}
	models, err := idx.OldestRecords(ctx, 0)
	if err != nil {
		return nil, err
	}

	var selected []Record
	var freed int64
	for _, m := range models {
		if freed >= targetBytes {
			break
		}
		if counts[m.Path] <= 1 {
			continue
		}
		counts[m.Path]--
		freed += m.Size
		selected = append(selected, m.ToRecord())
	}
	return selected, nil
}
