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

// Package compact applies day-based and per-day-count retention rules across
// the whole tracked tree. It runs on demand (cleanup), never on the write
// path.
package compact

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"

	"timefs/internal/common"
	"timefs/internal/store"
)

// Params are the retention rules for one cleanup run.
type Params struct {
	KeepDays  int       // discard snapshots whose day is older than N days before now
	MaxPerDay int       // at most K snapshots retained per calendar day per file
	Now       time.Time // invocation time; zero means time.Now()
}

// Report aggregates a cleanup run for presentation.
type Report struct {
	VersionsRemoved int
	BytesFreed      int64
}

// Compactor prunes version records per the retention policy. Day boundaries
// use UTC, both here and in snapshot naming, so a record's bucket matches
// its visible file name.
type Compactor struct {
	st   *store.Store
	lock *flock.Flock
}

// New builds a compactor for a mount root. The flock under the history area
// excludes concurrent cleanup runs from other processes on the same root.
func New(root string, st *store.Store) *Compactor {
	return &Compactor{
		st:   st,
		lock: flock.New(filepath.Join(root, common.HistoryDir, "cleanup.lock")),
	}
}

// Run applies retention across all tracked files. Cancellation is
// cooperative: the context is checked between per-file iterations, not
// mid-file. Partial progress on failure is kept and reported, not rolled
// back — cleanup is idempotent, so a rerun finishes the job.
func (c *Compactor) Run(ctx context.Context, params Params) (Report, error) {
	if params.Now.IsZero() {
		params.Now = time.Now()
	}

	locked, err := c.lock.TryLock()
	if err != nil {
		return Report{}, fmt.Errorf("failed to acquire cleanup lock: %w", err)
	}
	if !locked {
		return Report{}, fmt.Errorf("another cleanup is already running")
	}
	defer c.lock.Unlock()

	paths, err := c.st.Index().TrackedPaths(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list tracked files: %w", err)
	}

	var report Report
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		removed, freed, err := c.compactFile(ctx, path, params)
		if err != nil {
			log.Warnf("[Cleanup] %s: %v", path, err)
			continue
		}
		report.VersionsRemoved += removed
		report.BytesFreed += freed
	}

	// Exact reconciliation of the running storage total.
	if _, err := c.st.RecomputeTotal(ctx); err != nil {
		log.Warnf("[Cleanup] failed to recompute storage total: %v", err)
	}

	log.Debugf("[Cleanup] removed %d versions, freed %d bytes",
		report.VersionsRemoved, report.BytesFreed)
	return report, nil
}

// compactFile applies retention to one file's VersionSet.
func (c *Compactor) compactFile(ctx context.Context, path string, params Params) (int, int64, error) {
	records, err := c.st.List(ctx, path)
	if err != nil {
		return 0, 0, err
	}
	if len(records) == 0 {
		return 0, 0, nil
	}

	doomed := markForDeletion(records, params)

	var removed int
	var freed int64
	for _, r := range doomed {
		n, err := c.st.Delete(ctx, r.Path, r.Timestamp)
		if err != nil {
			return removed, freed, err
		}
		removed++
		freed += n
	}
	return removed, freed, nil
}

// dayOf buckets a timestamp by UTC calendar day.
func dayOf(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

// markForDeletion selects the records retention removes. records must be
// ascending by timestamp.
//
//  1. Within each UTC day bucket, keep the MaxPerDay most recent.
//  2. Of the survivors, drop any whose day is strictly older than KeepDays
//     days before now — except the file's single oldest remaining record,
//     which is always kept as the "Initial Version" baseline.
func markForDeletion(records []store.Record, params Params) []store.Record {
	doomed := make(map[int]bool)

	// Step 1: per-day cap. Ascending order means the last MaxPerDay entries
	// of each bucket are the most recent.
	if params.MaxPerDay > 0 {
		byDay := make(map[string][]int)
		for i, r := range records {
			d := dayOf(r.Timestamp)
			byDay[d] = append(byDay[d], i)
		}
		for _, idxs := range byDay {
			if over := len(idxs) - params.MaxPerDay; over > 0 {
				for _, i := range idxs[:over] {
					doomed[i] = true
				}
			}
		}
	}

	// Step 2: age cutoff over the survivors of step 1.
	if params.KeepDays > 0 {
		cutoff := dayOf(params.Now.AddDate(0, 0, -params.KeepDays))
		baseline := -1
		for i := range records {
			if !doomed[i] {
				baseline = i // oldest surviving record
				break
			}
		}
		for i, r := range records {
			if doomed[i] || i == baseline {
				continue
			}
			if dayOf(r.Timestamp) < cutoff {
				doomed[i] = true
			}
		}
	}

	var out []store.Record
	for i, r := range records {
		if doomed[i] {
			out = append(out, r)
		}
	}
	return out
}
