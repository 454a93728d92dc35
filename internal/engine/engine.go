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

// Package engine is the library contract consumed by the CLI: version
// listing, line-level diff and atomic restore over the version store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"timefs/internal/common"
	"timefs/internal/policy"
	"timefs/internal/store"
	"timefs/internal/tracker"
)

// Labels shown in the versions listing. The first historical entry is the
// baseline; the trailing entry represents the live file.
const (
	LabelInitial = "Initial Version"
	LabelCurrent = "Current Version"
)

// VersionEntry is one row of a versions listing.
type VersionEntry struct {
	Index     int
	Timestamp time.Time
	Size      int64
	Label     string
	Current   bool
}

// Engine retrieves version records and the live file, and performs
// restoration and comparison. User-invoked failures surface directly, unlike
// the best-effort write path.
type Engine struct {
	st   *store.Store
	trk  *tracker.Tracker
	eval *policy.Evaluator
}

// New builds an engine over a store, tracker and policy evaluator.
func New(st *store.Store, trk *tracker.Tracker, eval *policy.Evaluator) *Engine {
	return &Engine{st: st, trk: trk, eval: eval}
}

// Versions lists a file's history, ascending by timestamp, with a synthetic
// trailing entry for the live file. When the newest record carries the live
// file's mtime (the live state is already versioned) it is folded into the
// Current entry instead of being listed twice; otherwise Current is appended
// on top of all records. Excluded paths report not-tracked rather than an
// empty history.
func (e *Engine) Versions(ctx context.Context, relPath string) ([]VersionEntry, error) {
	if !common.ValidPath(relPath) {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidPath, relPath)
	}
	rel := common.NormalizePath(relPath)
	if e.eval.Excluded(rel) {
		return nil, fmt.Errorf("%w: %s", common.ErrPolicyExcluded, rel)
	}

	records, err := e.st.List(ctx, rel)
	if err != nil {
		return nil, err
	}

	info, statErr := e.st.StatCurrent(rel)
	if statErr != nil && !errors.Is(statErr, common.ErrNotFound) {
		return nil, statErr
	}
	if len(records) == 0 && statErr != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, rel)
	}

	var entries []VersionEntry
	for _, r := range records {
		entries = append(entries, VersionEntry{
			Timestamp: r.Timestamp,
			Size:      r.Size,
		})
	}

	if statErr == nil {
		live := VersionEntry{
			Timestamp: info.ModTime().UTC().Truncate(time.Second),
			Size:      info.Size(),
			Label:     LabelCurrent,
			Current:   true,
		}
		if n := len(entries); n > 0 && entries[n-1].Timestamp.Unix() == live.Timestamp.Unix() {
			entries[n-1] = live
		} else {
			entries = append(entries, live)
		}
	}

	for i := range entries {
		entries[i].Index = i + 1
		if i == 0 && !entries[i].Current {
			entries[i].Label = LabelInitial
		}
	}
	return entries, nil
}

// Diff resolves two version addresses (historical path@stamp or bare path
// for current) and returns the line-level edit script from a to b.
func (e *Engine) Diff(ctx context.Context, addrA, addrB string) ([]LineEdit, error) {
	a, err := store.ParseAddress(addrA)
	if err != nil {
		return nil, err
	}
	b, err := store.ParseAddress(addrB)
	if err != nil {
		return nil, err
	}
	for _, addr := range []store.Address{a, b} {
		if e.eval.Excluded(addr.Path) {
			return nil, fmt.Errorf("%w: %s", common.ErrPolicyExcluded, addr.Path)
		}
	}

	bytesA, err := e.st.Read(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", store.FormatAddress(a), err)
	}
	bytesB, err := e.st.Read(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", store.FormatAddress(b), err)
	}
	return DiffLines(bytesA, bytesB), nil
}

// Restore overwrites the live file with a historical record's bytes via an
// atomic replace and returns the resolved record. When policy currently
// permits a snapshot of the pre-restore live content, one is taken first, so
// a restore is itself undoable. The historical record is never deleted.
func (e *Engine) Restore(ctx context.Context, address string) (store.Record, error) {
	addr, err := store.ParseAddress(address)
	if err != nil {
		return store.Record{}, err
	}
	if addr.Current {
		return store.Record{}, fmt.Errorf("%w: restore requires path@timestamp", common.ErrInvalidAddress)
	}
	if e.eval.Excluded(addr.Path) {
		return store.Record{}, fmt.Errorf("%w: %s", common.ErrPolicyExcluded, addr.Path)
	}

	data, err := e.st.Read(ctx, addr)
	if err != nil {
		return store.Record{}, err
	}

	// Version the pre-restore live content first (policy may throttle).
	if live, err := e.st.ReadCurrent(addr.Path); err == nil {
		if _, err := e.trk.Apply(ctx, tracker.MutationEvent{
			Path:    addr.Path,
			Content: live,
			When:    time.Now(),
		}); err != nil && !errors.Is(err, common.ErrStorageExhausted) {
			log.Warnf("[Engine] pre-restore snapshot of %s failed: %v", addr.Path, err)
		}
	}

	if err := e.st.ReplaceCurrent(addr.Path, data); err != nil {
		return store.Record{}, fmt.Errorf("%w: %v", common.ErrIO, err)
	}

	log.Debugf("[Engine] restored %s", store.FormatAddress(addr))
	return store.Record{
		Path:      addr.Path,
		Timestamp: addr.Timestamp,
		Size:      int64(len(data)),
		Ext:       common.Ext(addr.Path),
	}, nil
}
