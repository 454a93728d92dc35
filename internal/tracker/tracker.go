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

// Package tracker is the versioning pipeline behind the passthrough hook:
// for every mutating filesystem call the hook delivers a MutationEvent after
// the real write succeeds, and the tracker decides, snapshots and accounts.
// Nothing here is ever allowed to fail the user's underlying file write.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"timefs/internal/common"
	"timefs/internal/policy"
	"timefs/internal/store"
)

// MutationEvent is one mutating filesystem call as reported by the
// passthrough hook: write-close, rename target, truncate, or unlink.
type MutationEvent struct {
	Path    string
	Content []byte // new content; ignored when Delete is set
	Delete  bool   // unlink marker
	When    time.Time
}

// Tracker serializes the per-file section "read metadata → evaluate policy →
// snapshot → update metadata". Locks are per file, so unrelated writes
// proceed in parallel; there is no mount-wide write lock.
type Tracker struct {
	st   *store.Store
	eval *policy.Evaluator

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds a tracker over a store and a policy evaluator.
func New(st *store.Store, eval *policy.Evaluator) *Tracker {
	return &Tracker{
		st:    st,
		eval:  eval,
		locks: make(map[string]*sync.Mutex),
	}
}

// fileLock returns the mutex for one tracked path, creating it on first use.
func (t *Tracker) fileLock(path string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[path]
	if !ok {
		l = &sync.Mutex{}
		t.locks[path] = l
	}
	return l
}

// Apply runs the versioning pipeline for one mutation event and returns the
// record created, or nil when policy produced none. Internal failures
// degrade to best-effort: they are logged and reported, but the caller's
// underlying write has already succeeded and must not be failed because of
// them.
func (t *Tracker) Apply(ctx context.Context, ev MutationEvent) (*store.Record, error) {
	if !common.ValidPath(ev.Path) {
		log.Debugf("[Tracker] ignoring invalid path %q", ev.Path)
		return nil, nil
	}
	rel := common.NormalizePath(ev.Path)

	if t.eval.Excluded(rel) {
		return nil, nil
	}

	lock := t.fileLock(rel)
	lock.Lock()
	defer lock.Unlock()

	meta, err := t.st.Meta(ctx, rel)
	if err != nil {
		log.Warnf("[Tracker] failed to read metadata for %s: %v", rel, err)
		return nil, err
	}

	if ev.Delete {
		// Nothing to snapshot; prior records stay addressable. Record the
		// mutation time if the file was tracked.
		if !meta.LastMutation.IsZero() || !meta.LastVersion.IsZero() {
			meta.LastMutation = ev.When
			if err := t.st.SetMeta(ctx, meta); err != nil {
				log.Warnf("[Tracker] failed to update metadata for %s: %v", rel, err)
			}
		}
		return nil, nil
	}

	decide := t.eval.ShouldSnapshot(rel, ev.When, policy.Meta{
		LastVersion:  meta.LastVersion,
		LastMutation: meta.LastMutation,
	})

	meta.Path = rel
	meta.LastMutation = ev.When
	meta.Size = int64(len(ev.Content))
	meta.Ext = common.Ext(rel)

	var rec *store.Record
	if decide {
		r, err := t.st.Snapshot(ctx, rel, ev.Content, ev.When)
		if err != nil {
			// Best effort: no version created this time.
			log.Warnf("[Tracker] snapshot of %s failed: %v", rel, err)
			return nil, err
		}
		rec = &r
		meta.LastVersion = r.Timestamp
	}

	if err := t.st.SetMeta(ctx, meta); err != nil {
		log.Warnf("[Tracker] failed to update metadata for %s: %v", rel, err)
	}

	if rec != nil {
		if err := t.st.EnforceBudget(ctx); err != nil {
			if errors.Is(err, common.ErrStorageExhausted) {
				// Reported, never failed: the write itself has succeeded.
				log.Warnf("[Tracker] %v after snapshot of %s", err, rel)
				return rec, err
			}
			log.Warnf("[Tracker] budget enforcement failed: %v", err)
		}
	}
	return rec, nil
}
