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

// Package store owns the on-disk layout of historical snapshots: blob files
// under the hidden history area plus a SQLite index for listing, accounting
// and eviction selection.
package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"timefs/internal/common"
)

// Options configures a Store.
type Options struct {
	MaxVersions  int   // per-file record cap, 0 = unlimited
	StorageLimit int64 // mount-wide ceiling in bytes, 0 = unlimited
}

// Store creates, lists, reads and deletes version records for one mount root.
type Store struct {
	fs          billy.Filesystem // rooted at the mount root
	idx         *Index
	acct        *Accountant
	maxVersions int
}

// Open opens the store for a mount root, creating the history area and index
// if they do not exist. The accountant is seeded with the exact sum of all
// record sizes.
func Open(root string, opts Options) (*Store, error) {
	histDir := filepath.Join(root, common.HistoryDir)
	if err := os.MkdirAll(histDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}
	idx, err := OpenIndex(filepath.Join(histDir, "index.db"))
	if err != nil {
		return nil, err
	}
	s, err := New(osfs.New(root), idx, opts)
	if err != nil {
		idx.Close()
		return nil, err
	}
	return s, nil
}

// New builds a Store over an explicit filesystem and index. Tests use this
// with an in-memory filesystem for the blob side.
func New(fs billy.Filesystem, idx *Index, opts Options) (*Store, error) {
	s := &Store{
		fs:          fs,
		idx:         idx,
		acct:        NewAccountant(opts.StorageLimit),
		maxVersions: opts.MaxVersions,
	}
	total, err := idx.TotalSize(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to seed storage total: %w", err)
	}
	s.acct.Seed(total)
	return s, nil
}

// Close closes the index database.
func (s *Store) Close() error {
	return s.idx.Close()
}

// Accountant returns the mount-wide storage accountant.
func (s *Store) Accountant() *Accountant {
	return s.acct
}

// Index exposes the version index for the compactor's cross-file queries.
func (s *Store) Index() *Index {
	return s.idx
}

// Snapshot persists an immutable copy of the file's bytes as of ts and
// returns the new record. Two mutations within the same second coalesce:
// the later write replaces the earlier record's content (latest write wins),
// never producing two records with one timestamp. After a successful
// snapshot the per-file cap is enforced, oldest records first.
func (s *Store) Snapshot(ctx context.Context, relPath string, content []byte, ts time.Time) (Record, error) {
	if !common.ValidPath(relPath) {
		return Record{}, fmt.Errorf("%w: %q", common.ErrInvalidPath, relPath)
	}
	rel := common.NormalizePath(relPath)
	ext := common.Ext(rel)
	when := ts

	// Coalescing delta: replacing a same-second record charges only the
	// size difference.
	var prevSize int64
	if prev, err := s.idx.GetRecord(ctx, rel, when.Unix()); err == nil {
		prevSize = prev.Size
	}

	target := blobPath(rel, when, ext)
	if err := writeBlob(s.fs, target, content); err != nil {
		return Record{}, err
	}

	m := &VersionRecordModel{
		Path: rel,
		Ts:   when.Unix(),
		Size: int64(len(content)),
		Ext:  ext,
	}
	if err := s.idx.UpsertRecord(ctx, m); err != nil {
		// The blob is published but unindexed; remove it so listing and
		// accounting stay consistent.
		removeBlob(s.fs, target)
		return Record{}, fmt.Errorf("failed to index snapshot: %w", err)
	}
	s.acct.Charge(int64(len(content)) - prevSize)

	if err := s.enforceMaxVersions(ctx, rel); err != nil {
		log.Warnf("[Store] max-versions enforcement failed for %s: %v", rel, err)
	}

	log.Debugf("[Store] snapshot %s (%d bytes)", m.ToRecord().Address(), len(content))
	return m.ToRecord(), nil
}

// enforceMaxVersions deletes oldest records until the per-file cap holds.
func (s *Store) enforceMaxVersions(ctx context.Context, rel string) error {
	if s.maxVersions <= 0 {
		return nil
	}
	records, err := s.idx.ListRecords(ctx, rel)
	if err != nil {
		return err
	}
	for i := 0; len(records)-i > s.maxVersions; i++ {
		if _, err := s.Delete(ctx, rel, records[i].ToRecord().Timestamp); err != nil {
			return err
		}
	}
	return nil
}

// List returns the VersionSet for a path, ascending by timestamp; empty if
// untracked. Safe to call concurrently with Snapshot.
func (s *Store) List(ctx context.Context, relPath string) ([]Record, error) {
	rel := common.NormalizePath(relPath)
	models, err := s.idx.ListRecords(ctx, rel)
	if err != nil {
		return nil, err
	}
	records := make([]Record, len(models))
	for i, m := range models {
		records[i] = m.ToRecord()
	}
	return records, nil
}

// Read resolves an address to bytes: a historical record, or the live file
// for a current address.
func (s *Store) Read(ctx context.Context, addr Address) ([]byte, error) {
	if addr.Current {
		return s.ReadCurrent(addr.Path)
	}
	m, err := s.idx.GetRecord(ctx, addr.Path, addr.Timestamp.Unix())
	if err != nil {
		return nil, err
	}
	return readBlob(s.fs, blobPath(m.Path, m.ToRecord().Timestamp, m.Ext))
}

// ReadCurrent reads the live file's bytes.
func (s *Store) ReadCurrent(relPath string) ([]byte, error) {
	rel := common.NormalizePath(relPath)
	f, err := s.fs.Open(rel)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open live file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read live file: %w", err)
	}
	return data, nil
}

// StatCurrent returns size and mtime of the live file.
func (s *Store) StatCurrent(relPath string) (os.FileInfo, error) {
	info, err := s.fs.Stat(common.NormalizePath(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return info, nil
}

// ReplaceCurrent atomically overwrites the live file's content via
// write-to-temp-then-rename, preserving the existing mode where the platform
// allows. On failure the live file is left untouched.
func (s *Store) ReplaceCurrent(relPath string, content []byte) error {
	if !common.ValidPath(relPath) {
		return fmt.Errorf("%w: %q", common.ErrInvalidPath, relPath)
	}
	rel := common.NormalizePath(relPath)

	mode := os.FileMode(0644)
	if info, err := s.fs.Stat(rel); err == nil {
		mode = info.Mode()
	}

	dir := path.Dir(rel)
	if dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create parent dir: %w", err)
		}
	}

	tmp := rel + ".timefs-restore-" + uuid.New().String()
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		s.fs.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := s.fs.Rename(tmp, rel); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace live file: %w", err)
	}
	return nil
}

// Delete removes one version record (blob and index row) and returns the
// freed bytes, reported to the accountant. Used by both quota eviction and
// retention pruning.
func (s *Store) Delete(ctx context.Context, relPath string, ts time.Time) (int64, error) {
	rel := common.NormalizePath(relPath)
	when := ts

	m, err := s.idx.GetRecord(ctx, rel, when.Unix())
	if err != nil {
		return 0, err
	}
	if err := removeBlob(s.fs, blobPath(m.Path, m.ToRecord().Timestamp, m.Ext)); err != nil {
		return 0, err
	}
	freed, err := s.idx.DeleteRecord(ctx, rel, when.Unix())
	if err != nil {
		return 0, err
	}
	s.acct.Release(freed)
	log.Debugf("[Store] deleted %s (freed %d bytes)", m.ToRecord().Address(), freed)
	return freed, nil
}

// EnforceBudget runs the post-write quota check: while over budget, evict
// top candidates. If no candidates remain and consumption still exceeds the
// ceiling, ErrStorageExhausted is returned for reporting — the caller's
// underlying write is never rolled back.
func (s *Store) EnforceBudget(ctx context.Context) error {
	if !s.acct.OverBudget() {
		return nil
	}
	target := s.acct.Total() - s.acct.Ceiling()
	candidates, err := s.acct.SelectEvictionCandidates(ctx, s.idx, target)
	if err != nil {
		return fmt.Errorf("failed to select eviction candidates: %w", err)
	}
	for _, c := range candidates {
		if !s.acct.OverBudget() {
			break
		}
		if _, err := s.Delete(ctx, c.Path, c.Timestamp); err != nil {
			log.Warnf("[Store] eviction of %s failed: %v", c.Address(), err)
		}
	}
	if s.acct.OverBudget() {
		log.Warnf("[Store] storage exhausted: %d bytes retained against ceiling %d",
			s.acct.Total(), s.acct.Ceiling())
		return common.ErrStorageExhausted
	}
	return nil
}

// RecomputeTotal replaces the accountant's running total with the exact sum
// from the index. Called by cleanup for reconciliation.
func (s *Store) RecomputeTotal(ctx context.Context) (int64, error) {
	total, err := s.idx.TotalSize(ctx)
	if err != nil {
		return 0, err
	}
	s.acct.Seed(total)
	return total, nil
}

// Meta returns tracking metadata for a path; the zero Meta if never tracked.
func (s *Store) Meta(ctx context.Context, relPath string) (Meta, error) {
	rel := common.NormalizePath(relPath)
	m, err := s.idx.GetMeta(ctx, rel)
	if err != nil {
		return Meta{}, err
	}
	if m == nil {
		return Meta{Path: rel}, nil
	}
	return m.ToMeta(), nil
}

// SetMeta writes tracking metadata for a path.
func (s *Store) SetMeta(ctx context.Context, meta Meta) error {
	m := &TrackedFileModel{
		Path: common.NormalizePath(meta.Path),
		Size: meta.Size,
		Ext:  meta.Ext,
	}
	if !meta.LastMutation.IsZero() {
		m.LastMutation = meta.LastMutation.Unix()
	}
	if !meta.LastVersion.IsZero() {
		m.LastVersion = meta.LastVersion.Unix()
	}
	return s.idx.UpsertMeta(ctx, m)
}
