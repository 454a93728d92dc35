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
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"timefs/internal/common"
	"timefs/internal/util"
)

// Index is the SQLite-backed version index: one row per version record plus
// per-file tracking metadata. Record bytes live in the history file tree;
// the index is the query side (listing, accounting, eviction selection).
type Index struct {
	db  *sql.DB
	bun *bun.DB
}

// OpenIndex opens (creating if needed) the index database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := execStatements(db, indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	idx := &Index{db: db, bun: bun.NewDB(db, sqlitedialect.New())}
	if err := idx.setSchemaInfo(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// Close closes the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func (idx *Index) setSchemaInfo(ctx context.Context) error {
	for _, kv := range []SchemaInfoModel{
		{Key: "type", Value: "timefs-index"},
		{Key: "version", Value: SchemaVersion},
	} {
		kv := kv
		if _, err := idx.bun.NewInsert().
			Model(&kv).
			On("CONFLICT (key) DO UPDATE").
			Set("value = EXCLUDED.value").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to write schema info: %w", err)
		}
	}
	return nil
}

// --- Version record operations ---

// UpsertRecord inserts a version record, or updates its size when a
// same-second write coalesces into an existing record. Transient
// "database is locked" errors (mount process and CLI sharing the index)
// are retried.
func (idx *Index) UpsertRecord(ctx context.Context, m *VersionRecordModel) error {
	return util.Retry(ctx, func() error {
		_, err := idx.bun.NewInsert().
			Model(m).
			On("CONFLICT (path, ts) DO UPDATE").
			Set("size = EXCLUDED.size").
			Exec(ctx)
		return err
	}, util.IndexRetryOptions(ctx)...)
}

// GetRecord returns one record by path and timestamp.
func (idx *Index) GetRecord(ctx context.Context, path string, ts int64) (*VersionRecordModel, error) {
	var m VersionRecordModel
	err := idx.bun.NewSelect().
		Model(&m).
		Where("path = ?", path).
		Where("ts = ?", ts).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListRecords returns all records for a path, ascending by timestamp.
// An untracked path yields an empty slice, not an error.
func (idx *Index) ListRecords(ctx context.Context, path string) ([]VersionRecordModel, error) {
	var models []VersionRecordModel
	err := idx.bun.NewSelect().
		Model(&models).
		Where("path = ?", path).
		Order("ts ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return models, nil
}

// DeleteRecord removes one record and returns its freed size.
func (idx *Index) DeleteRecord(ctx context.Context, path string, ts int64) (int64, error) {
	m, err := idx.GetRecord(ctx, path, ts)
	if err != nil {
		return 0, err
	}
	err = util.Retry(ctx, func() error {
		_, err := idx.bun.NewDelete().
			Model((*VersionRecordModel)(nil)).
			Where("path = ?", path).
			Where("ts = ?", ts).
			Exec(ctx)
		return err
	}, util.IndexRetryOptions(ctx)...)
	if err != nil {
		return 0, err
	}
	return m.Size, nil
}

// CountRecords returns the VersionSet length for a path.
func (idx *Index) CountRecords(ctx context.Context, path string) (int, error) {
	return idx.bun.NewSelect().
		Model((*VersionRecordModel)(nil)).
		Where("path = ?", path).
		Count(ctx)
}

// TotalSize returns the sum of all record sizes across the mount.
func (idx *Index) TotalSize(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	err := idx.bun.NewRaw(`SELECT SUM(size) FROM version_records`).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	if total.Valid {
		return total.Int64, nil
	}
	return 0, nil
}

// OldestRecords returns up to limit records across all files, oldest first,
// ties broken by largest size first. This is the eviction candidate order.
func (idx *Index) OldestRecords(ctx context.Context, limit int) ([]VersionRecordModel, error) {
	var models []VersionRecordModel
	q := idx.bun.NewSelect().
		Model(&models).
		Order("ts ASC").
		OrderExpr("size DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return models, nil
}

// PathCounts returns the number of records per tracked path.
func (idx *Index) PathCounts(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Path string `bun:"path"`
		N    int    `bun:"n"`
	}
	err := idx.bun.NewRaw(`SELECT path, COUNT(*) AS n FROM version_records GROUP BY path`).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Path] = r.N
	}
	return counts, nil
}

// TrackedPaths returns all paths that currently have at least one record,
// in lexical order. Restartable and safe to call concurrently with writers.
func (idx *Index) TrackedPaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := idx.bun.NewRaw(`SELECT DISTINCT path FROM version_records ORDER BY path`).
		Scan(ctx, &paths)
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// --- Tracked file metadata ---

// GetMeta returns tracking metadata for a path; nil if never tracked.
func (idx *Index) GetMeta(ctx context.Context, path string) (*TrackedFileModel, error) {
	var m TrackedFileModel
	err := idx.bun.NewSelect().
		Model(&m).
		Where("path = ?", path).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertMeta writes tracking metadata for a path.
func (idx *Index) UpsertMeta(ctx context.Context, m *TrackedFileModel) error {
	return util.Retry(ctx, func() error {
		_, err := idx.bun.NewInsert().
			Model(m).
			On("CONFLICT (path) DO UPDATE").
			Set("last_mutation = EXCLUDED.last_mutation").
			Set("last_version = EXCLUDED.last_version").
			Set("size = EXCLUDED.size").
			Set("ext = EXCLUDED.ext").
			Exec(ctx)
		return err
	}, util.IndexRetryOptions(ctx)...)
}
