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
	"time"

	"github.com/uptrace/bun"
)

// Bun ORM models for the version index tables.

// SchemaInfoModel represents the schema_info table.
type SchemaInfoModel struct {
	bun.BaseModel `bun:"table:schema_info"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// TrackedFileModel represents the tracked_files table. A row exists once the
// first version record for a path has been created.
type TrackedFileModel struct {
	bun.BaseModel `bun:"table:tracked_files"`

	Path         string `bun:"path,pk"`
	LastMutation int64  `bun:"last_mutation,notnull"` // Unix timestamp
	LastVersion  int64  `bun:"last_version,notnull"`  // Unix timestamp
	Size         int64  `bun:"size,notnull"`          // live file size at last mutation
	Ext          string `bun:"ext,notnull"`
}

// VersionRecordModel represents the version_records table. Immutable after
// creation except for the coalescing upsert of a same-second write.
type VersionRecordModel struct {
	bun.BaseModel `bun:"table:version_records"`

	Path string `bun:"path,pk"`
	Ts   int64  `bun:"ts,pk"` // Unix timestamp, second resolution
	Size int64  `bun:"size,notnull"`
	Ext  string `bun:"ext,notnull"`
}

// Record is one immutable snapshot of a file's bytes at a point in time.
type Record struct {
	Path      string
	Timestamp time.Time
	Size      int64
	Ext       string
}

// Address returns the record's public path@stamp identity.
func (r Record) Address() string {
	return FormatAddress(Address{Path: r.Path, Timestamp: r.Timestamp})
}

// ToRecord converts an index row to a Record.
func (m *VersionRecordModel) ToRecord() Record {
	return Record{
		Path:      m.Path,
		Timestamp: time.Unix(m.Ts, 0).UTC(),
		Size:      m.Size,
		Ext:       m.Ext,
	}
}

// Meta is the tracked-file state read by the policy evaluator.
type Meta struct {
	Path         string
	LastMutation time.Time
	LastVersion  time.Time
	Size         int64
	Ext          string
}

// ToMeta converts an index row to Meta.
func (m *TrackedFileModel) ToMeta() Meta {
	meta := Meta{Path: m.Path, Size: m.Size, Ext: m.Ext}
	if m.LastMutation != 0 {
		meta.LastMutation = time.Unix(m.LastMutation, 0).UTC()
	}
	if m.LastVersion != 0 {
		meta.LastVersion = time.Unix(m.LastVersion, 0).UTC()
	}
	return meta
}
