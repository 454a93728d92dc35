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
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const SchemaVersion = "1"

// DefaultBusyTimeout in milliseconds (30 seconds).
const DefaultBusyTimeout = 30000

// EnvBusyTimeout overrides the SQLite busy_timeout for the version index.
const EnvBusyTimeout = "TIMEFS_BUSY_TIMEOUT"

const indexSchema = `
CREATE TABLE IF NOT EXISTS schema_info (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tracked_files (
	path TEXT PRIMARY KEY,
	last_mutation INTEGER NOT NULL DEFAULT 0,
	last_version INTEGER NOT NULL DEFAULT 0,
	size INTEGER NOT NULL DEFAULT 0,
	ext TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS version_records (
	path TEXT NOT NULL,
	ts INTEGER NOT NULL,
	size INTEGER NOT NULL,
	ext TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (path, ts)
);

CREATE INDEX IF NOT EXISTS idx_version_records_ts ON version_records (ts);
`

// GetBusyTimeout returns the busy_timeout in milliseconds, env override first.
func GetBusyTimeout() int {
	if v := os.Getenv(EnvBusyTimeout); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultBusyTimeout
}

// execPragma runs a PRAGMA statement using Query (not Exec) because libsql
// returns rows for PRAGMA statements. The result rows are drained and closed.
func execPragma(db *sql.DB, pragma string) error {
	rows, err := db.Query(pragma)
	if err != nil {
		return err
	}
	return rows.Close()
}

// applyPragmas sets essential PRAGMAs after opening a libsql connection.
// libsql ignores DSN-based _pragma=value parameters, so all PRAGMAs must be
// set explicitly after the connection is opened.
func applyPragmas(db *sql.DB) error {
	// Busy timeout first: journal_mode=WAL below needs exclusive access and
	// should wait for locks rather than fail with "database is locked".
	if err := execPragma(db, fmt.Sprintf("PRAGMA busy_timeout = %d", GetBusyTimeout())); err != nil {
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}

	// WAL mode: concurrent readers during writes; the lister must never block
	// behind a snapshot in progress.
	if err := execPragma(db, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to set journal_mode=WAL: %w", err)
	}

	// synchronous=NORMAL is safe against process crashes in WAL mode and
	// avoids an fsync per commit.
	if err := execPragma(db, "PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous=NORMAL: %w", err)
	}

	return nil
}

// execStatements executes a multi-statement SQL block one statement at a time
// (libsql does not accept multiple statements per Exec).
func execStatements(db *sql.DB, block string) error {
	for _, stmt := range strings.Split(block, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("statement %q: %w", stmt, err)
		}
	}
	return nil
}
