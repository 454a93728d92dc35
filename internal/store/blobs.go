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
	"fmt"
	"io"
	"os"
	"path"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/google/uuid"

	"timefs/internal/common"
)

// Blob layout, bit-exact and user-visible via ls:
//
//	<root>/.history/<relative_path-as-directory>/<YYYYMMDD_HHMMSS>.<ext>
//
// A snapshot is published by writing to a uniquely named temp file in the
// same directory and renaming it into place, so a lister never observes a
// partially written snapshot.

// blobDir returns the history directory for a tracked path.
func blobDir(relPath string) string {
	return path.Join(common.HistoryDir, relPath)
}

// blobName returns the snapshot file name for a timestamp and extension.
func blobName(ts time.Time, ext string) string {
	name := FormatStamp(ts)
	if ext != "" {
		name += "." + ext
	}
	return name
}

// blobPath returns the full history-relative path of one snapshot.
func blobPath(relPath string, ts time.Time, ext string) string {
	return path.Join(blobDir(relPath), blobName(ts, ext))
}

// writeBlob atomically publishes content at target via temp-file-then-rename.
func writeBlob(fs billy.Filesystem, target string, content []byte) error {
	dir := path.Dir(target)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}

	tmp := path.Join(dir, ".tmp-"+uuid.New().String())
	f, err := fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		fs.Remove(tmp)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		fs.Remove(tmp)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := fs.Rename(tmp, target); err != nil {
		fs.Remove(tmp)
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

// readBlob reads a whole blob.
func readBlob(fs billy.Filesystem, target string) ([]byte, error) {
	f, err := fs.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return data, nil
}

// removeBlob deletes a blob; a missing file is not an error (the index row
// is authoritative for accounting).
func removeBlob(fs billy.Filesystem, target string) error {
	if err := fs.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}
