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

package common

import (
	"path"
	"strings"
)

// HistoryDir is the per-root hidden directory holding version snapshots.
// It is always excluded from tracking.
const HistoryDir = ".history"

// NormalizePath cleans a mount-relative path, removing leading/trailing
// slashes. Returns "" for the root.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// ValidPath reports whether p normalizes to a non-empty path that stays
// inside the tracked tree. Traversal is checked before rooting: a rooted
// Clean would silently absorb leading ".." components.
func ValidPath(p string) bool {
	if NormalizePath(p) == "" {
		return false
	}
	c := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	return c != ".." && !strings.HasPrefix(c, "../")
}

// InHistory reports whether p refers to the history area itself.
func InHistory(p string) bool {
	n := NormalizePath(p)
	return n == HistoryDir || strings.HasPrefix(n, HistoryDir+"/")
}

// SplitPath splits a normalized path into its components.
func SplitPath(p string) []string {
	p = NormalizePath(p)
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// ParentPath returns the parent directory of a normalized path, "" for
// top-level entries.
func ParentPath(p string) string {
	p = NormalizePath(p)
	if p == "" {
		return ""
	}
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

// Ext returns the path's extension without the leading dot, "" if none.
func Ext(p string) string {
	return strings.TrimPrefix(path.Ext(p), ".")
}
