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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timefs/internal/common"
)

func newTestStore(t *testing.T, opts Options) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	st, err := Open(root, opts)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, root
}

func TestSnapshotAndRead(t *testing.T) {
	ctx := context.Background()
	st, root := newTestStore(t, Options{})

	ts := time.Date(2023, 4, 26, 10, 0, 15, 0, time.UTC)
	rec, err := st.Snapshot(ctx, "docs/notes.txt", []byte("hello\n"), ts)
	require.NoError(t, err)
	assert.Equal(t, "docs/notes.txt", rec.Path)
	assert.Equal(t, ts, rec.Timestamp)
	assert.Equal(t, int64(6), rec.Size)
	assert.Equal(t, "txt", rec.Ext)
	assert.Equal(t, "docs/notes.txt@20230426_100015", rec.Address())

	// The blob is user-visible at the documented location.
	blob := filepath.Join(root, ".history", "docs", "notes.txt", "20230426_100015.txt")
	data, err := os.ReadFile(blob)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello\n"), data)

	// And readable through the address.
	got, err := st.Read(ctx, Address{Path: "docs/notes.txt", Timestamp: ts})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello\n"), got)
}

func TestSnapshotNoExtension(t *testing.T) {
	ctx := context.Background()
	st, root := newTestStore(t, Options{})

	ts := time.Date(2023, 4, 26, 10, 0, 15, 0, time.UTC)
	_, err := st.Snapshot(ctx, "Makefile", []byte("all:\n"), ts)
	require.NoError(t, err)

	// No trailing dot when the file has no extension.
	_, err = os.Stat(filepath.Join(root, ".history", "Makefile", "20230426_100015"))
	require.NoError(t, err)
}

func TestSnapshotInvalidPath(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, Options{})

	_, err := st.Snapshot(ctx, "../escape.txt", []byte("x"), time.Now())
	assert.ErrorIs(t, err, common.ErrInvalidPath)
}

func TestListAscending(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, Options{})

	base := time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC)
	// Insert out of order; listing is ascending by timestamp.
	for _, d := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		_, err := st.Snapshot(ctx, "a.txt", []byte("v"), base.Add(d))
		require.NoError(t, err)
	}

	records, err := st.List(ctx, "a.txt")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, base, records[0].Timestamp)
	assert.Equal(t, base.Add(time.Hour), records[1].Timestamp)
	assert.Equal(t, base.Add(2*time.Hour), records[2].Timestamp)
}

func TestListUntracked(t *testing.T) {
	st, _ := newTestStore(t, Options{})
	records, err := st.List(context.Background(), "nothing.txt")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSnapshotCoalescesSameSecond(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, Options{})

	ts := time.Date(2023, 4, 26, 10, 0, 15, 0, time.UTC)
	_, err := st.Snapshot(ctx, "a.txt", []byte("first version"), ts)
	require.NoError(t, err)
	_, err = st.Snapshot(ctx, "a.txt", []byte("second"), ts)
	require.NoError(t, err)

	// One record with one timestamp; the later write wins.
	records, err := st.List(ctx, "a.txt")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(len("second")), records[0].Size)

	got, err := st.Read(ctx, Address{Path: "a.txt", Timestamp: ts})
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)

	// Accounting charged only the replacement's size, not both.
	assert.Equal(t, int64(len("second")), st.Accountant().Total())
}

func TestMaxVersionsEnforced(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, Options{MaxVersions: 3})

	base := time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := st.Snapshot(ctx, "a.txt", []byte("v"), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	records, err := st.List(ctx, "a.txt")
	require.NoError(t, err)
	require.Len(t, records, 3)
	// The two oldest were dropped.
	assert.Equal(t, base.Add(2*time.Minute), records[0].Timestamp)
	assert.Equal(t, base.Add(4*time.Minute), records[2].Timestamp)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	st, root := newTestStore(t, Options{})

	ts := time.Date(2023, 4, 26, 10, 0, 15, 0, time.UTC)
	_, err := st.Snapshot(ctx, "a.txt", []byte("hello"), ts)
	require.NoError(t, err)

	freed, err := st.Delete(ctx, "a.txt", ts)
	require.NoError(t, err)
	assert.Equal(t, int64(5), freed)
	assert.Equal(t, int64(0), st.Accountant().Total())

	_, err = os.Stat(filepath.Join(root, ".history", "a.txt", "20230426_100015.txt"))
	assert.True(t, os.IsNotExist(err))

	_, err = st.Delete(ctx, "a.txt", ts)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReadCurrentMissing(t *testing.T) {
	st, _ := newTestStore(t, Options{})
	_, err := st.ReadCurrent("gone.txt")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReplaceCurrent(t *testing.T) {
	st, root := newTestStore(t, Options{})

	live := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(live, []byte("old"), 0600))

	require.NoError(t, st.ReplaceCurrent("a.txt", []byte("new content")))

	data, err := os.ReadFile(live)
	require.NoError(t, err)
	assert.Equal(t, []byte("new content"), data)

	// Mode preserved from the previous live file.
	info, err := os.Stat(live)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// No stray temp files left behind.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".timefs-restore-")
	}
}

func TestReplaceCurrentCreatesParents(t *testing.T) {
	st, root := newTestStore(t, Options{})
	require.NoError(t, st.ReplaceCurrent("deep/dir/a.txt", []byte("x")))
	data, err := os.ReadFile(filepath.Join(root, "deep", "dir", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestEnforceBudgetEvictsOldest(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, Options{StorageLimit: 25})

	base := time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC)
	payload := []byte("0123456789") // 10 bytes each
	for i := 0; i < 3; i++ {
		_, err := st.Snapshot(ctx, "a.txt", payload, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	require.Equal(t, int64(30), st.Accountant().Total())

	require.NoError(t, st.EnforceBudget(ctx))

	records, err := st.List(ctx, "a.txt")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, base.Add(time.Minute), records[0].Timestamp)
	assert.Equal(t, int64(20), st.Accountant().Total())
}

func TestEnforceBudgetKeepsSoleVersion(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, Options{StorageLimit: 4})

	ts := time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC)
	_, err := st.Snapshot(ctx, "big.txt", []byte("0123456789"), ts)
	require.NoError(t, err)

	// The sole record of a file is never evicted; exhaustion is reported.
	err = st.EnforceBudget(ctx)
	assert.ErrorIs(t, err, common.ErrStorageExhausted)

	records, err := st.List(ctx, "big.txt")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestAccountantSeededOnOpen(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	st, err := Open(root, Options{})
	require.NoError(t, err)
	ts := time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC)
	_, err = st.Snapshot(ctx, "a.txt", []byte("hello"), ts)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(root, Options{})
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, int64(5), st.Accountant().Total())
}

func TestMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, Options{})

	meta, err := st.Meta(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, meta.LastVersion.IsZero())
	assert.True(t, meta.LastMutation.IsZero())

	when := time.Date(2023, 4, 26, 10, 0, 15, 0, time.UTC)
	require.NoError(t, st.SetMeta(ctx, Meta{
		Path:         "a.txt",
		LastMutation: when,
		LastVersion:  when,
		Size:         12,
		Ext:          "txt",
	}))

	meta, err = st.Meta(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, when, meta.LastMutation)
	assert.Equal(t, when, meta.LastVersion)
	assert.Equal(t, int64(12), meta.Size)
}
