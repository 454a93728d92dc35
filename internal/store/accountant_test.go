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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountantCharging(t *testing.T) {
	a := NewAccountant(100)
	assert.Equal(t, int64(0), a.Total())
	assert.False(t, a.OverBudget())

	a.Charge(60)
	assert.Equal(t, int64(60), a.Total())
	assert.False(t, a.OverBudget())

	a.Charge(50)
	assert.Equal(t, int64(110), a.Total())
	assert.True(t, a.OverBudget())

	a.Release(20)
	assert.Equal(t, int64(90), a.Total())
	assert.False(t, a.OverBudget())

	// Coalescing charges a negative delta when the replacement is smaller.
	a.Charge(-10)
	assert.Equal(t, int64(80), a.Total())
}

func TestAccountantUnlimited(t *testing.T) {
	a := NewAccountant(0)
	a.Charge(1 << 40)
	assert.False(t, a.OverBudget())
}

func TestAccountantSeed(t *testing.T) {
	a := NewAccountant(100)
	a.Charge(5)
	a.Seed(42)
	assert.Equal(t, int64(42), a.Total())
}

func TestSelectEvictionCandidates(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer idx.Close()

	base := time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC)
	put := func(path string, ts time.Time, size int64) {
		require.NoError(t, idx.UpsertRecord(ctx, &VersionRecordModel{
			Path: path, Ts: ts.Unix(), Size: size, Ext: "txt",
		}))
	}

	// a.txt has three versions, b.txt only one.
	put("a.txt", base, 100)
	put("a.txt", base.Add(time.Hour), 200)
	put("a.txt", base.Add(2*time.Hour), 300)
	put("b.txt", base.Add(30*time.Minute), 500)

	a := NewAccountant(400)
	candidates, err := a.SelectEvictionCandidates(ctx, idx, 250)
	require.NoError(t, err)

	// Oldest records first, and b.txt's sole version is never a candidate.
	require.Len(t, candidates, 2)
	assert.Equal(t, "a.txt", candidates[0].Path)
	assert.Equal(t, base, candidates[0].Timestamp)
	assert.Equal(t, "a.txt", candidates[1].Path)
	assert.Equal(t, base.Add(time.Hour), candidates[1].Timestamp)
}

func TestSelectEvictionCandidatesSoleVersionsOnly(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer idx.Close()

	base := time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC)
	require.NoError(t, idx.UpsertRecord(ctx, &VersionRecordModel{
		Path: "only.txt", Ts: base.Unix(), Size: 900, Ext: "txt",
	}))

	a := NewAccountant(100)
	candidates, err := a.SelectEvictionCandidates(ctx, idx, 800)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
