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

package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExcluded(t *testing.T) {
	e := New(Options{
		AutoVersion: true,
		Exclude:     []string{"*.log", "tmp/", "build/**"},
	})

	assert.True(t, e.Excluded("app.log"))
	assert.True(t, e.Excluded("sub/dir/app.log"))
	assert.True(t, e.Excluded("tmp/scratch.txt"))
	assert.True(t, e.Excluded("build/out/a.o"))

	assert.False(t, e.Excluded("app.txt"))
	assert.False(t, e.Excluded("logs.txt"))
}

func TestHistoryAreaAlwaysExcluded(t *testing.T) {
	e := New(Options{AutoVersion: true})
	assert.True(t, e.Excluded(".history"))
	assert.True(t, e.Excluded(".history/a/20230426_100015.txt"))
	assert.False(t, e.Excluded("a.txt"))
}

func TestShouldSnapshotFirstMutation(t *testing.T) {
	e := New(Options{AutoVersion: true, MinInterval: 30 * time.Second})
	// Zero LastVersion means never versioned: the throttle does not apply.
	assert.True(t, e.ShouldSnapshot("a.txt", time.Now(), Meta{}))
}

func TestShouldSnapshotThrottle(t *testing.T) {
	e := New(Options{AutoVersion: true, MinInterval: 30 * time.Second})
	base := time.Date(2023, 4, 26, 10, 0, 0, 0, time.UTC)
	meta := Meta{LastVersion: base}

	assert.False(t, e.ShouldSnapshot("a.txt", base.Add(5*time.Second), meta))
	assert.False(t, e.ShouldSnapshot("a.txt", base.Add(29*time.Second), meta))
	assert.True(t, e.ShouldSnapshot("a.txt", base.Add(30*time.Second), meta))
	assert.True(t, e.ShouldSnapshot("a.txt", base.Add(time.Hour), meta))
}

func TestShouldSnapshotAutoVersionOff(t *testing.T) {
	e := New(Options{AutoVersion: false})
	assert.False(t, e.ShouldSnapshot("a.txt", time.Now(), Meta{}))
}

func TestShouldSnapshotExcludedWins(t *testing.T) {
	e := New(Options{AutoVersion: true, Exclude: []string{"*.secret"}})
	assert.False(t, e.ShouldSnapshot("k.secret", time.Now(), Meta{}))
}
