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

// Package policy decides whether a mutation event should produce a new
// version. Evaluation is a pure function of its inputs and takes no locks,
// so it never blocks a writer.
package policy

import (
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"timefs/internal/common"
)

// Meta is the per-file state the evaluator reads. A zero LastVersion means
// the file is untracked so far.
type Meta struct {
	LastVersion  time.Time
	LastMutation time.Time
}

// Evaluator applies the mount's versioning rules. The exclude patterns are
// compiled once at construction; the Evaluator itself is immutable and safe
// for concurrent use.
type Evaluator struct {
	autoVersion bool
	minInterval time.Duration
	matcher     *ignore.GitIgnore
}

// Options configures an Evaluator.
type Options struct {
	AutoVersion bool
	MinInterval time.Duration
	Exclude     []string // gitignore-style patterns
}

// New compiles an Evaluator from options.
func New(opts Options) *Evaluator {
	var matcher *ignore.GitIgnore
	if len(opts.Exclude) > 0 {
		matcher = ignore.CompileIgnoreLines(opts.Exclude...)
	}
	return &Evaluator{
		autoVersion: opts.AutoVersion,
		minInterval: opts.MinInterval,
		matcher:     matcher,
	}
}

// Excluded reports whether relPath is permanently untracked. The history
// area itself is always excluded.
func (e *Evaluator) Excluded(relPath string) bool {
	if common.InHistory(relPath) {
		return true
	}
	return e.matcher != nil && e.matcher.MatchesPath(relPath)
}

// ShouldSnapshot decides whether the mutation at mutationTime produces a new
// version. Rules in order, first false wins:
//  1. excluded paths are never tracked
//  2. auto-version disabled for the mount
//  3. min-interval throttle against the file's last version
func (e *Evaluator) ShouldSnapshot(relPath string, mutationTime time.Time, meta Meta) bool {
	if e.Excluded(relPath) {
		return false
	}
	if !e.autoVersion {
		return false
	}
	if !meta.LastVersion.IsZero() && mutationTime.Sub(meta.LastVersion) < e.minInterval {
		return false
	}
	return true
}
