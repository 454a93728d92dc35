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

import "errors"

var (
	// ErrNotFound means the referenced path or timestamp has no version record.
	ErrNotFound = errors.New("version not found")

	// ErrPolicyExcluded means the path matches an exclude pattern and is never tracked.
	ErrPolicyExcluded = errors.New("path excluded by policy")

	// ErrStorageExhausted means eviction could not bring consumption under the
	// configured ceiling even after removing all eligible candidates.
	ErrStorageExhausted = errors.New("storage budget exhausted")

	// ErrInvalidAddress means a path@timestamp address failed to parse.
	ErrInvalidAddress = errors.New("invalid version address")

	// ErrInvalidPath means a relative path escapes the tracked tree or is empty.
	ErrInvalidPath = errors.New("invalid path")

	// ErrIO wraps underlying storage read/write/rename failures.
	ErrIO = errors.New("I/O error")
)
