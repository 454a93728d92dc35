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

package engine

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// EditOp classifies one line of a comparison.
type EditOp int

const (
	Unchanged EditOp = iota
	Removed
	Added
)

// LineEdit is one entry of a line-level edit script. Rendering (-/+ prefixes)
// is the caller's concern; the engine only supplies the ordered operations.
type LineEdit struct {
	Op   EditOp
	Line string
}

// SplitLines splits content into lines by the literal \n delimiter. A byte
// sequence without a trailing delimiter still forms a final line; empty
// content has no lines.
func SplitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	lines := strings.Split(string(content), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// DiffLines computes a minimal line-level edit script between two byte
// sequences, yielding ordered Unchanged/Removed/Added operations. No side
// effects.
func DiffLines(a, b []byte) []LineEdit {
	la := SplitLines(a)
	lb := SplitLines(b)

	var edits []LineEdit
	m := difflib.NewMatcher(la, lb)
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for _, line := range la[op.I1:op.I2] {
				edits = append(edits, LineEdit{Op: Unchanged, Line: line})
			}
		case 'd':
			for _, line := range la[op.I1:op.I2] {
				edits = append(edits, LineEdit{Op: Removed, Line: line})
			}
		case 'i':
			for _, line := range lb[op.J1:op.J2] {
				edits = append(edits, LineEdit{Op: Added, Line: line})
			}
		case 'r':
			for _, line := range la[op.I1:op.I2] {
				edits = append(edits, LineEdit{Op: Removed, Line: line})
			}
			for _, line := range lb[op.J1:op.J2] {
				edits = append(edits, LineEdit{Op: Added, Line: line})
			}
		}
	}
	return edits
}
