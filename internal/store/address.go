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
	"strings"
	"time"

	"timefs/internal/common"
)

// StampLayout is the fixed, locale-independent timestamp format used both in
// snapshot file names and in CLI addresses. Stamps are always rendered in UTC.
const StampLayout = "20060102_150405"

// FormatStamp renders a snapshot timestamp for file names and addresses.
func FormatStamp(ts time.Time) string {
	return ts.UTC().Format(StampLayout)
}

// ParseStamp parses a YYYYMMDD_HHMMSS stamp back into a UTC time.
func ParseStamp(s string) (time.Time, error) {
	ts, err := time.ParseInLocation(StampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", common.ErrInvalidAddress, s)
	}
	return ts, nil
}

// Address identifies either a historical version (path@stamp) or the live
// file (bare path, Current == true).
type Address struct {
	Path      string
	Timestamp time.Time
	Current   bool
}

// ParseAddress parses a CLI version address. A bare path addresses the
// current (live) file; `path@YYYYMMDD_HHMMSS` addresses one version record.
// The address format round-trips losslessly with FormatAddress.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty address", common.ErrInvalidAddress)
	}
	at := strings.LastIndex(s, "@")
	if at < 0 {
		p := common.NormalizePath(s)
		if !common.ValidPath(p) {
			return Address{}, fmt.Errorf("%w: bad path %q", common.ErrInvalidAddress, s)
		}
		return Address{Path: p, Current: true}, nil
	}
	p := common.NormalizePath(s[:at])
	if !common.ValidPath(p) {
		return Address{}, fmt.Errorf("%w: bad path %q", common.ErrInvalidAddress, s[:at])
	}
	ts, err := ParseStamp(s[at+1:])
	if err != nil {
		return Address{}, err
	}
	return Address{Path: p, Timestamp: ts}, nil
}

// FormatAddress renders an address in the CLI form.
func FormatAddress(a Address) string {
	if a.Current {
		return a.Path
	}
	return a.Path + "@" + FormatStamp(a.Timestamp)
}
