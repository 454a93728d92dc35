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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	units "github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"timefs/internal/common"
)

// Mount represents per-root configuration from {root}/.history/config.yaml.
// All policy decisions read an immutable value of this type rather than
// ambient state, so test mounts with differing policies can coexist
// in-process.
type Mount struct {
	AutoVersion  *bool    `yaml:"auto-version"`  // default: true
	MinInterval  string   `yaml:"min-interval"`  // snapshot throttle, default: "30s"
	MaxVersions  int      `yaml:"max-versions"`  // per-file cap, 0 = unlimited
	Exclude      []string `yaml:"exclude"`       // gitignore-style patterns
	StorageLimit string   `yaml:"storage-limit"` // e.g. "512MB", "" or "0" = unlimited
	KeepDays     int      `yaml:"keep-days"`     // cleanup default, default: 30
	MaxPerDay    int      `yaml:"max-per-day"`   // cleanup default, default: 10
	Logging      string   `yaml:"logging"`       // log level: none, info, debug, trace
}

// ApplyDefaults fills zero-value fields with their defaults.
func (cfg *Mount) ApplyDefaults() {
	if cfg.AutoVersion == nil {
		t := true
		cfg.AutoVersion = &t
	}
	if cfg.MinInterval == "" {
		cfg.MinInterval = "30s"
	}
	if cfg.KeepDays == 0 {
		cfg.KeepDays = 30
	}
	if cfg.MaxPerDay == 0 {
		cfg.MaxPerDay = 10
	}
}

// AutoVersionEnabled returns whether automatic versioning is on (defaults to true).
func (cfg *Mount) AutoVersionEnabled() bool {
	if cfg.AutoVersion == nil {
		return true
	}
	return *cfg.AutoVersion
}

// MinIntervalDuration parses the min-interval throttle. Invalid values fall
// back to the 30s default.
func (cfg *Mount) MinIntervalDuration() time.Duration {
	d, err := time.ParseDuration(cfg.MinInterval)
	if err != nil || d < 0 {
		return 30 * time.Second
	}
	return d
}

// StorageLimitBytes parses the storage ceiling. 0 means unlimited.
func (cfg *Mount) StorageLimitBytes() (int64, error) {
	if cfg.StorageLimit == "" || cfg.StorageLimit == "0" {
		return 0, nil
	}
	n, err := units.RAMInBytes(cfg.StorageLimit)
	if err != nil {
		return 0, fmt.Errorf("invalid storage-limit %q: %w", cfg.StorageLimit, err)
	}
	return n, nil
}

// Path returns the config file location for a mount root.
func Path(root string) string {
	return filepath.Join(root, common.HistoryDir, "config.yaml")
}

// Load reads the mount config from {root}/.history/config.yaml. A missing
// file yields the defaults, not an error.
func Load(root string) (*Mount, error) {
	data, err := os.ReadFile(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Mount{}
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return nil, err
	}
	var cfg Mount
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", Path(root), err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Save writes the mount config, creating the history directory if needed.
func Save(root string, cfg *Mount) error {
	if err := os.MkdirAll(filepath.Join(root, common.HistoryDir), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	header := []byte("# TimeFS mount settings\n# See: timefs init --help\n\n")
	return os.WriteFile(Path(root), append(header, data...), 0644)
}
