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

package commands

import (
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"timefs/internal/config"
	"timefs/internal/engine"
	"timefs/internal/policy"
	"timefs/internal/store"
	"timefs/internal/tracker"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if ts, err := strconv.ParseInt(date, 10, 64); err == nil {
		return fmt.Sprintf("%s (%s, commit: %s)", version, time.Unix(ts, 0).Format("2006-01-02"), commit)
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}

var (
	flagRoot    string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "timefs",
	Short: "Transparent point-in-time versioning for a directory tree",
	Long: `TimeFS mirrors a backing directory and keeps point-in-time snapshots of
modified files under a hidden per-directory history area. Versioning,
retention, restore and diffing happen without explicit save actions.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		if flagVerbose {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("timefs version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&flagRoot, "root", "r", ".", "mount root directory")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// mount bundles everything a command needs for one root.
type mount struct {
	cfg *config.Mount
	st  *store.Store
	eng *engine.Engine
}

// openMount loads the root's config and wires store, policy, tracker and
// engine. Callers must Close the returned mount.
func openMount(root string) (*mount, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	limit, err := cfg.StorageLimitBytes()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(root, store.Options{
		MaxVersions:  cfg.MaxVersions,
		StorageLimit: limit,
	})
	if err != nil {
		return nil, err
	}
	eval := policy.New(policy.Options{
		AutoVersion: cfg.AutoVersionEnabled(),
		MinInterval: cfg.MinIntervalDuration(),
		Exclude:     cfg.Exclude,
	})
	trk := tracker.New(st, eval)
	return &mount{
		cfg: cfg,
		st:  st,
		eng: engine.New(st, trk, eval),
	}, nil
}

func (m *mount) Close() {
	m.st.Close()
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
