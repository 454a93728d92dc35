package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"timefs/internal/common"
	"timefs/internal/config"
	"timefs/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init [root]",
	Short: "Initialize a directory for versioning",
	Long: `Create the hidden history area under a directory and write a default
config.yaml. Safe to run on an already initialized root: existing
settings and versions are left untouched.

Examples:
  timefs init /data/project`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root := flagRoot
	if len(args) == 1 {
		root = args[0]
	}

	if fi, err := os.Stat(root); err != nil {
		return fmt.Errorf("failed to stat root: %w", err)
	} else if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	cfgPath := config.Path(root)
	fresh := false
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		fresh = true
	}

	// Opening the store creates .history and the index schema.
	st, err := store.Open(root, store.Options{})
	if err != nil {
		return err
	}
	defer st.Close()

	if fresh {
		cfg := &config.Mount{}
		cfg.ApplyDefaults()
		if err := config.Save(root, cfg); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	abs, err := filepath.Abs(filepath.Join(root, common.HistoryDir))
	if err != nil {
		abs = filepath.Join(root, common.HistoryDir)
	}
	if fresh {
		fmt.Printf("Initialized history area at %s\n", abs)
	} else {
		fmt.Printf("History area already initialized at %s\n", abs)
	}
	return nil
}
