package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"timefs/internal/engine"
)

var diffCmd = &cobra.Command{
	Use:   "diff <addrA> <addrB>",
	Short: "Compare two versions of a file",
	Long: `Compare two version addresses line by line.

An address is either a historical version (path@YYYYMMDD_HHMMSS, the same
timestamp visible in the .history file names) or a bare path meaning the
current live file.

Examples:
  # Historical version against the live file
  timefs diff notes.txt@20230426_100015 notes.txt

  # Two historical versions
  timefs diff notes.txt@20230426_100015 notes.txt@20230427_091200`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	m, err := openMount(flagRoot)
	if err != nil {
		return err
	}
	defer m.Close()

	edits, err := m.eng.Diff(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	for _, e := range edits {
		switch e.Op {
		case engine.Removed:
			fmt.Printf("-%s\n", e.Line)
		case engine.Added:
			fmt.Printf("+%s\n", e.Line)
		default:
			fmt.Printf(" %s\n", e.Line)
		}
	}
	return nil
}
