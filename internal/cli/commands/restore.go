package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <path@timestamp>",
	Short: "Restore a file to a stored version",
	Long: `Overwrite the live file with the content of a stored version.

The replacement is atomic: a reader of the live file never observes a
half-written result. If policy currently permits it, the pre-restore live
content is snapshotted first, so a restore can itself be undone. The
historical version is never deleted.

Examples:
  timefs restore notes.txt@20230426_100015`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	m, err := openMount(flagRoot)
	if err != nil {
		return err
	}
	defer m.Close()

	rec, err := m.eng.Restore(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Restored %s to version %s\n",
		rec.Path, rec.Timestamp.Format("2006-01-02 15:04:05"))
	return nil
}
