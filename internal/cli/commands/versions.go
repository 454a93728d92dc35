package commands

import (
	"fmt"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions <path>",
	Short: "List the stored versions of a file",
	Long: `List the stored versions of a file, oldest first.

The path is relative to the mount root. The first entry is labeled
"Initial Version"; the trailing entry represents the live file and is
labeled "Current Version".

Examples:
  # List versions of a file in the current root
  timefs versions docs/notes.txt

  # Against an explicit root
  timefs versions -r /data/project docs/notes.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runVersions,
}

func init() {
	rootCmd.AddCommand(versionsCmd)
}

func runVersions(cmd *cobra.Command, args []string) error {
	m, err := openMount(flagRoot)
	if err != nil {
		return err
	}
	defer m.Close()

	entries, err := m.eng.Versions(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Versions of %s:\n", args[0])
	for _, e := range entries {
		label := e.Label
		if label != "" {
			label = "  " + label
		}
		fmt.Printf("%3d  %s  %8s%s\n",
			e.Index,
			e.Timestamp.Format("2006-01-02 15:04:05"),
			units.HumanSize(float64(e.Size)),
			label)
	}
	return nil
}
