package commands

import (
	"fmt"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"timefs/internal/compact"
)

var (
	flagKeepDays  int
	flagMaxPerDay int
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [root]",
	Short: "Prune old versions per the retention policy",
	Long: `Apply day-based retention across the whole tracked tree.

Per file, at most --max-per-day versions are kept per calendar day (UTC),
and versions older than --keep-days days are pruned. Each file's oldest
surviving version is always kept as a baseline. Cleanup is idempotent:
a second run with no new mutations removes nothing.

Flag defaults come from the root's config.yaml.

Examples:
  timefs cleanup --keep-days=30 --max-per-day=1 /data/project`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().IntVar(&flagKeepDays, "keep-days", 0, "discard versions older than N days (0 = config default)")
	cleanupCmd.Flags().IntVar(&flagMaxPerDay, "max-per-day", 0, "keep at most K versions per day per file (0 = config default)")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	root := flagRoot
	if len(args) == 1 {
		root = args[0]
	}

	m, err := openMount(root)
	if err != nil {
		return err
	}
	defer m.Close()

	params := compact.Params{
		KeepDays:  flagKeepDays,
		MaxPerDay: flagMaxPerDay,
	}
	if params.KeepDays == 0 {
		params.KeepDays = m.cfg.KeepDays
	}
	if params.MaxPerDay == 0 {
		params.MaxPerDay = m.cfg.MaxPerDay
	}

	report, err := compact.New(root, m.st).Run(cmd.Context(), params)
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d versions, freed %s\n",
		report.VersionsRemoved, units.HumanSize(float64(report.BytesFreed)))
	return nil
}
