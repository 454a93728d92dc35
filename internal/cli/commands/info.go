package commands

import (
	"fmt"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [root]",
	Short: "Show mount settings and storage usage",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	root := flagRoot
	if len(args) == 1 {
		root = args[0]
	}

	m, err := openMount(root)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := cmd.Context()
	idx := m.st.Index()

	tracked, err := idx.TrackedPaths(ctx)
	if err != nil {
		return err
	}
	counts, err := idx.PathCounts(ctx)
	if err != nil {
		return err
	}
	records := 0
	for _, n := range counts {
		records += n
	}
	total, err := idx.TotalSize(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Root:           %s\n", root)
	fmt.Printf("Auto-version:   %v\n", m.cfg.AutoVersionEnabled())
	fmt.Printf("Min interval:   %s\n", m.cfg.MinIntervalDuration())
	if m.cfg.MaxVersions > 0 {
		fmt.Printf("Max versions:   %d\n", m.cfg.MaxVersions)
	} else {
		fmt.Printf("Max versions:   unlimited\n")
	}
	fmt.Printf("Keep days:      %d\n", m.cfg.KeepDays)
	fmt.Printf("Max per day:    %d\n", m.cfg.MaxPerDay)
	if len(m.cfg.Exclude) > 0 {
		fmt.Printf("Exclude:        %v\n", m.cfg.Exclude)
	}
	fmt.Printf("Tracked files:  %d\n", len(tracked))
	fmt.Printf("Versions:       %d\n", records)
	ceiling := m.st.Accountant().Ceiling()
	if ceiling > 0 {
		fmt.Printf("Storage:        %s of %s\n",
			units.HumanSize(float64(total)), units.HumanSize(float64(ceiling)))
	} else {
		fmt.Printf("Storage:        %s (no limit)\n", units.HumanSize(float64(total)))
	}
	return nil
}
