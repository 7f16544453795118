package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "vacuum",
		Short: "Purge old soft-deleted memories and compact the database",
		Run:   runVacuum,
	}
	RootCmd.AddCommand(cmd)
}

func runVacuum(cmd *cobra.Command, args []string) {
	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	purged, err := eng.Vacuum(cmd.Context())
	if err != nil {
		exitErr("vacuum", err)
	}
	printJSON(map[string]any{"purged": purged})
}
