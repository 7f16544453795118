package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory counts by type and importance",
		Run:   runStats,
	}
	cmd.Flags().StringP("tags", "t", "", "Restrict to comma-separated tags")
	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	tagsStr, _ := cmd.Flags().GetString("tags")

	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	stats, err := eng.Stats(cmd.Context(), splitTags(tagsStr))
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(stats)
}
