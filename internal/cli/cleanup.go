package cli

import (
	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Soft-delete stale dynamic memories",
		Long: "Soft-delete dynamic memories that are old, rarely accessed, and not marked\n" +
			"high or critical. Use --dry-run to preview the candidates without deleting.",
		Run: runCleanup,
	}

	cmd.Flags().StringP("tags", "t", "", "Restrict to comma-separated tags")
	cmd.Flags().Int("max-age", 90, "Age threshold in days")
	cmd.Flags().Bool("dry-run", false, "List candidates without deleting")

	RootCmd.AddCommand(cmd)
}

func runCleanup(cmd *cobra.Command, args []string) {
	tagsStr, _ := cmd.Flags().GetString("tags")
	maxAge, _ := cmd.Flags().GetInt("max-age")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	result, err := eng.Cleanup(cmd.Context(), store.CleanupParams{
		Tags:       splitTags(tagsStr),
		MaxAgeDays: maxAge,
		DryRun:     dryRun,
	})
	if err != nil {
		exitErr("cleanup", err)
	}
	printJSON(result)
}
