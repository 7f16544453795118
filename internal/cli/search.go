package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/engine"
	"github.com/memkeep/memkeep/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories",
		Long:  "Rank memories in a tag scope by keyword match, semantic similarity, freshness, importance, and usage.",
		Run:   runSearch,
	}

	cmd.Flags().StringP("tags", "t", "", "Comma-separated tag scope (required)")
	cmd.Flags().String("types", "", "Restrict to comma-separated memory types")
	cmd.Flags().String("min-importance", "", "Drop results below this importance")
	cmd.Flags().IntP("limit", "l", 10, "Max results")

	cmd.MarkFlagRequired("tags")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	tagsStr, _ := cmd.Flags().GetString("tags")
	typesStr, _ := cmd.Flags().GetString("types")
	minImportance, _ := cmd.Flags().GetString("min-importance")
	limit, _ := cmd.Flags().GetInt("limit")

	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	hits, err := eng.Search(cmd.Context(), engine.SearchParams{
		Tags:          splitTags(tagsStr),
		Query:         strings.Join(args, " "),
		Types:         parseTypes(typesStr),
		MinImportance: model.Importance(minImportance),
		Limit:         limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	if len(hits) == 0 {
		printJSON([]any{})
		return
	}
	printJSON(hits)
}
