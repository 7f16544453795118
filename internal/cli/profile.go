package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "profile [query]",
		Short: "Assemble a context profile for a tag scope",
		Long: "Collect the stable facts and recent activity for a tag scope in one shot,\n" +
			"plus search results when a query is given. Intended for priming an agent's context.",
		Run: runProfile,
	}

	cmd.Flags().StringP("tags", "t", "", "Comma-separated tag scope (required)")
	cmd.MarkFlagRequired("tags")

	RootCmd.AddCommand(cmd)
}

func runProfile(cmd *cobra.Command, args []string) {
	tagsStr, _ := cmd.Flags().GetString("tags")

	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	profile, err := eng.GetProfile(cmd.Context(), splitTags(tagsStr), strings.Join(args, " "))
	if err != nil {
		exitErr("profile", err)
	}
	printJSON(profile)
}
