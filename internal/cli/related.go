package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "related [id]",
		Short: "List memories linked from a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runRelated,
	}

	cmd.Flags().StringP("relation", "r", "", "Only follow this relation label")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runRelated(cmd *cobra.Command, args []string) {
	relation, _ := cmd.Flags().GetString("relation")
	limit, _ := cmd.Flags().GetInt("limit")

	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	related, err := eng.GetRelated(cmd.Context(), args[0], relation, limit)
	if err != nil {
		exitErr("related", err)
	}

	if len(related) == 0 {
		printJSON([]any{})
		return
	}
	printJSON(related)
}
