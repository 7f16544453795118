package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "link [source-id] [target-id]",
		Short: "Link two memories",
		Long:  "Create or update a typed, weighted relation between two memories. Re-linking the same pair replaces the relation and strength.",
		Args:  cobra.ExactArgs(2),
		Run:   runLink,
	}

	cmd.Flags().StringP("relation", "r", "related", "Relation label")
	cmd.Flags().Float64P("strength", "s", 0.5, "Relation strength in [0,1]")

	RootCmd.AddCommand(cmd)
}

func runLink(cmd *cobra.Command, args []string) {
	relation, _ := cmd.Flags().GetString("relation")
	strength, _ := cmd.Flags().GetFloat64("strength")

	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	edge, err := eng.Link(cmd.Context(), args[0], args[1], relation, strength)
	if err != nil {
		exitErr("link", err)
	}
	printJSON(edge)
}
