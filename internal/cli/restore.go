package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "restore [id]",
		Short: "Restore a soft-deleted memory",
		Args:  cobra.ExactArgs(1),
		Run:   runRestore,
	}
	RootCmd.AddCommand(cmd)
}

func runRestore(cmd *cobra.Command, args []string) {
	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	if err := eng.Restore(cmd.Context(), args[0]); err != nil {
		exitErr("restore", err)
	}
	printJSON(map[string]any{"restored": args[0]})
}
