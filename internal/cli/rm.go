package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a memory",
		Long:  "Soft-delete a memory (restorable with 'restore' until vacuumed). --hard removes it permanently.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}
	cmd.Flags().Bool("hard", false, "Permanently delete, cascading tags and links")
	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	hard, _ := cmd.Flags().GetBool("hard")

	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	if hard {
		err = eng.HardDelete(cmd.Context(), args[0])
	} else {
		err = eng.Delete(cmd.Context(), args[0])
	}
	if err != nil {
		exitErr("rm", err)
	}
	printJSON(map[string]any{"deleted": args[0], "hard": hard})
}
