package cli

import (
	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/mcpserver"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve memory tools over MCP on stdio",
		Long: "Expose the memory engine as an MCP server on stdin/stdout so agent\n" +
			"runtimes can add, search, and manage memories as tools.",
		Run: runServe,
	}
	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	srv := mcpserver.New(eng)
	if err := srv.Run(cmd.Context()); err != nil {
		exitErr("serve", err)
	}
}
