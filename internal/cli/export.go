package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON",
		Long:  "Dump all live memories (tags included, vectors omitted) as a JSON array to stdout or --out.",
		Run:   runExport,
	}

	cmd.Flags().StringP("tags", "t", "", "Restrict to comma-separated tags")
	cmd.Flags().StringP("out", "o", "", "Write to this file instead of stdout")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	tagsStr, _ := cmd.Flags().GetString("tags")
	out, _ := cmd.Flags().GetString("out")

	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	records, err := eng.ExportAll(cmd.Context(), splitTags(tagsStr))
	if err != nil {
		exitErr("export", err)
	}

	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		exitErr("encode export", err)
	}

	if out == "" {
		os.Stdout.Write(append(b, '\n'))
		return
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		exitErr("write export", err)
	}
}
