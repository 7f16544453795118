package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import memories from a JSON export",
		Long:  "Load a JSON array of memories (as produced by 'export') from a file or stdin. Vectors are recomputed by the configured embedder.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	cmd.Flags().Bool("dedup", false, "Merge near-duplicates instead of inserting them")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	dedup, _ := cmd.Flags().GetBool("dedup")

	var raw []byte
	var err error
	if len(args) > 0 {
		raw, err = os.ReadFile(args[0])
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read import", err)
	}

	var records []*model.Memory
	if err := json.Unmarshal(raw, &records); err != nil {
		exitErr("parse import", err)
	}

	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	imported, err := eng.ImportBulk(cmd.Context(), records, dedup)
	if err != nil {
		exitErr("import", err)
	}
	printJSON(map[string]any{"imported": imported})
}
