package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/engine"
	"github.com/memkeep/memkeep/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Store a memory",
		Long:  "Store a memory. Content can be a positional arg or piped via stdin.",
		Run:   runAdd,
	}

	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags (required)")
	cmd.Flags().String("type", "dynamic", "Type: static, dynamic, episodic, semantic")
	cmd.Flags().StringP("importance", "i", "normal", "Importance: critical, high, normal, low")
	cmd.Flags().StringP("summary", "s", "", "Optional summary")
	cmd.Flags().String("source", "user", "Provenance tag")
	cmd.Flags().String("meta", "", "JSON metadata")
	cmd.Flags().Bool("dedup", false, "Merge into a near-duplicate instead of inserting")

	cmd.MarkFlagRequired("tags")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	tagsStr, _ := cmd.Flags().GetString("tags")
	typeStr, _ := cmd.Flags().GetString("type")
	importance, _ := cmd.Flags().GetString("importance")
	summary, _ := cmd.Flags().GetString("summary")
	source, _ := cmd.Flags().GetString("source")
	meta, _ := cmd.Flags().GetString("meta")
	dedup, _ := cmd.Flags().GetBool("dedup")

	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	if strings.TrimSpace(content) == "" {
		exitErr("add", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	var metadata map[string]any
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &metadata); err != nil {
			exitErr("parse metadata", err)
		}
	}

	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	res, err := eng.Add(cmd.Context(), engine.AddParams{
		Content:    strings.TrimSpace(content),
		Summary:    summary,
		Type:       model.MemoryType(typeStr),
		Importance: model.Importance(importance),
		Source:     source,
		Tags:       splitTags(tagsStr),
		Metadata:   metadata,
		Dedup:      dedup,
	})
	if err != nil {
		exitErr("add", err)
	}

	printJSON(res)
}
