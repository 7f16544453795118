package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/engine"
	"github.com/memkeep/memkeep/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update a memory",
		Long:  "Update a memory's content, summary, type, importance, tags, or metadata. Unset flags leave fields untouched.",
		Args:  cobra.ExactArgs(1),
		Run:   runUpdate,
	}

	cmd.Flags().String("content", "", "Replacement content")
	cmd.Flags().StringP("summary", "s", "", "Replacement summary")
	cmd.Flags().String("type", "", "Replacement type")
	cmd.Flags().StringP("importance", "i", "", "Replacement importance")
	cmd.Flags().StringP("tags", "t", "", "Replacement comma-separated tag set")
	cmd.Flags().String("meta", "", "Replacement JSON metadata")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	var p engine.UpdateParams

	if cmd.Flags().Changed("content") {
		content, _ := cmd.Flags().GetString("content")
		p.Content = &content
	}
	if cmd.Flags().Changed("summary") {
		summary, _ := cmd.Flags().GetString("summary")
		p.Summary = &summary
	}
	if cmd.Flags().Changed("type") {
		typeStr, _ := cmd.Flags().GetString("type")
		t := model.MemoryType(typeStr)
		p.Type = &t
	}
	if cmd.Flags().Changed("importance") {
		impStr, _ := cmd.Flags().GetString("importance")
		imp := model.Importance(impStr)
		p.Importance = &imp
	}
	if cmd.Flags().Changed("tags") {
		tagsStr, _ := cmd.Flags().GetString("tags")
		p.Tags = splitTags(tagsStr)
	}
	if cmd.Flags().Changed("meta") {
		meta, _ := cmd.Flags().GetString("meta")
		if err := json.Unmarshal([]byte(meta), &p.Metadata); err != nil {
			exitErr("parse metadata", err)
		}
	}

	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	m, err := eng.Update(cmd.Context(), args[0], p)
	if err != nil {
		exitErr("update", err)
	}
	printJSON(m)
}
