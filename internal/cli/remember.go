package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/engine"
	"github.com/memkeep/memkeep/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "remember",
		Short: "Save a conversation transcript",
		Long: "Save a conversation as an immutable transcript plus an episodic memory.\n" +
			"Reads a JSON array of {role, content} messages from --file or stdin.",
		Run: runRemember,
	}

	cmd.Flags().StringP("tag", "t", "", "Tag owning the conversation (required)")
	cmd.Flags().String("id", "", "Conversation id (default: generated)")
	cmd.Flags().StringP("file", "f", "", "Read messages from this file instead of stdin")
	cmd.Flags().Bool("extract", false, "Extract durable facts from the transcript")

	cmd.MarkFlagRequired("tag")

	RootCmd.AddCommand(cmd)
}

func runRemember(cmd *cobra.Command, args []string) {
	tag, _ := cmd.Flags().GetString("tag")
	id, _ := cmd.Flags().GetString("id")
	file, _ := cmd.Flags().GetString("file")
	extract, _ := cmd.Flags().GetBool("extract")

	var raw []byte
	var err error
	if file != "" {
		raw, err = os.ReadFile(file)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read messages", err)
	}

	var messages []model.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		exitErr("parse messages", err)
	}

	eng, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer eng.Close()

	result, err := eng.AddConversation(cmd.Context(), engine.ConversationParams{
		ID:       id,
		Tag:      tag,
		Messages: messages,
		Extract:  extract,
	})
	if err != nil {
		exitErr("remember", err)
	}
	printJSON(result)
}
