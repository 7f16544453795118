// Package cli implements the memkeep CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memkeep/memkeep/internal/config"
	"github.com/memkeep/memkeep/internal/embedding"
	"github.com/memkeep/memkeep/internal/engine"
	"github.com/memkeep/memkeep/internal/model"
)

var (
	dbFlag     string
	configFlag string
	logLevel   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memkeep",
	Short: "Persistent, queryable memory for conversational agents",
	Long: "A memory store for AI agents: facts, context, and transcripts,\n" +
		"retrievable by a blend of keyword match, semantic similarity,\n" +
		"freshness, importance, and usage. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbFlag, "db", "d", "", "Database path (default: $MEMKEEP_DB_PATH or ~/.memkeep/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Config file (default: ~/.memkeep/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// openEngine builds an engine from config, flags, and environment.
func openEngine() (*engine.Engine, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	if dbFlag != "" {
		cfg.DBPath = dbFlag
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	embedder, err := embedding.New(cfg.Embedding.Provider, cfg.Embedding.Model,
		cfg.Embedding.URL, cfg.Embedding.APIKey, cfg.Embedding.Dims)
	if err != nil {
		return nil, err
	}

	return engine.New(engine.Config{
		DBPath:    cfg.DBPath,
		Embedder:  embedder,
		CacheSize: cfg.CacheSize,
		Logger:    config.NewLogger(cfg.LogLevel, os.Stderr),
	})
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func parseTypes(s string) []model.MemoryType {
	var types []model.MemoryType
	for _, t := range splitTags(s) {
		types = append(types, model.MemoryType(t))
	}
	return types
}
