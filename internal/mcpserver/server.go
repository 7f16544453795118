// Package mcpserver exposes the memory engine's operations as MCP tools
// over a stdio transport. Handlers are thin request/response translators
// with no logic of their own.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memkeep/memkeep/internal/engine"
	"github.com/memkeep/memkeep/internal/model"
	"github.com/memkeep/memkeep/internal/store"
)

// Version is reported in the MCP handshake.
const Version = "0.3.0"

// Server wraps an engine behind MCP tools.
type Server struct {
	engine *engine.Engine
	mcp    *mcp.Server
}

// New builds the MCP server and registers all memory tools.
func New(eng *engine.Engine) *Server {
	s := &Server{engine: eng}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "memkeep",
		Version: Version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "memory_add",
		Description: "Store a memory. Near-duplicates are merged when dedup is set; over-long content is split into linked chunks.",
	}, s.handleAdd)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "memory_search",
		Description: "Search memories in a tag scope, ranked by keyword match, semantic similarity, freshness, importance, and usage.",
	}, s.handleSearch)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "memory_update",
		Description: "Update a memory's content, importance, type, or tags.",
	}, s.handleUpdate)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "memory_delete",
		Description: "Soft-delete a memory. It stays restorable until vacuumed.",
	}, s.handleDelete)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "memory_restore",
		Description: "Restore a soft-deleted memory.",
	}, s.handleRestore)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "memory_get_profile",
		Description: "Get a profile for a tag scope: static facts critical-first, recent context, and optional search results.",
	}, s.handleGetProfile)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "memory_save_conversation",
		Description: "Save a conversation transcript as an episodic memory, optionally extracting durable facts.",
	}, s.handleSaveConversation)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "memory_link",
		Description: "Create or replace a directed, weighted relation between two memories.",
	}, s.handleLink)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "memory_get_related",
		Description: "List memories linked from a source memory, strongest first.",
	}, s.handleGetRelated)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "memory_cleanup",
		Description: "Remove aging low-value dynamic context. Dry-run reports candidates without deleting.",
	}, s.handleCleanup)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "memory_stats",
		Description: "Count memories by type and importance, optionally scoped to tags.",
	}, s.handleStats)

	s.mcp = srv
	return s
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

type addInput struct {
	Content    string            `json:"content" jsonschema:"the text to remember"`
	Summary    string            `json:"summary,omitempty" jsonschema:"optional short-form summary"`
	Type       string            `json:"type,omitempty" jsonschema:"static, dynamic, episodic, or semantic (default dynamic)"`
	Importance string            `json:"importance,omitempty" jsonschema:"critical, high, normal, or low (default normal)"`
	Tags       []string          `json:"tags" jsonschema:"tag scopes the memory belongs to; at least one"`
	Metadata   map[string]any    `json:"metadata,omitempty" jsonschema:"opaque key/value metadata"`
	Dedup      bool              `json:"dedup,omitempty" jsonschema:"merge into a near-duplicate instead of inserting"`
}

func (s *Server) handleAdd(ctx context.Context, _ *mcp.CallToolRequest, in addInput) (*mcp.CallToolResult, *engine.AddResult, error) {
	res, err := s.engine.Add(ctx, engine.AddParams{
		Content:    in.Content,
		Summary:    in.Summary,
		Type:       model.MemoryType(in.Type),
		Importance: model.Importance(in.Importance),
		Source:     "ai_tool",
		Tags:       in.Tags,
		Metadata:   in.Metadata,
		Dedup:      in.Dedup,
	})
	if err != nil {
		return errResult(err), nil, nil
	}
	return nil, res, nil
}

type searchInput struct {
	Query         string   `json:"query,omitempty" jsonschema:"search text; empty returns the most recent records"`
	Tags          []string `json:"tags" jsonschema:"tag scopes to search; at least one"`
	Types         []string `json:"types,omitempty" jsonschema:"restrict to these memory types"`
	MinImportance string   `json:"min_importance,omitempty" jsonschema:"drop results below this importance"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum results (default 10)"`
}

type searchOutput struct {
	Hits []engine.SearchHit `json:"hits"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, *searchOutput, error) {
	var types []model.MemoryType
	for _, t := range in.Types {
		types = append(types, model.MemoryType(t))
	}
	hits, err := s.engine.Search(ctx, engine.SearchParams{
		Tags:          in.Tags,
		Query:         in.Query,
		Types:         types,
		MinImportance: model.Importance(in.MinImportance),
		Limit:         in.Limit,
	})
	if err != nil {
		return errResult(err), nil, nil
	}
	return nil, &searchOutput{Hits: hits}, nil
}

type updateInput struct {
	ID         string         `json:"id" jsonschema:"memory id"`
	Content    *string        `json:"content,omitempty" jsonschema:"replacement content"`
	Summary    *string        `json:"summary,omitempty" jsonschema:"replacement summary"`
	Type       *string        `json:"type,omitempty" jsonschema:"replacement memory type"`
	Importance *string        `json:"importance,omitempty" jsonschema:"replacement importance"`
	Tags       []string       `json:"tags,omitempty" jsonschema:"replacement tag set"`
	Metadata   map[string]any `json:"metadata,omitempty" jsonschema:"replacement metadata"`
}

func (s *Server) handleUpdate(ctx context.Context, _ *mcp.CallToolRequest, in updateInput) (*mcp.CallToolResult, *model.Memory, error) {
	p := engine.UpdateParams{
		Content:  in.Content,
		Summary:  in.Summary,
		Tags:     in.Tags,
		Metadata: in.Metadata,
	}
	if in.Type != nil {
		t := model.MemoryType(*in.Type)
		p.Type = &t
	}
	if in.Importance != nil {
		imp := model.Importance(*in.Importance)
		p.Importance = &imp
	}
	m, err := s.engine.Update(ctx, in.ID, p)
	if err != nil {
		return errResult(err), nil, nil
	}
	return nil, m, nil
}

type idInput struct {
	ID string `json:"id" jsonschema:"memory id"`
}

type okOutput struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

func (s *Server) handleDelete(ctx context.Context, _ *mcp.CallToolRequest, in idInput) (*mcp.CallToolResult, *okOutput, error) {
	if err := s.engine.Delete(ctx, in.ID); err != nil {
		return errResult(err), nil, nil
	}
	return nil, &okOutput{OK: true, ID: in.ID}, nil
}

func (s *Server) handleRestore(ctx context.Context, _ *mcp.CallToolRequest, in idInput) (*mcp.CallToolResult, *okOutput, error) {
	if err := s.engine.Restore(ctx, in.ID); err != nil {
		return errResult(err), nil, nil
	}
	return nil, &okOutput{OK: true, ID: in.ID}, nil
}

type profileInput struct {
	Tags  []string `json:"tags" jsonschema:"tag scopes; at least one"`
	Query string   `json:"query,omitempty" jsonschema:"optional search to include in the profile"`
}

func (s *Server) handleGetProfile(ctx context.Context, _ *mcp.CallToolRequest, in profileInput) (*mcp.CallToolResult, *engine.Profile, error) {
	profile, err := s.engine.GetProfile(ctx, in.Tags, in.Query)
	if err != nil {
		return errResult(err), nil, nil
	}
	return nil, profile, nil
}

type conversationInput struct {
	ID       string          `json:"id,omitempty" jsonschema:"conversation id; generated when empty"`
	Tag      string          `json:"tag" jsonschema:"tag scope for the transcript and extracted facts"`
	Messages []model.Message `json:"messages" jsonschema:"conversation turns in order"`
	Extract  bool            `json:"extract,omitempty" jsonschema:"also extract durable facts when an extractor is configured"`
}

func (s *Server) handleSaveConversation(ctx context.Context, _ *mcp.CallToolRequest, in conversationInput) (*mcp.CallToolResult, *engine.ConversationResult, error) {
	res, err := s.engine.AddConversation(ctx, engine.ConversationParams{
		ID:       in.ID,
		Tag:      in.Tag,
		Messages: in.Messages,
		Extract:  in.Extract,
	})
	if err != nil {
		return errResult(err), nil, nil
	}
	return nil, res, nil
}

type linkInput struct {
	SourceID string  `json:"source_id" jsonschema:"source memory id"`
	TargetID string  `json:"target_id" jsonschema:"target memory id"`
	Relation string  `json:"relation" jsonschema:"relation label, e.g. related or contradicts"`
	Strength float64 `json:"strength" jsonschema:"edge strength in [0,1]"`
}

func (s *Server) handleLink(ctx context.Context, _ *mcp.CallToolRequest, in linkInput) (*mcp.CallToolResult, *model.Edge, error) {
	edge, err := s.engine.Link(ctx, in.SourceID, in.TargetID, in.Relation, in.Strength)
	if err != nil {
		return errResult(err), nil, nil
	}
	return nil, edge, nil
}

type relatedInput struct {
	SourceID string `json:"source_id" jsonschema:"source memory id"`
	Relation string `json:"relation,omitempty" jsonschema:"only follow edges with this label"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum results (default 20)"`
}

type relatedOutput struct {
	Related []store.Related `json:"related"`
}

func (s *Server) handleGetRelated(ctx context.Context, _ *mcp.CallToolRequest, in relatedInput) (*mcp.CallToolResult, *relatedOutput, error) {
	related, err := s.engine.GetRelated(ctx, in.SourceID, in.Relation, in.Limit)
	if err != nil {
		return errResult(err), nil, nil
	}
	return nil, &relatedOutput{Related: related}, nil
}

type cleanupInput struct {
	Tags       []string `json:"tags,omitempty" jsonschema:"restrict cleanup to these tag scopes"`
	MaxAgeDays int      `json:"max_age_days" jsonschema:"remove dynamic context older than this many days"`
	DryRun     bool     `json:"dry_run,omitempty" jsonschema:"report candidates without deleting"`
}

func (s *Server) handleCleanup(ctx context.Context, _ *mcp.CallToolRequest, in cleanupInput) (*mcp.CallToolResult, *store.CleanupResult, error) {
	res, err := s.engine.Cleanup(ctx, store.CleanupParams{
		Tags:       in.Tags,
		MaxAgeDays: in.MaxAgeDays,
		DryRun:     in.DryRun,
	})
	if err != nil {
		return errResult(err), nil, nil
	}
	return nil, res, nil
}

type statsInput struct {
	Tags []string `json:"tags,omitempty" jsonschema:"restrict counts to these tag scopes"`
}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, in statsInput) (*mcp.CallToolResult, *store.Stats, error) {
	stats, err := s.engine.Stats(ctx, in.Tags)
	if err != nil {
		return errResult(err), nil, nil
	}
	return nil, stats, nil
}

func errResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%v", err)},
		},
	}
}
