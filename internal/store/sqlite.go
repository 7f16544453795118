// Package store provides SQLite-backed persistence for memories, tags,
// relation edges, and conversations.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/memkeep/memkeep/internal/model"
)

// SQLiteStore is the durable entity store. All multi-row mutations run inside
// one transaction; the full-text index is synced best-effort after the
// transaction commits.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
	logger  *slog.Logger

	// indexDirty is set when a full-text index write failed after a
	// successful storage write. Keyword search still works through the
	// substring fallback at reduced recall.
	indexDirty atomic.Bool
}

// New opens or creates a SQLite database at the given path.
func New(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  logger,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewID returns a fresh ULID.
func (s *SQLiteStore) NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// IndexDirty reports whether a full-text index write has failed since open.
func (s *SQLiteStore) IndexDirty() bool { return s.indexDirty.Load() }

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id          TEXT PRIMARY KEY,
		content     TEXT NOT NULL,
		summary     TEXT,
		type        TEXT NOT NULL DEFAULT 'dynamic',
		importance  TEXT NOT NULL DEFAULT 'normal',
		source      TEXT,
		metadata    TEXT,
		embedding   BLOB,
		access_count INTEGER NOT NULL DEFAULT 0,
		last_accessed_at TEXT,
		deleted     INTEGER NOT NULL DEFAULT 0,
		deleted_at  TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type);
	CREATE INDEX IF NOT EXISTS idx_memories_updated ON memories(updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_deleted ON memories(deleted, deleted_at);

	CREATE TABLE IF NOT EXISTS memory_tags (
		memory_id  TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		tag        TEXT NOT NULL,
		PRIMARY KEY (memory_id, tag)
	);
	CREATE INDEX IF NOT EXISTS idx_memory_tags_tag ON memory_tags(tag);

	CREATE TABLE IF NOT EXISTS memory_links (
		source_id  TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		target_id  TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		relation   TEXT NOT NULL,
		strength   REAL NOT NULL DEFAULT 1.0,
		created_at TEXT NOT NULL,
		PRIMARY KEY (source_id, target_id)
	);
	CREATE INDEX IF NOT EXISTS idx_links_target ON memory_links(target_id);

	CREATE TABLE IF NOT EXISTS conversations (
		id         TEXT PRIMARY KEY,
		tag        TEXT NOT NULL,
		messages   TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_tag ON conversations(tag);

	CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(
		id UNINDEXED,
		content,
		summary
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Create inserts a memory with its tag associations in one transaction.
// An empty ID is assigned. The full-text index is updated afterwards;
// index failure logs a warning but does not fail the write.
func (s *SQLiteStore) Create(ctx context.Context, m *model.Memory) error {
	if m.ID == "" {
		m.ID = s.NewID()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memories (id, content, summary, type, importance, source, metadata, embedding,
		                       access_count, deleted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		m.ID, m.Content, nullable(m.Summary), string(m.Type), string(m.Importance),
		nullable(m.Source), metadataJSON(m.Metadata), vecToBlob(m.Embedding),
		m.CreatedAt.Format(time.RFC3339), m.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}

	for _, tag := range m.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO memory_tags (memory_id, tag) VALUES (?, ?)`, m.ID, tag); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.indexMemory(ctx, m.ID, m.Content, m.Summary)
	return nil
}

// Get returns a memory with its tags. Soft-deleted rows are reported as
// not found unless includeDeleted is set.
func (s *SQLiteStore) Get(ctx context.Context, id string, includeDeleted bool) (*model.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE id = ?`
	if !includeDeleted {
		query += ` AND deleted = 0`
	}

	row := s.db.QueryRowContext(ctx, query, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, goerr.Wrap(model.ErrNotFound, "get", goerr.V("id", id))
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadTags(ctx, []*model.Memory{m}); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateParams carries the partial update for a memory. Nil fields are left
// untouched. A non-nil Tags slice replaces all prior tag associations.
type UpdateParams struct {
	Content    *string
	Summary    *string
	Type       *model.MemoryType
	Importance *model.Importance
	Metadata   map[string]any
	Tags       []string
	Embedding  []float32
}

// Update applies a partial update in one transaction and bumps updated_at.
func (s *SQLiteStore) Update(ctx context.Context, id string, p UpdateParams) (*model.Memory, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ? AND deleted = 0`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, goerr.Wrap(model.ErrNotFound, "update", goerr.V("id", id))
	}
	if err != nil {
		return nil, err
	}

	contentChanged := false
	if p.Content != nil && *p.Content != m.Content {
		m.Content = *p.Content
		contentChanged = true
	}
	if p.Summary != nil {
		m.Summary = *p.Summary
		contentChanged = true
	}
	if p.Type != nil {
		m.Type = *p.Type
	}
	if p.Importance != nil {
		m.Importance = *p.Importance
	}
	if p.Metadata != nil {
		m.Metadata = p.Metadata
	}
	if p.Embedding != nil {
		m.Embedding = p.Embedding
	}
	m.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE memories SET content = ?, summary = ?, type = ?, importance = ?, metadata = ?,
		                     embedding = ?, updated_at = ? WHERE id = ?`,
		m.Content, nullable(m.Summary), string(m.Type), string(m.Importance),
		metadataJSON(m.Metadata), vecToBlob(m.Embedding), m.UpdatedAt.Format(time.RFC3339), id)
	if err != nil {
		return nil, fmt.Errorf("update memory: %w", err)
	}

	if p.Tags != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_tags WHERE memory_id = ?`, id); err != nil {
			return nil, fmt.Errorf("clear tags: %w", err)
		}
		for _, tag := range p.Tags {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO memory_tags (memory_id, tag) VALUES (?, ?)`, id, tag); err != nil {
				return nil, fmt.Errorf("insert tag: %w", err)
			}
		}
		m.Tags = p.Tags
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if m.Tags == nil {
		if err := s.loadTags(ctx, []*model.Memory{m}); err != nil {
			return nil, err
		}
	}
	if contentChanged {
		s.reindexMemory(ctx, id, m.Content, m.Summary)
	}
	return m, nil
}

// SoftDelete marks a memory deleted. It stays restorable until purged.
func (s *SQLiteStore) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET deleted = 1, deleted_at = ? WHERE id = ? AND deleted = 0`, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return goerr.Wrap(model.ErrNotFound, "delete", goerr.V("id", id))
	}
	return nil
}

// Restore reinstates a soft-deleted memory.
func (s *SQLiteStore) Restore(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET deleted = 0, deleted_at = NULL WHERE id = ? AND deleted = 1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return goerr.Wrap(model.ErrNotFound, "restore", goerr.V("id", id))
	}
	return nil
}

// HardDelete physically removes a memory. Tag associations and edges cascade.
func (s *SQLiteStore) HardDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return goerr.Wrap(model.ErrNotFound, "hard delete", goerr.V("id", id))
	}
	s.deindexMemory(ctx, []string{id})
	return nil
}

// TouchAccessed bumps access tracking for the given ids in one batch.
func (s *SQLiteStore) TouchAccessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
			now, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentParams scopes a recency-ordered listing.
type RecentParams struct {
	Tags          []string
	Types         []model.MemoryType
	RequireVector bool
	Limit         int
}

// Recent returns non-deleted memories in scope ordered by updated_at
// descending. It backs the dedup scan window, vector candidate sets, and
// profile context listings.
func (s *SQLiteStore) Recent(ctx context.Context, p RecentParams) ([]*model.Memory, error) {
	where, args := scopeClauses(p.Tags, p.Types)
	if p.RequireVector {
		where = append(where, "m.embedding IS NOT NULL")
	}

	query := fmt.Sprintf(`SELECT DISTINCT %s FROM memories m %s WHERE %s ORDER BY m.updated_at DESC`,
		prefixedMemoryColumns, tagJoin(p.Tags), strings.Join(where, " AND "))
	if p.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", p.Limit)
	}

	return s.queryMemories(ctx, query, args...)
}

// StaticFacts returns non-deleted static memories in scope ordered by
// importance weight descending, then recency.
func (s *SQLiteStore) StaticFacts(ctx context.Context, tags []string, limit int) ([]*model.Memory, error) {
	where, args := scopeClauses(tags, []model.MemoryType{model.TypeStatic})

	query := fmt.Sprintf(`SELECT DISTINCT %s FROM memories m %s WHERE %s
		ORDER BY %s DESC, m.updated_at DESC`,
		prefixedMemoryColumns, tagJoin(tags), strings.Join(where, " AND "), importanceWeightSQL)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	return s.queryMemories(ctx, query, args...)
}

// importanceWeightSQL orders rows by the fixed numeric importance weight.
const importanceWeightSQL = `CASE m.importance
	WHEN 'critical' THEN 4
	WHEN 'high' THEN 3
	WHEN 'normal' THEN 2
	ELSE 1 END`

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- full-text index sync ---

// indexMemory adds a row to the full-text index. Failures are non-fatal: the
// record stays searchable through the substring fallback.
func (s *SQLiteStore) indexMemory(ctx context.Context, id, content, summary string) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_fts (id, content, summary) VALUES (?, ?, ?)`, id, content, summary)
	if err != nil {
		s.indexDirty.Store(true)
		s.logger.Warn("full-text index write failed", "id", id, "error", err)
	}
}

func (s *SQLiteStore) reindexMemory(ctx context.Context, id, content, summary string) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_fts WHERE id = ?`, id); err != nil {
		s.indexDirty.Store(true)
		s.logger.Warn("full-text index delete failed", "id", id, "error", err)
		return
	}
	s.indexMemory(ctx, id, content, summary)
}

func (s *SQLiteStore) deindexMemory(ctx context.Context, ids []string) {
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_fts WHERE id = ?`, id); err != nil {
			s.indexDirty.Store(true)
			s.logger.Warn("full-text index delete failed", "id", id, "error", err)
		}
	}
}

// --- scanning and helpers ---

const memoryColumns = `id, content, summary, type, importance, source, metadata, embedding,
	access_count, last_accessed_at, deleted, deleted_at, created_at, updated_at`

const prefixedMemoryColumns = `m.id, m.content, m.summary, m.type, m.importance, m.source, m.metadata,
	m.embedding, m.access_count, m.last_accessed_at, m.deleted, m.deleted_at, m.created_at, m.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

// scanMemory scans one memory row. Extra destinations are appended for
// queries that select trailing columns such as a match rank.
func scanMemory(row scanner, extra ...any) (*model.Memory, error) {
	var m model.Memory
	var summary, source, metadata, lastAccessed, deletedAt sql.NullString
	var embedding []byte
	var deleted int
	var createdAt, updatedAt string
	var typ, importance string

	dest := []any{&m.ID, &m.Content, &summary, &typ, &importance, &source, &metadata,
		&embedding, &m.AccessCount, &lastAccessed, &deleted, &deletedAt, &createdAt, &updatedAt}
	dest = append(dest, extra...)

	err := row.Scan(dest...)
	if err != nil {
		return nil, err
	}

	m.Type = model.MemoryType(typ)
	m.Importance = model.Importance(importance)
	m.Summary = summary.String
	m.Source = source.String
	m.Deleted = deleted != 0
	m.Embedding = blobToVec(embedding)
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if metadata.Valid && metadata.String != "" {
		json.Unmarshal([]byte(metadata.String), &m.Metadata)
	}
	if lastAccessed.Valid {
		t, _ := time.Parse(time.RFC3339, lastAccessed.String)
		m.LastAccessedAt = &t
	}
	if deletedAt.Valid {
		t, _ := time.Parse(time.RFC3339, deletedAt.String)
		m.DeletedAt = &t
	}

	return &m, nil
}

func (s *SQLiteStore) queryMemories(ctx context.Context, query string, args ...any) ([]*model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []*model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadTags(ctx, memories); err != nil {
		return nil, err
	}
	return memories, nil
}

// loadTags resolves tag lists for a batch of memories.
func (s *SQLiteStore) loadTags(ctx context.Context, memories []*model.Memory) error {
	if len(memories) == 0 {
		return nil
	}

	byID := make(map[string]*model.Memory, len(memories))
	args := make([]any, 0, len(memories))
	for _, m := range memories {
		byID[m.ID] = m
		args = append(args, m.ID)
	}

	query := `SELECT memory_id, tag FROM memory_tags WHERE memory_id IN (` +
		placeholders(len(args)) + `) ORDER BY tag`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return err
		}
		if m := byID[id]; m != nil {
			m.Tags = append(m.Tags, tag)
		}
	}
	return rows.Err()
}

// scopeClauses builds the shared non-deleted + tag + type filter.
func scopeClauses(tags []string, types []model.MemoryType) ([]string, []any) {
	where := []string{"m.deleted = 0"}
	var args []any

	if len(tags) > 0 {
		where = append(where, "t.tag IN ("+placeholders(len(tags))+")")
		for _, tag := range tags {
			args = append(args, tag)
		}
	}
	if len(types) > 0 {
		where = append(where, "m.type IN ("+placeholders(len(types))+")")
		for _, ty := range types {
			args = append(args, string(ty))
		}
	}
	return where, args
}

func tagJoin(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return "INNER JOIN memory_tags t ON t.memory_id = m.id"
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func metadataJSON(m map[string]any) *string {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	js := string(b)
	return &js
}

// vecToBlob encodes a vector as little-endian float32 bytes.
func vecToBlob(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func blobToVec(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
