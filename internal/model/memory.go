// Package model defines the core memory data types.
package model

import "time"

// MemoryType classifies how a memory decays over time.
type MemoryType string

const (
	// TypeStatic is a permanent fact, immune to recency decay.
	TypeStatic MemoryType = "static"
	// TypeDynamic is current context that decays over time.
	TypeDynamic MemoryType = "dynamic"
	// TypeEpisodic is derived from a conversation transcript.
	TypeEpisodic MemoryType = "episodic"
	// TypeSemantic is a derived or learned concept.
	TypeSemantic MemoryType = "semantic"
)

// ValidTypes are the allowed memory types.
var ValidTypes = map[MemoryType]bool{
	TypeStatic:   true,
	TypeDynamic:  true,
	TypeEpisodic: true,
	TypeSemantic: true,
}

// Valid reports whether t is a known memory type.
func (t MemoryType) Valid() bool { return ValidTypes[t] }

// Decays reports whether memories of this type lose recency score with age.
func (t MemoryType) Decays() bool { return t != TypeStatic }

// Importance is the four-level priority used in ranking and cleanup.
type Importance string

const (
	ImportanceCritical Importance = "critical"
	ImportanceHigh     Importance = "high"
	ImportanceNormal   Importance = "normal"
	ImportanceLow      Importance = "low"
)

// importanceWeights maps each level to its fixed numeric weight.
var importanceWeights = map[Importance]int{
	ImportanceCritical: 4,
	ImportanceHigh:     3,
	ImportanceNormal:   2,
	ImportanceLow:      1,
}

// MaxImportanceWeight is the weight of the highest importance level.
const MaxImportanceWeight = 4

// Valid reports whether i is a known importance level.
func (i Importance) Valid() bool { return importanceWeights[i] != 0 }

// Weight returns the numeric weight of the level (4 down to 1), 0 if unknown.
func (i Importance) Weight() int { return importanceWeights[i] }

// MaxImportance returns whichever of a, b carries the higher weight.
func MaxImportance(a, b Importance) Importance {
	if b.Weight() > a.Weight() {
		return b
	}
	return a
}

// Metadata keys the engine maintains for chunked and merged records. All
// other metadata keys are opaque to the engine.
const (
	MetaChunkIndex = "chunk_index"
	MetaChunkTotal = "chunk_total"
	MetaParentID   = "parent_id"
	MetaMergedAt   = "merged_at"
)

// RelationChunk links a follow-on chunk back to the first chunk of its content.
const RelationChunk = "chunk"

// Memory is one stored fact, context, or episode unit.
type Memory struct {
	ID             string         `json:"id"`
	Content        string         `json:"content"`
	Summary        string         `json:"summary,omitempty"`
	Type           MemoryType     `json:"type"`
	Importance     Importance     `json:"importance"`
	Source         string         `json:"source,omitempty"`
	Tags           []string       `json:"tags"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Embedding      []float32      `json:"-"`
	AccessCount    int            `json:"access_count"`
	LastAccessedAt *time.Time     `json:"last_accessed_at,omitempty"`
	Deleted        bool           `json:"deleted,omitempty"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Edge is a directed, typed, weighted link between two memories.
type Edge struct {
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Relation  string    `json:"relation"`
	Strength  float64   `json:"strength"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is an immutable saved transcript.
type Conversation struct {
	ID        string    `json:"id"`
	Tag       string    `json:"tag"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// Fact is a single extracted statement handed back by a fact extractor.
type Fact struct {
	Content    string     `json:"content"`
	Type       MemoryType `json:"type,omitempty"`
	Importance Importance `json:"importance,omitempty"`
}
