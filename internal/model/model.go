// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package model

import (
	"strconv"
	"time"
)

// Primitive is the closed set of value types the vector store contract
// accepts as chunk metadata. It has no map or list kind, so chunk
// metadata is flat by construction (see vectordb.SanitizeMetadata).
type Primitive struct {
	kind  primitiveKind
	str   string
	num   float64
	intv  int64
	boolv bool
}

type primitiveKind int

const (
	KindNull primitiveKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
)

func String(v string) Primitive  { return Primitive{kind: KindString, str: v} }
func Int(v int64) Primitive      { return Primitive{kind: KindInt, intv: v} }
func Float(v float64) Primitive  { return Primitive{kind: KindFloat, num: v} }
func Bool(v bool) Primitive      { return Primitive{kind: KindBool, boolv: v} }
func Null() Primitive            { return Primitive{kind: KindNull} }

func (p Primitive) Kind() primitiveKind { return p.kind }
func (p Primitive) IsNull() bool        { return p.kind == KindNull }

// AsString renders the primitive as a string regardless of its
// underlying kind. The Qdrant adapter does not use it for payloads:
// vectordb.SanitizeMetadata keeps each value's own kind
// (string|int|float|bool|null).
func (p Primitive) AsString() string {
	switch p.kind {
	case KindString:
		return p.str
	case KindInt:
		return itoa(p.intv)
	case KindFloat:
		return ftoa(p.num)
	case KindBool:
		if p.boolv {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

func (p Primitive) Int() (int64, bool) {
	if p.kind == KindInt {
		return p.intv, true
	}
	return 0, false
}

func (p Primitive) Float() (float64, bool) {
	if p.kind == KindFloat {
		return p.num, true
	}
	return 0, false
}

func (p Primitive) Bool() (bool, bool) {
	if p.kind == KindBool {
		return p.boolv, true
	}
	return false, false
}

// Metadata is the flattened key/value bag attached to a chunk.
type Metadata map[string]Primitive

// Chunk is the unit of retrieval and embedding (spec data model §3).
type Chunk struct {
	ID          string    `json:"chunk_id"`
	DocumentID  string    `json:"document_id"`
	ChunkIndex  int       `json:"chunk_index"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Metadata    Metadata  `json:"metadata"`
}

// Required metadata keys every chunk must carry before upsert.
const (
	MetaFileName      = "file_name"
	MetaFileType      = "file_type"
	MetaDocumentID    = "document_id"
	MetaChunkIndex    = "chunk_index"
	MetaFileHash      = "file_hash"
	MetaFileSizeBytes = "file_size_bytes"
	MetaUploadedAt    = "uploaded_at"
	MetaPath          = "path"
)

// ScoredChunk pairs a chunk with a retrieval score in [0,1] (dense) or
// an unnormalized rank score (sparse, RRF).
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// DocumentSummary is the grouped view of a document returned by
// list_documents (spec 4.D).
type DocumentSummary struct {
	DocumentID string    `json:"id"`
	FileName   string    `json:"file_name"`
	FileType   string    `json:"file_type"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"file_size_bytes"`
	Chunks     int       `json:"chunks"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TaskStatus is the per-task state machine from spec §3 (Batch & Task).
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskError      TaskStatus = "error"
)

// TaskState is one task's progress within a batch.
type TaskState struct {
	TaskID          string     `json:"task_id"`
	Filename        string     `json:"filename"`
	Status          TaskStatus `json:"status"`
	TotalChunks     int        `json:"total_chunks"`
	CompletedChunks int        `json:"completed_chunks"`
	Data            map[string]string `json:"data,omitempty"`
}

// BatchState groups the tasks created by one upload request.
type BatchState struct {
	BatchID         string               `json:"batch_id"`
	Total           int                  `json:"total"`
	Completed       int                  `json:"completed"`
	TotalChunks     int                  `json:"total_chunks"`
	CompletedChunks int                  `json:"completed_chunks"`
	Tasks           map[string]TaskState `json:"tasks"`
}

// ChatRole mirrors spec §3 Session message roles.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
)

// ChatMessage is one turn in a session's message log.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// SessionMetadata is persisted only for non-temporary sessions.
type SessionMetadata struct {
	SessionID   string    `json:"session_id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsArchived  bool      `json:"is_archived"`
	IsTemporary bool      `json:"is_temporary"`
}

// Source is the per-chunk citation returned alongside an answer.
type Source struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Excerpt      string  `json:"excerpt"`
	FullText     string  `json:"full_text"`
	Path         string  `json:"path"`
	Score        float32 `json:"score"`
}

// AbstentionPhrase is the hard-coded marker the chat loop must emit
// verbatim when retrieval yields nothing the model can ground an
// answer in (spec §9).
const AbstentionPhrase = "I don't have enough information to answer this question."

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
