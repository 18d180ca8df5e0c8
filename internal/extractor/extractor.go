// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package extractor turns an uploaded file into a list of chunks ready
// for embedding, generalizing internal/parser's single-opaque-string
// extraction into structured, metadata-bearing chunks per file format.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/northbound/ragcore/internal/llm"
	"github.com/northbound/ragcore/internal/logger"
	"github.com/northbound/ragcore/internal/model"
)

// UnsupportedFormatError is returned when a file's extension isn't one
// the dispatcher knows how to extract.
type UnsupportedFormatError struct{ Ext string }

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("extractor: unsupported file type %q", e.Ext)
}

// ExtractError wraps a format-specific extraction failure with the
// file path that caused it.
type ExtractError struct {
	Path string
	Err  error
}

func (e *ExtractError) Error() string { return fmt.Sprintf("extractor: %s: %v", e.Path, e.Err) }
func (e *ExtractError) Unwrap() error { return e.Err }

// block is one structural unit of a document: a PDF page, a DOCX
// paragraph run, an HTML block element, an Excel sheet's rows, a PPTX
// slide. Chunking snaps to block boundaries where it can instead of
// blindly windowing characters.
type block struct {
	text string
	meta model.Metadata
}

// Request describes one file to extract into chunks.
type Request struct {
	Path          string
	DocumentID    string
	FileName      string
	FileHash      string
	FileSizeBytes int64
	StoragePath   string
	UploadedAt    time.Time
	TokenBudget   int
	TokenOverlap  int
	Contextualize bool
	LLM           llm.Provider
}

var supportedExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".txt": true, ".md": true,
	".xlsx": true, ".xls": true, ".html": true, ".htm": true,
	".eml": true, ".pptx": true, ".asciidoc": true, ".adoc": true,
}

// IsSupportedFile reports whether the file's extension has a
// registered extractor.
func IsSupportedFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsTemporaryFile flags editor/OS lock and swap files that should
// never be ingested, matching the teacher's own filter.
func IsTemporaryFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") {
		return true
	}
	if strings.HasPrefix(base, "._") {
		return true
	}
	if strings.HasSuffix(base, ".tmp") {
		return true
	}
	return false
}

// Extract dispatches on file extension, splits the result into
// token-budgeted chunks along structural boundaries, stamps metadata
// and deterministic IDs, and best-effort contextualizes each chunk.
func Extract(ctx context.Context, req Request) ([]model.Chunk, error) {
	ext := strings.ToLower(filepath.Ext(req.Path))
	if !supportedExtensions[ext] {
		return nil, &UnsupportedFormatError{Ext: ext}
	}

	var blocks []block
	var err error

	switch ext {
	case ".pdf":
		blocks, err = extractPDF(req.Path)
	case ".docx":
		blocks, err = extractDOCX(req.Path)
	case ".txt", ".md":
		blocks, err = extractText(req.Path)
	case ".xlsx", ".xls":
		blocks, err = extractExcel(req.Path)
	case ".html", ".htm":
		blocks, err = extractHTML(req.Path)
	case ".eml":
		blocks, err = extractEmail(req.Path)
	case ".pptx":
		blocks, err = extractPPTX(req.Path)
	case ".asciidoc", ".adoc":
		blocks, err = extractAsciidoc(req.Path)
	default:
		return nil, &UnsupportedFormatError{Ext: ext}
	}
	if err != nil {
		return nil, &ExtractError{Path: req.Path, Err: err}
	}
	if len(blocks) == 0 {
		return nil, &ExtractError{Path: req.Path, Err: fmt.Errorf("no content extracted")}
	}

	tokenBudget := req.TokenBudget
	if tokenBudget <= 0 {
		tokenBudget = 500
	}
	overlap := req.TokenOverlap
	if overlap <= 0 {
		overlap = 50
	}

	texts := chunkBlocks(blocks, tokenBudget, overlap)

	fullDoc := joinBlockText(blocks)
	excerpt := fullDoc
	if len(excerpt) > 2000 {
		excerpt = excerpt[:2000]
	}

	chunks := make([]model.Chunk, 0, len(texts))
	for i, t := range texts {
		meta := model.Metadata{
			model.MetaFileName:      model.String(req.FileName),
			model.MetaFileType:      model.String(strings.TrimPrefix(ext, ".")),
			model.MetaDocumentID:    model.String(req.DocumentID),
			model.MetaChunkIndex:    model.Int(int64(i)),
			model.MetaFileHash:      model.String(req.FileHash),
			model.MetaFileSizeBytes: model.Int(req.FileSizeBytes),
			model.MetaUploadedAt:    model.String(req.UploadedAt.Format(time.RFC3339)),
			model.MetaPath:         model.String(req.StoragePath),
		}

		chunkText := t.text
		if req.Contextualize && req.LLM != nil {
			if prefix := contextualize(ctx, req.LLM, excerpt, t.text); prefix != "" {
				chunkText = prefix + "\n\n" + t.text
			}
		}
		for k, v := range t.meta {
			meta[k] = v
		}

		chunks = append(chunks, model.Chunk{
			ID:         chunkID(req.DocumentID, i),
			DocumentID: req.DocumentID,
			ChunkIndex: i,
			Text:       chunkText,
			Metadata:   meta,
		})
	}

	return chunks, nil
}

// chunkID is the literal chunk_id: "{document_id}-chunk-{chunk_index}".
// Re-ingesting the same file reproduces the same chunk IDs (idempotent
// upsert); the vector store layer derives its own point id from this
// string since Qdrant point ids must be UUID or uint.
func chunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-chunk-%d", documentID, index)
}

// contextualize makes a single best-effort LLM call per chunk; a
// failure here never fails ingestion, matching the teacher's
// tolerance of per-chunk embedding failures in ingest_handler.go.
func contextualize(ctx context.Context, provider llm.Provider, docExcerpt, chunkText string) string {
	prompt, err := llm.RenderContextualPrefix(docExcerpt, chunkText)
	if err != nil {
		return ""
	}
	text, err := provider.Complete(ctx, llm.Prompt{User: prompt, MaxTokens: 120, Temperature: 0.0})
	if err != nil {
		logger.Warnf("contextual prefix generation failed, continuing without it: %v", err)
		return ""
	}
	return strings.TrimSpace(text)
}

func joinBlockText(blocks []block) string {
	var b strings.Builder
	for i, bl := range blocks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(bl.text)
	}
	return b.String()
}
