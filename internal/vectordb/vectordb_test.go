// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package vectordb

import (
	"context"
	"testing"
	"time"

	"github.com/northbound/ragcore/internal/model"
)

func TestListDocuments_PopulatesFullSummaryFromMetadata(t *testing.T) {
	db := NewMockVectorDB()
	uploadedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	chunk := model.Chunk{
		ID:         "doc-1-chunk-0",
		DocumentID: "doc-1",
		ChunkIndex: 0,
		Text:       "hello world",
		Metadata: model.Metadata{
			model.MetaFileName:      model.String("report.pdf"),
			model.MetaFileType:      model.String("pdf"),
			model.MetaPath:          model.String("/data/documents/doc-1/report.pdf"),
			model.MetaFileSizeBytes: model.Int(4096),
			model.MetaUploadedAt:    model.String(uploadedAt.Format(time.RFC3339)),
		},
	}
	if err := db.UpsertBatch(context.Background(), []model.Chunk{chunk}); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	docs, err := db.ListDocuments(context.Background(), "name", "asc")
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}

	got := docs[0]
	if got.FileName != "report.pdf" {
		t.Errorf("FileName = %q, want %q", got.FileName, "report.pdf")
	}
	if got.FileType != "pdf" {
		t.Errorf("FileType = %q, want %q", got.FileType, "pdf")
	}
	if got.Path != "/data/documents/doc-1/report.pdf" {
		t.Errorf("Path = %q, want %q", got.Path, "/data/documents/doc-1/report.pdf")
	}
	if got.SizeBytes != 4096 {
		t.Errorf("SizeBytes = %d, want 4096", got.SizeBytes)
	}
	if !got.UploadedAt.Equal(uploadedAt) {
		t.Errorf("UploadedAt = %v, want %v", got.UploadedAt, uploadedAt)
	}
}

func TestListDocuments_DefaultSortByUploadedAtIsNotANoOp(t *testing.T) {
	db := NewMockVectorDB()
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	chunks := []model.Chunk{
		{
			ID: "doc-new-chunk-0", DocumentID: "doc-new",
			Metadata: model.Metadata{
				model.MetaFileName:   model.String("newer.txt"),
				model.MetaUploadedAt: model.String(newer.Format(time.RFC3339)),
			},
		},
		{
			ID: "doc-old-chunk-0", DocumentID: "doc-old",
			Metadata: model.Metadata{
				model.MetaFileName:   model.String("older.txt"),
				model.MetaUploadedAt: model.String(older.Format(time.RFC3339)),
			},
		},
	}
	if err := db.UpsertBatch(context.Background(), chunks); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	docs, err := db.ListDocuments(context.Background(), "", "asc")
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].DocumentID != "doc-old" || docs[1].DocumentID != "doc-new" {
		t.Fatalf("expected ascending upload-time order [doc-old, doc-new], got [%s, %s]", docs[0].DocumentID, docs[1].DocumentID)
	}
}
