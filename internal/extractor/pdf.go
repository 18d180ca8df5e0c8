// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"fmt"
	"strings"

	fitz "github.com/gen2brain/go-fitz"

	"github.com/northbound/ragcore/internal/model"
)

// extractPDF extracts text from a PDF file using go-fitz (MuPDF),
// one block per page so chunking can respect page boundaries.
func extractPDF(path string) ([]block, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	blocks := make([]block, 0, numPages)
	for i := 0; i < numPages; i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		blocks = append(blocks, block{
			text: pageText,
			meta: model.Metadata{"page_number": model.Int(int64(i + 1))},
		})
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no text extracted from PDF: %s", path)
	}
	return blocks, nil
}
