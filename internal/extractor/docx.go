// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"fmt"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// extractDOCX extracts text from a DOCX file, split into paragraph
// blocks.
func extractDOCX(path string) ([]block, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX file: %w", err)
	}
	defer doc.Close()

	text := strings.TrimSpace(doc.Editable().GetContent())
	if text == "" {
		return nil, fmt.Errorf("no text extracted from DOCX: %s", path)
	}

	paras := strings.Split(text, "\n")
	blocks := make([]block, 0, len(paras))
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		blocks = append(blocks, block{text: p})
	}
	if len(blocks) == 0 {
		blocks = append(blocks, block{text: text})
	}
	return blocks, nil
}
