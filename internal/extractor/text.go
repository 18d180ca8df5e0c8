// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"fmt"
	"os"
	"strings"
)

// extractText reads a .txt/.md file whole and splits it into
// paragraph blocks on blank lines, the natural structural unit for
// plain text and Markdown.
func extractText(path string) ([]block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}

	raw := strings.ReplaceAll(string(data), "\r\n", "\n")
	paras := strings.Split(raw, "\n\n")

	blocks := make([]block, 0, len(paras))
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		blocks = append(blocks, block{text: p})
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no text extracted from %s", path)
	}
	return blocks, nil
}
