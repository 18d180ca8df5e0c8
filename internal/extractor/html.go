// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockElements are the tags extractHTML treats as chunk boundaries,
// matching the structural units a browser would render as separate
// blocks.
var blockElements = "p, div, li, h1, h2, h3, h4, h5, h6, blockquote, pre, td"

// extractHTML extracts text from an HTML file, one block per
// top-level block element, after stripping script/style/noscript.
func extractHTML(path string) ([]block, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open HTML file: %w", err)
	}
	defer file.Close()

	doc, err := goquery.NewDocumentFromReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	var blocks []block
	doc.Find(blockElements).Each(func(i int, s *goquery.Selection) {
		if s.ParentsFiltered(blockElements).Length() > 0 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		blocks = append(blocks, block{text: text})
	})

	if len(blocks) == 0 {
		text := strings.TrimSpace(doc.Text())
		if text == "" {
			return nil, fmt.Errorf("no text extracted from HTML: %s", path)
		}
		blocks = append(blocks, block{text: text})
	}
	return blocks, nil
}
