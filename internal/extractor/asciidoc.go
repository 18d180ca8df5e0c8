// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/northbound/ragcore/internal/model"
)

// No library in the retrieval pack parses AsciiDoc either. It gets a
// heading-aware plain-text splitter, one block per section starting at
// each AsciiDoc heading ("=", "==", "===", ...). Markdown is not split
// this way: extractText splits it on blank lines only.
var asciidocHeadingRe = regexp.MustCompile(`^(=+)\s+(.*)$`)

func extractAsciidoc(path string) ([]block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read AsciiDoc file: %w", err)
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	var blocks []block
	var cur strings.Builder
	var curHeading string

	flush := func() {
		text := strings.TrimSpace(cur.String())
		if text == "" {
			return
		}
		meta := model.Metadata{}
		if curHeading != "" {
			meta["heading"] = model.String(curHeading)
		}
		blocks = append(blocks, block{text: text, meta: meta})
		cur.Reset()
	}

	for _, line := range lines {
		if m := asciidocHeadingRe.FindStringSubmatch(line); m != nil {
			flush()
			curHeading = strings.TrimSpace(m[2])
			cur.WriteString(line)
			cur.WriteString("\n")
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
	}
	flush()

	if len(blocks) == 0 {
		return nil, fmt.Errorf("no content extracted from AsciiDoc file: %s", path)
	}
	return blocks, nil
}
