// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mnako/letters"

	"github.com/northbound/ragcore/internal/model"
)

// extractEmail extracts text from an EML file (bonus extension beyond
// the required set): one header block and one body block.
func extractEmail(path string) ([]block, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EML file: %w", err)
	}
	defer file.Close()

	email, err := letters.ParseEmail(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EML file: %w", err)
	}

	var blocks []block

	var header strings.Builder
	if email.Headers.Subject != "" {
		header.WriteString(fmt.Sprintf("Subject: %s\n", email.Headers.Subject))
	}
	if len(email.Headers.From) > 0 {
		from := email.Headers.From[0]
		if from.Name != "" {
			header.WriteString(fmt.Sprintf("Sender: %s <%s>\n", from.Name, from.Address))
		} else {
			header.WriteString(fmt.Sprintf("Sender: %s\n", from.Address))
		}
	}
	if !email.Headers.Date.IsZero() {
		header.WriteString(fmt.Sprintf("Date: %s\n", email.Headers.Date.Format(time.RFC3339)))
	}
	if header.Len() > 0 {
		blocks = append(blocks, block{text: strings.TrimSpace(header.String()), meta: model.Metadata{"section": model.String("header")}})
	}

	bodyText := email.Text
	if bodyText == "" {
		bodyText = email.HTML
	}
	bodyText = strings.TrimSpace(bodyText)
	if bodyText != "" {
		blocks = append(blocks, block{text: bodyText, meta: model.Metadata{"section": model.String("body")}})
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("no content extracted from EML: %s", path)
	}
	return blocks, nil
}
