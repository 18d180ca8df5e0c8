// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/northbound/ragcore/internal/model"
)

// No library in the retrieval pack touches PPTX, but it is OOXML
// zipped-XML exactly like the DOCX/XLSX formats the pack does cover,
// so extractPPTX opens the zip and walks ppt/slides/slideN.xml the
// same way excelize/docx open their own package parts internally.
var slideFileRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

type pptxTextBody struct {
	Paragraphs []pptxParagraph `xml:"p"`
}

type pptxParagraph struct {
	Runs []pptxRun `xml:"r"`
}

type pptxRun struct {
	Text string `xml:"t"`
}

type pptxShape struct {
	TextBody pptxTextBody `xml:"txBody"`
}

type pptxSlide struct {
	Shapes []pptxShape `xml:"cSld>spTree>sp"`
}

// extractPPTX extracts text from a PowerPoint file, one block per
// slide in slide order.
func extractPPTX(path string) ([]block, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PPTX as zip: %w", err)
	}
	defer r.Close()

	type slideFile struct {
		num int
		f   *zip.File
	}
	var slideFiles []slideFile
	for _, f := range r.File {
		m := slideFileRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slideFiles = append(slideFiles, slideFile{num: n, f: f})
	}
	if len(slideFiles) == 0 {
		return nil, fmt.Errorf("no slides found in PPTX: %s", path)
	}
	sort.Slice(slideFiles, func(i, j int) bool { return slideFiles[i].num < slideFiles[j].num })

	blocks := make([]block, 0, len(slideFiles))
	for _, sf := range slideFiles {
		rc, err := sf.f.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		var slide pptxSlide
		if err := xml.Unmarshal(data, &slide); err != nil {
			continue
		}

		var b strings.Builder
		for _, shape := range slide.Shapes {
			for _, p := range shape.TextBody.Paragraphs {
				var line strings.Builder
				for _, run := range p.Runs {
					line.WriteString(run.Text)
				}
				if line.Len() > 0 {
					b.WriteString(line.String())
					b.WriteString("\n")
				}
			}
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		blocks = append(blocks, block{
			text: text,
			meta: model.Metadata{"slide_number": model.Int(int64(sf.num))},
		})
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("no text extracted from PPTX: %s", path)
	}
	return blocks, nil
}
