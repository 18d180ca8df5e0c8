// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extractor

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/northbound/ragcore/internal/model"
)

// extractExcel extracts text from an Excel workbook, one block per
// sheet using the "markdownification" row-to-text strategy, so
// chunking never splits a single sheet's rows across an arbitrary
// character boundary.
func extractExcel(path string) ([]block, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file: %s", path)
	}

	blocks := make([]block, 0, len(sheetList))
	for _, sheetName := range sheetList {
		rows, err := f.GetRows(sheetName)
		if err != nil || len(rows) == 0 {
			continue
		}

		headers := rows[0]
		var builder strings.Builder
		for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
			row := rows[rowIdx]
			var parts []string
			for colIdx, header := range headers {
				if colIdx >= len(row) || row[colIdx] == "" {
					continue
				}
				value := strings.TrimSpace(row[colIdx])
				if value == "" {
					continue
				}
				headerName := strings.TrimSpace(header)
				if headerName == "" {
					headerName = fmt.Sprintf("Column %d", colIdx+1)
				}
				parts = append(parts, fmt.Sprintf("%s: %s", headerName, value))
			}
			if len(parts) > 0 {
				builder.WriteString(fmt.Sprintf("Row %d: %s\n", rowIdx+1, strings.Join(parts, ", ")))
			}
		}

		content := strings.TrimSpace(builder.String())
		if content == "" {
			continue
		}
		blocks = append(blocks, block{
			text: fmt.Sprintf("Sheet: %s\n%s", sheetName, content),
			meta: model.Metadata{"sheet_name": model.String(sheetName)},
		})
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("no content extracted from Excel file: %s", path)
	}
	return blocks, nil
}
