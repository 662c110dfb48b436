// Package xlsxtext flattens spreadsheet workbooks into indexable text.
package xlsxtext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

// Decode renders every non-empty row of every sheet as one line, cells joined
// by " | ", each sheet introduced by a "Sheet: <name>" line.
func Decode(raw []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "open workbook", err)
	}
	defer book.Close()

	var out strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}

		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				if cell = strings.TrimSpace(cell); cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " | "))
			}
		}
		if len(lines) == 0 {
			continue
		}

		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString("Sheet: ")
		out.WriteString(sheet)
		out.WriteString("\n")
		out.WriteString(strings.Join(lines, "\n"))
	}
	return out.String(), nil
}
