package repository

import (
	"slices"
	"strings"

	"github.com/amirphl/Yata-no-Kagami/models"
)

// resolveHeader returns header, or the sorted keys of the first row when header is empty
func resolveHeader(header []string, rows []models.SheetRow) []string {
	if len(header) > 0 {
		return slices.Clone(header)
	}
	if len(rows) == 0 {
		return []string{}
	}
	keys := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// projectRow keeps the header columns of row, missing cells as empty strings
func projectRow(row models.SheetRow, header []string) models.SheetRow {
	out := make(models.SheetRow, len(header))
	for _, h := range header {
		out[h] = row[h]
	}
	return out
}

// rowFromCells zips a header with one row of cells. Short rows are padded with empty strings.
func rowFromCells(header, cells []string) (models.SheetRow, bool) {
	row := make(models.SheetRow, len(header))
	nonEmpty := false
	for i, h := range header {
		if i < len(cells) {
			row[h] = cells[i]
			if strings.TrimSpace(cells[i]) != "" {
				nonEmpty = true
			}
		} else {
			row[h] = ""
		}
	}
	return row, nonEmpty
}
