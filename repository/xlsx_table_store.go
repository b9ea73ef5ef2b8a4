package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/amirphl/Yata-no-Kagami/models"
)

// XLSXTableStore keeps every table as one worksheet of a single workbook file
type XLSXTableStore struct {
	path string
	mu   sync.RWMutex
}

// NewXLSXTableStore creates a table store over the workbook at path. The file is created on first write.
func NewXLSXTableStore(path string) *XLSXTableStore {
	return &XLSXTableStore{path: path}
}

// Path returns the workbook location
func (s *XLSXTableStore) Path() string {
	return s.path
}

func (s *XLSXTableStore) ReadTable(ctx context.Context, name string) (*models.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	xl, err := excelize.OpenFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
		}
		return nil, fmt.Errorf("failed to open workbook %s: %w", s.path, err)
	}
	defer func() { _ = xl.Close() }()

	sheetName := sanitizeSheetName(name)
	if idx, err := xl.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	cells, err := xl.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %s: %w", sheetName, err)
	}
	return sheetFromCells(name, cells), nil
}

// WriteTable rewrites the workbook with the named worksheet replaced. The new
// workbook is written next to the old one and renamed over it.
func (s *XLSXTableStore) WriteTable(ctx context.Context, name string, header []string, rows []models.SheetRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tables, err := s.loadAll()
	if err != nil {
		return err
	}

	header = resolveHeader(header, rows)
	target := sanitizeSheetName(name)
	cells := make([][]string, 0, len(rows)+1)
	cells = append(cells, header)
	for _, row := range rows {
		record := make([]string, len(header))
		for i, h := range header {
			record[i] = row[h]
		}
		cells = append(cells, record)
	}

	replaced := false
	for i := range tables {
		if tables[i].name == target {
			tables[i].cells = cells
			replaced = true
		}
	}
	if !replaced {
		tables = append(tables, worksheet{name: target, cells: cells})
	}

	return s.writeAll(tables)
}

type worksheet struct {
	name  string
	cells [][]string
}

func (s *XLSXTableStore) loadAll() ([]worksheet, error) {
	xl, err := excelize.OpenFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open workbook %s: %w", s.path, err)
	}
	defer func() { _ = xl.Close() }()

	var tables []worksheet
	for _, name := range xl.GetSheetList() {
		cells, err := xl.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read worksheet %s: %w", name, err)
		}
		tables = append(tables, worksheet{name: name, cells: cells})
	}
	return tables, nil
}

func (s *XLSXTableStore) writeAll(tables []worksheet) error {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	for i, t := range tables {
		if i == 0 {
			if err := xl.SetSheetName(xl.GetSheetName(0), t.name); err != nil {
				return fmt.Errorf("failed to name worksheet %s: %w", t.name, err)
			}
		} else if _, err := xl.NewSheet(t.name); err != nil {
			return fmt.Errorf("failed to create worksheet %s: %w", t.name, err)
		}
		if err := writeCells(xl, t.name, t.cells); err != nil {
			return err
		}
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create workbook directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ledger-*.xlsx")
	if err != nil {
		return fmt.Errorf("failed to create temporary workbook: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	if err := xl.SaveAs(tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace workbook: %w", err)
	}
	return nil
}

func writeCells(xl *excelize.File, sheet string, cells [][]string) error {
	for ri, record := range cells {
		cellRef, err := excelize.CoordinatesToCellName(1, ri+1)
		if err != nil {
			return err
		}
		record := record
		if err := xl.SetSheetRow(sheet, cellRef, &record); err != nil {
			return fmt.Errorf("failed to write row %d of worksheet %s: %w", ri+1, sheet, err)
		}
	}
	return nil
}

func sheetFromCells(name string, cells [][]string) *models.Sheet {
	sheet := &models.Sheet{Name: name, Header: []string{}, Rows: []models.SheetRow{}}
	if len(cells) == 0 {
		return sheet
	}
	for _, h := range cells[0] {
		sheet.Header = append(sheet.Header, strings.TrimSpace(h))
	}
	for _, record := range cells[1:] {
		if row, ok := rowFromCells(sheet.Header, record); ok {
			sheet.Rows = append(sheet.Rows, row)
		}
	}
	return sheet
}

// ExportWorkbook renders a single table as a standalone workbook
func ExportWorkbook(name string, header []string, rows [][]string) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := sanitizeSheetName(name)
	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("failed to name worksheet %s: %w", sheet, err)
	}
	cells := append([][]string{header}, rows...)
	if err := writeCells(xl, sheet, cells); err != nil {
		return nil, err
	}
	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func sanitizeSheetName(name string) string {
	// Excel sheet names cannot contain: : \\ / ? * [ ] and must be <= 31 chars
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	safe := strings.TrimSpace(replacer.Replace(name))
	if len(safe) > 31 {
		return safe[:31]
	}
	if safe == "" {
		return "Sheet"
	}
	return safe
}
