package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/lib/pq"
)

// SheetRow is one untyped row of an external table, keyed by header name
type SheetRow map[string]string

// Sheet is a named table as read from external storage
type Sheet struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   []SheetRow `json:"rows"`
}

// HasColumn reports whether the header carries the column, ignoring case and surrounding spaces
func (s *Sheet) HasColumn(name string) bool {
	if s == nil {
		return false
	}
	want := normalizeHeader(name)
	for _, h := range s.Header {
		if normalizeHeader(h) == want {
			return true
		}
	}
	return false
}

// SheetTable stores the header of a persisted table in postgres
type SheetTable struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:128;not null;uniqueIndex:uk_sheet_tables_name" json:"name"`
	Columns   pq.StringArray `gorm:"type:text[];not null" json:"columns"`
	RowCount  int            `gorm:"not null;default:0" json:"row_count"`
	CreatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (SheetTable) TableName() string {
	return "sheet_tables"
}

// SheetTableRow stores one row of a persisted table as a jsonb object
type SheetTableRow struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Table     string          `gorm:"column:table_name;size:128;not null;index:idx_sheet_table_rows_table_position,priority:1" json:"table_name"`
	Position  int             `gorm:"not null;index:idx_sheet_table_rows_table_position,priority:2" json:"position"`
	Data      json.RawMessage `gorm:"type:jsonb;not null" json:"data"`
	CreatedAt time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (SheetTableRow) TableName() string {
	return "sheet_table_rows"
}

// SheetTableRowFilter represents filter criteria for persisted table rows
type SheetTableRowFilter struct {
	Table *string `json:"table_name,omitempty"`
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
