package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/amirphl/Yata-no-Kagami/models"
)

// SheetTableRepository handles table headers persisted in postgres
type SheetTableRepository struct {
	*BaseRepository[models.SheetTable, models.SheetTableRowFilter]
}

// SheetTableRowRepository handles table rows persisted in postgres
type SheetTableRowRepository struct {
	*BaseRepository[models.SheetTableRow, models.SheetTableRowFilter]
}

// PostgresTableStore keeps every table as a header row plus jsonb rows
type PostgresTableStore struct {
	db     *gorm.DB
	tables *SheetTableRepository
	rows   *SheetTableRowRepository
}

// NewPostgresTableStore creates a table store backed by postgres
func NewPostgresTableStore(db *gorm.DB) *PostgresTableStore {
	return &PostgresTableStore{
		db:     db,
		tables: &SheetTableRepository{NewBaseRepository[models.SheetTable, models.SheetTableRowFilter](db)},
		rows:   &SheetTableRowRepository{NewBaseRepository[models.SheetTableRow, models.SheetTableRowFilter](db)},
	}
}

// AutoMigrate creates the table storage schema
func (s *PostgresTableStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&models.SheetTable{}, &models.SheetTableRow{}); err != nil {
		return fmt.Errorf("failed to migrate table storage: %w", err)
	}
	return nil
}

// ByName returns the table header, nil when absent
func (r *SheetTableRepository) ByName(ctx context.Context, name string) (*models.SheetTable, error) {
	var table models.SheetTable
	err := r.getDB(ctx).Where("name = ?", name).First(&table).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find table %q: %w", name, err)
	}
	return &table, nil
}

// ByFilter returns rows ordered by position
func (r *SheetTableRowRepository) ByFilter(ctx context.Context, filter models.SheetTableRowFilter) ([]*models.SheetTableRow, error) {
	query := r.getDB(ctx).Model(&models.SheetTableRow{})
	if filter.Table != nil {
		query = query.Where("table_name = ?", *filter.Table)
	}
	var rows []*models.SheetTableRow
	if err := query.Order("position ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list table rows: %w", err)
	}
	return rows, nil
}

func (s *PostgresTableStore) ReadTable(ctx context.Context, name string) (*models.Sheet, error) {
	table, err := s.tables.ByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	stored, err := s.rows.ByFilter(ctx, models.SheetTableRowFilter{Table: &name})
	if err != nil {
		return nil, err
	}

	sheet := &models.Sheet{Name: name, Header: []string(table.Columns), Rows: make([]models.SheetRow, 0, len(stored))}
	for _, row := range stored {
		values := models.SheetRow{}
		if err := json.Unmarshal(row.Data, &values); err != nil {
			return nil, fmt.Errorf("failed to decode row %d of table %s: %w", row.Position, name, err)
		}
		sheet.Rows = append(sheet.Rows, values)
	}
	return sheet, nil
}

// WriteTable replaces the table header and rows inside one transaction
func (s *PostgresTableStore) WriteTable(ctx context.Context, name string, header []string, rows []models.SheetRow) error {
	header = resolveHeader(header, rows)

	entities := make([]*models.SheetTableRow, 0, len(rows))
	for i, row := range rows {
		data, err := json.Marshal(projectRow(row, header))
		if err != nil {
			return fmt.Errorf("failed to encode row %d of table %s: %w", i, name, err)
		}
		entities = append(entities, &models.SheetTableRow{Table: name, Position: i, Data: data})
	}

	return WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		table, err := s.tables.ByName(txCtx, name)
		if err != nil {
			return err
		}
		if table == nil {
			table = &models.SheetTable{Name: name}
		}
		table.Columns = header
		table.RowCount = len(rows)
		if err := s.tables.Save(txCtx, table); err != nil {
			return err
		}
		if err := s.rows.DeleteWhere(txCtx, "table_name = ?", name); err != nil {
			return err
		}
		return s.rows.SaveBatch(txCtx, entities)
	})
}
