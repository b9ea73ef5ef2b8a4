// Package repository provides table storage implementations and typed adapters for reconciliation inputs and the master ledger
package repository

import (
	"context"
	"errors"

	"github.com/amirphl/Yata-no-Kagami/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// ErrTableNotFound is returned when a named table does not exist in the store
var ErrTableNotFound = errors.New("table not found")

// TableStore reads and replaces whole named tables.
// WriteTable must be an atomic replace: readers never see a partial write.
type TableStore interface {
	ReadTable(ctx context.Context, name string) (*models.Sheet, error)
	WriteTable(ctx context.Context, name string, header []string, rows []models.SheetRow) error
}

// LedgerRepository defines operations for the persisted master ledger
type LedgerRepository interface {
	List(ctx context.Context) ([]models.MasterRow, error)
	ReplaceAll(ctx context.Context, rows []models.MasterRow) error
}

// InputRepository defines typed reads of the reconciliation inputs
type InputRepository interface {
	Attendance(ctx context.Context) ([]models.AttendanceRecord, error)
	Payments(ctx context.Context) ([]models.PaymentRecord, error)
	Rules(ctx context.Context) (*RuleTable, error)
	Discounts(ctx context.Context) ([]models.Discount, error)
	BackfillRuleAliases(ctx context.Context, table *RuleTable) error
}
