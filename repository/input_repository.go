package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Yata-no-Kagami/models"
	"github.com/amirphl/Yata-no-Kagami/utils"
)

// SheetNames names the tables holding each reconciliation input
type SheetNames struct {
	Attendance string
	Payments   string
	Rules      string
	Discounts  string
	Master     string
}

// SheetInputRepository reads the reconciliation inputs from a TableStore
type SheetInputRepository struct {
	store TableStore
	names SheetNames
	times utils.TimeParser
}

// NewInputRepository creates an input repository over the named tables
func NewInputRepository(store TableStore, names SheetNames) *SheetInputRepository {
	return &SheetInputRepository{store: store, names: names, times: utils.DefaultTimeParser}
}

// WithTimeParser sets how attendance and payment timestamps are read
func (r *SheetInputRepository) WithTimeParser(times utils.TimeParser) *SheetInputRepository {
	r.times = times
	return r
}

func (r *SheetInputRepository) Attendance(ctx context.Context) ([]models.AttendanceRecord, error) {
	sheet, err := r.read(ctx, r.names.Attendance)
	if err != nil {
		return nil, err
	}
	return ParseAttendanceWith(sheet, r.times), nil
}

func (r *SheetInputRepository) Payments(ctx context.Context) ([]models.PaymentRecord, error) {
	sheet, err := r.read(ctx, r.names.Payments)
	if err != nil {
		return nil, err
	}
	return ParsePaymentsWith(sheet, r.times), nil
}

func (r *SheetInputRepository) Rules(ctx context.Context) (*RuleTable, error) {
	sheet, err := r.read(ctx, r.names.Rules)
	if err != nil {
		return nil, err
	}
	return ParseRules(sheet), nil
}

func (r *SheetInputRepository) Discounts(ctx context.Context) ([]models.Discount, error) {
	sheet, err := r.read(ctx, r.names.Discounts)
	if err != nil {
		return nil, err
	}
	return ParseDiscounts(sheet), nil
}

// BackfillRuleAliases writes the rule table back with both alias columns added
func (r *SheetInputRepository) BackfillRuleAliases(ctx context.Context, table *RuleTable) error {
	if table == nil || table.Sheet == nil {
		return nil
	}
	header, rows := BackfilledRuleSheet(table.Sheet)
	if err := r.store.WriteTable(ctx, r.names.Rules, header, rows); err != nil {
		return fmt.Errorf("failed to backfill rule aliases: %w", err)
	}
	return nil
}

func (r *SheetInputRepository) read(ctx context.Context, name string) (*models.Sheet, error) {
	sheet, err := r.store.ReadTable(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", name, err)
	}
	return sheet, nil
}
