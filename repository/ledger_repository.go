package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Yata-no-Kagami/models"
)

// Master sheet columns, in stored order
const (
	ColUniqueKey              = "Unique Key"
	ColCustomerName           = "Customer Name"
	ColEventStartsAt          = "Event Starts At"
	ColMembershipName         = "Membership Name"
	ColOfferingType           = "Offering Type"
	ColInstructors            = "Instructors"
	ColStatus                 = "Status"
	ColSessionType            = "Session Type"
	ColRuleName               = "Rule Name"
	ColDiscount               = "Discount"
	ColDiscountPercentage     = "Discount %"
	ColVerificationStatus     = "Verification Status"
	ColInvoiceNumber          = "Invoice #"
	ColAmount                 = "Amount"
	ColPaymentDate            = "Payment Date"
	ColPackagePrice           = "Package Price"
	ColSessionPrice           = "Session Price"
	ColDiscountedSessionPrice = "Discounted Session Price"
	ColCoachAmount            = "Coach Amount"
	ColBGMAmount              = "BGM Amount"
	ColManagementAmount       = "Management Amount"
	ColMFCAmount              = "MFC Amount"
)

// MasterColumns is the header of the persisted ledger
var MasterColumns = []string{
	ColUniqueKey, ColCustomerName, ColEventStartsAt, ColMembershipName, ColOfferingType,
	ColInstructors, ColStatus, ColSessionType, ColRuleName, ColDiscount, ColDiscountPercentage,
	ColVerificationStatus, ColInvoiceNumber, ColAmount, ColPaymentDate, ColPackagePrice,
	ColSessionPrice, ColDiscountedSessionPrice, ColCoachAmount, ColBGMAmount,
	ColManagementAmount, ColMFCAmount,
}

// ExportColumns is the column order of ledger exports
var ExportColumns = []string{
	ColCustomerName, ColEventStartsAt, ColMembershipName, ColInstructors, ColStatus,
	ColDiscount, ColDiscountPercentage, ColVerificationStatus, ColInvoiceNumber, ColAmount,
	ColPaymentDate, ColSessionPrice, ColCoachAmount, ColBGMAmount, ColManagementAmount, ColMFCAmount,
}

// MasterRowToSheetRow flattens a ledger row into master sheet cells
func MasterRowToSheetRow(m models.MasterRow) models.SheetRow {
	return models.SheetRow{
		ColUniqueKey:              m.UniqueKey,
		ColCustomerName:           m.CustomerName,
		ColEventStartsAt:          m.EventStartsAt,
		ColMembershipName:         m.MembershipName,
		ColOfferingType:           m.OfferingType,
		ColInstructors:            m.Instructors,
		ColStatus:                 m.Status,
		ColSessionType:            m.SessionType,
		ColRuleName:               m.RuleName,
		ColDiscount:               m.DiscountName,
		ColDiscountPercentage:     FormatNumber(m.DiscountPercentage),
		ColVerificationStatus:     m.VerificationStatus,
		ColInvoiceNumber:          m.InvoiceNumber,
		ColAmount:                 FormatNumber(m.Amount),
		ColPaymentDate:            m.PaymentDate,
		ColPackagePrice:           FormatNumber(m.PackagePrice),
		ColSessionPrice:           FormatNumber(m.SessionPrice),
		ColDiscountedSessionPrice: FormatNumber(m.DiscountedSessionPrice),
		ColCoachAmount:            FormatNumber(m.CoachAmount),
		ColBGMAmount:              FormatNumber(m.BGMAmount),
		ColManagementAmount:       FormatNumber(m.ManagementAmount),
		ColMFCAmount:              FormatNumber(m.MFCAmount),
	}
}

// MasterRowsToSheet converts ledger rows into master sheet rows
func MasterRowsToSheet(rows []models.MasterRow) []models.SheetRow {
	out := make([]models.SheetRow, 0, len(rows))
	for _, m := range rows {
		out = append(out, MasterRowToSheetRow(m))
	}
	return out
}

// ParseMasterRows converts a master sheet back into ledger rows. Rows without a unique key are dropped.
func ParseMasterRows(sheet *models.Sheet) []models.MasterRow {
	if sheet == nil {
		return nil
	}
	r := NewFieldResolver(sheet.Header, sheet.Rows)
	f := func(name string) Field { return r.Field(name) }

	out := make([]models.MasterRow, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		key := f(ColUniqueKey).String(row)
		if key == "" {
			continue
		}
		out = append(out, models.MasterRow{
			UniqueKey:              key,
			CustomerName:           f(ColCustomerName).String(row),
			EventStartsAt:          f(ColEventStartsAt).String(row),
			MembershipName:         f(ColMembershipName).String(row),
			OfferingType:           f(ColOfferingType).String(row),
			Instructors:            f(ColInstructors).String(row),
			Status:                 f(ColStatus).String(row),
			SessionType:            f(ColSessionType).String(row),
			RuleName:               f(ColRuleName).String(row),
			DiscountName:           f(ColDiscount).String(row),
			DiscountPercentage:     f(ColDiscountPercentage).Float(row),
			VerificationStatus:     f(ColVerificationStatus).String(row),
			InvoiceNumber:          f(ColInvoiceNumber).String(row),
			Amount:                 f(ColAmount).Float(row),
			PaymentDate:            f(ColPaymentDate).String(row),
			PackagePrice:           f(ColPackagePrice).Float(row),
			SessionPrice:           f(ColSessionPrice).Float(row),
			DiscountedSessionPrice: f(ColDiscountedSessionPrice).Float(row),
			CoachAmount:            f(ColCoachAmount).Float(row),
			BGMAmount:              f(ColBGMAmount).Float(row),
			ManagementAmount:       f(ColManagementAmount).Float(row),
			MFCAmount:              f(ColMFCAmount).Float(row),
		})
	}
	return out
}

// ExportRecords renders ledger rows in ExportColumns order
func ExportRecords(rows []models.MasterRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, m := range rows {
		cells := MasterRowToSheetRow(m)
		record := make([]string, len(ExportColumns))
		for i, col := range ExportColumns {
			record[i] = cells[col]
		}
		out = append(out, record)
	}
	return out
}

// SheetLedgerRepository persists the master ledger as one table of a TableStore
type SheetLedgerRepository struct {
	store TableStore
	table string
}

// NewLedgerRepository creates a ledger repository over the named master table
func NewLedgerRepository(store TableStore, table string) *SheetLedgerRepository {
	return &SheetLedgerRepository{store: store, table: table}
}

// List returns the persisted ledger, empty when the master table does not exist yet
func (r *SheetLedgerRepository) List(ctx context.Context) ([]models.MasterRow, error) {
	sheet, err := r.store.ReadTable(ctx, r.table)
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return []models.MasterRow{}, nil
		}
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return ParseMasterRows(sheet), nil
}

// ReplaceAll overwrites the whole ledger
func (r *SheetLedgerRepository) ReplaceAll(ctx context.Context, rows []models.MasterRow) error {
	if err := r.store.WriteTable(ctx, r.table, MasterColumns, MasterRowsToSheet(rows)); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return nil
}
