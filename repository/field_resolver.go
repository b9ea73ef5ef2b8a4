package repository

import (
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/amirphl/Yata-no-Kagami/models"
	"github.com/amirphl/Yata-no-Kagami/utils"
)

// FieldResolver maps candidate column names onto the actual header of one sheet.
// Matching ignores case, whitespace, underscores and hyphens.
type FieldResolver struct {
	columns map[string]string
}

// Field is a column resolved once per sheet
type Field struct {
	column string
	found  bool
}

// NewFieldResolver indexes a header. When header is empty the keys of the rows are used.
func NewFieldResolver(header []string, rows []models.SheetRow) *FieldResolver {
	if len(header) == 0 {
		seen := map[string]struct{}{}
		for _, row := range rows {
			for k := range row {
				if _, ok := seen[k]; !ok {
					seen[k] = struct{}{}
					header = append(header, k)
				}
			}
		}
		slices.Sort(header)
	}
	r := &FieldResolver{columns: make(map[string]string, len(header))}
	for _, h := range header {
		key := normalizeColumn(h)
		if _, exists := r.columns[key]; !exists {
			r.columns[key] = h
		}
	}
	return r
}

// Field returns the first candidate present in the header
func (r *FieldResolver) Field(candidates ...string) Field {
	for _, c := range candidates {
		if column, ok := r.columns[normalizeColumn(c)]; ok {
			return Field{column: column, found: true}
		}
	}
	return Field{}
}

// Has reports whether any candidate is present in the header
func (r *FieldResolver) Has(candidates ...string) bool {
	return r.Field(candidates...).found
}

// Found reports whether the field resolved to a column
func (f Field) Found() bool {
	return f.found
}

// String returns the trimmed cell value, empty when the column is absent
func (f Field) String(row models.SheetRow) string {
	if !f.found {
		return ""
	}
	return strings.TrimSpace(row[f.column])
}

// Float returns the cell parsed leniently as a number, 0 when absent or unparseable
func (f Field) Float(row models.SheetRow) float64 {
	v, _ := ParseNumber(f.String(row))
	return v
}

// FloatPtr returns nil when the cell is blank or unparseable
func (f Field) FloatPtr(row models.SheetRow) *float64 {
	v, ok := ParseNumber(f.String(row))
	if !ok {
		return nil
	}
	return &v
}

// Bool returns the cell parsed with ParseBool, def when blank
func (f Field) Bool(row models.SheetRow, def bool) bool {
	raw := f.String(row)
	if raw == "" {
		return def
	}
	return ParseBool(raw)
}

func normalizeColumn(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseNumber parses amounts such as "$1,234.50", "15", "43.5%" and "(7.50)".
// ok is false for blank or unparseable input.
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r), r == '.', r == '-', r == '+', r == 'e', r == 'E':
			b.WriteRune(r)
		case r == ',', r == '%', unicode.IsSpace(r), unicode.Is(unicode.Sc, r):
			// formatting
		default:
			return 0, false
		}
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return 0, false
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), true
}

// ParseBool accepts yes, true, 1, y, active and x in any case
func ParseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "1", "y", "active", "x":
		return true
	default:
		return false
	}
}

// FormatNumber renders a number without trailing zeros
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var (
	attendanceCustomerColumns    = []string{"Customer Name", "Customer", "Client Name", "Client", "Name", "Full Name"}
	attendanceEventColumns       = []string{"Event Starts At", "Event Start", "Starts At", "Start Time", "Event Date", "Date"}
	attendanceMembershipColumns  = []string{"Membership Name", "Membership", "Pass Name", "Pass", "Package"}
	attendanceOfferingColumns    = []string{"Offering Type Name", "Offering Type", "Offering", "Class Type", "Class Name", "Class"}
	attendanceInstructorsColumns = []string{"Instructors", "Instructor", "Coach", "Coaches"}
	attendanceStatusColumns      = []string{"Status", "Attendance Status", "Check In Status"}

	paymentDateColumns     = []string{"Date", "Payment Date", "Transaction Date", "Paid At"}
	paymentCustomerColumns = []string{"Customer Name", "Customer", "Client Name", "Client", "Name"}
	paymentMemoColumns     = []string{"Memo", "Description", "Item", "Product", "Notes"}
	paymentAmountColumns   = []string{"Amount", "Total", "Net Amount", "Price"}
	paymentInvoiceColumns  = []string{"Invoice #", "Invoice", "Invoice Number", "Invoice No", "Reference"}
	paymentCategoryColumns = []string{"Category"}
	paymentVerifiedColumns = []string{"Verified", "Is Verified"}

	ruleNameColumns          = []string{"rule_name", "Rule Name", "Rule"}
	rulePackageColumns       = []string{"package_name", "Package Name", "Package"}
	ruleSessionTypeColumns   = []string{"session_type", "Session Type", "Type", "Category"}
	rulePackagePriceColumns  = []string{"package_price", "Package Price", "Price"}
	ruleUnitPriceColumns     = []string{"unit_price", "Unit Price", "Session Price", "Price Per Session"}
	ruleCoachColumns         = []string{"coach_percentage", "Coach %", "Coach Percentage", "Coach"}
	ruleBGMColumns           = []string{"bgm_percentage", "BGM %", "BGM Percentage", "BGM"}
	ruleManagementColumns    = []string{"management_percentage", "Management %", "Management Percentage", "Management"}
	ruleMFCColumns           = []string{"mfc_percentage", "MFC %", "MFC Percentage", "MFC"}
	ruleAttendanceAliasCols  = []string{"attendance_alias", "Attendance Alias"}
	rulePaymentMemoAliasCols = []string{"payment_memo_alias", "Payment Memo Alias", "Memo Alias"}

	discountNameColumns    = []string{"name", "Discount Name", "Discount"}
	discountCodeColumns    = []string{"discount_code", "Discount Code", "Code"}
	discountMatchColumns   = []string{"match_type", "Match Type", "Match"}
	discountPercentColumns = []string{"applicable_percentage", "Applicable Percentage", "Discount %", "Percentage", "Percent"}
	discountPayTypeColumns = []string{"coach_payment_type", "Coach Payment Type", "Payment Type"}
	discountActiveColumns  = []string{"active", "Active", "Enabled", "Is Active"}
)

// Canonical column names written back for rule aliases
const (
	AttendanceAliasColumn  = "attendance_alias"
	PaymentMemoAliasColumn = "payment_memo_alias"
)

// ParseAttendance converts an attendance sheet into typed records using utils.DefaultTimeParser
func ParseAttendance(sheet *models.Sheet) []models.AttendanceRecord {
	return ParseAttendanceWith(sheet, utils.DefaultTimeParser)
}

// ParseAttendanceWith converts an attendance sheet, reading event times with times
func ParseAttendanceWith(sheet *models.Sheet, times utils.TimeParser) []models.AttendanceRecord {
	if sheet == nil {
		return nil
	}
	r := NewFieldResolver(sheet.Header, sheet.Rows)
	customer := r.Field(attendanceCustomerColumns...)
	event := r.Field(attendanceEventColumns...)
	membership := r.Field(attendanceMembershipColumns...)
	offering := r.Field(attendanceOfferingColumns...)
	instructors := r.Field(attendanceInstructorsColumns...)
	status := r.Field(attendanceStatusColumns...)

	out := make([]models.AttendanceRecord, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rec := models.AttendanceRecord{
			CustomerName:   customer.String(row),
			EventStartsAt:  event.String(row),
			MembershipName: membership.String(row),
			OfferingType:   offering.String(row),
			Instructors:    instructors.String(row),
			Status:         status.String(row),
		}
		rec.EventTime = times.ParsePtr(rec.EventStartsAt)
		out = append(out, rec)
	}
	return out
}

// ParsePayments converts a payments sheet into typed records using utils.DefaultTimeParser
func ParsePayments(sheet *models.Sheet) []models.PaymentRecord {
	return ParsePaymentsWith(sheet, utils.DefaultTimeParser)
}

// ParsePaymentsWith converts a payments sheet, reading payment dates with times
func ParsePaymentsWith(sheet *models.Sheet, times utils.TimeParser) []models.PaymentRecord {
	if sheet == nil {
		return nil
	}
	r := NewFieldResolver(sheet.Header, sheet.Rows)
	date := r.Field(paymentDateColumns...)
	customer := r.Field(paymentCustomerColumns...)
	memo := r.Field(paymentMemoColumns...)
	amount := r.Field(paymentAmountColumns...)
	invoice := r.Field(paymentInvoiceColumns...)
	category := r.Field(paymentCategoryColumns...)
	verified := r.Field(paymentVerifiedColumns...)

	out := make([]models.PaymentRecord, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rec := models.PaymentRecord{
			Date:          date.String(row),
			CustomerName:  customer.String(row),
			Memo:          memo.String(row),
			Amount:        amount.Float(row),
			InvoiceNumber: invoice.String(row),
			Category:      category.String(row),
			Verified:      verified.Bool(row, false),
		}
		rec.PaidAt = times.ParsePtr(rec.Date)
		out = append(out, rec)
	}
	return out
}

// RuleTable is a parsed rule sheet together with its source rows
type RuleTable struct {
	Rules []models.PricingRule
	Sheet *models.Sheet
	// MissingAliases is set when the sheet has neither alias column
	MissingAliases bool
}

// ParseRules converts a rule sheet into typed rules. Session types are kept as written.
func ParseRules(sheet *models.Sheet) *RuleTable {
	table := &RuleTable{Sheet: sheet}
	if sheet == nil {
		return table
	}
	r := NewFieldResolver(sheet.Header, sheet.Rows)
	name := r.Field(ruleNameColumns...)
	pkg := r.Field(rulePackageColumns...)
	sessionType := r.Field(ruleSessionTypeColumns...)
	packagePrice := r.Field(rulePackagePriceColumns...)
	unitPrice := r.Field(ruleUnitPriceColumns...)
	coach := r.Field(ruleCoachColumns...)
	bgm := r.Field(ruleBGMColumns...)
	management := r.Field(ruleManagementColumns...)
	mfc := r.Field(ruleMFCColumns...)
	attendanceAlias := r.Field(ruleAttendanceAliasCols...)
	paymentAlias := r.Field(rulePaymentMemoAliasCols...)

	table.MissingAliases = !attendanceAlias.Found() && !paymentAlias.Found()
	table.Rules = make([]models.PricingRule, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		table.Rules = append(table.Rules, models.PricingRule{
			RuleName:             name.String(row),
			PackageName:          pkg.String(row),
			SessionType:          models.SessionCategory(sessionType.String(row)),
			PackagePrice:         packagePrice.Float(row),
			UnitPrice:            unitPrice.FloatPtr(row),
			CoachPercentage:      coach.Float(row),
			BGMPercentage:        bgm.Float(row),
			ManagementPercentage: management.Float(row),
			MFCPercentage:        mfc.Float(row),
			AttendanceAlias:      attendanceAlias.String(row),
			PaymentMemoAlias:     paymentAlias.String(row),
		})
	}
	return table
}

// BackfilledRuleSheet returns the rule sheet extended with both alias columns set to the package name
func BackfilledRuleSheet(sheet *models.Sheet) ([]string, []models.SheetRow) {
	header := slices.Clone(sheet.Header)
	if len(header) == 0 {
		header = resolveHeader(nil, sheet.Rows)
	}
	header = append(header, AttendanceAliasColumn, PaymentMemoAliasColumn)

	pkg := NewFieldResolver(sheet.Header, sheet.Rows).Field(rulePackageColumns...)
	rows := make([]models.SheetRow, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		extended := make(models.SheetRow, len(row)+2)
		for k, v := range row {
			extended[k] = v
		}
		extended[AttendanceAliasColumn] = pkg.String(row)
		extended[PaymentMemoAliasColumn] = pkg.String(row)
		rows = append(rows, extended)
	}
	return header, rows
}

// ParseDiscounts converts a discount sheet into typed discounts.
// Blank match types read as contains, blank payment types as partial and blank active flags as active.
func ParseDiscounts(sheet *models.Sheet) []models.Discount {
	if sheet == nil {
		return nil
	}
	r := NewFieldResolver(sheet.Header, sheet.Rows)
	name := r.Field(discountNameColumns...)
	code := r.Field(discountCodeColumns...)
	match := r.Field(discountMatchColumns...)
	percent := r.Field(discountPercentColumns...)
	payType := r.Field(discountPayTypeColumns...)
	active := r.Field(discountActiveColumns...)

	out := make([]models.Discount, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		out = append(out, models.Discount{
			Name:                 name.String(row),
			Code:                 code.String(row),
			MatchType:            parseMatchType(match.String(row)),
			ApplicablePercentage: percent.Float(row),
			CoachPaymentType:     parseCoachPaymentType(payType.String(row)),
			Active:               active.Bool(row, true),
		})
	}
	return out
}

func parseMatchType(raw string) models.DiscountMatchType {
	switch models.DiscountMatchType(strings.ToLower(strings.TrimSpace(raw))) {
	case models.DiscountMatchExact:
		return models.DiscountMatchExact
	case models.DiscountMatchRegex:
		return models.DiscountMatchRegex
	default:
		return models.DiscountMatchContains
	}
}

func parseCoachPaymentType(raw string) models.CoachPaymentType {
	switch models.CoachPaymentType(strings.ToLower(strings.TrimSpace(raw))) {
	case models.CoachPaymentFull:
		return models.CoachPaymentFull
	case models.CoachPaymentFree:
		return models.CoachPaymentFree
	default:
		return models.CoachPaymentPartial
	}
}
