package businessflow

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/Yata-no-Kagami/app/dto"
	"github.com/amirphl/Yata-no-Kagami/models"
	"github.com/amirphl/Yata-no-Kagami/utils"
)

var nonAlphanumericRun = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// BuildUniqueKey derives the ledger key of an attendance from its timestamp,
// customer, membership and instructors. Runs of other characters become "_".
func BuildUniqueKey(att models.AttendanceRecord) string {
	raw := strings.Join([]string{att.EventStartsAt, att.CustomerName, att.MembershipName, att.Instructors}, "_")
	return strings.Trim(nonAlphanumericRun.ReplaceAllString(raw, "_"), "_")
}

// FilterAttendance keeps records whose event falls in [from, to] by calendar day.
// Records without a parsed time are dropped.
func FilterAttendance(records []models.AttendanceRecord, from, to *time.Time) []models.AttendanceRecord {
	out := make([]models.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if r.HasEventTime() && utils.WithinDays(*r.EventTime, from, to) {
			out = append(out, r)
		}
	}
	return out
}

// FilterPayments keeps payments dated in [from, to] by calendar day.
// Payments without a parsed date are dropped.
func FilterPayments(payments []models.PaymentRecord, from, to *time.Time) []models.PaymentRecord {
	out := make([]models.PaymentRecord, 0, len(payments))
	for _, p := range payments {
		if p.HasDate() && utils.WithinDays(*p.PaidAt, from, to) {
			out = append(out, p)
		}
	}
	return out
}

// BuildMasterRow reconciles one attendance against the payments, rules and discounts of a run
func BuildMasterRow(att models.AttendanceRecord, payments []models.PaymentRecord, rules []models.PricingRule, discounts []models.Discount) models.MasterRow {
	category := ClassifySessionType(att.OfferingType)
	payment := FindMatchingPayment(att, payments, rules)
	rule := FindMatchingRule(att.MembershipName, category, rules)

	var discount *models.Discount
	if payment != nil {
		discount = FindApplicableDiscount(payment, discounts)
	}

	sessionPrice := BaseSessionPrice(rule, payment)
	discounted := RoundMoney(CalculateDiscountedSessionPrice(sessionPrice, rule, discount))
	split := CalculateAmounts(discounted, rule, category)

	row := models.MasterRow{
		UniqueKey:              BuildUniqueKey(att),
		CustomerName:           att.CustomerName,
		EventStartsAt:          att.EventStartsAt,
		MembershipName:         att.MembershipName,
		OfferingType:           att.OfferingType,
		Instructors:            att.Instructors,
		Status:                 att.Status,
		SessionType:            string(category),
		VerificationStatus:     models.VerificationStatusNotVerified,
		SessionPrice:           sessionPrice,
		DiscountedSessionPrice: discounted,
		CoachAmount:            split.Coach,
		BGMAmount:              split.BGM,
		ManagementAmount:       split.Management,
		MFCAmount:              split.MFC,
	}
	if rule != nil {
		row.RuleName = rule.RuleName
		if row.RuleName == "" {
			row.RuleName = rule.PackageName
		}
		row.PackagePrice = rule.PackagePrice
	}
	if payment != nil {
		row.VerificationStatus = models.VerificationStatusVerified
		row.InvoiceNumber = payment.InvoiceNumber
		row.PaymentDate = payment.Date
		row.Amount = payment.Amount
	}
	if discount != nil {
		row.DiscountName = discount.DisplayName()
		row.DiscountPercentage = discount.ApplicablePercentage
	}
	return row
}

// MergeRows returns existing with processed rows replacing those of the same key.
// Existing order is kept and new keys are appended in processing order.
func MergeRows(existing, processed []models.MasterRow) []models.MasterRow {
	out := slices.Clone(existing)
	if out == nil {
		out = make([]models.MasterRow, 0, len(processed))
	}
	index := make(map[string]int, len(out))
	for i, r := range out {
		index[r.UniqueKey] = i
	}
	for _, r := range processed {
		if i, ok := index[r.UniqueKey]; ok {
			out[i] = r
			continue
		}
		index[r.UniqueKey] = len(out)
		out = append(out, r)
	}
	return out
}

// ApplyInvoiceDiscounts sets the discount of every row whose invoice matches a discounted payment.
// The discounted price and splits are derived from the undiscounted session price,
// so applying it again yields the same rows. PackagePrice and SessionPrice are untouched.
func ApplyInvoiceDiscounts(rows []models.MasterRow, payments []models.PaymentRecord, discounts []models.Discount, rules []models.PricingRule) []models.MasterRow {
	out := slices.Clone(rows)
	byInvoice := FindInvoiceDiscounts(payments, discounts)
	if len(byInvoice) == 0 {
		return out
	}
	for i := range out {
		invoice := strings.TrimSpace(out[i].InvoiceNumber)
		if invoice == "" {
			continue
		}
		d, ok := byInvoice[invoice]
		if !ok {
			continue
		}
		category := ClassifySessionType(out[i].OfferingType)
		rule := FindMatchingRule(out[i].MembershipName, category, rules)
		discounted := invoiceDiscountedPrice(out[i].SessionPrice, d)
		split := CalculateAmounts(discounted, rule, category)

		out[i].DiscountName = d.DisplayName()
		out[i].DiscountPercentage = d.ApplicablePercentage
		out[i].DiscountedSessionPrice = discounted
		out[i].CoachAmount = split.Coach
		out[i].BGMAmount = split.BGM
		out[i].ManagementAmount = split.Management
		out[i].MFCAmount = split.MFC
	}
	return out
}

// invoiceDiscountedPrice keeps free sessions at zero and scales every other type by the percentage
func invoiceDiscountedPrice(sessionPrice float64, d models.Discount) float64 {
	if d.CoachPaymentType == models.CoachPaymentFree {
		return 0
	}
	return ApplyPercentageDiscount(sessionPrice, d.ApplicablePercentage)
}

// Summarize counts verified rows. The rate is a percentage rounded to cents, 0 for an empty ledger.
func Summarize(rows []models.MasterRow) dto.LedgerSummary {
	summary := dto.LedgerSummary{TotalRows: len(rows)}
	for _, r := range rows {
		if r.IsVerified() {
			summary.VerifiedRows++
		}
	}
	summary.UnverifiedRows = summary.TotalRows - summary.VerifiedRows
	if summary.TotalRows > 0 {
		summary.VerificationRate = RoundMoney(float64(summary.VerifiedRows) / float64(summary.TotalRows) * 100)
	}
	return summary
}

// RunInputs are the typed inputs of one run, already filtered to its window
type RunInputs struct {
	Attendance []models.AttendanceRecord
	Payments   []models.PaymentRecord
	Rules      []models.PricingRule
	Discounts  []models.Discount
}

// RunOutcome is the ledger produced by one run
type RunOutcome struct {
	Rows      []models.MasterRow
	Processed int
	Skipped   int
	Added     int
	Updated   int
	Changed   bool
}

// ReconcileLedger runs the matching, merge and invoice discount steps over an existing ledger.
// It does not modify its arguments.
func ReconcileLedger(existing []models.MasterRow, in RunInputs, forceReverify bool) RunOutcome {
	known := make(map[string]models.MasterRow, len(existing))
	for _, r := range existing {
		known[r.UniqueKey] = r
	}

	var outcome RunOutcome
	processed := make([]models.MasterRow, 0, len(in.Attendance))
	for _, att := range in.Attendance {
		key := BuildUniqueKey(att)
		if _, exists := known[key]; exists && !forceReverify {
			outcome.Skipped++
			continue
		}
		processed = append(processed, BuildMasterRow(att, in.Payments, in.Rules, in.Discounts))
		outcome.Processed++
	}

	merged := MergeRows(existing, processed)
	outcome.Rows = ApplyInvoiceDiscounts(merged, in.Payments, in.Discounts, in.Rules)

	for _, r := range outcome.Rows {
		previous, exists := known[r.UniqueKey]
		switch {
		case !exists:
			outcome.Added++
		case previous != r:
			outcome.Updated++
		}
	}
	outcome.Changed = outcome.Added > 0 || outcome.Updated > 0 || len(outcome.Rows) != len(existing)
	return outcome
}
