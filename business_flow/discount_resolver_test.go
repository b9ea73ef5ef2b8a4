package businessflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/Yata-no-Kagami/models"
)

func sampleDiscounts() []models.Discount {
	return []models.Discount{
		{Name: "Expired", Code: "summer", MatchType: models.DiscountMatchContains, ApplicablePercentage: 30, CoachPaymentType: models.CoachPaymentPartial, Active: false},
		{Name: "Sibling", Code: "sibling", MatchType: models.DiscountMatchContains, ApplicablePercentage: 20, CoachPaymentType: models.CoachPaymentPartial, Active: true},
		{Name: "Staff", Code: "STAFF", MatchType: models.DiscountMatchExact, ApplicablePercentage: 100, CoachPaymentType: models.CoachPaymentFree, Active: true},
		{Name: "Generic", Code: "discount", MatchType: models.DiscountMatchContains, ApplicablePercentage: 50, CoachPaymentType: models.CoachPaymentPartial, Active: true},
	}
}

func TestFindApplicableDiscount(t *testing.T) {
	discounts := sampleDiscounts()

	tests := []struct {
		name   string
		memo   string
		amount float64
		want   string
	}{
		{"code in memo", "Junior Single SIBLING", 12, "Sibling"},
		{"inactive code ignored", "summer pass", 15, ""},
		{"generic keyword", "Junior Single discount applied", 7.5, "Generic"},
		{"negative amount falls back to generic", "Refund", -7.5, "Generic"},
		{"plain payment", "Junior Single - Pay As You Go", 15, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &models.PaymentRecord{Memo: tt.memo, Amount: tt.amount}
			d := FindApplicableDiscount(p, discounts)
			if tt.want == "" {
				assert.Nil(t, d)
				return
			}
			require.NotNil(t, d)
			assert.Equal(t, tt.want, d.Name)
		})
	}

	assert.Nil(t, FindApplicableDiscount(nil, discounts))
}

func TestFindApplicableDiscountWithoutGeneric(t *testing.T) {
	discounts := []models.Discount{{Name: "Sibling", Code: "sibling", Active: true}}
	assert.Nil(t, FindApplicableDiscount(&models.PaymentRecord{Memo: "discount", Amount: 7.5}, discounts))
}

func TestFindInvoiceDiscounts(t *testing.T) {
	discounts := append(sampleDiscounts(),
		models.Discount{Name: "Promo", Code: `promo-\d+`, MatchType: models.DiscountMatchRegex, ApplicablePercentage: 25, Active: true},
		models.Discount{Name: "Broken", Code: `([`, MatchType: models.DiscountMatchRegex, ApplicablePercentage: 90, Active: true},
	)
	payments := []models.PaymentRecord{
		{InvoiceNumber: "INV-1", Memo: "10 pack sibling"},
		{InvoiceNumber: "INV-2", Memo: "staff"},
		{InvoiceNumber: "INV-3", Memo: "sibling discount"},
		{InvoiceNumber: "INV-4", Memo: "PROMO-2024"},
		{InvoiceNumber: "INV-5", Memo: "staff member sibling"},
		{InvoiceNumber: "", Memo: "discount"},
		{InvoiceNumber: "INV-6", Memo: "summer"},
		{InvoiceNumber: "INV-7", Memo: "([ literal"},
	}

	got := FindInvoiceDiscounts(payments, discounts)

	require.Len(t, got, 5)
	assert.Equal(t, "Sibling", got["INV-1"].Name)
	assert.Equal(t, "Staff", got["INV-2"].Name, "exact match ignores case")
	assert.Equal(t, "Generic", got["INV-3"].Name, "highest percentage wins")
	assert.Equal(t, "Promo", got["INV-4"].Name)
	assert.Equal(t, "Sibling", got["INV-5"].Name, "exact match needs the whole memo")
	assert.NotContains(t, got, "INV-6")
	assert.NotContains(t, got, "INV-7")
}
