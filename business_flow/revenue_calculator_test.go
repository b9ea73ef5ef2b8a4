package businessflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amirphl/Yata-no-Kagami/models"
	"github.com/amirphl/Yata-no-Kagami/utils"
)

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, 6.53, RoundMoney(6.525))
	assert.Equal(t, 1.28, RoundMoney(1.275))
	assert.Equal(t, 3.26, RoundMoney(3.2625))
	assert.Equal(t, -1.28, RoundMoney(-1.275))
	assert.Equal(t, 0.0, RoundMoney(0))
}

func TestCalculateAmounts(t *testing.T) {
	rule := &models.PricingRule{CoachPercentage: 43.5, BGMPercentage: 30, ManagementPercentage: 8.5, MFCPercentage: 18}

	t.Run("group rule on 15", func(t *testing.T) {
		split := CalculateAmounts(15, rule, models.SessionCategoryGroup)
		assert.Equal(t, RevenueSplit{Coach: 6.53, BGM: 4.5, Management: 1.28, MFC: 2.7}, split)
	})

	t.Run("discounted 7.5", func(t *testing.T) {
		split := CalculateAmounts(7.5, rule, models.SessionCategoryGroup)
		assert.Equal(t, 3.26, split.Coach)
	})

	t.Run("private default", func(t *testing.T) {
		split := CalculateAmounts(50, nil, models.SessionCategoryPrivate)
		assert.Equal(t, RevenueSplit{Coach: 40, BGM: 7.5, Management: 0, MFC: 2.5}, split)
	})

	t.Run("group default", func(t *testing.T) {
		split := CalculateAmounts(20, nil, models.SessionCategoryGroup)
		assert.Equal(t, RevenueSplit{Coach: 8.7, BGM: 6, Management: 1.7, MFC: 3.6}, split)
	})

	t.Run("zero price", func(t *testing.T) {
		assert.Equal(t, RevenueSplit{}, CalculateAmounts(0, rule, models.SessionCategoryGroup))
	})
}

func TestBaseSessionPrice(t *testing.T) {
	withUnit := &models.PricingRule{UnitPrice: utils.ToPtr(15.0)}
	zeroUnit := &models.PricingRule{UnitPrice: utils.ToPtr(0.0)}
	paid := &models.PaymentRecord{Amount: 12}

	assert.Equal(t, 15.0, BaseSessionPrice(withUnit, paid))
	assert.Equal(t, 12.0, BaseSessionPrice(zeroUnit, paid))
	assert.Equal(t, 12.0, BaseSessionPrice(&models.PricingRule{}, paid))
	assert.Equal(t, 12.0, BaseSessionPrice(nil, paid))
	assert.Equal(t, 0.0, BaseSessionPrice(nil, nil))
}

func TestCalculateDiscountedSessionPrice(t *testing.T) {
	tests := []struct {
		name     string
		discount *models.Discount
		want     float64
	}{
		{"no discount", nil, 15},
		{"partial half", &models.Discount{CoachPaymentType: models.CoachPaymentPartial, ApplicablePercentage: 50}, 7.5},
		{"partial without percentage", &models.Discount{CoachPaymentType: models.CoachPaymentPartial}, 15},
		{"full keeps price", &models.Discount{CoachPaymentType: models.CoachPaymentFull, ApplicablePercentage: 50}, 15},
		{"free", &models.Discount{CoachPaymentType: models.CoachPaymentFree, ApplicablePercentage: 50}, 0},
		{"odd percentage rounds", &models.Discount{CoachPaymentType: models.CoachPaymentPartial, ApplicablePercentage: 33}, 10.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateDiscountedSessionPrice(15, nil, tt.discount))
		})
	}
}

func TestApplyPercentageDiscount(t *testing.T) {
	assert.Equal(t, 7.5, ApplyPercentageDiscount(15, 50))
	assert.Equal(t, 15.0, ApplyPercentageDiscount(15, 0))
	assert.Equal(t, 0.0, ApplyPercentageDiscount(15, 100))
	assert.Equal(t, 8.33, ApplyPercentageDiscount(12.5, 33.33))
}
