package businessflow

import (
	"github.com/shopspring/decimal"

	"github.com/amirphl/Yata-no-Kagami/models"
)

// SplitPercentages holds the four revenue shares of a session, in percent
type SplitPercentages struct {
	Coach      float64
	BGM        float64
	Management float64
	MFC        float64
}

// RevenueSplit holds the four revenue amounts of a session, rounded to cents
type RevenueSplit struct {
	Coach      float64 `json:"coach_amount"`
	BGM        float64 `json:"bgm_amount"`
	Management float64 `json:"management_amount"`
	MFC        float64 `json:"mfc_amount"`
}

// Splits used when no pricing rule resolves
var (
	DefaultPrivateSplit = SplitPercentages{Coach: 80, BGM: 15, Management: 0, MFC: 5}
	DefaultGroupSplit   = SplitPercentages{Coach: 43.5, BGM: 30, Management: 8.5, MFC: 18}
)

// RoundMoney rounds to two decimal places, halves away from zero
func RoundMoney(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

// BaseSessionPrice is the rule unit price when positive, else the paid amount, else 0
func BaseSessionPrice(rule *models.PricingRule, payment *models.PaymentRecord) float64 {
	if rule != nil && rule.HasUnitPrice() {
		return *rule.UnitPrice
	}
	if payment != nil {
		return payment.Amount
	}
	return 0
}

// CalculateDiscountedSessionPrice applies a discount to a base session price.
// Free sessions cost nothing, full-payment discounts keep the base price and
// partial discounts scale it by the applicable percentage.
func CalculateDiscountedSessionPrice(base float64, rule *models.PricingRule, discount *models.Discount) float64 {
	if discount == nil {
		return base
	}
	switch discount.CoachPaymentType {
	case models.CoachPaymentFree:
		return 0
	case models.CoachPaymentFull:
		return base
	case models.CoachPaymentPartial:
		if discount.ApplicablePercentage > 0 {
			return ApplyPercentageDiscount(base, discount.ApplicablePercentage)
		}
	}
	return base
}

// ApplyPercentageDiscount returns price reduced by pct percent, rounded to cents
func ApplyPercentageDiscount(price, pct float64) float64 {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100)))
	return decimal.NewFromFloat(price).Mul(factor).Round(2).InexactFloat64()
}

// SplitFor returns the rule percentages, or the defaults of the category when rule is nil
func SplitFor(rule *models.PricingRule, category models.SessionCategory) SplitPercentages {
	if rule != nil {
		return SplitPercentages{
			Coach:      rule.CoachPercentage,
			BGM:        rule.BGMPercentage,
			Management: rule.ManagementPercentage,
			MFC:        rule.MFCPercentage,
		}
	}
	if category == models.SessionCategoryPrivate {
		return DefaultPrivateSplit
	}
	return DefaultGroupSplit
}

// CalculateAmounts splits a session price into coach, BGM, management and MFC amounts
func CalculateAmounts(sessionPrice float64, rule *models.PricingRule, category models.SessionCategory) RevenueSplit {
	pct := SplitFor(rule, category)
	return RevenueSplit{
		Coach:      percentOf(sessionPrice, pct.Coach),
		BGM:        percentOf(sessionPrice, pct.BGM),
		Management: percentOf(sessionPrice, pct.Management),
		MFC:        percentOf(sessionPrice, pct.MFC),
	}
}

func percentOf(price, pct float64) float64 {
	return decimal.NewFromFloat(price).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}
