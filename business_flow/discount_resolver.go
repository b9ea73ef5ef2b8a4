package businessflow

import (
	"regexp"
	"strings"

	"github.com/amirphl/Yata-no-Kagami/models"
)

// genericDiscountCode is the code of the catch-all discount applied to memos mentioning a discount
const genericDiscountCode = "discount"

// FindApplicableDiscount returns the first active discount whose code appears in the payment memo.
// Failing that, a memo mentioning "discount" or a negative amount falls back to the discount coded "discount".
func FindApplicableDiscount(p *models.PaymentRecord, discounts []models.Discount) *models.Discount {
	if p == nil {
		return nil
	}
	memo := strings.ToLower(p.Memo)
	for _, d := range discounts {
		code := strings.ToLower(strings.TrimSpace(d.Code))
		if !d.Active || code == "" {
			continue
		}
		if strings.Contains(memo, code) {
			found := d
			return &found
		}
	}

	if !strings.Contains(memo, genericDiscountCode) && p.Amount >= 0 {
		return nil
	}
	for _, d := range discounts {
		if d.Active && strings.EqualFold(strings.TrimSpace(d.Code), genericDiscountCode) {
			found := d
			return &found
		}
	}
	return nil
}

// FindInvoiceDiscounts matches every payment with an invoice number against the active discounts.
// When several discounts match one invoice the highest percentage wins; the first one on ties.
func FindInvoiceDiscounts(payments []models.PaymentRecord, discounts []models.Discount) map[string]models.Discount {
	matchers := make([]discountMatcher, 0, len(discounts))
	for _, d := range discounts {
		if !d.Active || strings.TrimSpace(d.Code) == "" {
			continue
		}
		matchers = append(matchers, newDiscountMatcher(d))
	}

	result := make(map[string]models.Discount)
	for _, p := range payments {
		invoice := strings.TrimSpace(p.InvoiceNumber)
		if invoice == "" {
			continue
		}
		for _, m := range matchers {
			if !m.matches(p.Memo) {
				continue
			}
			current, seen := result[invoice]
			if !seen || m.discount.ApplicablePercentage > current.ApplicablePercentage {
				result[invoice] = m.discount
			}
		}
	}
	return result
}

type discountMatcher struct {
	discount models.Discount
	code     string
	pattern  *regexp.Regexp
}

func newDiscountMatcher(d models.Discount) discountMatcher {
	m := discountMatcher{discount: d, code: strings.ToLower(strings.TrimSpace(d.Code))}
	if d.MatchType == models.DiscountMatchRegex {
		// An invalid pattern leaves pattern nil and never matches
		if re, err := regexp.Compile("(?i)" + d.Code); err == nil {
			m.pattern = re
		}
	}
	return m
}

func (m discountMatcher) matches(memo string) bool {
	switch m.discount.MatchType {
	case models.DiscountMatchExact:
		return strings.EqualFold(strings.TrimSpace(memo), m.code)
	case models.DiscountMatchRegex:
		return m.pattern != nil && m.pattern.MatchString(memo)
	default:
		return strings.Contains(strings.ToLower(memo), m.code)
	}
}
