package models

// DiscountMatchType controls how a discount code is compared with a payment memo
type DiscountMatchType string

const (
	DiscountMatchExact    DiscountMatchType = "exact"
	DiscountMatchContains DiscountMatchType = "contains"
	DiscountMatchRegex    DiscountMatchType = "regex"
)

// CoachPaymentType says how a discount affects the session price the coach is paid on
type CoachPaymentType string

const (
	CoachPaymentFull    CoachPaymentType = "full"
	CoachPaymentPartial CoachPaymentType = "partial"
	CoachPaymentFree    CoachPaymentType = "free"
)

// Discount is a named promotional rule detected from payment memos
type Discount struct {
	Name                 string            `json:"name"`
	Code                 string            `json:"discount_code"`
	MatchType            DiscountMatchType `json:"match_type"`
	ApplicablePercentage float64           `json:"applicable_percentage"`
	CoachPaymentType     CoachPaymentType  `json:"coach_payment_type"`
	Active               bool              `json:"active"`
}

// DisplayName returns the name shown on ledger rows, falling back to the code
func (d Discount) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Code
}
