package models

import "strings"

// SessionCategory classifies an offering as a group class or a private session
type SessionCategory string

const (
	SessionCategoryGroup   SessionCategory = "group"
	SessionCategoryPrivate SessionCategory = "private"
)

// PricingRule is one row of the pricing rule table
type PricingRule struct {
	RuleName     string          `json:"rule_name"`
	PackageName  string          `json:"package_name"`
	SessionType  SessionCategory `json:"session_type"`
	PackagePrice float64         `json:"package_price"`
	// UnitPrice is nil when the rule has no per-session price; nil is not zero
	UnitPrice *float64 `json:"unit_price,omitempty"`

	// Revenue split percentages, expected to sum to 100
	CoachPercentage      float64 `json:"coach_percentage"`
	BGMPercentage        float64 `json:"bgm_percentage"`
	ManagementPercentage float64 `json:"management_percentage"`
	MFCPercentage        float64 `json:"mfc_percentage"`

	AttendanceAlias  string `json:"attendance_alias"`
	PaymentMemoAlias string `json:"payment_memo_alias"`
}

// IsDefault reports whether this is the fallback rule of its session category
func (r PricingRule) IsDefault() bool {
	return strings.TrimSpace(r.PackageName) == ""
}

// HasUnitPrice reports whether the rule carries a positive per-session price
func (r PricingRule) HasUnitPrice() bool {
	return r.UnitPrice != nil && *r.UnitPrice > 0
}
