package models

const (
	VerificationStatusVerified    = "Verified"
	VerificationStatusNotVerified = "Not Verified"
)

// MasterRow is one reconciled ledger row keyed by the attendance unique key.
// PackagePrice and SessionPrice are never scaled by a discount.
type MasterRow struct {
	UniqueKey      string `json:"unique_key"`
	CustomerName   string `json:"customer_name"`
	EventStartsAt  string `json:"event_starts_at"`
	MembershipName string `json:"membership_name"`
	OfferingType   string `json:"offering_type"`
	Instructors    string `json:"instructors"`
	Status         string `json:"status"`
	SessionType    string `json:"session_type"`
	RuleName       string `json:"rule_name"`

	InvoiceNumber      string  `json:"invoice_number"`
	PaymentDate        string  `json:"payment_date"`
	Amount             float64 `json:"amount"`
	VerificationStatus string  `json:"verification_status"`

	DiscountName       string  `json:"discount_name"`
	DiscountPercentage float64 `json:"discount_percentage"`

	PackagePrice           float64 `json:"package_price"`
	SessionPrice           float64 `json:"session_price"`
	DiscountedSessionPrice float64 `json:"discounted_session_price"`

	CoachAmount      float64 `json:"coach_amount"`
	BGMAmount        float64 `json:"bgm_amount"`
	ManagementAmount float64 `json:"management_amount"`
	MFCAmount        float64 `json:"mfc_amount"`
}

// IsVerified reports whether a payment was matched to the row
func (m MasterRow) IsVerified() bool {
	return m.VerificationStatus == VerificationStatusVerified
}

// IsValidVerificationStatus reports whether s is one of the two ledger statuses
func IsValidVerificationStatus(s string) bool {
	return s == VerificationStatusVerified || s == VerificationStatusNotVerified
}
