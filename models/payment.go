package models

import "time"

// PaymentRecord is one financial transaction from the payments export
type PaymentRecord struct {
	Date          string  `json:"date"`
	CustomerName  string  `json:"customer_name"`
	Memo          string  `json:"memo"`
	Amount        float64 `json:"amount"`
	InvoiceNumber string  `json:"invoice_number"`
	Category      string  `json:"category,omitempty"`
	Verified      bool    `json:"verified,omitempty"`

	// PaidAt is nil when Date could not be parsed
	PaidAt *time.Time `json:"-"`
}

// HasDate reports whether the transaction date parsed
func (p PaymentRecord) HasDate() bool {
	return p.PaidAt != nil
}
