package dto

import "github.com/amirphl/Yata-no-Kagami/models"

// RunReconciliationRequest triggers one reconciliation run
type RunReconciliationRequest struct {
	FromDate      string `json:"from_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ToDate        string `json:"to_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ForceReverify bool   `json:"force_reverify"`
	ClearExisting bool   `json:"clear_existing"`
}

// UpdateVerificationRequest flips the verification status of one ledger row
type UpdateVerificationRequest struct {
	VerificationStatus string `json:"verification_status" validate:"required,oneof='Verified' 'Not Verified'"`
}

// LedgerSummary aggregates verification counts over the ledger
type LedgerSummary struct {
	TotalRows        int     `json:"total_rows"`
	VerifiedRows     int     `json:"verified_rows"`
	UnverifiedRows   int     `json:"unverified_rows"`
	VerificationRate float64 `json:"verification_rate"`
}

// ReconciliationResult reports what one run did
type ReconciliationResult struct {
	RunID           string        `json:"run_id"`
	AttendanceRead  int           `json:"attendance_read"`
	PaymentsRead    int           `json:"payments_read"`
	InWindow        int           `json:"in_window"`
	Processed       int           `json:"processed"`
	Skipped         int           `json:"skipped"`
	Added           int           `json:"added"`
	Updated         int           `json:"updated"`
	Persisted       bool          `json:"persisted"`
	RulesBackfilled bool          `json:"rules_backfilled"`
	Summary         LedgerSummary `json:"summary"`
	DurationMillis  int64         `json:"duration_ms"`
}

// LedgerResponse wraps the ledger rows
type LedgerResponse struct {
	Rows    []models.MasterRow `json:"rows"`
	Summary LedgerSummary      `json:"summary"`
}
