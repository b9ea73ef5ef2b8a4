// Package businessflow contains the reconciliation engine and the matching, pricing and discount logic it runs
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Run errors
	ErrReconciliationFailed = errors.New("reconciliation failed")
	ErrLedgerWriteFailed    = errors.New("failed to write master ledger")
	ErrRunInProgress        = errors.New("a reconciliation run is already in progress")
	ErrInvalidDateRange     = errors.New("from date cannot be after to date")

	// Ledger errors
	ErrLedgerRowNotFound         = errors.New("ledger row not found")
	ErrInvalidVerificationStatus = errors.New("verification status must be Verified or Not Verified")
	ErrUniqueKeyRequired         = errors.New("unique key is required")
	ErrLedgerUnavailable         = errors.New("master ledger unavailable")
	ErrExportFailed              = errors.New("failed to export ledger")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsReconciliationFailed(err error) bool {
	return errors.Is(err, ErrReconciliationFailed)
}

func IsLedgerWriteFailed(err error) bool {
	return errors.Is(err, ErrLedgerWriteFailed)
}

func IsRunInProgress(err error) bool {
	return errors.Is(err, ErrRunInProgress)
}

func IsInvalidDateRange(err error) bool {
	return errors.Is(err, ErrInvalidDateRange)
}

func IsLedgerRowNotFound(err error) bool {
	return errors.Is(err, ErrLedgerRowNotFound)
}

func IsInvalidVerificationStatus(err error) bool {
	return errors.Is(err, ErrInvalidVerificationStatus)
}
