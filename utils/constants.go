package utils

import (
	"time"
)

// Sheet names used when the configuration does not override them
const (
	DefaultAttendanceSheet = "attendance"
	DefaultPaymentsSheet   = "payments"
	DefaultRulesSheet      = "rules"
	DefaultDiscountsSheet  = "discounts"
	DefaultMasterSheet     = "master"
)

// Reconciliation run constants
const (
	// DefaultRunTimeout bounds a reconciliation triggered over HTTP
	DefaultRunTimeout = 2 * time.Minute

	// DefaultRunLockTTL is how long a run lock lives before redis expires it
	DefaultRunLockTTL = 10 * time.Minute

	// RunLockKey is the redis key guarding the master ledger
	RunLockKey = "reconciliation:run-lock"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400

	// AccessTokenTTL is the lifetime of tokens issued by the token service
	AccessTokenTTL = 24 * time.Hour
)
