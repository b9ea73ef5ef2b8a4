// Package models contains domain entities for attendance, payments, pricing rules and the master ledger
package models

import "time"

// AttendanceRecord is one class check-in event from the attendance export
type AttendanceRecord struct {
	CustomerName   string `json:"customer_name"`
	EventStartsAt  string `json:"event_starts_at"`
	MembershipName string `json:"membership_name"`
	OfferingType   string `json:"offering_type"`
	// Instructors is the comma-joined instructor list as exported
	Instructors string `json:"instructors"`
	Status      string `json:"status"`

	// EventTime is nil when EventStartsAt could not be parsed
	EventTime *time.Time `json:"-"`
}

// HasEventTime reports whether the event timestamp parsed
func (a AttendanceRecord) HasEventTime() bool {
	return a.EventTime != nil
}
