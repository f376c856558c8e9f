package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Alert delivery outcomes stored on model.AlertRecord.
const (
	OutcomePending    = "pending"
	OutcomeAllSent    = "all_sent"
	OutcomePartial    = "partial"
	OutcomeAllFailed  = "all_failed"
	OutcomeRejected   = "rejected"
	OutcomeNoContacts = "no_contacts"
	OutcomeFallback   = "fallback"
)

// AlertOutcome is the result written back onto an alert record once
// delivery has concluded.
type AlertOutcome struct {
	Outcome        string
	SentCount      int
	FailedCount    int
	FailedContacts []string
	Message        string
}
