package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a forwarding attempt.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// TransportKind identifies the delivery mechanism used for an attempt.
type TransportKind string

const (
	TransportNone  TransportKind = "NONE"
	TransportEmail TransportKind = "EMAIL"
	TransportHTTP  TransportKind = "HTTP"
)

func (t TransportKind) String() string { return string(t) }

func (t TransportKind) IsValid() bool {
	switch t {
	case TransportNone, TransportEmail, TransportHTTP:
		return true
	}
	return false
}

func ParseTransportKindFromString(s string) (TransportKind, error) {
	tk := TransportKind(strings.ToUpper(strings.TrimSpace(s)))
	if !tk.IsValid() {
		return "", fmt.Errorf("%w: invalid transport %q", ErrValidation, s)
	}
	return tk, nil
}

// AttemptRecord is the durable row tracking one event's processing
// lifecycle. Keyed by the event's ObservedAt timestamp; updates go through
// an idempotent upsert, so repeated finalizations for the same event
// converge on a single row.
//
// Code is nil while extraction has not run. An extraction miss leaves Code
// nil, sets FailureReason, and finalizes the record as SUCCESS: the message
// was handled, there is just nothing to forward. That policy is deliberate.
type AttemptRecord struct {
	ObservedAt    int64         `gorm:"primaryKey;autoIncrement:false"`
	Sender        string        `gorm:"type:varchar(255);not null"`
	Body          string        `gorm:"type:text;not null"`
	Code          *string       `gorm:"type:varchar(255)"`
	Transport     TransportKind `gorm:"type:varchar(10);not null;default:NONE"`
	Status        Status        `gorm:"type:varchar(10);not null"`
	FailureReason *string       `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPendingRecord builds the provisional row written synchronously at
// acceptance, before any delivery work starts.
func NewPendingRecord(event Event) AttemptRecord {
	return AttemptRecord{
		ObservedAt: event.ObservedAt,
		Sender:     event.Sender,
		Body:       event.Body,
		Transport:  TransportNone,
		Status:     StatusPending,
	}
}

func (r *AttemptRecord) Validate() error {
	if r.ObservedAt <= 0 {
		return fmt.Errorf("%w: observedAt must be positive", ErrValidation)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, r.Status)
	}
	if !r.Transport.IsValid() {
		return fmt.Errorf("%w: invalid transport %q", ErrValidation, r.Transport)
	}
	return nil
}
