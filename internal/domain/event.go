package domain

import (
	"fmt"
	"strings"
	"time"
)

// Event is one inbound short text message. Immutable once created;
// ObservedAt (unix milliseconds) is the event's unique identity and the
// primary key of its attempt record.
type Event struct {
	Sender     string
	Body       string
	ObservedAt int64
}

func NewEvent(sender, body string, observedAt int64) Event {
	if observedAt == 0 {
		observedAt = time.Now().UnixMilli()
	}
	return Event{
		Sender:     sender,
		Body:       body,
		ObservedAt: observedAt,
	}
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Errorf("%w: message body is required", ErrValidation)
	}
	if e.ObservedAt <= 0 {
		return fmt.Errorf("%w: observedAt must be positive", ErrValidation)
	}
	return nil
}

// ObservedTime returns the arrival timestamp as a time.Time.
func (e Event) ObservedTime() time.Time {
	return time.UnixMilli(e.ObservedAt)
}
