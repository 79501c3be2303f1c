package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// EmailSettings holds the SMTP endpoint for the email transport. Port is
// kept as a string the way it is entered; the transport parses it and
// surfaces a configuration error on the attempt record if it is malformed.
type EmailSettings struct {
	Host      string
	Port      string
	SSL       bool
	Username  string
	Password  string
	Recipient string
}

// Settings is the pipeline configuration consumed as an immutable snapshot.
// One snapshot is taken per inbound event; a snapshot is never mutated while
// a delivery is in flight.
type Settings struct {
	Listening    bool
	SenderFilter string
	CodePattern  string

	Transport  TransportKind
	Email      EmailSettings
	WebhookURL string

	EncryptionEnabled bool
	PublicKey         string

	NotifyOnNewCode bool
}

func (s Settings) Validate() error {
	if !s.Transport.IsValid() {
		return fmt.Errorf("%w: invalid transport %q", ErrValidation, s.Transport)
	}
	if strings.TrimSpace(s.CodePattern) != "" {
		re, err := regexp.Compile(s.CodePattern)
		if err != nil {
			return fmt.Errorf("%w: invalid code pattern: %v", ErrValidation, err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("%w: code pattern needs one capture group", ErrValidation)
		}
	}
	return nil
}

// MatchesSender reports whether an originating address passes the filter.
// An empty filter matches everything; otherwise plain case-sensitive
// substring containment, no address normalization.
func (s Settings) MatchesSender(sender string) bool {
	if s.SenderFilter == "" {
		return true
	}
	return strings.Contains(sender, s.SenderFilter)
}
