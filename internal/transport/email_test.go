package transport

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ggz/smsbridge/internal/domain"
)

func TestNewEmailTransportValidation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		settings domain.EmailSettings
	}{
		{
			name:     "missing host",
			settings: domain.EmailSettings{Port: "465", Recipient: "a@b.com"},
		},
		{
			name:     "missing recipient",
			settings: domain.EmailSettings{Host: "smtp.example.com", Port: "465"},
		},
		{
			name:     "malformed port",
			settings: domain.EmailSettings{Host: "smtp.example.com", Port: "not-a-port", Recipient: "a@b.com"},
		},
		{
			name:     "port out of range",
			settings: domain.EmailSettings{Host: "smtp.example.com", Port: "70000", Recipient: "a@b.com"},
		},
		{
			name:     "malformed sender address",
			settings: domain.EmailSettings{Host: "smtp.example.com", Port: "587", Username: "no-at-sign", Recipient: "a@b.com"},
		},
		{
			name:     "malformed recipient address",
			settings: domain.EmailSettings{Host: "smtp.example.com", Port: "587", Recipient: "not an address"},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewEmailTransport(tc.settings)
			if !errors.Is(err, domain.ErrConfig) {
				t.Fatalf("error = %v, want config error", err)
			}
		})
	}
}

func TestEmailTransportBuildMessage(t *testing.T) {
	t.Parallel()

	transport, err := NewEmailTransport(domain.EmailSettings{
		Host:      "smtp.example.com",
		Port:      "465",
		SSL:       true,
		Username:  "sender@example.com",
		Password:  "secret",
		Recipient: "codes@example.com",
	})
	if err != nil {
		t.Fatalf("NewEmailTransport() error = %v", err)
	}
	if transport.Kind() != domain.TransportEmail {
		t.Fatalf("Kind() = %s, want EMAIL", transport.Kind())
	}

	msg, err := transport.buildMessage("654321")
	if err != nil {
		t.Fatalf("buildMessage() error = %v", err)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	rendered := buf.String()
	lowered := strings.ToLower(rendered)

	if !strings.Contains(rendered, "From: <sender@example.com>") &&
		!strings.Contains(rendered, "From: sender@example.com") {
		t.Fatalf("message missing From header:\n%s", rendered)
	}
	if !strings.Contains(rendered, "codes@example.com") {
		t.Fatalf("message missing recipient:\n%s", rendered)
	}
	// Non-ASCII subject must be RFC 2047 encoded.
	if !strings.Contains(lowered, "subject: =?utf-8?") {
		t.Fatalf("subject not RFC 2047 encoded:\n%s", rendered)
	}
	if !strings.Contains(lowered, "content-type: text/html; charset=utf-8") {
		t.Fatalf("message missing content type:\n%s", rendered)
	}
	if !strings.Contains(rendered, "654321") {
		t.Fatalf("payload not in message body:\n%s", rendered)
	}
}

func TestEmailTransportSenderFallsBackToRecipient(t *testing.T) {
	t.Parallel()

	transport, err := NewEmailTransport(domain.EmailSettings{
		Host:      "smtp.example.com",
		Port:      "25",
		Recipient: "codes@example.com",
	})
	if err != nil {
		t.Fatalf("NewEmailTransport() error = %v", err)
	}
	if transport.sender != "codes@example.com" {
		t.Fatalf("sender = %q, want recipient fallback", transport.sender)
	}
}

func TestNewSelectsTransport(t *testing.T) {
	t.Parallel()

	httpSettings := domain.Settings{
		Transport:  domain.TransportHTTP,
		WebhookURL: "https://example.com/hook",
	}
	transport, err := New(httpSettings)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if transport.Kind() != domain.TransportHTTP {
		t.Fatalf("Kind() = %s, want HTTP", transport.Kind())
	}

	emailSettings := domain.Settings{
		Transport: domain.TransportEmail,
		Email: domain.EmailSettings{
			Host:      "smtp.example.com",
			Port:      "587",
			Recipient: "codes@example.com",
		},
	}
	transport, err = New(emailSettings)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if transport.Kind() != domain.TransportEmail {
		t.Fatalf("Kind() = %s, want EMAIL", transport.Kind())
	}

	if _, err := New(domain.Settings{Transport: domain.TransportNone}); !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("error = %v, want config error for NONE transport", err)
	}
}
