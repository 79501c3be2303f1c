// Package transport delivers extracted code payloads to the configured
// remote recipient. A transport performs exactly one send attempt; retry
// policy belongs to the dispatch layer.
package transport

import (
	"context"
	"fmt"

	"github.com/ggz/smsbridge/internal/domain"
)

// Transport is the outbound delivery port.
type Transport interface {
	Kind() domain.TransportKind
	Send(ctx context.Context, payload string) error
}

// New selects and builds the transport for one configuration snapshot. The
// choice is made once per event; the returned transport carries its
// destination and credentials and is not shared across snapshots.
func New(settings domain.Settings) (Transport, error) {
	switch settings.Transport {
	case domain.TransportEmail:
		return NewEmailTransport(settings.Email)
	case domain.TransportHTTP:
		return NewWebhookTransport(settings.WebhookURL)
	default:
		return nil, fmt.Errorf("%w: no transport configured (%q)", domain.ErrConfig, settings.Transport)
	}
}
