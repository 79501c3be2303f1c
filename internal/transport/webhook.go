package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ggz/smsbridge/internal/domain"
)

const defaultWebhookTimeout = 10 * time.Second

type webhookRequest struct {
	Code string `json:"code"`
}

// WebhookTransport posts the payload to a configured HTTP endpoint as
// {"code": "<payload>"}. Any status outside [200,299] is a send failure.
type WebhookTransport struct {
	client   *resty.Client
	endpoint string
}

func NewWebhookTransport(endpoint string) (*WebhookTransport, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return NewWebhookTransportWithClient(endpoint, client)
}

func NewWebhookTransportWithClient(endpoint string, client *resty.Client) (*WebhookTransport, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("%w: webhook endpoint is required", domain.ErrConfig)
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("%w: invalid webhook endpoint: %v", domain.ErrConfig, err)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: resty client is required", domain.ErrConfig)
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookTransport{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (t *WebhookTransport) Kind() domain.TransportKind {
	return domain.TransportHTTP
}

func (t *WebhookTransport) Send(ctx context.Context, payload string) error {
	if t == nil || t.client == nil {
		return fmt.Errorf("%w: webhook transport is not initialized", domain.ErrConfig)
	}

	response, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(webhookRequest{Code: payload}).
		Post(t.endpoint)
	if err != nil {
		return &Error{
			Message: "webhook request failed",
			Cause:   err,
		}
	}
	if response == nil {
		return &Error{Message: "webhook returned empty response"}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return &Error{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("server responded with code %d", statusCode),
	}
}
