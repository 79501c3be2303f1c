package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/ggz/smsbridge/internal/domain"
)

const (
	defaultSMTPTimeout = 15 * time.Second

	// Fixed subject line for forwarded codes, kept from the upstream
	// behavior ("verification code" in Chinese).
	emailSubject = "验证码"
)

// EmailTransport sends the payload as an HTML mail message. SSL selects an
// implicit-TLS session; otherwise STARTTLS is used when the server offers
// it.
type EmailTransport struct {
	client     *mail.Client
	sender     string
	recipients []string
}

func NewEmailTransport(settings domain.EmailSettings) (*EmailTransport, error) {
	host := strings.TrimSpace(settings.Host)
	if host == "" {
		return nil, fmt.Errorf("%w: smtp host is required", domain.ErrConfig)
	}
	recipient := strings.TrimSpace(settings.Recipient)
	if recipient == "" {
		return nil, fmt.Errorf("%w: recipient email is required", domain.ErrConfig)
	}

	port, err := strconv.Atoi(strings.TrimSpace(settings.Port))
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: invalid smtp port %q", domain.ErrConfig, settings.Port)
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(defaultSMTPTimeout),
	}
	if settings.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	username := strings.TrimSpace(settings.Username)
	if username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(settings.Password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: smtp client setup failed: %v", domain.ErrConfig, err)
	}

	recipients := make([]string, 0, 1)
	for _, rcpt := range strings.Split(recipient, ",") {
		recipients = append(recipients, strings.TrimSpace(rcpt))
	}

	// The account address doubles as the sender, matching the upstream
	// self-forwarding setup; without auth the mail goes out under the
	// recipient's own address.
	sender := username
	if sender == "" {
		sender = recipients[0]
	}

	t := &EmailTransport{
		client:     client,
		sender:     sender,
		recipients: recipients,
	}

	// Malformed addresses are a configuration problem, surfaced here so
	// they finalize the attempt instead of burning retries.
	if _, err := t.buildMessage(""); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}

	return t, nil
}

func (t *EmailTransport) Kind() domain.TransportKind {
	return domain.TransportEmail
}

func (t *EmailTransport) Send(ctx context.Context, payload string) error {
	if t == nil || t.client == nil {
		return fmt.Errorf("%w: email transport is not initialized", domain.ErrConfig)
	}

	msg, err := t.buildMessage(payload)
	if err != nil {
		return &Error{Message: "smtp message build failed", Cause: err}
	}

	if err := t.client.DialAndSendWithContext(ctx, msg); err != nil {
		return &Error{Message: "smtp delivery failed", Cause: err}
	}
	return nil
}

func (t *EmailTransport) buildMessage(payload string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(t.sender); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %v", t.sender, err)
	}
	if err := msg.To(t.recipients...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %v", err)
	}
	msg.Subject(emailSubject)
	msg.SetBodyString(mail.TypeTextHTML, payload)
	return msg, nil
}
