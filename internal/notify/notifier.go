// Package notify is the outbound notification sink: a fire-and-forget call
// made after a delivery reaches a terminal state with a code in hand. The
// presentation of the notification lives outside this core.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/ggz/smsbridge/internal/domain"
)

// Notifier receives terminal outcomes. No return value is consumed.
type Notifier interface {
	Notify(ctx context.Context, code string, status domain.Status)
}

// LogNotifier emits the outcome to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, code string, status domain.Status) {
	n.logger.Info("verification code processed",
		zap.String("code", code),
		zap.String("status", status.String()),
	)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(ctx context.Context, code string, status domain.Status) {}
