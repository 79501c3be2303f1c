package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ggz/smsbridge/internal/dispatch"
	"github.com/ggz/smsbridge/internal/domain"
	"github.com/ggz/smsbridge/internal/observability"
	"github.com/ggz/smsbridge/internal/settings"
	"github.com/ggz/smsbridge/internal/store"
)

// Submitter hands an accepted job to the delivery substrate.
type Submitter interface {
	Submit(job dispatch.Job) error
}

// Decision describes the outcome of one batch: whether an event was
// accepted, which one, and how many were set aside.
type Decision struct {
	Accepted      bool   `json:"accepted"`
	ObservedAt    int64  `json:"observedAt,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Ignored       int    `json:"ignored"`
	Reason        string `json:"reason,omitempty"`
}

// Gate is the ingestion filter. A batch of co-delivered message parts is
// evaluated against one settings snapshot; the first part whose sender
// matches the filter is accepted and the rest of the batch is set aside
// without evaluation. The PENDING attempt record is written before the job
// is queued, so a crash after acceptance still leaves an audit row.
type Gate struct {
	settings   settings.Store
	log        store.AttemptLog
	dispatcher Submitter
	logger     *zap.Logger
	metrics    *observability.Metrics

	newCorrelationID func() string
}

func NewGate(settingsStore settings.Store, log store.AttemptLog, dispatcher Submitter, logger *zap.Logger) (*Gate, error) {
	if settingsStore == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if log == nil {
		return nil, fmt.Errorf("attempt log is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Gate{
		settings:         settingsStore,
		log:              log,
		dispatcher:       dispatcher,
		logger:           logger,
		newCorrelationID: uuid.NewString,
	}, nil
}

func (g *Gate) SetMetrics(metrics *observability.Metrics) {
	if g == nil {
		return
	}
	g.metrics = metrics
}

// AcceptBatch evaluates the batch in order and accepts at most one event.
// An error is returned only when an accepted event cannot be recorded or
// queued; filtered batches return a Decision with Accepted false.
func (g *Gate) AcceptBatch(ctx context.Context, events []domain.Event) (Decision, error) {
	if len(events) == 0 {
		return Decision{Reason: "empty batch"}, nil
	}

	snapshot := g.settings.Snapshot()
	if !snapshot.Listening {
		g.countIgnored("listening_disabled", len(events))
		return Decision{Ignored: len(events), Reason: "listening disabled"}, nil
	}

	for i, event := range events {
		if err := event.Validate(); err != nil {
			return Decision{}, err
		}
		if !snapshot.MatchesSender(event.Sender) {
			g.countIgnored("sender_mismatch", 1)
			continue
		}

		decision, err := g.accept(ctx, event, snapshot)
		if err != nil {
			return Decision{}, err
		}

		// Remaining parts of the batch ride along unevaluated.
		remainder := len(events) - i - 1
		decision.Ignored = i + remainder
		g.countIgnored("batch_remainder", remainder)
		return decision, nil
	}

	return Decision{Ignored: len(events), Reason: "no sender matched the filter"}, nil
}

func (g *Gate) accept(ctx context.Context, event domain.Event, snapshot domain.Settings) (Decision, error) {
	record := domain.NewPendingRecord(event)
	if err := g.log.Upsert(ctx, &record); err != nil {
		return Decision{}, fmt.Errorf("recording pending attempt: %w", err)
	}

	job := dispatch.Job{
		Event:         event,
		Settings:      snapshot,
		CorrelationID: g.newCorrelationID(),
		Attempt:       1,
	}

	if err := g.dispatcher.Submit(job); err != nil {
		// The row already exists; close it out so history stays truthful.
		reason := err.Error()
		record.Status = domain.StatusFailed
		record.FailureReason = &reason
		if upsertErr := g.log.Upsert(ctx, &record); upsertErr != nil {
			g.logger.Error("failed to record rejected submission",
				zap.Int64("observedAt", event.ObservedAt),
				zap.Error(upsertErr),
			)
		}
		return Decision{}, fmt.Errorf("queueing delivery: %w", err)
	}

	if g.metrics != nil {
		g.metrics.IncEventAccepted()
	}
	g.logger.Info("event accepted",
		zap.Int64("observedAt", event.ObservedAt),
		zap.String("correlationId", job.CorrelationID),
		zap.String("sender", event.Sender),
	)

	return Decision{
		Accepted:      true,
		ObservedAt:    event.ObservedAt,
		CorrelationID: job.CorrelationID,
	}, nil
}

func (g *Gate) countIgnored(reason string, n int) {
	if g.metrics == nil {
		return
	}
	g.metrics.AddEventsIgnored(reason, n)
}
