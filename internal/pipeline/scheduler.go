package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ggz/smsbridge/internal/cryptobox"
	"github.com/ggz/smsbridge/internal/dispatch"
	"github.com/ggz/smsbridge/internal/domain"
	"github.com/ggz/smsbridge/internal/notify"
	"github.com/ggz/smsbridge/internal/observability"
	"github.com/ggz/smsbridge/internal/pattern"
	"github.com/ggz/smsbridge/internal/store"
	"github.com/ggz/smsbridge/internal/transport"
)

// Scheduler advances one accepted event through extract, encrypt, and send,
// and finalizes the attempt record with exactly one idempotent upsert per
// terminal transition. Transport failures are reported back to the dispatch
// layer as retry requests; everything else is terminal.
type Scheduler struct {
	log       store.AttemptLog
	extractor *pattern.Extractor
	encryptor *cryptobox.Encryptor
	notifier  notify.Notifier
	logger    *zap.Logger
	metrics   *observability.Metrics

	newTransport func(domain.Settings) (transport.Transport, error)
	now          func() time.Time
}

var _ dispatch.Processor = (*Scheduler)(nil)

func NewScheduler(
	log store.AttemptLog,
	extractor *pattern.Extractor,
	encryptor *cryptobox.Encryptor,
	notifier notify.Notifier,
	logger *zap.Logger,
) (*Scheduler, error) {
	if log == nil {
		return nil, fmt.Errorf("attempt log is required")
	}
	if extractor == nil {
		extractor = pattern.NewExtractor()
	}
	if encryptor == nil {
		encryptor = cryptobox.NewEncryptor()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		log:          log,
		extractor:    extractor,
		encryptor:    encryptor,
		notifier:     notifier,
		logger:       logger,
		newTransport: transport.New,
		now:          time.Now,
	}, nil
}

func (s *Scheduler) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *Scheduler) Process(ctx context.Context, job dispatch.Job) (dispatch.Result, string) {
	logger := observability.EventLogger(s.logger, job.Event.ObservedAt).
		With(zap.String("correlationId", job.CorrelationID))

	record := domain.NewPendingRecord(job.Event)
	cfg := job.Settings

	code, err := s.extractor.Extract(job.Event.Body, cfg.CodePattern)
	if err != nil {
		if pattern.IsNoMatch(err) {
			// Deliberate policy: a message with no parsable code is
			// resolved, not failed. The reason is recorded for the
			// history view, nothing is sent, nothing is retried, and
			// no notification fires.
			s.finalize(ctx, logger, record, domain.StatusSuccess, err.Error())
			if s.metrics != nil {
				s.metrics.IncExtractionMiss()
			}
			logger.Info("no code in message, resolved without delivery")
			return dispatch.ResultSuccess, ""
		}

		reason := err.Error()
		s.finalize(ctx, logger, record, domain.StatusFailed, reason)
		s.countFailure(record.Transport, "invalid_pattern")
		return dispatch.ResultFailed, reason
	}

	record.Code = &code

	payload := code
	if cfg.EncryptionEnabled {
		payload, err = s.encryptor.Encrypt(code, cfg.PublicKey)
		if err != nil {
			reason := err.Error()
			s.finalize(ctx, logger, record, domain.StatusFailed, reason)
			s.countFailure(record.Transport, "encryption_error")
			s.notifyTerminal(ctx, cfg, code, domain.StatusFailed)
			return dispatch.ResultFailed, reason
		}
	}

	sender, err := s.newTransport(cfg)
	if err != nil {
		record.Transport = cfg.Transport
		reason := err.Error()
		s.finalize(ctx, logger, record, domain.StatusFailed, reason)
		s.countFailure(record.Transport, "configuration_error")
		s.notifyTerminal(ctx, cfg, code, domain.StatusFailed)
		return dispatch.ResultFailed, reason
	}
	record.Transport = sender.Kind()

	sendStart := s.now()
	sendErr := sender.Send(ctx, payload)
	if s.metrics != nil {
		s.metrics.ObserveSendDuration(transportLabel(record.Transport), s.now().Sub(sendStart))
	}

	if sendErr != nil {
		// The record stays PENDING while retries remain; the terminal
		// FAILED write happens in GiveUp once the budget is spent.
		logger.Warn("send attempt failed",
			zap.Int("attempt", job.Attempt),
			zap.Error(sendErr),
		)
		return dispatch.ResultRetry, sendErr.Error()
	}

	s.finalize(ctx, logger, record, domain.StatusSuccess, "")
	if s.metrics != nil {
		s.metrics.IncCodeForwarded(transportLabel(record.Transport))
	}
	s.notifyTerminal(ctx, cfg, code, domain.StatusSuccess)
	logger.Info("code forwarded",
		zap.String("transport", record.Transport.String()),
		zap.Int("attempt", job.Attempt),
	)
	return dispatch.ResultSuccess, ""
}

// GiveUp finalizes the record as FAILED with the last known failure reason.
// Called by the dispatch layer when the retry budget is exhausted or the
// job can no longer be queued.
func (s *Scheduler) GiveUp(ctx context.Context, job dispatch.Job, lastReason string) {
	logger := observability.EventLogger(s.logger, job.Event.ObservedAt).
		With(zap.String("correlationId", job.CorrelationID))

	record := domain.NewPendingRecord(job.Event)
	record.Transport = job.Settings.Transport

	code, err := s.extractor.Extract(job.Event.Body, job.Settings.CodePattern)
	codeFound := err == nil
	if codeFound {
		record.Code = &code
	}

	s.finalize(ctx, logger, record, domain.StatusFailed, lastReason)
	s.countFailure(record.Transport, "retry_exhausted")
	if codeFound {
		s.notifyTerminal(ctx, job.Settings, code, domain.StatusFailed)
	}
}

// finalize performs the single terminal upsert. Repeated finalizations for
// the same event key converge on one row; an upsert failure is logged, not
// propagated, so no error escapes the scheduler boundary.
func (s *Scheduler) finalize(
	ctx context.Context,
	logger *zap.Logger,
	record domain.AttemptRecord,
	status domain.Status,
	reason string,
) {
	record.Status = status
	if strings.TrimSpace(reason) != "" {
		record.FailureReason = &reason
	}

	if err := s.log.Upsert(ctx, &record); err != nil {
		logger.Error("failed to persist terminal attempt record",
			zap.String("status", status.String()),
			zap.Error(err),
		)
	}
}

func (s *Scheduler) notifyTerminal(ctx context.Context, cfg domain.Settings, code string, status domain.Status) {
	if !cfg.NotifyOnNewCode {
		return
	}
	s.notifier.Notify(ctx, code, status)
}

func (s *Scheduler) countFailure(kind domain.TransportKind, reason string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncForwardFailed(transportLabel(kind), reason)
}

func transportLabel(kind domain.TransportKind) string {
	return strings.ToLower(kind.String())
}
