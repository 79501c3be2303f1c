// Package retention prunes old attempt history on a schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ggz/smsbridge/internal/store"
)

const (
	defaultInterval = 6 * time.Hour
	minInterval     = time.Minute
)

// Janitor deletes attempt records older than the retention window. A
// non-positive retention disables pruning entirely; history then grows
// until cleared by hand.
type Janitor struct {
	log           store.AttemptLog
	logger        *zap.Logger
	retentionDays int
	interval      time.Duration

	now func() time.Time
}

func NewJanitor(log store.AttemptLog, retentionDays int, interval time.Duration, logger *zap.Logger) (*Janitor, error) {
	if log == nil {
		return nil, fmt.Errorf("attempt log is required")
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	if interval < minInterval {
		interval = minInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Janitor{
		log:           log,
		logger:        logger,
		retentionDays: retentionDays,
		interval:      interval,
		now:           time.Now,
	}, nil
}

// Enabled reports whether the janitor will prune anything.
func (j *Janitor) Enabled() bool {
	return j.retentionDays > 0
}

// Start sweeps once immediately and then on every tick until the context
// ends. With retention disabled it returns right away.
func (j *Janitor) Start(ctx context.Context) error {
	if !j.Enabled() {
		j.logger.Info("history retention disabled, janitor idle")
		return nil
	}

	j.logger.Info("retention janitor started",
		zap.Int("retentionDays", j.retentionDays),
		zap.Duration("interval", j.interval),
	)

	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("retention janitor stopped")
			return nil
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	cutoff := j.cutoff()
	purged, err := j.log.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("retention sweep failed",
			zap.Int64("cutoff", cutoff),
			zap.Error(err),
		)
		return
	}

	if purged > 0 {
		j.logger.Info("pruned old attempt records",
			zap.Int64("purged", purged),
			zap.Int64("cutoff", cutoff),
		)
	}
}

// cutoff is the oldest observation timestamp allowed to survive, in unix
// milliseconds.
func (j *Janitor) cutoff() int64 {
	return j.now().AddDate(0, 0, -j.retentionDays).UnixMilli()
}
