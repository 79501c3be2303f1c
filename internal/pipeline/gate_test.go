package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/ggz/smsbridge/internal/dispatch"
	"github.com/ggz/smsbridge/internal/domain"
)

type fakeSettingsStore struct {
	cfg domain.Settings
}

func (f *fakeSettingsStore) Snapshot() domain.Settings { return f.cfg }

type fakeSubmitter struct {
	mu   sync.Mutex
	jobs []dispatch.Job
	err  error
}

func (f *fakeSubmitter) Submit(job dispatch.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeSubmitter) submitted() []dispatch.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatch.Job(nil), f.jobs...)
}

func newTestGate(t *testing.T, cfg domain.Settings, log *fakeAttemptLog, submitter *fakeSubmitter) *Gate {
	t.Helper()
	gate, err := NewGate(&fakeSettingsStore{cfg: cfg}, log, submitter, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return gate
}

func TestGateAcceptsFirstMatchingEvent(t *testing.T) {
	t.Parallel()

	cfg := testSettings()
	cfg.SenderFilter = "1069"
	log := newFakeAttemptLog()
	submitter := &fakeSubmitter{}
	gate := newTestGate(t, cfg, log, submitter)

	events := []domain.Event{
		{Sender: "FRIEND", Body: "hello there", ObservedAt: 1700000000001},
		{Sender: "10690000", Body: "code 482913", ObservedAt: 1700000000002},
		{Sender: "10690001", Body: "code 999999", ObservedAt: 1700000000003},
	}

	decision, err := gate.AcceptBatch(context.Background(), events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Accepted {
		t.Fatal("expected the batch to be accepted")
	}
	if decision.ObservedAt != 1700000000002 {
		t.Errorf("expected first matching event accepted, got key %d", decision.ObservedAt)
	}
	if decision.Ignored != 2 {
		t.Errorf("expected 2 ignored events, got %d", decision.Ignored)
	}
	if decision.CorrelationID == "" {
		t.Error("expected a correlation id")
	}

	jobs := submitter.submitted()
	if len(jobs) != 1 {
		t.Fatalf("expected one submitted job, got %d", len(jobs))
	}
	if jobs[0].Event.ObservedAt != 1700000000002 {
		t.Errorf("wrong event submitted: %d", jobs[0].Event.ObservedAt)
	}
	if jobs[0].Attempt != 1 {
		t.Errorf("expected first attempt, got %d", jobs[0].Attempt)
	}
	if jobs[0].Settings.SenderFilter != "1069" {
		t.Error("job must carry the snapshot taken at acceptance")
	}

	record := log.get(t, 1700000000002)
	if record.Status != domain.StatusPending {
		t.Errorf("expected PENDING row before delivery, got %s", record.Status)
	}
	if _, err := log.GetByKey(context.Background(), 1700000000003); err == nil {
		t.Error("later batch member must not get a row")
	}
}

func TestGateIgnoresAllWhenListeningDisabled(t *testing.T) {
	t.Parallel()

	cfg := testSettings()
	cfg.Listening = false
	log := newFakeAttemptLog()
	submitter := &fakeSubmitter{}
	gate := newTestGate(t, cfg, log, submitter)

	decision, err := gate.AcceptBatch(context.Background(), []domain.Event{testEvent()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Accepted {
		t.Fatal("expected the batch to be ignored")
	}
	if decision.Ignored != 1 {
		t.Errorf("expected 1 ignored event, got %d", decision.Ignored)
	}
	if len(submitter.submitted()) != 0 {
		t.Error("nothing may be queued while listening is off")
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.records) != 0 {
		t.Error("ignored events must not get rows")
	}
}

func TestGateIgnoresNonMatchingSenders(t *testing.T) {
	t.Parallel()

	cfg := testSettings()
	cfg.SenderFilter = "BANK"
	log := newFakeAttemptLog()
	submitter := &fakeSubmitter{}
	gate := newTestGate(t, cfg, log, submitter)

	decision, err := gate.AcceptBatch(context.Background(), []domain.Event{testEvent()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Accepted {
		t.Fatal("expected no acceptance")
	}
	if decision.Reason == "" {
		t.Error("expected a reason")
	}
	if len(submitter.submitted()) != 0 {
		t.Error("nothing may be queued for a filtered sender")
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.records) != 0 {
		t.Error("filtered events must not get rows")
	}
}

func TestGateRejectsInvalidEvent(t *testing.T) {
	t.Parallel()

	gate := newTestGate(t, testSettings(), newFakeAttemptLog(), &fakeSubmitter{})

	_, err := gate.AcceptBatch(context.Background(), []domain.Event{
		{Sender: "10690000", Body: "   ", ObservedAt: 1700000000001},
	})
	if err == nil {
		t.Fatal("expected validation error for blank body")
	}
}

func TestGateClosesRecordWhenQueueRejects(t *testing.T) {
	t.Parallel()

	log := newFakeAttemptLog()
	submitter := &fakeSubmitter{err: fmt.Errorf("delivery queue is full")}
	gate := newTestGate(t, testSettings(), log, submitter)

	event := testEvent()
	_, err := gate.AcceptBatch(context.Background(), []domain.Event{event})
	if err == nil {
		t.Fatal("expected error when the queue rejects the job")
	}

	record := log.get(t, event.ObservedAt)
	if record.Status != domain.StatusFailed {
		t.Errorf("expected FAILED row after rejected submission, got %s", record.Status)
	}
	if record.FailureReason == nil {
		t.Error("expected a failure reason on the closed row")
	}
}

func TestGateEmptyBatch(t *testing.T) {
	t.Parallel()

	gate := newTestGate(t, testSettings(), newFakeAttemptLog(), &fakeSubmitter{})

	decision, err := gate.AcceptBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Accepted {
		t.Error("empty batch must not be accepted")
	}
}
