package pipeline

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/ggz/smsbridge/internal/dispatch"
	"github.com/ggz/smsbridge/internal/domain"
	"github.com/ggz/smsbridge/internal/transport"
)

// inlineSubmitter runs the job synchronously through a scheduler, standing
// in for the worker pool so the whole flow is observable in one call.
type inlineSubmitter struct {
	scheduler *Scheduler
	result    dispatch.Result
}

func (s *inlineSubmitter) Submit(job dispatch.Job) error {
	s.result, _ = s.scheduler.Process(context.Background(), job)
	return nil
}

func TestAcceptedEventFlowsToWebhook(t *testing.T) {
	t.Parallel()

	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	log := newFakeAttemptLog()
	scheduler := newTestScheduler(t, log, &fakeNotifier{})

	cfg := domain.Settings{
		Listening:    true,
		SenderFilter: "10086",
		CodePattern:  `code:(\d+)`,
		Transport:    domain.TransportHTTP,
		WebhookURL:   server.URL,
	}

	submitter := &inlineSubmitter{scheduler: scheduler}
	gate, err := NewGate(&fakeSettingsStore{cfg: cfg}, log, submitter, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := domain.Event{Sender: "10086", Body: "code:654321", ObservedAt: 1000}
	decision, err := gate.AcceptBatch(context.Background(), []domain.Event{event})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Accepted {
		t.Fatal("expected acceptance")
	}
	if submitter.result != dispatch.ResultSuccess {
		t.Fatalf("expected success, got %v", submitter.result)
	}

	record := log.get(t, 1000)
	if record.Status != domain.StatusSuccess {
		t.Errorf("status = %s, want SUCCESS", record.Status)
	}
	if record.Code == nil || *record.Code != "654321" {
		t.Errorf("code = %v, want 654321", record.Code)
	}
	if record.Transport != domain.TransportHTTP {
		t.Errorf("transport = %s, want HTTP", record.Transport)
	}
	if received != `{"code":"654321"}` {
		t.Errorf("webhook body = %q", received)
	}
}

func TestRetriesConvergeOnOneTerminalRow(t *testing.T) {
	t.Parallel()

	log := newFakeAttemptLog()
	scheduler := newTestScheduler(t, log, &fakeNotifier{})

	var sends int
	scheduler.newTransport = func(_ domain.Settings) (transport.Transport, error) {
		return &fakeTransport{
			kind: domain.TransportHTTP,
			send: func(_ context.Context, _ string) error {
				sends++
				if sends < 3 {
					return &transport.Error{StatusCode: 500, Message: "server responded with code 500"}
				}
				return nil
			},
		}, nil
	}

	event := testEvent()
	cfg := testSettings()
	cfg.NotifyOnNewCode = false

	job := dispatch.Job{Event: event, Settings: cfg, Attempt: 1}
	for attempt := 1; attempt <= 3; attempt++ {
		job.Attempt = attempt
		result, _ := scheduler.Process(context.Background(), job)

		if attempt < 3 && result != dispatch.ResultRetry {
			t.Fatalf("attempt %d: expected retry, got %v", attempt, result)
		}
		if attempt == 3 && result != dispatch.ResultSuccess {
			t.Fatalf("attempt 3: expected success, got %v", result)
		}
	}

	if sends != 3 {
		t.Errorf("sends = %d, want 3", sends)
	}

	// Intermediate retries produce no rows; only the terminal state is
	// visible, once, under the event key.
	log.mu.Lock()
	defer log.mu.Unlock()
	if log.upserts != 1 {
		t.Errorf("upserts = %d, want 1", log.upserts)
	}
	record := log.records[event.ObservedAt]
	if record.Status != domain.StatusSuccess {
		t.Errorf("status = %s, want SUCCESS", record.Status)
	}
}
