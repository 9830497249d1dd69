package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tuzo-service/internal/domain/outbox"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type failure struct {
	retryAfter time.Duration
	reason     string
	dead       bool
}

type fakeStore struct {
	due    []outbox.Task
	done   []uuid.UUID
	failed map[uuid.UUID]failure
}

func (s *fakeStore) Claim(ctx context.Context, limit int, staleAfter time.Duration) ([]outbox.Task, error) {
	claimed := s.due
	if len(claimed) > limit {
		claimed = claimed[:limit]
	}
	s.due = s.due[len(claimed):]
	for i := range claimed {
		claimed[i].Attempts++
		claimed[i].Status = outbox.StatusProcessing
	}
	return claimed, nil
}

func (s *fakeStore) MarkDone(ctx context.Context, id uuid.UUID) error {
	s.done = append(s.done, id)
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, id uuid.UUID, retryAfter time.Duration, reason string, dead bool) error {
	s.failed[id] = failure{retryAfter: retryAfter, reason: reason, dead: dead}
	return nil
}

func task(t *testing.T, kind string, attempts int) outbox.Task {
	t.Helper()
	tk, err := outbox.NewTask(kind, map[string]string{"k": "v"}, time.Now())
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	tk.Attempts = attempts
	return *tk
}

func TestFlushOnce(t *testing.T) {
	ok := task(t, "ok", 0)
	flaky := task(t, "flaky", 0)
	exhausted := task(t, "flaky", outbox.DefaultMaxAttempts-1)
	unknown := task(t, "mystery", 0)
	panicky := task(t, "panic", 0)

	store := &fakeStore{due: []outbox.Task{ok, flaky, exhausted, unknown, panicky}, failed: map[uuid.UUID]failure{}}
	d := NewDispatcher(store, 10, time.Second, zap.NewNop())

	var gotPayload map[string]string
	d.Register("ok", func(ctx context.Context, payload json.RawMessage) error {
		return json.Unmarshal(payload, &gotPayload)
	})
	d.Register("flaky", func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("broker unavailable")
	})
	d.Register("panic", func(ctx context.Context, payload json.RawMessage) error {
		panic("boom")
	})

	n, err := d.FlushOnce(context.Background())
	if err != nil {
		t.Fatalf("FlushOnce: %v", err)
	}
	if n != 1 || len(store.done) != 1 || store.done[0] != ok.ID {
		t.Fatalf("expected only the ok task done, got n=%d done=%v", n, store.done)
	}
	if gotPayload["k"] != "v" {
		t.Fatalf("handler received %v", gotPayload)
	}

	if f := store.failed[flaky.ID]; f.dead || f.retryAfter != 2*time.Second || f.reason != "broker unavailable" {
		t.Fatalf("unexpected flaky failure %+v", f)
	}
	if f := store.failed[exhausted.ID]; !f.dead {
		t.Fatalf("expected exhausted task to be dead, got %+v", f)
	}
	if f := store.failed[unknown.ID]; !f.dead {
		t.Fatalf("expected unknown kind to be dead, got %+v", f)
	}
	if f := store.failed[panicky.ID]; f.dead || f.reason == "" {
		t.Fatalf("expected panic to be retried, got %+v", f)
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{8, 256 * time.Second},
		{9, 256 * time.Second},
		{20, 256 * time.Second},
	}
	for _, tt := range tests {
		if got := RetryDelay(tt.attempt); got != tt.want {
			t.Fatalf("RetryDelay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

type recordingPublisher struct {
	exchange, key string
	body          interface{}
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.exchange, p.key, p.body = exchange, routingKey, body
	return nil
}

func (p *recordingPublisher) Close() {}

func TestPublishHandler(t *testing.T) {
	pub := &recordingPublisher{}
	h := PublishHandler(pub)

	payload, _ := json.Marshal(outbox.EventPayload{
		Exchange:   "tuzo.events",
		RoutingKey: outbox.RoutingRewardIssued,
		Body:       map[string]interface{}{"points": 120},
	})
	if err := h(context.Background(), payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if pub.exchange != "tuzo.events" || pub.key != outbox.RoutingRewardIssued {
		t.Fatalf("unexpected publish %+v", pub)
	}

	if err := h(context.Background(), json.RawMessage(`{"exchange":""}`)); err == nil {
		t.Fatal("expected missing routing to fail")
	}
}
