package email

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"tuzo-service/internal/domain/customer"
	"tuzo-service/internal/domain/outbox"
	"tuzo-service/internal/domain/reward"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fakeCustomers map[uuid.UUID]*customer.Customer

func (f fakeCustomers) FindByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	c, ok := f[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

type fakeQueue struct{ tasks []*outbox.Task }

func (q *fakeQueue) Enqueue(ctx context.Context, task *outbox.Task) error {
	q.tasks = append(q.tasks, task)
	return nil
}

type fakeSender struct {
	to, subject, body string
}

func (s *fakeSender) Send(to, subject, body string) error {
	s.to, s.subject, s.body = to, subject, body
	return nil
}

func strPtr(s string) *string { return &s }

func TestRewardEarnedQueuesEmail(t *testing.T) {
	withEmail, withoutEmail := uuid.New(), uuid.New()
	customers := fakeCustomers{
		withEmail:    {ID: withEmail, FullName: "Jane <Wanjiku>", Email: strPtr(" jane@example.com ")},
		withoutEmail: {ID: withoutEmail, FullName: "Otieno"},
	}
	queue := &fakeQueue{}
	m := NewRewardMailer(customers, queue, zap.NewNop())
	m.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }

	rw := &reward.Reward{ID: uuid.New(), CustomerID: withEmail, PointsAtIssuance: 105, RewardValue: decimal.NewFromInt(50)}
	m.RewardEarned(context.Background(), "Mama Mboga", rw)
	m.RewardEarned(context.Background(), "Mama Mboga", &reward.Reward{ID: uuid.New(), CustomerID: withoutEmail})
	m.RewardEarned(context.Background(), "Mama Mboga", &reward.Reward{ID: uuid.New(), CustomerID: uuid.New()})

	if len(queue.tasks) != 1 {
		t.Fatalf("expected one queued email, got %d", len(queue.tasks))
	}
	task := queue.tasks[0]
	if task.Kind != outbox.KindSendEmail {
		t.Fatalf("unexpected task kind %q", task.Kind)
	}

	var p outbox.EmailPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p.To != "jane@example.com" {
		t.Fatalf("expected trimmed address, got %q", p.To)
	}
	if !strings.Contains(p.Body, "105 points") || !strings.Contains(p.Body, "KES 50.00") {
		t.Fatalf("unexpected body %q", p.Body)
	}
	if strings.Contains(p.Body, "<Wanjiku>") {
		t.Fatal("expected customer name to be escaped")
	}
}

func TestTaskHandler(t *testing.T) {
	sender := &fakeSender{}
	handle := TaskHandler(sender)

	payload, _ := json.Marshal(outbox.EmailPayload{To: "a@b.co", Subject: "Hi", Body: "<p>x</p>"})
	if err := handle(context.Background(), payload); err != nil {
		t.Fatal(err)
	}
	if sender.to != "a@b.co" || sender.subject != "Hi" {
		t.Fatalf("unexpected send %+v", sender)
	}

	if err := handle(context.Background(), json.RawMessage(`{"subject":"x"}`)); err == nil {
		t.Fatal("expected missing recipient to fail")
	}
	if err := handle(context.Background(), json.RawMessage(`{`)); err == nil {
		t.Fatal("expected bad payload to fail")
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("Tuzo <no-reply@tuzo.co.ke>", "a@b.co", "Subject", "<p>hello</p>"))
	if !strings.HasPrefix(msg, "From: Tuzo <no-reply@tuzo.co.ke>\r\nTo: a@b.co\r\nSubject: Subject\r\n") {
		t.Fatalf("unexpected headers %q", msg[:80])
	}
	if !strings.Contains(msg, "<p>hello</p>") {
		t.Fatal("expected body in layout")
	}
}
