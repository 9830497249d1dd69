package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tuzo-service/internal/domain/business"
	"tuzo-service/internal/domain/customer"
	"tuzo-service/internal/domain/notification"
	"tuzo-service/internal/domain/outbox"
	"tuzo-service/internal/domain/payment"
	"tuzo-service/internal/domain/reward"
	"tuzo-service/internal/domain/transaction"
	"tuzo-service/internal/mpesa"
	xerrors "tuzo-service/internal/pkg/errors"
	"tuzo-service/internal/realtime"
	"tuzo-service/internal/service/loyalty"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fakeBusinesses map[uuid.UUID]*business.Business

func (f fakeBusinesses) GetByID(ctx context.Context, id uuid.UUID) (*business.Business, error) {
	b, ok := f[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return b, nil
}

type fakeCustomers []*customer.Customer

func (f fakeCustomers) FindByBusinessAndPhone(ctx context.Context, businessID uuid.UUID, phone string) (*customer.Customer, error) {
	for _, c := range f {
		if c.BusinessID == businessID && c.Phone == phone {
			return c, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

type fakeRequests struct {
	byCheckout map[string]*payment.Request
	tasks      []*outbox.Task
}

func (f *fakeRequests) CreatePending(ctx context.Context, req *payment.Request, task *outbox.Task) error {
	f.byCheckout[req.CheckoutRequestID] = req
	if task != nil {
		f.tasks = append(f.tasks, task)
	}
	return nil
}

func (f *fakeRequests) FindByCheckoutID(ctx context.Context, id string) (*payment.Request, error) {
	r, ok := f.byCheckout[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return r, nil
}

func (f *fakeRequests) MarkFailed(ctx context.Context, id string, code int, desc string) (bool, error) {
	r, ok := f.byCheckout[id]
	if !ok || r.Status != payment.RequestPending {
		return false, nil
	}
	r.Status = payment.RequestFailed
	r.ResultCode = &code
	r.ResultDesc = &desc
	return true, nil
}

type failingGateway struct{ err error }

func (g failingGateway) InitiateSTKPush(ctx context.Context, in mpesa.STKPushRequest) (*mpesa.STKPushResult, error) {
	return nil, g.err
}

type fakeLimiter struct{ allowed bool }

func (l fakeLimiter) Allow(ctx context.Context, key string, max int64, window time.Duration) (bool, error) {
	return l.allowed, nil
}

type fakeRecorder struct {
	seen  map[string]bool
	calls []loyalty.RecordInput
	name  string
}

func (r *fakeRecorder) Record(ctx context.Context, in loyalty.RecordInput) (*loyalty.RecordResult, error) {
	if r.seen[in.CheckoutRequestID] {
		return nil, xerrors.ErrAlreadyProcessed
	}
	r.seen[in.CheckoutRequestID] = true
	r.calls = append(r.calls, in)

	points := loyalty.CalculatePoints(in.Amount, decimal.RequireFromString("0.01"))
	res := &loyalty.RecordResult{
		Business: business.LoyaltySettings{BusinessID: in.BusinessID, Name: r.name},
		Transaction: &transaction.Transaction{
			ID:                uuid.New(),
			BusinessID:        in.BusinessID,
			CustomerID:        in.CustomerID,
			Amount:            in.Amount,
			PointsAwarded:     points,
			CheckoutRequestID: in.CheckoutRequestID,
			Status:            transaction.StatusCompleted,
		},
		Balance: points,
	}
	if points >= 100 {
		res.Reward = &reward.Reward{ID: uuid.New(), BusinessID: in.BusinessID, CustomerID: in.CustomerID, PointsAtIssuance: points}
	}
	return res, nil
}

type fakeNotifier struct {
	sent []*notification.CreateNotificationRequest
}

func (n *fakeNotifier) Create(ctx context.Context, req *notification.CreateNotificationRequest) (*notification.Notification, error) {
	n.sent = append(n.sent, req)
	return &notification.Notification{ID: uuid.New()}, nil
}

type fakeMailer struct{ businesses []string }

func (m *fakeMailer) RewardEarned(ctx context.Context, businessName string, rw *reward.Reward) {
	m.businesses = append(m.businesses, businessName)
}

type harness struct {
	svc        *PaymentService
	requests   *fakeRequests
	recorder   *fakeRecorder
	notifier   *fakeNotifier
	mailer     *fakeMailer
	broker     *realtime.MemoryBroker
	businessID uuid.UUID
	customerID uuid.UUID
}

func newHarness(t *testing.T, gateway Gateway, limiter RateLimiter) *harness {
	t.Helper()
	h := &harness{
		requests:   &fakeRequests{byCheckout: map[string]*payment.Request{}},
		recorder:   &fakeRecorder{seen: map[string]bool{}, name: "Kibanda Cafe"},
		notifier:   &fakeNotifier{},
		mailer:     &fakeMailer{},
		broker:     realtime.NewMemoryBroker(),
		businessID: uuid.New(),
		customerID: uuid.New(),
	}
	t.Cleanup(func() { h.broker.Close() })

	businesses := fakeBusinesses{h.businessID: {ID: h.businessID, Name: "Kibanda Cafe"}}
	customers := fakeCustomers{{ID: h.customerID, BusinessID: h.businessID, Phone: "+254712345678"}}
	effects := NewEffects(h.notifier, h.broker, businesses, zap.NewNop()).WithMailer(h.mailer)

	h.svc = NewPaymentService(businesses, customers, h.requests, gateway, limiter, h.recorder, effects,
		Options{SimulatedDelay: 3 * time.Second, RateLimit: 3, RateWindow: time.Minute}, zap.NewNop())
	return h
}

func (h *harness) push(phone, amount string) (*payment.STKPushResponse, error) {
	return h.svc.InitiateSTKPush(context.Background(), payment.STKPushRequest{
		Phone:      phone,
		Amount:     amount,
		BusinessID: h.businessID.String(),
	})
}

func TestInitiateSTKPushValidation(t *testing.T) {
	h := newHarness(t, mpesa.NewSimulator(), nil)

	tests := []struct {
		name    string
		req     payment.STKPushRequest
		wantErr error
		wantMsg string
	}{
		{"missing fields", payment.STKPushRequest{Phone: "0712345678"}, xerrors.ErrInvalidInput, msgMissingFields},
		{"non numeric amount", payment.STKPushRequest{Phone: "0712345678", Amount: "ten", BusinessID: h.businessID.String()}, xerrors.ErrInvalidInput, "Amount must be a number"},
		{"zero amount", payment.STKPushRequest{Phone: "0712345678", Amount: "0", BusinessID: h.businessID.String()}, xerrors.ErrInvalidInput, "Amount must be greater than zero"},
		{"fractional amount", payment.STKPushRequest{Phone: "0712345678", Amount: "10.5", BusinessID: h.businessID.String()}, xerrors.ErrInvalidInput, "Amount must be a whole number of shillings"},
		{"bad business id", payment.STKPushRequest{Phone: "0712345678", Amount: "10", BusinessID: "abc"}, xerrors.ErrInvalidInput, "Invalid businessId"},
		{"bad phone", payment.STKPushRequest{Phone: "12345", Amount: "10", BusinessID: h.businessID.String()}, xerrors.ErrInvalidInput, ""},
		{"unknown business", payment.STKPushRequest{Phone: "0712345678", Amount: "10", BusinessID: uuid.NewString()}, xerrors.ErrNotFound, "Business not found"},
		{"unregistered customer", payment.STKPushRequest{Phone: "0799999999", Amount: "10", BusinessID: h.businessID.String()}, xerrors.ErrNotFound, msgCustomerNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.InitiateSTKPush(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantMsg != "" && xerrors.PublicMessage(err, "") != tt.wantMsg {
				t.Fatalf("message = %q, want %q", xerrors.PublicMessage(err, ""), tt.wantMsg)
			}
		})
	}
	if len(h.requests.byCheckout) != 0 {
		t.Fatal("no payment request should be stored on validation failure")
	}
}

func TestInitiateSTKPushSimulated(t *testing.T) {
	h := newHarness(t, mpesa.NewSimulator(), fakeLimiter{allowed: true})

	resp, err := h.push("0712 345 678", "1000")
	if err != nil {
		t.Fatalf("InitiateSTKPush: %v", err)
	}
	if !resp.Success || resp.Message != msgSTKInitiated || resp.TransactionID != resp.CheckoutRequestID {
		t.Fatalf("unexpected response %+v", resp)
	}

	req, ok := h.requests.byCheckout[resp.CheckoutRequestID]
	if !ok {
		t.Fatal("expected pending request to be stored")
	}
	if req.Phone != "+254712345678" || req.CustomerID != h.customerID || req.Status != payment.RequestPending {
		t.Fatalf("unexpected stored request %+v", req)
	}

	if len(h.requests.tasks) != 1 || h.requests.tasks[0].Kind != outbox.KindSimulatedCallback {
		t.Fatalf("expected one simulated callback task, got %+v", h.requests.tasks)
	}
	if delay := time.Until(h.requests.tasks[0].NextAttemptAt); delay < 2*time.Second {
		t.Fatalf("simulated callback scheduled too early: %s", delay)
	}
}

func TestInitiateSTKPushRateLimited(t *testing.T) {
	h := newHarness(t, mpesa.NewSimulator(), fakeLimiter{allowed: false})

	_, err := h.push("0712345678", "100")
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected rate limit as validation error, got %v", err)
	}
}

func TestInitiateSTKPushProviderError(t *testing.T) {
	provider := &mpesa.APIError{Op: "stkpush", StatusCode: 400, Message: "Bad Request - Invalid PhoneNumber"}
	h := newHarness(t, failingGateway{err: provider}, nil)

	_, err := h.push("0712345678", "100")
	if !errors.Is(err, xerrors.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if got := xerrors.PublicMessage(err, ""); got != "STK push failed: Bad Request - Invalid PhoneNumber" {
		t.Fatalf("unexpected message %q", got)
	}
	if len(h.requests.byCheckout) != 0 {
		t.Fatal("failed push must not be stored")
	}
}

func TestSimulatedCallbackEndToEnd(t *testing.T) {
	h := newHarness(t, mpesa.NewSimulator(), nil)
	sub := h.broker.Subscribe(realtime.TopicTransactions, realtime.TopicCustomers)
	defer sub.Close()

	resp, err := h.push("254712345678", "1000")
	if err != nil {
		t.Fatalf("InitiateSTKPush: %v", err)
	}

	task := h.requests.tasks[0]
	if err := h.svc.HandleSimulatedCallback(context.Background(), task.Payload); err != nil {
		t.Fatalf("HandleSimulatedCallback: %v", err)
	}

	if len(h.recorder.calls) != 1 {
		t.Fatalf("expected one recorded payment, got %d", len(h.recorder.calls))
	}
	in := h.recorder.calls[0]
	if in.CheckoutRequestID != resp.CheckoutRequestID || !in.Amount.Equal(decimal.NewFromInt(1000)) || in.Receipt == "" {
		t.Fatalf("unexpected record input %+v", in)
	}

	if len(h.notifier.sent) != 2 {
		t.Fatalf("expected customer and business notifications, got %d", len(h.notifier.sent))
	}
	if msg := h.notifier.sent[0].Message; msg != "You earned 10 points from your KES 1000 payment at Kibanda Cafe" {
		t.Fatalf("unexpected customer message %q", msg)
	}

	seen := map[realtime.Topic]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.C:
			seen[ev.Topic] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for change events")
		}
	}
	if !seen[realtime.TopicTransactions] || !seen[realtime.TopicCustomers] {
		t.Fatalf("missing change events: %v", seen)
	}

	// redelivery is acknowledged without side effects
	if err := h.svc.HandleSimulatedCallback(context.Background(), task.Payload); err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if len(h.recorder.calls) != 1 || len(h.notifier.sent) != 2 {
		t.Fatal("duplicate delivery must not record or notify again")
	}
}

func TestHandleCallbackReward(t *testing.T) {
	h := newHarness(t, mpesa.NewSimulator(), nil)
	resp, err := h.push("0712345678", "15000")
	if err != nil {
		t.Fatalf("InitiateSTKPush: %v", err)
	}

	res, err := h.svc.HandleCallback(context.Background(), payment.CallbackBody{STKCallback: payment.STKCallback{
		CheckoutRequestID: resp.CheckoutRequestID,
		ResultCode:        0,
	}})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !res.RewardIssued || res.PointsAwarded != 150 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(h.notifier.sent) != 4 {
		t.Fatalf("expected payment and reward notifications, got %d", len(h.notifier.sent))
	}
	if len(h.mailer.businesses) != 1 || h.mailer.businesses[0] != "Kibanda Cafe" {
		t.Fatalf("expected one reward email, got %v", h.mailer.businesses)
	}
}

func TestHandleCallbackCreditsRequestedAmount(t *testing.T) {
	h := newHarness(t, mpesa.NewSimulator(), nil)
	resp, err := h.push("0712345678", "1")
	if err != nil {
		t.Fatalf("InitiateSTKPush: %v", err)
	}

	res, err := h.svc.HandleCallback(context.Background(), payment.CallbackBody{STKCallback: payment.STKCallback{
		CheckoutRequestID: resp.CheckoutRequestID,
		ResultCode:        0,
		CallbackMetadata: &payment.CallbackMetadata{Item: []payment.CallbackItem{
			{Name: "Amount", Value: 1000000},
			{Name: "MpesaReceiptNumber", Value: "QKL1X2Y3Z4"},
		}},
	}})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if res.PointsAwarded != 0 || res.RewardIssued {
		t.Fatalf("expected points from the requested KES 1 only, got %+v", res)
	}

	in := h.recorder.calls[0]
	if !in.Amount.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("recorded amount = %s, want 1", in.Amount)
	}
	if in.Metadata["amount_mismatch"] != true || in.Metadata["reported_amount"] != "1000000" {
		t.Fatalf("expected mismatch to be flagged, got %v", in.Metadata)
	}
}

func TestHandleCallbackFailure(t *testing.T) {
	h := newHarness(t, mpesa.NewSimulator(), nil)
	resp, err := h.push("0712345678", "500")
	if err != nil {
		t.Fatalf("InitiateSTKPush: %v", err)
	}

	body := payment.CallbackBody{STKCallback: payment.STKCallback{
		CheckoutRequestID: resp.CheckoutRequestID,
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	}}

	res, err := h.svc.HandleCallback(context.Background(), body)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if res.Message != msgCallbackDone || res.AlreadyProcessed {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.requests.byCheckout[resp.CheckoutRequestID].Status != payment.RequestFailed {
		t.Fatal("expected request to be marked failed")
	}
	if len(h.recorder.calls) != 0 {
		t.Fatal("failed payment must not be recorded")
	}
	if len(h.notifier.sent) != 2 || h.notifier.sent[0].Type != notification.TypePaymentFailed {
		t.Fatalf("unexpected notifications %+v", h.notifier.sent)
	}

	res, err = h.svc.HandleCallback(context.Background(), body)
	if err != nil || !res.AlreadyProcessed {
		t.Fatalf("expected repeated failure to be acknowledged, got %+v, %v", res, err)
	}
}

func TestHandleCallbackErrors(t *testing.T) {
	h := newHarness(t, mpesa.NewSimulator(), nil)

	_, err := h.svc.HandleCallback(context.Background(), payment.CallbackBody{})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	_, err = h.svc.HandleCallback(context.Background(), payment.CallbackBody{STKCallback: payment.STKCallback{CheckoutRequestID: "ws_CO_unknown"}})
	if !errors.Is(err, xerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := h.svc.HandleSimulatedCallback(context.Background(), json.RawMessage(`{not json`)); err == nil {
		t.Fatal("expected malformed payload to fail")
	}
}
