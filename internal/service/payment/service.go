// internal/service/payment/service.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tuzo-service/internal/domain/business"
	"tuzo-service/internal/domain/customer"
	"tuzo-service/internal/domain/outbox"
	"tuzo-service/internal/domain/payment"
	"tuzo-service/internal/metrics"
	"tuzo-service/internal/mpesa"
	xerrors "tuzo-service/internal/pkg/errors"
	"tuzo-service/internal/pkg/phone"
	"tuzo-service/internal/service/loyalty"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	msgMissingFields    = "Missing required fields: phone, amount, businessId"
	msgCustomerNotFound = "Customer not found. Please register first."
	msgSTKInitiated     = "STK push initiated successfully"
	msgCallbackDone     = "Callback processed"
	msgCallbackRepeated = "Callback already processed"
)

type BusinessReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*business.Business, error)
}

type CustomerReader interface {
	FindByBusinessAndPhone(ctx context.Context, businessID uuid.UUID, phone string) (*customer.Customer, error)
}

// RequestStore persists pending STK pushes.
type RequestStore interface {
	// CreatePending stores req and, when task is non-nil, enqueues it in the same transaction.
	CreatePending(ctx context.Context, req *payment.Request, task *outbox.Task) error
	FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*payment.Request, error)
	// MarkFailed reports false when the request had already reached a final state.
	MarkFailed(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc string) (bool, error)
}

type Gateway interface {
	InitiateSTKPush(ctx context.Context, in mpesa.STKPushRequest) (*mpesa.STKPushResult, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, max int64, window time.Duration) (bool, error)
}

type Recorder interface {
	Record(ctx context.Context, in loyalty.RecordInput) (*loyalty.RecordResult, error)
}

type Options struct {
	SimulatedDelay time.Duration
	RateLimit      int64
	RateWindow     time.Duration
}

// PaymentService is the M-PESA proxy: it starts STK pushes and turns provider
// callbacks into loyalty transactions.
type PaymentService struct {
	businesses BusinessReader
	customers  CustomerReader
	requests   RequestStore
	gateway    Gateway
	limiter    RateLimiter
	recorder   Recorder
	effects    *Effects
	opts       Options
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewPaymentService(
	businesses BusinessReader,
	customers CustomerReader,
	requests RequestStore,
	gateway Gateway,
	limiter RateLimiter,
	recorder Recorder,
	effects *Effects,
	opts Options,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		businesses: businesses,
		customers:  customers,
		requests:   requests,
		gateway:    gateway,
		limiter:    limiter,
		recorder:   recorder,
		effects:    effects,
		opts:       opts,
		logger:     logger,
		tracer:     otel.Tracer("tuzo-service/payment"),
		now:        time.Now,
	}
}

// InitiateSTKPush validates the request, prompts the payer and records the
// pending payment. It returns as soon as the provider accepts the push.
func (s *PaymentService) InitiateSTKPush(ctx context.Context, in payment.STKPushRequest) (*payment.STKPushResponse, error) {
	ctx, span := s.tracer.Start(ctx, "payment.initiate_stk_push")
	defer span.End()

	resp, err := s.initiate(ctx, in)
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, xerrors.ErrProvider):
		outcome = "provider_error"
	case errors.Is(err, xerrors.ErrInvalidInput):
		outcome = "invalid"
	case errors.Is(err, xerrors.ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	metrics.STKPushTotal.WithLabelValues(outcome).Inc()
	if err != nil {
		span.RecordError(err)
	}
	return resp, err
}

func (s *PaymentService) initiate(ctx context.Context, in payment.STKPushRequest) (*payment.STKPushResponse, error) {
	if strings.TrimSpace(in.Phone) == "" || strings.TrimSpace(in.Amount) == "" || strings.TrimSpace(in.BusinessID) == "" {
		return nil, xerrors.Invalid(msgMissingFields)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil {
		return nil, xerrors.Invalid("Amount must be a number")
	}
	if !amount.IsPositive() {
		return nil, xerrors.Invalid("Amount must be greater than zero")
	}
	if !amount.Equal(amount.Truncate(0)) {
		return nil, xerrors.Invalid("Amount must be a whole number of shillings")
	}

	businessID, err := uuid.Parse(strings.TrimSpace(in.BusinessID))
	if err != nil {
		return nil, xerrors.Invalid("Invalid businessId")
	}

	canonical, err := phone.Normalize(in.Phone)
	if err != nil {
		return nil, xerrors.Invalid("Invalid phone number. Use 07XXXXXXXX or 2547XXXXXXXX")
	}

	if s.limiter != nil && s.opts.RateLimit > 0 {
		allowed, err := s.limiter.Allow(ctx, "stk:"+canonical, s.opts.RateLimit, s.opts.RateWindow)
		if err != nil {
			s.logger.Warn("rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			return nil, xerrors.Invalid("Too many payment requests for this number. Please wait a minute and try again.")
		}
	}

	biz, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.NotFound("Business not found")
		}
		return nil, fmt.Errorf("failed to load business: %w", err)
	}

	cust, err := s.customers.FindByBusinessAndPhone(ctx, businessID, canonical)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.NotFound(msgCustomerNotFound)
		}
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	msisdn := phone.MSISDN(canonical)
	result, err := s.gateway.InitiateSTKPush(ctx, mpesa.STKPushRequest{
		PhoneNumber:      msisdn,
		Amount:           amount.IntPart(),
		AccountReference: biz.Name,
		Description:      strings.TrimSpace(in.Description),
	})
	if err != nil {
		s.logger.Warn("stk push failed",
			zap.String("business_id", businessID.String()),
			zap.String("phone", phone.Mask(canonical)),
			zap.Error(err),
		)
		return nil, err
	}

	req := &payment.Request{
		ID:                uuid.New(),
		BusinessID:        businessID,
		CustomerID:        cust.ID,
		Phone:             canonical,
		Amount:            amount,
		Description:       strings.TrimSpace(in.Description),
		CheckoutRequestID: result.CheckoutRequestID,
		MerchantRequestID: result.MerchantRequestID,
		Status:            payment.RequestPending,
		CreatedAt:         s.now().UTC(),
	}

	var task *outbox.Task
	if result.Simulated {
		env := mpesa.SimulatedCallback(result, amount.IntPart(), msisdn, s.now())
		task, err = outbox.NewTask(outbox.KindSimulatedCallback, env, s.now().Add(s.opts.SimulatedDelay))
		if err != nil {
			return nil, fmt.Errorf("failed to build simulated callback: %w", err)
		}
	}

	if err := s.requests.CreatePending(ctx, req, task); err != nil {
		return nil, fmt.Errorf("failed to save payment request: %w", err)
	}

	s.logger.Info("stk push initiated",
		zap.String("checkout_request_id", result.CheckoutRequestID),
		zap.String("business_id", businessID.String()),
		zap.String("phone", phone.Mask(canonical)),
		zap.String("amount", amount.String()),
		zap.Bool("simulated", result.Simulated),
	)

	return &payment.STKPushResponse{
		Success:           true,
		Message:           msgSTKInitiated,
		TransactionID:     result.CheckoutRequestID,
		CheckoutRequestID: result.CheckoutRequestID,
		MerchantRequestID: result.MerchantRequestID,
		CustomerMessage:   result.CustomerMessage,
	}, nil
}

// HandleCallback applies a Daraja STK callback. Repeated deliveries of the
// same CheckoutRequestID are acknowledged without side effects.
func (s *PaymentService) HandleCallback(ctx context.Context, body payment.CallbackBody) (*payment.CallbackResult, error) {
	cb := body.STKCallback
	ctx, span := s.tracer.Start(ctx, "payment.handle_callback",
		trace.WithAttributes(
			attribute.String("mpesa.checkout_request_id", cb.CheckoutRequestID),
			attribute.Int("mpesa.result_code", cb.ResultCode),
		))
	defer span.End()

	if strings.TrimSpace(cb.CheckoutRequestID) == "" {
		metrics.CallbacksTotal.WithLabelValues("invalid").Inc()
		return nil, xerrors.Invalid("Missing CheckoutRequestID in callback")
	}

	req, err := s.requests.FindByCheckoutID(ctx, cb.CheckoutRequestID)
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues("unknown").Inc()
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.NotFound("Payment request not found")
		}
		return nil, fmt.Errorf("failed to load payment request: %w", err)
	}

	if cb.ResultCode != 0 {
		return s.handleFailure(ctx, req, cb)
	}

	// Points are earned on the amount we asked the payer for, never on a
	// figure supplied by the callback.
	metadata := map[string]interface{}{
		"merchant_request_id": cb.MerchantRequestID,
		"result_desc":         cb.ResultDesc,
		"payer_msisdn":        cb.PhoneNumber(),
	}
	if reported, ok := cb.Amount(); ok && !reported.Equal(req.Amount) {
		metrics.CallbacksTotal.WithLabelValues("amount_mismatch").Inc()
		s.logger.Warn("callback amount differs from requested amount",
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.String("requested", req.Amount.String()),
			zap.String("reported", reported.String()),
		)
		metadata["amount_mismatch"] = true
		metadata["reported_amount"] = reported.String()
	}

	res, err := s.recorder.Record(ctx, loyalty.RecordInput{
		BusinessID:        req.BusinessID,
		CustomerID:        req.CustomerID,
		Amount:            req.Amount,
		CheckoutRequestID: req.CheckoutRequestID,
		Receipt:           cb.Receipt(),
		Phone:             req.Phone,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		Metadata:          metadata,
	})
	if errors.Is(err, xerrors.ErrAlreadyProcessed) {
		metrics.CallbacksTotal.WithLabelValues("duplicate").Inc()
		s.logger.Info("duplicate callback ignored", zap.String("checkout_request_id", cb.CheckoutRequestID))
		return &payment.CallbackResult{Success: true, Message: msgCallbackRepeated, AlreadyProcessed: true}, nil
	}
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	metrics.CallbacksTotal.WithLabelValues("completed").Inc()
	metrics.PointsAwardedTotal.Add(float64(res.Transaction.PointsAwarded))
	if res.Reward != nil {
		metrics.RewardsIssuedTotal.Inc()
	}

	s.logger.Info("payment completed",
		zap.String("checkout_request_id", cb.CheckoutRequestID),
		zap.String("transaction_id", res.Transaction.ID.String()),
		zap.Int64("points_awarded", res.Transaction.PointsAwarded),
		zap.Bool("reward_issued", res.Reward != nil),
	)

	s.effects.PaymentCompleted(ctx, req, res)

	return &payment.CallbackResult{
		Success:       true,
		Message:       msgCallbackDone,
		TransactionID: res.Transaction.ID.String(),
		PointsAwarded: res.Transaction.PointsAwarded,
		RewardIssued:  res.Reward != nil,
	}, nil
}

func (s *PaymentService) handleFailure(ctx context.Context, req *payment.Request, cb payment.STKCallback) (*payment.CallbackResult, error) {
	updated, err := s.requests.MarkFailed(ctx, cb.CheckoutRequestID, cb.ResultCode, cb.ResultDesc)
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	if !updated {
		metrics.CallbacksTotal.WithLabelValues("duplicate").Inc()
		return &payment.CallbackResult{Success: true, Message: msgCallbackRepeated, AlreadyProcessed: true}, nil
	}

	metrics.CallbacksTotal.WithLabelValues("failed").Inc()
	s.logger.Info("payment failed",
		zap.String("checkout_request_id", cb.CheckoutRequestID),
		zap.Int("result_code", cb.ResultCode),
		zap.String("result_desc", cb.ResultDesc),
	)

	s.effects.PaymentFailed(ctx, req, cb.ResultDesc)
	return &payment.CallbackResult{Success: true, Message: msgCallbackDone}, nil
}

// HandleSimulatedCallback runs a simulated callback scheduled on the outbox.
func (s *PaymentService) HandleSimulatedCallback(ctx context.Context, payload json.RawMessage) error {
	var env payment.CallbackEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("invalid simulated callback payload: %w", err)
	}
	_, err := s.HandleCallback(ctx, env.Body)
	return err
}
