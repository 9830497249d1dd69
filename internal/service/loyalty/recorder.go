// internal/service/loyalty/recorder.go
package loyalty

import (
	"context"
	"fmt"
	"time"

	"tuzo-service/internal/domain/business"
	"tuzo-service/internal/domain/outbox"
	"tuzo-service/internal/domain/reward"
	"tuzo-service/internal/domain/transaction"
	xerrors "tuzo-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerTx is the set of writes the recorder performs inside one database
// transaction.
type LedgerTx interface {
	LoyaltySettings(ctx context.Context, businessID uuid.UUID) (*business.LoyaltySettings, error)
	// InsertTransaction reports false when the checkout reference was already
	// recorded. It may overwrite t.PointsAwarded with the stored award.
	InsertTransaction(ctx context.Context, t *transaction.Transaction) (bool, error)
	IncrementCustomerPoints(ctx context.Context, businessID, customerID uuid.UUID, points int64) (int64, error)
	LockCustomerPoints(ctx context.Context, businessID, customerID uuid.UUID) (int64, error)
	SetCustomerPoints(ctx context.Context, customerID uuid.UUID, points int64) error
	HasUnredeemedReward(ctx context.Context, businessID, customerID uuid.UUID) (bool, error)
	CreateReward(ctx context.Context, r *reward.Reward) error
	GetRewardForUpdate(ctx context.Context, rewardID uuid.UUID) (*reward.Reward, error)
	MarkRewardRedeemed(ctx context.Context, rewardID uuid.UUID, pointsRedeemed int64) (*reward.Reward, error)
	CompletePaymentRequest(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc string) error
	EnqueueTask(ctx context.Context, task *outbox.Task) error
}

// Ledger runs fn in a transaction, committing only when fn returns nil.
type Ledger interface {
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

type RecordInput struct {
	BusinessID        uuid.UUID
	CustomerID        uuid.UUID
	Amount            decimal.Decimal
	CheckoutRequestID string
	Receipt           string
	Phone             string
	ResultCode        int
	ResultDesc        string
	Metadata          map[string]interface{}
}

type RecordResult struct {
	Business    business.LoyaltySettings
	Transaction *transaction.Transaction
	Balance     int64
	Reward      *reward.Reward
}

// Recorder turns a confirmed payment into a transaction, a balance increment
// and, when earned, a reward. All of it commits together or not at all.
type Recorder struct {
	ledger   Ledger
	exchange string
	logger   *zap.Logger
	now      func() time.Time
}

// NewRecorder creates a recorder. Domain events are enqueued to exchange when
// it is non-empty.
func NewRecorder(ledger Ledger, exchange string, logger *zap.Logger) *Recorder {
	return &Recorder{
		ledger:   ledger,
		exchange: exchange,
		logger:   logger,
		now:      time.Now,
	}
}

// Record applies a successful payment. A repeated checkout reference returns
// xerrors.ErrAlreadyProcessed and changes nothing.
func (r *Recorder) Record(ctx context.Context, in RecordInput) (*RecordResult, error) {
	if in.CheckoutRequestID == "" {
		return nil, xerrors.Invalid("checkout reference is required")
	}
	if !in.Amount.IsPositive() {
		return nil, xerrors.Invalid("amount must be greater than zero")
	}

	var result *RecordResult
	err := r.ledger.WithinTx(ctx, func(tx LedgerTx) error {
		settings, err := tx.LoyaltySettings(ctx, in.BusinessID)
		if err != nil {
			return fmt.Errorf("failed to load loyalty settings: %w", err)
		}

		points := CalculatePoints(in.Amount, settings.PointsPerShilling)
		txn := &transaction.Transaction{
			ID:                uuid.New(),
			BusinessID:        in.BusinessID,
			CustomerID:        in.CustomerID,
			Amount:            in.Amount,
			PointsAwarded:     points,
			CheckoutRequestID: in.CheckoutRequestID,
			Phone:             in.Phone,
			Status:            transaction.StatusCompleted,
			Metadata:          in.Metadata,
			CreatedAt:         r.now().UTC(),
		}
		if in.Receipt != "" {
			receipt := in.Receipt
			txn.MpesaReceipt = &receipt
		}

		inserted, err := tx.InsertTransaction(ctx, txn)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		if !inserted {
			return xerrors.ErrAlreadyProcessed
		}
		if txn.PointsAwarded != points {
			r.logger.Warn("stored points differ from local calculation",
				zap.String("checkout_request_id", in.CheckoutRequestID),
				zap.Int64("local", points),
				zap.Int64("stored", txn.PointsAwarded),
			)
		}

		balance, err := tx.IncrementCustomerPoints(ctx, in.BusinessID, in.CustomerID, txn.PointsAwarded)
		if err != nil {
			return fmt.Errorf("failed to credit points: %w", err)
		}

		issued, err := r.issueReward(ctx, tx, settings, in.CustomerID, balance)
		if err != nil {
			return err
		}

		if err := tx.CompletePaymentRequest(ctx, in.CheckoutRequestID, in.ResultCode, in.ResultDesc); err != nil {
			return fmt.Errorf("failed to complete payment request: %w", err)
		}

		if err := r.enqueueEvent(ctx, tx, outbox.RoutingTransactionCompleted, map[string]interface{}{
			"transaction_id":      txn.ID,
			"business_id":         txn.BusinessID,
			"customer_id":         txn.CustomerID,
			"amount":              txn.Amount,
			"points_awarded":      txn.PointsAwarded,
			"balance":             balance,
			"checkout_request_id": txn.CheckoutRequestID,
		}); err != nil {
			return err
		}
		if issued != nil {
			if err := r.enqueueEvent(ctx, tx, outbox.RoutingRewardIssued, issued); err != nil {
				return err
			}
		}

		result = &RecordResult{
			Business:    *settings,
			Transaction: txn,
			Balance:     balance,
			Reward:      issued,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("payment recorded",
		zap.String("checkout_request_id", in.CheckoutRequestID),
		zap.Int64("points", result.Transaction.PointsAwarded),
		zap.Int64("balance", result.Balance),
		zap.Bool("reward_issued", result.Reward != nil),
	)
	return result, nil
}

func (r *Recorder) issueReward(ctx context.Context, tx LedgerTx, settings *business.LoyaltySettings, customerID uuid.UUID, balance int64) (*reward.Reward, error) {
	if settings.RewardThreshold <= 0 || balance < settings.RewardThreshold {
		return nil, nil
	}

	has, err := tx.HasUnredeemedReward(ctx, settings.BusinessID, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check rewards: %w", err)
	}
	if !ShouldIssueReward(balance, settings.RewardThreshold, has) {
		return nil, nil
	}

	rw := &reward.Reward{
		ID:               uuid.New(),
		BusinessID:       settings.BusinessID,
		CustomerID:       customerID,
		RewardType:       reward.TypeThreshold,
		RewardValue:      settings.RewardValue,
		PointsAtIssuance: balance,
		IssuedAt:         r.now().UTC(),
	}
	if err := tx.CreateReward(ctx, rw); err != nil {
		return nil, fmt.Errorf("failed to create reward: %w", err)
	}
	return rw, nil
}

// Redeem marks an unredeemed reward of businessID as used and deducts the
// business threshold from the customer's balance.
func (r *Recorder) Redeem(ctx context.Context, businessID, rewardID uuid.UUID) (*reward.RedeemResult, error) {
	var result *reward.RedeemResult
	err := r.ledger.WithinTx(ctx, func(tx LedgerTx) error {
		rw, err := tx.GetRewardForUpdate(ctx, rewardID)
		if err != nil {
			return err
		}
		if rw.BusinessID != businessID {
			return xerrors.NotFound("reward not found")
		}
		if rw.IsRedeemed {
			return xerrors.Invalid("reward has already been redeemed")
		}

		settings, err := tx.LoyaltySettings(ctx, businessID)
		if err != nil {
			return fmt.Errorf("failed to load loyalty settings: %w", err)
		}

		balance, err := tx.LockCustomerPoints(ctx, businessID, rw.CustomerID)
		if err != nil {
			return fmt.Errorf("failed to lock customer: %w", err)
		}
		newBalance, deducted := PointsAfterRedemption(balance, settings.RewardThreshold)

		redeemed, err := tx.MarkRewardRedeemed(ctx, rewardID, deducted)
		if err != nil {
			return fmt.Errorf("failed to redeem reward: %w", err)
		}
		if err := tx.SetCustomerPoints(ctx, rw.CustomerID, newBalance); err != nil {
			return fmt.Errorf("failed to deduct points: %w", err)
		}

		if err := r.enqueueEvent(ctx, tx, outbox.RoutingRewardRedeemed, map[string]interface{}{
			"reward_id":       redeemed.ID,
			"business_id":     redeemed.BusinessID,
			"customer_id":     redeemed.CustomerID,
			"points_deducted": deducted,
			"balance":         newBalance,
		}); err != nil {
			return err
		}

		result = &reward.RedeemResult{Reward: redeemed, PointsDeducted: deducted, NewBalance: newBalance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Recorder) enqueueEvent(ctx context.Context, tx LedgerTx, routingKey string, body interface{}) error {
	if r.exchange == "" {
		return nil
	}
	task, err := outbox.NewTask(outbox.KindPublishEvent, outbox.EventPayload{
		Exchange:   r.exchange,
		RoutingKey: routingKey,
		Body:       body,
	}, r.now())
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", routingKey, err)
	}
	if err := tx.EnqueueTask(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", routingKey, err)
	}
	return nil
}
