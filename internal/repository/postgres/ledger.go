// internal/repository/postgres/ledger.go
package postgres

import (
	"context"

	"tuzo-service/internal/domain/business"
	"tuzo-service/internal/domain/outbox"
	"tuzo-service/internal/domain/reward"
	"tuzo-service/internal/domain/transaction"
	"tuzo-service/internal/service/loyalty"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Ledger runs the loyalty recorder's writes in one pgx transaction.
type Ledger struct {
	db      *DB
	rewards *RewardRepository
}

func NewLedger(db *DB, rewards *RewardRepository) *Ledger {
	return &Ledger{db: db, rewards: rewards}
}

func (l *Ledger) WithinTx(ctx context.Context, fn func(tx loyalty.LedgerTx) error) error {
	return l.db.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&ledgerTx{tx: tx, rewards: l.rewards})
	})
}

type ledgerTx struct {
	tx      pgx.Tx
	rewards *RewardRepository
}

func (t *ledgerTx) LoyaltySettings(ctx context.Context, businessID uuid.UUID) (*business.LoyaltySettings, error) {
	return loyaltySettingsTx(ctx, t.tx, businessID)
}

func (t *ledgerTx) InsertTransaction(ctx context.Context, txn *transaction.Transaction) (bool, error) {
	return insertTransactionTx(ctx, t.tx, txn)
}

func (t *ledgerTx) IncrementCustomerPoints(ctx context.Context, businessID, customerID uuid.UUID, points int64) (int64, error) {
	return incrementPointsTx(ctx, t.tx, businessID, customerID, points)
}

func (t *ledgerTx) LockCustomerPoints(ctx context.Context, businessID, customerID uuid.UUID) (int64, error) {
	return lockPointsTx(ctx, t.tx, businessID, customerID)
}

func (t *ledgerTx) SetCustomerPoints(ctx context.Context, customerID uuid.UUID, points int64) error {
	return setPointsTx(ctx, t.tx, customerID, points)
}

func (t *ledgerTx) HasUnredeemedReward(ctx context.Context, businessID, customerID uuid.UUID) (bool, error) {
	return hasUnredeemedTx(ctx, t.tx, businessID, customerID)
}

func (t *ledgerTx) CreateReward(ctx context.Context, rw *reward.Reward) error {
	return t.rewards.CreateWithTx(ctx, t.tx, rw)
}

func (t *ledgerTx) GetRewardForUpdate(ctx context.Context, rewardID uuid.UUID) (*reward.Reward, error) {
	return rewardForUpdateTx(ctx, t.tx, rewardID)
}

func (t *ledgerTx) MarkRewardRedeemed(ctx context.Context, rewardID uuid.UUID, pointsRedeemed int64) (*reward.Reward, error) {
	return markRedeemedTx(ctx, t.tx, rewardID, pointsRedeemed)
}

func (t *ledgerTx) CompletePaymentRequest(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc string) error {
	return completePaymentRequestTx(ctx, t.tx, checkoutRequestID, resultCode, resultDesc)
}

func (t *ledgerTx) EnqueueTask(ctx context.Context, task *outbox.Task) error {
	return enqueueTaskTx(ctx, t.tx, task)
}
