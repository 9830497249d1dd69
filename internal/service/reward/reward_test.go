package reward

import (
	"context"
	"errors"
	"testing"

	"tuzo-service/internal/domain/notification"
	"tuzo-service/internal/domain/reward"
	xerrors "tuzo-service/internal/pkg/errors"
	"tuzo-service/internal/realtime"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type stubRedeemer struct {
	result *reward.RedeemResult
	err    error
}

func (s stubRedeemer) Redeem(ctx context.Context, businessID, rewardID uuid.UUID) (*reward.RedeemResult, error) {
	return s.result, s.err
}

type stubNotifier struct {
	sent []*notification.CreateNotificationRequest
}

func (s *stubNotifier) Create(ctx context.Context, req *notification.CreateNotificationRequest) (*notification.Notification, error) {
	s.sent = append(s.sent, req)
	return &notification.Notification{}, nil
}

type emptyRepo struct{}

func (emptyRepo) List(ctx context.Context, businessID uuid.UUID, filters *reward.RewardListFilters) ([]reward.Reward, int64, error) {
	return nil, 0, nil
}

func TestRedeemNotifiesAndPublishes(t *testing.T) {
	bizID, custID := uuid.New(), uuid.New()
	rw := &reward.Reward{ID: uuid.New(), BusinessID: bizID, CustomerID: custID, RewardValue: decimal.NewFromInt(50), IsRedeemed: true}

	broker := realtime.NewMemoryBroker()
	defer broker.Close()
	sub := broker.Subscribe(realtime.TopicRewards, realtime.TopicCustomers)
	defer sub.Close()

	notifier := &stubNotifier{}
	svc := NewRewardService(emptyRepo{}, stubRedeemer{result: &reward.RedeemResult{Reward: rw, PointsDeducted: 100, NewBalance: 20}}, notifier, broker, zap.NewNop())

	res, err := svc.Redeem(context.Background(), bizID, rw.ID)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if res.NewBalance != 20 {
		t.Fatalf("balance = %d", res.NewBalance)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Recipient.ID != custID {
		t.Fatalf("unexpected notifications %+v", notifier.sent)
	}

	topics := map[realtime.Topic]bool{}
	for i := 0; i < 2; i++ {
		ev := <-sub.C
		topics[ev.Topic] = true
	}
	if !topics[realtime.TopicRewards] || !topics[realtime.TopicCustomers] {
		t.Fatalf("missing events: %v", topics)
	}
}

func TestRedeemPropagatesErrors(t *testing.T) {
	notifier := &stubNotifier{}
	svc := NewRewardService(emptyRepo{}, stubRedeemer{err: xerrors.Invalid("reward has already been redeemed")}, notifier, nil, zap.NewNop())

	if _, err := svc.Redeem(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatal("no notification expected on failure")
	}
}
