package profile

import (
	"context"
	"errors"
	"testing"

	"tuzo-service/internal/domain/business"
	"tuzo-service/internal/domain/customer"
	"tuzo-service/internal/domain/profile"
	"tuzo-service/internal/domain/reward"
	"tuzo-service/internal/domain/transaction"
	xerrors "tuzo-service/internal/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memStore map[uuid.UUID]*profile.UserProfile

func (m memStore) FindByID(ctx context.Context, id uuid.UUID) (*profile.UserProfile, error) {
	p, ok := m[id]
	if !ok {
		return nil, xerrors.NotFound("Profile not found")
	}
	return p, nil
}

func (m memStore) Upsert(ctx context.Context, p *profile.UserProfile) error {
	cp := *p
	m[p.ID] = &cp
	return nil
}

type world struct {
	biz  *business.Business
	cust *customer.Customer
}

func (w world) GetByID(ctx context.Context, id uuid.UUID) (*business.Business, error) {
	if id != w.biz.ID {
		return nil, xerrors.NotFound("Business not found")
	}
	return w.biz, nil
}

type customers struct{ world }

func (c customers) FindByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	if id != c.cust.ID {
		return nil, xerrors.NotFound("Customer not found")
	}
	return c.cust, nil
}

func (c customers) FindByBusinessAndPhone(ctx context.Context, businessID uuid.UUID, phone string) (*customer.Customer, error) {
	if businessID != c.cust.BusinessID || phone != c.cust.Phone {
		return nil, xerrors.NotFound("Customer not found")
	}
	return c.cust, nil
}

type lists struct{}

func (lists) List(ctx context.Context, businessID uuid.UUID, f *reward.RewardListFilters) ([]reward.Reward, int64, error) {
	return []reward.Reward{{ID: uuid.New(), CustomerID: *f.CustomerID}}, 1, nil
}

type txnLists struct{}

func (txnLists) List(ctx context.Context, businessID uuid.UUID, f *transaction.TransactionListFilters) ([]transaction.Transaction, int64, error) {
	return []transaction.Transaction{{ID: uuid.New()}, {ID: uuid.New()}}, 2, nil
}

func newService() (*ProfileService, memStore, world) {
	biz := &business.Business{ID: uuid.New(), Name: "Kinyozi"}
	w := world{biz: biz, cust: &customer.Customer{ID: uuid.New(), BusinessID: biz.ID, Phone: "+254712345678", Points: 40}}
	store := memStore{}
	return NewProfileService(store, w, customers{w}, lists{}, txnLists{}, zap.NewNop()), store, w
}

func TestLinkCustomerAndDashboard(t *testing.T) {
	svc, store, w := newService()
	user := uuid.New()
	ctx := context.Background()

	if p, err := svc.Resolve(ctx, user); err != nil || p != nil {
		t.Fatalf("expected no profile yet, got %v %v", p, err)
	}

	if _, err := svc.LinkCustomer(ctx, user, "254712345678", &profile.LinkCustomerRequest{BusinessID: w.biz.ID, Phone: "0712345678"}); err != nil {
		t.Fatalf("LinkCustomer: %v", err)
	}
	if store[user].Role != profile.RoleCustomer || *store[user].CustomerID != w.cust.ID {
		t.Fatalf("unexpected profile %+v", store[user])
	}

	d, err := svc.Dashboard(ctx, user)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.Customer.Points != 40 || d.Business.Name != "Kinyozi" {
		t.Fatalf("unexpected dashboard %+v", d)
	}
	if len(d.Rewards) != 1 || len(d.RecentTransactions) != 2 {
		t.Fatalf("unexpected lists: %d rewards, %d transactions", len(d.Rewards), len(d.RecentTransactions))
	}
}

func TestLinkCustomerErrors(t *testing.T) {
	svc, store, w := newService()
	ctx := context.Background()

	if _, err := svc.LinkCustomer(ctx, uuid.New(), "+254799999999", &profile.LinkCustomerRequest{BusinessID: w.biz.ID, Phone: "0799999999"}); !errors.Is(err, xerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	owner := uuid.New()
	store[owner] = &profile.UserProfile{ID: owner, Role: profile.RoleBusinessOwner, BusinessID: &w.biz.ID}
	if _, err := svc.LinkCustomer(ctx, owner, "0712345678", &profile.LinkCustomerRequest{BusinessID: w.biz.ID, Phone: "0712345678"}); !errors.Is(err, xerrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestLinkCustomerRequiresVerifiedPhone(t *testing.T) {
	svc, store, w := newService()
	ctx := context.Background()

	tests := []struct {
		name     string
		verified string
	}{
		{"no phone claim", ""},
		{"different number", "254700000001"},
		{"malformed claim", "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := uuid.New()
			_, err := svc.LinkCustomer(ctx, user, tt.verified, &profile.LinkCustomerRequest{BusinessID: w.biz.ID, Phone: "0712345678"})
			if !errors.Is(err, xerrors.ErrForbidden) {
				t.Fatalf("expected forbidden, got %v", err)
			}
			if _, ok := store[user]; ok {
				t.Fatal("profile must not be written on refusal")
			}
		})
	}
}
