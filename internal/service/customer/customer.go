// internal/service/customer/customer.go
package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tuzo-service/internal/domain/business"
	"tuzo-service/internal/domain/customer"
	xerrors "tuzo-service/internal/pkg/errors"
	"tuzo-service/internal/pkg/phone"
	"tuzo-service/internal/realtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const msgInvalidPhone = "Invalid phone number. Use 07XXXXXXXX or 2547XXXXXXXX"

type Repository interface {
	Create(ctx context.Context, c *customer.Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error)
	FindByBusinessAndPhone(ctx context.Context, businessID uuid.UUID, phone string) (*customer.Customer, error)
	List(ctx context.Context, businessID uuid.UUID, filters *customer.CustomerListFilters) ([]customer.Customer, int64, error)
}

type BusinessReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*business.Business, error)
}

type CustomerService struct {
	customers  Repository
	businesses BusinessReader
	broker     realtime.Broker
	logger     *zap.Logger
}

func NewCustomerService(customers Repository, businesses BusinessReader, broker realtime.Broker, logger *zap.Logger) *CustomerService {
	return &CustomerService{
		customers:  customers,
		businesses: businesses,
		broker:     broker,
		logger:     logger,
	}
}

// Register creates a customer at a business. The phone is stored in canonical form.
func (s *CustomerService) Register(ctx context.Context, req *customer.RegisterCustomerRequest) (*customer.Customer, error) {
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return nil, xerrors.Invalid("Full name is required")
	}

	canonical, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, xerrors.Invalid(msgInvalidPhone)
	}

	if _, err := s.businesses.GetByID(ctx, req.BusinessID); err != nil {
		return nil, err
	}

	c := &customer.Customer{
		BusinessID: req.BusinessID,
		FullName:   name,
		Phone:      canonical,
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		c.Email = &email
	}

	if err := s.customers.Create(ctx, c); err != nil {
		if errors.Is(err, xerrors.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create customer", zap.Error(err))
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	s.logger.Info("customer registered",
		zap.String("customer_id", c.ID.String()),
		zap.String("business_id", c.BusinessID.String()),
		zap.String("phone", phone.Mask(c.Phone)),
	)

	s.publish(ctx, c)
	return c, nil
}

// Lookup reports whether a phone is registered at a business.
func (s *CustomerService) Lookup(ctx context.Context, businessID uuid.UUID, rawPhone string) (*customer.LookupResponse, error) {
	canonical, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, xerrors.Invalid(msgInvalidPhone)
	}

	c, err := s.customers.FindByBusinessAndPhone(ctx, businessID, canonical)
	if errors.Is(err, xerrors.ErrNotFound) {
		return &customer.LookupResponse{Exists: false, Phone: canonical}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up customer: %w", err)
	}

	return &customer.LookupResponse{Exists: true, Phone: canonical, Customer: c}, nil
}

// Get returns a customer of businessID. Customers of other businesses are reported as not found.
func (s *CustomerService) Get(ctx context.Context, businessID, customerID uuid.UUID) (*customer.Customer, error) {
	c, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if c.BusinessID != businessID {
		return nil, xerrors.NotFound("Customer not found")
	}
	return c, nil
}

func (s *CustomerService) List(ctx context.Context, businessID uuid.UUID, filters *customer.CustomerListFilters) (*customer.CustomerListResponse, error) {
	customers, total, err := s.customers.List(ctx, businessID, filters)
	if err != nil {
		return nil, err
	}

	pages := 0
	if filters.PageSize > 0 {
		pages = int((total + int64(filters.PageSize) - 1) / int64(filters.PageSize))
	}

	return &customer.CustomerListResponse{
		Customers:  customers,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: pages,
	}, nil
}

func (s *CustomerService) publish(ctx context.Context, c *customer.Customer) {
	if s.broker == nil {
		return
	}
	ev, err := realtime.NewEvent(realtime.TopicCustomers, realtime.OpInsert, &c.BusinessID, &c.ID, c)
	if err != nil {
		return
	}
	if err := s.broker.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish customer event", zap.Error(err))
	}
}
