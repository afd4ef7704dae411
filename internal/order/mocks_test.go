package order_test

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/notify"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/streak"
)

type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) Store(ctx context.Context, name string) (*catalog.Store, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Store), args.Error(1)
}

func (m *MockLookup) Branch(ctx context.Context, store, name string) (*catalog.Branch, error) {
	args := m.Called(ctx, store, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Branch), args.Error(1)
}

func (m *MockLookup) Product(ctx context.Context, store, branch, name string) (*catalog.Product, error) {
	args := m.Called(ctx, store, branch, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockLookup) Class(ctx context.Context, name string) (*catalog.Class, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Class), args.Error(1)
}

func (m *MockLookup) VendorStore(ctx context.Context, vendor, name string) (*catalog.Store, error) {
	args := m.Called(ctx, vendor, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Store), args.Error(1)
}

func (m *MockLookup) VendorClass(ctx context.Context, vendor, name string) (*catalog.Class, error) {
	args := m.Called(ctx, vendor, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Class), args.Error(1)
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ReplacePending(ctx context.Context, o *order.PendingOrder) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockRepository) PendingByUser(ctx context.Context, username string) (*order.PendingOrder, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.PendingOrder), args.Error(1)
}

func (m *MockRepository) PendingByUUID(ctx context.Context, id uuid.UUID) (*order.PendingOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.PendingOrder), args.Error(1)
}

func (m *MockRepository) IsConfirmed(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) Confirm(ctx context.Context, o *order.ConfirmedOrder) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockRepository) FindConfirmed(ctx context.Context, vendor string, filter order.Filter, paging order.Paging) ([]order.ConfirmedOrder, int64, error) {
	args := m.Called(ctx, vendor, filter, paging)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]order.ConfirmedOrder), args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) ConfirmedByRequester(ctx context.Context, username string, paging order.Paging) ([]order.ConfirmedOrder, int64, error) {
	args := m.Called(ctx, username, paging)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]order.ConfirmedOrder), args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) DueReminders(ctx context.Context, now time.Time, limit int) ([]order.ConfirmedOrder, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.ConfirmedOrder), args.Error(1)
}

func (m *MockRepository) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

type MockStreakReader struct {
	mock.Mock
}

func (m *MockStreakReader) UserStreak(ctx context.Context, username string) (*streak.UserStreak, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*streak.UserStreak), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Broadcast(ctx context.Context, usernames []string, alert notify.Alert) error {
	return m.Called(ctx, usernames, alert).Error(0)
}
