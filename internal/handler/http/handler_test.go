package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/calendar"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/catalog"
	marketHttp "github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/handler/http"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/notify"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/streak"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) SubmitOrder(ctx context.Context, username string, cart order.Cart) (uuid.UUID, error) {
	args := m.Called(ctx, username, cart)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockOrderService) PendingOrder(ctx context.Context, username string) (*order.PendingOrder, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.PendingOrder), args.Error(1)
}

func (m *MockOrderService) ConfirmOrder(ctx context.Context, vendor string, id uuid.UUID) (*order.ConfirmedOrder, error) {
	args := m.Called(ctx, vendor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.ConfirmedOrder), args.Error(1)
}

func (m *MockOrderService) FindConfirmedOrders(ctx context.Context, vendor string, filter order.Filter, paging order.Paging) (*order.Page, error) {
	args := m.Called(ctx, vendor, filter, paging)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Page), args.Error(1)
}

func (m *MockOrderService) CustomerConfirmedOrders(ctx context.Context, username string, paging order.Paging) (*order.Page, error) {
	args := m.Called(ctx, username, paging)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Page), args.Error(1)
}

type MockStreakService struct {
	mock.Mock
}

func (m *MockStreakService) UserStreak(ctx context.Context, username string) (*streak.UserStreak, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*streak.UserStreak), args.Error(1)
}

func (m *MockStreakService) Records(ctx context.Context, day calendar.Day) ([]streak.Record, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]streak.Record), args.Error(1)
}

func (m *MockStreakService) Today() calendar.Day {
	return m.Called().Get(0).(calendar.Day)
}

type MockPushService struct {
	mock.Mock
}

func (m *MockPushService) Subscribe(ctx context.Context, username, token string) error {
	return m.Called(ctx, username, token).Error(0)
}

type mocks struct {
	orders  *MockOrderService
	streaks *MockStreakService
	push    *MockPushService
	router  chi.Router
}

func newRouter() *mocks {
	m := &mocks{orders: new(MockOrderService), streaks: new(MockStreakService), push: new(MockPushService)}
	m.router = chi.NewRouter()
	marketHttp.NewHandler(m.orders, m.streaks, m.push).RegisterRoutes(m.router)
	return m
}

func (m *mocks) do(method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if user != "" {
		req.Header.Set(marketHttp.UsernameHeader, user)
	}
	w := httptest.NewRecorder()
	m.router.ServeHTTP(w, req)
	return w
}

func (m *mocks) doAdmin(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(marketHttp.UsernameHeader, "root")
	req.Header.Set(marketHttp.ScopesHeader, "customer, "+marketHttp.ScopeAdmin)
	w := httptest.NewRecorder()
	m.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp marketHttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

var orderID = uuid.Must(uuid.FromString("0b9b8a2e-8d5c-4c39-9f0e-5a7d1f0c2b11"))

func TestHandler_Health(t *testing.T) {
	m := newRouter()
	w := m.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandler_RequiresIdentity(t *testing.T) {
	m := newRouter()
	w := m.do(http.MethodGet, "/orders/pending", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	m.orders.AssertNotCalled(t, "PendingOrder", mock.Anything, mock.Anything)
}

func TestHandler_SubmitOrder(t *testing.T) {
	body := `{"store":"bakery","branch":"downtown","items":[{"product":"latte","quantity":2,"options":[{"tag":"size","selected":[{"title":"large","price":12.5}]}]}]}`
	wantCart := order.Cart{Store: "bakery", Branch: "downtown", Items: []order.CartItem{{
		Product:  "latte",
		Quantity: 2,
		Options: []order.SelectedOption{{Tag: "size", Selected: []catalog.Value{{Title: "large", Price: decimal.RequireFromString("12.5")}}}},
	}}}
	cartMatches := mock.MatchedBy(func(c order.Cart) bool {
		if c.Store != wantCart.Store || len(c.Items) != 1 || len(c.Items[0].Options) != 1 {
			return false
		}
		got := c.Items[0].Options[0].Selected
		return len(got) == 1 && got[0].Matches(wantCart.Items[0].Options[0].Selected[0])
	})

	tests := []struct {
		name       string
		body       string
		setup      func(m *mocks)
		wantStatus int
		wantError  string
	}{
		{
			name: "created",
			body: body,
			setup: func(m *mocks) {
				m.orders.On("SubmitOrder", mock.Anything, "dana", cartMatches).Return(orderID, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "domain_validation",
			body: body,
			setup: func(m *mocks) {
				m.orders.On("SubmitOrder", mock.Anything, "dana", mock.Anything).
					Return(uuid.Nil, &order.ValidationError{Reason: "option not found", Product: "latte", Tag: "extras"})
			},
			wantStatus: http.StatusBadRequest,
			wantError:  `option not found (product "latte", tag "extras")`,
		},
		{
			name: "unknown_store",
			body: body,
			setup: func(m *mocks) {
				m.orders.On("SubmitOrder", mock.Anything, "dana", mock.Anything).Return(uuid.Nil, order.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "empty_value_title",
			body: `{"store":"bakery","branch":"downtown","items":[{"product":"latte","quantity":1,"options":[{"tag":"size","selected":[{"title":"","price":0}]}]}]}`,
			setup: func(m *mocks) {
				m.orders.On("SubmitOrder", mock.Anything, "dana", mock.MatchedBy(func(c order.Cart) bool {
					return len(c.Items) == 1 && c.Items[0].Options[0].Selected[0].Title == ""
				})).Return(orderID, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "concurrent_submit",
			body: body,
			setup: func(m *mocks) {
				m.orders.On("SubmitOrder", mock.Anything, "dana", mock.Anything).Return(uuid.Nil, order.ErrSubmitConflict)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "internal",
			body: body,
			setup: func(m *mocks) {
				m.orders.On("SubmitOrder", mock.Anything, "dana", mock.Anything).Return(uuid.Nil, errors.New("db down"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to submit order",
		},
		{
			name:       "bad_json",
			body:       `{invalid`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown_field",
			body:       `{"class":"yoga","coupon":"FREE"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "item_without_product",
			body:       `{"store":"bakery","branch":"downtown","items":[{"quantity":1}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newRouter()
			if tt.setup != nil {
				tt.setup(m)
			}

			w := m.do(http.MethodPost, "/orders", "dana", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusCreated {
				var resp marketHttp.SubmitOrderResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, orderID, resp.UUID)
			}
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, w))
			}
			if tt.setup == nil {
				m.orders.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything, mock.Anything)
			}
			m.orders.AssertExpectations(t)
		})
	}
}

func TestHandler_PendingOrder(t *testing.T) {
	m := newRouter()
	requestedAt := time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)
	m.orders.On("PendingOrder", mock.Anything, "dana").Return(&order.PendingOrder{
		UUID:        orderID,
		RequestedBy: "dana",
		Vendor:      "carol",
		Target:      order.ClassTarget{Class: "yoga"},
		RequestedAt: requestedAt,
	}, nil)

	w := m.do(http.MethodGet, "/orders/pending", "dana", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"uuid":"0b9b8a2e-8d5c-4c39-9f0e-5a7d1f0c2b11","requestedBy":"dana","vendor":"carol","class":"yoga","requestedAt":"2024-05-20T10:00:00Z"}`, w.Body.String())

	m2 := newRouter()
	m2.orders.On("PendingOrder", mock.Anything, "eli").Return(nil, order.ErrOrderNotFound)
	w = m2.do(http.MethodGet, "/orders/pending", "eli", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_ConfirmOrder(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{name: "confirmed", path: "/vendor/orders/" + orderID.String() + "/confirm", wantStatus: http.StatusOK},
		{name: "bad_uuid", path: "/vendor/orders/not-a-uuid/confirm", wantStatus: http.StatusBadRequest},
		{name: "already_confirmed", path: "/vendor/orders/" + orderID.String() + "/confirm", err: order.ErrAlreadyConfirmed, wantStatus: http.StatusConflict},
		{name: "not_found", path: "/vendor/orders/" + orderID.String() + "/confirm", err: order.ErrOrderNotFound, wantStatus: http.StatusNotFound},
		{name: "forbidden", path: "/vendor/orders/" + orderID.String() + "/confirm", err: order.ErrForbidden, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newRouter()
			if tt.err != nil {
				m.orders.On("ConfirmOrder", mock.Anything, "alice", orderID).Return(nil, tt.err)
			} else {
				m.orders.On("ConfirmOrder", mock.Anything, "alice", orderID).Return(&order.ConfirmedOrder{
					PendingOrder: order.PendingOrder{UUID: orderID, RequestedBy: "dana", Target: order.ClassTarget{Class: "yoga"}},
					ConfirmedBy:  "alice",
					NotifyOk:     order.NotifyPending,
				}, nil)
			}

			w := m.do(http.MethodPost, tt.path, "alice", "")
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, "alice", body["confirmedBy"])
				assert.Equal(t, float64(-1), body["notifyOk"])
			}
		})
	}
}

func TestHandler_FindConfirmedOrders(t *testing.T) {
	m := newRouter()
	filter := order.Filter{Branch: "downtown", RequestedBy: "dana"}
	m.orders.On("FindConfirmedOrders", mock.Anything, "alice", filter, order.Paging{Page: 2, PageSize: 5}).
		Return(&order.Page{Orders: []order.ConfirmedOrder{}, Page: 2, PageSize: 5, Total: 6}, nil)

	w := m.do(http.MethodGet, "/vendor/orders?branch=downtown&requestedBy=dana&page=2&pageSize=5", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"orders":[],"page":2,"pageSize":5,"total":6}`, w.Body.String())

	w = m.do(http.MethodGet, "/vendor/orders?page=abc", "alice", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	m.orders.AssertNumberOfCalls(t, "FindConfirmedOrders", 1)
}

func TestHandler_CustomerConfirmedOrders(t *testing.T) {
	m := newRouter()
	m.orders.On("CustomerConfirmedOrders", mock.Anything, "dana", order.Paging{}).
		Return(&order.Page{Orders: []order.ConfirmedOrder{}, Page: 1, PageSize: 10}, nil)

	w := m.do(http.MethodGet, "/orders/confirmed", "dana", "")
	assert.Equal(t, http.StatusOK, w.Code)
	m.orders.AssertExpectations(t)
}

func TestHandler_Streaks(t *testing.T) {
	t.Run("user_streak", func(t *testing.T) {
		m := newRouter()
		end := time.Date(2024, 5, 20, 23, 59, 59, 0, time.UTC)
		m.streaks.On("UserStreak", mock.Anything, "dana").Return(&streak.UserStreak{Day: 20240520, UserStreak: 3, UserDiscount: decimal.NewFromInt(20), End: end}, nil)

		w := m.do(http.MethodGet, "/streak", "dana", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"day":20240520,"userStreak":3,"userDiscount":"20","end":"2024-05-20T23:59:59Z"}`, w.Body.String())
	})

	t.Run("records_for_day", func(t *testing.T) {
		m := newRouter()
		m.streaks.On("Today").Return(calendar.Day(20240520))
		m.streaks.On("Records", mock.Anything, calendar.Day(20240519)).Return([]streak.Record{{Day: 20240519, StreakDays: 1, StreakDiscount: decimal.NewFromInt(15), Users: []string{"dana"}}}, nil)

		w := m.doAdmin("/admin/streaks?day=20240519")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"day":20240519,"records":[{"day":20240519,"streakDays":1,"streakDiscount":"15","users":["dana"]}]}`, w.Body.String())
	})

	t.Run("records_default_today", func(t *testing.T) {
		m := newRouter()
		m.streaks.On("Today").Return(calendar.Day(20240520))
		m.streaks.On("Records", mock.Anything, calendar.Day(20240520)).Return(nil, nil)

		w := m.doAdmin("/admin/streaks")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"day":20240520,"records":[]}`, w.Body.String())
	})

	t.Run("bad_day", func(t *testing.T) {
		m := newRouter()
		m.streaks.On("Today").Return(calendar.Day(20240520))

		w := m.doAdmin("/admin/streaks?day=2024-05-19")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("records_require_admin_scope", func(t *testing.T) {
		m := newRouter()

		w := m.do(http.MethodGet, "/admin/streaks", "dana", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Insufficient scope", decodeError(t, w))
		m.streaks.AssertNotCalled(t, "Records", mock.Anything, mock.Anything)
	})
}

func TestHandler_Subscribe(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		call       bool
		wantStatus int
	}{
		{name: "ok", body: `{"token":"tok"}`, call: true, wantStatus: http.StatusCreated},
		{name: "missing_token", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "rejected", body: `{"token":"tok"}`, call: true, err: notify.ErrInvalidToken, wantStatus: http.StatusBadRequest},
		{name: "provider_down", body: `{"token":"tok"}`, call: true, err: notify.ErrDelivery, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newRouter()
			if tt.call {
				m.push.On("Subscribe", mock.Anything, "dana", "tok").Return(tt.err)
			}

			w := m.do(http.MethodPost, "/push/subscriptions", "dana", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			m.push.AssertExpectations(t)
		})
	}
}
