package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/calendar"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/streak"
)

type StreakService interface {
	UserStreak(ctx context.Context, username string) (*streak.UserStreak, error)
	Records(ctx context.Context, day calendar.Day) ([]streak.Record, error)
	Today() calendar.Day
}

type PushService interface {
	Subscribe(ctx context.Context, username, token string) error
}

type Handler struct {
	orders   order.Service
	streaks  StreakService
	push     PushService
	validate *validator.Validate
}

func NewHandler(orders order.Service, streaks StreakService, push PushService) *Handler {
	return &Handler{
		orders:   orders,
		streaks:  streaks,
		push:     push,
		validate: validator.New(),
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.handleHealth)

	router.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Post("/orders", h.handleSubmitOrder)
		r.Get("/orders/pending", h.handlePendingOrder)
		r.Get("/orders/confirmed", h.handleCustomerConfirmedOrders)

		r.Post("/vendor/orders/{uuid}/confirm", h.handleConfirmOrder)
		r.Get("/vendor/orders", h.handleFindConfirmedOrders)

		r.Get("/streak", h.handleUserStreak)
		r.With(requireScope(ScopeAdmin)).Get("/admin/streaks", h.handleStreakRecords)

		r.Post("/push/subscriptions", h.handleSubscribe)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.orders.SubmitOrder(r.Context(), usernameFrom(r.Context()), req.toCart())
	if err != nil {
		respondWithServiceError(w, err, "Failed to submit order")
		return
	}

	respondWithJSON(w, http.StatusCreated, SubmitOrderResponse{UUID: id})
}

func (h *Handler) handlePendingOrder(w http.ResponseWriter, r *http.Request) {
	pending, err := h.orders.PendingOrder(r.Context(), usernameFrom(r.Context()))
	if err != nil {
		respondWithServiceError(w, err, "Failed to get pending order")
		return
	}

	respondWithJSON(w, http.StatusOK, pending)
}

func (h *Handler) handleConfirmOrder(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "uuid")
	id, err := uuid.FromString(idParam)
	if err != nil {
		log.Warn().Err(err).Str("order_id", idParam).Msg("Failed to parse uuid parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid uuid parameter")
		return
	}

	confirmed, err := h.orders.ConfirmOrder(r.Context(), usernameFrom(r.Context()), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to confirm order")
		return
	}

	respondWithJSON(w, http.StatusOK, confirmed)
}

// parsePaging reads page and pageSize. Absent values are left zero for the
// service to default.
func parsePaging(r *http.Request) (order.Paging, bool) {
	var p order.Paging
	q := r.URL.Query()

	for key, dst := range map[string]*int{"page": &p.Page, "pageSize": &p.PageSize} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return order.Paging{}, false
		}
		*dst = v
	}
	return p, true
}

func (h *Handler) handleFindConfirmedOrders(w http.ResponseWriter, r *http.Request) {
	paging, ok := parsePaging(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid paging parameters")
		return
	}

	q := r.URL.Query()
	filter := order.Filter{
		UUID:        q.Get("uuid"),
		Branch:      q.Get("branch"),
		RequestedBy: q.Get("requestedBy"),
	}

	page, err := h.orders.FindConfirmedOrders(r.Context(), usernameFrom(r.Context()), filter, paging)
	if err != nil {
		respondWithServiceError(w, err, "Failed to find orders")
		return
	}

	respondWithJSON(w, http.StatusOK, page)
}

func (h *Handler) handleCustomerConfirmedOrders(w http.ResponseWriter, r *http.Request) {
	paging, ok := parsePaging(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid paging parameters")
		return
	}

	page, err := h.orders.CustomerConfirmedOrders(r.Context(), usernameFrom(r.Context()), paging)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, page)
}

func (h *Handler) handleUserStreak(w http.ResponseWriter, r *http.Request) {
	us, err := h.streaks.UserStreak(r.Context(), usernameFrom(r.Context()))
	if err != nil {
		respondWithServiceError(w, err, "Failed to compute streak")
		return
	}

	respondWithJSON(w, http.StatusOK, us)
}

func (h *Handler) handleStreakRecords(w http.ResponseWriter, r *http.Request) {
	day := h.streaks.Today()
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := calendar.ParseDay(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid day parameter, expected YYYYMMDD")
			return
		}
		day = parsed
	}

	records, err := h.streaks.Records(r.Context(), day)
	if err != nil {
		respondWithServiceError(w, err, "Failed to load streak records")
		return
	}
	if records == nil {
		records = []streak.Record{}
	}

	respondWithJSON(w, http.StatusOK, StreakRecordsResponse{Day: day, Records: records})
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.push.Subscribe(r.Context(), usernameFrom(r.Context()), req.Token); err != nil {
		respondWithServiceError(w, err, "Failed to register push token")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}
