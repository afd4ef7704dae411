package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/calendar"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/notify"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/streak"
)

// StreakReader grades a customer at confirmation time.
type StreakReader interface {
	UserStreak(ctx context.Context, username string) (*streak.UserStreak, error)
}

type Service interface {
	SubmitOrder(ctx context.Context, username string, cart Cart) (uuid.UUID, error)
	PendingOrder(ctx context.Context, username string) (*PendingOrder, error)
	ConfirmOrder(ctx context.Context, vendor string, id uuid.UUID) (*ConfirmedOrder, error)
	FindConfirmedOrders(ctx context.Context, vendor string, filter Filter, paging Paging) (*Page, error)
	CustomerConfirmedOrders(ctx context.Context, username string, paging Paging) (*Page, error)
}

type Options struct {
	NotifyDelay     time.Duration
	DefaultPageSize int
	MaxPageSize     int
	Location        *time.Location
}

type service struct {
	repo       Repository
	catalog    catalog.Lookup
	streaks    StreakReader
	dispatcher notify.Dispatcher
	clock      calendar.Clock
	opts       Options
}

func NewService(repo Repository, lookup catalog.Lookup, streaks StreakReader, dispatcher notify.Dispatcher, clock calendar.Clock, opts Options) Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 10
	}
	if opts.MaxPageSize < opts.DefaultPageSize {
		opts.MaxPageSize = opts.DefaultPageSize
	}
	return &service{
		repo:       repo,
		catalog:    lookup,
		streaks:    streaks,
		dispatcher: dispatcher,
		clock:      clock,
		opts:       opts,
	}
}

func (s *service) SubmitOrder(ctx context.Context, username string, cart Cart) (uuid.UUID, error) {
	validated, err := ValidateCart(ctx, s.catalog, cart)
	if err != nil {
		if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("username", username).Msg("service: cart rejected")
			return uuid.Nil, err
		}
		log.Error().Err(err).Str("username", username).Msg("service: failed to validate cart")
		return uuid.Nil, fmt.Errorf("service: failed to validate cart: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("service: failed to generate order ID: %w", err)
	}

	pending := &PendingOrder{
		UUID:        id,
		RequestedBy: username,
		Vendor:      validated.Vendor,
		Target:      validated.Target,
		RequestedAt: s.clock.Now().UTC(),
	}

	if err := s.repo.ReplacePending(ctx, pending); err != nil {
		if errors.Is(err, ErrSubmitConflict) {
			return uuid.Nil, err
		}
		log.Error().Err(err).Str("username", username).Msg("service: failed to store pending order")
		return uuid.Nil, fmt.Errorf("service: failed to submit order: %w", err)
	}

	log.Info().Stringer("order_id", id).Str("username", username).Str("kind", string(pending.Target.Kind())).Msg("service: order submitted")
	return id, nil
}

func (s *service) PendingOrder(ctx context.Context, username string) (*PendingOrder, error) {
	o, err := s.repo.PendingByUser(ctx, username)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Str("username", username).Msg("service: failed to fetch pending order")
		return nil, fmt.Errorf("service: failed to fetch pending order: %w", err)
	}
	return o, nil
}

func (s *service) ConfirmOrder(ctx context.Context, vendor string, id uuid.UUID) (*ConfirmedOrder, error) {
	confirmed, err := s.repo.IsConfirmed(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: failed to check order %s: %w", id, err)
	}
	if confirmed {
		log.Warn().Stringer("order_id", id).Str("vendor", vendor).Msg("service: order already confirmed")
		return nil, ErrAlreadyConfirmed
	}

	pending, err := s.repo.PendingByUUID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Str("vendor", vendor).Msg("service: order to confirm not found")
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order %s: %w", id, err)
	}

	storeDiscount, err := s.checkOwnership(ctx, vendor, pending)
	if err != nil {
		return nil, err
	}

	userStreak, err := s.streaks.UserStreak(ctx, pending.RequestedBy)
	if err != nil {
		log.Error().Err(err).Str("username", pending.RequestedBy).Msg("service: failed to compute user streak")
		return nil, fmt.Errorf("service: failed to compute user streak: %w", err)
	}

	now := s.clock.Now().UTC()
	order := &ConfirmedOrder{
		PendingOrder:        *pending,
		ConfirmedBy:         vendor,
		ConfirmedAt:         now,
		ScanDay:             calendar.DayOf(now, s.opts.Location),
		UserStreak:          userStreak,
		StoreStreakDiscount: storeDiscount,
		NotifyAt:            now.Add(s.opts.NotifyDelay),
		NotifyOk:            NotifyPending,
	}

	if err := s.repo.Confirm(ctx, order); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyConfirmed), errors.Is(err, ErrOrderNotFound):
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: order changed while confirming")
			return nil, err
		default:
			log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to confirm order")
			return nil, fmt.Errorf("service: failed to confirm order: %w", err)
		}
	}

	log.Info().Stringer("order_id", id).Str("vendor", vendor).Str("username", order.RequestedBy).Int("user_streak", userStreak.UserStreak).Msg("service: order confirmed")

	alert := notify.Alert{Title: "order confirmed", Body: "order confirmed", ClickAction: "ORDER_CONFIRMED"}
	if err := s.dispatcher.Broadcast(ctx, []string{order.RequestedBy}, alert); err != nil {
		log.Warn().Err(err).Stringer("order_id", id).Msg("service: failed to send confirmation alert")
	}

	return order, nil
}

// checkOwnership makes sure vendor owns the order's store or class and
// returns the store's own streak discount, if any.
func (s *service) checkOwnership(ctx context.Context, vendor string, o *PendingOrder) (*decimal.Decimal, error) {
	var err error
	var discount *decimal.Decimal

	switch t := o.Target.(type) {
	case StoreTarget:
		var store *catalog.Store
		store, err = s.catalog.VendorStore(ctx, vendor, t.Store)
		if err == nil {
			discount = store.StreakDiscount
		}
	case ClassTarget:
		_, err = s.catalog.VendorClass(ctx, vendor, t.Class)
	default:
		return nil, fmt.Errorf("service: unsupported order target %T", o.Target)
	}

	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			log.Warn().Stringer("order_id", o.UUID).Str("vendor", vendor).Msg("service: vendor does not own order target")
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("service: failed to check order ownership: %w", err)
	}
	return discount, nil
}

func (s *service) normalizePaging(p Paging) Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = s.opts.DefaultPageSize
	}
	if p.PageSize > s.opts.MaxPageSize {
		p.PageSize = s.opts.MaxPageSize
	}
	// Keeps Offset within int32; any page past that is empty anyway.
	if maxPage := math.MaxInt32/p.PageSize + 1; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

func (s *service) FindConfirmedOrders(ctx context.Context, vendor string, filter Filter, paging Paging) (*Page, error) {
	paging = s.normalizePaging(paging)

	orders, total, err := s.repo.FindConfirmed(ctx, vendor, filter, paging)
	if err != nil {
		log.Error().Err(err).Str("vendor", vendor).Msg("service: failed to find confirmed orders")
		return nil, fmt.Errorf("service: failed to find confirmed orders: %w", err)
	}

	return &Page{Orders: orders, Page: paging.Page, PageSize: paging.PageSize, Total: total}, nil
}

func (s *service) CustomerConfirmedOrders(ctx context.Context, username string, paging Paging) (*Page, error) {
	paging = s.normalizePaging(paging)

	orders, total, err := s.repo.ConfirmedByRequester(ctx, username, paging)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("service: failed to list customer orders")
		return nil, fmt.Errorf("service: failed to list customer orders: %w", err)
	}

	return &Page{Orders: orders, Page: paging.Page, PageSize: paging.PageSize, Total: total}, nil
}
