// Package reminder asks customers to rank their orders some time after
// the vendor confirmed them.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/calendar"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/notify"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/order"
)

const batchSize = 500

// Store is the part of the order repository the sweeper needs.
type Store interface {
	DueReminders(ctx context.Context, now time.Time, limit int) ([]order.ConfirmedOrder, error)
	MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Result counts what one sweep did.
type Result struct {
	Due    int
	Sent   int
	Failed int
}

type Sweeper struct {
	store      Store
	dispatcher notify.Dispatcher
	clock      calendar.Clock
}

func NewSweeper(store Store, dispatcher notify.Dispatcher, clock calendar.Clock) *Sweeper {
	return &Sweeper{store: store, dispatcher: dispatcher, clock: clock}
}

func rankAlert(id uuid.UUID) notify.Alert {
	return notify.Alert{
		Title:       "Rank Your Order",
		Body:        id.String(),
		ClickAction: "RANK_ORDER",
		Data:        map[string]string{"uuid": id.String()},
	}
}

// RunSweep sends one reminder per due order and marks it sent. An order
// whose dispatch fails stays due and is retried by the next sweep.
func (s *Sweeper) RunSweep(ctx context.Context) (Result, error) {
	now := s.clock.Now().UTC()

	due, err := s.store.DueReminders(ctx, now, batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("reminder: failed to load due orders: %w", err)
	}

	res := Result{Due: len(due)}
	for _, o := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := s.dispatcher.Broadcast(ctx, []string{o.RequestedBy}, rankAlert(o.UUID)); err != nil {
			res.Failed++
			log.Warn().Err(err).Stringer("order_id", o.UUID).Str("username", o.RequestedBy).Msg("reminder: failed to send rank alert")
			continue
		}

		if err := s.store.MarkNotified(ctx, o.UUID, now); err != nil {
			res.Failed++
			log.Error().Err(err).Stringer("order_id", o.UUID).Msg("reminder: alert sent but order not marked, it may be sent again")
			continue
		}
		res.Sent++
	}

	if res.Due > 0 {
		log.Info().Int("due", res.Due).Int("sent", res.Sent).Int("failed", res.Failed).Msg("reminder: sweep finished")
	}
	return res, nil
}
