// Package notify delivers push alerts to customers' registered devices.
package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidToken = errors.New("push token rejected")
	ErrDelivery     = errors.New("push delivery failed")
)

// Alert is one push notification.
type Alert struct {
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	ClickAction string            `json:"click_action,omitempty"`
	Data        map[string]string `json:"-"`
}

// Dispatcher sends an alert to every device of the given users. Users
// without devices are skipped silently.
type Dispatcher interface {
	Broadcast(ctx context.Context, usernames []string, alert Alert) error
}

// TokenValidator checks a device token with the push provider before it is stored.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) error
}

// LogDispatcher only logs alerts. Used when no push provider is configured.
type LogDispatcher struct{}

func (LogDispatcher) Broadcast(_ context.Context, usernames []string, alert Alert) error {
	log.Info().
		Strs("usernames", usernames).
		Str("title", alert.Title).
		Str("body", alert.Body).
		Str("click_action", alert.ClickAction).
		Msg("notify: push disabled, alert logged")
	return nil
}
