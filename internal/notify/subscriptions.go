package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

type Subscriptions struct {
	store     PushStore
	validator TokenValidator
}

// NewSubscriptions stores tokens; validator may be nil to accept any token.
func NewSubscriptions(store PushStore, validator TokenValidator) *Subscriptions {
	return &Subscriptions{store: store, validator: validator}
}

func (s *Subscriptions) Subscribe(ctx context.Context, username, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	if s.validator != nil {
		if err := s.validator.ValidateToken(ctx, token); err != nil {
			if errors.Is(err, ErrInvalidToken) {
				log.Warn().Str("username", username).Msg("notify: push token rejected by provider")
				return err
			}
			return fmt.Errorf("notify: failed to validate token: %w", err)
		}
	}

	if err := s.store.Save(ctx, username, token); err != nil {
		return fmt.Errorf("notify: failed to store token: %w", err)
	}

	log.Info().Str("username", username).Msg("notify: push token registered")
	return nil
}
