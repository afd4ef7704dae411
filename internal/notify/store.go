package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PushStore keeps the device tokens registered per user.
type PushStore interface {
	Tokens(ctx context.Context, usernames []string) ([]string, error)
	Save(ctx context.Context, username, token string) error
	DeleteTokens(ctx context.Context, tokens []string) error
}

type postgresPushStore struct {
	db *pgxpool.Pool
}

func NewPushStore(db *pgxpool.Pool) PushStore {
	return &postgresPushStore{db: db}
}

func (s *postgresPushStore) Tokens(ctx context.Context, usernames []string) ([]string, error) {
	if len(usernames) == 0 {
		return []string{}, nil
	}

	query := `
		SELECT DISTINCT token
		FROM push_subscriptions
		WHERE username = ANY($1)
		ORDER BY token
	`
	rows, err := s.db.Query(ctx, query, usernames)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query push tokens: %w", err)
	}

	tokens, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan push tokens: %w", err)
	}
	return tokens, nil
}

func (s *postgresPushStore) Save(ctx context.Context, username, token string) error {
	query := `
		INSERT INTO push_subscriptions (username, token)
		VALUES ($1, $2)
		ON CONFLICT (username, token) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, query, username, token); err != nil {
		return fmt.Errorf("repository: failed to save push token for %s: %w", username, err)
	}
	return nil
}

func (s *postgresPushStore) DeleteTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM push_subscriptions WHERE token = ANY($1)`, tokens); err != nil {
		return fmt.Errorf("repository: failed to delete push tokens: %w", err)
	}
	return nil
}
