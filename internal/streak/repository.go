package streak

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/calendar"
)

type Repository interface {
	// ActiveDays returns, per requester, the subset of days on which they had
	// a confirmed order. An empty username means every requester.
	ActiveDays(ctx context.Context, days []calendar.Day, username string) (map[string]map[calendar.Day]struct{}, error)
	ReplaceRecord(ctx context.Context, rec Record) error
	MergeUser(ctx context.Context, day calendar.Day, tier Tier, username string) error
	RecordsForUser(ctx context.Context, day calendar.Day, username string) ([]Record, error)
	RecordsForDay(ctx context.Context, day calendar.Day) ([]Record, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func dayInts(days []calendar.Day) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

func (r *postgresRepository) ActiveDays(ctx context.Context, days []calendar.Day, username string) (map[string]map[calendar.Day]struct{}, error) {
	query := `
		SELECT DISTINCT requested_by, scan_day
		FROM confirmed_orders
		WHERE scan_day = ANY($1) AND ($2::text = '' OR requested_by = $2::text)
	`

	rows, err := r.db.Query(ctx, query, dayInts(days), username)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query active days: %w", err)
	}
	defer rows.Close()

	active := make(map[string]map[calendar.Day]struct{})
	for rows.Next() {
		var (
			user string
			day  int32
		)
		if err := rows.Scan(&user, &day); err != nil {
			return nil, fmt.Errorf("repository: failed to scan active day: %w", err)
		}
		set, ok := active[user]
		if !ok {
			set = make(map[calendar.Day]struct{})
			active[user] = set
		}
		set[calendar.Day(day)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating active days: %w", err)
	}

	return active, nil
}

func (r *postgresRepository) ReplaceRecord(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO user_streaks (day, streak_days, streak_discount, users)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (day, streak_days)
		DO UPDATE SET streak_discount = EXCLUDED.streak_discount, users = EXCLUDED.users
	`

	_, err := r.db.Exec(ctx, query, int32(rec.Day), rec.StreakDays, rec.StreakDiscount.String(), rec.Users)
	if err != nil {
		return fmt.Errorf("repository: failed to upsert streak record %s/%d: %w", rec.Day, rec.StreakDays, err)
	}
	return nil
}

func (r *postgresRepository) MergeUser(ctx context.Context, day calendar.Day, tier Tier, username string) error {
	query := `
		INSERT INTO user_streaks (day, streak_days, streak_discount, users)
		VALUES ($1, $2, $3, ARRAY[$4::text])
		ON CONFLICT (day, streak_days)
		DO UPDATE SET
			streak_discount = EXCLUDED.streak_discount,
			users = CASE
				WHEN $4::text = ANY(user_streaks.users) THEN user_streaks.users
				ELSE array_append(user_streaks.users, $4::text)
			END
	`

	_, err := r.db.Exec(ctx, query, int32(day), tier.StreakDays, tier.Discount.String(), username)
	if err != nil {
		return fmt.Errorf("repository: failed to merge %s into streak record %s/%d: %w", username, day, tier.StreakDays, err)
	}
	return nil
}

func (r *postgresRepository) RecordsForUser(ctx context.Context, day calendar.Day, username string) ([]Record, error) {
	query := `
		SELECT day, streak_days, streak_discount, users
		FROM user_streaks
		WHERE day = $1 AND $2::text = ANY(users)
		ORDER BY streak_days
	`
	return r.queryRecords(ctx, query, int32(day), username)
}

func (r *postgresRepository) RecordsForDay(ctx context.Context, day calendar.Day) ([]Record, error) {
	query := `
		SELECT day, streak_days, streak_discount, users
		FROM user_streaks
		WHERE day = $1
		ORDER BY streak_days
	`
	return r.queryRecords(ctx, query, int32(day))
}

func (r *postgresRepository) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query streak records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var (
			rec      Record
			day      int32
			discount decimal.Decimal
		)
		if err := row.Scan(&day, &rec.StreakDays, &discount, &rec.Users); err != nil {
			return Record{}, err
		}
		rec.Day = calendar.Day(day)
		rec.StreakDiscount = discount
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan streak records: %w", err)
	}

	return records, nil
}
