package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/calendar"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/streak"
)

type Repository interface {
	// ReplacePending drops the requester's previous pending order and stores o.
	ReplacePending(ctx context.Context, o *PendingOrder) error
	PendingByUser(ctx context.Context, username string) (*PendingOrder, error)
	PendingByUUID(ctx context.Context, id uuid.UUID) (*PendingOrder, error)
	IsConfirmed(ctx context.Context, id uuid.UUID) (bool, error)
	// Confirm stores o as confirmed and removes its pending row atomically.
	Confirm(ctx context.Context, o *ConfirmedOrder) error
	FindConfirmed(ctx context.Context, vendor string, filter Filter, paging Paging) ([]ConfirmedOrder, int64, error)
	ConfirmedByRequester(ctx context.Context, username string, paging Paging) ([]ConfirmedOrder, int64, error)
	DueReminders(ctx context.Context, now time.Time, limit int) ([]ConfirmedOrder, error)
	MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// targetRow is how a Target is flattened into columns.
type targetRow struct {
	kind   Kind
	store  string
	branch string
	class  string
	items  []byte
}

func encodeTarget(t Target) (targetRow, error) {
	switch v := t.(type) {
	case StoreTarget:
		items, err := json.Marshal(v.Items)
		if err != nil {
			return targetRow{}, fmt.Errorf("repository: failed to encode items: %w", err)
		}
		return targetRow{kind: KindStore, store: v.Store, branch: v.Branch, items: items}, nil
	case ClassTarget:
		return targetRow{kind: KindClass, class: v.Class, items: []byte("[]")}, nil
	default:
		return targetRow{}, fmt.Errorf("repository: unsupported order target %T", t)
	}
}

func decodeTarget(row targetRow) (Target, error) {
	switch row.kind {
	case KindStore:
		var items []OrderItem
		if err := json.Unmarshal(row.items, &items); err != nil {
			return nil, fmt.Errorf("repository: failed to decode items: %w", err)
		}
		return StoreTarget{Store: row.store, Branch: row.branch, Items: items}, nil
	case KindClass:
		return ClassTarget{Class: row.class}, nil
	default:
		return nil, fmt.Errorf("repository: unknown order kind %q", row.kind)
	}
}

func (r *postgresRepository) ReplacePending(ctx context.Context, o *PendingOrder) (err error) {
	row, err := encodeTarget(o.Target)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.UUID).Msg("repository: failed to rollback transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM pending_orders WHERE requested_by = $1`, o.RequestedBy); err != nil {
		return fmt.Errorf("repository: failed to delete pending order of %s: %w", o.RequestedBy, err)
	}

	query := `
		INSERT INTO pending_orders (uuid, requested_by, kind, store, branch, class, vendor, items, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.Exec(ctx, query,
		o.UUID,
		o.RequestedBy,
		string(row.kind),
		row.store,
		row.branch,
		row.class,
		o.Vendor,
		row.items,
		o.RequestedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			log.Warn().Str("username", o.RequestedBy).Msg("repository: concurrent pending order insert")
			return ErrSubmitConflict
		}
		return fmt.Errorf("repository: failed to insert pending order %s: %w", o.UUID, err)
	}

	return nil
}

const pendingColumns = `uuid, requested_by, kind, store, branch, class, vendor, items, requested_at`

func scanPending(row pgx.Row) (*PendingOrder, error) {
	var (
		o    PendingOrder
		tr   targetRow
		kind string
	)
	err := row.Scan(&o.UUID, &o.RequestedBy, &kind, &tr.store, &tr.branch, &tr.class, &o.Vendor, &tr.items, &o.RequestedAt)
	if err != nil {
		return nil, err
	}
	tr.kind = Kind(kind)
	if o.Target, err = decodeTarget(tr); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *postgresRepository) PendingByUser(ctx context.Context, username string) (*PendingOrder, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_orders WHERE requested_by = $1`
	o, err := scanPending(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select pending order of %s: %w", username, err)
	}
	return o, nil
}

func (r *postgresRepository) PendingByUUID(ctx context.Context, id uuid.UUID) (*PendingOrder, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_orders WHERE uuid = $1`
	o, err := scanPending(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select pending order %s: %w", id, err)
	}
	return o, nil
}

func (r *postgresRepository) IsConfirmed(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM confirmed_orders WHERE uuid = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check confirmed order %s: %w", id, err)
	}
	return exists, nil
}

func (r *postgresRepository) Confirm(ctx context.Context, o *ConfirmedOrder) (err error) {
	row, err := encodeTarget(o.Target)
	if err != nil {
		return err
	}

	var streakJSON []byte
	if o.UserStreak != nil {
		if streakJSON, err = json.Marshal(o.UserStreak); err != nil {
			return fmt.Errorf("repository: failed to encode user streak: %w", err)
		}
	}

	var storeDiscount *string
	if o.StoreStreakDiscount != nil {
		s := o.StoreStreakDiscount.String()
		storeDiscount = &s
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.UUID).Msg("repository: failed to rollback transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	insert := `
		INSERT INTO confirmed_orders (
			uuid, requested_by, kind, store, branch, class, vendor, items, requested_at,
			confirmed_by, confirmed_at, scan_day, user_streak, store_streak_discount, notify_at, notify_ok
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (uuid) DO NOTHING
	`
	tag, err := tx.Exec(ctx, insert,
		o.UUID,
		o.RequestedBy,
		string(row.kind),
		row.store,
		row.branch,
		row.class,
		o.Vendor,
		row.items,
		o.RequestedAt,
		o.ConfirmedBy,
		o.ConfirmedAt,
		int32(o.ScanDay),
		streakJSON,
		storeDiscount,
		o.NotifyAt,
		o.NotifyOk,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert confirmed order %s: %w", o.UUID, err)
	}
	if tag.RowsAffected() == 0 {
		err = ErrAlreadyConfirmed
		return err
	}

	tag, err = tx.Exec(ctx, `DELETE FROM pending_orders WHERE uuid = $1`, o.UUID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete pending order %s: %w", o.UUID, err)
	}
	if tag.RowsAffected() == 0 {
		err = ErrOrderNotFound
		return err
	}

	return nil
}

const confirmedColumns = `uuid, requested_by, kind, store, branch, class, vendor, items, requested_at,
	confirmed_by, confirmed_at, scan_day, user_streak, store_streak_discount, notify_at, notify_ok`

func scanConfirmed(row pgx.Row) (ConfirmedOrder, error) {
	var (
		o          ConfirmedOrder
		tr         targetRow
		kind       string
		scanDay    int32
		streakJSON []byte
		discount   decimal.NullDecimal
		notifyOk   int16
	)
	err := row.Scan(
		&o.UUID, &o.RequestedBy, &kind, &tr.store, &tr.branch, &tr.class, &o.Vendor, &tr.items, &o.RequestedAt,
		&o.ConfirmedBy, &o.ConfirmedAt, &scanDay, &streakJSON, &discount, &o.NotifyAt, &notifyOk,
	)
	if err != nil {
		return ConfirmedOrder{}, err
	}

	tr.kind = Kind(kind)
	if o.Target, err = decodeTarget(tr); err != nil {
		return ConfirmedOrder{}, err
	}
	o.ScanDay = calendar.Day(scanDay)
	o.NotifyOk = int(notifyOk)
	if discount.Valid {
		d := discount.Decimal
		o.StoreStreakDiscount = &d
	}
	if len(streakJSON) > 0 {
		var us streak.UserStreak
		if err := json.Unmarshal(streakJSON, &us); err != nil {
			return ConfirmedOrder{}, fmt.Errorf("repository: failed to decode user streak: %w", err)
		}
		o.UserStreak = &us
	}

	return o, nil
}

func (r *postgresRepository) queryConfirmed(ctx context.Context, query string, args ...any) ([]ConfirmedOrder, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query confirmed orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ConfirmedOrder, error) {
		return scanConfirmed(row)
	})
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan confirmed orders: %w", err)
	}
	return orders, nil
}

// page runs a filtered count plus the requested page, newest confirmations first.
func (r *postgresRepository) page(ctx context.Context, where []string, args []any, paging Paging) ([]ConfirmedOrder, int64, error) {
	clause := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM confirmed_orders WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count confirmed orders: %w", err)
	}
	if total == 0 {
		return []ConfirmedOrder{}, 0, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM confirmed_orders WHERE %s ORDER BY confirmed_at DESC, uuid LIMIT $%d OFFSET $%d`,
		confirmedColumns, clause, len(args)+1, len(args)+2)
	orders, err := r.queryConfirmed(ctx, query, append(args, paging.PageSize, paging.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *postgresRepository) FindConfirmed(ctx context.Context, vendor string, filter Filter, paging Paging) ([]ConfirmedOrder, int64, error) {
	where := []string{"confirmed_by = $1"}
	args := []any{vendor}

	if filter.UUID != "" {
		args = append(args, filter.UUID)
		where = append(where, fmt.Sprintf("uuid::text = $%d", len(args)))
	}
	if filter.Branch != "" {
		args = append(args, filter.Branch)
		where = append(where, fmt.Sprintf("branch = $%d", len(args)))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		where = append(where, fmt.Sprintf("requested_by = $%d", len(args)))
	}

	return r.page(ctx, where, args, paging)
}

func (r *postgresRepository) ConfirmedByRequester(ctx context.Context, username string, paging Paging) ([]ConfirmedOrder, int64, error) {
	return r.page(ctx, []string{"requested_by = $1"}, []any{username}, paging)
}

func (r *postgresRepository) DueReminders(ctx context.Context, now time.Time, limit int) ([]ConfirmedOrder, error) {
	query := `SELECT ` + confirmedColumns + `
		FROM confirmed_orders
		WHERE notify_ok = $1 AND notify_at <= $2
		ORDER BY notify_at
		LIMIT $3`
	return r.queryConfirmed(ctx, query, NotifyPending, now, limit)
}

func (r *postgresRepository) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE confirmed_orders
		SET notify_ok = $1, notified_at = $2
		WHERE uuid = $3 AND notify_ok = $4
	`
	if _, err := r.db.Exec(ctx, query, NotifySent, at, id, NotifyPending); err != nil {
		return fmt.Errorf("repository: failed to mark order %s notified: %w", id, err)
	}
	return nil
}
