// Package dbtest opens the Postgres database used by repository
// integration tests. Tests are skipped when DB_HOST_TEST is unset.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/config"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/db"
)

// lockKey serializes test packages that share the database, since each
// of them truncates tables between tests.
const lockKey = 72019401

type Database struct {
	Pool *pgxpool.Pool

	pg   *db.Postgres
	lock *pgxpool.Conn
}

// Open returns nil, nil when DB_HOST_TEST is not set.
func Open(ctx context.Context, migrationsPath string) (*Database, error) {
	host := os.Getenv("DB_HOST_TEST")
	if host == "" {
		return nil, nil
	}

	cfg := config.PostgresConfig{
		Host:            host,
		Port:            envOr("DB_PORT_TEST", "5432"),
		User:            envOr("DB_USER_TEST", "postgres"),
		Password:        envOr("DB_PASSWORD_TEST", "postgres"),
		DBName:          envOr("DB_NAME_TEST", "marketplace_test"),
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MigrationsPath:  migrationsPath,
	}
	pg, err := db.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("dbtest: failed to connect: %w", err)
	}

	conn, err := pg.Pool.Acquire(ctx)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("dbtest: failed to acquire lock connection: %w", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, int64(lockKey)); err != nil {
		conn.Release()
		pg.Close()
		return nil, fmt.Errorf("dbtest: failed to take advisory lock: %w", err)
	}

	return &Database{Pool: pg.Pool, pg: pg, lock: conn}, nil
}

func (d *Database) Close() {
	if d == nil {
		return
	}
	_, _ = d.lock.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, int64(lockKey))
	d.lock.Release()
	d.pg.Close()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
