package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgxpool.Pool the repository uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CredentialRepository stores credential keys as rows scoped by namespace, so
// several agents can share one database.
type CredentialRepository struct {
	db        querier
	namespace string
}

func NewCredentialRepository(pool *pgxpool.Pool, namespace string) *CredentialRepository {
	return &CredentialRepository{db: pool, namespace: namespace}
}

func (r *CredentialRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(ctx,
		`SELECT value FROM session_credentials
		 WHERE namespace = $1 AND key = $2`, r.namespace, key).Scan(&value)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get credential %s: %w", key, err)
	}
	return value, true, nil
}

func (r *CredentialRepository) Set(ctx context.Context, key string, value string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO session_credentials (namespace, key, value, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (namespace, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		r.namespace, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set credential %s: %w", key, err)
	}
	return nil
}

func (r *CredentialRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM session_credentials WHERE namespace = $1 AND key = $2`, r.namespace, key)
	if err != nil {
		return fmt.Errorf("delete credential %s: %w", key, err)
	}
	return nil
}

// Purge removes every key of the namespace.
func (r *CredentialRepository) Purge(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM session_credentials WHERE namespace = $1`, r.namespace)
	if err != nil {
		return 0, fmt.Errorf("purge credentials: %w", err)
	}
	return tag.RowsAffected(), nil
}
