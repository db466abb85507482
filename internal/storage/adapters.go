package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/critterdex/critterdex/internal/model"
)

const adapterColumns = `id, adapter_id, name, role, api_key_hash, active, created_at, last_seen_at`

func scanAdapter(row pgx.Row) (model.Adapter, error) {
	var a model.Adapter
	err := row.Scan(&a.ID, &a.AdapterID, &a.Name, &a.Role, &a.APIKeyHash, &a.Active, &a.CreatedAt, &a.LastSeenAt)
	return a, err
}

// CreateAdapter registers a new chat adapter with a pre-hashed API key.
func (db *DB) CreateAdapter(ctx context.Context, a model.Adapter) (model.Adapter, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO adapters (id, adapter_id, name, role, api_key_hash, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.AdapterID, a.Name, a.Role, a.APIKeyHash, a.Active, a.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.Adapter{}, ErrConflict
		}
		return model.Adapter{}, fmt.Errorf("storage: create adapter: %w", err)
	}
	return a, nil
}

// GetAdapterByAdapterID looks up an active adapter by its stable identifier.
// Used during token exchange before any claims exist.
func (db *DB) GetAdapterByAdapterID(ctx context.Context, adapterID string) (model.Adapter, error) {
	a, err := scanAdapter(db.pool.QueryRow(ctx,
		`SELECT `+adapterColumns+` FROM adapters WHERE adapter_id = $1 AND active`,
		adapterID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Adapter{}, ErrNotFound
		}
		return model.Adapter{}, fmt.Errorf("storage: get adapter: %w", err)
	}
	return a, nil
}

// CountAdapters returns the total number of registered adapters, active or
// not. Used by the admin seed to decide whether to bootstrap.
func (db *DB) CountAdapters(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT count(*) FROM adapters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count adapters: %w", err)
	}
	return n, nil
}

// TouchAdapter records when an adapter last authenticated. Best-effort; the
// caller logs failures instead of failing the token exchange.
func (db *DB) TouchAdapter(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE adapters SET last_seen_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: touch adapter: %w", err)
	}
	return nil
}

// SetAdapterActive enables or disables an adapter.
func (db *DB) SetAdapterActive(ctx context.Context, adapterID string, active bool) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE adapters SET active = $2 WHERE adapter_id = $1`, adapterID, active)
	if err != nil {
		return fmt.Errorf("storage: set adapter active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
