package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/critterdex/critterdex/internal/model"
)

const playerColumns = `id, display_name, balance, capture_chance, monthly_catches,
 region_completed, daily_trades, last_trade_date, last_raffle_date, restricted,
 notifications_enabled, created_at, updated_at`

func scanPlayer(row pgx.Row) (model.Player, error) {
	var p model.Player
	err := row.Scan(
		&p.ID, &p.DisplayName, &p.Balance, &p.CaptureChance, &p.MonthlyCatches,
		&p.RegionCompleted, &p.DailyTrades, &p.LastTradeDate, &p.LastRaffleDate,
		&p.Restricted, &p.NotificationsEnabled, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// EnsurePlayer creates the player row if it does not exist and returns the
// current row either way. Display name is refreshed on every call so renames
// in the chat platform propagate.
func (db *DB) EnsurePlayer(ctx context.Context, id int64, displayName string) (model.Player, error) {
	row := db.pool.QueryRow(ctx,
		`INSERT INTO players (id, display_name)
		 VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = now()
		 RETURNING `+playerColumns,
		id, displayName,
	)
	p, err := scanPlayer(row)
	if err != nil {
		return model.Player{}, fmt.Errorf("storage: ensure player: %w", err)
	}
	return p, nil
}

// GetPlayer retrieves a player by ID.
func (db *DB) GetPlayer(ctx context.Context, id int64) (model.Player, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = $1`, id,
	)
	p, err := scanPlayer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Player{}, ErrNotFound
		}
		return model.Player{}, fmt.Errorf("storage: get player: %w", err)
	}
	return p, nil
}

// AdjustBalance applies a delta to a player's balance and returns the new value.
// Negative deltas that would take the balance below zero fail with ErrInsufficientFunds.
func (db *DB) AdjustBalance(ctx context.Context, id int64, delta int64) (int64, error) {
	var balance int64
	err := db.pool.QueryRow(ctx,
		`UPDATE players SET balance = balance + $2, updated_at = now()
		 WHERE id = $1 AND balance + $2 >= 0
		 RETURNING balance`,
		id, delta,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the player does not exist or the delta would overdraw.
			if _, getErr := db.GetPlayer(ctx, id); getErr != nil {
				return 0, getErr
			}
			return 0, ErrInsufficientFunds
		}
		return 0, fmt.Errorf("storage: adjust balance: %w", err)
	}
	return balance, nil
}

// SetCaptureChance stores a new capture chance for the player. Bounds are the
// caller's responsibility.
func (db *DB) SetCaptureChance(ctx context.Context, id int64, chance int) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE players SET capture_chance = $2, updated_at = now() WHERE id = $1`,
		id, chance,
	)
	if err != nil {
		return fmt.Errorf("storage: set capture chance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetNotifications toggles spawn notifications for the player.
func (db *DB) SetNotifications(ctx context.Context, id int64, enabled bool) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE players SET notifications_enabled = $2, updated_at = now() WHERE id = $1`,
		id, enabled,
	)
	if err != nil {
		return fmt.Errorf("storage: set notifications: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPlayerRestricted flips the player's trade restriction.
func (db *DB) SetPlayerRestricted(ctx context.Context, id int64, restricted bool) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE players SET restricted = $2, updated_at = now() WHERE id = $1`,
		id, restricted,
	)
	if err != nil {
		return fmt.Errorf("storage: set player restricted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PlayerRestricted reports whether the player is barred from trading.
// Unknown players are not restricted.
func (db *DB) PlayerRestricted(ctx context.Context, id int64) (bool, error) {
	var restricted bool
	err := db.pool.QueryRow(ctx,
		`SELECT restricted FROM players WHERE id = $1`, id,
	).Scan(&restricted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("storage: player restricted: %w", err)
	}
	return restricted, nil
}

// MarkRegionCompleted flips the region milestone flag. Returns true if this
// call performed the flip, false if it was already set, so the caller can make
// the milestone payout exactly once.
func (db *DB) MarkRegionCompleted(ctx context.Context, id int64) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE players SET region_completed = TRUE, updated_at = now()
		 WHERE id = $1 AND NOT region_completed`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("storage: mark region completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ConsumeTradeQuota increments the player's daily trade counter if there is
// quota left for localDate (YYYY-MM-DD in the game zone). A date change resets
// the counter before the check. Returns false without error when the quota is
// exhausted. Trade settlement uses the tx-scoped form in trades.go so the
// consumption rolls back with an aborted settlement.
func (db *DB) ConsumeTradeQuota(ctx context.Context, id int64, localDate string, limit int) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE players SET
			daily_trades = CASE WHEN last_trade_date = $2 THEN daily_trades + 1 ELSE 1 END,
			last_trade_date = $2,
			updated_at = now()
		 WHERE id = $1
		 AND (last_trade_date IS DISTINCT FROM $2 OR daily_trades < $3)`,
		id, localDate, limit,
	)
	if err != nil {
		return false, fmt.Errorf("storage: consume trade quota: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ConsumeRaffleTicket records the player's raffle participation for localDate.
// Returns false if the player already played that day.
func (db *DB) ConsumeRaffleTicket(ctx context.Context, id int64, localDate string) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE players SET last_raffle_date = $2, updated_at = now()
		 WHERE id = $1 AND last_raffle_date IS DISTINCT FROM $2`,
		id, localDate,
	)
	if err != nil {
		return false, fmt.Errorf("storage: consume raffle ticket: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementMonthlyCatches bumps the global monthly catch counter.
func (db *DB) IncrementMonthlyCatches(ctx context.Context, id int64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE players SET monthly_catches = monthly_catches + 1, updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("storage: increment monthly catches: %w", err)
	}
	return nil
}

// ResetMonthlyCatches zeroes monthly counters for all players and room members.
// Called by the monthly ranking job after payouts.
func (db *DB) ResetMonthlyCatches(ctx context.Context) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin monthly reset tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `UPDATE players SET monthly_catches = 0, updated_at = now()`); err != nil {
		return fmt.Errorf("storage: reset player catches: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE room_members SET monthly_catches = 0`); err != nil {
		return fmt.Errorf("storage: reset member catches: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit monthly reset tx: %w", err)
	}
	return nil
}

// TopPlayersByCatches returns the global monthly ranking, best first.
func (db *DB) TopPlayersByCatches(ctx context.Context, limit int) ([]model.Player, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+playerColumns+` FROM players
		 WHERE monthly_catches > 0
		 ORDER BY monthly_catches DESC, id ASC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: top players: %w", err)
	}
	defer rows.Close()

	var players []model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// ListNotifiablePlayers returns IDs of players who opted into spawn notifications.
func (db *DB) ListNotifiablePlayers(ctx context.Context) ([]int64, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id FROM players WHERE notifications_enabled`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list notifiable players: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: scan player id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
