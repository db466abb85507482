package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/critterdex/critterdex/internal/model"
)

// CollectionEntry is a ledger row: a copy count for one collectible.
type CollectionEntry struct {
	model.OwnedCritter
	Qty int `json:"qty"`
}

// CreditCritter records a caught copy for the player and returns what became
// of it. The first copy registers in the album, the second is reserved for
// trading, and any further copy is liquidated: the counter stays at 2 and the
// payout is credited atomically with the decision.
func (db *DB) CreditCritter(ctx context.Context, playerID int64, c model.OwnedCritter, payout int64) (model.CreditStatus, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("storage: begin credit tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	status, err := creditCritterTx(ctx, tx, playerID, c, payout)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("storage: commit credit tx: %w", err)
	}
	return status, nil
}

// creditCritterTx is the tx-scoped form of CreditCritter, shared with trade
// settlement. It locks the ledger row so concurrent credits of the same
// collectible serialize.
func creditCritterTx(ctx context.Context, tx pgx.Tx, playerID int64, c model.OwnedCritter, payout int64) (model.CreditStatus, error) {
	var qty int
	err := tx.QueryRow(ctx,
		`SELECT qty FROM collection
		 WHERE player_id = $1 AND critter_id = $2 AND shiny = $3
		 FOR UPDATE`,
		playerID, c.CritterID, c.Shiny,
	).Scan(&qty)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx,
			`INSERT INTO collection (player_id, critter_id, shiny, qty) VALUES ($1, $2, $3, 1)`,
			playerID, c.CritterID, c.Shiny,
		); err != nil {
			return "", fmt.Errorf("storage: insert collection row: %w", err)
		}
		return model.CreditNew, nil
	case err != nil:
		return "", fmt.Errorf("storage: lock collection row: %w", err)
	}

	if qty < 2 {
		if _, err := tx.Exec(ctx,
			`UPDATE collection SET qty = qty + 1
			 WHERE player_id = $1 AND critter_id = $2 AND shiny = $3`,
			playerID, c.CritterID, c.Shiny,
		); err != nil {
			return "", fmt.Errorf("storage: bump collection row: %w", err)
		}
		return model.CreditDuplicate, nil
	}

	// Already at the cap: liquidate the copy instead of storing it.
	if _, err := tx.Exec(ctx,
		`UPDATE players SET balance = balance + $2, updated_at = now() WHERE id = $1`,
		playerID, payout,
	); err != nil {
		return "", fmt.Errorf("storage: liquidate excess copy: %w", err)
	}
	return model.CreditCapped, nil
}

// spendSpareTx gives up the player's spare copy of a collectible inside a
// transaction, dropping the counter from 2 to 1. Only the spare is ever
// spendable: the registered first copy stays in the album. Returns ErrNotFound
// when the player holds no spare.
func spendSpareTx(ctx context.Context, tx pgx.Tx, playerID int64, c model.OwnedCritter) error {
	tag, err := tx.Exec(ctx,
		`UPDATE collection SET qty = qty - 1
		 WHERE player_id = $1 AND critter_id = $2 AND shiny = $3 AND qty > 1`,
		playerID, c.CritterID, c.Shiny,
	)
	if err != nil {
		return fmt.Errorf("storage: spend spare copy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SpendSpare gives up a spare copy outside any larger transaction.
// Used by gifting; trades go through SettleTrade instead.
func (db *DB) SpendSpare(ctx context.Context, playerID int64, c model.OwnedCritter) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin spend tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := spendSpareTx(ctx, tx, playerID, c); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit spend tx: %w", err)
	}
	return nil
}

// HasSpare reports whether the player holds a spare (second) copy.
func (db *DB) HasSpare(ctx context.Context, playerID int64, c model.OwnedCritter) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM collection
			WHERE player_id = $1 AND critter_id = $2 AND shiny = $3 AND qty > 1
		)`,
		playerID, c.CritterID, c.Shiny,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: check spare: %w", err)
	}
	return exists, nil
}

// HasCopy reports whether the player owns at least one copy of the collectible.
func (db *DB) HasCopy(ctx context.Context, playerID int64, c model.OwnedCritter) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM collection
			WHERE player_id = $1 AND critter_id = $2 AND shiny = $3
		)`,
		playerID, c.CritterID, c.Shiny,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: check copy: %w", err)
	}
	return exists, nil
}

// ListCollection returns the player's full ledger ordered by catalog id,
// plain copies before shiny.
func (db *DB) ListCollection(ctx context.Context, playerID int64) ([]CollectionEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT critter_id, shiny, qty FROM collection
		 WHERE player_id = $1
		 ORDER BY critter_id, shiny`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list collection: %w", err)
	}
	defer rows.Close()

	var entries []CollectionEntry
	for rows.Next() {
		var e CollectionEntry
		if err := rows.Scan(&e.CritterID, &e.Shiny, &e.Qty); err != nil {
			return nil, fmt.Errorf("storage: scan collection row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListDuplicates returns the collectibles the player holds two copies of.
// These are the only copies eligible for trading and gifting.
func (db *DB) ListDuplicates(ctx context.Context, playerID int64) ([]model.OwnedCritter, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT critter_id, shiny FROM collection
		 WHERE player_id = $1 AND qty > 1
		 ORDER BY critter_id, shiny`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list duplicates: %w", err)
	}
	defer rows.Close()

	var dups []model.OwnedCritter
	for rows.Next() {
		var c model.OwnedCritter
		if err := rows.Scan(&c.CritterID, &c.Shiny); err != nil {
			return nil, fmt.Errorf("storage: scan duplicate: %w", err)
		}
		dups = append(dups, c)
	}
	return dups, rows.Err()
}

// UniqueCount returns how many of the given catalog ids the player owns at
// least one copy of, in any variant. Used for the region milestone.
func (db *DB) UniqueCount(ctx context.Context, playerID int64, catalogIDs []int) (int, error) {
	ids := make([]int32, len(catalogIDs))
	for i, id := range catalogIDs {
		ids[i] = int32(id)
	}
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT count(DISTINCT critter_id) FROM collection
		 WHERE player_id = $1 AND critter_id = ANY($2)`,
		playerID, ids,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: unique count: %w", err)
	}
	return n, nil
}
