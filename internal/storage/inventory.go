package storage

import (
	"context"
	"fmt"

	"github.com/critterdex/critterdex/internal/model"
)

// AddItem adds quantity of an item to a player's bag.
func (db *DB) AddItem(ctx context.Context, playerID int64, itemID string, quantity int) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO inventory (player_id, item_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (player_id, item_id) DO UPDATE SET quantity = inventory.quantity + EXCLUDED.quantity`,
		playerID, itemID, quantity,
	)
	if err != nil {
		return fmt.Errorf("storage: add item: %w", err)
	}
	return nil
}

// ConsumeItem removes one unit of an item from a player's bag. Returns
// ErrNotFound when the player holds none.
func (db *DB) ConsumeItem(ctx context.Context, playerID int64, itemID string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin consume tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE inventory SET quantity = quantity - 1
		 WHERE player_id = $1 AND item_id = $2 AND quantity > 0`,
		playerID, itemID,
	)
	if err != nil {
		return fmt.Errorf("storage: consume item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	// Drop empty stacks so listings stay clean.
	if _, err := tx.Exec(ctx,
		`DELETE FROM inventory WHERE player_id = $1 AND item_id = $2 AND quantity = 0`,
		playerID, itemID,
	); err != nil {
		return fmt.Errorf("storage: drop empty stack: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit consume tx: %w", err)
	}
	return nil
}

// ListInventory returns the player's bag ordered by item id.
func (db *DB) ListInventory(ctx context.Context, playerID int64) ([]model.InventoryItem, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT player_id, item_id, quantity FROM inventory
		 WHERE player_id = $1 ORDER BY item_id`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list inventory: %w", err)
	}
	defer rows.Close()

	var items []model.InventoryItem
	for rows.Next() {
		var it model.InventoryItem
		if err := rows.Scan(&it.PlayerID, &it.ItemID, &it.Quantity); err != nil {
			return nil, fmt.Errorf("storage: scan inventory item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ItemQuantity returns how many units of an item the player holds.
func (db *DB) ItemQuantity(ctx context.Context, playerID int64, itemID string) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT COALESCE(
			(SELECT quantity FROM inventory WHERE player_id = $1 AND item_id = $2), 0
		)`,
		playerID, itemID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: item quantity: %w", err)
	}
	return n, nil
}
