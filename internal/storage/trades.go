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

const tradeColumns = `id, proposer_id, recipient_id, offered_critter_id, offered_shiny,
 requested_critter_id, requested_shiny, state, created_at, resolved_at`

func scanTrade(row pgx.Row) (model.TradeProposal, error) {
	var t model.TradeProposal
	err := row.Scan(
		&t.ID, &t.ProposerID, &t.RecipientID, &t.Offered.CritterID, &t.Offered.Shiny,
		&t.Requested.CritterID, &t.Requested.Shiny, &t.State, &t.CreatedAt, &t.ResolvedAt,
	)
	return t, err
}

// CreateTrade inserts a new proposal in the proposed state. A partial unique
// index allows one outstanding proposal per proposer; a second insert fails
// with ErrConflict.
func (db *DB) CreateTrade(ctx context.Context, t model.TradeProposal) (model.TradeProposal, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.State = model.TradeProposed
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO trades (id, proposer_id, recipient_id, offered_critter_id, offered_shiny,
		 requested_critter_id, requested_shiny, state, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.ProposerID, t.RecipientID, t.Offered.CritterID, t.Offered.Shiny,
		t.Requested.CritterID, t.Requested.Shiny, t.State, t.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.TradeProposal{}, ErrConflict
		}
		return model.TradeProposal{}, fmt.Errorf("storage: create trade: %w", err)
	}
	return t, nil
}

// GetTrade retrieves a proposal by ID.
func (db *DB) GetTrade(ctx context.Context, id uuid.UUID) (model.TradeProposal, error) {
	t, err := scanTrade(db.pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TradeProposal{}, ErrNotFound
		}
		return model.TradeProposal{}, fmt.Errorf("storage: get trade: %w", err)
	}
	return t, nil
}

// OpenTradeByProposer returns the proposer's outstanding proposal, if any.
func (db *DB) OpenTradeByProposer(ctx context.Context, proposerID int64) (model.TradeProposal, error) {
	t, err := scanTrade(db.pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE proposer_id = $1 AND state = $2`,
		proposerID, model.TradeProposed,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TradeProposal{}, ErrNotFound
		}
		return model.TradeProposal{}, fmt.Errorf("storage: open trade by proposer: %w", err)
	}
	return t, nil
}

// RejectTrade moves a proposed trade to rejected. Returns ErrNotFound when the
// trade does not exist or was already resolved, so a double-reject is a no-op
// for the caller to report.
func (db *DB) RejectTrade(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE trades SET state = $2, resolved_at = now()
		 WHERE id = $1 AND state = $3`,
		id, model.TradeRejected, model.TradeProposed,
	)
	if err != nil {
		return fmt.Errorf("storage: reject trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SettleTrade atomically confirms a proposed trade: both parties' daily quota
// is consumed, each side spends its outgoing copy and is credited the incoming
// one under the normal ledger rules, and the trade moves to confirmed. Any
// failed step rolls back the whole settlement.
//
// quotaDate is today's date (YYYY-MM-DD) in the game zone; quotaLimit the
// per-day trade cap. ErrQuotaExhausted identifies which side ran out via the
// wrapped message. Payouts passed in are the liquidation values for each
// side's incoming collectible, applied only on a capped credit.
func (db *DB) SettleTrade(ctx context.Context, id uuid.UUID, quotaDate string, quotaLimit int, proposerPayout, recipientPayout int64) (model.TradeSettlement, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.TradeSettlement{}, fmt.Errorf("storage: begin settle tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the trade row; only a proposed trade can settle.
	t, err := scanTrade(tx.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = $1 AND state = $2 FOR UPDATE`,
		id, model.TradeProposed,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TradeSettlement{}, ErrNotFound
		}
		return model.TradeSettlement{}, fmt.Errorf("storage: lock trade: %w", err)
	}

	for _, partyID := range []int64{t.ProposerID, t.RecipientID} {
		ok, err := consumeTradeQuotaTx(ctx, tx, partyID, quotaDate, quotaLimit)
		if err != nil {
			return model.TradeSettlement{}, err
		}
		if !ok {
			return model.TradeSettlement{}, fmt.Errorf("player %d: %w", partyID, ErrQuotaExhausted)
		}
	}

	// Both sides must still hold the copies they committed.
	if err := spendSpareTx(ctx, tx, t.ProposerID, t.Offered); err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.TradeSettlement{}, ErrStockChanged
		}
		return model.TradeSettlement{}, err
	}
	if err := spendSpareTx(ctx, tx, t.RecipientID, t.Requested); err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.TradeSettlement{}, ErrStockChanged
		}
		return model.TradeSettlement{}, err
	}

	var s model.TradeSettlement
	s.ProposerStatus, err = creditCritterTx(ctx, tx, t.ProposerID, t.Requested, proposerPayout)
	if err != nil {
		return model.TradeSettlement{}, err
	}
	if s.ProposerStatus == model.CreditCapped {
		s.ProposerPayout = proposerPayout
	}
	s.RecipientStatus, err = creditCritterTx(ctx, tx, t.RecipientID, t.Offered, recipientPayout)
	if err != nil {
		return model.TradeSettlement{}, err
	}
	if s.RecipientStatus == model.CreditCapped {
		s.RecipientPayout = recipientPayout
	}

	if _, err := tx.Exec(ctx,
		`UPDATE trades SET state = $2, resolved_at = now() WHERE id = $1`,
		id, model.TradeConfirmed,
	); err != nil {
		return model.TradeSettlement{}, fmt.Errorf("storage: confirm trade: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.TradeSettlement{}, fmt.Errorf("storage: commit settle tx: %w", err)
	}
	return s, nil
}

// consumeTradeQuotaTx increments the player's daily trade counter if there is
// quota left for localDate. A date change resets the counter before the check.
// Returns false without error when the quota is exhausted.
func consumeTradeQuotaTx(ctx context.Context, tx pgx.Tx, id int64, localDate string, limit int) (bool, error) {
	tag, err := tx.Exec(ctx,
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
