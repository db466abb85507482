package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/critterdex/critterdex/internal/model"
)

const mailColumns = `id, recipient_id, kind, amount, item_id, critter_id, critter_shiny,
 note, claimed, created_at`

func scanMail(row pgx.Row) (model.Mail, error) {
	var m model.Mail
	err := row.Scan(
		&m.ID, &m.RecipientID, &m.Kind, &m.Amount, &m.ItemID, &m.Critter.CritterID,
		&m.Critter.Shiny, &m.Note, &m.Claimed, &m.CreatedAt,
	)
	return m, err
}

// CreateMail deposits a reward in a player's mailbox.
func (db *DB) CreateMail(ctx context.Context, m model.Mail) (model.Mail, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO mailbox (id, recipient_id, kind, amount, item_id, critter_id, critter_shiny, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.RecipientID, m.Kind, m.Amount, m.ItemID, m.Critter.CritterID,
		m.Critter.Shiny, m.Note, m.CreatedAt,
	)
	if err != nil {
		return model.Mail{}, fmt.Errorf("storage: create mail: %w", err)
	}
	return m, nil
}

// ListUnclaimedMail returns the player's pending mail, oldest first.
func (db *DB) ListUnclaimedMail(ctx context.Context, recipientID int64) ([]model.Mail, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+mailColumns+` FROM mailbox
		 WHERE recipient_id = $1 AND NOT claimed
		 ORDER BY created_at ASC`,
		recipientID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list unclaimed mail: %w", err)
	}
	defer rows.Close()

	var mail []model.Mail
	for rows.Next() {
		m, err := scanMail(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan mail: %w", err)
		}
		mail = append(mail, m)
	}
	return mail, rows.Err()
}

// ClaimMail marks a piece of mail claimed and returns it. Only the recipient
// can claim, and only once: a second claim returns ErrNotFound.
func (db *DB) ClaimMail(ctx context.Context, id uuid.UUID, recipientID int64) (model.Mail, error) {
	m, err := scanMail(db.pool.QueryRow(ctx,
		`UPDATE mailbox SET claimed = TRUE
		 WHERE id = $1 AND recipient_id = $2 AND NOT claimed
		 RETURNING `+mailColumns,
		id, recipientID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Mail{}, ErrNotFound
		}
		return model.Mail{}, fmt.Errorf("storage: claim mail: %w", err)
	}
	return m, nil
}
