// Package ledger applies the collection rules on top of the storage layer:
// two copies of any collectible at most, with excess copies liquidated for
// currency at a rarity-based rate.
package ledger

import (
	"context"
	"fmt"

	"github.com/critterdex/critterdex/internal/catalog"
	"github.com/critterdex/critterdex/internal/model"
	"github.com/critterdex/critterdex/internal/storage"
)

// Service wraps the collection ledger.
type Service struct {
	db *storage.DB
}

// New creates a ledger service.
func New(db *storage.DB) *Service {
	return &Service{db: db}
}

// Payout returns the liquidation value of an excess copy of the collectible.
func Payout(c model.OwnedCritter) (int64, error) {
	entry, ok := catalog.ByID(c.CritterID)
	if !ok {
		return 0, fmt.Errorf("ledger: unknown critter id %d", c.CritterID)
	}
	return model.DuplicatePayout(entry.Rarity(c.Shiny)), nil
}

// Credit records a caught copy. The payout is non-zero only for a Capped
// credit, where the copy was liquidated instead of stored.
func (s *Service) Credit(ctx context.Context, playerID int64, c model.OwnedCritter) (model.CreditStatus, int64, error) {
	payout, err := Payout(c)
	if err != nil {
		return "", 0, err
	}
	status, err := s.db.CreditCritter(ctx, playerID, c, payout)
	if err != nil {
		return "", 0, fmt.Errorf("ledger: credit: %w", err)
	}
	if status != model.CreditCapped {
		payout = 0
	}
	return status, payout, nil
}

// Duplicates lists the collectibles the player holds a tradable spare of.
func (s *Service) Duplicates(ctx context.Context, playerID int64) ([]model.OwnedCritter, error) {
	dups, err := s.db.ListDuplicates(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("ledger: duplicates: %w", err)
	}
	return dups, nil
}

// HasDuplicate reports whether the player holds a spare of the collectible.
func (s *Service) HasDuplicate(ctx context.Context, playerID int64, c model.OwnedCritter) (bool, error) {
	has, err := s.db.HasSpare(ctx, playerID, c)
	if err != nil {
		return false, fmt.Errorf("ledger: has duplicate: %w", err)
	}
	return has, nil
}

// Spend gives up the player's spare copy, for gifting. Trade settlement
// spends inside its own transaction instead.
func (s *Service) Spend(ctx context.Context, playerID int64, c model.OwnedCritter) error {
	if err := s.db.SpendSpare(ctx, playerID, c); err != nil {
		return fmt.Errorf("ledger: spend: %w", err)
	}
	return nil
}

// Collection returns the player's full ledger.
func (s *Service) Collection(ctx context.Context, playerID int64) ([]storage.CollectionEntry, error) {
	entries, err := s.db.ListCollection(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("ledger: collection: %w", err)
	}
	return entries, nil
}
