// Package chance implements the per-player capture-chance model.
//
// Every player starts at the ceiling. A successful capture lowers the chance
// by one step, a failed attempt raises it back, and the value never leaves
// the [floor, ceiling] band. The model is deliberately forgiving: repeated
// failure walks a player back to guaranteed captures.
package chance

import (
	"context"
	"fmt"

	"github.com/critterdex/critterdex/internal/storage"
)

// Model holds the tunables of the capture-chance walk.
type Model struct {
	Step    int
	Floor   int
	Ceiling int
}

// Clamp forces v into the model's band.
func (m Model) Clamp(v int) int {
	if v < m.Floor {
		return m.Floor
	}
	if v > m.Ceiling {
		return m.Ceiling
	}
	return v
}

// Lower returns the chance after a successful capture.
func (m Model) Lower(current int) int {
	return m.Clamp(current - m.Step)
}

// Raise returns the chance after a failed attempt.
func (m Model) Raise(current int) int {
	return m.Clamp(current + m.Step)
}

// Service persists chance adjustments through the player store.
type Service struct {
	db    *storage.DB
	model Model
}

// New creates a chance service.
func New(db *storage.DB, model Model) *Service {
	return &Service{db: db, model: model}
}

// Chance returns the player's current capture chance, clamped into the
// configured band in case the band tightened since the value was stored.
func (s *Service) Chance(ctx context.Context, playerID int64) (int, error) {
	p, err := s.db.GetPlayer(ctx, playerID)
	if err != nil {
		return 0, fmt.Errorf("chance: load player: %w", err)
	}
	return s.model.Clamp(p.CaptureChance), nil
}

// RecordSuccess lowers the player's chance one step and returns the new value.
func (s *Service) RecordSuccess(ctx context.Context, playerID int64) (int, error) {
	return s.adjust(ctx, playerID, s.model.Lower)
}

// RecordFailure raises the player's chance one step and returns the new value.
func (s *Service) RecordFailure(ctx context.Context, playerID int64) (int, error) {
	return s.adjust(ctx, playerID, s.model.Raise)
}

func (s *Service) adjust(ctx context.Context, playerID int64, f func(int) int) (int, error) {
	p, err := s.db.GetPlayer(ctx, playerID)
	if err != nil {
		return 0, fmt.Errorf("chance: load player: %w", err)
	}
	next := f(p.CaptureChance)
	if next != p.CaptureChance {
		if err := s.db.SetCaptureChance(ctx, playerID, next); err != nil {
			return 0, fmt.Errorf("chance: store adjustment: %w", err)
		}
	}
	return next, nil
}
