// Package raffle implements the once-a-day prize draw.
package raffle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/critterdex/critterdex/internal/model"
	"github.com/critterdex/critterdex/internal/storage"
)

// ErrAlreadyPlayed means the player already drew today.
var ErrAlreadyPlayed = errors.New("raffle: already played today")

// Prize is one raffle outcome.
type Prize struct {
	// Amount is credited directly for money prizes.
	Amount int64 `json:"amount,omitempty"`
	// PackID is mailed for pack prizes.
	PackID string `json:"pack_id,omitempty"`
	Label  string `json:"label"`
}

// prizes with their draw weights, best prize last.
var prizes = []struct {
	weight int
	prize  Prize
}{
	{50, Prize{Amount: 100, Label: "100 coins"}},
	{30, Prize{Amount: 200, Label: "200 coins"}},
	{15, Prize{Amount: 400, Label: "400 coins"}},
	{5, Prize{PackID: "magic_basic", Label: "a magic pack"}},
}

// Service implements the raffle.
type Service struct {
	db     *storage.DB
	zone   *time.Location
	logger *slog.Logger

	now  func() time.Time
	roll func(n int) int
}

// New creates a raffle service.
func New(db *storage.DB, zone *time.Location, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		zone:   zone,
		logger: logger,
		now:    time.Now,
		roll:   rand.IntN,
	}
}

// Play draws today's prize for the player. Each player draws at most once per
// local-zone day.
func (s *Service) Play(ctx context.Context, playerID int64) (Prize, error) {
	localDate := s.now().In(s.zone).Format("2006-01-02")
	ok, err := s.db.ConsumeRaffleTicket(ctx, playerID, localDate)
	if err != nil {
		return Prize{}, err
	}
	if !ok {
		return Prize{}, ErrAlreadyPlayed
	}

	prize := s.draw()
	switch {
	case prize.Amount > 0:
		if _, err := s.db.AdjustBalance(ctx, playerID, prize.Amount); err != nil {
			return Prize{}, fmt.Errorf("raffle: credit prize: %w", err)
		}
	case prize.PackID != "":
		_, err := s.db.CreateMail(ctx, model.Mail{
			RecipientID: playerID,
			Kind:        model.MailItem,
			ItemID:      prize.PackID,
			Note:        "daily raffle prize",
		})
		if err != nil {
			return Prize{}, fmt.Errorf("raffle: mail prize: %w", err)
		}
	}

	s.logger.Info("raffle played", "player_id", playerID, "prize", prize.Label)
	return prize, nil
}

func (s *Service) draw() Prize {
	total := 0
	for _, p := range prizes {
		total += p.weight
	}
	roll := s.roll(total)
	for _, p := range prizes {
		if roll < p.weight {
			return p.prize
		}
		roll -= p.weight
	}
	return prizes[0].prize
}
