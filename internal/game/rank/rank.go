// Package rank implements the monthly catch ranking and its payout job.
package rank

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/critterdex/critterdex/internal/model"
	"github.com/critterdex/critterdex/internal/storage"
)

// payouts for the global top three, best first.
var payouts = []int64{3000, 2000, 1000}

// Service reads rankings and runs the monthly settlement.
type Service struct {
	db     *storage.DB
	zone   *time.Location
	logger *slog.Logger
	now    func() time.Time
}

// New creates a rank service.
func New(db *storage.DB, zone *time.Location, logger *slog.Logger) *Service {
	return &Service{db: db, zone: zone, logger: logger, now: time.Now}
}

// Global returns the global monthly ranking.
func (s *Service) Global(ctx context.Context, limit int) ([]model.Player, error) {
	return s.db.TopPlayersByCatches(ctx, limit)
}

// Room returns a room's monthly ranking.
func (s *Service) Room(ctx context.Context, roomID int64, limit int) ([]model.RoomMember, error) {
	return s.db.TopMembersByCatches(ctx, roomID, limit)
}

// Run checks once a day whether a new month started and, if so, settles the
// previous month: the global top three get mailed their payout and all
// counters reset. Blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	if err := s.settleIfDue(ctx); err != nil {
		s.logger.Error("monthly settlement", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.settleIfDue(ctx); err != nil {
				s.logger.Error("monthly settlement", "error", err)
			}
		}
	}
}

// settleIfDue pays and resets on the first local-zone day of the month.
// The reset makes the job naturally idempotent: a second run on the 1st finds
// zeroed counters and pays nobody.
func (s *Service) settleIfDue(ctx context.Context) error {
	if s.now().In(s.zone).Day() != 1 {
		return nil
	}
	return s.Settle(ctx)
}

// Settle pays the global top three by mail and resets all monthly counters.
func (s *Service) Settle(ctx context.Context) error {
	top, err := s.db.TopPlayersByCatches(ctx, len(payouts))
	if err != nil {
		return fmt.Errorf("rank: read ranking: %w", err)
	}
	for i, p := range top {
		_, err := s.db.CreateMail(ctx, model.Mail{
			RecipientID: p.ID,
			Kind:        model.MailMoney,
			Amount:      payouts[i],
			Note:        fmt.Sprintf("monthly ranking reward (#%d, %d catches)", i+1, p.MonthlyCatches),
		})
		if err != nil {
			return fmt.Errorf("rank: mail payout: %w", err)
		}
		s.logger.Info("ranking payout mailed", "player_id", p.ID, "place", i+1, "amount", payouts[i])
	}
	if err := s.db.ResetMonthlyCatches(ctx); err != nil {
		return fmt.Errorf("rank: reset counters: %w", err)
	}
	return nil
}
