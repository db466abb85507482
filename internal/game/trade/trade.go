// Package trade implements the two-party duplicate swap protocol.
//
// A proposal is cheap and holds no locks: ownership and quota are checked
// again at confirmation time, and the settlement itself is a single storage
// transaction, so a proposal that went stale simply fails to confirm.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/critterdex/critterdex/internal/game/ledger"
	"github.com/critterdex/critterdex/internal/model"
	"github.com/critterdex/critterdex/internal/storage"
)

// Sentinel errors returned by the trade protocol.
var (
	ErrSelfTrade      = errors.New("trade: cannot trade with yourself")
	ErrQuotaExhausted = errors.New("trade: daily trade limit reached")
	ErrNoDuplicate    = errors.New("trade: party does not hold a spare of that critter")
	ErrPending        = errors.New("trade: proposer already has an outstanding proposal")
	ErrNotParty       = errors.New("trade: actor is not part of this trade")
	ErrNotRecipient   = errors.New("trade: only the recipient can confirm")
	ErrStockChanged   = errors.New("trade: a party no longer holds its committed spare")
	ErrRestricted     = errors.New("trade: party is not allowed to trade")
)

// ActorGate vetoes restricted participants (bots, banned players). A nil gate
// allows everyone.
type ActorGate interface {
	Restricted(ctx context.Context, playerID int64) (bool, error)
}

// RestrictionGate is the ActorGate backed by the player restriction flag.
type RestrictionGate struct {
	db *storage.DB
}

// NewRestrictionGate creates the storage-backed gate.
func NewRestrictionGate(db *storage.DB) *RestrictionGate {
	return &RestrictionGate{db: db}
}

func (g *RestrictionGate) Restricted(ctx context.Context, playerID int64) (bool, error) {
	return g.db.PlayerRestricted(ctx, playerID)
}

// Config holds the trade tunables.
type Config struct {
	DailyLimit int
	// Zone is the local zone whose midnight resets the daily quota.
	Zone *time.Location
}

// Service implements propose/confirm/reject.
type Service struct {
	cfg    Config
	db     *storage.DB
	ledger *ledger.Service
	gate   ActorGate
	logger *slog.Logger
	now    func() time.Time
}

// New creates a trade service. gate may be nil.
func New(cfg Config, db *storage.DB, led *ledger.Service, gate ActorGate, logger *slog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		db:     db,
		ledger: led,
		gate:   gate,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) localDate() string {
	return s.now().In(s.cfg.Zone).Format("2006-01-02")
}

// Propose opens a trade: the proposer offers one of their spares for one of
// the recipient's. Validation is best-effort snapshot; everything is checked
// again at confirmation.
func (s *Service) Propose(ctx context.Context, proposerID, recipientID int64, offered, requested model.OwnedCritter) (model.TradeProposal, error) {
	if proposerID == recipientID {
		return model.TradeProposal{}, ErrSelfTrade
	}
	for _, id := range []int64{proposerID, recipientID} {
		if err := s.checkActor(ctx, id); err != nil {
			return model.TradeProposal{}, err
		}
	}

	if has, err := s.ledger.HasDuplicate(ctx, proposerID, offered); err != nil {
		return model.TradeProposal{}, err
	} else if !has {
		return model.TradeProposal{}, fmt.Errorf("proposer: %w", ErrNoDuplicate)
	}
	if has, err := s.ledger.HasDuplicate(ctx, recipientID, requested); err != nil {
		return model.TradeProposal{}, err
	} else if !has {
		return model.TradeProposal{}, fmt.Errorf("recipient: %w", ErrNoDuplicate)
	}

	t, err := s.db.CreateTrade(ctx, model.TradeProposal{
		ProposerID:  proposerID,
		RecipientID: recipientID,
		Offered:     offered,
		Requested:   requested,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return model.TradeProposal{}, ErrPending
		}
		return model.TradeProposal{}, fmt.Errorf("trade: propose: %w", err)
	}

	s.logger.Info("trade proposed",
		"trade_id", t.ID, "proposer_id", proposerID, "recipient_id", recipientID)
	return t, nil
}

// Confirm settles a proposal. Only the recipient can confirm. Both parties'
// holdings and quotas are re-validated inside the settlement transaction;
// any violation aborts with nothing changed.
func (s *Service) Confirm(ctx context.Context, tradeID uuid.UUID, actorID int64) (model.TradeSettlement, error) {
	t, err := s.db.GetTrade(ctx, tradeID)
	if err != nil {
		return model.TradeSettlement{}, fmt.Errorf("trade: confirm: %w", err)
	}
	if actorID != t.RecipientID {
		return model.TradeSettlement{}, ErrNotRecipient
	}

	proposerPayout, err := ledger.Payout(t.Requested)
	if err != nil {
		return model.TradeSettlement{}, err
	}
	recipientPayout, err := ledger.Payout(t.Offered)
	if err != nil {
		return model.TradeSettlement{}, err
	}

	settlement, err := s.db.SettleTrade(ctx, tradeID, s.localDate(), s.cfg.DailyLimit, proposerPayout, recipientPayout)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrQuotaExhausted):
			return model.TradeSettlement{}, fmt.Errorf("%w: %s", ErrQuotaExhausted, err)
		case errors.Is(err, storage.ErrStockChanged):
			return model.TradeSettlement{}, ErrStockChanged
		case errors.Is(err, storage.ErrNotFound):
			return model.TradeSettlement{}, fmt.Errorf("trade: confirm: %w", err)
		}
		return model.TradeSettlement{}, fmt.Errorf("trade: confirm: %w", err)
	}

	s.logger.Info("trade settled",
		"trade_id", tradeID,
		"proposer_status", settlement.ProposerStatus,
		"recipient_status", settlement.RecipientStatus)
	return settlement, nil
}

// Reject closes a proposal without touching the ledger. Either party can
// reject; a proposer rejecting their own trade is a cancellation.
func (s *Service) Reject(ctx context.Context, tradeID uuid.UUID, actorID int64) error {
	t, err := s.db.GetTrade(ctx, tradeID)
	if err != nil {
		return fmt.Errorf("trade: reject: %w", err)
	}
	if actorID != t.ProposerID && actorID != t.RecipientID {
		return ErrNotParty
	}
	if err := s.db.RejectTrade(ctx, tradeID); err != nil {
		return fmt.Errorf("trade: reject: %w", err)
	}
	s.logger.Info("trade rejected", "trade_id", tradeID, "actor_id", actorID)
	return nil
}

// Pending returns the proposer's outstanding trade, if any.
func (s *Service) Pending(ctx context.Context, proposerID int64) (model.TradeProposal, bool, error) {
	t, err := s.db.OpenTradeByProposer(ctx, proposerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.TradeProposal{}, false, nil
		}
		return model.TradeProposal{}, false, err
	}
	return t, true, nil
}

// checkActor verifies quota headroom and the actor gate for one party.
func (s *Service) checkActor(ctx context.Context, playerID int64) error {
	if s.gate != nil {
		restricted, err := s.gate.Restricted(ctx, playerID)
		if err != nil {
			return fmt.Errorf("trade: actor gate: %w", err)
		}
		if restricted {
			return fmt.Errorf("player %d: %w", playerID, ErrRestricted)
		}
	}

	p, err := s.db.GetPlayer(ctx, playerID)
	if err != nil {
		return fmt.Errorf("trade: load party: %w", err)
	}
	if p.LastTradeDate == s.localDate() && p.DailyTrades >= s.cfg.DailyLimit {
		return fmt.Errorf("player %d: %w", playerID, ErrQuotaExhausted)
	}
	return nil
}
