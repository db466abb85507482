// Package shop sells critter packs. Buying moves a pack into the player's
// bag; opening consumes it and credits the rolled contents through the
// ledger, so pack pulls obey the same duplicate rules as wild catches.
package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/critterdex/critterdex/internal/catalog"
	"github.com/critterdex/critterdex/internal/game/ledger"
	"github.com/critterdex/critterdex/internal/game/spawn"
	"github.com/critterdex/critterdex/internal/model"
	"github.com/critterdex/critterdex/internal/storage"
)

// Pack is a purchasable bundle of critter pulls. Magic packs only pull
// critters the opener does not already own.
type Pack struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Pulls int    `json:"pulls"`
	Magic bool   `json:"magic"`
}

// Packs is the shop catalog.
var Packs = []Pack{
	{ID: "pack_basic", Name: "Basic Pack", Price: 500, Pulls: 1},
	{ID: "pack_triple", Name: "Triple Pack", Price: 1400, Pulls: 3},
	{ID: "pack_mega", Name: "Mega Pack", Price: 2200, Pulls: 5},
	{ID: "magic_basic", Name: "Magic Pack", Price: 1000, Pulls: 1, Magic: true},
	{ID: "magic_triple", Name: "Magic Triple Pack", Price: 2800, Pulls: 3, Magic: true},
}

// PackByID looks up a pack definition.
func PackByID(id string) (Pack, bool) {
	for _, p := range Packs {
		if p.ID == id {
			return p, true
		}
	}
	return Pack{}, false
}

// Sentinel errors.
var (
	ErrUnknownPack       = errors.New("shop: unknown pack")
	ErrInsufficientFunds = errors.New("shop: insufficient funds")
	ErrNoPack            = errors.New("shop: no such pack in bag")
	ErrOpenCooldown      = errors.New("shop: opening too fast")
)

// OpenCooldown is the minimum gap between pack openings per player.
const OpenCooldown = 15 * time.Second

// Pull is one rolled pack content.
type Pull struct {
	Critter model.Critter      `json:"critter"`
	Shiny   bool               `json:"shiny"`
	Rarity  model.Rarity       `json:"rarity"`
	Status  model.CreditStatus `json:"status"`
	Payout  int64              `json:"payout,omitempty"`
}

// Config holds the draw tunables, shared with the spawn scheduler.
type Config struct {
	Weights     spawn.Weights
	ShinyChance float64
}

// Service implements the shop.
type Service struct {
	cfg    Config
	db     *storage.DB
	ledger *ledger.Service
	logger *slog.Logger

	mu        sync.Mutex
	lastOpens map[int64]time.Time

	now  func() time.Time
	roll func(n int) int
	rnd  func() float64
}

// New creates a shop service.
func New(cfg Config, db *storage.DB, led *ledger.Service, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		db:        db,
		ledger:    led,
		logger:    logger,
		lastOpens: make(map[int64]time.Time),
		now:       time.Now,
		roll:      rand.IntN,
		rnd:       rand.Float64,
	}
}

// Buy charges the pack price and puts the pack in the player's bag.
func (s *Service) Buy(ctx context.Context, playerID int64, packID string) (Pack, error) {
	pack, ok := PackByID(packID)
	if !ok {
		return Pack{}, ErrUnknownPack
	}
	if _, err := s.db.AdjustBalance(ctx, playerID, -pack.Price); err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) {
			return Pack{}, ErrInsufficientFunds
		}
		return Pack{}, fmt.Errorf("shop: charge pack: %w", err)
	}
	if err := s.db.AddItem(ctx, playerID, pack.ID, 1); err != nil {
		if _, refundErr := s.db.AdjustBalance(ctx, playerID, pack.Price); refundErr != nil {
			s.logger.Error("refund failed purchase", "player_id", playerID, "pack", packID, "error", refundErr)
		}
		return Pack{}, fmt.Errorf("shop: stock pack: %w", err)
	}
	s.logger.Info("pack bought", "player_id", playerID, "pack", packID)
	return pack, nil
}

// Open consumes one pack from the bag and credits its pulls. Openings are
// throttled per player so a stack of packs cannot be burst-opened.
func (s *Service) Open(ctx context.Context, playerID int64, packID string) ([]Pull, error) {
	pack, ok := PackByID(packID)
	if !ok {
		return nil, ErrUnknownPack
	}

	if err := s.checkOpenCooldown(playerID); err != nil {
		return nil, err
	}

	if err := s.db.ConsumeItem(ctx, playerID, pack.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoPack
		}
		return nil, fmt.Errorf("shop: consume pack: %w", err)
	}

	pulls := make([]Pull, 0, pack.Pulls)
	for range pack.Pulls {
		c := s.drawCritter(ctx, playerID, pack.Magic)
		pull := Pull{
			Critter: c,
			Shiny:   s.rnd() < s.cfg.ShinyChance,
		}
		pull.Rarity = c.Rarity(pull.Shiny)
		status, payout, err := s.ledger.Credit(ctx, playerID, model.OwnedCritter{CritterID: c.ID, Shiny: pull.Shiny})
		if err != nil {
			return pulls, fmt.Errorf("shop: credit pull: %w", err)
		}
		pull.Status = status
		pull.Payout = payout
		pulls = append(pulls, pull)
	}

	s.logger.Info("pack opened", "player_id", playerID, "pack", packID, "pulls", len(pulls))
	return pulls, nil
}

func (s *Service) checkOpenCooldown(playerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if last, ok := s.lastOpens[playerID]; ok && now.Sub(last) < OpenCooldown {
		return ErrOpenCooldown
	}
	s.lastOpens[playerID] = now
	return nil
}

// drawCritter rolls one pack content. Magic packs retry a bounded number of
// times for a critter the player does not own, then fall back to whatever
// the last roll produced.
func (s *Service) drawCritter(ctx context.Context, playerID int64, magic bool) model.Critter {
	attempts := 1
	if magic {
		attempts = 20
	}
	var c model.Critter
	for range attempts {
		tier := s.pickTier()
		pool := catalog.ByTier(tier)
		c = pool[s.roll(len(pool))]
		if !magic {
			return c
		}
		owned, err := s.db.HasCopy(ctx, playerID, model.OwnedCritter{CritterID: c.ID})
		if err != nil {
			s.logger.Warn("check ownership for magic pull", "player_id", playerID, "error", err)
			return c
		}
		if !owned {
			return c
		}
	}
	return c
}

func (s *Service) pickTier() model.Tier {
	w := s.cfg.Weights
	roll := s.roll(w.C + w.B + w.A + w.S)
	switch {
	case roll < w.C:
		return model.TierC
	case roll < w.C+w.B:
		return model.TierB
	case roll < w.C+w.B+w.A:
		return model.TierA
	default:
		return model.TierS
	}
}
