// Package claim resolves capture attempts against live spawns.
//
// An attempt only mutates persistent state after it wins the registry race:
// a claimant who finds the spawn gone, loses the removal, or fails the
// capture roll leaves the ledger and balances untouched (a failed roll only
// nudges the attacker's own capture chance and starts their retry cooldown).
package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/critterdex/critterdex/internal/catalog"
	"github.com/critterdex/critterdex/internal/game/chance"
	"github.com/critterdex/critterdex/internal/game/ledger"
	"github.com/critterdex/critterdex/internal/game/spawn"
	"github.com/critterdex/critterdex/internal/model"
	"github.com/critterdex/critterdex/internal/storage"
)

// ErrTooLate means the spawn is gone: never existed, already claimed, or
// swept. The attempt had no side effects.
var ErrTooLate = errors.New("claim: too late")

// CooldownError means the player must wait before retrying this spawn.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("claim: on cooldown for %s", e.Remaining.Round(time.Second))
}

// Result describes a resolved attempt.
type Result struct {
	Caught  bool           `json:"caught"`
	Critter model.Critter  `json:"critter"`
	Shiny   bool           `json:"shiny"`
	Rarity  model.Rarity   `json:"rarity"`
	// Chance is the player's capture chance after this attempt.
	Chance int `json:"chance"`

	// Set only on a catch.
	Status model.CreditStatus `json:"status,omitempty"`
	Payout int64              `json:"payout,omitempty"`
	// ArtifactRef is the spawn announcement to retract.
	ArtifactRef string `json:"-"`

	// Milestones reached by this catch.
	RegionCompleted    bool  `json:"region_completed,omitempty"`
	RegionPayout       int64 `json:"region_payout,omitempty"`
	ChallengeCompleted bool  `json:"challenge_completed,omitempty"`
}

// Config holds the claim tunables.
type Config struct {
	Cooldown             time.Duration
	MilestonePayout      int64
	GroupMilestonePayout int64
	QualifiedMinMembers  int
}

// Service resolves claims.
type Service struct {
	cfg      Config
	db       *storage.DB
	registry *spawn.Registry
	chance   *chance.Service
	ledger   *ledger.Service
	logger   *slog.Logger

	// roll returns a uniform value in [0,100). Replaceable in tests.
	roll func() int
	now  func() time.Time
}

// New creates a claim service.
func New(cfg Config, db *storage.DB, registry *spawn.Registry, ch *chance.Service, led *ledger.Service, logger *slog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		db:       db,
		registry: registry,
		chance:   ch,
		ledger:   led,
		logger:   logger,
		roll:     func() int { return rand.IntN(100) },
		now:      time.Now,
	}
}

// Attempt resolves one capture attempt by playerID against a spawn.
func (s *Service) Attempt(ctx context.Context, roomID int64, spawnID uuid.UUID, playerID int64) (Result, error) {
	e, ok := s.registry.Get(roomID, spawnID)
	if !ok {
		return Result{}, ErrTooLate
	}

	if remaining := s.registry.CooldownRemaining(spawnID, playerID, s.now(), s.cfg.Cooldown); remaining > 0 {
		return Result{}, &CooldownError{Remaining: remaining}
	}

	cur, err := s.chance.Chance(ctx, playerID)
	if err != nil {
		return Result{}, err
	}

	if s.roll() >= cur {
		// Missed. The spawn stays up for everyone, including this player
		// after their cooldown. The miss stands even if the spawn was won
		// mid-roll: ErrTooLate is reserved for attempts with no side effects,
		// and the chance nudge has already landed.
		next, err := s.chance.RecordFailure(ctx, playerID)
		if err != nil {
			return Result{}, err
		}
		s.registry.FailedAttempt(roomID, spawnID, playerID, s.now())

		return Result{
			Caught:  false,
			Critter: e.Critter,
			Shiny:   e.Shiny,
			Rarity:  e.Critter.Rarity(e.Shiny),
			Chance:  next,
		}, nil
	}

	// The roll succeeded; the removal decides the race.
	claimed, won := s.registry.Remove(roomID, spawnID)
	if !won {
		return Result{}, ErrTooLate
	}

	return s.settleCatch(ctx, claimed, playerID)
}

// settleCatch applies the persistent effects of a won claim.
func (s *Service) settleCatch(ctx context.Context, e spawn.Entry, playerID int64) (Result, error) {
	res := Result{
		Caught:      true,
		Critter:     e.Critter,
		Shiny:       e.Shiny,
		Rarity:      e.Critter.Rarity(e.Shiny),
		ArtifactRef: e.ArtifactRef,
	}

	next, err := s.chance.RecordSuccess(ctx, playerID)
	if err != nil {
		return res, err
	}
	res.Chance = next

	owned := model.OwnedCritter{CritterID: e.Critter.ID, Shiny: e.Shiny}
	res.Status, res.Payout, err = s.ledger.Credit(ctx, playerID, owned)
	if err != nil {
		return res, err
	}

	// Counters and milestones must not undo a completed catch; failures here
	// are logged and the catch stands.
	if err := s.db.IncrementMonthlyCatches(ctx, playerID); err != nil {
		s.logger.Error("bump monthly catches", "player_id", playerID, "error", err)
	}
	if err := s.db.EnsureRoomMember(ctx, e.RoomID, playerID); err != nil {
		s.logger.Error("ensure room member", "room_id", e.RoomID, "player_id", playerID, "error", err)
	} else if err := s.db.IncrementMemberCatches(ctx, e.RoomID, playerID); err != nil {
		s.logger.Error("bump member catches", "room_id", e.RoomID, "player_id", playerID, "error", err)
	}

	s.applyMilestones(ctx, e, playerID, &res)

	s.logger.Info("critter caught",
		"room_id", e.RoomID, "spawn_id", e.ID, "player_id", playerID,
		"critter", e.Critter.Name, "rarity", res.Rarity, "status", res.Status)
	return res, nil
}

func (s *Service) applyMilestones(ctx context.Context, e spawn.Entry, playerID int64, res *Result) {
	qualified, err := s.roomQualified(ctx, e.RoomID)
	if err != nil {
		s.logger.Error("check room qualification", "room_id", e.RoomID, "error", err)
		return
	}

	regionIDs := catalog.RegionIDs(e.Critter.Region)
	regionSize := len(regionIDs)

	// Player milestone: every catalog id collected at least once.
	n, err := s.db.UniqueCount(ctx, playerID, regionIDs)
	if err != nil {
		s.logger.Error("count unique catches", "player_id", playerID, "error", err)
	} else if n >= regionSize {
		flipped, err := s.db.MarkRegionCompleted(ctx, playerID)
		if err != nil {
			s.logger.Error("mark region completed", "player_id", playerID, "error", err)
		} else if flipped {
			res.RegionCompleted = true
			if qualified {
				if _, err := s.db.AdjustBalance(ctx, playerID, s.cfg.MilestonePayout); err != nil {
					s.logger.Error("pay region milestone", "player_id", playerID, "error", err)
				} else {
					res.RegionPayout = s.cfg.MilestonePayout
				}
			}
		}
	}

	// Group challenge: the room's shared dex covers the whole region.
	added, err := s.db.RecordRoomDex(ctx, e.RoomID, e.Critter.ID)
	if err != nil {
		s.logger.Error("record room dex", "room_id", e.RoomID, "error", err)
		return
	}
	if !added {
		return
	}
	dex, err := s.db.RoomDexCount(ctx, e.RoomID)
	if err != nil {
		s.logger.Error("count room dex", "room_id", e.RoomID, "error", err)
		return
	}
	if dex < regionSize {
		return
	}
	flipped, err := s.db.MarkRoomChallengeCompleted(ctx, e.RoomID)
	if err != nil || !flipped {
		if err != nil {
			s.logger.Error("mark room challenge", "room_id", e.RoomID, "error", err)
		}
		return
	}
	res.ChallengeCompleted = true
	if !qualified {
		return
	}
	members, err := s.db.ListRoomMembers(ctx, e.RoomID)
	if err != nil {
		s.logger.Error("list room members", "room_id", e.RoomID, "error", err)
		return
	}
	for _, memberID := range members {
		_, err := s.db.CreateMail(ctx, model.Mail{
			RecipientID: memberID,
			Kind:        model.MailMoney,
			Amount:      s.cfg.GroupMilestonePayout,
			Note:        "group challenge reward",
		})
		if err != nil {
			s.logger.Error("mail challenge reward", "room_id", e.RoomID, "player_id", memberID, "error", err)
		}
	}
}

func (s *Service) roomQualified(ctx context.Context, roomID int64) (bool, error) {
	room, err := s.db.GetRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	if room.Banned {
		return false, nil
	}
	n, err := s.db.RoomMemberCount(ctx, roomID)
	if err != nil {
		return false, err
	}
	return n >= s.cfg.QualifiedMinMembers, nil
}
