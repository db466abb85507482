package spawn

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/critterdex/critterdex/internal/catalog"
	"github.com/critterdex/critterdex/internal/model"
	"github.com/critterdex/critterdex/internal/storage"
)

// Announcer publishes and retracts the chat artifacts of spawns and events.
type Announcer interface {
	AnnounceSpawn(ctx context.Context, e Entry) (ref string, err error)
	AnnounceEvent(ctx context.Context, ev EventEntry) (ref string, err error)
	Retract(ctx context.Context, roomID int64, ref string) error
}

// EventPicker selects a story event eligible for the room. ok is false when
// no event is currently eligible.
type EventPicker interface {
	Pick(ctx context.Context, roomID int64) (eventID string, ok bool, err error)
}

// Weights are the relative tier draw weights.
type Weights struct {
	C, B, A, S int
}

func (w Weights) total() int { return w.C + w.B + w.A + w.S }

// pickTier maps a roll in [0, total) onto a tier.
func pickTier(w Weights, roll int) model.Tier {
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

// SchedulerConfig holds the spawn timing and draw tunables.
type SchedulerConfig struct {
	MinDelay      time.Duration
	MaxDelay      time.Duration
	EventChance   float64
	ShinyChance   float64
	Weights       Weights
	StaleHorizon  time.Duration
	SweepInterval time.Duration
}

// Scheduler runs one spawn loop per active room. Each loop arms a uniform
// random delay, fires a spawn or story event, and re-arms regardless of
// whether anyone claims the result.
type Scheduler struct {
	cfg      SchedulerConfig
	db       *storage.DB
	registry *Registry
	ann      Announcer
	events   EventPicker
	logger   *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	running map[int64]context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. events may be nil, disabling story events.
func NewScheduler(cfg SchedulerConfig, db *storage.DB, registry *Registry, ann Announcer, events EventPicker, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		db:       db,
		registry: registry,
		ann:      ann,
		events:   events,
		logger:   logger,
		running:  make(map[int64]context.CancelFunc),
	}
}

// Run resumes loops for all active rooms, then drives the periodic sweep
// until ctx is cancelled. It blocks; call it from its own goroutine or an
// errgroup.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	rooms, err := s.db.ListActiveRooms(ctx)
	if err != nil {
		return err
	}
	for _, room := range rooms {
		s.StartRoom(room.ID)
	}
	s.logger.Info("spawn scheduler running", "rooms", len(rooms))

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// StartRoom begins (or keeps) the spawn loop for a room. Safe to call for a
// room that is already running.
func (s *Scheduler) StartRoom(roomID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		s.logger.Warn("spawn scheduler not running, room not started", "room_id", roomID)
		return
	}
	if _, ok := s.running[roomID]; ok {
		return
	}
	loopCtx, cancel := context.WithCancel(s.ctx)
	s.running[roomID] = cancel
	s.wg.Add(1)
	go s.roomLoop(loopCtx, roomID)
}

// StopRoom cancels the room's spawn loop. Live spawns stay claimable until
// swept.
func (s *Scheduler) StopRoom(roomID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.running[roomID]; ok {
		cancel()
		delete(s.running, roomID)
	}
}

// RoomRunning reports whether the room has a live spawn loop.
func (s *Scheduler) RoomRunning(roomID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[roomID]
	return ok
}

func (s *Scheduler) roomLoop(ctx context.Context, roomID int64) {
	defer s.wg.Done()
	for {
		timer := time.NewTimer(s.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx, roomID)
		}
	}
}

func (s *Scheduler) nextDelay() time.Duration {
	window := s.cfg.MaxDelay - s.cfg.MinDelay
	if window <= 0 {
		return s.cfg.MinDelay
	}
	return s.cfg.MinDelay + rand.N(window)
}

// fire produces one spawn or story event. Failures are logged, never fatal:
// the loop re-arms regardless.
func (s *Scheduler) fire(ctx context.Context, roomID int64) {
	// Opportunistic sweep so a dead room does not accumulate stale entries
	// between ticks.
	s.sweep(ctx)

	if s.events != nil && rand.Float64() < s.cfg.EventChance {
		s.fireEvent(ctx, roomID)
		return
	}
	s.fireSpawn(ctx, roomID)
}

func (s *Scheduler) fireEvent(ctx context.Context, roomID int64) {
	eventID, ok, err := s.events.Pick(ctx, roomID)
	if err != nil {
		s.logger.Error("pick story event", "room_id", roomID, "error", err)
		return
	}
	if !ok {
		// Nothing eligible: this firing is silently skipped.
		return
	}
	ev := EventEntry{
		EventID:   eventID,
		RoomID:    roomID,
		SpawnedAt: time.Now().UTC(),
	}
	if !s.registry.PutEvent(ev) {
		// The previous event is still unclaimed; keep it.
		return
	}
	ref, err := s.ann.AnnounceEvent(ctx, ev)
	if err != nil {
		s.logger.Error("announce story event", "room_id", roomID, "event_id", eventID, "error", err)
		return
	}
	s.registry.SetEventArtifact(roomID, ref)
	s.logger.Info("story event fired", "room_id", roomID, "event_id", eventID)
}

func (s *Scheduler) fireSpawn(ctx context.Context, roomID int64) {
	critter, err := s.draw(ctx, roomID)
	if err != nil {
		s.logger.Error("draw critter", "room_id", roomID, "error", err)
		return
	}
	e := Entry{
		ID:        uuid.New(),
		RoomID:    roomID,
		Critter:   critter,
		Shiny:     rand.Float64() < s.cfg.ShinyChance,
		SpawnedAt: time.Now().UTC(),
	}

	// The entry must be claimable the instant the announcement lands.
	s.registry.Put(e)
	ref, err := s.ann.AnnounceSpawn(ctx, e)
	if err != nil {
		s.registry.Remove(roomID, e.ID)
		s.logger.Error("announce spawn", "room_id", roomID, "error", err)
		return
	}
	s.registry.SetArtifact(roomID, e.ID, ref)
	s.logger.Info("spawn fired",
		"room_id", roomID, "spawn_id", e.ID, "critter", critter.Name, "tier", critter.Tier, "shiny", e.Shiny)
}

// draw picks a critter: weighted tier, uniform within tier. A critter gated
// behind a mission the room has not completed is replaced by a uniform
// tier-C draw.
func (s *Scheduler) draw(ctx context.Context, roomID int64) (model.Critter, error) {
	tier := pickTier(s.cfg.Weights, rand.IntN(s.cfg.Weights.total()))
	pool := catalog.ByTier(tier)
	c := pool[rand.IntN(len(pool))]

	if c.Mission != "" {
		done, err := s.db.RoomEventCompleted(ctx, roomID, c.Mission)
		if err != nil {
			return model.Critter{}, err
		}
		if !done {
			pool = catalog.ByTier(model.TierC)
			c = pool[rand.IntN(len(pool))]
		}
	}
	return c, nil
}

// sweep expires stale spawns and events everywhere and retracts their chat
// artifacts.
func (s *Scheduler) sweep(ctx context.Context) {
	now := time.Now().UTC()
	spawns, events := s.registry.Sweep(now, s.cfg.StaleHorizon)
	for _, e := range spawns {
		if e.ArtifactRef != "" {
			if err := s.ann.Retract(ctx, e.RoomID, e.ArtifactRef); err != nil {
				s.logger.Warn("retract stale spawn", "room_id", e.RoomID, "error", err)
			}
		}
		s.logger.Info("spawn expired", "room_id", e.RoomID, "spawn_id", e.ID, "critter", e.Critter.Name)
	}
	for _, ev := range events {
		if ev.ArtifactRef != "" {
			if err := s.ann.Retract(ctx, ev.RoomID, ev.ArtifactRef); err != nil {
				s.logger.Warn("retract stale event", "room_id", ev.RoomID, "error", err)
			}
		}
		s.logger.Info("story event expired", "room_id", ev.RoomID, "event_id", ev.EventID)
	}
}
