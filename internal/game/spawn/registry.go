// Package spawn holds the live spawn state and the per-room scheduler.
//
// The registry is the single synchronization point of the claim race: a spawn
// exists in memory exactly until one claimant removes it, and Remove reports
// success to at most one caller. Persistent state only changes after a
// removal succeeds, so a lost race has no side effects.
package spawn

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/critterdex/critterdex/internal/model"
)

// Entry is a live wild spawn in a room.
type Entry struct {
	ID      uuid.UUID
	RoomID  int64
	Critter model.Critter
	Shiny   bool
	// ArtifactRef identifies the chat announcement, so sweeps and wins can
	// retract it.
	ArtifactRef string
	SpawnedAt   time.Time
}

// EventEntry is a live story-event hook in a room. Unlike a wild spawn it is
// claimed by the first actor to interact, with no capture roll.
type EventEntry struct {
	EventID     string
	RoomID      int64
	ArtifactRef string
	SpawnedAt   time.Time
}

type cooldownKey struct {
	spawnID  uuid.UUID
	playerID int64
}

// Registry tracks live spawns, per-spawn per-player claim cooldowns, and the
// one story-event slot each room has. All methods are safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	spawns    map[int64]map[uuid.UUID]Entry
	cooldowns map[cooldownKey]time.Time
	events    map[int64]EventEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		spawns:    make(map[int64]map[uuid.UUID]Entry),
		cooldowns: make(map[cooldownKey]time.Time),
		events:    make(map[int64]EventEntry),
	}
}

// Put inserts a live spawn.
func (r *Registry) Put(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.spawns[e.RoomID]
	if room == nil {
		room = make(map[uuid.UUID]Entry)
		r.spawns[e.RoomID] = room
	}
	room[e.ID] = e
}

// SetArtifact attaches the chat announcement ref to a live spawn. A no-op if
// the spawn was already claimed or swept.
func (r *Registry) SetArtifact(roomID int64, id uuid.UUID, ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.spawns[roomID][id]; ok {
		e.ArtifactRef = ref
		r.spawns[roomID][id] = e
	}
}

// SetEventArtifact attaches the chat announcement ref to the room's live event.
func (r *Registry) SetEventArtifact(roomID int64, ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev, ok := r.events[roomID]; ok {
		ev.ArtifactRef = ref
		r.events[roomID] = ev
	}
}

// Get returns a live spawn without removing it.
func (r *Registry) Get(roomID int64, id uuid.UUID) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.spawns[roomID][id]
	return e, ok
}

// Remove removes a spawn and returns it. This is the linearization point of
// the claim race: for any one spawn, exactly one caller ever observes true.
func (r *Registry) Remove(roomID int64, id uuid.UUID) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.spawns[roomID][id]
	if !ok {
		return Entry{}, false
	}
	delete(r.spawns[roomID], id)
	r.dropCooldownsLocked(id)
	return e, true
}

// RoomCount returns the number of live spawns in a room.
func (r *Registry) RoomCount(roomID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spawns[roomID])
}

// FailedAttempt records a failed claim, starting the player's retry cooldown
// for this spawn. A spawn that was claimed or swept mid-attempt records
// nothing: cooldowns only exist for live spawns, so removal can reap them all.
func (r *Registry) FailedAttempt(roomID int64, spawnID uuid.UUID, playerID int64, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, live := r.spawns[roomID][spawnID]; !live {
		return
	}
	r.cooldowns[cooldownKey{spawnID, playerID}] = now
}

// CooldownRemaining returns how long the player must still wait before
// retrying this spawn. Zero means no active cooldown.
func (r *Registry) CooldownRemaining(spawnID uuid.UUID, playerID int64, now time.Time, cooldown time.Duration) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.cooldowns[cooldownKey{spawnID, playerID}]
	if !ok {
		return 0
	}
	remaining := cooldown - now.Sub(at)
	if remaining <= 0 {
		delete(r.cooldowns, cooldownKey{spawnID, playerID})
		return 0
	}
	return remaining
}

// Sweep removes spawns older than horizon across all rooms and returns them
// so the caller can retract their chat artifacts. Event slots age out the
// same way.
func (r *Registry) Sweep(now time.Time, horizon time.Duration) (spawns []Entry, events []EventEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.spawns {
		for id, e := range room {
			if now.Sub(e.SpawnedAt) >= horizon {
				delete(room, id)
				r.dropCooldownsLocked(id)
				spawns = append(spawns, e)
			}
		}
	}
	for roomID, ev := range r.events {
		if now.Sub(ev.SpawnedAt) >= horizon {
			delete(r.events, roomID)
			events = append(events, ev)
		}
	}
	return spawns, events
}

// PutEvent installs a story event in the room's slot. Returns false without
// replacing when the slot is occupied.
func (r *Registry) PutEvent(ev EventEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, occupied := r.events[ev.RoomID]; occupied {
		return false
	}
	r.events[ev.RoomID] = ev
	return true
}

// ClaimEvent empties the room's event slot for exactly one caller. The first
// actor to interact wins the event; everyone after observes an empty slot.
func (r *Registry) ClaimEvent(roomID int64) (EventEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[roomID]
	if !ok {
		return EventEntry{}, false
	}
	delete(r.events, roomID)
	return ev, true
}

// dropCooldownsLocked clears all cooldowns tied to a removed spawn.
// Callers must hold r.mu.
func (r *Registry) dropCooldownsLocked(spawnID uuid.UUID) {
	for k := range r.cooldowns {
		if k.spawnID == spawnID {
			delete(r.cooldowns, k)
		}
	}
}
