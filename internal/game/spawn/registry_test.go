package spawn

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/critterdex/critterdex/internal/model"
)

func newEntry(roomID int64, at time.Time) Entry {
	return Entry{
		ID:        uuid.New(),
		RoomID:    roomID,
		Critter:   model.Critter{ID: 1, Name: "Sproutle", Tier: model.TierC},
		SpawnedAt: at,
	}
}

func TestRemoveSingleWinner(t *testing.T) {
	r := NewRegistry()
	e := newEntry(1, time.Now())
	r.Put(e)

	const claimants = 64
	var winners atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range claimants {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := r.Remove(1, e.ID); ok {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	_, ok := r.Get(1, e.ID)
	assert.False(t, ok)
}

func TestRemoveAbsent(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Remove(1, uuid.New())
	assert.False(t, ok)
}

func TestCooldown(t *testing.T) {
	r := NewRegistry()
	e := newEntry(1, time.Now())
	r.Put(e)
	now := time.Now()

	assert.Zero(t, r.CooldownRemaining(e.ID, 7, now, 30*time.Second))

	r.FailedAttempt(1, e.ID, 7, now)
	remaining := r.CooldownRemaining(e.ID, 7, now.Add(10*time.Second), 30*time.Second)
	assert.Equal(t, 20*time.Second, remaining)

	// Another player is unaffected.
	assert.Zero(t, r.CooldownRemaining(e.ID, 8, now.Add(10*time.Second), 30*time.Second))

	// Expired cooldowns clear.
	assert.Zero(t, r.CooldownRemaining(e.ID, 7, now.Add(31*time.Second), 30*time.Second))
}

func TestCooldownDroppedWithSpawn(t *testing.T) {
	r := NewRegistry()
	e := newEntry(1, time.Now())
	r.Put(e)
	r.FailedAttempt(1, e.ID, 7, time.Now())

	_, ok := r.Remove(1, e.ID)
	require.True(t, ok)
	assert.Zero(t, r.CooldownRemaining(e.ID, 7, time.Now(), 30*time.Second))
}

func TestFailedAttemptRequiresLiveSpawn(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	e := newEntry(1, now)
	r.Put(e)

	// A failure recorded after the winner removed the spawn must not leave a
	// cooldown behind: nothing would ever reap it.
	_, ok := r.Remove(1, e.ID)
	require.True(t, ok)
	r.FailedAttempt(1, e.ID, 7, now)
	assert.Zero(t, r.CooldownRemaining(e.ID, 7, now, 30*time.Second))

	// Same for a spawn that aged out under a sweep.
	stale := newEntry(1, now.Add(-3*time.Hour))
	r.Put(stale)
	swept, _ := r.Sweep(now, 2*time.Hour)
	require.Len(t, swept, 1)
	r.FailedAttempt(1, stale.ID, 7, now)
	assert.Zero(t, r.CooldownRemaining(stale.ID, 7, now, 30*time.Second))
}

func TestSweepRemovesOnlyStale(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	stale := newEntry(1, now.Add(-3*time.Hour))
	fresh := newEntry(1, now.Add(-10*time.Minute))
	other := newEntry(2, now.Add(-2*time.Hour))
	r.Put(stale)
	r.Put(fresh)
	r.Put(other)

	swept, _ := r.Sweep(now, 2*time.Hour)
	require.Len(t, swept, 2)
	ids := map[uuid.UUID]bool{swept[0].ID: true, swept[1].ID: true}
	assert.True(t, ids[stale.ID])
	assert.True(t, ids[other.ID])

	_, ok := r.Get(1, fresh.ID)
	assert.True(t, ok)
}

func TestSweepExpiresEvents(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	require.True(t, r.PutEvent(EventEntry{EventID: "lost_cub", RoomID: 1, SpawnedAt: now.Add(-3 * time.Hour)}))

	_, events := r.Sweep(now, 2*time.Hour)
	require.Len(t, events, 1)
	assert.Equal(t, "lost_cub", events[0].EventID)

	_, ok := r.ClaimEvent(1)
	assert.False(t, ok)
}

func TestEventSlot(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	require.True(t, r.PutEvent(EventEntry{EventID: "lost_cub", RoomID: 1, SpawnedAt: now}))
	// The slot holds one event at a time.
	assert.False(t, r.PutEvent(EventEntry{EventID: "meteor_night", RoomID: 1, SpawnedAt: now}))
	// Other rooms are independent.
	assert.True(t, r.PutEvent(EventEntry{EventID: "meteor_night", RoomID: 2, SpawnedAt: now}))

	const claimants = 32
	var winners atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range claimants {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := r.ClaimEvent(1); ok {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())

	// Claimed slot frees up.
	assert.True(t, r.PutEvent(EventEntry{EventID: "meteor_night", RoomID: 1, SpawnedAt: now}))
}

func TestSetArtifact(t *testing.T) {
	r := NewRegistry()
	e := newEntry(1, time.Now())
	r.Put(e)

	r.SetArtifact(1, e.ID, "msg-42")
	got, ok := r.Get(1, e.ID)
	require.True(t, ok)
	assert.Equal(t, "msg-42", got.ArtifactRef)

	// Setting on a claimed spawn is a no-op.
	r.Remove(1, e.ID)
	r.SetArtifact(1, e.ID, "msg-43")
}

func TestPickTier(t *testing.T) {
	w := Weights{C: 45, B: 30, A: 20, S: 5}

	assert.Equal(t, model.TierC, pickTier(w, 0))
	assert.Equal(t, model.TierC, pickTier(w, 44))
	assert.Equal(t, model.TierB, pickTier(w, 45))
	assert.Equal(t, model.TierB, pickTier(w, 74))
	assert.Equal(t, model.TierA, pickTier(w, 75))
	assert.Equal(t, model.TierA, pickTier(w, 94))
	assert.Equal(t, model.TierS, pickTier(w, 95))
	assert.Equal(t, model.TierS, pickTier(w, 99))
}
