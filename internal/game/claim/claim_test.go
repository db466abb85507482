package claim

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/critterdex/critterdex/internal/catalog"
	"github.com/critterdex/critterdex/internal/game/chance"
	"github.com/critterdex/critterdex/internal/game/ledger"
	"github.com/critterdex/critterdex/internal/game/spawn"
	"github.com/critterdex/critterdex/internal/model"
	"github.com/critterdex/critterdex/internal/storage"
	"github.com/critterdex/critterdex/internal/testutil"
)

var testDB *storage.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tc := testutil.MustStartPostgres()

	var err error
	testDB, err = tc.NewTestDB(ctx, testutil.TestLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create test DB: %v\n", err)
		tc.Terminate()
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close(ctx)
	tc.Terminate()
	os.Exit(code)
}

// newService builds a claim service over the shared DB with a fixed roll.
func newService(t *testing.T, registry *spawn.Registry, roll int) *Service {
	t.Helper()
	ch := chance.New(testDB, chance.Model{Step: 5, Floor: 80, Ceiling: 100})
	led := ledger.New(testDB)
	s := New(Config{
		Cooldown:             30 * time.Second,
		MilestonePayout:      3000,
		GroupMilestonePayout: 2000,
		QualifiedMinMembers:  3,
	}, testDB, registry, ch, led, testutil.TestLogger())
	s.roll = func() int { return roll }
	return s
}

func mustPlayer(t *testing.T, id int64) {
	t.Helper()
	_, err := testDB.EnsurePlayer(context.Background(), id, fmt.Sprintf("player-%d", id))
	require.NoError(t, err)
}

func mustRoom(t *testing.T, id int64) {
	t.Helper()
	_, err := testDB.EnsureRoom(context.Background(), id, fmt.Sprintf("room-%d", id))
	require.NoError(t, err)
}

func putSpawn(t *testing.T, registry *spawn.Registry, roomID int64, critterID int) spawn.Entry {
	t.Helper()
	c, ok := catalog.ByID(critterID)
	require.True(t, ok)
	e := spawn.Entry{
		ID:        uuid.New(),
		RoomID:    roomID,
		Critter:   c,
		SpawnedAt: time.Now(),
	}
	registry.Put(e)
	return e
}

func TestAttemptUnknownSpawn(t *testing.T) {
	registry := spawn.NewRegistry()
	s := newService(t, registry, 0)

	_, err := s.Attempt(context.Background(), -1, uuid.New(), 5001)
	assert.ErrorIs(t, err, ErrTooLate)
}

func TestAttemptCatch(t *testing.T) {
	ctx := context.Background()
	registry := spawn.NewRegistry()
	s := newService(t, registry, 0)

	mustPlayer(t, 5002)
	mustRoom(t, -5002)
	e := putSpawn(t, registry, -5002, 1)

	res, err := s.Attempt(ctx, -5002, e.ID, 5002)
	require.NoError(t, err)
	assert.True(t, res.Caught)
	assert.Equal(t, 1, res.Critter.ID)
	assert.Equal(t, model.CreditNew, res.Status)
	assert.Equal(t, int64(0), res.Payout)
	assert.Equal(t, 95, res.Chance, "a catch lowers the capture chance one step")

	// The spawn is gone and a retry is too late.
	_, err = s.Attempt(ctx, -5002, e.ID, 5002)
	assert.ErrorIs(t, err, ErrTooLate)

	// The catch landed in the album and counters moved.
	p, err := testDB.GetPlayer(ctx, 5002)
	require.NoError(t, err)
	assert.Equal(t, 1, p.MonthlyCatches)
}

func TestAttemptMissStartsCooldown(t *testing.T) {
	ctx := context.Background()
	registry := spawn.NewRegistry()
	s := newService(t, registry, 99)

	mustPlayer(t, 5003)
	mustRoom(t, -5003)
	require.NoError(t, testDB.SetCaptureChance(ctx, 5003, 90))
	e := putSpawn(t, registry, -5003, 4)

	res, err := s.Attempt(ctx, -5003, e.ID, 5003)
	require.NoError(t, err)
	assert.False(t, res.Caught)
	assert.Equal(t, 95, res.Chance, "a miss raises the capture chance one step")

	// The spawn is still live for everyone else.
	_, ok := registry.Get(-5003, e.ID)
	assert.True(t, ok)

	// The same player must wait out the cooldown.
	_, err = s.Attempt(ctx, -5003, e.ID, 5003)
	var cooldown *CooldownError
	require.ErrorAs(t, err, &cooldown)
	assert.Greater(t, cooldown.Remaining, time.Duration(0))

	// A different player is unaffected.
	mustPlayer(t, 5004)
	s2 := newService(t, registry, 0)
	res, err = s2.Attempt(ctx, -5003, e.ID, 5004)
	require.NoError(t, err)
	assert.True(t, res.Caught)
}

func TestAttemptMissResolvesWhenSpawnWonMidRoll(t *testing.T) {
	ctx := context.Background()
	registry := spawn.NewRegistry()
	s := newService(t, registry, 99)

	mustPlayer(t, 5010)
	mustRoom(t, -5010)
	require.NoError(t, testDB.SetCaptureChance(ctx, 5010, 90))
	e := putSpawn(t, registry, -5010, 12)

	// Someone else wins the spawn while this player's roll is in flight.
	s.roll = func() int {
		registry.Remove(-5010, e.ID)
		return 99
	}

	// The miss already nudged the chance, so it must resolve as a miss:
	// a late error would claim the attempt had no side effects.
	res, err := s.Attempt(ctx, -5010, e.ID, 5010)
	require.NoError(t, err)
	assert.False(t, res.Caught)
	assert.Equal(t, 12, res.Critter.ID)
	assert.Equal(t, 95, res.Chance, "a miss raises the capture chance one step")

	// No cooldown is left behind for the dead spawn.
	assert.Zero(t, registry.CooldownRemaining(e.ID, 5010, time.Now(), 30*time.Second))

	// The next attempt observes plain absence.
	_, err = s.Attempt(ctx, -5010, e.ID, 5010)
	assert.ErrorIs(t, err, ErrTooLate)
}

func TestAttemptSingleWinner(t *testing.T) {
	ctx := context.Background()
	registry := spawn.NewRegistry()
	s := newService(t, registry, 0)

	mustRoom(t, -5005)
	const contenders = 16
	for i := range contenders {
		mustPlayer(t, 5100+int64(i))
	}
	e := putSpawn(t, registry, -5005, 7)

	var wg sync.WaitGroup
	results := make([]error, contenders)
	for i := range contenders {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, results[idx] = s.Attempt(ctx, -5005, e.ID, 5100+int64(idx))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		default:
			assert.ErrorIs(t, err, ErrTooLate)
		}
	}
	assert.Equal(t, 1, winners, "exactly one claimant wins the race")
}

func TestDuplicateAndCappedCatches(t *testing.T) {
	ctx := context.Background()
	registry := spawn.NewRegistry()
	s := newService(t, registry, 0)

	mustPlayer(t, 5006)
	mustRoom(t, -5006)

	e := putSpawn(t, registry, -5006, 10)
	res, err := s.Attempt(ctx, -5006, e.ID, 5006)
	require.NoError(t, err)
	assert.Equal(t, model.CreditNew, res.Status)

	e = putSpawn(t, registry, -5006, 10)
	res, err = s.Attempt(ctx, -5006, e.ID, 5006)
	require.NoError(t, err)
	assert.Equal(t, model.CreditDuplicate, res.Status)
	assert.Equal(t, int64(0), res.Payout)

	before, err := testDB.GetPlayer(ctx, 5006)
	require.NoError(t, err)

	e = putSpawn(t, registry, -5006, 10)
	res, err = s.Attempt(ctx, -5006, e.ID, 5006)
	require.NoError(t, err)
	assert.Equal(t, model.CreditCapped, res.Status)
	assert.Equal(t, int64(100), res.Payout, "a plain tier C overflow pays 100")

	after, err := testDB.GetPlayer(ctx, 5006)
	require.NoError(t, err)
	assert.Equal(t, before.Balance+100, after.Balance)
}

func TestRegionMilestoneAndGroupChallenge(t *testing.T) {
	ctx := context.Background()
	registry := spawn.NewRegistry()
	s := newService(t, registry, 0)

	const (
		playerID = int64(5007)
		roomID   = int64(-5007)
	)
	mustPlayer(t, playerID)
	mustRoom(t, roomID)
	// Qualify the room: three registered members.
	for _, id := range []int64{playerID, 5008, 5009} {
		mustPlayer(t, id)
		require.NoError(t, testDB.EnsureRoomMember(ctx, roomID, id))
	}

	ids := catalog.RegionIDs(catalog.RegionVerdania)
	require.NotEmpty(t, ids)
	last := ids[len(ids)-1]

	// Credit every critter but one, and fill the room dex the same way.
	led := ledger.New(testDB)
	for _, id := range ids[:len(ids)-1] {
		_, _, err := led.Credit(ctx, playerID, model.OwnedCritter{CritterID: id})
		require.NoError(t, err)
		_, err = testDB.RecordRoomDex(ctx, roomID, id)
		require.NoError(t, err)
	}

	before, err := testDB.GetPlayer(ctx, playerID)
	require.NoError(t, err)

	e := putSpawn(t, registry, roomID, last)
	res, err := s.Attempt(ctx, roomID, e.ID, playerID)
	require.NoError(t, err)
	require.True(t, res.Caught)
	assert.True(t, res.RegionCompleted)
	assert.Equal(t, int64(3000), res.RegionPayout)
	assert.True(t, res.ChallengeCompleted)

	after, err := testDB.GetPlayer(ctx, playerID)
	require.NoError(t, err)
	assert.Equal(t, before.Balance+3000, after.Balance)
	assert.True(t, after.RegionCompleted)

	// Every member got the group reward by mail.
	for _, id := range []int64{playerID, 5008, 5009} {
		mails, err := testDB.ListUnclaimedMail(ctx, id)
		require.NoError(t, err)
		found := false
		for _, m := range mails {
			if m.Kind == model.MailMoney && m.Amount == 2000 {
				found = true
			}
		}
		assert.True(t, found, "member %d should have the challenge reward", id)
	}

	// Milestones fire once: another catch of the same critter flips nothing.
	e = putSpawn(t, registry, roomID, last)
	res, err = s.Attempt(ctx, roomID, e.ID, playerID)
	require.NoError(t, err)
	assert.False(t, res.RegionCompleted)
	assert.False(t, res.ChallengeCompleted)
}
