package shop

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func newService(t *testing.T) *Service {
	t.Helper()
	s := New(Config{
		Weights:     spawn.Weights{C: 45, B: 30, A: 20, S: 5},
		ShinyChance: 0.02,
	}, testDB, ledger.New(testDB), testutil.TestLogger())
	// Deterministic pulls: always tier C, first of the pool, never shiny.
	s.roll = func(int) int { return 0 }
	s.rnd = func() float64 { return 1 }
	return s
}

func fundPlayer(t *testing.T, id, balance int64) {
	t.Helper()
	ctx := context.Background()
	_, err := testDB.EnsurePlayer(ctx, id, fmt.Sprintf("player-%d", id))
	require.NoError(t, err)
	if balance > 0 {
		_, err = testDB.AdjustBalance(ctx, id, balance)
		require.NoError(t, err)
	}
}

func TestBuy(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	fundPlayer(t, 9001, 600)

	_, err := s.Buy(ctx, 9001, "pack_of_lies")
	assert.ErrorIs(t, err, ErrUnknownPack)

	pack, err := s.Buy(ctx, 9001, "pack_basic")
	require.NoError(t, err)
	assert.Equal(t, int64(500), pack.Price)

	p, err := testDB.GetPlayer(ctx, 9001)
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Balance)

	n, err := testDB.ItemQuantity(ctx, 9001, "pack_basic")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Too broke for a second one.
	_, err = s.Buy(ctx, 9001, "pack_basic")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	fundPlayer(t, 9002, 2000)

	_, err := s.Open(ctx, 9002, "pack_of_lies")
	assert.ErrorIs(t, err, ErrUnknownPack)

	_, err = s.Buy(ctx, 9002, "pack_triple")
	require.NoError(t, err)

	now := time.Now()
	s.now = func() time.Time { return now }

	pulls, err := s.Open(ctx, 9002, "pack_triple")
	require.NoError(t, err)
	require.Len(t, pulls, 3)
	// A forced zero roll always lands on the first common critter.
	assert.Equal(t, 1, pulls[0].Critter.ID)
	assert.False(t, pulls[0].Shiny)
	assert.Equal(t, model.CreditNew, pulls[0].Status)
	assert.Equal(t, model.CreditDuplicate, pulls[1].Status)
	assert.Equal(t, model.CreditCapped, pulls[2].Status)
	assert.Equal(t, int64(100), pulls[2].Payout)

	// The pack is gone from the bag.
	n, err := testDB.ItemQuantity(ctx, 9002, "pack_triple")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOpenWithoutPack(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	fundPlayer(t, 9003, 0)

	_, err := s.Open(ctx, 9003, "pack_basic")
	assert.ErrorIs(t, err, ErrNoPack)
}

func TestOpenCooldownThrottles(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	fundPlayer(t, 9004, 1200)

	for range 2 {
		_, err := s.Buy(ctx, 9004, "pack_basic")
		require.NoError(t, err)
	}

	now := time.Now()
	s.now = func() time.Time { return now }

	_, err := s.Open(ctx, 9004, "pack_basic")
	require.NoError(t, err)
	_, err = s.Open(ctx, 9004, "pack_basic")
	assert.ErrorIs(t, err, ErrOpenCooldown)

	now = now.Add(OpenCooldown + time.Second)
	_, err = s.Open(ctx, 9004, "pack_basic")
	require.NoError(t, err)
}

func TestMagicPackSkipsOwned(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	fundPlayer(t, 9005, 1000)

	// The player already owns the first common critter.
	led := ledger.New(testDB)
	_, _, err := led.Credit(ctx, 9005, model.OwnedCritter{CritterID: 1})
	require.NoError(t, err)

	// Alternate calls pick the tier, then the index within the pool: force
	// tier C every time, and walk the pool so the second attempt is unowned.
	var calls, attempt int
	s.roll = func(int) int {
		calls++
		if calls%2 == 1 {
			return 0
		}
		attempt++
		return attempt - 1
	}

	_, err = s.Buy(ctx, 9005, "magic_basic")
	require.NoError(t, err)
	pulls, err := s.Open(ctx, 9005, "magic_basic")
	require.NoError(t, err)
	require.Len(t, pulls, 1)
	assert.NotEqual(t, 1, pulls[0].Critter.ID, "a magic pull avoids owned critters")
	assert.Equal(t, model.CreditNew, pulls[0].Status)
}
