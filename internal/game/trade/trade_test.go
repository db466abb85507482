package trade

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/critterdex/critterdex/internal/game/ledger"
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

type stubGate struct {
	restricted map[int64]bool
}

func (g *stubGate) Restricted(_ context.Context, playerID int64) (bool, error) {
	return g.restricted[playerID], nil
}

func newService(t *testing.T, dailyLimit int, gate ActorGate) (*Service, *ledger.Service) {
	t.Helper()
	led := ledger.New(testDB)
	s := New(Config{DailyLimit: dailyLimit, Zone: time.UTC}, testDB, led, gate, testutil.TestLogger())
	return s, led
}

func mustPlayer(t *testing.T, id int64) {
	t.Helper()
	_, err := testDB.EnsurePlayer(context.Background(), id, fmt.Sprintf("player-%d", id))
	require.NoError(t, err)
}

// giveSpare credits two copies so the player holds a tradable spare.
func giveSpare(t *testing.T, led *ledger.Service, playerID int64, critterID int) model.OwnedCritter {
	t.Helper()
	c := model.OwnedCritter{CritterID: critterID}
	for range 2 {
		_, _, err := led.Credit(context.Background(), playerID, c)
		require.NoError(t, err)
	}
	return c
}

func TestProposeValidations(t *testing.T) {
	ctx := context.Background()
	s, led := newService(t, 2, nil)

	mustPlayer(t, 6001)
	mustPlayer(t, 6002)
	offered := giveSpare(t, led, 6001, 1)
	requested := giveSpare(t, led, 6002, 2)

	_, err := s.Propose(ctx, 6001, 6001, offered, requested)
	assert.ErrorIs(t, err, ErrSelfTrade)

	// Neither a single copy nor none at all counts as a spare.
	_, err = s.Propose(ctx, 6001, 6002, model.OwnedCritter{CritterID: 3}, requested)
	assert.ErrorIs(t, err, ErrNoDuplicate)
	_, err = s.Propose(ctx, 6001, 6002, offered, model.OwnedCritter{CritterID: 3})
	assert.ErrorIs(t, err, ErrNoDuplicate)

	// A valid proposal blocks a second one from the same proposer.
	tr, err := s.Propose(ctx, 6001, 6002, offered, requested)
	require.NoError(t, err)
	_, err = s.Propose(ctx, 6001, 6002, offered, requested)
	assert.ErrorIs(t, err, ErrPending)

	pending, ok, err := s.Pending(ctx, 6001)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tr.ID, pending.ID)
}

func TestProposeRestrictedActor(t *testing.T) {
	ctx := context.Background()
	gate := &stubGate{restricted: map[int64]bool{6004: true}}
	s, led := newService(t, 2, gate)

	mustPlayer(t, 6003)
	mustPlayer(t, 6004)
	offered := giveSpare(t, led, 6003, 1)
	requested := giveSpare(t, led, 6004, 2)

	_, err := s.Propose(ctx, 6003, 6004, offered, requested)
	assert.ErrorIs(t, err, ErrRestricted)
}

func TestRestrictionGateReadsPlayerFlag(t *testing.T) {
	ctx := context.Background()
	s, led := newService(t, 2, NewRestrictionGate(testDB))

	mustPlayer(t, 6020)
	mustPlayer(t, 6021)
	offered := giveSpare(t, led, 6020, 1)
	requested := giveSpare(t, led, 6021, 2)

	require.NoError(t, testDB.SetPlayerRestricted(ctx, 6021, true))
	_, err := s.Propose(ctx, 6020, 6021, offered, requested)
	assert.ErrorIs(t, err, ErrRestricted)

	// Lifting the restriction opens the gate again.
	require.NoError(t, testDB.SetPlayerRestricted(ctx, 6021, false))
	_, err = s.Propose(ctx, 6020, 6021, offered, requested)
	require.NoError(t, err)

	// Players the game has never seen are not restricted: the gate lets the
	// proposal through to the party load, which reports the missing row.
	_, err = s.Propose(ctx, 6020, 6022, offered, model.OwnedCritter{CritterID: 3})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConfirmSettles(t *testing.T) {
	ctx := context.Background()
	s, led := newService(t, 2, nil)

	mustPlayer(t, 6005)
	mustPlayer(t, 6006)
	offered := giveSpare(t, led, 6005, 4)
	requested := giveSpare(t, led, 6006, 5)

	tr, err := s.Propose(ctx, 6005, 6006, offered, requested)
	require.NoError(t, err)

	// Only the recipient may confirm.
	_, err = s.Confirm(ctx, tr.ID, 6005)
	assert.ErrorIs(t, err, ErrNotRecipient)

	settlement, err := s.Confirm(ctx, tr.ID, 6006)
	require.NoError(t, err)
	assert.Equal(t, model.CreditNew, settlement.ProposerStatus)
	assert.Equal(t, model.CreditNew, settlement.RecipientStatus)

	// Spares moved: each party gave theirs up and gained the other's critter.
	has, err := led.HasDuplicate(ctx, 6005, offered)
	require.NoError(t, err)
	assert.False(t, has)
	has, err = led.HasDuplicate(ctx, 6006, requested)
	require.NoError(t, err)
	assert.False(t, has)

	// The trade is closed and the proposer's slot is free again.
	_, ok, err := s.Pending(ctx, 6005)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfirmStockChanged(t *testing.T) {
	ctx := context.Background()
	s, led := newService(t, 2, nil)

	mustPlayer(t, 6007)
	mustPlayer(t, 6008)
	offered := giveSpare(t, led, 6007, 7)
	requested := giveSpare(t, led, 6008, 8)

	tr, err := s.Propose(ctx, 6007, 6008, offered, requested)
	require.NoError(t, err)

	// The proposer gifts their spare away before confirmation.
	require.NoError(t, led.Spend(ctx, 6007, offered))

	_, err = s.Confirm(ctx, tr.ID, 6008)
	assert.ErrorIs(t, err, ErrStockChanged)
}

func TestRejectFreesSlot(t *testing.T) {
	ctx := context.Background()
	s, led := newService(t, 2, nil)

	mustPlayer(t, 6009)
	mustPlayer(t, 6010)
	offered := giveSpare(t, led, 6009, 10)
	requested := giveSpare(t, led, 6010, 11)

	tr, err := s.Propose(ctx, 6009, 6010, offered, requested)
	require.NoError(t, err)

	err = s.Reject(ctx, tr.ID, 9999)
	assert.ErrorIs(t, err, ErrNotParty)

	require.NoError(t, s.Reject(ctx, tr.ID, 6010))

	// Both parties keep their spares and the proposer can propose again.
	has, err := led.HasDuplicate(ctx, 6009, offered)
	require.NoError(t, err)
	assert.True(t, has)

	_, err = s.Propose(ctx, 6009, 6010, offered, requested)
	require.NoError(t, err)
}

func TestDailyQuota(t *testing.T) {
	ctx := context.Background()
	s, led := newService(t, 1, nil)

	mustPlayer(t, 6011)
	mustPlayer(t, 6012)
	offered := giveSpare(t, led, 6011, 13)
	requested := giveSpare(t, led, 6012, 14)

	tr, err := s.Propose(ctx, 6011, 6012, offered, requested)
	require.NoError(t, err)
	_, err = s.Confirm(ctx, tr.ID, 6012)
	require.NoError(t, err)

	// The settled trade consumed today's quota for both parties.
	offered2 := giveSpare(t, led, 6011, 15)
	requested2 := giveSpare(t, led, 6012, 16)
	_, err = s.Propose(ctx, 6011, 6012, offered2, requested2)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
}

func TestConfirmUnknownTrade(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t, 2, nil)

	_, err := s.Confirm(ctx, uuid.New(), 6001)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
