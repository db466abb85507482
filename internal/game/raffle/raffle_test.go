package raffle

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
	return New(testDB, time.UTC, testutil.TestLogger())
}

func mustPlayer(t *testing.T, id int64) {
	t.Helper()
	_, err := testDB.EnsurePlayer(context.Background(), id, fmt.Sprintf("player-%d", id))
	require.NoError(t, err)
}

func TestPlayOncePerDay(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	mustPlayer(t, 9501)
	s.roll = func(int) int { return 0 }

	prize, err := s.Play(ctx, 9501)
	require.NoError(t, err)
	assert.Equal(t, int64(100), prize.Amount)

	p, err := testDB.GetPlayer(ctx, 9501)
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Balance)

	_, err = s.Play(ctx, 9501)
	assert.ErrorIs(t, err, ErrAlreadyPlayed)

	// A new local day grants a fresh ticket.
	s.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	_, err = s.Play(ctx, 9501)
	require.NoError(t, err)
}

func TestDrawWeights(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	mustPlayer(t, 9502)

	// The last five points of the hundred land on the pack prize.
	s.roll = func(int) int { return 99 }

	prize, err := s.Play(ctx, 9502)
	require.NoError(t, err)
	assert.Equal(t, "magic_basic", prize.PackID)
	assert.Zero(t, prize.Amount)

	// Pack prizes arrive by mail rather than touching the balance.
	p, err := testDB.GetPlayer(ctx, 9502)
	require.NoError(t, err)
	assert.Zero(t, p.Balance)

	mails, err := testDB.ListUnclaimedMail(ctx, 9502)
	require.NoError(t, err)
	require.Len(t, mails, 1)
	assert.Equal(t, model.MailItem, mails[0].Kind)
	assert.Equal(t, "magic_basic", mails[0].ItemID)
}

func TestDrawBoundaries(t *testing.T) {
	s := newService(t)

	cases := []struct {
		roll  int
		label string
	}{
		{0, "100 coins"},
		{49, "100 coins"},
		{50, "200 coins"},
		{79, "200 coins"},
		{80, "400 coins"},
		{94, "400 coins"},
		{95, "a magic pack"},
		{99, "a magic pack"},
	}
	for _, tc := range cases {
		s.roll = func(int) int { return tc.roll }
		assert.Equal(t, tc.label, s.draw().Label, "roll %d", tc.roll)
	}
}
