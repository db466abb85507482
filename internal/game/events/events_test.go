package events

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
	return New(testDB, 3, testutil.TestLogger())
}

func mustRoom(t *testing.T, id int64) {
	t.Helper()
	_, err := testDB.EnsureRoom(context.Background(), id, fmt.Sprintf("room-%d", id))
	require.NoError(t, err)
}

func qualifyRoom(t *testing.T, roomID int64, memberIDs ...int64) {
	t.Helper()
	ctx := context.Background()
	for _, id := range memberIDs {
		_, err := testDB.EnsurePlayer(ctx, id, fmt.Sprintf("player-%d", id))
		require.NoError(t, err)
		require.NoError(t, testDB.EnsureRoomMember(ctx, roomID, id))
	}
}

func eventIDs(events []Event) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestEligibleUnqualifiedRoom(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	mustRoom(t, -7001)

	eligible, err := s.Eligible(ctx, -7001)
	require.NoError(t, err)

	ids := eventIDs(eligible)
	assert.Contains(t, ids, "lost_cub")
	assert.Contains(t, ids, "meteor_night")
	assert.NotContains(t, ids, "emberwing_trial", "trials need a qualified room")
}

func TestEligibleQualifiedRoom(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	mustRoom(t, -7002)
	qualifyRoom(t, -7002, 7101, 7102, 7103)

	eligible, err := s.Eligible(ctx, -7002)
	require.NoError(t, err)
	assert.Contains(t, eventIDs(eligible), "emberwing_trial")
}

func TestCompletedOneTimeEventDropsOut(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	mustRoom(t, -7003)
	qualifyRoom(t, -7003, 7104, 7105, 7106)

	require.NoError(t, s.Complete(ctx, -7003, "emberwing_trial"))

	eligible, err := s.Eligible(ctx, -7003)
	require.NoError(t, err)
	ids := eventIDs(eligible)
	assert.NotContains(t, ids, "emberwing_trial")
	// Repeatable events stay.
	assert.Contains(t, ids, "lost_cub")

	// The mission key is what the catalog gate reads.
	done, err := testDB.RoomEventCompleted(ctx, -7003, "mission_emberwing")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestPickUsesEligibleSet(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	mustRoom(t, -7004)
	s.pick = func(n int) int { return n - 1 }

	id, ok, err := s.Pick(ctx, -7004)
	require.NoError(t, err)
	require.True(t, ok)
	// An unqualified room's last eligible event is the last repeatable one.
	assert.Equal(t, "traveling_merchant", id)
}

func TestClaimAndAdvance(t *testing.T) {
	s := newService(t)

	_, err := s.Claim("no_such_event")
	assert.ErrorIs(t, err, ErrUnknownEvent)

	tok, err := s.Claim("lost_cub")
	require.NoError(t, err)
	assert.Equal(t, Token{EventID: "lost_cub", Step: 0}, tok)

	var done bool
	for range 2 {
		tok, done, err = s.Advance(tok)
		require.NoError(t, err)
		assert.False(t, done)
	}
	tok, done, err = s.Advance(tok)
	require.NoError(t, err)
	assert.True(t, done, "a three-step walk finishes on the third advance")
	assert.Equal(t, 3, tok.Step)
}

func TestCompleteUnknownEvent(t *testing.T) {
	s := newService(t)
	err := s.Complete(context.Background(), -7005, "no_such_event")
	assert.ErrorIs(t, err, ErrUnknownEvent)
}
