package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/critterdex/critterdex/internal/auth"
	"github.com/critterdex/critterdex/internal/catalog"
	"github.com/critterdex/critterdex/internal/chat"
	"github.com/critterdex/critterdex/internal/game/chance"
	"github.com/critterdex/critterdex/internal/game/claim"
	"github.com/critterdex/critterdex/internal/game/events"
	"github.com/critterdex/critterdex/internal/game/ledger"
	"github.com/critterdex/critterdex/internal/game/mail"
	"github.com/critterdex/critterdex/internal/game/raffle"
	"github.com/critterdex/critterdex/internal/game/rank"
	"github.com/critterdex/critterdex/internal/game/shop"
	"github.com/critterdex/critterdex/internal/game/spawn"
	"github.com/critterdex/critterdex/internal/game/trade"
	"github.com/critterdex/critterdex/internal/model"
	"github.com/critterdex/critterdex/internal/storage"
	"github.com/critterdex/critterdex/internal/testutil"
)

const adminKey = "test-admin-key"

var (
	testDB       *storage.DB
	testSrv      *Server
	testRegistry *spawn.Registry
)

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

	logger := testutil.TestLogger()
	jwtMgr, err := auth.NewJWTManager("", "", time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create JWT manager: %v\n", err)
		tc.Terminate()
		os.Exit(1)
	}

	testRegistry = spawn.NewRegistry()
	chanceSvc := chance.New(testDB, chance.Model{Step: 5, Floor: 80, Ceiling: 100})
	ledgerSvc := ledger.New(testDB)
	claimSvc := claim.New(claim.Config{
		Cooldown:             30 * time.Second,
		MilestonePayout:      3000,
		GroupMilestonePayout: 2000,
		QualifiedMinMembers:  3,
	}, testDB, testRegistry, chanceSvc, ledgerSvc, logger)
	tradeSvc := trade.New(trade.Config{DailyLimit: 2, Zone: time.UTC}, testDB, ledgerSvc, nil, logger)
	eventSvc := events.New(testDB, 3, logger)
	mailSvc := mail.New(testDB, ledgerSvc, nil, logger)
	shopSvc := shop.New(shop.Config{
		Weights:     spawn.Weights{C: 45, B: 30, A: 20, S: 5},
		ShinyChance: 0.02,
	}, testDB, ledgerSvc, logger)
	raffleSvc := raffle.New(testDB, time.UTC, logger)
	rankSvc := rank.New(testDB, time.UTC, logger)
	scheduler := spawn.NewScheduler(spawn.SchedulerConfig{
		MinDelay:      time.Hour,
		MaxDelay:      4 * time.Hour,
		EventChance:   0.15,
		ShinyChance:   0.02,
		Weights:       spawn.Weights{C: 45, B: 30, A: 20, S: 5},
		StaleHorizon:  2 * time.Hour,
		SweepInterval: 15 * time.Minute,
	}, testDB, testRegistry, nil, eventSvc, logger)

	testSrv = New(Config{
		Deps: HandlersDeps{
			DB:        testDB,
			JWTMgr:    jwtMgr,
			ClaimSvc:  claimSvc,
			TradeSvc:  tradeSvc,
			EventSvc:  eventSvc,
			MailSvc:   mailSvc,
			ShopSvc:   shopSvc,
			RaffleSvc: raffleSvc,
			RankSvc:   rankSvc,
			LedgerSvc: ledgerSvc,
			Registry:  testRegistry,
			Scheduler: scheduler,
			Logger:    logger,
			Version:   "test",
		},
	})

	if err := testSrv.Handlers().SeedAdmin(ctx, adminKey); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed admin: %v\n", err)
		tc.Terminate()
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close(ctx)
	tc.Terminate()
	os.Exit(code)
}

// doJSON performs a request against the full middleware chain.
func doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	testSrv.Handler().ServeHTTP(rec, req)
	return rec
}

// decodeData unmarshals the data field of a success envelope.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) model.ResponseMeta {
	t.Helper()
	var envelope struct {
		Data json.RawMessage    `json:"data"`
		Meta model.ResponseMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return envelope.Meta
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func adminToken(t *testing.T) string {
	t.Helper()
	rec := doJSON(t, http.MethodPost, "/auth/token", "", map[string]string{
		"adapter_id": "admin",
		"api_key":    adminKey,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp authTokenResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, model.RoleAdmin, resp.Role)
	return resp.Token
}

// adapterToken registers a fresh adapter through the admin API and exchanges
// its key.
func adapterToken(t *testing.T, adapterID string) string {
	t.Helper()
	rec := doJSON(t, http.MethodPost, "/v1/admin/adapters", adminToken(t), map[string]string{
		"adapter_id": adapterID,
		"name":       "Test Adapter",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created createAdapterResponse
	decodeData(t, rec, &created)
	require.NotEmpty(t, created.APIKey)

	rec = doJSON(t, http.MethodPost, "/auth/token", "", map[string]string{
		"adapter_id": adapterID,
		"api_key":    created.APIKey,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp authTokenResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, model.RoleAdapter, resp.Role)
	return resp.Token
}

func actionBody(t *testing.T, playerID int64, a chat.Action) map[string]any {
	t.Helper()
	raw, err := chat.EncodeAction(a)
	require.NoError(t, err)
	return map[string]any{
		"player_id":    playerID,
		"display_name": fmt.Sprintf("player-%d", playerID),
		"action":       json.RawMessage(raw),
	}
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]string
	meta := decodeData(t, rec, &status)
	assert.Equal(t, "ok", status["status"])
	assert.NotEmpty(t, meta.RequestID)
}

func TestAuthTokenRejectsBadCredentials(t *testing.T) {
	rec := doJSON(t, http.MethodPost, "/auth/token", "", map[string]string{
		"adapter_id": "admin",
		"api_key":    "wrong-key",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, model.ErrCodeUnauthorized, errorCode(t, rec))

	rec = doJSON(t, http.MethodPost, "/auth/token", "", map[string]string{
		"adapter_id": "nobody",
		"api_key":    "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, http.MethodPost, "/auth/token", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	rec := doJSON(t, http.MethodPost, "/v1/actions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, http.MethodPost, "/v1/actions", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	token := adapterToken(t, "telegram-role-check")
	rec := doJSON(t, http.MethodPost, "/v1/admin/rooms/-1/start", token, map[string]string{"title": "nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, model.ErrCodeForbidden, errorCode(t, rec))
}

func TestClaimAction(t *testing.T) {
	ctx := context.Background()
	token := adapterToken(t, "telegram-claim")

	_, err := testDB.EnsureRoom(ctx, -101, "claim-room")
	require.NoError(t, err)

	// Claiming a spawn that never existed is too late.
	rec := doJSON(t, http.MethodPost, "/v1/actions", token,
		actionBody(t, 101, &chat.ClaimAction{RoomID: -101, SpawnID: uuid.New()}))
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, model.ErrCodeTooLate, errorCode(t, rec))

	// A live spawn can be claimed.
	c, ok := catalog.ByID(1)
	require.True(t, ok)
	entry := spawn.Entry{ID: uuid.New(), RoomID: -101, Critter: c, SpawnedAt: time.Now()}
	testRegistry.Put(entry)

	rec = doJSON(t, http.MethodPost, "/v1/actions", token,
		actionBody(t, 101, &chat.ClaimAction{RoomID: -101, SpawnID: entry.ID}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result claim.Result
	decodeData(t, rec, &result)
	if assert.True(t, result.Caught) {
		assert.Equal(t, 1, result.Critter.ID)
		assert.Equal(t, model.CreditNew, result.Status)
	}
}

func TestShopAndRaffleActions(t *testing.T) {
	ctx := context.Background()
	token := adapterToken(t, "telegram-shop")

	// Broke player cannot buy.
	rec := doJSON(t, http.MethodPost, "/v1/actions", token,
		actionBody(t, 102, &chat.ShopBuyAction{PackID: "pack_basic"}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, model.ErrCodeInsufficientFunds, errorCode(t, rec))

	_, err := testDB.AdjustBalance(ctx, 102, 500)
	require.NoError(t, err)
	rec = doJSON(t, http.MethodPost, "/v1/actions", token,
		actionBody(t, 102, &chat.ShopBuyAction{PackID: "pack_basic"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Raffle plays once per day.
	rec = doJSON(t, http.MethodPost, "/v1/actions", token,
		actionBody(t, 102, &chat.RafflePlayAction{}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = doJSON(t, http.MethodPost, "/v1/actions", token,
		actionBody(t, 102, &chat.RafflePlayAction{}))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, model.ErrCodeQuotaExhausted, errorCode(t, rec))
}

func TestActionValidation(t *testing.T) {
	token := adapterToken(t, "telegram-validation")

	rec := doJSON(t, http.MethodPost, "/v1/actions", token, map[string]any{
		"player_id": 0,
		"action":    map[string]string{"type": "raffle_play"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, http.MethodPost, "/v1/actions", token, map[string]any{
		"player_id": 103,
		"action":    map[string]string{"type": "mystery_dance"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, model.ErrCodeInvalidInput, errorCode(t, rec))
}

func TestPlayerQueries(t *testing.T) {
	ctx := context.Background()
	token := adapterToken(t, "telegram-queries")

	_, err := testDB.EnsurePlayer(ctx, 104, "quarry")
	require.NoError(t, err)

	rec := doJSON(t, http.MethodGet, "/v1/players/104", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p model.Player
	decodeData(t, rec, &p)
	assert.Equal(t, int64(104), p.ID)
	assert.Equal(t, "quarry", p.DisplayName)

	rec = doJSON(t, http.MethodGet, "/v1/players/987654321", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, http.MethodGet, "/v1/players/not-a-number", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, http.MethodGet, "/v1/players/104/collection", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, http.MethodGet, "/v1/players/104/mailbox", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, http.MethodGet, "/v1/rankings", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoomLifecycle(t *testing.T) {
	token := adminToken(t)

	rec := doJSON(t, http.MethodPost, "/v1/admin/rooms/-102/start", token, map[string]string{"title": "lobby"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var room model.Room
	decodeData(t, rec, &room)
	assert.True(t, room.Active)

	rec = doJSON(t, http.MethodPost, "/v1/admin/rooms/-102/ban", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// A banned room cannot be restarted.
	rec = doJSON(t, http.MethodPost, "/v1/admin/rooms/-102/start", token, map[string]string{"title": "lobby"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, http.MethodPost, "/v1/admin/rooms/-102/unban", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, http.MethodPost, "/v1/admin/rooms/-102/start", token, map[string]string{"title": "lobby"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, http.MethodPost, "/v1/admin/rooms/-102/stop", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAdapterConflict(t *testing.T) {
	token := adminToken(t)
	body := map[string]string{"adapter_id": "telegram-dup", "name": "Dup"}

	rec := doJSON(t, http.MethodPost, "/v1/admin/adapters", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, http.MethodPost, "/v1/admin/adapters", token, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, model.ErrCodeConflict, errorCode(t, rec))
}

func TestDeactivatedAdapterCannotAuthenticate(t *testing.T) {
	admin := adminToken(t)

	rec := doJSON(t, http.MethodPost, "/v1/admin/adapters", admin, map[string]string{
		"adapter_id": "telegram-retired",
		"name":       "Retired",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created createAdapterResponse
	decodeData(t, rec, &created)

	rec = doJSON(t, http.MethodPut, "/v1/admin/adapters/telegram-retired/active", admin,
		map[string]bool{"active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, http.MethodPost, "/auth/token", "", map[string]string{
		"adapter_id": "telegram-retired",
		"api_key":    created.APIKey,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, http.MethodPut, "/v1/admin/adapters/no-such-adapter/active", admin,
		map[string]bool{"active": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRestrictPlayer(t *testing.T) {
	ctx := context.Background()
	admin := adminToken(t)

	_, err := testDB.EnsurePlayer(ctx, 140, "rogue-bot")
	require.NoError(t, err)

	rec := doJSON(t, http.MethodPut, "/v1/admin/players/140/restricted", admin,
		map[string]bool{"restricted": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	restricted, err := testDB.PlayerRestricted(ctx, 140)
	require.NoError(t, err)
	assert.True(t, restricted)

	rec = doJSON(t, http.MethodPut, "/v1/admin/players/140/restricted", admin,
		map[string]bool{"restricted": false})
	require.Equal(t, http.StatusOK, rec.Code)
	restricted, err = testDB.PlayerRestricted(ctx, 140)
	require.NoError(t, err)
	assert.False(t, restricted)

	rec = doJSON(t, http.MethodPut, "/v1/admin/players/987654399/restricted", admin,
		map[string]bool{"restricted": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscribeWithoutBroker(t *testing.T) {
	token := adapterToken(t, "telegram-sse")
	rec := doJSON(t, http.MethodGet, "/v1/announcements", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
