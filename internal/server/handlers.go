package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/critterdex/critterdex/internal/auth"
	"github.com/critterdex/critterdex/internal/chat"
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
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db        *storage.DB
	jwtMgr    *auth.JWTManager
	claimSvc  *claim.Service
	tradeSvc  *trade.Service
	eventSvc  *events.Service
	mailSvc   *mail.Service
	shopSvc   *shop.Service
	raffleSvc *raffle.Service
	rankSvc   *rank.Service
	ledgerSvc *ledger.Service
	registry  *spawn.Registry
	scheduler *spawn.Scheduler
	announcer *chat.Announcer
	broker    *Broker
	logger    *slog.Logger
	version   string
	maxBody   int64
}

// HandlersDeps bundles everything Handlers needs.
type HandlersDeps struct {
	DB        *storage.DB
	JWTMgr    *auth.JWTManager
	ClaimSvc  *claim.Service
	TradeSvc  *trade.Service
	EventSvc  *events.Service
	MailSvc   *mail.Service
	ShopSvc   *shop.Service
	RaffleSvc *raffle.Service
	RankSvc   *rank.Service
	LedgerSvc *ledger.Service
	Registry  *spawn.Registry
	Scheduler *spawn.Scheduler
	Announcer *chat.Announcer
	Broker    *Broker
	Logger    *slog.Logger
	Version   string

	// MaxRequestBodyBytes limits request body size. Zero means 1 MB.
	MaxRequestBodyBytes int64
}

// NewHandlers creates the handler set.
func NewHandlers(deps HandlersDeps) *Handlers {
	maxBody := deps.MaxRequestBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handlers{
		db:        deps.DB,
		jwtMgr:    deps.JWTMgr,
		claimSvc:  deps.ClaimSvc,
		tradeSvc:  deps.TradeSvc,
		eventSvc:  deps.EventSvc,
		mailSvc:   deps.MailSvc,
		shopSvc:   deps.ShopSvc,
		raffleSvc: deps.RaffleSvc,
		rankSvc:   deps.RankSvc,
		ledgerSvc: deps.LedgerSvc,
		registry:  deps.Registry,
		scheduler: deps.Scheduler,
		announcer: deps.Announcer,
		broker:    deps.Broker,
		logger:    deps.Logger,
		version:   deps.Version,
		maxBody:   maxBody,
	}
}

// HandleHealth reports server and database health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

type authTokenRequest struct {
	AdapterID string `json:"adapter_id"`
	APIKey    string `json:"api_key"`
}

type authTokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	Role      model.Role `json:"role"`
}

// HandleAuthToken exchanges an adapter's API key for a JWT.
func (h *Handlers) HandleAuthToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req authTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if req.AdapterID == "" || req.APIKey == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "adapter_id and api_key are required")
		return
	}

	adapter, err := h.db.GetAdapterByAdapterID(r.Context(), req.AdapterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Burn the same hashing cost so timing does not reveal
			// whether the adapter exists.
			auth.DummyVerify()
			writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("auth token lookup", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
		return
	}

	valid, err := auth.VerifyAPIKey(req.APIKey, adapter.APIKeyHash)
	if err != nil {
		h.logger.Error("auth token verify", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
		return
	}
	if !valid {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := h.jwtMgr.IssueToken(adapter)
	if err != nil {
		h.logger.Error("auth token issue", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
		return
	}

	if err := h.db.TouchAdapter(r.Context(), adapter.ID); err != nil {
		h.logger.Warn("touch adapter", "adapter_id", adapter.AdapterID, "error", err)
	}

	writeJSON(w, r, http.StatusOK, authTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Role:      adapter.Role,
	})
}

type actionRequest struct {
	PlayerID    int64           `json:"player_id"`
	DisplayName string          `json:"display_name"`
	Action      json.RawMessage `json:"action"`
}

// HandleAction is the single ingress for player actions. The adapter submits
// which player acted and the typed action envelope; the response carries the
// action-specific result in the standard envelope.
func (h *Handlers) HandleAction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if req.PlayerID <= 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "player_id is required")
		return
	}

	action, err := chat.DecodeAction(req.Action)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	ctx := r.Context()
	if _, err := h.db.EnsurePlayer(ctx, req.PlayerID, req.DisplayName); err != nil {
		h.logger.Error("ensure player", "player_id", req.PlayerID, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
		return
	}

	switch a := action.(type) {
	case *chat.ClaimAction:
		h.handleClaim(w, r, req.PlayerID, a)
	case *chat.EventClaimAction:
		h.handleEventClaim(w, r, a)
	case *chat.EventAdvanceAction:
		h.handleEventAdvance(w, r, a)
	case *chat.TradeProposeAction:
		result, err := h.tradeSvc.Propose(ctx, req.PlayerID, a.RecipientID, a.Offered, a.Requested)
		h.respond(w, r, result, err)
	case *chat.TradeConfirmAction:
		result, err := h.tradeSvc.Confirm(ctx, a.TradeID, req.PlayerID)
		h.respond(w, r, result, err)
	case *chat.TradeRejectAction:
		err := h.tradeSvc.Reject(ctx, a.TradeID, req.PlayerID)
		h.respond(w, r, map[string]bool{"rejected": err == nil}, err)
	case *chat.MailClaimAction:
		result, err := h.mailSvc.Claim(ctx, a.MailID, req.PlayerID)
		h.respond(w, r, result, err)
	case *chat.ShopBuyAction:
		result, err := h.shopSvc.Buy(ctx, req.PlayerID, a.PackID)
		h.respond(w, r, result, err)
	case *chat.ShopOpenAction:
		result, err := h.shopSvc.Open(ctx, req.PlayerID, a.PackID)
		h.respond(w, r, result, err)
	case *chat.RafflePlayAction:
		result, err := h.raffleSvc.Play(ctx, req.PlayerID)
		h.respond(w, r, result, err)
	case *chat.GiftAction:
		err := h.mailSvc.Gift(ctx, req.PlayerID, a.RecipientID, a.Amount, a.Note)
		h.respond(w, r, map[string]bool{"sent": err == nil}, err)
	default:
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "unsupported action")
	}
}

func (h *Handlers) handleClaim(w http.ResponseWriter, r *http.Request, playerID int64, a *chat.ClaimAction) {
	ctx := r.Context()
	result, err := h.claimSvc.Attempt(ctx, a.RoomID, a.SpawnID, playerID)
	if err != nil {
		h.respond(w, r, nil, err)
		return
	}

	if result.Caught && result.ArtifactRef != "" && h.announcer != nil {
		if err := h.announcer.AnnounceClaim(ctx, a.RoomID, result.ArtifactRef,
			playerID, result.Critter.ID, result.Critter.Name, result.Rarity); err != nil {
			h.logger.Warn("announce claim", "room_id", a.RoomID, "error", err)
		}
	}
	writeJSON(w, r, http.StatusOK, result)
}

type eventClaimResponse struct {
	Event events.Event `json:"event"`
	Token events.Token `json:"token"`
}

func (h *Handlers) handleEventClaim(w http.ResponseWriter, r *http.Request, a *chat.EventClaimAction) {
	ctx := r.Context()
	entry, ok := h.registry.ClaimEvent(a.RoomID)
	if !ok {
		writeError(w, r, http.StatusGone, model.ErrCodeTooLate, "no live event in this room")
		return
	}

	token, err := h.eventSvc.Claim(entry.EventID)
	if err != nil {
		h.respond(w, r, nil, err)
		return
	}
	def, _ := events.ByID(entry.EventID)

	if entry.ArtifactRef != "" && h.announcer != nil {
		if err := h.announcer.Retract(ctx, a.RoomID, entry.ArtifactRef); err != nil {
			h.logger.Warn("retract event artifact", "room_id", a.RoomID, "error", err)
		}
	}
	writeJSON(w, r, http.StatusOK, eventClaimResponse{Event: def, Token: token})
}

type eventAdvanceResponse struct {
	Token events.Token `json:"token"`
	Done  bool         `json:"done"`
}

func (h *Handlers) handleEventAdvance(w http.ResponseWriter, r *http.Request, a *chat.EventAdvanceAction) {
	next, done, err := h.eventSvc.Advance(events.Token{EventID: a.EventID, Step: a.Step})
	if err != nil {
		h.respond(w, r, nil, err)
		return
	}
	if done {
		if err := h.eventSvc.Complete(r.Context(), a.RoomID, a.EventID); err != nil {
			h.respond(w, r, nil, err)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, eventAdvanceResponse{Token: next, Done: done})
}

// respond writes data on success or maps a service error to the envelope.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err == nil {
		writeJSON(w, r, http.StatusOK, data)
		return
	}

	var cooldown *claim.CooldownError
	switch {
	case errors.As(err, &cooldown):
		w.Header().Set("Retry-After", strconv.Itoa(int(cooldown.Remaining.Seconds())+1))
		writeError(w, r, http.StatusTooManyRequests, model.ErrCodeOnCooldown, err.Error())
	case errors.Is(err, claim.ErrTooLate):
		writeError(w, r, http.StatusGone, model.ErrCodeTooLate, "the spawn is gone")
	case errors.Is(err, shop.ErrOpenCooldown):
		w.Header().Set("Retry-After", "15")
		writeError(w, r, http.StatusTooManyRequests, model.ErrCodeOnCooldown, err.Error())
	case errors.Is(err, trade.ErrQuotaExhausted), errors.Is(err, raffle.ErrAlreadyPlayed):
		writeError(w, r, http.StatusTooManyRequests, model.ErrCodeQuotaExhausted, err.Error())
	case errors.Is(err, trade.ErrStockChanged):
		writeError(w, r, http.StatusConflict, model.ErrCodeStockChanged, err.Error())
	case errors.Is(err, trade.ErrPending), errors.Is(err, trade.ErrNoDuplicate):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
	case errors.Is(err, trade.ErrNotRecipient), errors.Is(err, trade.ErrNotParty), errors.Is(err, trade.ErrRestricted):
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, err.Error())
	case errors.Is(err, mail.ErrInsufficientFunds), errors.Is(err, shop.ErrInsufficientFunds),
		errors.Is(err, storage.ErrInsufficientFunds):
		writeError(w, r, http.StatusConflict, model.ErrCodeInsufficientFunds, err.Error())
	case errors.Is(err, trade.ErrSelfTrade), errors.Is(err, mail.ErrSelfGift),
		errors.Is(err, mail.ErrInvalidPayload), errors.Is(err, shop.ErrUnknownPack),
		errors.Is(err, events.ErrUnknownEvent):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, shop.ErrNoPack), errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, err.Error())
	default:
		h.logger.Error("action failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
	}
}

// HandleSubscribe streams announcements to the adapter over SSE.
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "subscriptions disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	// Heartbeat keeps intermediaries from closing the idle stream.
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": heartbeat\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
