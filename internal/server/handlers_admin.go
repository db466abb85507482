package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/critterdex/critterdex/internal/auth"
	"github.com/critterdex/critterdex/internal/model"
	"github.com/critterdex/critterdex/internal/storage"
)

// SeedAdmin bootstraps the initial admin adapter from configuration. It is
// a no-op when any adapter already exists.
func (h *Handlers) SeedAdmin(ctx context.Context, adminAPIKey string) error {
	count, err := h.db.CountAdapters(ctx)
	if err != nil {
		return fmt.Errorf("seed admin: count adapters: %w", err)
	}
	if count > 0 {
		return nil
	}
	if adminAPIKey == "" {
		return fmt.Errorf("seed admin: admin API key is empty and no adapters exist; set CRITTERDEX_ADMIN_API_KEY to bootstrap")
	}

	hash, err := auth.HashAPIKey(adminAPIKey)
	if err != nil {
		return fmt.Errorf("seed admin: hash key: %w", err)
	}

	_, err = h.db.CreateAdapter(ctx, model.Adapter{
		AdapterID:  "admin",
		Name:       "System Admin",
		Role:       model.RoleAdmin,
		APIKeyHash: hash,
		Active:     true,
	})
	if err != nil {
		return fmt.Errorf("seed admin: create adapter: %w", err)
	}
	h.logger.Info("seeded initial admin adapter")
	return nil
}

type createAdapterRequest struct {
	AdapterID string     `json:"adapter_id"`
	Name      string     `json:"name"`
	Role      model.Role `json:"role"`
}

type createAdapterResponse struct {
	Adapter model.Adapter `json:"adapter"`
	// APIKey is the raw key, shown exactly once.
	APIKey string `json:"api_key"`
}

// HandleCreateAdapter registers a new chat adapter and mints its API key.
func (h *Handlers) HandleCreateAdapter(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req createAdapterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if req.AdapterID == "" || req.Name == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "adapter_id and name are required")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleAdapter
	}
	if req.Role != model.RoleAdapter && req.Role != model.RoleAdmin {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "unknown role")
		return
	}

	rawKey, err := model.GenerateRawKey()
	if err != nil {
		h.respond(w, r, nil, err)
		return
	}
	hash, err := auth.HashAPIKey(rawKey)
	if err != nil {
		h.respond(w, r, nil, err)
		return
	}

	adapter, err := h.db.CreateAdapter(r.Context(), model.Adapter{
		AdapterID:  req.AdapterID,
		Name:       req.Name,
		Role:       req.Role,
		APIKeyHash: hash,
		Active:     true,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "adapter_id already exists")
			return
		}
		h.respond(w, r, nil, err)
		return
	}

	h.logger.Info("adapter created", "adapter_id", adapter.AdapterID, "role", adapter.Role)
	writeJSON(w, r, http.StatusCreated, createAdapterResponse{Adapter: adapter, APIKey: rawKey})
}

type setAdapterActiveRequest struct {
	Active bool `json:"active"`
}

// HandleSetAdapterActive enables or disables an adapter's credentials.
// Disabling does not revoke already-issued tokens; they age out at expiry.
func (h *Handlers) HandleSetAdapterActive(w http.ResponseWriter, r *http.Request) {
	adapterID := r.PathValue("adapter_id")
	if adapterID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid adapter_id")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req setAdapterActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if err := h.db.SetAdapterActive(r.Context(), adapterID, req.Active); err != nil {
		h.respond(w, r, nil, err)
		return
	}
	h.logger.Info("adapter active flag set", "adapter_id", adapterID, "active", req.Active)
	writeJSON(w, r, http.StatusOK, map[string]bool{"active": req.Active})
}

type setPlayerRestrictedRequest struct {
	Restricted bool `json:"restricted"`
}

// HandleSetPlayerRestricted bars a player from trading, or lifts the bar.
func (h *Handlers) HandleSetPlayerRestricted(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "player_id")
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req setPlayerRestrictedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if err := h.db.SetPlayerRestricted(r.Context(), playerID, req.Restricted); err != nil {
		h.respond(w, r, nil, err)
		return
	}
	h.logger.Info("player restriction set", "player_id", playerID, "restricted", req.Restricted)
	writeJSON(w, r, http.StatusOK, map[string]bool{"restricted": req.Restricted})
}

type startRoomRequest struct {
	Title string `json:"title"`
}

// HandleStartRoom activates spawning in a room, creating it if needed.
func (h *Handlers) HandleStartRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathInt64(w, r, "room_id")
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req startRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	ctx := r.Context()
	room, err := h.db.EnsureRoom(ctx, roomID, req.Title)
	if err != nil {
		h.respond(w, r, nil, err)
		return
	}
	if room.Banned {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "room is banned")
		return
	}
	if err := h.db.SetRoomActive(ctx, roomID, true); err != nil {
		h.respond(w, r, nil, err)
		return
	}
	h.scheduler.StartRoom(roomID)
	room.Active = true
	writeJSON(w, r, http.StatusOK, room)
}

// HandleStopRoom deactivates spawning in a room.
func (h *Handlers) HandleStopRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathInt64(w, r, "room_id")
	if !ok {
		return
	}
	if err := h.db.SetRoomActive(r.Context(), roomID, false); err != nil {
		h.respond(w, r, nil, err)
		return
	}
	h.scheduler.StopRoom(roomID)
	writeJSON(w, r, http.StatusOK, map[string]bool{"active": false})
}

// HandleBanRoom bans a room: spawning stops and the room drops out of
// qualification everywhere.
func (h *Handlers) HandleBanRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathInt64(w, r, "room_id")
	if !ok {
		return
	}
	if err := h.db.SetRoomBanned(r.Context(), roomID, true); err != nil {
		h.respond(w, r, nil, err)
		return
	}
	h.scheduler.StopRoom(roomID)
	h.logger.Info("room banned", "room_id", roomID)
	writeJSON(w, r, http.StatusOK, map[string]bool{"banned": true})
}

// HandleUnbanRoom lifts a ban. The room stays inactive until started again.
func (h *Handlers) HandleUnbanRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathInt64(w, r, "room_id")
	if !ok {
		return
	}
	if err := h.db.SetRoomBanned(r.Context(), roomID, false); err != nil {
		h.respond(w, r, nil, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"banned": false})
}

// HandleSettleRanking runs the monthly ranking settlement immediately.
func (h *Handlers) HandleSettleRanking(w http.ResponseWriter, r *http.Request) {
	if err := h.rankSvc.Settle(r.Context()); err != nil {
		h.respond(w, r, nil, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"settled": true})
}
