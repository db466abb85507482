package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/critterdex/critterdex/internal/game/events"
	"github.com/critterdex/critterdex/internal/model"
	"github.com/critterdex/critterdex/internal/storage"
)

// pathInt64 parses a path parameter as int64; writes a 400 and returns
// false on failure. Negative values are allowed: group chat ids are negative
// on most platforms.
func pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v == 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid "+name)
		return 0, false
	}
	return v, true
}

// queryLimit reads the limit query parameter, defaulting and capping.
func queryLimit(r *http.Request, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// HandleGetPlayer returns one player's profile.
func (h *Handlers) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "player_id")
	if !ok {
		return
	}
	player, err := h.db.GetPlayer(r.Context(), playerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "player not found")
			return
		}
		h.respond(w, r, nil, err)
		return
	}
	writeJSON(w, r, http.StatusOK, player)
}

// HandleGetCollection returns a player's album with per-critter quantities.
func (h *Handlers) HandleGetCollection(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "player_id")
	if !ok {
		return
	}
	entries, err := h.ledgerSvc.Collection(r.Context(), playerID)
	h.respond(w, r, entries, err)
}

// HandleGetDuplicates returns the critters a player can trade or gift.
func (h *Handlers) HandleGetDuplicates(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "player_id")
	if !ok {
		return
	}
	dups, err := h.ledgerSvc.Duplicates(r.Context(), playerID)
	h.respond(w, r, dups, err)
}

// HandleGetMailbox returns a player's unclaimed mail, oldest first.
func (h *Handlers) HandleGetMailbox(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "player_id")
	if !ok {
		return
	}
	mails, err := h.mailSvc.List(r.Context(), playerID)
	h.respond(w, r, mails, err)
}

// HandleGetInventory returns the player's bag of unopened packs.
func (h *Handlers) HandleGetInventory(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "player_id")
	if !ok {
		return
	}
	items, err := h.db.ListInventory(r.Context(), playerID)
	h.respond(w, r, items, err)
}

// HandleGetPendingTrade returns the player's outstanding proposal, if any.
func (h *Handlers) HandleGetPendingTrade(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "player_id")
	if !ok {
		return
	}
	proposal, found, err := h.tradeSvc.Pending(r.Context(), playerID)
	if err != nil {
		h.respond(w, r, nil, err)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "no pending trade")
		return
	}
	writeJSON(w, r, http.StatusOK, proposal)
}

// HandleGlobalRanking returns the top players by monthly catches.
func (h *Handlers) HandleGlobalRanking(w http.ResponseWriter, r *http.Request) {
	players, err := h.rankSvc.Global(r.Context(), queryLimit(r, 10, 100))
	h.respond(w, r, players, err)
}

// HandleRoomRanking returns the top members of one room by monthly catches.
func (h *Handlers) HandleRoomRanking(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathInt64(w, r, "room_id")
	if !ok {
		return
	}
	members, err := h.rankSvc.Room(r.Context(), roomID, queryLimit(r, 10, 100))
	h.respond(w, r, members, err)
}

type roomEventsResponse struct {
	Eligible []events.Event `json:"eligible"`
	// Completed lists the mission keys the room has finished.
	Completed []string `json:"completed"`
}

// HandleRoomEvents returns the story events that may still fire in a room
// and the missions it already completed.
func (h *Handlers) HandleRoomEvents(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathInt64(w, r, "room_id")
	if !ok {
		return
	}
	ctx := r.Context()
	eligible, err := h.eventSvc.Eligible(ctx, roomID)
	if err != nil {
		h.respond(w, r, nil, err)
		return
	}
	completed, err := h.db.ListRoomEvents(ctx, roomID)
	if err != nil {
		h.respond(w, r, nil, err)
		return
	}
	writeJSON(w, r, http.StatusOK, roomEventsResponse{Eligible: eligible, Completed: completed})
}

type notificationsRequest struct {
	Enabled bool `json:"enabled"`
}

// HandleSetNotifications toggles a player's notification opt-in.
func (h *Handlers) HandleSetNotifications(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt64(w, r, "player_id")
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req notificationsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if err := h.db.SetNotifications(r.Context(), playerID, req.Enabled); err != nil {
		h.respond(w, r, nil, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}
