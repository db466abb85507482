package chat

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/critterdex/critterdex/internal/model"
)

// ErrUnknownAction is returned for an unrecognized action type.
var ErrUnknownAction = errors.New("chat: unknown action type")

// Action is one inbound adapter action. The concrete type carries the
// payload; adapters submit the JSON envelope and the core dispatches on the
// decoded type, never on the raw string.
type Action interface {
	actionType() string
}

// ClaimAction attempts to capture a live spawn.
type ClaimAction struct {
	RoomID  int64     `json:"room_id"`
	SpawnID uuid.UUID `json:"spawn_id"`
}

// EventClaimAction grabs the room's live story event.
type EventClaimAction struct {
	RoomID int64 `json:"room_id"`
}

// EventAdvanceAction moves a claimed event's dialogue walk one step.
type EventAdvanceAction struct {
	RoomID  int64  `json:"room_id"`
	EventID string `json:"event_id"`
	Step    int    `json:"step"`
}

// TradeProposeAction opens a trade.
type TradeProposeAction struct {
	RecipientID int64              `json:"recipient_id"`
	Offered     model.OwnedCritter `json:"offered"`
	Requested   model.OwnedCritter `json:"requested"`
}

// TradeConfirmAction settles a proposed trade.
type TradeConfirmAction struct {
	TradeID uuid.UUID `json:"trade_id"`
}

// TradeRejectAction closes a proposed trade.
type TradeRejectAction struct {
	TradeID uuid.UUID `json:"trade_id"`
}

// MailClaimAction collects one piece of mail.
type MailClaimAction struct {
	MailID uuid.UUID `json:"mail_id"`
}

// ShopBuyAction buys a pack.
type ShopBuyAction struct {
	PackID string `json:"pack_id"`
}

// ShopOpenAction opens a pack from the bag.
type ShopOpenAction struct {
	PackID string `json:"pack_id"`
}

// RafflePlayAction draws today's raffle prize.
type RafflePlayAction struct{}

// GiftAction transfers currency to another player.
type GiftAction struct {
	RecipientID int64  `json:"recipient_id"`
	Amount      int64  `json:"amount"`
	Note        string `json:"note,omitempty"`
}

func (ClaimAction) actionType() string        { return "claim" }
func (EventClaimAction) actionType() string   { return "event_claim" }
func (EventAdvanceAction) actionType() string { return "event_advance" }
func (TradeProposeAction) actionType() string { return "trade_propose" }
func (TradeConfirmAction) actionType() string { return "trade_confirm" }
func (TradeRejectAction) actionType() string  { return "trade_reject" }
func (MailClaimAction) actionType() string    { return "mail_claim" }
func (ShopBuyAction) actionType() string      { return "shop_buy" }
func (ShopOpenAction) actionType() string     { return "shop_open" }
func (RafflePlayAction) actionType() string   { return "raffle_play" }
func (GiftAction) actionType() string         { return "gift" }

// envelope is the wire form of an action.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeAction parses an action envelope into its concrete type.
func DecodeAction(data []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("chat: decode action envelope: %w", err)
	}

	var action Action
	switch env.Type {
	case "claim":
		action = &ClaimAction{}
	case "event_claim":
		action = &EventClaimAction{}
	case "event_advance":
		action = &EventAdvanceAction{}
	case "trade_propose":
		action = &TradeProposeAction{}
	case "trade_confirm":
		action = &TradeConfirmAction{}
	case "trade_reject":
		action = &TradeRejectAction{}
	case "mail_claim":
		action = &MailClaimAction{}
	case "shop_buy":
		action = &ShopBuyAction{}
	case "shop_open":
		action = &ShopOpenAction{}
	case "raffle_play":
		action = &RafflePlayAction{}
	case "gift":
		action = &GiftAction{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Type)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, action); err != nil {
			return nil, fmt.Errorf("chat: decode %s payload: %w", env.Type, err)
		}
	}
	return action, nil
}

// EncodeAction wraps an action in its envelope, for adapters and tests.
func EncodeAction(a Action) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("chat: encode action payload: %w", err)
	}
	return json.Marshal(envelope{Type: a.actionType(), Payload: payload})
}
