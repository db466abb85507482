package model

import (
	"time"

	"github.com/google/uuid"
)

// MailKind discriminates mailbox payloads.
type MailKind string

const (
	MailMoney   MailKind = "money"
	MailItem    MailKind = "item"
	MailCritter MailKind = "critter"
)

// Mail is an unclaimed reward sitting in a player's mailbox. Exactly one
// of Amount, ItemID, or Critter is meaningful depending on Kind.
type Mail struct {
	ID          uuid.UUID    `json:"id"`
	RecipientID int64        `json:"recipient_id"`
	Kind        MailKind     `json:"kind"`
	Amount      int64        `json:"amount,omitempty"`
	ItemID      string       `json:"item_id,omitempty"`
	Critter     OwnedCritter `json:"critter,omitempty"`
	Note        string       `json:"note,omitempty"`
	Claimed     bool         `json:"claimed"`
	CreatedAt   time.Time    `json:"created_at"`
}

// InventoryItem is a stack of a shop item in a player's bag.
type InventoryItem struct {
	PlayerID int64  `json:"player_id"`
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}
