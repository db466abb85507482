package model

import (
	"time"

	"github.com/google/uuid"
)

// TradeState tracks a proposal through its lifecycle.
type TradeState string

const (
	TradeProposed  TradeState = "proposed"
	TradeConfirmed TradeState = "confirmed"
	TradeRejected  TradeState = "rejected"
)

// TradeProposal is a two-party swap of duplicate critters. A proposer may
// hold at most one outstanding proposal at a time.
type TradeProposal struct {
	ID          uuid.UUID    `json:"id"`
	ProposerID  int64        `json:"proposer_id"`
	RecipientID int64        `json:"recipient_id"`
	Offered     OwnedCritter `json:"offered"`
	Requested   OwnedCritter `json:"requested"`
	State       TradeState   `json:"state"`
	CreatedAt   time.Time    `json:"created_at"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
}

// TradeSettlement reports what each party received on confirm. A Capped
// credit means that party already owned two copies and got currency instead.
type TradeSettlement struct {
	ProposerStatus  CreditStatus `json:"proposer_status"`
	ProposerPayout  int64        `json:"proposer_payout,omitempty"`
	RecipientStatus CreditStatus `json:"recipient_status"`
	RecipientPayout int64        `json:"recipient_payout,omitempty"`
}
