package model

// Tier is a critter's catalog tier, common to legendary.
type Tier string

const (
	TierC Tier = "C"
	TierB Tier = "B"
	TierA Tier = "A"
	TierS Tier = "S"
)

// Tiers lists all catalog tiers in draw order.
var Tiers = []Tier{TierC, TierB, TierA, TierS}

// Rarity is the display rarity of a caught critter: the catalog tier,
// escalated when the copy is shiny.
type Rarity string

const (
	RarityC   Rarity = "C"
	RarityB   Rarity = "B"
	RarityA   Rarity = "A"
	RarityS   Rarity = "S"
	RaritySS  Rarity = "SS"
	RaritySSS Rarity = "SSS"
)

// DeriveRarity maps a tier and shiny flag to the final rarity.
// Shiny escalation: C/B -> S, A -> SS, S -> SSS.
func DeriveRarity(t Tier, shiny bool) Rarity {
	if !shiny {
		return Rarity(t)
	}
	switch t {
	case TierC, TierB:
		return RarityS
	case TierA:
		return RaritySS
	default:
		return RaritySSS
	}
}

// duplicatePayouts is the liquidation value of an excess copy by rarity.
var duplicatePayouts = map[Rarity]int64{
	RarityC:   100,
	RarityB:   200,
	RarityA:   400,
	RarityS:   800,
	RaritySS:  1600,
	RaritySSS: 3200,
}

// DuplicatePayout returns the currency value of a liquidated excess copy.
func DuplicatePayout(r Rarity) int64 {
	if v, ok := duplicatePayouts[r]; ok {
		return v
	}
	return duplicatePayouts[RarityC]
}

// Critter is an immutable catalog entry.
type Critter struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Tier   Tier   `json:"tier"`
	Region string `json:"region"`
	// Mission names the room mission that must be completed before this
	// critter can spawn wild in a room. Empty means never gated.
	Mission string `json:"mission,omitempty"`
}

// Rarity returns the display rarity of a copy of this critter.
func (c Critter) Rarity(shiny bool) Rarity {
	return DeriveRarity(c.Tier, shiny)
}

// OwnedCritter identifies one ledger row: a catalog id plus shiny flag.
// Shiny and plain copies of the same critter are distinct collectibles.
type OwnedCritter struct {
	CritterID int  `json:"critter_id"`
	Shiny     bool `json:"shiny"`
}

// CreditStatus is the outcome of crediting a caught critter to a player.
type CreditStatus string

const (
	// CreditNew is the first copy: registered in the album.
	CreditNew CreditStatus = "new"
	// CreditDuplicate is the second copy: reserved for trading.
	CreditDuplicate CreditStatus = "duplicate"
	// CreditCapped is a third-or-later copy: liquidated for currency,
	// the stored counter stays at 2.
	CreditCapped CreditStatus = "capped"
)
