// Package chat is the boundary between the game core and chat platforms.
//
// Outbound, it publishes announcements (spawns, despawns, claims, story
// events) that connected adapters render into their platform's messages.
// Inbound, it defines the typed action payloads adapters submit; the core
// never dispatches on raw strings.
package chat

import (
	"time"

	"github.com/critterdex/critterdex/internal/model"
)

// AnnouncementKind discriminates announcement payloads.
type AnnouncementKind string

const (
	AnnouncementSpawn   AnnouncementKind = "spawn"
	AnnouncementDespawn AnnouncementKind = "despawn"
	AnnouncementClaim   AnnouncementKind = "claim"
	AnnouncementEvent   AnnouncementKind = "event"
)

// Announcement is one outbound game notice. Ref identifies the chat artifact
// across its lifecycle: the despawn or claim notice for a spawn carries the
// same ref as the original announcement, so adapters can retract or edit the
// message they posted.
type Announcement struct {
	Kind   AnnouncementKind `json:"kind"`
	Ref    string           `json:"ref"`
	RoomID int64            `json:"room_id"`

	// Spawn and claim payload.
	SpawnID     string       `json:"spawn_id,omitempty"`
	CritterID   int          `json:"critter_id,omitempty"`
	CritterName string       `json:"critter_name,omitempty"`
	Tier        model.Tier   `json:"tier,omitempty"`
	Shiny       bool         `json:"shiny,omitempty"`
	Rarity      model.Rarity `json:"rarity,omitempty"`

	// Event payload.
	EventID string `json:"event_id,omitempty"`

	// Claim payload.
	PlayerID int64 `json:"player_id,omitempty"`

	// Notify lists players who opted into spawn notifications; adapters DM
	// them in addition to posting in the room.
	Notify []int64 `json:"notify,omitempty"`

	At time.Time `json:"at"`
}

// MailNotice tells adapters a reward landed in a mailbox, so they can prompt
// the recipient to claim it.
type MailNotice struct {
	MailID      string         `json:"mail_id"`
	RecipientID int64          `json:"recipient_id"`
	Kind        model.MailKind `json:"kind"`
	Note        string         `json:"note,omitempty"`

	At time.Time `json:"at"`
}
