package model

import "time"

// Player is a participant identity. Players are created on first
// interaction and never deleted.
type Player struct {
	ID             int64     `json:"id"`
	DisplayName    string    `json:"display_name"`
	Balance        int64     `json:"balance"`
	CaptureChance  int       `json:"capture_chance"`
	MonthlyCatches int       `json:"monthly_catches"`
	// RegionCompleted is set once the player has collected every critter
	// in the catalog region.
	RegionCompleted bool `json:"region_completed"`

	// DailyTrades counts settled trades since LastTradeDate. The counter
	// resets lazily when a quota check observes a new local-zone day.
	DailyTrades   int    `json:"daily_trades"`
	LastTradeDate string `json:"last_trade_date,omitempty"` // YYYY-MM-DD in the configured zone

	LastRaffleDate string `json:"last_raffle_date,omitempty"` // YYYY-MM-DD in the configured zone

	// Restricted bars the player from trading. Operator-set; catching and
	// the rest of the game are unaffected.
	Restricted bool `json:"restricted"`

	NotificationsEnabled bool      `json:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Room is a chat room the game runs in. Spawning is driven by Active;
// Banned rooms are excluded from everything including qualification.
type Room struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
	Banned bool   `json:"banned"`
	// ChallengeCompleted is set once the room has collected every critter
	// in the catalog region as a group.
	ChallengeCompleted bool      `json:"challenge_completed"`
	CreatedAt          time.Time `json:"created_at"`
}

// RoomMember links a player to a room, with the room-scoped monthly
// catch counter used by the per-room ranking.
type RoomMember struct {
	RoomID         int64 `json:"room_id"`
	PlayerID       int64 `json:"player_id"`
	MonthlyCatches int   `json:"monthly_catches"`
}
