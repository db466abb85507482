// Package events holds the story-event table and its room eligibility rules.
//
// Events are data: the dialogue layer walks an event's steps using the
// continuation token handed out at claim time, and calls Complete when the
// walk finishes. Completing a mission event unlocks the gated legendary for
// wild spawns in that room.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/critterdex/critterdex/internal/storage"
)

// Event is one story-event definition.
type Event struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Mission is recorded in the room on completion. Non-empty missions
	// match catalog gating, so finishing the event unlocks a legendary.
	Mission string `json:"mission,omitempty"`
	// OneTime events never fire again in a room that completed them.
	OneTime bool `json:"one_time"`
	// RequiresQualified events only fire in rooms above the member
	// threshold.
	RequiresQualified bool `json:"requires_qualified"`
	// Steps is the length of the dialogue walk.
	Steps int `json:"steps"`
}

// completionKey is what gets recorded in room_events for this event.
func (e Event) completionKey() string {
	if e.Mission != "" {
		return e.Mission
	}
	return e.ID
}

// table lists every story event. Mission events mirror the gated catalog
// entries; the rest are repeatable flavor encounters.
var table = []Event{
	{ID: "lost_cub", Title: "A Lost Cub", Steps: 3},
	{ID: "meteor_night", Title: "Meteor Night", Steps: 2},
	{ID: "traveling_merchant", Title: "The Traveling Merchant", Steps: 4},
	{ID: "emberwing_trial", Title: "Trial of the Emberwing", Mission: "mission_emberwing", OneTime: true, RequiresQualified: true, Steps: 5},
	{ID: "galestrike_trial", Title: "Trial of the Galestrike", Mission: "mission_galestrike", OneTime: true, RequiresQualified: true, Steps: 5},
	{ID: "permafryst_trial", Title: "Trial of the Permafryst", Mission: "mission_permafryst", OneTime: true, RequiresQualified: true, Steps: 5},
	{ID: "nullmind_rift", Title: "Rift of the Nullmind", Mission: "mission_nullmind", OneTime: true, RequiresQualified: true, Steps: 6},
}

// ErrUnknownEvent is returned for an event id not in the table.
var ErrUnknownEvent = errors.New("events: unknown event")

// ByID looks up an event definition.
func ByID(id string) (Event, bool) {
	for _, e := range table {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}

// Token is the continuation handed to the dialogue layer when an event is
// claimed.
type Token struct {
	EventID string `json:"event_id"`
	Step    int    `json:"step"`
}

// Service evaluates eligibility and records completions.
type Service struct {
	db                  *storage.DB
	qualifiedMinMembers int
	logger              *slog.Logger

	// pick selects an index in [0,n). Replaceable in tests.
	pick func(n int) int
}

// New creates an events service.
func New(db *storage.DB, qualifiedMinMembers int, logger *slog.Logger) *Service {
	return &Service{
		db:                  db,
		qualifiedMinMembers: qualifiedMinMembers,
		logger:              logger,
		pick:                rand.IntN,
	}
}

// Eligible returns the events that may fire in the room right now:
// qualification-gated events need enough members, and completed one-time
// events never repeat.
func (s *Service) Eligible(ctx context.Context, roomID int64) ([]Event, error) {
	var qualified *bool
	var eligible []Event
	for _, e := range table {
		if e.RequiresQualified {
			if qualified == nil {
				q, err := s.roomQualified(ctx, roomID)
				if err != nil {
					return nil, err
				}
				qualified = &q
			}
			if !*qualified {
				continue
			}
		}
		if e.OneTime {
			done, err := s.db.RoomEventCompleted(ctx, roomID, e.completionKey())
			if err != nil {
				return nil, fmt.Errorf("events: check completion: %w", err)
			}
			if done {
				continue
			}
		}
		eligible = append(eligible, e)
	}
	return eligible, nil
}

// Pick chooses uniformly among the room's eligible events. ok is false when
// nothing is eligible.
func (s *Service) Pick(ctx context.Context, roomID int64) (string, bool, error) {
	eligible, err := s.Eligible(ctx, roomID)
	if err != nil {
		return "", false, err
	}
	if len(eligible) == 0 {
		return "", false, nil
	}
	return eligible[s.pick(len(eligible))].ID, true, nil
}

// Claim turns a claimed registry event into a continuation token.
func (s *Service) Claim(eventID string) (Token, error) {
	if _, ok := ByID(eventID); !ok {
		return Token{}, ErrUnknownEvent
	}
	return Token{EventID: eventID, Step: 0}, nil
}

// Advance moves the dialogue walk one step. done is true when the walk
// finished, at which point the caller records completion with Complete.
func (s *Service) Advance(t Token) (Token, bool, error) {
	e, ok := ByID(t.EventID)
	if !ok {
		return Token{}, false, ErrUnknownEvent
	}
	next := Token{EventID: t.EventID, Step: t.Step + 1}
	return next, next.Step >= e.Steps, nil
}

// Complete records the event as finished in the room. For mission events
// this unlocks the gated legendary's wild spawns.
func (s *Service) Complete(ctx context.Context, roomID int64, eventID string) error {
	e, ok := ByID(eventID)
	if !ok {
		return ErrUnknownEvent
	}
	recorded, err := s.db.RecordRoomEvent(ctx, roomID, e.completionKey())
	if err != nil {
		return fmt.Errorf("events: record completion: %w", err)
	}
	if recorded {
		s.logger.Info("story event completed", "room_id", roomID, "event_id", eventID, "mission", e.Mission)
	}
	return nil
}

func (s *Service) roomQualified(ctx context.Context, roomID int64) (bool, error) {
	room, err := s.db.GetRoom(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("events: load room: %w", err)
	}
	if room.Banned {
		return false, nil
	}
	n, err := s.db.RoomMemberCount(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("events: member count: %w", err)
	}
	return n >= s.qualifiedMinMembers, nil
}
