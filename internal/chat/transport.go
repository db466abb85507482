package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/critterdex/critterdex/internal/game/spawn"
	"github.com/critterdex/critterdex/internal/model"
	"github.com/critterdex/critterdex/internal/storage"
)

// Transport delivers announcements to whatever is listening. The built-in
// transport fans out through Postgres NOTIFY to the SSE stream that chat
// adapters subscribe to.
type Transport interface {
	Publish(ctx context.Context, a Announcement) error
}

// Broadcaster publishes announcements on the storage notify channel.
type Broadcaster struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewBroadcaster creates the NOTIFY-backed transport.
func NewBroadcaster(db *storage.DB, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{db: db, logger: logger}
}

// Publish serializes the announcement and notifies subscribers. Spawn
// announcements are enriched with the opted-in notification list.
func (b *Broadcaster) Publish(ctx context.Context, a Announcement) error {
	if a.Kind == AnnouncementSpawn {
		notify, err := b.db.ListNotifiablePlayers(ctx)
		if err != nil {
			b.logger.Warn("chat: list notifiable players", "error", err)
		} else {
			a.Notify = notify
		}
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("chat: marshal announcement: %w", err)
	}
	if err := b.db.Notify(ctx, storage.ChannelAnnouncements, string(payload)); err != nil {
		return fmt.Errorf("chat: publish announcement: %w", err)
	}
	return nil
}

// NotifyMail publishes a delivery notice on the mail channel.
func (b *Broadcaster) NotifyMail(ctx context.Context, m model.Mail) error {
	payload, err := json.Marshal(MailNotice{
		MailID:      m.ID.String(),
		RecipientID: m.RecipientID,
		Kind:        m.Kind,
		Note:        m.Note,
		At:          time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("chat: marshal mail notice: %w", err)
	}
	if err := b.db.Notify(ctx, storage.ChannelMail, string(payload)); err != nil {
		return fmt.Errorf("chat: publish mail notice: %w", err)
	}
	return nil
}

// Announcer adapts a Transport to the spawn scheduler's callbacks.
type Announcer struct {
	transport Transport
}

// NewAnnouncer wraps a transport for the scheduler.
func NewAnnouncer(t Transport) *Announcer {
	return &Announcer{transport: t}
}

// AnnounceSpawn publishes a wild spawn and mints its artifact ref.
func (a *Announcer) AnnounceSpawn(ctx context.Context, e spawn.Entry) (string, error) {
	ref := uuid.NewString()
	err := a.transport.Publish(ctx, Announcement{
		Kind:        AnnouncementSpawn,
		Ref:         ref,
		RoomID:      e.RoomID,
		SpawnID:     e.ID.String(),
		CritterID:   e.Critter.ID,
		CritterName: e.Critter.Name,
		Tier:        e.Critter.Tier,
		Shiny:       e.Shiny,
		Rarity:      e.Critter.Rarity(e.Shiny),
		At:          time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// AnnounceEvent publishes a story-event hook and mints its artifact ref.
func (a *Announcer) AnnounceEvent(ctx context.Context, ev spawn.EventEntry) (string, error) {
	ref := uuid.NewString()
	err := a.transport.Publish(ctx, Announcement{
		Kind:    AnnouncementEvent,
		Ref:     ref,
		RoomID:  ev.RoomID,
		EventID: ev.EventID,
		At:      time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// Retract tells adapters to withdraw a previously published artifact.
func (a *Announcer) Retract(ctx context.Context, roomID int64, ref string) error {
	return a.transport.Publish(ctx, Announcement{
		Kind:   AnnouncementDespawn,
		Ref:    ref,
		RoomID: roomID,
		At:     time.Now().UTC(),
	})
}

// AnnounceClaim publishes a won claim, reusing the spawn's artifact ref so
// adapters can edit the original message.
func (a *Announcer) AnnounceClaim(ctx context.Context, roomID int64, ref string, playerID int64, critterID int, critterName string, rarity model.Rarity) error {
	return a.transport.Publish(ctx, Announcement{
		Kind:        AnnouncementClaim,
		Ref:         ref,
		RoomID:      roomID,
		PlayerID:    playerID,
		CritterID:   critterID,
		CritterName: critterName,
		Rarity:      rarity,
		At:          time.Now().UTC(),
	})
}
