package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/critterdex/critterdex/internal/model"
)

// EnsureRoom creates or refreshes a room row and returns it. Banned rooms are
// returned as-is so the caller can refuse service.
func (db *DB) EnsureRoom(ctx context.Context, id int64, title string) (model.Room, error) {
	var r model.Room
	err := db.pool.QueryRow(ctx,
		`INSERT INTO rooms (id, title)
		 VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title
		 RETURNING id, title, active, banned, challenge_completed, created_at`,
		id, title,
	).Scan(&r.ID, &r.Title, &r.Active, &r.Banned, &r.ChallengeCompleted, &r.CreatedAt)
	if err != nil {
		return model.Room{}, fmt.Errorf("storage: ensure room: %w", err)
	}
	return r, nil
}

// GetRoom retrieves a room by ID.
func (db *DB) GetRoom(ctx context.Context, id int64) (model.Room, error) {
	var r model.Room
	err := db.pool.QueryRow(ctx,
		`SELECT id, title, active, banned, challenge_completed, created_at FROM rooms WHERE id = $1`, id,
	).Scan(&r.ID, &r.Title, &r.Active, &r.Banned, &r.ChallengeCompleted, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Room{}, ErrNotFound
		}
		return model.Room{}, fmt.Errorf("storage: get room: %w", err)
	}
	return r, nil
}

// SetRoomActive starts or stops spawning in the room.
func (db *DB) SetRoomActive(ctx context.Context, id int64, active bool) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE rooms SET active = $2 WHERE id = $1`, id, active,
	)
	if err != nil {
		return fmt.Errorf("storage: set room active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRoomBanned bans or unbans a room. Banning also deactivates it.
func (db *DB) SetRoomBanned(ctx context.Context, id int64, banned bool) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE rooms SET banned = $2, active = CASE WHEN $2 THEN FALSE ELSE active END
		 WHERE id = $1`, id, banned,
	)
	if err != nil {
		return fmt.Errorf("storage: set room banned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveRooms returns all active, unbanned rooms. The spawn scheduler
// starts one loop per entry.
func (db *DB) ListActiveRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, active, banned, challenge_completed, created_at FROM rooms
		 WHERE active AND NOT banned ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list active rooms: %w", err)
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		var r model.Room
		if err := rows.Scan(&r.ID, &r.Title, &r.Active, &r.Banned, &r.ChallengeCompleted, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// EnsureRoomMember records the player's membership in the room.
func (db *DB) EnsureRoomMember(ctx context.Context, roomID, playerID int64) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO room_members (room_id, player_id)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roomID, playerID,
	)
	if err != nil {
		return fmt.Errorf("storage: ensure room member: %w", err)
	}
	return nil
}

// RoomMemberCount returns the number of registered members in the room,
// used for the qualification threshold.
func (db *DB) RoomMemberCount(ctx context.Context, roomID int64) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM room_members WHERE room_id = $1`, roomID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: room member count: %w", err)
	}
	return n, nil
}

// ListRoomMembers returns all member player IDs for a room.
func (db *DB) ListRoomMembers(ctx context.Context, roomID int64) ([]int64, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT player_id FROM room_members WHERE room_id = $1 ORDER BY player_id`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list room members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IncrementMemberCatches bumps the room-scoped monthly catch counter.
func (db *DB) IncrementMemberCatches(ctx context.Context, roomID, playerID int64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE room_members SET monthly_catches = monthly_catches + 1
		 WHERE room_id = $1 AND player_id = $2`,
		roomID, playerID,
	)
	if err != nil {
		return fmt.Errorf("storage: increment member catches: %w", err)
	}
	return nil
}

// TopMembersByCatches returns the room's monthly ranking, best first.
func (db *DB) TopMembersByCatches(ctx context.Context, roomID int64, limit int) ([]model.RoomMember, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT room_id, player_id, monthly_catches FROM room_members
		 WHERE room_id = $1 AND monthly_catches > 0
		 ORDER BY monthly_catches DESC, player_id ASC
		 LIMIT $2`, roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: top members: %w", err)
	}
	defer rows.Close()

	var members []model.RoomMember
	for rows.Next() {
		var m model.RoomMember
		if err := rows.Scan(&m.RoomID, &m.PlayerID, &m.MonthlyCatches); err != nil {
			return nil, fmt.Errorf("storage: scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// RecordRoomDex marks a critter as caught at least once in the room and
// reports whether this call added a new entry. The room dex drives the group
// challenge milestone.
func (db *DB) RecordRoomDex(ctx context.Context, roomID int64, critterID int) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO room_dex (room_id, critter_id)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roomID, critterID,
	)
	if err != nil {
		return false, fmt.Errorf("storage: record room dex: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RoomDexCount returns how many distinct catalog critters the room has caught.
func (db *DB) RoomDexCount(ctx context.Context, roomID int64) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM room_dex WHERE room_id = $1`, roomID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: room dex count: %w", err)
	}
	return n, nil
}

// MarkRoomChallengeCompleted flips the group challenge flag. Returns true if
// this call performed the flip, so the payout happens exactly once per room.
func (db *DB) MarkRoomChallengeCompleted(ctx context.Context, roomID int64) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE rooms SET challenge_completed = TRUE
		 WHERE id = $1 AND NOT challenge_completed`,
		roomID,
	)
	if err != nil {
		return false, fmt.Errorf("storage: mark room challenge: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordRoomEvent marks a story event as completed in the room, unlocking the
// associated mission reward. Reports whether the event was newly recorded.
func (db *DB) RecordRoomEvent(ctx context.Context, roomID int64, mission string) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO room_events (room_id, mission)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roomID, mission,
	)
	if err != nil {
		return false, fmt.Errorf("storage: record room event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RoomEventCompleted reports whether the room has completed the given mission.
func (db *DB) RoomEventCompleted(ctx context.Context, roomID int64, mission string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM room_events WHERE room_id = $1 AND mission = $2)`,
		roomID, mission,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: room event completed: %w", err)
	}
	return exists, nil
}

// ListRoomEvents returns the missions completed by the room.
func (db *DB) ListRoomEvents(ctx context.Context, roomID int64) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT mission FROM room_events WHERE room_id = $1 ORDER BY mission`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list room events: %w", err)
	}
	defer rows.Close()

	var missions []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("storage: scan mission: %w", err)
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}
