package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rcliao/shop-memory/internal/model"
)

// AppendEvent appends a recall event for the user.
func (s *SQLiteStore) AppendEvent(ctx context.Context, userID string, t model.EventType, data map[string]any) (*model.RecallEvent, error) {
	if !model.ValidEventTypes[t] {
		return nil, fmt.Errorf("event type %q: %w", t, ErrInvalidItem)
	}
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("event data: %v: %w", err, ErrInvalidItem)
	}

	ev := &model.RecallEvent{
		ID:        s.newID(),
		UserID:    userID,
		EventType: t,
		EventData: data,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recall_events (id, user_id, event_type, event_data, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, userID, string(t), string(raw), formatTime(ev.CreatedAt))
	if err != nil {
		return nil, unavailable("append event", err)
	}
	return ev, nil
}

// RecentEvents returns up to limit events, newest first.
func (s *SQLiteStore) RecentEvents(ctx context.Context, userID string, limit int) ([]model.RecallEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, event_type, event_data, created_at FROM recall_events
		 WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, unavailable("recent events", err)
	}
	defer rows.Close()

	events := []model.RecallEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, unavailable("recent events", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("recent events", err)
	}
	return events, nil
}

// CountEvents counts all events recorded for the user.
func (s *SQLiteStore) CountEvents(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recall_events WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, unavailable("count events", err)
	}
	return n, nil
}

// UsersWithEvents lists every user that has at least one recall event.
func (s *SQLiteStore) UsersWithEvents(ctx context.Context) ([]string, error) {
	return s.distinctUsers(ctx, "users with events", `SELECT DISTINCT user_id FROM recall_events ORDER BY user_id`)
}

// UsersWithActiveWatches lists every user that has an active watch item.
func (s *SQLiteStore) UsersWithActiveWatches(ctx context.Context) ([]string, error) {
	return s.distinctUsers(ctx, "users with watches", `SELECT DISTINCT user_id FROM watch_items WHERE is_active = 1 ORDER BY user_id`)
}

func (s *SQLiteStore) distinctUsers(ctx context.Context, op, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, unavailable(op, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return users, nil
}

func scanEvent(sc scanner) (model.RecallEvent, error) {
	var ev model.RecallEvent
	var eventType, data, createdAt string
	if err := sc.Scan(&ev.ID, &ev.UserID, &eventType, &data, &createdAt); err != nil {
		return ev, err
	}
	ev.EventType = model.EventType(eventType)
	ev.EventData = map[string]any{}
	json.Unmarshal([]byte(data), &ev.EventData)
	ev.CreatedAt = parseTime(createdAt)
	return ev, nil
}
