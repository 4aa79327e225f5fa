package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath          string      `json:"db_path"`
	DBSizeBytes     int64       `json:"db_size_bytes"`
	Users           int         `json:"users"`
	RecallEvents    int         `json:"recall_events"`
	ArchivalRecords int         `json:"archival_records"`
	WatchItems      int         `json:"watch_items"`
	ActiveWatches   int         `json:"active_watches"`
	PriceSamples    int         `json:"price_samples"`
	PendingAlerts   int         `json:"pending_alerts"`
	Alerts          []TypeCount `json:"alerts"`
	EventTypes      []TypeCount `json:"event_types"`
}

// TypeCount is a count grouped by a type column.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	counts := []struct {
		dst   *int
		query string
	}{
		{&st.Users, `SELECT COUNT(*) FROM core_memory`},
		{&st.RecallEvents, `SELECT COUNT(*) FROM recall_events`},
		{&st.ArchivalRecords, `SELECT COUNT(*) FROM archival_records`},
		{&st.WatchItems, `SELECT COUNT(*) FROM watch_items`},
		{&st.ActiveWatches, `SELECT COUNT(*) FROM watch_items WHERE is_active = 1`},
		{&st.PriceSamples, `SELECT COUNT(*) FROM price_samples`},
		{&st.PendingAlerts, `SELECT COUNT(*) FROM alerts WHERE user_response = 'pending'`},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return st, unavailable("stats", err)
		}
	}

	var err error
	st.Alerts, err = s.typeCounts(ctx, `SELECT alert_type, COUNT(*) AS cnt FROM alerts GROUP BY alert_type ORDER BY cnt DESC`)
	if err != nil {
		return st, err
	}
	st.EventTypes, err = s.typeCounts(ctx, `SELECT event_type, COUNT(*) AS cnt FROM recall_events GROUP BY event_type ORDER BY cnt DESC`)
	if err != nil {
		return st, err
	}
	return st, nil
}

func (s *SQLiteStore) typeCounts(ctx context.Context, query string) ([]TypeCount, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, unavailable("stats", err)
	}
	defer rows.Close()

	var out []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, unavailable("stats", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
