package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so lexical order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serializes writers; every multi-statement operation runs
	// in a single transaction on it.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS core_memory (
		user_id             TEXT PRIMARY KEY,
		relationship_state  TEXT NOT NULL DEFAULT 'stranger',
		trust_score         INTEGER NOT NULL DEFAULT 0 CHECK (trust_score BETWEEN 0 AND 100),
		active_goals        TEXT NOT NULL DEFAULT '[]',
		price_min           REAL,
		price_max           REAL,
		favorite_categories TEXT NOT NULL DEFAULT '[]',
		idiosyncrasies      TEXT NOT NULL DEFAULT '[]',
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS recall_events (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		event_type  TEXT NOT NULL,
		event_data  TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_recall_user_time ON recall_events(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS archival_records (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		content     TEXT NOT NULL,
		category    TEXT,
		importance  INTEGER NOT NULL DEFAULT 5 CHECK (importance BETWEEN 1 AND 10),
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_archival_user_category ON archival_records(user_id, category);
	CREATE INDEX IF NOT EXISTS idx_archival_user_importance ON archival_records(user_id, importance DESC);

	CREATE TABLE IF NOT EXISTS maturity (
		user_id           TEXT PRIMARY KEY,
		current_level     TEXT NOT NULL DEFAULT 'tool',
		interaction_count INTEGER NOT NULL DEFAULT 0 CHECK (interaction_count >= 0),
		last_level_change TEXT NOT NULL,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS watch_items (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		url           TEXT NOT NULL,
		title         TEXT NOT NULL,
		current_price REAL NOT NULL CHECK (current_price > 0),
		target_price  REAL CHECK (target_price IS NULL OR target_price > 0),
		source        TEXT,
		image_url     TEXT,
		is_active     INTEGER NOT NULL DEFAULT 1,
		last_checked  TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_watch_user_active ON watch_items(user_id, is_active);
	CREATE INDEX IF NOT EXISTS idx_watch_user_created ON watch_items(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS price_samples (
		id             TEXT PRIMARY KEY,
		watch_item_id  TEXT NOT NULL REFERENCES watch_items(id),
		price          REAL NOT NULL,
		created_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_samples_item_time ON price_samples(watch_item_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS alerts (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL,
		watch_item_id     TEXT NOT NULL REFERENCES watch_items(id),
		alert_type        TEXT NOT NULL,
		old_price         REAL,
		new_price         REAL NOT NULL,
		reasoning         TEXT NOT NULL DEFAULT '',
		requires_approval INTEGER NOT NULL DEFAULT 0,
		user_response     TEXT NOT NULL DEFAULT 'pending',
		created_at        TEXT NOT NULL,
		responded_at      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_user_response ON alerts(user_id, user_response);
	CREATE INDEX IF NOT EXISTS idx_alerts_user_created ON alerts(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS delegations (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		watch_item_id TEXT NOT NULL REFERENCES watch_items(id),
		condition     TEXT NOT NULL,
		action        TEXT NOT NULL,
		is_active     INTEGER NOT NULL DEFAULT 1,
		created_at    TEXT NOT NULL,
		executed_at   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_delegations_user_active ON delegations(user_id, is_active);

	CREATE TABLE IF NOT EXISTS budgets (
		user_id          TEXT NOT NULL,
		month            TEXT NOT NULL,
		monthly_budget   REAL NOT NULL CHECK (monthly_budget > 0),
		current_spending REAL NOT NULL DEFAULT 0 CHECK (current_spending >= 0),
		alert_threshold  REAL NOT NULL DEFAULT 0.8 CHECK (alert_threshold > 0 AND alert_threshold <= 1),
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL,
		PRIMARY KEY (user_id, month)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction. fn is expected to classify its own
// errors; begin and commit failures are reported as unavailability.
func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable(op, err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func encodeStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeStrings(s string) []string {
	out := []string{}
	if s != "" {
		json.Unmarshal([]byte(s), &out)
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
