// Package sqlstore keeps the knowledge base and request logs in SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/knowledge"
)

// Store implements knowledge.IssueStore and knowledge.EntityStore over SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ knowledge.IssueStore  = (*Store)(nil)
	_ knowledge.EntityStore = (*Store)(nil)
)

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlstore: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS car_issues (
	id        TEXT PRIMARY KEY,
	brand     TEXT NOT NULL,
	model     TEXT NOT NULL,
	brand_key TEXT NOT NULL,
	model_key TEXT NOT NULL,
	problem   TEXT NOT NULL,
	solution  TEXT NOT NULL,
	keywords  TEXT NOT NULL DEFAULT '',
	seq       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_car_issues_vehicle ON car_issues(brand_key, model_key);

CREATE TABLE IF NOT EXISTS maintenance_centers (
	id        INTEGER PRIMARY KEY,
	name      TEXT NOT NULL,
	latitude  REAL NOT NULL,
	longitude REAL NOT NULL,
	phone     TEXT NOT NULL DEFAULT '',
	address   TEXT NOT NULL DEFAULT '',
	rating    REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS car_owners (
	id              INTEGER PRIMARY KEY,
	name            TEXT NOT NULL,
	personal_number TEXT NOT NULL DEFAULT '',
	latitude        REAL NOT NULL,
	longitude       REAL NOT NULL,
	address         TEXT NOT NULL DEFAULT '',
	rating          REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS user_queries (
	id         TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	brand      TEXT NOT NULL DEFAULT '',
	model      TEXT NOT NULL DEFAULT '',
	language   TEXT NOT NULL DEFAULT '',
	response   TEXT NOT NULL DEFAULT '',
	results    INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_queries_time ON user_queries(created_at);

CREATE TABLE IF NOT EXISTS call_history (
	id            TEXT PRIMARY KEY,
	caller_number TEXT NOT NULL,
	owner_id      INTEGER NOT NULL,
	created_at    DATETIME NOT NULL
);
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// FindByBrandModel returns matching issues in insertion order; empty filters
// match all.
func (s *Store) FindByBrandModel(ctx context.Context, brand, model string) ([]domain.IssueRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, brand, model, problem, solution, keywords FROM car_issues
		 WHERE (? = '' OR brand_key = ?) AND (? = '' OR model_key = ?)
		 ORDER BY seq, id`,
		key(brand), key(brand), key(model), key(model),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: find issues: %w", err)
	}
	defer rows.Close()

	out := []domain.IssueRecord{}
	for rows.Next() {
		var rec domain.IssueRecord
		var kws string
		if err := rows.Scan(&rec.ID, &rec.Brand, &rec.Model, &rec.Problem, &rec.Solution, &kws); err != nil {
			return nil, fmt.Errorf("sqlstore: scan issue: %w", err)
		}
		rec.Keywords = splitKeywords(kws)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Entities lists centers (maintenance_centers) or tow operators (car_owners).
func (s *Store) Entities(ctx context.Context, kind domain.EntityKind) ([]domain.LocatedEntity, error) {
	var query string
	switch kind {
	case domain.KindCenter:
		query = `SELECT id, name, latitude, longitude, phone, address, rating FROM maintenance_centers ORDER BY id`
	case domain.KindTowOperator:
		query = `SELECT id, name, latitude, longitude, personal_number, address, rating FROM car_owners ORDER BY id`
	default:
		return nil, fmt.Errorf("sqlstore: unknown entity kind %q", kind)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list %s: %w", kind, err)
	}
	defer rows.Close()

	out := []domain.LocatedEntity{}
	for rows.Next() {
		e := domain.LocatedEntity{Kind: kind}
		if err := rows.Scan(&e.ID, &e.Name, &e.Latitude, &e.Longitude, &e.Phone, &e.Address, &e.Rating); err != nil {
			return nil, fmt.Errorf("sqlstore: scan %s: %w", kind, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ImportStats counts rows written by Import.
type ImportStats struct {
	Issues       int
	Centers      int
	TowOperators int
}

// Import upserts every record of c in one transaction.
func (s *Store) Import(ctx context.Context, c *knowledge.Catalog) (ImportStats, error) {
	var st ImportStats
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return st, fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range c.Issues {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO car_issues (id, brand, model, brand_key, model_key, problem, solution, keywords, seq)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM car_issues))
			 ON CONFLICT(id) DO UPDATE SET
			   brand = excluded.brand, model = excluded.model,
			   brand_key = excluded.brand_key, model_key = excluded.model_key,
			   problem = excluded.problem, solution = excluded.solution, keywords = excluded.keywords`,
			rec.ID, rec.Brand, rec.Model, key(rec.Brand), key(rec.Model), rec.Problem, rec.Solution,
			strings.Join(rec.Keywords, ", "),
		); err != nil {
			return st, fmt.Errorf("sqlstore: import issue %s: %w", rec.ID, err)
		}
		st.Issues++
	}
	for _, e := range c.Centers {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO maintenance_centers (id, name, latitude, longitude, phone, address, rating)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Name, e.Latitude, e.Longitude, e.Phone, e.Address, e.Rating,
		); err != nil {
			return st, fmt.Errorf("sqlstore: import center %d: %w", e.ID, err)
		}
		st.Centers++
	}
	for _, e := range c.TowOperators {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO car_owners (id, name, personal_number, latitude, longitude, address, rating)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Name, e.Phone, e.Latitude, e.Longitude, e.Address, e.Rating,
		); err != nil {
			return st, fmt.Errorf("sqlstore: import tow operator %d: %w", e.ID, err)
		}
		st.TowOperators++
	}

	if err := tx.Commit(); err != nil {
		return st, fmt.Errorf("sqlstore: commit: %w", err)
	}
	s.logger.Info("sqlstore imported catalog", "issues", st.Issues, "centers", st.Centers, "tow_operators", st.TowOperators)
	return st, nil
}

// LogQuery stores a query log. Logs with an id already stored are ignored,
// so redelivered events are harmless.
func (s *Store) LogQuery(ctx context.Context, l domain.QueryLog) error {
	if l.ID == "" {
		return errors.New("sqlstore: query log without id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_queries (id, query, brand, model, language, response, results, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Query, l.Brand, l.Model, string(l.Language), l.Response, l.Results, at(l.At),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: log query: %w", err)
	}
	return nil
}

// LogCall stores a call log, ignoring duplicates like LogQuery.
func (s *Store) LogCall(ctx context.Context, l domain.CallLog) error {
	if l.ID == "" {
		return errors.New("sqlstore: call log without id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO call_history (id, caller_number, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		l.ID, l.CallerNumber, l.OwnerID, at(l.At),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: log call: %w", err)
	}
	return nil
}

// RecentQueries returns up to limit query logs, newest first.
func (s *Store) RecentQueries(ctx context.Context, limit int) ([]domain.QueryLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, brand, model, language, response, results, created_at
		 FROM user_queries ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: recent queries: %w", err)
	}
	defer rows.Close()

	out := []domain.QueryLog{}
	for rows.Next() {
		var l domain.QueryLog
		var lang string
		if err := rows.Scan(&l.ID, &l.Query, &l.Brand, &l.Model, &lang, &l.Response, &l.Results, &l.At); err != nil {
			return nil, fmt.Errorf("sqlstore: scan query log: %w", err)
		}
		l.Language = domain.Language(lang)
		out = append(out, l)
	}
	return out, rows.Err()
}

func key(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func at(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func splitKeywords(s string) []string {
	out := []string{}
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
