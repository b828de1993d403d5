// Package statestore persists the current_status table (durable per
// host+type issue state) locally in SQLite, and optionally mirrors every
// reported/resolved transition to an external MySQL event log. Grounded in
// core/database.py's init_sqlite/upsert_sqlite_record/update_issue_status/
// query_active_issues_by_types.
package statestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/ttone18/gpu-inspector/internal/models"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS current_status (
	host TEXT NOT NULL,
	hostname TEXT,
	type TEXT NOT NULL,
	extra TEXT,
	status TEXT NOT NULL,
	priority TEXT,
	first_seen TEXT NOT NULL,
	last_update TEXT NOT NULL,
	PRIMARY KEY (host, type)
)`

// Store is the local durable issue-status table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statestore: open %s: %w", path, err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("statestore: ensure schema: %w", err)
	}
	log.Info().Str("path", path).Msg("initialized local state store")
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the current record for (host, issueType), or (zero, false) if
// none exists.
func (s *Store) Get(ctx context.Context, host, issueType string) (models.IssueRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT host, hostname, type, extra, status, priority, first_seen, last_update
		 FROM current_status WHERE host = ? AND type = ?`, host, issueType)

	var rec models.IssueRecord
	var firstSeen, lastUpdate string
	err := row.Scan(&rec.Host, &rec.Hostname, &rec.Type, &rec.Extra, &rec.Status, &rec.Priority, &firstSeen, &lastUpdate)
	if err == sql.ErrNoRows {
		return models.IssueRecord{}, false, nil
	}
	if err != nil {
		return models.IssueRecord{}, false, fmt.Errorf("statestore: get %s/%s: %w", host, issueType, err)
	}
	rec.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)
	rec.LastUpdate, _ = time.Parse(time.RFC3339, lastUpdate)
	return rec, true, nil
}

// Upsert inserts or updates a record. firstSeen is preserved across updates;
// callers should pass the existing record's FirstSeen when updating.
func (s *Store) Upsert(ctx context.Context, rec models.IssueRecord) error {
	if rec.Host == "" || rec.Type == "" {
		return fmt.Errorf("statestore: upsert requires host and type")
	}
	now := time.Now().UTC()
	if rec.FirstSeen.IsZero() {
		rec.FirstSeen = now
	}
	rec.LastUpdate = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO current_status (host, hostname, type, extra, status, priority, first_seen, last_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(host, type) DO UPDATE SET
			hostname=excluded.hostname,
			extra=excluded.extra,
			status=excluded.status,
			priority=excluded.priority,
			last_update=excluded.last_update`,
		rec.Host, rec.Hostname, rec.Type, rec.Extra, string(rec.Status), string(rec.Priority),
		rec.FirstSeen.Format(time.RFC3339), rec.LastUpdate.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("statestore: upsert %s/%s: %w", rec.Host, rec.Type, err)
	}
	return nil
}

// MarkResolved transitions a record to resolved if it isn't already.
func (s *Store) MarkResolved(ctx context.Context, host, issueType string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE current_status SET status = ?, last_update = ? WHERE host = ? AND type = ? AND status != ?`,
		string(models.StatusResolved), time.Now().UTC().Format(time.RFC3339), host, issueType, string(models.StatusResolved))
	if err != nil {
		return fmt.Errorf("statestore: mark resolved %s/%s: %w", host, issueType, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Info().Str("host", host).Str("type", issueType).Msg("issue resolved")
	}
	return nil
}

// ActiveCount returns the number of currently unresolved issue records.
func (s *Store) ActiveCount(ctx context.Context) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM current_status WHERE status != ?`, string(models.StatusResolved))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("statestore: count active issues: %w", err)
	}
	return n, nil
}

// ActiveByTypes returns every non-resolved record whose type is in types.
func (s *Store) ActiveByTypes(ctx context.Context, types []string) ([]models.IssueRecord, error) {
	if len(types) == 0 {
		return nil, nil
	}
	placeholders := make([]any, len(types))
	query := `SELECT host, hostname, type, extra, status, priority, first_seen, last_update FROM current_status WHERE status != ? AND type IN (`
	args := []any{string(models.StatusResolved)}
	for i, t := range types {
		if i > 0 {
			query += ","
		}
		query += "?"
		placeholders[i] = t
	}
	query += ")"
	args = append(args, placeholders...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("statestore: query active by types: %w", err)
	}
	defer rows.Close()

	var out []models.IssueRecord
	for rows.Next() {
		var rec models.IssueRecord
		var firstSeen, lastUpdate string
		if err := rows.Scan(&rec.Host, &rec.Hostname, &rec.Type, &rec.Extra, &rec.Status, &rec.Priority, &firstSeen, &lastUpdate); err != nil {
			return nil, fmt.Errorf("statestore: scan active row: %w", err)
		}
		rec.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)
		rec.LastUpdate, _ = time.Parse(time.RFC3339, lastUpdate)
		out = append(out, rec)
	}
	return out, rows.Err()
}
