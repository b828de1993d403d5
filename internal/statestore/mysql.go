package statestore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/ttone18/gpu-inspector/internal/models"
)

const createEventLogSQL = `
CREATE TABLE IF NOT EXISTS events_alarms (
	id VARCHAR(36) NOT NULL PRIMARY KEY,
	host VARCHAR(255) NOT NULL,
	hostname VARCHAR(255),
	type VARCHAR(255) NOT NULL,
	detail TEXT,
	created_at DATETIME NOT NULL,
	INDEX idx_host_type (host, type)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// EventLog is the optional external append-only mirror of reported/resolved
// transitions, written over MySQL via sqlx. Entirely optional: when DSN is
// empty the caller never constructs one, and every write elsewhere in the
// pipeline must not depend on it succeeding.
type EventLog struct {
	db *sqlx.DB
}

// OpenEventLog connects to dsn and ensures the events_alarms table exists.
func OpenEventLog(dsn string) (*EventLog, error) {
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("statestore: connect mysql: %w", err)
	}
	if _, err := db.Exec(createEventLogSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("statestore: ensure event log schema: %w", err)
	}
	log.Info().Msg("connected to external MySQL event log")
	return &EventLog{db: db}, nil
}

// Close releases the underlying connection pool.
func (e *EventLog) Close() error { return e.db.Close() }

// Append writes one transition to the event log. Failures are logged and
// swallowed by the caller (sinks.EventLogSink), never propagated into the
// alert engine's control flow.
func (e *EventLog) Append(ctx context.Context, entry models.EventLogEntry) error {
	_, err := e.db.ExecContext(ctx,
		`INSERT INTO events_alarms (id, host, hostname, type, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), entry.Host, entry.Hostname, entry.Type, entry.Detail, entry.Timestamp.UTC().Format(time.DateTime))
	if err != nil {
		return fmt.Errorf("statestore: append event log entry: %w", err)
	}
	return nil
}
