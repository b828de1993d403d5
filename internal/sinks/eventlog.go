package sinks

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ttone18/gpu-inspector/internal/alertengine"
	"github.com/ttone18/gpu-inspector/internal/models"
	"github.com/ttone18/gpu-inspector/internal/statestore"
)

// EventLogSink mirrors dispatched reported/resolved transitions into the
// optional external MySQL event log, grounded in database.write_to_mysql's
// call sites inside handle_failed_issue/handle_resolved_issue. Only
// transitions that the alert engine dispatches reach it: P3 failures, which
// the engine records without a dispatch, are not written. A resolved
// transition's Extra is overwritten with a fixed marker the same way the
// original stamps recovery_event["extra"] = "ISSUE RESOLVED".
type EventLogSink struct {
	log *statestore.EventLog
}

// NewEventLogSink wraps an already-open EventLog. log may be nil when no
// external MySQL mirror is configured; Send becomes a no-op in that case.
func NewEventLogSink(eventLog *statestore.EventLog) *EventLogSink {
	return &EventLogSink{log: eventLog}
}

func (s *EventLogSink) Send(ctx context.Context, d alertengine.Dispatch) error {
	if s.log == nil {
		return nil
	}

	detail := d.Record.Extra
	if d.Transition == alertengine.TransitionResolved {
		detail = "ISSUE RESOLVED"
	}

	entry := models.EventLogEntry{
		Host:      d.Record.Host,
		Hostname:  d.Record.Hostname,
		Type:      d.Record.Type,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
	if err := s.log.Append(ctx, entry); err != nil {
		log.Warn().Err(err).Str("host", entry.Host).Str("type", entry.Type).Msg("event log append failed, continuing")
		return err
	}
	return nil
}
