package sinks

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/ttone18/gpu-inspector/internal/alertengine"
)

// Fanout delivers one Dispatch to every configured sink. Each sink's
// failure is logged and swallowed — a webhook outage must never stall the
// inspection cycle that produced the dispatch, mirroring the original's
// per-call try/except around every requests.post.
type Fanout struct {
	Chat      *ChatSink
	Table     *TableSink
	EventLog  *EventLogSink
}

func NewFanout(chat *ChatSink, table *TableSink, eventLog *EventLogSink) *Fanout {
	return &Fanout{Chat: chat, Table: table, EventLog: eventLog}
}

// Deliver sends d to every sink, in the same order the original calls
// _send_feishu_alert, then _send_to_feishu_table, then write_to_mysql.
// Table sync is skipped for RESOLVED transitions, mirroring that the
// original never calls _send_to_feishu_table from handle_resolved_issue
// either. A DUPLICATE transition (debounce pre-check, §4.G) reaches only
// the chat sink: it is a low-cost repeat notice that by definition never
// touched the state store, so it must not reach the table sync or event
// log either.
func (f *Fanout) Deliver(ctx context.Context, d alertengine.Dispatch) {
	if f.Chat != nil {
		if err := f.Chat.Send(ctx, d); err != nil {
			log.Error().Err(err).Msg("chat sink delivery failed")
		}
	}
	if d.Transition == alertengine.TransitionDuplicate {
		return
	}
	if f.Table != nil && d.Transition != alertengine.TransitionResolved {
		if err := f.Table.Send(ctx, d); err != nil {
			log.Error().Err(err).Msg("table sink delivery failed")
		}
	}
	if f.EventLog != nil {
		if err := f.EventLog.Send(ctx, d); err != nil {
			log.Error().Err(err).Msg("event log sink delivery failed")
		}
	}
}
