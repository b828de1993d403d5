package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ttone18/gpu-inspector/internal/alertengine"
)

type tableRow struct {
	Host     string `json:"host"`
	Hostname string `json:"hostname"`
	Priority string `json:"priority"`
	Type     string `json:"type"`
	Extra    string `json:"extra"`
	Success  bool   `json:"success"`
	Time     string `json:"time"`
}

type tableResponse struct {
	Code int `json:"code"`
}

// TableSink mirrors dispatched failures to a tabular record-sync endpoint,
// grounded in _send_to_feishu_table. It is only invoked for NEW/CHANGED
// transitions — resolutions, duplicates, persisting issues and P3 failures
// (which the alert engine records without a dispatch) are never written
// here, matching the original's call site inside handle_failed_issue.
type TableSink struct {
	client *http.Client
	url    string
}

// NewTableSink builds a TableSink. An empty url makes Send a no-op,
// matching the original's "table_sync_webhook 未配置，跳过写入" behavior.
func NewTableSink(secure *SecureClient, url string) *TableSink {
	return &TableSink{client: secure.HTTPClient(TableSyncTimeout), url: url}
}

func (s *TableSink) Send(ctx context.Context, d alertengine.Dispatch) error {
	if s.url == "" {
		log.Debug().Msg("table sync webhook not configured, skipping")
		return nil
	}

	row := tableRow{
		Host:     d.Record.Host,
		Hostname: d.Record.Hostname,
		Priority: string(d.Meta.Priority),
		Type:     d.Record.Type,
		Extra:    d.Record.Extra,
		Success:  false,
		Time:     time.Now().Format("2006-01-02 15:04:05"),
	}
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("sinks: encode table row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sinks: build table sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", s.url).Msg("table sync request failed")
		return fmt.Errorf("sinks: table sync request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("table sync returned unexpected status")
		return fmt.Errorf("sinks: table sync returned status %d", resp.StatusCode)
	}

	var decoded tableResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err == nil && decoded.Code != 0 {
		log.Warn().Int("code", decoded.Code).Msg("table sync rejected the row")
		return fmt.Errorf("sinks: table sync rejected row with code %d", decoded.Code)
	}

	log.Info().Str("hostname", row.Hostname).Str("type", row.Type).Msg("row synced to table")
	return nil
}
