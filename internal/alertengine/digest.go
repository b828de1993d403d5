package alertengine

import (
	"context"
	"fmt"
	"sort"

	"github.com/ttone18/gpu-inspector/internal/models"
	"github.com/ttone18/gpu-inspector/internal/statestore"
)

// DigestHost groups one host's active P3 issues for the daily summary.
type DigestHost struct {
	Hostname string
	Issues   []models.IssueRecord
}

// Summary is the result of one daily P3 rollup.
type Summary struct {
	Hosts []DigestHost
	Empty bool
}

// BuildDailySummary queries every currently-active issue whose metadata
// marks it P3 and groups it by host, grounded in
// core/reporter.py's send_daily_p3_summary (query_active_issues_by_types
// against the P3 issue-types, not an in-memory accumulator — the state
// store is already durable, so there is nothing to buffer between cycles).
// A result with no active issues still returns a non-empty Summary with
// Empty=true so the caller can send an explicit heartbeat instead of
// silently skipping the digest.
func BuildDailySummary(ctx context.Context, store *statestore.Store, metadata map[string]models.AlertMeta) (Summary, error) {
	var p3Types []string
	for issueType, meta := range metadata {
		if meta.Priority == models.PriorityP3 {
			p3Types = append(p3Types, issueType)
		}
	}
	sort.Strings(p3Types)

	if len(p3Types) == 0 {
		return Summary{Empty: true}, nil
	}

	records, err := store.ActiveByTypes(ctx, p3Types)
	if err != nil {
		return Summary{}, fmt.Errorf("alertengine: build daily digest: %w", err)
	}
	if len(records) == 0 {
		return Summary{Empty: true}, nil
	}

	grouped := make(map[string][]models.IssueRecord)
	var order []string
	for _, rec := range records {
		host := rec.Hostname
		if host == "" {
			host = rec.Host
		}
		if _, ok := grouped[host]; !ok {
			order = append(order, host)
		}
		grouped[host] = append(grouped[host], rec)
	}

	summary := Summary{}
	for _, host := range order {
		summary.Hosts = append(summary.Hosts, DigestHost{Hostname: host, Issues: grouped[host]})
	}
	return summary, nil
}
