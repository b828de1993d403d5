package alertengine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttone18/gpu-inspector/internal/models"
	"github.com/ttone18/gpu-inspector/internal/statestore"
)

func TestBuildDailySummaryEmptyIsExplicit(t *testing.T) {
	store, err := statestore.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	summary, err := BuildDailySummary(context.Background(), store, models.DefaultAlertMetadata)
	require.NoError(t, err)
	require.True(t, summary.Empty)
	require.Empty(t, summary.Hosts)
}

func TestBuildDailySummaryGroupsByHost(t *testing.T) {
	store, err := statestore.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var p3Type string
	for issueType, meta := range models.DefaultAlertMetadata {
		if meta.Priority == models.PriorityP3 {
			p3Type = issueType
			break
		}
	}
	require.NotEmpty(t, p3Type)

	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, models.IssueRecord{
		Host: "10.0.0.1", Hostname: "gpu-01", Type: p3Type, Extra: "low disk",
		Status: models.StatusReported, Priority: models.PriorityP3,
	}))
	require.NoError(t, store.Upsert(ctx, models.IssueRecord{
		Host: "10.0.0.2", Hostname: "gpu-02", Type: p3Type, Extra: "minor",
		Status: models.StatusReported, Priority: models.PriorityP3,
	}))

	summary, err := BuildDailySummary(ctx, store, models.DefaultAlertMetadata)
	require.NoError(t, err)
	require.False(t, summary.Empty)
	require.Len(t, summary.Hosts, 2)
}
