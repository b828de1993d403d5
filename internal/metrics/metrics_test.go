package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	handler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewRegistersBuildInfo(t *testing.T) {
	m := New("v1.2.3")
	require.NotNil(t, m)

	body := scrape(t, m)
	require.Contains(t, body, `gpu_inspector_build_info{version="v1.2.3"} 1`)
}

func TestRecordersAreNilSafe(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordCycle("gpu")
		m.RecordNodeOutcome("gpu", "ok")
		m.RecordProbe("gpu_temp", true, time.Millisecond)
		m.RecordSSHDialFailure("timeout")
		m.RecordDispatch("P0", "new")
		m.RecordSuppressed("debounced")
		m.SetActiveIssues(3)
		m.Shutdown(context.Background())
	})
}

func TestRecordersUpdateCollectors(t *testing.T) {
	m := New("test")
	m.RecordCycle("gpu")
	m.RecordProbe("gpu_temp", true, 10*time.Millisecond)
	m.RecordSSHDialFailure("timeout")
	m.RecordDispatch("P0", "new")
	m.SetActiveIssues(2)

	body := scrape(t, m)
	require.Contains(t, body, `gpu_inspector_cycles_total{class="gpu"} 1`)
	require.Contains(t, body, `gpu_inspector_probe_runs_total{probe="gpu_temp",result="success"} 1`)
	require.Contains(t, body, `gpu_inspector_ssh_dial_failures_total{reason="timeout"} 1`)
	require.Contains(t, body, `gpu_inspector_alerts_dispatched_total{priority="P0",transition="new"} 1`)
	require.Contains(t, body, `gpu_inspector_active_issues 2`)
}

func TestStartDisabledIsNoop(t *testing.T) {
	m := New("test")
	require.NoError(t, m.Start(""))
	require.Nil(t, m.server)
	require.NoError(t, m.Start("disabled"))
	require.Nil(t, m.server)
}

func TestStartAndShutdownServesMetrics(t *testing.T) {
	m := New("test")
	require.NoError(t, m.Start("127.0.0.1:0"))
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	require.NotNil(t, m.server)
}
