package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"warehouse-channel-sync/internal/domain"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findFamily(t *testing.T, m *SyncMetrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, l := range metric.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestSyncMetrics_PageCommitted(t *testing.T) {
	m := NewSyncMetrics("test", false)

	m.PageCommitted(domain.EntityOrders, 50)
	m.PageCommitted(domain.EntityOrders, 20)
	m.PageCommitted(domain.EntityProducts, 5)

	pages := findFamily(t, m, "test_sync_pages_total")
	require.NotNil(t, pages)
	records := findFamily(t, m, "test_sync_records_total")
	require.NotNil(t, records)

	for _, metric := range records.GetMetric() {
		switch labelValue(metric, "kind") {
		case "orders":
			assert.Equal(t, float64(70), metric.GetCounter().GetValue())
		case "products":
			assert.Equal(t, float64(5), metric.GetCounter().GetValue())
		}
	}
	for _, metric := range pages.GetMetric() {
		if labelValue(metric, "kind") == "orders" {
			assert.Equal(t, float64(2), metric.GetCounter().GetValue())
		}
	}
}

func TestSyncMetrics_RunFinished(t *testing.T) {
	m := NewSyncMetrics("test", false)

	m.RunFinished(domain.EntityOrders, domain.SyncDone, 2*time.Second)
	m.RunFinished(domain.EntityOrders, domain.SyncError, time.Second)
	m.RunFinished(domain.EntityOrders, domain.SyncDone, time.Second)

	runs := findFamily(t, m, "test_sync_runs_total")
	require.NotNil(t, runs)
	assert.Len(t, runs.GetMetric(), 2)
	for _, metric := range runs.GetMetric() {
		switch labelValue(metric, "outcome") {
		case string(domain.SyncDone):
			assert.Equal(t, float64(2), metric.GetCounter().GetValue())
		case string(domain.SyncError):
			assert.Equal(t, float64(1), metric.GetCounter().GetValue())
		default:
			t.Fatalf("unexpected outcome label %q", labelValue(metric, "outcome"))
		}
	}

	duration := findFamily(t, m, "test_sync_run_duration_seconds")
	require.NotNil(t, duration)
	require.Len(t, duration.GetMetric(), 1)
	assert.Equal(t, uint64(3), duration.GetMetric()[0].GetHistogram().GetSampleCount())
	assert.InDelta(t, 4.0, duration.GetMetric()[0].GetHistogram().GetSampleSum(), 0.001)
}

func TestSyncMetrics_ConflictsDetected(t *testing.T) {
	m := NewSyncMetrics("test", false)

	m.ConflictsDetected(0)
	m.ConflictsDetected(2)

	conflicts := findFamily(t, m, "test_sync_conflict_warnings_total")
	require.NotNil(t, conflicts)
	assert.Equal(t, float64(2), conflicts.GetMetric()[0].GetCounter().GetValue())
}

func TestSyncMetrics_Handler(t *testing.T) {
	m := NewSyncMetrics("test", true)
	m.PageCommitted(domain.EntityProducts, 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_sync_records_total{kind="products"} 3`)
	assert.Contains(t, string(body), "go_goroutines")
}
