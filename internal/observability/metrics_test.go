package observability

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.FormatErrors.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.FormatErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FormatErrors))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetricsForTesting()
	m.EntriesWritten.WithLabelValues("raids").Set(12)
	m.RunsTotal.WithLabelValues(OutcomeSuccess).Inc()

	path := filepath.Join(t.TempDir(), "eventcal.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `eventcal_calendar_entries{calendar="raids"} 12`)
	assert.Contains(t, text, `eventcal_runs_total{outcome="success"} 1`)
}

func TestHandler(t *testing.T) {
	m := NewMetricsForTesting()
	m.EventsFetched.Set(42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "eventcal_events_fetched 42"))
}
