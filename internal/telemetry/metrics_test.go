package telemetry

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveJobNilRegistry(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveJob(time.Second, 100, nil, "")
	})
}

func TestHandlerServesHealthAndMetrics(t *testing.T) {
	r := NewRegistry()
	r.JobsStarted.Inc()
	r.ObserveJob(250*time.Millisecond, 1000, nil, "")
	r.ObserveJob(100*time.Millisecond, 500, errors.New("boom"), "simulation")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	resp2, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	raw, err := io.ReadAll(resp2.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "backrun_jobs_started_total 1")
	assert.Contains(t, body, "backrun_jobs_completed_total 1")
	assert.Contains(t, body, `backrun_jobs_failed_total{reason="simulation"} 1`)
	assert.Contains(t, body, "backrun_bars_processed_total 1500")
}
