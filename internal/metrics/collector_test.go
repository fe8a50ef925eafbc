package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorObserveEvaluation(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ObserveEvaluation("success", 2*time.Millisecond)
	c.ObserveEvaluation("success", 3*time.Millisecond)
	c.ObserveEvaluation("validation", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.evaluations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.evaluations.WithLabelValues("validation")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.evaluations.WithLabelValues("engine")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.duration))
}

func TestCollectorObserveSalvage(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ObserveSalvage("typed")
	c.ObserveSalvage("heuristic")
	c.ObserveSalvage("typed")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.salvages.WithLabelValues("typed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.salvages.WithLabelValues("heuristic")))
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector(nil)
	c.ObserveEvaluation("success", time.Millisecond)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `calculadora_evaluations_total{outcome="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
