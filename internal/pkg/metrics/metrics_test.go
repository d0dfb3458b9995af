package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Observe(t *testing.T) {
	r := NewRegistry()

	r.ObserveCompute(2*time.Millisecond, false)
	r.ObserveCompute(time.Millisecond, true)
	r.ObserveCache(CacheHit)
	r.ObserveCache(CacheMiss)
	r.ObserveCache(CacheMiss)
	r.ObserveReport("api")
	r.ObserveAlert("sent")
	r.ObserveLineSnapshot()
	r.ObserveRateLimited()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.LineSnapshots))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RateLimited))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.DegenerateMarkets))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheRequests.WithLabelValues(CacheHit)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheRequests.WithLabelValues(CacheMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Reports.WithLabelValues("api")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Alerts.WithLabelValues("sent")))

	mfs, err := r.Gatherer().Gather()
	require.NoError(t, err)
	var samples uint64
	for _, mf := range mfs {
		if mf.GetName() == "linecalc_compute_duration_seconds" {
			samples = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(2), samples)
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveCompute(time.Millisecond, true)
		r.ObserveCache(CacheHit)
		r.ObserveReport("api")
		r.ObserveAlert("sent")
		r.ObserveLineSnapshot()
		r.ObserveRateLimited()
	})
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.ObserveReport("cli")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `linecalc_reports_total{source="cli"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
