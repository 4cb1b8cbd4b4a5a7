package metrics

import (
	"errors"
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

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveBuild(time.Second, 1, 1, 0, nil)
		m.ObserveSearch(time.Millisecond, 3, nil)
		m.CacheHit()
		m.CacheMiss()
	})
	assert.NotNil(t, m.Handler())
}

func TestObserveBuild(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveBuild(250*time.Millisecond, 12, 340, 2, nil)
	m.ObserveBuild(0, 0, 0, 0, errors.New("cancelled"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.IndexDocuments))
	assert.Equal(t, 340.0, testutil.ToFloat64(m.IndexTerms))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DocumentsSkippedTotal))
}

func TestObserveSearch(t *testing.T) {
	m := New(nil)

	m.ObserveSearch(time.Millisecond, 5, nil)
	m.ObserveSearch(time.Millisecond, 0, nil)
	m.ObserveSearch(time.Millisecond, 0, errors.New("bad"))
	m.CacheHit()
	m.CacheMiss()
	m.CacheMiss()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(ResultHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(ResultEmpty)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveBuild(time.Second, 3, 9, 0, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "vsearch_index_documents 3")
	assert.Contains(t, string(body), `vsearch_index_builds_total{status="success"} 1`)
}
