package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertedCounts(t *testing.T) {
	m := New()
	m.Upserted(3, 1)
	m.Upserted(0, 2)
	m.BatchFailed("invalid")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.UpsertRecords.WithLabelValues("saved")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.UpsertRecords.WithLabelValues("ignored")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpsertBatches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpsertBatches.WithLabelValues("invalid")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Upserted(1, 1)
	m.Listed(2)
	m.BatchFailed("error")
	m.Request("GET", "/x", 200, time.Now())
	m.ObserveStore("list")()
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.Listed(4)
	m.Request("GET", "/api/attempts", 200, time.Now())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "dsat_listed_records_total 4"))
	assert.True(t, strings.Contains(body, `dsat_http_request_duration_seconds_count{code="200",method="GET",route="/api/attempts"} 1`))
}
