package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"stockdaily/internal/aggregate"
	"stockdaily/internal/store"
	"stockdaily/internal/watchlist"
)

func TestRun_ObserveResult(t *testing.T) {
	r := NewRun()
	r.ObserveResult(aggregate.Result{
		Entries: []aggregate.Entry{
			{Code: "1229", Market: watchlist.TSE},
			{Code: "2324", Market: watchlist.TSE},
			{Code: "5410", Market: watchlist.OTC},
		},
		Skipped: []aggregate.Skip{
			{Entry: watchlist.Entry{Code: "6186", Market: watchlist.OTC}, Reason: aggregate.ReasonUnavailable},
		},
	})

	require.Equal(t, 2.0, testutil.ToFloat64(r.Fetched.WithLabelValues("tse")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.Fetched.WithLabelValues("otc")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.Skipped.WithLabelValues("otc", aggregate.ReasonUnavailable)))
}

func TestRun_ObservePersist(t *testing.T) {
	r := NewRun()
	now := time.Unix(1704441600, 0)

	r.ObservePersist(&store.PersistenceError{Step: store.StepLatest, Err: errors.New("disk full")}, now)
	require.Equal(t, 1.0, testutil.ToFloat64(r.PersistFailures.WithLabelValues("latest")))
	require.Equal(t, 0.0, testutil.ToFloat64(r.LastSuccess))

	r.ObservePersist(nil, now)
	require.Equal(t, float64(now.Unix()), testutil.ToFloat64(r.LastSuccess))
}

func TestRun_WriteTextfile(t *testing.T) {
	r := NewRun()
	r.ObserveDuration(1500 * time.Millisecond)
	path := filepath.Join(t.TempDir(), "stockdaily.prom")

	require.NoError(t, r.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "stockdaily_run_duration_seconds 1.5")
}

func TestHTTP_MiddlewareAndHandler(t *testing.T) {
	h := NewHTTP()
	wrapped := h.Middleware("latest", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/latest", nil))
	require.Equal(t, 1.0, testutil.ToFloat64(h.Requests.WithLabelValues("latest", "404")))

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `stockdaily_http_requests_total{route="latest",status="404"} 1`))
}
