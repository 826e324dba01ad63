package tpex

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockdaily/internal/httpx"
	"stockdaily/internal/provider"
	"stockdaily/internal/quote"
)

const st43OK = `{
  "stkNo": "5410",
  "stkName": "國眾",
  "reportDate": "113/01",
  "iTotalRecords": 2,
  "aaData": [
    ["113/01/02","1,204","33,926","28.20","28.30","28.00","28.10","-0.10","512"],
    ["113/01/03","980","27,342","28.10","28.15","27.80","27.90",-0.2,"433"]
  ]
}`

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL + "/st43_result.php"}, httpx.New(2*time.Second))
}

func TestFetch_ParsesAAData(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/st43_result.php", r.URL.Path)
		require.Equal(t, "zh-tw", r.URL.Query().Get("l"))
		require.Equal(t, "113/01", r.URL.Query().Get("d"))
		require.Equal(t, "5410", r.URL.Query().Get("stkno"))
		require.Equal(t, httpx.DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(st43OK))
	})

	rows, err := p.Fetch(t.Context(), "5410", "20240105")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rec, err := quote.Normalize(rows)
	require.NoError(t, err)
	require.Equal(t, "113/01/03", rec.Date)
	require.Equal(t, int64(980), rec.Volume)
	require.Equal(t, int64(27342), rec.Turnover)
	require.Equal(t, "27.9", rec.Close.String())
	require.Equal(t, "-0.2", rec.Change)
	require.Equal(t, int64(433), rec.Transactions)
}

func TestFetch_HTMLMeansUnavailable(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>系統維護中</body></html>"))
	})

	_, err := p.Fetch(t.Context(), "5410", "20240105")
	require.ErrorIs(t, err, provider.ErrUnavailable)

	var rerr *provider.RetrievalError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, DefaultName, rerr.Provider)
}

func TestFetch_EmptyAAData(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"stkNo":"6186","aaData":[]}`))
	})

	_, err := p.Fetch(t.Context(), "6186", "20240105")
	require.ErrorIs(t, err, provider.ErrNoData)
}

func TestFetch_Non2xx(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	})

	_, err := p.Fetch(t.Context(), "5410", "20240105")
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
	require.NotErrorIs(t, err, provider.ErrNoData)
}

func TestFetch_MalformedJSON(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"aaData": [[`))
	})

	_, err := p.Fetch(t.Context(), "5410", "20240105")
	require.Error(t, err)
	require.NotErrorIs(t, err, provider.ErrUnavailable)
}

func TestFetch_InvalidTradeDate(t *testing.T) {
	called := false
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := p.Fetch(t.Context(), "5410", "2024/01/05")
	require.Error(t, err)
	require.False(t, called)
}
