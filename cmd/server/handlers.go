package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"stockdaily/internal/aggregate"
	"stockdaily/internal/metrics"
	"stockdaily/internal/store"
	"stockdaily/internal/tradedate"
)

type historyResponse struct {
	Dates []string `json:"dates"`
}

type snapshotResponse struct {
	Date   string            `json:"date"`
	Stocks []aggregate.Entry `json:"stocks"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type api struct {
	archive *store.Archive
	log     zerolog.Logger
}

// newHandler routes the read API. /metrics is mounted beside the JSON chain
// because promhttp negotiates its own encoding and content type.
func newHandler(archive *store.Archive, m *metrics.HTTP, log zerolog.Logger, timeout time.Duration) http.Handler {
	a := &api{archive: archive, log: log}

	api := http.NewServeMux()
	api.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	api.Handle("GET /api/latest", m.Middleware("latest", http.HandlerFunc(a.latest)))
	api.Handle("GET /api/history", m.Middleware("history", http.HandlerFunc(a.history)))
	api.Handle("GET /api/snapshots/{date}", m.Middleware("snapshot", http.HandlerFunc(a.snapshot)))

	root := http.NewServeMux()
	root.Handle("GET /metrics", m.Handler())
	root.Handle("/", withCORS(withGzip(recoverPanic(log, withTimeout(timeout, api)))))
	return root
}

// latest serves latest.json, optionally narrowed to ?code=.
func (a *api) latest(w http.ResponseWriter, r *http.Request) {
	l, err := a.archive.Latest(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	if code := r.URL.Query().Get("code"); code != "" {
		stocks := make([]aggregate.Entry, 0, 1)
		for _, e := range l.Stocks {
			if e.Code == code {
				stocks = append(stocks, e)
			}
		}
		l.Stocks = stocks
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *api) history(w http.ResponseWriter, r *http.Request) {
	dates, err := a.archive.History(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Dates: dates})
}

func (a *api) snapshot(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if err := tradedate.Validate(date); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	entries, err := a.archive.Snapshot(r.Context(), date)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Date: date, Stocks: entries})
}

func (a *api) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	a.log.Error().Err(err).Msg("read artifact")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
