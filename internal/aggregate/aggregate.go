// Package aggregate assembles the per-security snapshot of one trade date.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stockdaily/internal/provider"
	"stockdaily/internal/quote"
	"stockdaily/internal/tradedate"
	"stockdaily/internal/watchlist"
)

// ErrDateMismatch rejects a row whose date is not the requested trade date.
var ErrDateMismatch = errors.New("latest row is not the trade date")

// Fetcher returns the upstream rows of code on market for tradeDate.
type Fetcher interface {
	FetchRows(ctx context.Context, code string, market watchlist.Market, tradeDate string) ([]quote.Row, error)
}

// Entry is one security in a snapshot: the normalized record, the derived
// limits and the watch-list metadata.
type Entry struct {
	Code   string           `json:"code"`
	Name   string           `json:"name"`
	Market watchlist.Market `json:"market"`
	quote.Record
	quote.Limits
	FetchedAt time.Time `json:"fetchedAt"`
}

// Skip records why a watch-list entry contributed nothing.
type Skip struct {
	Entry  watchlist.Entry
	Reason string
	Err    error
}

// Result is the outcome of one pass over the watch-list.
type Result struct {
	Entries []Entry
	Skipped []Skip
}

// Skip reasons.
const (
	ReasonNoData        = "no_data"
	ReasonUnavailable   = "unavailable"
	ReasonRetrieval     = "retrieval"
	ReasonNormalization = "normalization"
	ReasonDateMismatch  = "date_mismatch"
)

// Reason classifies a per-entry failure.
func Reason(err error) string {
	var nerr *quote.NormalizationError
	switch {
	case errors.Is(err, provider.ErrNoData), errors.Is(err, quote.ErrNoRows):
		return ReasonNoData
	case errors.Is(err, provider.ErrUnavailable):
		return ReasonUnavailable
	case errors.Is(err, ErrDateMismatch):
		return ReasonDateMismatch
	case errors.As(err, &nerr):
		return ReasonNormalization
	default:
		return ReasonRetrieval
	}
}

// Assembler walks a watch-list sequentially. Spacing between upstream calls
// is the Fetcher's concern.
type Assembler struct {
	Fetcher Fetcher
	// StrictDate drops securities whose latest upstream row is not tradeDate.
	StrictDate bool
	Now        func() time.Time
	Log        zerolog.Logger
}

func New(f Fetcher, log zerolog.Logger) *Assembler {
	return &Assembler{Fetcher: f, Now: time.Now, Log: log}
}

// Assemble fetches, normalizes and prices every entry in declared order.
// Per-entry failures are collected in Result.Skipped and never returned; the
// only error is cancellation of ctx, which aborts the whole pass.
func (a *Assembler) Assemble(ctx context.Context, list []watchlist.Entry, tradeDate string) (Result, error) {
	now := a.Now
	if now == nil {
		now = time.Now
	}
	res := Result{Entries: make([]Entry, 0, len(list))}

	for _, we := range list {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		log := a.Log.With().Str("code", we.Code).Str("market", string(we.Market)).Logger()

		entry, err := a.one(ctx, we, tradeDate, now)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return res, fmt.Errorf("assemble %s: %w", we.Code, err)
			}
			reason := Reason(err)
			log.Warn().Err(err).Str("reason", reason).Msg("skipped")
			res.Skipped = append(res.Skipped, Skip{Entry: we, Reason: reason, Err: err})
			continue
		}
		log.Info().
			Str("name", we.Name).
			Str("date", entry.Date).
			Str("close", entry.Close.String()).
			Str("change", entry.Change).
			Msg("fetched")
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

func (a *Assembler) one(ctx context.Context, we watchlist.Entry, tradeDate string, now func() time.Time) (Entry, error) {
	rows, err := a.Fetcher.FetchRows(ctx, we.Code, we.Market, tradeDate)
	if err != nil {
		return Entry{}, err
	}
	rec, err := quote.Normalize(rows)
	if err != nil {
		return Entry{}, err
	}
	if a.StrictDate && !tradedate.SameDay(rec.Date, tradeDate) {
		return Entry{}, fmt.Errorf("%w: got %s, want %s", ErrDateMismatch, rec.Date, tradeDate)
	}
	return Entry{
		Code:      we.Code,
		Name:      we.Name,
		Market:    we.Market,
		Record:    rec,
		Limits:    quote.ComputeLimits(rec.Close),
		FetchedAt: now().UTC(),
	}, nil
}
