package provider

import (
	"context"
	"errors"
	"fmt"

	"stockdaily/internal/quote"
	"stockdaily/internal/watchlist"
)

// ErrNoData means the upstream answered but had no rows for the period.
var ErrNoData = errors.New("no data")

// ErrUnavailable means the upstream served a maintenance page instead of JSON.
var ErrUnavailable = errors.New("provider unavailable")

// Provider fetches the daily rows of one security for the period containing
// tradeDate (YYYYMMDD). Rows are returned in upstream order.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, code, tradeDate string) ([]quote.Row, error)
}

// RetrievalError wraps any failure to obtain a usable payload.
type RetrievalError struct {
	Provider string
	Code     string
	Err      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Code, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Registry selects a provider by listing market.
type Registry struct {
	providers map[watchlist.Market]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[watchlist.Market]Provider, 2)}
}

// Register binds p to market, replacing any previous binding.
func (r *Registry) Register(market watchlist.Market, p Provider) {
	r.providers[market] = p
}

// FetchRows dispatches to the provider registered for market.
func (r *Registry) FetchRows(ctx context.Context, code string, market watchlist.Market, tradeDate string) ([]quote.Row, error) {
	p, ok := r.providers[market]
	if !ok {
		return nil, &RetrievalError{Provider: string(market), Code: code, Err: fmt.Errorf("no provider for market %q", market)}
	}
	return p.Fetch(ctx, code, tradeDate)
}
