package ratelimit

import (
	"context"
	"sync"
	"time"

	"stockdaily/internal/provider"
	"stockdaily/internal/quote"
)

// Gate enforces a minimum time between successive upstream calls. One Gate
// may be shared by several providers so the spacing holds across venues.
type Gate struct {
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewGate(interval time.Duration) *Gate { return &Gate{Interval: interval} }

// Wait blocks until Interval has elapsed since the previous call finished,
// or returns early if the context is canceled.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil || g.Interval <= 0 {
		return nil
	}
	g.mu.Lock()
	wait := time.Until(g.last.Add(g.Interval))
	g.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Done marks the end of an upstream call.
func (g *Gate) Done() {
	if g == nil || g.Interval <= 0 {
		return
	}
	g.mu.Lock()
	g.last = time.Now()
	g.mu.Unlock()
}

// MinInterval wraps a provider and spaces its calls through Gate.
type MinInterval struct {
	P    provider.Provider
	Gate *Gate
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) Fetch(ctx context.Context, code, tradeDate string) ([]quote.Row, error) {
	if err := m.Gate.Wait(ctx); err != nil {
		return nil, err
	}
	rows, err := m.P.Fetch(ctx, code, tradeDate)
	m.Gate.Done()
	return rows, err
}
