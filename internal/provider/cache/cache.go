package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"stockdaily/internal/provider"
	"stockdaily/internal/quote"
)

// entry stores the rows fetched for one (code, trade date) with expiry.
type entry struct {
	expiresAt time.Time
	rows      []quote.Row
}

// Provider caches successful fetches per (code, trade date) for a TTL, so a
// security listed twice on the watch-list costs one upstream call.
// Failures are never cached.
type Provider struct {
	P        provider.Provider
	TTL      time.Duration
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry
	sf    singleflight.Group
}

func (c *Provider) Name() string { return c.P.Name() }

func key(code, tradeDate string) string { return code + "@" + tradeDate }

// Fetch returns cached rows when still valid, else asks the wrapped provider.
func (c *Provider) Fetch(ctx context.Context, code, tradeDate string) ([]quote.Row, error) {
	if c.TTL <= 0 {
		return c.P.Fetch(ctx, code, tradeDate)
	}

	k := key(code, tradeDate)
	now := time.Now()

	c.mu.RLock()
	e, ok := c.items[k]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.rows, nil
	}

	// concurrent misses for the same key share one upstream call
	v, err, _ := c.sf.Do(k, func() (any, error) {
		return c.P.Fetch(ctx, code, tradeDate)
	})
	if err != nil {
		return nil, err
	}
	rows := v.([]quote.Row)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[k] = entry{expiresAt: now.Add(c.TTL), rows: rows}
	// best-effort cap: drop expired entries first, then arbitrary ones
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		for k2, v := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if now.After(v.expiresAt) {
				delete(c.items, k2)
			}
		}
		for k2 := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k2 != k {
				delete(c.items, k2)
			}
		}
	}
	return rows, nil
}
