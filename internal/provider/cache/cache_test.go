package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockdaily/internal/quote"
)

type countingProvider struct {
	calls map[string]int
	err   error
}

func (p *countingProvider) Name() string { return "counting" }
func (p *countingProvider) Fetch(_ context.Context, code, tradeDate string) ([]quote.Row, error) {
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[code]++
	if p.err != nil {
		return nil, p.err
	}
	return []quote.Row{{tradeDate, code}}, nil
}

func TestProvider_RepeatedCodeHitsCache(t *testing.T) {
	up := &countingProvider{}
	c := &Provider{P: up, TTL: time.Minute}

	first, err := c.Fetch(t.Context(), "2324", "20240105")
	require.NoError(t, err)
	second, err := c.Fetch(t.Context(), "2324", "20240105")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, up.calls["2324"])
	require.Equal(t, "counting", c.Name())
}

func TestProvider_DifferentDateIsMiss(t *testing.T) {
	up := &countingProvider{}
	c := &Provider{P: up, TTL: time.Minute}

	_, _ = c.Fetch(t.Context(), "2324", "20240104")
	_, _ = c.Fetch(t.Context(), "2324", "20240105")
	require.Equal(t, 2, up.calls["2324"])
}

func TestProvider_ErrorsNotCached(t *testing.T) {
	up := &countingProvider{err: errors.New("boom")}
	c := &Provider{P: up, TTL: time.Minute}

	_, err := c.Fetch(t.Context(), "5410", "20240105")
	require.Error(t, err)
	_, err = c.Fetch(t.Context(), "5410", "20240105")
	require.Error(t, err)
	require.Equal(t, 2, up.calls["5410"])
}

func TestProvider_ZeroTTLPassesThrough(t *testing.T) {
	up := &countingProvider{}
	c := &Provider{P: up}

	_, _ = c.Fetch(t.Context(), "2324", "20240105")
	_, _ = c.Fetch(t.Context(), "2324", "20240105")
	require.Equal(t, 2, up.calls["2324"])
}

func TestProvider_MaxItems(t *testing.T) {
	up := &countingProvider{}
	c := &Provider{P: up, TTL: time.Minute, MaxItems: 2}

	for _, code := range []string{"1", "2", "3", "4"} {
		_, err := c.Fetch(t.Context(), code, "20240105")
		require.NoError(t, err)
	}
	require.LessOrEqual(t, len(c.items), 2)

	// the most recent entry always survives eviction
	_, _ = c.Fetch(t.Context(), "4", "20240105")
	require.Equal(t, 1, up.calls["4"])
}

type blockingProvider struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (p *blockingProvider) Name() string { return "blocking" }
func (p *blockingProvider) Fetch(_ context.Context, code, tradeDate string) ([]quote.Row, error) {
	if p.calls.Add(1) == 1 {
		close(p.started)
	}
	<-p.release
	return []quote.Row{{tradeDate, code}}, nil
}

func TestProvider_ConcurrentMissesShareOneCall(t *testing.T) {
	// Arrange
	up := &blockingProvider{started: make(chan struct{}), release: make(chan struct{})}
	c := &Provider{P: up, TTL: time.Minute}

	// Act
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := c.Fetch(context.Background(), "00929", "20240105")
			if err == nil && len(rows) != 1 {
				t.Errorf("unexpected rows: %v", rows)
			}
		}()
	}
	<-up.started
	time.Sleep(50 * time.Millisecond)
	close(up.release)
	wg.Wait()

	// Assert
	require.Equal(t, int32(1), up.calls.Load())
}
