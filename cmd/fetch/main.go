package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockdaily/internal/aggregate"
	"stockdaily/internal/config"
	"stockdaily/internal/httpx"
	"stockdaily/internal/logger"
	"stockdaily/internal/metrics"
	"stockdaily/internal/provider"
	"stockdaily/internal/provider/cache"
	"stockdaily/internal/provider/ratelimit"
	"stockdaily/internal/provider/tpex"
	"stockdaily/internal/provider/twse"
	"stockdaily/internal/store"
	"stockdaily/internal/tradedate"
	"stockdaily/internal/watchlist"
)

func main() {
	var configPath string
	var date string

	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.yaml (optional)")
	flag.StringVar(&date, "date", getenv("TRADE_DATE", ""), "trade date YYYYMMDD (default: latest weekday, Taiwan time)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	log = log.With().Str("run_id", uuid.NewString()).Logger()

	// Prices are written as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, date, time.Now, log); err != nil {
		stop()
		log.Fatal().Err(err).Msg("run failed")
	}
}

// run fetches the watch-list for date (resolved from now when empty) and
// persists the snapshot.
func run(ctx context.Context, cfg config.Config, date string, now func() time.Time, log zerolog.Logger) error {
	start := now()
	tradeDate := date
	if tradeDate == "" {
		tradeDate = tradedate.Resolve(start)
	}
	if err := tradedate.Validate(tradeDate); err != nil {
		return err
	}
	log = log.With().Str("trade_date", tradeDate).Logger()

	st, closeStore, err := store.Open(ctx, cfg.Store.Options())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	hc := httpx.New(cfg.Fetch.Timeout)
	if cfg.Fetch.UserAgent != "" {
		hc.UserAgent = cfg.Fetch.UserAgent
	}

	asm := aggregate.New(newRegistry(cfg, hc), log)
	asm.StrictDate = cfg.Fetch.StrictDate
	asm.Now = now

	log.Info().Int("securities", len(cfg.Watchlist)).Str("store", cfg.Store.Backend).Msg("fetch started")
	res, err := asm.Assemble(ctx, cfg.Watchlist, tradeDate)
	if err != nil {
		return fmt.Errorf("assemble: %w", err)
	}

	m := metrics.NewRun()
	m.ObserveResult(res)

	archive := store.NewArchive(st, log)
	archive.Now = now
	perr := archive.Persist(ctx, res.Entries, tradeDate)

	m.ObservePersist(perr, now())
	m.ObserveDuration(now().Sub(start))
	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn().Err(err).Str("path", cfg.Metrics.Textfile).Msg("write metrics textfile")
		}
	}
	if perr != nil {
		return perr
	}

	log.Info().
		Int("fetched", len(res.Entries)).
		Int("skipped", len(res.Skipped)).
		Dur("took", now().Sub(start)).
		Msg("fetch finished")
	return nil
}

// newRegistry wires one provider per market. Both share a Gate so upstream
// calls stay spaced across venues; the cache sits outside the Gate so a
// repeated code neither calls upstream nor waits.
func newRegistry(cfg config.Config, hc *httpx.Client) *provider.Registry {
	gate := ratelimit.NewGate(cfg.Fetch.RequestInterval)
	wrap := func(p provider.Provider) provider.Provider {
		p = &ratelimit.MinInterval{P: p, Gate: gate}
		if cfg.Fetch.CacheTTL > 0 {
			p = &cache.Provider{P: p, TTL: cfg.Fetch.CacheTTL, MaxItems: cfg.Fetch.CacheMaxItems}
		}
		return p
	}

	reg := provider.NewRegistry()
	reg.Register(watchlist.TSE, wrap(twse.NewClient(
		twse.WithBaseURL(cfg.TWSE.BaseURL),
		twse.WithHTTPClient(hc),
	)))
	reg.Register(watchlist.OTC, wrap(tpex.New(tpex.Config{
		URL:      cfg.TPEx.URL,
		Language: cfg.TPEx.Language,
	}, hc)))
	return reg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
