// Package config loads the fetcher and server settings from YAML, a .env file
// and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stockdaily/internal/store"
	"stockdaily/internal/watchlist"
)

type Log struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format     string `yaml:"format" default:"console" validate:"oneof=console json"`
	Output     string `yaml:"output" default:"stdout"`
	TimeFormat string `yaml:"time_format"`
}

type Fetch struct {
	Timeout         time.Duration `yaml:"timeout" default:"15s" validate:"gt=0"`
	RequestInterval time.Duration `yaml:"request_interval" default:"800ms" validate:"gte=0"`
	UserAgent       string        `yaml:"user_agent"`
	CacheTTL        time.Duration `yaml:"cache_ttl" default:"10m" validate:"gte=0"`
	CacheMaxItems   int           `yaml:"cache_max_items" default:"1000" validate:"gte=0"`
	// StrictDate skips securities whose latest upstream row is not the trade date.
	StrictDate bool `yaml:"strict_date"`
}

type TWSE struct {
	BaseURL string `yaml:"base_url" default:"https://www.twse.com.tw" validate:"required,url"`
}

type TPEx struct {
	URL      string `yaml:"url" default:"https://www.tpex.org.tw/web/stock/aftertrading/daily_trading_info/st43_result.php" validate:"required,url"`
	Language string `yaml:"language" default:"zh-tw"`
}

type Redis struct {
	Addr        string        `yaml:"addr" default:"localhost:6379"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db" validate:"gte=0"`
	Prefix      string        `yaml:"prefix" default:"stocks"`
	PoolSize    int           `yaml:"pool_size" default:"4" validate:"gte=1"`
	DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
}

type Store struct {
	Backend string `yaml:"backend" default:"file" validate:"oneof=file redis"`
	Dir     string `yaml:"dir" default:"data/stocks" validate:"required_if=Backend file"`
	Redis   Redis  `yaml:"redis"`
}

// Options maps the section onto the store package.
func (s Store) Options() store.Options {
	return store.Options{
		Backend: s.Backend,
		Dir:     s.Dir,
		Redis: store.RedisConfig{
			Addr:        s.Redis.Addr,
			Password:    s.Redis.Password,
			DB:          s.Redis.DB,
			PoolSize:    s.Redis.PoolSize,
			DialTimeout: s.Redis.DialTimeout,
			Prefix:      s.Redis.Prefix,
		},
	}
}

type Metrics struct {
	// Textfile is the node-exporter textfile the fetcher writes after each
	// run. Empty disables it.
	Textfile string `yaml:"textfile"`
}

type Server struct {
	Port           string        `yaml:"port" default:"8080" validate:"required,numeric"`
	RequestTimeout time.Duration `yaml:"request_timeout" default:"10s" validate:"gt=0"`
}

type Config struct {
	Log       Log               `yaml:"log"`
	Fetch     Fetch             `yaml:"fetch"`
	TWSE      TWSE              `yaml:"twse"`
	TPEx      TPEx              `yaml:"tpex"`
	Store     Store             `yaml:"store"`
	Metrics   Metrics           `yaml:"metrics"`
	Server    Server            `yaml:"server"`
	Watchlist []watchlist.Entry `yaml:"watchlist" validate:"dive"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	// defaults.Set only fails on malformed tags.
	if err := defaults.Set(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	cfg.Watchlist = watchlist.Default()
	return cfg
}

var validate = validator.New()

// Load reads YAML config from path. If path is empty, config.yaml in the
// working directory is used when present. A missing file yields defaults.
// A .env file is loaded first; the environment then overrides select fields.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return cfg, fmt.Errorf("config defaults: %w", err)
	}
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if len(cfg.Watchlist) == 0 {
		cfg.Watchlist = watchlist.Default()
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v := os.Getenv("REQUEST_INTERVAL_MS"); v != "" {
		x, err := strconv.Atoi(v)
		if err != nil || x < 0 {
			return fmt.Errorf("REQUEST_INTERVAL_MS: invalid value %q", v)
		}
		cfg.Fetch.RequestInterval = time.Duration(x) * time.Millisecond
	}
	if v := os.Getenv("FETCH_TIMEOUT_SEC"); v != "" {
		x, err := strconv.Atoi(v)
		if err != nil || x <= 0 {
			return fmt.Errorf("FETCH_TIMEOUT_SEC: invalid value %q", v)
		}
		cfg.Fetch.Timeout = time.Duration(x) * time.Second
	}
	if v := os.Getenv("STRICT_DATE"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			cfg.Fetch.StrictDate = true
		case "0", "false", "no", "n":
			cfg.Fetch.StrictDate = false
		}
	}
	if v := os.Getenv("USER_AGENT"); v != "" {
		cfg.Fetch.UserAgent = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Store.Dir = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.Store.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Store.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		x, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: invalid value %q", v)
		}
		cfg.Store.Redis.DB = x
	}
	if v := os.Getenv("REDIS_PREFIX"); v != "" {
		cfg.Store.Redis.Prefix = v
	}
	if v := os.Getenv("METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		list, err := parseWatchlist(v)
		if err != nil {
			return fmt.Errorf("WATCHLIST: %w", err)
		}
		cfg.Watchlist = list
	}
	return nil
}

// parseWatchlist reads "code:market[:name],..." as used by WATCHLIST.
func parseWatchlist(s string) ([]watchlist.Entry, error) {
	var out []watchlist.Entry
	for _, item := range splitCSV(s) {
		parts := strings.SplitN(item, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("entry %q: want code:market[:name]", item)
		}
		m, err := watchlist.ParseMarket(parts[1])
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", item, err)
		}
		e := watchlist.Entry{Code: strings.TrimSpace(parts[0]), Market: m}
		if len(parts) == 3 {
			e.Name = strings.TrimSpace(parts[2])
		}
		out = append(out, e)
	}
	return out, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
