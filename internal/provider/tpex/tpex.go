// Package tpex fetches monthly daily-trading data for over-the-counter
// securities from the Taipei Exchange.
package tpex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"stockdaily/internal/httpx"
	"stockdaily/internal/provider"
	"stockdaily/internal/quote"
	"stockdaily/internal/tradedate"
)

const (
	DefaultName = "TPEx"
	DefaultURL  = "https://www.tpex.org.tw/web/stock/aftertrading/daily_trading_info/st43_result.php"
)

type Config struct {
	Name     string
	URL      string
	Language string
	Headers  map[string]string
}

type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Language == "" {
		cfg.Language = "zh-tw"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

// Fetch implements provider.Provider. The upstream is queried by ROC-era
// month, so the rows cover the whole month containing tradeDate.
func (p *Provider) Fetch(ctx context.Context, code, tradeDate string) ([]quote.Row, error) {
	rows, err := p.fetch(ctx, code, tradeDate)
	if err != nil {
		return nil, &provider.RetrievalError{Provider: p.cfg.Name, Code: code, Err: err}
	}
	return rows, nil
}

func (p *Provider) fetch(ctx context.Context, code, tradeDate string) ([]quote.Row, error) {
	period, err := tradedate.ROCYearMonth(tradeDate)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(p.cfg.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("l", p.cfg.Language)
	q.Set("d", period)
	q.Set("stkno", code)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.DoContext(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, fmt.Errorf("GET %s -> %d: %s", u.String(), resp.StatusCode, string(b))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	// During maintenance the endpoint answers 200 with an HTML page.
	if bytes.HasPrefix(bytes.TrimSpace(b), []byte("<")) {
		return nil, provider.ErrUnavailable
	}

	var body apiResponse
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(body.AAData) == 0 {
		return nil, provider.ErrNoData
	}

	rows := make([]quote.Row, 0, len(body.AAData))
	for _, r := range body.AAData {
		rows = append(rows, quote.Row(r))
	}
	return rows, nil
}

type apiResponse struct {
	StkNo         string  `json:"stkNo"`
	StkName       string  `json:"stkName"`
	ReportDate    string  `json:"reportDate"`
	ITotalRecords int     `json:"iTotalRecords"`
	AAData        [][]any `json:"aaData"`
}
