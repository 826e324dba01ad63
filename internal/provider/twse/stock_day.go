package twse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"stockdaily/internal/provider"
	"stockdaily/internal/quote"
	"stockdaily/internal/tradedate"
)

// StockDay is the STOCK_DAY envelope.
type StockDay struct {
	Stat   string   `json:"stat"`
	Date   string   `json:"date"`
	Title  string   `json:"title"`
	Fields []string `json:"fields"`
	Data   [][]any  `json:"data"`
	Notes  []string `json:"notes"`
}

// GetStockDay retrieves every trading day of the month containing date
// (YYYYMMDD) for stockNo.
func (c *Client) GetStockDay(ctx context.Context, stockNo, date string) (*StockDay, error) {
	if err := tradedate.Validate(date); err != nil {
		return nil, err
	}

	query := maps.Clone(c.query)
	query.Set("date", date)
	query.Set("stockNo", stockNo)

	url := fmt.Sprintf("%s/exchangeReport/STOCK_DAY?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusForbidden:
		return nil, errors.New("forbidden")

	case http.StatusTooManyRequests:
		return nil, errors.New("rate limited")

	default:
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var body StockDay
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding stock day response: %w", err)
	}
	return &body, nil
}

// Fetch implements provider.Provider.
func (c *Client) Fetch(ctx context.Context, code, tradeDate string) ([]quote.Row, error) {
	body, err := c.GetStockDay(ctx, code, tradeDate)
	if err != nil {
		return nil, &provider.RetrievalError{Provider: Name, Code: code, Err: err}
	}
	// A non-OK stat carries a human readable reason such as
	// "很抱歉，沒有符合條件的資料!".
	if !strings.EqualFold(body.Stat, "OK") || len(body.Data) == 0 {
		return nil, &provider.RetrievalError{Provider: Name, Code: code, Err: provider.ErrNoData}
	}

	rows := make([]quote.Row, 0, len(body.Data))
	for _, r := range body.Data {
		rows = append(rows, quote.Row(r))
	}
	return rows, nil
}
