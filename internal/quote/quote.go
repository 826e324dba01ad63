// Package quote turns upstream daily price rows into canonical records and
// derives the daily price limits from a close.
package quote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Row is one positional daily row as flattened by a provider adapter:
// date, volume, turnover, open, high, low, close, change, transactions.
// Cells are strings or json.Number depending on the upstream.
type Row []any

// rowLen is the number of cells every provider row carries.
const rowLen = 9

// ErrNoRows is returned when a provider payload carried no rows at all.
var ErrNoRows = errors.New("quote: no rows")

// Record is the canonical daily price record.
type Record struct {
	Date         string          `json:"date"`
	Volume       int64           `json:"volume"`
	Turnover     int64           `json:"turnover"`
	Open         decimal.Decimal `json:"open"`
	High         decimal.Decimal `json:"high"`
	Low          decimal.Decimal `json:"low"`
	Close        decimal.Decimal `json:"close"`
	Change       string          `json:"change"`
	Transactions int64           `json:"transactions"`
}

// NormalizationError reports a row cell that could not be parsed.
type NormalizationError struct {
	Field string
	Value string
	Err   error
}

func (e *NormalizationError) Error() string {
	if e.Value == "" && e.Err != nil {
		return fmt.Sprintf("normalize %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("normalize %s: invalid value %q: %v", e.Field, e.Value, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// Normalize maps the most recent row into a Record. Rows are assumed to be in
// ascending date order, so the last row wins; ordering is not validated.
func Normalize(rows []Row) (Record, error) {
	if len(rows) == 0 {
		return Record{}, ErrNoRows
	}
	row := rows[len(rows)-1]
	if len(row) < rowLen {
		return Record{}, &NormalizationError{
			Field: "row",
			Err:   fmt.Errorf("want %d cells, got %d", rowLen, len(row)),
		}
	}

	var (
		rec Record
		err error
	)
	rec.Date = cellString(row[0])
	if rec.Volume, err = parseInt("volume", row[1]); err != nil {
		return Record{}, err
	}
	if rec.Turnover, err = parseInt("turnover", row[2]); err != nil {
		return Record{}, err
	}
	if rec.Open, err = parseDecimal("open", row[3]); err != nil {
		return Record{}, err
	}
	if rec.High, err = parseDecimal("high", row[4]); err != nil {
		return Record{}, err
	}
	if rec.Low, err = parseDecimal("low", row[5]); err != nil {
		return Record{}, err
	}
	if rec.Close, err = parseDecimal("close", row[6]); err != nil {
		return Record{}, err
	}
	rec.Change = cellString(row[7])
	if rec.Transactions, err = parseInt("transactions", row[8]); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func parseInt(field string, cell any) (int64, error) {
	raw := cellString(cell)
	n, err := strconv.ParseInt(stripSeparators(raw), 10, 64)
	if err != nil {
		return 0, &NormalizationError{Field: field, Value: raw, Err: err}
	}
	return n, nil
}

func parseDecimal(field string, cell any) (decimal.Decimal, error) {
	raw := cellString(cell)
	d, err := decimal.NewFromString(stripSeparators(raw))
	if err != nil {
		return decimal.Zero, &NormalizationError{Field: field, Value: raw, Err: err}
	}
	return d, nil
}

func stripSeparators(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
