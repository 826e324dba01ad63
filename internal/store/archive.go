package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"stockdaily/internal/aggregate"
	"stockdaily/internal/tradedate"
)

// Artifact names.
const (
	LatestName  = "latest.json"
	HistoryName = "history.json"
)

// SnapshotName is the artifact holding the snapshot of date.
func SnapshotName(date string) string { return date + ".json" }

// Step names a stage of Persist.
type Step string

const (
	StepSnapshot Step = "snapshot"
	StepLatest   Step = "latest"
	StepHistory  Step = "history"
)

// PersistenceError reports the step at which Persist stopped. Steps before it
// have been written and are not rolled back.
type PersistenceError struct {
	Step Step
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Latest is the content of latest.json.
type Latest struct {
	Date      string            `json:"date"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Stocks    []aggregate.Entry `json:"stocks"`
}

// Archive maintains the snapshot, the latest pointer and the history index in
// a Store.
type Archive struct {
	Store Store
	Now   func() time.Time
	Log   zerolog.Logger
}

func NewArchive(s Store, log zerolog.Logger) *Archive {
	return &Archive{Store: s, Now: time.Now, Log: log}
}

// Persist writes the snapshot of tradeDate, points latest at it and records
// tradeDate in the history index. It stops at the first failing step.
func (a *Archive) Persist(ctx context.Context, entries []aggregate.Entry, tradeDate string) error {
	if err := tradedate.Validate(tradeDate); err != nil {
		return &PersistenceError{Step: StepSnapshot, Err: err}
	}
	if entries == nil {
		entries = []aggregate.Entry{}
	}

	if err := a.write(ctx, SnapshotName(tradeDate), entries); err != nil {
		return &PersistenceError{Step: StepSnapshot, Err: err}
	}

	now := a.Now
	if now == nil {
		now = time.Now
	}
	latest := Latest{Date: tradeDate, UpdatedAt: now().UTC(), Stocks: entries}
	if err := a.write(ctx, LatestName, latest); err != nil {
		return &PersistenceError{Step: StepLatest, Err: err}
	}

	if err := a.appendHistory(ctx, tradeDate); err != nil {
		return &PersistenceError{Step: StepHistory, Err: err}
	}
	return nil
}

func (a *Archive) appendHistory(ctx context.Context, tradeDate string) error {
	dates, err := a.History(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(dates, tradeDate) {
		a.Log.Debug().Str("date", tradeDate).Msg("history already contains date")
		return nil
	}
	dates = append(dates, tradeDate)
	slices.Sort(dates)
	dates = slices.Compact(dates)
	slices.Reverse(dates)
	return a.write(ctx, HistoryName, dates)
}

func (a *Archive) write(ctx context.Context, name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := a.Store.Put(ctx, name, b); err != nil {
		return err
	}
	a.Log.Info().Str("artifact", name).Int("bytes", len(b)).Msg("artifact written")
	return nil
}

// Latest reads latest.json. ErrNotFound when nothing has been persisted.
func (a *Archive) Latest(ctx context.Context) (Latest, error) {
	var l Latest
	if err := a.read(ctx, LatestName, &l); err != nil {
		return Latest{}, err
	}
	if l.Stocks == nil {
		l.Stocks = []aggregate.Entry{}
	}
	return l, nil
}

// History reads the date index, newest first. A missing index is empty.
func (a *Archive) History(ctx context.Context) ([]string, error) {
	var dates []string
	err := a.read(ctx, HistoryName, &dates)
	if errors.Is(err, ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if dates == nil {
		dates = []string{}
	}
	return dates, nil
}

// Snapshot reads the snapshot of date.
func (a *Archive) Snapshot(ctx context.Context, date string) ([]aggregate.Entry, error) {
	if err := tradedate.Validate(date); err != nil {
		return nil, err
	}
	var entries []aggregate.Entry
	if err := a.read(ctx, SnapshotName(date), &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []aggregate.Entry{}
	}
	return entries, nil
}

func (a *Archive) read(ctx context.Context, name string, v any) error {
	b, err := a.Store.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
