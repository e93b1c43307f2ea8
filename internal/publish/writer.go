// Package publish writes per-year calendar artifacts, skipping writes whose
// content is logically identical to what is already stored.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"taiwan-calendar/internal/logger"
	"taiwan-calendar/internal/model"
	"taiwan-calendar/internal/store"
)

// WriteResult reports whether an artifact was (re)written.
type WriteResult struct {
	Written bool
	Key     string
}

// PersistError wraps a storage failure while reading or writing an artifact.
type PersistError struct {
	Year int
	Op   string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persisting %d: %s: %v", e.Year, e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Writer is the change-aware artifact writer.
type Writer struct {
	store store.Store
}

// NewWriter creates a Writer on top of s.
func NewWriter(s store.Store) *Writer {
	return &Writer{store: s}
}

// Key returns the store key for a year's artifact.
func Key(year int) string {
	return strconv.Itoa(year)
}

// Write serializes entries and stores them unless the stored artifact already
// holds the same entries. force skips the comparison.
func (w *Writer) Write(ctx context.Context, year int, entries []model.CalendarEntry, force bool) (WriteResult, error) {
	log := logger.FromContext(ctx).With("year", year, "stage", "write")
	key := Key(year)

	if !force {
		existing, err := w.store.Get(ctx, key)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return WriteResult{Key: key}, &PersistError{Year: year, Op: "read", Err: err}
		default:
			current, decErr := Decode(existing)
			if decErr != nil {
				log.Warn("existing artifact is unreadable, replacing", "err", decErr)
			} else if Equal(current, entries) {
				log.Debug("artifact unchanged")
				return WriteResult{Key: key}, nil
			}
		}
	}

	data, err := Encode(entries)
	if err != nil {
		return WriteResult{Key: key}, &PersistError{Year: year, Op: "encode", Err: err}
	}
	if err := w.store.Set(ctx, key, data); err != nil {
		return WriteResult{Key: key}, &PersistError{Year: year, Op: "write", Err: err}
	}
	log.Info("artifact written", "entries", len(entries), "bytes", len(data))
	return WriteResult{Written: true, Key: key}, nil
}

// Encode renders entries as an indented JSON array with a trailing newline.
// Non-ASCII text is written as UTF-8, never escaped, so output is stable and readable.
func Encode(entries []model.CalendarEntry) ([]byte, error) {
	if entries == nil {
		entries = []model.CalendarEntry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a stored artifact.
func Decode(data []byte) ([]model.CalendarEntry, error) {
	var entries []model.CalendarEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Equal reports whether two entry lists hold the same logical content.
func Equal(a, b []model.CalendarEntry) bool {
	return slices.Equal(a, b)
}
