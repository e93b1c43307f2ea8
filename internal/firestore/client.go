// Package firestore mirrors published calendar years into a Firestore collection.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"taiwan-calendar/internal/model"
)

const batchSize = 250 // Stay well under Firestore's 500 operation limit

// Client wraps the Firestore client for calendar entry operations.
type Client struct {
	client     *firestore.Client
	collection string
}

// New creates a new Firestore client.
func New(ctx context.Context, projectID, collection string) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Client{
		client:     client,
		collection: collection,
	}, nil
}

// Close closes the Firestore client.
func (c *Client) Close() error {
	return c.client.Close()
}

// ReplaceEntriesForYear replaces all entries for a year.
// It deletes the existing documents for the year, then writes the new ones.
func (c *Client) ReplaceEntriesForYear(ctx context.Context, year int, entries []model.CalendarEntry, batchID string) error {
	coll := c.client.Collection(c.collection)

	if err := c.deleteEntriesForYear(ctx, year); err != nil {
		return fmt.Errorf("deleting existing entries: %w", err)
	}

	for chunk := range slices.Chunk(entries, batchSize) {
		batch := c.client.Batch()
		for _, e := range chunk {
			batch.Set(coll.Doc(generateDocID(e.Date)), entryToMap(year, e, batchID))
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("committing batch: %w", err)
		}
	}

	return nil
}

func (c *Client) deleteEntriesForYear(ctx context.Context, year int) error {
	query := c.client.Collection(c.collection).Where("year", "==", year)

	for {
		iter := query.Limit(batchSize).Documents(ctx)
		batch := c.client.Batch()
		numDeleted := 0

		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return fmt.Errorf("iterating documents: %w", err)
			}
			batch.Delete(doc.Ref)
			numDeleted++
		}

		if numDeleted == 0 {
			return nil
		}

		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("committing delete batch: %w", err)
		}

		if numDeleted < batchSize {
			return nil
		}
	}
}

// GetYear retrieves the mirrored entries of a year, ordered by date.
func (c *Client) GetYear(ctx context.Context, year int) ([]model.CalendarEntry, error) {
	var entries []model.CalendarEntry

	iter := c.client.Collection(c.collection).Where("year", "==", year).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating documents: %w", err)
		}

		e, err := mapToEntry(doc.Data())
		if err != nil {
			return nil, fmt.Errorf("parsing document %s: %w", doc.Ref.ID, err)
		}
		entries = append(entries, e)
	}

	slices.SortFunc(entries, func(a, b model.CalendarEntry) int {
		return strings.Compare(a.Date, b.Date)
	})
	return entries, nil
}

// generateDocID derives a stable document ID from the entry date.
func generateDocID(date string) string {
	hash := sha256.Sum256([]byte("calendar|" + date))
	return hex.EncodeToString(hash[:16])
}

func entryToMap(year int, e model.CalendarEntry, batchID string) map[string]interface{} {
	m := map[string]interface{}{
		"year":       year,
		"date":       e.Date,
		"week":       e.Week,
		"is_holiday": e.IsHoliday,
		"batch_id":   batchID,
	}
	if e.Description != "" {
		m["description"] = e.Description
	}
	return m
}

func mapToEntry(m map[string]interface{}) (model.CalendarEntry, error) {
	e := model.CalendarEntry{}

	date, ok := m["date"].(string)
	if !ok || date == "" {
		return e, fmt.Errorf("missing date")
	}
	e.Date = date
	if v, ok := m["week"].(string); ok {
		e.Week = v
	}
	if v, ok := m["is_holiday"].(bool); ok {
		e.IsHoliday = v
	}
	if v, ok := m["description"].(string); ok {
		e.Description = v
	}

	return e, nil
}
