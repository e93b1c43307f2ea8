package mapper

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"taiwan-calendar/internal/model"
)

// BuildYear orders entries by date and checks that they cover every day of
// year exactly once.
func BuildYear(year int, entries []model.CalendarEntry) (model.YearDataset, error) {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b model.CalendarEntry) int {
		return strings.Compare(a.Date, b.Date)
	})

	covErr := &CoverageError{Year: year}
	prefix := strconv.Itoa(year) + "-"
	seen := make(map[string]bool, len(sorted))
	for _, e := range sorted {
		if !strings.HasPrefix(e.Date, prefix) {
			covErr.OutOfYear = append(covErr.OutOfYear, e.Date)
			continue
		}
		if seen[e.Date] {
			covErr.Duplicates = append(covErr.Duplicates, e.Date)
			continue
		}
		seen[e.Date] = true
	}

	for d := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC); d.Year() == year; d = d.AddDate(0, 0, 1) {
		if key := d.Format(model.DateLayout); !seen[key] {
			covErr.Missing = append(covErr.Missing, key)
		}
	}

	if len(covErr.Missing) > 0 || len(covErr.Duplicates) > 0 || len(covErr.OutOfYear) > 0 {
		return model.YearDataset{}, covErr
	}
	return model.YearDataset{Year: year, Entries: sorted}, nil
}
