package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"taiwan-calendar/internal/fetch"
	"taiwan-calendar/internal/logger"
	"taiwan-calendar/internal/mapper"
	"taiwan-calendar/internal/model"
	"taiwan-calendar/internal/publish"
	"taiwan-calendar/internal/source"
	"taiwan-calendar/internal/store"
)

// yearCSV renders a complete office calendar for year in the dgpa layout.
// override replaces the flag of the given dates.
func yearCSV(year int, override map[string]string) string {
	var b strings.Builder
	b.WriteString("西元日期,星期,是否放假,備註\r\n")
	for d := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC); d.Year() == year; d = d.AddDate(0, 0, 1) {
		flag := "0"
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			flag = "2"
		}
		desc := ""
		if d.Month() == time.January && d.Day() == 1 {
			flag, desc = "2", "開國紀念日"
		}
		if v, ok := override[d.Format(model.DateLayout)]; ok {
			flag = v
		}
		fmt.Fprintf(&b, "%s,%s,%s,%s\r\n", d.Format("20060102"), mapper.WeekdayLabel(d), flag, desc)
	}
	return b.String()
}

func resourceURL(year int) string {
	return fmt.Sprintf("https://www.dgpa.gov.tw/FileConversion?filename=%d.csv", year-1911)
}

type mapLocator map[int]model.ResourceRef

func (m mapLocator) Name() string { return "map" }

func (m mapLocator) Locate(_ context.Context, year int) (model.ResourceRef, error) {
	ref, ok := m[year]
	if !ok {
		return model.ResourceRef{}, &source.NotFoundError{Year: year}
	}
	return ref, nil
}

func locatorFor(years ...int) mapLocator {
	m := mapLocator{}
	for _, y := range years {
		m[y] = model.ResourceRef{Year: y, Name: fmt.Sprintf("%d年中華民國政府行政機關辦公日曆表", y-1911), URL: resourceURL(y)}
	}
	return m
}

// recordingMirror keeps the entries of every successful replace. years lists
// each replace attempt, failed ones included.
type recordingMirror struct {
	mu      sync.Mutex
	years   []int
	entries map[int][]model.CalendarEntry
	err     error
	getErr  error
}

func (m *recordingMirror) ReplaceEntriesForYear(_ context.Context, year int, entries []model.CalendarEntry, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.years = append(m.years, year)
	if m.err != nil {
		return m.err
	}
	if m.entries == nil {
		m.entries = map[int][]model.CalendarEntry{}
	}
	m.entries[year] = slices.Clone(entries)
	return nil
}

func (m *recordingMirror) GetYear(_ context.Context, year int) ([]model.CalendarEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return slices.Clone(m.entries[year]), nil
}

type fixture struct {
	fs     afero.Fs
	orch   *Orchestrator
	mirror *recordingMirror
}

func newFixture(t *testing.T, loc source.Locator) *fixture {
	t.Helper()

	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	fs := afero.NewMemMapFs()
	out, err := store.NewLocalFs(fs, "docs")
	require.NoError(t, err)
	raw, err := store.NewLocalFs(fs, "origin")
	require.NoError(t, err)

	mirror := &recordingMirror{}
	orch, err := New(Options{
		Locator: loc,
		Fetcher: fetch.New(fetch.Config{
			Client:      client,
			Attempts:    2,
			BackoffBase: time.Millisecond,
			BackoffMax:  time.Millisecond,
		}),
		Writer:      publish.NewWriter(out),
		Raw:         raw,
		Mirror:      mirror,
		Concurrency: 2,
	})
	require.NoError(t, err)
	return &fixture{fs: fs, orch: orch, mirror: mirror}
}

func serve(year int, body string) {
	httpmock.RegisterResponder("GET", resourceURL(year), httpmock.NewStringResponder(http.StatusOK, body))
}

func testContext(t *testing.T) context.Context {
	return logger.ContextWithLogger(t.Context(), logger.Discard())
}
