package pipeline

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/traditionalchinese"

	"taiwan-calendar/internal/fetch"
	"taiwan-calendar/internal/mapper"
	"taiwan-calendar/internal/publish"
)

func TestRun_WritesYear(t *testing.T) {
	f := newFixture(t, locatorFor(2025))
	serve(2025, yearCSV(2025, nil))

	summary, err := f.orch.Run(testContext(t), YearRange{From: 2025, To: 2025}, false)
	require.NoError(t, err)

	assert.True(t, summary.OK())
	assert.NotEmpty(t, summary.ID)
	out, ok := summary.Outcome(2025)
	require.True(t, ok)
	assert.Equal(t, StatusWritten, out.Status)
	assert.Equal(t, "dgpa", out.Schema)
	assert.Equal(t, 365, out.Entries)

	data, err := afero.ReadFile(f.fs, "docs/2025.json")
	require.NoError(t, err)
	entries, err := publish.Decode(data)
	require.NoError(t, err)
	require.Len(t, entries, 365)

	t.Run("Should publish the first day", func(t *testing.T) {
		assert.Equal(t, "2025-01-01", entries[0].Date)
		assert.Equal(t, "三", entries[0].Week)
		assert.True(t, entries[0].IsHoliday)
		assert.Equal(t, "開國紀念日", entries[0].Description)
	})

	t.Run("Should derive every weekday from the date", func(t *testing.T) {
		for _, e := range entries {
			d, err := e.Time()
			require.NoError(t, err)
			assert.Equal(t, mapper.WeekdayLabel(d), e.Week, e.Date)
		}
	})

	t.Run("Should keep the raw download", func(t *testing.T) {
		raw, err := afero.ReadFile(f.fs, "origin/2025.csv")
		require.NoError(t, err)
		assert.Equal(t, yearCSV(2025, nil), string(raw))
	})

	t.Run("Should mirror the written year", func(t *testing.T) {
		assert.Equal(t, []int{2025}, f.mirror.years)
	})
}

func TestRun_SecondRunIsUnchanged(t *testing.T) {
	f := newFixture(t, locatorFor(2025))
	serve(2025, yearCSV(2025, nil))
	ctx := testContext(t)

	_, err := f.orch.Run(ctx, YearRange{From: 2025, To: 2025}, false)
	require.NoError(t, err)
	first, err := afero.ReadFile(f.fs, "docs/2025.json")
	require.NoError(t, err)

	summary, err := f.orch.Run(ctx, YearRange{From: 2025, To: 2025}, false)
	require.NoError(t, err)
	second, err := afero.ReadFile(f.fs, "docs/2025.json")
	require.NoError(t, err)

	out, _ := summary.Outcome(2025)
	assert.Equal(t, StatusUnchanged, out.Status)
	assert.Equal(t, first, second)
	assert.Equal(t, []int{2025}, f.mirror.years, "an up to date mirror is not replaced again")
	assert.False(t, out.Mirrored)

	t.Run("Should rewrite when forced", func(t *testing.T) {
		summary, err := f.orch.Run(ctx, YearRange{From: 2025, To: 2025}, true)
		require.NoError(t, err)
		out, _ := summary.Outcome(2025)
		assert.Equal(t, StatusWritten, out.Status)
	})
}

func TestRun_SkipsUnpublishedYear(t *testing.T) {
	f := newFixture(t, locatorFor(2025))
	serve(2025, yearCSV(2025, nil))

	summary, err := f.orch.Run(testContext(t), YearRange{From: 2025, To: 2026}, false)
	require.NoError(t, err)

	assert.True(t, summary.OK())
	require.Len(t, summary.Outcomes, 2)
	assert.Equal(t, 2025, summary.Outcomes[0].Year)
	assert.Equal(t, StatusSkipped, summary.Outcomes[1].Status)

	exists, err := afero.Exists(f.fs, "docs/2026.json")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, Counts{Written: 1, Skipped: 1}, summary.Counts())
}

func TestRun_UnknownFlagFailsYear(t *testing.T) {
	f := newFixture(t, locatorFor(2025))
	serve(2025, yearCSV(2025, map[string]string{"2025-03-04": "X"}))

	summary, err := f.orch.Run(testContext(t), YearRange{From: 2025, To: 2025}, false)
	require.NoError(t, err)

	assert.False(t, summary.OK())
	out, _ := summary.Outcome(2025)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, StageMap, out.Stage())

	var flagErr *mapper.FlagParseError
	require.ErrorAs(t, out.Err, &flagErr)
	assert.Equal(t, "X", flagErr.Value)
	assert.Contains(t, out.Reason, "2025: map:")

	exists, err := afero.Exists(f.fs, "docs/2025.json")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, f.mirror.years)
}

func TestRun_FailedYearDoesNotStopOthers(t *testing.T) {
	f := newFixture(t, locatorFor(2024, 2025))
	httpmock.RegisterResponder("GET", resourceURL(2024), httpmock.NewStringResponder(http.StatusNotFound, ""))
	serve(2025, yearCSV(2025, nil))

	summary, err := f.orch.Run(testContext(t), YearRange{From: 2024, To: 2025}, false)
	require.NoError(t, err)

	failed, _ := summary.Outcome(2024)
	assert.Equal(t, StageFetch, failed.Stage())
	var permanent *fetch.PermanentFetchError
	assert.ErrorAs(t, failed.Err, &permanent)

	written, _ := summary.Outcome(2025)
	assert.Equal(t, StatusWritten, written.Status)
	assert.Len(t, summary.Failures(), 1)
}

func TestRun_IncompleteYearFailsCoverage(t *testing.T) {
	f := newFixture(t, locatorFor(2025))
	full := yearCSV(2025, nil)
	// Drop the last row (2025-12-31).
	truncated := full[:len(full)-len("20251231,三,0,\r\n")]
	serve(2025, truncated)

	summary, err := f.orch.Run(testContext(t), YearRange{From: 2025, To: 2025}, false)
	require.NoError(t, err)

	out, _ := summary.Outcome(2025)
	assert.Equal(t, StageBuild, out.Stage())
	var covErr *mapper.CoverageError
	require.ErrorAs(t, out.Err, &covErr)
	assert.Equal(t, []string{"2025-12-31"}, covErr.Missing)
}

func TestRun_Big5Source(t *testing.T) {
	f := newFixture(t, locatorFor(2024))
	encoded, err := traditionalchinese.Big5.NewEncoder().String(yearCSV(2024, nil))
	require.NoError(t, err)
	serve(2024, encoded)

	summary, err := f.orch.Run(testContext(t), YearRange{From: 2024, To: 2024}, false)
	require.NoError(t, err)

	out, _ := summary.Outcome(2024)
	require.Equal(t, StatusWritten, out.Status, out.Reason)
	assert.Equal(t, 366, out.Entries)
}

func TestRun_MirrorFailure(t *testing.T) {
	f := newFixture(t, locatorFor(2025))
	f.mirror.err = errors.New("unavailable")
	serve(2025, yearCSV(2025, nil))

	summary, err := f.orch.Run(testContext(t), YearRange{From: 2025, To: 2025}, false)
	require.NoError(t, err)

	out, _ := summary.Outcome(2025)
	assert.Equal(t, StageMirror, out.Stage())
	exists, _ := afero.Exists(f.fs, "docs/2025.json")
	assert.True(t, exists)
}

func TestRun_RepairsMirrorAfterFailure(t *testing.T) {
	f := newFixture(t, locatorFor(2025))
	f.mirror.err = errors.New("unavailable")
	serve(2025, yearCSV(2025, nil))
	ctx := testContext(t)
	years := YearRange{From: 2025, To: 2025}

	summary, err := f.orch.Run(ctx, years, false)
	require.NoError(t, err)
	out, _ := summary.Outcome(2025)
	require.Equal(t, StageMirror, out.Stage())

	f.mirror.err = nil
	summary, err = f.orch.Run(ctx, years, false)
	require.NoError(t, err)

	out, _ = summary.Outcome(2025)
	assert.Equal(t, StatusUnchanged, out.Status, out.Reason)
	assert.True(t, out.Mirrored)
	assert.True(t, summary.OK())
	assert.Equal(t, []int{2025, 2025}, f.mirror.years)
	assert.Len(t, f.mirror.entries[2025], 365)

	t.Run("Should leave an up to date mirror alone", func(t *testing.T) {
		summary, err := f.orch.Run(ctx, years, false)
		require.NoError(t, err)
		out, _ := summary.Outcome(2025)
		assert.Equal(t, StatusUnchanged, out.Status)
		assert.False(t, out.Mirrored)
		assert.Equal(t, []int{2025, 2025}, f.mirror.years)
	})

	t.Run("Should fail the year when the mirror cannot be read", func(t *testing.T) {
		f.mirror.getErr = errors.New("deadline exceeded")
		summary, err := f.orch.Run(ctx, years, false)
		require.NoError(t, err)
		out, _ := summary.Outcome(2025)
		assert.Equal(t, StageMirror, out.Stage())
		assert.Contains(t, out.Reason, "deadline exceeded")
	})
}

func TestRun_InvalidRange(t *testing.T) {
	f := newFixture(t, locatorFor())

	_, err := f.orch.Run(testContext(t), YearRange{From: 2026, To: 2025}, false)
	assert.Error(t, err)

	_, err = f.orch.Run(testContext(t), YearRange{From: 2000, To: 2001}, false)
	assert.Error(t, err)
}

func TestRun_OutcomesOrderedByYear(t *testing.T) {
	f := newFixture(t, locatorFor(2022, 2023, 2024))
	for _, y := range []int{2022, 2023, 2024} {
		serve(y, yearCSV(y, nil))
	}

	summary, err := f.orch.Run(testContext(t), YearRange{From: 2020, To: 2024}, false)
	require.NoError(t, err)

	var years []int
	for _, o := range summary.Outcomes {
		years = append(years, o.Year)
	}
	assert.Equal(t, []int{2020, 2021, 2022, 2023, 2024}, years)
	assert.Equal(t, Counts{Written: 3, Skipped: 2}, summary.Counts())
	assert.False(t, summary.Finished.Before(summary.Started))
}

func TestNew_RequiresStages(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestYearRange(t *testing.T) {
	assert.Equal(t, []int{2024, 2025, 2026}, YearRange{From: 2024, To: 2026}.Years())
	assert.Nil(t, YearRange{From: 2026, To: 2024}.Years())
	assert.NoError(t, YearRange{From: 2013, To: 2013}.Validate())
}
