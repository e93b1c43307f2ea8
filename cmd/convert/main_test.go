package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taiwan-calendar/internal/config"
	"taiwan-calendar/internal/logger"
	"taiwan-calendar/internal/mapper"
	"taiwan-calendar/internal/publish"
)

const sample = "西元日期,星期,是否放假,備註\n20170101,日,2,開國紀念日\n20170102,一,2,補假\n"

func TestConvert_Partial(t *testing.T) {
	out, err := convert([]byte(sample), 2017, true, logger.Discard())
	require.NoError(t, err)

	entries, err := publish.Decode(out)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2017-01-01", entries[0].Date)
	assert.Equal(t, "日", entries[0].Week)
	assert.True(t, entries[0].IsHoliday)
	assert.Equal(t, "開國紀念日", entries[0].Description)
	assert.True(t, strings.HasSuffix(string(out), "]\n"))
}

func TestConvert_RequiresFullYear(t *testing.T) {
	_, err := convert([]byte(sample), 2017, false, logger.Discard())

	var covErr *mapper.CoverageError
	require.ErrorAs(t, err, &covErr)
	assert.Len(t, covErr.Missing, 363)
}

func TestCommand_ReadsStdin(t *testing.T) {
	cmd := newCommand(config.New(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
	var stdout bytes.Buffer
	cmd.SetIn(strings.NewReader(sample))
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--year", "2017", "--partial", "--log-level", "error"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), `"date": "2017-01-02"`)
}

func TestCommand_RequiresYear(t *testing.T) {
	cmd := newCommand(config.New(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
	cmd.SetIn(strings.NewReader(sample))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	assert.Error(t, cmd.Execute())
}
