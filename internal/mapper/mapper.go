// Package mapper converts role-keyed source rows into canonical calendar entries.
package mapper

import (
	"fmt"
	"iter"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"taiwan-calendar/internal/model"
)

// rocEpoch is the offset between Minguo (ROC) years and Gregorian years.
const rocEpoch = 1911

// DefaultFlags covers every flag literal observed across releases.
var DefaultFlags = model.FlagMapping{
	"0":     false,
	"1":     true,
	"2":     true,
	"是":     true,
	"否":     false,
	"放假":    true,
	"上班":    false,
	"true":  true,
	"false": false,
	"y":     true,
	"n":     false,
}

var weekdayLabels = [...]string{"日", "一", "二", "三", "四", "五", "六"}

var (
	compactDate   = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	separatedDate = regexp.MustCompile(`^(\d{2,4})[/\-.](\d{1,2})[/\-.](\d{1,2})$`)
	chineseDate   = regexp.MustCompile(`^(\d{2,4})年(\d{1,2})月(\d{1,2})日$`)
)

// WeekdayLabel returns the single-character Chinese weekday for t.
func WeekdayLabel(t time.Time) string {
	return weekdayLabels[t.Weekday()]
}

// ParseDate accepts the date forms seen in the source files: 2024/1/1,
// 20240101, 2024-01-01, 2024年1月1日, ROC years such as 113/1/1, and any of
// those followed by a time-of-day suffix.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}

	var m []string
	switch {
	case compactDate.MatchString(s):
		m = compactDate.FindStringSubmatch(s)
	case separatedDate.MatchString(s):
		m = separatedDate.FindStringSubmatch(s)
	case chineseDate.MatchString(s):
		m = chineseDate.FindStringSubmatch(s)
	default:
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if len(m[1]) < 4 {
		year += rocEpoch
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("date %q does not exist", s)
	}
	return t, nil
}

// ParseFlag maps a raw flag with flags, falling back to a case-insensitive
// match. Keys that differ only in case are tried in sorted order.
func ParseFlag(raw string, flags model.FlagMapping) (bool, bool) {
	v := strings.TrimSpace(raw)
	if holiday, ok := flags[v]; ok {
		return holiday, true
	}
	for _, k := range slices.Sorted(maps.Keys(flags)) {
		if strings.EqualFold(k, v) {
			return flags[k], true
		}
	}
	return false, false
}

// Map converts one row. The weekday always comes from the parsed date; any
// week column in the source is ignored.
func Map(row model.RawRow, flags model.FlagMapping) (model.CalendarEntry, error) {
	if flags == nil {
		flags = DefaultFlags
	}

	rawDate, _ := row.Get(model.RoleDate)
	t, err := ParseDate(rawDate)
	if err != nil {
		return model.CalendarEntry{}, &DateParseError{Line: row.Line, Value: rawDate, Err: err}
	}

	rawFlag, _ := row.Get(model.RoleHoliday)
	holiday, ok := ParseFlag(rawFlag, flags)
	if !ok {
		return model.CalendarEntry{}, &FlagParseError{Line: row.Line, Value: rawFlag}
	}

	desc, _ := row.Get(model.RoleDescription)

	return model.CalendarEntry{
		Date:        t.Format(model.DateLayout),
		Week:        WeekdayLabel(t),
		IsHoliday:   holiday,
		Description: strings.TrimSpace(desc),
	}, nil
}

// MapRows maps every row, stopping at the first read or mapping error.
func MapRows(rows iter.Seq2[model.RawRow, error], flags model.FlagMapping) ([]model.CalendarEntry, error) {
	var entries []model.CalendarEntry
	for row, err := range rows {
		if err != nil {
			return nil, err
		}
		entry, err := Map(row, flags)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
