package model

import "time"

// DateLayout is the ISO 8601 calendar date layout used for every published date.
const DateLayout = "2006-01-02"

// CalendarEntry represents a single day of the government office calendar.
type CalendarEntry struct {
	Date        string `json:"date"`
	Week        string `json:"week"`
	IsHoliday   bool   `json:"isHoliday"`
	Description string `json:"description"`
}

// Time parses the entry date. Entries produced by the mapper always parse.
func (e CalendarEntry) Time() (time.Time, error) {
	return time.Parse(DateLayout, e.Date)
}

// YearDataset is the complete, date-ordered calendar for one year.
type YearDataset struct {
	Year    int
	Entries []CalendarEntry
}

// Role is the logical meaning of a source column, independent of its header text.
type Role string

const (
	RoleDate        Role = "date"
	RoleWeek        Role = "week"
	RoleHoliday     Role = "holiday"
	RoleDescription Role = "description"
)

// Roles lists every role in the order columns are reported in diagnostics.
var Roles = []Role{RoleDate, RoleWeek, RoleHoliday, RoleDescription}

// RawRow is one source row with its cells keyed by role.
type RawRow struct {
	Line   int
	Values map[Role]string
}

// Get returns the raw value for a role and whether the source had that column.
func (r RawRow) Get(role Role) (string, bool) {
	v, ok := r.Values[role]
	return v, ok
}

// ResourceRef identifies a fetchable yearly calendar file.
type ResourceRef struct {
	Year     int       `json:"year"`
	Name     string    `json:"name"`
	URL      string    `json:"url"`
	Format   string    `json:"format,omitempty"`
	Modified time.Time `json:"modified,omitzero"`
}

// FlagMapping maps a literal holiday-flag value to whether the day is a holiday.
// Keys are compared after trimming surrounding whitespace.
type FlagMapping map[string]bool
