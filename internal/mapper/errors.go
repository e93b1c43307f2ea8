package mapper

import (
	"fmt"
	"strings"
)

// DateParseError reports a date literal in none of the accepted forms.
type DateParseError struct {
	Line  int
	Value string
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("line %d: parsing date %q: %v", e.Line, e.Value, e.Err)
}

func (e *DateParseError) Unwrap() error { return e.Err }

// FlagParseError reports a holiday flag outside the known mapping.
type FlagParseError struct {
	Line  int
	Value string
}

func (e *FlagParseError) Error() string {
	return fmt.Sprintf("line %d: unknown holiday flag %q", e.Line, e.Value)
}

// CoverageError reports a year whose entries do not cover Jan 1..Dec 31 exactly once.
type CoverageError struct {
	Year       int
	Missing    []string
	Duplicates []string
	OutOfYear  []string
}

func (e *CoverageError) Error() string {
	var parts []string
	if n := len(e.Missing); n > 0 {
		parts = append(parts, fmt.Sprintf("%d missing date(s) starting %s", n, e.Missing[0]))
	}
	if n := len(e.Duplicates); n > 0 {
		parts = append(parts, fmt.Sprintf("%d duplicate date(s) starting %s", n, e.Duplicates[0]))
	}
	if n := len(e.OutOfYear); n > 0 {
		parts = append(parts, fmt.Sprintf("%d date(s) outside the year starting %s", n, e.OutOfYear[0]))
	}
	return fmt.Sprintf("year %d coverage: %s", e.Year, strings.Join(parts, "; "))
}
