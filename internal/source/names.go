package source

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var (
	rocYearPattern     = regexp.MustCompile(`(?:^|\D)(\d{2,3})\s*年`)
	westernYearPattern = regexp.MustCompile(`(?:^|\D)((?:19|20)\d{2})(?:\D|$)`)
)

// YearFromName extracts the Gregorian year a resource covers from its
// display name, e.g. "114年中華民國政府行政機關辦公日曆表" is 2025.
func YearFromName(name string) (int, bool) {
	if m := rocYearPattern.FindStringSubmatch(name); m != nil {
		roc, _ := strconv.Atoi(m[1])
		return roc + 1911, true
	}
	if m := westernYearPattern.FindStringSubmatch(name); m != nil {
		year, _ := strconv.Atoi(m[1])
		return year, true
	}
	return 0, false
}

// excluded reports resources that are not the plain CSV calendar,
// such as the Google Calendar import variant.
func excluded(name string) bool {
	return strings.Contains(strings.ToLower(name), "google")
}

// nameFromURL recovers a display name from a download URL's "name" query
// parameter, or its last path element.
func nameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if n := u.Query().Get("name"); n != "" {
		return n
	}
	return path.Base(u.Path)
}
