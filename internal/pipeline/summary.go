package pipeline

import (
	"errors"
	"fmt"
	"time"

	"taiwan-calendar/internal/model"
	"taiwan-calendar/internal/source"
)

// Status is the result of processing one year.
type Status string

const (
	StatusWritten   Status = "written"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Stage names the pipeline step a year failed in.
type Stage string

const (
	StageLocate    Stage = "locate"
	StageFetch     Stage = "fetch"
	StageRaw       Stage = "raw"
	StageNormalize Stage = "normalize"
	StageMap       Stage = "map"
	StageBuild     Stage = "build"
	StageWrite     Stage = "write"
	StageMirror    Stage = "mirror"
)

// YearError attributes a failure to a year and stage.
type YearError struct {
	Year  int
	Stage Stage
	Err   error
}

func (e *YearError) Error() string {
	return fmt.Sprintf("%d: %s: %v", e.Year, e.Stage, e.Err)
}

func (e *YearError) Unwrap() error { return e.Err }

// YearRange is an inclusive range of Gregorian years.
type YearRange struct {
	From int
	To   int
}

// Validate rejects reversed ranges and years before the first published calendar.
func (r YearRange) Validate() error {
	if r.From > r.To {
		return fmt.Errorf("invalid year range %d-%d: from is after to", r.From, r.To)
	}
	if r.From < source.MinYear {
		return fmt.Errorf("invalid year range %d-%d: calendars start in %d", r.From, r.To, source.MinYear)
	}
	return nil
}

// Years lists the years of r in ascending order.
func (r YearRange) Years() []int {
	if r.From > r.To {
		return nil
	}
	years := make([]int, 0, r.To-r.From+1)
	for y := r.From; y <= r.To; y++ {
		years = append(years, y)
	}
	return years
}

// Outcome is the result for one year.
type Outcome struct {
	Year     int                `json:"year"`
	Status   Status             `json:"status"`
	Resource *model.ResourceRef `json:"resource,omitempty"`
	Schema   string             `json:"schema,omitempty"`
	Entries  int                `json:"entries,omitempty"`
	Mirrored bool               `json:"mirrored,omitempty"`
	Err      error              `json:"-"`
	Reason   string             `json:"reason,omitempty"`
}

// Stage returns the failing stage, or "" when the year did not fail.
func (o Outcome) Stage() Stage {
	var ye *YearError
	if errors.As(o.Err, &ye) {
		return ye.Stage
	}
	return ""
}

// Counts tallies outcomes by status.
type Counts struct {
	Written   int `json:"written"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// RunSummary reports every year of a run in ascending year order.
type RunSummary struct {
	ID       string    `json:"id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Outcomes []Outcome `json:"outcomes"`
}

// Counts tallies the summary's outcomes.
func (s RunSummary) Counts() Counts {
	var c Counts
	for _, o := range s.Outcomes {
		switch o.Status {
		case StatusWritten:
			c.Written++
		case StatusUnchanged:
			c.Unchanged++
		case StatusSkipped:
			c.Skipped++
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

// OK reports whether no year failed.
func (s RunSummary) OK() bool {
	return s.Counts().Failed == 0
}

// Elapsed is the wall time of the run.
func (s RunSummary) Elapsed() time.Duration {
	return s.Finished.Sub(s.Started)
}

// Outcome returns the outcome for year.
func (s RunSummary) Outcome(year int) (Outcome, bool) {
	for _, o := range s.Outcomes {
		if o.Year == year {
			return o, true
		}
	}
	return Outcome{}, false
}

// Failures returns the errors of all failed years.
func (s RunSummary) Failures() []error {
	var errs []error
	for _, o := range s.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}
