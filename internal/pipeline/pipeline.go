// Package pipeline drives locate, fetch, normalize, map and publish for a
// range of years and reports a per-year outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"taiwan-calendar/internal/logger"
	"taiwan-calendar/internal/mapper"
	"taiwan-calendar/internal/model"
	"taiwan-calendar/internal/normalize"
	"taiwan-calendar/internal/publish"
	"taiwan-calendar/internal/source"
	"taiwan-calendar/internal/store"
)

// Fetcher downloads the bytes of a located resource.
type Fetcher interface {
	Fetch(ctx context.Context, ref model.ResourceRef) ([]byte, error)
}

// Mirror receives every year whose artifact was rewritten, and every
// unchanged year whose mirrored entries have drifted from the artifact.
type Mirror interface {
	ReplaceEntriesForYear(ctx context.Context, year int, entries []model.CalendarEntry, batchID string) error
	GetYear(ctx context.Context, year int) ([]model.CalendarEntry, error)
}

// Options wires the stages of an Orchestrator. Raw and Mirror are optional.
type Options struct {
	Locator     source.Locator
	Fetcher     Fetcher
	Normalizer  *normalize.Normalizer
	Writer      *publish.Writer
	Raw         store.Store
	Mirror      Mirror
	Concurrency int
	Timeout     time.Duration
}

// Orchestrator runs the per-year pipeline.
type Orchestrator struct {
	opts Options
	now  func() time.Time
}

// New creates an Orchestrator. Locator, Fetcher and Writer are required.
func New(opts Options) (*Orchestrator, error) {
	if opts.Locator == nil || opts.Fetcher == nil || opts.Writer == nil {
		return nil, errors.New("pipeline: locator, fetcher and writer are required")
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New(nil)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Orchestrator{opts: opts, now: time.Now}, nil
}

// Run processes every year of r. The returned error is non-nil only for an
// invalid range; per-year failures are reported in the summary.
func (o *Orchestrator) Run(ctx context.Context, r YearRange, force bool) (RunSummary, error) {
	if err := r.Validate(); err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{ID: uuid.NewString(), Started: o.now()}
	log := logger.FromContext(ctx).With("run", summary.ID)
	ctx = logger.ContextWithLogger(ctx, log)

	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	log.Info("run started", "from", r.From, "to", r.To, "force", force, "locator", o.opts.Locator.Name())

	years := r.Years()
	outcomes := make([]Outcome, len(years))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)
	for i, year := range years {
		g.Go(func() error {
			outcomes[i] = o.RunYear(gctx, year, force, summary.ID)
			return nil
		})
	}
	_ = g.Wait()

	summary.Outcomes = outcomes
	summary.Finished = o.now()

	c := summary.Counts()
	log.Info("run finished",
		"written", c.Written, "unchanged", c.Unchanged, "skipped", c.Skipped, "failed", c.Failed,
		"elapsed", summary.Elapsed().Round(time.Millisecond))
	return summary, nil
}

// RunYear processes a single year. It never panics on upstream data and
// always returns an outcome for year.
func (o *Orchestrator) RunYear(ctx context.Context, year int, force bool, batchID string) Outcome {
	log := logger.FromContext(ctx).With("year", year)
	ctx = logger.ContextWithLogger(ctx, log)

	fail := func(stage Stage, err error) Outcome {
		log.Error("year failed", "stage", stage, "err", err)
		yerr := &YearError{Year: year, Stage: stage, Err: err}
		return Outcome{Year: year, Status: StatusFailed, Err: yerr, Reason: yerr.Error()}
	}

	ref, err := o.opts.Locator.Locate(ctx, year)
	if errors.Is(err, source.ErrNotFound) {
		log.Info("no resource published, skipping")
		return Outcome{Year: year, Status: StatusSkipped}
	}
	if err != nil {
		return fail(StageLocate, err)
	}
	log.Debug("resource located", "name", ref.Name, "url", ref.URL)

	data, err := o.opts.Fetcher.Fetch(ctx, ref)
	if err != nil {
		return fail(StageFetch, err)
	}

	if o.opts.Raw != nil {
		if err := o.opts.Raw.SetWithExtension(ctx, publish.Key(year), ".csv", data); err != nil {
			return fail(StageRaw, err)
		}
	}

	table, err := o.opts.Normalizer.Normalize(data, year)
	if err != nil {
		return fail(StageNormalize, err)
	}
	log.Debug("source normalized", "schema", table.Schema.Name, "encoding", table.Encoding)

	entries, err := mapper.MapRows(table.Rows(), table.Flags(mapper.DefaultFlags))
	if err != nil {
		return fail(StageMap, err)
	}

	dataset, err := mapper.BuildYear(year, entries)
	if err != nil {
		return fail(StageBuild, err)
	}

	res, err := o.opts.Writer.Write(ctx, year, dataset.Entries, force)
	if err != nil {
		return fail(StageWrite, err)
	}

	out := Outcome{Year: year, Status: StatusUnchanged, Resource: &ref, Schema: table.Schema.Name, Entries: len(dataset.Entries)}
	if res.Written {
		out.Status = StatusWritten
	}
	if o.opts.Mirror == nil {
		return out
	}

	if !res.Written {
		mirrored, err := o.opts.Mirror.GetYear(ctx, year)
		if err != nil {
			return fail(StageMirror, fmt.Errorf("reading mirrored entries: %w", err))
		}
		if publish.Equal(mirrored, dataset.Entries) {
			return out
		}
		log.Info("mirror out of date, replacing", "mirrored", len(mirrored), "entries", len(dataset.Entries))
	}

	if err := o.opts.Mirror.ReplaceEntriesForYear(ctx, year, dataset.Entries, batchID); err != nil {
		if res.Written {
			err = fmt.Errorf("artifact written but mirror failed: %w", err)
		}
		return fail(StageMirror, err)
	}
	out.Mirrored = true
	return out
}
