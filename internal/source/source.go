// Package source locates the yearly calendar resources published on the
// government open-data portal.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"taiwan-calendar/internal/logger"
	"taiwan-calendar/internal/model"
)

const (
	// DatasetID is the portal identifier of the office calendar dataset.
	DatasetID = "14718"
	// DefaultDatasetURL is the human-facing dataset page.
	DefaultDatasetURL = "https://data.gov.tw/dataset/" + DatasetID
	// DefaultIndexURL is the machine-readable dataset index.
	DefaultIndexURL = "https://data.gov.tw/api/v2/rest/dataset/" + DatasetID

	// MinYear is the first year the dataset covers.
	MinYear = 2013

	// UserAgent is sent on every portal request; the portal rejects bare clients.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ErrNotFound marks a year that has no published resource. It is an
// expected condition for future years, not a failure.
var ErrNotFound = errors.New("no published resource")

// NotFoundError carries the year that could not be located.
type NotFoundError struct {
	Year int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%d: %v", e.Year, ErrNotFound)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Locator resolves a year to the resource holding its calendar.
type Locator interface {
	// Name identifies the locator in logs.
	Name() string

	// Locate returns the resource for year, or an error matching ErrNotFound.
	Locate(ctx context.Context, year int) (model.ResourceRef, error)
}

// Lister enumerates every yearly resource a source currently publishes.
type Lister interface {
	Name() string
	List(ctx context.Context) ([]model.ResourceRef, error)
}

// YearBounds returns the range of years the dataset can cover at now:
// MinYear through next year, which is published in advance.
func YearBounds(now time.Time) (int, int) {
	return MinYear, now.Year() + 1
}

// ListLocator answers Locate from a single listing, fetched once and reused
// for the locator's lifetime.
type ListLocator struct {
	lister Lister
	now    func() time.Time

	mu   sync.Mutex
	refs []model.ResourceRef
}

// NewListLocator creates a Locator backed by lister.
func NewListLocator(lister Lister) *ListLocator {
	return &ListLocator{lister: lister, now: time.Now}
}

func (l *ListLocator) Name() string {
	return l.lister.Name()
}

func (l *ListLocator) Locate(ctx context.Context, year int) (model.ResourceRef, error) {
	lo, hi := YearBounds(l.now())
	if year < lo || year > hi {
		return model.ResourceRef{}, &NotFoundError{Year: year}
	}

	refs, err := l.listing(ctx)
	if err != nil {
		return model.ResourceRef{}, err
	}

	// Revised files are listed after the originals they replace.
	var (
		found model.ResourceRef
		ok    bool
	)
	for _, r := range refs {
		if r.Year == year {
			found, ok = r, true
		}
	}
	if !ok {
		return model.ResourceRef{}, &NotFoundError{Year: year}
	}
	return found, nil
}

func (l *ListLocator) listing(ctx context.Context) ([]model.ResourceRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refs != nil {
		return l.refs, nil
	}
	refs, err := l.lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: listing resources: %w", l.lister.Name(), err)
	}
	if refs == nil {
		refs = []model.ResourceRef{}
	}
	l.refs = refs
	return refs, nil
}

// Chain tries locators in order and returns the first resource found.
type Chain struct {
	locators []Locator
}

// NewChain creates a Chain over locators.
func NewChain(locators ...Locator) *Chain {
	return &Chain{locators: locators}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.locators))
	for i, l := range c.locators {
		names[i] = l.Name()
	}
	return strings.Join(names, ",")
}

// Locate returns the first locator's hit. A not-found answer from any
// locator whose listing succeeded is authoritative and wins over the listing
// errors of the others; the errors are returned only when no locator answered.
func (c *Chain) Locate(ctx context.Context, year int) (model.ResourceRef, error) {
	log := logger.FromContext(ctx).With("year", year, "stage", "locate")

	var (
		errs     []error
		notFound bool
	)
	for _, l := range c.locators {
		ref, err := l.Locate(ctx, year)
		if err == nil {
			return ref, nil
		}
		if errors.Is(err, ErrNotFound) {
			notFound = true
			continue
		}
		log.Warn("locator failed, trying next", "locator", l.Name(), "err", err)
		errs = append(errs, err)
	}
	if notFound || len(errs) == 0 {
		if len(errs) > 0 {
			log.Debug("year not listed, ignoring failed locators", "failed", len(errs))
		}
		return model.ResourceRef{}, &NotFoundError{Year: year}
	}
	return model.ResourceRef{}, errors.Join(errs...)
}

// Locators returns the chained locators.
func (c *Chain) Locators() []Locator {
	return c.locators
}

// fetchURL fetches the content of a URL and returns the response body as bytes.
func fetchURL(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	resp, err := get(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return data, nil
}

// fetchDocument fetches a URL and parses it as an HTML document.
func fetchDocument(ctx context.Context, client *http.Client, url string) (*goquery.Document, error) {
	resp, err := get(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

func get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching URL: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}
	return resp, nil
}
