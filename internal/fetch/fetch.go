// Package fetch downloads calendar resources with a bounded retry policy.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"taiwan-calendar/internal/logger"
	"taiwan-calendar/internal/model"
	"taiwan-calendar/internal/source"
)

const (
	defaultAttempts    = 3
	defaultTimeout     = 60 * time.Second
	defaultBackoffBase = 500 * time.Millisecond
	defaultBackoffMax  = 10 * time.Second

	// defaultMaxBodySize bounds a single download; yearly files are a few tens of KB.
	defaultMaxBodySize = 16 << 20
)

// ErrTooLarge reports a response body over the configured limit.
var ErrTooLarge = errors.New("response too large")

// TransientFetchError is a failure worth retrying: network errors, timeouts,
// throttling and server errors.
type TransientFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: transient status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// PermanentFetchError is a definitive failure such as 404 or 410, or a body
// no retry can fix.
type PermanentFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *PermanentFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetching %s: status %d", e.URL, e.StatusCode)
}

func (e *PermanentFetchError) Unwrap() error { return e.Err }

// Config tunes a Fetcher. Zero values select defaults.
type Config struct {
	Attempts    int
	Timeout     time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
	MaxBodySize int64
	Client      *http.Client
}

// Fetcher downloads resource bytes. It never writes to disk.
type Fetcher struct {
	client      *http.Client
	attempts    int
	timeout     time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration
	maxBodySize int64
}

// New creates a Fetcher from cfg.
func New(cfg Config) *Fetcher {
	f := &Fetcher{
		client:      cfg.Client,
		attempts:    cfg.Attempts,
		timeout:     cfg.Timeout,
		backoffBase: cfg.BackoffBase,
		backoffMax:  cfg.BackoffMax,
		maxBodySize: cfg.MaxBodySize,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.attempts <= 0 || f.attempts > 100 {
		f.attempts = defaultAttempts
	}
	if f.timeout <= 0 {
		f.timeout = defaultTimeout
	}
	if f.backoffBase <= 0 {
		f.backoffBase = defaultBackoffBase
	}
	if f.backoffMax <= 0 {
		f.backoffMax = defaultBackoffMax
	}
	if f.maxBodySize <= 0 {
		f.maxBodySize = defaultMaxBodySize
	}
	return f
}

// Fetch downloads ref. Transient failures are retried up to the configured
// number of attempts; permanent failures return immediately.
func (f *Fetcher) Fetch(ctx context.Context, ref model.ResourceRef) ([]byte, error) {
	log := logger.FromContext(ctx).With("year", ref.Year, "stage", "fetch")

	backoff := retry.NewExponential(f.backoffBase)
	backoff = retry.WithCappedDuration(f.backoffMax, backoff)
	backoff = retry.WithMaxRetries(uint64(f.attempts-1), backoff)

	attempt := 0
	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		data, err := f.once(ctx, ref.URL)
		if err == nil {
			body = data
			return nil
		}
		var transient *TransientFetchError
		if errors.As(err, &transient) {
			log.Warn("fetch attempt failed", "attempt", attempt, "of", f.attempts, "err", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Debug("fetched", "url", ref.URL, "bytes", len(body), "attempts", attempt)
	return body, nil
}

func (f *Fetcher) once(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", source.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransientFetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(url, resp.StatusCode); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, &TransientFetchError{URL: url, Err: fmt.Errorf("reading response: %w", err)}
	}
	if int64(len(data)) > f.maxBodySize {
		return nil, &PermanentFetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: over %d bytes", ErrTooLarge, f.maxBodySize)}
	}
	if len(data) == 0 {
		// The portal's file conversion endpoint sometimes answers 200 with no body.
		return nil, &TransientFetchError{URL: url, Err: errors.New("empty response body")}
	}
	return data, nil
}

func classifyStatus(url string, code int) error {
	switch {
	case code >= 200 && code <= 299:
		return nil
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return &TransientFetchError{URL: url, StatusCode: code}
	default:
		return &PermanentFetchError{URL: url, StatusCode: code}
	}
}
