package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"taiwan-calendar/internal/model"
)

// BrowserLister renders the dataset page in headless Chrome before reading
// its resource items. The portal builds its resource list client-side, so
// this is the fallback when the static page has none.
type BrowserLister struct {
	url        string
	chromePath string
	wait       time.Duration
}

// NewBrowserLister creates a lister that renders url. chromePath may be empty
// to use the Chrome found on PATH.
func NewBrowserLister(url, chromePath string) *BrowserLister {
	if url == "" {
		url = DefaultDatasetURL
	}
	return &BrowserLister{url: url, chromePath: chromePath, wait: time.Second}
}

func (l *BrowserLister) Name() string {
	return "dataset-page-rendered"
}

func (l *BrowserLister) List(ctx context.Context) ([]model.ResourceRef, error) {
	html, err := l.render(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing rendered HTML: %w", err)
	}
	return parseResourceItems(doc, l.url), nil
}

func (l *BrowserLister) render(ctx context.Context) (string, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	if l.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(l.chromePath))
	}
	opts = append(opts,
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.UserAgent(UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)
	defer chromeCancel()

	var html string
	err := chromedp.Run(chromeCtx,
		chromedp.Navigate(l.url),
		chromedp.WaitVisible(`li.resource-item`, chromedp.ByQuery),
		// Let the list finish rendering
		chromedp.Sleep(l.wait),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("rendering dataset page: %w", err)
	}
	return html, nil
}
