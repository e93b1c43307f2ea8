package source

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"taiwan-calendar/internal/model"
)

// PortalLister scrapes the dataset HTML page for resource items.
type PortalLister struct {
	url    string
	client *http.Client
}

// NewPortalLister creates a lister for the dataset page at url.
func NewPortalLister(url string, client *http.Client) *PortalLister {
	if url == "" {
		url = DefaultDatasetURL
	}
	return &PortalLister{url: url, client: client}
}

func (l *PortalLister) Name() string {
	return "dataset-page"
}

func (l *PortalLister) List(ctx context.Context) ([]model.ResourceRef, error) {
	doc, err := fetchDocument(ctx, l.client, l.url)
	if err != nil {
		return nil, err
	}
	return parseResourceItems(doc, l.url), nil
}

// parseResourceItems reads the portal's "li.resource-item" entries. The
// display name is the first span outside a button whose text is not the
// bare format label.
func parseResourceItems(doc *goquery.Document, pageURL string) []model.ResourceRef {
	base, _ := url.Parse(pageURL)

	var refs []model.ResourceRef
	doc.Find("li.resource-item").Each(func(i int, item *goquery.Selection) {
		href, ok := item.Find("a[href]").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		if base != nil {
			if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
				href = u.String()
			}
		}

		var name string
		item.Find("span").EachWithBreak(func(j int, span *goquery.Selection) bool {
			if span.ParentsFiltered("button").Length() > 0 {
				return true
			}
			text := strings.TrimSpace(span.Text())
			if text != "" && !strings.EqualFold(text, "CSV") {
				name = text
				return false
			}
			return true
		})
		if name == "" {
			name = nameFromURL(href)
		}
		if excluded(name) {
			return
		}

		year, ok := YearFromName(name)
		if !ok {
			return
		}
		refs = append(refs, model.ResourceRef{
			Year:   year,
			Name:   name,
			URL:    href,
			Format: "CSV",
		})
	})
	return refs
}
