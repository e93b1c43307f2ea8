package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"taiwan-calendar/internal/model"
)

// taipei is the portal's timestamp zone. A fixed offset avoids depending on tzdata.
var taipei = time.FixedZone("CST", 8*60*60)

// datasetIndex is the subset of the portal's dataset API response we use.
type datasetIndex struct {
	Success bool `json:"success"`
	Result  struct {
		Identifier   string `json:"identifier"`
		Title        string `json:"title"`
		Distribution []struct {
			ResourceID          string `json:"resourceID"`
			ResourceDescription string `json:"resourceDescription"`
			ResourceFormat      string `json:"resourceFormat"`
			ResourceDownloadURL string `json:"resourceDownloadUrl"`
			ResourceModified    string `json:"resourceModified"`
		} `json:"distribution"`
	} `json:"result"`
}

// IndexLister lists resources through the portal's dataset API.
type IndexLister struct {
	url    string
	client *http.Client
}

// NewIndexLister creates a lister for the dataset API at url.
func NewIndexLister(url string, client *http.Client) *IndexLister {
	if url == "" {
		url = DefaultIndexURL
	}
	return &IndexLister{url: url, client: client}
}

func (l *IndexLister) Name() string {
	return "dataset-index"
}

func (l *IndexLister) List(ctx context.Context) ([]model.ResourceRef, error) {
	data, err := fetchURL(ctx, l.client, l.url)
	if err != nil {
		return nil, err
	}
	return parseIndex(data)
}

func parseIndex(data []byte) ([]model.ResourceRef, error) {
	var idx datasetIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decoding dataset index: %w", err)
	}
	if !idx.Success {
		return nil, fmt.Errorf("dataset index reported failure")
	}

	var refs []model.ResourceRef
	for _, d := range idx.Result.Distribution {
		name := strings.TrimSpace(d.ResourceDescription)
		if name == "" {
			name = nameFromURL(d.ResourceDownloadURL)
		}
		if d.ResourceDownloadURL == "" || excluded(name) {
			continue
		}
		if d.ResourceFormat != "" && !strings.EqualFold(d.ResourceFormat, "csv") {
			continue
		}
		year, ok := YearFromName(name)
		if !ok {
			continue
		}

		ref := model.ResourceRef{
			Year:   year,
			Name:   name,
			URL:    d.ResourceDownloadURL,
			Format: strings.ToUpper(d.ResourceFormat),
		}
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", d.ResourceModified, taipei); err == nil {
			ref.Modified = t
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
