package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Entry describes one known location keyed by a lowercase term.
type Entry struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Reasoning string  `json:"reasoning"`
}

// Dataset maps lowercase terms to known locations. It is read-only after
// load and safe for unsynchronized concurrent reads.
type Dataset map[string]Entry

// Lookup returns the entry for a lowercase term, if present.
func (d Dataset) Lookup(term string) (Entry, bool) {
	e, ok := d[term]
	return e, ok
}

// Source provides the term dataset for a single analysis.
type Source interface {
	Load(ctx context.Context) (Dataset, error)
}

// Loader fetches the static dataset file over HTTP. The fetch is uncached
// and performed once per analysis.
type Loader struct {
	httpClient *http.Client
	url        string
}

func NewLoader(url string) *Loader {
	return &Loader{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        url,
	}
}

func (l *Loader) Load(ctx context.Context) (Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build dataset request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dataset fetch returned status %d", resp.StatusCode)
	}

	var ds Dataset
	if err := json.NewDecoder(resp.Body).Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	// Keys are lowercase by contract; candidate terms are always lowercase.
	normalized := make(Dataset, len(ds))
	for k, v := range ds {
		normalized[strings.ToLower(k)] = v
	}
	return normalized, nil
}
