package hints

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"geolens/internal/cache"
)

// Cache is the subset of the redis cache used to memoize hint lookups.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Client obtains advisory reverse-image-search context for an image: it
// uploads the image to a hosting endpoint to get a public URL, then queries
// the search relay against that URL. Hints are best-effort; every failure
// degrades to an empty string.
type Client struct {
	httpClient *http.Client
	uploadURL  string
	uploadKey  string
	relayURL   string
	cache      Cache
	cacheTTL   time.Duration
}

func NewClient(uploadURL, uploadKey, relayURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		uploadURL:  uploadURL,
		uploadKey:  uploadKey,
		relayURL:   relayURL,
	}
}

// WithCache enables redis-backed memoization of hint lookups, keyed by the
// image digest and preference. Cache failures never block a lookup.
func (c *Client) WithCache(cacheStore Cache, ttl time.Duration) *Client {
	c.cache = cacheStore
	c.cacheTTL = ttl
	return c
}

// FetchHints runs the two sequential network calls and returns the hint
// narrative, or an empty string when any stage fails. Single attempt, no
// retry.
func (c *Client) FetchHints(ctx context.Context, image []byte, preference string) string {
	key := cache.HintKey(image, preference)
	if c.cache != nil {
		if data, err := c.cache.Get(ctx, key); err == nil {
			return string(data)
		}
	}

	imageURL, err := c.upload(ctx, image)
	if err != nil {
		log.Warn().Err(err).Msg("Image upload failed, proceeding without hints")
		return ""
	}

	hints, err := c.search(ctx, imageURL, preference)
	if err != nil {
		log.Warn().Err(err).Msg("Reverse image search failed, proceeding without hints")
		return ""
	}

	if c.cache != nil && hints != "" {
		if err := c.cache.Set(ctx, key, hints, c.cacheTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to cache hints")
		}
	}
	return hints
}

type uploadResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

// upload posts the image to the hosting endpoint and returns its public URL.
func (c *Client) upload(ctx context.Context, image []byte) (string, error) {
	form := url.Values{}
	form.Set("key", c.uploadKey)
	form.Set("image", base64.StdEncoding.EncodeToString(image))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload returned status %d", resp.StatusCode)
	}

	var payload uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if payload.Data.URL == "" {
		return "", fmt.Errorf("upload response missing image URL")
	}
	return payload.Data.URL, nil
}

type searchResponse struct {
	AIOverview *struct {
		References []struct {
			Snippet string `json:"snippet"`
		} `json:"references"`
	} `json:"ai_overview"`
	VisualMatches []struct {
		Title string `json:"title"`
	} `json:"visual_matches"`
}

// search queries the relay for reverse-image-search results, preferring the
// AI overview narrative and falling back to visual-match titles.
func (c *Client) search(ctx context.Context, imageURL, preference string) (string, error) {
	query := url.Values{}
	query.Set("url", imageURL)
	if preference != "" {
		query.Set("preference", preference)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.relayURL+"/search.json?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	if payload.AIOverview != nil {
		var snippets []string
		for _, ref := range payload.AIOverview.References {
			if s := strings.TrimSpace(ref.Snippet); s != "" {
				snippets = append(snippets, s)
			}
		}
		if len(snippets) > 0 {
			return strings.Join(snippets, " "), nil
		}
	}

	var titles []string
	for _, m := range payload.VisualMatches {
		if t := strings.TrimSpace(m.Title); t != "" {
			titles = append(titles, t)
		}
	}
	return strings.Join(titles, "; "), nil
}
