// Package serprelay implements the reverse-image-search relay consumed by
// the hint source adapter. It proxies the search provider's lens endpoint
// and, when the lens response carries an overview page token, merges in the
// follow-up AI-overview fetch before replying.
package serprelay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const defaultProviderURL = "https://serpapi.com/search.json"

// Server answers GET /search.json?url=<imageUrl>&preference=<text> within a
// bounded time budget.
type Server struct {
	httpClient  *http.Client
	providerURL string
	apiKey      string
	timeout     time.Duration
}

func New(apiKey, providerURL string, timeout time.Duration) *Server {
	if providerURL == "" {
		providerURL = defaultProviderURL
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Server{
		httpClient:  &http.Client{Timeout: timeout},
		providerURL: providerURL,
		apiKey:      apiKey,
		timeout:     timeout,
	}
}

// RegisterRoutes registers the relay route
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/search.json", s.Search)
}

func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	imageURL := r.URL.Query().Get("url")
	if imageURL == "" {
		http.Error(w, "url parameter is required", http.StatusBadRequest)
		return
	}
	preference := r.URL.Query().Get("preference")

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	merged, err := s.lookup(ctx, imageURL, preference)
	if err != nil {
		log.Error().Err(err).Str("image_url", imageURL).Msg("Relay lookup failed")
		http.Error(w, "search provider lookup failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(merged); err != nil {
		log.Error().Err(err).Msg("Failed to encode relay response")
	}
}

// lookup performs the initial lens query and, when a page token is present,
// the follow-up overview fetch. A failed follow-up keeps the lens result.
func (s *Server) lookup(ctx context.Context, imageURL, preference string) (map[string]json.RawMessage, error) {
	query := url.Values{}
	query.Set("engine", "google_lens")
	query.Set("url", imageURL)
	query.Set("api_key", s.apiKey)
	if preference != "" {
		query.Set("q", preference)
	}

	doc, err := s.fetch(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("lens query: %w", err)
	}

	token := overviewPageToken(doc)
	if token == "" {
		return doc, nil
	}

	followUp := url.Values{}
	followUp.Set("engine", "google_ai_overview")
	followUp.Set("page_token", token)
	followUp.Set("api_key", s.apiKey)

	overviewDoc, err := s.fetch(ctx, followUp)
	if err != nil {
		log.Warn().Err(err).Msg("Overview follow-up failed, returning lens result only")
		return doc, nil
	}
	if overview, ok := overviewDoc["ai_overview"]; ok {
		doc["ai_overview"] = overview
	}
	return doc, nil
}

func (s *Server) fetch(ctx context.Context, query url.Values) (map[string]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.providerURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var doc map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return doc, nil
}

// overviewPageToken extracts ai_overview.page_token from the lens response.
func overviewPageToken(doc map[string]json.RawMessage) string {
	raw, ok := doc["ai_overview"]
	if !ok {
		return ""
	}
	var overview struct {
		PageToken string `json:"page_token"`
	}
	if err := json.Unmarshal(raw, &overview); err != nil {
		return ""
	}
	return overview.PageToken
}
