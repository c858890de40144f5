package hints

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, uploadStatus int, uploadBody string, searchStatus int, searchBody string) (*Client, *int) {
	t.Helper()
	searchCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.NotEmpty(t, r.FormValue("image"))
		w.WriteHeader(uploadStatus)
		w.Write([]byte(uploadBody))
	})
	mux.HandleFunc("/search.json", func(w http.ResponseWriter, r *http.Request) {
		searchCalls++
		assert.Equal(t, "https://img.test/1.jpg", r.URL.Query().Get("url"))
		w.WriteHeader(searchStatus)
		w.Write([]byte(searchBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &Client{
		httpClient: srv.Client(),
		uploadURL:  srv.URL + "/upload",
		uploadKey:  "test-key",
		relayURL:   srv.URL,
	}, &searchCalls
}

const uploadOK = `{"data":{"url":"https://img.test/1.jpg"}}`

func TestFetchHintsPrefersAIOverview(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, uploadOK, http.StatusOK,
		`{"ai_overview":{"references":[{"snippet":"A pagoda in northern Vietnam."},{"snippet":"Likely Hanoi."}]},
		  "visual_matches":[{"title":"ignored title"}]}`)

	hints := c.FetchHints(context.Background(), []byte("img"), "urban")
	assert.Equal(t, "A pagoda in northern Vietnam. Likely Hanoi.", hints)
}

func TestFetchHintsFallsBackToVisualMatches(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, uploadOK, http.StatusOK,
		`{"visual_matches":[{"title":"Tran Quoc Pagoda"},{"title":"West Lake Hanoi"}]}`)

	hints := c.FetchHints(context.Background(), []byte("img"), "")
	assert.Equal(t, "Tran Quoc Pagoda; West Lake Hanoi", hints)
}

func TestFetchHintsEmptyOnUploadFailure(t *testing.T) {
	c, searchCalls := newTestClient(t, http.StatusBadGateway, "", http.StatusOK, `{}`)

	hints := c.FetchHints(context.Background(), []byte("img"), "")
	assert.Empty(t, hints)
	assert.Zero(t, *searchCalls, "search must not run when the upload fails")
}

func TestFetchHintsEmptyOnSearchFailure(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, uploadOK, http.StatusInternalServerError, "")

	hints := c.FetchHints(context.Background(), []byte("img"), "")
	assert.Empty(t, hints)
}

type mapCache struct {
	data map[string][]byte
	sets int
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("key not found")
}

func (m *mapCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.sets++
	m.data[key] = []byte(value.(string))
	return nil
}

func TestFetchHintsUsesCache(t *testing.T) {
	c, searchCalls := newTestClient(t, http.StatusOK, uploadOK, http.StatusOK,
		`{"visual_matches":[{"title":"Tran Quoc Pagoda"}]}`)
	store := &mapCache{data: make(map[string][]byte)}
	c.WithCache(store, time.Hour)

	first := c.FetchHints(context.Background(), []byte("img"), "urban")
	assert.Equal(t, "Tran Quoc Pagoda", first)
	assert.Equal(t, 1, store.sets)

	second := c.FetchHints(context.Background(), []byte("img"), "urban")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, *searchCalls, "second lookup must be served from cache")
}
