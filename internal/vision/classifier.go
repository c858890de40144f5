package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrRecognizer is returned when a local recognizer sidecar call fails.
var ErrRecognizer = errors.New("recognizer request failed")

// ClassifierClient calls a local image-classification sidecar and returns
// the predicted object/category labels.
type ClassifierClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewClassifierClient(baseURL string) *ClassifierClient {
	return &ClassifierClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

type classifyResponse struct {
	Predictions []struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	} `json:"predictions"`
}

// Labels classifies the image and returns labels in descending score order,
// as produced by the sidecar.
func (c *ClassifierClient) Labels(ctx context.Context, image []byte) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecognizer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: classify returned status %d", ErrRecognizer, resp.StatusCode)
	}

	var payload classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecognizer, err)
	}

	labels := make([]string, 0, len(payload.Predictions))
	for _, p := range payload.Predictions {
		labels = append(labels, p.Label)
	}
	return labels, nil
}
