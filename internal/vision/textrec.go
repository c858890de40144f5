package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TextRecognizerClient calls a local OCR sidecar. The sidecar is expected
// to handle multiple scripts; the returned text is free-form.
type TextRecognizerClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewTextRecognizerClient(baseURL string) *TextRecognizerClient {
	return &TextRecognizerClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

type recognizeResponse struct {
	Text string `json:"text"`
}

// Text runs text recognition over the image.
func (c *TextRecognizerClient) Text(ctx context.Context, image []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recognize", bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("build recognize request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecognizer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: recognize returned status %d", ErrRecognizer, resp.StatusCode)
	}

	var payload recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecognizer, err)
	}
	return payload.Text, nil
}
