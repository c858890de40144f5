package engine

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiEngine produces guesses via the Gemini multimodal API.
type GeminiEngine struct {
	client *genai.Client
	model  string
}

func NewGeminiEngine(ctx context.Context, apiKey, model string) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiEngine{client: client, model: model}, nil
}

func (e *GeminiEngine) Name() string { return "gemini" }

func (e *GeminiEngine) Close() error { return e.client.Close() }

func (e *GeminiEngine) Infer(ctx context.Context, image []byte, hints, preference string) (*LocationGuess, error) {
	m := e.client.GenerativeModel(e.model)
	m.SetTemperature(0)
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = geminiGuessSchema

	resp, err := m.GenerateContent(ctx,
		genai.Text(buildPrompt(hints, preference)),
		genai.ImageData("jpeg", image),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini: %w: empty candidate", ErrInvalidResponse)
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("gemini: %w: non-text part", ErrInvalidResponse)
	}
	return parseGuessPayload([]byte(text))
}

// geminiGuessSchema constrains the structured response to the seven guess
// fields.
var geminiGuessSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"latitude":                {Type: genai.TypeNumber},
		"longitude":               {Type: genai.TypeNumber},
		"city":                    {Type: genai.TypeString},
		"country":                 {Type: genai.TypeString},
		"confidence":              {Type: genai.TypeNumber},
		"reasoning":               {Type: genai.TypeString},
		"visual_analysis_summary": {Type: genai.TypeString},
	},
	Required: []string{"latitude", "longitude", "confidence", "reasoning"},
}
