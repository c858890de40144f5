package engine

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// OpenAIEngine produces guesses via the OpenAI vision chat API.
type OpenAIEngine struct {
	client openai.Client
	model  string
}

// NewOpenAIEngine creates an engine backed by the OpenAI API. Extra request
// options (base URL overrides in tests) are passed through to the client.
func NewOpenAIEngine(apiKey, model string, opts ...option.RequestOption) (*OpenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIEngine{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (e *OpenAIEngine) Name() string { return "openai" }

func (e *OpenAIEngine) Infer(ctx context.Context, image []byte, hints, preference string) (*LocationGuess, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(buildPrompt(hints, preference)),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL:    dataURL,
					Detail: "high",
				}),
			}),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "location_guess",
					Strict: openai.Bool(true),
					Schema: openaiGuessSchema,
				},
			},
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: %w: empty choices", ErrInvalidResponse)
	}
	return parseGuessPayload([]byte(resp.Choices[0].Message.Content))
}

var openaiGuessSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"latitude":                map[string]any{"type": "number"},
		"longitude":               map[string]any{"type": "number"},
		"city":                    map[string]any{"type": "string"},
		"country":                 map[string]any{"type": "string"},
		"confidence":              map[string]any{"type": "number"},
		"reasoning":               map[string]any{"type": "string"},
		"visual_analysis_summary": map[string]any{"type": "string"},
	},
	"required": []string{
		"latitude", "longitude", "city", "country",
		"confidence", "reasoning", "visual_analysis_summary",
	},
	"additionalProperties": false,
}
