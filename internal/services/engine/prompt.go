package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// buildPrompt assembles the instruction shared by all remote engines. The
// confidence band for generic imagery is a calibration request to the
// upstream model; it is not enforced locally.
func buildPrompt(hints, preference string) string {
	var b strings.Builder
	b.WriteString("Analyze the attached photograph and infer where on Earth it was taken. ")
	b.WriteString("Consider architecture, vegetation, signage language, vehicles, terrain and weather. ")
	b.WriteString("If the image lacks uniquely identifying visual content, report confidence in the 0.4-0.6 band. ")
	b.WriteString("Respond with a single JSON object containing exactly these fields: ")
	b.WriteString("latitude (number), longitude (number), city (string), country (string), ")
	b.WriteString("confidence (number in [0,1]), reasoning (string), visual_analysis_summary (string).")
	if preference != "" {
		fmt.Fprintf(&b, " The user indicated a preference for %q locations; weigh it when candidates are ambiguous.", preference)
	}
	if hints != "" {
		fmt.Fprintf(&b, " Reverse image search context (advisory, may be wrong): %s", hints)
	}
	return b.String()
}

// guessPayload is the wire shape of a remote engine response. Pointer
// fields distinguish an absent coordinate from a genuine zero.
type guessPayload struct {
	Latitude              *float64 `json:"latitude"`
	Longitude             *float64 `json:"longitude"`
	City                  string   `json:"city"`
	Country               string   `json:"country"`
	Confidence            *float64 `json:"confidence"`
	Reasoning             string   `json:"reasoning"`
	VisualAnalysisSummary string   `json:"visual_analysis_summary"`
}

// parseGuessPayload decodes a model response into a LocationGuess. A guess
// missing latitude, longitude or confidence fails with ErrInvalidResponse.
func parseGuessPayload(raw []byte) (*LocationGuess, error) {
	text := stripCodeFences(strings.TrimSpace(string(raw)))

	var p guessPayload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, fmt.Errorf("%w: bad JSON: %v", ErrInvalidResponse, err)
	}
	if p.Latitude == nil || p.Longitude == nil {
		return nil, fmt.Errorf("%w: missing latitude or longitude", ErrInvalidResponse)
	}
	if p.Confidence == nil {
		return nil, fmt.Errorf("%w: missing confidence", ErrInvalidResponse)
	}

	return &LocationGuess{
		Latitude:              *p.Latitude,
		Longitude:             *p.Longitude,
		City:                  p.City,
		Country:               p.Country,
		Confidence:            *p.Confidence,
		Reasoning:             p.Reasoning,
		VisualAnalysisSummary: p.VisualAnalysisSummary,
	}, nil
}

// stripCodeFences removes a surrounding ```json ... ``` block that some
// models add despite JSON-only instructions.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i != -1 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
