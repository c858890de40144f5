package engine

import (
	"context"
	"errors"
	"math"
)

// LocationGuess is the unit of output produced by every engine. Source is
// stamped by the orchestrator, never by the engine itself.
type LocationGuess struct {
	Latitude              float64 `json:"latitude"`
	Longitude             float64 `json:"longitude"`
	City                  string  `json:"city"`
	Country               string  `json:"country"`
	Confidence            float64 `json:"confidence"`
	Reasoning             string  `json:"reasoning"`
	VisualAnalysisSummary string  `json:"visual_analysis_summary"`
	Source                string  `json:"source"`
}

// StructurallyValid reports whether the guess carries finite, in-range
// coordinates and a confidence within [0,1]. An invalid guess is treated
// the same as an engine failure.
func (g *LocationGuess) StructurallyValid() bool {
	if g == nil {
		return false
	}
	if math.IsNaN(g.Latitude) || math.IsInf(g.Latitude, 0) {
		return false
	}
	if math.IsNaN(g.Longitude) || math.IsInf(g.Longitude, 0) {
		return false
	}
	if g.Latitude < -90 || g.Latitude > 90 {
		return false
	}
	if g.Longitude < -180 || g.Longitude > 180 {
		return false
	}
	if math.IsNaN(g.Confidence) || g.Confidence < 0 || g.Confidence > 1 {
		return false
	}
	return true
}

// Engine is any inference backend able to produce a location guess for an
// image. Hints and preference are advisory free text and may be empty.
type Engine interface {
	Name() string
	Infer(ctx context.Context, image []byte, hints, preference string) (*LocationGuess, error)
}

// ErrInvalidResponse marks a backend response that is missing required
// guess fields. The orchestrator treats it as a skip, never as fatal.
var ErrInvalidResponse = errors.New("engine returned an invalid response")
