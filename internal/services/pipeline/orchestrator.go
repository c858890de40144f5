package pipeline

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"geolens/internal/services/engine"
)

// ErrAllEnginesExhausted is the pipeline's only fatal error. It is reached
// when every remote engine was skipped and the local fallback itself failed
// to run.
var ErrAllEnginesExhausted = errors.New("all engines exhausted")

// DefaultMinConfidence is the threshold below which an accepted guess is
// flagged low-confidence. The source material disagreed with itself on this
// value, so it is configurable rather than hardcoded.
const DefaultMinConfidence = 0.3

const (
	radiusDefault        = 1000.0
	radiusWithPreference = 500.0

	localSourcePrefix = "fallback:"
)

// Request is one image submission. Preference is an optional free-text bias
// forwarded verbatim to every engine and used for the display radius.
type Request struct {
	Image      []byte
	Preference string
}

// Display is the consumer-facing presentation policy attached to an
// accepted guess. Marker placement is confidence-driven; the radius is
// driven only by whether a preference was supplied.
type Display struct {
	LowConfidence bool    `json:"low_confidence"`
	PlaceMarker   bool    `json:"place_marker"`
	Radius        float64 `json:"radius"`
}

// Attempt records one engine invocation for the request trace.
type Attempt struct {
	Engine  string `json:"engine"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// Result is the orchestrator's output record: exactly one winning guess
// plus its display policy and the attempt trace for this request.
type Result struct {
	Guess       *engine.LocationGuess `json:"guess"`
	Display     Display               `json:"display"`
	Preference  string                `json:"preference"`
	ImageDigest string                `json:"image_digest"`
	Trace       []Attempt             `json:"trace"`
}

// HintSource produces advisory textual context for an image. It never
// fails; missing context is an empty string.
type HintSource interface {
	FetchHints(ctx context.Context, image []byte, preference string) string
}

// Orchestrator drives the ordered attempt sequence: hint source, remote
// engines in priority order, then the local fallback. The first
// structurally valid guess wins.
type Orchestrator struct {
	hints         HintSource
	remotes       []engine.Engine
	local         engine.Engine
	minConfidence float64
}

func New(hints HintSource, remotes []engine.Engine, local engine.Engine, minConfidence float64) *Orchestrator {
	if minConfidence < 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Orchestrator{
		hints:         hints,
		remotes:       remotes,
		local:         local,
		minConfidence: minConfidence,
	}
}

// Locate runs the full pipeline for one submission and returns the single
// accepted result, or ErrAllEnginesExhausted when even the local fallback
// cannot run.
func (o *Orchestrator) Locate(ctx context.Context, req Request) (*Result, error) {
	digest := fmt.Sprintf("%x", sha256.Sum256(req.Image))
	trace := make([]Attempt, 0, len(o.remotes)+2)

	var hintText string
	if o.hints != nil {
		hintText = o.hints.FetchHints(ctx, req.Image, req.Preference)
		outcome := "empty"
		if hintText != "" {
			outcome = "ok"
		}
		trace = append(trace, Attempt{Engine: "hints", Outcome: outcome})
	}

	for _, e := range o.remotes {
		guess, err := e.Infer(ctx, req.Image, hintText, req.Preference)
		if err != nil {
			log.Warn().Err(err).Str("engine", e.Name()).Msg("Engine failed, advancing to next")
			trace = append(trace, Attempt{Engine: e.Name(), Outcome: "skipped", Detail: err.Error()})
			continue
		}
		if !guess.StructurallyValid() {
			log.Warn().Str("engine", e.Name()).Msg("Engine returned structurally invalid guess, advancing to next")
			trace = append(trace, Attempt{Engine: e.Name(), Outcome: "skipped", Detail: "structurally invalid guess"})
			continue
		}
		guess.Source = e.Name()
		trace = append(trace, Attempt{Engine: e.Name(), Outcome: "accepted"})
		return o.accept(guess, req, digest, trace), nil
	}

	guess, err := o.local.Infer(ctx, req.Image, "", req.Preference)
	if err != nil {
		log.Error().Err(err).Msg("Local fallback engine failed")
		return nil, fmt.Errorf("%w: %v", ErrAllEnginesExhausted, err)
	}
	guess.Source = localSourcePrefix + o.local.Name()
	trace = append(trace, Attempt{Engine: o.local.Name(), Outcome: "accepted"})
	return o.accept(guess, req, digest, trace), nil
}

// accept stamps the invariants every consumer relies on: reasoning is never
// empty and the display policy matches confidence and preference.
func (o *Orchestrator) accept(g *engine.LocationGuess, req Request, digest string, trace []Attempt) *Result {
	if g.Reasoning == "" {
		g.Reasoning = fmt.Sprintf("The %s engine returned no reasoning for this guess.", g.Source)
	}

	low := g.Confidence < o.minConfidence
	radius := radiusDefault
	if req.Preference != "" {
		radius = radiusWithPreference
	}

	log.Info().
		Str("source", g.Source).
		Float64("confidence", g.Confidence).
		Float64("lat", g.Latitude).
		Float64("lng", g.Longitude).
		Msg("Guess accepted")

	return &Result{
		Guess: g,
		Display: Display{
			LowConfidence: low,
			PlaceMarker:   !low,
			Radius:        radius,
		},
		Preference:  req.Preference,
		ImageDigest: digest,
		Trace:       trace,
	}
}
