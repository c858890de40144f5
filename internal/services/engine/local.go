package engine

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"geolens/internal/dataset"
)

// Classifier produces object/category labels for an image.
type Classifier interface {
	Labels(ctx context.Context, image []byte) ([]string, error)
}

// TextRecognizer extracts free text from an image.
type TextRecognizer interface {
	Text(ctx context.Context, image []byte) (string, error)
}

const (
	textMatchConfidence       = 0.7
	classifierMatchConfidence = 0.4
	noMatchConfidence         = 0.2
)

// LocalEngine is the on-device fallback: it runs a classifier and a text
// recognizer over the image and resolves the recognized terms against a
// static location dataset. Its guess is always structurally valid; it
// errors only when both recognizers fail to run.
type LocalEngine struct {
	classifier Classifier
	reader     TextRecognizer
	data       dataset.Source
}

func NewLocalEngine(classifier Classifier, reader TextRecognizer, data dataset.Source) *LocalEngine {
	return &LocalEngine{
		classifier: classifier,
		reader:     reader,
		data:       data,
	}
}

func (e *LocalEngine) Name() string { return "local" }

// Infer ignores hints and preference; the local pass works from the image
// alone.
func (e *LocalEngine) Infer(ctx context.Context, image []byte, _, _ string) (*LocationGuess, error) {
	var (
		labels   []string
		text     string
		labelErr error
		textErr  error
	)

	// The recognizers share no state and both gate the matching step, so
	// they run concurrently and are joined before matching.
	var g errgroup.Group
	g.Go(func() error {
		labels, labelErr = e.classifier.Labels(ctx, image)
		return nil
	})
	g.Go(func() error {
		text, textErr = e.reader.Text(ctx, image)
		return nil
	})
	_ = g.Wait()

	if labelErr != nil && textErr != nil {
		return nil, fmt.Errorf("both recognizers failed: classifier: %v; text: %v", labelErr, textErr)
	}
	if labelErr != nil {
		log.Warn().Err(labelErr).Msg("Classifier failed, continuing with text only")
		labels = nil
	}
	if textErr != nil {
		log.Warn().Err(textErr).Msg("Text recognizer failed, continuing with labels only")
		text = ""
	}

	candidates := candidateTerms(text, labels)

	ds, err := e.data.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Dataset unavailable, returning default guess")
		return e.defaultGuess(candidates), nil
	}

	for _, c := range candidates {
		entry, ok := ds.Lookup(c.term)
		if !ok {
			continue
		}
		confidence := classifierMatchConfidence
		origin := "object recognition"
		if c.fromText {
			confidence = textMatchConfidence
			origin = "recognized text"
		}
		reasoning := entry.Reasoning
		if reasoning == "" {
			reasoning = fmt.Sprintf("Matched %q against the local location dataset.", c.term)
		}
		return &LocationGuess{
			Latitude:              entry.Lat,
			Longitude:             entry.Lng,
			City:                  entry.City,
			Country:               entry.Country,
			Confidence:            confidence,
			Reasoning:             reasoning,
			VisualAnalysisSummary: fmt.Sprintf("Local analysis matched %q via %s. Candidates: %s.", c.term, origin, joinTerms(candidates)),
		}, nil
	}

	return e.defaultGuess(candidates), nil
}

// defaultGuess is the fixed low-confidence terminal guess used when no
// candidate term matches or the dataset cannot be loaded. It is a valid
// result, not a failure.
func (e *LocalEngine) defaultGuess(candidates []candidate) *LocationGuess {
	summary := "Local analysis produced no candidate terms."
	if len(candidates) > 0 {
		summary = fmt.Sprintf("Local analysis candidates: %s.", joinTerms(candidates))
	}
	return &LocationGuess{
		Latitude:              0,
		Longitude:             0,
		Confidence:            noMatchConfidence,
		Reasoning:             "No recognized term matched the local location dataset.",
		VisualAnalysisSummary: summary,
	}
}

// candidate is one lowercase term with the recognizer it came from.
type candidate struct {
	term     string
	fromText bool
}

// candidateTerms merges text tokens and classifier labels into one ordered,
// deduplicated set of lowercase terms. Text tokens come first, which is what
// makes text-derived matches win over classifier-derived ones.
func candidateTerms(text string, labels []string) []candidate {
	var terms []candidate
	seen := make(map[string]bool)
	add := func(term string, fromText bool) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			return
		}
		seen[term] = true
		terms = append(terms, candidate{term: term, fromText: fromText})
	}
	for _, tok := range tokenizeText(text) {
		add(tok, true)
	}
	for _, label := range labels {
		add(label, false)
	}
	return terms
}

func joinTerms(candidates []candidate) string {
	terms := make([]string, len(candidates))
	for i, c := range candidates {
		terms[i] = c.term
	}
	return strings.Join(terms, ", ")
}

// tokenizeText filters recognized text down to alphabetic tokens longer
// than three characters, lowercased, in discovery order.
func tokenizeText(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	var tokens []string
	for _, f := range fields {
		if len([]rune(f)) > 3 {
			tokens = append(tokens, strings.ToLower(f))
		}
	}
	return tokens
}
