package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geolens/internal/dataset"
)

type classifierFunc func(ctx context.Context, image []byte) ([]string, error)

func (f classifierFunc) Labels(ctx context.Context, image []byte) ([]string, error) {
	return f(ctx, image)
}

type textFunc func(ctx context.Context, image []byte) (string, error)

func (f textFunc) Text(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}

type datasetFunc func(ctx context.Context) (dataset.Dataset, error)

func (f datasetFunc) Load(ctx context.Context) (dataset.Dataset, error) {
	return f(ctx)
}

func fixedDataset(ds dataset.Dataset) datasetFunc {
	return func(context.Context) (dataset.Dataset, error) { return ds, nil }
}

var testDataset = dataset.Dataset{
	"hanoi":    {Lat: 21.0285, Lng: 105.8542, City: "Hanoi", Country: "Vietnam", Reasoning: "Capital of Vietnam."},
	"temple":   {Lat: 13.4125, Lng: 103.8670, City: "Siem Reap", Country: "Cambodia"},
	"rickshaw": {Lat: 23.8103, Lng: 90.4125, City: "Dhaka", Country: "Bangladesh", Reasoning: "Rickshaw capital."},
}

func newTestEngine(text string, textErr error, labels []string, labelErr error, data dataset.Source) *LocalEngine {
	return NewLocalEngine(
		classifierFunc(func(context.Context, []byte) ([]string, error) { return labels, labelErr }),
		textFunc(func(context.Context, []byte) (string, error) { return text, textErr }),
		data,
	)
}

func TestFirstCandidateTermWins(t *testing.T) {
	e := newTestEngine("HANOI temple", nil, nil, nil, fixedDataset(testDataset))

	g, err := e.Infer(context.Background(), []byte("img"), "", "")
	require.NoError(t, err)
	assert.Equal(t, 21.0285, g.Latitude)
	assert.Equal(t, "Hanoi", g.City)
	assert.Equal(t, textMatchConfidence, g.Confidence)
}

func TestClassifierMatchGetsLowerConfidence(t *testing.T) {
	e := newTestEngine("", nil, []string{"rickshaw", "street"}, nil, fixedDataset(testDataset))

	g, err := e.Infer(context.Background(), []byte("img"), "", "")
	require.NoError(t, err)
	assert.Equal(t, classifierMatchConfidence, g.Confidence)
	assert.Equal(t, 23.8103, g.Latitude)
	assert.Equal(t, 90.4125, g.Longitude)
	assert.Equal(t, "Dhaka", g.City)
	assert.True(t, g.StructurallyValid())
}

func TestTextMatchBeatsClassifierMatch(t *testing.T) {
	// Text tokens are ordered ahead of classifier labels, so "temple" from
	// the text wins over "rickshaw" from the classifier.
	e := newTestEngine("ancient temple ruins", nil, []string{"rickshaw"}, nil, fixedDataset(testDataset))

	g, err := e.Infer(context.Background(), []byte("img"), "", "")
	require.NoError(t, err)
	assert.Equal(t, "Siem Reap", g.City)
	assert.Equal(t, textMatchConfidence, g.Confidence)
}

func TestNoMatchReturnsDefaultGuess(t *testing.T) {
	e := newTestEngine("nothing recognizable here", nil, []string{"cloud"}, nil, fixedDataset(testDataset))

	g, err := e.Infer(context.Background(), []byte("img"), "", "")
	require.NoError(t, err)
	assert.Equal(t, noMatchConfidence, g.Confidence)
	assert.Equal(t, 0.0, g.Latitude)
	assert.Equal(t, 0.0, g.Longitude)
	assert.Contains(t, g.Reasoning, "No recognized term")
	assert.True(t, g.StructurallyValid())
}

func TestDatasetFailureDegradesToDefaultGuess(t *testing.T) {
	failing := datasetFunc(func(context.Context) (dataset.Dataset, error) {
		return nil, errors.New("dataset fetch returned status 404")
	})
	e := newTestEngine("hanoi", nil, nil, nil, failing)

	g, err := e.Infer(context.Background(), []byte("img"), "", "")
	require.NoError(t, err)
	assert.Equal(t, noMatchConfidence, g.Confidence)
	assert.True(t, g.StructurallyValid())
}

func TestSingleRecognizerFailureIsTolerated(t *testing.T) {
	e := newTestEngine("hanoi station", nil, nil, errors.New("classifier down"), fixedDataset(testDataset))

	g, err := e.Infer(context.Background(), []byte("img"), "", "")
	require.NoError(t, err)
	assert.Equal(t, "Hanoi", g.City)
	assert.Equal(t, textMatchConfidence, g.Confidence)
}

func TestBothRecognizersFailingIsAnError(t *testing.T) {
	e := newTestEngine("", errors.New("ocr down"), nil, errors.New("classifier down"), fixedDataset(testDataset))

	_, err := e.Infer(context.Background(), []byte("img"), "", "")
	require.Error(t, err)
}

func TestCandidateTerms(t *testing.T) {
	got := candidateTerms("Go to Rio 123 HANOI hanoi", []string{"Temple", "hanoi", ""})

	want := []candidate{
		{term: "hanoi", fromText: true},
		{term: "temple", fromText: false},
	}
	assert.Equal(t, want, got, "short/non-alphabetic tokens dropped, duplicates keep first occurrence")
}

func TestTokenizeTextMultiScript(t *testing.T) {
	tokens := tokenizeText("Ханой вокзал main gate")
	assert.Equal(t, []string{"ханой", "вокзал", "main", "gate"}, tokens)
}
