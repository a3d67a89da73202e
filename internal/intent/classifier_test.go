package intent_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/lifeline/internal/embed"
	"github.com/deidaraiorek/lifeline/internal/intent"
)

// topicEmbedder puts anything mentioning earthquakes on one axis and
// everything else on the other.
type topicEmbedder struct {
	batchCalls atomic.Int32
	failBatch  atomic.Int32
	err        error
}

func vectorFor(text string) []float32 {
	if strings.Contains(text, "earthquake") {
		return []float32{1, 0}
	}
	return []float32{0, 1}
}

func (e *topicEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return vectorFor(text), nil
}

func (e *topicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchCalls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	if e.failBatch.Load() > 0 {
		e.failBatch.Add(-1)
		return nil, errors.New("provider hiccup")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t)
	}
	return out, nil
}

type stubVerdicts struct {
	verdict intent.Verdict
	err     error
	calls   int
}

func (s *stubVerdicts) Verdict(ctx context.Context, query string) (intent.Verdict, error) {
	s.calls++
	return s.verdict, s.err
}

func TestClassifyFusedEmergency(t *testing.T) {
	c := intent.NewClassifier(&topicEmbedder{})

	result := c.Classify(context.Background(), "Earthquake safety")

	assert.True(t, result.IsEmergency)
	assert.Equal(t, intent.PathFused, result.Path)
	assert.Equal(t, 0.6, result.Signals.Lexical)
	assert.InDelta(t, 1.0, result.Signals.Semantic, 1e-9)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, "natural_disaster", result.Category)
	assert.Equal(t, "Drop, cover and hold on. Stay indoors.", result.Advisory)
}

func TestClassifySemanticAloneBelowThreshold(t *testing.T) {
	c := intent.NewClassifier(&topicEmbedder{})

	result := c.Classify(context.Background(), "weekend weather report")

	assert.False(t, result.IsEmergency)
	assert.Equal(t, 0.0, result.Signals.Lexical)
	assert.Equal(t, 0.6, result.Confidence)
	assert.Equal(t, intent.CategoryNone, result.Category)
	assert.Empty(t, result.Advisory)
}

func TestClassifyThresholdIsConfigurable(t *testing.T) {
	config := intent.DefaultConfig()
	config.Threshold = 0.5
	c := intent.NewClassifier(&topicEmbedder{}, intent.WithConfig(config))

	result := c.Classify(context.Background(), "weekend weather report")
	assert.True(t, result.IsEmergency)
}

func TestClassifyLocalFallbackWithoutEmbeddings(t *testing.T) {
	c := intent.NewClassifier(embed.Disabled{})

	result := c.Classify(context.Background(), "There is a gas leak in my kitchen")

	assert.True(t, result.IsEmergency)
	assert.Equal(t, intent.PathLocal, result.Path)
	assert.Equal(t, 0.6, result.Confidence)
	assert.Equal(t, "general_emergency", result.Category)
	assert.Contains(t, result.Advisory, "Do not use switches")

	calm := c.Classify(context.Background(), "pasta recipe")
	assert.False(t, calm.IsEmergency)
	assert.Equal(t, 0.0, calm.Confidence)
	assert.Equal(t, intent.CategoryNone, calm.Category)
}

func TestClassifyLocalConfidenceBelowFused(t *testing.T) {
	fused := intent.NewClassifier(&topicEmbedder{}).Classify(context.Background(), "earthquake now")
	local := intent.NewClassifier(embed.Disabled{}).Classify(context.Background(), "earthquake now")

	require.True(t, fused.IsEmergency)
	require.True(t, local.IsEmergency)
	assert.Less(t, local.Confidence, fused.Confidence)
}

func TestClassifyUsesRemoteVerdictWhenEmbeddingsFail(t *testing.T) {
	verdicts := &stubVerdicts{verdict: intent.Verdict{IsEmergency: true, Category: "medical", Advisory: "Call an ambulance."}}
	c := intent.NewClassifier(&topicEmbedder{err: errors.New("timeout")}, intent.WithVerdictProvider(verdicts))

	result := c.Classify(context.Background(), "my friend collapsed")

	assert.True(t, result.IsEmergency)
	assert.Equal(t, intent.PathLLM, result.Path)
	assert.Equal(t, "medical", result.Category)
	assert.Equal(t, "Call an ambulance.", result.Advisory)
	assert.Equal(t, 0.6, result.Confidence)
}

func TestClassifyFallsThroughToKeywordsWhenEverythingFails(t *testing.T) {
	verdicts := &stubVerdicts{err: errors.New("offline")}
	c := intent.NewClassifier(&topicEmbedder{err: errors.New("timeout")}, intent.WithVerdictProvider(verdicts))

	result := c.Classify(context.Background(), "severe bleeding from leg")

	assert.True(t, result.IsEmergency)
	assert.Equal(t, intent.PathLocal, result.Path)
	assert.Equal(t, "medical", result.Category)
	assert.Equal(t, "Apply direct pressure to the wound immediately.", result.Advisory)
	assert.Equal(t, 1, verdicts.calls)
}

func TestClassifyRemoteVerdictDescribesFusedEmergency(t *testing.T) {
	verdicts := &stubVerdicts{verdict: intent.Verdict{IsEmergency: true, Category: "natural_disaster", Advisory: "Get under a table."}}
	c := intent.NewClassifier(&topicEmbedder{}, intent.WithVerdictProvider(verdicts))

	result := c.Classify(context.Background(), "earthquake right now")

	assert.Equal(t, intent.PathFused, result.Path)
	assert.Equal(t, "Get under a table.", result.Advisory)
}

func TestSeedVectorsComputedOnce(t *testing.T) {
	e := &topicEmbedder{}
	c := intent.NewClassifier(e)

	for i := 0; i < 3; i++ {
		c.Classify(context.Background(), "flood warning")
	}
	assert.Equal(t, int32(1), e.batchCalls.Load())
}

func TestSeedVectorFailureIsRetriedLater(t *testing.T) {
	e := &topicEmbedder{}
	e.failBatch.Store(1)
	c := intent.NewClassifier(e)

	first := c.Classify(context.Background(), "earthquake")
	assert.Equal(t, intent.PathLocal, first.Path)

	second := c.Classify(context.Background(), "earthquake")
	assert.Equal(t, intent.PathFused, second.Path)
	assert.Equal(t, int32(2), e.batchCalls.Load())
}

func TestClassifyEmptyQuery(t *testing.T) {
	c := intent.NewClassifier(&topicEmbedder{})

	result := c.Classify(context.Background(), "   ")
	assert.False(t, result.IsEmergency)
	assert.Equal(t, intent.CategoryNone, result.Category)
}

func TestHasEmergencyKeyword(t *testing.T) {
	assert.True(t, intent.HasEmergencyKeyword("Flood near river"))
	assert.True(t, intent.HasEmergencyKeyword("SOS"))
	assert.False(t, intent.HasEmergencyKeyword("chocolate cake"))
}

func TestAdvise(t *testing.T) {
	assert.Equal(t, "Move to higher ground. Avoid walking in water.", intent.Advise("flash flood", false))
	assert.Equal(t, "Stay calm. Locate the nearest safe exit or authority.", intent.Advise("collapsed", true))
	assert.Empty(t, intent.Advise("collapsed", false))
}
