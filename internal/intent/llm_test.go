package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeGenerator struct {
	content  string
	err      error
	messages []llms.MessageContent
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.content}}}, nil
}

func TestLLMVerdictParsesFencedJSON(t *testing.T) {
	gen := &fakeGenerator{content: "```json\n{\"isEmergency\": true, \"category\": \"Medical\", \"survivalTip\": \"Call 112 now.\"}\n```"}
	v := newLLMVerdict(gen, time.Second, nil)

	verdict, err := v.Verdict(context.Background(), "chest pain")
	require.NoError(t, err)

	assert.True(t, verdict.IsEmergency)
	assert.Equal(t, "medical", verdict.Category)
	assert.Equal(t, "Call 112 now.", verdict.Advisory)
	require.Len(t, gen.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, gen.messages[0].Role)
}

func TestLLMVerdictErrors(t *testing.T) {
	v := newLLMVerdict(&fakeGenerator{err: errors.New("502")}, time.Second, nil)
	_, err := v.Verdict(context.Background(), "fire")
	assert.Error(t, err)

	v = newLLMVerdict(&fakeGenerator{content: "not json"}, time.Second, nil)
	_, err = v.Verdict(context.Background(), "fire")
	assert.Error(t, err)
}
