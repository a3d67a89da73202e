package mcpserver_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/lifeline/internal/mcpserver"
	"github.com/deidaraiorek/lifeline/internal/search"
)

type fakeEngine struct {
	search   search.Request
	feedback search.FeedbackRequest
}

func (f *fakeEngine) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	f.search = req
	if _, err := search.ParseMode(req.Mode); err != nil {
		return nil, err
	}
	return &search.Response{
		Query:   req.Query,
		Results: []search.Result{{Title: "Flood safety", URL: "https://ready.gov/floods", TrustLevel: "high"}},
	}, nil
}

func (f *fakeEngine) Predict(ctx context.Context, prefix string) search.Prediction {
	return search.Prediction{Suggestions: []string{prefix + " kit"}, NextWords: []string{}}
}

func (f *fakeEngine) RecordFeedback(ctx context.Context, req search.FeedbackRequest) (search.FeedbackResponse, error) {
	f.feedback = req
	if _, ok := map[string]bool{"upvote": true, "downvote": true, "fake_news_report": true}[req.Kind]; !ok {
		return search.FeedbackResponse{}, search.ErrInvalidFeedbackKind
	}
	return search.FeedbackResponse{Accepted: true, AppliedImpact: 1}, nil
}

type toolResult struct {
	Text    string
	IsError bool
}

func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]any) toolResult {
	t.Helper()

	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(srv.HandleMessage(context.Background(), msg))
	require.NoError(t, err)

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp), string(raw))
	require.Nil(t, resp.Error, string(raw))
	require.NotEmpty(t, resp.Result.Content)

	return toolResult{Text: resp.Result.Content[0].Text, IsError: resp.Result.IsError}
}

func TestSearchTool(t *testing.T) {
	engine := &fakeEngine{}
	srv := mcpserver.NewServer(engine, "test")

	res := callTool(t, srv, "lifeline_search", map[string]any{"query": "flood", "mode": "emergency", "limit": 3})
	require.False(t, res.IsError, res.Text)

	assert.Equal(t, "flood", engine.search.Query)
	assert.Equal(t, "emergency", engine.search.Mode)
	assert.Equal(t, 3, engine.search.Limit)

	var got search.Response
	require.NoError(t, json.Unmarshal([]byte(res.Text), &got))
	require.Len(t, got.Results, 1)
	assert.Equal(t, "https://ready.gov/floods", got.Results[0].URL)
}

func TestSearchToolErrors(t *testing.T) {
	srv := mcpserver.NewServer(&fakeEngine{}, "test")

	res := callTool(t, srv, "lifeline_search", map[string]any{})
	assert.True(t, res.IsError)
	assert.Equal(t, "query is required", res.Text)

	res = callTool(t, srv, "lifeline_search", map[string]any{"query": "flood", "mode": "loud"})
	assert.True(t, res.IsError)
	assert.Equal(t, search.ErrInvalidMode.Error(), res.Text)
}

func TestPredictTool(t *testing.T) {
	srv := mcpserver.NewServer(&fakeEngine{}, "test")

	res := callTool(t, srv, "lifeline_predict", map[string]any{"prefix": "emergency"})
	require.False(t, res.IsError)

	var got search.Prediction
	require.NoError(t, json.Unmarshal([]byte(res.Text), &got))
	assert.Equal(t, []string{"emergency kit"}, got.Suggestions)
}

func TestFeedbackTool(t *testing.T) {
	engine := &fakeEngine{}
	srv := mcpserver.NewServer(engine, "test")

	res := callTool(t, srv, "lifeline_feedback", map[string]any{
		"target_url":    "https://ready.gov/floods",
		"feedback_type": "upvote",
		"session_id":    "s1",
	})
	require.False(t, res.IsError, res.Text)
	assert.Equal(t, "s1", engine.feedback.SessionID)

	res = callTool(t, srv, "lifeline_feedback", map[string]any{
		"target_url":    "https://ready.gov/floods",
		"feedback_type": "meh",
	})
	assert.True(t, res.IsError)
}
