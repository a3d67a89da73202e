// Package mcpserver exposes search, prediction and feedback as Model
// Context Protocol tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/deidaraiorek/lifeline/internal/search"
)

const serverName = "LifeLine"

type Engine interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
	Predict(ctx context.Context, prefix string) search.Prediction
	RecordFeedback(ctx context.Context, req search.FeedbackRequest) (search.FeedbackResponse, error)
}

func NewServer(engine Engine, version string) *server.MCPServer {
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))

	registerSearchTool(s, engine)
	registerPredictTool(s, engine)
	registerFeedbackTool(s, engine)
	return s
}

func ServeStdio(engine Engine, version string) error {
	return server.ServeStdio(NewServer(engine, version))
}

func registerSearchTool(s *server.MCPServer, engine Engine) {
	tool := mcp.NewTool("lifeline_search",
		mcp.WithDescription("Search safety information. Emergency queries are ranked toward official, recent sources and come with an advisory."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to search for"),
		),
		mcp.WithString("mode",
			mcp.Description("Ranking mode (default: auto, decided by the intent classifier)"),
			mcp.Enum(string(search.ModeAuto), string(search.ModeNormal), string(search.ModeEmergency)),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 10)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		sreq := search.Request{Query: query}
		if mode, err := req.RequireString("mode"); err == nil {
			sreq.Mode = mode
		}
		if limit, err := req.RequireFloat("limit"); err == nil && limit > 0 {
			sreq.Limit = int(limit)
		}

		resp, err := engine.Search(ctx, sreq)
		if err != nil {
			return toolError("search", err), nil
		}
		return jsonResult(resp)
	})
}

func registerPredictTool(s *server.MCPServer, engine Engine) {
	tool := mcp.NewTool("lifeline_predict",
		mcp.WithDescription("Suggest query completions and likely next words for a partial query."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("prefix",
			mcp.Required(),
			mcp.Description("Partial query text"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prefix, err := req.RequireString("prefix")
		if err != nil {
			return mcp.NewToolResultError("prefix is required"), nil
		}
		return jsonResult(engine.Predict(ctx, prefix))
	})
}

func registerFeedbackTool(s *server.MCPServer, engine Engine) {
	tool := mcp.NewTool("lifeline_feedback",
		mcp.WithDescription("Rate a search result. Fake reports weigh five times an upvote."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("target_url",
			mcp.Required(),
			mcp.Description("URL of the rated result"),
		),
		mcp.WithString("feedback_type",
			mcp.Required(),
			mcp.Enum("upvote", "downvote", "fake_news_report"),
		),
		mcp.WithString("comment",
			mcp.Description("Optional free text"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session id; feedback with a session counts once per result and kind"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := req.RequireString("target_url")
		if err != nil {
			return mcp.NewToolResultError("target_url is required"), nil
		}
		kind, err := req.RequireString("feedback_type")
		if err != nil {
			return mcp.NewToolResultError("feedback_type is required"), nil
		}
		freq := search.FeedbackRequest{TargetURL: target, Kind: kind}
		if comment, err := req.RequireString("comment"); err == nil {
			freq.Comment = comment
		}
		if session, err := req.RequireString("session_id"); err == nil {
			freq.SessionID = session
		}

		resp, err := engine.RecordFeedback(ctx, freq)
		if err != nil {
			return toolError("feedback", err), nil
		}
		return jsonResult(resp)
	})
}

func toolError(op string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, search.ErrEmptyQuery),
		errors.Is(err, search.ErrInvalidMode),
		errors.Is(err, search.ErrInvalidFeedbackKind),
		errors.Is(err, search.ErrMissingTarget):
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s error: %v", op, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
