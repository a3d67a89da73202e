package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/deidaraiorek/lifeline/internal/metrics"
	"github.com/deidaraiorek/lifeline/internal/storage"
	"github.com/deidaraiorek/lifeline/internal/tokenizer"
)

const anonymousSession = "anonymous"

func (e *Engine) Predict(ctx context.Context, prefix string) Prediction {
	if e.predictor == nil || strings.TrimSpace(prefix) == "" {
		return Prediction{Suggestions: []string{}, NextWords: []string{}}
	}
	return Prediction{
		Suggestions: e.predictor.Predict(ctx, prefix),
		NextWords:   e.predictor.NextWords(prefix),
	}
}

// RecordFeedback stores one feedback record. With a session id, a repeat of
// the same kind on the same URL is not accepted and applies no impact.
func (e *Engine) RecordFeedback(ctx context.Context, req FeedbackRequest) (FeedbackResponse, error) {
	target := strings.TrimSpace(req.TargetURL)
	if target == "" {
		return FeedbackResponse{}, ErrMissingTarget
	}
	kind, ok := storage.ParseFeedbackKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if !ok {
		return FeedbackResponse{}, fmt.Errorf("%w: %q", ErrInvalidFeedbackKind, req.Kind)
	}

	if e.feedback == nil {
		return FeedbackResponse{}, fmt.Errorf("failed to record feedback: %w", ErrNoStore)
	}

	now := e.now()
	created, err := e.feedback.CreateFeedback(ctx, storage.FeedbackRecord{
		TargetURL: target,
		Kind:      kind,
		Comment:   strings.TrimSpace(req.Comment),
		SessionID: strings.TrimSpace(req.SessionID),
		CreatedAt: now,
	})
	if err != nil {
		return FeedbackResponse{}, fmt.Errorf("failed to record feedback: %w", err)
	}
	metrics.FeedbackRecorded.WithLabelValues(string(kind), strconv.FormatBool(created)).Inc()
	if !created {
		return FeedbackResponse{Accepted: false, AppliedImpact: 0}, nil
	}

	if kind == storage.FeedbackFakeReport && e.interactions != nil {
		if err := e.interactions.MarkReported(ctx, target, now); err != nil {
			e.logger.Warn("failed to stamp report time", "url", target, "err", err)
		}
	}
	if e.interactions != nil {
		session := req.SessionID
		if session == "" {
			session = anonymousSession
		}
		err := e.interactions.LogInteraction(ctx, storage.Interaction{
			SessionID: session,
			Action:    storage.ActionFeedback,
			Target:    target,
			CreatedAt: now,
		})
		if err != nil {
			e.logger.Warn("failed to log feedback interaction", "url", target, "err", err)
		}
	}

	return FeedbackResponse{Accepted: true, AppliedImpact: kind.Impact()}, nil
}

// RecordInteraction appends to the interaction log. Clicks also bump the
// document click count and searches teach the predictor.
func (e *Engine) RecordInteraction(ctx context.Context, req InteractionRequest) (Accepted, error) {
	session := strings.TrimSpace(req.SessionID)
	if session == "" {
		return Accepted{}, ErrMissingSession
	}
	action, ok := storage.ParseAction(strings.ToLower(strings.TrimSpace(req.Action)))
	if !ok {
		return Accepted{}, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}
	target := strings.TrimSpace(req.Target)
	if target == "" && action != storage.ActionSearch {
		return Accepted{}, ErrMissingTarget
	}

	if e.interactions == nil {
		return Accepted{}, fmt.Errorf("failed to log interaction: %w", ErrNoStore)
	}

	err := e.interactions.LogInteraction(ctx, storage.Interaction{
		SessionID:  session,
		Action:     action,
		Target:     target,
		Emergency:  req.Emergency,
		DurationMS: max(req.DurationMS, 0),
		CreatedAt:  e.now(),
	})
	if err != nil {
		return Accepted{}, fmt.Errorf("failed to log interaction: %w", err)
	}

	switch action {
	case storage.ActionClick:
		if err := e.interactions.IncrementClicks(ctx, target); err != nil {
			e.logger.Warn("failed to count click", "url", target, "err", err)
		}
	case storage.ActionSearch:
		e.learn(ctx, target, req.Emergency)
	}
	return Accepted{Accepted: true}, nil
}

// LogSearch records an accepted search and teaches the predictor. The
// session is optional here.
func (e *Engine) LogSearch(ctx context.Context, req SearchLog) (Accepted, error) {
	if strings.TrimSpace(req.Query) == "" {
		return Accepted{}, ErrEmptyQuery
	}
	session := req.SessionID
	if strings.TrimSpace(session) == "" {
		session = anonymousSession
	}
	return e.RecordInteraction(ctx, InteractionRequest{
		SessionID: session,
		Action:    string(storage.ActionSearch),
		Target:    req.Query,
		Emergency: req.Emergency,
	})
}

func (e *Engine) learn(ctx context.Context, query string, emergency bool) {
	if e.predictor == nil || len(tokenizer.CleanPhrase(query)) <= 2 {
		return
	}
	category := storage.CategoryGeneral
	if emergency {
		category = storage.CategoryEmergency
	}
	if err := e.predictor.Learn(ctx, query, category); err != nil {
		e.logger.Warn("failed to learn query", "query", query, "err", err)
	}
}
