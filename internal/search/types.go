package search

import (
	"errors"

	"github.com/deidaraiorek/lifeline/internal/intent"
	"github.com/deidaraiorek/lifeline/internal/ranker"
)

var (
	ErrEmptyQuery          = errors.New("query is required")
	ErrInvalidMode         = errors.New("mode must be auto, normal or emergency")
	ErrInvalidFeedbackKind = errors.New("feedbackType must be upvote, downvote or fake_news_report")
	ErrMissingTarget       = errors.New("targetUrl is required")
	ErrInvalidAction       = errors.New("actionType must be search, click, bounce or feedback")
	ErrMissingSession      = errors.New("sessionId is required")

	// ErrNoStore is returned by write operations on an engine built
	// without the store they need.
	ErrNoStore = errors.New("store not configured")
)

type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeNormal    Mode = "normal"
	ModeEmergency Mode = "emergency"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeNormal:
		return ModeNormal, nil
	case ModeEmergency:
		return ModeEmergency, nil
	}
	return "", ErrInvalidMode
}

type Request struct {
	Query    string `json:"query"`
	Mode     string `json:"mode,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	ClientIP string `json:"-"`
}

type Result struct {
	Title      string           `json:"title"`
	URL        string           `json:"url"`
	Summary    string           `json:"summary"`
	Score      float64          `json:"score"`
	TrustLevel string           `json:"trustLevel"`
	Origin     string           `json:"origin"`
	Signals    ranker.Breakdown `json:"signals"`
}

type Meta struct {
	Engine          string   `json:"engine"`
	TokensUsed      []string `json:"tokensUsed"`
	CoveragePercent int      `json:"coveragePercent"`
	Source          string   `json:"source"`
	Location        string   `json:"location,omitempty"`
	TookMs          int64    `json:"tookMs"`
}

type Response struct {
	Query         string        `json:"query"`
	EmergencyMode bool          `json:"emergencyMode"`
	Advisory      string        `json:"advisory,omitempty"`
	Intent        intent.Result `json:"intent"`
	Results       []Result      `json:"results"`
	Meta          Meta          `json:"meta"`
}

type Prediction struct {
	Suggestions []string `json:"suggestions"`
	NextWords   []string `json:"nextWords"`
}

type FeedbackRequest struct {
	TargetURL string `json:"targetUrl"`
	Kind      string `json:"feedbackType"`
	Comment   string `json:"userComment,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

type FeedbackResponse struct {
	Accepted      bool    `json:"accepted"`
	AppliedImpact float64 `json:"appliedImpact"`
}

type InteractionRequest struct {
	SessionID  string `json:"sessionId"`
	Action     string `json:"actionType"`
	Target     string `json:"targetUrl,omitempty"`
	Emergency  bool   `json:"isEmergencyMode"`
	DurationMS int64  `json:"duration,omitempty"`
}

type SearchLog struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId,omitempty"`
	Emergency bool   `json:"isEmergencyMode"`
}

type Accepted struct {
	Accepted bool `json:"accepted"`
}
