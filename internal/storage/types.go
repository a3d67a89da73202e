package storage

import "time"

const (
	OriginLocal   = "local"
	OriginScraped = "scraped"
)

type Document struct {
	ID             int64
	URL            string
	Title          string
	Content        string
	Tokens         []string
	Origin         string
	Category       string
	PublishedAt    time.Time
	CreatedAt      time.Time
	ClickCount     int
	LastReportedAt time.Time

	// MatchedTerms is filled by FindByTokenOverlap.
	MatchedTerms int
}

type FeedbackKind string

const (
	FeedbackUpvote     FeedbackKind = "upvote"
	FeedbackDownvote   FeedbackKind = "downvote"
	FeedbackFakeReport FeedbackKind = "fake_news_report"
)

// ParseFeedbackKind accepts the canonical kinds plus the hyphenated
// "fake-report" spelling.
func ParseFeedbackKind(s string) (FeedbackKind, bool) {
	switch s {
	case string(FeedbackUpvote):
		return FeedbackUpvote, true
	case string(FeedbackDownvote):
		return FeedbackDownvote, true
	case string(FeedbackFakeReport), "fake-report", "fake_report":
		return FeedbackFakeReport, true
	}
	return "", false
}

// Impact is the signed trust impact in feedback units.
func (k FeedbackKind) Impact() float64 {
	switch k {
	case FeedbackUpvote:
		return 1
	case FeedbackDownvote:
		return -1
	case FeedbackFakeReport:
		return -5
	}
	return 0
}

type FeedbackRecord struct {
	ID        string
	TargetURL string
	Kind      FeedbackKind
	Impact    float64
	Comment   string
	SessionID string
	CreatedAt time.Time
}

const (
	CategoryEmergency  = "emergency"
	CategoryGeneral    = "general"
	CategoryNews       = "news"
	CategoryLiterature = "literature"
)

type CorpusEntry struct {
	Phrase       string
	Category     string
	Frequency    int
	LastSearched time.Time
}

type NextWord struct {
	Word  string
	Count int
}

type Action string

const (
	ActionSearch   Action = "search"
	ActionClick    Action = "click"
	ActionBounce   Action = "bounce"
	ActionFeedback Action = "feedback"
)

// ParseAction maps client action names, including the legacy
// click_result and bounce_detected spellings.
func ParseAction(s string) (Action, bool) {
	switch s {
	case string(ActionSearch):
		return ActionSearch, true
	case string(ActionClick), "click_result":
		return ActionClick, true
	case string(ActionBounce), "bounce_detected":
		return ActionBounce, true
	case string(ActionFeedback):
		return ActionFeedback, true
	}
	return "", false
}

type Interaction struct {
	SessionID  string
	Action     Action
	Target     string
	Emergency  bool
	DurationMS int64
	CreatedAt  time.Time
}

type BehaviorStats struct {
	Clicks  int
	Bounces int
}
