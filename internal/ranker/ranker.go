// Package ranker fuses lexical relevance with trust signals into a single
// 0..100 score whose weighting depends on whether the query is an
// emergency.
package ranker

import (
	"math"
	"sort"
	"time"

	"github.com/deidaraiorek/lifeline/internal/storage"
)

const (
	TrustHigh   = "high"
	TrustMedium = "medium"
	TrustLow    = "low"
)

// Candidate carries one document and the per-request signals gathered for
// it. Relevance and Consensus are filled by Rank; callers of Fuse set them
// directly on the 0..1 scale.
type Candidate struct {
	Document storage.Document
	BM25     float64

	Relevance float64
	Consensus float64
	Semantic  float64

	FeedbackImpact float64
	Behavior       storage.BehaviorStats
}

type Breakdown struct {
	Relevance float64 `json:"relevance"`
	Authority float64 `json:"authority"`
	Freshness float64 `json:"freshness"`
	Consensus float64 `json:"consensus"`
	Semantic  float64 `json:"semantic"`
	Feedback  float64 `json:"feedback"`
	Behavior  float64 `json:"behavior"`

	Score      float64 `json:"score"`
	TrustLevel string  `json:"trustLevel"`
}

type Scored struct {
	Candidate
	Breakdown Breakdown
}

type Ranker struct {
	weights   Weights
	authority *Authority
	now       func() time.Time
}

type Option func(*Ranker)

func WithAuthority(a *Authority) Option {
	return func(r *Ranker) { r.authority = a }
}

func WithClock(now func() time.Time) Option {
	return func(r *Ranker) { r.now = now }
}

func New(weights Weights, opts ...Option) *Ranker {
	r := &Ranker{
		weights:   weights,
		authority: NewAuthority(nil, nil),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Ranker) Weights() Weights {
	return r.weights
}

// Fuse scores a single candidate. Documents without tokens are treated as
// malformed and score 0.
func (r *Ranker) Fuse(c Candidate, emergency bool) Breakdown {
	if len(c.Document.Tokens) == 0 {
		return Breakdown{TrustLevel: TrustLow}
	}

	b := Breakdown{
		Relevance: clamp(c.Relevance, 0, 1),
		Authority: r.authority.Score(c.Document.URL),
		Freshness: Freshness(documentTime(c.Document), r.now()),
		Consensus: clamp(c.Consensus, 0, 1),
		Semantic:  clamp(c.Semantic, 0, 1),
		Feedback:  r.weights.FeedbackAdjustment(c.FeedbackImpact),
	}

	clicks := max(c.Behavior.Clicks, c.Document.ClickCount)
	b.Behavior = r.weights.BehaviorAdjustment(clicks, c.Behavior.Bounces)

	p := r.weights.profile(emergency)
	sum := p.Relevance*b.Relevance +
		p.Authority*b.Authority +
		p.Freshness*b.Freshness +
		p.Consensus*b.Consensus +
		p.Semantic*b.Semantic

	b.Score = clamp(100*(sum+b.Feedback+b.Behavior), 0, 100)
	b.TrustLevel = TrustLevel(b.Score)
	return b
}

// Rank normalizes relevance against the best BM25 score, computes
// consensus across the candidate set and returns candidates sorted by
// score, then relevance, then URL.
func (r *Ranker) Rank(candidates []Candidate, emergency bool) []Scored {
	if len(candidates) == 0 {
		return []Scored{}
	}

	maxBM25 := 0.0
	tokenSets := make([][]string, len(candidates))
	for i, c := range candidates {
		maxBM25 = math.Max(maxBM25, c.BM25)
		tokenSets[i] = c.Document.Tokens
	}
	consensus := Consensus(tokenSets)

	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		if maxBM25 > 0 {
			c.Relevance = c.BM25 / maxBM25
		} else {
			c.Relevance = 0
		}
		c.Consensus = consensus[i]
		scored[i] = Scored{Candidate: c, Breakdown: r.Fuse(c, emergency)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i].Breakdown, scored[j].Breakdown
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		return scored[i].Document.URL < scored[j].Document.URL
	})
	return scored
}

func TrustLevel(score float64) string {
	switch {
	case score >= 70:
		return TrustHigh
	case score >= 40:
		return TrustMedium
	default:
		return TrustLow
	}
}

func documentTime(doc storage.Document) time.Time {
	if !doc.PublishedAt.IsZero() {
		return doc.PublishedAt
	}
	return doc.CreatedAt
}
