package ranker

import (
	"errors"
	"fmt"
	"math"
)

// Profile holds the per-signal weights for one ranking mode. The five
// weights sum to 1.
type Profile struct {
	Relevance float64 `yaml:"relevance"`
	Authority float64 `yaml:"authority"`
	Freshness float64 `yaml:"freshness"`
	Consensus float64 `yaml:"consensus"`
	Semantic  float64 `yaml:"semantic"`
}

func (p Profile) Sum() float64 {
	return p.Relevance + p.Authority + p.Freshness + p.Consensus + p.Semantic
}

// Weights configures both ranking modes and the additive adjustments
// applied on top of the weighted signal sum. Adjustments are expressed on
// the 0..1 scale before the final ×100.
type Weights struct {
	Emergency Profile `yaml:"emergency"`
	Normal    Profile `yaml:"normal"`

	// FeedbackPoint is the score delta per unit of feedback impact.
	FeedbackPoint float64 `yaml:"feedback_point"`
	FeedbackCap   float64 `yaml:"feedback_cap"`

	// ClickBoost is reached once clicks hit ClickSaturation.
	ClickBoost      float64 `yaml:"click_boost"`
	ClickSaturation int     `yaml:"click_saturation"`

	// BouncePenalty is subtracted in full at a bounce ratio of 1.
	BouncePenalty float64 `yaml:"bounce_penalty"`
}

func DefaultWeights() Weights {
	return Weights{
		Emergency: Profile{
			Authority: 0.30,
			Freshness: 0.30,
			Semantic:  0.15,
			Relevance: 0.15,
			Consensus: 0.10,
		},
		Normal: Profile{
			Relevance: 0.35,
			Semantic:  0.25,
			Authority: 0.15,
			Freshness: 0.10,
			Consensus: 0.15,
		},
		FeedbackPoint:   0.02,
		FeedbackCap:     0.15,
		ClickBoost:      0.05,
		ClickSaturation: 100,
		BouncePenalty:   0.10,
	}
}

var ErrInvalidWeights = errors.New("invalid ranking weights")

const sumTolerance = 1e-6

func (w Weights) Validate() error {
	for name, p := range map[string]Profile{"emergency": w.Emergency, "normal": w.Normal} {
		if math.Abs(p.Sum()-1) > sumTolerance {
			return fmt.Errorf("%w: %s profile sums to %.4f", ErrInvalidWeights, name, p.Sum())
		}
		for _, v := range []float64{p.Relevance, p.Authority, p.Freshness, p.Consensus, p.Semantic} {
			if v < 0 {
				return fmt.Errorf("%w: %s profile has a negative weight", ErrInvalidWeights, name)
			}
		}
	}
	if w.Emergency.Authority <= w.Normal.Authority {
		return fmt.Errorf("%w: emergency authority weight must exceed normal", ErrInvalidWeights)
	}
	if w.Emergency.Freshness <= w.Normal.Freshness {
		return fmt.Errorf("%w: emergency freshness weight must exceed normal", ErrInvalidWeights)
	}
	if w.BouncePenalty <= 0 {
		return fmt.Errorf("%w: bounce penalty must be positive", ErrInvalidWeights)
	}
	if w.FeedbackPoint < 0 || w.FeedbackCap < 0 || w.ClickBoost < 0 {
		return fmt.Errorf("%w: adjustments must not be negative", ErrInvalidWeights)
	}
	return nil
}

func (w Weights) profile(emergency bool) Profile {
	if emergency {
		return w.Emergency
	}
	return w.Normal
}
