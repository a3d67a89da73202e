package embed

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrUnavailable is returned when no embedding provider is configured.
	ErrUnavailable = errors.New("embedding capability unavailable")
	ErrEmptyText   = errors.New("text cannot be empty")
)

// Embedder turns text into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Cosine returns the cosine similarity of a and b, or 0 when the vectors
// differ in length or either has zero norm.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	x := toFloat64(a)
	y := toFloat64(b)

	na := floats.Norm(x, 2)
	nb := floats.Norm(y, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(x, y) / (na * nb)
}

// MaxCosine is the best similarity between query and any candidate.
func MaxCosine(query []float32, candidates [][]float32) float64 {
	best := 0.0
	for _, c := range candidates {
		if sim := Cosine(query, c); sim > best {
			best = sim
		}
	}
	return best
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

// Disabled is the embedder used when no provider is configured.
type Disabled struct{}

func (Disabled) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrUnavailable
}

func (Disabled) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, ErrUnavailable
}
