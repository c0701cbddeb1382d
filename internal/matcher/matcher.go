// Package matcher selects the best candidate for a probe face embedding.
// Matching is a pure computation over the inputs: no storage access, no
// shared state, safe to call from any number of goroutines.
package matcher

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoCandidates is returned when the candidate set is empty.
	// Callers are expected to short-circuit an empty roster before matching.
	ErrNoCandidates = errors.New("no candidates supplied")

	// ErrInvalidVector is returned for vectors with mismatched length or
	// non-finite components.
	ErrInvalidVector = errors.New("invalid embedding vector")
)

// Candidate is one stored template offered for matching. The caller must
// supply only candidates belonging to the probe's tenant; the matcher does
// not re-check tenancy.
type Candidate struct {
	ID        string
	Name      string
	Roll      string
	Embedding []float32
}

// Result is the outcome of a match. When Matched is false, Confidence still
// carries the best confidence seen, for diagnostics.
type Result struct {
	Matched    bool
	Index      int // index into the candidate slice, -1 when not matched
	ID         string
	Name       string
	Roll       string
	Confidence float64
}

// Match compares the probe against every candidate and returns the best one
// if its confidence strictly exceeds threshold. Confidence is 1 - Euclidean
// distance in embedding space. Ties resolve to the first candidate in input
// order, so results are deterministic for a fixed candidate ordering.
func Match(probe []float32, candidates []Candidate, threshold float64) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, ErrNoCandidates
	}
	if err := validateVector(probe); err != nil {
		return Result{}, fmt.Errorf("probe: %w", err)
	}

	best := Result{Matched: false, Index: -1, Confidence: math.Inf(-1)}
	for i, c := range candidates {
		if err := validateVector(c.Embedding); err != nil {
			return Result{}, fmt.Errorf("candidate %d (%s): %w", i, c.Roll, err)
		}
		if len(c.Embedding) != len(probe) {
			return Result{}, fmt.Errorf("candidate %d (%s): length %d does not match probe length %d: %w",
				i, c.Roll, len(c.Embedding), len(probe), ErrInvalidVector)
		}

		confidence := 1 - euclideanDistance(probe, c.Embedding)
		if confidence > best.Confidence {
			best.Index = i
			best.Confidence = confidence
		}
	}

	if best.Confidence > threshold {
		c := candidates[best.Index]
		return Result{
			Matched:    true,
			Index:      best.Index,
			ID:         c.ID,
			Name:       c.Name,
			Roll:       c.Roll,
			Confidence: best.Confidence,
		}, nil
	}

	return Result{Matched: false, Index: -1, Confidence: best.Confidence}, nil
}

// euclideanDistance computes the L2 distance between two equal-length vectors.
func euclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func validateVector(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("empty vector: %w", ErrInvalidVector)
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite component at index %d: %w", i, ErrInvalidVector)
		}
	}
	return nil
}
