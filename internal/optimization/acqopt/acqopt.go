// Package acqopt searches the feasible region for the point that maximizes
// an acquisition function.
package acqopt

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/optimize"

	"github.com/feasopt/feasopt/internal/optimization"
	"github.com/feasopt/feasopt/internal/optimization/acquisition"
	"github.com/feasopt/feasopt/internal/optimization/region"
)

const (
	// DefaultSeeds is the number of feasible candidates scored before
	// local refinement.
	DefaultSeeds = 256

	// DefaultTopK is the number of top-scoring seeds refined with
	// Nelder-Mead.
	DefaultTopK = 5
)

// Maximizer finds the feasible arg-max of an acquisition function. The
// search draws feasible seed points, scores them all, then runs a
// derivative-free local refinement from the best few, clamped to the
// bounding box at every step. Infeasible interior points score 0 through
// the acquisition layer, so refinements cannot escape the feasible set
// towards a better score.
//
// Results are deterministic given the rng.
type Maximizer struct {
	// Seeds is the number of feasible candidate points drawn per search.
	Seeds int

	// TopK is the number of best seeds refined locally.
	TopK int

	rng *rand.Rand
}

// New creates a Maximizer with the given candidate budget. Non-positive
// values fall back to the defaults.
func New(seeds, topK int, rng *rand.Rand) *Maximizer {
	if seeds < 1 {
		seeds = DefaultSeeds
	}
	if topK < 1 {
		topK = DefaultTopK
	}
	if topK > seeds {
		topK = seeds
	}
	return &Maximizer{Seeds: seeds, TopK: topK, rng: rng}
}

// Maximize returns the best feasible point found for the score function.
// When every seed scores exactly 0 (a starved region gives the refiner no
// gradient to follow), the first seed is returned unrefined so the loop
// still makes an exploratory evaluation.
func (m *Maximizer) Maximize(score acquisition.ScoreFunc, r *region.Region) ([]float64, error) {
	const op = "Maximize"

	seeds, err := r.Sample(m.rng, m.Seeds, optimization.DesignRandom)
	if err != nil {
		return nil, optimization.Wrap(err, "acqopt", op, "failed to draw seed candidates")
	}

	type scored struct {
		x     []float64
		score float64
	}
	ranked := make([]scored, len(seeds))
	allZero := true
	for i, x := range seeds {
		s := score(x)
		ranked[i] = scored{x: x, score: s}
		if s != 0 {
			allZero = false
		}
	}

	if allZero {
		return append([]float64(nil), seeds[0]...), nil
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	bounds := r.Bounds()
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			// Clamp in place: Nelder-Mead has no bounds support, and the
			// acquisition handles constraint infeasibility by scoring 0.
			for i := range x {
				if x[i] < bounds[i][0] {
					x[i] = bounds[i][0]
				} else if x[i] > bounds[i][1] {
					x[i] = bounds[i][1]
				}
			}
			return -score(x)
		},
	}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-8,
			Relative:   1e-8,
			Iterations: 100,
		},
	}

	bestX := append([]float64(nil), ranked[0].x...)
	bestScore := ranked[0].score

	for k := 0; k < m.TopK && k < len(ranked); k++ {
		start := append([]float64(nil), ranked[k].x...)
		method := &optimize.NelderMead{SimplexSize: 0.05}

		result, err := optimize.Minimize(problem, start, settings, method)
		if err != nil {
			continue
		}

		refined := r.Clamp(append([]float64(nil), result.X...))
		if s := score(refined); s > bestScore {
			bestScore = s
			bestX = refined
		}
	}

	return bestX, nil
}
