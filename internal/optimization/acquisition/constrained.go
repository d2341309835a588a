package acquisition

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/feasopt/feasopt/internal/optimization/region"
	"github.com/feasopt/feasopt/internal/optimization/surrogate"
)

// ScoreFunc scores a candidate point; higher is better.
type ScoreFunc func(x []float64) float64

// Constrained binds an Expected Improvement function to a fitted surrogate
// and a feasible region. Feasibility is enforced here, at the acquisition
// layer: any point outside the region scores exactly 0, so a downstream
// optimizer that only respects box bounds still never selects an infeasible
// point.
type Constrained struct {
	ei     *ExpectedImprovement
	model  surrogate.Surrogate
	region *region.Region
}

// NewConstrained creates a feasibility-gated acquisition function over a
// fitted surrogate model.
func NewConstrained(ei *ExpectedImprovement, model surrogate.Surrogate, r *region.Region) *Constrained {
	return &Constrained{ei: ei, model: model, region: r}
}

// Score returns the expected improvement at x, or 0 when x is infeasible.
// Surrogate prediction failures also degrade to 0: a scoring error on one
// candidate must not abort the whole acquisition search.
func (c *Constrained) Score(x []float64) float64 {
	if !c.region.Contains(x) {
		return 0
	}

	X := mat.NewDense(1, len(x), nil)
	X.SetRow(0, x)
	mean, variance, err := c.model.Predict(X)
	if err != nil {
		return 0
	}

	// Variance is clamped non-negative by the surrogate, but guard anyway:
	// a NaN sigma would poison the EI.
	sigma := 0.0
	if v := variance.AtVec(0); v > 0 {
		sigma = math.Sqrt(v)
	}
	return c.ei.Compute(mean.AtVec(0), sigma)
}
