// Package acquisition scores candidate points by the expected value of
// evaluating the objective there.
package acquisition

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// sigmaFloor is the threshold below which the predictive distribution is
// treated as degenerate.
const sigmaFloor = 1e-12

// ExpectedImprovement scores a candidate by its expected improvement over
// the incumbent under the surrogate's predictive distribution, for a
// minimization problem.
type ExpectedImprovement struct {
	// best is the incumbent: the lowest objective value observed so far.
	best float64
	// xi is the exploration jitter; larger values favor exploration.
	xi float64
}

// NewExpectedImprovement creates an EI function with the given incumbent
// and exploration jitter xi (xi >= 0, typically near zero).
func NewExpectedImprovement(best, xi float64) *ExpectedImprovement {
	if xi < 0 {
		xi = 0
	}
	return &ExpectedImprovement{best: best, xi: xi}
}

// Compute returns EI at a point with predictive mean mu and standard
// deviation sigma. A degenerate prediction (sigma ~ 0, e.g. duplicated
// observations) yields 0 rather than an arithmetic error, as does a mean
// with no expected improvement over the incumbent.
func (ei *ExpectedImprovement) Compute(mu, sigma float64) float64 {
	if sigma <= sigmaFloor {
		return 0
	}

	improvement := ei.best - mu - ei.xi
	z := improvement / sigma

	stdNormal := distuv.UnitNormal
	value := improvement*stdNormal.CDF(z) + sigma*stdNormal.Prob(z)
	if value < 0 {
		// CDF/PDF round-off can push a vanishing EI slightly negative.
		return 0
	}
	return value
}

// Gradient computes the directional derivative of EI given the directional
// derivatives of mu and sigma.
func (ei *ExpectedImprovement) Gradient(mu, dmu, sigma, dsigma float64) float64 {
	if sigma <= sigmaFloor {
		return 0
	}

	improvement := ei.best - mu - ei.xi
	z := improvement / sigma

	stdNormal := distuv.UnitNormal
	// dEI/dmu = -CDF(z), dEI/dsigma = PDF(z).
	return -stdNormal.CDF(z)*dmu + stdNormal.Prob(z)*dsigma
}

// UpdateBest replaces the incumbent.
func (ei *ExpectedImprovement) UpdateBest(best float64) {
	ei.best = best
}

// Best returns the current incumbent.
func (ei *ExpectedImprovement) Best() float64 {
	return ei.best
}

// Xi returns the exploration jitter.
func (ei *ExpectedImprovement) Xi() float64 {
	return ei.xi
}
