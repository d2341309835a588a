// Package surrogate provides probabilistic regression models that stand in
// for the expensive objective during acquisition optimization.
package surrogate

import (
	"gonum.org/v1/gonum/mat"
)

// Surrogate is a probabilistic regression model fitted to observed
// (input, objective) pairs. Implementations are swappable; the optimization
// loop only depends on this interface.
type Surrogate interface {
	// Fit replaces the model state with a fit to the given training data.
	// X has one row per observation, y the matching objective values.
	Fit(X *mat.Dense, y *mat.VecDense) error

	// Predict returns the posterior predictive mean and variance at each
	// row of X.
	Predict(X *mat.Dense) (mean, variance *mat.VecDense, err error)
}
