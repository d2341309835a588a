// Package region implements the feasible region of a constrained search
// domain: bound and constraint membership tests plus rejection sampling
// restricted to the feasible set.
package region

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/feasopt/feasopt/internal/optimization"
)

// snapTol is the tolerance used when matching discrete and categorical
// values that went through floating-point arithmetic.
const snapTol = 1e-9

// ErrSamplingExhausted is returned when rejection sampling spends its whole
// attempt budget without collecting enough feasible points. It usually means
// the constraints leave a vanishing fraction of the bounding box feasible.
var ErrSamplingExhausted = errors.New("feasible sampling attempt budget exhausted")

// DefaultMaxAttempts bounds the number of candidate draws per requested
// sample before Sample gives up.
const DefaultMaxAttempts = 10000

// Region is an immutable feasible region: an ordered list of domain
// variables plus a set of inequality constraints. A point is feasible iff
// it lies within every variable's admissible set and every constraint
// evaluates to <= 0.
type Region struct {
	vars        []optimization.Variable
	constraints []optimization.Constraint

	// maxAttempts is the rejection sampling budget per requested point.
	maxAttempts int
}

// Option configures a Region at construction time.
type Option func(*Region)

// WithMaxAttempts overrides the per-point rejection sampling budget.
func WithMaxAttempts(n int) Option {
	return func(r *Region) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// New constructs a Region. Configuration errors - an empty domain, invalid
// variable definitions, or a constraint referencing a dimension outside the
// domain - are reported here, never at query time.
func New(vars []optimization.Variable, constraints []optimization.Constraint, opts ...Option) (*Region, error) {
	if len(vars) == 0 {
		return nil, optimization.Errorf("region", "New", "domain must have at least one variable")
	}
	for _, v := range vars {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	for _, c := range constraints {
		if c.Expr == nil {
			return nil, optimization.Errorf("region", "New", "constraint %q has no expression", c.Name)
		}
		if err := c.Expr.Validate(len(vars)); err != nil {
			return nil, optimization.Wrap(err, "region", "New", "constraint "+c.Name)
		}
	}

	r := &Region{
		vars:        append([]optimization.Variable(nil), vars...),
		constraints: append([]optimization.Constraint(nil), constraints...),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Dims returns the number of domain variables.
func (r *Region) Dims() int {
	return len(r.vars)
}

// Variables returns the ordered domain variables.
func (r *Region) Variables() []optimization.Variable {
	return append([]optimization.Variable(nil), r.vars...)
}

// Bounds returns the per-dimension (min, max) of the outer bounding box,
// ignoring constraints. Local optimizers and grids are seeded from this box.
func (r *Region) Bounds() [][2]float64 {
	bounds := make([][2]float64, len(r.vars))
	for i, v := range r.vars {
		bounds[i] = [2]float64{v.Min, v.Max}
	}
	return bounds
}

// Contains reports whether x is feasible: within every variable's
// admissible set and satisfying every constraint. A point of the wrong
// dimensionality is never feasible.
func (r *Region) Contains(x []float64) bool {
	if len(x) != len(r.vars) {
		return false
	}
	for i, v := range r.vars {
		if !v.Admits(x[i], snapTol) {
			return false
		}
	}
	for _, c := range r.constraints {
		if !c.Satisfied(x) {
			return false
		}
	}
	return true
}

// ContainsAll evaluates Contains for each point. The result for each point
// is identical to a per-point Contains call.
func (r *Region) ContainsAll(xs [][]float64) []bool {
	out := make([]bool, len(xs))
	for i, x := range xs {
		out[i] = r.Contains(x)
	}
	return out
}

// Sample draws n feasible points by rejection sampling from the bounding
// box. DesignRandom draws uniform candidates; DesignLatinHypercube draws
// stratified candidate batches so accepted points keep a space-filling
// spread. Discrete and categorical dimensions are snapped to their value
// sets before the feasibility test. Sampling is deterministic given rng.
//
// Sample returns ErrSamplingExhausted (wrapped) when the attempt budget runs
// out before n feasible points are found.
func (r *Region) Sample(rng *rand.Rand, n int, method optimization.DesignMethod) ([][]float64, error) {
	if n <= 0 {
		return nil, optimization.Errorf("region", "Sample", "sample count must be positive, got %d", n)
	}

	budget := r.maxAttempts * n
	accepted := make([][]float64, 0, n)

	for budget > 0 && len(accepted) < n {
		need := n - len(accepted)
		var batch [][]float64
		switch method {
		case optimization.DesignLatinHypercube:
			batch = r.latinHypercube(rng, need)
		case optimization.DesignRandom, "":
			batch = r.uniform(rng, need)
		default:
			return nil, optimization.Errorf("region", "Sample", "unknown design method %q", method)
		}

		for _, x := range batch {
			if budget <= 0 {
				break
			}
			budget--
			if r.Contains(x) {
				accepted = append(accepted, x)
				if len(accepted) == n {
					break
				}
			}
		}
	}

	if len(accepted) < n {
		return nil, optimization.Wrap(ErrSamplingExhausted, "region", "Sample",
			fmt.Sprintf("collected %d of %d requested points", len(accepted), n))
	}
	return accepted, nil
}

// uniform draws n candidate points uniformly from the bounding box.
func (r *Region) uniform(rng *rand.Rand, n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		x := make([]float64, len(r.vars))
		for j, v := range r.vars {
			x[j] = v.Snap(v.Min + rng.Float64()*(v.Max-v.Min))
		}
		out[i] = x
	}
	return out
}

// latinHypercube draws n candidates with one point per stratum in each
// dimension, shuffled independently per dimension.
func (r *Region) latinHypercube(rng *rand.Rand, n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, len(r.vars))
	}

	for j, v := range r.vars {
		strata := make([]float64, n)
		for i := 0; i < n; i++ {
			strata[i] = (float64(i) + rng.Float64()) / float64(n)
		}
		rng.Shuffle(n, func(a, b int) {
			strata[a], strata[b] = strata[b], strata[a]
		})
		for i := 0; i < n; i++ {
			out[i][j] = v.Snap(v.Min + strata[i]*(v.Max-v.Min))
		}
	}
	return out
}

// Clamp projects x onto the bounding box and admissible value sets in
// place, returning x. It does not enforce constraints.
func (r *Region) Clamp(x []float64) []float64 {
	for i, v := range r.vars {
		x[i] = v.Snap(x[i])
	}
	return x
}
