package optimization

import (
	"context"
)

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	// Optimize runs the optimization process until a terminal state is reached
	Optimize(ctx context.Context) (*Result, error)

	// Best returns the best solution found so far
	Best() *Solution

	// History returns the history of evaluations
	History() []Evaluation

	// Stop gracefully stops the optimization process
	Stop()
}

// ObjectiveFunction defines the function to be minimized. It is called
// synchronously, exactly once per evaluated point.
type ObjectiveFunction func([]float64) (float64, error)

// DesignMethod selects how the initial design is generated.
type DesignMethod string

const (
	// DesignRandom draws points uniformly from the bounding box
	DesignRandom DesignMethod = "random"

	// DesignLatinHypercube stratifies each dimension into n bins with one
	// point per bin
	DesignLatinHypercube DesignMethod = "latin_hypercube"
)

// Solution represents a point in the search space with its objective value
type Solution struct {
	Parameters []float64 `json:"parameters"`
	Value      float64   `json:"value"`
}

// Evaluation records a single call to the objective function
type Evaluation struct {
	Iteration int
	Solution  *Solution
}

// State identifies the phase of the optimization loop.
type State string

const (
	StateInitializing State = "initializing"
	StateIterating    State = "iterating"
	StateConverged    State = "converged"
	StateBudget       State = "budget_exhausted"
	StateFailed       State = "failed"
)

// Terminal reports whether s is one of the terminal states.
func (s State) Terminal() bool {
	switch s {
	case StateConverged, StateBudget, StateFailed:
		return true
	}
	return false
}

// Result contains the outcome of an optimization run
type Result struct {
	// BestSolution is the observation with the minimal objective value
	BestSolution *Solution

	// History is the full sequence of evaluations, initial design first
	History []Evaluation

	// Iterations is the number of sequential iterations performed after
	// the initial design
	Iterations int

	// State is the terminal state the loop reached
	State State
}
