// Package driver orchestrates the sequential constrained Bayesian
// optimization loop: initial design, surrogate refits, acquisition
// maximization, objective evaluation and stopping checks.
package driver

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/feasopt/feasopt/internal/optimization"
	"github.com/feasopt/feasopt/internal/optimization/acqopt"
	"github.com/feasopt/feasopt/internal/optimization/acquisition"
	"github.com/feasopt/feasopt/internal/optimization/kernels"
	"github.com/feasopt/feasopt/internal/optimization/region"
	"github.com/feasopt/feasopt/internal/optimization/surrogate"
)

const (
	defaultInitialDesign = 10
	defaultMaxIterations = 50
	defaultXi            = 0.01
	defaultNoiseVar      = 1e-6
)

// Config configures an optimization loop.
type Config struct {
	// Objective is the function to minimize. Evaluation errors are fatal
	// to the loop; callers wanting retries wrap the function themselves.
	Objective optimization.ObjectiveFunction

	// Region is the feasible search domain.
	Region *region.Region

	// Surrogate overrides the default GP (Matérn 5/2 kernel). Optional.
	Surrogate surrogate.Surrogate

	// InitialDesignSize is the number of feasible points evaluated before
	// the model-guided iterations begin. Default 10, minimum 1.
	InitialDesignSize int

	// InitialDesignMethod selects random or Latin hypercube generation for
	// the initial design. Default Latin hypercube.
	InitialDesignMethod optimization.DesignMethod

	// MaxIterations bounds the number of sequential iterations after the
	// initial design. Default 50.
	MaxIterations int

	// MaxDuration bounds wall-clock time, checked between iterations only;
	// an in-flight objective call is never interrupted. Zero means no
	// time budget.
	MaxDuration time.Duration

	// MinDistanceTol stops the loop once the two most recent evaluated
	// points are closer than this Euclidean distance. Zero disables the
	// check.
	MinDistanceTol float64

	// Seed makes runs reproducible. Zero seeds from the current time.
	Seed int64

	// Xi is the EI exploration jitter. Default 0.01.
	Xi float64

	// AcqSeeds and AcqTopK configure the acquisition maximizer. Zero
	// values use the acqopt defaults.
	AcqSeeds int
	AcqTopK  int

	// Observer, when set, is called after every objective evaluation.
	Observer EvalObserver

	// Logger, when set, receives per-iteration diagnostics.
	Logger *zap.Logger
}

// EvalObserver is notified after each objective evaluation with the point,
// its value, and the incumbent value so far.
type EvalObserver func(x []float64, value, best float64)

// Loop is a sequential constrained Bayesian optimization run. The loop
// goroutine is the only writer of the observation set and surrogate state;
// the mutex exists solely so status readers in other goroutines see a
// consistent snapshot.
type Loop struct {
	cfg    Config
	rng    *rand.Rand
	model  surrogate.Surrogate
	logger *zap.Logger
	cancel context.CancelFunc

	mu      sync.RWMutex
	state   optimization.State
	history []optimization.Evaluation
	best    *optimization.Solution
}

// New validates the configuration and creates a loop in the initializing
// state.
func New(cfg Config) (*Loop, error) {
	const op = "New"

	if cfg.Objective == nil {
		return nil, optimization.Errorf("driver", op, "objective function is required")
	}
	if cfg.Region == nil {
		return nil, optimization.Errorf("driver", op, "feasible region is required")
	}
	if cfg.InitialDesignSize < 1 {
		cfg.InitialDesignSize = defaultInitialDesign
	}
	if cfg.InitialDesignMethod == "" {
		cfg.InitialDesignMethod = optimization.DesignLatinHypercube
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.Xi <= 0 {
		cfg.Xi = defaultXi
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("driver")

	model := cfg.Surrogate
	if model == nil {
		model = surrogate.NewGP(kernels.NewMatern52(1.0, 1.0), defaultNoiseVar,
			surrogate.WithLogger(logger))
	}

	return &Loop{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		model:   model,
		logger:  logger,
		state:   optimization.StateInitializing,
		history: make([]optimization.Evaluation, 0, cfg.InitialDesignSize+cfg.MaxIterations),
	}, nil
}

// State returns the loop's current state.
func (l *Loop) State() optimization.State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Best returns the best solution found so far, or nil before any
// observation exists. The value never regresses across iterations.
func (l *Loop) Best() *optimization.Solution {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.best
}

// History returns a snapshot of the evaluations recorded so far, initial
// design first.
func (l *Loop) History() []optimization.Evaluation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]optimization.Evaluation(nil), l.history...)
}

// setState records a state transition under the write lock.
func (l *Loop) setState(state optimization.State) {
	l.mu.Lock()
	l.state = state
	l.mu.Unlock()
}

// Stop cancels a run started with Optimize.
func (l *Loop) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
}

// Optimize runs the loop to a terminal state. An error from the objective
// function is returned as-is (wrapped) and leaves the loop in the failed
// state; masking it as a value would corrupt incumbent tracking.
func (l *Loop) Optimize(ctx context.Context) (*optimization.Result, error) {
	const op = "Optimize"

	ctx, l.cancel = context.WithCancel(ctx)
	defer l.cancel()

	start := time.Now()

	if err := l.initialize(ctx); err != nil {
		l.setState(optimization.StateFailed)
		return nil, err
	}
	l.setState(optimization.StateIterating)

	iterations := 0
	for {
		if err := ctx.Err(); err != nil {
			l.setState(optimization.StateFailed)
			return nil, err
		}

		if err := l.iterate(iterations); err != nil {
			l.setState(optimization.StateFailed)
			return nil, err
		}
		iterations++

		// Stopping conditions, in priority order: iteration budget,
		// wall-clock budget, then point-distance convergence.
		if iterations >= l.cfg.MaxIterations {
			l.setState(optimization.StateBudget)
			break
		}
		if l.cfg.MaxDuration > 0 && time.Since(start) >= l.cfg.MaxDuration {
			l.setState(optimization.StateBudget)
			break
		}
		if l.converged() {
			l.setState(optimization.StateConverged)
			break
		}
	}

	final := l.State()
	l.logger.Info("optimization finished",
		zap.String("state", string(final)),
		zap.Int("iterations", iterations),
		zap.Int("evaluations", len(l.history)),
		zap.Float64("best_value", l.best.Value),
	)

	return &optimization.Result{
		BestSolution: l.best,
		History:      l.history,
		Iterations:   iterations,
		State:        final,
	}, nil
}

// initialize generates and evaluates the initial design.
func (l *Loop) initialize(ctx context.Context) error {
	const op = "initialize"

	design, err := l.cfg.Region.Sample(l.rng, l.cfg.InitialDesignSize, l.cfg.InitialDesignMethod)
	if err != nil {
		return optimization.Wrap(err, "driver", op, "failed to generate initial design")
	}

	for _, x := range design {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.evaluate(x); err != nil {
			return err
		}
	}

	l.logger.Debug("initial design evaluated",
		zap.Int("size", len(design)),
		zap.Float64("best_value", l.best.Value),
	)
	return nil
}

// iterate runs one loop body: refit, maximize acquisition, evaluate, record.
func (l *Loop) iterate(iteration int) error {
	const op = "iterate"

	X, y := l.trainingData()
	if err := l.model.Fit(X, y); err != nil {
		return optimization.Wrap(err, "driver", op, "failed to fit surrogate")
	}

	ei := acquisition.NewExpectedImprovement(l.best.Value, l.cfg.Xi)
	score := acquisition.NewConstrained(ei, l.model, l.cfg.Region)

	maximizer := acqopt.New(l.cfg.AcqSeeds, l.cfg.AcqTopK, l.rng)
	next, err := maximizer.Maximize(score.Score, l.cfg.Region)
	if err != nil {
		return optimization.Wrap(err, "driver", op, "failed to maximize acquisition")
	}

	if err := l.evaluate(next); err != nil {
		return err
	}

	l.logger.Debug("iteration complete",
		zap.Int("iteration", iteration),
		zap.Float64s("point", next),
		zap.Float64("value", l.history[len(l.history)-1].Solution.Value),
		zap.Float64("best_value", l.best.Value),
	)
	return nil
}

// evaluate calls the objective at x and appends the observation. The
// observation set is append-only and grows by exactly one entry per call.
func (l *Loop) evaluate(x []float64) error {
	value, err := l.cfg.Objective(x)
	if err != nil {
		return optimization.Wrap(err, "driver", "evaluate", "objective evaluation failed")
	}

	point := append([]float64(nil), x...)
	sol := &optimization.Solution{Parameters: point, Value: value}

	l.mu.Lock()
	l.history = append(l.history, optimization.Evaluation{
		Iteration: len(l.history),
		Solution:  sol,
	})
	if l.best == nil || value < l.best.Value {
		l.best = sol
	}
	l.mu.Unlock()

	if l.cfg.Observer != nil {
		l.cfg.Observer(point, value, l.best.Value)
	}
	return nil
}

// converged reports whether the two most recent evaluated points are
// within the configured distance tolerance.
func (l *Loop) converged() bool {
	if l.cfg.MinDistanceTol <= 0 || len(l.history) < 2 {
		return false
	}
	a := l.history[len(l.history)-1].Solution.Parameters
	b := l.history[len(l.history)-2].Solution.Parameters

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum) < l.cfg.MinDistanceTol
}

// trainingData packs the observation set into gonum matrices for the
// surrogate.
func (l *Loop) trainingData() (*mat.Dense, *mat.VecDense) {
	n := len(l.history)
	d := l.cfg.Region.Dims()

	X := mat.NewDense(n, d, nil)
	y := mat.NewVecDense(n, nil)
	for i, eval := range l.history {
		X.SetRow(i, eval.Solution.Parameters)
		y.SetVec(i, eval.Solution.Value)
	}
	return X, y
}

var _ optimization.Optimizer = (*Loop)(nil)
