package surrogate

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/feasopt/feasopt/internal/optimization"
	"github.com/feasopt/feasopt/internal/optimization/kernels"
)

// GP implements Gaussian process regression. Fit replaces the whole model
// state; Fit and Predict are never called concurrently by the optimization
// loop, so GP carries no locking.
type GP struct {
	kernel   kernels.Kernel
	noiseVar float64

	// Training data, copied at Fit time.
	x *mat.Dense
	y *mat.VecDense

	// alpha solves (K + noise*I) alpha = y; chol is the factorization used
	// for predictive variance.
	alpha *mat.VecDense
	chol  *mat.Cholesky

	pool   *matrixPool
	logger *zap.Logger
}

// GPOption configures a GP at construction time.
type GPOption func(*GP)

// WithLogger attaches a zap logger for numerical diagnostics.
func WithLogger(logger *zap.Logger) GPOption {
	return func(gp *GP) {
		if logger != nil {
			gp.logger = logger
		}
	}
}

// NewGP creates a Gaussian process with the given kernel and observation
// noise variance. A small noise variance (1e-6) keeps the kernel matrix
// well conditioned even with near-duplicate observations.
func NewGP(kernel kernels.Kernel, noiseVar float64, opts ...GPOption) *GP {
	gp := &GP{
		kernel:   kernel,
		noiseVar: noiseVar,
		pool:     newMatrixPool(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(gp)
	}
	gp.logger = gp.logger.Named("gp")
	return gp
}

// Fit fits the GP to the training data. X has one observation per row.
func (gp *GP) Fit(X *mat.Dense, y *mat.VecDense) error {
	const op = "Fit"

	if X == nil || y == nil {
		return optimization.Errorf("gp", op, "input matrices must not be nil")
	}
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return optimization.Errorf("gp", op, "input matrix X must not be empty")
	}
	if yLen := y.Len(); nSamples != yLen {
		return optimization.Errorf("gp", op,
			"dimension mismatch: X has %d samples but y has length %d", nSamples, yLen)
	}

	gp.logger.Debug("fitting GP",
		zap.Int("samples", nSamples),
		zap.Int("features", nFeatures),
		zap.Float64("noise_var", gp.noiseVar),
	)

	gp.x = mat.DenseCopyOf(X)
	gp.y = mat.VecDenseCopyOf(y)

	K := gp.kernelMatrix(gp.x, nSamples)
	defer gp.pool.putSym(K)

	alpha, chol, err := gp.solve(K, gp.y)
	if err != nil {
		return optimization.Wrap(err, "gp", op, "failed to solve kernel system")
	}
	gp.alpha = alpha
	gp.chol = chol
	return nil
}

// kernelMatrix computes K(X, X) with noise variance on the diagonal.
func (gp *GP) kernelMatrix(X *mat.Dense, n int) *mat.SymDense {
	K := gp.pool.getSym(n)
	for i := 0; i < n; i++ {
		xi := X.RawRowView(i)
		K.SetSym(i, i, gp.kernel.Eval(xi, xi)+gp.noiseVar)
		for j := i + 1; j < n; j++ {
			K.SetSym(i, j, gp.kernel.Eval(xi, X.RawRowView(j)))
		}
	}
	return K
}

// solve factorizes K and solves K alpha = y. Cholesky is attempted with
// escalating diagonal jitter; if it never succeeds the solve falls back to
// a pseudo-inverse via SVD (and leaves no factorization for the variance
// shortcut, in which case Predict recomputes it).
func (gp *GP) solve(K *mat.SymDense, y *mat.VecDense) (*mat.VecDense, *mat.Cholesky, error) {
	n := y.Len()

	jitter := 0.0
	for attempt := 0; attempt < 8; attempt++ {
		Kj := mat.NewSymDense(n, nil)
		Kj.CopySym(K)
		if jitter > 0 {
			for i := 0; i < n; i++ {
				Kj.SetSym(i, i, Kj.At(i, i)+jitter)
			}
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(Kj); !ok {
			if jitter == 0 {
				jitter = 1e-10
			} else {
				jitter *= 10
			}
			gp.logger.Debug("Cholesky factorization failed, adding jitter",
				zap.Int("attempt", attempt+1),
				zap.Float64("jitter", jitter))
			continue
		}

		alpha := mat.NewVecDense(n, nil)
		if err := chol.SolveVecTo(alpha, y); err != nil {
			jitter = math.Max(jitter*10, 1e-10)
			continue
		}
		return alpha, &chol, nil
	}

	gp.logger.Warn("Cholesky attempts exhausted, falling back to SVD")
	alpha, err := gp.solveSVD(K, y)
	if err != nil {
		return nil, nil, err
	}
	return alpha, nil, nil
}

// solveSVD solves K alpha = y with a truncated pseudo-inverse. It is the
// last resort for severely rank-deficient kernel matrices, e.g. many
// duplicated observations.
func (gp *GP) solveSVD(K *mat.SymDense, y *mat.VecDense) (*mat.VecDense, error) {
	const op = "solveSVD"
	n := y.Len()

	Kd := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			Kd.Set(i, j, K.At(i, j))
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(Kd, mat.SVDFull); !ok {
		return nil, optimization.Errorf("gp", op, "SVD factorization failed")
	}

	s := svd.Values(nil)
	if len(s) == 0 || s[0] <= 0 {
		return nil, optimization.Errorf("gp", op, "kernel matrix has no positive singular values")
	}
	threshold := float64(n) * s[0] * 1e-15

	var U, V mat.Dense
	svd.UTo(&U)
	svd.VTo(&V)

	// alpha = V * S^+ * U^T * y
	uty := make([]float64, n)
	rank := 0
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			sum += U.At(j, i) * y.AtVec(j)
		}
		if s[i] > threshold {
			uty[i] = sum / s[i]
			rank++
		}
	}
	if rank == 0 {
		return nil, optimization.Errorf("gp", op, "kernel matrix is effectively rank zero")
	}

	alpha := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			sum += V.At(i, j) * uty[j]
		}
		alpha.SetVec(i, sum)
	}

	gp.logger.Debug("solved kernel system with SVD",
		zap.Int("effective_rank", rank),
		zap.Float64("condition_number", s[0]/math.Max(s[len(s)-1], 1e-16)))
	return alpha, nil
}

// Predict returns the posterior predictive mean and variance at each row of
// X. Variance is clamped to be non-negative; numerical round-off below zero
// is expected near training points.
func (gp *GP) Predict(X *mat.Dense) (*mat.VecDense, *mat.VecDense, error) {
	const op = "Predict"

	if X == nil {
		return nil, nil, optimization.Errorf("gp", op, "input matrix X is nil")
	}
	if gp.x == nil || gp.alpha == nil {
		return nil, nil, optimization.Errorf("gp", op, "model not trained or no training data")
	}

	nTest, dTest := X.Dims()
	nTrain, dTrain := gp.x.Dims()
	if dTest != dTrain {
		return nil, nil, optimization.Errorf("gp", op,
			"dimension mismatch: model trained on %d features, got %d", dTrain, dTest)
	}

	mean := mat.NewVecDense(nTest, nil)
	variance := mat.NewVecDense(nTest, nil)

	// Cross-covariance between test and training points, and the prior
	// variance at each test point.
	kss := make([]float64, nTest)
	kstar := gp.pool.getDense(nTest, nTrain)
	defer gp.pool.putDense(kstar)

	for i := 0; i < nTest; i++ {
		xs := X.RawRowView(i)
		kss[i] = gp.kernel.Eval(xs, xs) + gp.noiseVar
		for j := 0; j < nTrain; j++ {
			kstar.Set(i, j, gp.kernel.Eval(xs, gp.x.RawRowView(j)))
		}
	}

	mean.MulVec(kstar, gp.alpha)

	chol := gp.chol
	if chol == nil {
		// The SVD fallback left no factorization; rebuild one with heavy
		// jitter purely for the variance term.
		K := gp.kernelMatrix(gp.x, nTrain)
		defer gp.pool.putSym(K)
		for i := 0; i < nTrain; i++ {
			K.SetSym(i, i, K.At(i, i)+1e-8)
		}
		var c mat.Cholesky
		if ok := c.Factorize(K); ok {
			chol = &c
		}
	}

	if chol != nil {
		// Solve K v = k*^T; posterior variance is kss - sum(v^2) per column.
		v := mat.NewDense(nTrain, nTest, nil)
		if err := chol.SolveTo(v, kstar.T()); err != nil {
			return nil, nil, optimization.Wrap(err, "gp", op, "failed to solve for predictive variance")
		}
		for i := 0; i < nTest; i++ {
			var sum float64
			for j := 0; j < nTrain; j++ {
				val := v.At(j, i)
				sum += val * val
			}
			variance.SetVec(i, math.Max(0, kss[i]-sum))
		}
	} else {
		// No usable factorization at all: report the prior variance rather
		// than failing the whole iteration.
		for i := 0; i < nTest; i++ {
			variance.SetVec(i, kss[i])
		}
	}

	return mean, variance, nil
}

// PredictPoint is a single-point convenience over Predict.
func (gp *GP) PredictPoint(x []float64) (mu, sigma float64, err error) {
	X := mat.NewDense(1, len(x), nil)
	X.SetRow(0, x)
	mean, variance, err := gp.Predict(X)
	if err != nil {
		return 0, 0, err
	}
	return mean.AtVec(0), math.Sqrt(variance.AtVec(0)), nil
}

var _ Surrogate = (*GP)(nil)
