package surrogate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/feasopt/feasopt/internal/optimization/kernels"
)

func TestGPFitAndPredict(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewVecDense(3, []float64{1, 2, 1})

	gp := NewGP(kernels.NewRBF(1.0, 1.0), 1e-6)
	require.NoError(t, gp.Fit(X, y))

	mean, variance, err := gp.Predict(X)
	require.NoError(t, err)
	require.NotNil(t, mean)
	require.NotNil(t, variance)

	// With tiny noise the posterior mean interpolates the observations and
	// the variance collapses at them.
	for i := 0; i < 3; i++ {
		assert.InDelta(t, y.AtVec(i), mean.AtVec(i), 1e-3)
		assert.Less(t, variance.AtVec(i), 1e-3)
		assert.GreaterOrEqual(t, variance.AtVec(i), 0.0, "variance must not go negative")
	}
}

func TestGPWithNoise(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{-1, 0, 1})
	y := mat.NewVecDense(3, []float64{1, 0, 1})

	gp := NewGP(kernels.NewRBF(1.0, 1.0), 0.1)
	require.NoError(t, gp.Fit(X, y))

	means, variances, err := gp.Predict(X)
	require.NoError(t, err)

	// Large noise: predictions stay close but no longer interpolate, and
	// variance stays visibly positive at the training points.
	for i := 0; i < 3; i++ {
		assert.InDelta(t, y.AtVec(i), means.AtVec(i), 0.5)
		assert.Greater(t, variances.AtVec(i), 0.0)
	}
}

func TestGPVarianceGrowsAwayFromData(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{-1, 0, 1})
	y := mat.NewVecDense(3, []float64{1, 0, 1})

	gp := NewGP(kernels.NewMatern52(1.0, 1.0), 1e-6)
	require.NoError(t, gp.Fit(X, y))

	near, farPt := []float64{0.1}, []float64{5.0}
	_, sigmaNear, err := gp.PredictPoint(near)
	require.NoError(t, err)
	muFar, sigmaFar, err := gp.PredictPoint(farPt)
	require.NoError(t, err)

	assert.Greater(t, sigmaFar, sigmaNear)
	// Far from all data the posterior reverts towards the prior.
	assert.InDelta(t, 0.0, muFar, 0.2)
	assert.InDelta(t, 1.0, sigmaFar, 0.1)
}

func TestGPErrorHandling(t *testing.T) {
	gp := NewGP(kernels.NewRBF(1.0, 1.0), 1e-6)

	t.Run("nil input", func(t *testing.T) {
		err := gp.Fit(nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "input matrices must not be nil")
	})

	t.Run("empty input", func(t *testing.T) {
		err := gp.Fit(&mat.Dense{}, &mat.VecDense{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "input matrix X must not be empty")
	})

	t.Run("mismatched dimensions", func(t *testing.T) {
		X := mat.NewDense(3, 1, []float64{1, 2, 3})
		y := mat.NewVecDense(2, []float64{1, 2})
		err := gp.Fit(X, y)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimension mismatch: X has 3 samples but y has length 2")
	})

	t.Run("predict without fit", func(t *testing.T) {
		fresh := NewGP(kernels.NewRBF(1.0, 1.0), 1e-6)
		_, _, err := fresh.Predict(mat.NewDense(1, 1, []float64{0}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model not trained or no training data")
	})

	t.Run("predict wrong feature count", func(t *testing.T) {
		X := mat.NewDense(2, 2, []float64{0, 0, 1, 1})
		y := mat.NewVecDense(2, []float64{0, 1})
		require.NoError(t, gp.Fit(X, y))

		_, _, err := gp.Predict(mat.NewDense(1, 3, []float64{0, 0, 0}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dimension mismatch")
	})
}

func TestGPSingularMatrix(t *testing.T) {
	// Duplicated observations make the kernel matrix singular without
	// jitter; the fit must still succeed.
	X := mat.NewDense(3, 1, []float64{1.0, 1.0, 1.0})
	y := mat.NewVecDense(3, []float64{1.0, 1.0, 1.1})

	gp := NewGP(kernels.NewRBF(1.0, 1.0), 1e-6)
	require.NoError(t, gp.Fit(X, y))

	_, variances, err := gp.Predict(mat.NewDense(1, 1, []float64{1.0}))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, variances.AtVec(0), 0.0)
}

func TestGPBatchPredict(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{-2, -1, 0, 1, 2})
	y := mat.NewVecDense(5, []float64{4, 1, 0, 1, 4}) // x^2

	gp := NewGP(kernels.NewRBF(1.0, 1.0), 1e-6)
	require.NoError(t, gp.Fit(X, y))

	testX := mat.NewDense(3, 1, []float64{-0.5, 0.5, 1.5})
	means, variances, err := gp.Predict(testX)
	require.NoError(t, err)

	require.Equal(t, 3, means.Len())
	require.Equal(t, 3, variances.Len())

	for i := 0; i < 3; i++ {
		x := testX.At(i, 0)
		assert.InDelta(t, x*x, means.AtVec(i), 0.5, "prediction should be close to x^2")
		assert.GreaterOrEqual(t, variances.AtVec(i), 0.0)
	}
}

func TestGPRefitReplacesModel(t *testing.T) {
	gp := NewGP(kernels.NewMatern52(1.0, 1.0), 1e-6)

	X1 := mat.NewDense(2, 1, []float64{0, 1})
	y1 := mat.NewVecDense(2, []float64{0, 0})
	require.NoError(t, gp.Fit(X1, y1))

	X2 := mat.NewDense(2, 1, []float64{0, 1})
	y2 := mat.NewVecDense(2, []float64{5, 5})
	require.NoError(t, gp.Fit(X2, y2))

	mu, _, err := gp.PredictPoint([]float64{0.5})
	require.NoError(t, err)
	assert.Greater(t, mu, 2.0, "refit must discard the previous observations")
	assert.False(t, math.IsNaN(mu))
}
