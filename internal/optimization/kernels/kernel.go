// Package kernels provides covariance functions for Gaussian process
// surrogates.
package kernels

import (
	"fmt"
	"math"
)

// Kernel represents a covariance function over pairs of points.
type Kernel interface {
	// Eval computes the kernel value between two points x1 and x2
	Eval(x1, x2 []float64) float64

	// Hyperparameters returns the current hyperparameters
	Hyperparameters() []float64

	// SetHyperparameters sets the kernel's hyperparameters
	SetHyperparameters(params []float64) error
}

// sqDist returns the squared Euclidean distance between x1 and x2.
func sqDist(x1, x2 []float64) float64 {
	var sum float64
	for i := range x1 {
		d := x1[i] - x2[i]
		sum += d * d
	}
	return sum
}

func checkPositive(lengthScale, signalVar float64) {
	if lengthScale <= 0 {
		panic(fmt.Sprintf("lengthScale must be positive, got %v", lengthScale))
	}
	if signalVar <= 0 {
		panic(fmt.Sprintf("signalVar must be positive, got %v", signalVar))
	}
}

// RBF implements the squared exponential kernel.
type RBF struct {
	// lengthScale controls smoothness: larger values give smoother functions.
	lengthScale float64
	// signalVar controls the amplitude of the function.
	signalVar float64
}

// NewRBF creates an RBF kernel. Both parameters must be positive.
func NewRBF(lengthScale, signalVar float64) *RBF {
	checkPositive(lengthScale, signalVar)
	return &RBF{lengthScale: lengthScale, signalVar: signalVar}
}

// Eval computes the RBF kernel value between x1 and x2.
func (k *RBF) Eval(x1, x2 []float64) float64 {
	return k.signalVar * math.Exp(-sqDist(x1, x2)/(2*k.lengthScale*k.lengthScale))
}

// Hyperparameters returns [lengthScale, signalVar].
func (k *RBF) Hyperparameters() []float64 {
	return []float64{k.lengthScale, k.signalVar}
}

// SetHyperparameters sets [lengthScale, signalVar].
func (k *RBF) SetHyperparameters(params []float64) error {
	if len(params) != 2 {
		return fmt.Errorf("expected 2 hyperparameters, got %d", len(params))
	}
	if params[0] <= 0 || params[1] <= 0 {
		return fmt.Errorf("hyperparameters must be positive, got %v", params)
	}
	k.lengthScale, k.signalVar = params[0], params[1]
	return nil
}

// Matern52 implements the Matérn 5/2 kernel. It is the default surrogate
// kernel: rougher than RBF, which suits objective surfaces that are not
// infinitely differentiable.
type Matern52 struct {
	lengthScale float64
	signalVar   float64
}

// NewMatern52 creates a Matérn 5/2 kernel. Both parameters must be positive.
func NewMatern52(lengthScale, signalVar float64) *Matern52 {
	checkPositive(lengthScale, signalVar)
	return &Matern52{lengthScale: lengthScale, signalVar: signalVar}
}

// Eval computes the Matérn 5/2 kernel value between x1 and x2.
func (k *Matern52) Eval(x1, x2 []float64) float64 {
	r := math.Sqrt(sqDist(x1, x2)) / k.lengthScale
	sqrt5r := math.Sqrt(5) * r
	poly := 1 + sqrt5r + (5.0/3.0)*r*r
	return k.signalVar * poly * math.Exp(-sqrt5r)
}

// Hyperparameters returns [lengthScale, signalVar].
func (k *Matern52) Hyperparameters() []float64 {
	return []float64{k.lengthScale, k.signalVar}
}

// SetHyperparameters sets [lengthScale, signalVar].
func (k *Matern52) SetHyperparameters(params []float64) error {
	if len(params) != 2 {
		return fmt.Errorf("expected 2 hyperparameters, got %d", len(params))
	}
	if params[0] <= 0 || params[1] <= 0 {
		return fmt.Errorf("hyperparameters must be positive, got %v", params)
	}
	k.lengthScale, k.signalVar = params[0], params[1]
	return nil
}
