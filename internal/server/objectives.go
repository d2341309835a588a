package server

import (
	"math"
	"sort"

	"github.com/feasopt/feasopt/internal/optimization"
)

// Objective is a named built-in test objective. Jobs reference objectives
// by name; the service never evaluates caller-supplied code.
type Objective struct {
	Name string
	// Dims is the required dimensionality, or 0 for any.
	Dims int
	Func optimization.ObjectiveFunction
}

// builtinObjectives is the registry of objectives jobs can optimize.
var builtinObjectives = map[string]Objective{
	"sphere": {
		Name: "sphere",
		Func: func(x []float64) (float64, error) {
			var sum float64
			for _, v := range x {
				sum += v * v
			}
			return sum, nil
		},
	},
	"six_hump_camel": {
		Name: "six_hump_camel",
		Dims: 2,
		Func: func(x []float64) (float64, error) {
			x1, x2 := x[0], x[1]
			return (4-2.1*x1*x1+math.Pow(x1, 4)/3)*x1*x1 +
				x1*x2 +
				(-4+4*x2*x2)*x2*x2, nil
		},
	},
	"branin": {
		Name: "branin",
		Dims: 2,
		Func: func(x []float64) (float64, error) {
			const (
				a = 1.0
				b = 5.1 / (4 * math.Pi * math.Pi)
				c = 5 / math.Pi
				r = 6.0
				s = 10.0
				t = 1 / (8 * math.Pi)
			)
			x1, x2 := x[0], x[1]
			term := x2 - b*x1*x1 + c*x1 - r
			return a*term*term + s*(1-t)*math.Cos(x1) + s, nil
		},
	},
	"rosenbrock": {
		Name: "rosenbrock",
		Func: func(x []float64) (float64, error) {
			var sum float64
			for i := 0; i+1 < len(x); i++ {
				a := x[i+1] - x[i]*x[i]
				b := 1 - x[i]
				sum += 100*a*a + b*b
			}
			return sum, nil
		},
	},
}

// ObjectiveNames returns the registry's names in sorted order.
func ObjectiveNames() []string {
	names := make([]string, 0, len(builtinObjectives))
	for name := range builtinObjectives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupObjective returns the named objective.
func LookupObjective(name string) (Objective, bool) {
	obj, ok := builtinObjectives[name]
	return obj, ok
}
