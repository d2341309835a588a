package optimization

// VariableType identifies the kind of a domain variable.
type VariableType string

const (
	// Continuous variables take any value in [Min, Max].
	Continuous VariableType = "continuous"
	// Discrete variables take one of an explicit ordered set of numeric values.
	Discrete VariableType = "discrete"
	// Categorical variables take one of an explicit set of labels, encoded
	// by index into Values.
	Categorical VariableType = "categorical"
)

// Variable describes one dimension of the search domain. Variables are
// immutable after construction; build them with NewContinuous, NewDiscrete
// or NewCategorical so invalid definitions are rejected up front.
type Variable struct {
	Name   string       `json:"name"`
	Type   VariableType `json:"type"`
	Min    float64      `json:"min,omitempty"`
	Max    float64      `json:"max,omitempty"`
	Values []float64    `json:"values,omitempty"`
}

// NewContinuous creates a continuous variable on the open range (min, max).
func NewContinuous(name string, min, max float64) (Variable, error) {
	if name == "" {
		return Variable{}, Errorf("variable", "NewContinuous", "name must not be empty")
	}
	if min >= max {
		return Variable{}, Errorf("variable", "NewContinuous",
			"%s: lower bound %v must be below upper bound %v", name, min, max)
	}
	return Variable{Name: name, Type: Continuous, Min: min, Max: max}, nil
}

// NewDiscrete creates a discrete variable over an explicit value set.
func NewDiscrete(name string, values []float64) (Variable, error) {
	if name == "" {
		return Variable{}, Errorf("variable", "NewDiscrete", "name must not be empty")
	}
	if len(values) == 0 {
		return Variable{}, Errorf("variable", "NewDiscrete", "%s: value set must not be empty", name)
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	vals := append([]float64(nil), values...)
	return Variable{Name: name, Type: Discrete, Min: min, Max: max, Values: vals}, nil
}

// NewCategorical creates a categorical variable with n categories, encoded
// as the indices 0..n-1.
func NewCategorical(name string, n int) (Variable, error) {
	if name == "" {
		return Variable{}, Errorf("variable", "NewCategorical", "name must not be empty")
	}
	if n < 1 {
		return Variable{}, Errorf("variable", "NewCategorical", "%s: need at least one category, got %d", name, n)
	}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i)
	}
	return Variable{Name: name, Type: Categorical, Min: 0, Max: float64(n - 1), Values: vals}, nil
}

// Validate checks that the variable definition is well formed. It mirrors
// the constructor checks for variables built directly, e.g. decoded from a
// request body.
func (v Variable) Validate() error {
	if v.Name == "" {
		return Errorf("variable", "Validate", "name must not be empty")
	}
	switch v.Type {
	case Continuous:
		if v.Min >= v.Max {
			return Errorf("variable", "Validate",
				"%s: lower bound %v must be below upper bound %v", v.Name, v.Min, v.Max)
		}
	case Discrete, Categorical:
		if len(v.Values) == 0 {
			return Errorf("variable", "Validate", "%s: value set must not be empty", v.Name)
		}
	default:
		return Errorf("variable", "Validate", "%s: unknown variable type %q", v.Name, v.Type)
	}
	return nil
}

// Admits reports whether val is an admissible value for the variable.
// Discrete and categorical values must match a set member to within tol.
func (v Variable) Admits(val, tol float64) bool {
	switch v.Type {
	case Continuous:
		return val >= v.Min && val <= v.Max
	default:
		for _, allowed := range v.Values {
			d := val - allowed
			if d < 0 {
				d = -d
			}
			if d <= tol {
				return true
			}
		}
		return false
	}
}

// Snap maps val onto the nearest admissible value. Continuous variables
// clamp to their bounds; discrete and categorical variables round to the
// closest set member.
func (v Variable) Snap(val float64) float64 {
	if v.Type == Continuous {
		if val < v.Min {
			return v.Min
		}
		if val > v.Max {
			return v.Max
		}
		return val
	}
	best := v.Values[0]
	bestDist := abs(val - best)
	for _, allowed := range v.Values[1:] {
		if d := abs(val - allowed); d < bestDist {
			best, bestDist = allowed, d
		}
	}
	return best
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
