package optimization

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExprEval(t *testing.T) {
	x := []float64{0.5, -1.5, 2.0}

	tests := []struct {
		name     string
		expr     *Expr
		expected float64
	}{
		{"const", Const(3.5), 3.5},
		{"var", Var(1), -1.5},
		{"neg", Neg(Var(0)), -0.5},
		{"abs", Abs(Var(1)), 1.5},
		{"sqrt", Sqrt(Const(4)), 2.0},
		{"add", Add(Var(0), Var(2), Const(1)), 3.5},
		{"sub", Sub(Var(2), Var(0)), 1.5},
		{"mul", Mul(Var(0), Var(2), Const(2)), 2.0},
		{"div", Div(Var(2), Const(4)), 0.5},
		{"pow", Pow(Var(2), Const(3)), 8.0},
		{"min", Min(Var(0), Var(1), Var(2)), -1.5},
		{"max", Max(Var(0), Var(1), Var(2)), 2.0},
		{
			// -x2 - 0.5 + |x1| - sqrt(1 - x1^2), the lower arc of the
			// lens-shaped test region.
			name: "nested arc constraint",
			expr: Add(
				Neg(Var(1)),
				Const(-0.5),
				Abs(Var(0)),
				Neg(Sqrt(Sub(Const(1), Mul(Var(0), Var(0))))),
			),
			expected: 1.5 - 0.5 + 0.5 - math.Sqrt(1-0.25),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.expr.Validate(len(x)))
			assert.InDelta(t, tt.expected, tt.expr.Eval(x), 1e-12)
		})
	}
}

func TestExprValidate(t *testing.T) {
	tests := []struct {
		name    string
		expr    *Expr
		dims    int
		wantErr bool
	}{
		{"valid var", Var(1), 2, false},
		{"var index out of range", Var(2), 2, true},
		{"negative var index", Var(-1), 2, true},
		{"nil node", nil, 2, true},
		{"nested out of range", Add(Const(1), Mul(Var(0), Var(5))), 2, true},
		{"sub wrong arity", &Expr{Op: OpSub, Args: []*Expr{Const(1)}}, 1, true},
		{"add no operands", &Expr{Op: OpAdd}, 1, true},
		{"unknown op", &Expr{Op: Op("exp")}, 1, true},
		{"const with operands", &Expr{Op: OpConst, Args: []*Expr{Const(1)}}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.expr.Validate(tt.dims)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConstraintSatisfied(t *testing.T) {
	// x0 + x1 - 1 <= 0
	c := Constraint{Name: "sum", Expr: Sub(Add(Var(0), Var(1)), Const(1))}

	assert.True(t, c.Satisfied([]float64{0.2, 0.3}))
	assert.True(t, c.Satisfied([]float64{0.5, 0.5}), "boundary counts as satisfied")
	assert.False(t, c.Satisfied([]float64{0.8, 0.4}))
}

func TestConstraintJSON(t *testing.T) {
	payload := `{
		"name": "lower_arc",
		"expr": {"op": "add", "args": [
			{"op": "neg", "args": [{"op": "var", "index": 1}]},
			{"op": "const", "value": -0.5},
			{"op": "abs", "args": [{"op": "var", "index": 0}]}
		]}
	}`

	var c Constraint
	require.NoError(t, json.Unmarshal([]byte(payload), &c))
	require.NoError(t, c.Expr.Validate(2))

	assert.Equal(t, "lower_arc", c.Name)
	assert.InDelta(t, -1.0-0.5+0.5, c.Expr.Eval([]float64{0.5, 1.0}), 1e-12)

	var missing Constraint
	err := json.Unmarshal([]byte(`{"name": "empty"}`), &missing)
	assert.Error(t, err, "constraint without expression must be rejected")
}

func TestVariableConstructors(t *testing.T) {
	t.Run("continuous", func(t *testing.T) {
		v, err := NewContinuous("x1", -1, 1)
		require.NoError(t, err)
		assert.True(t, v.Admits(0.5, 0))
		assert.False(t, v.Admits(1.5, 0))
		assert.Equal(t, 1.0, v.Snap(3.0))
		assert.Equal(t, -1.0, v.Snap(-3.0))

		_, err = NewContinuous("bad", 2, 1)
		assert.Error(t, err, "conflicting bounds must be rejected")
		_, err = NewContinuous("", 0, 1)
		assert.Error(t, err)
	})

	t.Run("discrete", func(t *testing.T) {
		v, err := NewDiscrete("layers", []float64{1, 2, 4, 8})
		require.NoError(t, err)
		assert.True(t, v.Admits(4, 1e-9))
		assert.False(t, v.Admits(3, 1e-9))
		assert.Equal(t, 4.0, v.Snap(3.2))
		assert.Equal(t, 1.0, v.Min)
		assert.Equal(t, 8.0, v.Max)

		_, err = NewDiscrete("empty", nil)
		assert.Error(t, err)
	})

	t.Run("categorical", func(t *testing.T) {
		v, err := NewCategorical("color", 3)
		require.NoError(t, err)
		assert.True(t, v.Admits(2, 1e-9))
		assert.False(t, v.Admits(3, 1e-9))
		assert.Equal(t, 2.0, v.Snap(2.4))

		_, err = NewCategorical("none", 0)
		assert.Error(t, err)
	})
}

func TestErrorFormatting(t *testing.T) {
	base := Errorf("region", "Sample", "budget exhausted after %d attempts", 100)
	assert.Equal(t, "region.Sample: budget exhausted after 100 attempts", base.Error())

	wrapped := Wrap(base, "driver", "initialize", "failed to generate initial design")
	assert.Contains(t, wrapped.Error(), "driver.initialize")
	assert.Contains(t, wrapped.Error(), "region.Sample")

	inner, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "driver", inner.Component)

	assert.Nil(t, Wrap(nil, "a", "b", "c"))
}
