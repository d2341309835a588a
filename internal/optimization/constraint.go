package optimization

import (
	"encoding/json"
	"math"
)

// Op identifies an expression node type.
type Op string

const (
	OpConst Op = "const"
	OpVar   Op = "var"
	OpNeg   Op = "neg"
	OpAbs   Op = "abs"
	OpSqrt  Op = "sqrt"
	OpAdd   Op = "add"
	OpSub   Op = "sub"
	OpMul   Op = "mul"
	OpDiv   Op = "div"
	OpPow   Op = "pow"
	OpMin   Op = "min"
	OpMax   Op = "max"
)

// Expr is a closed arithmetic expression over the input point. It replaces
// free-form constraint strings with a structure that can be validated at
// construction time and shipped over the wire as JSON without evaluating
// untrusted code.
type Expr struct {
	Op Op `json:"op"`
	// Value is the literal for const nodes.
	Value float64 `json:"value,omitempty"`
	// Index is the input dimension for var nodes.
	Index int `json:"index,omitempty"`
	// Args are the operands for every other node.
	Args []*Expr `json:"args,omitempty"`
}

// Const returns a literal expression.
func Const(v float64) *Expr { return &Expr{Op: OpConst, Value: v} }

// Var returns a reference to input dimension i.
func Var(i int) *Expr { return &Expr{Op: OpVar, Index: i} }

// Neg returns -a.
func Neg(a *Expr) *Expr { return &Expr{Op: OpNeg, Args: []*Expr{a}} }

// Abs returns |a|.
func Abs(a *Expr) *Expr { return &Expr{Op: OpAbs, Args: []*Expr{a}} }

// Sqrt returns the square root of a.
func Sqrt(a *Expr) *Expr { return &Expr{Op: OpSqrt, Args: []*Expr{a}} }

// Add returns the sum of its operands.
func Add(args ...*Expr) *Expr { return &Expr{Op: OpAdd, Args: args} }

// Sub returns a - b.
func Sub(a, b *Expr) *Expr { return &Expr{Op: OpSub, Args: []*Expr{a, b}} }

// Mul returns the product of its operands.
func Mul(args ...*Expr) *Expr { return &Expr{Op: OpMul, Args: args} }

// Div returns a / b.
func Div(a, b *Expr) *Expr { return &Expr{Op: OpDiv, Args: []*Expr{a, b}} }

// Pow returns a raised to the power b.
func Pow(a, b *Expr) *Expr { return &Expr{Op: OpPow, Args: []*Expr{a, b}} }

// Min returns the minimum of its operands.
func Min(args ...*Expr) *Expr { return &Expr{Op: OpMin, Args: args} }

// Max returns the maximum of its operands.
func Max(args ...*Expr) *Expr { return &Expr{Op: OpMax, Args: args} }

// arity returns the required operand count for an op, or -1 for variadic
// ops that take one or more operands.
func (op Op) arity() int {
	switch op {
	case OpConst, OpVar:
		return 0
	case OpNeg, OpAbs, OpSqrt:
		return 1
	case OpSub, OpDiv, OpPow:
		return 2
	case OpAdd, OpMul, OpMin, OpMax:
		return -1
	}
	return -2
}

// Validate checks the expression tree against the number of input
// dimensions. Malformed operators and out-of-range variable references are
// reported here, never deferred to evaluation.
func (e *Expr) Validate(dims int) error {
	if e == nil {
		return Errorf("constraint", "Validate", "expression node is nil")
	}
	switch n := e.Op.arity(); {
	case n == -2:
		return Errorf("constraint", "Validate", "unknown operator %q", e.Op)
	case n == -1:
		if len(e.Args) < 1 {
			return Errorf("constraint", "Validate", "%s needs at least one operand", e.Op)
		}
	case len(e.Args) != n:
		return Errorf("constraint", "Validate", "%s needs %d operand(s), got %d", e.Op, n, len(e.Args))
	}
	if e.Op == OpVar && (e.Index < 0 || e.Index >= dims) {
		return Errorf("constraint", "Validate",
			"variable index %d out of range for %d dimension(s)", e.Index, dims)
	}
	for _, arg := range e.Args {
		if err := arg.Validate(dims); err != nil {
			return err
		}
	}
	return nil
}

// Eval evaluates the expression at x. The tree must have been validated
// against len(x) dimensions; Eval performs no bounds checks of its own.
func (e *Expr) Eval(x []float64) float64 {
	switch e.Op {
	case OpConst:
		return e.Value
	case OpVar:
		return x[e.Index]
	case OpNeg:
		return -e.Args[0].Eval(x)
	case OpAbs:
		return math.Abs(e.Args[0].Eval(x))
	case OpSqrt:
		return math.Sqrt(e.Args[0].Eval(x))
	case OpAdd:
		sum := 0.0
		for _, a := range e.Args {
			sum += a.Eval(x)
		}
		return sum
	case OpSub:
		return e.Args[0].Eval(x) - e.Args[1].Eval(x)
	case OpMul:
		prod := 1.0
		for _, a := range e.Args {
			prod *= a.Eval(x)
		}
		return prod
	case OpDiv:
		return e.Args[0].Eval(x) / e.Args[1].Eval(x)
	case OpPow:
		return math.Pow(e.Args[0].Eval(x), e.Args[1].Eval(x))
	case OpMin:
		m := e.Args[0].Eval(x)
		for _, a := range e.Args[1:] {
			m = math.Min(m, a.Eval(x))
		}
		return m
	case OpMax:
		m := e.Args[0].Eval(x)
		for _, a := range e.Args[1:] {
			m = math.Max(m, a.Eval(x))
		}
		return m
	}
	return math.NaN()
}

// Constraint is an inequality constraint over the search domain. A point x
// satisfies the constraint iff Expr.Eval(x) <= 0.
type Constraint struct {
	Name string `json:"name"`
	Expr *Expr  `json:"expr"`
}

// Satisfied reports whether x satisfies the constraint.
func (c Constraint) Satisfied(x []float64) bool {
	return c.Expr.Eval(x) <= 0
}

// UnmarshalJSON decodes a constraint, rejecting missing expressions early.
func (c *Constraint) UnmarshalJSON(data []byte) error {
	type alias Constraint
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Expr == nil {
		return Errorf("constraint", "UnmarshalJSON", "%s: missing expression", a.Name)
	}
	*c = Constraint(a)
	return nil
}
