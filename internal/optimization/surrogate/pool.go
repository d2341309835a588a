package surrogate

import "gonum.org/v1/gonum/mat"

// matrixPool recycles kernel matrix allocations between refits. The loop
// refits the GP every iteration on data that grows by one row, so the
// matrices are nearly always reusable.
type matrixPool struct {
	sym   []*mat.SymDense
	dense []*mat.Dense
}

func newMatrixPool() *matrixPool {
	return &matrixPool{
		sym:   make([]*mat.SymDense, 0, 4),
		dense: make([]*mat.Dense, 0, 4),
	}
}

// getSym returns an n x n symmetric matrix, reusing a pooled one of the
// same size when available.
func (p *matrixPool) getSym(n int) *mat.SymDense {
	for i := len(p.sym) - 1; i >= 0; i-- {
		m := p.sym[i]
		if m.SymmetricDim() == n {
			p.sym = append(p.sym[:i], p.sym[i+1:]...)
			m.Zero()
			return m
		}
	}
	return mat.NewSymDense(n, nil)
}

// putSym returns a symmetric matrix to the pool.
func (p *matrixPool) putSym(m *mat.SymDense) {
	if m != nil {
		p.sym = append(p.sym, m)
	}
}

// getDense returns an r x c dense matrix.
func (p *matrixPool) getDense(r, c int) *mat.Dense {
	if n := len(p.dense); n > 0 {
		m := p.dense[n-1]
		p.dense = p.dense[:n-1]
		mr, mc := m.Dims()
		if mr == r && mc == c {
			m.Zero()
			return m
		}
	}
	return mat.NewDense(r, c, nil)
}

// putDense returns a dense matrix to the pool.
func (p *matrixPool) putDense(m *mat.Dense) {
	if m != nil {
		p.dense = append(p.dense, m)
	}
}
