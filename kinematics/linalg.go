package kinematics

// Small fixed-precision linear algebra helpers for the Jacobian-based
// solvers below: a tiny hand-rolled matrix type rather than a BLAS binding,
// since every Jacobian here is a small, fixed-size N<=7 joint matrix.
type matrix struct {
	rows, cols int
	data       []float32
}

func newMatrix(rows, cols int) *matrix {
	return &matrix{rows: rows, cols: cols, data: make([]float32, rows*cols)}
}

func (m *matrix) at(r, c int) float32     { return m.data[r*m.cols+c] }
func (m *matrix) set(r, c int, v float32) { m.data[r*m.cols+c] = v }

func (m *matrix) mulVec(v []float32) []float32 {
	out := make([]float32, m.rows)
	for r := 0; r < m.rows; r++ {
		var sum float32
		for c := 0; c < m.cols; c++ {
			sum += m.at(r, c) * v[c]
		}
		out[r] = sum
	}
	return out
}

func (m *matrix) transpose() *matrix {
	out := newMatrix(m.cols, m.rows)
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			out.set(c, r, m.at(r, c))
		}
	}
	return out
}

func (m *matrix) mul(o *matrix) *matrix {
	out := newMatrix(m.rows, o.cols)
	for r := 0; r < m.rows; r++ {
		for c := 0; c < o.cols; c++ {
			var sum float32
			for k := 0; k < m.cols; k++ {
				sum += m.at(r, k) * o.at(k, c)
			}
			out.set(r, c, sum)
		}
	}
	return out
}

func (m *matrix) addDiag(v float32) {
	for i := 0; i < m.rows && i < m.cols; i++ {
		m.set(i, i, m.at(i, i)+v)
	}
}

// invertSquare inverts a square matrix via Gauss-Jordan elimination with
// partial pivoting. Returns ErrSingular if no usable pivot is found.
func invertSquare(m *matrix) (*matrix, error) {
	n := m.rows
	aug := newMatrix(n, 2*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			aug.set(r, c, m.at(r, c))
		}
		aug.set(r, n+r, 1)
	}

	for col := 0; col < n; col++ {
		pivot := col
		best := math32Abs(aug.at(col, col))
		for r := col + 1; r < n; r++ {
			if v := math32Abs(aug.at(r, col)); v > best {
				best = v
				pivot = r
			}
		}
		if best < 1e-9 {
			return nil, ErrSingular
		}
		if pivot != col {
			for c := 0; c < 2*n; c++ {
				aug.data[col*2*n+c], aug.data[pivot*2*n+c] = aug.data[pivot*2*n+c], aug.data[col*2*n+c]
			}
		}
		pv := aug.at(col, col)
		for c := 0; c < 2*n; c++ {
			aug.set(col, c, aug.at(col, c)/pv)
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug.at(r, col)
			if factor == 0 {
				continue
			}
			for c := 0; c < 2*n; c++ {
				aug.set(r, c, aug.at(r, c)-factor*aug.at(col, c))
			}
		}
	}

	out := newMatrix(n, n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			out.set(r, c, aug.at(r, n+c))
		}
	}
	return out, nil
}

func math32Abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// dampedLeastSquaresSolve solves deltaJoints = J^T (J J^T + lambda^2 I)^-1 err
// for a (possibly non-square, wide) Jacobian J, via damped least squares.
// This degrades gracefully near a kinematic singularity (spec.md §7,
// "inverse Jacobian singular during teleop") instead of returning garbage.
func dampedLeastSquaresSolve(j *matrix, err []float32, lambda float32) ([]float32, error) {
	jt := j.transpose()
	jjT := j.mul(jt)
	jjT.addDiag(lambda * lambda)
	inv, invErr := invertSquare(jjT)
	if invErr != nil {
		return nil, invErr
	}
	y := inv.mulVec(err)
	return jt.mulVec(y), nil
}
