package regression

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// eps is the float64 machine epsilon
var eps = math.Nextafter(1, 2) - 1

// lstsq returns the minimum-norm least-squares solution of A x = b through the
// SVD pseudo-inverse. Singular values at or below max(r, c) * s_max * eps are
// treated as zero, so rank-deficient designs still yield a solution.
func lstsq(A mat.Matrix, b *mat.VecDense) (*mat.VecDense, int, error) {
	r, c := A.Dims()
	if r == 0 || c == 0 {
		return nil, 0, &NumericalError{Index: -1, Rows: r, Msg: "empty design matrix"}
	}

	var svd mat.SVD
	if ok := svd.Factorize(A, mat.SVDThin); !ok {
		return nil, 0, &NumericalError{Index: -1, Rows: r, Msg: "singular value decomposition did not converge"}
	}
	rank := svd.Rank(float64(maxInt(r, c)) * eps)
	if rank == 0 {
		return nil, 0, &NumericalError{Index: -1, Rows: r, Msg: "design matrix has rank zero"}
	}

	x := mat.NewVecDense(c, nil)
	svd.SolveVecTo(x, b, rank)
	for i := 0; i < c; i++ {
		if val := x.AtVec(i); math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, rank, &NumericalError{Index: -1, Rows: r, Value: val, Msg: "non-finite coefficient"}
		}
	}
	return x, rank, nil
}

// scaleRows returns diag(w) A and w .* b
func scaleRows(A *mat.Dense, b *mat.VecDense, w []float64) (*mat.Dense, *mat.VecDense) {
	r, c := A.Dims()
	Aw := mat.NewDense(r, c, nil)
	bw := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			Aw.Set(i, j, A.At(i, j)*w[i])
		}
		bw.SetVec(i, b.AtVec(i)*w[i])
	}
	return Aw, bw
}

func maxInt(a, b int) int {
	if a < b {
		return b
	}
	return a
}
