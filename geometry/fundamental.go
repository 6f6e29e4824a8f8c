package geometry

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ComputeF21 estimates the fundamental matrix F21 relating pixel
// coordinates in frame 1 to frame 2 using the normalized 8-point
// algorithm, with the rank-2 constraint enforced by zeroing the smallest
// singular value of the unconstrained estimate.
func ComputeF21(p1, p2 []Point2) (f [3][3]float64, ok bool) {
	n := len(p1)
	if n != len(p2) || n < 8 {
		return f, false
	}

	n1, t1 := Normalize(p1)
	n2, t2 := Normalize(p2)

	a := mat.NewDense(n, 9, nil)
	for i := 0; i < n; i++ {
		x1, y1 := n1[i].X, n1[i].Y
		x2, y2 := n2[i].X, n2[i].Y
		a.SetRow(i, []float64{
			x2 * x1, x2 * y1, x2,
			y2 * x1, y2 * y1, y2,
			x1, y1, 1,
		})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFullV) {
		return f, false
	}
	var v mat.Dense
	svd.VTo(&v)

	var preF [3][3]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			preF[r][c] = v.At(r*3+c, 8)
		}
	}

	// Enforce rank 2.
	preFDense := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			preFDense.Set(i, j, preF[i][j])
		}
	}
	var svd2 mat.SVD
	if !svd2.Factorize(preFDense, mat.SVDFull) {
		return f, false
	}
	sv := svd2.Values(nil)
	if len(sv) != 3 {
		return f, false
	}
	var u2, v2 mat.Dense
	svd2.UTo(&u2)
	svd2.VTo(&v2)

	sigma := mat.NewDense(3, 3, nil)
	sigma.Set(0, 0, sv[0])
	sigma.Set(1, 1, sv[1])
	sigma.Set(2, 2, 0)

	var uSigma mat.Dense
	uSigma.Mul(&u2, sigma)
	var fn mat.Dense
	fn.Mul(&uSigma, v2.T())

	var fnArr [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			fnArr[i][j] = fn.At(i, j)
		}
	}

	// Undo normalization: F21 = T2^T * Fn * T1
	t2t := Transpose3(t2)
	f = Mul3(Mul3(t2t, fnArr), t1)
	if !isFiniteMat3(f) {
		return f, false
	}
	return f, true
}

// DecomposeE decomposes an essential matrix E = K2^T * F21 * K1 into the
// two rotation hypotheses and the (up to sign) translation direction,
// following the standard SVD decomposition: E = U * diag(1,1,0) * V^T,
// t = U[:,2] (normalized), R1 = U*W*V^T, R2 = U*W^T*V^T, with W the
// standard 0/-1/1 matrix. Any R with det < 0 has its sign flipped.
func DecomposeE(e [3][3]float64) (r1, r2 [3][3]float64, t [3]float64, ok bool) {
	eDense := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			eDense.Set(i, j, e[i][j])
		}
	}
	var svd mat.SVD
	if !svd.Factorize(eDense, mat.SVDFull) {
		return r1, r2, t, false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	tCol := [3]float64{u.At(0, 2), u.At(1, 2), u.At(2, 2)}
	norm := vecNorm3(tCol)
	if norm < 1e-12 {
		return r1, r2, t, false
	}
	t = [3]float64{tCol[0] / norm, tCol[1] / norm, tCol[2] / norm}

	w := [3][3]float64{
		{0, -1, 0},
		{1, 0, 0},
		{0, 0, 1},
	}
	wt := Transpose3(w)

	var uArr, vArr [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			uArr[i][j] = u.At(i, j)
			vArr[i][j] = v.At(i, j)
		}
	}
	vt := transpose3(vArr)

	r1 = Mul3(Mul3(uArr, w), vt)
	if det3(r1) < 0 {
		r1 = negate3(r1)
	}
	r2 = Mul3(Mul3(uArr, wt), vt)
	if det3(r2) < 0 {
		r2 = negate3(r2)
	}
	return r1, r2, t, true
}

func vecNorm3(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func det3(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

func negate3(m [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = -m[i][j]
		}
	}
	return out
}
