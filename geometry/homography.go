package geometry

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ComputeH21 estimates the homography H21 mapping points in frame 1 to
// frame 2 using the normalized DLT method. A minimum of 4 correspondences
// is required; this implementation builds the full 2N x 9 system (rather
// than the theoretical 8-row minimum) to be robust when called with more
// than the minimal sample.
//
// Returns false if fewer than 4 correspondences are given or the DLT
// system is degenerate (null space could not be determined).
func ComputeH21(p1, p2 []Point2) (h [3][3]float64, ok bool) {
	n := len(p1)
	if n != len(p2) || n < 4 {
		return h, false
	}

	n1, t1 := Normalize(p1)
	n2, t2 := Normalize(p2)

	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x1, y1 := n1[i].X, n1[i].Y
		x2, y2 := n2[i].X, n2[i].Y
		a.SetRow(2*i, []float64{0, 0, 0, -x1, -y1, -1, y2 * x1, y2 * y1, y2})
		a.SetRow(2*i+1, []float64{x1, y1, 1, 0, 0, 0, -x2 * x1, -x2 * y1, -x2})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFullV) {
		return h, false
	}
	var v mat.Dense
	svd.VTo(&v)

	var hn [3][3]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			hn[r][c] = v.At(r*3+c, 8)
		}
	}

	// Undo normalization: H21 = T2^-1 * Hn * T1
	t2inv, invOk := Invert3(t2)
	if !invOk {
		return h, false
	}
	h = Mul3(Mul3(t2inv, hn), t1)
	if !isFiniteMat3(h) {
		return h, false
	}
	return h, true
}

func isFiniteMat3(m [3][3]float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !isFinite(m[i][j]) {
				return false
			}
		}
	}
	return true
}

// HomographyHypothesis is one of up to 8 (R, t, n) hypotheses produced by
// DecomposeH.
type HomographyHypothesis struct {
	R [3][3]float64
	T [3]float64
	N [3]float64
}

// DecomposeH decomposes a homography H (relating normalized image
// coordinates, i.e. H = K^-1 * H21 * K) into up to 8 (R, t, n) hypotheses
// using the Faugeras 1988 method.
//
// Returns ok=false if the singular values of the preconditioned matrix
// are not well separated (d1/d2 <= 1.00001 or d2/d3 <= 1.00001), which
// signals a degenerate/near-rotation-only homography.
func DecomposeH(h21 [3][3]float64, k CameraIntrinsics) (hyps []HomographyHypothesis, ok bool) {
	kMat := k.K()
	kInv, invOk := Invert3(kMat)
	if !invOk {
		return nil, false
	}
	a := Mul3(Mul3(kInv, h21), kMat)

	aDense := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			aDense.Set(i, j, a[i][j])
		}
	}

	var svd mat.SVD
	if !svd.Factorize(aDense, mat.SVDFull) {
		return nil, false
	}
	sv := svd.Values(nil) // descending: d1 >= d2 >= d3
	if len(sv) != 3 {
		return nil, false
	}
	d1, d2, d3 := sv[0], sv[1], sv[2]
	if d2 == 0 || d3 == 0 {
		return nil, false
	}
	if d1/d2 <= 1.00001 || d2/d3 <= 1.00001 {
		return nil, false
	}

	var uDense, vDense mat.Dense
	svd.UTo(&uDense)
	svd.VTo(&vDense)

	// Normalize by d2 so the middle singular value becomes 1, as in
	// Faugeras' formulation.
	d1n := d1 / d2
	d3n := d3 / d2

	x1 := math.Sqrt((d1n*d1n - 1) / (d1n*d1n - d3n*d3n))
	x3 := math.Sqrt((1 - d3n*d3n) / (d1n*d1n - d3n*d3n))

	x1Signs := [2]float64{1, -1}
	x3Signs := [2]float64{1, -1}

	u := func(r, c int) float64 { return uDense.At(r, c) }
	v := func(r, c int) float64 { return vDense.At(r, c) }

	var out []HomographyHypothesis

	// Case d' = d2 (rotation case).
	cosTheta := (d1n*d3n + 1) / ((d1n + d3n) * 1)
	sinThetaBase := math.Sqrt(d1n*d1n-1) * math.Sqrt(1-d3n*d3n) / ((d1n + d3n) * 1)

	for _, s1 := range x1Signs {
		for _, s3 := range x3Signs {
			sinTheta := s1 * s3 * sinThetaBase
			rp := [3][3]float64{
				{cosTheta, 0, -sinTheta},
				{0, 1, 0},
				{sinTheta, 0, cosTheta},
			}
			tp := [3]float64{
				(d1n - d3n) * s1 * x1,
				0,
				-(d1n - d3n) * s3 * x3,
			}
			np := [3]float64{s1 * x1, 0, s3 * x3}

			r := rotFromUVT(uDense, vDense, rp)
			tVec := [3]float64{
				u(0, 0)*tp[0] + u(0, 1)*tp[1] + u(0, 2)*tp[2],
				u(1, 0)*tp[0] + u(1, 1)*tp[1] + u(1, 2)*tp[2],
				u(2, 0)*tp[0] + u(2, 1)*tp[1] + u(2, 2)*tp[2],
			}
			tVec[0] *= d2
			tVec[1] *= d2
			tVec[2] *= d2
			nVec := [3]float64{
				v(0, 0)*np[0] + v(0, 1)*np[1] + v(0, 2)*np[2],
				v(1, 0)*np[0] + v(1, 1)*np[1] + v(1, 2)*np[2],
				v(2, 0)*np[0] + v(2, 1)*np[1] + v(2, 2)*np[2],
			}
			if nVec[2] < 0 {
				nVec = [3]float64{-nVec[0], -nVec[1], -nVec[2]}
				tVec = [3]float64{-tVec[0], -tVec[1], -tVec[2]}
			}
			out = append(out, HomographyHypothesis{R: r, T: tVec, N: nVec})
		}
	}

	// Case d' = -d2 (reflection case).
	cosPhi := (d1n*d3n - 1) / ((d1n - d3n) * 1)
	sinPhiBase := math.Sqrt(d1n*d1n-1) * math.Sqrt(1-d3n*d3n) / ((d1n - d3n) * 1)

	for _, s1 := range x1Signs {
		for _, s3 := range x3Signs {
			sinPhi := s1 * s3 * sinPhiBase
			rp := [3][3]float64{
				{cosPhi, 0, sinPhi},
				{0, -1, 0},
				{sinPhi, 0, -cosPhi},
			}
			tp := [3]float64{
				(d1n + d3n) * s1 * x1,
				0,
				(d1n + d3n) * s3 * x3,
			}
			np := [3]float64{s1 * x1, 0, s3 * x3}

			r := rotFromUVT(uDense, vDense, rp)
			tVec := [3]float64{
				u(0, 0)*tp[0] + u(0, 1)*tp[1] + u(0, 2)*tp[2],
				u(1, 0)*tp[0] + u(1, 1)*tp[1] + u(1, 2)*tp[2],
				u(2, 0)*tp[0] + u(2, 1)*tp[1] + u(2, 2)*tp[2],
			}
			tVec[0] *= d2
			tVec[1] *= d2
			tVec[2] *= d2
			nVec := [3]float64{
				v(0, 0)*np[0] + v(0, 1)*np[1] + v(0, 2)*np[2],
				v(1, 0)*np[0] + v(1, 1)*np[1] + v(1, 2)*np[2],
				v(2, 0)*np[0] + v(2, 1)*np[1] + v(2, 2)*np[2],
			}
			if nVec[2] < 0 {
				nVec = [3]float64{-nVec[0], -nVec[1], -nVec[2]}
				tVec = [3]float64{-tVec[0], -tVec[1], -tVec[2]}
			}
			out = append(out, HomographyHypothesis{R: r, T: tVec, N: nVec})
		}
	}

	return out, true
}

// rotFromUVT composes R = U * Rp * V^T for the Faugeras decomposition.
func rotFromUVT(u, v mat.Dense, rp [3][3]float64) [3][3]float64 {
	var uArr, vArr [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			uArr[i][j] = u.At(i, j)
			vArr[i][j] = v.At(i, j)
		}
	}
	vt := transpose3(vArr)
	return Mul3(Mul3(uArr, rp), vt)
}
