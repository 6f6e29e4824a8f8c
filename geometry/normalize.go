package geometry

import "math"

// Normalize translates the input points so their centroid sits at the
// origin and scales them so the mean absolute deviation along each axis
// equals 1. It returns the transformed points together with the 3x3
// similarity T such that T * [x,y,1]^T == [x',y',1]^T for every input
// point.
//
// This mirrors the normalization step required before both ComputeH21 and
// ComputeF21: operating on well-conditioned coordinates is what makes the
// 8-point/4-point DLT numerically stable.
func Normalize(points []Point2) (normalized []Point2, t [3][3]float64) {
	n := len(points)
	if n == 0 {
		return nil, [3][3]float64{}
	}

	var meanX, meanY float64
	for _, p := range points {
		meanX += p.X
		meanY += p.Y
	}
	meanX /= float64(n)
	meanY /= float64(n)

	shifted := make([]Point2, n)
	var meanDevX, meanDevY float64
	for i, p := range points {
		shifted[i] = Point2{p.X - meanX, p.Y - meanY}
		meanDevX += math.Abs(shifted[i].X)
		meanDevY += math.Abs(shifted[i].Y)
	}
	meanDevX /= float64(n)
	meanDevY /= float64(n)

	sx := 1.0
	if meanDevX > 1e-12 {
		sx = 1.0 / meanDevX
	}
	sy := 1.0
	if meanDevY > 1e-12 {
		sy = 1.0 / meanDevY
	}

	normalized = make([]Point2, n)
	for i, p := range shifted {
		normalized[i] = Point2{p.X * sx, p.Y * sy}
	}

	t = [3][3]float64{
		{sx, 0, -meanX * sx},
		{0, sy, -meanY * sy},
		{0, 0, 1},
	}
	return normalized, t
}

// ApplyHomogeneous applies a 3x3 matrix to a homogeneous 2D point and
// returns the de-homogenized result.
func ApplyHomogeneous(m [3][3]float64, p Point2) Point2 {
	x := m[0][0]*p.X + m[0][1]*p.Y + m[0][2]
	y := m[1][0]*p.X + m[1][1]*p.Y + m[1][2]
	w := m[2][0]*p.X + m[2][1]*p.Y + m[2][2]
	if w == 0 {
		return Point2{math.Inf(1), math.Inf(1)}
	}
	return Point2{x / w, y / w}
}

// Invert3 inverts a 3x3 matrix. ok is false if the matrix is singular.
func Invert3(m [3][3]float64) (inv [3][3]float64, ok bool) {
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	if math.Abs(det) < 1e-18 {
		return inv, false
	}
	invDet := 1.0 / det
	inv[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) * invDet
	inv[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) * invDet
	inv[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) * invDet
	inv[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) * invDet
	inv[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) * invDet
	inv[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) * invDet
	inv[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) * invDet
	inv[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) * invDet
	inv[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) * invDet
	return inv, true
}

// Mul3 multiplies two 3x3 matrices: a * b.
func Mul3(a, b [3][3]float64) [3][3]float64 {
	return mulMat3(a, b)
}

// Transpose3 returns the transpose of a 3x3 matrix.
func Transpose3(m [3][3]float64) [3][3]float64 {
	return transpose3(m)
}
