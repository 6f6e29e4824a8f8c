package geometry

import "gonum.org/v1/gonum/mat"

// TriangulatePoint reconstructs a 3D point from its projections kp1, kp2
// in two views given the respective 3x4 projection matrices, using the
// standard DLT linear triangulation: stack the four rows
// [x*P(2)-P(0); y*P(2)-P(1)] for each view, then take the null vector
// (last right singular vector) of the 4x4 system as the homogeneous
// point.
func TriangulatePoint(kp1, kp2 Point2, p1, p2 ProjectionMatrix) (x Point3, ok bool) {
	a := mat.NewDense(4, 4, nil)
	row0 := p1.Row(0)
	row1 := p1.Row(1)
	row2 := p1.Row(2)
	a.SetRow(0, subScaled(row0, row2, kp1.X))
	a.SetRow(1, subScaled(row1, row2, kp1.Y))

	row0b := p2.Row(0)
	row1b := p2.Row(1)
	row2b := p2.Row(2)
	a.SetRow(2, subScaled(row0b, row2b, kp2.X))
	a.SetRow(3, subScaled(row1b, row2b, kp2.Y))

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThinV) {
		return x, false
	}
	var v mat.Dense
	svd.VTo(&v)

	w := v.At(3, 3)
	if w == 0 {
		return x, false
	}
	x = Point3{v.At(0, 3) / w, v.At(1, 3) / w, v.At(2, 3) / w}
	if !x.Finite() {
		return x, false
	}
	return x, true
}

// subScaled returns rowA - scale*rowB for 4-vectors.
func subScaled(rowA, rowB [4]float64, scale float64) []float64 {
	out := make([]float64, 4)
	for i := range out {
		out[i] = rowA[i] - scale*rowB[i]
	}
	return out
}

// TriangulateLine reconstructs a 3D line segment (S, E) from its
// projections kl1, kl2 in two views, given projection matrices and the
// implicit line equations l1, l2 observed in each view.
//
// For each endpoint of the line in frame 1, the 4x4 system is assembled
// from two "plane" rows (the endpoint must lie on both the plane backing
// l1's projection and the plane backing l2's projection) and two
// "point-in-line-1" DLT rows for that endpoint; the null vector of this
// system is the triangulated endpoint. The same routine triangulates
// both endpoints.
func TriangulateLine(kl1, kl2 LineFeature, p1, p2 ProjectionMatrix, l1, l2 Line2) (s, e Point3, ok bool) {
	planeRow1 := linePlaneRow(l1, p1)
	planeRow2 := linePlaneRow(l2, p2)

	sPt, sOk := triangulateLineEndpoint(kl1.S, planeRow1, planeRow2, p1)
	if !sOk {
		return s, e, false
	}
	ePt, eOk := triangulateLineEndpoint(kl1.E, planeRow1, planeRow2, p1)
	if !eOk {
		return s, e, false
	}
	return sPt, ePt, true
}

// linePlaneRow computes l^T * P, the row vector such that for any 3D
// point X lying on the plane backprojected by the image line l through
// camera P, [X;1]^T * (l^T * P)^T == 0.
func linePlaneRow(l Line2, p ProjectionMatrix) [4]float64 {
	row0 := p.Row(0)
	row1 := p.Row(1)
	row2 := p.Row(2)
	var out [4]float64
	for i := 0; i < 4; i++ {
		out[i] = l.A*row0[i] + l.B*row1[i] + l.C*row2[i]
	}
	return out
}

// triangulateLineEndpoint solves the 4x4 DLT system for a single
// endpoint: two plane-membership rows from the two views' backprojected
// line planes, and two point-in-line-1 rows derived from the endpoint's
// pixel coordinates and camera 1's projection matrix.
func triangulateLineEndpoint(pt Point2, planeRow1, planeRow2 [4]float64, p1 ProjectionMatrix) (Point3, bool) {
	row0 := p1.Row(0)
	row1 := p1.Row(1)
	row2 := p1.Row(2)

	a := mat.NewDense(4, 4, nil)
	a.SetRow(0, planeRow1[:])
	a.SetRow(1, planeRow2[:])
	a.SetRow(2, subScaled(row0, row2, pt.X))
	a.SetRow(3, subScaled(row1, row2, pt.Y))

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThinV) {
		return Point3{}, false
	}
	var v mat.Dense
	svd.VTo(&v)

	w := v.At(3, 3)
	if w == 0 {
		return Point3{}, false
	}
	x := Point3{v.At(0, 3) / w, v.At(1, 3) / w, v.At(2, 3) / w}
	if !x.Finite() {
		return Point3{}, false
	}
	return x, true
}
