// Package geometry implements the pure-function geometry kernel shared by the
// two-view initializer and the local mapper: point/line normalization,
// homography and fundamental matrix estimation, essential/homography
// decomposition, and SVD-based DLT triangulation of points and lines.
//
// Every function here is side-effect free and never panics on malformed
// input; callers detect degenerate results (non-finite values, failed
// decompositions) and decide how to react, per the fail-clean policy used
// throughout this module.
package geometry

import "math"

// Point2 is an undistorted pixel coordinate.
type Point2 struct {
	X, Y float64
}

// Point3 is a 3D point in world coordinates.
type Point3 struct {
	X, Y, Z float64
}

// Sub returns p - q.
func (p Point3) Sub(q Point3) Point3 {
	return Point3{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

// Norm returns the Euclidean length of p.
func (p Point3) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Dot returns the dot product of p and q.
func (p Point3) Dot(q Point3) float64 {
	return p.X*q.X + p.Y*q.Y + p.Z*q.Z
}

// Finite reports whether every coordinate of p is finite.
func (p Point3) Finite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

// Line2 is an implicit 2D line equation a*x + b*y + c = 0 with a^2+b^2 = 1.
type Line2 struct {
	A, B, C float64
}

// Eval returns the signed distance of p to the line (valid when a^2+b^2=1).
func (l Line2) Eval(p Point2) float64 {
	return l.A*p.X + l.B*p.Y + l.C
}

// LineFeature is the per-frame observation of a line segment: endpoints,
// the implicit line equation through them, pyramid octave and orientation.
type LineFeature struct {
	S, E  Point2
	Eq    Line2
	Angle float64
	Octave int
}

// CameraIntrinsics holds the pinhole calibration of a camera; immutable
// once constructed.
type CameraIntrinsics struct {
	Fx, Fy   float64
	Cx, Cy   float64
	InvFx    float64
	InvFy    float64
}

// NewCameraIntrinsics builds a CameraIntrinsics and pre-computes the
// inverse focal lengths used to unproject pixels to normalized rays.
func NewCameraIntrinsics(fx, fy, cx, cy float64) CameraIntrinsics {
	return CameraIntrinsics{
		Fx: fx, Fy: fy, Cx: cx, Cy: cy,
		InvFx: 1.0 / fx, InvFy: 1.0 / fy,
	}
}

// K returns the 3x3 calibration matrix as a row-major array.
func (c CameraIntrinsics) K() [3][3]float64 {
	return [3][3]float64{
		{c.Fx, 0, c.Cx},
		{0, c.Fy, c.Cy},
		{0, 0, 1},
	}
}

// Pose is a rigid transform mapping world coordinates into camera
// coordinates: x_cam = R*x_world + t. R must have det = +1.
type Pose struct {
	R [3][3]float64
	T [3]float64
}

// IdentityPose returns the pose at the world origin with no rotation.
func IdentityPose() Pose {
	var p Pose
	p.R[0][0], p.R[1][1], p.R[2][2] = 1, 1, 1
	return p
}

// Center returns the camera center in world coordinates: C = -R^T * t.
func (p Pose) Center() Point3 {
	rt := transpose3(p.R)
	c := mulMatVec3(rt, p.T)
	return Point3{-c[0], -c[1], -c[2]}
}

// Apply maps a world point into camera coordinates.
func (p Pose) Apply(x Point3) Point3 {
	v := [3]float64{x.X, x.Y, x.Z}
	rv := mulMatVec3(p.R, v)
	return Point3{rv[0] + p.T[0], rv[1] + p.T[1], rv[2] + p.T[2]}
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func transpose3(m [3][3]float64) [3][3]float64 {
	var t [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[j][i] = m[i][j]
		}
	}
	return t
}

func mulMatVec3(m [3][3]float64, v [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = m[i][0]*v[0] + m[i][1]*v[1] + m[i][2]*v[2]
	}
	return out
}

func mulMat3(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += a[i][k] * b[k][j]
			}
			out[i][j] = s
		}
	}
	return out
}

// Skew returns the skew-symmetric cross-product matrix [v]_x.
func Skew(v [3]float64) [3][3]float64 {
	return [3][3]float64{
		{0, -v[2], v[1]},
		{v[2], 0, -v[0]},
		{-v[1], v[0], 0},
	}
}

// ProjectionMatrix composes a 3x4 camera projection matrix P = K*[R|t].
type ProjectionMatrix [3][4]float64

// ComposeProjection builds P = K * [R | t] from intrinsics and pose.
func ComposeProjection(k CameraIntrinsics, pose Pose) ProjectionMatrix {
	kMat := k.K()
	var rt [3][4]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rt[i][j] = pose.R[i][j]
		}
		rt[i][3] = pose.T[i]
	}
	var p ProjectionMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			var s float64
			for k2 := 0; k2 < 3; k2++ {
				s += kMat[i][k2] * rt[k2][j]
			}
			p[i][j] = s
		}
	}
	return p
}

// Row returns row i (0..2) of the projection matrix as a 4-vector.
func (p ProjectionMatrix) Row(i int) [4]float64 {
	return [4]float64{p[i][0], p[i][1], p[i][2], p[i][3]}
}
