// Package testutil collects comparison helpers shared across this
// module's test files: scalar and matrix near-equality, and the 3D
// geometry comparisons (points, rotations) used by the geometry,
// initializer and scorer test suites.
package testutil

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// AlmostEqual reports whether a and b differ by no more than tolerance.
func AlmostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// AssertAlmostEqual fails the test if actual is not within tolerance of expected.
func AssertAlmostEqual(t *testing.T, actual, expected, tolerance float64, msg string) {
	t.Helper()
	if !AlmostEqual(actual, expected, tolerance) {
		t.Errorf("%s: expected %.15f, got %.15f (diff: %.15e)", msg, expected, actual, math.Abs(actual-expected))
	}
}

// AssertMatrixAlmostEqual fails the test if actual and expected differ in
// shape, or in any entry by more than tolerance.
func AssertMatrixAlmostEqual(t *testing.T, actual, expected *mat.Dense, tolerance float64, msg string) {
	t.Helper()
	r1, c1 := actual.Dims()
	r2, c2 := expected.Dims()
	if r1 != r2 || c1 != c2 {
		t.Fatalf("%s: dimension mismatch - actual (%d,%d) vs expected (%d,%d)", msg, r1, c1, r2, c2)
	}
	for i := 0; i < r1; i++ {
		for j := 0; j < c1; j++ {
			AssertAlmostEqual(t, actual.At(i, j), expected.At(i, j), tolerance, msg)
		}
	}
}

// Vec3 is the minimal 3-vector shape needed for geometry comparisons,
// satisfied by geometry.Point3 without importing it here (avoids an
// import cycle between geometry's tests and this package).
type Vec3 struct{ X, Y, Z float64 }

// AlmostEqualVec3 reports whether a and b are within tolerance componentwise.
func AlmostEqualVec3(a, b Vec3, tolerance float64) bool {
	return AlmostEqual(a.X, b.X, tolerance) && AlmostEqual(a.Y, b.Y, tolerance) && AlmostEqual(a.Z, b.Z, tolerance)
}

// AngleBetweenRotationsDeg returns the angle in degrees of the rotation
// R1^T * R2, i.e. how far apart two 3x3 rotation matrices are.
func AngleBetweenRotationsDeg(r1, r2 [3][3]float64) float64 {
	var rel [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				// rel = R1^T * R2
				s += r1[k][i] * r2[k][j]
			}
			rel[i][j] = s
		}
	}
	trace := rel[0][0] + rel[1][1] + rel[2][2]
	cosAngle := (trace - 1) / 2
	if cosAngle > 1 {
		cosAngle = 1
	}
	if cosAngle < -1 {
		cosAngle = -1
	}
	return math.Acos(cosAngle) * 180 / math.Pi
}

// UnitDot returns the dot product of two vectors normalized to unit
// length, used to compare translation *directions* (scale-free).
func UnitDot(a, b Vec3) float64 {
	na := math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
	nb := math.Sqrt(b.X*b.X + b.Y*b.Y + b.Z*b.Z)
	if na == 0 || nb == 0 {
		return 0
	}
	return (a.X*b.X + a.Y*b.Y + a.Z*b.Z) / (na * nb)
}
