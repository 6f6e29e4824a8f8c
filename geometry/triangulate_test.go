package geometry

import (
	"math"
	"testing"

	"github.com/vislam/monoslam/internal/testutil"
)

func lineEquationThrough(a, b Point2) Line2 {
	// Line through two points in implicit form, normalized so a^2+b^2=1.
	dx := b.X - a.X
	dy := b.Y - a.Y
	la := dy
	lb := -dx
	lc := -(la*a.X + lb*a.Y)
	n := math.Sqrt(la*la + lb*lb)
	return Line2{la / n, lb / n, lc / n}
}

func TestTriangulateLineRecoversEndpoints(t *testing.T) {
	k := NewCameraIntrinsics(500, 500, 320, 240)
	pose1 := IdentityPose()
	theta := 8.0 * math.Pi / 180
	pose2 := Pose{
		R: [3][3]float64{
			{math.Cos(theta), 0, math.Sin(theta)},
			{0, 1, 0},
			{-math.Sin(theta), 0, math.Cos(theta)},
		},
		T: [3]float64{1, 0, 0},
	}
	p1 := ComposeProjection(k, pose1)
	p2 := ComposeProjection(k, pose2)

	sWorld := Point3{-0.5, 0.3, 6}
	eWorld := Point3{0.6, -0.2, 7}

	s1 := projectPoint(k, pose1, sWorld)
	e1 := projectPoint(k, pose1, eWorld)
	s2 := projectPoint(k, pose2, sWorld)
	e2 := projectPoint(k, pose2, eWorld)

	kl1 := LineFeature{S: s1, E: e1}
	kl2 := LineFeature{S: s2, E: e2}
	l1 := lineEquationThrough(s1, e1)
	l2 := lineEquationThrough(s2, e2)

	sOut, eOut, ok := TriangulateLine(kl1, kl2, p1, p2, l1, l2)
	if !ok {
		t.Fatal("TriangulateLine failed on well-conditioned input")
	}

	testutil.AssertAlmostEqual(t, sOut.X, sWorld.X, 1e-5, "S.X")
	testutil.AssertAlmostEqual(t, sOut.Y, sWorld.Y, 1e-5, "S.Y")
	testutil.AssertAlmostEqual(t, sOut.Z, sWorld.Z, 1e-5, "S.Z")
	testutil.AssertAlmostEqual(t, eOut.X, eWorld.X, 1e-5, "E.X")
	testutil.AssertAlmostEqual(t, eOut.Y, eWorld.Y, 1e-5, "E.Y")
	testutil.AssertAlmostEqual(t, eOut.Z, eWorld.Z, 1e-5, "E.Z")

	if pose1.Apply(sOut).Z <= 0 || pose2.Apply(sOut).Z <= 0 {
		t.Fatal("S endpoint must be in front of both cameras")
	}
	if pose1.Apply(eOut).Z <= 0 || pose2.Apply(eOut).Z <= 0 {
		t.Fatal("E endpoint must be in front of both cameras")
	}
}
