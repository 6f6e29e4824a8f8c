package geometry

import (
	"math"
	"testing"

	"github.com/vislam/monoslam/internal/testutil"
)

func planarScenePoints(n int) []Point3 {
	pts := make([]Point3, n)
	for i := 0; i < n; i++ {
		x := float64(i%8) - 3.5
		y := float64(i/8) - 3.5
		pts[i] = Point3{x, y, 10}
	}
	return pts
}

func TestComputeH21RecoversPlanarHomography(t *testing.T) {
	k := NewCameraIntrinsics(500, 500, 320, 240)
	pose1 := IdentityPose()
	theta := 5.0 * math.Pi / 180
	pose2 := Pose{
		R: [3][3]float64{
			{math.Cos(theta), 0, math.Sin(theta)},
			{0, 1, 0},
			{-math.Sin(theta), 0, math.Cos(theta)},
		},
		T: [3]float64{1, 0, 0},
	}

	world := planarScenePoints(64)
	p1 := make([]Point2, len(world))
	p2 := make([]Point2, len(world))
	for i, w := range world {
		p1[i] = projectPoint(k, pose1, w)
		p2[i] = projectPoint(k, pose2, w)
	}

	h, ok := ComputeH21(p1, p2)
	if !ok {
		t.Fatal("ComputeH21 failed on well-conditioned planar scene")
	}

	// H21 should map p1 to p2 (up to scale) for every correspondence.
	for i := range p1 {
		got := ApplyHomogeneous(h, p1[i])
		testutil.AssertAlmostEqual(t, got.X, p2[i].X, 1e-3, "H21 reprojection x")
		testutil.AssertAlmostEqual(t, got.Y, p2[i].Y, 1e-3, "H21 reprojection y")
	}
}

func TestComputeH21RejectsTooFewPoints(t *testing.T) {
	p1 := []Point2{{0, 0}, {1, 0}, {0, 1}}
	p2 := []Point2{{0, 0}, {1, 0}, {0, 1}}
	if _, ok := ComputeH21(p1, p2); ok {
		t.Fatal("expected ComputeH21 to fail with < 4 correspondences")
	}
}

func TestDecomposeHRejectsDegenerate(t *testing.T) {
	k := NewCameraIntrinsics(500, 500, 320, 240)
	// A pure-scale homography has all singular values equal after
	// preconditioning, which must be rejected as degenerate.
	h := [3][3]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	if _, ok := DecomposeH(h, k); ok {
		t.Fatal("expected DecomposeH to reject a degenerate (identity) homography")
	}
}
