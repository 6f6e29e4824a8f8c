package geometry

import (
	"math"
	"math/rand"
	"testing"
)

func generalScenePoints(n int, seed int64) []Point3 {
	rnd := rand.New(rand.NewSource(seed))
	pts := make([]Point3, n)
	for i := 0; i < n; i++ {
		pts[i] = Point3{
			X: rnd.Float64()*6 - 3,
			Y: rnd.Float64()*6 - 3,
			Z: rnd.Float64()*4 + 8,
		}
	}
	return pts
}

func TestComputeF21SatisfiesEpipolarConstraint(t *testing.T) {
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

	world := generalScenePoints(64, 42)
	p1 := make([]Point2, len(world))
	p2 := make([]Point2, len(world))
	for i, w := range world {
		p1[i] = projectPoint(k, pose1, w)
		p2[i] = projectPoint(k, pose2, w)
	}

	f, ok := ComputeF21(p1, p2)
	if !ok {
		t.Fatal("ComputeF21 failed on well-conditioned general scene")
	}

	// x2^T * F * x1 should be close to 0 for every correspondence.
	for i := range p1 {
		v := epipolarResidual(f, p1[i], p2[i])
		if math.Abs(v) > 1e-2 {
			t.Fatalf("epipolar residual too large at %d: %v", i, v)
		}
	}
}

func epipolarResidual(f [3][3]float64, x1, x2 Point2) float64 {
	fx1 := [3]float64{
		f[0][0]*x1.X + f[0][1]*x1.Y + f[0][2],
		f[1][0]*x1.X + f[1][1]*x1.Y + f[1][2],
		f[2][0]*x1.X + f[2][1]*x1.Y + f[2][2],
	}
	return x2.X*fx1[0] + x2.Y*fx1[1] + fx1[2]
}

func TestComputeF21RejectsTooFewPoints(t *testing.T) {
	p1 := make([]Point2, 5)
	p2 := make([]Point2, 5)
	if _, ok := ComputeF21(p1, p2); ok {
		t.Fatal("expected ComputeF21 to fail with < 8 correspondences")
	}
}

func TestComputeF21DegenerateCollinearPoints(t *testing.T) {
	// All points on a single line in the image: the 8-point DLT system
	// is rank-deficient and should fail to produce a usable F.
	p1 := make([]Point2, 10)
	p2 := make([]Point2, 10)
	for i := range p1 {
		p1[i] = Point2{float64(i), float64(i)}
		p2[i] = Point2{float64(i) + 1, float64(i) + 1}
	}
	f, ok := ComputeF21(p1, p2)
	if ok {
		// If it "succeeds" numerically, the resulting F must still be
		// essentially useless (residuals large) rather than a false
		// positive confident estimate; we don't assert ok==false here
		// because SVD on a rank-deficient system can still return a
		// (meaningless) null vector. This documents the degenerate-input
		// boundary rather than forcing brittle failure semantics.
		_ = f
	}
}
