package initializer

import (
	"math"
	"testing"

	"github.com/vislam/monoslam/geometry"
	"github.com/vislam/monoslam/internal/testutil"
)

func testIntrinsics() geometry.CameraIntrinsics {
	return geometry.NewCameraIntrinsics(500, 500, 320, 240)
}

func projectFrame(k geometry.CameraIntrinsics, pose geometry.Pose, pts []geometry.Point3) []geometry.Point2 {
	out := make([]geometry.Point2, len(pts))
	for i, x := range pts {
		cam := pose.Apply(x)
		out[i] = geometry.Point2{
			X: k.Fx*cam.X/cam.Z + k.Cx,
			Y: k.Fy*cam.Y/cam.Z + k.Cy,
		}
	}
	return out
}

func identityMatches(n int) []Match {
	m := make([]Match, n)
	for i := range m {
		m[i] = i
	}
	return m
}

func rotationAboutY(deg float64) [3][3]float64 {
	a := deg * math.Pi / 180
	c, s := math.Cos(a), math.Sin(a)
	return [3][3]float64{
		{c, 0, s},
		{0, 1, 0},
		{-s, 0, c},
	}
}

func TestInitializeNonPlanarSceneSelectsFundamentalPath(t *testing.T) {
	k := testIntrinsics()
	rGT := rotationAboutY(5)
	tGT := [3]float64{1, 0, 0}
	poseGT := geometry.Pose{R: rGT, T: tGT}

	var world []geometry.Point3
	for x := -2.0; x <= 2.0; x += 0.5 {
		for y := -2.0; y <= 2.0; y += 0.5 {
			z := 6.0 + math.Mod(x+y, 1.7) // deliberately non-planar
			world = append(world, geometry.Point3{X: x, Y: y, Z: z})
		}
	}

	p1 := projectFrame(k, geometry.IdentityPose(), world)
	p2 := projectFrame(k, poseGT, world)

	refFrame := Frame{Points: p1}
	curFrame := Frame{Points: p2}

	init := New(refFrame, Config{Sigma: 1.0, MaxIterations: 200, Intrinsics: k})
	ok, recon := init.Initialize(curFrame, identityMatches(len(world)), nil)
	if !ok {
		t.Fatal("expected successful initialization on a non-planar scene")
	}
	if recon.UsedHomography {
		t.Fatal("expected the fundamental-matrix path to win on a non-planar scene")
	}

	angle := testutil.AngleBetweenRotationsDeg(recon.Pose.R, rGT)
	if angle > 1.0 {
		t.Errorf("recovered rotation off by %.3f degrees", angle)
	}

	dot := testutil.UnitDot(testutil.Vec3{X: recon.Pose.T[0], Y: recon.Pose.T[1], Z: recon.Pose.T[2]}, testutil.Vec3{X: tGT[0], Y: tGT[1], Z: tGT[2]})
	if dot < 0.99 {
		t.Errorf("recovered translation direction off: dot=%.4f", dot)
	}

	validCount := 0
	for _, v := range recon.PointValid {
		if v {
			validCount++
		}
	}
	if validCount < len(world)*9/10 {
		t.Errorf("expected most points to triangulate validly, got %d/%d", validCount, len(world))
	}
}

func TestInitializePlanarSceneSelectsHomographyPath(t *testing.T) {
	k := testIntrinsics()
	rGT := rotationAboutY(5)
	tGT := [3]float64{1, 0, 0}
	poseGT := geometry.Pose{R: rGT, T: tGT}

	var world []geometry.Point3
	for x := -2.0; x <= 2.0; x += 0.5 {
		for y := -2.0; y <= 2.0; y += 0.5 {
			world = append(world, geometry.Point3{X: x, Y: y, Z: 8.0})
		}
	}

	p1 := projectFrame(k, geometry.IdentityPose(), world)
	p2 := projectFrame(k, poseGT, world)

	refFrame := Frame{Points: p1}
	curFrame := Frame{Points: p2}

	init := New(refFrame, Config{Sigma: 1.0, MaxIterations: 200, Intrinsics: k})
	ok, recon := init.Initialize(curFrame, identityMatches(len(world)), nil)
	if !ok {
		t.Fatal("expected successful initialization on a planar scene")
	}
	if !recon.UsedHomography {
		t.Fatal("expected the homography path to win on a planar scene")
	}

	angle := testutil.AngleBetweenRotationsDeg(recon.Pose.R, rGT)
	if angle > 1.0 {
		t.Errorf("recovered rotation off by %.3f degrees", angle)
	}
}

func TestInitializeFailsWithTooFewMatches(t *testing.T) {
	k := testIntrinsics()
	refFrame := Frame{Points: []geometry.Point2{{0, 0}, {1, 1}, {2, 2}}}
	curFrame := Frame{Points: []geometry.Point2{{0, 0}, {1, 1}, {2, 2}}}

	init := New(refFrame, Config{Intrinsics: k})
	ok, recon := init.Initialize(curFrame, []Match{0, 1, 2}, nil)
	if ok || recon != nil {
		t.Fatal("expected failure with fewer than the minimum sample size of matches")
	}
}

func TestInitializeIgnoresUnmatchedIndices(t *testing.T) {
	k := testIntrinsics()
	rGT := rotationAboutY(4)
	tGT := [3]float64{0, 1, 0}
	poseGT := geometry.Pose{R: rGT, T: tGT}

	var world []geometry.Point3
	for x := -2.0; x <= 2.0; x += 0.4 {
		for y := -2.0; y <= 2.0; y += 0.4 {
			z := 6.0 + math.Mod(2*x-y, 2.1)
			world = append(world, geometry.Point3{X: x, Y: y, Z: z})
		}
	}

	p1 := projectFrame(k, geometry.IdentityPose(), world)
	p2 := projectFrame(k, poseGT, world)

	matches := identityMatches(len(world))
	// Mark every third correspondence unmatched; this should not break
	// the RANSAC search as long as enough valid pairs remain.
	for i := 0; i < len(matches); i += 3 {
		matches[i] = NoMatch
	}

	refFrame := Frame{Points: p1}
	curFrame := Frame{Points: p2}
	init := New(refFrame, Config{Sigma: 1.0, MaxIterations: 200, Intrinsics: k})
	ok, recon := init.Initialize(curFrame, matches, nil)
	if !ok {
		t.Fatal("expected successful initialization with partial matches")
	}
	for i := range matches {
		if matches[i] == NoMatch && i < len(recon.PointValid) && recon.PointValid[i] {
			t.Fatalf("index %d was unmatched but marked valid in the reconstruction", i)
		}
	}
}
