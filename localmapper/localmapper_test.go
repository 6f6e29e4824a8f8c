package localmapper

import (
	"math"
	"testing"

	"github.com/vislam/monoslam/geometry"
	"github.com/vislam/monoslam/slammap"
)

func testIntrinsics() geometry.CameraIntrinsics {
	return geometry.NewCameraIntrinsics(500, 500, 320, 240)
}

func testConfig() Config {
	cfg := DefaultConfig(testIntrinsics())
	cfg.CovisibilityMinShared = 1
	return cfg
}

// nopMatcher answers every triangulation/fusion query with nothing; it
// exists so tests that only exercise culling or covisibility don't need
// a real matcher implementation.
type nopMatcher struct{}

func (nopMatcher) SearchForTriangulation(kf1, kf2 *slammap.KeyFrame, f12 [3][3]float64) []PointCorrespondence {
	return nil
}
func (nopMatcher) SearchForLineTriangulation(kf1, kf2 *slammap.KeyFrame) []LineCorrespondence {
	return nil
}
func (nopMatcher) ProjectForFusion(kf *slammap.KeyFrame, candidates []*slammap.MapPoint) []FuseCandidate {
	return nil
}

func newTestMapper(matcher FeatureMatcher) (*LocalMapper, *slammap.Map) {
	m := slammap.NewMap()
	lm := NewLocalMapper(m, matcher, nil, nil, nil, testConfig(), nil)
	return lm, m
}

func TestProcessNewKeyFrameBuildsCovisibilityAndIncrementsVisibility(t *testing.T) {
	lm, m := newTestMapper(nopMatcher{})

	kfA := m.AddKeyFrame(geometry.IdentityPose(), make([]geometry.Point2, 5), nil)
	kfB := m.AddKeyFrame(geometry.IdentityPose(), make([]geometry.Point2, 5), nil)

	for i := 0; i < 3; i++ {
		mp := m.AddMapPoint(geometry.Point3{X: float64(i)}, kfA, i)
		m.AddObservation(mp, kfB, i)
	}

	lm.ProcessNewKeyFrame(kfA)

	if w := kfA.CovisibilityWeight(kfB.ID); w != 3 {
		t.Fatalf("expected covisibility weight 3, got %d", w)
	}
	for _, mp := range kfA.MapPoints() {
		if mp.FoundRatio() != 1.0 {
			t.Errorf("expected FoundRatio 1.0 after first visibility pass, got %v", mp.FoundRatio())
		}
	}
	if lm.currentCount() != 1 {
		t.Fatalf("expected keyframe count 1, got %d", lm.currentCount())
	}
}

func TestMapPointCullingRetiresLowFoundRatioPoint(t *testing.T) {
	lm, m := newTestMapper(nopMatcher{})
	kf := m.AddKeyFrame(geometry.IdentityPose(), make([]geometry.Point2, 2), nil)

	good := m.AddMapPoint(geometry.Point3{X: 0}, kf, 0)
	bad := m.AddMapPoint(geometry.Point3{X: 1}, kf, 1)

	lm.recentPoints.Add(good, 0)
	lm.recentPoints.Add(bad, 0)

	// good is seen every time it's visible; bad almost never is.
	good.IncreaseVisible(9)
	good.IncreaseFound(9)
	bad.IncreaseVisible(9)
	bad.IncreaseFound(0)

	// advance past the point's creation keyframe so Cull examines it.
	lm.countMu.Lock()
	lm.kfCount = 1
	lm.countMu.Unlock()

	culled := lm.MapPointCulling()
	if culled != 1 {
		t.Fatalf("expected exactly 1 culled point, got %d", culled)
	}
	if !bad.IsBad() {
		t.Error("expected low-FoundRatio point to be marked bad")
	}
	if good.IsBad() {
		t.Error("expected high-FoundRatio point to survive culling")
	}
	if m.MapPointCount() != 1 {
		t.Errorf("expected 1 surviving map point, got %d", m.MapPointCount())
	}
}

// pairMatcher returns a fixed set of point correspondences for
// triangulation regardless of which keyframe pair is queried, enough to
// exercise CreateNewMapPoints against a single synthetic neighbor.
type pairMatcher struct {
	triangulate []PointCorrespondence
}

func (p pairMatcher) SearchForTriangulation(kf1, kf2 *slammap.KeyFrame, f12 [3][3]float64) []PointCorrespondence {
	return p.triangulate
}
func (pairMatcher) SearchForLineTriangulation(kf1, kf2 *slammap.KeyFrame) []LineCorrespondence {
	return nil
}
func (pairMatcher) ProjectForFusion(kf *slammap.KeyFrame, candidates []*slammap.MapPoint) []FuseCandidate {
	return nil
}

func TestCreateNewMapPointsTriangulatesAgainstCovisibleNeighbor(t *testing.T) {
	k := testIntrinsics()
	newPoint := geometry.Point3{X: 0.3, Y: -0.2, Z: 6}
	sharedPoint := geometry.Point3{X: -0.1, Y: 0.1, Z: 5}

	poseA := geometry.IdentityPose()
	poseB := geometry.Pose{R: rotYSmall(5), T: [3]float64{1, 0, 0}}

	projA := project1(k, poseA, newPoint)
	projB := project1(k, poseB, newPoint)
	sharedProjA := project1(k, poseA, sharedPoint)
	sharedProjB := project1(k, poseB, sharedPoint)

	lm, m := newTestMapper(pairMatcher{triangulate: []PointCorrespondence{{Idx1: 0, Idx2: 0}}})
	kfA := m.AddKeyFrame(poseA, []geometry.Point2{projA, sharedProjA}, nil)
	kfB := m.AddKeyFrame(poseB, []geometry.Point2{projB, sharedProjB}, nil)

	// Bind a second, already-triangulated point shared by both keyframes
	// purely so UpdateConnections links A and B in the covisibility graph.
	mpShared := m.AddMapPoint(sharedPoint, kfA, 1)
	m.AddObservation(mpShared, kfB, 1)
	kfA.UpdateConnections(1)

	created := lm.CreateNewMapPoints(kfA)
	if created != 1 {
		t.Fatalf("expected 1 new map point created, got %d", created)
	}
	if lm.recentPoints.Len() != 1 {
		t.Fatalf("expected new point enrolled on probation list, got %d", lm.recentPoints.Len())
	}
}

func rotYSmall(deg float64) [3][3]float64 {
	a := deg * math.Pi / 180
	c, s := math.Cos(a), math.Sin(a)
	return [3][3]float64{
		{c, 0, s},
		{0, 1, 0},
		{-s, 0, c},
	}
}

func project1(k geometry.CameraIntrinsics, pose geometry.Pose, x geometry.Point3) geometry.Point2 {
	cam := pose.Apply(x)
	return geometry.Point2{X: k.Fx*cam.X/cam.Z + k.Cx, Y: k.Fy*cam.Y/cam.Z + k.Cy}
}

func TestSearchInNeighborsFusesDuplicatePoints(t *testing.T) {
	lm, m := newTestMapper(nopMatcher{})
	kfA := m.AddKeyFrame(geometry.IdentityPose(), make([]geometry.Point2, 2), nil)
	kfB := m.AddKeyFrame(geometry.IdentityPose(), make([]geometry.Point2, 2), nil)

	mpA := m.AddMapPoint(geometry.Point3{X: 1}, kfA, 0)
	mpA.IncreaseFound(5)
	mpA.IncreaseVisible(5)
	mpB := m.AddMapPoint(geometry.Point3{X: 1.001}, kfB, 1)

	lm.matcher = fuseMatcher{target: kfB, candidateID: mpA.ID, slot: 1}

	fused := lm.SearchInNeighbors(kfA, []slammap.ID{kfB.ID})
	if fused == 0 {
		t.Fatal("expected at least one fusion")
	}
	if got := kfB.MapPoint(1); got != mpA {
		t.Fatalf("expected kfB slot 1 to be rebound to the surviving point, got %v", got)
	}
	if !mpB.IsBad() {
		t.Error("expected the losing point to be marked bad")
	}
}

// fuseMatcher proposes that candidateID (found among the candidates
// slice by ID) should bind to slot in target, at zero cost, whenever
// target is queried.
type fuseMatcher struct {
	target      *slammap.KeyFrame
	candidateID slammap.ID
	slot        int
}

func (fuseMatcher) SearchForTriangulation(kf1, kf2 *slammap.KeyFrame, f12 [3][3]float64) []PointCorrespondence {
	return nil
}
func (fuseMatcher) SearchForLineTriangulation(kf1, kf2 *slammap.KeyFrame) []LineCorrespondence {
	return nil
}
func (f fuseMatcher) ProjectForFusion(kf *slammap.KeyFrame, candidates []*slammap.MapPoint) []FuseCandidate {
	if kf.ID != f.target.ID {
		return nil
	}
	for i, c := range candidates {
		if c.ID == f.candidateID {
			return []FuseCandidate{{PointIdx: i, FeatureIdx: f.slot, Cost: 0}}
		}
	}
	return nil
}

func TestKeyFrameCullingRetiresRedundantNeighbor(t *testing.T) {
	lm, m := newTestMapper(nopMatcher{})
	lm.cfg.RedundancyMinObservers = 2
	lm.cfg.RedundancyRatio = 0.9

	const numRedundantPoints = 9
	kfMain := m.AddKeyFrame(geometry.IdentityPose(), make([]geometry.Point2, 1), nil)
	kfRedundant := m.AddKeyFrame(geometry.IdentityPose(), make([]geometry.Point2, numRedundantPoints+1), nil)
	kfOther1 := m.AddKeyFrame(geometry.IdentityPose(), make([]geometry.Point2, numRedundantPoints), nil)
	kfOther2 := m.AddKeyFrame(geometry.IdentityPose(), make([]geometry.Point2, numRedundantPoints), nil)

	for i := 0; i < numRedundantPoints; i++ {
		mp := m.AddMapPoint(geometry.Point3{X: float64(i)}, kfRedundant, i)
		m.AddObservation(mp, kfOther1, i)
		m.AddObservation(mp, kfOther2, i)
	}
	// link kfMain and kfRedundant into the same covisibility neighborhood,
	// using kfRedundant's unused last slot so it doesn't collide with the
	// redundant points bound above. This single point is not itself
	// redundant, so 9 of 10 of kfRedundant's points (90%) qualify.
	linkMP := m.AddMapPoint(geometry.Point3{X: 99}, kfMain, 0)
	m.AddObservation(linkMP, kfRedundant, numRedundantPoints)

	kfMain.UpdateConnections(1)

	culled := lm.KeyFrameCulling(kfMain)
	if culled != 1 {
		t.Fatalf("expected 1 redundant keyframe culled, got %d", culled)
	}
	if !kfRedundant.IsBad() {
		t.Error("expected redundant keyframe marked bad")
	}
}
