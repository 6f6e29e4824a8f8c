package localmapper

import (
	"math"

	"github.com/vislam/monoslam/geometry"
	"github.com/vislam/monoslam/internal/motmetrics"
	"github.com/vislam/monoslam/slammap"
)

const (
	newPointReprojSigma = 1.0
	minNewPointParallax = 0.5 // degrees; looser than initialization since depth is already well constrained
)

// ComputeF12 derives the fundamental matrix relating kf1's and kf2's
// pixel coordinates from their poses and shared calibration, the
// counterpart of ComputeF21 used during two-view initialization: here
// the relative pose is already known (both keyframes are already in the
// map), so F12 follows directly from R12, t12 and K rather than from
// point correspondences.
func ComputeF12(pose1, pose2 geometry.Pose, k geometry.CameraIntrinsics) [3][3]float64 {
	r2t := geometry.Transpose3(pose2.R)
	r12 := geometry.Mul3(pose1.R, r2t)
	t2 := [3]float64{pose2.T[0], pose2.T[1], pose2.T[2]}
	rt2 := mulMatVec(r12, t2)
	t12 := [3]float64{pose1.T[0] - rt2[0], pose1.T[1] - rt2[1], pose1.T[2] - rt2[2]}

	e12 := geometry.Mul3(geometry.Skew(t12), r12)

	kMat := k.K()
	kInv, ok := geometry.Invert3(kMat)
	if !ok {
		return [3][3]float64{}
	}
	kInvT := geometry.Transpose3(kInv)
	return geometry.Mul3(geometry.Mul3(kInvT, e12), kInv)
}

func mulMatVec(m [3][3]float64, v [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = m[i][0]*v[0] + m[i][1]*v[1] + m[i][2]*v[2]
	}
	return out
}

// CreateNewMapPoints searches kf's best covisible neighbors for
// untriangulated correspondences consistent with the epipolar geometry
// between the two keyframes, triangulates each, and binds a new
// MapPoint for every one that passes a cheirality/reprojection check.
// Freshly created points are enrolled on the probation list for
// MapPointCulling to judge over the next few keyframes.
func (lm *LocalMapper) CreateNewMapPoints(kf *slammap.KeyFrame) (created int) {
	lm.setState(StateCreatingPoints)
	if lm.matcher == nil {
		return 0
	}

	pose1 := kf.Pose()
	proj1 := geometry.ComposeProjection(lm.cfg.Intrinsics, pose1)
	count := lm.currentCount()

	for _, nid := range kf.BestCovisible(lm.cfg.NumNeighborsForCreation) {
		neighbor := lm.m.KeyFrame(nid)
		if neighbor == nil || neighbor.IsBad() {
			continue
		}
		pose2 := neighbor.Pose()
		f12 := ComputeF12(pose1, pose2, lm.cfg.Intrinsics)
		proj2 := geometry.ComposeProjection(lm.cfg.Intrinsics, pose2)

		for _, corr := range lm.matcher.SearchForTriangulation(kf, neighbor, f12) {
			if kf.MapPoint(corr.Idx1) != nil || neighbor.MapPoint(corr.Idx2) != nil {
				continue
			}
			if corr.Idx1 < 0 || corr.Idx1 >= len(kf.Points) || corr.Idx2 < 0 || corr.Idx2 >= len(neighbor.Points) {
				continue
			}

			p1 := kf.Points[corr.Idx1]
			p2 := neighbor.Points[corr.Idx2]
			x, ok := geometry.TriangulatePoint(p1, p2, proj1, proj2)
			if !ok || !x.Finite() {
				continue
			}
			if !validTriangulation(lm.cfg.Intrinsics, pose1, pose2, x, p1, p2) {
				continue
			}

			mp := lm.m.AddMapPoint(x, kf, corr.Idx1)
			lm.m.AddObservation(mp, neighbor, corr.Idx2)
			lm.recentPoints.Add(mp, count)
			created++
		}
	}
	return created
}

// CreateNewMapLinesConstraint is the line-feature analogue of
// CreateNewMapPoints. Because line endpoints are far less reliably
// localized than point features, a triangulated candidate is only
// accepted when its 2D line feature in kf also overlaps, along its
// dominant axis, by at least cfg.LineOverlapThreshold with one of kf's
// line features that is already bound to a map line - or when kf has no
// bound line feature to compare against.
func (lm *LocalMapper) CreateNewMapLinesConstraint(kf *slammap.KeyFrame) (created int) {
	lm.setState(StateCreatingLines)
	if lm.matcher == nil {
		return 0
	}

	pose1 := kf.Pose()
	proj1 := geometry.ComposeProjection(lm.cfg.Intrinsics, pose1)
	count := lm.currentCount()

	for _, nid := range kf.BestCovisible(lm.cfg.NumNeighborsForCreation) {
		neighbor := lm.m.KeyFrame(nid)
		if neighbor == nil || neighbor.IsBad() {
			continue
		}
		pose2 := neighbor.Pose()
		proj2 := geometry.ComposeProjection(lm.cfg.Intrinsics, pose2)

		for _, corr := range lm.matcher.SearchForLineTriangulation(kf, neighbor) {
			if kf.MapLine(corr.Idx1) != nil || neighbor.MapLine(corr.Idx2) != nil {
				continue
			}
			if corr.Idx1 < 0 || corr.Idx1 >= len(kf.Lines) || corr.Idx2 < 0 || corr.Idx2 >= len(neighbor.Lines) {
				continue
			}

			l1 := kf.Lines[corr.Idx1]
			l2 := neighbor.Lines[corr.Idx2]
			s, e, ok := geometry.TriangulateLine(l1, l2, proj1, proj2, l1.Eq, l2.Eq)
			if !ok || !s.Finite() || !e.Finite() {
				continue
			}
			if !validLineTriangulation(lm.cfg.Intrinsics, pose1, pose2, s, e, l1, l2) {
				continue
			}
			if !lm.lineOverlapsExisting(kf, l1) {
				continue
			}

			ml := lm.m.AddMapLine(s, e, kf, corr.Idx1)
			lm.m.AddLineObservation(ml, neighbor, corr.Idx2)
			lm.recentLines.Add(ml, count)
			created++
		}
	}
	return created
}

// lineOverlapsExisting reports whether candidate overlaps, along its
// dominant axis, with at least one already-bound line feature of kf, or
// true if kf has no bound lines yet to compare against (nothing to
// contradict the candidate).
func (lm *LocalMapper) lineOverlapsExisting(kf *slammap.KeyFrame, candidate geometry.LineFeature) bool {
	any := false
	for idx, ml := range kf.Lines {
		if kf.MapLine(idx) == nil {
			continue
		}
		any = true
		if lineOverlapRatio(candidate, ml) >= lm.cfg.LineOverlapThreshold {
			return true
		}
	}
	return !any
}

func validTriangulation(k geometry.CameraIntrinsics, pose1, pose2 geometry.Pose, x geometry.Point3, p1, p2 geometry.Point2) bool {
	cam1 := pose1.Apply(x)
	if cam1.Z <= 0 {
		return false
	}
	cam2 := pose2.Apply(x)
	if cam2.Z <= 0 {
		return false
	}
	threshold := 4.0 * newPointReprojSigma * newPointReprojSigma
	if reprojErr(k, cam1, p1) > threshold {
		return false
	}
	if reprojErr(k, cam2, p2) > threshold {
		return false
	}

	c1 := pose1.Center()
	c2 := pose2.Center()
	rayA := x.Sub(c1)
	rayB := x.Sub(c2)
	normA, normB := rayA.Norm(), rayB.Norm()
	if normA <= 0 || normB <= 0 {
		return false
	}
	cosParallax := rayA.Dot(rayB) / (normA * normB)
	parallaxDeg := math.Acos(clampUnit(cosParallax)) * 180 / math.Pi
	return parallaxDeg >= minNewPointParallax
}

func validLineTriangulation(k geometry.CameraIntrinsics, pose1, pose2 geometry.Pose, s, e geometry.Point3, l1, l2 geometry.LineFeature) bool {
	threshold := 4.0 * newPointReprojSigma * newPointReprojSigma
	for _, pt := range []geometry.Point3{s, e} {
		cam1 := pose1.Apply(pt)
		if cam1.Z <= 0 {
			return false
		}
		cam2 := pose2.Apply(pt)
		if cam2.Z <= 0 {
			return false
		}
		if reprojErr(k, cam1, l1.S) > threshold && reprojErr(k, cam1, l1.E) > threshold {
			return false
		}
		if reprojErr(k, cam2, l2.S) > threshold && reprojErr(k, cam2, l2.E) > threshold {
			return false
		}
	}
	return true
}

func reprojErr(k geometry.CameraIntrinsics, cam geometry.Point3, observed geometry.Point2) float64 {
	u := k.Fx*cam.X/cam.Z + k.Cx
	v := k.Fy*cam.Y/cam.Z + k.Cy
	du := u - observed.X
	dv := v - observed.Y
	return du*du + dv*dv
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func lineOverlapRatio(a, b geometry.LineFeature) float64 {
	return motmetrics.LineOverlapRatio(
		[2]float64{a.S.X, a.S.Y}, [2]float64{a.E.X, a.E.Y},
		[2]float64{b.S.X, b.S.Y}, [2]float64{b.E.X, b.E.Y},
	)
}
