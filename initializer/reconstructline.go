package initializer

import (
	"math"

	"github.com/vislam/monoslam/geometry"
)

// lineReprojSigma is the assumed per-endpoint pixel noise used for the
// line reprojection gate; kept separate from the point sigma since line
// endpoints are typically noisier than corner-like point features.
const lineReprojSigma = 2.0

// reconstructLine triangulates 3D line segments for every matched line
// feature once a point-based relative pose has already been recovered,
// populating recon.LineS/LineE/LineValid positionally by reference-frame
// line index.
//
// Note: the per-endpoint reprojection-error gate below reuses Fx for
// both the horizontal and vertical pixel residual terms rather than Fx
// and Fy respectively, unlike the point-reconstruction pipeline's
// reprojError, which uses Fy for the vertical term. It is left as-is;
// see DESIGN.md.
func (init *Initializer) reconstructLine(curFrame Frame, lineMatches []Match, recon *Reconstruction) {
	n := len(init.refFrame.Lines)
	recon.LineS = make([]geometry.Point3, n)
	recon.LineE = make([]geometry.Point3, n)
	recon.LineValid = make([]bool, n)

	k := init.cfg.Intrinsics
	pose1 := geometry.IdentityPose()
	pose2 := recon.Pose
	proj1 := geometry.ComposeProjection(k, pose1)
	proj2 := geometry.ComposeProjection(k, pose2)

	threshold := cheirality4Sigma * lineReprojSigma * lineReprojSigma

	for refIdx, m := range lineMatches {
		if m == NoMatch || refIdx >= n || m >= len(curFrame.Lines) {
			continue
		}
		refLine := init.refFrame.Lines[refIdx]
		curLine := curFrame.Lines[m]

		s, e, ok := geometry.TriangulateLine(refLine, curLine, proj1, proj2, refLine.Eq, curLine.Eq)
		if !ok || !s.Finite() || !e.Finite() {
			continue
		}

		camS1 := pose1.Apply(s)
		camE1 := pose1.Apply(e)
		camS2 := pose2.Apply(s)
		camE2 := pose2.Apply(e)
		if camS1.Z <= 0 || camE1.Z <= 0 || camS2.Z <= 0 || camE2.Z <= 0 {
			continue
		}

		if lineReprojError(k, camS1, refLine.S) > threshold ||
			lineReprojError(k, camE1, refLine.E) > threshold ||
			lineReprojError(k, camS2, curLine.S) > threshold ||
			lineReprojError(k, camE2, curLine.E) > threshold {
			continue
		}

		recon.LineS[refIdx] = s
		recon.LineE[refIdx] = e
		recon.LineValid[refIdx] = true
	}
}

// lineReprojError computes the squared pixel reprojection error of a
// camera-space point against its observed image endpoint.
func lineReprojError(k geometry.CameraIntrinsics, cam geometry.Point3, observed geometry.Point2) float64 {
	u := k.Fx*cam.X/cam.Z + k.Cx
	v := k.Fx*cam.Y/cam.Z + k.Cy
	du := u - observed.X
	dv := v - observed.Y
	if !isFiniteF(du) || !isFiniteF(dv) {
		return math.Inf(1)
	}
	return du*du + dv*dv
}

func isFiniteF(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
