package initializer

import (
	"math"

	"github.com/vislam/monoslam/geometry"
	"github.com/vislam/monoslam/internal/numpy"
)

const (
	cheirality4Sigma = 4.0
	parallaxCosMax   = 0.99998
	minParallaxDeg   = 1.0
)

// checkRTResult holds the outcome of testing a single (R, t) hypothesis
// against the inlier correspondences.
type checkRTResult struct {
	nGood       int
	points      []geometry.Point3
	good        []bool
	parallaxDeg float64
}

// checkRT triangulates every inlier correspondence under hypothesis
// (R, t), counting cheirality-valid, low-reprojection-error
// triangulations and computing a robust parallax estimate.
//
// For each inlier:
//   - triangulate; reject non-finite results outright.
//   - compute cos-parallax from both camera centers; if the point lands
//     behind either camera AND cos-parallax < 0.99998, reject (points
//     with very small parallax are kept even if "behind" the camera by
//     numerical noise, since they are still useful for rotation-only
//     estimation).
//   - reject if reprojection error exceeds 4*sigma^2 in either image.
//   - otherwise record the point and, when parallax is significant,
//     its cos-parallax for the robust percentile below.
func checkRT(r [3][3]float64, t [3]float64, p1, p2 []geometry.Point2, inliers []bool, k geometry.CameraIntrinsics, sigma float64) checkRTResult {
	n := len(p1)
	result := checkRTResult{
		points: make([]geometry.Point3, n),
		good:   make([]bool, n),
	}

	pose1 := geometry.IdentityPose()
	pose2 := geometry.Pose{R: r, T: t}
	proj1 := geometry.ComposeProjection(k, pose1)
	proj2 := geometry.ComposeProjection(k, pose2)
	c1 := pose1.Center()
	c2 := pose2.Center()

	sigmaSq := sigma * sigma
	threshold := cheirality4Sigma * sigmaSq

	var cosParallaxes []float64

	for i := 0; i < n; i++ {
		if !inliers[i] {
			continue
		}

		x, ok := geometry.TriangulatePoint(p1[i], p2[i], proj1, proj2)
		if !ok || !x.Finite() {
			continue
		}

		rayA := x.Sub(c1)
		rayB := x.Sub(c2)
		normA := rayA.Norm()
		normB := rayB.Norm()
		cosParallax := 1.0
		if normA > 0 && normB > 0 {
			cosParallax = rayA.Dot(rayB) / (normA * normB)
		}

		cam1 := pose1.Apply(x)
		if cam1.Z <= 0 && cosParallax < parallaxCosMax {
			continue
		}
		cam2 := pose2.Apply(x)
		if cam2.Z <= 0 && cosParallax < parallaxCosMax {
			continue
		}

		if err1 := reprojError(k, cam1, p1[i]); err1 > threshold {
			continue
		}
		if err2 := reprojError(k, cam2, p2[i]); err2 > threshold {
			continue
		}

		result.points[i] = x
		result.good[i] = true
		result.nGood++
		if cosParallax < parallaxCosMax {
			cosParallaxes = append(cosParallaxes, cosParallax)
		}
	}

	chosenCos := numpy.NthSmallest(cosParallaxes, 50)
	result.parallaxDeg = math.Acos(clamp(chosenCos, -1, 1)) * 180 / math.Pi

	return result
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func reprojError(k geometry.CameraIntrinsics, cam geometry.Point3, observed geometry.Point2) float64 {
	if cam.Z == 0 {
		return math.Inf(1)
	}
	u := k.Fx*cam.X/cam.Z + k.Cx
	v := k.Fy*cam.Y/cam.Z + k.Cy
	du := u - observed.X
	dv := v - observed.Y
	return du*du + dv*dv
}

// reconstructF attempts to recover (R, t) and a triangulated point cloud
// from the winning fundamental-matrix hypothesis, by decomposing it into
// an essential matrix and testing the four (R, t) sign combinations with
// checkRT.
func (init *Initializer) reconstructF(pairs []validPair, res fundamentalResult, totalScore, rH float64) (*Reconstruction, bool) {
	if res.score <= 0 {
		return nil, false
	}
	k := init.cfg.Intrinsics
	kMat := k.K()
	e := essentialFromFundamental(res.f21, kMat)

	r1, r2, t, ok := geometry.DecomposeE(e)
	if !ok {
		return nil, false
	}

	p1, p2 := splitPairs(pairs)
	nInliers := countTrue(res.inliers)

	hyps := []rtHypothesis{
		{r1, t},
		{r2, t},
		{r1, negate(t)},
		{r2, negate(t)},
	}

	results := make([]checkRTResult, len(hyps))
	for i, h := range hyps {
		results[i] = checkRT(h.r, h.t, p1, p2, res.inliers, k, init.cfg.Sigma)
	}

	return disambiguate(hyps2poses(hyps), results, nInliers, pairs, rH, true)
}

// reconstructH attempts to recover (R, t) and a triangulated point cloud
// from the winning homography hypothesis, by decomposing it into up to 8
// (R, t, n) hypotheses and testing each with checkRT.
func (init *Initializer) reconstructH(pairs []validPair, res homographyResult, totalScore, rH float64) (*Reconstruction, bool) {
	if res.score <= 0 {
		return nil, false
	}
	k := init.cfg.Intrinsics
	hyps, ok := geometry.DecomposeH(res.h21, k)
	if !ok {
		return nil, false
	}

	p1, p2 := splitPairs(pairs)
	nInliers := countTrue(res.inliers)

	results := make([]checkRTResult, len(hyps))
	poses := make([]geometry.Pose, len(hyps))
	for i, h := range hyps {
		results[i] = checkRT(h.R, h.T, p1, p2, res.inliers, k, init.cfg.Sigma)
		poses[i] = geometry.Pose{R: h.R, T: h.T}
	}

	return disambiguate(poses, results, nInliers, pairs, rH, false)
}

// disambiguate applies the common "best vs. second best" acceptance
// rule shared by ReconstructF and ReconstructH, with thresholds that
// differ slightly by model (see spec.md 4.3).
func disambiguate(poses []geometry.Pose, results []checkRTResult, nInliers int, pairs []validPair, rH float64, isF bool) (*Reconstruction, bool) {
	if len(results) == 0 {
		return nil, false
	}

	bestIdx, secondIdx := -1, -1
	bestGood, secondGood := -1, -1
	for i, r := range results {
		if r.nGood > bestGood {
			secondIdx, secondGood = bestIdx, bestGood
			bestIdx, bestGood = i, r.nGood
		} else if r.nGood > secondGood {
			secondIdx, secondGood = i, r.nGood
		}
	}
	_ = secondIdx

	minRequired := 0.9 * float64(nInliers)
	if isF {
		if minRequired < 50 {
			minRequired = 50
		}
		if float64(bestGood) < minRequired {
			return nil, false
		}
		// Ambiguous if more than one hypothesis achieves >= 70% of best.
		countNearBest := 0
		for _, r := range results {
			if float64(r.nGood) >= 0.7*float64(bestGood) {
				countNearBest++
			}
		}
		if countNearBest > 1 {
			return nil, false
		}
	} else {
		if secondGood >= 0 && float64(secondGood) >= 0.75*float64(bestGood) {
			return nil, false
		}
		if bestGood < minTriangulatedH {
			return nil, false
		}
		if float64(bestGood) <= minRequired {
			return nil, false
		}
	}

	best := results[bestIdx]
	if best.parallaxDeg < minParallaxDeg {
		return nil, false
	}

	numPoints := 0
	for _, pr := range pairs {
		if pr.refIdx+1 > numPoints {
			numPoints = pr.refIdx + 1
		}
	}
	outPoints := make([]geometry.Point3, numPoints)
	outValid := make([]bool, numPoints)
	for i, pr := range pairs {
		if best.good[i] {
			outPoints[pr.refIdx] = best.points[i]
			outValid[pr.refIdx] = true
		}
	}

	return &Reconstruction{
		Pose:           poses[bestIdx],
		Points:         outPoints,
		PointValid:     outValid,
		ParallaxDeg:    best.parallaxDeg,
		UsedHomography: !isF,
		SelectionRatio: rH,
	}, true
}

// minTriangulatedH is the absolute floor on good triangulations for the
// homography path, mirroring the fundamental-matrix path's floor.
const minTriangulatedH = 50

func essentialFromFundamental(f [3][3]float64, k [3][3]float64) [3][3]float64 {
	kt := geometry.Transpose3(k)
	return geometry.Mul3(geometry.Mul3(kt, f), k)
}

func splitPairs(pairs []validPair) (p1, p2 []geometry.Point2) {
	p1 = make([]geometry.Point2, len(pairs))
	p2 = make([]geometry.Point2, len(pairs))
	for i, pr := range pairs {
		p1[i] = pr.p1
		p2[i] = pr.p2
	}
	return p1, p2
}

func countTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func negate(v [3]float64) [3]float64 {
	return [3]float64{-v[0], -v[1], -v[2]}
}

// rtHypothesis is one of the four (R, t) sign combinations produced by
// decomposing an essential matrix.
type rtHypothesis struct {
	r [3][3]float64
	t [3]float64
}

func hyps2poses(hyps []rtHypothesis) []geometry.Pose {
	out := make([]geometry.Pose, len(hyps))
	for i, h := range hyps {
		out[i] = geometry.Pose{R: h.r, T: h.t}
	}
	return out
}
