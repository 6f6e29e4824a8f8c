// Package scorer implements the RANSAC scoring functions used by the
// two-view initializer: symmetric transfer error for homography models
// and point-to-epipolar-line distance for fundamental matrix models.
//
// Both scorers follow the same preserved (if surprising) design: score
// accumulates per passing direction even when the other direction fails
// a match, so an overall-outlier pair can still contribute score from
// whichever single direction passed. This mirrors the teacher lineage's
// behavior and is intentionally not "fixed" — see DESIGN.md.
package scorer

import "github.com/vislam/monoslam/geometry"

// Chi-square thresholds at 95% confidence.
const (
	ChiSquare1Dof = 3.841 // 1 degree of freedom (point-to-line distance)
	ChiSquare2Dof = 5.991 // 2 degrees of freedom (point-to-point reprojection)
)

// CheckHomography scores a homography hypothesis against the given point
// correspondences. H21 maps frame-1 points to frame 2; H12 is its
// inverse. sigma is the per-match measurement noise standard deviation.
//
// A match is an inlier only if BOTH the forward (1->2) and backward
// (2->1) reprojection pass the chi-square threshold 5.991. The returned
// score accumulates (th - chiSquare) for each direction that passes,
// even when the match is ultimately marked an outlier because the other
// direction failed.
func CheckHomography(h21, h12 [3][3]float64, p1, p2 []geometry.Point2, sigma float64) (score float64, inliers []bool) {
	n := len(p1)
	inliers = make([]bool, n)
	invSigmaSq := 1.0 / (sigma * sigma)

	for i := 0; i < n; i++ {
		ok := true

		// Forward: project p1[i] via H21, compare to p2[i].
		proj21 := geometry.ApplyHomogeneous(h21, p1[i])
		dx21 := p2[i].X - proj21.X
		dy21 := p2[i].Y - proj21.Y
		chi21 := (dx21*dx21 + dy21*dy21) * invSigmaSq
		if chi21 <= ChiSquare2Dof {
			score += ChiSquare2Dof - chi21
		} else {
			ok = false
		}

		// Backward: project p2[i] via H12, compare to p1[i].
		proj12 := geometry.ApplyHomogeneous(h12, p2[i])
		dx12 := p1[i].X - proj12.X
		dy12 := p1[i].Y - proj12.Y
		chi12 := (dx12*dx12 + dy12*dy12) * invSigmaSq
		if chi12 <= ChiSquare2Dof {
			score += ChiSquare2Dof - chi12
		} else {
			ok = false
		}

		inliers[i] = ok
	}
	return score, inliers
}

// CheckFundamental scores a fundamental matrix hypothesis against the
// given point correspondences using point-to-epipolar-line distance in
// both images. The per-direction inlier threshold is 3.841 (chi-square,
// 1 dof), while the score constant used for each passing direction is
// 5.991 — a deliberate design choice (preserved from the source lineage)
// that puts F and H scores on a comparable scale for the R_H selection
// ratio.
func CheckFundamental(f21 [3][3]float64, p1, p2 []geometry.Point2, sigma float64) (score float64, inliers []bool) {
	n := len(p1)
	inliers = make([]bool, n)
	invSigmaSq := 1.0 / (sigma * sigma)

	for i := 0; i < n; i++ {
		ok := true

		// Epipolar line in image 2 induced by p1[i]: l2 = F21 * x1.
		a2 := f21[0][0]*p1[i].X + f21[0][1]*p1[i].Y + f21[0][2]
		b2 := f21[1][0]*p1[i].X + f21[1][1]*p1[i].Y + f21[1][2]
		c2 := f21[2][0]*p1[i].X + f21[2][1]*p1[i].Y + f21[2][2]
		den2 := a2*a2 + b2*b2
		if den2 > 0 {
			num2 := a2*p2[i].X + b2*p2[i].Y + c2
			chi2 := (num2 * num2 / den2) * invSigmaSq
			if chi2 <= ChiSquare1Dof {
				score += ChiSquare2Dof - chi2
			} else {
				ok = false
			}
		} else {
			ok = false
		}

		// Epipolar line in image 1 induced by p2[i]: l1 = F21^T * x2.
		a1 := f21[0][0]*p2[i].X + f21[1][0]*p2[i].Y + f21[2][0]
		b1 := f21[0][1]*p2[i].X + f21[1][1]*p2[i].Y + f21[2][1]
		c1 := f21[0][2]*p2[i].X + f21[1][2]*p2[i].Y + f21[2][2]
		den1 := a1*a1 + b1*b1
		if den1 > 0 {
			num1 := a1*p1[i].X + b1*p1[i].Y + c1
			chi1 := (num1 * num1 / den1) * invSigmaSq
			if chi1 <= ChiSquare1Dof {
				score += ChiSquare2Dof - chi1
			} else {
				ok = false
			}
		} else {
			ok = false
		}

		inliers[i] = ok
	}
	return score, inliers
}
