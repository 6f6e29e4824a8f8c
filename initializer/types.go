// Package initializer hypothesizes a relative camera pose and an initial
// sparse 3D map from two views and a set of putative point (and
// optionally line) correspondences, by running parallel RANSAC over a
// planar (homography) and a non-planar (fundamental matrix) model,
// selecting between them, decomposing the winner, and disambiguating the
// resulting rotation/translation hypotheses by cheirality and parallax.
package initializer

import "github.com/vislam/monoslam/geometry"

// Match is an ordered pair (idx in frame 1, idx in frame 2). Sets of
// matches are stored as a positional vector indexed by frame-1 feature
// index, with -1 meaning "no match".
type Match = int

// NoMatch is the sentinel value for an unmatched frame-1 feature index.
const NoMatch Match = -1

// Frame is the minimal per-frame input the initializer needs: the
// undistorted point features and (optionally) line features with their
// implicit equations.
type Frame struct {
	Points []geometry.Point2
	Lines  []geometry.LineFeature
}

// Reconstruction is the result of a successful Initialize call: the
// recovered relative pose, the triangulated 3D points (indexed by
// frame-1 feature index, valid only where PointValid[i] is true), and,
// when line matches were supplied, the triangulated 3D line segments.
type Reconstruction struct {
	Pose Pose

	Points      []geometry.Point3
	PointValid  []bool
	ParallaxDeg float64

	LineS, LineE []geometry.Point3
	LineValid    []bool

	// UsedHomography records which model (H or F) was selected, for
	// diagnostics and testing of the R_H > 0.40 boundary.
	UsedHomography bool
	SelectionRatio float64
}

// Pose is the recovered rigid transform (world -> frame-2 camera, with
// frame 1 at the world origin).
type Pose = geometry.Pose
