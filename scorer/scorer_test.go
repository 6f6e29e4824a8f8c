package scorer

import (
	"math"
	"testing"

	"github.com/vislam/monoslam/geometry"
	"github.com/vislam/monoslam/internal/testutil"
)

func TestCheckHomographyPerfectMatchesAllInliers(t *testing.T) {
	h21 := [3][3]float64{{1, 0, 1}, {0, 1, 1}, {0, 0, 1}}
	h12, _ := geometry.Invert3(h21)

	p1 := []geometry.Point2{{0, 0}, {1, 1}, {2, 3}, {5, 5}}
	p2 := make([]geometry.Point2, len(p1))
	for i, p := range p1 {
		p2[i] = geometry.ApplyHomogeneous(h21, p)
	}

	score, inliers := CheckHomography(h21, h12, p1, p2, 1.0)
	for i, in := range inliers {
		if !in {
			t.Fatalf("expected match %d to be inlier", i)
		}
	}
	if score <= 0 {
		t.Fatalf("expected positive score, got %v", score)
	}
}

func TestCheckHomographySymmetricUnderSwap(t *testing.T) {
	h21 := [3][3]float64{{1.02, 0.01, 0.5}, {-0.01, 0.99, -0.3}, {0.0001, 0.0002, 1}}
	h12, ok := geometry.Invert3(h21)
	if !ok {
		t.Fatal("expected invertible H")
	}

	p1 := []geometry.Point2{{0, 0}, {3, 1}, {-2, 4}, {10, -5}}
	p2 := make([]geometry.Point2, len(p1))
	for i, p := range p1 {
		p2[i] = geometry.ApplyHomogeneous(h21, p)
	}

	scoreFwd, inliersFwd := CheckHomography(h21, h12, p1, p2, 1.0)
	scoreBwd, inliersBwd := CheckHomography(h12, h21, p2, p1, 1.0)

	testutil.AssertAlmostEqual(t, scoreFwd, scoreBwd, 1e-9, "score symmetric under direction swap")
	for i := range inliersFwd {
		if inliersFwd[i] != inliersBwd[i] {
			t.Fatalf("inlier flag mismatch at %d under swap", i)
		}
	}
}

func TestCheckFundamentalZeroScoreWhenNoInliers(t *testing.T) {
	// A fundamental matrix that places every point implausibly far from
	// its epipolar line.
	f21 := [3][3]float64{{0, 0, 1000}, {0, 0, 1000}, {1000, 1000, 0}}
	p1 := []geometry.Point2{{1, 1}, {2, 2}}
	p2 := []geometry.Point2{{1, 1}, {2, 2}}

	score, inliers := CheckFundamental(f21, p1, p2, 1.0)
	for _, in := range inliers {
		if in {
			t.Fatal("expected no inliers for a wildly wrong F")
		}
	}
	if score != 0 {
		t.Fatalf("expected zero score when all matches fail both directions, got %v", score)
	}
}

func TestCheckFundamentalOutlierCanStillContributePartialScore(t *testing.T) {
	// Documents the preserved (if surprising) behavior: a match that
	// fails one direction's chi-square test but passes the other still
	// contributes score from the passing direction, and the match is
	// still marked an outlier overall.
	//
	// With this F21, p1 = (10, 0) induces the line x + 1 = 0 in image 2,
	// at distance 1.5 from p2 = (0.5, 0) (chi-square 2.25, passes), while
	// p2 induces the line 0.1x + 0.5 = 0 in image 1, at distance 15 from
	// p1 (chi-square 225, fails).
	f21 := [3][3]float64{{0, 0, 1}, {0, 0, 0}, {0.1, 0, 0}}
	p1 := []geometry.Point2{{10, 0}}
	p2 := []geometry.Point2{{0.5, 0}}
	score, inliers := CheckFundamental(f21, p1, p2, 1.0)
	if math.IsNaN(score) {
		t.Fatal("score must never be NaN")
	}
	if inliers[0] {
		t.Fatal("expected the match to be an outlier when one direction fails")
	}
	testutil.AssertAlmostEqual(t, score, ChiSquare2Dof-2.25, 1e-9, "score from the single passing direction")
}
