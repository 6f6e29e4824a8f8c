package initializer

import (
	"math/rand"
	"sync"

	"github.com/vislam/monoslam/geometry"
	"github.com/vislam/monoslam/scorer"
)

const (
	sampleSize         = 8
	defaultRHThreshold = 0.40
)

// Config holds the tunable RANSAC parameters for a two-view
// initialization attempt.
type Config struct {
	// Sigma is the per-match measurement noise standard deviation (pixels).
	Sigma float64
	// MaxIterations is the number of RANSAC samples drawn for each of the
	// H and F models.
	MaxIterations int
	// Intrinsics is the (shared, since monocular) camera calibration.
	Intrinsics geometry.CameraIntrinsics
}

func (c *Config) applyDefaults() {
	if c.Sigma <= 0 {
		c.Sigma = 1.0
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 200
	}
}

// Initializer drives two-view reconstruction from a fixed reference
// frame against successive current frames. Each Initialize call draws
// its RANSAC minimum-sample index sets afresh from an RNG seeded with 0,
// so repeated calls against the same correspondence count use the same
// sets and are reproducible.
type Initializer struct {
	cfg      Config
	refFrame Frame
}

// New creates an Initializer bound to the given reference frame.
func New(refFrame Frame, cfg Config) *Initializer {
	cfg.applyDefaults()
	return &Initializer{cfg: cfg, refFrame: refFrame}
}

// validPair is one accepted correspondence between the reference frame
// and the current frame, tracked alongside the reference-frame index it
// came from (needed to place triangulated points back into a
// positionally-indexed output array).
type validPair struct {
	refIdx int
	p1, p2 geometry.Point2
}

// Initialize attempts to recover the relative pose of curFrame against
// the reference frame from pointMatches (positionally indexed by
// reference-frame feature index, NoMatch where absent). If lineMatches
// is non-nil, 3D line segments are additionally triangulated from the
// recovered pose.
//
// Returns (false, nil) on any degenerate-geometry or insufficient-data
// failure, per the fail-clean policy: no partial reconstruction is ever
// returned on failure.
func (init *Initializer) Initialize(curFrame Frame, pointMatches []Match, lineMatches []Match) (bool, *Reconstruction) {
	pairs := init.collectValidPairs(curFrame, pointMatches)
	if len(pairs) < sampleSize {
		return false, nil
	}

	sets := init.precomputeSampleSets(len(pairs))

	p1 := make([]geometry.Point2, len(pairs))
	p2 := make([]geometry.Point2, len(pairs))
	for i, pr := range pairs {
		p1[i] = pr.p1
		p2[i] = pr.p2
	}

	var (
		hResult homographyResult
		fResult fundamentalResult
		wg      sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		hResult = init.findHomography(p1, p2, sets)
	}()
	go func() {
		defer wg.Done()
		fResult = init.findFundamental(p1, p2, sets)
	}()
	wg.Wait()

	total := hResult.score + fResult.score
	if total <= 0 {
		return false, nil
	}
	rH := hResult.score / total

	var (
		ok     bool
		recon  *Reconstruction
	)
	if rH > defaultRHThreshold {
		recon, ok = init.reconstructH(pairs, hResult, total, rH)
	} else {
		recon, ok = init.reconstructF(pairs, fResult, total, rH)
	}
	if !ok {
		return false, nil
	}

	if lineMatches != nil {
		init.reconstructLine(curFrame, lineMatches, recon)
	}

	return true, recon
}

func (init *Initializer) collectValidPairs(curFrame Frame, matches []Match) []validPair {
	var pairs []validPair
	for refIdx, m := range matches {
		if m == NoMatch {
			continue
		}
		if refIdx >= len(init.refFrame.Points) || m >= len(curFrame.Points) {
			continue
		}
		pairs = append(pairs, validPair{
			refIdx: refIdx,
			p1:     init.refFrame.Points[refIdx],
			p2:     curFrame.Points[m],
		})
	}
	return pairs
}

// precomputeSampleSets draws MaxIterations independent 8-sample
// subsets of [0, n) using a
// deterministic RNG seeded with 0 for reproducibility. Sampling uses
// swap-and-pop on a fresh copy of the index range for every iteration,
// so a single index can recur across different iterations but never
// twice within the same sample.
func (init *Initializer) precomputeSampleSets(n int) [][]int {
	rng := rand.New(rand.NewSource(0))
	sets := make([][]int, init.cfg.MaxIterations)

	available := make([]int, n)
	for i := range available {
		available[i] = i
	}

	for it := 0; it < init.cfg.MaxIterations; it++ {
		pool := make([]int, n)
		copy(pool, available)
		sample := make([]int, sampleSize)
		remaining := n
		for j := 0; j < sampleSize; j++ {
			k := rng.Intn(remaining)
			sample[j] = pool[k]
			pool[k] = pool[remaining-1]
			remaining--
		}
		sets[it] = sample
	}
	return sets
}

type homographyResult struct {
	h21     [3][3]float64
	h12     [3][3]float64
	score   float64
	inliers []bool
}

type fundamentalResult struct {
	f21     [3][3]float64
	score   float64
	inliers []bool
}

func (init *Initializer) findHomography(p1, p2 []geometry.Point2, sets [][]int) homographyResult {
	var best homographyResult
	for _, sample := range sets {
		s1 := sampleSubset(p1, sample)
		s2 := sampleSubset(p2, sample)
		h21, ok := geometry.ComputeH21(s1, s2)
		if !ok {
			continue
		}
		h12, ok := geometry.Invert3(h21)
		if !ok {
			continue
		}
		score, inliers := scorer.CheckHomography(h21, h12, p1, p2, init.cfg.Sigma)
		if score > best.score {
			best = homographyResult{h21: h21, h12: h12, score: score, inliers: inliers}
		}
	}
	return best
}

func (init *Initializer) findFundamental(p1, p2 []geometry.Point2, sets [][]int) fundamentalResult {
	var best fundamentalResult
	for _, sample := range sets {
		s1 := sampleSubset(p1, sample)
		s2 := sampleSubset(p2, sample)
		f21, ok := geometry.ComputeF21(s1, s2)
		if !ok {
			continue
		}
		score, inliers := scorer.CheckFundamental(f21, p1, p2, init.cfg.Sigma)
		if score > best.score {
			best = fundamentalResult{f21: f21, score: score, inliers: inliers}
		}
	}
	return best
}

func sampleSubset(pts []geometry.Point2, idx []int) []geometry.Point2 {
	out := make([]geometry.Point2, len(idx))
	for i, j := range idx {
		out[i] = pts[j]
	}
	return out
}
