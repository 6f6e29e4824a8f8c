package localmapper

import (
	"math"

	"github.com/vislam/monoslam/internal/scipy"
	"github.com/vislam/monoslam/slammap"
)

// maxFuseCost bounds the descriptor distance scipy.LinearSumAssignment
// will accept a fusion assignment at; candidates costed above this are
// left unmatched rather than forced onto the nearest free slot.
const maxFuseCost = 1.0

// SearchInNeighbors projects kf's map points into each of its covisible
// neighbors (and vice versa) and fuses duplicate observations of the
// same physical landmark that the feature matcher independently
// triangulated from both sides. Conflicts - several candidate points
// competing for the same feature slot - are resolved with a single
// global assignment per target keyframe rather than greedily, so an
// early but mediocre match doesn't block a later, better one.
func (lm *LocalMapper) SearchInNeighbors(kf *slammap.KeyFrame, neighbors []slammap.ID) (fused int) {
	if lm.matcher == nil {
		return 0
	}

	ownPoints := kf.MapPoints()

	for _, nid := range neighbors {
		neighbor := lm.m.KeyFrame(nid)
		if neighbor == nil || neighbor.IsBad() {
			continue
		}

		fused += lm.fuseInto(neighbor, ownPoints)
		fused += lm.fuseInto(kf, neighbor.MapPoints())
	}
	return fused
}

// fuseInto resolves candidates (observed by some other keyframe) against
// target's own feature slots and performs the winning merges.
func (lm *LocalMapper) fuseInto(target *slammap.KeyFrame, candidates []*slammap.MapPoint) int {
	if len(candidates) == 0 {
		return 0
	}
	proposals := lm.matcher.ProjectForFusion(target, candidates)
	if len(proposals) == 0 {
		return 0
	}

	rows, colOf, cost := buildAssignmentMatrix(proposals)
	assignments, _, _ := scipy.LinearSumAssignment(cost, maxFuseCost)

	merged := 0
	for _, a := range assignments {
		point := candidates[rows[a.RowIdx]]
		featureIdx := colOf[a.ColIdx]
		if lm.mergeIntoSlot(target, point, featureIdx) {
			merged++
		}
	}
	return merged
}

// buildAssignmentMatrix turns the sparse list of fuse proposals into a
// dense cost matrix suitable for scipy.LinearSumAssignment: rows are the
// distinct candidate point indices that appear in proposals, columns are
// the distinct target feature slots, and unobserved (row, col) pairs get
// a cost above maxFuseCost so the assignment never picks them.
func buildAssignmentMatrix(proposals []FuseCandidate) (rows, colOf []int, cost [][]float64) {
	rowIndex := make(map[int]int)
	colIndex := make(map[int]int)
	for _, p := range proposals {
		if _, ok := rowIndex[p.PointIdx]; !ok {
			rowIndex[p.PointIdx] = len(rows)
			rows = append(rows, p.PointIdx)
		}
		if _, ok := colIndex[p.FeatureIdx]; !ok {
			colIndex[p.FeatureIdx] = len(colOf)
			colOf = append(colOf, p.FeatureIdx)
		}
	}

	cost = make([][]float64, len(rows))
	for i := range cost {
		cost[i] = make([]float64, len(colOf))
		for j := range cost[i] {
			cost[i][j] = math.Inf(1)
		}
	}
	for _, p := range proposals {
		r := rowIndex[p.PointIdx]
		c := colIndex[p.FeatureIdx]
		if p.Cost < cost[r][c] {
			cost[r][c] = p.Cost
		}
	}
	// LinearSumAssignment treats +Inf entries as ordinary (very high)
	// costs rather than forbidden ones, since it pads with zero-profit
	// dummy cells internally; clamp to a cost well above maxFuseCost so
	// they are never selected but never break the solver's arithmetic.
	for i := range cost {
		for j := range cost[i] {
			if math.IsInf(cost[i][j], 1) {
				cost[i][j] = maxFuseCost * 1e6
			}
		}
	}
	return rows, colOf, cost
}

// mergeIntoSlot binds point into target's featureIdx slot, or if that
// slot already holds a different map point, fuses the two: the point
// with more observations survives, and the other is repointed at it via
// SetReplacer and removed from the map.
func (lm *LocalMapper) mergeIntoSlot(target *slammap.KeyFrame, point *slammap.MapPoint, featureIdx int) bool {
	existing := target.MapPoint(featureIdx)
	if existing == nil {
		lm.m.AddObservation(point, target, featureIdx)
		return true
	}
	if existing == point {
		return false
	}

	// Mirrors the tie-break ORB-SLAM2's fuse step uses: the slot's
	// existing point only survives if it strictly out-observes the
	// incoming candidate; ties favor the candidate, since it's the one
	// freshly corroborated by this round of neighbor search.
	survivor, loser := point, existing
	if existing.NumObservations() > point.NumObservations() {
		survivor, loser = existing, point
	}

	for kfID, idx := range loser.Observations() {
		if otherKF := lm.m.KeyFrame(kfID); otherKF != nil {
			lm.m.AddObservation(survivor, otherKF, idx)
		}
	}
	loser.SetReplacer(survivor)
	lm.m.DiscardMapPoint(loser)
	return true
}
