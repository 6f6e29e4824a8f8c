package slammap

import (
	"sort"
	"sync"

	"github.com/vislam/monoslam/geometry"
)

// KeyFrame is a posed camera view retained in the map, with its feature
// observations and its edges in the covisibility graph.
type KeyFrame struct {
	ID ID

	mu    sync.RWMutex
	pose  geometry.Pose
	bad   bool

	Points []geometry.Point2
	Lines  []geometry.LineFeature

	// pointMatches[i] is the map point observed at feature index i, or
	// nil. This is the keyframe-side half of the bijective observation
	// invariant shared with MapPoint.observations.
	pointMatches []*MapPoint
	lineMatches  []*MapLine

	// covisibility holds, for each other keyframe sharing at least the
	// minShared map points last passed to UpdateConnections with this
	// one, the number of shared points. ordered
	// caches the same keys sorted by descending weight.
	covisibility map[ID]int
	ordered      []ID
}

// NewKeyFrame creates a keyframe at the given pose with nPoints and
// nLines observation slots, all initially unmatched.
func NewKeyFrame(id ID, pose geometry.Pose, points []geometry.Point2, lines []geometry.LineFeature) *KeyFrame {
	return &KeyFrame{
		ID:           id,
		pose:         pose,
		Points:       points,
		Lines:        lines,
		pointMatches: make([]*MapPoint, len(points)),
		lineMatches:  make([]*MapLine, len(lines)),
		covisibility: make(map[ID]int),
	}
}

// Pose returns the keyframe's camera pose.
func (kf *KeyFrame) Pose() geometry.Pose {
	kf.mu.RLock()
	defer kf.mu.RUnlock()
	return kf.pose
}

// SetPose overwrites the camera pose, e.g. after bundle adjustment.
func (kf *KeyFrame) SetPose(pose geometry.Pose) {
	kf.mu.Lock()
	defer kf.mu.Unlock()
	kf.pose = pose
}

// SetBad marks this keyframe as culled from the active map.
func (kf *KeyFrame) SetBad() {
	kf.mu.Lock()
	defer kf.mu.Unlock()
	kf.bad = true
}

// IsBad reports whether this keyframe has been culled.
func (kf *KeyFrame) IsBad() bool {
	kf.mu.RLock()
	defer kf.mu.RUnlock()
	return kf.bad
}

// MapPoint returns the map point observed at point feature idx, or nil.
func (kf *KeyFrame) MapPoint(idx int) *MapPoint {
	kf.mu.RLock()
	defer kf.mu.RUnlock()
	if idx < 0 || idx >= len(kf.pointMatches) {
		return nil
	}
	return kf.pointMatches[idx]
}

// MapLine returns the map line observed at line feature idx, or nil.
func (kf *KeyFrame) MapLine(idx int) *MapLine {
	kf.mu.RLock()
	defer kf.mu.RUnlock()
	if idx < 0 || idx >= len(kf.lineMatches) {
		return nil
	}
	return kf.lineMatches[idx]
}

// SetMapPoint binds feature index idx to mp (nil to clear), without
// touching mp's own observation bookkeeping; callers use Map.AddObservation
// to keep both sides of the invariant in sync.
func (kf *KeyFrame) SetMapPoint(idx int, mp *MapPoint) {
	kf.mu.Lock()
	defer kf.mu.Unlock()
	if idx < 0 || idx >= len(kf.pointMatches) {
		return
	}
	kf.pointMatches[idx] = mp
}

// SetMapLine binds line feature index idx to ml (nil to clear).
func (kf *KeyFrame) SetMapLine(idx int, ml *MapLine) {
	kf.mu.Lock()
	defer kf.mu.Unlock()
	if idx < 0 || idx >= len(kf.lineMatches) {
		return
	}
	kf.lineMatches[idx] = ml
}

// MapPoints returns a snapshot slice of all non-nil observed map points.
func (kf *KeyFrame) MapPoints() []*MapPoint {
	kf.mu.RLock()
	defer kf.mu.RUnlock()
	out := make([]*MapPoint, 0, len(kf.pointMatches))
	for _, mp := range kf.pointMatches {
		if mp != nil {
			out = append(out, mp)
		}
	}
	return out
}

// MapLines returns a snapshot slice of all non-nil observed map lines.
func (kf *KeyFrame) MapLines() []*MapLine {
	kf.mu.RLock()
	defer kf.mu.RUnlock()
	out := make([]*MapLine, 0, len(kf.lineMatches))
	for _, ml := range kf.lineMatches {
		if ml != nil {
			out = append(out, ml)
		}
	}
	return out
}

// UpdateConnections recomputes this keyframe's covisibility edges from
// its current map point observations: for every other keyframe sharing
// at least minShared points, add a weighted edge, then cache the
// neighbor list sorted by descending weight.
func (kf *KeyFrame) UpdateConnections(minShared int) {
	counts := make(map[ID]int)
	for _, mp := range kf.MapPoints() {
		if mp == nil || mp.IsBad() {
			continue
		}
		for otherKF := range mp.Observations() {
			if otherKF == kf.ID {
				continue
			}
			counts[otherKF]++
		}
	}

	filtered := make(map[ID]int, len(counts))
	ids := make([]ID, 0, len(counts))
	for id, n := range counts {
		if n >= minShared {
			filtered[id] = n
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if filtered[ids[i]] != filtered[ids[j]] {
			return filtered[ids[i]] > filtered[ids[j]]
		}
		return ids[i] < ids[j]
	})

	kf.mu.Lock()
	kf.covisibility = filtered
	kf.ordered = ids
	kf.mu.Unlock()
}

// CovisibilityWeight returns the shared-observation count with other,
// or 0 if they are not connected.
func (kf *KeyFrame) CovisibilityWeight(other ID) int {
	kf.mu.RLock()
	defer kf.mu.RUnlock()
	return kf.covisibility[other]
}

// BestCovisible returns up to n neighbor keyframe IDs ordered by
// descending shared-observation weight.
func (kf *KeyFrame) BestCovisible(n int) []ID {
	kf.mu.RLock()
	defer kf.mu.RUnlock()
	if n <= 0 || n > len(kf.ordered) {
		n = len(kf.ordered)
	}
	out := make([]ID, n)
	copy(out, kf.ordered[:n])
	return out
}

// CovisibleAboveWeight returns every neighbor whose shared-observation
// count is at least w.
func (kf *KeyFrame) CovisibleAboveWeight(w int) []ID {
	kf.mu.RLock()
	defer kf.mu.RUnlock()
	var out []ID
	for _, id := range kf.ordered {
		if kf.covisibility[id] >= w {
			out = append(out, id)
		} else {
			break
		}
	}
	return out
}
