// Package localmapper implements the background mapping loop that
// consumes keyframes handed off by tracking: inserting them into the
// map, culling recently-added landmarks that turned out unreliable,
// triangulating new map points and lines against covisible neighbors,
// fusing duplicate observations, and retiring redundant keyframes.
package localmapper

import (
	"sync"

	"github.com/vislam/monoslam/slammap"
)

// State names the phase the mapper is currently in; it advances
// linearly through one keyframe's processing pipeline and is exposed
// for diagnostics/testing rather than driving any branching logic
// itself.
type State int

const (
	StateIdle State = iota
	StateProcessingKeyFrame
	StatePointCulling
	StateLineCulling
	StateCreatingPoints
	StateCreatingLines
	StateFusing
	StateOptimizing
	StateKeyFrameCulling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessingKeyFrame:
		return "processing_keyframe"
	case StatePointCulling:
		return "point_culling"
	case StateLineCulling:
		return "line_culling"
	case StateCreatingPoints:
		return "creating_points"
	case StateCreatingLines:
		return "creating_lines"
	case StateFusing:
		return "fusing"
	case StateOptimizing:
		return "optimizing"
	case StateKeyFrameCulling:
		return "keyframe_culling"
	default:
		return "unknown"
	}
}

// PointCorrespondence is a tentative match between a feature in one
// keyframe and a feature in another, found by epipolar search, not yet
// backed by a MapPoint.
type PointCorrespondence struct {
	Idx1, Idx2 int
}

// LineCorrespondence is the line-feature analogue of PointCorrespondence.
type LineCorrespondence struct {
	Idx1, Idx2 int
}

// FeatureMatcher is the external collaborator responsible for
// descriptor-based matching; the local mapper only knows how to
// triangulate, score, and assign what it returns. Implementations
// typically wrap an ORB-style matcher and the map's BoW vocabulary.
type FeatureMatcher interface {
	// SearchForTriangulation proposes untriangulated point correspondences
	// between kf1 and kf2, consistent with the epipolar geometry f12.
	SearchForTriangulation(kf1, kf2 *slammap.KeyFrame, f12 [3][3]float64) []PointCorrespondence
	// SearchForLineTriangulation proposes untriangulated line correspondences.
	SearchForLineTriangulation(kf1, kf2 *slammap.KeyFrame) []LineCorrespondence
	// ProjectForFusion projects every point in candidates into kf and
	// returns, for each candidate with an acceptable descriptor match
	// near its projection, the feature slot it could bind to and a
	// descriptor distance cost. The caller (SearchInNeighbors) resolves
	// which candidate wins each contested slot.
	ProjectForFusion(kf *slammap.KeyFrame, candidates []*slammap.MapPoint) []FuseCandidate
}

// FuseCandidate is one candidate map point's proposed binding to a
// keyframe feature slot, along with the descriptor distance cost of
// that binding.
type FuseCandidate struct {
	PointIdx   int // index into the candidates slice passed to ProjectForFusion
	FeatureIdx int // target feature slot in kf
	Cost       float64
}

// Optimizer is the external bundle-adjustment collaborator.
type Optimizer interface {
	// LocalBundleAdjustment refines kf's pose, its covisible neighbors'
	// poses, and the map points/lines they jointly observe.
	LocalBundleAdjustment(kf *slammap.KeyFrame, m *slammap.Map)
}

// LoopCloser is the external loop-closing collaborator; the local
// mapper only hands it freshly processed keyframes.
type LoopCloser interface {
	InsertKeyFrame(kf *slammap.KeyFrame)
}

// BowVocabulary scores appearance similarity between two keyframes,
// used by KeyFrameCulling's redundancy check in a full system; this
// minimal interface only exposes what the mapper needs.
type BowVocabulary interface {
	Score(kf1, kf2 *slammap.KeyFrame) float64
}

// landmark is the common subset of MapPoint/MapLine needed by the
// generic recently-added probation list.
type landmark interface {
	FoundRatio() float64
	NumObservations() int
	IsBad() bool
}

// recentEntry pairs a probationary landmark with the keyframe sequence
// count at the time it was created.
type recentEntry[T landmark] struct {
	item      T
	createdAt int
}

// RecentlyAdded tracks landmarks created within the last few processed
// keyframes, so MapPointCulling/MapLineCulling can retire ones that
// never earned enough support before they accumulate stale references
// throughout the map.
type RecentlyAdded[T landmark] struct {
	mu    sync.Mutex
	items []recentEntry[T]
}

// Add enrolls item into the probation list, stamped with the current
// keyframe sequence count.
func (r *RecentlyAdded[T]) Add(item T, atCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, recentEntry[T]{item: item, createdAt: atCount})
}

// Cull walks the probation list against the current keyframe count. A
// landmark already bad (erased elsewhere) is simply dropped from the
// list. One still within its first keyframe of life is left alone. One
// that has survived at least one keyframe but has FoundRatio below
// minFoundRatio is retired via erase and dropped. One that has survived
// at least graduateAfter keyframes without being retired graduates off
// the probation list permanently (it is not re-examined, matching the
// "trust it from here on" policy).
func (r *RecentlyAdded[T]) Cull(currentCount, graduateAfter int, minFoundRatio float64, erase func(T)) (culled, graduated int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.items[:0]
	for _, e := range r.items {
		age := currentCount - e.createdAt
		switch {
		case e.item.IsBad():
			// already erased by someone else; drop silently
		case age < 1:
			kept = append(kept, e)
		case e.item.FoundRatio() < minFoundRatio:
			erase(e.item)
			culled++
		case age >= graduateAfter:
			graduated++
		default:
			kept = append(kept, e)
		}
	}
	r.items = kept
	return culled, graduated
}

// Len returns the number of landmarks currently on probation.
func (r *RecentlyAdded[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
