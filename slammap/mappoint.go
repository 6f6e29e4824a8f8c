package slammap

import (
	"sync"

	"github.com/vislam/monoslam/geometry"
)

// MapPoint is a single triangulated 3D landmark, observed by one or more
// keyframes. Every field that can be touched from more than one
// goroutine (the local mapper's goroutine and any other reader or
// writer of the map) is guarded by mu.
type MapPoint struct {
	ID ID

	mu       sync.Mutex
	position geometry.Point3
	normal   geometry.Point3 // mean unit viewing direction across observations

	// observations maps keyframe ID to the index of the keypoint within
	// that keyframe's feature list. This is the point-side half of the
	// bijective observation invariant: KeyFrame.pointMatches[idx] == this
	// point iff observations[kf.ID] == idx.
	observations map[ID]int
	refKF        ID

	minDistance float64
	maxDistance float64

	nFound   int
	nVisible int

	bad      bool
	replacer *MapPoint
}

// NewMapPoint creates a map point at the given world position, first
// observed by refKF.
func NewMapPoint(id ID, pos geometry.Point3, refKF ID) *MapPoint {
	return &MapPoint{
		ID:           id,
		position:     pos,
		refKF:        refKF,
		observations: make(map[ID]int),
		nFound:       1,
		nVisible:     1,
	}
}

// Position returns the current world position.
func (p *MapPoint) Position() geometry.Point3 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// SetPosition overwrites the world position, e.g. after bundle adjustment.
func (p *MapPoint) SetPosition(pos geometry.Point3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = pos
}

// Normal returns the mean viewing direction.
func (p *MapPoint) Normal() geometry.Point3 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.normal
}

// AddObservation records that keyframe kf sees this point at feature
// index idx. It is a no-op if the keyframe already observes this point.
func (p *MapPoint) AddObservation(kf ID, idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.observations[kf]; exists {
		return
	}
	p.observations[kf] = idx
}

// EraseObservation removes the keyframe from this point's observation
// set. If the point drops to zero observations, it is marked bad.
func (p *MapPoint) EraseObservation(kf ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.observations, kf)
	if len(p.observations) == 0 {
		p.bad = true
	}
	if p.refKF == kf && len(p.observations) > 0 {
		for k := range p.observations {
			p.refKF = k
			break
		}
	}
}

// ClearObservations empties this point's observation set and marks it
// bad, without touching any keyframe's observation slots. Used when
// fusing two map points together: the caller has already rebound every
// observing keyframe to the surviving point and just needs the loser's
// own bookkeeping wiped.
func (p *MapPoint) ClearObservations() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observations = make(map[ID]int)
	p.bad = true
}

// Observations returns a snapshot copy of the keyframe -> feature-index map.
func (p *MapPoint) Observations() map[ID]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[ID]int, len(p.observations))
	for k, v := range p.observations {
		out[k] = v
	}
	return out
}

// NumObservations returns the number of keyframes currently observing
// this point.
func (p *MapPoint) NumObservations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.observations)
}

// IsInKeyFrame reports whether kf observes this point, and at which index.
func (p *MapPoint) IsInKeyFrame(kf ID) (idx int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok = p.observations[kf]
	return idx, ok
}

// RefKeyFrame returns the keyframe this point was first triangulated from.
func (p *MapPoint) RefKeyFrame() ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refKF
}

// IncreaseVisible increments the "was in a keyframe's viewing frustum"
// counter, used by FoundRatio as the denominator.
func (p *MapPoint) IncreaseVisible(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nVisible += n
}

// IncreaseFound increments the "was actually matched" counter.
func (p *MapPoint) IncreaseFound(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nFound += n
}

// FoundRatio returns nFound/nVisible, the culling criterion used by
// MapPointCulling.
func (p *MapPoint) FoundRatio() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nVisible == 0 {
		return 0
	}
	return float64(p.nFound) / float64(p.nVisible)
}

// SetBad marks this point as culled; its observations should be erased
// from every observing keyframe by the caller (the Map) before or after
// calling this.
func (p *MapPoint) SetBad() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bad = true
}

// IsBad reports whether this point has been culled or replaced.
func (p *MapPoint) IsBad() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bad
}

// SetReplacer records that this point was fused into another; readers
// that hold a stale pointer can follow GetReplacement to the survivor.
func (p *MapPoint) SetReplacer(other *MapPoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bad = true
	p.replacer = other
}

// GetReplacement returns the surviving point if this one was fused away,
// or itself otherwise.
func (p *MapPoint) GetReplacement() *MapPoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.replacer != nil {
		return p.replacer
	}
	return p
}

// SetDistanceInvariance records the scale-invariant viewing distance
// range [minDistance, maxDistance] for this point, derived from the
// reference keyframe's pyramid octave at triangulation time.
func (p *MapPoint) SetDistanceInvariance(minD, maxD float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minDistance, p.maxDistance = minD, maxD
}

// DistanceInvariance returns the current [minDistance, maxDistance] range.
func (p *MapPoint) DistanceInvariance() (minD, maxD float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.minDistance, p.maxDistance
}

// SetNormal overwrites the cached mean viewing direction.
func (p *MapPoint) SetNormal(n geometry.Point3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.normal = n
}
