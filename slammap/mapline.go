package slammap

import (
	"sync"

	"github.com/vislam/monoslam/geometry"
)

// MapLine is a triangulated 3D line segment landmark, the line-feature
// analogue of MapPoint.
type MapLine struct {
	ID ID

	mu        sync.Mutex
	s, e      geometry.Point3
	direction geometry.Point3 // unit vector from s to e

	observations map[ID]int
	refKF        ID

	minDistance float64
	maxDistance float64

	nFound   int
	nVisible int

	bad      bool
	replacer *MapLine
}

// NewMapLine creates a map line with the given endpoints, first observed
// by refKF.
func NewMapLine(id ID, s, e geometry.Point3, refKF ID) *MapLine {
	l := &MapLine{
		ID:           id,
		s:            s,
		e:            e,
		refKF:        refKF,
		observations: make(map[ID]int),
		nFound:       1,
		nVisible:     1,
	}
	l.direction = unitDirection(s, e)
	return l
}

func unitDirection(s, e geometry.Point3) geometry.Point3 {
	d := e.Sub(s)
	n := d.Norm()
	if n < 1e-12 {
		return geometry.Point3{}
	}
	return geometry.Point3{X: d.X / n, Y: d.Y / n, Z: d.Z / n}
}

// Endpoints returns the current 3D endpoints.
func (l *MapLine) Endpoints() (s, e geometry.Point3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s, l.e
}

// SetEndpoints overwrites the endpoints and recomputes the direction.
func (l *MapLine) SetEndpoints(s, e geometry.Point3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s, l.e = s, e
	l.direction = unitDirection(s, e)
}

// Direction returns the current unit direction vector.
func (l *MapLine) Direction() geometry.Point3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.direction
}

// AddObservation records that keyframe kf sees this line at feature index idx.
func (l *MapLine) AddObservation(kf ID, idx int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.observations[kf]; exists {
		return
	}
	l.observations[kf] = idx
}

// EraseObservation removes kf's observation of this line.
func (l *MapLine) EraseObservation(kf ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.observations, kf)
	if len(l.observations) == 0 {
		l.bad = true
	}
	if l.refKF == kf && len(l.observations) > 0 {
		for k := range l.observations {
			l.refKF = k
			break
		}
	}
}

// Observations returns a snapshot copy of the keyframe -> feature-index map.
func (l *MapLine) Observations() map[ID]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[ID]int, len(l.observations))
	for k, v := range l.observations {
		out[k] = v
	}
	return out
}

// NumObservations returns the number of observing keyframes.
func (l *MapLine) NumObservations() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.observations)
}

// RefKeyFrame returns the keyframe this line was first triangulated from.
func (l *MapLine) RefKeyFrame() ID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refKF
}

// IncreaseVisible increments the visibility counter.
func (l *MapLine) IncreaseVisible(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nVisible += n
}

// IncreaseFound increments the found counter.
func (l *MapLine) IncreaseFound(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nFound += n
}

// FoundRatio returns nFound/nVisible.
func (l *MapLine) FoundRatio() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.nVisible == 0 {
		return 0
	}
	return float64(l.nFound) / float64(l.nVisible)
}

// SetBad marks this line as culled.
func (l *MapLine) SetBad() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bad = true
}

// IsBad reports whether this line has been culled or replaced.
func (l *MapLine) IsBad() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bad
}

// SetReplacer records that this line was fused into another.
func (l *MapLine) SetReplacer(other *MapLine) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bad = true
	l.replacer = other
}

// GetReplacement returns the surviving line if this one was fused away.
func (l *MapLine) GetReplacement() *MapLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.replacer != nil {
		return l.replacer
	}
	return l
}

// SetDistanceInvariance records the scale-invariant viewing distance range.
func (l *MapLine) SetDistanceInvariance(minD, maxD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minDistance, l.maxDistance = minD, maxD
}

// DistanceInvariance returns the current [minDistance, maxDistance] range.
func (l *MapLine) DistanceInvariance() (minD, maxD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minDistance, l.maxDistance
}
