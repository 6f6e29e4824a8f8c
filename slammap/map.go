package slammap

import (
	"sync"

	"github.com/vislam/monoslam/geometry"
)

// Map is the shared, concurrency-safe container of keyframes, map
// points and map lines that the initializer seeds and the local mapper
// grows. The top-level mutex only protects the three membership maps
// (insert/erase/iterate); per-object state lives behind each
// KeyFrame/MapPoint/MapLine's own lock, so readers iterating the map
// don't block writers mutating an individual object's fields.
type Map struct {
	mu sync.RWMutex

	keyFrames map[ID]*KeyFrame
	points    map[ID]*MapPoint
	lines     map[ID]*MapLine

	kfIDs    idGenerator
	pointIDs idGenerator
	lineIDs  idGenerator
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{
		keyFrames: make(map[ID]*KeyFrame),
		points:    make(map[ID]*MapPoint),
		lines:     make(map[ID]*MapLine),
	}
}

// AddKeyFrame allocates a new keyframe ID, inserts a KeyFrame at the
// given pose with the given observations, and returns it.
func (m *Map) AddKeyFrame(pose geometry.Pose, points []geometry.Point2, lines []geometry.LineFeature) *KeyFrame {
	kf := NewKeyFrame(m.kfIDs.Next(), pose, points, lines)
	m.mu.Lock()
	m.keyFrames[kf.ID] = kf
	m.mu.Unlock()
	return kf
}

// AddMapPoint allocates a new point ID, inserts a MapPoint, and binds it
// to refKF's feature index idx (updating both sides of the observation
// invariant).
func (m *Map) AddMapPoint(pos geometry.Point3, refKF *KeyFrame, idx int) *MapPoint {
	mp := NewMapPoint(m.pointIDs.Next(), pos, refKF.ID)
	mp.observations[refKF.ID] = idx
	refKF.SetMapPoint(idx, mp)

	m.mu.Lock()
	m.points[mp.ID] = mp
	m.mu.Unlock()
	return mp
}

// AddMapLine allocates a new line ID, inserts a MapLine, and binds it to
// refKF's line feature index idx.
func (m *Map) AddMapLine(s, e geometry.Point3, refKF *KeyFrame, idx int) *MapLine {
	ml := NewMapLine(m.lineIDs.Next(), s, e, refKF.ID)
	ml.observations[refKF.ID] = idx
	refKF.SetMapLine(idx, ml)

	m.mu.Lock()
	m.lines[ml.ID] = ml
	m.mu.Unlock()
	return ml
}

// AddObservation links kf's feature index idx to mp, on both sides of
// the bijective observation invariant.
func (m *Map) AddObservation(mp *MapPoint, kf *KeyFrame, idx int) {
	mp.AddObservation(kf.ID, idx)
	kf.SetMapPoint(idx, mp)
}

// AddLineObservation links kf's line feature index idx to ml.
func (m *Map) AddLineObservation(ml *MapLine, kf *KeyFrame, idx int) {
	ml.AddObservation(kf.ID, idx)
	kf.SetMapLine(idx, ml)
}

// EraseMapPoint removes mp from every observing keyframe and from the
// map's membership index.
func (m *Map) EraseMapPoint(mp *MapPoint) {
	for kfID, idx := range mp.Observations() {
		if kf := m.KeyFrame(kfID); kf != nil {
			kf.SetMapPoint(idx, nil)
		}
	}
	mp.SetBad()
	m.mu.Lock()
	delete(m.points, mp.ID)
	m.mu.Unlock()
}

// EraseMapLine removes ml from every observing keyframe and from the
// map's membership index.
func (m *Map) EraseMapLine(ml *MapLine) {
	for kfID, idx := range ml.Observations() {
		if kf := m.KeyFrame(kfID); kf != nil {
			kf.SetMapLine(idx, nil)
		}
	}
	ml.SetBad()
	m.mu.Lock()
	delete(m.lines, ml.ID)
	m.mu.Unlock()
}

// EraseKeyFrame removes kf's observations from every map point/line it
// observed and drops it from the map's membership index.
func (m *Map) EraseKeyFrame(kf *KeyFrame) {
	for _, mp := range kf.MapPoints() {
		mp.EraseObservation(kf.ID)
	}
	for _, ml := range kf.MapLines() {
		ml.EraseObservation(kf.ID)
	}
	kf.SetBad()
	m.mu.Lock()
	delete(m.keyFrames, kf.ID)
	m.mu.Unlock()
}

// DiscardMapPoint removes mp from the map's membership index without
// touching any keyframe's observation slots, for callers (map point
// fusion) that have already rebound every observing keyframe to a
// different surviving point and just need mp's own entry dropped.
func (m *Map) DiscardMapPoint(mp *MapPoint) {
	mp.ClearObservations()
	m.mu.Lock()
	delete(m.points, mp.ID)
	m.mu.Unlock()
}

// KeyFrame looks up a keyframe by ID.
func (m *Map) KeyFrame(id ID) *KeyFrame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.keyFrames[id]
}

// MapPointByID looks up a map point by ID.
func (m *Map) MapPointByID(id ID) *MapPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.points[id]
}

// AllKeyFrames returns a snapshot slice of every keyframe in the map.
func (m *Map) AllKeyFrames() []*KeyFrame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*KeyFrame, 0, len(m.keyFrames))
	for _, kf := range m.keyFrames {
		out = append(out, kf)
	}
	return out
}

// AllMapPoints returns a snapshot slice of every map point in the map.
func (m *Map) AllMapPoints() []*MapPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*MapPoint, 0, len(m.points))
	for _, mp := range m.points {
		out = append(out, mp)
	}
	return out
}

// AllMapLines returns a snapshot slice of every map line in the map.
func (m *Map) AllMapLines() []*MapLine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*MapLine, 0, len(m.lines))
	for _, ml := range m.lines {
		out = append(out, ml)
	}
	return out
}

// KeyFrameCount returns the number of live keyframes.
func (m *Map) KeyFrameCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keyFrames)
}

// MapPointCount returns the number of live map points.
func (m *Map) MapPointCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}
