// Package slammap holds the persistent map structures shared by the
// initializer and the local mapper: map points, map lines, keyframes,
// and the covisibility graph connecting them. All mutable state here is
// guarded by per-object mutexes rather than a single global lock, so
// independent map points/keyframes can be updated concurrently.
package slammap

import "sync"

// ID is a monotonically increasing identifier, unique within one of a
// Map's ID spaces (keyframes, points or lines).
type ID uint64

// idGenerator hands out unique, monotonically increasing IDs. One
// instance backs each of a Map's three ID spaces (keyframes, points,
// lines); each space counts independently.
type idGenerator struct {
	mu   sync.Mutex
	next ID
}

// Next returns the next unused ID, starting from 1 (0 is reserved to
// mean "no ID" / zero value).
func (g *idGenerator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return g.next
}

// Peek returns the count of IDs handed out so far without allocating a
// new one.
func (g *idGenerator) Peek() ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next
}
