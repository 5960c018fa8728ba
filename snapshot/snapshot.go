// ABOUTME: Snapshot of one successful measuring walk as an object graph
// ABOUTME: Stores counted objects keyed by walk-local IDs with a root set

// Package snapshot captures the object graph seen by a measuring walk
// so it can be analyzed after the fact: per-type statistics, retained
// sizes, paths back to the root, and a JSON export. A snapshot is built
// by exactly one walk and is only meaningful if that walk completed
// without interference.
package snapshot

import "sync"

// ObjID identifies an object within one snapshot. The walk assigns IDs
// in first-sight order starting at 1. ID 0 is the synthetic super-root
// the analyses hang the real roots off.
type ObjID uint64

// SuperRoot is the synthetic ancestor of all roots.
const SuperRoot ObjID = 0

// Object is one counted heap object.
type Object struct {
	ID   ObjID   `json:"id"`
	Type string  `json:"type"`
	Size uint64  `json:"size"`
	Refs []ObjID `json:"refs,omitempty"`
}

// Snapshot holds the graph captured by a walk.
type Snapshot struct {
	mu      sync.RWMutex
	objects map[ObjID]*Object
	roots   []ObjID
}

// New creates an empty snapshot.
func New() *Snapshot {
	return &Snapshot{objects: make(map[ObjID]*Object)}
}

// Add records an object. Re-adding an ID replaces the previous record.
func (s *Snapshot) Add(obj *Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[obj.ID] = obj
}

// Object returns the object with the given ID, or nil.
func (s *Snapshot) Object(id ObjID) *Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[id]
}

// NumObjects returns the number of recorded objects.
func (s *Snapshot) NumObjects() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// ForEach calls fn for every recorded object.
func (s *Snapshot) ForEach(fn func(*Object)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, obj := range s.objects {
		fn(obj)
	}
}

// SetRoots records the IDs the walk started from.
func (s *Snapshot) SetRoots(ids []ObjID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots = ids
}

// Roots returns the IDs the walk started from.
func (s *Snapshot) Roots() []ObjID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roots
}

// TotalSize returns the sum of all recorded object sizes. For a
// snapshot captured by an uninterfered walk this equals the walk's
// reported total.
func (s *Snapshot) TotalSize() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total uint64
	for _, obj := range s.objects {
		total += obj.Size
	}
	return total
}
