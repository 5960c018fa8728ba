// ABOUTME: Measuring walk over a live object graph
// ABOUTME: Dedups by handle, sums sizes, aborts on collector interference

// Package walk implements the traversal at the heart of deepsize: a
// depth-first walk over heap objects that counts each distinct object
// exactly once and aborts the whole measurement the moment a garbage
// collection is detected mid-flight. The walker is runtime-agnostic;
// everything runtime-specific sits behind the Inspector interface.
package walk

import (
	"errors"

	"github.com/prateek/deepsize/gcwitness"
	"github.com/prateek/deepsize/object"
	"github.com/prateek/deepsize/snapshot"
)

// ErrInterfered is returned when a garbage collection completed while a
// walk was in progress. Objects already counted or enumerated may have
// moved or been reclaimed, so the partial total is unusable. Callers
// retry by re-running the whole measurement, optionally forcing a fresh
// collection first.
var ErrInterfered = errors.New("walk: measurement invalidated by concurrent garbage collection")

// A Node is one heap object as presented by an Inspector.
type Node any

// Inspector exposes the runtime-specific view of heap objects: their
// identity, their own non-recursive storage size, and the objects they
// directly reference. Implementations must not mutate anything.
type Inspector interface {
	// Identity returns the transient handle for n. Nodes reporting an
	// invalid handle denote no storage and are skipped.
	Identity(n Node) object.Handle

	// OwnSize returns the non-recursive size of n's own storage,
	// excluding everything it points to.
	OwnSize(n Node) uint64

	// DirectRefs returns the heap objects n points to, in a stable
	// order. Inline, pointer-free content contributes nothing here; it
	// is already part of OwnSize.
	DirectRefs(n Node) []Node
}

// A Walker performs one measurement. Its visited set, accumulator and
// witness belong to that single walk and are discarded with it; a
// Walker must not be reused or shared between goroutines. Create it
// immediately before calling Run so the witness window covers only the
// walk itself.
type Walker struct {
	insp    Inspector
	witness gcwitness.Witness
	visited map[object.Handle]struct{}
	total   uint64

	snap *snapshot.Snapshot
	ids  map[object.Handle]snapshot.ObjID
}

// Option configures a Walker.
type Option func(*Walker)

// WithWitness replaces the collection witness. The default watches the
// runtime's collector; deterministic tests and targets without a
// concurrent collector pass gcwitness.Disabled or their own.
func WithWitness(w gcwitness.Witness) Option {
	return func(wk *Walker) { wk.witness = w }
}

// WithSnapshot records every counted object into s as the walk runs.
// The snapshot is only meaningful if Run returns without error.
func WithSnapshot(s *snapshot.Snapshot) Option {
	return func(wk *Walker) {
		wk.snap = s
		wk.ids = make(map[object.Handle]snapshot.ObjID)
	}
}

// New creates a walker over insp. The witness is anchored here, so the
// walk should start right away.
func New(insp Inspector, opts ...Option) *Walker {
	w := &Walker{
		insp:    insp,
		visited: make(map[object.Handle]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.witness == nil {
		w.witness = gcwitness.New()
	}
	return w
}

// Run measures the objects reachable from roots and returns the total
// deduplicated size. If a collection completes at any point during the
// traversal the whole measurement is abandoned and ErrInterfered is
// returned; no partial total is ever reported.
func (w *Walker) Run(roots []Node) (uint64, error) {
	if w.snap != nil {
		ids := make([]snapshot.ObjID, 0, len(roots))
		for _, n := range roots {
			if h := w.insp.Identity(n); h.Valid() {
				ids = append(ids, w.idFor(h))
			}
		}
		w.snap.SetRoots(ids)
	}
	for _, n := range roots {
		if err := w.visit(n); err != nil {
			return 0, err
		}
	}
	return w.total, nil
}

func (w *Walker) visit(n Node) error {
	h := w.insp.Identity(n)
	if !h.Valid() {
		return nil
	}

	// Membership is recorded before the witness is consulted so the
	// test itself cannot be skewed by a collection between the two.
	_, seen := w.visited[h]

	// The witness is consulted on every visit, duplicates included. A
	// long traversal revisits shared objects constantly, and a cycle
	// completing anywhere in it invalidates everything counted so far.
	if w.witness.Interfered() {
		return ErrInterfered
	}
	if seen {
		return nil
	}

	own := w.insp.OwnSize(n)
	refs := w.insp.DirectRefs(n)
	w.total += own
	w.visited[h] = struct{}{}
	w.record(h, own, refs)

	for _, r := range refs {
		if err := w.visit(r); err != nil {
			return err
		}
	}
	return nil
}

// record captures one counted object into the snapshot, if any.
func (w *Walker) record(h object.Handle, own uint64, refs []Node) {
	if w.snap == nil {
		return
	}
	refIDs := make([]snapshot.ObjID, 0, len(refs))
	for _, r := range refs {
		if rh := w.insp.Identity(r); rh.Valid() {
			refIDs = append(refIDs, w.idFor(rh))
		}
	}
	typ := ""
	if t := h.Type(); t != nil {
		typ = t.String()
	}
	w.snap.Add(&snapshot.Object{
		ID:   w.idFor(h),
		Type: typ,
		Size: own,
		Refs: refIDs,
	})
}

// idFor assigns walk-local snapshot IDs in first-sight order.
func (w *Walker) idFor(h object.Handle) snapshot.ObjID {
	if id, ok := w.ids[h]; ok {
		return id
	}
	id := snapshot.ObjID(len(w.ids) + 1)
	w.ids[h] = id
	return id
}
