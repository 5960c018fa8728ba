// ABOUTME: Tests for the measuring walk
// ABOUTME: Word-sized fake graphs exercise dedup, cycles and interference

package walk

import (
	"errors"
	"reflect"
	"testing"

	"github.com/prateek/deepsize/gcwitness"
	"github.com/prateek/deepsize/object"
	"github.com/prateek/deepsize/snapshot"
)

// fakeObj is a synthetic heap object with a declared size in words.
// Its identity is its own allocation, so sharing and cycles in the
// fake graph behave exactly like sharing and cycles on the real heap.
type fakeObj struct {
	size uint64
	refs []*fakeObj
}

type fakeInspector struct {
	inspected int // OwnSize calls, i.e. objects actually counted
}

func (f *fakeInspector) Identity(n Node) object.Handle {
	o := n.(*fakeObj)
	if o == nil {
		return object.Handle{}
	}
	return object.Of(reflect.ValueOf(o).Elem())
}

func (f *fakeInspector) OwnSize(n Node) uint64 {
	f.inspected++
	return n.(*fakeObj).size
}

func (f *fakeInspector) DirectRefs(n Node) []Node {
	o := n.(*fakeObj)
	out := make([]Node, 0, len(o.refs))
	for _, r := range o.refs {
		out = append(out, Node(r))
	}
	return out
}

// countdown is a scripted witness: the first n checks are quiet, every
// later check reports interference.
type countdown struct {
	n int
}

func (w *countdown) Interfered() bool {
	if w.n <= 0 {
		return true
	}
	w.n--
	return false
}

func measure(roots []*fakeObj, opts ...Option) (uint64, *fakeInspector, error) {
	insp := &fakeInspector{}
	opts = append([]Option{WithWitness(gcwitness.Disabled)}, opts...)
	w := New(insp, opts...)
	nodes := make([]Node, 0, len(roots))
	for _, r := range roots {
		nodes = append(nodes, Node(r))
	}
	total, err := w.Run(nodes)
	return total, insp, err
}

func TestAcyclicSum(t *testing.T) {
	// A record with a 2-word header and fields of 8 and 16 words.
	a := &fakeObj{size: 8}
	b := &fakeObj{size: 16}
	root := &fakeObj{size: 2, refs: []*fakeObj{a, b}}

	total, _, err := measure([]*fakeObj{root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 26 {
		t.Errorf("total = %d, want 26", total)
	}
}

func TestSharedCountedOnce(t *testing.T) {
	// A pair whose both elements are the same 10-word object.
	shared := &fakeObj{size: 10}
	root := &fakeObj{size: 3, refs: []*fakeObj{shared, shared}}

	total, insp, err := measure([]*fakeObj{root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 13 {
		t.Errorf("total = %d, want 13 (shared object counted once)", total)
	}
	if insp.inspected != 2 {
		t.Errorf("inspected %d objects, want 2", insp.inspected)
	}
}

func TestSharedViaMultiplePaths(t *testing.T) {
	leaf := &fakeObj{size: 40}
	left := &fakeObj{size: 20, refs: []*fakeObj{leaf}}
	right := &fakeObj{size: 30, refs: []*fakeObj{leaf}}
	root := &fakeObj{size: 10, refs: []*fakeObj{left, right}}

	total, _, err := measure([]*fakeObj{root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 100 {
		t.Errorf("total = %d, want 100", total)
	}
}

func TestSelfCycle(t *testing.T) {
	root := &fakeObj{size: 7}
	root.refs = []*fakeObj{root}

	total, _, err := measure([]*fakeObj{root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 7 {
		t.Errorf("total = %d, want 7", total)
	}
}

func TestMutualCycle(t *testing.T) {
	a := &fakeObj{size: 1}
	b := &fakeObj{size: 2, refs: []*fakeObj{a}}
	a.refs = []*fakeObj{b}

	total, _, err := measure([]*fakeObj{a})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
}

func TestIdempotence(t *testing.T) {
	shared := &fakeObj{size: 5}
	root := &fakeObj{size: 1, refs: []*fakeObj{shared, {size: 9, refs: []*fakeObj{shared}}}}

	first, _, err := measure([]*fakeObj{root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _, err := measure([]*fakeObj{root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("measurements differ: %d vs %d", first, second)
	}
}

func TestInterferenceAbortsImmediately(t *testing.T) {
	root := &fakeObj{size: 2, refs: []*fakeObj{{size: 8}, {size: 16}}}

	insp := &fakeInspector{}
	w := New(insp, WithWitness(&countdown{n: 0}))
	total, err := w.Run([]Node{Node(root)})

	if !errors.Is(err, ErrInterfered) {
		t.Fatalf("err = %v, want ErrInterfered", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0 on failure", total)
	}
	if insp.inspected != 0 {
		t.Errorf("inspected %d objects after immediate interference, want 0", insp.inspected)
	}
}

func TestInterferenceMidWalk(t *testing.T) {
	// Quiet for the root and its first child, then interference.
	tail := &fakeObj{size: 16}
	root := &fakeObj{size: 2, refs: []*fakeObj{{size: 8}, tail}}

	w := New(&fakeInspector{}, WithWitness(&countdown{n: 2}))
	_, err := w.Run([]Node{Node(root)})

	if !errors.Is(err, ErrInterfered) {
		t.Fatalf("err = %v, want ErrInterfered", err)
	}
}

func TestDuplicateVisitStillChecked(t *testing.T) {
	// The third check happens on the duplicate visit of a. If the
	// walker skipped the witness for already-seen objects this walk
	// would succeed.
	a := &fakeObj{size: 10}
	root := &fakeObj{size: 3, refs: []*fakeObj{a, a}}

	w := New(&fakeInspector{}, WithWitness(&countdown{n: 2}))
	_, err := w.Run([]Node{Node(root)})

	if !errors.Is(err, ErrInterfered) {
		t.Fatalf("err = %v, want ErrInterfered on duplicate visit", err)
	}
}

func TestNilRootSkipped(t *testing.T) {
	total, insp, err := measure([]*fakeObj{nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 || insp.inspected != 0 {
		t.Errorf("nil root should count nothing, got total=%d inspected=%d", total, insp.inspected)
	}
}

func TestMultipleRoots(t *testing.T) {
	shared := &fakeObj{size: 10}
	r1 := &fakeObj{size: 1, refs: []*fakeObj{shared}}
	r2 := &fakeObj{size: 2, refs: []*fakeObj{shared}}

	total, _, err := measure([]*fakeObj{r1, r2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 13 {
		t.Errorf("total = %d, want 13", total)
	}
}

func TestSnapshotCapture(t *testing.T) {
	shared := &fakeObj{size: 10}
	root := &fakeObj{size: 3, refs: []*fakeObj{shared, shared}}

	snap := snapshot.New()
	total, _, err := measure([]*fakeObj{root}, WithSnapshot(snap))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snap.NumObjects() != 2 {
		t.Errorf("snapshot has %d objects, want 2", snap.NumObjects())
	}
	if snap.TotalSize() != total {
		t.Errorf("snapshot total %d != walk total %d", snap.TotalSize(), total)
	}

	roots := snap.Roots()
	if len(roots) != 1 {
		t.Fatalf("snapshot has %d roots, want 1", len(roots))
	}
	rootObj := snap.Object(roots[0])
	if rootObj == nil {
		t.Fatal("root object not recorded")
	}
	if rootObj.Size != 3 {
		t.Errorf("root size = %d, want 3", rootObj.Size)
	}
	if len(rootObj.Refs) != 2 || rootObj.Refs[0] != rootObj.Refs[1] {
		t.Errorf("root refs = %v, want two identical IDs", rootObj.Refs)
	}
	if rootObj.Type == "" {
		t.Error("captured objects should carry a type name")
	}
}
