// ABOUTME: Public entry points for live recursive memory measurement
// ABOUTME: Wraps the walker with GC, deep-force and formatting helpers

// Package deepsize measures the recursive, deduplicated heap footprint
// of a live value: every distinct heap object reachable from a root is
// counted exactly once, shared substructure and cycles included. The
// runtime's collector may run at any point during a measurement; when
// that happens the walk notices and reports failure instead of a wrong
// number. Callers retry by measuring again.
//
// The measurement itself lives in the walk, inspect, object and
// gcwitness packages; this package sequences them.
package deepsize

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/prateek/deepsize/inspect"
	"github.com/prateek/deepsize/snapshot"
	"github.com/prateek/deepsize/walk"
)

// Version is the semantic version of the deepsize library.
const Version = "0.1.0-dev"

// ErrInterfered is returned when a garbage collection invalidated a
// measurement in progress.
var ErrInterfered = walk.ErrInterfered

// DeepForcer is implemented by values that can materialize their
// lazily-built state, so a measurement reflects the fully evaluated
// structure rather than unfilled placeholders.
type DeepForcer interface {
	DeepForce()
}

// Measure triggers a full collection and then measures the heap
// footprint of root. Starting from a freshly collected heap minimizes
// the chance of another collection firing mid-walk and keeps dead
// objects out of the count.
func Measure(root any) (uint64, error) {
	runtime.GC()
	return MeasureNoGC(root)
}

// MeasureNoGC measures the heap footprint of root without forcing a
// prior collection.
func MeasureNoGC(root any) (uint64, error) {
	w := walk.New(inspect.New())
	return w.Run(inspect.Roots(root))
}

// MeasureForced fully evaluates root via its DeepForce capability and
// then behaves as Measure.
func MeasureForced(root DeepForcer) (uint64, error) {
	root.DeepForce()
	return Measure(root)
}

// MeasureInto behaves as Measure and additionally captures the counted
// object graph into snap for later analysis. The snapshot is only
// meaningful when the returned error is nil.
func MeasureInto(root any, snap *snapshot.Snapshot) (uint64, error) {
	runtime.GC()
	w := walk.New(inspect.New(), walk.WithSnapshot(snap))
	return w.Run(inspect.Roots(root))
}

// OwnSize returns the non-recursive size of a single object: for a
// pointer, the pointed-to object's own storage; for reference values,
// their heap block (backing array, string data, map or channel header).
// Nothing is traversed, so no interference is possible.
func OwnSize(v any) uint64 {
	if v == nil {
		return 0
	}
	insp := inspect.New()
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return 0
		}
		return insp.OwnSize(walk.Node(rv.Elem()))
	case reflect.Map, reflect.Chan:
		if rv.IsNil() {
			return 0
		}
		return insp.OwnSize(walk.Node(rv))
	case reflect.Slice:
		return uint64(rv.Type().Size()) + uint64(rv.Cap())*uint64(rv.Type().Elem().Size())
	case reflect.String:
		return uint64(rv.Type().Size()) + uint64(rv.Len())
	default:
		return uint64(rv.Type().Size())
	}
}

// HumanBytes formats a byte count with a binary-prefix suffix.
func HumanBytes(n uint64) string {
	const (
		kib = 1 << 10
		mib = 1 << 20
		gib = 1 << 30
	)
	switch {
	case n >= gib:
		return fmt.Sprintf("%.2f GiB", float64(n)/gib)
	case n >= mib:
		return fmt.Sprintf("%.2f MiB", float64(n)/mib)
	case n >= kib:
		return fmt.Sprintf("%.2f KiB", float64(n)/kib)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
