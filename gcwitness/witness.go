// ABOUTME: Collection witness detecting GC cycles during a measuring walk
// ABOUTME: Backed by the runtime metric counting completed collections

// Package gcwitness provides the disposable canary a walk uses to
// notice that a garbage collection has completed since the walk began.
// A witness is created once per walk and polled after every object
// inspection; recreating it mid-walk would reset the detection window
// and defeat its purpose.
package gcwitness

import "runtime/metrics"

const cyclesMetric = "/gc/cycles/total:gc-cycles"

// Witness reports whether a garbage collection has completed since the
// witness was created.
type Witness interface {
	Interfered() bool
}

// New returns a witness anchored at the current completed-collection
// count.
func New() Witness {
	w := &cycleWitness{}
	w.sample[0].Name = cyclesMetric
	metrics.Read(w.sample[:])
	w.start = w.sample[0].Value.Uint64()
	return w
}

type cycleWitness struct {
	start  uint64
	sample [1]metrics.Sample
}

func (w *cycleWitness) Interfered() bool {
	metrics.Read(w.sample[:])
	return w.sample[0].Value.Uint64() > w.start
}

// Disabled is a witness that never reports interference, for targets
// without a concurrent collector and for deterministic tests.
var Disabled Witness = disabled{}

type disabled struct{}

func (disabled) Interfered() bool { return false }
