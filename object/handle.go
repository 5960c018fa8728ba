// ABOUTME: Object handle model providing transient identity for heap objects
// ABOUTME: Handles key the visited set of a single measuring walk

// Package object defines the opaque handle through which the walker
// identifies heap objects. A handle's identity is a snapshot of the
// object's current address together with the type it is viewed through.
// It is valid only within one collector epoch: the moment a garbage
// collection completes, every handle taken before it is meaningless.
// Handles must never be persisted or compared across a collection.
package object

import "reflect"

// A Handle identifies one heap object. Two handles are equal iff they
// refer to the same storage viewed as the same type; equality is never
// based on object value. The zero Handle refers to nothing.
type Handle struct {
	addr uintptr
	typ  reflect.Type
}

// Of derives the handle for v. For addressable values the identity is
// the storage address. Maps, channels and funcs are reference types
// whose header address reflect does not expose, so their reference word
// serves as the identity instead. Values with no reachable address
// yield the zero Handle.
func Of(v reflect.Value) Handle {
	switch v.Kind() {
	case reflect.Map, reflect.Chan, reflect.Func:
		if v.IsNil() {
			return Handle{}
		}
		return Handle{addr: v.Pointer(), typ: v.Type()}
	default:
		if v.CanAddr() {
			return Handle{addr: v.Addr().Pointer(), typ: v.Type()}
		}
	}
	return Handle{}
}

// Valid reports whether h refers to an object.
func (h Handle) Valid() bool {
	return h.addr != 0
}

// Equal reports whether h and o refer to the same storage.
func (h Handle) Equal(o Handle) bool {
	return h == o
}

// Type returns the type the object is viewed through, or nil for the
// zero Handle.
func (h Handle) Type() reflect.Type {
	return h.typ
}

// Hash returns a hash of the identity, consistent with Equal. Like the
// identity itself it is only stable within one collector epoch.
func (h Handle) Hash() uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	x := uint64(offset64)
	a := uint64(h.addr)
	for i := 0; i < 8; i++ {
		x ^= a & 0xff
		x *= prime64
		a >>= 8
	}
	if h.typ != nil {
		t := uint64(reflect.ValueOf(h.typ).Pointer())
		for i := 0; i < 8; i++ {
			x ^= t & 0xff
			x *= prime64
			t >>= 8
		}
	}
	return x
}
