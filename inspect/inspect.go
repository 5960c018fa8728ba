// ABOUTME: Closure inspector deriving sizes and referents via reflection
// ABOUTME: The one runtime-specific boundary of the measurement

// Package inspect implements walk.Inspector over live Go values. Nodes
// are reflect.Values denoting whole heap blocks: pointer targets, slice
// backing arrays, string data, boxed interface payloads, and map or
// channel headers. Inline, pointer-free storage is never a node of its
// own; it is charged to the enclosing block's size.
//
// Known approximations, shared with every live-measurement tool built
// on reflect: map storage is an estimate from the runtime's bucket
// layout, channel buffers are sized but their queued elements are not
// traversed, funcs are opaque, and two views of the same block dedup
// only when they agree on length (a subslice aliasing a larger array is
// counted separately from it).
package inspect

import (
	"reflect"
	"unsafe"

	"github.com/prateek/deepsize/object"
	"github.com/prateek/deepsize/walk"
)

// Inspector is the reflect-backed walk.Inspector. It is stateless and
// safe to share between walks.
type Inspector struct{}

// New returns an Inspector.
func New() *Inspector {
	return &Inspector{}
}

var _ walk.Inspector = (*Inspector)(nil)

// Roots derives the initial node set for root. A pointer root yields
// the pointed-to object; reference roots (maps, slices, strings,
// channels) yield their heap block. A root passed by value contributes
// only the heap objects it references, since the value itself is a
// stack copy, not a heap object.
func Roots(root any) []walk.Node {
	if root == nil {
		return nil
	}
	return flatten(reflect.ValueOf(root), nil)
}

// Identity returns the transient handle of n.
func (in *Inspector) Identity(n walk.Node) object.Handle {
	return object.Of(n.(reflect.Value))
}

// OwnSize returns the non-recursive size of n's storage in bytes.
func (in *Inspector) OwnSize(n walk.Node) uint64 {
	v := n.(reflect.Value)
	switch v.Kind() {
	case reflect.Map:
		return mapSize(v)
	case reflect.Chan:
		return chanSize(v)
	default:
		return uint64(v.Type().Size())
	}
}

// DirectRefs returns the heap objects n points to, in field, index or
// iteration order. Inline structure is traversed in place so that only
// genuine heap indirections become referents.
func (in *Inspector) DirectRefs(n walk.Node) []walk.Node {
	v := n.(reflect.Value)
	switch v.Kind() {
	case reflect.Map:
		var refs []walk.Node
		iter := v.MapRange()
		for iter.Next() {
			refs = flatten(iter.Key(), refs)
			refs = flatten(iter.Value(), refs)
		}
		return refs
	case reflect.Chan, reflect.Func:
		return nil
	default:
		return flatten(v, nil)
	}
}

var byteType = reflect.TypeOf(byte(0))

// flatten appends the heap objects referenced by the inline value v.
// Pointer-free storage contributes nothing; it is part of the enclosing
// object's own size.
func flatten(v reflect.Value, refs []walk.Node) []walk.Node {
	switch v.Kind() {
	case reflect.Ptr:
		if !v.IsNil() {
			refs = append(refs, walk.Node(v.Elem()))
		}
	case reflect.Interface:
		if !v.IsNil() {
			refs = interfaceRefs(v, refs)
		}
	case reflect.Slice:
		if v.Cap() > 0 {
			arr := reflect.NewAt(reflect.ArrayOf(v.Cap(), v.Type().Elem()), unsafe.Pointer(v.Pointer())).Elem()
			refs = append(refs, walk.Node(arr))
		}
	case reflect.String:
		if v.Len() > 0 {
			data := unsafe.Pointer(unsafe.StringData(v.String()))
			arr := reflect.NewAt(reflect.ArrayOf(v.Len(), byteType), data).Elem()
			refs = append(refs, walk.Node(arr))
		}
	case reflect.Map:
		if !v.IsNil() {
			refs = append(refs, walk.Node(v))
		}
	case reflect.Chan:
		if !v.IsNil() {
			refs = append(refs, walk.Node(v))
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			f := v.Field(i)
			if hasPointers(f.Type()) {
				refs = flatten(f, refs)
			}
		}
	case reflect.Array:
		if v.Len() > 0 && hasPointers(v.Type().Elem()) {
			for i := 0; i < v.Len(); i++ {
				refs = flatten(v.Index(i), refs)
			}
		}
	}
	return refs
}

// interfaceRefs resolves the heap object behind a non-nil interface.
// Pointer-shaped dynamic types live directly in the interface word;
// everything else is boxed, and the data word points at a heap copy of
// the dynamic value.
func interfaceRefs(v reflect.Value, refs []walk.Node) []walk.Node {
	elem := v.Elem()
	switch elem.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return flatten(elem, refs)
	}
	if v.CanAddr() {
		words := (*[2]unsafe.Pointer)(unsafe.Pointer(v.UnsafeAddr()))
		if words[1] != nil {
			boxed := reflect.NewAt(elem.Type(), words[1]).Elem()
			refs = append(refs, walk.Node(boxed))
		}
		return refs
	}
	// Unaddressable interface, e.g. a map key copy: the box cannot be
	// located, so its storage goes uncharged and only the pointers
	// inside it are followed.
	return flatten(elem, refs)
}

// hasPointers reports whether values of type t can contain pointers to
// other heap objects.
func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.String,
		reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return true
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	}
	return false
}

// Sizes below mirror the runtime's unexported headers. They are
// estimates and need revisiting when the runtime's map or channel
// implementation changes.
const (
	hmapSize    = 48 // runtime.hmap on 64-bit
	hchanSize   = 96 // runtime.hchan plus its mutex, rounded
	bucketSlots = 8  // entries per map bucket
	ptrSize     = unsafe.Sizeof(uintptr(0))
)

// mapSize estimates the storage owned by the map header: the hmap
// struct plus the bucket array implied by the current entry count at
// the runtime's load factor of 6.5. Keys and values stored inline in
// the buckets are charged here; heap objects they point to are
// traversed as referents.
func mapSize(v reflect.Value) uint64 {
	t := v.Type()
	slot := uint64(1 + t.Key().Size() + t.Elem().Size())
	bucket := uint64(bucketSlots)*slot + uint64(ptrSize)
	n := uint64(v.Len())
	buckets := uint64(1)
	for buckets*bucketSlots*13/16 < n {
		buckets *= 2
	}
	return hmapSize + buckets*bucket
}

// chanSize is the channel header plus its ring buffer. Elements queued
// in the buffer are not traversed.
func chanSize(v reflect.Value) uint64 {
	return hchanSize + uint64(v.Cap())*uint64(v.Type().Elem().Size())
}
