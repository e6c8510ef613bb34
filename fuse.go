package fuse

import (
	"fmt"
	"iter"

	"github.com/funvibe/fuse/vm"
)

// Kind tags the operation a pipeline step performs
type Kind uint8

const (
	KindMap Kind = iota
	KindFilter
)

func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindFilter:
		return "filter"
	}
	return "unknown"
}

// Step is a flattened (kind, function) pair in application order: the step
// closest to the source comes first.
type Step struct {
	Kind Kind
	Fn   vm.Callable
}

// Iterator is one map or filter stage wrapped around a source sequence or
// another Iterator. Stages are immutable: wrapping never mutates the parent,
// so a partially built pipeline can be extended in several directions
// safely. Consuming an Iterator is stateful and single-pass.
type Iterator struct {
	kind   Kind
	fn     vm.Callable
	parent *Iterator

	// source and hint are set on the stage closest to the source
	source iter.Seq[any]
	hint   int

	// steps caches the flattened step list
	steps []Step

	// cursor state, populated on first consumption
	started   bool
	exhausted bool
	pull      func() (any, bool)
	stop      func()
	compiled  func(any) (any, bool, error)
	err       error
}

// Map lazily applies fn to every element of src.
//
// fn may be a vm.Callable or a unary Go function; src may be another
// *Iterator, an iter.Seq[any] or an []any slice (see FromSlice). Map panics
// when fn is not callable or src is not a usable source.
func Map(fn any, src any) *Iterator {
	return newStage(KindMap, fn, src)
}

// Filter lazily keeps the elements of src for which pred is truthy.
//
// Accepted argument shapes match Map.
func Filter(pred any, src any) *Iterator {
	return newStage(KindFilter, pred, src)
}

func newStage(kind Kind, fn any, src any) *Iterator {
	callable, err := vm.AsCallable(fn)
	if err != nil {
		panic(fmt.Sprintf("fuse.%s: %v", kind, err))
	}

	it := &Iterator{kind: kind, fn: callable, hint: -1}
	switch s := src.(type) {
	case *Iterator:
		it.parent = s
	case iter.Seq[any]:
		it.source = s
	case func(func(any) bool):
		it.source = iter.Seq[any](s)
	case []any:
		it.source = sliceSeq(s)
		it.hint = len(s)
	default:
		panic(fmt.Sprintf("fuse.%s: unsupported source %T", kind, src))
	}
	return it
}

// FromSlice boxes a slice into the []any source shape Map and Filter accept.
// Sources built this way carry a length hint, which the driver uses when
// deciding whether to compile the step list.
func FromSlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func sliceSeq(in []any) iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, item := range in {
			if !yield(item) {
				break
			}
		}
	}
}

// Steps returns the flattened step list in true application order: the walk
// follows parent links back to the source and reverses, so the order
// reflects how elements actually flow, not construction nesting.
//
// Adjacent map steps are merged into a single map step whose function is a
// newly synthesized composition of the two, built through vm.Compose so the
// merge splices bytecode when both functions allow it. The merged function
// is a genuinely new callable, distinguishable from each original. Merging
// never crosses a filter boundary and never combines two filters.
func (it *Iterator) Steps() []Step {
	if it.steps != nil {
		return it.steps
	}

	var chain []*Iterator
	for n := it; n != nil; n = n.parent {
		chain = append(chain, n)
	}

	steps := make([]Step, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		n := chain[i]
		if len(steps) > 0 {
			prev := &steps[len(steps)-1]
			if n.kind == KindMap && prev.Kind == KindMap {
				// map(f, map(g, ...)): fuse into map(compose(f, g), ...).
				// If the functions cannot be composed, keep two steps.
				if merged, err := vm.Compose(n.fn, prev.Fn); err == nil {
					prev.Fn = merged
					continue
				}
			}
		}
		steps = append(steps, Step{Kind: n.kind, Fn: n.fn})
	}

	it.steps = steps
	return steps
}

// root returns the stage holding the source sequence
func (it *Iterator) root() *Iterator {
	n := it
	for n.parent != nil {
		n = n.parent
	}
	return n
}
