package vm

import (
	"errors"

	"github.com/funvibe/fuse/bytecode"
)

// ErrNotCallable reports a value that cannot be invoked at all
var ErrNotCallable = errors.New("not callable")

// Extract obtains the instruction sequence for v.
//
// A nil sequence with a nil error means v is callable but opaque: its
// instructions cannot be inspected and it must be called indirectly. An
// Indirect value is followed exactly once; if the target is itself
// indirect, the callable is declared opaque rather than recursing, since
// the target's own indirection may resolve back to v.
func Extract(v any) (*bytecode.Sequence, error) {
	return extract(v, false)
}

func extract(v any, followedTarget bool) (*bytecode.Sequence, error) {
	if holder, ok := v.(CodeHolder); ok {
		return holder.Code(), nil
	}

	if _, ok := v.(Callable); ok {
		// Native callable: opaque.
		return nil, nil
	}
	switch v.(type) {
	case func(any) any, func(any) (any, error), func(any) bool:
		return nil, nil
	}

	if followedTarget {
		return nil, nil
	}
	if ind, ok := v.(Indirect); ok {
		return extract(ind.Target(), true)
	}

	return nil, ErrNotCallable
}
