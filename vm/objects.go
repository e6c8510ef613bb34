// Package vm executes instruction sequences and fuses chains of unary
// callables into single sequences via Compose.
package vm

import (
	"fmt"

	"github.com/funvibe/fuse/bytecode"
)

// Callable is any value the machine can invoke
type Callable interface {
	Call(args ...any) (any, error)
	FuncName() string
}

// CodeHolder is the optional capability through which a callable exposes its
// instruction sequence. Callables that do not implement it are opaque: they
// can never be inlined and are always called indirectly.
type CodeHolder interface {
	Code() *bytecode.Sequence
}

// Indirect is the optional capability of a value that delegates "how to call
// me" to another value. Extraction follows the indirection exactly once
// before declaring the callable opaque, so self-referential indirections
// cannot recurse.
type Indirect interface {
	Target() any
}

// Function is a callable backed by an instruction sequence
type Function struct {
	Seq *bytecode.Sequence

	// Defaults holds default argument values aligned to the tail of
	// Seq.Params.
	Defaults []any

	// Globals is the namespace the sequence's non-local bindings resolve
	// against. May be nil for sequences without non-local instructions.
	Globals map[string]any

	// ID distinguishes synthesized functions from every other function,
	// including the ones they were fused from. Empty for hand-built
	// functions.
	ID string
}

func (f *Function) Call(args ...any) (any, error) { return run(f, args) }
func (f *Function) FuncName() string              { return f.Seq.Name }
func (f *Function) Code() *bytecode.Sequence      { return f.Seq }

func (f *Function) String() string { return fmt.Sprintf("<fn %s>", f.Seq.Name) }

// Builtin wraps a native Go function as an opaque callable
type Builtin struct {
	Name string
	Fn   func(args ...any) (any, error)
}

func (b *Builtin) Call(args ...any) (any, error) { return b.Fn(args...) }
func (b *Builtin) FuncName() string              { return b.Name }

func (b *Builtin) String() string { return fmt.Sprintf("<builtin %s>", b.Name) }

// NewBuiltin wraps a unary Go function that cannot fail
func NewBuiltin(name string, fn func(arg any) any) *Builtin {
	return &Builtin{
		Name: name,
		Fn: func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("%s: expected 1 argument, got %d", name, len(args))
			}
			return fn(args[0]), nil
		},
	}
}

// NewFallibleBuiltin wraps a unary Go function that may fail
func NewFallibleBuiltin(name string, fn func(arg any) (any, error)) *Builtin {
	return &Builtin{
		Name: name,
		Fn: func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("%s: expected 1 argument, got %d", name, len(args))
			}
			return fn(args[0])
		},
	}
}

// AsCallable coerces v into a Callable. Callables pass through; bare Go
// functions of the supported unary shapes are wrapped as opaque builtins; an
// Indirect value is followed once. Anything else is not callable.
func AsCallable(v any) (Callable, error) {
	switch fn := v.(type) {
	case Callable:
		return fn, nil
	case func(any) any:
		return NewBuiltin("fn", fn), nil
	case func(any) (any, error):
		return NewFallibleBuiltin("fn", fn), nil
	case func(any) bool:
		return NewBuiltin("fn", func(arg any) any { return fn(arg) }), nil
	case Indirect:
		if target, ok := fn.Target().(Callable); ok {
			return target, nil
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrNotCallable, v)
}
