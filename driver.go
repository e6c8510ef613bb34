package fuse

import (
	"iter"

	"github.com/funvibe/fuse/internal/config"
	"github.com/funvibe/fuse/vm"
)

var cfg = config.Default()

// Configure loads driver tuning from dir's fuse.yaml, replacing the built-in
// thresholds. A missing file resets to the defaults.
func Configure(dir string) error {
	loaded, err := config.Load(dir)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// init prepares the single-pass cursor: the flattened step list, a pull
// cursor over the source, and, for long pipelines over large sources, the
// step list folded into one chained closure so iteration does not walk the
// step slice per element.
func (it *Iterator) init() {
	steps := it.Steps()
	root := it.root()
	it.pull, it.stop = iter.Pull(root.source)

	if len(steps) >= cfg.Thresholds.CompileSteps && root.hint >= cfg.Thresholds.CompileSize {
		it.compiled = compileSteps(steps)
	}
	it.started = true
}

// Next pulls the next output element. It reports false once the source is
// exhausted or a step function failed; Err distinguishes the two.
func (it *Iterator) Next() (any, bool) {
	if it.exhausted || it.err != nil {
		return nil, false
	}
	if !it.started {
		it.init()
	}

	for {
		elem, ok := it.pull()
		if !ok {
			it.exhausted = true
			it.stop()
			return nil, false
		}

		var keep bool
		var err error
		if it.compiled != nil {
			elem, keep, err = it.compiled(elem)
		} else {
			elem, keep, err = applySteps(it.steps, elem)
		}
		if err != nil {
			it.err = err
			it.exhausted = true
			it.stop()
			return nil, false
		}
		if keep {
			return elem, true
		}
	}
}

// Err returns the first step-function error encountered while iterating
func (it *Iterator) Err() error {
	return it.err
}

// Seq exposes the iterator as an iter.Seq. The sequence shares the
// iterator's single-pass cursor: breaking out of a range keeps the remaining
// elements consumable, but a drained iterator stays empty.
func (it *Iterator) Seq() iter.Seq[any] {
	return func(yield func(any) bool) {
		for {
			v, ok := it.Next()
			if !ok || !yield(v) {
				return
			}
		}
	}
}

// ToList forces the iterator into a slice. This drains the same cursor Seq
// uses, so on a fresh pipeline it equals collecting Seq, and on a partially
// consumed one it returns the remainder.
func (it *Iterator) ToList() ([]any, error) {
	out := []any{}
	for {
		v, ok := it.Next()
		if !ok {
			return out, it.err
		}
		out = append(out, v)
	}
}

// applySteps runs every step against one source element, short-circuiting
// as soon as a filter rejects it.
func applySteps(steps []Step, elem any) (any, bool, error) {
	for _, step := range steps {
		applied, err := step.Fn.Call(elem)
		if err != nil {
			return nil, false, err
		}
		switch step.Kind {
		case KindMap:
			elem = applied
		case KindFilter:
			if !vm.Truthy(applied) {
				return nil, false, nil
			}
		}
	}
	return elem, true, nil
}

// compileSteps folds the step list into a single closure chain, built once,
// applying the same semantics as applySteps.
func compileSteps(steps []Step) func(any) (any, bool, error) {
	run := func(elem any) (any, bool, error) {
		return elem, true, nil
	}

	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		inner := run
		switch step.Kind {
		case KindMap:
			run = func(elem any) (any, bool, error) {
				applied, err := step.Fn.Call(elem)
				if err != nil {
					return nil, false, err
				}
				return inner(applied)
			}
		case KindFilter:
			run = func(elem any) (any, bool, error) {
				applied, err := step.Fn.Call(elem)
				if err != nil {
					return nil, false, err
				}
				if !vm.Truthy(applied) {
					return nil, false, nil
				}
				return inner(elem)
			}
		}
	}
	return run
}
