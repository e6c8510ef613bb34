/*
Package fuse fuses chains of transformation steps into single execution
units, so that composing N transformations costs roughly one
transformation's overhead instead of N.

Fusion happens at two levels. Compose splices the instruction sequences of
unary callables together in place of explicit calls wherever the splice is
provably safe, and degrades to an indirect call for every callable it cannot
inspect. Map and Filter wrap a source sequence into a pipeline whose stages
are flattened into one ordered step list, with adjacent map stages merged
through Compose, and driven in a single pass per element:

	inc := ... // a bytecode-backed vm.Function
	big := func(v any) bool { return v.(int) > 2 }

	it := fuse.Map(inc, fuse.Filter(big, fuse.FromSlice([]int{1, 2, 3, 4})))
	out, err := it.ToList() // [4 5]

Pipelines are lazy and single-pass: values are only produced on demand, and
an iterator that has been drained stays exhausted, since the underlying
source may itself be a single-pass sequence.
*/
package fuse
