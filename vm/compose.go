package vm

import (
	"strings"

	"github.com/google/uuid"

	"github.com/funvibe/fuse/bytecode"
)

// accSlot is the local slot that threads the running value through every
// inlined stage of a composition.
const accSlot = 0

// syntheticParam names the accumulator when no stage is inlinable
const syntheticParam = "n"

// Identity returns the identity function
func Identity() Callable {
	return NewBuiltin("identity", func(arg any) any { return arg })
}

// stage is one callable of a composition, in innermost-first order
type stage struct {
	fn     Callable
	seq    *bytecode.Sequence
	inline bool
}

// Compose fuses the unary callables fs into a single callable, semantically
// fs[0](fs[1](...fs[n-1](x)...)).
//
// Each callable whose instruction sequence can be obtained and passes the
// inlinability scan is spliced directly into the synthesized sequence; every
// other callable degrades to an explicit call. There is no failure mode
// beyond a non-callable argument: un-inlinable stages never abort the
// composition, and opaque calls keep the same relative order as the unfused
// chain.
//
// Compose of nothing is the identity function; Compose of one callable is
// that callable itself.
func Compose(fs ...any) (Callable, error) {
	callables := make([]Callable, len(fs))
	for i, f := range fs {
		c, err := AsCallable(f)
		if err != nil {
			return nil, err
		}
		callables[i] = c
	}

	if len(callables) == 0 {
		return Identity(), nil
	}
	if len(callables) == 1 {
		return callables[0], nil
	}

	// Innermost-first processing order.
	stages := make([]*stage, len(callables))
	for i := range callables {
		fn := callables[len(callables)-1-i]
		seq, err := Extract(fn)
		if err != nil {
			return nil, err
		}
		stages[i] = &stage{fn: fn, seq: seq, inline: bytecode.CanInline(seq)}
	}

	names := make([]string, len(callables))
	for i, c := range callables {
		names[i] = c.FuncName()
	}

	sp := &splicer{stages: stages}
	seq := sp.splice(strings.Join(names, "_of_"))

	// Defaults come from the outermost (first-listed) callable only.
	var defaults []any
	if outer, ok := callables[0].(*Function); ok {
		defaults = outer.Defaults
	}

	return &Function{
		Seq:      seq,
		Defaults: defaults,
		ID:       uuid.NewString(),
	}, nil
}

// splicer accumulates the synthesized sequence. Jump targets are absolute
// instruction indices, patched in place once the target stage's entry point
// is known; nothing is linked by instruction reference.
type splicer struct {
	stages []*stage
	out    *bytecode.Sequence

	// pending holds indices of OP_JUMP placeholders waiting for the next
	// stage's entry point.
	pending []int

	// cellIndex dedups captured cells by identity while concatenating them
	// in processing order.
	cellIndex map[*bytecode.Cell]int

	// donor is the first inlinable stage; the composite inherits its
	// parameter slot names.
	donor *stage
}

func (sp *splicer) splice(name string) *bytecode.Sequence {
	sp.out = bytecode.New(name, sp.paramTable()...)
	sp.cellIndex = make(map[*bytecode.Cell]int)

	for i, st := range sp.stages {
		entry := len(sp.out.Instrs)
		for _, j := range sp.pending {
			sp.out.Instrs[j].Arg = entry
		}
		sp.pending = sp.pending[:0]

		innermost := i == 0
		last := i == len(sp.stages)-1
		storeOut := !last && sp.needsAccumulator(sp.stages[i+1])

		if st.inline {
			sp.spliceStage(st, innermost, last, storeOut)
		} else {
			sp.emitCall(st, innermost, last, storeOut)
		}

		if st.seq != nil {
			sp.mergeCells(st.seq)
		}
	}

	return sp.out
}

// paramTable builds the synthesized parameter slot names: the first
// inlinable stage's own slots with the first one serving as the shared
// accumulator, or a single synthetic parameter when every stage is opaque.
func (sp *splicer) paramTable() []string {
	for _, st := range sp.stages {
		if st.inline && len(st.seq.Params) > 0 {
			sp.donor = st
			params := make([]string, len(st.seq.Params))
			copy(params, st.seq.Params)
			return params
		}
	}
	return []string{syntheticParam}
}

// needsAccumulator reports whether the running value must be parked in the
// accumulator slot before control enters next. Opaque stages consume the
// value straight off the stack, as does an inlined stage that reads its
// parameter exactly once, as its first instruction: that leading load is
// dropped and the value flows through. Any other shape reloads the
// parameter slot mid-body, so the value has to be stored first.
func (sp *splicer) needsAccumulator(next *stage) bool {
	return next.inline && !flowsOnStack(next.seq)
}

// flowsOnStack reports whether seq's only parameter access is an immediate
// leading load, which splicing can replace with the value already on the
// stack.
func flowsOnStack(seq *bytecode.Sequence) bool {
	if len(seq.Instrs) == 0 {
		return false
	}
	first := seq.Instrs[0]
	if first.Op != bytecode.OP_GET_LOCAL || first.Arg != accSlot {
		return false
	}
	for _, in := range seq.Instrs[1:] {
		if (in.Op == bytecode.OP_GET_LOCAL || in.Op == bytecode.OP_SET_LOCAL) && in.Arg == accSlot {
			return false
		}
	}
	return true
}

// emitCall emits the explicit invocation of an opaque stage: the callable
// is pushed as a constant and rotated under the running value. The innermost
// stage takes the value from the accumulator slot, where the composite's
// parameter lives; every later stage finds it on the stack.
func (sp *splicer) emitCall(st *stage, innermost, last, storeOut bool) {
	if innermost {
		sp.out.Emit(bytecode.OP_GET_LOCAL, accSlot)
	}
	sp.out.EmitConst(st.fn)
	sp.out.EmitOp(bytecode.OP_ROT2)
	sp.out.Emit(bytecode.OP_CALL, 1)

	if last {
		sp.out.EmitOp(bytecode.OP_RETURN)
	} else if storeOut {
		sp.out.Emit(bytecode.OP_SET_LOCAL, accSlot)
	}
}

// spliceStage splices an inlinable stage's instructions into the composite.
//
// Slot, constant and jump operands are re-indexed against the composite:
// parameter slot references retarget to the shared accumulator slot, other
// locals get fresh slots, constants move into the merged pool and jump
// targets are resolved through a position map in a final patch pass. Return
// instructions of a non-last stage become the boundary handoff: an optional
// accumulator store followed by a jump to the next stage's entry, with both
// elided where control falls through naturally.
func (sp *splicer) spliceStage(st *stage, innermost, last, storeOut bool) {
	seq := st.seq
	drop := !innermost && flowsOnStack(seq)

	posMap := make([]int, len(seq.Instrs))
	slotMap := sp.stageSlotMap(st)
	constMap := make(map[int]int)

	type patch struct {
		at     int // index in the composite
		target int // index in the stage's own sequence
	}
	var patches []patch

	for oi, in := range seq.Instrs {
		posMap[oi] = len(sp.out.Instrs)

		if oi == 0 && drop {
			continue
		}

		switch in.Op {
		case bytecode.OP_RETURN:
			if last {
				sp.out.EmitOp(bytecode.OP_RETURN)
				continue
			}
			if storeOut {
				sp.out.Emit(bytecode.OP_SET_LOCAL, accSlot)
			}
			if oi != len(seq.Instrs)-1 {
				// A return in the middle of the stage cannot fall
				// through; jump to the next stage's entry point.
				sp.pending = append(sp.pending, sp.out.Emit(bytecode.OP_JUMP, -1))
			}

		case bytecode.OP_GET_LOCAL, bytecode.OP_SET_LOCAL:
			sp.out.Emit(in.Op, slotMap(in.Arg))

		case bytecode.OP_CONST:
			idx, ok := constMap[in.Arg]
			if !ok {
				idx = sp.out.AddConst(seq.Consts[in.Arg])
				constMap[in.Arg] = idx
			}
			sp.out.Emit(bytecode.OP_CONST, idx)

		case bytecode.OP_JUMP:
			patches = append(patches, patch{at: sp.out.Emit(bytecode.OP_JUMP, -1), target: in.Arg})

		default:
			sp.out.Emit(in.Op, in.Arg)
		}
	}

	for _, p := range patches {
		if p.target >= 0 && p.target < len(posMap) {
			sp.out.Instrs[p.at].Arg = posMap[p.target]
		}
	}
}

// stageSlotMap returns the mapping from a stage's local slots to composite
// slots. Slot 0 is always the accumulator. The stage that donated the
// parameter table keeps its parameter slots in place; every other local gets
// a fresh composite slot.
func (sp *splicer) stageSlotMap(st *stage) func(int) int {
	keep := 1
	if st == sp.donor {
		keep = len(st.seq.Params)
	}

	fresh := make(map[int]int)
	return func(slot int) int {
		if slot < keep {
			return slot
		}
		mapped, ok := fresh[slot]
		if !ok {
			mapped = sp.out.AddLocal()
			fresh[slot] = mapped
		}
		return mapped
	}
}

// mergeCells concatenates a stage's captured cells into the composite,
// deduplicating by cell identity so that two stages sharing a cell keep
// sharing it.
func (sp *splicer) mergeCells(seq *bytecode.Sequence) {
	for _, cell := range seq.Free {
		if _, ok := sp.cellIndex[cell]; ok {
			continue
		}
		sp.cellIndex[cell] = len(sp.out.Free)
		sp.out.Free = append(sp.out.Free, cell)
	}
}
