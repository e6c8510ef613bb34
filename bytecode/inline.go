package bytecode

// CanInline checks whether seq may be spliced into a foreign instruction
// stream in place of a call.
//
// A sequence is inlinable iff it contains no non-local load, store or delete:
// shared/global bindings, captured cells and dynamically named bindings all
// resolve against the enclosing scope of the owning callable, which the
// splice destination may not provide. The scan is purely structural and
// covers the whole sequence; there is no partial inlining of a safe prefix.
//
// A nil sequence (an opaque callable whose instructions could not be
// obtained) is never inlinable.
func CanInline(seq *Sequence) bool {
	if seq == nil {
		return false
	}
	for _, in := range seq.Instrs {
		switch in.Op {
		case OP_GET_GLOBAL, OP_SET_GLOBAL, OP_DEL_GLOBAL,
			OP_GET_FREE, OP_SET_FREE, OP_DEL_FREE,
			OP_GET_NAME, OP_SET_NAME, OP_DEL_NAME:
			return false
		}
	}
	return true
}
