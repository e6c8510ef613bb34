// Package bytecode defines the instruction model shared by the composition
// splicer and the fused pipeline driver: a small, closed set of stack-machine
// opcodes, immutable instruction sequences, and the inlinability scan that
// decides whether a sequence may be spliced into another one.
package bytecode

// Opcode represents a single instruction kind
type Opcode uint8

const (
	// Stack manipulation
	OP_CONST Opcode = iota // Push constant from pool
	OP_POP                 // Discard top of stack
	OP_DUP                 // Duplicate top of stack
	OP_ROT2                // Swap the two top stack values

	// Arithmetic
	OP_ADD // +
	OP_SUB // -
	OP_MUL // *
	OP_DIV // /
	OP_MOD // %
	OP_NEG // Unary minus

	// Comparison
	OP_EQ // ==
	OP_NE // !=
	OP_LT // <
	OP_LE // <=
	OP_GT // >
	OP_GE // >=

	// Logic
	OP_NOT // Logical negation of truthiness

	// Local variables
	OP_GET_LOCAL // Get local slot by index
	OP_SET_LOCAL // Set local slot by index

	// Non-local bindings. Any of these in a sequence makes it non-inlinable:
	// splicing moves code into a caller whose enclosing scope may not provide
	// the same bindings.
	OP_GET_GLOBAL // Get shared binding by name-pool index
	OP_SET_GLOBAL // Set shared binding by name-pool index
	OP_DEL_GLOBAL // Delete shared binding by name-pool index
	OP_GET_FREE   // Get captured cell by index
	OP_SET_FREE   // Set captured cell by index
	OP_DEL_FREE   // Clear captured cell by index
	OP_GET_NAME   // Get dynamically named binding by name-pool index
	OP_SET_NAME   // Set dynamically named binding by name-pool index
	OP_DEL_NAME   // Delete dynamically named binding by name-pool index

	// Control flow
	OP_JUMP   // Unconditional jump to absolute instruction index
	OP_CALL   // Call value below the arguments; operand is the arity
	OP_RETURN // Return top of stack
)

// OpcodeNames maps opcodes to their string names (for disassembly)
var OpcodeNames = map[Opcode]string{
	OP_CONST: "CONST",
	OP_POP:   "POP",
	OP_DUP:   "DUP",
	OP_ROT2:  "ROT2",

	OP_ADD: "ADD",
	OP_SUB: "SUB",
	OP_MUL: "MUL",
	OP_DIV: "DIV",
	OP_MOD: "MOD",
	OP_NEG: "NEG",

	OP_EQ: "EQ",
	OP_NE: "NE",
	OP_LT: "LT",
	OP_LE: "LE",
	OP_GT: "GT",
	OP_GE: "GE",

	OP_NOT: "NOT",

	OP_GET_LOCAL: "GET_LOCAL",
	OP_SET_LOCAL: "SET_LOCAL",

	OP_GET_GLOBAL: "GET_GLOBAL",
	OP_SET_GLOBAL: "SET_GLOBAL",
	OP_DEL_GLOBAL: "DEL_GLOBAL",
	OP_GET_FREE:   "GET_FREE",
	OP_SET_FREE:   "SET_FREE",
	OP_DEL_FREE:   "DEL_FREE",
	OP_GET_NAME:   "GET_NAME",
	OP_SET_NAME:   "SET_NAME",
	OP_DEL_NAME:   "DEL_NAME",

	OP_JUMP:   "JUMP",
	OP_CALL:   "CALL",
	OP_RETURN: "RETURN",
}

// HasOperand reports whether op carries an operand
func (op Opcode) HasOperand() bool {
	switch op {
	case OP_CONST, OP_GET_LOCAL, OP_SET_LOCAL,
		OP_GET_GLOBAL, OP_SET_GLOBAL, OP_DEL_GLOBAL,
		OP_GET_FREE, OP_SET_FREE, OP_DEL_FREE,
		OP_GET_NAME, OP_SET_NAME, OP_DEL_NAME,
		OP_JUMP, OP_CALL:
		return true
	}
	return false
}

// String returns the opcode mnemonic
func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
