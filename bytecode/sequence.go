package bytecode

// Instr is one instruction: an opcode plus its operand.
//
// The operand meaning depends on the opcode: a constant-pool index for
// OP_CONST, a local slot for OP_GET_LOCAL/OP_SET_LOCAL, a name-pool index
// for the global and dynamic-name opcodes, a cell index for the free
// opcodes, an absolute instruction index for OP_JUMP and an arity for
// OP_CALL. Instructions are immutable values; sequences are rebuilt, never
// patched in place.
type Instr struct {
	Op  Opcode
	Arg int
}

// Cell holds a captured closure value. Cells are opaque to splicing and are
// carried through composition unmodified; two functions that captured the
// same cell keep sharing it.
type Cell struct {
	Value any
}

// Sequence is an ordered list of instructions together with everything a
// callable needs to run them: the constant pool, the name pool for non-local
// bindings, the ordered argument slot names (Params[0] is the single
// parameter), the captured cells and a display name.
type Sequence struct {
	Instrs []Instr
	Consts []any
	Names  []string
	Params []string
	Free   []*Cell

	// Locals is the number of local slots, including parameters.
	Locals int

	Name string
}

// New creates an empty sequence for a callable with the given display name
// and parameter slot names.
func New(name string, params ...string) *Sequence {
	return &Sequence{
		Instrs: make([]Instr, 0, 16),
		Consts: make([]any, 0, 4),
		Params: params,
		Locals: len(params),
		Name:   name,
	}
}

// Emit appends an instruction and returns its index
func (s *Sequence) Emit(op Opcode, arg int) int {
	s.Instrs = append(s.Instrs, Instr{Op: op, Arg: arg})
	return len(s.Instrs) - 1
}

// EmitOp appends an operand-less instruction and returns its index
func (s *Sequence) EmitOp(op Opcode) int {
	return s.Emit(op, 0)
}

// AddConst adds a constant to the pool and returns its index
func (s *Sequence) AddConst(v any) int {
	s.Consts = append(s.Consts, v)
	return len(s.Consts) - 1
}

// EmitConst writes OP_CONST for v, adding it to the constant pool
func (s *Sequence) EmitConst(v any) int {
	return s.Emit(OP_CONST, s.AddConst(v))
}

// InternName adds a binding name to the name pool, reusing an existing entry,
// and returns its index.
func (s *Sequence) InternName(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	s.Names = append(s.Names, name)
	return len(s.Names) - 1
}

// Slot resolves a parameter name to its local slot index, or -1
func (s *Sequence) Slot(param string) int {
	for i, p := range s.Params {
		if p == param {
			return i
		}
	}
	return -1
}

// AddLocal reserves an unnamed local slot and returns its index
func (s *Sequence) AddLocal() int {
	slot := s.Locals
	s.Locals++
	return slot
}

// Len returns the number of instructions in the sequence
func (s *Sequence) Len() int {
	return len(s.Instrs)
}
