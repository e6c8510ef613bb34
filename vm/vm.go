package vm

import (
	"errors"
	"fmt"

	"github.com/funvibe/fuse/bytecode"
)

var errStackUnderflow = errors.New("stack underflow")
var errStackOverflow = errors.New("stack overflow")
var errInvalidConstantIndex = errors.New("invalid constant index")
var errInvalidJumpTarget = errors.New("invalid jump target")
var errInvalidLocalSlot = errors.New("invalid local slot")
var errUnknownOpcode = errors.New("unknown opcode")

// Maximum operand stack size to prevent OOM on malformed sequences
const maxStackSize = 1 << 16

// machine executes one instruction sequence. Calls made by OP_CALL dispatch
// through Callable.Call, so nested bytecode functions run on their own
// machine rather than on shared frames.
type machine struct {
	seq    *bytecode.Sequence
	fn     *Function
	stack  []any
	ip     int
	locals []any
}

// run executes fn with the given arguments. Missing trailing arguments are
// filled from the function's defaults, which align to the tail of the
// parameter list.
func run(fn *Function, args []any) (any, error) {
	seq := fn.Seq
	required := len(seq.Params) - len(fn.Defaults)
	if len(args) < required || len(args) > len(seq.Params) {
		return nil, fmt.Errorf("%s: expected %d argument(s), got %d",
			seq.Name, required, len(args))
	}

	locals := make([]any, seq.Locals)
	copy(locals, args)
	for i := len(args); i < len(seq.Params); i++ {
		locals[i] = fn.Defaults[i-required]
	}

	m := &machine{
		seq:    seq,
		fn:     fn,
		stack:  make([]any, 0, 16),
		locals: locals,
	}
	return m.run()
}

func (m *machine) push(v any) error {
	if len(m.stack) >= maxStackSize {
		return errStackOverflow
	}
	m.stack = append(m.stack, v)
	return nil
}

func (m *machine) pop() (any, error) {
	if len(m.stack) == 0 {
		return nil, errStackUnderflow
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *machine) run() (any, error) {
	for m.ip < len(m.seq.Instrs) {
		in := m.seq.Instrs[m.ip]
		m.ip++

		result, done, err := m.executeOneOp(in)
		if err != nil {
			return nil, fmt.Errorf("%s at %04d: %w", m.seq.Name, m.ip-1, err)
		}
		if done {
			return result, nil
		}
	}
	return nil, fmt.Errorf("%s: control fell off the end of the sequence", m.seq.Name)
}

func (m *machine) executeOneOp(in bytecode.Instr) (any, bool, error) {
	switch in.Op {
	case bytecode.OP_CONST:
		if in.Arg < 0 || in.Arg >= len(m.seq.Consts) {
			return nil, false, errInvalidConstantIndex
		}
		return nil, false, m.push(m.seq.Consts[in.Arg])

	case bytecode.OP_POP:
		_, err := m.pop()
		return nil, false, err

	case bytecode.OP_DUP:
		if len(m.stack) == 0 {
			return nil, false, errStackUnderflow
		}
		return nil, false, m.push(m.stack[len(m.stack)-1])

	case bytecode.OP_ROT2:
		if len(m.stack) < 2 {
			return nil, false, errStackUnderflow
		}
		top := len(m.stack) - 1
		m.stack[top], m.stack[top-1] = m.stack[top-1], m.stack[top]
		return nil, false, nil

	case bytecode.OP_ADD, bytecode.OP_SUB, bytecode.OP_MUL,
		bytecode.OP_DIV, bytecode.OP_MOD:
		return nil, false, m.binaryOp(in.Op)

	case bytecode.OP_NEG:
		v, err := m.pop()
		if err != nil {
			return nil, false, err
		}
		neg, err := negate(v)
		if err != nil {
			return nil, false, err
		}
		return nil, false, m.push(neg)

	case bytecode.OP_EQ, bytecode.OP_NE, bytecode.OP_LT,
		bytecode.OP_LE, bytecode.OP_GT, bytecode.OP_GE:
		return nil, false, m.compareOp(in.Op)

	case bytecode.OP_NOT:
		v, err := m.pop()
		if err != nil {
			return nil, false, err
		}
		return nil, false, m.push(!Truthy(v))

	case bytecode.OP_GET_LOCAL:
		if in.Arg < 0 || in.Arg >= len(m.locals) {
			return nil, false, errInvalidLocalSlot
		}
		return nil, false, m.push(m.locals[in.Arg])

	case bytecode.OP_SET_LOCAL:
		if in.Arg < 0 || in.Arg >= len(m.locals) {
			return nil, false, errInvalidLocalSlot
		}
		v, err := m.pop()
		if err != nil {
			return nil, false, err
		}
		m.locals[in.Arg] = v
		return nil, false, nil

	case bytecode.OP_GET_GLOBAL, bytecode.OP_GET_NAME:
		name, err := m.bindingName(in.Arg)
		if err != nil {
			return nil, false, err
		}
		v, ok := m.fn.Globals[name]
		if !ok {
			return nil, false, fmt.Errorf("undefined binding %q", name)
		}
		return nil, false, m.push(v)

	case bytecode.OP_SET_GLOBAL, bytecode.OP_SET_NAME:
		name, err := m.bindingName(in.Arg)
		if err != nil {
			return nil, false, err
		}
		v, err := m.pop()
		if err != nil {
			return nil, false, err
		}
		if m.fn.Globals == nil {
			m.fn.Globals = make(map[string]any)
		}
		m.fn.Globals[name] = v
		return nil, false, nil

	case bytecode.OP_DEL_GLOBAL, bytecode.OP_DEL_NAME:
		name, err := m.bindingName(in.Arg)
		if err != nil {
			return nil, false, err
		}
		delete(m.fn.Globals, name)
		return nil, false, nil

	case bytecode.OP_GET_FREE:
		if in.Arg < 0 || in.Arg >= len(m.seq.Free) {
			return nil, false, fmt.Errorf("invalid cell index %d", in.Arg)
		}
		return nil, false, m.push(m.seq.Free[in.Arg].Value)

	case bytecode.OP_SET_FREE:
		if in.Arg < 0 || in.Arg >= len(m.seq.Free) {
			return nil, false, fmt.Errorf("invalid cell index %d", in.Arg)
		}
		v, err := m.pop()
		if err != nil {
			return nil, false, err
		}
		m.seq.Free[in.Arg].Value = v
		return nil, false, nil

	case bytecode.OP_DEL_FREE:
		if in.Arg < 0 || in.Arg >= len(m.seq.Free) {
			return nil, false, fmt.Errorf("invalid cell index %d", in.Arg)
		}
		m.seq.Free[in.Arg].Value = nil
		return nil, false, nil

	case bytecode.OP_JUMP:
		if in.Arg < 0 || in.Arg >= len(m.seq.Instrs) {
			return nil, false, errInvalidJumpTarget
		}
		m.ip = in.Arg
		return nil, false, nil

	case bytecode.OP_CALL:
		return nil, false, m.callOp(in.Arg)

	case bytecode.OP_RETURN:
		v, err := m.pop()
		return v, true, err

	default:
		return nil, false, fmt.Errorf("%w: %d", errUnknownOpcode, in.Op)
	}
}

func (m *machine) bindingName(idx int) (string, error) {
	if idx < 0 || idx >= len(m.seq.Names) {
		return "", fmt.Errorf("invalid name index %d", idx)
	}
	return m.seq.Names[idx], nil
}

// callOp pops arity arguments and the callee below them, invokes the callee
// and pushes the result.
func (m *machine) callOp(arity int) error {
	if len(m.stack) < arity+1 {
		return errStackUnderflow
	}
	args := make([]any, arity)
	for i := arity - 1; i >= 0; i-- {
		v, _ := m.pop()
		args[i] = v
	}
	calleeVal, _ := m.pop()

	callee, err := AsCallable(calleeVal)
	if err != nil {
		return err
	}
	result, err := callee.Call(args...)
	if err != nil {
		return err
	}
	return m.push(result)
}
