package vm

import (
	"fmt"

	"github.com/funvibe/fuse/bytecode"
)

// binaryOp pops two operands and pushes the arithmetic result. Integer pairs
// stay integers; any float64 operand promotes the operation to float64;
// OP_ADD also concatenates strings.
func (m *machine) binaryOp(op bytecode.Opcode) error {
	b, err := m.pop()
	if err != nil {
		return err
	}
	a, err := m.pop()
	if err != nil {
		return err
	}

	if op == bytecode.OP_ADD {
		if as, ok := a.(string); ok {
			if bs, ok := b.(string); ok {
				return m.push(as + bs)
			}
		}
	}

	ai, aInt := asInt(a)
	bi, bInt := asInt(b)
	if aInt && bInt {
		result, err := intBinary(op, ai, bi)
		if err != nil {
			return err
		}
		return m.push(result)
	}

	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum && bNum {
		result, err := floatBinary(op, af, bf)
		if err != nil {
			return err
		}
		return m.push(result)
	}

	return fmt.Errorf("unsupported operands for %s: %T and %T", op, a, b)
}

func intBinary(op bytecode.Opcode, a, b int) (int, error) {
	switch op {
	case bytecode.OP_ADD:
		return a + b, nil
	case bytecode.OP_SUB:
		return a - b, nil
	case bytecode.OP_MUL:
		return a * b, nil
	case bytecode.OP_DIV:
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return a / b, nil
	case bytecode.OP_MOD:
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return a % b, nil
	}
	return 0, fmt.Errorf("not an arithmetic opcode: %s", op)
}

func floatBinary(op bytecode.Opcode, a, b float64) (float64, error) {
	switch op {
	case bytecode.OP_ADD:
		return a + b, nil
	case bytecode.OP_SUB:
		return a - b, nil
	case bytecode.OP_MUL:
		return a * b, nil
	case bytecode.OP_DIV:
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return a / b, nil
	case bytecode.OP_MOD:
		return 0, fmt.Errorf("modulo is not defined for floats")
	}
	return 0, fmt.Errorf("not an arithmetic opcode: %s", op)
}

// compareOp pops two operands and pushes the boolean comparison result
func (m *machine) compareOp(op bytecode.Opcode) error {
	b, err := m.pop()
	if err != nil {
		return err
	}
	a, err := m.pop()
	if err != nil {
		return err
	}

	switch op {
	case bytecode.OP_EQ:
		return m.push(equal(a, b))
	case bytecode.OP_NE:
		return m.push(!equal(a, b))
	}

	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return m.push(stringCompare(op, as, bs))
		}
	}

	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum && bNum {
		return m.push(floatCompare(op, af, bf))
	}

	return fmt.Errorf("unsupported operands for %s: %T and %T", op, a, b)
}

func floatCompare(op bytecode.Opcode, a, b float64) bool {
	switch op {
	case bytecode.OP_LT:
		return a < b
	case bytecode.OP_LE:
		return a <= b
	case bytecode.OP_GT:
		return a > b
	case bytecode.OP_GE:
		return a >= b
	}
	return false
}

func stringCompare(op bytecode.Opcode, a, b string) bool {
	switch op {
	case bytecode.OP_LT:
		return a < b
	case bytecode.OP_LE:
		return a <= b
	case bytecode.OP_GT:
		return a > b
	case bytecode.OP_GE:
		return a >= b
	}
	return false
}

func equal(a, b any) bool {
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum && bNum {
		return af == bf
	}
	return a == b
}

func negate(v any) (any, error) {
	if i, ok := asInt(v); ok {
		return -i, nil
	}
	if f, ok := v.(float64); ok {
		return -f, nil
	}
	return nil, fmt.Errorf("unsupported operand for negation: %T", v)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint:
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	if f, ok := v.(float64); ok {
		return f, true
	}
	if f, ok := v.(float32); ok {
		return float64(f), true
	}
	return 0, false
}

// Truthy reports the truth value of v: nil, false, numeric zero and the
// empty string are false, everything else is true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if i, ok := asInt(v); ok {
		return i != 0
	}
	if f, ok := v.(float64); ok {
		return f != 0
	}
	return true
}
