package vm

import (
	"strings"
	"testing"

	"github.com/funvibe/fuse/bytecode"
)

// incFn builds a + 1 from locals and constants only
func incFn() *Function {
	seq := bytecode.New("inc", "a")
	seq.Emit(bytecode.OP_GET_LOCAL, 0)
	seq.EmitConst(1)
	seq.EmitOp(bytecode.OP_ADD)
	seq.EmitOp(bytecode.OP_RETURN)
	return &Function{Seq: seq}
}

// doubleFn builds a * 2
func doubleFn() *Function {
	seq := bytecode.New("double", "a")
	seq.Emit(bytecode.OP_GET_LOCAL, 0)
	seq.EmitConst(2)
	seq.EmitOp(bytecode.OP_MUL)
	seq.EmitOp(bytecode.OP_RETURN)
	return &Function{Seq: seq}
}

// squareFn reads its parameter twice, so its value cannot simply flow through
// the stack when spliced behind another stage.
func squareFn() *Function {
	seq := bytecode.New("square", "a")
	seq.Emit(bytecode.OP_GET_LOCAL, 0)
	seq.Emit(bytecode.OP_GET_LOCAL, 0)
	seq.EmitOp(bytecode.OP_MUL)
	seq.EmitOp(bytecode.OP_RETURN)
	return &Function{Seq: seq}
}

func mustCall(t *testing.T, fn Callable, args ...any) any {
	t.Helper()
	got, err := fn.Call(args...)
	if err != nil {
		t.Fatalf("%s(%v): %v", fn.FuncName(), args, err)
	}
	return got
}

func assertInt(t *testing.T, got any, want int) {
	t.Helper()
	n, ok := got.(int)
	if !ok {
		t.Fatalf("got %T (%v), want int", got, got)
	}
	if n != want {
		t.Errorf("got %d, want %d", n, want)
	}
}

func TestRunArithmetic(t *testing.T) {
	assertInt(t, mustCall(t, incFn(), 41), 42)
	assertInt(t, mustCall(t, doubleFn(), 21), 42)
	assertInt(t, mustCall(t, squareFn(), 7), 49)
}

func TestRunFloatPromotion(t *testing.T) {
	got := mustCall(t, incFn(), 1.5)
	f, ok := got.(float64)
	if !ok || f != 2.5 {
		t.Errorf("inc(1.5) = %v (%T), want 2.5", got, got)
	}
}

func TestRunStringConcat(t *testing.T) {
	seq := bytecode.New("greet", "a")
	seq.Emit(bytecode.OP_GET_LOCAL, 0)
	seq.EmitConst("!")
	seq.EmitOp(bytecode.OP_ADD)
	seq.EmitOp(bytecode.OP_RETURN)
	fn := &Function{Seq: seq}

	got := mustCall(t, fn, "hi")
	if got != "hi!" {
		t.Errorf("greet(hi) = %v, want hi!", got)
	}
}

func TestRunComparisonAndNot(t *testing.T) {
	seq := bytecode.New("small", "a")
	seq.Emit(bytecode.OP_GET_LOCAL, 0)
	seq.EmitConst(10)
	seq.EmitOp(bytecode.OP_LT)
	seq.EmitOp(bytecode.OP_NOT)
	seq.EmitOp(bytecode.OP_RETURN)
	fn := &Function{Seq: seq}

	if got := mustCall(t, fn, 3); got != false {
		t.Errorf("small(3) = %v, want false", got)
	}
	if got := mustCall(t, fn, 30); got != true {
		t.Errorf("small(30) = %v, want true", got)
	}
}

func TestRunNumericEquality(t *testing.T) {
	seq := bytecode.New("isone", "a")
	seq.Emit(bytecode.OP_GET_LOCAL, 0)
	seq.EmitConst(1)
	seq.EmitOp(bytecode.OP_EQ)
	seq.EmitOp(bytecode.OP_RETURN)
	fn := &Function{Seq: seq}

	if got := mustCall(t, fn, 1.0); got != true {
		t.Errorf("isone(1.0) = %v, want true across numeric types", got)
	}
}

func TestRunNegate(t *testing.T) {
	seq := bytecode.New("neg", "a")
	seq.Emit(bytecode.OP_GET_LOCAL, 0)
	seq.EmitOp(bytecode.OP_NEG)
	seq.EmitOp(bytecode.OP_RETURN)
	fn := &Function{Seq: seq}

	assertInt(t, mustCall(t, fn, 5), -5)
}

func TestRunJumpSkipsDeadCode(t *testing.T) {
	seq := bytecode.New("jumpy", "a")
	seq.Emit(bytecode.OP_GET_LOCAL, 0) // 0
	seq.Emit(bytecode.OP_JUMP, 3)      // 1
	seq.EmitConst(99)                  // 2, skipped
	seq.EmitOp(bytecode.OP_RETURN)     // 3
	fn := &Function{Seq: seq}

	assertInt(t, mustCall(t, fn, 7), 7)
}

func TestRunDefaults(t *testing.T) {
	fn := incFn()
	fn.Defaults = []any{9}

	assertInt(t, mustCall(t, fn), 10)
	assertInt(t, mustCall(t, fn, 1), 2)
}

func TestRunArityErrors(t *testing.T) {
	fn := incFn()

	if _, err := fn.Call(); err == nil {
		t.Error("missing required argument accepted")
	}
	if _, err := fn.Call(1, 2); err == nil {
		t.Error("extra argument accepted")
	}
}

func TestRunDivisionByZero(t *testing.T) {
	seq := bytecode.New("div", "a")
	seq.Emit(bytecode.OP_GET_LOCAL, 0)
	seq.EmitConst(0)
	seq.EmitOp(bytecode.OP_DIV)
	seq.EmitOp(bytecode.OP_RETURN)
	fn := &Function{Seq: seq}

	_, err := fn.Call(1)
	if err == nil || !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("div(1) error = %v, want division by zero", err)
	}
}

func TestRunFallsOffEnd(t *testing.T) {
	seq := bytecode.New("noreturn", "a")
	seq.Emit(bytecode.OP_GET_LOCAL, 0)
	fn := &Function{Seq: seq}

	if _, err := fn.Call(1); err == nil {
		t.Error("sequence without return accepted")
	}
}

func TestRunLocalSlots(t *testing.T) {
	// tmp = a + 1; tmp * tmp
	seq := bytecode.New("sq1", "a")
	tmp := seq.AddLocal()
	seq.Emit(bytecode.OP_GET_LOCAL, 0)
	seq.EmitConst(1)
	seq.EmitOp(bytecode.OP_ADD)
	seq.Emit(bytecode.OP_SET_LOCAL, tmp)
	seq.Emit(bytecode.OP_GET_LOCAL, tmp)
	seq.Emit(bytecode.OP_GET_LOCAL, tmp)
	seq.EmitOp(bytecode.OP_MUL)
	seq.EmitOp(bytecode.OP_RETURN)
	fn := &Function{Seq: seq}

	assertInt(t, mustCall(t, fn, 3), 16)
}

func TestRunGlobals(t *testing.T) {
	seq := bytecode.New("offset", "a")
	seq.Emit(bytecode.OP_GET_LOCAL, 0)
	seq.Emit(bytecode.OP_GET_GLOBAL, seq.InternName("base"))
	seq.EmitOp(bytecode.OP_ADD)
	seq.EmitOp(bytecode.OP_RETURN)
	fn := &Function{Seq: seq, Globals: map[string]any{"base": 100}}

	assertInt(t, mustCall(t, fn, 1), 101)

	fn.Globals = nil
	if _, err := fn.Call(1); err == nil {
		t.Error("undefined binding accepted")
	}
}

func TestRunFreeCells(t *testing.T) {
	cell := &bytecode.Cell{Value: 5}

	seq := bytecode.New("plusc", "a")
	seq.Emit(bytecode.OP_GET_LOCAL, 0)
	seq.Emit(bytecode.OP_GET_FREE, 0)
	seq.EmitOp(bytecode.OP_ADD)
	seq.EmitOp(bytecode.OP_RETURN)
	seq.Free = []*bytecode.Cell{cell}
	fn := &Function{Seq: seq}

	assertInt(t, mustCall(t, fn, 1), 6)

	cell.Value = 20
	assertInt(t, mustCall(t, fn, 1), 21)
}

func TestRunCallBuiltin(t *testing.T) {
	triple := NewBuiltin("triple", func(arg any) any { return arg.(int) * 3 })

	seq := bytecode.New("callit", "a")
	seq.Emit(bytecode.OP_GET_LOCAL, 0)
	seq.EmitConst(triple)
	seq.EmitOp(bytecode.OP_ROT2)
	seq.Emit(bytecode.OP_CALL, 1)
	seq.EmitOp(bytecode.OP_RETURN)
	fn := &Function{Seq: seq}

	assertInt(t, mustCall(t, fn, 4), 12)
}

func TestTruthy(t *testing.T) {
	falsy := []any{nil, false, 0, 0.0, ""}
	for _, v := range falsy {
		if Truthy(v) {
			t.Errorf("Truthy(%v) = true, want false", v)
		}
	}
	truthy := []any{true, 1, -1, 0.5, "x", []any{}}
	for _, v := range truthy {
		if !Truthy(v) {
			t.Errorf("Truthy(%v) = false, want true", v)
		}
	}
}

func TestAsCallableShapes(t *testing.T) {
	if _, err := AsCallable(incFn()); err != nil {
		t.Errorf("Callable rejected: %v", err)
	}
	if _, err := AsCallable(func(v any) any { return v }); err != nil {
		t.Errorf("func(any) any rejected: %v", err)
	}
	if _, err := AsCallable(func(v any) (any, error) { return v, nil }); err != nil {
		t.Errorf("func(any) (any, error) rejected: %v", err)
	}

	pred, err := AsCallable(func(v any) bool { return v.(int) > 0 })
	if err != nil {
		t.Fatalf("func(any) bool rejected: %v", err)
	}
	if got := mustCall(t, pred, 1); got != true {
		t.Errorf("wrapped predicate returned %v, want true", got)
	}

	if _, err := AsCallable(42); err == nil {
		t.Error("non-callable accepted")
	}
}

func TestBuiltinArity(t *testing.T) {
	b := NewBuiltin("one", func(arg any) any { return arg })
	if _, err := b.Call(1, 2); err == nil {
		t.Error("builtin accepted two arguments")
	}
	if _, err := b.Call(); err == nil {
		t.Error("builtin accepted zero arguments")
	}
}
