package bytecode

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	ansiCyan  = "\x1b[36m"
	ansiReset = "\x1b[0m"
)

// Disassemble returns a human-readable representation of the sequence
func Disassemble(seq *Sequence) string {
	var sb strings.Builder
	disassemble(&sb, seq, false)
	return sb.String()
}

// Fdisassemble writes a human-readable representation of the sequence to w.
// Opcode mnemonics are colorized when w is a terminal.
func Fdisassemble(w io.Writer, seq *Sequence) error {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	var sb strings.Builder
	disassemble(&sb, seq, color)
	_, err := io.WriteString(w, sb.String())
	return err
}

func disassemble(sb *strings.Builder, seq *Sequence, color bool) {
	fmt.Fprintf(sb, "== %s (%s) ==\n", seq.Name, strings.Join(seq.Params, ", "))

	for offset, in := range seq.Instrs {
		fmt.Fprintf(sb, "%04d ", offset)

		mnemonic := in.Op.String()
		if color {
			mnemonic = ansiCyan + mnemonic + ansiReset
		}

		switch in.Op {
		case OP_CONST:
			constantInstruction(sb, mnemonic, seq, in.Arg)
		case OP_GET_LOCAL, OP_SET_LOCAL:
			slotInstruction(sb, mnemonic, seq, in.Arg)
		case OP_GET_GLOBAL, OP_SET_GLOBAL, OP_DEL_GLOBAL, OP_GET_NAME, OP_SET_NAME, OP_DEL_NAME:
			nameInstruction(sb, mnemonic, seq, in.Arg)
		case OP_GET_FREE, OP_SET_FREE, OP_DEL_FREE:
			fmt.Fprintf(sb, "%-16s %4d\n", mnemonic, in.Arg)
		case OP_JUMP:
			fmt.Fprintf(sb, "%-16s -> %04d\n", mnemonic, in.Arg)
		case OP_CALL:
			fmt.Fprintf(sb, "%-16s %4d\n", mnemonic, in.Arg)
		default:
			fmt.Fprintf(sb, "%s\n", mnemonic)
		}
	}
}

func constantInstruction(sb *strings.Builder, mnemonic string, seq *Sequence, idx int) {
	if idx < len(seq.Consts) {
		fmt.Fprintf(sb, "%-16s %4d '%s'\n", mnemonic, idx, inspect(seq.Consts[idx]))
	} else {
		fmt.Fprintf(sb, "%-16s %4d (invalid)\n", mnemonic, idx)
	}
}

func slotInstruction(sb *strings.Builder, mnemonic string, seq *Sequence, slot int) {
	if slot < len(seq.Params) {
		fmt.Fprintf(sb, "%-16s %4d (%s)\n", mnemonic, slot, seq.Params[slot])
	} else {
		fmt.Fprintf(sb, "%-16s %4d\n", mnemonic, slot)
	}
}

func nameInstruction(sb *strings.Builder, mnemonic string, seq *Sequence, idx int) {
	if idx < len(seq.Names) {
		fmt.Fprintf(sb, "%-16s %4d '%s'\n", mnemonic, idx, seq.Names[idx])
	} else {
		fmt.Fprintf(sb, "%-16s %4d (invalid)\n", mnemonic, idx)
	}
}

// inspect formats a constant for the listing. Callables stored as constants
// print as <fn name> instead of their Go representation.
func inspect(v any) string {
	type named interface{ FuncName() string }
	if fn, ok := v.(named); ok {
		return fmt.Sprintf("<fn %s>", fn.FuncName())
	}
	return fmt.Sprintf("%v", v)
}
