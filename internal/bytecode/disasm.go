package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders a chunk and its prototypes in a human-readable
// "offset | line  OPCODE operands" form, one line per instruction
// word — a fixed 64-bit word per line rather than a variable-width
// byte stream.
func Disassemble(c *Chunk, name string) string {
	var sb strings.Builder
	disassembleChunk(&sb, c, name)
	return sb.String()
}

func disassembleChunk(sb *strings.Builder, c *Chunk, name string) {
	fmt.Fprintf(sb, "== %s ==\n", name)
	for offset, instr := range c.Code {
		line := 0
		if offset < len(c.SourceMap) {
			line = c.SourceMap[offset].Line
		}
		if offset > 0 && offset < len(c.SourceMap) && c.SourceMap[offset].Line == c.SourceMap[offset-1].Line {
			fmt.Fprintf(sb, "%04d    | ", offset)
		} else {
			fmt.Fprintf(sb, "%04d %4d ", offset, line)
		}
		sb.WriteString(instrString(instr))
		sb.WriteByte('\n')
	}
	for i, proto := range c.Prototypes {
		sb.WriteByte('\n')
		disassembleChunk(sb, proto, fmt.Sprintf("%s.proto[%d]", name, i))
	}
}

func operand(isConst bool, v uint16) string {
	if isConst {
		return fmt.Sprintf("K%d", v)
	}
	return fmt.Sprintf("R%d", v)
}

func instrString(instr Instruction) string {
	op := instr.Op()
	switch op {
	case JUMP:
		return fmt.Sprintf("%-14s -> %d", op, instr.JumpTarget())
	case JUMP_IF_FALSE, JUMP_IF_TRUE:
		return fmt.Sprintf("%-14s %s -> %d", op, operand(instr.IsConstA(), instr.A()), instr.JumpTarget())
	case LOAD_CONST:
		return fmt.Sprintf("%-14s R%d = %s", op, instr.A(), operand(true, instr.B()))
	case MOVE:
		return fmt.Sprintf("%-14s R%d = R%d", op, instr.A(), instr.B())
	case RETURN:
		if instr.Variant() == 1 {
			return fmt.Sprintf("%-14s (none)", op)
		}
		return fmt.Sprintf("%-14s %s", op, operand(instr.IsConstA(), instr.A()))
	case CALL:
		return fmt.Sprintf("%-14s dest=R%d callee=proto[%d] argbase=R%d argc=%d", op, instr.C(), instr.A(), instr.B(), instr.Variant())
	case TAIL_CALL:
		return fmt.Sprintf("%-14s callee=proto[%d] argbase=R%d argc=%d", op, instr.A(), instr.B(), instr.Variant())
	case CALL_NATIVE:
		return fmt.Sprintf("%-14s dest=R%d native=%d argbase=R%d argc=%d", op, instr.A(), instr.B(), instr.C(), instr.Variant())
	case LIST_NEW:
		return fmt.Sprintf("%-14s R%d = list(base=R%d, n=%d)", op, instr.A(), instr.B(), instr.Variant())
	case LIST_INDEX:
		return fmt.Sprintf("%-14s R%d = %s[%s]", op, instr.A(), operand(instr.IsConstB(), instr.B()), operand(instr.IsConstC(), instr.C()))
	case LIST_APPEND:
		return fmt.Sprintf("%-14s R%d = R%d ++ R%d", op, instr.A(), instr.B(), instr.C())
	case CAST:
		return fmt.Sprintf("%-14s R%d = (%d)R%d", op, instr.A(), instr.Variant(), instr.B())
	case NEG_INT, NEG_FLOAT, NOT:
		return fmt.Sprintf("%-14s R%d = op %s", op, instr.A(), operand(instr.IsConstB(), instr.B()))
	case NOOP:
		return op.String()
	default:
		return fmt.Sprintf("%-14s R%d = %s %s", op, instr.A(), operand(instr.IsConstB(), instr.B()), operand(instr.IsConstC(), instr.C()))
	}
}
