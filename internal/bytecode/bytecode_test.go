package bytecode

import "testing"

func TestInstructionRoundTrip(t *testing.T) {
	instr := Encode(ADD_INT, 0, false, true, false, 3, 7, 9)
	if instr.Op() != ADD_INT {
		t.Fatalf("got op %s", instr.Op())
	}
	if instr.A() != 3 || instr.B() != 7 || instr.C() != 9 {
		t.Fatalf("got A=%d B=%d C=%d", instr.A(), instr.B(), instr.C())
	}
	if instr.IsConstA() || !instr.IsConstB() || instr.IsConstC() {
		t.Fatalf("const flags wrong: %v %v %v", instr.IsConstA(), instr.IsConstB(), instr.IsConstC())
	}
}

func TestJumpTargetWide(t *testing.T) {
	instr := EncodeJump(JUMP_IF_FALSE, 2, false, 70000)
	if instr.JumpTarget() != 70000 {
		t.Fatalf("got target %d, want 70000", instr.JumpTarget())
	}
	patched := instr.WithJumpTarget(80000)
	if patched.JumpTarget() != 80000 {
		t.Fatalf("got patched target %d", patched.JumpTarget())
	}
	if patched.A() != 2 {
		t.Fatalf("patch must preserve condition register, got %d", patched.A())
	}
}

func TestConstantPoolDedup(t *testing.T) {
	var c Constants
	i1 := c.AddInt(42)
	i2 := c.AddInt(42)
	if i1 != i2 {
		t.Fatalf("expected constant folding to dedup identical ints")
	}
	if len(c.Ints) != 1 {
		t.Fatalf("expected one int constant, got %d", len(c.Ints))
	}
}

func TestJumpInBounds(t *testing.T) {
	chunk := NewChunk("main")
	target := chunk.Emit(Encode(NOOP, 0, false, false, false, 0, 0, 0), SourceSpan{})
	jumpIdx := chunk.Emit(EncodeJump(JUMP, 0, false, 0), SourceSpan{})
	chunk.Patch(jumpIdx, chunk.Code[jumpIdx].WithJumpTarget(uint32(target)))
	if int(chunk.Code[jumpIdx].JumpTarget()) >= chunk.Len() {
		t.Fatalf("jump target out of bounds")
	}
}
