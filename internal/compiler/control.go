package compiler

import (
	"github.com/dust-lang/dust/internal/bytecode"
	"github.com/dust-lang/dust/internal/token"
	"github.com/dust-lang/dust/internal/types"
)

// ifExpr compiles `if cond { block } [else { block }]` as an
// expression: when both arms produce a value of the same type, the
// result is usable as a block's tail value; otherwise it is None and
// the construct is only valid as a statement.
func (c *Compiler) ifExpr() desc {
	c.advance() // 'if'
	cond := c.expression(precOr)
	jumps := c.toCondition(cond)

	c.patchJumpsTo(jumps.trueJumps, c.chunk.Len())
	thenResult := c.compileBlock()
	thenDead := c.fn.deadCode

	var elseResult *desc
	var endJump int
	hadElse := false
	elseDead := false
	if c.check(token.ELSE) {
		hadElse = true
		endJump = c.emit(bytecode.EncodeJump(bytecode.JUMP, 0, false, 0))
		c.patchJumpsTo(jumps.falseJumps, c.chunk.Len())
		c.advance() // 'else'
		if c.check(token.IF) {
			d := c.ifExpr()
			elseResult = &d
		} else {
			elseResult = c.compileBlock()
		}
		elseDead = c.fn.deadCode
		c.patchJumpsTo([]int{endJump}, c.chunk.Len())
	} else {
		c.patchJumpsTo(jumps.falseJumps, c.chunk.Len())
	}

	// Both arms must be unconditionally dead (return/break) for the
	// code after the if to be unreachable; an if with no else can
	// always fall through its false path.
	c.fn.deadCode = hadElse && thenDead && elseDead

	if hadElse && thenResult != nil && elseResult != nil && thenResult.typ.Equal(elseResult.typ) {
		if thenResult.reg != elseResult.reg {
			c.emitMove(thenResult.reg, elseResult.reg)
		}
		return regDesc(thenResult.reg, thenResult.typ)
	}
	return desc{kind: descImmediateBool, typ: types.None}
}

// blockExpr compiles a bare `{ ... }` used directly as a value
// expression, e.g. `let a = { 40 + 2 };` — the same tail-expression
// mechanism compileBlock already gives function bodies and if/else
// arms, reached here from primary() instead of from a function decl.
func (c *Compiler) blockExpr() desc {
	result := c.compileBlock()
	if result == nil {
		return desc{kind: descImmediateBool, typ: types.None}
	}
	return *result
}

// whileStatement compiles `while cond { block }`. The condition
// re-evaluates at the top of each iteration via a backward JUMP;
// BREAK inside the body patches forward to just past the loop.
func (c *Compiler) whileStatement() {
	c.advance() // 'while'
	start := c.chunk.Len()
	cond := c.expression(precOr)
	jumps := c.toCondition(cond)
	c.patchJumpsTo(jumps.trueJumps, c.chunk.Len())

	loop := c.fn.pushLoop(start)
	c.compileBlock()
	c.emit(bytecode.EncodeJump(bytecode.JUMP, 0, false, uint32(start)))

	end := c.chunk.Len()
	c.patchJumpsTo(jumps.falseJumps, end)
	c.patchJumpsTo(loop.breakJumps, end)
	c.fn.popLoop()
	// The condition may be false on entry, so code after the loop is
	// always reachable regardless of how the body ends.
	c.fn.deadCode = false
}

// loopStatement compiles `loop { block }`, an unconditional loop that
// can only be exited via BREAK or RETURN.
func (c *Compiler) loopStatement() {
	c.advance() // 'loop'
	start := c.chunk.Len()
	loop := c.fn.pushLoop(start)
	c.compileBlock()
	c.emit(bytecode.EncodeJump(bytecode.JUMP, 0, false, uint32(start)))

	end := c.chunk.Len()
	hadBreak := len(loop.breakJumps) > 0
	c.patchJumpsTo(loop.breakJumps, end)
	c.fn.popLoop()
	// An unconditional loop with no break never falls through.
	c.fn.deadCode = !hadBreak
}

func (c *Compiler) breakStatement() {
	span := c.cur.Span
	c.advance() // 'break'
	loop := c.fn.currentLoop()
	if loop == nil {
		c.errorAt(BreakOutsideLoop, span, "break used outside of a loop")
		c.consumeStatementEnd()
		return
	}
	// break compiles directly to a JUMP patched once the loop's end is
	// known — there is no dedicated runtime opcode for it.
	idx := c.emit(bytecode.EncodeJump(bytecode.JUMP, 0, false, 0))
	loop.breakJumps = append(loop.breakJumps, idx)
	c.consumeStatementEnd()
	c.fn.deadCode = true
}

func (c *Compiler) returnStatement() {
	c.advance() // 'return'
	if c.check(token.SEMICOLON) || c.check(token.NEWLINE) || c.check(token.RBRACE) {
		c.emit(bytecode.Encode(bytecode.RETURN, 1, false, false, false, 0, 0, 0))
		c.consumeStatementEnd()
		c.fn.deadCode = true
		return
	}
	value := c.expression(precOr)
	if c.isTailCall(value) {
		c.rewriteAsTailCall(value)
		c.consumeStatementEnd()
		c.fn.deadCode = true
		return
	}
	r := c.toRegister(value)
	c.emit(bytecode.Encode(bytecode.RETURN, 0, false, false, false, r, 0, 0))
	c.consumeStatementEnd()
	c.fn.deadCode = true
}

// isTailCall reports whether value is exactly a call with nothing
// emitted after it — `return f(...);` rather than `return 1 + f(...);`
// — the only shape a CALL can be safely replaced with a frame-reusing
// TAIL_CALL in.
func (c *Compiler) isTailCall(value desc) bool {
	return value.isCall && value.callInstrIdx == c.chunk.Len()-1
}

// rewriteAsTailCall turns the CALL instruction value came from into a
// TAIL_CALL in place: same callee and argument base, no destination
// register, since the call's result becomes this frame's own return
// value instead of being written down for more code to use.
func (c *Compiler) rewriteAsTailCall(value desc) {
	instr := c.chunk.Code[value.callInstrIdx]
	c.patch(value.callInstrIdx, bytecode.Encode(bytecode.TAIL_CALL, instr.Variant(), false, false, false, instr.A(), instr.B(), 0))
}
