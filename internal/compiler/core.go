// Package compiler implements Dust's single-pass compiler: no
// persistent AST is built. Each expression/statement parselet emits
// bytecode directly into the enclosing function's chunk as it
// recognizes source, and returns a desc describing where its value
// ended up.
package compiler

import (
	"fmt"

	"github.com/dust-lang/dust/internal/bytecode"
	"github.com/dust-lang/dust/internal/lexer"
	"github.com/dust-lang/dust/internal/natives"
	"github.com/dust-lang/dust/internal/token"
	"github.com/dust-lang/dust/internal/types"
)

// globalFn is a top-level function's resolved signature and the slot
// it occupies in the main chunk's Prototypes, registered during the
// pre-scan pass so calls may reference functions declared later in
// the file: mutual recursion across top-level functions is permitted.
type globalFn struct {
	protoIndex int
	sig        types.Function
}

// Compiler turns one source file into a top-level Chunk plus any
// CompileErrors encountered. Diagnostics are accumulated rather than
// raised on the first failure, so a single Compile call reports every
// problem in the file.
type Compiler struct {
	lex       *lexer.Lexer
	cur, peek token.Token

	natives *natives.Table
	errors  []*CompileError

	fn    *funcState
	chunk *bytecode.Chunk

	globals map[string]*globalFn
}

// Compile compiles src against the given native table, returning the
// top-level chunk (always non-nil, even on error, so partial
// diagnostics can reference a consistent chunk) and any errors.
func Compile(src string, nativeTable *natives.Table) (*bytecode.Chunk, []*CompileError) {
	c := &Compiler{
		lex:     lexer.New(src),
		natives: nativeTable,
		globals: make(map[string]*globalFn),
		chunk:   bytecode.NewChunk("main"),
	}
	c.chunk.ReturnType = types.None
	c.fn = newFuncState(nil)
	c.advance()
	c.advance()

	c.prescanFunctions(src)

	c.fn.pushScope()
	for !c.check(token.EOF) {
		c.skipNewlines()
		if c.check(token.EOF) {
			break
		}
		c.compileTopLevelStatement()
		c.skipNewlines()
	}
	c.fn.popScope()

	c.chunk.RegisterCount = int(c.fn.maxReg)
	if !c.fn.deadCode {
		c.emit(bytecode.Encode(bytecode.RETURN, 1, false, false, false, 0, 0, 0))
	}
	return c.chunk, c.errors
}

// prescanFunctions runs an independent lexer pass over the whole file
// to register every top-level `fn name(params) -> ret { ... }`
// signature before the main pass compiles any bodies, so forward and
// mutually recursive calls resolve. It allocates each function's
// Chunk and Prototypes slot but does not compile bodies.
func (c *Compiler) prescanFunctions(src string) {
	pl := lexer.New(src)
	cur := pl.NextToken()
	for cur.Kind != token.EOF {
		if cur.Kind == token.FN {
			name := pl.NextToken()
			if name.Kind != token.IDENT {
				cur = pl.NextToken()
				continue
			}
			proto := bytecode.NewChunk(name.Lexeme)
			idx := len(c.chunk.Prototypes)
			c.chunk.Prototypes = append(c.chunk.Prototypes, proto)

			// Scan parameter and return types just enough to build a
			// signature; full parameter compilation happens in the
			// second pass when the body is actually compiled.
			t := pl.NextToken() // expect (
			sig := types.Function{}
			for t.Kind != token.RPAREN && t.Kind != token.EOF {
				t = pl.NextToken()
				if t.Kind == token.COLON {
					t = pl.NextToken()
					sig.Params = append(sig.Params, typeFromToken(t))
				}
			}
			t = pl.NextToken() // consume RPAREN, land on next
			if t.Kind == token.ARROW {
				t = pl.NextToken()
				sig.Return = typeFromToken(t)
			} else {
				sig.Return = types.None
			}
			proto.ParamTypes = sig.Params
			proto.ReturnType = sig.Return
			c.globals[name.Lexeme] = &globalFn{protoIndex: idx, sig: sig}
		}
		cur = pl.NextToken()
	}
}

func typeFromToken(t token.Token) types.Type {
	switch t.Lexeme {
	case "bool":
		return types.Bool
	case "byte":
		return types.Byte
	case "char":
		return types.Char
	case "float":
		return types.Float
	case "int":
		return types.Int
	case "str":
		return types.Str
	case "none":
		return types.None
	default:
		return types.None
	}
}

// advance shifts peek into cur and scans a fresh peek, reporting and
// skipping any ILLEGAL tokens the lexer hands back. Lexing never
// stops, so the compiler drains every diagnostic rather than
// aborting on the first one.
func (c *Compiler) advance() {
	c.cur = c.peek
	c.peek = c.lex.NextToken()
	for c.peek.Kind == token.ILLEGAL {
		c.errorAt(UnexpectedToken, c.peek.Span, "%v", c.peek.Literal)
		c.peek = c.lex.NextToken()
	}
}

func (c *Compiler) check(k token.Kind) bool { return c.cur.Kind == k }

func (c *Compiler) match(k token.Kind) bool {
	if c.check(k) {
		c.advance()
		return true
	}
	return false
}

func (c *Compiler) expect(k token.Kind, context string) token.Token {
	tok := c.cur
	if !c.check(k) {
		c.errorAt(UnexpectedToken, c.cur.Span, "expected %s %s, found %s", k, context, c.cur.Kind)
		return tok
	}
	c.advance()
	return tok
}

func (c *Compiler) skipNewlines() {
	for c.check(token.NEWLINE) || c.check(token.SEMICOLON) {
		c.advance()
	}
}

func (c *Compiler) errorAt(kind ErrorKind, span token.Span, format string, args ...any) {
	c.errors = append(c.errors, newErr(kind, span, format, args...))
}

func (c *Compiler) emit(instr bytecode.Instruction) int {
	return c.chunk.Emit(instr, bytecode.SourceSpan{Line: c.cur.Span.Line, Col: c.cur.Span.Col})
}

func (c *Compiler) patch(idx int, instr bytecode.Instruction) {
	c.chunk.Patch(idx, instr)
}

// patchJumpsTo patches every jump instruction index in list to target
// target, consuming the list.
func (c *Compiler) patchJumpsTo(list []int, target int) {
	for _, idx := range list {
		c.chunk.Code[idx] = c.chunk.Code[idx].WithJumpTarget(uint32(target))
	}
}

// toRegister forces d's value into a register, emitting LOAD_CONST or
// resolving a pending short-circuit jump list into a concrete 0/1 as
// needed. Expressions that are only ever consumed as registers (call
// arguments, list elements, return values, assignment RHS) funnel
// through here.
func (c *Compiler) toRegister(d desc) uint16 {
	switch d.kind {
	case descRegister:
		return d.reg
	case descImmediateBool:
		r := c.fn.allocReg()
		v := uint16(0)
		if d.boolVal {
			v = 1
		}
		c.emit(bytecode.Encode(bytecode.LOAD_CONST, uint8(bytecode.TBool), false, true, false, r, v, 0))
		return r
	case descConstInt:
		r := c.fn.allocReg()
		c.emit(bytecode.Encode(bytecode.LOAD_CONST, uint8(bytecode.TInt), false, false, false, r, d.constIdx, 0))
		return r
	case descConstFloat:
		r := c.fn.allocReg()
		c.emit(bytecode.Encode(bytecode.LOAD_CONST, uint8(bytecode.TFloat), false, false, false, r, d.constIdx, 0))
		return r
	case descConstStr:
		r := c.fn.allocReg()
		c.emit(bytecode.Encode(bytecode.LOAD_CONST, uint8(bytecode.TStr), false, false, false, r, d.constIdx, 0))
		return r
	case descConstChar:
		r := c.fn.allocReg()
		c.emit(bytecode.Encode(bytecode.LOAD_CONST, uint8(bytecode.TChar), false, false, false, r, d.constIdx, 0))
		return r
	case descConstByte:
		r := c.fn.allocReg()
		c.emit(bytecode.Encode(bytecode.LOAD_CONST, uint8(bytecode.TByte), false, false, false, r, d.constIdx, 0))
		return r
	case descJump:
		return c.materializeJump(d)
	case descGlobalRef, descNativeRef:
		c.errorAt(ExpectedExpression, c.cur.Span, "functions are not first-class values; call %s instead of referencing it", d.nativeName)
		return c.fn.allocReg()
	default:
		panic(fmt.Sprintf("unreachable desc kind %d", d.kind))
	}
}

// toOwnedRegister is like toRegister but guarantees the returned
// register belongs solely to the caller — used for `let` bindings, so
// `let y = x;` copies x's value into a fresh slot for y rather than
// having y silently alias x's register (toRegister's fast path
// returns an existing register as-is, which is correct for the
// transient uses in binaryOp/callExpr/listLiteral but would let a
// later `x = ...` corrupt y).
func (c *Compiler) toOwnedRegister(d desc) uint16 {
	r := c.toRegister(d)
	if d.kind != descRegister {
		return r
	}
	owned := c.fn.allocReg()
	c.emitMove(owned, r)
	return owned
}

// materializeJump resolves a pending comparison/logical desc into a
// concrete register holding true/false, for use sites that are not
// themselves an if/while condition (e.g. `let b = x > y;`).
func (c *Compiler) materializeJump(d desc) uint16 {
	r := c.fn.allocReg()
	trueTarget := c.chunk.Len()
	c.emit(bytecode.Encode(bytecode.LOAD_CONST, uint8(bytecode.TBool), false, true, false, r, 1, 0))
	skip := c.emit(bytecode.EncodeJump(bytecode.JUMP, 0, false, 0))
	falseTarget := c.chunk.Len()
	c.emit(bytecode.Encode(bytecode.LOAD_CONST, uint8(bytecode.TBool), false, true, false, r, 0, 0))
	c.patch(skip, c.chunk.Code[skip].WithJumpTarget(uint32(c.chunk.Len())))
	c.patchJumpsTo(d.trueJumps, trueTarget)
	c.patchJumpsTo(d.falseJumps, falseTarget)
	return r
}
