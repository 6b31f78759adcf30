package compiler

import (
	"github.com/dust-lang/dust/internal/bytecode"
	"github.com/dust-lang/dust/internal/token"
	"github.com/dust-lang/dust/internal/types"
)

// compileTopLevelStatement dispatches a top-level construct: either a
// function declaration (compiled into its own chunk, already
// allocated by prescanFunctions) or an ordinary statement executed as
// part of the program's entry point.
func (c *Compiler) compileTopLevelStatement() {
	switch c.cur.Kind {
	case token.FN:
		c.compileFunctionDecl()
	case token.MOD, token.PUB, token.USE:
		c.errorAt(NotYetImplemented, c.cur.Span, "%q is reserved for a future module system", c.cur.Lexeme)
		for !c.check(token.NEWLINE) && !c.check(token.SEMICOLON) && !c.check(token.EOF) {
			c.advance()
		}
		c.consumeStatementEnd()
	default:
		c.compileStatement()
	}
}

func (c *Compiler) compileFunctionDecl() {
	c.advance() // 'fn'
	name := c.expect(token.IDENT, "after fn")
	g, ok := c.globals[name.Lexeme]
	if !ok {
		// prescanFunctions always registers every top-level fn; this
		// only happens if the source changed between passes, which it
		// cannot within one Compile call.
		g = &globalFn{protoIndex: len(c.chunk.Prototypes)}
		c.chunk.Prototypes = append(c.chunk.Prototypes, bytecode.NewChunk(name.Lexeme))
	}
	proto := c.chunk.Prototypes[g.protoIndex]

	outer := c.fn
	outerChunk := c.chunk
	c.fn = newFuncState(outer)
	c.chunk = proto
	c.fn.pushScope()

	c.expect(token.LPAREN, "after function name")
	var paramTypes []types.Type
	seen := make(map[string]bool)
	for !c.check(token.RPAREN) && !c.check(token.EOF) {
		pname := c.expect(token.IDENT, "as parameter name")
		if seen[pname.Lexeme] {
			c.errorAt(DuplicateParameter, pname.Span, "duplicate parameter %q", pname.Lexeme)
		}
		seen[pname.Lexeme] = true
		c.expect(token.COLON, "after parameter name")
		ptype := c.parseTypeName()
		reg := c.fn.allocReg()
		c.fn.declareLocal(pname.Lexeme, reg, ptype, false)
		paramTypes = append(paramTypes, ptype)
		if !c.match(token.COMMA) {
			break
		}
	}
	c.expect(token.RPAREN, "to close parameter list")

	retType := types.Type(types.None)
	if c.match(token.ARROW) {
		retType = c.parseTypeName()
	}
	proto.ParamTypes = paramTypes
	proto.ReturnType = retType
	g.sig = types.Function{Params: paramTypes, Return: retType}

	result := c.compileBlock()
	if result != nil && !result.typ.Equal(retType) {
		c.errorAt(TypeMismatch, c.cur.Span, "function %s returns %s, declared %s", name.Lexeme, result.typ, retType)
	}
	if !c.fn.deadCode {
		switch {
		case result != nil && !retType.Equal(types.None) && c.isTailCall(*result):
			c.rewriteAsTailCall(*result)
		case result != nil && !retType.Equal(types.None):
			r := c.toRegister(*result)
			c.emit(bytecode.Encode(bytecode.RETURN, 0, false, false, false, r, 0, 0))
		default:
			c.emit(bytecode.Encode(bytecode.RETURN, 1, false, false, false, 0, 0, 0))
		}
	}
	proto.RegisterCount = int(c.fn.maxReg)

	c.fn.popScope()
	c.fn = outer
	c.chunk = outerChunk
}

// compileBlock compiles `{ stmt* [tailExpr] }`. If the last thing in
// the block is an expression statement with no trailing semicolon, the
// block's value is that expression's descriptor.
func (c *Compiler) compileBlock() *desc {
	c.expect(token.LBRACE, "to start block")
	c.fn.pushScope()
	savedTop := c.fn.nextReg
	c.fn.deadCode = false

	var tail *desc
	for {
		c.skipNewlines()
		if c.check(token.RBRACE) || c.check(token.EOF) {
			break
		}
		if c.fn.deadCode {
			// Code after an unconditional return/break in this block is
			// unreachable; stop compiling the block's remaining statements.
			depth := 0
			for !c.check(token.EOF) && (depth > 0 || !c.check(token.RBRACE)) {
				if c.check(token.LBRACE) {
					depth++
				} else if c.check(token.RBRACE) {
					depth--
				}
				c.advance()
			}
			break
		}
		if d, isTail := c.compileStatementOrTail(); isTail {
			tail = d
			c.skipNewlines()
			break
		}
	}
	c.expect(token.RBRACE, "to close block")

	if tail != nil {
		// Keep the tail value alive across the scope pop by moving it
		// down to the register the block started with, if it isn't
		// already there.
		r := c.toRegister(*tail)
		if r != savedTop {
			c.emitMove(savedTop, r)
			r = savedTop
		}
		c.fn.popScope()
		c.fn.nextReg = savedTop + 1
		if c.fn.nextReg > c.fn.maxReg {
			c.fn.maxReg = c.fn.nextReg
		}
		result := regDesc(r, tail.typ)
		result.isCall, result.callInstrIdx = tail.isCall, tail.callInstrIdx
		return &result
	}
	c.fn.popScope()
	return nil
}

// compileStatementOrTail compiles one statement. If it turns out to
// be a bare expression statement immediately followed by '}' (no
// semicolon), it is treated as the block's tail value instead of
// being executed for its side effects alone.
func (c *Compiler) compileStatementOrTail() (*desc, bool) {
	switch c.cur.Kind {
	case token.LET:
		c.letStatement()
		return nil, false
	case token.IF:
		d := c.ifExpr()
		if c.check(token.RBRACE) {
			return &d, true
		}
		return nil, false
	case token.WHILE:
		c.whileStatement()
		return nil, false
	case token.LOOP:
		c.loopStatement()
		return nil, false
	case token.BREAK:
		c.breakStatement()
		return nil, false
	case token.RETURN:
		c.returnStatement()
		return nil, false
	case token.LBRACE:
		c.compileBlock()
		return nil, false
	default:
		return c.expressionStatement()
	}
}

func (c *Compiler) compileStatement() {
	_, _ = c.compileStatementOrTail()
}

func (c *Compiler) letStatement() {
	c.advance() // 'let'
	mutable := c.match(token.MUT)
	name := c.expect(token.IDENT, "after let")
	var declared types.Type
	if c.match(token.COLON) {
		declared = c.parseTypeName()
	}
	c.expect(token.ASSIGN, "in let binding")
	value := c.expression(precOr)
	if declared != nil && !declared.Equal(value.typ) {
		c.errorAt(TypeMismatch, name.Span, "let %s: declared %s, found %s", name.Lexeme, declared, value.typ)
	}
	r := c.toOwnedRegister(value)
	c.fn.declareLocal(name.Lexeme, r, value.typ, mutable)
	c.consumeStatementEnd()
}

// expressionStatement compiles a bare expression. If it is a simple
// assignment target followed by '=' or a compound-assign operator, it
// compiles an assignment instead.
func (c *Compiler) expressionStatement() (*desc, bool) {
	if c.check(token.IDENT) && c.tryAssignment() {
		return nil, false
	}
	d := c.expression(precOr)
	if c.check(token.RBRACE) {
		return &d, true
	}
	c.consumeStatementEnd()
	return nil, false
}

// tryAssignment handles `name = expr`, `name += expr`, etc. Returns
// false without consuming anything if the identifier isn't followed
// by an assignment operator, so the caller falls back to ordinary
// expression parsing starting at the same identifier.
func (c *Compiler) tryAssignment() bool {
	name := c.cur
	local, exists := c.fn.resolveLocal(name.Lexeme)

	switch c.peek.Kind {
	case token.ASSIGN:
		c.advance()
		c.advance()
		if exists && !local.mutable {
			c.errorAt(InvalidAssignmentTarget, name.Span, "%s is not declared mut", name.Lexeme)
		}
		if !exists {
			c.errorAt(UndefinedIdentifier, name.Span, "undefined identifier %q", name.Lexeme)
		}
		value := c.expression(precOr)
		if exists && !local.typ.Equal(value.typ) {
			c.errorAt(TypeMismatch, name.Span, "cannot assign %s to %s", value.typ, local.typ)
		}
		r := c.toRegister(value)
		if exists && r != local.reg {
			c.emitMove(local.reg, r)
		}
		c.consumeStatementEnd()
		return true
	case token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.ASTERISK_ASSIGN, token.SLASH_ASSIGN:
		opTok := compoundOpToken(c.peek.Kind)
		c.advance()
		c.advance()
		if exists && !local.mutable {
			c.errorAt(InvalidAssignmentTarget, name.Span, "%s is not declared mut", name.Lexeme)
		}
		rhs := c.expression(precOr)
		left := regDesc(local.reg, local.typ)
		result := c.binaryOp(opTok, left, rhs)
		r := c.toRegister(result)
		if r != local.reg {
			c.emitMove(local.reg, r)
		}
		c.consumeStatementEnd()
		return true
	default:
		return false
	}
}

func compoundOpToken(k token.Kind) token.Token {
	switch k {
	case token.PLUS_ASSIGN:
		return token.Token{Kind: token.PLUS, Lexeme: "+"}
	case token.MINUS_ASSIGN:
		return token.Token{Kind: token.MINUS, Lexeme: "-"}
	case token.ASTERISK_ASSIGN:
		return token.Token{Kind: token.ASTERISK, Lexeme: "*"}
	case token.SLASH_ASSIGN:
		return token.Token{Kind: token.SLASH, Lexeme: "/"}
	default:
		return token.Token{}
	}
}

func (c *Compiler) consumeStatementEnd() {
	if c.check(token.SEMICOLON) || c.check(token.NEWLINE) {
		c.advance()
	}
}
