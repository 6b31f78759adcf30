package compiler

import (
	"github.com/dust-lang/dust/internal/bytecode"
	"github.com/dust-lang/dust/internal/token"
	"github.com/dust-lang/dust/internal/types"
)

// precedence levels, tightest-binds-highest. Assignment is handled at
// the statement level, not here.
type precedence int

const (
	precNone precedence = iota
	precOr              // ||
	precAnd             // &&
	precEquality        // == !=
	precComparison      // < <= > >=
	precAdditive        // + -
	precMultiplicative  // * / %
	precPow             // ^ (right-assoc)
	precAs              // as
	precUnary           // - !
	precCall            // ( [
	precPrimary
)

func precedenceOf(k token.Kind) precedence {
	switch k {
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.EQ, token.NOT_EQ:
		return precEquality
	case token.LT, token.LTE, token.GT, token.GTE:
		return precComparison
	case token.PLUS, token.MINUS, token.CONCAT:
		return precAdditive
	case token.ASTERISK, token.SLASH, token.PERCENT:
		return precMultiplicative
	case token.CARET:
		return precPow
	case token.AS:
		return precAs
	case token.LPAREN, token.LBRACKET:
		return precCall
	default:
		return precNone
	}
}

// expression parses and compiles one expression at or above minPrec,
// returning its descriptor. The Pratt loop IS the code generator —
// there's no separate pass.
func (c *Compiler) expression(minPrec precedence) desc {
	left := c.unary()

	for {
		prec := precedenceOf(c.cur.Kind)
		if prec < minPrec || prec == precNone {
			break
		}
		op := c.cur
		switch op.Kind {
		case token.AND:
			left = c.logicalAnd(left)
		case token.OR:
			left = c.logicalOr(left)
		case token.AS:
			c.advance()
			left = c.castExpr(left)
		case token.LPAREN:
			left = c.callExpr(left)
		case token.LBRACKET:
			left = c.indexExpr(left)
		default:
			c.advance()
			rightPrec := prec + 1
			if op.Kind == token.CARET {
				rightPrec = prec // right-associative
			}
			right := c.expression(rightPrec)
			left = c.binaryOp(op, left, right)
		}
	}
	return left
}

func (c *Compiler) unary() desc {
	switch c.cur.Kind {
	case token.MINUS:
		c.advance()
		operand := c.expression(precUnary)
		return c.negate(operand)
	case token.BANG:
		c.advance()
		operand := c.expression(precUnary)
		return c.logicalNot(operand)
	default:
		return c.primary()
	}
}

func (c *Compiler) negate(d desc) desc {
	switch {
	case d.kind == descConstInt:
		v := c.chunk.Constants.Ints[d.constIdx]
		return constIntDesc(c.chunk.Constants.AddInt(-v))
	case d.kind == descConstFloat:
		v := c.chunk.Constants.Floats[d.constIdx]
		return constFloatDesc(c.chunk.Constants.AddFloat(-v))
	}
	if !types.IsNumeric(d.typ) {
		c.errorAt(TypeMismatch, c.cur.Span, "unary '-' requires int or float, found %s", d.typ)
	}
	src := c.toRegister(d)
	dst := c.fn.allocReg()
	op := bytecode.NEG_INT
	if d.typ.Equal(types.Float) {
		op = bytecode.NEG_FLOAT
	}
	c.emit(bytecode.Encode(op, 0, false, false, false, dst, src, 0))
	return regDesc(dst, d.typ)
}

func (c *Compiler) logicalNot(d desc) desc {
	if d.kind == descImmediateBool {
		return boolDesc(!d.boolVal)
	}
	r := c.toRegister(d)
	dst := c.fn.allocReg()
	c.emit(bytecode.Encode(bytecode.NOT, 0, false, false, false, dst, r, 0))
	return regDesc(dst, types.Bool)
}

// primary compiles literals, identifiers, grouped expressions and
// list literals — the leaves of the expression grammar.
func (c *Compiler) primary() desc {
	tok := c.cur
	switch tok.Kind {
	case token.INT:
		c.advance()
		return constIntDesc(c.chunk.Constants.AddInt(tok.Literal.(int64)))
	case token.FLOAT:
		c.advance()
		return constFloatDesc(c.chunk.Constants.AddFloat(tok.Literal.(float64)))
	case token.STRING:
		c.advance()
		return constStrDesc(c.chunk.Constants.AddStr(tok.Literal.(string)))
	case token.CHAR:
		c.advance()
		return constCharDesc(c.chunk.Constants.AddChar(tok.Literal.(rune)))
	case token.BYTE_HEX:
		c.advance()
		return constByteDesc(c.chunk.Constants.AddByte(tok.Literal.(byte)))
	case token.TRUE:
		c.advance()
		return boolDesc(true)
	case token.FALSE:
		c.advance()
		return boolDesc(false)
	case token.LPAREN:
		c.advance()
		d := c.expression(precOr)
		c.expect(token.RPAREN, "to close grouped expression")
		return d
	case token.LBRACKET:
		return c.listLiteral()
	case token.LBRACE:
		return c.blockExpr()
	case token.IF:
		return c.ifExpr()
	case token.IDENT:
		return c.identifier()
	default:
		c.errorAt(ExpectedExpression, tok.Span, "expected expression, found %s", tok.Kind)
		c.advance()
		return boolDesc(false)
	}
}

func (c *Compiler) identifier() desc {
	name := c.cur.Lexeme
	span := c.cur.Span
	c.advance()

	if local, ok := c.fn.resolveLocal(name); ok {
		return regDesc(local.reg, local.typ)
	}
	if g, ok := c.globals[name]; ok {
		return desc{kind: descGlobalRef, constIdx: uint16(g.protoIndex), typ: g.sig}
	}
	if _, ok := c.natives.Lookup(name); ok {
		return desc{kind: descNativeRef, nativeName: name, typ: types.None}
	}
	c.errorAt(UndefinedIdentifier, span, "undefined identifier %q", name)
	return boolDesc(false)
}

func (c *Compiler) listLiteral() desc {
	c.expect(token.LBRACKET, "to start list literal")
	base := c.fn.nextReg
	var elemType types.Type
	count := 0
	for !c.check(token.RBRACKET) && !c.check(token.EOF) {
		elem := c.expression(precOr)
		r := c.toRegister(elem)
		if r != base+uint16(count) {
			c.emitMove(base+uint16(count), r)
		}
		if elemType == nil {
			elemType = elem.typ
		} else if !elemType.Equal(elem.typ) {
			c.errorAt(TypeMismatch, c.cur.Span, "list elements must share one type: %s vs %s", elemType, elem.typ)
		}
		count++
		if !c.match(token.COMMA) {
			break
		}
	}
	c.expect(token.RBRACKET, "to close list literal")
	if elemType == nil {
		elemType = types.None
	}
	c.fn.freeTo(base)
	dst := c.fn.allocReg()
	c.emit(bytecode.Encode(bytecode.LIST_NEW, uint8(count), false, false, false, dst, base, 0))
	return regDesc(dst, types.List{Elem: elemType})
}

func (c *Compiler) indexExpr(left desc) desc {
	c.advance() // consume '['
	list, ok := left.typ.(types.List)
	if !ok {
		c.errorAt(TypeMismatch, c.cur.Span, "cannot index non-list type %s", left.typ)
	}
	listReg := c.toRegister(left)
	idx := c.expression(precOr)
	if !idx.typ.Equal(types.Int) {
		c.errorAt(TypeMismatch, c.cur.Span, "list index must be int, found %s", idx.typ)
	}
	idxReg := c.toRegister(idx)
	c.expect(token.RBRACKET, "to close index expression")
	dst := c.fn.allocReg()
	c.emit(bytecode.Encode(bytecode.LIST_INDEX, 0, false, false, false, dst, listReg, idxReg))
	elemType := types.Type(types.None)
	if ok {
		elemType = list.Elem
	}
	return regDesc(dst, elemType)
}

func (c *Compiler) castExpr(left desc) desc {
	target := c.parseTypeName()
	src := c.toRegister(left)
	dst := c.fn.allocReg()
	c.emit(bytecode.Encode(bytecode.CAST, uint8(typeCodeOf(target)), false, false, false, dst, src, 0))
	return regDesc(dst, target)
}

func (c *Compiler) parseTypeName() types.Type {
	tok := c.cur
	c.advance()
	return typeFromToken(tok)
}

func typeCodeOf(t types.Type) bytecode.TypeCode {
	switch {
	case t.Equal(types.Int):
		return bytecode.TInt
	case t.Equal(types.Float):
		return bytecode.TFloat
	case t.Equal(types.Byte):
		return bytecode.TByte
	case t.Equal(types.Char):
		return bytecode.TChar
	case t.Equal(types.Str):
		return bytecode.TStr
	case t.Equal(types.Bool):
		return bytecode.TBool
	default:
		return bytecode.TInt
	}
}

// callExpr compiles a call to either a native (CALL_NATIVE) or a
// user-defined top-level function (CALL), resolved at compile time
// from the descriptor left carries. Dust has no first-class function
// values, so the callee is always statically known at the call site.
func (c *Compiler) callExpr(left desc) desc {
	c.advance() // consume '('
	base := c.fn.nextReg
	var argTypes []types.Type
	count := 0
	for !c.check(token.RPAREN) && !c.check(token.EOF) {
		arg := c.expression(precOr)
		r := c.toRegister(arg)
		if r != base+uint16(count) {
			c.emitMove(base+uint16(count), r)
		}
		argTypes = append(argTypes, arg.typ)
		count++
		if !c.match(token.COMMA) {
			break
		}
	}
	c.expect(token.RPAREN, "to close call arguments")
	c.fn.freeTo(base)
	dst := c.fn.allocReg()

	switch left.kind {
	case descNativeRef:
		entry, _ := c.natives.Lookup(left.nativeName)
		c.checkArity(entry.Params, argTypes, left.nativeName)
		c.emit(bytecode.Encode(bytecode.CALL_NATIVE, uint8(count), false, false, false, dst, uint16(entry.ID), base))
		return regDesc(dst, entry.Return)
	case descGlobalRef:
		// Inside a function body c.chunk is that function's own chunk,
		// not the top-level one holding Prototypes, so resolve through
		// the signature the descriptor carries.
		sig, _ := left.typ.(types.Function)
		name := ""
		for n, g := range c.globals {
			if g.protoIndex == int(left.constIdx) {
				name = n
			}
		}
		c.checkArity(sig.Params, argTypes, name)
		idx := c.emit(bytecode.Encode(bytecode.CALL, uint8(count), false, false, false, left.constIdx, base, dst))
		d := regDesc(dst, sig.Return)
		d.isCall = true
		d.callInstrIdx = idx
		return d
	default:
		c.errorAt(UndefinedIdentifier, c.cur.Span, "call target is not a function")
		return regDesc(dst, types.None)
	}
}

func (c *Compiler) checkArity(params, args []types.Type, name string) {
	if len(params) != len(args) {
		c.errorAt(ArityMismatch, c.cur.Span, "%s expects %d argument(s), found %d", name, len(params), len(args))
		return
	}
	for i := range params {
		if !params[i].Equal(args[i]) {
			c.errorAt(TypeMismatch, c.cur.Span, "%s argument %d: expected %s, found %s", name, i+1, params[i], args[i])
		}
	}
}

func (c *Compiler) emitMove(dst, src uint16) {
	c.emit(bytecode.Encode(bytecode.MOVE, 0, false, false, false, dst, src, 0))
}

// logicalAnd/logicalOr thread short-circuit jump lists instead of
// materializing a bool after the left operand, unless the left
// operand is already a plain value that must be tested with a
// JUMP_IF_* of its own.
func (c *Compiler) logicalAnd(left desc) desc {
	c.advance() // consume '&&'
	ljumps := c.toCondition(left)
	// left false => whole expr false: ljumps.falseJumps flow through.
	c.patchJumpsTo(ljumps.trueJumps, c.chunk.Len())
	right := c.expression(precAnd + 1)
	rjumps := c.toCondition(right)
	return desc{kind: descJump, typ: types.Bool,
		trueJumps:  rjumps.trueJumps,
		falseJumps: append(ljumps.falseJumps, rjumps.falseJumps...)}
}

func (c *Compiler) logicalOr(left desc) desc {
	c.advance() // consume '||'
	ljumps := c.toCondition(left)
	c.patchJumpsTo(ljumps.falseJumps, c.chunk.Len())
	right := c.expression(precOr + 1)
	rjumps := c.toCondition(right)
	return desc{kind: descJump, typ: types.Bool,
		trueJumps:  append(ljumps.trueJumps, rjumps.trueJumps...),
		falseJumps: rjumps.falseJumps}
}

// toCondition turns any desc into a descJump (a pair of not-yet-
// patched jump lists) so conditional contexts (if/while/&&/||) never
// need to materialize an intermediate bool register (comparison
// fusion).
func (c *Compiler) toCondition(d desc) desc {
	if d.kind == descJump {
		return d
	}
	if d.kind == descImmediateBool {
		idx := c.emit(bytecode.EncodeJump(bytecode.JUMP, 0, false, 0))
		if d.boolVal {
			return desc{kind: descJump, typ: types.Bool, trueJumps: []int{idx}}
		}
		return desc{kind: descJump, typ: types.Bool, falseJumps: []int{idx}}
	}
	r := c.toRegister(d)
	t := c.emit(bytecode.EncodeJump(bytecode.JUMP_IF_TRUE, r, false, 0))
	f := c.emit(bytecode.EncodeJump(bytecode.JUMP, 0, false, 0))
	return desc{kind: descJump, typ: types.Bool, trueJumps: []int{t}, falseJumps: []int{f}}
}

// binaryOp applies constant folding, then operand/const fusion, for
// arithmetic/comparison/equality/concat binary operators.
func (c *Compiler) binaryOp(op token.Token, left, right desc) desc {
	if op.Kind == token.CONCAT {
		return c.listConcatOp(left, right)
	}
	if op.Kind == token.PLUS && left.typ.Equal(types.Str) && right.typ.Equal(types.Str) {
		return c.strConcatOp(left, right)
	}
	if left.isConstFolded() && right.isConstFolded() {
		if folded, ok := c.tryFold(op, left, right); ok {
			return folded
		}
	}
	switch op.Kind {
	case token.EQ, token.NOT_EQ:
		return c.equalityOp(op, left, right)
	case token.LT, token.LTE, token.GT, token.GTE:
		return c.comparisonOp(op, left, right)
	default:
		return c.arithmeticOp(op, left, right)
	}
}

func (c *Compiler) tryFold(op token.Token, left, right desc) (desc, bool) {
	if left.kind == descConstInt && right.kind == descConstInt {
		a, b := c.chunk.Constants.Ints[left.constIdx], c.chunk.Constants.Ints[right.constIdx]
		switch op.Kind {
		case token.PLUS:
			return constIntDesc(c.chunk.Constants.AddInt(a + b)), true
		case token.MINUS:
			return constIntDesc(c.chunk.Constants.AddInt(a - b)), true
		case token.ASTERISK:
			return constIntDesc(c.chunk.Constants.AddInt(a * b)), true
		}
	}
	if left.kind == descConstFloat && right.kind == descConstFloat {
		a, b := c.chunk.Constants.Floats[left.constIdx], c.chunk.Constants.Floats[right.constIdx]
		switch op.Kind {
		case token.PLUS:
			return constFloatDesc(c.chunk.Constants.AddFloat(a + b)), true
		case token.MINUS:
			return constFloatDesc(c.chunk.Constants.AddFloat(a - b)), true
		case token.ASTERISK:
			return constFloatDesc(c.chunk.Constants.AddFloat(a * b)), true
		}
	}
	return desc{}, false
}

func (c *Compiler) arithmeticOp(op token.Token, left, right desc) desc {
	if !left.typ.Equal(right.typ) || !types.IsNumeric(left.typ) {
		c.errorAt(TypeMismatch, c.cur.Span, "operator %s requires matching numeric operands, found %s and %s", op.Lexeme, left.typ, right.typ)
	}
	isFloat := left.typ.Equal(types.Float)
	var bcOp bytecode.Opcode
	switch op.Kind {
	case token.PLUS:
		bcOp = pick(isFloat, bytecode.ADD_FLOAT, bytecode.ADD_INT)
	case token.MINUS:
		bcOp = pick(isFloat, bytecode.SUB_FLOAT, bytecode.SUB_INT)
	case token.ASTERISK:
		bcOp = pick(isFloat, bytecode.MUL_FLOAT, bytecode.MUL_INT)
	case token.SLASH:
		bcOp = pick(isFloat, bytecode.DIV_FLOAT, bytecode.DIV_INT)
	case token.PERCENT:
		bcOp = bytecode.MOD_INT
	case token.CARET:
		bcOp = pick(isFloat, bytecode.POW_FLOAT, bytecode.POW_INT)
	}
	lc, lidx, lok := left.operand()
	rc, ridx, rok := right.operand()
	if !lok {
		lidx = c.toRegister(left)
	}
	if !rok {
		ridx = c.toRegister(right)
	}
	dst := c.fn.allocReg()
	c.emit(bytecode.Encode(bcOp, 0, false, lc && lok, rc && rok, dst, lidx, ridx))
	return regDesc(dst, left.typ)
}

func pick(cond bool, ifTrue, ifFalse bytecode.Opcode) bytecode.Opcode {
	if cond {
		return ifTrue
	}
	return ifFalse
}

// strConcatOp emits STR_CONCAT for the `+` operator applied to two
// strings, making `"Hello " + "world"` produce "Hello world" the way
// write_line's callers expect rather than erroring as a non-numeric
// arithmeticOp operand.
func (c *Compiler) strConcatOp(left, right desc) desc {
	lr, rr := c.toRegister(left), c.toRegister(right)
	dst := c.fn.allocReg()
	c.emit(bytecode.Encode(bytecode.STR_CONCAT, 0, false, false, false, dst, lr, rr))
	return regDesc(dst, types.Str)
}

// listConcatOp backs `++`, a list-concatenation operator with no
// string counterpart (string concatenation has its own spelling via
// `+`, handled in binaryOp before this is ever reached).
func (c *Compiler) listConcatOp(left, right desc) desc {
	if leftList, ok := left.typ.(types.List); ok {
		if rightList, ok2 := right.typ.(types.List); ok2 && leftList.Equal(rightList) {
			lr, rr := c.toRegister(left), c.toRegister(right)
			dst := c.fn.allocReg()
			c.emit(bytecode.Encode(bytecode.LIST_APPEND, 0, false, false, false, dst, lr, rr))
			return regDesc(dst, leftList)
		}
	}
	c.errorAt(TypeMismatch, c.cur.Span, "'++' requires two lists of the same type, found %s and %s", left.typ, right.typ)
	return regDesc(c.toRegister(left), left.typ)
}

func (c *Compiler) equalityOp(op token.Token, left, right desc) desc {
	if !left.typ.Equal(right.typ) {
		c.errorAt(TypeMismatch, c.cur.Span, "cannot compare %s and %s", left.typ, right.typ)
	}
	lr, rr := c.toRegister(left), c.toRegister(right)
	bcOp := bytecode.EQ
	if op.Kind == token.NOT_EQ {
		bcOp = bytecode.NE
	}
	dst := c.fn.allocReg()
	c.emit(bytecode.Encode(bcOp, 0, false, false, false, dst, lr, rr))
	result := c.fuseComparisonJumps(dst)
	c.fn.freeTo(dst)
	return result
}

func (c *Compiler) comparisonOp(op token.Token, left, right desc) desc {
	if !left.typ.Equal(right.typ) || !types.IsNumeric(left.typ) {
		c.errorAt(TypeMismatch, c.cur.Span, "operator %s requires matching numeric operands, found %s and %s", op.Lexeme, left.typ, right.typ)
	}
	isFloat := left.typ.Equal(types.Float)
	var bcOp bytecode.Opcode
	switch op.Kind {
	case token.LT:
		bcOp = pick(isFloat, bytecode.LT_FLOAT, bytecode.LT_INT)
	case token.LTE:
		bcOp = pick(isFloat, bytecode.LE_FLOAT, bytecode.LE_INT)
	case token.GT:
		bcOp = pick(isFloat, bytecode.GT_FLOAT, bytecode.GT_INT)
	case token.GTE:
		bcOp = pick(isFloat, bytecode.GE_FLOAT, bytecode.GE_INT)
	}
	lr, rr := c.toRegister(left), c.toRegister(right)
	dst := c.fn.allocReg()
	c.emit(bytecode.Encode(bcOp, 0, false, false, false, dst, lr, rr))
	result := c.fuseComparisonJumps(dst)
	c.fn.freeTo(dst)
	return result
}

// fuseComparisonJumps turns a comparison/equality instruction's
// boolean result, already sitting in reg, into a descJump by
// following it with a JUMP_IF_TRUE/JUMP pair — so a comparison used
// directly as an if/while condition never needs anything more than
// patching two already-emitted jumps.
func (c *Compiler) fuseComparisonJumps(reg uint16) desc {
	t := c.emit(bytecode.EncodeJump(bytecode.JUMP_IF_TRUE, reg, false, 0))
	f := c.emit(bytecode.EncodeJump(bytecode.JUMP, 0, false, 0))
	return desc{kind: descJump, typ: types.Bool, trueJumps: []int{t}, falseJumps: []int{f}}
}

