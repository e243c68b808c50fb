package main

// expr parses and emits an expression whose outermost operator has
// precedence at least level, using Token's numeric ordering as the
// precedence rank (see token.go). Binary operators recurse at level+1
// (left associative); Assign and Cond recurse at the same level (right
// associative).
func (c *Compiler) expr(level int) {
	c.unary()

	for int(c.tok) >= level {
		t := c.tok
		lty := c.exprType
		switch t {
		case TokAssign:
			c.assignOp()
		case TokCond:
			c.condOp()
		case TokLor:
			c.orOp()
		case TokLan:
			c.andOp()
		case TokOr:
			c.next()
			c.emit(OpPSH)
			c.expr(int(t) + 1)
			c.emit(OpOR)
			c.exprType = Int
		case TokXor:
			c.next()
			c.emit(OpPSH)
			c.expr(int(t) + 1)
			c.emit(OpXOR)
			c.exprType = Int
		case TokAnd:
			c.next()
			c.emit(OpPSH)
			c.expr(int(t) + 1)
			c.emit(OpAND)
			c.exprType = Int
		case TokEq:
			c.next()
			c.emit(OpPSH)
			c.expr(int(t) + 1)
			c.emit(OpEQ)
			c.exprType = Int
		case TokNe:
			c.next()
			c.emit(OpPSH)
			c.expr(int(t) + 1)
			c.emit(OpNE)
			c.exprType = Int
		case TokLt:
			c.next()
			c.emit(OpPSH)
			c.expr(int(t) + 1)
			c.emit(OpLT)
			c.exprType = Int
		case TokGt:
			c.next()
			c.emit(OpPSH)
			c.expr(int(t) + 1)
			c.emit(OpGT)
			c.exprType = Int
		case TokLe:
			c.next()
			c.emit(OpPSH)
			c.expr(int(t) + 1)
			c.emit(OpLE)
			c.exprType = Int
		case TokGe:
			c.next()
			c.emit(OpPSH)
			c.expr(int(t) + 1)
			c.emit(OpGE)
			c.exprType = Int
		case TokShl:
			c.next()
			c.emit(OpPSH)
			c.expr(int(t) + 1)
			c.emit(OpSHL)
			c.exprType = Int
		case TokShr:
			c.next()
			c.emit(OpPSH)
			c.expr(int(t) + 1)
			c.emit(OpSHR)
			c.exprType = Int
		case TokAdd:
			c.addOp(lty)
		case TokSub:
			c.subOp(lty)
		case TokMul:
			c.next()
			c.emit(OpPSH)
			c.expr(int(t) + 1)
			c.emit(OpMUL)
			c.exprType = Int
		case TokDiv:
			c.next()
			c.emit(OpPSH)
			c.expr(int(t) + 1)
			c.emit(OpDIV)
			c.exprType = Int
		case TokMod:
			c.next()
			c.emit(OpPSH)
			c.expr(int(t) + 1)
			c.emit(OpMOD)
			c.exprType = Int
		case TokInc, TokDec:
			c.postfixIncDec(t, lty)
		case TokBrak:
			c.indexOp(lty)
		default:
			return
		}
	}
}

// unary parses a primary expression together with any prefix operators,
// leaving its value in the accumulator and its type in c.exprType.
func (c *Compiler) unary() {
	switch c.tok {
	case TokNum:
		c.emit(OpIMM)
		c.emitOperand(c.lx.Value)
		c.exprType = Int
		c.next()

	case TokStr:
		c.emit(OpIMM)
		c.emitOperand(c.lx.Value)
		c.exprType = Char.PointerTo()
		c.next()

	case TokSizeof:
		c.next()
		c.expect(Token('('), "'('")
		ty := c.pointerSuffix(c.baseType())
		c.expect(Token(')'), "')'")
		c.emit(OpIMM)
		c.emitOperand(ty.WordSizeOf())
		c.exprType = Int

	case TokId:
		c.identifierRef()

	case Token('('):
		c.parenOrCast()

	case TokMul:
		c.next()
		c.expr(int(TokInc))
		if !c.exprType.IsPointer() {
			c.fail("bad dereference of non-pointer type %v", c.exprType)
		}
		c.exprType = c.exprType.Deref()
		c.loadValue()

	case TokAnd:
		c.next()
		c.expr(int(TokInc))
		c.addressOf()

	case Token('!'):
		c.next()
		c.expr(int(TokInc))
		c.emit(OpPSH)
		c.emit(OpIMM)
		c.emitOperand(0)
		c.emit(OpEQ)
		c.exprType = Int

	case Token('~'):
		c.next()
		c.expr(int(TokInc))
		c.emit(OpPSH)
		c.emit(OpIMM)
		c.emitOperand(-1)
		c.emit(OpXOR)
		c.exprType = Int

	case TokSub:
		c.next()
		c.expr(int(TokInc))
		c.emit(OpPSH)
		c.emit(OpIMM)
		c.emitOperand(-1)
		c.emit(OpMUL)
		c.exprType = Int

	case TokInc, TokDec:
		t := c.tok
		c.next()
		c.expr(int(TokInc))
		c.prefixIncDec(t)

	default:
		c.fail("bad expression, unexpected %v", c.tok)
	}
}

func (c *Compiler) loadValue() {
	if c.exprType == Char {
		c.emit(OpLC)
	} else {
		c.emit(OpLI)
	}
}

func (c *Compiler) storeValue() {
	if c.exprType == Char {
		c.emit(OpSC)
	} else {
		c.emit(OpSI)
	}
}

// identifierRef resolves a bare identifier reference: a call, an enum
// constant, or a variable load.
func (c *Compiler) identifierRef() {
	sym := c.lx.Ident
	c.next()

	if c.tok == Token('(') {
		c.callExpr(sym)
		return
	}

	switch sym.Class {
	case ScNumConst:
		c.emit(OpIMM)
		c.emitOperand(sym.Value)
		c.exprType = Int
	case ScLocal:
		c.emit(OpLEA)
		c.emitOperand(sym.Value)
		c.exprType = sym.Type
		c.loadValue()
	case ScGlobal:
		c.emit(OpIMM)
		c.emitOperand(sym.Value)
		c.exprType = sym.Type
		c.loadValue()
	default:
		c.fail("undefined identifier: %s", sym.Name)
	}
}

func (c *Compiler) callExpr(sym *Symbol) {
	c.next() // '('
	nargs := 0
	for c.tok != Token(')') {
		c.expr(int(TokAssign))
		c.emit(OpPSH)
		nargs++
		if c.tok == Token(',') {
			c.next()
		}
	}
	c.next() // ')'

	switch sym.Class {
	case ScSystem:
		c.emit(Op(sym.Value))
		if Op(sym.Value) == OpPRTF {
			c.emitOperand(nargs)
		}
	case ScFunction:
		c.emit(OpJSR)
		c.emitOperand(sym.Value)
	default:
		c.fail("call of non-function: %s", sym.Name)
	}
	if nargs > 0 {
		c.emit(OpADJ)
		c.emitOperand(nargs)
	}
	c.exprType = sym.Type
}

// parenOrCast disambiguates "(" as either a parenthesized subexpression or
// the start of a C-style cast "(type) expr", peeking at whether a type
// keyword immediately follows.
func (c *Compiler) parenOrCast() {
	c.next() // '('
	if c.tok == TokInt || c.tok == TokChar {
		ty := c.pointerSuffix(c.baseType())
		c.expect(Token(')'), "')'")
		c.expr(int(TokInc))
		c.exprType = ty
		return
	}
	c.expr(int(TokAssign))
	c.expect(Token(')'), "')'")
}

// addressOf turns the lvalue-producing code just emitted (ending in LC or
// LI) back into its bare address computation by discarding the trailing
// load, the same rewrite the reference applies in place.
func (c *Compiler) addressOf() {
	op, ok := c.lastLoadOp()
	if !ok {
		c.fail("bad address-of operand")
	}
	c.code.Truncate(c.code.Len() - 1)
	_ = op
	c.exprType = c.exprType.PointerTo()
}

// lastLoadOp reports the most recently emitted opcode when it is LC or LI.
func (c *Compiler) lastLoadOp() (Op, bool) {
	v, ok := c.code.Last()
	if !ok {
		return 0, false
	}
	op := Op(v)
	if op != OpLC && op != OpLI {
		return 0, false
	}
	return op, true
}

// reloadLValue rewrites a just-emitted load (LC/LI) into "push the address,
// reload the value", recovering the address for a subsequent store while
// leaving the current value in the accumulator. Used by both prefix and
// postfix increment/decrement.
func (c *Compiler) reloadLValue() {
	op, ok := c.lastLoadOp()
	if !ok {
		c.fail("bad lvalue in increment/decrement")
	}
	c.code.Truncate(c.code.Len() - 1)
	c.emit(OpPSH)
	c.emit(op)
}

func (c *Compiler) prefixIncDec(t Token) {
	ty := c.exprType
	c.reloadLValue()
	delta := 1
	if ty.IsPointer() {
		delta = ty.WordSizeOf()
	}
	c.emit(OpPSH)
	c.emit(OpIMM)
	c.emitOperand(delta)
	if t == TokInc {
		c.emit(OpADD)
	} else {
		c.emit(OpSUB)
	}
	c.exprType = ty
	c.storeValue()
}

// postfixIncDec applies ++/-- after an operand already parsed by unary,
// then restores the accumulator to the pre-increment value: the expression
// value of "x++" is the old x even though memory already holds the new one.
func (c *Compiler) postfixIncDec(t Token, ty Type) {
	c.next()
	c.reloadLValue()
	delta := 1
	if ty.IsPointer() {
		delta = ty.WordSizeOf()
	}

	c.emit(OpPSH)
	c.emit(OpIMM)
	c.emitOperand(delta)
	if t == TokInc {
		c.emit(OpADD)
	} else {
		c.emit(OpSUB)
	}
	c.exprType = ty
	c.storeValue()

	c.emit(OpPSH)
	c.emit(OpIMM)
	c.emitOperand(delta)
	if t == TokInc {
		c.emit(OpSUB)
	} else {
		c.emit(OpADD)
	}
	c.exprType = ty
}

func (c *Compiler) assignOp() {
	c.next() // '='
	lty := c.exprType
	if _, ok := c.lastLoadOp(); !ok {
		c.fail("bad lvalue in assignment")
	}
	c.code.Truncate(c.code.Len() - 1) // keep the address, drop the load
	c.emit(OpPSH)
	c.expr(int(TokAssign)) // right associative
	c.exprType = lty
	c.storeValue()
}

func (c *Compiler) condOp() {
	c.next() // '?'
	c.emit(OpBZ)
	elseAddr := c.emitOperand(0)

	c.expr(int(TokAssign))
	c.expect(Token(':'), "':'")

	c.emit(OpJMP)
	endAddr := c.emitOperand(0)
	c.code.Set(elseAddr, int(c.here()))

	c.expr(int(TokCond))
	c.code.Set(endAddr, int(c.here()))
}

// orOp implements short-circuit "||", branching past the right operand as
// soon as the left one is already nonzero.
func (c *Compiler) orOp() {
	c.next()
	c.emit(OpBNZ)
	t1 := c.emitOperand(0)

	c.expr(int(TokLan))

	c.emit(OpBNZ)
	t2 := c.emitOperand(0)

	c.emit(OpIMM)
	c.emitOperand(0)
	c.emit(OpJMP)
	end := c.emitOperand(0)

	trueAddr := c.here()
	c.code.Set(t1, int(trueAddr))
	c.code.Set(t2, int(trueAddr))
	c.emit(OpIMM)
	c.emitOperand(1)
	c.code.Set(end, int(c.here()))
	c.exprType = Int
}

// andOp implements short-circuit "&&", branching to the false path as soon
// as either operand is zero.
func (c *Compiler) andOp() {
	c.next()
	c.emit(OpBZ)
	t1 := c.emitOperand(0)

	c.expr(int(TokOr))

	c.emit(OpBZ)
	t2 := c.emitOperand(0)

	c.emit(OpIMM)
	c.emitOperand(1)
	c.emit(OpJMP)
	end := c.emitOperand(0)

	falseAddr := c.here()
	c.code.Set(t1, int(falseAddr))
	c.code.Set(t2, int(falseAddr))
	c.emit(OpIMM)
	c.emitOperand(0)
	c.code.Set(end, int(c.here()))
	c.exprType = Int
}

// addOp implements '+', scaling the right operand by the machine word size
// when the left operand is a pointer of any pointee type (pointer + int).
func (c *Compiler) addOp(lty Type) {
	c.next()
	c.emit(OpPSH)
	c.expr(int(TokAdd) + 1)
	if lty.IsPointer() {
		if scale := lty.WordSizeOf(); scale != 1 {
			c.emit(OpPSH)
			c.emit(OpIMM)
			c.emitOperand(scale)
			c.emit(OpMUL)
		}
	}
	c.emit(OpADD)
	c.exprType = lty
}

// subOp implements '-': pointer-pointer yields a scaled element count,
// pointer-int yields a pointer, int-int yields an int.
func (c *Compiler) subOp(lty Type) {
	c.next()
	c.emit(OpPSH)
	c.expr(int(TokSub) + 1)
	rty := c.exprType

	switch {
	case lty.IsPointer() && rty.IsPointer():
		c.emit(OpSUB)
		if scale := lty.WordSizeOf(); scale != 1 {
			c.emit(OpPSH)
			c.emit(OpIMM)
			c.emitOperand(scale)
			c.emit(OpDIV)
		}
		c.exprType = Int
	case lty.IsPointer():
		if scale := lty.WordSizeOf(); scale != 1 {
			c.emit(OpPSH)
			c.emit(OpIMM)
			c.emitOperand(scale)
			c.emit(OpMUL)
		}
		c.emit(OpSUB)
		c.exprType = lty
	default:
		c.emit(OpSUB)
		c.exprType = Int
	}
}

// indexOp implements postfix "a[i]" as sugar for "*(a+i)".
func (c *Compiler) indexOp(lty Type) {
	c.next() // '['
	if !lty.IsPointer() {
		c.fail("bad subscript of non-pointer type %v", lty)
	}
	c.emit(OpPSH)
	c.expr(int(TokAssign))
	c.expect(Token(']'), "']'")

	if scale := lty.WordSizeOf(); scale != 1 {
		c.emit(OpPSH)
		c.emit(OpIMM)
		c.emitOperand(scale)
		c.emit(OpMUL)
	}
	c.emit(OpADD)
	c.exprType = lty.Deref()
	c.loadValue()
}
