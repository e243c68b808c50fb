package main

import (
	"context"
	"errors"
	"io"

	"github.com/100061144/c4-analysis/internal/mem"
	"github.com/100061144/c4-analysis/internal/panicerr"
)

// Compiler performs one-pass parsing and bytecode emission: there is no
// intermediate AST, each grammar production emits directly into the code
// segment as it is recognized.
type Compiler struct {
	lx   *Lexer
	syms *SymbolTable

	code mem.Words
	data mem.Bytes

	tok  Token
	line int

	traceSource io.Writer

	// exprType is the type of the expression most recently parsed by expr;
	// statement-level callers (declarations, casts, & and sizeof) consult
	// and overwrite it the way the reference reuses its single global
	// "expr_type" variable.
	exprType Type
}

// CompileResult is the output of a successful Compile: a ready-to-run
// program image plus the entry point to start the VM at.
type CompileResult struct {
	Code  []int
	Data  []byte
	Entry int
	Main  *Symbol
}

// Compile parses and emits src in full, returning the assembled program or
// the first CompileError encountered. Parsing runs under internal/panicerr's
// recover boundary: c.fail raises a CompileError by panicking, and whatever
// comes back out unwraps to that error value through panicerr's Unwrap.
func Compile(ctx context.Context, src []byte, opts ...CompilerOption) (CompileResult, error) {
	syms := &SymbolTable{}
	syms.SeedKeywords()

	c := &Compiler{
		lx:   NewLexer(src, syms),
		syms: syms,
		line: 1,
	}
	for _, opt := range opts {
		opt.applyCompiler(c)
	}

	prevHook := internStringHook
	internStringHook = c.internString
	defer func() { internStringHook = prevHook }()

	var result CompileResult
	runErr := panicerr.Recover("compile", func() error {
		c.next()
		for c.tok != TokEOF {
			if err := ctx.Err(); err != nil {
				return err
			}
			from := c.code.Len()
			c.globalDecl()
			c.traceEmitted(from)
		}

		mainSym := syms.LookupOrInsert([]byte("main"))
		if mainSym.Class != ScFunction {
			c.fail("main() not defined")
		}

		result = CompileResult{
			Code:  c.code.Slice(),
			Data:  c.data.Slice(),
			Entry: mainSym.Value,
			Main:  mainSym,
		}
		return nil
	})
	if runErr == nil {
		return result, nil
	}

	var ce CompileError
	if errors.As(runErr, &ce) {
		return CompileResult{}, ce
	}
	return CompileResult{}, runErr
}

func (c *Compiler) internString(buf []byte) int {
	addr, err := c.data.Reserve(uint(len(buf) + 1))
	if err != nil {
		c.fail("%v", err)
	}
	copy(c.data.Slice()[addr:], buf)
	c.data.Align(WordSize)
	return int(addr)
}

func (c *Compiler) next() {
	c.tok = c.lx.Next()
	c.line = c.lx.Line()
}

func (c *Compiler) expect(tok Token, what string) {
	if c.tok != tok {
		c.fail("expected %s, got %v", what, c.tok)
	}
	c.next()
}

func (c *Compiler) emit(op Op) uint {
	addr, err := c.code.Emit(int(op))
	if err != nil {
		c.fail("%v", err)
	}
	return addr
}

func (c *Compiler) emitOperand(v int) uint {
	addr, err := c.code.Emit(v)
	if err != nil {
		c.fail("%v", err)
	}
	return addr
}

func (c *Compiler) here() uint { return c.code.Len() }

// baseType parses "int" or "char", returning Int for anything else left
// unconsumed the way the reference defaults an absent type specifier to int.
func (c *Compiler) baseType() Type {
	switch c.tok {
	case TokChar:
		c.next()
		return Char
	case TokInt:
		c.next()
		return Int
	default:
		return Int
	}
}

func (c *Compiler) pointerSuffix(base Type) Type {
	ty := base
	for c.tok == TokMul {
		c.next()
		ty = ty.PointerTo()
	}
	return ty
}

// globalDecl parses one top level declaration: an enum block, or a run of
// comma-separated global variable or function declarations sharing a base
// type, per the reference's single-pass top level loop.
func (c *Compiler) globalDecl() {
	if c.tok == TokEnum {
		c.enumDecl()
		return
	}

	base := c.baseType()
	for c.tok != Token(';') && c.tok != Token('}') && c.tok != TokEOF {
		ty := c.pointerSuffix(base)
		if c.tok != TokId {
			c.fail("bad global declaration")
		}
		sym := c.lx.Ident
		if sym.Class != ScNone && sym.Class != ScSystem {
			c.fail("duplicate global definition: %s", sym.Name)
		}
		c.next()

		if c.tok == Token('(') {
			c.functionDecl(sym, ty)
			return
		}

		sym.Class = ScGlobal
		sym.Type = ty
		addr, err := c.data.Reserve(WordSize)
		if err != nil {
			c.fail("%v", err)
		}
		sym.Value = int(addr)

		if c.tok == Token(',') {
			c.next()
			continue
		}
		break
	}
	c.expect(Token(';'), "';'")
}

// enumDecl parses "enum [tag] { NAME [= num], ... } ;". The optional tag
// identifier, if present, is consumed and discarded: the reference does not
// bind enum tags to anything.
func (c *Compiler) enumDecl() {
	c.next() // 'enum'
	if c.tok == TokId {
		c.next()
	}
	if c.tok == Token('{') {
		c.next()
		val := 0
		for c.tok != Token('}') {
			if c.tok != TokId {
				c.fail("bad enum identifier")
			}
			sym := c.lx.Ident
			c.next()
			if c.tok == TokAssign {
				c.next()
				val = c.constExpr()
			}
			sym.Class = ScNumConst
			sym.Type = Int
			sym.Value = val
			val++
			if c.tok == Token(',') {
				c.next()
			}
		}
		c.next() // '}'
	}
	c.expect(Token(';'), "';'")
}

// constExpr evaluates a restricted constant expression for enum values:
// an optional unary '-' applied to a numeric literal, matching the
// reference's minimal constant-folding there.
func (c *Compiler) constExpr() int {
	neg := false
	if c.tok == TokSub {
		neg = true
		c.next()
	}
	if c.tok != TokNum {
		c.fail("bad enum initializer")
	}
	v := c.lx.Value
	c.next()
	if neg {
		v = -v
	}
	return v
}

// functionDecl parses and emits a complete function definition: parameter
// list, then local declarations, then the statement body, finishing with an
// unconditional LEV so execution always returns through the same path
// whether or not the body ends in an explicit return.
func (c *Compiler) functionDecl(sym *Symbol, retType Type) {
	sym.Class = ScFunction
	sym.Type = retType
	sym.Value = int(c.here())

	c.next() // '('
	nparams := 0
	var params []*Symbol
	for c.tok != Token(')') {
		pty := c.pointerSuffix(c.baseType())
		if c.tok != TokId {
			c.fail("bad parameter declaration")
		}
		psym := c.lx.Ident
		if psym.Class == ScLocal {
			c.fail("duplicate parameter definition: %s", psym.Name)
		}
		c.next()
		c.syms.EnterLocal(psym, pty, 0)
		params = append(params, psym)
		nparams++
		if c.tok == Token(',') {
			c.next()
		}
	}
	c.next() // ')'

	// Offsets count outward from bp once the total parameter count is
	// known, so the binding above uses a placeholder value patched here.
	for i, psym := range params {
		psym.Value = nparams + 1 - i
	}

	c.expect(Token('{'), "'{'")

	nlocals := 0
	for c.tok == TokInt || c.tok == TokChar {
		base := c.baseType()
		for c.tok != Token(';') {
			ty := c.pointerSuffix(base)
			if c.tok != TokId {
				c.fail("bad local declaration")
			}
			lsym := c.lx.Ident
			if lsym.Class == ScLocal {
				c.fail("duplicate local definition: %s", lsym.Name)
			}
			c.next()
			nlocals++
			c.syms.EnterLocal(lsym, ty, -nlocals)
			if c.tok == Token(',') {
				c.next()
			}
		}
		c.next() // ';'
	}

	c.emit(OpENT)
	c.emitOperand(nlocals)

	for c.tok != Token('}') {
		c.statement()
	}

	c.emit(OpLEV)
	c.next() // '}'

	c.syms.UnshadowAll()
}

// statement parses and emits one statement.
func (c *Compiler) statement() {
	switch c.tok {
	case TokIf:
		c.ifStatement()
	case TokWhile:
		c.whileStatement()
	case TokReturn:
		c.next()
		if c.tok != Token(';') {
			c.expr(int(TokAssign))
		}
		c.emit(OpLEV)
		c.expect(Token(';'), "';'")
	case Token('{'):
		c.next()
		for c.tok != Token('}') {
			c.statement()
		}
		c.next()
	case Token(';'):
		c.next()
	default:
		c.expr(int(TokAssign))
		c.expect(Token(';'), "';'")
	}
}

func (c *Compiler) ifStatement() {
	c.next()
	c.expect(Token('('), "'('")
	c.expr(int(TokAssign))
	c.expect(Token(')'), "')'")

	c.emit(OpBZ)
	branchAddr := c.emitOperand(0)

	c.statement()

	if c.tok == TokElse {
		c.emit(OpJMP)
		elseAddr := c.emitOperand(0)
		c.code.Set(branchAddr, int(c.here()))

		c.next()
		c.statement()

		c.code.Set(elseAddr, int(c.here()))
	} else {
		c.code.Set(branchAddr, int(c.here()))
	}
}

func (c *Compiler) whileStatement() {
	c.next()
	top := c.here()
	c.expect(Token('('), "'('")
	c.expr(int(TokAssign))
	c.expect(Token(')'), "')'")

	c.emit(OpBZ)
	branchAddr := c.emitOperand(0)

	c.statement()

	c.emit(OpJMP)
	c.emitOperand(int(top))
	c.code.Set(branchAddr, int(c.here()))
}
