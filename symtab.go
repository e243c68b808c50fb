package main

// Symbol is a fixed-size identifier record. Class/Type/Value describe the
// identifier's current binding; LClass/LType/LValue shadow the previous
// (outer-scope) binding so that a local declaration can hide a global one
// and restore it when the enclosing function exits.
type Symbol struct {
	Name string
	Hash int

	Tok   Token // TokId normally; reserved words keep their own token
	Class StorageClass
	Type  Type
	Value int

	LClass StorageClass
	LType  Type
	LValue int
}

// SymbolTable is the single flat identifier table used across lexing and
// name resolution. Identifiers are interned by (hash, name) on first sight
// and never removed; scoping is implemented by the shadow/unshadow pair
// below rather than by pushing/popping table entries.
type SymbolTable struct {
	syms []*Symbol
	by   map[int][]*Symbol // hash -> candidates, to avoid a full scan on lookup
}

// HashIdent computes the rolling polynomial hash the reference uses for
// identifier interning: h = 147*h + c per byte, then folded with the
// identifier's length so that same-prefix identifiers of different lengths
// still land in different buckets.
func HashIdent(name []byte) int {
	h := 0
	for _, c := range name {
		h = h*147 + int(c)
	}
	return (h << 6) + len(name)
}

// LookupOrInsert returns the existing Symbol for name, or interns a new one
// with Class/Type/Value left at their zero values.
func (st *SymbolTable) LookupOrInsert(name []byte) *Symbol {
	h := HashIdent(name)
	for _, sym := range st.by[h] {
		if sym.Name == string(name) {
			return sym
		}
	}
	sym := &Symbol{Name: string(name), Hash: h, Tok: TokId}
	st.syms = append(st.syms, sym)
	if st.by == nil {
		st.by = make(map[int][]*Symbol)
	}
	st.by[h] = append(st.by[h], sym)
	return sym
}

// SeedKeywords interns the reserved words and built-in syscall names, tagging
// each with its fixed token or ScSystem binding. Called once before lexing
// begins. Reserved words are never shadowed because the lexer returns their
// reserved token rather than TokId; built-in names are ordinary identifiers
// and can be redefined as globals or shadowed by locals.
func (st *SymbolTable) SeedKeywords() {
	for _, kw := range keywords {
		sym := st.LookupOrInsert([]byte(kw.name))
		sym.Tok = kw.tok
	}
	for _, b := range builtins {
		sym := st.LookupOrInsert([]byte(b.name))
		sym.Class = ScSystem
		sym.Type = Int
		sym.Value = int(b.op)
	}

	// void is syntactically interchangeable with char as a return type,
	// bug-compatible with the reference: it is seeded with Tok = TokChar
	// rather than a token of its own.
	st.LookupOrInsert([]byte("void")).Tok = TokChar
}

// EnterLocal binds sym to a local parameter or variable, saving its current
// (global, or outer-function) binding into the shadow fields.
func (st *SymbolTable) EnterLocal(sym *Symbol, typ Type, value int) {
	sym.LClass, sym.LType, sym.LValue = sym.Class, sym.Type, sym.Value
	sym.Class, sym.Type, sym.Value = ScLocal, typ, value
}

// UnshadowAll restores every currently-local symbol's previous binding. It
// scans the whole table rather than tracking which symbols were shadowed in
// the current function, reproducing the reference's table-wide scope exit:
// correctness here does not depend on scan order or on a separate per-scope
// list, only on every symbol's shadow fields being independently valid.
func (st *SymbolTable) UnshadowAll() {
	for _, sym := range st.syms {
		if sym.Class == ScLocal {
			sym.Class, sym.Type, sym.Value = sym.LClass, sym.LType, sym.LValue
		}
	}
}
