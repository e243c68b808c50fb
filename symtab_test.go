package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashIdentDeterministic(t *testing.T) {
	require.Equal(t, HashIdent([]byte("foo")), HashIdent([]byte("foo")))
	require.NotEqual(t, HashIdent([]byte("foo")), HashIdent([]byte("bar")))
}

func TestSymbolTableInterning(t *testing.T) {
	var st SymbolTable
	a := st.LookupOrInsert([]byte("counter"))
	b := st.LookupOrInsert([]byte("counter"))
	require.Same(t, a, b)

	c := st.LookupOrInsert([]byte("other"))
	require.NotSame(t, a, c)
}

func TestSeedKeywords(t *testing.T) {
	var st SymbolTable
	st.SeedKeywords()

	ifSym := st.LookupOrInsert([]byte("if"))
	require.Equal(t, TokIf, ifSym.Tok)

	printfSym := st.LookupOrInsert([]byte("printf"))
	require.Equal(t, ScSystem, printfSym.Class)
	require.Equal(t, int(OpPRTF), printfSym.Value)

	plain := st.LookupOrInsert([]byte("x"))
	require.Equal(t, TokId, plain.Tok)
}

func TestShadowUnshadow(t *testing.T) {
	var st SymbolTable
	st.SeedKeywords()

	g := st.LookupOrInsert([]byte("x"))
	g.Class = ScGlobal
	g.Type = Int
	g.Value = 8

	st.EnterLocal(g, Char, -1)
	require.Equal(t, ScLocal, g.Class)
	require.Equal(t, Char, g.Type)
	require.Equal(t, -1, g.Value)

	st.UnshadowAll()
	require.Equal(t, ScGlobal, g.Class)
	require.Equal(t, Int, g.Type)
	require.Equal(t, 8, g.Value)
}
