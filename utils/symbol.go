package utils

import (
	"strings"

	"github.com/exascience/pargo/sync"

	"github.com/exascience/elpart/internal"
)

type symbolName string

// A Symbol is a unique pointer to a string. Segment identifiers are
// represented as symbols, since the same few hundred reference
// segments are named by every read of a run.
type Symbol *string

func (s symbolName) Hash() uint64 {
	return internal.StringHash(string(s))
}

var symbolTable = sync.NewMap(0)

/*
Intern returns a Symbol for the given string.

It always returns the same pointer for strings that are equal, and
different pointers for strings that are not equal. So for two strings
s1 and s2, if s1 == s2, then Intern(s1) == Intern(s2), and if s1 !=
s2, then Intern(s1) != Intern(s2).

Dereferencing the pointer always yields a string that is equal to the
original string: *Intern(s) == s always holds.

It is safe for multiple goroutines to call Intern concurrently.
*/
func Intern(s string) Symbol {
	entry, _ := symbolTable.LoadOrStore(symbolName(s), Symbol(&s))
	return entry.(Symbol)
}

// SymbolString returns the string of a Symbol, or "" for nil.
func SymbolString(s Symbol) string {
	if s == nil {
		return ""
	}
	return *s
}

// JoinSymbols concatenates the strings of the given symbols, separated
// by sep.
func JoinSymbols(symbols []Symbol, sep string) string {
	var b strings.Builder
	for i, s := range symbols {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(SymbolString(s))
	}
	return b.String()
}
