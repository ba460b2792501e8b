package handle

import (
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// keepRune reports whether r survives noise stripping: letters, numbers,
// punctuation, separators, newline and the handful of symbols handles and
// URLs may contain.
func keepRune(r rune) bool {
	switch r {
	case '\n', '@', '.', '^', '$':
		return true
	}
	return unicode.In(r, unicode.L, unicode.N, unicode.P, unicode.Z)
}

// chainPool holds transform chains; a chain is stateful and not safe for
// concurrent use.
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			runes.Map(func(r rune) rune {
				if keepRune(r) {
					return r
				}
				return ' '
			}),
			norm.NFKD, // fold "fancy" letterforms (𝓪, ａ, ℌ) onto plain letters
			cases.Lower(language.Und),
		)
	},
}

// Normalize strips emoji and other decorative characters, applies unicode
// compatibility decomposition and lowercases s. It never fails: input the
// transformer cannot handle is returned unchanged.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	tr, ok := chainPool.Get().(transform.Transformer)
	if !ok {
		return s
	}
	defer chainPool.Put(tr)
	tr.Reset()

	out, _, err := transform.String(tr, s)
	if err != nil {
		return s
	}
	return out
}
