package permit

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// CleanText applies NFKC normalization and collapses runs of whitespace, so
// addresses that differ only by non-breaking spaces or doubled blanks compare
// equal.
func CleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// UpperText is CleanText followed by upper-casing.
func UpperText(s string) string {
	return cases.Upper(language.Und).String(CleanText(s))
}
