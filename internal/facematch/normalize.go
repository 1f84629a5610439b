package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for comparison
// (lowercase, no diacritics, spaces for dashes, single spaces).
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// NamesMatch reports whether a spoken name matches a record name.
func NamesMatch(spoken, recorded string) bool {
	s := NormalizePersonName(spoken)
	return s != "" && s == NormalizePersonName(recorded)
}

// NormalizeIdentityID strips all whitespace and uppercases an identity id (" e 001" -> "E001").
func NormalizeIdentityID(id string) string {
	return strings.ToUpper(strings.Join(strings.Fields(id), ""))
}
