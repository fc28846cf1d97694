package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that carry no combining mark, so NFD decomposition leaves them alone.
var undecomposable = strings.NewReplacer(
	"ı", "i", "ß", "ss", "æ", "ae", "ø", "o", "œ", "oe", "ł", "l", "đ", "d", "þ", "th",
)

// Fold lowercases s and strips diacritics: "Çocuk Ürünleri" becomes "cocuk urunleri".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	return undecomposable.Replace(folded)
}

// Generate creates a URL-friendly slug from the given name.
//
// Examples:
//   - "Kadın Giyim" → "kadin-giyim"
//   - "Çocuk Ürünleri" → "cocuk-urunleri"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(Fold(strings.TrimSpace(name)), "-"), "-")
}
