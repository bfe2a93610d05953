package tokens

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Variant is a derived spelling of a token, stored under the token name
// plus Suffix.
type Variant struct {
	Suffix string
	Derive func(words []string) string
}

// Variants lists every derived spelling in a fixed order. For a token
// "moduleName" with value "gene_score" the context holds
// moduleNamePascal=GeneScore, moduleNameCamel=geneScore,
// moduleNameSnake=gene_score, moduleNameKebab=gene-score and
// moduleNameUpper=GENE_SCORE.
var Variants = []Variant{
	{"Pascal", pascal},
	{"Camel", camel},
	{"Snake", snake},
	{"Kebab", kebab},
	{"Upper", upper},
}

// Words splits s on separators and case boundaries. "mapTDPGenes" and
// "map_tdp-genes" both split into three words.
func Words(s string) []string {
	var words []string
	for _, field := range strings.FieldsFunc(s, isSeparator) {
		words = append(words, splitCase(field)...)
	}
	return words
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
}

// splitCase breaks a field before an upper-case letter that follows a
// lower-case letter or digit, and before the last upper-case letter of an
// acronym that is followed by a lower-case letter.
func splitCase(field string) []string {
	runes := []rune(field)
	var words []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		boundary := unicode.IsUpper(cur) && (unicode.IsLower(prev) || unicode.IsDigit(prev))
		if !boundary && unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			boundary = true
		}
		if boundary {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	return append(words, string(runes[start:]))
}

// titleWord upper-cases the first letter and keeps the rest as written.
func titleWord(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return cases.Upper(language.Und).String(string(r)) + w[size:]
}

func pascal(words []string) string {
	var b strings.Builder
	for _, w := range words {
		b.WriteString(titleWord(w))
	}
	return b.String()
}

func camel(words []string) string {
	if len(words) == 0 {
		return ""
	}
	lower := cases.Lower(language.Und)
	var b strings.Builder
	b.WriteString(lower.String(words[0]))
	for _, w := range words[1:] {
		b.WriteString(titleWord(w))
	}
	return b.String()
}

func snake(words []string) string {
	return joinWith(words, "_", cases.Lower(language.Und))
}

func kebab(words []string) string {
	return joinWith(words, "-", cases.Lower(language.Und))
}

func upper(words []string) string {
	return joinWith(words, "_", cases.Upper(language.Und))
}

func joinWith(words []string, sep string, c cases.Caser) string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = c.String(w)
	}
	return strings.Join(out, sep)
}
