// Package normalize canonicalizes free-text medication descriptions so that
// noisy invoice variants ("IBUPROFENO 400MG COMP.", "ibuprofeno 400 mg
// comprimidos") collapse onto the same comparison key.
package normalize

import (
	"regexp"
	"strings"
)

// Abbreviation expansions, applied in this exact order. The order matters:
// patterns overlap (SOL vs SOL. FISIOL) and a fixed sequence keeps the result
// deterministic.
var replacements = []struct {
	re   *regexp.Regexp
	repl string
}{
	// Pharmaceutical forms
	{regexp.MustCompile(`\bCOMP\b`), "COMPRIMIDO"},
	{regexp.MustCompile(`\bGTS\b`), "GOTAS"},
	{regexp.MustCompile(`\bSOL\b`), "SOLUCION"},
	{regexp.MustCompile(`\bINY\b`), "INYECTABLE"},
	{regexp.MustCompile(`\bAMP\b`), "AMPOLLA"},
	{regexp.MustCompile(`\bFCO\b`), "FRASCO"},
	{regexp.MustCompile(`\bCAPS\b`), "CAPSULA"},
	{regexp.MustCompile(`\bPDA\b`), "POMADA"},
	// Units and others
	{regexp.MustCompile(`\bAG\b`), "AGUA"},
	{regexp.MustCompile(`\bDEST\b`), "DESTILADA"},
	{regexp.MustCompile(`\bSOL[.\s]FISIOL\b`), "SOLUCION FISIOLOGICA"},
}

var (
	digitUnitRe  = regexp.MustCompile(`(\d+)\s*(MG|G|ML|UI|MCG|GRS|GR)`)
	nonAlnumRe   = regexp.MustCompile(`[^A-Z0-9\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Description canonicalizes a raw medication description: uppercase, expand
// known abbreviations, separate digit runs from unit tokens, strip everything
// outside [A-Z0-9 ] and collapse whitespace. Deterministic and idempotent;
// empty input normalizes to the empty string.
func Description(desc string) string {
	normalized := strings.ToUpper(strings.TrimSpace(desc))

	for _, r := range replacements {
		normalized = r.re.ReplaceAllString(normalized, r.repl)
	}

	normalized = digitUnitRe.ReplaceAllString(normalized, "$1 $2")
	normalized = nonAlnumRe.ReplaceAllString(normalized, " ")
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")

	return strings.TrimSpace(normalized)
}

// Tokens returns the normalized description split into words.
func Tokens(desc string) []string {
	n := Description(desc)
	if n == "" {
		return nil
	}
	return strings.Fields(n)
}
