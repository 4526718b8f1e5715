package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescription(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"Paracetamol 500 MG Comprimidos", "PARACETAMOL 500 MG COMPRIMIDOS"},
		{"IBUPROFENO 400MG COMP.", "IBUPROFENO 400 MG COMPRIMIDO"},
		{"  Extra   Spaces  ", "EXTRA SPACES"},
		{"AG DEST X 10 ML.", "AGUA DESTILADA X 10 ML"},
		{"DICLOFENAC GTS", "DICLOFENAC GOTAS"},
		{"SOL FISIOL 500ML", "SOLUCION FISIOL 500 ML"},
		{"BACTROBAN 2% CREMA", "BACTROBAN 2 CREMA"},
		{"CEFTRIAXONA 1 G INY - FCO/AMP", "CEFTRIAXONA 1 G INYECTABLE FRASCO AMPOLLA"},
		{"", ""},
		{"   ", ""},
		{"---...---", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, Description(tc.in), "input %q", tc.in)
	}
}

func TestDescriptionIsIdempotent(t *testing.T) {
	inputs := []string{
		"Paracetamol 500 MG Comprimidos",
		"IBUPROFENO 400MG COMP.",
		"AG DEST X 10 ML.",
		"BAREX UNIPEG - SOBRES",
		"FADAMICINA 500 MG - COMP.",
		"",
		"ÁCIDO FÓLICO 5MG",
	}

	for _, in := range inputs {
		once := Description(in)
		assert.Equal(t, once, Description(once), "normalize(normalize(%q))", in)
	}
}

func TestDescriptionExpandsWholeWordsOnly(t *testing.T) {
	// COMPRIMIDO must not re-expand its COMP prefix, and brand names that
	// merely contain an abbreviation must stay untouched.
	assert.Equal(t, "COMPLEJO B", Description("COMPLEJO B"))
	assert.Equal(t, "AMPICILINA 500 MG", Description("AMPICILINA 500MG"))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"IBUPROFENO", "400", "MG", "COMPRIMIDO"}, Tokens("ibuprofeno 400mg comp"))
	assert.Nil(t, Tokens("   "))
}
