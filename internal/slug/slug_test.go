package slug

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"Validity range", "Válido de 01/01 até 07/01", 80, "Válido_de_01_01_até_07_01"},
		{"Unsafe characters", `a\b:c"d<e>f|g*h?i`, 80, "a_b_c_d_e_f_g_h_i"},
		{"Newlines and tabs", "Ofertas\nválidas\taté 10/10", 80, "Ofertas_válidas_até_10_10"},
		{"Surrounding space", "  semana  ", 80, "semana"},
		{"Empty", "", 80, Placeholder},
		{"Only separators", " / : ", 80, Placeholder},
		{"Truncated", "Válido de 01/01 até 07/01", 10, "Válido_de"},
		{"Default length", strings.Repeat("x", 200), 0, strings.Repeat("x", DefaultMaxLen)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input, tt.maxLen))
		})
	}
}

func TestSanitizeNeverProducesUnsafeNames(t *testing.T) {
	inputs := []string{
		"Válido de 01/01 até 07/01",
		`C:\Users\loja`,
		"<script>alert('x')</script>",
		"ofertas | semana | 12:00",
		"\"aspas\" e   espaços",
		"../../etc/passwd",
	}

	for _, in := range inputs {
		out := Sanitize(in, 40)
		assert.NotContains(t, out, "/", in)
		assert.NotContains(t, out, `\`, in)
		assert.NotContains(t, out, ":", in)
		assert.NotContains(t, out, `"`, in)
		assert.NotContains(t, out, "<", in)
		assert.NotContains(t, out, ">", in)
		assert.NotContains(t, out, "|", in)
		assert.False(t, strings.ContainsAny(out, " \t\n\r"), in)
		assert.LessOrEqual(t, utf8.RuneCountInString(out), 40, in)
		assert.NotEqual(t, "..", out)
	}
}

func TestStripAccents(t *testing.T) {
	assert.Equal(t, "Sao Luis", StripAccents("São Luís"))
	assert.Equal(t, "Maranhao", StripAccents("Maranhão"))
	assert.Equal(t, "Vitoria da Conquista", StripAccents("Vitória da Conquista"))
	assert.Equal(t, "plain", StripAccents("plain"))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "ceara", Fold("  Ceará "))
	assert.Equal(t, Fold("PARAÍBA"), Fold("paraiba"))
}

func TestPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Assaí Bezerra M (Fortaleza)", "Assai_Bezerra_M_Fortaleza"},
		{"João Pessoa", "Joao_Pessoa"},
		{"Belém Portal da Amazônia", "Belem_Portal_da_Amazonia"},
		{"Recife, Avenida / Recife", "Recife_Avenida_Recife"},
		{"   ", "loja"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Path(tt.input))
		})
	}
}

func TestFileName(t *testing.T) {
	at := time.Date(2026, 10, 19, 10, 15, 0, 0, time.UTC)

	assert.Equal(t, "encarte_j01_p003_s01_20261019T101500Z.jpg", FileName("encarte", 1, 3, 1, at, ".JPG"))
	assert.Equal(t, "encarte_j02_p010_s02_20261019T101500Z.pdf", FileName("", 2, 10, 2, at, "pdf"))
	assert.Equal(t, "encarte_j01_p001_s01_20261019T101500Z.bin", FileName("encarte", 1, 1, 1, at, ""))
}
