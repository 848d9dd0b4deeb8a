package retailers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maltedev/encarte-scraper/internal/parser"
)

func TestAtakarejoValidity(t *testing.T) {
	p := parser.NewFlyerParser()

	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "Phone number before validity",
			html:     `<p>Atendimento: (77) 3422-1234</p><p>Validade: 01/10/2026 a 07/10/2026</p>`,
			expected: "Validade: 01/10/2026 a 07/10/2026",
		},
		{
			name:     "Heading wins over paragraph",
			html:     `<p>Rua 10/12, Centro</p><h3>VALIDADE ATÉ 07/10/2026</h3><p>Validade: outra</p>`,
			expected: "VALIDADE ATÉ 07/10/2026",
		},
		{
			name:     "Offer block needs a full date",
			html:     `<div class="oferta-semana"><p>Loja 2/3</p><p>De 01/10/2026 a 07/10/2026</p></div>`,
			expected: "De 01/10/2026 a 07/10/2026",
		},
		{
			name:     "Body text",
			html:     `<div><span>Confira a validade das ofertas</span> 05/10/2026</div>`,
			expected: "validade das ofertas 05/10/2026",
		},
		{
			name:     "Street numbers alone",
			html:     `<p>Av. Brasil, 12-34</p><p>Telefone (77) 3422-1234</p>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.ExtractValidity(tt.html, atakarejoValidity))
		})
	}
}

func TestNovoAtacarejoValidity(t *testing.T) {
	p := parser.NewFlyerParser()

	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "Day and month range",
			html:     `<p>Bem-vindo</p><p>Ofertas de 12/09 até 18/09</p>`,
			expected: "Ofertas de 12/09 até 18/09",
		},
		{
			name:     "Heading",
			html:     `<h6>Validade das ofertas: domingo</h6><p>12/09</p>`,
			expected: "Validade das ofertas: domingo",
		},
		{
			name:     "No body fallback",
			html:     `<div>Validade: 05/10/2026</div>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.ExtractValidity(tt.html, novoAtacarejoValidity))
		})
	}
}
