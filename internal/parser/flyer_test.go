package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractValidity(t *testing.T) {
	p := NewFlyerParser()

	tests := []struct {
		name     string
		html     string
		rule     ValidityRule
		expected string
	}{
		{
			name:     "Keyword in heading",
			html:     `<html><body><h3>Nossas lojas</h3><h3>Validade: 01/10 a 07/10</h3></body></html>`,
			rule:     ValidityRule{Selectors: []string{"h3", "p"}, Keyword: "validade"},
			expected: "Validade: 01/10 a 07/10",
		},
		{
			name:     "Day and month only",
			html:     `<html><body><p>Bem-vindo</p><p>  Ofertas de 12/09   até 18/09 </p></body></html>`,
			rule:     ValidityRule{Selectors: []string{"p"}, Keyword: "valid", Date: DayMonth},
			expected: "Ofertas de 12/09 até 18/09",
		},
		{
			name:     "Full date required",
			html:     `<html><body><p>Rua 12/3</p><p>Até 07/10/2026</p></body></html>`,
			rule:     ValidityRule{Selectors: []string{"p"}, Date: FullDate},
			expected: "Até 07/10/2026",
		},
		{
			name:     "Accented keyword",
			html:     `<div class="ofertas-tab-validade"><span>Válido até domingo</span></div>`,
			rule:     ValidityRule{Selectors: []string{"div.ofertas-tab-validade"}, Keyword: "valid"},
			expected: "Válido até domingo",
		},
		{
			name:     "Contains selector narrows candidates",
			html:     `<p>Atendimento: (77) 3422-1234</p><p>Validade: 01/10/2026 a 07/10/2026</p>`,
			rule:     ValidityRule{Selectors: []string{`p:contains("Validade")`}, Date: DayMonth},
			expected: "Validade: 01/10/2026 a 07/10/2026",
		},
		{
			name:     "Body fallback",
			html:     `<html><body><div>Confira. Validade das ofertas: 05/10/2026 enquanto durarem os estoques</div></body></html>`,
			rule:     ValidityRule{Selectors: []string{"h3"}, Keyword: "validade", Body: BodyValidity},
			expected: "Validade das ofertas: 05/10/2026 enquanto durarem os estoques",
		},
		{
			name:     "No body fallback without pattern",
			html:     `<html><body><div>Validade das ofertas: 05/10/2026</div></body></html>`,
			rule:     ValidityRule{Selectors: []string{"h3"}, Keyword: "validade"},
			expected: "",
		},
		{
			name:     "Nothing found",
			html:     `<html><body><h3>Encartes</h3></body></html>`,
			rule:     ValidityRule{Selectors: []string{"h3", "p"}, Keyword: "validade", Date: FullDate, Body: BodyValidity},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.ExtractValidity(tt.html, tt.rule))
		})
	}
}

func TestFirstText(t *testing.T) {
	p := NewFlyerParser()
	html := `<a><span class="elementor-button-text">  </span></a><a><span class="elementor-button-text">De 10/10 a 16/10</span></a>`

	assert.Equal(t, "De 10/10 a 16/10", p.FirstText(html, "span.elementor-button-text"))
	assert.Equal(t, "", p.FirstText(html, "p.text-xs.text-neutral-400"))
}

func TestExtractLinks(t *testing.T) {
	p := NewFlyerParser()
	html := `<html><body>
		<a class="button-download-ofertas" href="/wp-content/uploads/2026/10/encarte.pdf">Baixar</a>
		<a href="https://cdn.atakarejo.com.br/ofertas-semana.pdf">PDF</a>
		<a href="/wp-content/uploads/2026/10/encarte.pdf">Duplicado</a>
		<a href="/contato">Contato</a>
		<a class="button-download-ofertas">Sem href</a>
	</body></html>`

	links, err := p.ExtractLinks(html, "https://atakarejo.com.br/cidade/vitoria-da-conquista",
		"a.button-download-ofertas, a[href*='.pdf']", "href")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://atakarejo.com.br/wp-content/uploads/2026/10/encarte.pdf",
		"https://cdn.atakarejo.com.br/ofertas-semana.pdf",
	}, links)
}

func TestExtractImageSources(t *testing.T) {
	p := NewFlyerParser()
	html := `<img src="https://frangolandia.com/wp-content/uploads/2026/10/p1.jpg">
		<img src="https://frangolandia.com/wp-content/uploads/2026/10/p2.jpg">
		<img src="https://frangolandia.com/wp-content/themes/logo.png">`

	links, err := p.ExtractLinks(html, "https://frangolandia.com/encartes/semana/", "img[src*='uploads/20']", "src")
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestFindCard(t *testing.T) {
	p := NewFlyerParser()
	html := `<div data-testid="store-card"><h1>Atacadão Maceió Farol</h1><a href="/loja/1">Ver</a></div>
		<div data-testid="store-card"><h1>Atacadão Maceió Praia</h1><a href="/loja/2">Ver</a></div>
		<div data-testid="store-card"><h1>Atacadão São Luís</h1><a href="/loja/3">Ver</a></div>`

	idx, title := p.FindCard(html, "[data-testid='store-card']", "h1", "Maceió Praia")
	assert.Equal(t, 1, idx)
	assert.Equal(t, "Atacadão Maceió Praia", title)

	idx, _ = p.FindCard(html, "[data-testid='store-card']", "h1", "sao luis")
	assert.Equal(t, 2, idx)

	idx, title = p.FindCard(html, "[data-testid='store-card']", "h1", "Teresina Primavera")
	assert.Equal(t, -1, idx)
	assert.Empty(t, title)
}

func TestFlyerParserImplementsParser(t *testing.T) {
	var _ Parser = NewFlyerParser()
}
