// Package retailers holds one scraper per supermarket chain. Each drives the
// retailer's store locator and flyer widget through a shared Env.
package retailers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/maltedev/encarte-scraper/internal/models"
	"github.com/maltedev/encarte-scraper/internal/slug"
)

var (
	// ErrNotFound marks a state, city or store that the site does not offer.
	// Visits failing with it are logged and skipped without a debug dump.
	ErrNotFound = errors.New("not found")

	ErrUnknownRetailer = errors.New("unknown retailer")
)

type Retailer interface {
	Info() models.Retailer
	// Scrape visits every configured store. The error is reserved for
	// failures that stop the whole run, such as the entry page not loading.
	Scrape(ctx context.Context, env *Env) ([]models.StoreReport, error)
}

var registry = map[string]func() Retailer{
	"assai":         func() Retailer { return NewAssai() },
	"atacadao":      func() Retailer { return NewAtacadao() },
	"atakarejo":     func() Retailer { return NewAtakarejo() },
	"cometa":        func() Retailer { return NewCometa() },
	"frangolandia":  func() Retailer { return NewFrangolandia() },
	"gbarbosa":      func() Retailer { return NewGBarbosa() },
	"novoatacarejo": func() Retailer { return NewNovoAtacarejo() },
}

// Key normalises user input such as "G-Barbosa" or "Novo Atacarejo".
func Key(name string) string {
	var b strings.Builder
	for _, r := range slug.Fold(name) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Get(name string) (Retailer, error) {
	factory, ok := registry[Key(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRetailer, name)
	}
	return factory(), nil
}

func All() []Retailer {
	out := make([]Retailer, 0, len(registry))
	for _, name := range Names() {
		out = append(out, registry[name]())
	}
	return out
}
