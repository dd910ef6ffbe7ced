package extract

import (
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/WessleyAI/condo-ledger/engine/domain"
)

// Rule maps description keywords to a category and subcategory.
type Rule struct {
	Category    string
	Subcategory string
	Keywords    []string
}

// DefaultRules is the condominium keyword table. Earlier rules win.
var DefaultRules = []Rule{
	{"utilities", "power_supply", []string{"energia", "eletric", "cemig", "light", "copel"}},
	{"utilities", "water", []string{"agua", "água", "water", "saneamento", "sabesp", "copasa"}},
	{"utilities", "gas", []string{"gas", "gás", "ultragaz", "liquigás"}},
	{"utilities", "internet", []string{"internet", "telefon", "vivo", "tim", "oi"}},
	{"maintenance", "elevator", []string{"elevador", "elevator", "otis", "schindler", "atlas"}},
	{"maintenance", "cleaning", []string{"limpeza", "cleaning", "faxina"}},
	{"maintenance", "gardening", []string{"jardim", "garden", "paisagismo"}},
	{"maintenance", "repairs", []string{"reparo", "repair", "conserto", "manutencao", "manutenção"}},
	{"services", "security", []string{"seguranca", "segurança", "security", "portaria"}},
	{"services", "administration", []string{"administracao", "administração", "admin", "gestao", "gestão"}},
	{"services", "legal", []string{"juridico", "jurídico", "legal", "advogado"}},
	{"services", "accounting", []string{"contabil", "contábil", "accounting", "contador"}},
	{"supplies", "office", []string{"escritorio", "escritório", "office", "papelaria"}},
	{"supplies", "cleaning_supplies", []string{"material limpeza", "material de limpeza", "detergente", "sabao", "sabão"}},
	{"supplies", "maintenance_supplies", []string{"ferramenta", "material manutencao", "material de manutenção"}},
}

// Categorizer assigns categories by keyword. Matching runs in one pass over
// the description; the earliest rule with any matching keyword wins.
type Categorizer struct {
	matcher *ahocorasick.Matcher
	// owner maps a pattern index to its rule index.
	owner []int
	rules []Rule
}

// NewCategorizer builds a Categorizer. A nil rule list uses DefaultRules.
func NewCategorizer(rules []Rule) *Categorizer {
	if rules == nil {
		rules = DefaultRules
	}
	c := &Categorizer{rules: rules}
	var patterns []string
	for i, r := range rules {
		for _, k := range r.Keywords {
			patterns = append(patterns, strings.ToLower(k))
			c.owner = append(c.owner, i)
		}
	}
	if len(patterns) > 0 {
		c.matcher = ahocorasick.NewStringMatcher(patterns)
	}
	return c
}

// Categorize returns the category and subcategory for a description, or
// other/miscellaneous.
func (c *Categorizer) Categorize(description string) (category, subcategory string) {
	if c.matcher == nil {
		return domain.CategoryOther, domain.SubcategoryMisc
	}
	best := -1
	for _, hit := range c.matcher.MatchThreadSafe([]byte(strings.ToLower(description))) {
		if r := c.owner[hit]; best < 0 || r < best {
			best = r
		}
	}
	if best < 0 {
		return domain.CategoryOther, domain.SubcategoryMisc
	}
	return c.rules[best].Category, c.rules[best].Subcategory
}
