package credits

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var plansYAML []byte

// Plan is a purchasable credit pack.
type Plan struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Credits    int    `yaml:"credits" json:"credits"`
	PriceCents int64  `yaml:"priceCents" json:"priceCents"`
	Currency   string `yaml:"currency" json:"currency"`
	Popular    bool   `yaml:"popular,omitempty" json:"popular,omitempty"`
}

type Catalog struct {
	plans []Plan
}

// LoadCatalog parses a YAML plan list.
func LoadCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse plans: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Plans))
	for _, p := range doc.Plans {
		if p.ID == "" || p.Credits <= 0 || p.PriceCents <= 0 {
			return nil, fmt.Errorf("invalid plan %q", p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate plan %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return &Catalog{plans: doc.Plans}, nil
}

// DefaultCatalog returns the embedded plan list.
func DefaultCatalog() *Catalog {
	cat, err := LoadCatalog(plansYAML)
	if err != nil {
		panic(err)
	}
	return cat
}

func (c *Catalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

func (c *Catalog) Find(id string) (Plan, error) {
	for _, p := range c.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, ErrUnknownPlan
}
