// Package quote prices turn-key installation offers from capacity and a rate card.
package quote

import (
	_ "embed"
	"math"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/luminous-energy/plant-cli/internal/model"
)

//go:embed rates.yaml
var defaultRatesYAML []byte

// ItemRate prices one line of the rate card. PerKW lines scale with plant
// capacity; Fixed lines are flat.
type ItemRate struct {
	Name  string  `yaml:"name"`
	Unit  string  `yaml:"unit"`
	PerKW float64 `yaml:"per_kw"`
	Fixed float64 `yaml:"fixed"`
}

// Tier grants a volume discount on capacity-scaled lines.
type Tier struct {
	MinKW    float64 `yaml:"min_kw"`
	Discount float64 `yaml:"discount"`
}

// Rates is the full rate card.
type Rates struct {
	Currency string     `yaml:"currency"`
	TaxRate  float64    `yaml:"tax_rate"`
	Items    []ItemRate `yaml:"items"`
	Tiers    []Tier     `yaml:"tiers"`
}

// DefaultRates returns the embedded rate card.
func DefaultRates() (Rates, error) {
	var r Rates
	if err := yaml.Unmarshal(defaultRatesYAML, &r); err != nil {
		return Rates{}, eris.Wrap(err, "quote: parse embedded rates")
	}
	return r, nil
}

// LoadRates reads a rate card from a YAML file.
func LoadRates(path string) (Rates, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rates{}, eris.Wrapf(err, "quote: read rates %s", path)
	}
	var r Rates
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return Rates{}, eris.Wrapf(err, "quote: parse rates %s", path)
	}
	return r, nil
}

// Calculator prices quotes against a rate card.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	c := &Calculator{rates: rates}
	sort.Slice(c.rates.Tiers, func(i, j int) bool {
		return c.rates.Tiers[i].MinKW < c.rates.Tiers[j].MinKW
	})
	return c
}

// discountFor returns the volume discount for the given capacity. The highest
// tier at or below the capacity wins.
func (c *Calculator) discountFor(capacityKW float64) float64 {
	var discount float64
	for _, t := range c.rates.Tiers {
		if capacityKW >= t.MinKW {
			discount = t.Discount
		}
	}
	return discount
}

// For prices a quote for the given capacity. Amounts are rounded to whole NTD
// per line; tax is the configured business tax on the subtotal.
func (c *Calculator) For(projectID string, capacityKW float64) (*model.Quote, error) {
	if capacityKW <= 0 {
		return nil, eris.Errorf("quote: capacity must be positive, got %.2f", capacityKW)
	}

	discount := c.discountFor(capacityKW)

	var items []model.QuoteItem
	var subtotal float64
	for _, rate := range c.rates.Items {
		var item model.QuoteItem
		switch {
		case rate.PerKW > 0:
			unitPrice := rate.PerKW * (1 - discount)
			item = model.QuoteItem{
				Name:      rate.Name,
				Unit:      rate.Unit,
				Quantity:  capacityKW,
				UnitPrice: math.Round(unitPrice),
				Amount:    math.Round(unitPrice * capacityKW),
			}
		case rate.Fixed > 0:
			item = model.QuoteItem{
				Name:      rate.Name,
				Unit:      rate.Unit,
				Quantity:  1,
				UnitPrice: rate.Fixed,
				Amount:    rate.Fixed,
			}
		default:
			continue
		}
		subtotal += item.Amount
		items = append(items, item)
	}

	tax := math.Round(subtotal * c.rates.TaxRate)
	return &model.Quote{
		ProjectID:  projectID,
		CapacityKW: capacityKW,
		Items:      items,
		Subtotal:   subtotal,
		Tax:        tax,
		Total:      subtotal + tax,
		Currency:   c.rates.Currency,
	}, nil
}
