package domain

import (
	"sort"
	"strings"
)

const (
	MinGiftQuantity = 1
	MaxGiftQuantity = 999
)

// Gift is one catalog entry.
type Gift struct {
	Type     string `json:"type"`
	UnitCost int64  `json:"unit_cost"`
	Symbol   string `json:"symbol"`
}

// GiftCatalog maps gift type to its definition.
type GiftCatalog map[string]Gift

// DefaultGiftCatalog returns the built-in catalog.
func DefaultGiftCatalog() GiftCatalog {
	return GiftCatalog{
		"rose":      {Type: "rose", UnitCost: 1, Symbol: "🌹"},
		"heart":     {Type: "heart", UnitCost: 10, Symbol: "❤️"},
		"star":      {Type: "star", UnitCost: 50, Symbol: "⭐"},
		"rocket":    {Type: "rocket", UnitCost: 200, Symbol: "🚀"},
		"supernova": {Type: "supernova", UnitCost: 500, Symbol: "🌟"},
	}
}

// Lookup finds a gift by case-insensitive type.
func (c GiftCatalog) Lookup(giftType string) (Gift, bool) {
	g, ok := c[strings.ToLower(strings.TrimSpace(giftType))]
	return g, ok
}

// List returns the catalog ordered by unit cost.
func (c GiftCatalog) List() []Gift {
	out := make([]Gift, 0, len(c))
	for _, g := range c {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UnitCost != out[j].UnitCost {
			return out[i].UnitCost < out[j].UnitCost
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// ClampQuantity bounds a gift quantity to [MinGiftQuantity, MaxGiftQuantity].
func ClampQuantity(q int64) int64 {
	if q < MinGiftQuantity {
		return MinGiftQuantity
	}
	if q > MaxGiftQuantity {
		return MaxGiftQuantity
	}
	return q
}
