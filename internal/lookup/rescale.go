// internal/lookup/rescale.go
package lookup

import (
	"math"
	"strings"

	"macro-pipeline/internal/models"
)

// AdjustItemQuantity rescales an already-resolved item to a new quantity
// using the stored per-unit figures. Once grams-per-unit is known, changing
// the multiplier is a pure function, never another service call.
func AdjustItemQuantity(resolved models.ResolvedNutrition, newQty float64) models.ResolvedNutrition {
	perUnit := resolved.PerUnitMacros
	perUnitGrams := resolved.PerUnitGrams

	// Older payloads may predate the per-unit fields; derive them.
	if perUnitGrams <= 0 {
		qty := resolved.Quantity
		if qty <= 0 {
			qty = 1
		}
		perUnitGrams = resolved.GramsUsed / qty
		perUnit = models.Macros{
			Kcal:     resolved.Macros.Kcal / qty,
			ProteinG: resolved.Macros.ProteinG / qty,
			CarbsG:   resolved.Macros.CarbsG / qty,
			FatG:     resolved.Macros.FatG / qty,
			FiberG:   resolved.Macros.FiberG / qty,
		}
	}

	return models.ResolvedNutrition{
		Name:      resolved.Name,
		Quantity:  newQty,
		Unit:      resolved.Unit,
		GramsUsed: round1(perUnitGrams * newQty),
		BasisUsed: resolved.BasisUsed,
		Macros: models.Macros{
			Kcal:     math.Round(perUnit.Kcal * newQty),
			ProteinG: round1(perUnit.ProteinG * newQty),
			CarbsG:   round1(perUnit.CarbsG * newQty),
			FatG:     round1(perUnit.FatG * newQty),
			FiberG:   round1(perUnit.FiberG * newQty),
		},
		PerUnitMacros: perUnit,
		PerUnitGrams:  perUnitGrams,
		Brand:         resolved.Brand,
		Source:        resolved.Source,
		Confidence:    resolved.Confidence,
	}
}

// FindItemByName fuzzy-matches a resolved item: exact, then substring, then
// reverse substring.
func FindItemByName(items []models.ResolvedNutrition, searchName string) (models.ResolvedNutrition, bool) {
	search := strings.ToLower(strings.TrimSpace(searchName))

	for _, item := range items {
		if strings.ToLower(item.Name) == search {
			return item, true
		}
	}
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), search) {
			return item, true
		}
	}
	for _, item := range items {
		if strings.Contains(search, strings.ToLower(item.Name)) {
			return item, true
		}
	}
	return models.ResolvedNutrition{}, false
}
