// internal/aggregate/aggregate.go

// Package aggregate sums resolved nutrition data with full precision.
// Pure math: no I/O, no rounding, so the pipeline stays replayable.
package aggregate

import (
	"macro-pipeline/internal/models"
)

// Summarize builds a MacroSummary whose totals are the exact elementwise sum
// of the item macros. Re-aggregating the same items never changes the totals.
func Summarize(items []models.ResolvedNutrition) models.MacroSummary {
	var totals models.Macros
	for _, item := range items {
		totals = totals.Add(item.Macros)
	}
	return models.MacroSummary{
		Items:  items,
		Totals: totals,
	}
}
