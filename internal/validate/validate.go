// internal/validate/validate.go

// Package validate scores aggregated macro data against physical and
// arithmetic invariants. Deterministic and side-effect free; the penalty
// factors and their compounding order are part of the observable contract.
package validate

import (
	"fmt"
	"strings"

	"macro-pipeline/internal/models"
)

// Warning types attached by Summary.
const (
	WarnLowConfidenceItems     = "low_confidence_items"
	WarnHighCaloriesPerItem    = "high_calories_per_item"
	WarnCalorieFormulaMismatch = "calorie_formula_mismatch"
	WarnZeroCalories           = "zero_calories"
	WarnNegativeMacros         = "negative_macros"
	WarnNoMacroData            = "no_macro_data"
	WarnFiberExceedsCarbs      = "fiber_exceeds_carbs"
)

const (
	lowItemConfidenceCutoff = 0.7
	avgKcalPerItemCeiling   = 1000.0
	aggregateRatioLow       = 0.8
	aggregateRatioHigh      = 1.2
	itemRatioLow            = 0.7
	itemRatioHigh           = 1.3
	validConfidenceFloor    = 0.5
	clarificationBelow      = 0.7
)

// Summary validates an aggregated MacroSummary. Each failed check compounds
// a multiplicative confidence penalty; hard physical violations force
// confidence to zero.
func Summary(summary models.MacroSummary) models.ValidationResult {
	var warnings []models.Warning
	confidence := 1.0

	// Low-confidence items drag the whole summary down.
	var lowNames []string
	for _, item := range summary.Items {
		if item.Confidence > 0 && item.Confidence < lowItemConfidenceCutoff {
			lowNames = append(lowNames, item.Name)
		}
	}
	if len(lowNames) > 0 {
		warnings = append(warnings, models.Warning{
			Type:    WarnLowConfidenceItems,
			Message: fmt.Sprintf("Uncertain about: %s", strings.Join(lowNames, ", ")),
		})
		confidence *= 0.8
	}

	// Unusually high calories per item usually means a quantity slip.
	if len(summary.Items) > 0 {
		avg := summary.Totals.Kcal / float64(len(summary.Items))
		if avg > avgKcalPerItemCeiling {
			warnings = append(warnings, models.Warning{
				Type:    WarnHighCaloriesPerItem,
				Message: "Some items have unusually high calories - please verify quantities",
			})
			confidence *= 0.9
		}
	}

	// 4/4/9 rule at aggregate tolerance.
	ratio := 1.0
	if summary.Totals.Kcal > 0 {
		ratio = summary.Totals.CalculatedKcal() / summary.Totals.Kcal
	}
	if ratio < aggregateRatioLow || ratio > aggregateRatioHigh {
		warnings = append(warnings, models.Warning{
			Type:    WarnCalorieFormulaMismatch,
			Message: "Macro totals don't match calorie total (data inconsistency detected)",
		})
		confidence *= 0.7
	}

	if summary.Totals.Kcal <= 0 {
		warnings = append(warnings, models.Warning{
			Type:    WarnZeroCalories,
			Message: "No calories calculated - check food items",
		})
		confidence = 0
	}

	if summary.Totals.ProteinG < 0 || summary.Totals.FatG < 0 || summary.Totals.CarbsG < 0 {
		warnings = append(warnings, models.Warning{
			Type:    WarnNegativeMacros,
			Message: "Negative macro values detected - invalid data",
		})
		confidence = 0
	}

	if summary.Totals.ProteinG+summary.Totals.FatG+summary.Totals.CarbsG <= 0 {
		warnings = append(warnings, models.Warning{
			Type:    WarnNoMacroData,
			Message: "All macros are zero - no nutrition data found",
		})
		confidence = 0
	}

	// Fiber is a carbohydrate; exceeding total carbs is physically impossible.
	if summary.Totals.FiberG > summary.Totals.CarbsG {
		warnings = append(warnings, models.Warning{
			Type:    WarnFiberExceedsCarbs,
			Message: "Fiber exceeds total carbs (data error)",
		})
		confidence *= 0.5
	}

	return models.ValidationResult{
		Valid:              confidence > validConfidenceFloor,
		Confidence:         confidence,
		Warnings:           warnings,
		NeedsClarification: confidence < clarificationBelow,
	}
}

// Item applies basic field and sanity checks to a single resolved item. The
// 4/4/9 tolerance is looser than the aggregate check since single-item noise
// is expected to be larger.
func Item(item models.ResolvedNutrition) models.ItemValidation {
	var issues []string

	if strings.TrimSpace(item.Name) == "" {
		issues = append(issues, "Empty food name")
	}
	if item.Quantity <= 0 {
		issues = append(issues, "Invalid quantity (must be > 0)")
	}
	if strings.TrimSpace(item.Unit) == "" {
		issues = append(issues, "Missing unit")
	}

	if item.Macros.Kcal < 0 {
		issues = append(issues, "Negative calories")
	}
	if item.Macros.ProteinG < 0 {
		issues = append(issues, "Negative protein")
	}
	if item.Macros.FatG < 0 {
		issues = append(issues, "Negative fat")
	}
	if item.Macros.CarbsG < 0 {
		issues = append(issues, "Negative carbs")
	}
	if item.Macros.FiberG < 0 {
		issues = append(issues, "Negative fiber")
	}

	ratio := 1.0
	if item.Macros.Kcal > 0 {
		ratio = item.Macros.CalculatedKcal() / item.Macros.Kcal
	}
	if ratio < itemRatioLow || ratio > itemRatioHigh {
		issues = append(issues, "Calories don't match macros (4/4/9 rule violated)")
	}

	if item.Macros.FiberG > item.Macros.CarbsG {
		issues = append(issues, "Fiber exceeds carbs (impossible)")
	}

	return models.ItemValidation{
		Valid:  len(issues) == 0,
		Issues: issues,
	}
}
