// internal/format/format.go

// Package format renders macro payloads into the fixed bullet template.
// Byte-stable by construction: identical input always produces identical
// output, and the numeric block is wrapped in protected-region markers the
// downstream polish pass must not touch.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"macro-pipeline/internal/models"
)

const (
	ProtectStart = "[[PROTECT_BULLETS_START]]"
	ProtectEnd   = "[[PROTECT_BULLETS_END]]"

	// The call to action stays outside the protected region so its phrasing
	// can still be varied by the polish pass.
	logPrompt = `Say "Log All" or "Log (food item)"`
)

// Summary renders the full macro response: protected per-item and totals
// blocks, then the unprotected log prompt.
func Summary(summary models.MacroSummary) string {
	var lines []string

	lines = append(lines, ProtectStart)

	for _, item := range summary.Items {
		lines = append(lines, itemHeader(item))
		lines = append(lines, macroBullets(item.Macros, false)...)
		lines = append(lines, "")
	}

	lines = append(lines, "Totals")
	lines = append(lines, macroBullets(summary.Totals, true)...)
	lines = append(lines, "")

	lines = append(lines, ProtectEnd)
	lines = append(lines, "", logPrompt)

	return strings.Join(lines, "\n")
}

func itemHeader(item models.ResolvedNutrition) string {
	qty := formatQty(item.Quantity)
	unit := item.Unit
	if unit == "" || unit == "count" || unit == "piece" {
		return fmt.Sprintf("%s %s", qty, item.Name)
	}
	return fmt.Sprintf("%s %s %s", qty, unit, item.Name)
}

// macroBullets emits the fixed field order; the Fiber bullet appears only
// when fiber is present.
func macroBullets(m models.Macros, totals bool) []string {
	calories := fmt.Sprintf("• Calories: %s kcal", formatKcal(m.Kcal))
	if totals {
		calories = fmt.Sprintf("• Calories ≈ %s kcal", formatKcal(m.Kcal))
	}
	lines := []string{
		calories,
		fmt.Sprintf("• Protein: %s g", formatGrams(m.ProteinG)),
		fmt.Sprintf("• Carbs: %s g", formatGrams(m.CarbsG)),
		fmt.Sprintf("• Fat: %s g", formatGrams(m.FatG)),
	}
	if m.FiberG > 0 {
		lines = append(lines, fmt.Sprintf("• Fiber: %s g", formatGrams(m.FiberG)))
	}
	return lines
}

// formatKcal rounds to the nearest integer and groups thousands with a
// space: 1210 renders as "1 210".
func formatKcal(n float64) string {
	s := strconv.FormatInt(int64(math.Round(n)), 10)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + " " + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s
}

// formatGrams rounds to one decimal and strips a trailing ".0".
func formatGrams(n float64) string {
	s := strconv.FormatFloat(math.Round(n*10)/10, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}

// formatQty prints a quantity without trailing zeros: 3 → "3", 0.5 → "0.5".
func formatQty(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
