// internal/verify/verify.go

// Package verify builds the user-facing confirmation payload shown before a
// meal is committed. Strictly presentational: it reads the MacroSummary and
// never mutates it.
package verify

import (
	"fmt"
	"math"
	"strings"

	"macro-pipeline/internal/models"
)

// Thermic-effect rates per macro: fraction of the macro's energy spent
// digesting it.
const (
	tefProteinRate = 0.25
	tefCarbsRate   = 0.08
	tefFatRate     = 0.03
)

// onTrackWindowKcal is how far from the daily budget a meal may land while
// still counting as on track.
const onTrackWindowKcal = 200.0

// DailyBudget is the caller-supplied daily target and running consumption,
// used for the optional budget comparison.
type DailyBudget struct {
	TargetKcal   float64
	ConsumedKcal float64
}

// Options control the optional sections of the confirmation view.
type Options struct {
	MealSlot   string
	IncludeTEF bool
	Budget     *DailyBudget
}

// Build assembles the confirmation payload: per-item rows annotated with
// grams and basis, totals, and the optional TEF and budget sections.
func Build(summary models.MacroSummary, opts Options) models.VerificationPayload {
	items := make([]models.VerificationItem, len(summary.Items))
	for i, item := range summary.Items {
		items[i] = models.VerificationItem{
			Name:  item.Name,
			Qty:   item.Quantity,
			Unit:  item.Unit,
			Grams: math.Round(item.GramsUsed),
			Basis: item.BasisUsed,
			Macros: models.Macros{
				Kcal:     math.Round(item.Macros.Kcal),
				ProteinG: round1(item.Macros.ProteinG),
				CarbsG:   round1(item.Macros.CarbsG),
				FatG:     round1(item.Macros.FatG),
				FiberG:   round1(item.Macros.FiberG),
			},
		}
	}

	payload := models.VerificationPayload{
		Items: items,
		Totals: models.Macros{
			Kcal:     math.Round(summary.Totals.Kcal),
			ProteinG: round1(summary.Totals.ProteinG),
			CarbsG:   round1(summary.Totals.CarbsG),
			FatG:     round1(summary.Totals.FatG),
			FiberG:   round1(summary.Totals.FiberG),
		},
		MealSlot: opts.MealSlot,
	}

	if opts.IncludeTEF {
		tef := ComputeTEF(summary.Totals)
		payload.TEF = &tef
	}
	if opts.Budget != nil {
		tdee := CompareBudget(summary.Totals.Kcal, *opts.Budget)
		payload.TDEE = &tdee
	}

	return payload
}

// ComputeTEF estimates the thermic effect of the meal. Fiber is already
// included in carbs; it is not counted separately.
func ComputeTEF(totals models.Macros) models.TEFData {
	protein := round1(totals.ProteinG * 4 * tefProteinRate)
	carbs := round1(totals.CarbsG * 4 * tefCarbsRate)
	fat := round1(totals.FatG * 9 * tefFatRate)
	tef := round1(protein + carbs + fat)

	return models.TEFData{
		Protein: protein,
		Carbs:   carbs,
		Fat:     fat,
		TEFKcal: tef,
		NetKcal: round1(totals.Kcal - tef),
	}
}

// CompareBudget reports where this meal leaves the user against their daily
// calorie target. On track means landing within the ±200 kcal window.
func CompareBudget(mealKcal float64, budget DailyBudget) models.TDEEComparison {
	remaining := budget.TargetKcal - budget.ConsumedKcal
	remainingAfter := remaining - mealKcal
	onTrack := math.Abs(remainingAfter) <= onTrackWindowKcal

	pct := 0.0
	if budget.TargetKcal > 0 {
		pct = round1(mealKcal / budget.TargetKcal * 100)
	}

	message := "On track"
	if !onTrack {
		if remainingAfter < 0 {
			message = fmt.Sprintf("This puts you %d kcal over today's budget", int(math.Round(-remainingAfter)))
		} else {
			message = fmt.Sprintf("You still have %d kcal left today", int(math.Round(remainingAfter)))
		}
	}

	return models.TDEEComparison{
		MealKcal:       mealKcal,
		ConsumedKcal:   budget.ConsumedKcal,
		TargetKcal:     budget.TargetKcal,
		RemainingKcal:  remainingAfter,
		MealPctOfDaily: pct,
		OnTrack:        onTrack,
		Message:        message,
	}
}

// RenderText produces the deterministic confirmation text for chat surfaces.
func RenderText(payload models.VerificationPayload) string {
	var lines []string

	lines = append(lines, "Review and confirm:", "")

	for _, item := range payload.Items {
		header := fmt.Sprintf("%s %s (%dg %s)", formatQty(item.Qty), item.Name, int(item.Grams), item.Basis)
		if item.Unit != "" && item.Unit != "count" && item.Unit != "piece" {
			header = fmt.Sprintf("%s %s %s (%dg %s)", formatQty(item.Qty), item.Unit, item.Name, int(item.Grams), item.Basis)
		}
		lines = append(lines, header)
		lines = append(lines, fmt.Sprintf("• Calories: %d kcal", int(item.Macros.Kcal)))
		lines = append(lines, fmt.Sprintf("• Protein: %s g", trim1(item.Macros.ProteinG)))
		lines = append(lines, fmt.Sprintf("• Carbs: %s g", trim1(item.Macros.CarbsG)))
		lines = append(lines, fmt.Sprintf("• Fat: %s g", trim1(item.Macros.FatG)))
		if item.Macros.FiberG > 0 {
			lines = append(lines, fmt.Sprintf("• Fiber: %s g", trim1(item.Macros.FiberG)))
		}
		lines = append(lines, "")
	}

	lines = append(lines, fmt.Sprintf("Total: %d kcal", int(payload.Totals.Kcal)))
	if payload.Totals.FiberG > 0 {
		lines = append(lines, fmt.Sprintf("Total fiber: %s g", trim1(payload.Totals.FiberG)))
	}

	if payload.TEF != nil {
		lines = append(lines, fmt.Sprintf("TEF: %d kcal", int(math.Round(payload.TEF.TEFKcal))))
		lines = append(lines, fmt.Sprintf("Net: %d kcal", int(math.Round(payload.TEF.NetKcal))))
	}

	lines = append(lines, "")

	if payload.TDEE != nil {
		lines = append(lines, fmt.Sprintf("Remaining today: %d kcal", int(math.Round(payload.TDEE.RemainingKcal))))
		if payload.TDEE.OnTrack {
			lines = append(lines, "✓ On track")
		} else {
			lines = append(lines, payload.TDEE.Message)
		}
		lines = append(lines, "")
	}

	lines = append(lines, "[Confirm & Log]")

	return strings.Join(lines, "\n")
}

func round1(n float64) float64 {
	return math.Round(n*10) / 10
}

func trim1(n float64) string {
	s := fmt.Sprintf("%.1f", n)
	return strings.TrimSuffix(s, ".0")
}

func formatQty(n float64) string {
	if n == math.Trunc(n) {
		return fmt.Sprintf("%d", int(n))
	}
	return strings.TrimRight(fmt.Sprintf("%g", n), "0")
}
