// internal/verify/verify_test.go
package verify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macro-pipeline/internal/models"
)

func mealSummary() models.MacroSummary {
	items := []models.ResolvedNutrition{
		{
			Name: "grilled chicken breast", Quantity: 1, Unit: "count",
			GramsUsed: 170, BasisUsed: models.BasisCooked,
			Macros: models.Macros{Kcal: 280, ProteinG: 53, CarbsG: 0, FatG: 6},
		},
		{
			Name: "white rice", Quantity: 200, Unit: "g",
			GramsUsed: 200, BasisUsed: models.BasisCooked,
			Macros: models.Macros{Kcal: 260, ProteinG: 5.4, CarbsG: 56, FatG: 0.6, FiberG: 0.8},
		},
	}

	summary := models.MacroSummary{Items: items}
	for _, item := range items {
		summary.Totals = summary.Totals.Add(item.Macros)
	}
	return summary
}

func TestBuildBasicPayload(t *testing.T) {
	payload := Build(mealSummary(), Options{MealSlot: "lunch"})

	require.Len(t, payload.Items, 2)
	assert.Equal(t, "lunch", payload.MealSlot)
	assert.Nil(t, payload.TEF)
	assert.Nil(t, payload.TDEE)

	chicken := payload.Items[0]
	assert.Equal(t, 170.0, chicken.Grams)
	assert.Equal(t, models.BasisCooked, chicken.Basis)
	assert.Equal(t, 280.0, chicken.Macros.Kcal)

	assert.Equal(t, 540.0, payload.Totals.Kcal)
	assert.InDelta(t, 58.4, payload.Totals.ProteinG, 0.001)
}

func TestBuildDoesNotMutateSummary(t *testing.T) {
	summary := mealSummary()
	before := summary.Items[0].Macros

	Build(summary, Options{IncludeTEF: true})
	assert.Equal(t, before, summary.Items[0].Macros)
}

func TestComputeTEF(t *testing.T) {
	// 53+5.4 protein, 56 carbs, 6.6 fat.
	tef := ComputeTEF(models.Macros{Kcal: 540, ProteinG: 58.4, CarbsG: 56, FatG: 6.6})

	assert.InDelta(t, 58.4, tef.Protein, 0.001)  // 58.4*4*0.25
	assert.InDelta(t, 17.9, tef.Carbs, 0.001)    // 56*4*0.08
	assert.InDelta(t, 1.8, tef.Fat, 0.001)       // 6.6*9*0.03
	assert.InDelta(t, 78.1, tef.TEFKcal, 0.001)
	assert.InDelta(t, 461.9, tef.NetKcal, 0.001)
}

func TestComputeTEFZero(t *testing.T) {
	tef := ComputeTEF(models.Macros{})
	assert.Equal(t, 0.0, tef.TEFKcal)
	assert.Equal(t, 0.0, tef.NetKcal)
}

func TestCompareBudgetOnTrack(t *testing.T) {
	// 2000 target, 1300 consumed, 540 meal leaves 160, inside the window.
	cmp := CompareBudget(540, DailyBudget{TargetKcal: 2000, ConsumedKcal: 1300})

	assert.True(t, cmp.OnTrack)
	assert.InDelta(t, 160, cmp.RemainingKcal, 0.001)
	assert.InDelta(t, 27, cmp.MealPctOfDaily, 0.001)
	assert.Equal(t, "On track", cmp.Message)
}

func TestCompareBudgetOverBudget(t *testing.T) {
	cmp := CompareBudget(800, DailyBudget{TargetKcal: 2000, ConsumedKcal: 1500})

	assert.False(t, cmp.OnTrack)
	assert.InDelta(t, -300, cmp.RemainingKcal, 0.001)
	assert.Equal(t, "This puts you 300 kcal over today's budget", cmp.Message)
}

func TestCompareBudgetUnderBudget(t *testing.T) {
	cmp := CompareBudget(300, DailyBudget{TargetKcal: 2000, ConsumedKcal: 500})

	assert.False(t, cmp.OnTrack)
	assert.Equal(t, "You still have 1200 kcal left today", cmp.Message)
}

func TestCompareBudgetWindowEdges(t *testing.T) {
	// Exactly 200 under and 200 over both count as on track.
	assert.True(t, CompareBudget(800, DailyBudget{TargetKcal: 2000, ConsumedKcal: 1000}).OnTrack)
	assert.True(t, CompareBudget(1200, DailyBudget{TargetKcal: 2000, ConsumedKcal: 1000}).OnTrack)
	assert.False(t, CompareBudget(1201, DailyBudget{TargetKcal: 2000, ConsumedKcal: 1000}).OnTrack)
}

func TestRenderText(t *testing.T) {
	budget := &DailyBudget{TargetKcal: 2000, ConsumedKcal: 1300}
	payload := Build(mealSummary(), Options{MealSlot: "lunch", IncludeTEF: true, Budget: budget})

	out := RenderText(payload)

	assert.True(t, strings.HasPrefix(out, "Review and confirm:"))
	assert.Contains(t, out, "1 grilled chicken breast (170g cooked)")
	assert.Contains(t, out, "200 g white rice (200g cooked)")
	assert.Contains(t, out, "Total: 540 kcal")
	assert.Contains(t, out, "TEF:")
	assert.Contains(t, out, "Net:")
	assert.Contains(t, out, "✓ On track")
	assert.True(t, strings.HasSuffix(out, "[Confirm & Log]"))
}

func TestRenderTextDeterministic(t *testing.T) {
	payload := Build(mealSummary(), Options{IncludeTEF: true})
	assert.Equal(t, RenderText(payload), RenderText(payload))
}
