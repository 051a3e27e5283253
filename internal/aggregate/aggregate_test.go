// internal/aggregate/aggregate_test.go
package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"macro-pipeline/internal/models"
)

func TestSummarizeTotalsAreElementwiseSums(t *testing.T) {
	items := []models.ResolvedNutrition{
		{Name: "chicken", Macros: models.Macros{Kcal: 280, ProteinG: 53, CarbsG: 0, FatG: 6}},
		{Name: "rice", Macros: models.Macros{Kcal: 260, ProteinG: 5.4, CarbsG: 56, FatG: 0.6, FiberG: 0.8}},
		{Name: "broccoli", Macros: models.Macros{Kcal: 55, ProteinG: 3.7, CarbsG: 11.2, FatG: 0.6, FiberG: 5.1}},
	}

	summary := Summarize(items)

	assert.Len(t, summary.Items, 3)
	assert.InDelta(t, 595, summary.Totals.Kcal, 0.001)
	assert.InDelta(t, 62.1, summary.Totals.ProteinG, 0.001)
	assert.InDelta(t, 67.2, summary.Totals.CarbsG, 0.001)
	assert.InDelta(t, 7.2, summary.Totals.FatG, 0.001)
	assert.InDelta(t, 5.9, summary.Totals.FiberG, 0.001)
}

func TestSummarizePreservesItemOrder(t *testing.T) {
	items := []models.ResolvedNutrition{
		{Name: "b"}, {Name: "a"}, {Name: "c"},
	}

	summary := Summarize(items)
	assert.Equal(t, "b", summary.Items[0].Name)
	assert.Equal(t, "a", summary.Items[1].Name)
	assert.Equal(t, "c", summary.Items[2].Name)
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	assert.Empty(t, summary.Items)
	assert.Equal(t, models.Macros{}, summary.Totals)
}
