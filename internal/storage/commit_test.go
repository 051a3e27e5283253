// internal/storage/commit_test.go
package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macro-pipeline/internal/models"
)

func commitSummary() models.MacroSummary {
	items := []models.ResolvedNutrition{
		{
			Name: "grilled chicken breast", Quantity: 1, Unit: "count",
			GramsUsed: 170, BasisUsed: models.BasisCooked,
			Macros: models.Macros{Kcal: 280.4, ProteinG: 53.12, FatG: 6.08},
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

func TestFingerprintStable(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 10, 0, time.UTC)
	summary := commitSummary()

	fp1 := Fingerprint("u1", summary, at)
	fp2 := Fingerprint("u1", summary, at)
	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 16)
}

// Item order must not affect the fingerprint: "eggs and toast" and "toast
// and eggs" are the same meal.
func TestFingerprintOrderInsensitive(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	summary := commitSummary()

	reversed := models.MacroSummary{
		Items:  []models.ResolvedNutrition{summary.Items[1], summary.Items[0]},
		Totals: summary.Totals,
	}

	assert.Equal(t, Fingerprint("u1", summary, at), Fingerprint("u1", reversed, at))
}

// Retries inside the same 30-second window collide; later attempts are a new
// meal.
func TestFingerprintTimeWindow(t *testing.T) {
	summary := commitSummary()
	base := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	assert.Equal(t,
		Fingerprint("u1", summary, base),
		Fingerprint("u1", summary, base.Add(29*time.Second)))
	assert.NotEqual(t,
		Fingerprint("u1", summary, base),
		Fingerprint("u1", summary, base.Add(30*time.Second)))
}

func TestFingerprintVariesByUserAndContent(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	summary := commitSummary()

	assert.NotEqual(t, Fingerprint("u1", summary, at), Fingerprint("u2", summary, at))

	bigger := commitSummary()
	bigger.Items[0].Macros.Kcal += 100
	assert.NotEqual(t, Fingerprint("u1", summary, at), Fingerprint("u1", bigger, at))
}

func TestCommitMealWritesRoundedFigures(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	result := s.CommitMeal(ctx, "u1", "s1", "lunch", commitSummary(), time.Now())
	require.True(t, result.Success, "commit failed: %s", result.Error)
	assert.NotEmpty(t, result.MealLogID)

	logs, err := s.GetMealLogs(ctx, "u1", "", "", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	got := logs[0]
	assert.Equal(t, result.MealLogID, got.ID)
	require.Len(t, got.Items, 2)
	// Kcal is stored whole, gram figures to one decimal.
	assert.Equal(t, 280.0, got.Items[0].Macros.Kcal)
	assert.Equal(t, 53.1, got.Items[0].Macros.ProteinG)
	assert.Equal(t, 6.1, got.Items[0].Macros.FatG)
	assert.Equal(t, 0, got.Items[0].Position)
	assert.Equal(t, 1, got.Items[1].Position)
}

func TestCommitMealDuplicateReportsAlreadyLogged(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	first := s.CommitMeal(ctx, "u1", "s1", "lunch", commitSummary(), at)
	require.True(t, first.Success)

	second := s.CommitMeal(ctx, "u1", "s1", "lunch", commitSummary(), at.Add(10*time.Second))
	assert.False(t, second.Success)
	assert.Equal(t, "this meal was already logged", second.Error)
}

func TestCommitMealEmptySummary(t *testing.T) {
	s := newTestStorage(t)

	result := s.CommitMeal(context.Background(), "u1", "s1", "lunch", models.MacroSummary{}, time.Now())
	assert.False(t, result.Success)
	assert.Equal(t, "nothing to log", result.Error)
}
