// internal/normalize/normalize_test.go
package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macro-pipeline/internal/models"
)

func TestNormalizeUnit(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Grams", "gram"},
		{"OZ", "oz"},
		{"cups", "cup"},
		{"slices", "slice"},
		{" tbsp ", "tbsp"},
		{"s", "s"}, // single letter keeps its "s"
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeUnit(tt.in), "unit %q", tt.in)
	}
}

func TestToGramsWeightUnits(t *testing.T) {
	tests := []struct {
		name string
		qty  float64
		unit string
		food string
		want float64
	}{
		{"grams", 150, "g", "rice", 150},
		{"kilograms", 0.5, "kg", "rice", 500},
		{"ounces", 10, "oz", "ribeye steak", 283.5},
		{"pounds", 1, "lb", "ground beef", 453.59},
		{"plural ounces", 2, "ounces", "salmon", 56.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ToGrams(tt.qty, tt.unit, tt.food), 0.001)
		})
	}
}

// Explicit weight beats the per-food portion default: "10 oz steak" is ten
// ounces of steak, not ten 225g steaks.
func TestToGramsExplicitWeightWinsOverOverride(t *testing.T) {
	assert.InDelta(t, 283.5, ToGrams(10, "oz", "steak"), 0.001)
	assert.InDelta(t, 100, ToGrams(100, "g", "chicken breast"), 0.001)
}

func TestToGramsFoodOverrides(t *testing.T) {
	tests := []struct {
		name string
		qty  float64
		unit string
		food string
		want float64
	}{
		{"chicken breast count", 2, "count", "grilled chicken breast", 340},
		{"steak count", 1, "count", "sirloin steak", 225},
		{"ny strip", 1, "count", "NY strip", 225},
		{"eggs", 3, "count", "eggs", 150},
		{"egg piece", 2, "piece", "fried egg", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ToGrams(tt.qty, tt.unit, tt.food), 0.001)
		})
	}
}

func TestToGramsGenericUnits(t *testing.T) {
	assert.InDelta(t, 240, ToGrams(1, "cup", "oatmeal"), 0.001)
	assert.InDelta(t, 30, ToGrams(2, "tbsp", "peanut butter"), 0.001)
	assert.InDelta(t, 10, ToGrams(2, "tsp", "olive oil"), 0.001)
	assert.InDelta(t, 60, ToGrams(2, "slice", "bread"), 0.001)
	assert.InDelta(t, 100, ToGrams(1, "serving", "lasagna"), 0.001)
}

func TestToGramsFallbacks(t *testing.T) {
	// Unknown unit falls back to 100g per count.
	assert.InDelta(t, 200, ToGrams(2, "bowl", "soup"), 0.001)
	// Non-positive quantity is treated as one.
	assert.InDelta(t, 100, ToGrams(0, "g", "rice"), 0.001)
	assert.InDelta(t, 100, ToGrams(-3, "count", "apple"), 0.001)
}

func TestParseFoodTextSingleItem(t *testing.T) {
	items := ParseFoodText("10 oz ribeye")
	require.Len(t, items, 1)
	assert.Equal(t, models.FoodReference{Name: "ribeye", Quantity: 10, Unit: "oz"}, items[0])
}

func TestParseFoodTextMultipleItems(t *testing.T) {
	items := ParseFoodText("10 oz ribeye, 3 eggs and 1 cup oatmeal")
	require.Len(t, items, 3)

	assert.Equal(t, "ribeye", items[0].Name)
	assert.Equal(t, 10.0, items[0].Quantity)
	assert.Equal(t, "oz", items[0].Unit)

	assert.Equal(t, "eggs", items[1].Name)
	assert.Equal(t, 3.0, items[1].Quantity)
	assert.Equal(t, "count", items[1].Unit)

	assert.Equal(t, "oatmeal", items[2].Name)
	assert.Equal(t, 1.0, items[2].Quantity)
	assert.Equal(t, "cup", items[2].Unit)
}

func TestParseFoodTextOfPhrase(t *testing.T) {
	items := ParseFoodText("2 cups of rice")
	require.Len(t, items, 1)
	assert.Equal(t, "rice", items[0].Name)
	assert.Equal(t, "cup", items[0].Unit)
}

func TestParseFoodTextDecimalQuantity(t *testing.T) {
	items := ParseFoodText("0.5 cup oatmeal")
	require.Len(t, items, 1)
	assert.Equal(t, 0.5, items[0].Quantity)
}

func TestParseFoodTextCompoundNames(t *testing.T) {
	// "and" inside a name only splits when followed by a new quantity.
	items := ParseFoodText("1 ham and cheese sandwich")
	require.Len(t, items, 1)
	assert.Equal(t, "ham and cheese sandwich", items[0].Name)
}

func TestParseFoodTextArticleStartsNewItem(t *testing.T) {
	items := ParseFoodText("2 eggs and a slice of toast")
	require.Len(t, items, 2)

	assert.Equal(t, models.FoodReference{Name: "eggs", Quantity: 2, Unit: "count"}, items[0])
	assert.Equal(t, models.FoodReference{Name: "toast", Quantity: 1, Unit: "slice"}, items[1])
}

func TestParseFoodTextArticlesOnly(t *testing.T) {
	items := ParseFoodText("an apple and a banana")
	require.Len(t, items, 2)

	assert.Equal(t, models.FoodReference{Name: "apple", Quantity: 1, Unit: "count"}, items[0])
	assert.Equal(t, models.FoodReference{Name: "banana", Quantity: 1, Unit: "count"}, items[1])
}

func TestParseFoodTextNoItems(t *testing.T) {
	assert.Nil(t, ParseFoodText("what should I eat today"))
	assert.Nil(t, ParseFoodText(""))
}
