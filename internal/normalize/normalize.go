// internal/normalize/normalize.go
package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"macro-pipeline/internal/models"
)

// weightUnits convert directly to grams. Explicit weight always wins over
// food-specific portion defaults: "10 oz steak" means 10 ounces, not 10 steaks.
var weightUnits = map[string]float64{
	"g":     1,
	"gram":  1,
	"kg":    1000,
	"oz":    28.35,
	"ounce": 28.35,
	"lb":    453.59,
	"pound": 453.59,
}

// genericUnits are count and volume defaults for solids.
var genericUnits = map[string]float64{
	"cup":     240,
	"tbsp":    15,
	"tsp":     5,
	"slice":   30,
	"piece":   100,
	"count":   100,
	"serving": 100,
}

// foodOverrides are per-count gram defaults keyed by substring of the food
// name. Checked before the generic table.
var foodOverrides = []struct {
	substr string
	grams  float64
}{
	{"chicken breast", 170},
	{"steak", 225},
	{"strip", 225},
	{"egg", 50},
}

// fallbackGrams is the generic-count portion used for any unit we do not
// recognize. Never blocking on an unrecognized unit is deliberate policy.
const fallbackGrams = 100

// NormalizeUnit lowercases, trims, and strips a trailing plural "s".
func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if len(u) > 1 && strings.HasSuffix(u, "s") {
		u = strings.TrimSuffix(u, "s")
	}
	return u
}

// ToGrams converts a quantity+unit+food-name triple into a canonical mass in
// grams. It has no error path and always returns a positive value.
func ToGrams(qty float64, unit, foodName string) float64 {
	if qty <= 0 {
		qty = 1
	}

	u := NormalizeUnit(unit)
	if factor, ok := weightUnits[u]; ok {
		return qty * factor
	}

	name := strings.ToLower(foodName)
	for _, ov := range foodOverrides {
		if strings.Contains(name, ov.substr) {
			return qty * ov.grams
		}
	}

	if factor, ok := genericUnits[u]; ok {
		return qty * factor
	}
	return qty * fallbackGrams
}

var (
	unitPattern    = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s+(oz|ounces?|g|grams?|kg|lbs?|pounds?|cups?|tbsp|tsp|slices?|pieces?|servings?)\s+(?:of\s+)?(.+)$`)
	countPattern   = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s+(.+)$`)
	articleUnit    = regexp.MustCompile(`(?i)^(?:a|an)\s+(oz|ounces?|g|grams?|kg|lbs?|pounds?|cups?|tbsp|tsp|slices?|pieces?|servings?)\s+(?:of\s+)?(.+)$`)
	articleCount   = regexp.MustCompile(`(?i)^(?:a|an)\s+(.+)$`)
	numberPattern  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	articlePattern = regexp.MustCompile(`(?i)\b(?:a|an)\s`)
	trailingSep    = regexp.MustCompile(`(?i)[\s,]*(?:\band\b|\bwith\b|\bplus\b)?[\s,]*$`)
)

// ParseFoodText extracts food references from a natural-language description
// like "2 eggs and a slice of toast". Each quantity starts a new item, with
// the articles "a"/"an" counting as quantity one; the segment runs until the
// next quantity. Returns nil when no quantified items are found.
func ParseFoodText(text string) []models.FoodReference {
	starts := itemStarts(text)
	if len(starts) == 0 {
		return nil
	}

	var items []models.FoodReference
	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		segment := trailingSep.ReplaceAllString(strings.TrimSpace(text[start:end]), "")
		if segment == "" {
			continue
		}

		if m := unitPattern.FindStringSubmatch(segment); m != nil {
			qty, _ := strconv.ParseFloat(m[1], 64)
			items = append(items, models.FoodReference{
				Name:     strings.TrimSpace(m[3]),
				Quantity: qty,
				Unit:     NormalizeUnit(m[2]),
			})
			continue
		}

		if m := articleUnit.FindStringSubmatch(segment); m != nil {
			items = append(items, models.FoodReference{
				Name:     strings.TrimSpace(m[2]),
				Quantity: 1,
				Unit:     NormalizeUnit(m[1]),
			})
			continue
		}

		if m := countPattern.FindStringSubmatch(segment); m != nil {
			qty, _ := strconv.ParseFloat(m[1], 64)
			items = append(items, models.FoodReference{
				Name:     strings.TrimSpace(m[2]),
				Quantity: qty,
				Unit:     "count",
			})
			continue
		}

		if m := articleCount.FindStringSubmatch(segment); m != nil {
			items = append(items, models.FoodReference{
				Name:     strings.TrimSpace(m[1]),
				Quantity: 1,
				Unit:     "count",
			})
		}
	}

	return items
}

// itemStarts returns the offsets where a new item begins: a number or a
// standalone "a"/"an", at the start of the text or preceded by whitespace or
// a comma.
func itemStarts(text string) []int {
	anchored := func(pos int) bool {
		if pos == 0 {
			return true
		}
		switch text[pos-1] {
		case ' ', '\t', ',':
			return true
		}
		return false
	}

	var starts []int
	for _, loc := range numberPattern.FindAllStringIndex(text, -1) {
		if anchored(loc[0]) {
			starts = append(starts, loc[0])
		}
	}
	for _, loc := range articlePattern.FindAllStringIndex(text, -1) {
		if anchored(loc[0]) {
			starts = append(starts, loc[0])
		}
	}
	sort.Ints(starts)
	return starts
}
