// internal/storage/commit.go
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"macro-pipeline/internal/models"
)

// fingerprintWindow rounds the eaten-at timestamp so that retries of the same
// confirmation land on the same fingerprint.
const fingerprintWindow = 30 * time.Second

// Fingerprint derives the idempotency key for a commit: user, the eaten-at
// time rounded down to a 30-second window, and the name-sorted items with
// rounded macros. The first 16 hex characters of the SHA-256 are enough to
// make accidental collisions irrelevant at meal-log scale.
func Fingerprint(userID string, summary models.MacroSummary, eatenAt time.Time) string {
	type fpItem struct {
		name string
		line string
	}

	items := make([]fpItem, 0, len(summary.Items))
	for _, item := range summary.Items {
		name := strings.ToLower(strings.TrimSpace(item.Name))
		line := fmt.Sprintf("%s|%d|%d|%d|%d",
			name,
			int(math.Round(item.Macros.Kcal)),
			int(math.Round(item.Macros.ProteinG)),
			int(math.Round(item.Macros.CarbsG)),
			int(math.Round(item.Macros.FatG)))
		items = append(items, fpItem{name: name, line: line})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].name < items[j].name })

	var b strings.Builder
	b.WriteString(userID)
	b.WriteByte('|')
	b.WriteString(eatenAt.UTC().Truncate(fingerprintWindow).Format(time.RFC3339))
	for _, item := range items {
		b.WriteByte('|')
		b.WriteString(item.line)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}

// CommitMeal turns a summary into a durable MealLog and writes it. Item kcal
// is stored as a whole number and gram figures to one decimal, matching the
// rendered confirmation. A duplicate fingerprint reports the failure in the
// result rather than erroring.
func (s *SQLiteStorage) CommitMeal(ctx context.Context, userID, sessionID, mealSlot string, summary models.MacroSummary, eatenAt time.Time) models.CommitResult {
	if len(summary.Items) == 0 {
		return models.CommitResult{Error: "nothing to log"}
	}
	if eatenAt.IsZero() {
		eatenAt = time.Now()
	}

	log := &models.MealLog{
		ID:          uuid.New().String(),
		UserID:      userID,
		SessionID:   sessionID,
		MealSlot:    mealSlot,
		EatenAt:     eatenAt,
		Fingerprint: Fingerprint(userID, summary, eatenAt),
		CreatedAt:   time.Now(),
	}

	for i, item := range summary.Items {
		rounded := roundForCommit(item.Macros)
		log.Items = append(log.Items, models.MealLogItem{
			Position: i,
			Name:     item.Name,
			Quantity: item.Quantity,
			Unit:     item.Unit,
			Grams:    round1(item.GramsUsed),
			Basis:    item.BasisUsed,
			Macros:   rounded,
		})
		log.Totals = log.Totals.Add(rounded)
	}

	if err := s.SaveMealLog(ctx, log); err != nil {
		if errors.Is(err, ErrAlreadyLogged) {
			return models.CommitResult{Error: "this meal was already logged"}
		}
		return models.CommitResult{Error: err.Error()}
	}

	return models.CommitResult{Success: true, MealLogID: log.ID}
}

func roundForCommit(m models.Macros) models.Macros {
	return models.Macros{
		Kcal:     math.Round(m.Kcal),
		ProteinG: round1(m.ProteinG),
		CarbsG:   round1(m.CarbsG),
		FatG:     round1(m.FatG),
		FiberG:   round1(m.FiberG),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
