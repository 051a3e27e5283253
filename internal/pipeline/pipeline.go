// internal/pipeline/pipeline.go

// Package pipeline wires the deterministic stages together: parse, resolve,
// aggregate, validate, format, cache, commit. Everything downstream of the
// lookup tiers is pure computation; the only mutable state is the session
// payload cache and the meal-log store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"macro-pipeline/internal/aggregate"
	"macro-pipeline/internal/format"
	"macro-pipeline/internal/lookup"
	"macro-pipeline/internal/models"
	"macro-pipeline/internal/normalize"
	"macro-pipeline/internal/session"
	"macro-pipeline/internal/validate"
	"macro-pipeline/internal/verify"
)

// ErrNoFoodItems means the utterance contained nothing parseable as food.
var ErrNoFoodItems = errors.New("no food items found")

// Committer writes a confirmed meal exactly once.
type Committer interface {
	CommitMeal(ctx context.Context, userID, sessionID, mealSlot string, summary models.MacroSummary, eatenAt time.Time) models.CommitResult
}

// Resolver turns parsed food references into quantified nutrition.
type Resolver interface {
	Resolve(ctx context.Context, items []models.FoodReference) []models.ResolvedNutrition
}

type Pipeline struct {
	resolver Resolver
	sessions *session.Store
	store    Committer
	logger   *zap.Logger
}

func New(resolver Resolver, sessions *session.Store, store Committer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		resolver: resolver,
		sessions: sessions,
		store:    store,
		logger:   logger,
	}
}

// Result carries everything a caller needs after a pipeline turn. Commit is
// set only when a meal was written; Verification only when confirmation is
// still pending.
type Result struct {
	Text         string                      `json:"text"`
	Summary      models.MacroSummary         `json:"summary"`
	Validation   models.ValidationResult     `json:"validation"`
	Commit       *models.CommitResult        `json:"commit,omitempty"`
	Verification *models.VerificationPayload `json:"verification,omitempty"`
}

// Question answers "what are the macros in X" without logging anything. The
// computed summary is cached against the session so a follow-up "log it" can
// commit the same numbers.
func (p *Pipeline) Question(ctx context.Context, userID, sessionID, text string) (*Result, error) {
	summary, validation, err := p.resolveText(ctx, text)
	if err != nil {
		return nil, err
	}

	p.sessions.Put(userID, sessionID, summary, text)
	p.logger.Debug("cached macro payload",
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
		zap.Int("items", len(summary.Items)))

	return &Result{
		Text:       format.Summary(summary),
		Summary:    summary,
		Validation: validation,
	}, nil
}

// LogDirect handles a meal statement ("I ate two eggs and toast"). When
// validation asks for clarification the commit is withheld and a verification
// view is returned instead; the payload stays cached so a plain "log it" can
// confirm it.
func (p *Pipeline) LogDirect(ctx context.Context, userID, sessionID, mealSlot, text string, budget *verify.DailyBudget) (*Result, error) {
	summary, validation, err := p.resolveText(ctx, text)
	if err != nil {
		return nil, err
	}

	if validation.NeedsClarification {
		p.sessions.Put(userID, sessionID, summary, text)

		opts := verify.Options{MealSlot: mealSlot, IncludeTEF: true}
		if budget != nil {
			opts.Budget = budget
		}
		payload := verify.Build(summary, opts)
		return &Result{
			Text:         verify.RenderText(payload),
			Summary:      summary,
			Validation:   validation,
			Verification: &payload,
		}, nil
	}

	commit := p.store.CommitMeal(ctx, userID, sessionID, mealSlot, summary, time.Now())
	p.sessions.Delete(userID, sessionID)

	return &Result{
		Text:       commitText(commit, summary),
		Summary:    summary,
		Validation: validation,
		Commit:     &commit,
	}, nil
}

// LogFollowUp commits a previously cached payload in response to a log
// command ("log all", "log the chicken", "log chicken with 2 breasts"). The
// payload is consumed exactly once; a second follow-up reports that the meal
// was already logged.
func (p *Pipeline) LogFollowUp(ctx context.Context, userID, sessionID, mealSlot, command string) (*Result, error) {
	cmd := ParseLogCommand(command)

	cached, err := p.sessions.Get(userID, sessionID)
	if err != nil {
		return nil, err
	}

	summary := cached
	if !cmd.All {
		item, ok := lookup.FindItemByName(cached.Items, cmd.ItemName)
		if !ok {
			return nil, fmt.Errorf("couldn't find %q in the recent answer", cmd.ItemName)
		}
		if cmd.HasQuantity {
			item = adjustToQuantity(item, cmd.Quantity, cmd.Unit)
		}
		summary = aggregate.Summarize([]models.ResolvedNutrition{item})
	}

	// Consume only once the command has resolved to something committable,
	// so a typo in the item name doesn't burn the payload.
	if _, err := p.sessions.Consume(userID, sessionID); err != nil {
		return nil, err
	}

	validation := validate.Summary(summary)
	commit := p.store.CommitMeal(ctx, userID, sessionID, mealSlot, summary, time.Now())
	if !commit.Success {
		// The claim reserved the payload against a concurrent commit; a
		// failed write hands it back so the user can resubmit.
		p.sessions.Release(userID, sessionID)
	}

	return &Result{
		Text:       commitText(commit, summary),
		Summary:    summary,
		Validation: validation,
		Commit:     &commit,
	}, nil
}

// Verification builds the confirmation view for whatever is cached in the
// session, without consuming it.
func (p *Pipeline) Verification(userID, sessionID string, opts verify.Options) (*models.VerificationPayload, error) {
	summary, err := p.sessions.Get(userID, sessionID)
	if err != nil {
		return nil, err
	}
	payload := verify.Build(summary, opts)
	return &payload, nil
}

func (p *Pipeline) resolveText(ctx context.Context, text string) (models.MacroSummary, models.ValidationResult, error) {
	refs := normalize.ParseFoodText(text)
	if len(refs) == 0 {
		return models.MacroSummary{}, models.ValidationResult{}, ErrNoFoodItems
	}

	resolved := p.resolver.Resolve(ctx, refs)
	summary := aggregate.Summarize(resolved)
	validation := validate.Summary(summary)

	for _, w := range validation.Warnings {
		p.logger.Debug("validation warning",
			zap.String("type", w.Type),
			zap.String("message", w.Message))
	}

	return summary, validation, nil
}

// adjustToQuantity rescales a resolved item to a stated quantity. When the
// stated unit matches the item's unit the per-unit figures are reused
// directly; otherwise the rescale runs through the gram table.
func adjustToQuantity(item models.ResolvedNutrition, qty float64, unit string) models.ResolvedNutrition {
	if unit == "" || normalize.NormalizeUnit(unit) == normalize.NormalizeUnit(item.Unit) {
		return lookup.AdjustItemQuantity(item, qty)
	}

	newGrams := normalize.ToGrams(qty, unit, item.Name)
	if item.GramsUsed <= 0 {
		return item
	}

	// Convert the gram target back into the item's own unit count so the
	// per-unit rescale stays the single source of truth for rounding.
	perUnit := item.PerUnitGrams
	if perUnit <= 0 {
		perUnit = item.GramsUsed / item.Quantity
	}
	adjusted := lookup.AdjustItemQuantity(item, newGrams/perUnit)
	adjusted.Quantity = qty
	adjusted.Unit = normalize.NormalizeUnit(unit)
	return adjusted
}

func commitText(commit models.CommitResult, summary models.MacroSummary) string {
	if !commit.Success {
		return commit.Error
	}
	names := make([]string, 0, len(summary.Items))
	for _, item := range summary.Items {
		names = append(names, item.Name)
	}
	return fmt.Sprintf("Logged %s (%d kcal).", strings.Join(names, ", "), int(math.Round(summary.Totals.Kcal)))
}

// LogCommand is the parsed form of a log follow-up utterance.
type LogCommand struct {
	All         bool
	ItemName    string
	Quantity    float64
	Unit        string
	HasQuantity bool
}

var (
	logAllPattern  = regexp.MustCompile(`(?i)^\s*log\s+(it|all|everything|that|them(\s+all)?)\s*[.!]?\s*$`)
	logWithPattern = regexp.MustCompile(`(?i)^\s*log\s+(?:the\s+)?(.+?)\s+with\s+(\d+(?:\.\d+)?)\s*([a-zA-Z]+)?\s*[.!]?\s*$`)
	logQtyPattern  = regexp.MustCompile(`(?i)^\s*log\s+(\d+(?:\.\d+)?)\s*([a-zA-Z]+)?\s+(?:of\s+)?(.+?)\s*[.!]?\s*$`)
	logItemPattern = regexp.MustCompile(`(?i)^\s*log\s+(?:the\s+)?(.+?)\s*[.!]?\s*$`)
)

// ParseLogCommand classifies a log utterance. Anything that doesn't name a
// quantity or an item is treated as "log all".
func ParseLogCommand(text string) LogCommand {
	if logAllPattern.MatchString(text) {
		return LogCommand{All: true}
	}

	if m := logWithPattern.FindStringSubmatch(text); m != nil {
		qty, _ := strconv.ParseFloat(m[2], 64)
		return LogCommand{
			ItemName:    strings.TrimSpace(m[1]),
			Quantity:    qty,
			Unit:        m[3],
			HasQuantity: true,
		}
	}

	if m := logQtyPattern.FindStringSubmatch(text); m != nil {
		qty, _ := strconv.ParseFloat(m[1], 64)
		return LogCommand{
			ItemName:    strings.TrimSpace(m[3]),
			Quantity:    qty,
			Unit:        m[2],
			HasQuantity: true,
		}
	}

	if m := logItemPattern.FindStringSubmatch(text); m != nil {
		return LogCommand{ItemName: strings.TrimSpace(m[1])}
	}

	return LogCommand{All: true}
}
