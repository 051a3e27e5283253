// internal/models/macro.go
package models

import (
	"time"
)

// Basis is the preparation state nutrition values assume.
type Basis string

const (
	BasisRaw      Basis = "raw"
	BasisCooked   Basis = "cooked"
	BasisAsServed Basis = "as-served"
)

// FoodReference is the immutable input to the pipeline, produced by whatever
// upstream parser extracted entities from the user's text.
type FoodReference struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"qty"`
	Unit     string  `json:"unit"`
	Brand    string  `json:"brand,omitempty"`
	Basis    Basis   `json:"basis,omitempty"`
}

// EffectiveBasis applies the default basis policy: branded items are
// as-served, everything else defaults to cooked.
func (f FoodReference) EffectiveBasis() Basis {
	if f.Basis != "" {
		return f.Basis
	}
	if f.Brand != "" {
		return BasisAsServed
	}
	return BasisCooked
}

type Macros struct {
	Kcal     float64 `json:"kcal"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
	FiberG   float64 `json:"fiber_g,omitempty"`
}

// Add returns the elementwise sum of two macro records.
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Kcal:     m.Kcal + o.Kcal,
		ProteinG: m.ProteinG + o.ProteinG,
		CarbsG:   m.CarbsG + o.CarbsG,
		FatG:     m.FatG + o.FatG,
		FiberG:   m.FiberG + o.FiberG,
	}
}

// CalculatedKcal applies the 4/4/9 rule to the stated gram values.
func (m Macros) CalculatedKcal() float64 {
	return m.ProteinG*4 + m.CarbsG*4 + m.FatG*9
}

// Source identifies which lookup tier produced a resolved item.
type Source string

const (
	SourceService  Source = "service"
	SourceCache    Source = "cache"
	SourceEstimate Source = "estimate"
)

// ResolvedNutrition is a fully quantified food item. Read-only after
// resolution except through lookup.AdjustItemQuantity, which rescales every
// derived field proportionally.
type ResolvedNutrition struct {
	Name          string  `json:"name"`
	Quantity      float64 `json:"qty"`
	Unit          string  `json:"unit"`
	GramsUsed     float64 `json:"grams_used"`
	BasisUsed     Basis   `json:"basis_used"`
	Macros        Macros  `json:"macros"`
	PerUnitMacros Macros  `json:"per_unit_macros"`
	PerUnitGrams  float64 `json:"per_unit_grams"`
	Brand         string  `json:"brand,omitempty"`
	Source        Source  `json:"source"`
	Confidence    float64 `json:"confidence"`
}

// FoodRecord is a cached per-100g nutrition entry for the lookup fallback
// store.
type FoodRecord struct {
	Name       string  `json:"name"`
	Per100g    Macros  `json:"per_100g"`
	Basis      Basis   `json:"basis"`
	Confidence float64 `json:"confidence"`
}

// MacroSummary is the in-flight payload between a question turn and a log
// turn. Totals are always the exact elementwise sum of the item macros.
type MacroSummary struct {
	Items  []ResolvedNutrition `json:"items"`
	Totals Macros              `json:"totals"`
}

type Warning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ValidationResult is derived, never persisted; recomputed on every call.
type ValidationResult struct {
	Valid              bool      `json:"valid"`
	Confidence         float64   `json:"confidence"`
	Warnings           []Warning `json:"warnings"`
	NeedsClarification bool      `json:"needs_clarification"`
}

// ItemValidation is the per-item companion result.
type ItemValidation struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

type TEFData struct {
	TEFKcal float64 `json:"tef_kcal"`
	NetKcal float64 `json:"net_kcal"`
	Protein float64 `json:"tef_protein"`
	Carbs   float64 `json:"tef_carbs"`
	Fat     float64 `json:"tef_fat"`
}

type TDEEComparison struct {
	MealKcal       float64 `json:"meal_kcal"`
	ConsumedKcal   float64 `json:"daily_kcal_consumed"`
	TargetKcal     float64 `json:"daily_kcal_target"`
	RemainingKcal  float64 `json:"daily_kcal_remaining"`
	MealPctOfDaily float64 `json:"meal_as_pct_of_daily"`
	OnTrack        bool    `json:"on_track"`
	Message        string  `json:"message"`
}

// VerificationItem is a display row: resolved item plus rounded figures.
type VerificationItem struct {
	Name   string  `json:"name"`
	Qty    float64 `json:"qty"`
	Unit   string  `json:"unit"`
	Grams  float64 `json:"grams"`
	Basis  Basis   `json:"basis"`
	Macros Macros  `json:"macros"`
}

// VerificationPayload is a presentation artifact for the confirmation step.
// It is never persisted; only the underlying MacroSummary is committed.
type VerificationPayload struct {
	Items    []VerificationItem `json:"items"`
	Totals   Macros             `json:"totals"`
	TEF      *TEFData           `json:"tef,omitempty"`
	TDEE     *TDEEComparison    `json:"tdee,omitempty"`
	MealSlot string             `json:"meal_slot,omitempty"`
}

// RouteTarget is one of the mutually exclusive processing pipelines.
type RouteTarget string

const (
	TargetLogging  RouteTarget = "logging"
	TargetQuestion RouteTarget = "question"
	TargetFeedback RouteTarget = "feedback"
	TargetGeneral  RouteTarget = "general"
)

// SessionContext is read-only input supplied by the surrounding application.
type SessionContext struct {
	UserID               string            `json:"user_id"`
	SessionID            string            `json:"session_id"`
	HasUnconsumedPayload bool              `json:"has_unconsumed_payload"`
	Hints                map[string]string `json:"hints,omitempty"`
}

type RouteDecision struct {
	Target     RouteTarget `json:"target"`
	Confidence float64     `json:"confidence"`
	Reason     string      `json:"reason"`
}

// MealLog is the durable record written exactly once per confirmation.
type MealLog struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	SessionID   string        `json:"session_id"`
	MealSlot    string        `json:"meal_slot"`
	EatenAt     time.Time     `json:"eaten_at"`
	Totals      Macros        `json:"totals"`
	Items       []MealLogItem `json:"items"`
	Fingerprint string        `json:"fingerprint"`
	CreatedAt   time.Time     `json:"created_at"`
}

type MealLogItem struct {
	Position int     `json:"position"`
	Name     string  `json:"name"`
	Quantity float64 `json:"qty"`
	Unit     string  `json:"unit"`
	Grams    float64 `json:"grams"`
	Basis    Basis   `json:"basis"`
	Macros   Macros  `json:"macros"`
}

// CommitResult mirrors the commit contract: failure is reported, not retried.
type CommitResult struct {
	Success   bool   `json:"success"`
	MealLogID string `json:"meal_log_id,omitempty"`
	Error     string `json:"error,omitempty"`
}
