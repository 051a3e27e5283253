// internal/lookup/lookup.go
package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"macro-pipeline/internal/models"
	"macro-pipeline/internal/normalize"
)

// Store is the cached nutrition lookup used by the second tier.
type Store interface {
	GetFoodRecord(ctx context.Context, name string) (*models.FoodRecord, error)
}

type Config struct {
	ServiceURL     string
	ServiceTimeout time.Duration
	CacheTimeout   time.Duration
}

const (
	defaultServiceTimeout = 3 * time.Second
	defaultCacheTimeout   = time.Second

	serviceConfidence  = 0.9
	cacheConfidence    = 0.8
	estimateConfidence = 0.5
)

// Client resolves food references into quantified nutrition data through an
// ordered fallback chain: external service, cached store, generic estimate.
// The chain always produces an answer; degradation shows up as a lower
// per-item confidence, never as an error.
type Client struct {
	cfg        Config
	httpClient *http.Client
	store      Store
	logger     *zap.Logger
}

func NewClient(cfg Config, store Store, logger *zap.Logger) *Client {
	if cfg.ServiceTimeout <= 0 {
		cfg.ServiceTimeout = defaultServiceTimeout
	}
	if cfg.CacheTimeout <= 0 {
		cfg.CacheTimeout = defaultCacheTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.ServiceTimeout},
		store:      store,
		logger:     logger,
	}
}

type tier struct {
	name    string
	resolve func(ctx context.Context, items []models.FoodReference) ([]models.ResolvedNutrition, error)
}

func (c *Client) tiers() []tier {
	return []tier{
		{"service", c.resolveViaService},
		{"cache", c.resolveViaStore},
		{"estimate", c.resolveViaEstimate},
	}
}

// Resolve returns one ResolvedNutrition per input reference, same order.
// It never returns an error to the caller: the final estimate tier cannot
// fail.
func (c *Client) Resolve(ctx context.Context, items []models.FoodReference) []models.ResolvedNutrition {
	if len(items) == 0 {
		return nil
	}

	for _, t := range c.tiers() {
		resolved, err := t.resolve(ctx, items)
		if err != nil {
			c.logger.Debug("lookup tier failed",
				zap.String("tier", t.name),
				zap.Int("items", len(items)),
				zap.Error(err))
			continue
		}
		return resolved
	}

	// Unreachable: the estimate tier always succeeds. Kept so the function
	// still returns sensibly if the tier list ever changes.
	out := make([]models.ResolvedNutrition, len(items))
	for i, ref := range items {
		out[i] = genericEstimate(ref)
	}
	return out
}

// resolveViaService calls the external nutrition service once for the whole
// batch with a bounded timeout.
func (c *Client) resolveViaService(ctx context.Context, items []models.FoodReference) ([]models.ResolvedNutrition, error) {
	if c.cfg.ServiceURL == "" {
		return nil, fmt.Errorf("no service URL configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ServiceTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]interface{}{"items": items})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServiceURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return parseServiceResponse(body, items)
}

// parseServiceResponse accepts either a bare array or an {"items": [...]}
// wrapper, the two shapes the service has been observed to return.
func parseServiceResponse(body []byte, items []models.FoodReference) ([]models.ResolvedNutrition, error) {
	arr := gjson.GetBytes(body, "items")
	if !arr.Exists() {
		arr = gjson.ParseBytes(body)
	}
	if !arr.IsArray() {
		return nil, fmt.Errorf("unexpected response shape")
	}

	entries := arr.Array()
	if len(entries) != len(items) {
		return nil, fmt.Errorf("service returned %d items, expected %d", len(entries), len(items))
	}

	resolved := make([]models.ResolvedNutrition, len(entries))
	for i, entry := range entries {
		ref := items[i]
		r := models.ResolvedNutrition{
			Name:      entry.Get("name").String(),
			Quantity:  ref.Quantity,
			Unit:      ref.Unit,
			GramsUsed: entry.Get("grams_used").Float(),
			BasisUsed: models.Basis(entry.Get("basis_used").String()),
			Macros: models.Macros{
				Kcal:     entry.Get("macros.kcal").Float(),
				ProteinG: entry.Get("macros.protein_g").Float(),
				CarbsG:   entry.Get("macros.carbs_g").Float(),
				FatG:     entry.Get("macros.fat_g").Float(),
				FiberG:   entry.Get("macros.fiber_g").Float(),
			},
			Brand:      ref.Brand,
			Source:     models.SourceService,
			Confidence: serviceConfidence,
		}
		if r.Name == "" {
			r.Name = ref.Name
		}
		if r.BasisUsed == "" {
			r.BasisUsed = ref.EffectiveBasis()
		}
		if r.GramsUsed <= 0 {
			return nil, fmt.Errorf("service returned non-positive grams for %q", r.Name)
		}
		attachPerUnit(&r)
		resolved[i] = r
	}
	return resolved, nil
}

// resolveViaStore looks each item up in the cached store concurrently.
// Items missing from the store degrade to the generic estimate individually;
// the tier as a whole fails only when no store is configured or the bounded
// timeout elapses.
func (c *Client) resolveViaStore(ctx context.Context, items []models.FoodReference) ([]models.ResolvedNutrition, error) {
	if c.store == nil {
		return nil, fmt.Errorf("no cache store configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CacheTimeout)
	defer cancel()

	resolved := make([]models.ResolvedNutrition, len(items))
	g, ctx := errgroup.WithContext(ctx)
	for i, ref := range items {
		i, ref := i, ref
		g.Go(func() error {
			record, err := c.store.GetFoodRecord(ctx, ref.Name)
			if err != nil {
				return fmt.Errorf("store lookup for %q: %w", ref.Name, err)
			}
			if record == nil {
				resolved[i] = genericEstimate(ref)
				return nil
			}
			resolved[i] = fromRecord(ref, record)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (c *Client) resolveViaEstimate(_ context.Context, items []models.FoodReference) ([]models.ResolvedNutrition, error) {
	resolved := make([]models.ResolvedNutrition, len(items))
	for i, ref := range items {
		resolved[i] = genericEstimate(ref)
	}
	return resolved, nil
}

// fromRecord scales a per-100g cache record to the portion implied by the
// reference.
func fromRecord(ref models.FoodReference, record *models.FoodRecord) models.ResolvedNutrition {
	grams := normalize.ToGrams(ref.Quantity, ref.Unit, ref.Name)
	factor := grams / 100

	basis := record.Basis
	if basis == "" {
		basis = ref.EffectiveBasis()
	}
	confidence := record.Confidence
	if confidence <= 0 {
		confidence = cacheConfidence
	}

	r := models.ResolvedNutrition{
		Name:      ref.Name,
		Quantity:  ref.Quantity,
		Unit:      ref.Unit,
		GramsUsed: round1(grams),
		BasisUsed: basis,
		Macros: models.Macros{
			Kcal:     math.Round(record.Per100g.Kcal * factor),
			ProteinG: round1(record.Per100g.ProteinG * factor),
			CarbsG:   round1(record.Per100g.CarbsG * factor),
			FatG:     round1(record.Per100g.FatG * factor),
			FiberG:   round1(record.Per100g.FiberG * factor),
		},
		Brand:      ref.Brand,
		Source:     models.SourceCache,
		Confidence: confidence,
	}
	attachPerUnit(&r)
	return r
}

// genericEstimate is the last-resort blanket approximation: 250 kcal per
// 100 g of average food. Its exact formula and rounding are a fixed contract;
// do not "improve" it.
func genericEstimate(ref models.FoodReference) models.ResolvedNutrition {
	grams := normalize.ToGrams(ref.Quantity, ref.Unit, ref.Name)

	r := models.ResolvedNutrition{
		Name:      ref.Name,
		Quantity:  ref.Quantity,
		Unit:      ref.Unit,
		GramsUsed: round1(grams),
		BasisUsed: ref.EffectiveBasis(),
		Macros: models.Macros{
			Kcal:     math.Round(grams * 2.5),
			ProteinG: round1(grams * 0.15),
			CarbsG:   round1(grams * 0.25),
			FatG:     round1(grams * 0.08),
		},
		Brand:      ref.Brand,
		Source:     models.SourceEstimate,
		Confidence: estimateConfidence,
	}
	attachPerUnit(&r)
	return r
}

// attachPerUnit derives per-unit macros and grams so later quantity changes
// are pure arithmetic, never another lookup.
func attachPerUnit(r *models.ResolvedNutrition) {
	qty := r.Quantity
	if qty <= 0 {
		qty = 1
	}
	r.PerUnitGrams = r.GramsUsed / qty
	r.PerUnitMacros = models.Macros{
		Kcal:     r.Macros.Kcal / qty,
		ProteinG: r.Macros.ProteinG / qty,
		CarbsG:   r.Macros.CarbsG / qty,
		FatG:     r.Macros.FatG / qty,
		FiberG:   r.Macros.FiberG / qty,
	}
}

func round1(n float64) float64 {
	return math.Round(n*10) / 10
}
