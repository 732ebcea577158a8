// Package budget chooses AI model tiers by historical ROI under a spend
// ceiling. Budget state being unreadable is never fatal: selection degrades
// to the cheapest tier rather than blocking a caller.
package budget

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/growthloop/decider/internal/config"
	"github.com/growthloop/decider/internal/model"
	"github.com/growthloop/decider/internal/store"
)

// Selection is the outcome of a tier choice.
type Selection struct {
	Tier config.TierConfig `json:"tier"`
	// WasFallback marks that every tier would have breached the ceiling and
	// the cheapest was chosen anyway.
	WasFallback bool `json:"was_fallback"`
	// Degraded marks that budget state was unreadable and the cheapest tier
	// was chosen blind.
	Degraded       bool    `json:"degraded"`
	ExpectedReward float64 `json:"expected_reward"`
}

// Selector ranks model tiers by attributed ROI for a task type.
type Selector struct {
	store store.Store
	cfg   config.BudgetConfig
}

// NewSelector creates a budget Selector. Tiers are kept sorted cheapest
// first so the fallback choice is always tiers[0].
func NewSelector(st store.Store, cfg config.BudgetConfig) *Selector {
	if cfg.Ceiling <= 0 || cfg.Ceiling > 1 {
		cfg.Ceiling = 0.9
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = config.DefaultTiers()
	}
	tiers := make([]config.TierConfig, len(cfg.Tiers))
	copy(tiers, cfg.Tiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].CostPerCall < tiers[j].CostPerCall })
	cfg.Tiers = tiers
	return &Selector{store: st, cfg: cfg}
}

// ChooseModel picks the tier with the best historical ROI for taskType whose
// marginal cost keeps utilization under the ceiling. If every tier would
// breach it, the cheapest tier is selected and flagged as fallback. Budget
// lookups failing degrade to the cheapest tier; this method never blocks the
// caller on budget state.
func (s *Selector) ChooseModel(ctx context.Context, taskType string, budgetUtilization float64) Selection {
	cheapest := s.cfg.Tiers[0]

	roi, err := s.store.TierROI(ctx, taskType)
	if err != nil {
		zap.L().Warn("budget: tier roi unavailable, degrading to cheapest tier",
			zap.String("task_type", taskType),
			zap.Error(eris.Wrap(err, "budget: tier roi")),
		)
		return Selection{Tier: cheapest, Degraded: true}
	}
	roiByTier := make(map[string]model.TierStats, len(roi))
	for _, ts := range roi {
		roiByTier[ts.ModelTier] = ts
	}

	// Rank by historical ROI, best first. Tiers without history rank after
	// proven ones but ahead of proven losers, cheapest of those first.
	ranked := make([]config.TierConfig, len(s.cfg.Tiers))
	copy(ranked, s.cfg.Tiers)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, iKnown := roiByTier[ranked[i].Name]
		sj, jKnown := roiByTier[ranked[j].Name]
		switch {
		case iKnown && jKnown:
			return si.AvgROI > sj.AvgROI
		case iKnown:
			return si.AvgROI > 0
		case jKnown:
			return sj.AvgROI <= 0
		default:
			return ranked[i].CostPerCall < ranked[j].CostPerCall
		}
	})

	for _, tier := range ranked {
		if s.projectedUtilization(budgetUtilization, tier.CostPerCall) <= s.cfg.Ceiling {
			return Selection{
				Tier:           tier,
				ExpectedReward: s.expectedReward(roiByTier, tier),
			}
		}
	}

	zap.L().Warn("budget: all tiers exceed ceiling, falling back to cheapest",
		zap.String("task_type", taskType),
		zap.Float64("utilization", budgetUtilization),
		zap.Float64("ceiling", s.cfg.Ceiling),
	)
	return Selection{
		Tier:           cheapest,
		WasFallback:    true,
		ExpectedReward: s.expectedReward(roiByTier, cheapest),
	}
}

// projectedUtilization is utilization after one more call at the tier's cost.
func (s *Selector) projectedUtilization(current, costPerCall float64) float64 {
	if s.cfg.MonthlyBudget <= 0 {
		return current
	}
	return current + costPerCall/s.cfg.MonthlyBudget
}

// expectedReward estimates from the tier's resolved history; no history
// means no estimate.
func (s *Selector) expectedReward(roiByTier map[string]model.TierStats, tier config.TierConfig) float64 {
	ts, ok := roiByTier[tier.Name]
	if !ok || ts.Operations == 0 {
		return 0
	}
	return ts.TotalReward / float64(ts.Operations)
}

// RecordTransaction appends a ledger entry for a metered operation. The
// actual reward is back-filled by the learning loop once attribution
// resolves for the artifact.
func (s *Selector) RecordTransaction(ctx context.Context, operationType, taskType string, sel Selection, artifactID string) (*model.BudgetTransaction, error) {
	txn := &model.BudgetTransaction{
		OperationType:  operationType,
		TaskType:       taskType,
		ModelTier:      sel.Tier.Name,
		Cost:           sel.Tier.CostPerCall,
		ExpectedReward: sel.ExpectedReward,
		WasFallback:    sel.WasFallback,
		Degraded:       sel.Degraded,
		ArtifactID:     artifactID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.AppendBudgetTransaction(ctx, txn); err != nil {
		return nil, eris.Wrap(err, "budget: append transaction")
	}
	return txn, nil
}

// Utilization reads month-to-date spend against the configured budget.
// Errors surface as ErrBudgetUnavailable so callers can degrade explicitly.
func (s *Selector) Utilization(ctx context.Context) (float64, error) {
	if s.cfg.MonthlyBudget <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	spent, err := s.store.SpentSince(ctx, monthStart)
	if err != nil {
		return 0, eris.Wrap(model.ErrBudgetUnavailable, err.Error())
	}
	return spent / s.cfg.MonthlyBudget, nil
}

// TierROI exposes the aggregated ledger for reporting.
func (s *Selector) TierROI(ctx context.Context, taskType string) ([]model.TierStats, error) {
	return s.store.TierROI(ctx, taskType)
}

// Tiers returns the configured tiers, cheapest first.
func (s *Selector) Tiers() []config.TierConfig {
	return s.cfg.Tiers
}
