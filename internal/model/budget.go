package model

import "time"

// roiEpsilon guards the ROI division for near-free operations.
const roiEpsilon = 1e-6

// BudgetTransaction is one append-only ledger entry for a metered operation.
// ActualReward and ROI are back-filled once attribution resolves.
type BudgetTransaction struct {
	ID             string     `json:"id"`
	OperationType  string     `json:"operation_type"`
	TaskType       string     `json:"task_type"`
	ModelTier      string     `json:"model_tier"`
	Cost           float64    `json:"cost"`
	ExpectedReward float64    `json:"expected_reward"`
	ActualReward   *float64   `json:"actual_reward,omitempty"`
	ROI            *float64   `json:"roi,omitempty"`
	WasFallback    bool       `json:"was_fallback_model"`
	Degraded       bool       `json:"degraded"`
	ArtifactID     string     `json:"artifact_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// ComputeROI returns reward per unit cost, safe for zero-cost operations.
func ComputeROI(actualReward, cost float64) float64 {
	if cost < roiEpsilon {
		cost = roiEpsilon
	}
	return actualReward / cost
}

// TierStats aggregates the ledger per (task type, model tier).
type TierStats struct {
	TaskType    string  `json:"task_type"`
	ModelTier   string  `json:"model_tier"`
	Operations  int64   `json:"operations"`
	TotalCost   float64 `json:"total_cost"`
	TotalReward float64 `json:"total_reward"` // attributed reward, resolved rows only
	AvgROI      float64 `json:"avg_roi"`
}
