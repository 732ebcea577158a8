package model

import "time"

// SelectionMethod identifies which bandit policy produced a decision.
type SelectionMethod string

const (
	MethodThompson      SelectionMethod = "thompson"
	MethodUCB           SelectionMethod = "ucb"
	MethodEpsilonGreedy SelectionMethod = "epsilon_greedy"
)

// Trend classifies the recent engagement trajectory at decision time.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// ContextSnapshot is the immutable feature set observed when a decision is
// made. It is recorded on the Decision and never mutated afterward.
type ContextSnapshot struct {
	Hour              int     `json:"hour"`        // 0-23
	DayOfWeek         int     `json:"day_of_week"` // 0-6, Sunday = 0
	RecentTrend       Trend   `json:"recent_trend"`
	BudgetUtilization float64 `json:"budget_utilization"` // 0-1
	MomentumScore     float64 `json:"momentum_score"`
}

// Decision is one bandit selection event. It is created by the selector and
// read-only thereafter; the posting collaborator links the published artifact
// to it once the post goes out.
type Decision struct {
	ID              string          `json:"id"`
	ArmID           string          `json:"arm_id"`
	ArmType         ArmType         `json:"arm_type"`
	Context         ContextSnapshot `json:"context"`
	PredictedReward float64         `json:"predicted_reward"`
	Method          SelectionMethod `json:"method"`

	// Set by LinkArtifact once the post is published.
	ArtifactID  string     `json:"artifact_id,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
