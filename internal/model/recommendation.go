package model

import "time"

// RankedArm is one entry in the published per-type arm ranking.
type RankedArm struct {
	ArmID       string  `json:"arm_id"`
	Type        ArmType `json:"type"`
	AvgReward   float64 `json:"avg_reward"`
	Confidence  float64 `json:"confidence"` // Wilson lower bound on success rate
	Trials      int64   `json:"trials"`
	SuccessRate float64 `json:"success_rate"`
}

// Window is one ranked posting window. Default marks entries coming from the
// fixed fallback schedule rather than learned statistics.
type Window struct {
	Hour       int     `json:"hour"`
	DayOfWeek  int     `json:"day_of_week"`
	AvgReward  float64 `json:"avg_reward"`
	Confidence float64 `json:"confidence"`
	Trials     int64   `json:"trials"`
	Default    bool    `json:"default,omitempty"`
}

// Recommendations is the versioned snapshot the orchestrator publishes after
// each learning cycle. Dashboards and schedulers read the latest snapshot;
// they never see a partially updated set.
type Recommendations struct {
	ID          string      `json:"id"`
	Arms        []RankedArm `json:"arms"`
	Windows     []Window    `json:"windows"`
	TierROI     []TierStats `json:"tier_roi"`
	PublishedAt time.Time   `json:"published_at"`
}
