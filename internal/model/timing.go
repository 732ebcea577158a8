package model

import "time"

// TimingBucket is the per-(hour, day-of-week) posting-window statistic. The
// 24x7 bucket space is fixed; buckets are created on first update and carry
// the same Beta-Bernoulli shape parameters as arms.
type TimingBucket struct {
	Hour      int `json:"hour"`        // 0-23
	DayOfWeek int `json:"day_of_week"` // 0-6, Sunday = 0

	Trials    int64   `json:"trials"`
	Successes float64 `json:"successes"`
	Alpha     float64 `json:"alpha"`
	Beta      float64 `json:"beta"`

	// Running means, recomputed on every update.
	AvgEngagementRate float64 `json:"avg_engagement_rate"`
	AvgReward         float64 `json:"avg_reward"`

	TotalImpressions int64     `json:"total_impressions"`
	FollowersGained  int64     `json:"followers_gained"`
	UpdatedAt        time.Time `json:"updated_at"`
}
