package model

import "time"

// Phase identifies which scheduled metrics reading an outcome snapshot is.
type Phase string

const (
	PhaseBaseline Phase = "baseline"
	Phase2h       Phase = "+2h"
	Phase24h      Phase = "+24h"
	Phase48h      Phase = "+48h"
)

// ValidPhase reports whether p is one of the defined measurement phases.
func ValidPhase(p Phase) bool {
	switch p {
	case PhaseBaseline, Phase2h, Phase24h, Phase48h:
		return true
	}
	return false
}

// Confidence grades how trustworthy an attribution is, by phase recency.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ConfidenceForPhase returns the confidence grade for a phase. Early readings
// are most attributable to the post itself; later ones pick up ambient noise.
func ConfidenceForPhase(p Phase) Confidence {
	switch p {
	case Phase2h:
		return ConfidenceHigh
	case Phase24h:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// OutcomeSnapshot is a single raw metrics reading for a published artifact.
// Immutable once written; phases accumulate over the artifact's lifetime.
type OutcomeSnapshot struct {
	ArtifactID    string    `json:"artifact_id"`
	Phase         Phase     `json:"phase"`
	Likes         int64     `json:"likes"`
	Retweets      int64     `json:"retweets"`
	Replies       int64     `json:"replies"`
	Impressions   int64     `json:"impressions"`
	ProfileVisits int64     `json:"profile_visits"`
	FollowerCount int64     `json:"follower_count"`
	TakenAt       time.Time `json:"taken_at"`
}

// AttributionRecord maps one outcome snapshot back to the decision that
// caused it as a single scalar reward. Exactly one record exists per
// (artifact, phase); re-attribution overwrites rather than duplicates.
type AttributionRecord struct {
	ArtifactID      string     `json:"artifact_id"`
	Phase           Phase      `json:"phase"`
	FollowersBefore int64      `json:"followers_before"`
	FollowersAfter  int64      `json:"followers_after"`
	NewFollowers    int64      `json:"new_followers"` // clamped >= 0
	Confidence      Confidence `json:"confidence"`
	Reward          float64    `json:"reward"` // composite, 0-100
	Viral           bool       `json:"viral"`
	SnapshotAt      time.Time  `json:"snapshot_at"`

	// Applied is the orchestrator's idempotency guard: the reward is fed to
	// arm statistics at most once per record.
	Applied   bool      `json:"applied"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
