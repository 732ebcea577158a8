package model

import "time"

// ArmType partitions the arm space by what kind of alternative is being chosen.
type ArmType string

const (
	ArmTypeContentFormat ArmType = "content_format"
	ArmTypeTimingWindow  ArmType = "timing_window"
	ArmTypeModelTier     ArmType = "model_tier"
)

// ValidArmType reports whether t is one of the known arm types.
func ValidArmType(t ArmType) bool {
	switch t {
	case ArmTypeContentFormat, ArmTypeTimingWindow, ArmTypeModelTier:
		return true
	}
	return false
}

// Arm is a selectable alternative with its running Beta-Bernoulli statistics.
//
// Invariants maintained by the registry on every update:
//
//	Trials >= Successes >= 0
//	Alpha = 1 + Successes
//	Beta  = 1 + (Trials - Successes)
type Arm struct {
	ID       string            `json:"id"`
	Type     ArmType           `json:"type"`
	Features map[string]string `json:"features,omitempty"`
	Active   bool              `json:"active"`

	Trials           int64   `json:"trials"`
	Successes        float64 `json:"successes"` // fractional under soft rewards
	CumulativeReward float64 `json:"cumulative_reward"`
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewArm returns an arm seeded with the uniform Beta(1,1) prior.
func NewArm(id string, armType ArmType, features map[string]string) *Arm {
	now := time.Now().UTC()
	return &Arm{
		ID:        id,
		Type:      armType,
		Features:  features,
		Active:    true,
		Alpha:     1.0,
		Beta:      1.0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MeanReward is the average attributed reward per trial, or 0 before any trial.
func (a *Arm) MeanReward() float64 {
	if a.Trials == 0 {
		return 0
	}
	return a.CumulativeReward / float64(a.Trials)
}

// PosteriorMean is the expected success rate under the current Beta posterior.
func (a *Arm) PosteriorMean() float64 {
	if a.Alpha+a.Beta == 0 {
		return 0.5
	}
	return a.Alpha / (a.Alpha + a.Beta)
}
