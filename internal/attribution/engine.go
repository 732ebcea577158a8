// Package attribution maps delayed outcome snapshots back to the decision
// that produced them as a single composite reward.
package attribution

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/growthloop/decider/internal/config"
	"github.com/growthloop/decider/internal/model"
	"github.com/growthloop/decider/internal/store"
)

// Score caps for the composite reward components. The weighted composite is
// additionally clamped to [0, 100].
const (
	followerScoreCap   = 30.0
	engagementScoreCap = 25.0
	reachScoreCap      = 25.0
	conversionScoreCap = 20.0

	followerPointsPer  = 5.0   // points per new follower
	engagementDivisor  = 4.0   // (likes + 2rt + 3re) / divisor
	impressionsDivisor = 200.0 // impressions per reach point
	conversionScale    = 200.0 // profile-visit rate multiplier

	trailingWindow = 7 * 24 * time.Hour
)

// Engine computes and persists attribution records.
type Engine struct {
	store  store.Store
	reward config.RewardConfig
	cfg    config.AttributionConfig
}

// NewEngine creates an attribution Engine.
func NewEngine(st store.Store, reward config.RewardConfig, cfg config.AttributionConfig) *Engine {
	if cfg.ViralMultiplier <= 0 {
		cfg.ViralMultiplier = 2.0
	}
	return &Engine{store: st, reward: reward, cfg: cfg}
}

// Attribute converts one outcome snapshot into an AttributionRecord for
// (artifactID, phase) and upserts it. Re-attributing the same phase
// overwrites the record; it never duplicates and never re-applies the reward
// to arm statistics (the applied flag survives the overwrite).
//
// The snapshot is rejected with ErrInvalidPhase or ErrStaleSnapshot when the
// phase is unknown or the reading predates the artifact's publish time.
func (e *Engine) Attribute(ctx context.Context, artifactID string, phase model.Phase, snap model.OutcomeSnapshot) (*model.AttributionRecord, error) {
	if !model.ValidPhase(phase) {
		return nil, eris.Wrapf(model.ErrInvalidPhase, "%q", phase)
	}

	decision, err := e.store.GetDecisionByArtifact(ctx, artifactID)
	if err != nil {
		return nil, eris.Wrapf(err, "attribution: resolve decision for artifact %s", artifactID)
	}
	if decision.PublishedAt != nil && snap.TakenAt.Before(*decision.PublishedAt) {
		return nil, eris.Wrapf(model.ErrStaleSnapshot,
			"taken %s before publish %s", snap.TakenAt.Format(time.RFC3339), decision.PublishedAt.Format(time.RFC3339))
	}

	snap.ArtifactID = artifactID
	snap.Phase = phase
	if err := e.store.PutOutcomeSnapshot(ctx, &snap); err != nil {
		return nil, eris.Wrap(err, "attribution: store snapshot")
	}

	before, missingPrior := e.followersBefore(ctx, artifactID, phase, snap.FollowerCount)

	// Follower churn clamps to zero, never negative.
	newFollowers := snap.FollowerCount - before
	if newFollowers < 0 {
		newFollowers = 0
	}

	reward := e.compositeReward(newFollowers, &snap)

	confidence := model.ConfidenceForPhase(phase)
	if missingPrior {
		confidence = model.ConfidenceLow
	}

	rec := &model.AttributionRecord{
		ArtifactID:      artifactID,
		Phase:           phase,
		FollowersBefore: before,
		FollowersAfter:  snap.FollowerCount,
		NewFollowers:    newFollowers,
		Confidence:      confidence,
		Reward:          reward,
		Viral:           e.isViral(ctx, snap.Likes),
		SnapshotAt:      snap.TakenAt.UTC(),
	}
	if err := e.store.UpsertAttribution(ctx, rec); err != nil {
		return nil, eris.Wrap(err, "attribution: upsert record")
	}

	zap.L().Info("attribution: recorded",
		zap.String("artifact_id", artifactID),
		zap.String("phase", string(phase)),
		zap.Int64("new_followers", newFollowers),
		zap.Float64("reward", reward),
		zap.String("confidence", string(confidence)),
	)
	return rec, nil
}

// followersBefore resolves the follower baseline for a phase: the baseline
// snapshot when present, else the earliest earlier phase. With no prior
// reading at all the delta is unknowable, so the current count is used
// (zero growth) and the record drops to low confidence.
func (e *Engine) followersBefore(ctx context.Context, artifactID string, phase model.Phase, current int64) (int64, bool) {
	if phase == model.PhaseBaseline {
		return current, false
	}
	for _, prior := range priorPhases(phase) {
		prev, err := e.store.GetOutcomeSnapshot(ctx, artifactID, prior)
		if err == nil {
			return prev.FollowerCount, false
		}
		if !eris.Is(err, model.ErrNotFound) {
			zap.L().Warn("attribution: prior snapshot lookup failed",
				zap.String("artifact_id", artifactID),
				zap.String("phase", string(prior)),
				zap.Error(err),
			)
		}
	}
	return current, true
}

// priorPhases lists earlier phases in lookup order, baseline first.
func priorPhases(p model.Phase) []model.Phase {
	switch p {
	case model.Phase2h:
		return []model.Phase{model.PhaseBaseline}
	case model.Phase24h:
		return []model.Phase{model.PhaseBaseline, model.Phase2h}
	case model.Phase48h:
		return []model.Phase{model.PhaseBaseline, model.Phase2h, model.Phase24h}
	}
	return nil
}

// compositeReward computes the weighted 0-100 reward from the raw counts.
// Zero impressions zero out the reach and conversion terms instead of
// dividing by zero.
func (e *Engine) compositeReward(newFollowers int64, snap *model.OutcomeSnapshot) float64 {
	followerScore := math.Min(followerScoreCap, float64(newFollowers)*followerPointsPer)

	engagement := float64(snap.Likes + 2*snap.Retweets + 3*snap.Replies)
	engagementScore := math.Min(engagementScoreCap, engagement/engagementDivisor)

	var reachScore, conversionScore float64
	if snap.Impressions > 0 {
		reachScore = math.Min(reachScoreCap, float64(snap.Impressions)/impressionsDivisor)
		visitRate := float64(snap.ProfileVisits) / float64(snap.Impressions)
		conversionScore = math.Min(conversionScoreCap, visitRate*conversionScale)
	}

	reward := followerScore*e.reward.FollowerWeight +
		engagementScore*e.reward.EngagementWeight +
		reachScore*e.reward.ReachWeight +
		conversionScore*e.reward.ConversionWeight

	return math.Min(100, math.Max(0, reward))
}

// isViral checks likes against the trailing 7-day average. Reporting only;
// the reward math never sees this flag.
func (e *Engine) isViral(ctx context.Context, likes int64) bool {
	avg, err := e.store.TrailingAvgLikes(ctx, time.Now().UTC().Add(-trailingWindow))
	if err != nil {
		zap.L().Warn("attribution: trailing likes lookup failed", zap.Error(err))
		return false
	}
	return avg > 0 && float64(likes) >= e.cfg.ViralMultiplier*avg
}
