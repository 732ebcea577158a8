package store

import (
	"context"
	"time"

	"github.com/growthloop/decider/internal/model"
)

// TimingUpdate is one Bayesian update to a posting-window bucket.
type TimingUpdate struct {
	Hour            int
	DayOfWeek       int
	Success         bool
	EngagementRate  float64
	Reward          float64
	Impressions     int64
	FollowersGained int64
}

// Store defines the persistence interface for the decision engine.
//
// ApplyReward and UpdateTimingBucket must be atomic read-modify-writes:
// concurrent attribution events resolving against the same arm or bucket
// must not lose updates. Reads of arm posteriors may be stale by one update.
type Store interface {
	// Arms
	EnsureArm(ctx context.Context, arm *model.Arm) error
	GetArm(ctx context.Context, id string) (*model.Arm, error)
	ListArms(ctx context.Context, armType model.ArmType, activeOnly bool) ([]model.Arm, error)
	SetArmActive(ctx context.Context, id string, active bool) error
	ApplyReward(ctx context.Context, armID string, successDelta, reward float64) error

	// Decisions
	CreateDecision(ctx context.Context, d *model.Decision) error
	GetDecision(ctx context.Context, id string) (*model.Decision, error)
	LinkArtifact(ctx context.Context, decisionID, artifactID string, publishedAt time.Time) error
	GetDecisionByArtifact(ctx context.Context, artifactID string) (*model.Decision, error)

	// Outcome snapshots
	PutOutcomeSnapshot(ctx context.Context, snap *model.OutcomeSnapshot) error
	GetOutcomeSnapshot(ctx context.Context, artifactID string, phase model.Phase) (*model.OutcomeSnapshot, error)
	TrailingAvgLikes(ctx context.Context, since time.Time) (float64, error)

	// Attribution records, keyed (artifact_id, phase). Upserts are
	// last-writer-wins only when the incoming snapshot is not older; the
	// applied flag survives overwrites.
	UpsertAttribution(ctx context.Context, rec *model.AttributionRecord) error
	GetAttribution(ctx context.Context, artifactID string, phase model.Phase) (*model.AttributionRecord, error)
	ListUnappliedAttributions(ctx context.Context, limit int) ([]model.AttributionRecord, error)
	MarkAttributionApplied(ctx context.Context, artifactID string, phase model.Phase) error

	// Timing buckets
	UpdateTimingBucket(ctx context.Context, u TimingUpdate) error
	ListTimingBuckets(ctx context.Context) ([]model.TimingBucket, error)

	// Budget ledger (append-only; actual reward back-filled on resolution)
	AppendBudgetTransaction(ctx context.Context, txn *model.BudgetTransaction) error
	ResolveBudgetTransactions(ctx context.Context, artifactID string, actualReward float64) (int, error)
	TierROI(ctx context.Context, taskType string) ([]model.TierStats, error)
	SpentSince(ctx context.Context, since time.Time) (float64, error)

	// Published recommendations
	PublishRecommendations(ctx context.Context, recs *model.Recommendations) error
	LatestRecommendations(ctx context.Context) (*model.Recommendations, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
