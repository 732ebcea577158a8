// Package learner runs the periodic loop that feeds attributed rewards back
// into arm and timing statistics and republishes recommendations.
package learner

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/growthloop/decider/internal/config"
	"github.com/growthloop/decider/internal/model"
	"github.com/growthloop/decider/internal/registry"
	"github.com/growthloop/decider/internal/resilience"
	"github.com/growthloop/decider/internal/stats"
	"github.com/growthloop/decider/internal/store"
	"github.com/growthloop/decider/internal/timing"
)

// Summary reports one learning cycle.
type Summary struct {
	Pulled    int           `json:"pulled"`
	Applied   int           `json:"applied"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Published bool          `json:"published"`
	Duration  time.Duration `json:"duration"`
}

// Orchestrator coordinates the pull-apply-publish cycle.
type Orchestrator struct {
	store    store.Store
	registry *registry.Registry
	timing   *timing.Optimizer

	attCfg    config.AttributionConfig
	banditCfg config.BanditConfig
	timingCfg config.TimingConfig
	cfg       config.LearnConfig
	retryCfg  resilience.RetryConfig
}

// New creates an Orchestrator.
func New(st store.Store, reg *registry.Registry, opt *timing.Optimizer,
	attCfg config.AttributionConfig, banditCfg config.BanditConfig,
	timingCfg config.TimingConfig, cfg config.LearnConfig) *Orchestrator {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 500
	}
	if cfg.ApplyConcurrency <= 0 {
		cfg.ApplyConcurrency = 4
	}
	if attCfg.LowConfidenceWeight <= 0 {
		attCfg.LowConfidenceWeight = 0.5
	}
	if attCfg.SuccessThreshold <= 0 {
		attCfg.SuccessThreshold = 50
	}
	return &Orchestrator{
		store:     st,
		registry:  reg,
		timing:    opt,
		attCfg:    attCfg,
		banditCfg: banditCfg,
		timingCfg: timingCfg,
		cfg:       cfg,
		retryCfg:  resilience.DefaultRetryConfig(),
	}
}

// RunOnce executes one learning cycle: pull unapplied attribution records,
// apply each to the originating arm and its timing bucket, back-fill budget
// ROI, then republish recommendations.
//
// Records are marked applied individually right after their stat update, so
// a crash mid-batch re-applies nothing already marked and resumes with the
// remainder. A record that fails to apply is logged and left pending for the
// next cycle; one bad record never halts the batch.
func (o *Orchestrator) RunOnce(ctx context.Context) (*Summary, error) {
	start := time.Now()
	if o.cfg.MaxRunDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.MaxRunDuration)
		defer cancel()
	}

	records, err := o.store.ListUnappliedAttributions(ctx, o.cfg.BatchLimit)
	if err != nil {
		return nil, eris.Wrap(err, "learner: list unapplied attributions")
	}

	summary := &Summary{Pulled: len(records)}
	var mu sync.Mutex

	// Safe to apply concurrently: arm and bucket updates are atomic
	// read-modify-writes and no two records share an (artifact, phase) key.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.ApplyConcurrency)
	for _, rec := range records {
		g.Go(func() error {
			outcome := o.applyRecord(gctx, rec)
			mu.Lock()
			switch outcome {
			case applyOK:
				summary.Applied++
			case applySkipped:
				summary.Skipped++
			default:
				summary.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, eris.Wrap(err, "learner: apply batch")
	}

	if err := o.publish(ctx); err != nil {
		// Recommendations refresh next cycle; the applied stats are durable.
		zap.L().Error("learner: publish recommendations failed", zap.Error(err))
	} else {
		summary.Published = true
	}

	summary.Duration = time.Since(start)
	zap.L().Info("learner: cycle complete",
		zap.Int("pulled", summary.Pulled),
		zap.Int("applied", summary.Applied),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

type applyOutcome int

const (
	applyOK applyOutcome = iota
	applySkipped
	applyFailed
)

// applyRecord feeds one attribution record into arm statistics, the timing
// bucket of the originating decision, and the budget ledger.
func (o *Orchestrator) applyRecord(ctx context.Context, rec model.AttributionRecord) applyOutcome {
	decision, err := resilience.DoVal(ctx, o.retryCfg, func(ctx context.Context) (*model.Decision, error) {
		return o.store.GetDecisionByArtifact(ctx, rec.ArtifactID)
	})
	if err != nil {
		if eris.Is(err, model.ErrNotFound) {
			// Posting collaborator hasn't linked the artifact yet; the
			// record stays pending for a later cycle.
			zap.L().Warn("learner: no decision for artifact, deferring",
				zap.String("artifact_id", rec.ArtifactID),
				zap.String("phase", string(rec.Phase)),
			)
			return applySkipped
		}
		zap.L().Error("learner: decision lookup failed",
			zap.String("artifact_id", rec.ArtifactID), zap.Error(err))
		return applyFailed
	}

	weighted := rec.Reward
	if rec.Confidence == model.ConfidenceLow {
		weighted *= o.attCfg.LowConfidenceWeight
	}

	successDelta := weighted / 100
	if weighted > o.attCfg.SuccessThreshold {
		successDelta = 1
	}

	// Concurrent workers contend on the arm row; lock errors clear on retry.
	err = resilience.Do(ctx, o.retryCfg, func(ctx context.Context) error {
		return o.registry.ApplyReward(ctx, decision.ArmID, successDelta, weighted)
	})
	if err != nil {
		zap.L().Error("learner: arm update failed",
			zap.String("arm_id", decision.ArmID),
			zap.String("artifact_id", rec.ArtifactID),
			zap.Error(err),
		)
		return applyFailed
	}

	o.updateTiming(ctx, decision, rec, weighted)

	if _, err := o.store.ResolveBudgetTransactions(ctx, rec.ArtifactID, rec.Reward); err != nil {
		zap.L().Warn("learner: budget backfill failed",
			zap.String("artifact_id", rec.ArtifactID), zap.Error(err))
	}

	// The applied mark is the idempotency guard: re-runs and overlapping
	// cycles see it and skip the record.
	err = resilience.Do(ctx, o.retryCfg, func(ctx context.Context) error {
		return o.store.MarkAttributionApplied(ctx, rec.ArtifactID, rec.Phase)
	})
	if err != nil {
		zap.L().Error("learner: mark applied failed",
			zap.String("artifact_id", rec.ArtifactID),
			zap.String("phase", string(rec.Phase)),
			zap.Error(err),
		)
		return applyFailed
	}
	return applyOK
}

// updateTiming feeds the reward into the bucket matching the decision's
// context snapshot. Best-effort: a failed bucket update costs one timing
// observation, not the record.
func (o *Orchestrator) updateTiming(ctx context.Context, decision *model.Decision, rec model.AttributionRecord, weighted float64) {
	var engagement float64
	var impressions int64
	if snap, err := o.store.GetOutcomeSnapshot(ctx, rec.ArtifactID, rec.Phase); err == nil {
		engagement = float64(snap.Likes + 2*snap.Retweets + 3*snap.Replies)
		impressions = snap.Impressions
	}

	err := o.timing.UpdateBucket(ctx, decision.Context.Hour, decision.Context.DayOfWeek,
		engagement, weighted, impressions, rec.NewFollowers)
	if err != nil {
		zap.L().Warn("learner: timing bucket update failed",
			zap.Int("hour", decision.Context.Hour),
			zap.Int("day_of_week", decision.Context.DayOfWeek),
			zap.Error(err),
		)
	}
}

// publish recomputes and stores the recommendation snapshot: ranked arms per
// type, ranked posting windows, and the model ROI table.
func (o *Orchestrator) publish(ctx context.Context) error {
	var ranked []model.RankedArm
	for _, armType := range []model.ArmType{model.ArmTypeContentFormat, model.ArmTypeTimingWindow, model.ArmTypeModelTier} {
		arms, err := o.store.ListArms(ctx, armType, true)
		if err != nil {
			return eris.Wrapf(err, "learner: list arms %s", armType)
		}
		ranked = append(ranked, o.rankArms(arms)...)
	}

	windows, err := o.timing.RankWindows(ctx, o.timingCfg.ConfidenceThreshold, o.timingCfg.MinSamples)
	if err != nil {
		return eris.Wrap(err, "learner: rank windows")
	}

	tierROI, err := o.store.TierROI(ctx, "")
	if err != nil {
		return eris.Wrap(err, "learner: tier roi")
	}

	recs := &model.Recommendations{
		Arms:        ranked,
		Windows:     windows,
		TierROI:     tierROI,
		PublishedAt: time.Now().UTC(),
	}
	return eris.Wrap(o.store.PublishRecommendations(ctx, recs), "learner: publish")
}

// rankArms orders one type's arms by average reward, then confidence.
// Cold-start arms report zero confidence rather than an inflated bound.
func (o *Orchestrator) rankArms(arms []model.Arm) []model.RankedArm {
	out := make([]model.RankedArm, 0, len(arms))
	for _, a := range arms {
		var conf, rate float64
		if a.Trials > 0 {
			rate = a.Successes / float64(a.Trials)
		}
		if a.Trials >= int64(o.banditCfg.MinSamples) {
			conf = stats.WilsonLowerBound(a.Successes, float64(a.Trials), o.banditCfg.WilsonZ)
		}
		out = append(out, model.RankedArm{
			ArmID:       a.ID,
			Type:        a.Type,
			AvgReward:   a.MeanReward(),
			Confidence:  conf,
			Trials:      a.Trials,
			SuccessRate: rate,
		})
	}
	sortRanked(out)
	return out
}

func sortRanked(arms []model.RankedArm) {
	for i := 1; i < len(arms); i++ {
		for j := i; j > 0 && rankedLess(arms[j], arms[j-1]); j-- {
			arms[j], arms[j-1] = arms[j-1], arms[j]
		}
	}
}

func rankedLess(a, b model.RankedArm) bool {
	if a.AvgReward != b.AvgReward {
		return a.AvgReward > b.AvgReward
	}
	return a.Confidence > b.Confidence
}

// Run executes RunOnce on the configured cadence until ctx is canceled. The
// first cycle runs immediately.
func (o *Orchestrator) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = time.Hour
	}

	if _, err := o.RunOnce(ctx); err != nil {
		zap.L().Error("learner: cycle failed", zap.Error(err))
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := o.RunOnce(ctx); err != nil {
				zap.L().Error("learner: cycle failed", zap.Error(err))
			}
		}
	}
}
