// Package timing ranks the 24x7 hour-by-day posting windows. Buckets carry
// the same Beta-Bernoulli statistics as arms and share the stats package's
// confidence math.
package timing

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/growthloop/decider/internal/config"
	"github.com/growthloop/decider/internal/model"
	"github.com/growthloop/decider/internal/stats"
	"github.com/growthloop/decider/internal/store"
)

// Optimizer maintains and ranks posting-window buckets.
type Optimizer struct {
	store store.Store
	cfg   config.TimingConfig
}

// NewOptimizer creates an Optimizer.
func NewOptimizer(st store.Store, cfg config.TimingConfig) *Optimizer {
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 10
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 3
	}
	return &Optimizer{store: st, cfg: cfg}
}

// UpdateBucket applies one observation to the (hour, dayOfWeek) bucket: a
// Bayesian success/failure update plus running engagement and reward means.
// The store write is atomic, so concurrent updates to the same bucket don't
// lose counts.
func (o *Optimizer) UpdateBucket(ctx context.Context, hour, dayOfWeek int, engagement float64, reward float64, impressions, followersGained int64) error {
	if hour < 0 || hour > 23 {
		return eris.Errorf("timing: hour %d out of range", hour)
	}
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return eris.Errorf("timing: day of week %d out of range", dayOfWeek)
	}

	var rate float64
	if impressions > 0 {
		rate = engagement / float64(impressions)
	}

	return o.store.UpdateTimingBucket(ctx, store.TimingUpdate{
		Hour:            hour,
		DayOfWeek:       dayOfWeek,
		Success:         engagement > o.cfg.SuccessThreshold,
		EngagementRate:  rate,
		Reward:          reward,
		Impressions:     impressions,
		FollowersGained: followersGained,
	})
}

// RankWindows returns the posting windows with at least minSamples trials
// and a Wilson lower bound at or above confidenceThreshold, best first
// (avg reward descending, then confidence). Under-sampled buckets are
// excluded outright; they never surface with spuriously high confidence.
//
// When nothing qualifies the fixed default schedule is returned instead, so
// callers always get a usable recommendation.
func (o *Optimizer) RankWindows(ctx context.Context, confidenceThreshold float64, minSamples int) ([]model.Window, error) {
	if minSamples <= 0 {
		minSamples = o.cfg.MinSamples
	}

	buckets, err := o.store.ListTimingBuckets(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "timing: list buckets")
	}

	var windows []model.Window
	for _, b := range buckets {
		if b.Trials < int64(minSamples) {
			continue
		}
		conf := stats.WilsonLowerBound(b.Successes, float64(b.Trials), stats.DefaultZ)
		if conf < confidenceThreshold {
			continue
		}
		windows = append(windows, model.Window{
			Hour:       b.Hour,
			DayOfWeek:  b.DayOfWeek,
			AvgReward:  b.AvgReward,
			Confidence: conf,
			Trials:     b.Trials,
		})
	}

	if len(windows) == 0 {
		zap.L().Info("timing: no windows above threshold, using default schedule",
			zap.Float64("confidence_threshold", confidenceThreshold),
			zap.Int("min_samples", minSamples),
		)
		return DefaultSchedule(), nil
	}

	sort.Slice(windows, func(i, j int) bool {
		if windows[i].AvgReward != windows[j].AvgReward {
			return windows[i].AvgReward > windows[j].AvgReward
		}
		return windows[i].Confidence > windows[j].Confidence
	})
	return windows, nil
}

// DefaultSchedule is the cold-start fallback: typical US-audience engagement
// peaks (weekday lunch hour and evenings, weekend mornings). Returned when
// no learned bucket clears the confidence bar.
func DefaultSchedule() []model.Window {
	var windows []model.Window
	// Weekdays: 9am, 12pm, 5pm, 7pm.
	for dow := 1; dow <= 5; dow++ {
		for _, hour := range []int{9, 12, 17, 19} {
			windows = append(windows, model.Window{Hour: hour, DayOfWeek: dow, Default: true})
		}
	}
	// Weekends: 10am, 1pm.
	for _, dow := range []int{0, 6} {
		for _, hour := range []int{10, 13} {
			windows = append(windows, model.Window{Hour: hour, DayOfWeek: dow, Default: true})
		}
	}
	return windows
}
