package bandit

import (
	"time"

	"github.com/growthloop/decider/internal/model"
)

// momentumSmoothing is the EMA factor for the momentum score; recent rewards
// dominate but a single outlier doesn't swing the signal.
const momentumSmoothing = 0.3

// BuildContext assembles the feature snapshot for a decision: wall-clock
// bucket, recent engagement trend, budget utilization, and a momentum score
// derived from the most recent attributed rewards (oldest first).
func BuildContext(now time.Time, recentRewards []float64, budgetUtilization float64) model.ContextSnapshot {
	if budgetUtilization < 0 {
		budgetUtilization = 0
	}
	if budgetUtilization > 1 {
		budgetUtilization = 1
	}
	return model.ContextSnapshot{
		Hour:              now.Hour(),
		DayOfWeek:         int(now.Weekday()),
		RecentTrend:       classifyTrend(recentRewards),
		BudgetUtilization: budgetUtilization,
		MomentumScore:     momentum(recentRewards),
	}
}

// classifyTrend compares the mean reward of the newer half of the window
// against the older half. Within 10% either way counts as stable.
func classifyTrend(rewards []float64) model.Trend {
	if len(rewards) < 4 {
		return model.TrendStable
	}
	mid := len(rewards) / 2
	older := mean(rewards[:mid])
	newer := mean(rewards[mid:])

	switch {
	case newer > older*1.1:
		return model.TrendUp
	case newer < older*0.9:
		return model.TrendDown
	default:
		return model.TrendStable
	}
}

// momentum is an exponential moving average of recent rewards.
func momentum(rewards []float64) float64 {
	if len(rewards) == 0 {
		return 0
	}
	ema := rewards[0]
	for _, r := range rewards[1:] {
		ema = momentumSmoothing*r + (1-momentumSmoothing)*ema
	}
	return ema
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
