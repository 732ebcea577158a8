package bandit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/growthloop/decider/internal/model"
)

func TestBuildContextFields(t *testing.T) {
	// Wednesday 14:05 UTC.
	now := time.Date(2026, 8, 26, 14, 5, 0, 0, time.UTC)

	snap := BuildContext(now, []float64{10, 10, 30, 40}, 0.42)
	assert.Equal(t, 14, snap.Hour)
	assert.Equal(t, 3, snap.DayOfWeek)
	assert.Equal(t, model.TrendUp, snap.RecentTrend)
	assert.Equal(t, 0.42, snap.BudgetUtilization)
	assert.Greater(t, snap.MomentumScore, 0.0)
}

func TestBuildContextClampsUtilization(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 0.0, BuildContext(now, nil, -0.5).BudgetUtilization)
	assert.Equal(t, 1.0, BuildContext(now, nil, 1.5).BudgetUtilization)
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name    string
		rewards []float64
		want    model.Trend
	}{
		{"too few samples", []float64{5, 90, 90}, model.TrendStable},
		{"rising", []float64{10, 10, 30, 40}, model.TrendUp},
		{"falling", []float64{40, 30, 10, 10}, model.TrendDown},
		{"flat", []float64{20, 20, 21, 20}, model.TrendStable},
		{"within band", []float64{20, 20, 21, 22}, model.TrendStable},
		{"empty", nil, model.TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyTrend(tt.rewards))
		})
	}
}

func TestMomentumEMA(t *testing.T) {
	assert.Zero(t, momentum(nil))
	assert.Equal(t, 50.0, momentum([]float64{50}))

	// EMA with smoothing 0.3: 0.3*100 + 0.7*0 = 30.
	assert.InDelta(t, 30, momentum([]float64{0, 100}), 1e-9)

	// Recent values pull the score their way.
	rising := momentum([]float64{10, 10, 80, 90})
	falling := momentum([]float64{90, 80, 10, 10})
	assert.Greater(t, rising, falling)
}
