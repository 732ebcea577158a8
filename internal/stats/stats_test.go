package stats

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(42, 1))
}

func TestBetaSample_InUnitInterval(t *testing.T) {
	rng := testRNG()
	for i := 0; i < 1000; i++ {
		s := BetaSample(rng, 3, 7)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestBetaSample_MeanApproximatesExpectation(t *testing.T) {
	rng := testRNG()

	// Beta(8, 2) has mean 0.8.
	var sum float64
	const n = 20000
	for i := 0; i < n; i++ {
		sum += BetaSample(rng, 8, 2)
	}
	assert.InDelta(t, 0.8, sum/n, 0.01)
}

func TestBetaSample_UniformPriorForBadShapes(t *testing.T) {
	rng := testRNG()
	var sum float64
	const n = 20000
	for i := 0; i < n; i++ {
		sum += BetaSample(rng, 0, -1)
	}
	assert.InDelta(t, 0.5, sum/n, 0.02)
}

func TestBetaSample_FractionalShape(t *testing.T) {
	rng := testRNG()
	for i := 0; i < 1000; i++ {
		s := BetaSample(rng, 0.5, 0.5)
		assert.False(t, math.IsNaN(s))
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestWilsonLowerBound(t *testing.T) {
	// Known value: 80/100 at z=1.96 gives a lower bound near 0.7112.
	lb := WilsonLowerBound(80, 100, 1.96)
	assert.InDelta(t, 0.7112, lb, 0.001)

	// Zero trials carry no support.
	assert.Equal(t, 0.0, WilsonLowerBound(0, 0, 1.96))

	// Perfect record still bounded below 1 for small samples.
	assert.Less(t, WilsonLowerBound(3, 3, 1.96), 1.0)

	// Bound never goes negative.
	assert.GreaterOrEqual(t, WilsonLowerBound(0, 10, 1.96), 0.0)
}

func TestWilsonBounds_Ordering(t *testing.T) {
	lb := WilsonLowerBound(7, 10, 1.96)
	ub := WilsonUpperBound(7, 10, 1.96)
	assert.Less(t, lb, 0.7)
	assert.Greater(t, ub, 0.7)
	assert.LessOrEqual(t, ub, 1.0)
}

func TestWilsonLowerBound_MoreTrialsTightens(t *testing.T) {
	small := WilsonLowerBound(8, 10, 1.96)
	large := WilsonLowerBound(800, 1000, 1.96)
	assert.Greater(t, large, small, "same rate with more samples should have a higher lower bound")
}

func TestUCB1(t *testing.T) {
	// Untried arms must be pulled first.
	assert.True(t, math.IsInf(UCB1(0, 0, 100), 1))

	// Exploration bonus shrinks as the arm gets pulled.
	few := UCB1(0.5, 5, 1000)
	many := UCB1(0.5, 500, 1000)
	assert.Greater(t, few, many)

	// Bonus grows with total pulls elsewhere.
	early := UCB1(0.5, 10, 20)
	late := UCB1(0.5, 10, 10000)
	assert.Greater(t, late, early)
}
