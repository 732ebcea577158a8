// Package stats holds the Beta-Bernoulli and confidence-interval math shared
// by the bandit selector and the timing optimizer, so both use one
// implementation instead of per-caller formulas.
package stats

import (
	"math"
	"math/rand/v2"
)

// DefaultZ is the z-value for a 95% Wilson score interval.
const DefaultZ = 1.96

// BetaSample draws one sample from Beta(alpha, beta) using rng. Shape
// parameters at or below zero are treated as the uniform prior Beta(1,1).
func BetaSample(rng *rand.Rand, alpha, beta float64) float64 {
	if alpha <= 0 {
		alpha = 1
	}
	if beta <= 0 {
		beta = 1
	}
	x := gammaSample(rng, alpha)
	y := gammaSample(rng, beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// gammaSample draws from Gamma(shape, 1) via Marsaglia-Tsang squeeze,
// boosting shape < 1 with the standard power-of-uniform correction.
func gammaSample(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return gammaSample(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		x := rng.NormFloat64()
		v := 1.0 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1.0-0.0331*x*x*x*x {
			return d * v
		}
		if u > 0 && math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v
		}
	}
}

// WilsonLowerBound returns the lower bound of the Wilson score interval for
// a success rate estimated from trials samples at the given z. Zero trials
// yields 0: an unsampled arm has no statistical support.
func WilsonLowerBound(successes, trials float64, z float64) float64 {
	if trials <= 0 {
		return 0
	}
	if z <= 0 {
		z = DefaultZ
	}
	p := successes / trials
	z2 := z * z
	denom := 1 + z2/trials
	center := p + z2/(2*trials)
	margin := z * math.Sqrt((p*(1-p)+z2/(4*trials))/trials)
	lower := (center - margin) / denom
	if lower < 0 {
		return 0
	}
	return lower
}

// WilsonUpperBound is the matching upper bound, capped at 1.
func WilsonUpperBound(successes, trials float64, z float64) float64 {
	if trials <= 0 {
		return 1
	}
	if z <= 0 {
		z = DefaultZ
	}
	p := successes / trials
	z2 := z * z
	denom := 1 + z2/trials
	center := p + z2/(2*trials)
	margin := z * math.Sqrt((p*(1-p)+z2/(4*trials))/trials)
	upper := (center + margin) / denom
	if upper > 1 {
		return 1
	}
	return upper
}

// UCB1 returns the upper confidence bound index for an arm: its empirical
// mean plus an exploration bonus that grows with total pulls and shrinks
// with the arm's own pulls. Untried arms get +Inf so they are pulled first.
func UCB1(mean float64, armTrials, totalTrials int64) float64 {
	if armTrials <= 0 {
		return math.Inf(1)
	}
	if totalTrials < 1 {
		totalTrials = 1
	}
	return mean + math.Sqrt(2*math.Log(float64(totalTrials))/float64(armTrials))
}
