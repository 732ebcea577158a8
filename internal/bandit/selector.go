// Package bandit implements arm selection over the registry's posteriors.
// Selection never mutates arm statistics; those change only when the learning
// loop applies attributed rewards.
package bandit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/growthloop/decider/internal/config"
	"github.com/growthloop/decider/internal/model"
	"github.com/growthloop/decider/internal/registry"
	"github.com/growthloop/decider/internal/stats"
	"github.com/growthloop/decider/internal/store"
)

// Selector chooses an arm for a context and persists the resulting Decision.
type Selector struct {
	registry *registry.Registry
	store    store.Store
	cfg      config.BanditConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a Selector. A zero cfg.Seed seeds the sampler from the
// clock; tests pin it for reproducible draws.
func NewSelector(reg *registry.Registry, st store.Store, cfg config.BanditConfig) *Selector {
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 0.1
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 3
	}
	if cfg.WilsonZ <= 0 {
		cfg.WilsonZ = stats.DefaultZ
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Selector{
		registry: reg,
		store:    st,
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// Select picks an arm of the given type for the context, records the
// Decision, and returns it. Returns model.ErrNoEligibleArms when the registry
// holds no active arm of that type; the caller must seed arms first.
func (s *Selector) Select(ctx context.Context, armType model.ArmType, snap model.ContextSnapshot) (*model.Decision, error) {
	if !model.ValidArmType(armType) {
		return nil, eris.Errorf("bandit: unknown arm type %q", armType)
	}

	arms, err := s.registry.Eligible(ctx, armType)
	if err != nil {
		return nil, eris.Wrap(err, "bandit: list eligible arms")
	}
	if len(arms) == 0 {
		return nil, eris.Wrapf(model.ErrNoEligibleArms, "type %s", armType)
	}

	method := model.SelectionMethod(s.cfg.Policy)
	var chosen *model.Arm

	// Exploration floor: with probability epsilon pick uniformly, whatever
	// the posteriors say. Prevents premature convergence during cold start.
	if s.random() < s.cfg.Epsilon {
		chosen = &arms[s.intN(len(arms))]
	} else {
		switch method {
		case model.MethodUCB:
			chosen = s.pickUCB(arms)
		case model.MethodEpsilonGreedy:
			chosen = s.pickGreedy(arms)
		default:
			method = model.MethodThompson
			chosen = s.pickThompson(arms)
		}
	}

	decision := &model.Decision{
		ArmID:           chosen.ID,
		ArmType:         armType,
		Context:         snap,
		PredictedReward: s.predictReward(chosen),
		Method:          method,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateDecision(ctx, decision); err != nil {
		return nil, eris.Wrap(err, "bandit: persist decision")
	}

	zap.L().Info("bandit: arm selected",
		zap.String("decision_id", decision.ID),
		zap.String("arm_id", chosen.ID),
		zap.String("arm_type", string(armType)),
		zap.String("method", string(method)),
		zap.Float64("predicted_reward", decision.PredictedReward),
	)
	return decision, nil
}

// pickThompson samples each arm's Beta posterior and keeps the best draw.
// Identical draws break toward the arm with fewer trials.
func (s *Selector) pickThompson(arms []model.Arm) *model.Arm {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := &arms[0]
	bestSample := stats.BetaSample(s.rng, best.Alpha, best.Beta)
	for i := 1; i < len(arms); i++ {
		sample := stats.BetaSample(s.rng, arms[i].Alpha, arms[i].Beta)
		if sample > bestSample || (sample == bestSample && arms[i].Trials < best.Trials) {
			best = &arms[i]
			bestSample = sample
		}
	}
	return best
}

// pickUCB ranks by the UCB1 index; untried arms sort first.
func (s *Selector) pickUCB(arms []model.Arm) *model.Arm {
	var total int64
	for i := range arms {
		total += arms[i].Trials
	}

	best := &arms[0]
	bestScore := s.ucbScore(best, total)
	for i := 1; i < len(arms); i++ {
		score := s.ucbScore(&arms[i], total)
		if score > bestScore || (score == bestScore && arms[i].Trials < best.Trials) {
			best = &arms[i]
			bestScore = score
		}
	}
	return best
}

func (s *Selector) ucbScore(a *model.Arm, total int64) float64 {
	var mean float64
	if a.Trials > 0 {
		mean = a.Successes / float64(a.Trials)
	}
	return stats.UCB1(mean, a.Trials, total)
}

// pickGreedy exploits the best empirical success rate. The epsilon floor in
// Select supplies the exploration half of epsilon-greedy.
func (s *Selector) pickGreedy(arms []model.Arm) *model.Arm {
	best := &arms[0]
	bestRate := successRate(best)
	for i := 1; i < len(arms); i++ {
		rate := successRate(&arms[i])
		if rate > bestRate || (rate == bestRate && arms[i].Trials < best.Trials) {
			best = &arms[i]
			bestRate = rate
		}
	}
	return best
}

func successRate(a *model.Arm) float64 {
	if a.Trials == 0 {
		return 0
	}
	return a.Successes / float64(a.Trials)
}

// predictReward estimates the reward the chosen arm will earn. Established
// arms use their empirical mean; cold-start arms fall back to the posterior
// mean scaled to the reward range.
func (s *Selector) predictReward(a *model.Arm) float64 {
	if a.Trials >= int64(s.cfg.MinSamples) {
		return a.MeanReward()
	}
	return a.PosteriorMean() * 100
}

// Confidence reports the Wilson lower bound on an arm's success rate. Arms
// below the cold-start sample threshold report zero support; this feeds
// reporting and window filtering, never selection.
func (s *Selector) Confidence(a *model.Arm) float64 {
	if a.Trials < int64(s.cfg.MinSamples) {
		return 0
	}
	return stats.WilsonLowerBound(a.Successes, float64(a.Trials), s.cfg.WilsonZ)
}

func (s *Selector) random() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Selector) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}
