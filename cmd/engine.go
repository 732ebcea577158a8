package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/growthloop/decider/internal/attribution"
	"github.com/growthloop/decider/internal/bandit"
	"github.com/growthloop/decider/internal/budget"
	"github.com/growthloop/decider/internal/learner"
	"github.com/growthloop/decider/internal/model"
	"github.com/growthloop/decider/internal/registry"
	"github.com/growthloop/decider/internal/store"
	"github.com/growthloop/decider/internal/timing"
)

// engineEnv bundles the wired components behind the commands.
type engineEnv struct {
	Store       store.Store
	Registry    *registry.Registry
	Selector    *bandit.Selector
	Attribution *attribution.Engine
	Timing      *timing.Optimizer
	Budget      *budget.Selector
	Learner     *learner.Orchestrator
}

// initEngine opens the configured store, runs migrations, seeds configured
// arms, and wires the engine components.
func initEngine(ctx context.Context) (*engineEnv, error) {
	var st store.Store
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		st = pg
	case "sqlite", "":
		sq, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		st = sq
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	reg := registry.New(st)
	if err := seedArms(ctx, reg); err != nil {
		st.Close()
		return nil, err
	}

	opt := timing.NewOptimizer(st, cfg.Timing)
	env := &engineEnv{
		Store:       st,
		Registry:    reg,
		Selector:    bandit.NewSelector(reg, st, cfg.Bandit),
		Attribution: attribution.NewEngine(st, cfg.Reward, cfg.Attribution),
		Timing:      opt,
		Budget:      budget.NewSelector(st, cfg.Budget),
		Learner: learner.New(st, reg, opt,
			cfg.Attribution, cfg.Bandit, cfg.Timing, cfg.Learn),
	}
	return env, nil
}

// seedArms registers the configured arms. Registration is lazy, so restarts
// and config reloads never reset statistics.
func seedArms(ctx context.Context, reg *registry.Registry) error {
	for _, seed := range cfg.Seeds {
		if _, err := reg.Ensure(ctx, seed.ID, model.ArmType(seed.Type), seed.Features); err != nil {
			return eris.Wrapf(err, "seed arm %s", seed.ID)
		}
	}
	if len(cfg.Seeds) > 0 {
		zap.L().Debug("seed arms ensured", zap.Int("count", len(cfg.Seeds)))
	}
	return nil
}

func (e *engineEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}
