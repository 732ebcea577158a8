// Package registry owns arm lifecycle and statistics. All stat mutation goes
// through ApplyReward so the Beta shape parameters stay consistent with the
// trial counts; nothing else in the engine writes to arms.
package registry

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/growthloop/decider/internal/model"
	"github.com/growthloop/decider/internal/store"
)

// Registry is the arm registry over the persistence layer.
type Registry struct {
	store store.Store
}

// New creates a Registry.
func New(st store.Store) *Registry {
	return &Registry{store: st}
}

// Ensure lazily registers an arm with the uniform prior. Registering an
// existing arm is a no-op; statistics are never reset.
func (r *Registry) Ensure(ctx context.Context, id string, armType model.ArmType, features map[string]string) (*model.Arm, error) {
	if id == "" {
		return nil, eris.New("registry: empty arm id")
	}
	if !model.ValidArmType(armType) {
		return nil, eris.Errorf("registry: unknown arm type %q", armType)
	}

	arm := model.NewArm(id, armType, features)
	if err := r.store.EnsureArm(ctx, arm); err != nil {
		return nil, eris.Wrapf(err, "registry: ensure %s", id)
	}
	return r.store.GetArm(ctx, id)
}

// Get returns one arm by id.
func (r *Registry) Get(ctx context.Context, id string) (*model.Arm, error) {
	return r.store.GetArm(ctx, id)
}

// Eligible returns all active arms of the given type.
func (r *Registry) Eligible(ctx context.Context, armType model.ArmType) ([]model.Arm, error) {
	return r.store.ListArms(ctx, armType, true)
}

// All returns every arm of the given type, active or not.
func (r *Registry) All(ctx context.Context, armType model.ArmType) ([]model.Arm, error) {
	return r.store.ListArms(ctx, armType, false)
}

// Deactivate removes an arm from selection without deleting its history.
// Arms are never deleted; their statistics stay available for reporting.
func (r *Registry) Deactivate(ctx context.Context, id string) error {
	return r.store.SetArmActive(ctx, id, false)
}

// Reactivate puts a deactivated arm back into the eligible set.
func (r *Registry) Reactivate(ctx context.Context, id string) error {
	return r.store.SetArmActive(ctx, id, true)
}

// ApplyReward records one attributed trial against an arm. successDelta is
// 1 for a full success or a fraction in [0,1) for soft rewards. The store
// performs the update atomically so concurrent attributions don't lose
// increments.
func (r *Registry) ApplyReward(ctx context.Context, armID string, successDelta, reward float64) error {
	if successDelta < 0 || successDelta > 1 {
		return eris.Errorf("registry: success delta %v out of [0,1]", successDelta)
	}
	if err := r.store.ApplyReward(ctx, armID, successDelta, reward); err != nil {
		return eris.Wrapf(err, "registry: apply reward to %s", armID)
	}

	zap.L().Debug("registry: reward applied",
		zap.String("arm_id", armID),
		zap.Float64("success_delta", successDelta),
		zap.Float64("reward", reward),
	)
	return nil
}
