package budget

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthloop/decider/internal/config"
	"github.com/growthloop/decider/internal/model"
	"github.com/growthloop/decider/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func testBudgetConfig() config.BudgetConfig {
	return config.BudgetConfig{
		MonthlyBudget: 100,
		Ceiling:       0.9,
		Tiers:         config.DefaultTiers(),
	}
}

// resolveLedger writes one resolved transaction so the tier has ROI history.
func resolveLedger(t *testing.T, st store.Store, tier, artifact string, cost, reward float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.AppendBudgetTransaction(ctx, &model.BudgetTransaction{
		OperationType: "generate", TaskType: "tweet", ModelTier: tier,
		Cost: cost, ArtifactID: artifact,
	}))
	_, err := st.ResolveBudgetTransactions(ctx, artifact, reward)
	require.NoError(t, err)
}

func TestChooseModelPicksBestROI(t *testing.T) {
	st := newTestStore(t)
	resolveLedger(t, st, "haiku", "t1", 0.01, 2)    // ROI 200
	resolveLedger(t, st, "sonnet", "t2", 0.05, 80)  // ROI 1600
	resolveLedger(t, st, "opus", "t3", 0.25, 100)   // ROI 400

	sel := NewSelector(st, testBudgetConfig())
	choice := sel.ChooseModel(context.Background(), "tweet", 0.1)

	assert.Equal(t, "sonnet", choice.Tier.Name)
	assert.False(t, choice.WasFallback)
	assert.False(t, choice.Degraded)
	assert.InDelta(t, 80, choice.ExpectedReward, 1e-9)
}

func TestChooseModelUnknownTiersRankAfterProvenWinners(t *testing.T) {
	st := newTestStore(t)
	resolveLedger(t, st, "sonnet", "t1", 0.05, 80)

	sel := NewSelector(st, testBudgetConfig())
	choice := sel.ChooseModel(context.Background(), "tweet", 0.1)
	assert.Equal(t, "sonnet", choice.Tier.Name)
}

func TestChooseModelNoHistoryPrefersCheapest(t *testing.T) {
	st := newTestStore(t)

	sel := NewSelector(st, testBudgetConfig())
	choice := sel.ChooseModel(context.Background(), "tweet", 0.0)
	assert.Equal(t, "haiku", choice.Tier.Name)
	assert.False(t, choice.WasFallback)
	assert.Zero(t, choice.ExpectedReward)
}

func TestChooseModelRespectsCeiling(t *testing.T) {
	st := newTestStore(t)
	// Opus is by far the best performer but one more call would breach the
	// ceiling; selection steps down to a tier that fits.
	resolveLedger(t, st, "opus", "t1", 0.25, 100)

	cfg := testBudgetConfig()
	cfg.MonthlyBudget = 1.0 // opus call projects +0.25 utilization
	sel := NewSelector(st, cfg)

	choice := sel.ChooseModel(context.Background(), "tweet", 0.7)
	assert.NotEqual(t, "opus", choice.Tier.Name)
	assert.False(t, choice.WasFallback)
}

func TestChooseModelFallbackWhenAllBreachCeiling(t *testing.T) {
	st := newTestStore(t)

	cfg := testBudgetConfig()
	cfg.MonthlyBudget = 1.0 // even haiku projects past the ceiling
	sel := NewSelector(st, cfg)

	choice := sel.ChooseModel(context.Background(), "tweet", 0.895)
	assert.Equal(t, "haiku", choice.Tier.Name)
	assert.True(t, choice.WasFallback)
	assert.False(t, choice.Degraded)
}

// brokenStore makes budget reads fail while everything else works.
type brokenStore struct {
	store.Store
}

func (b *brokenStore) TierROI(ctx context.Context, taskType string) ([]model.TierStats, error) {
	return nil, eris.New("connection refused")
}

func (b *brokenStore) SpentSince(ctx context.Context, since time.Time) (float64, error) {
	return 0, eris.New("connection refused")
}

func TestChooseModelDegradesWhenBudgetUnreadable(t *testing.T) {
	st := &brokenStore{Store: newTestStore(t)}

	sel := NewSelector(st, testBudgetConfig())
	choice := sel.ChooseModel(context.Background(), "tweet", 0.1)

	// Never blocks the caller: cheapest tier, flagged degraded.
	assert.Equal(t, "haiku", choice.Tier.Name)
	assert.True(t, choice.Degraded)
	assert.False(t, choice.WasFallback)
}

func TestUtilization(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendBudgetTransaction(ctx, &model.BudgetTransaction{
		OperationType: "generate", TaskType: "tweet", ModelTier: "sonnet", Cost: 25,
	}))

	sel := NewSelector(st, testBudgetConfig())
	util, err := sel.Utilization(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, util, 1e-9)
}

func TestUtilizationUnavailable(t *testing.T) {
	st := &brokenStore{Store: newTestStore(t)}

	sel := NewSelector(st, testBudgetConfig())
	_, err := sel.Utilization(context.Background())
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrBudgetUnavailable))
}

func TestRecordTransactionAppendsLedger(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sel := NewSelector(st, testBudgetConfig())
	choice := sel.ChooseModel(ctx, "tweet", 0.0)

	txn, err := sel.RecordTransaction(ctx, "generate", "tweet", choice, "tweet-9")
	require.NoError(t, err)
	assert.NotEmpty(t, txn.ID)
	assert.Equal(t, choice.Tier.Name, txn.ModelTier)

	spent, err := st.SpentSince(ctx, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	assert.InDelta(t, choice.Tier.CostPerCall, spent, 1e-9)
}

func TestTiersSortedCheapestFirst(t *testing.T) {
	cfg := testBudgetConfig()
	cfg.Tiers = []config.TierConfig{
		{Name: "opus", CostPerCall: 0.25},
		{Name: "haiku", CostPerCall: 0.01},
		{Name: "sonnet", CostPerCall: 0.05},
	}
	sel := NewSelector(newTestStore(t), cfg)

	tiers := sel.Tiers()
	require.Len(t, tiers, 3)
	assert.Equal(t, "haiku", tiers[0].Name)
	assert.Equal(t, "opus", tiers[2].Name)
}
