package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/growthloop/decider/internal/attribution"
	"github.com/growthloop/decider/internal/bandit"
	"github.com/growthloop/decider/internal/budget"
	"github.com/growthloop/decider/internal/config"
	"github.com/growthloop/decider/internal/model"
	"github.com/growthloop/decider/internal/registry"
	"github.com/growthloop/decider/internal/store"
	"github.com/growthloop/decider/internal/timing"
)

func newTestEnv(t *testing.T) *engineEnv {
	t.Helper()
	ctx := context.Background()

	cfg = &config.Config{
		Bandit: config.BanditConfig{Policy: "thompson", Epsilon: 0.1, MinSamples: 3, WilsonZ: 1.96, Seed: 42},
		Reward: config.RewardConfig{FollowerWeight: 0.5, EngagementWeight: 0.25, ReachWeight: 0.15, ConversionWeight: 0.10},
		Attribution: config.AttributionConfig{LowConfidenceWeight: 0.5, SuccessThreshold: 50, ViralMultiplier: 2},
		Timing: config.TimingConfig{SuccessThreshold: 10, ConfidenceThreshold: 0.3, MinSamples: 3},
		Budget: config.BudgetConfig{MonthlyBudget: 100, Ceiling: 0.9, Tiers: config.DefaultTiers()},
		Server: config.ServerConfig{Port: 8080, RateLimit: 50, RateBurst: 100},
	}

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	reg := registry.New(st)
	opt := timing.NewOptimizer(st, cfg.Timing)
	return &engineEnv{
		Store:       st,
		Registry:    reg,
		Selector:    bandit.NewSelector(reg, st, cfg.Bandit),
		Attribution: attribution.NewEngine(st, cfg.Reward, cfg.Attribution),
		Timing:      opt,
		Budget:      budget.NewSelector(st, cfg.Budget),
	}
}

func TestHandleDecide(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.Registry.Ensure(ctx, "thread", model.ArmTypeContentFormat, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/decisions",
		strings.NewReader(`{"arm_type":"content_format"}`))
	w := httptest.NewRecorder()
	handleDecide(env)(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var decision model.Decision
	require.NoError(t, json.NewDecoder(w.Body).Decode(&decision))
	assert.Equal(t, "thread", decision.ArmID)
	assert.NotEmpty(t, decision.ID)
}

func TestHandleDecideNoArms(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/decisions",
		strings.NewReader(`{"arm_type":"timing_window"}`))
	w := httptest.NewRecorder()
	handleDecide(env)(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleOutcomeFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.Registry.Ensure(ctx, "thread", model.ArmTypeContentFormat, nil)
	require.NoError(t, err)
	d := &model.Decision{ArmID: "thread", ArmType: model.ArmTypeContentFormat, Method: model.MethodThompson}
	require.NoError(t, env.Store.CreateDecision(ctx, d))
	require.NoError(t, env.Store.LinkArtifact(ctx, d.ID, "tweet-1", time.Now().UTC().Add(-time.Hour)))

	req := httptest.NewRequest(http.MethodPost, "/v1/outcomes",
		strings.NewReader(`{"artifact_id":"tweet-1","phase":"+2h","likes":50,"impressions":10000,"follower_count":1005}`))
	w := httptest.NewRecorder()
	handleOutcome(env)(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var rec model.AttributionRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, model.ConfidenceLow, rec.Confidence) // no baseline reading
	assert.Greater(t, rec.Reward, 0.0)
}

func TestHandleOutcomeInvalidPhase(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/outcomes",
		strings.NewReader(`{"artifact_id":"tweet-1","phase":"+96h"}`))
	w := httptest.NewRecorder()
	handleOutcome(env)(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleOutcomeUnknownArtifact(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/outcomes",
		strings.NewReader(`{"artifact_id":"ghost","phase":"+2h"}`))
	w := httptest.NewRecorder()
	handleOutcome(env)(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleLinkValidation(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/artifacts",
		strings.NewReader(`{"artifact_id":"tweet-1"}`))
	w := httptest.NewRecorder()
	handleLink(env)(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/artifacts",
		strings.NewReader(`{"decision_id":"nope","artifact_id":"tweet-1"}`))
	w = httptest.NewRecorder()
	handleLink(env)(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleRecommendationsEmpty(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/recommendations", nil)
	w := httptest.NewRecorder()
	handleRecommendations(env)(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleWindowsDefaultSchedule(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/windows", nil)
	w := httptest.NewRecorder()
	handleWindows(env)(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var windows []model.Window
	require.NoError(t, json.NewDecoder(w.Body).Decode(&windows))
	require.NotEmpty(t, windows)
	assert.True(t, windows[0].Default)
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := rateLimit(rate.Limit(1), 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Burst exhausted; the next immediate request is rejected.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
