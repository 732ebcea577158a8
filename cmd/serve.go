package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/growthloop/decider/internal/bandit"
	"github.com/growthloop/decider/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for decisions, outcomes, and recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
		r.Use(rateLimit(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/v1/decisions", handleDecide(env))
		r.Post("/v1/artifacts", handleLink(env))
		r.Post("/v1/outcomes", handleOutcome(env))
		r.Get("/v1/recommendations", handleRecommendations(env))
		r.Get("/v1/windows", handleWindows(env))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// rateLimit rejects requests past the configured sustained rate with 429.
func rateLimit(limit rate.Limit, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleDecide(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ArmType string `json:"arm_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		utilization, err := env.Budget.Utilization(r.Context())
		if err != nil {
			zap.L().Warn("budget utilization unavailable", zap.Error(err))
			utilization = 0
		}
		snap := bandit.BuildContext(time.Now().UTC(), nil, utilization)

		decision, err := env.Selector.Select(r.Context(), model.ArmType(req.ArmType), snap)
		if err != nil {
			if eris.Is(err, model.ErrNoEligibleArms) {
				writeError(w, http.StatusConflict, "no eligible arms; seed arms first")
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, decision)
	}
}

func handleLink(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DecisionID  string     `json:"decision_id"`
			ArtifactID  string     `json:"artifact_id"`
			PublishedAt *time.Time `json:"published_at"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.DecisionID == "" || req.ArtifactID == "" {
			writeError(w, http.StatusBadRequest, "decision_id and artifact_id are required")
			return
		}

		publishedAt := time.Now().UTC()
		if req.PublishedAt != nil {
			publishedAt = *req.PublishedAt
		}

		if err := env.Store.LinkArtifact(r.Context(), req.DecisionID, req.ArtifactID, publishedAt); err != nil {
			if eris.Is(err, model.ErrNotFound) {
				writeError(w, http.StatusNotFound, "decision not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "linked"})
	}
}

func handleOutcome(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ArtifactID    string     `json:"artifact_id"`
			Phase         string     `json:"phase"`
			Likes         int64      `json:"likes"`
			Retweets      int64      `json:"retweets"`
			Replies       int64      `json:"replies"`
			Impressions   int64      `json:"impressions"`
			ProfileVisits int64      `json:"profile_visits"`
			FollowerCount int64      `json:"follower_count"`
			TakenAt       *time.Time `json:"taken_at"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ArtifactID == "" {
			writeError(w, http.StatusBadRequest, "artifact_id is required")
			return
		}

		takenAt := time.Now().UTC()
		if req.TakenAt != nil {
			takenAt = *req.TakenAt
		}

		rec, err := env.Attribution.Attribute(r.Context(), req.ArtifactID, model.Phase(req.Phase), model.OutcomeSnapshot{
			Likes:         req.Likes,
			Retweets:      req.Retweets,
			Replies:       req.Replies,
			Impressions:   req.Impressions,
			ProfileVisits: req.ProfileVisits,
			FollowerCount: req.FollowerCount,
			TakenAt:       takenAt,
		})
		if err != nil {
			switch {
			case eris.Is(err, model.ErrInvalidPhase):
				writeError(w, http.StatusBadRequest, "invalid phase")
			case eris.Is(err, model.ErrStaleSnapshot):
				writeError(w, http.StatusUnprocessableEntity, "snapshot predates publish time")
			case eris.Is(err, model.ErrNotFound):
				writeError(w, http.StatusNotFound, "no decision linked to artifact")
			default:
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleRecommendations(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := env.Store.LatestRecommendations(r.Context())
		if err != nil {
			if eris.Is(err, model.ErrNotFound) {
				writeError(w, http.StatusNotFound, "no recommendations published yet")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func handleWindows(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		windows, err := env.Timing.RankWindows(r.Context(), cfg.Timing.ConfidenceThreshold, cfg.Timing.MinSamples)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, windows)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
