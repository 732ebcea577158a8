package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/growthloop/decider/internal/db"
	"github.com/growthloop/decider/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS arms (
	id                TEXT PRIMARY KEY,
	type              TEXT NOT NULL,
	features          JSONB,
	active            BOOLEAN NOT NULL DEFAULT true,
	trials            BIGINT NOT NULL DEFAULT 0,
	successes         DOUBLE PRECISION NOT NULL DEFAULT 0,
	cumulative_reward DOUBLE PRECISION NOT NULL DEFAULT 0,
	alpha             DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	beta              DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decisions (
	id               TEXT PRIMARY KEY,
	arm_id           TEXT NOT NULL REFERENCES arms(id),
	arm_type         TEXT NOT NULL,
	context          JSONB NOT NULL,
	predicted_reward DOUBLE PRECISION NOT NULL,
	method           TEXT NOT NULL,
	artifact_id      TEXT,
	published_at     TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outcome_snapshots (
	artifact_id    TEXT NOT NULL,
	phase          TEXT NOT NULL,
	likes          BIGINT NOT NULL DEFAULT 0,
	retweets       BIGINT NOT NULL DEFAULT 0,
	replies        BIGINT NOT NULL DEFAULT 0,
	impressions    BIGINT NOT NULL DEFAULT 0,
	profile_visits BIGINT NOT NULL DEFAULT 0,
	follower_count BIGINT NOT NULL DEFAULT 0,
	taken_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (artifact_id, phase)
);

CREATE TABLE IF NOT EXISTS attributions (
	artifact_id      TEXT NOT NULL,
	phase            TEXT NOT NULL,
	followers_before BIGINT NOT NULL DEFAULT 0,
	followers_after  BIGINT NOT NULL DEFAULT 0,
	new_followers    BIGINT NOT NULL DEFAULT 0,
	confidence       TEXT NOT NULL,
	reward           DOUBLE PRECISION NOT NULL,
	viral            BOOLEAN NOT NULL DEFAULT false,
	snapshot_at      TIMESTAMPTZ NOT NULL,
	applied          BOOLEAN NOT NULL DEFAULT false,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (artifact_id, phase)
);

CREATE TABLE IF NOT EXISTS timing_buckets (
	hour                INTEGER NOT NULL,
	day_of_week         INTEGER NOT NULL,
	trials              BIGINT NOT NULL DEFAULT 0,
	successes           DOUBLE PRECISION NOT NULL DEFAULT 0,
	alpha               DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	beta                DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	avg_engagement_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_reward          DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_impressions   BIGINT NOT NULL DEFAULT 0,
	followers_gained    BIGINT NOT NULL DEFAULT 0,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (hour, day_of_week)
);

CREATE TABLE IF NOT EXISTS budget_ledger (
	id              TEXT PRIMARY KEY,
	operation_type  TEXT NOT NULL,
	task_type       TEXT NOT NULL,
	model_tier      TEXT NOT NULL,
	cost            DOUBLE PRECISION NOT NULL,
	expected_reward DOUBLE PRECISION NOT NULL DEFAULT 0,
	actual_reward   DOUBLE PRECISION,
	roi             DOUBLE PRECISION,
	was_fallback    BOOLEAN NOT NULL DEFAULT false,
	degraded        BOOLEAN NOT NULL DEFAULT false,
	artifact_id     TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS recommendations (
	id           TEXT PRIMARY KEY,
	payload      JSONB NOT NULL,
	published_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_arms_type ON arms(type, active);
CREATE UNIQUE INDEX IF NOT EXISTS idx_decisions_artifact ON decisions(artifact_id) WHERE artifact_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_attributions_applied ON attributions(applied, created_at);
CREATE INDEX IF NOT EXISTS idx_outcome_taken_at ON outcome_snapshots(taken_at);
CREATE INDEX IF NOT EXISTS idx_ledger_artifact ON budget_ledger(artifact_id);
CREATE INDEX IF NOT EXISTS idx_ledger_task_tier ON budget_ledger(task_type, model_tier);
CREATE INDEX IF NOT EXISTS idx_recommendations_published ON recommendations(published_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Arms

func (s *PostgresStore) EnsureArm(ctx context.Context, arm *model.Arm) error {
	featuresJSON, err := json.Marshal(arm.Features)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal features")
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO arms (id, type, features, active, created_at, updated_at)
		 VALUES ($1, $2, $3, true, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		arm.ID, string(arm.Type), featuresJSON, now, now,
	)
	return eris.Wrapf(err, "postgres: ensure arm %s", arm.ID)
}

func (s *PostgresStore) GetArm(ctx context.Context, id string) (*model.Arm, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, type, features, active, trials, successes, cumulative_reward, alpha, beta, created_at, updated_at
		 FROM arms WHERE id = $1`, id)
	return scanArmPG(row)
}

func (s *PostgresStore) ListArms(ctx context.Context, armType model.ArmType, activeOnly bool) ([]model.Arm, error) {
	query := `SELECT id, type, features, active, trials, successes, cumulative_reward, alpha, beta, created_at, updated_at
	          FROM arms WHERE type = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, string(armType))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list arms")
	}
	defer rows.Close()

	var arms []model.Arm
	for rows.Next() {
		a, err := scanArmPG(rows)
		if err != nil {
			return nil, err
		}
		arms = append(arms, *a)
	}
	return arms, eris.Wrap(rows.Err(), "postgres: list arms iterate")
}

func (s *PostgresStore) SetArmActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE arms SET active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set arm active %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "arm %s", id)
	}
	return nil
}

// ApplyReward is a single-statement read-modify-write; the row lock makes
// concurrent attribution updates against the same arm serialize instead of
// losing increments.
func (s *PostgresStore) ApplyReward(ctx context.Context, armID string, successDelta, reward float64) error {
	if successDelta < 0 || successDelta > 1 {
		return eris.Errorf("postgres: success delta %v out of [0,1]", successDelta)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE arms SET
			trials = trials + 1,
			successes = successes + $1,
			cumulative_reward = cumulative_reward + $2,
			alpha = 1.0 + successes + $1,
			beta = 1.0 + (trials + 1) - (successes + $1),
			updated_at = $3
		 WHERE id = $4`,
		successDelta, reward, time.Now().UTC(), armID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: apply reward to arm %s", armID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "arm %s", armID)
	}
	return nil
}

// Decisions

func (s *PostgresStore) CreateDecision(ctx context.Context, d *model.Decision) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	ctxJSON, err := json.Marshal(d.Context)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal context")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO decisions (id, arm_id, arm_type, context, predicted_reward, method, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.ArmID, string(d.ArmType), ctxJSON, d.PredictedReward, string(d.Method), d.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert decision %s", d.ID)
}

func (s *PostgresStore) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, arm_id, arm_type, context, predicted_reward, method, artifact_id, published_at, created_at
		 FROM decisions WHERE id = $1`, id)
	return scanDecisionPG(row)
}

func (s *PostgresStore) LinkArtifact(ctx context.Context, decisionID, artifactID string, publishedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE decisions SET artifact_id = $1, published_at = $2 WHERE id = $3`,
		artifactID, publishedAt.UTC(), decisionID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: link artifact %s to decision %s", artifactID, decisionID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "decision %s", decisionID)
	}
	return nil
}

func (s *PostgresStore) GetDecisionByArtifact(ctx context.Context, artifactID string) (*model.Decision, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, arm_id, arm_type, context, predicted_reward, method, artifact_id, published_at, created_at
		 FROM decisions WHERE artifact_id = $1`, artifactID)
	return scanDecisionPG(row)
}

// Outcome snapshots

func (s *PostgresStore) PutOutcomeSnapshot(ctx context.Context, snap *model.OutcomeSnapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO outcome_snapshots (artifact_id, phase, likes, retweets, replies, impressions, profile_visits, follower_count, taken_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (artifact_id, phase) DO NOTHING`,
		snap.ArtifactID, string(snap.Phase), snap.Likes, snap.Retweets, snap.Replies,
		snap.Impressions, snap.ProfileVisits, snap.FollowerCount, snap.TakenAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: put outcome snapshot %s/%s", snap.ArtifactID, snap.Phase)
}

func (s *PostgresStore) GetOutcomeSnapshot(ctx context.Context, artifactID string, phase model.Phase) (*model.OutcomeSnapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT artifact_id, phase, likes, retweets, replies, impressions, profile_visits, follower_count, taken_at
		 FROM outcome_snapshots WHERE artifact_id = $1 AND phase = $2`,
		artifactID, string(phase),
	)

	var o model.OutcomeSnapshot
	var ph string
	err := row.Scan(&o.ArtifactID, &ph, &o.Likes, &o.Retweets, &o.Replies,
		&o.Impressions, &o.ProfileVisits, &o.FollowerCount, &o.TakenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan outcome snapshot")
	}
	o.Phase = model.Phase(ph)
	return &o, nil
}

func (s *PostgresStore) TrailingAvgLikes(ctx context.Context, since time.Time) (float64, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(peak), 0) FROM (
			SELECT MAX(likes) AS peak FROM outcome_snapshots
			WHERE taken_at >= $1 GROUP BY artifact_id
		 ) p`, since.UTC())

	var avg float64
	if err := row.Scan(&avg); err != nil {
		return 0, eris.Wrap(err, "postgres: trailing avg likes")
	}
	return avg, nil
}

// Attribution

func (s *PostgresStore) UpsertAttribution(ctx context.Context, rec *model.AttributionRecord) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attributions (artifact_id, phase, followers_before, followers_after, new_followers,
			confidence, reward, viral, snapshot_at, applied, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10, $11)
		 ON CONFLICT (artifact_id, phase) DO UPDATE SET
			followers_before = EXCLUDED.followers_before,
			followers_after  = EXCLUDED.followers_after,
			new_followers    = EXCLUDED.new_followers,
			confidence       = EXCLUDED.confidence,
			reward           = EXCLUDED.reward,
			viral            = EXCLUDED.viral,
			snapshot_at      = EXCLUDED.snapshot_at,
			updated_at       = EXCLUDED.updated_at
		 WHERE EXCLUDED.snapshot_at >= attributions.snapshot_at`,
		rec.ArtifactID, string(rec.Phase), rec.FollowersBefore, rec.FollowersAfter, rec.NewFollowers,
		string(rec.Confidence), rec.Reward, rec.Viral, rec.SnapshotAt.UTC(), now, now,
	)
	return eris.Wrapf(err, "postgres: upsert attribution %s/%s", rec.ArtifactID, rec.Phase)
}

func (s *PostgresStore) GetAttribution(ctx context.Context, artifactID string, phase model.Phase) (*model.AttributionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT artifact_id, phase, followers_before, followers_after, new_followers,
			confidence, reward, viral, snapshot_at, applied, created_at, updated_at
		 FROM attributions WHERE artifact_id = $1 AND phase = $2`,
		artifactID, string(phase),
	)
	return scanAttributionPG(row)
}

func (s *PostgresStore) ListUnappliedAttributions(ctx context.Context, limit int) ([]model.AttributionRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		`SELECT artifact_id, phase, followers_before, followers_after, new_followers,
			confidence, reward, viral, snapshot_at, applied, created_at, updated_at
		 FROM attributions WHERE NOT applied ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unapplied attributions")
	}
	defer rows.Close()

	var recs []model.AttributionRecord
	for rows.Next() {
		r, err := scanAttributionPG(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list unapplied iterate")
}

func (s *PostgresStore) MarkAttributionApplied(ctx context.Context, artifactID string, phase model.Phase) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE attributions SET applied = true, updated_at = $1 WHERE artifact_id = $2 AND phase = $3`,
		time.Now().UTC(), artifactID, string(phase),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark applied %s/%s", artifactID, phase)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "attribution %s/%s", artifactID, phase)
	}
	return nil
}

// Timing buckets

func (s *PostgresStore) UpdateTimingBucket(ctx context.Context, u TimingUpdate) error {
	successes := 0.0
	if u.Success {
		successes = 1.0
	}
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO timing_buckets (hour, day_of_week, trials, successes, alpha, beta,
			avg_engagement_rate, avg_reward, total_impressions, followers_gained, updated_at)
		 VALUES ($1, $2, 1, $3, 1.0 + $3, 2.0 - $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (hour, day_of_week) DO UPDATE SET
			trials = timing_buckets.trials + 1,
			successes = timing_buckets.successes + EXCLUDED.successes,
			alpha = 1.0 + timing_buckets.successes + EXCLUDED.successes,
			beta = 1.0 + (timing_buckets.trials + 1) - (timing_buckets.successes + EXCLUDED.successes),
			avg_engagement_rate = (timing_buckets.avg_engagement_rate * timing_buckets.trials + EXCLUDED.avg_engagement_rate) / (timing_buckets.trials + 1),
			avg_reward = (timing_buckets.avg_reward * timing_buckets.trials + EXCLUDED.avg_reward) / (timing_buckets.trials + 1),
			total_impressions = timing_buckets.total_impressions + EXCLUDED.total_impressions,
			followers_gained = timing_buckets.followers_gained + EXCLUDED.followers_gained,
			updated_at = EXCLUDED.updated_at`,
		u.Hour, u.DayOfWeek, successes, u.EngagementRate, u.Reward, u.Impressions, u.FollowersGained, now,
	)
	return eris.Wrapf(err, "postgres: update timing bucket %d/%d", u.Hour, u.DayOfWeek)
}

func (s *PostgresStore) ListTimingBuckets(ctx context.Context) ([]model.TimingBucket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT hour, day_of_week, trials, successes, alpha, beta,
			avg_engagement_rate, avg_reward, total_impressions, followers_gained, updated_at
		 FROM timing_buckets ORDER BY day_of_week, hour`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list timing buckets")
	}
	defer rows.Close()

	var buckets []model.TimingBucket
	for rows.Next() {
		var b model.TimingBucket
		if err := rows.Scan(&b.Hour, &b.DayOfWeek, &b.Trials, &b.Successes, &b.Alpha, &b.Beta,
			&b.AvgEngagementRate, &b.AvgReward, &b.TotalImpressions, &b.FollowersGained, &b.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan timing bucket")
		}
		buckets = append(buckets, b)
	}
	return buckets, eris.Wrap(rows.Err(), "postgres: list timing buckets iterate")
}

// Budget ledger

func (s *PostgresStore) AppendBudgetTransaction(ctx context.Context, txn *model.BudgetTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO budget_ledger (id, operation_type, task_type, model_tier, cost, expected_reward,
			was_fallback, degraded, artifact_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		txn.ID, txn.OperationType, txn.TaskType, txn.ModelTier, txn.Cost, txn.ExpectedReward,
		txn.WasFallback, txn.Degraded, nullString(txn.ArtifactID), txn.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: append budget transaction %s", txn.ID)
}

func (s *PostgresStore) ResolveBudgetTransactions(ctx context.Context, artifactID string, actualReward float64) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE budget_ledger SET
			actual_reward = $1,
			roi = $1 / GREATEST(cost, 0.000001),
			resolved_at = $2
		 WHERE artifact_id = $3`,
		actualReward, time.Now().UTC(), artifactID,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: resolve budget transactions for %s", artifactID)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) TierROI(ctx context.Context, taskType string) ([]model.TierStats, error) {
	query := `SELECT task_type, model_tier, COUNT(*), COALESCE(SUM(cost), 0),
			COALESCE(SUM(actual_reward), 0),
			COALESCE(SUM(actual_reward), 0) / GREATEST(COALESCE(SUM(cost), 0), 0.000001)
		 FROM budget_ledger`
	var args []any
	if taskType != "" {
		query += ` WHERE task_type = $1`
		args = append(args, taskType)
	}
	query += ` GROUP BY task_type, model_tier ORDER BY task_type, model_tier`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: tier roi")
	}
	defer rows.Close()

	var out []model.TierStats
	for rows.Next() {
		var ts model.TierStats
		if err := rows.Scan(&ts.TaskType, &ts.ModelTier, &ts.Operations, &ts.TotalCost, &ts.TotalReward, &ts.AvgROI); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tier roi")
		}
		out = append(out, ts)
	}
	return out, eris.Wrap(rows.Err(), "postgres: tier roi iterate")
}

func (s *PostgresStore) SpentSince(ctx context.Context, since time.Time) (float64, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(cost), 0) FROM budget_ledger WHERE created_at >= $1`, since.UTC())

	var spent float64
	if err := row.Scan(&spent); err != nil {
		return 0, eris.Wrap(err, "postgres: spent since")
	}
	return spent, nil
}

// Recommendations

func (s *PostgresStore) PublishRecommendations(ctx context.Context, recs *model.Recommendations) error {
	if recs.ID == "" {
		recs.ID = uuid.New().String()
	}
	if recs.PublishedAt.IsZero() {
		recs.PublishedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(recs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal recommendations")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO recommendations (id, payload, published_at) VALUES ($1, $2, $3)`,
		recs.ID, payload, recs.PublishedAt,
	)
	return eris.Wrap(err, "postgres: publish recommendations")
}

func (s *PostgresStore) LatestRecommendations(ctx context.Context) (*model.Recommendations, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT payload FROM recommendations ORDER BY published_at DESC, id DESC LIMIT 1`)

	var payload []byte
	err := row.Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest recommendations")
	}

	var recs model.Recommendations
	if err := json.Unmarshal(payload, &recs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal recommendations")
	}
	return &recs, nil
}

// scan helpers

func scanArmPG(row scannable) (*model.Arm, error) {
	var a model.Arm
	var armType string
	var featuresJSON []byte

	err := row.Scan(&a.ID, &armType, &featuresJSON, &a.Active, &a.Trials, &a.Successes,
		&a.CumulativeReward, &a.Alpha, &a.Beta, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan arm")
	}

	a.Type = model.ArmType(armType)
	if len(featuresJSON) > 0 && string(featuresJSON) != "null" {
		if err := json.Unmarshal(featuresJSON, &a.Features); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal arm features")
		}
	}
	return &a, nil
}

func scanDecisionPG(row scannable) (*model.Decision, error) {
	var d model.Decision
	var armType, method string
	var ctxJSON []byte
	var artifactID *string
	var publishedAt *time.Time

	err := row.Scan(&d.ID, &d.ArmID, &armType, &ctxJSON, &d.PredictedReward, &method,
		&artifactID, &publishedAt, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan decision")
	}

	d.ArmType = model.ArmType(armType)
	d.Method = model.SelectionMethod(method)
	if err := json.Unmarshal(ctxJSON, &d.Context); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal decision context")
	}
	if artifactID != nil {
		d.ArtifactID = *artifactID
	}
	d.PublishedAt = publishedAt
	return &d, nil
}

func scanAttributionPG(row scannable) (*model.AttributionRecord, error) {
	var r model.AttributionRecord
	var phase, confidence string

	err := row.Scan(&r.ArtifactID, &phase, &r.FollowersBefore, &r.FollowersAfter, &r.NewFollowers,
		&confidence, &r.Reward, &r.Viral, &r.SnapshotAt, &r.Applied, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan attribution")
	}

	r.Phase = model.Phase(phase)
	r.Confidence = model.Confidence(confidence)
	return &r, nil
}
