package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/growthloop/decider/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS arms (
	id                TEXT PRIMARY KEY,
	type              TEXT NOT NULL,
	features          TEXT,
	active            INTEGER NOT NULL DEFAULT 1,
	trials            INTEGER NOT NULL DEFAULT 0,
	successes         REAL NOT NULL DEFAULT 0,
	cumulative_reward REAL NOT NULL DEFAULT 0,
	alpha             REAL NOT NULL DEFAULT 1.0,
	beta              REAL NOT NULL DEFAULT 1.0,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id               TEXT PRIMARY KEY,
	arm_id           TEXT NOT NULL REFERENCES arms(id),
	arm_type         TEXT NOT NULL,
	context          TEXT NOT NULL,
	predicted_reward REAL NOT NULL,
	method           TEXT NOT NULL,
	artifact_id      TEXT,
	published_at     DATETIME,
	created_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS outcome_snapshots (
	artifact_id    TEXT NOT NULL,
	phase          TEXT NOT NULL,
	likes          INTEGER NOT NULL DEFAULT 0,
	retweets       INTEGER NOT NULL DEFAULT 0,
	replies        INTEGER NOT NULL DEFAULT 0,
	impressions    INTEGER NOT NULL DEFAULT 0,
	profile_visits INTEGER NOT NULL DEFAULT 0,
	follower_count INTEGER NOT NULL DEFAULT 0,
	taken_at       DATETIME NOT NULL,
	PRIMARY KEY (artifact_id, phase)
);

CREATE TABLE IF NOT EXISTS attributions (
	artifact_id      TEXT NOT NULL,
	phase            TEXT NOT NULL,
	followers_before INTEGER NOT NULL DEFAULT 0,
	followers_after  INTEGER NOT NULL DEFAULT 0,
	new_followers    INTEGER NOT NULL DEFAULT 0,
	confidence       TEXT NOT NULL,
	reward           REAL NOT NULL,
	viral            INTEGER NOT NULL DEFAULT 0,
	snapshot_at      DATETIME NOT NULL,
	applied          INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	PRIMARY KEY (artifact_id, phase)
);

CREATE TABLE IF NOT EXISTS timing_buckets (
	hour                INTEGER NOT NULL,
	day_of_week         INTEGER NOT NULL,
	trials              INTEGER NOT NULL DEFAULT 0,
	successes           REAL NOT NULL DEFAULT 0,
	alpha               REAL NOT NULL DEFAULT 1.0,
	beta                REAL NOT NULL DEFAULT 1.0,
	avg_engagement_rate REAL NOT NULL DEFAULT 0,
	avg_reward          REAL NOT NULL DEFAULT 0,
	total_impressions   INTEGER NOT NULL DEFAULT 0,
	followers_gained    INTEGER NOT NULL DEFAULT 0,
	updated_at          DATETIME NOT NULL,
	PRIMARY KEY (hour, day_of_week)
);

CREATE TABLE IF NOT EXISTS budget_ledger (
	id              TEXT PRIMARY KEY,
	operation_type  TEXT NOT NULL,
	task_type       TEXT NOT NULL,
	model_tier      TEXT NOT NULL,
	cost            REAL NOT NULL,
	expected_reward REAL NOT NULL DEFAULT 0,
	actual_reward   REAL,
	roi             REAL,
	was_fallback    INTEGER NOT NULL DEFAULT 0,
	degraded        INTEGER NOT NULL DEFAULT 0,
	artifact_id     TEXT,
	created_at      DATETIME NOT NULL,
	resolved_at     DATETIME
);

CREATE TABLE IF NOT EXISTS recommendations (
	id           TEXT PRIMARY KEY,
	payload      TEXT NOT NULL,
	published_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_arms_type ON arms(type, active);
CREATE UNIQUE INDEX IF NOT EXISTS idx_decisions_artifact ON decisions(artifact_id) WHERE artifact_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_attributions_applied ON attributions(applied, created_at);
CREATE INDEX IF NOT EXISTS idx_outcome_taken_at ON outcome_snapshots(taken_at);
CREATE INDEX IF NOT EXISTS idx_ledger_artifact ON budget_ledger(artifact_id);
CREATE INDEX IF NOT EXISTS idx_ledger_task_tier ON budget_ledger(task_type, model_tier);
CREATE INDEX IF NOT EXISTS idx_recommendations_published ON recommendations(published_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Arms

func (s *SQLiteStore) EnsureArm(ctx context.Context, arm *model.Arm) error {
	featuresJSON, err := json.Marshal(arm.Features)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal features")
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO arms (id, type, features, active, trials, successes, cumulative_reward, alpha, beta, created_at, updated_at)
		 VALUES (?, ?, ?, 1, 0, 0, 0, 1.0, 1.0, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		arm.ID, string(arm.Type), string(featuresJSON), now, now,
	)
	return eris.Wrapf(err, "sqlite: ensure arm %s", arm.ID)
}

func (s *SQLiteStore) GetArm(ctx context.Context, id string) (*model.Arm, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, features, active, trials, successes, cumulative_reward, alpha, beta, created_at, updated_at
		 FROM arms WHERE id = ?`, id)
	return scanArm(row)
}

func (s *SQLiteStore) ListArms(ctx context.Context, armType model.ArmType, activeOnly bool) ([]model.Arm, error) {
	query := `SELECT id, type, features, active, trials, successes, cumulative_reward, alpha, beta, created_at, updated_at
	          FROM arms WHERE type = ?`
	args := []any{string(armType)}
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list arms")
	}
	defer rows.Close()

	var arms []model.Arm
	for rows.Next() {
		a, err := scanArm(rows)
		if err != nil {
			return nil, err
		}
		arms = append(arms, *a)
	}
	return arms, eris.Wrap(rows.Err(), "sqlite: list arms iterate")
}

func (s *SQLiteStore) SetArmActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE arms SET active = ?, updated_at = ? WHERE id = ?`,
		boolInt(active), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set arm active %s", id)
	}
	return checkRowsAffected(res, "arm", id)
}

// ApplyReward performs the atomic stat update. All right-hand sides read the
// pre-update row, so alpha/beta stay consistent with the new trial counts:
// alpha = 1 + successes, beta = 1 + trials - successes.
func (s *SQLiteStore) ApplyReward(ctx context.Context, armID string, successDelta, reward float64) error {
	if successDelta < 0 || successDelta > 1 {
		return eris.Errorf("sqlite: success delta %v out of [0,1]", successDelta)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE arms SET
			trials = trials + 1,
			successes = successes + ?,
			cumulative_reward = cumulative_reward + ?,
			alpha = 1.0 + successes + ?,
			beta = 1.0 + (trials + 1) - (successes + ?),
			updated_at = ?
		 WHERE id = ?`,
		successDelta, reward, successDelta, successDelta, time.Now().UTC(), armID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: apply reward to arm %s", armID)
	}
	return checkRowsAffected(res, "arm", armID)
}

// Decisions

func (s *SQLiteStore) CreateDecision(ctx context.Context, d *model.Decision) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	ctxJSON, err := json.Marshal(d.Context)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal context")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, arm_id, arm_type, context, predicted_reward, method, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ArmID, string(d.ArmType), string(ctxJSON), d.PredictedReward, string(d.Method), d.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert decision %s", d.ID)
}

func (s *SQLiteStore) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, arm_id, arm_type, context, predicted_reward, method, artifact_id, published_at, created_at
		 FROM decisions WHERE id = ?`, id)
	return scanDecision(row)
}

func (s *SQLiteStore) LinkArtifact(ctx context.Context, decisionID, artifactID string, publishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE decisions SET artifact_id = ?, published_at = ? WHERE id = ?`,
		artifactID, publishedAt.UTC(), decisionID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: link artifact %s to decision %s", artifactID, decisionID)
	}
	return checkRowsAffected(res, "decision", decisionID)
}

func (s *SQLiteStore) GetDecisionByArtifact(ctx context.Context, artifactID string) (*model.Decision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, arm_id, arm_type, context, predicted_reward, method, artifact_id, published_at, created_at
		 FROM decisions WHERE artifact_id = ?`, artifactID)
	return scanDecision(row)
}

// Outcome snapshots

func (s *SQLiteStore) PutOutcomeSnapshot(ctx context.Context, snap *model.OutcomeSnapshot) error {
	// Snapshots are immutable; redelivery of the same phase is a no-op.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcome_snapshots (artifact_id, phase, likes, retweets, replies, impressions, profile_visits, follower_count, taken_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(artifact_id, phase) DO NOTHING`,
		snap.ArtifactID, string(snap.Phase), snap.Likes, snap.Retweets, snap.Replies,
		snap.Impressions, snap.ProfileVisits, snap.FollowerCount, snap.TakenAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: put outcome snapshot %s/%s", snap.ArtifactID, snap.Phase)
}

func (s *SQLiteStore) GetOutcomeSnapshot(ctx context.Context, artifactID string, phase model.Phase) (*model.OutcomeSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT artifact_id, phase, likes, retweets, replies, impressions, profile_visits, follower_count, taken_at
		 FROM outcome_snapshots WHERE artifact_id = ? AND phase = ?`,
		artifactID, string(phase),
	)

	var o model.OutcomeSnapshot
	var ph string
	err := row.Scan(&o.ArtifactID, &ph, &o.Likes, &o.Retweets, &o.Replies,
		&o.Impressions, &o.ProfileVisits, &o.FollowerCount, &o.TakenAt)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan outcome snapshot")
	}
	o.Phase = model.Phase(ph)
	return &o, nil
}

func (s *SQLiteStore) TrailingAvgLikes(ctx context.Context, since time.Time) (float64, error) {
	// Per-artifact peak likes, averaged over the window.
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(peak), 0) FROM (
			SELECT MAX(likes) AS peak FROM outcome_snapshots
			WHERE taken_at >= ? GROUP BY artifact_id
		 )`, since.UTC())

	var avg float64
	if err := row.Scan(&avg); err != nil {
		return 0, eris.Wrap(err, "sqlite: trailing avg likes")
	}
	return avg, nil
}

// Attribution

func (s *SQLiteStore) UpsertAttribution(ctx context.Context, rec *model.AttributionRecord) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attributions (artifact_id, phase, followers_before, followers_after, new_followers,
			confidence, reward, viral, snapshot_at, applied, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT(artifact_id, phase) DO UPDATE SET
			followers_before = excluded.followers_before,
			followers_after  = excluded.followers_after,
			new_followers    = excluded.new_followers,
			confidence       = excluded.confidence,
			reward           = excluded.reward,
			viral            = excluded.viral,
			snapshot_at      = excluded.snapshot_at,
			updated_at       = excluded.updated_at
		 WHERE excluded.snapshot_at >= attributions.snapshot_at`,
		rec.ArtifactID, string(rec.Phase), rec.FollowersBefore, rec.FollowersAfter, rec.NewFollowers,
		string(rec.Confidence), rec.Reward, boolInt(rec.Viral), rec.SnapshotAt.UTC(), now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert attribution %s/%s", rec.ArtifactID, rec.Phase)
}

func (s *SQLiteStore) GetAttribution(ctx context.Context, artifactID string, phase model.Phase) (*model.AttributionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT artifact_id, phase, followers_before, followers_after, new_followers,
			confidence, reward, viral, snapshot_at, applied, created_at, updated_at
		 FROM attributions WHERE artifact_id = ? AND phase = ?`,
		artifactID, string(phase),
	)
	return scanAttribution(row)
}

func (s *SQLiteStore) ListUnappliedAttributions(ctx context.Context, limit int) ([]model.AttributionRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT artifact_id, phase, followers_before, followers_after, new_followers,
			confidence, reward, viral, snapshot_at, applied, created_at, updated_at
		 FROM attributions WHERE applied = 0 ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unapplied attributions")
	}
	defer rows.Close()

	var recs []model.AttributionRecord
	for rows.Next() {
		r, err := scanAttribution(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list unapplied iterate")
}

func (s *SQLiteStore) MarkAttributionApplied(ctx context.Context, artifactID string, phase model.Phase) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attributions SET applied = 1, updated_at = ? WHERE artifact_id = ? AND phase = ?`,
		time.Now().UTC(), artifactID, string(phase),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark applied %s/%s", artifactID, phase)
	}
	return checkRowsAffected(res, "attribution", artifactID+"/"+string(phase))
}

// Timing buckets

func (s *SQLiteStore) UpdateTimingBucket(ctx context.Context, u TimingUpdate) error {
	successes := 0.0
	if u.Success {
		successes = 1.0
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO timing_buckets (hour, day_of_week, trials, successes, alpha, beta,
			avg_engagement_rate, avg_reward, total_impressions, followers_gained, updated_at)
		 VALUES (?, ?, 1, ?, 1.0 + ?, 2.0 - ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(hour, day_of_week) DO UPDATE SET
			trials = timing_buckets.trials + 1,
			successes = timing_buckets.successes + excluded.successes,
			alpha = 1.0 + timing_buckets.successes + excluded.successes,
			beta = 1.0 + (timing_buckets.trials + 1) - (timing_buckets.successes + excluded.successes),
			avg_engagement_rate = (timing_buckets.avg_engagement_rate * timing_buckets.trials + excluded.avg_engagement_rate) / (timing_buckets.trials + 1),
			avg_reward = (timing_buckets.avg_reward * timing_buckets.trials + excluded.avg_reward) / (timing_buckets.trials + 1),
			total_impressions = timing_buckets.total_impressions + excluded.total_impressions,
			followers_gained = timing_buckets.followers_gained + excluded.followers_gained,
			updated_at = excluded.updated_at`,
		u.Hour, u.DayOfWeek, successes, successes, successes,
		u.EngagementRate, u.Reward, u.Impressions, u.FollowersGained, now,
	)
	return eris.Wrapf(err, "sqlite: update timing bucket %d/%d", u.Hour, u.DayOfWeek)
}

func (s *SQLiteStore) ListTimingBuckets(ctx context.Context) ([]model.TimingBucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hour, day_of_week, trials, successes, alpha, beta,
			avg_engagement_rate, avg_reward, total_impressions, followers_gained, updated_at
		 FROM timing_buckets ORDER BY day_of_week, hour`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list timing buckets")
	}
	defer rows.Close()

	var buckets []model.TimingBucket
	for rows.Next() {
		var b model.TimingBucket
		if err := rows.Scan(&b.Hour, &b.DayOfWeek, &b.Trials, &b.Successes, &b.Alpha, &b.Beta,
			&b.AvgEngagementRate, &b.AvgReward, &b.TotalImpressions, &b.FollowersGained, &b.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan timing bucket")
		}
		buckets = append(buckets, b)
	}
	return buckets, eris.Wrap(rows.Err(), "sqlite: list timing buckets iterate")
}

// Budget ledger

func (s *SQLiteStore) AppendBudgetTransaction(ctx context.Context, txn *model.BudgetTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budget_ledger (id, operation_type, task_type, model_tier, cost, expected_reward,
			was_fallback, degraded, artifact_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.OperationType, txn.TaskType, txn.ModelTier, txn.Cost, txn.ExpectedReward,
		boolInt(txn.WasFallback), boolInt(txn.Degraded), nullString(txn.ArtifactID), txn.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: append budget transaction %s", txn.ID)
}

func (s *SQLiteStore) ResolveBudgetTransactions(ctx context.Context, artifactID string, actualReward float64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE budget_ledger SET
			actual_reward = ?,
			roi = ? / MAX(cost, 0.000001),
			resolved_at = ?
		 WHERE artifact_id = ?`,
		actualReward, actualReward, time.Now().UTC(), artifactID,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: resolve budget transactions for %s", artifactID)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) TierROI(ctx context.Context, taskType string) ([]model.TierStats, error) {
	query := `SELECT task_type, model_tier, COUNT(*), COALESCE(SUM(cost), 0),
			COALESCE(SUM(actual_reward), 0),
			COALESCE(SUM(actual_reward), 0) / MAX(COALESCE(SUM(cost), 0), 0.000001)
		 FROM budget_ledger`
	var args []any
	if taskType != "" {
		query += ` WHERE task_type = ?`
		args = append(args, taskType)
	}
	query += ` GROUP BY task_type, model_tier ORDER BY task_type, model_tier`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: tier roi")
	}
	defer rows.Close()

	var out []model.TierStats
	for rows.Next() {
		var ts model.TierStats
		if err := rows.Scan(&ts.TaskType, &ts.ModelTier, &ts.Operations, &ts.TotalCost, &ts.TotalReward, &ts.AvgROI); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tier roi")
		}
		out = append(out, ts)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: tier roi iterate")
}

func (s *SQLiteStore) SpentSince(ctx context.Context, since time.Time) (float64, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0) FROM budget_ledger WHERE created_at >= ?`, since.UTC())

	var spent float64
	if err := row.Scan(&spent); err != nil {
		return 0, eris.Wrap(err, "sqlite: spent since")
	}
	return spent, nil
}

// Recommendations

func (s *SQLiteStore) PublishRecommendations(ctx context.Context, recs *model.Recommendations) error {
	if recs.ID == "" {
		recs.ID = uuid.New().String()
	}
	if recs.PublishedAt.IsZero() {
		recs.PublishedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(recs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal recommendations")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recommendations (id, payload, published_at) VALUES (?, ?, ?)`,
		recs.ID, string(payload), recs.PublishedAt,
	)
	return eris.Wrap(err, "sqlite: publish recommendations")
}

func (s *SQLiteStore) LatestRecommendations(ctx context.Context) (*model.Recommendations, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM recommendations ORDER BY published_at DESC, id DESC LIMIT 1`)

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest recommendations")
	}

	var recs model.Recommendations
	if err := json.Unmarshal([]byte(payload), &recs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal recommendations")
	}
	return &recs, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanArm(row scannable) (*model.Arm, error) {
	var a model.Arm
	var armType string
	var featuresJSON sql.NullString
	var active int

	err := row.Scan(&a.ID, &armType, &featuresJSON, &active, &a.Trials, &a.Successes,
		&a.CumulativeReward, &a.Alpha, &a.Beta, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan arm")
	}

	a.Type = model.ArmType(armType)
	a.Active = active != 0
	if featuresJSON.Valid && featuresJSON.String != "" && featuresJSON.String != "null" {
		if err := json.Unmarshal([]byte(featuresJSON.String), &a.Features); err != nil {
			return nil, eris.Wrap(err, "unmarshal arm features")
		}
	}
	return &a, nil
}

func scanDecision(row scannable) (*model.Decision, error) {
	var d model.Decision
	var armType, method, ctxJSON string
	var artifactID sql.NullString
	var publishedAt sql.NullTime

	err := row.Scan(&d.ID, &d.ArmID, &armType, &ctxJSON, &d.PredictedReward, &method,
		&artifactID, &publishedAt, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan decision")
	}

	d.ArmType = model.ArmType(armType)
	d.Method = model.SelectionMethod(method)
	if err := json.Unmarshal([]byte(ctxJSON), &d.Context); err != nil {
		return nil, eris.Wrap(err, "unmarshal decision context")
	}
	if artifactID.Valid {
		d.ArtifactID = artifactID.String
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		d.PublishedAt = &t
	}
	return &d, nil
}

func scanAttribution(row scannable) (*model.AttributionRecord, error) {
	var r model.AttributionRecord
	var phase, confidence string
	var viral, applied int

	err := row.Scan(&r.ArtifactID, &phase, &r.FollowersBefore, &r.FollowersAfter, &r.NewFollowers,
		&confidence, &r.Reward, &viral, &r.SnapshotAt, &applied, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan attribution")
	}

	r.Phase = model.Phase(phase)
	r.Confidence = model.Confidence(confidence)
	r.Viral = viral != 0
	r.Applied = applied != 0
	return &r, nil
}
