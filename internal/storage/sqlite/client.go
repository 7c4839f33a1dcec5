package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/designers-bff/backend/internal/gaps"
	"github.com/designers-bff/backend/internal/storage/models"
	"github.com/designers-bff/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS curation_batches (
		id TEXT PRIMARY KEY,
		designer_id TEXT NOT NULL,
		taxonomy_version TEXT,
		status TEXT NOT NULL,
		candidate_count INTEGER NOT NULL DEFAULT 0,
		target_count INTEGER NOT NULL DEFAULT 0,
		selected_count INTEGER NOT NULL DEFAULT 0,
		diversity_score REAL NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		result_json TEXT,
		error TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_batches_designer ON curation_batches(designer_id);
	CREATE INDEX IF NOT EXISTS idx_batches_status ON curation_batches(status);
	CREATE INDEX IF NOT EXISTS idx_batches_created ON curation_batches(created_at);

	CREATE TABLE IF NOT EXISTS coverage_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		designer_id TEXT NOT NULL,
		attribute TEXT NOT NULL,
		coverage_percent REAL NOT NULL,
		entropy REAL NOT NULL,
		gini REAL NOT NULL,
		meets_target INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (batch_id) REFERENCES curation_batches(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_coverage_designer_attr ON coverage_metrics(designer_id, attribute);
	CREATE INDEX IF NOT EXISTS idx_coverage_created ON coverage_metrics(created_at);

	CREATE TABLE IF NOT EXISTS attribute_gaps (
		id TEXT PRIMARY KEY,
		designer_id TEXT NOT NULL,
		attribute TEXT NOT NULL,
		missing_values TEXT,
		underrepresented_values TEXT,
		severity TEXT NOT NULL,
		status TEXT NOT NULL,
		current_coverage REAL NOT NULL DEFAULT 0,
		target_coverage REAL NOT NULL DEFAULT 0,
		gap_percentage REAL NOT NULL DEFAULT 0,
		recommended_boost REAL NOT NULL DEFAULT 1.0,
		applied_boost REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_gaps_designer_status ON attribute_gaps(designer_id, status);
	CREATE INDEX IF NOT EXISTS idx_gaps_attribute ON attribute_gaps(attribute);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) CreateBatch(ctx context.Context, batch *models.CurationBatch) error {
	query := `
		INSERT INTO curation_batches (id, designer_id, taxonomy_version, status, candidate_count,
			target_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			candidate_count = excluded.candidate_count,
			target_count = excluded.target_count,
			updated_at = excluded.updated_at
	`

	_, err := c.db.ExecContext(ctx, query,
		batch.ID,
		batch.DesignerID,
		batch.TaxonomyVersion,
		batch.Status,
		batch.CandidateCount,
		batch.TargetCount,
		batch.CreatedAt.Unix(),
		batch.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	logger.Debug("Batch created", zap.String("batch_id", batch.ID), zap.String("status", batch.Status))
	return nil
}

func (c *Client) UpdateBatchStatus(ctx context.Context, id, status, errMsg string) error {
	query := `UPDATE curation_batches SET status = ?, error = ?, updated_at = ? WHERE id = ?`

	_, err := c.db.ExecContext(ctx, query, status, errMsg, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update batch status: %w", err)
	}

	return nil
}

func (c *Client) GetBatch(ctx context.Context, id string) (*models.CurationBatch, error) {
	query := `
		SELECT id, designer_id, taxonomy_version, status, candidate_count, target_count,
			selected_count, diversity_score, latency_ms, COALESCE(result_json, ''),
			COALESCE(error, ''), created_at, updated_at
		FROM curation_batches WHERE id = ?
	`

	var batch models.CurationBatch
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx, query, id).Scan(
		&batch.ID,
		&batch.DesignerID,
		&batch.TaxonomyVersion,
		&batch.Status,
		&batch.CandidateCount,
		&batch.TargetCount,
		&batch.SelectedCount,
		&batch.DiversityScore,
		&batch.LatencyMS,
		&batch.ResultJSON,
		&batch.Error,
		&createdAt,
		&updatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	batch.CreatedAt = time.Unix(createdAt, 0)
	batch.UpdatedAt = time.Unix(updatedAt, 0)

	return &batch, nil
}

// SaveResult commits a finished run as one transaction: the completed
// batch row, its per-attribute coverage rows, and the reconciled gap set.
// A failed commit leaves no partial result behind.
func (c *Client) SaveResult(ctx context.Context, batch *models.CurationBatch, metrics []models.CoverageMetric, gapSet []gaps.Gap) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE curation_batches SET status = ?, selected_count = ?, diversity_score = ?,
			latency_ms = ?, result_json = ?, error = '', updated_at = ?
		WHERE id = ?`,
		batch.Status,
		batch.SelectedCount,
		batch.DiversityScore,
		batch.LatencyMS,
		batch.ResultJSON,
		batch.UpdatedAt.Unix(),
		batch.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update batch result: %w", err)
	}

	for _, m := range metrics {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO coverage_metrics (batch_id, designer_id, attribute, coverage_percent,
				entropy, gini, meets_target, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.BatchID,
			m.DesignerID,
			m.Attribute,
			m.CoveragePercent,
			m.Entropy,
			m.Gini,
			boolToInt(m.MeetsTarget),
			m.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert coverage metric: %w", err)
		}
	}

	for _, g := range gapSet {
		if err := upsertGap(ctx, tx, &g); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}

	logger.Info("Curation result saved",
		zap.String("batch_id", batch.ID),
		zap.Int("coverage_rows", len(metrics)),
		zap.Int("gaps", len(gapSet)),
	)

	return nil
}

func (c *Client) ActiveGaps(ctx context.Context, designerID string) ([]gaps.Gap, error) {
	query := gapSelect + ` WHERE designer_id = ? AND status IN (?, ?) ORDER BY attribute`

	rows, err := c.db.QueryContext(ctx, query, designerID, gaps.StatusIdentified, gaps.StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to get active gaps: %w", err)
	}
	defer rows.Close()

	var out []gaps.Gap
	for rows.Next() {
		g, err := scanGap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}

	return out, rows.Err()
}

func (c *Client) GetGap(ctx context.Context, id string) (*gaps.Gap, error) {
	row := c.db.QueryRowContext(ctx, gapSelect+` WHERE id = ?`, id)
	return scanGap(row)
}

func (c *Client) UpdateGap(ctx context.Context, g *gaps.Gap) error {
	missing, _ := json.Marshal(g.MissingValues)
	under, _ := json.Marshal(g.UnderrepresentedValues)

	query := `
		UPDATE attribute_gaps SET missing_values = ?, underrepresented_values = ?, severity = ?,
			status = ?, current_coverage = ?, target_coverage = ?, gap_percentage = ?,
			recommended_boost = ?, applied_boost = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := c.db.ExecContext(ctx, query,
		string(missing),
		string(under),
		g.Severity,
		g.Status,
		g.CurrentCoverage,
		g.TargetCoverage,
		g.GapPercentage,
		g.RecommendedBoost,
		g.AppliedBoost,
		g.UpdatedAt.Unix(),
		g.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update gap: %w", err)
	}

	return nil
}

// CoverageTrend returns the most recent coverage rows for one attribute,
// newest first, for trend dashboards owned by the surrounding system.
func (c *Client) CoverageTrend(ctx context.Context, designerID, attribute string, limit int) ([]models.CoverageMetric, error) {
	query := `
		SELECT id, batch_id, designer_id, attribute, coverage_percent, entropy, gini,
			meets_target, created_at
		FROM coverage_metrics
		WHERE designer_id = ? AND attribute = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, designerID, attribute, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get coverage trend: %w", err)
	}
	defer rows.Close()

	var out []models.CoverageMetric
	for rows.Next() {
		var m models.CoverageMetric
		var meetsTarget int
		var createdAt int64

		err := rows.Scan(&m.ID, &m.BatchID, &m.DesignerID, &m.Attribute, &m.CoveragePercent,
			&m.Entropy, &m.Gini, &meetsTarget, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		m.MeetsTarget = meetsTarget != 0
		m.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, m)
	}

	return out, rows.Err()
}

const gapSelect = `
	SELECT id, designer_id, attribute, COALESCE(missing_values, '[]'),
		COALESCE(underrepresented_values, '[]'), severity, status, current_coverage,
		target_coverage, gap_percentage, recommended_boost, applied_boost,
		created_at, updated_at
	FROM attribute_gaps`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGap(row rowScanner) (*gaps.Gap, error) {
	var g gaps.Gap
	var missing, under string
	var createdAt, updatedAt int64

	err := row.Scan(&g.ID, &g.DesignerID, &g.Attribute, &missing, &under, &g.Severity,
		&g.Status, &g.CurrentCoverage, &g.TargetCoverage, &g.GapPercentage,
		&g.RecommendedBoost, &g.AppliedBoost, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan gap: %w", err)
	}

	json.Unmarshal([]byte(missing), &g.MissingValues)
	json.Unmarshal([]byte(under), &g.UnderrepresentedValues)
	g.CreatedAt = time.Unix(createdAt, 0)
	g.UpdatedAt = time.Unix(updatedAt, 0)

	return &g, nil
}

func upsertGap(ctx context.Context, tx *sql.Tx, g *gaps.Gap) error {
	missing, _ := json.Marshal(g.MissingValues)
	under, _ := json.Marshal(g.UnderrepresentedValues)

	query := `
		INSERT INTO attribute_gaps (id, designer_id, attribute, missing_values,
			underrepresented_values, severity, status, current_coverage, target_coverage,
			gap_percentage, recommended_boost, applied_boost, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			missing_values = excluded.missing_values,
			underrepresented_values = excluded.underrepresented_values,
			severity = excluded.severity,
			status = excluded.status,
			current_coverage = excluded.current_coverage,
			target_coverage = excluded.target_coverage,
			gap_percentage = excluded.gap_percentage,
			recommended_boost = excluded.recommended_boost,
			applied_boost = excluded.applied_boost,
			updated_at = excluded.updated_at
	`

	_, err := tx.ExecContext(ctx, query,
		g.ID,
		g.DesignerID,
		g.Attribute,
		string(missing),
		string(under),
		g.Severity,
		g.Status,
		g.CurrentCoverage,
		g.TargetCoverage,
		g.GapPercentage,
		g.RecommendedBoost,
		g.AppliedBoost,
		g.CreatedAt.Unix(),
		g.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert gap: %w", err)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
