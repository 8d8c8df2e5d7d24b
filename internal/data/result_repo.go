package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/hanifsetyadi/cv-analyzer/internal/data/pgxutil"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

// ResultRepo persists evaluation results keyed by correlation id.
type ResultRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewResultRepo creates a ResultRepo. A nil TimeProvider uses the system clock.
func NewResultRepo(db *sql.DB, tp TimeProvider) *ResultRepo {
	if tp == nil {
		tp = RealTimeProvider{}
	}
	return &ResultRepo{DB: db, timeProvider: tp}
}

const qualifiedResultColumns = `
  r.correlation_id, r.job_id, r.job_title, r.cv_score, r.cv_feedback,
  r.project_score, r.project_feedback, r.summary, r.created_at`

const upsertResultSQL = `
  INSERT INTO evaluation_results (
    correlation_id, job_id, job_title, cv_score, cv_feedback,
    project_score, project_feedback, summary, created_at, updated_at
  )
  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
  ON CONFLICT (correlation_id) DO UPDATE
  SET job_id = EXCLUDED.job_id,
      job_title = EXCLUDED.job_title,
      cv_score = EXCLUDED.cv_score,
      cv_feedback = EXCLUDED.cv_feedback,
      project_score = EXCLUDED.project_score,
      project_feedback = EXCLUDED.project_feedback,
      summary = EXCLUDED.summary,
      updated_at = EXCLUDED.updated_at`

// Upsert writes res, replacing any previous result for the same correlation id.
// created_at is preserved across overwrites. The job id is recorded as an alias,
// so earlier jobs for the same correlation id still resolve to the current result.
func (r *ResultRepo) Upsert(ctx context.Context, res *model.EvaluationResult) error {
	if res == nil {
		return errors.New("evaluation result is required")
	}
	if strings.TrimSpace(res.CorrelationID) == "" {
		return errors.New("correlation id is required")
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = r.timeProvider.Now().UTC()
	}

	now := r.timeProvider.Now().UTC()
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, upsertResultSQL,
				res.CorrelationID,
				res.JobID,
				res.JobTitle,
				res.CVScore,
				res.CVFeedback,
				res.ProjectScore,
				res.ProjectFeedback,
				res.Summary,
				res.CreatedAt.UTC(),
				now,
			); err != nil {
				return err
			}
			if strings.TrimSpace(res.JobID) == "" {
				return nil
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO evaluation_result_jobs (job_id, correlation_id, created_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (job_id) DO UPDATE SET correlation_id = EXCLUDED.correlation_id
			`, res.JobID, res.CorrelationID, now)
			return err
		},
	})
	if err != nil {
		return fmt.Errorf("upsert evaluation result: %w", err)
	}
	return nil
}

// Get returns the result that key names, either as the id of any job that wrote it or as
// its correlation id. A job id match wins.
func (r *ResultRepo) Get(ctx context.Context, key string) (*model.EvaluationResult, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrResultNotFound
	}

	var out *model.EvaluationResult
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			WITH hit AS (
			  SELECT correlation_id, 0 AS rank FROM evaluation_result_jobs WHERE job_id = $1
			  UNION ALL
			  SELECT correlation_id, 1 AS rank FROM evaluation_results WHERE correlation_id = $1
			)
			SELECT `+qualifiedResultColumns+`
			FROM hit
			JOIN evaluation_results r ON r.correlation_id = hit.correlation_id
			ORDER BY hit.rank
			LIMIT 1
		`, key)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.EvaluationResult])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation result: %w", err)
	}
	out.CreatedAt = out.CreatedAt.UTC()
	return out, nil
}
