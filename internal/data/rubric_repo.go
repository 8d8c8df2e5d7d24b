package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/hanifsetyadi/cv-analyzer/internal/data/pgxutil"
	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

// RubricRepo is the retrieval index: rubric documents with pgvector embeddings.
type RubricRepo struct {
	DB *sql.DB
}

// NewRubricRepo creates a RubricRepo.
func NewRubricRepo(db *sql.DB) *RubricRepo {
	return &RubricRepo{DB: db}
}

// InsertSet stores docs atomically. If any id already exists nothing is written and
// ErrRubricExists is returned.
func (r *RubricRepo) InsertSet(ctx context.Context, docs []model.RubricDocument) error {
	if len(docs) == 0 {
		return errors.New("at least one rubric document is required")
	}
	for _, d := range docs {
		if !d.Kind.Valid() {
			return fmt.Errorf("invalid rubric kind: %s", d.Kind)
		}
		if len(d.Embedding) != model.EmbeddingDimensions {
			return fmt.Errorf("rubric %s: embedding has %d dimensions, want %d", d.ID, len(d.Embedding), model.EmbeddingDimensions)
		}
	}

	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			for _, d := range docs {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO rubric_documents (id, job_title, kind, content, embedding)
					VALUES ($1, $2, $3, $4, $5::vector)
				`, d.ID, d.JobTitle, string(d.Kind), d.Content, pgvector.NewVector(d.Embedding)); err != nil {
					return err
				}
			}
			return nil
		},
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrRubricExists
		}
		return fmt.Errorf("insert rubric documents: %w", err)
	}
	return nil
}

// ExistsForTitle reports whether any rubric document is indexed for jobTitle.
func (r *RubricRepo) ExistsForTitle(ctx context.Context, jobTitle string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM rubric_documents WHERE job_title = $1)`,
		strings.TrimSpace(jobTitle),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check rubric exists: %w", err)
	}
	return exists, nil
}

// Search returns the k documents nearest to embedding by cosine distance.
func (r *RubricRepo) Search(ctx context.Context, embedding []float32, k int) ([]model.RubricMatch, error) {
	if len(embedding) != model.EmbeddingDimensions {
		return nil, fmt.Errorf("query embedding has %d dimensions, want %d", len(embedding), model.EmbeddingDimensions)
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, kind, content, embedding <=> $1::vector AS distance
		FROM rubric_documents
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("search rubrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.RubricMatch
	for rows.Next() {
		var m model.RubricMatch
		if err := rows.Scan(&m.ID, &m.Kind, &m.Content, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan rubric match: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rubric matches: %w", err)
	}
	return out, nil
}
