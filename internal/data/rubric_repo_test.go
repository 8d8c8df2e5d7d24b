package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	"github.com/hanifsetyadi/cv-analyzer/internal/testutil"
)

// unitVector returns a vector with a single hot dimension.
func unitVector(hot int) []float32 {
	v := make([]float32, model.EmbeddingDimensions)
	v[hot] = 1
	return v
}

func rubricDocs(title string) []model.RubricDocument {
	req := model.CreateRubricRequest{
		JobTitle:       title,
		CVRubric:       "cv rubric",
		JobDescription: "job description",
		ProjectRubric:  "project rubric",
	}
	docs := req.Documents()
	for i := range docs {
		docs[i].Embedding = unitVector(i)
	}
	return docs
}

func TestRubricRepo_Integration(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewRubricRepo(db)
		ctx := context.Background()

		require.NoError(t, repo.InsertSet(ctx, rubricDocs("backend")))

		t.Run("exists", func(t *testing.T) {
			ok, err := repo.ExistsForTitle(ctx, "backend")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = repo.ExistsForTitle(ctx, "frontend")
			require.NoError(t, err)
			assert.False(t, ok)
		})

		t.Run("duplicate set is rejected atomically", func(t *testing.T) {
			docs := rubricDocs("backend")
			docs[0].ID = "rubric_cv_fresh"
			err := repo.InsertSet(ctx, docs)
			require.ErrorIs(t, err, ErrRubricExists)

			var n int
			require.NoError(t, db.QueryRowContext(ctx,
				`SELECT count(*) FROM rubric_documents WHERE id = 'rubric_cv_fresh'`).Scan(&n))
			assert.Zero(t, n)
		})

		t.Run("nearest first", func(t *testing.T) {
			matches, err := repo.Search(ctx, unitVector(1), 2)
			require.NoError(t, err)
			require.Len(t, matches, 2)
			assert.Equal(t, "job_desc_backend", matches[0].ID)
			assert.Equal(t, model.RubricKindJobDescription, matches[0].Kind)
			assert.InDelta(t, 0.0, matches[0].Distance, 1e-6)
			assert.Greater(t, matches[1].Distance, matches[0].Distance)
		})

		t.Run("dimension mismatch", func(t *testing.T) {
			_, err := repo.Search(ctx, []float32{1, 2, 3}, 2)
			require.Error(t, err)
		})
	})
}
