package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

const testID = "0b8f4c1e-6a53-4a53-9d6c-7f0a2e1d4b11"

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(LocalStoreOptions{Dir: filepath.Join(t.TempDir(), "uploads")})
	require.NoError(t, err)
	return s
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestLocalStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save then open", func(t *testing.T) {
		s := newTestStore(t)
		name, err := s.Save(ctx, model.DocumentCV, testID, strings.NewReader("%PDF-1.4 body"))
		require.NoError(t, err)
		assert.Equal(t, "cv-"+testID+".pdf", name)
		assert.FileExists(t, filepath.Join(s.Dir(), name))

		rc, err := s.Open(ctx, model.DocumentCV, testID)
		require.NoError(t, err)
		defer rc.Close()
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 body", string(b))
	})

	t.Run("open missing", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Open(ctx, model.DocumentProjectReport, testID)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	t.Run("rejects path-like ids", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Save(ctx, model.DocumentCV, "../../etc/passwd", strings.NewReader("x"))
		require.Error(t, err)
		_, err = s.Open(ctx, model.DocumentCV, "../secret")
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	t.Run("reader error leaves nothing behind", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Save(ctx, model.DocumentCV, testID, failingReader{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "client went away")

		entries, err := os.ReadDir(s.Dir())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Save(ctx, model.DocumentProjectReport, testID, strings.NewReader("%PDF"))
		require.NoError(t, err)
		require.NoError(t, s.Remove(ctx, model.DocumentProjectReport, testID))
		require.NoError(t, s.Remove(ctx, model.DocumentProjectReport, testID))
		assert.NoFileExists(t, filepath.Join(s.Dir(), model.DocumentProjectReport.FileName(testID)))
	})

	t.Run("requires dir", func(t *testing.T) {
		_, err := NewLocalStore(LocalStoreOptions{})
		require.Error(t, err)
	})
}
