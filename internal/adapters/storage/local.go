// Package storage keeps uploaded candidate documents on the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

// ErrDocumentNotFound is returned by Open when no file exists for the kind and id.
var ErrDocumentNotFound = errors.New("document not found")

// LocalStore stores documents as <dir>/<kind>-<correlation id>.pdf.
type LocalStore struct {
	dir    string
	logger *slog.Logger
}

// LocalStoreOptions configures a LocalStore.
type LocalStoreOptions struct {
	Dir    string // Required
	Logger *slog.Logger
}

// NewLocalStore creates the upload directory if needed.
func NewLocalStore(opts LocalStoreOptions) (*LocalStore, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStore{dir: dir, logger: logger.With("component", "document_store")}, nil
}

// Dir returns the upload directory.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) path(kind model.DocumentKind, correlationID string) (string, error) {
	// Correlation ids are generated as UUIDs; anything else could escape the directory.
	if _, err := uuid.Parse(correlationID); err != nil {
		return "", fmt.Errorf("invalid correlation id %q: %w", correlationID, ErrDocumentNotFound)
	}
	switch kind {
	case model.DocumentCV, model.DocumentProjectReport:
	default:
		return "", fmt.Errorf("unknown document kind %q", kind)
	}
	return filepath.Join(s.dir, kind.FileName(correlationID)), nil
}

// Open returns the stored document. The caller closes it.
func (s *LocalStore) Open(_ context.Context, kind model.DocumentKind, correlationID string) (io.ReadCloser, error) {
	p, err := s.path(kind, correlationID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", kind.FileName(correlationID), ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", kind.FileName(correlationID), err)
	}
	return f, nil
}

// Save writes r to a temp file and renames it into place so readers never see a partial document.
func (s *LocalStore) Save(ctx context.Context, kind model.DocumentKind, correlationID string, r io.Reader) (string, error) {
	p, err := s.path(kind, correlationID)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return "", fmt.Errorf("rename upload: %w", err)
	}
	tmpName = ""

	name := kind.FileName(correlationID)
	s.logger.DebugContext(ctx, "document stored", "file", name)
	return name, nil
}

// Remove deletes a stored document. A missing file is not an error.
func (s *LocalStore) Remove(_ context.Context, kind model.DocumentKind, correlationID string) error {
	p, err := s.path(kind, correlationID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", kind.FileName(correlationID), err)
	}
	return nil
}
