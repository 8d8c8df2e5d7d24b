// Package pdftext extracts plain text from PDF documents.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxBytes bounds how much of a document is read into memory.
const DefaultMaxBytes int64 = 32 << 20

// ErrTooLarge is returned when a document exceeds the extractor's size limit.
var ErrTooLarge = errors.New("document too large")

// Extractor reads a PDF into memory and returns its plain text.
type Extractor struct {
	maxBytes int64
}

// New returns an Extractor. maxBytes <= 0 selects DefaultMaxBytes.
func New(maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Extractor{maxBytes: maxBytes}
}

// ExtractText implements core.TextExtractor.
func (e *Extractor) ExtractText(ctx context.Context, r io.Reader) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := io.ReadAll(io.LimitReader(r, e.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if int64(len(raw)) > e.maxBytes {
		return "", ErrTooLarge
	}

	// The pdf package panics on some malformed cross-reference tables.
	defer func() {
		if p := recover(); p != nil {
			text = ""
			err = fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return buf.String(), nil
}
