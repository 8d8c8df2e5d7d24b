package pdftext

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_ExtractText(t *testing.T) {
	t.Run("not a pdf", func(t *testing.T) {
		_, err := New(0).ExtractText(context.Background(), strings.NewReader("plain words, no header"))
		require.Error(t, err)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := New(4).ExtractText(context.Background(), strings.NewReader("%PDF-1.7"))
		require.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(0).ExtractText(ctx, strings.NewReader("%PDF-1.7"))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("truncated pdf does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			_, err := New(0).ExtractText(context.Background(), strings.NewReader("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"))
			assert.Error(t, err)
		})
	})
}
