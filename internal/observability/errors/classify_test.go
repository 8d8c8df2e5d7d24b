package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
	apperrors "github.com/hanifsetyadi/cv-analyzer/internal/errors"
	"github.com/stretchr/testify/assert"
)

type customErr struct{}

func (customErr) Error() string { return "custom" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "deadline", err: fmt.Errorf("generate: %w", context.DeadlineExceeded), want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "pipeline kind", err: model.NewParseError("read cv", errors.New("missing")), want: "parse"},
		{name: "app code", err: apperrors.Unavailable("db down"), want: "unavailable"},
		{name: "concrete type", err: fmt.Errorf("wrap: %w", customErr{}), want: "errors_customerr"},
		{name: "errors.New", err: errors.New("plain"), want: "errors_errorstring"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
