// Package service implements the NeuroTunes use cases on top of the store.
package service

import (
	"context"
	"errors"
	"time"

	domainerrors "github.com/neurotunes/neurotunes-server/internal/errors"
	"github.com/neurotunes/neurotunes-server/internal/store"
)

// Batch sources, used as the metrics label.
const (
	SourceAPI   = "api"
	SourceInbox = "inbox"
)

type sourceKey struct{}

// WithBatchSource tags ctx with where an upload came from.
func WithBatchSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func batchSource(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok {
		return s
	}
	return SourceAPI
}

// Clock returns the current time. Tests replace it.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

// storeError converts request-level store sentinels into domain errors.
// Anything else (store outages already mapped by the breaker, context
// errors) passes through unchanged.
func storeError(err error, what string) error {
	if err == nil {
		return nil
	}
	var se *store.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFoundf("%s not found", what)
	case errors.Is(err, store.ErrAlreadyExists):
		return domainerrors.Conflictf("%s already exists", what).WithCause(err)
	case errors.Is(err, store.ErrInvalidInput) && errors.As(err, &se):
		return domainerrors.Validation(se.Message)
	default:
		return err
	}
}
