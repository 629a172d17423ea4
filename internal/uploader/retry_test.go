package uploader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j1-labs/j1-integration-runtime/internal/ierr"
	"github.com/j1-labs/j1-integration-runtime/internal/runlog"
)

func testUploader() *Uploader {
	return &Uploader{logger: runlog.New(nil, nil)}
}

func TestWithRetrySucceedsWithoutRetrying(t *testing.T) {
	u := testUploader()
	calls := 0
	err := u.withRetry(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryStopsImmediatelyOnFatal(t *testing.T) {
	u := testUploader()
	calls := 0
	err := u.withRetry(context.Background(), func() error {
		calls++
		return ierr.New(ierr.KindUploadFatal, errors.New("job ended"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryExhaustsAttemptsOnRetriable(t *testing.T) {
	u := testUploader()
	calls := 0
	err := u.withRetry(context.Background(), func() error {
		calls++
		return ierr.New(ierr.KindUploadRetry, errors.New("transient"))
	})
	require.Error(t, err)
	assert.Equal(t, maxAttempts, calls)
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	u := testUploader()
	calls := 0
	err := u.withRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return ierr.New(ierr.KindUploadRetry, errors.New("transient"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryRespectsCancellation(t *testing.T) {
	u := testUploader()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := u.withRetry(ctx, func() error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, calls)
}
