package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
	"github.com/j1-labs/j1-integration-runtime/internal/ierr"
	"github.com/j1-labs/j1-integration-runtime/internal/persistence"
)

// uploadAll walks every flushed file under root/graph and uploads its
// contents in batches. By default, all uploads share one global semaphore
// holding spec.md §4.6/§5's fixed "concrete parallelism of 6" cap
// (uploadConcurrency). A step with an explicit execconfig Concurrency
// override (SPEC_FULL.md §4.7) gets its own semaphore, sized by that
// override and used in place of the global one; that step's uploads do not
// count against the global cap.
func (u *Uploader) uploadAll(ctx context.Context) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error

		globalSem = semaphore.NewWeighted(int64(uploadConcurrency))
		semMu     sync.Mutex
		stepSems  = make(map[string]*semaphore.Weighted)
	)

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	semFor := func(stepID string) *semaphore.Weighted {
		if override, ok := u.overrides[stepID]; !ok || override.Concurrency <= 0 {
			return globalSem
		}
		semMu.Lock()
		defer semMu.Unlock()
		if sem, ok := stepSems[stepID]; ok {
			return sem
		}
		sem := semaphore.NewWeighted(int64(u.concurrencyFor(stepID)))
		stepSems[stepID] = sem
		return sem
	}

	submit := func(stepID string, upload func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem := semFor(stepID)
			if err := sem.Acquire(ctx, 1); err != nil {
				fail(err)
				return
			}
			defer sem.Release(1)

			mu.Lock()
			stop := firstErr != nil
			mu.Unlock()
			if stop {
				return
			}

			if err := upload(ctx); err != nil {
				fail(err)
			}
		}()
	}

	err := persistence.WalkGraphFiles(u.root, func(gf persistence.GraphFile) error {
		mu.Lock()
		stop := firstErr != nil
		mu.Unlock()
		if stop {
			return firstErr
		}

		size := u.batchSizeFor(gf.StepID)
		for _, batch := range chunkEntities(gf.Content.Entities, size) {
			b := batch
			submit(gf.StepID, func(ctx context.Context) error { return u.uploadBatchWithRetry(ctx, "entities", b) })
		}
		for _, batch := range chunkRelationships(gf.Content.Relationships, size) {
			b := batch
			submit(gf.StepID, func(ctx context.Context) error { return u.uploadBatchWithRetry(ctx, "relationships", b) })
		}
		return nil
	})
	if err != nil && err != firstErr {
		fail(fmt.Errorf("uploader: walking graph files: %w", err))
	}

	wg.Wait()
	return firstErr
}

// batchSizeFor returns stepID's execconfig.StepExecutionOverride.BatchSize
// if set, otherwise the package default.
func (u *Uploader) batchSizeFor(stepID string) int {
	if override, ok := u.overrides[stepID]; ok && override.BatchSize > 0 {
		return override.BatchSize
	}
	return batchSize
}

// concurrencyFor returns stepID's execconfig.StepExecutionOverride.Concurrency
// if set, otherwise the package default.
func (u *Uploader) concurrencyFor(stepID string) int {
	if override, ok := u.overrides[stepID]; ok && override.Concurrency > 0 {
		return override.Concurrency
	}
	return uploadConcurrency
}

func chunkEntities(items []graphobject.Entity, size int) [][]graphobject.Entity {
	if len(items) == 0 {
		return nil
	}
	var chunks [][]graphobject.Entity
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		chunks = append(chunks, items[i:end])
	}
	return chunks
}

func chunkRelationships(items []graphobject.Relationship, size int) [][]graphobject.Relationship {
	if len(items) == 0 {
		return nil
	}
	var chunks [][]graphobject.Relationship
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		chunks = append(chunks, items[i:end])
	}
	return chunks
}

// uploadBatchWithRetry posts one batch to the entities or relationships
// endpoint, applying the retry policy of retry.go. kind is "entities" or
// "relationships".
func (u *Uploader) uploadBatchWithRetry(ctx context.Context, kind string, batch any) error {
	path := fmt.Sprintf("/persister/synchronization/jobs/%s/%s", u.jobID, kind)
	body := map[string]any{kind: batch}

	return u.withRetry(ctx, func() error {
		resp, err := u.client.R().SetContext(ctx).SetBody(body).Post(path)
		if err != nil {
			return ierr.New(ierr.KindUploadRetry, err)
		}

		if resp.StatusCode() == 413 {
			shrunk, shrinkErr := shrinkBatch(body)
			if shrinkErr != nil {
				return ierr.New(ierr.KindCannotShrink, shrinkErr)
			}
			body = shrunk
			return ierr.New(ierr.KindUploadRetry, fmt.Errorf("batch too large (413), shrunk for retry"))
		}

		if resp.IsError() {
			var apiErr apiError
			if decodeErr := json.Unmarshal(resp.Bytes(), &apiErr); decodeErr == nil {
				switch apiErr.Error.Code {
				case "RequestEntityTooLargeException":
					shrunk, shrinkErr := shrinkBatch(body)
					if shrinkErr != nil {
						return ierr.New(ierr.KindCannotShrink, shrinkErr)
					}
					body = shrunk
					return ierr.New(ierr.KindUploadRetry, fmt.Errorf("batch too large, shrunk for retry"))
				case "JOB_NOT_AWAITING_UPLOADS":
					return ierr.New(ierr.KindUploadFatal, fmt.Errorf("INTEGRATION_UPLOAD_AFTER_JOB_ENDED: %s", apiErr.Error.Message))
				case "CredentialsError":
					return ierr.New(ierr.KindUploadRetry, fmt.Errorf("transient credentials error: %s", apiErr.Error.Message))
				}
			}
			return ierr.New(ierr.KindUploadRetry, fmt.Errorf("upload batch: status %d", resp.StatusCode()))
		}

		return nil
	})
}
