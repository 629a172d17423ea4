// Package uploader drives the synchronization lifecycle of spec.md §4.6:
// initiate a remote bulk-ingest job, stream every staged graph object to it
// in batched, retried, concurrency-bounded uploads (with a size-based
// raw-data shrinking fallback), drain the logger's event queue, then
// finalize or abort.
package uploader

import (
	"context"
	"fmt"

	resty "resty.dev/v3"

	"github.com/j1-labs/j1-integration-runtime/internal/execconfig"
	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
	"github.com/j1-labs/j1-integration-runtime/internal/ierr"
	"github.com/j1-labs/j1-integration-runtime/internal/persistence"
	"github.com/j1-labs/j1-integration-runtime/internal/runlog"
)

const (
	batchSize         = 250
	uploadConcurrency = 6
)

// Source identifies how a synchronization job is scoped, per spec.md §4.6
// Initiate.
type Source struct {
	Source                string `json:"source"`
	IntegrationInstanceID string `json:"integrationInstanceId,omitempty"`
	Scope                 string `json:"scope,omitempty"`
}

// apiError is the {error:{code,message}} shape the remote service encodes
// known application-level failures in (spec.md §6).
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Options configures an Uploader.
type Options struct {
	Client *resty.Client
	Root   string
	Logger *runlog.Logger
	Events *runlog.EventBus
	Sink   EventSink

	// Overrides tunes per-step batch size and upload concurrency, keyed by
	// step ID — typically the result of execconfig.Load (SPEC_FULL.md
	// §4.7). A step without an entry, or with a zero field, falls back to
	// batchSize/uploadConcurrency.
	Overrides map[string]execconfig.StepExecutionOverride
}

// EventSink forwards a single drained event to the remote event channel.
// internal/transport.EventSink satisfies this.
type EventSink interface {
	Emit(eventName string, payload any) error
}

// Uploader owns one run's synchronization job lifecycle.
type Uploader struct {
	client    *resty.Client
	root      string
	logger    *runlog.Logger
	events    *runlog.EventBus
	sink      EventSink
	overrides map[string]execconfig.StepExecutionOverride

	jobID string
}

// New constructs an Uploader. opts.Sink may be nil, in which case drained
// events are discarded after being counted (spec.md §4.9's local fallback).
func New(opts Options) *Uploader {
	logger := opts.Logger
	if logger == nil {
		logger = runlog.New(nil, opts.Events)
	}
	return &Uploader{
		client:    opts.Client,
		root:      opts.Root,
		logger:    logger,
		events:    opts.Events,
		sink:      opts.Sink,
		overrides: opts.Overrides,
	}
}

// Run drives initiate → upload → drain → finalize, aborting on any fatal
// error. It returns the jobId of the synchronization job that was either
// finalized or aborted.
func (u *Uploader) Run(ctx context.Context, src Source) (string, error) {
	if closer, ok := u.sink.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				u.logger.Warn("closing event sink", "error", err)
			}
		}()
	}

	jobID, err := u.initiate(ctx, src)
	if err != nil {
		return "", err
	}
	u.jobID = jobID
	u.logger.SynchronizationUploadStart(runlog.SynchronizationJob{ID: jobID, Source: src.Source})

	if err := u.uploadAll(ctx); err != nil {
		if abortErr := u.abort(ctx, err.Error()); abortErr != nil {
			u.logger.Error("abort failed after upload error", "error", abortErr)
		}
		return jobID, err
	}

	if ctx.Err() != nil {
		// spec.md §5 "finalize is skipped" on cancellation once a job exists.
		if abortErr := u.abort(ctx, "run cancelled"); abortErr != nil {
			u.logger.Error("abort failed after cancellation", "error", abortErr)
		}
		return jobID, ctx.Err()
	}

	u.drainEvents(ctx)

	summary, err := persistence.ReadSummary(u.root)
	if err != nil {
		return jobID, fmt.Errorf("uploader: reading summary: %w", err)
	}
	if err := u.finalize(ctx, summary.Metadata.PartialDatasets); err != nil {
		return jobID, err
	}

	u.logger.SynchronizationUploadEnd(runlog.SynchronizationJob{ID: jobID, Source: src.Source})
	return jobID, nil
}

func (u *Uploader) initiate(ctx context.Context, src Source) (string, error) {
	var out struct {
		JobID string `json:"jobId"`
	}
	resp, err := u.client.R().
		SetContext(ctx).
		SetBody(src).
		SetResult(&out).
		Post("/persister/synchronization/jobs")
	if err != nil {
		return "", ierr.New(ierr.KindSyncAPI, fmt.Errorf("initiating synchronization job: %w", err))
	}
	if resp.IsError() {
		return "", ierr.New(ierr.KindSyncAPI, fmt.Errorf("initiating synchronization job: status %d", resp.StatusCode()))
	}
	return out.JobID, nil
}

func (u *Uploader) finalize(ctx context.Context, partials graphobject.PartialDatasetMetadata) error {
	resp, err := u.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"partialDatasets": partials}).
		Post(fmt.Sprintf("/persister/synchronization/jobs/%s/finalize", u.jobID))
	if err != nil {
		return ierr.New(ierr.KindSyncAPI, fmt.Errorf("finalizing synchronization job %s: %w", u.jobID, err))
	}
	if resp.IsError() {
		return ierr.New(ierr.KindSyncAPI, fmt.Errorf("finalizing synchronization job %s: status %d", u.jobID, resp.StatusCode()))
	}
	return nil
}

func (u *Uploader) abort(ctx context.Context, reason string) error {
	if u.jobID == "" {
		return nil
	}
	resp, err := u.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"reason": reason}).
		Post(fmt.Sprintf("/persister/synchronization/jobs/%s/abort", u.jobID))
	if err != nil {
		return ierr.New(ierr.KindSyncAPI, fmt.Errorf("aborting synchronization job %s: %w", u.jobID, err))
	}
	if resp.IsError() {
		return ierr.New(ierr.KindSyncAPI, fmt.Errorf("aborting synchronization job %s: status %d", u.jobID, resp.StatusCode()))
	}
	return nil
}
