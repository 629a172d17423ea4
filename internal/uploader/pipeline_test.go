package uploader_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	resty "resty.dev/v3"

	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
	"github.com/j1-labs/j1-integration-runtime/internal/scheduler"
	"github.com/j1-labs/j1-integration-runtime/internal/uploader"
)

// TestSchedulerRunFeedsUploaderRun exercises the full pipeline spec.md §2's
// data-flow diagram describes: a Scheduler.Run populates a staging
// directory, and an Uploader.Run pointed at that same root streams
// everything it staged to the synchronization API. The synchronization
// API itself is a local httptest.Server rather than a live network
// endpoint.
func TestSchedulerRunFeedsUploaderRun(t *testing.T) {
	root := t.TempDir()

	accountsStep := &graphobject.Step{
		ID:   "fetch-accounts",
		Name: "Fetch accounts",
		Entities: []graphobject.EntityTypeDeclaration{
			{Type: "demo_account", Class: []string{"Account"}},
		},
		ExecutionHandler: func(ctx context.Context, stepCtx *graphobject.StepContext) error {
			_, err := stepCtx.JobState.AddEntity(ctx, graphobject.Entity{
				"_key": "account-1", "_type": "demo_account", "_class": []string{"Account"},
			})
			return err
		},
	}

	s := scheduler.New(scheduler.InvocationConfig{
		Root:             root,
		IntegrationSteps: []*graphobject.Step{accountsStep},
	})

	runResult, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, graphobject.StatusSuccess, runResult.StepResults[0].Status)

	var uploadedEntities atomic.Int32
	var finalized atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/persister/synchronization/jobs":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"jobId": "pipeline-job"})
		case r.URL.Path == "/persister/synchronization/jobs/pipeline-job/entities":
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if items, ok := body["entities"].([]any); ok {
				uploadedEntities.Add(int32(len(items)))
			}
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/persister/synchronization/jobs/pipeline-job/finalize":
			finalized.Store(true)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	u := uploader.New(uploader.Options{
		Client: resty.New().SetBaseURL(server.URL),
		Root:   root,
	})

	jobID, err := u.Run(context.Background(), uploader.Source{Source: "api"})
	require.NoError(t, err)
	assert.Equal(t, "pipeline-job", jobID)
	assert.True(t, finalized.Load())
	assert.Equal(t, int32(1), uploadedEntities.Load())
}
