package uploader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
	"github.com/j1-labs/j1-integration-runtime/internal/persistence"
	"github.com/j1-labs/j1-integration-runtime/internal/runlog"
	resty "resty.dev/v3"
)

// fakeSink records every emitted event instead of reaching a real socket.
type fakeSink struct {
	mu     sync.Mutex
	events []string
}

func (s *fakeSink) Emit(eventName string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventName)
	return nil
}

func newTestRoot(t *testing.T) string {
	root := t.TempDir()
	require.NoError(t, persistence.ResetRoot(root))

	w := persistence.NewWriter(root, false)
	_, err := w.FlushEntities("step-a", []graphobject.Entity{
		{"_key": "k1", "_type": "widget", "_class": []string{"Widget"}},
	})
	require.NoError(t, err)

	require.NoError(t, persistence.WriteSummary(root, persistence.Summary{
		IntegrationStepResults: []graphobject.StepResult{{ID: "step-a", Status: graphobject.StatusSuccess}},
		Metadata: persistence.SummaryMetadata{
			PartialDatasets: graphobject.PartialDatasetMetadata{},
		},
	}))
	return root
}

func TestUploaderRunHappyPath(t *testing.T) {
	var finalized, aborted atomic.Bool
	var uploadedEntities atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/persister/synchronization/jobs" && r.Method == http.MethodPost:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"jobId": "job-1"})
		case r.URL.Path == "/persister/synchronization/jobs/job-1/entities":
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if items, ok := body["entities"].([]any); ok {
				uploadedEntities.Add(int32(len(items)))
			}
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/persister/synchronization/jobs/job-1/relationships":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/persister/synchronization/jobs/job-1/finalize":
			finalized.Store(true)
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/persister/synchronization/jobs/job-1/abort":
			aborted.Store(true)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	root := newTestRoot(t)
	events := runlog.NewEventBus()
	logger := runlog.New(nil, events)
	sink := &fakeSink{}

	u := New(Options{
		Client: resty.New().SetBaseURL(server.URL),
		Root:   root,
		Logger: logger,
		Events: events,
		Sink:   sink,
	})

	logger.Emit("custom", map[string]string{"hello": "world"})

	jobID, err := u.Run(context.Background(), Source{Source: "api"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.True(t, finalized.Load())
	assert.False(t, aborted.Load())
	assert.Equal(t, int32(1), uploadedEntities.Load())
	assert.Contains(t, sink.events, "custom")
}

func TestUploaderRunAbortsOnUploadFailure(t *testing.T) {
	var aborted atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/persister/synchronization/jobs":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"jobId": "job-2"})
		case r.URL.Path == "/persister/synchronization/jobs/job-2/entities":
			var apiErr apiError
			apiErr.Error.Code = "JOB_NOT_AWAITING_UPLOADS"
			apiErr.Error.Message = "job already ended"
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(apiErr)
		case r.URL.Path == "/persister/synchronization/jobs/job-2/abort":
			aborted.Store(true)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	root := newTestRoot(t)
	u := New(Options{Client: resty.New().SetBaseURL(server.URL), Root: root, Logger: runlog.New(nil, nil)})

	_, err := u.Run(context.Background(), Source{Source: "api"})
	require.Error(t, err)
	assert.True(t, aborted.Load())
}
