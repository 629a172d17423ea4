package persistence

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
)

func TestWriterFlushEntitiesRoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, ResetRoot(root))

	w := NewWriter(root, false)
	entities := []graphobject.Entity{
		{"_key": "k1", "_type": "widget", "_class": []string{"Widget"}},
	}
	path, err := w.FlushEntities("step-a", entities)
	require.NoError(t, err)

	ff, err := ReadFlushedFile(path)
	require.NoError(t, err)
	require.Len(t, ff.Entities, 1)
	assert.Equal(t, "k1", ff.Entities[0].Key())
	assert.Empty(t, ff.Relationships)
}

func TestWriterFlushEntitiesCompressed(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, ResetRoot(root))

	w := NewWriter(root, true)
	entities := []graphobject.Entity{
		{"_key": "k1", "_type": "widget", "_class": []string{"Widget"}},
	}
	path, err := w.FlushEntities("step-a", entities)
	require.NoError(t, err)

	ff, err := ReadFlushedFile(path)
	require.NoError(t, err)
	require.Len(t, ff.Entities, 1)
	assert.Equal(t, "k1", ff.Entities[0].Key())
}

func TestIndexIsHardLinkedOrCopiedPerType(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, ResetRoot(root))

	w := NewWriter(root, false)
	entities := []graphobject.Entity{
		{"_key": "k1", "_type": "widget", "_class": []string{"Widget"}},
		{"_key": "k2", "_type": "gadget", "_class": []string{"Gadget"}},
	}
	_, err := w.FlushEntities("step-a", entities)
	require.NoError(t, err)

	assert.True(t, HasFlushedType(root, KindEntities, "widget"))
	assert.True(t, HasFlushedType(root, KindEntities, "gadget"))
	assert.False(t, HasFlushedType(root, KindEntities, "nonexistent"))

	found, ok, err := FindEntityOnDisk(root, "widget", "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "widget", found.Type())
}

func TestSummaryRoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, ResetRoot(root))

	summary := Summary{
		IntegrationStepResults: []graphobject.StepResult{
			{ID: "step-a", Status: graphobject.StatusSuccess},
		},
		Metadata: SummaryMetadata{
			PartialDatasets: graphobject.PartialDatasetMetadata{Types: []string{"widget"}},
		},
	}
	require.NoError(t, WriteSummary(root, summary))

	read, err := ReadSummary(root)
	require.NoError(t, err)
	if diff := cmp.Diff(summary, read); diff != "" {
		t.Errorf("summary round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDiskUsageCountsWrittenBytes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, ResetRoot(root))

	w := NewWriter(root, false)
	_, err := w.FlushEntities("step-a", []graphobject.Entity{
		{"_key": "k1", "_type": "widget", "_class": []string{"Widget"}},
	})
	require.NoError(t, err)

	usage, err := DiskUsage(root)
	require.NoError(t, err)
	assert.Positive(t, usage)
}

func TestResetRootClearsPriorContent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, ResetRoot(root))

	w := NewWriter(root, false)
	_, err := w.FlushEntities("step-a", []graphobject.Entity{
		{"_key": "k1", "_type": "widget", "_class": []string{"Widget"}},
	})
	require.NoError(t, err)

	require.NoError(t, ResetRoot(root))
	usage, err := DiskUsage(root)
	require.NoError(t, err)
	assert.Zero(t, usage)
}
