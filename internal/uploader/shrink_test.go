package uploader

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
)

func TestShrinkBatchTruncatesLargestRawDataField(t *testing.T) {
	bigPayload := strings.Repeat("x", maxBatchBytes)

	entity := graphobject.Entity{
		"_key": "k1", "_type": "widget", "_class": []string{"Widget"},
		"_rawData": []any{
			map[string]any{
				"name": "raw1",
				"rawData": map[string]any{
					"payload": bigPayload,
					"small":   "keep-me",
				},
			},
		},
	}

	body := map[string]any{"entities": []graphobject.Entity{entity}}

	shrunk, err := shrinkBatch(body)
	require.NoError(t, err)

	out, err := json.Marshal(shrunk)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), maxBatchBytes)

	items := shrunk["entities"].([]graphobject.Entity)
	rawData := items[0]["_rawData"].([]any)
	entry := rawData[0].(map[string]any)
	payload := entry["rawData"].(map[string]any)
	assert.Equal(t, "TRUNCATED", payload["payload"])
	assert.Equal(t, "keep-me", payload["small"], "only the largest field is truncated")
}

func TestShrinkBatchNoOpWhenAlreadySmall(t *testing.T) {
	entity := graphobject.Entity{"_key": "k1", "_type": "widget", "_class": []string{"Widget"}}
	body := map[string]any{"entities": []graphobject.Entity{entity}}

	shrunk, err := shrinkBatch(body)
	require.NoError(t, err)

	items := shrunk["entities"].([]graphobject.Entity)
	assert.Equal(t, "k1", items[0].Key())
}

func TestShrinkBatchCannotShrinkWithoutRawData(t *testing.T) {
	bigField := strings.Repeat("x", maxBatchBytes)
	entity := graphobject.Entity{
		"_key": "k1", "_type": "widget", "_class": []string{"Widget"},
		"huge": bigField,
	}
	body := map[string]any{"entities": []graphobject.Entity{entity}}

	_, err := shrinkBatch(body)
	assert.Error(t, err)
}
