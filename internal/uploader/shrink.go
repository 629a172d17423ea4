package uploader

import (
	"encoding/json"
	"fmt"

	"github.com/j1-labs/j1-integration-runtime/internal/graphobject"
	"github.com/j1-labs/j1-integration-runtime/internal/ierr"
)

var errCannotShrinkSentinel = ierr.ErrCannotShrink

// truncatedSize is Buffer.byteLength("'TRUNCATED'") from the original
// implementation — it counts the quoted literal including its surrounding
// single quotes, one byte larger than the double-quoted JSON string the
// replacement actually writes. spec.md §9 calls this out as a known
// size-accounting quirk and says an implementer may re-serialize for
// correctness instead of trusting the running estimate; shrinkItems does
// exactly that, re-measuring the whole batch after every replacement.
const truncatedSize = len("'TRUNCATED'")

const maxBatchBytes = 6275072

// shrinkBatch mutates body's single items slice in place until its
// serialized size is at or under maxBatchBytes, per spec.md §4.6 "Raw-data
// shrinking." It returns the same map (mutated) for convenience at call
// sites that reassign it.
func shrinkBatch(body map[string]any) (map[string]any, error) {
	for key, value := range body {
		switch items := value.(type) {
		case []graphobject.Entity:
			maps := make([]map[string]any, len(items))
			for i, e := range items {
				maps[i] = map[string]any(e)
			}
			if err := shrinkItems(maps); err != nil {
				return nil, err
			}
		case []graphobject.Relationship:
			maps := make([]map[string]any, len(items))
			for i, r := range items {
				maps[i] = map[string]any(r)
			}
			if err := shrinkItems(maps); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("uploader: shrinkBatch: unsupported item type for key %q", key)
		}
	}
	return body, nil
}

// shrinkItems implements the three-level largest-first search: largest
// item, then its largest _rawData entry, then that entry's largest rawData
// field, replaced with the literal "TRUNCATED". Items share their
// underlying map with the caller's typed slice, so mutations here are
// visible through it.
func shrinkItems(items []map[string]any) error {
	for {
		size, err := serializedSize(items)
		if err != nil {
			return fmt.Errorf("uploader: measuring batch size: %w", err)
		}
		if size <= maxBatchBytes {
			return nil
		}

		item := largestBySerializedSize(items)
		if item == nil {
			return fmt.Errorf("uploader: %w: no items left to shrink", errCannotShrinkSentinel)
		}

		rawData, ok := item["_rawData"].([]any)
		if !ok || len(rawData) == 0 {
			return fmt.Errorf("uploader: %w: largest item has no _rawData to shrink", errCannotShrinkSentinel)
		}

		entry := largestBySerializedSize(toMapSlice(rawData))
		if entry == nil {
			return fmt.Errorf("uploader: %w: no _rawData entries to shrink", errCannotShrinkSentinel)
		}

		payload, ok := entry["rawData"].(map[string]any)
		if !ok || len(payload) == 0 {
			return fmt.Errorf("uploader: %w: _rawData entry has no rawData fields to shrink", errCannotShrinkSentinel)
		}

		field := largestFieldBySerializedSize(payload)
		if field == "" {
			return fmt.Errorf("uploader: %w: rawData has no fields to shrink", errCannotShrinkSentinel)
		}

		before := size
		payload[field] = "TRUNCATED"

		after, err := serializedSize(items)
		if err != nil {
			return fmt.Errorf("uploader: measuring batch size after truncation: %w", err)
		}
		if after >= before {
			return fmt.Errorf("uploader: %w: truncating %q did not reduce serialized size", errCannotShrinkSentinel, field)
		}
	}
}

func serializedSize(v any) (int, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

func largestBySerializedSize(items []map[string]any) map[string]any {
	var largest map[string]any
	largestSize := -1
	for _, item := range items {
		size, err := serializedSize(item)
		if err != nil {
			continue
		}
		if size > largestSize {
			largestSize = size
			largest = item
		}
	}
	return largest
}

func largestFieldBySerializedSize(obj map[string]any) string {
	largestName := ""
	largestSize := -1
	for name, value := range obj {
		size, err := serializedSize(value)
		if err != nil {
			continue
		}
		if size > largestSize {
			largestSize = size
			largestName = name
		}
	}
	return largestName
}

func toMapSlice(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
