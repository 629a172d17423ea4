package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/andybalholm/brotli"
)

// ReadFlushedFile reads path and parses its content as a FlushedFile,
// transparently decompressing if the content is Brotli-encoded. JSON
// objects always begin with '{' (0x7B); a Brotli stream's first byte is
// never that value in practice, so the leading byte is a cheap and
// reliable enough discriminator without needing a side-channel flag per
// file.
func ReadFlushedFile(path string) (FlushedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FlushedFile{}, fmt.Errorf("persistence: reading %s: %w", path, err)
	}
	return decodeFlushedFile(raw)
}

func decodeFlushedFile(raw []byte) (FlushedFile, error) {
	var ff FlushedFile

	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &ff); err != nil {
			return FlushedFile{}, fmt.Errorf("persistence: decoding flushed file: %w", err)
		}
		return ff, nil
	}

	decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return FlushedFile{}, fmt.Errorf("persistence: brotli-decoding flushed file: %w", err)
	}
	if err := json.Unmarshal(decompressed, &ff); err != nil {
		return FlushedFile{}, fmt.Errorf("persistence: decoding decompressed flushed file: %w", err)
	}
	return ff, nil
}
