// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chunk

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileName returns the file name for the chunk at 1-based index i.
func FileName(i int) string {
	return fmt.Sprintf("schema_chunk_%d.json", i)
}

// WriteFiles writes each chunk to dir as schema_chunk_<i>.json, numbered
// from 1 in batch order, and returns the paths written.
func WriteFiles(dir string, chunks []Chunk, pretty bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating chunk directory: %w", err)
	}

	paths := make([]string, 0, len(chunks))
	for i, c := range chunks {
		data, err := c.Marshal(pretty)
		if err != nil {
			return paths, fmt.Errorf("encoding chunk %d: %w", i+1, err)
		}
		path := filepath.Join(dir, FileName(i+1))
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return paths, fmt.Errorf("writing chunk %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
