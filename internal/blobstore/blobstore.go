// Package blobstore implements resultcache.BlobStore over a local JSON file,
// a SQLite table, or an S3 object.
package blobstore

import (
	"encoding/json"
	"fmt"

	"github.com/starford/iris/internal/models"
)

const documentVersion = 1

// document is the JSON layout shared by the file and S3 stores.
type document struct {
	Version int                          `json:"version"`
	Entries map[string]models.CacheEntry `json:"entries"`
}

func encode(entries map[string]models.CacheEntry) ([]byte, error) {
	if entries == nil {
		entries = map[string]models.CacheEntry{}
	}
	data, err := json.MarshalIndent(document{Version: documentVersion, Entries: entries}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("blobstore: encode: %w", err)
	}
	return data, nil
}

func decode(data []byte) (map[string]models.CacheEntry, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("blobstore: decode: %w", err)
	}
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("blobstore: unsupported document version %d", doc.Version)
	}
	return doc.Entries, nil
}
