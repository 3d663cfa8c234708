package api

import (
	"github.com/starford/iris/internal/models"
	"github.com/starford/iris/internal/resultcache"
	"github.com/starford/iris/internal/vision"
)

// AnalyzeRequest is the request body for /lookup and /analyze.
type AnalyzeRequest = vision.Request

// Outcome is the response of /lookup and /analyze (aliased from the domain layer).
type Outcome = vision.Outcome

// ContextResponse is the response of /context (aliased from the domain layer).
type ContextResponse = vision.ContextResult

// CacheEntry is a cache entry with its key (aliased from the domain layer).
type CacheEntry = vision.CachedEntry

// CacheStats is the response of /cache/stats.
type CacheStats = resultcache.Stats

// PutCacheRequest is the request body for PUT /cache/{key}.
type PutCacheRequest = models.AnalysisResult

// ImageListResponse wraps the images of a note.
type ImageListResponse struct {
	Note   string             `json:"note" example:"travel/lisbon.md" validate:"required"`
	Images []vision.NoteImage `json:"images" validate:"required"`
}

// CacheListResponse wraps cache entries, least recently used first.
type CacheListResponse struct {
	Entries []CacheEntry `json:"entries" validate:"required"`
	Total   int          `json:"total" example:"42" validate:"required"`
}

// UsagesResponse lists the notes embedding an image.
type UsagesResponse struct {
	Image string   `json:"image" example:"tram.png" validate:"required"`
	Notes []string `json:"notes" validate:"required"`
}
