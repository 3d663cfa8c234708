package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/iris/internal/vision"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *vision.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Images and context.
	r.Get("/images/*", h.ListImages)
	r.Get("/context", h.GetContext)
	r.Get("/usages", h.Usages)

	// Analysis.
	r.Post("/lookup", h.Lookup)
	r.Post("/analyze", h.Analyze)

	// Cache administration.
	r.Get("/cache", h.ListCache)
	r.Delete("/cache", h.ClearCache)
	r.Get("/cache/stats", h.CacheStats)
	r.Get("/cache/{key}", h.GetCacheEntry)
	r.Put("/cache/{key}", h.PutCacheEntry)
	r.Delete("/cache/{key}", h.DeleteCacheEntry)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
