package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/iris/internal/vision"
)

// Handler holds API route handlers.
type Handler struct {
	svc *vision.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *vision.Service) *Handler {
	return &Handler{svc: svc}
}

// notePath extracts the note path from the URL (everything after /api/images/).
// Supports encoded slashes from OpenAPI clients (e.g. travel%2Flisbon.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// cacheKey extracts the {key} path parameter.
func cacheKey(r *http.Request) string {
	key := chi.URLParam(r, "key")
	if decoded, err := url.PathUnescape(key); err == nil {
		return decoded
	}
	return key
}

// ListImages handles GET /api/images/*.
//
//	@Summary		List the images embedded in a note
//	@Tags			images
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	ImageListResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images/{path} [get]
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	images, err := h.svc.Images(r.Context(), path)
	if err != nil {
		writeError(w, "list images", err)
		return
	}
	writeJSON(w, http.StatusOK, ImageListResponse{Note: path, Images: images})
}

// GetContext handles GET /api/context.
//
//	@Summary		Build the note context of an embedded image
//	@Tags			images
//	@Produce		json
//	@Param			note	query		string	true	"Note path"
//	@Param			image	query		string	true	"Image reference as written in the note"
//	@Success		200		{object}	ContextResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/context [get]
func (h *Handler) GetContext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	note, image := q.Get("note"), q.Get("image")
	if note == "" || image == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("note and image are required"))
		return
	}
	res, err := h.svc.BuildContext(r.Context(), note, image)
	if err != nil {
		writeError(w, "build context", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Usages handles GET /api/usages.
//
//	@Summary		List the notes that embed an image
//	@Tags			images
//	@Produce		json
//	@Param			image	query		string	true	"Image reference as written in notes"
//	@Success		200		{object}	UsagesResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/usages [get]
func (h *Handler) Usages(w http.ResponseWriter, r *http.Request) {
	image := r.URL.Query().Get("image")
	if image == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("image is required"))
		return
	}
	notes, err := h.svc.Usages(r.Context(), image)
	if err != nil {
		writeError(w, "usages", err)
		return
	}
	writeJSON(w, http.StatusOK, UsagesResponse{Image: image, Notes: notes})
}

// Lookup handles POST /api/lookup.
//
//	@Summary		Return a cached analysis without calling the analyzer
//	@Tags			analysis
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AnalyzeRequest	true	"Image and action"
//	@Success		200		{object}	Outcome
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lookup [post]
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.Lookup(r.Context(), req)
	if err != nil {
		writeError(w, "lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Analyze handles POST /api/analyze.
//
//	@Summary		Analyze an image, serving from the cache when possible
//	@Tags			analysis
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AnalyzeRequest	true	"Image and action"
//	@Success		200		{object}	Outcome
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/analyze [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.Analyze(r.Context(), req)
	if err != nil {
		writeError(w, "analyze", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ListCache handles GET /api/cache.
//
//	@Summary		List cache entries, least recently used first
//	@Tags			cache
//	@Produce		json
//	@Success		200		{object}	CacheListResponse
//	@Security		BearerAuth
//	@Router			/cache [get]
func (h *Handler) ListCache(w http.ResponseWriter, r *http.Request) {
	entries := h.svc.Entries(r.Context())
	writeJSON(w, http.StatusOK, CacheListResponse{Entries: entries, Total: len(entries)})
}

// ClearCache handles DELETE /api/cache.
//
//	@Summary		Remove every cache entry
//	@Tags			cache
//	@Success		204
//	@Security		BearerAuth
//	@Router			/cache [delete]
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.svc.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// CacheStats handles GET /api/cache/stats.
//
//	@Summary		Cache counters
//	@Tags			cache
//	@Produce		json
//	@Success		200		{object}	CacheStats
//	@Security		BearerAuth
//	@Router			/cache/stats [get]
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stats(r.Context()))
}

// GetCacheEntry handles GET /api/cache/{key}.
//
//	@Summary		Get a live cache entry
//	@Tags			cache
//	@Produce		json
//	@Param			key		path		string	true	"Cache key"
//	@Success		200		{object}	CacheEntry
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cache/{key} [get]
func (h *Handler) GetCacheEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.Cached(r.Context(), cacheKey(r))
	if err != nil {
		writeError(w, "get cache entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// PutCacheEntry handles PUT /api/cache/{key}.
//
//	@Summary		Store an analysis result under a key
//	@Tags			cache
//	@Accept			json
//	@Param			key		path		string			true	"Cache key"
//	@Param			body	body		PutCacheRequest	true	"Analysis result"
//	@Success		204
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cache/{key} [put]
func (h *Handler) PutCacheEntry(w http.ResponseWriter, r *http.Request) {
	var body PutCacheRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.svc.Store(r.Context(), cacheKey(r), body); err != nil {
		writeError(w, "put cache entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteCacheEntry handles DELETE /api/cache/{key}.
//
//	@Summary		Invalidate a cache entry
//	@Tags			cache
//	@Param			key		path		string	true	"Cache key"
//	@Success		204
//	@Security		BearerAuth
//	@Router			/cache/{key} [delete]
func (h *Handler) DeleteCacheEntry(w http.ResponseWriter, r *http.Request) {
	h.svc.Invalidate(r.Context(), cacheKey(r))
	w.WriteHeader(http.StatusNoContent)
}
