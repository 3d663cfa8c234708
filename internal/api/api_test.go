package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/starford/iris/internal/models"
	"github.com/starford/iris/internal/testutil"
)

// testEnv sets up a temp vault, index, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*testutil.Env, *testutil.EchoAnalyzer, http.Handler) {
	t.Helper()
	analyzer := &testutil.EchoAnalyzer{}
	env := testutil.NewEnv(t, analyzer, nil)
	router := NewRouter(env.Service, authToken != "", authToken, nil)
	return env, analyzer, router
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

var tramRequest = map[string]any{"note": "travel/lisbon.md", "image": "tram.png", "action": "describe"}

func TestListImages(t *testing.T) {
	_, _, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/images/travel/lisbon.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[ImageListResponse](t, w)
	if len(resp.Images) != 1 || resp.Images[0].Path != "attachments/tram.png" {
		t.Errorf("images = %+v", resp.Images)
	}

	w = do(t, router, http.MethodGet, "/images/travel%2Flisbon.md", nil)
	if w.Code != http.StatusOK {
		t.Errorf("encoded path status = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/images/nope.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestGetContext(t *testing.T) {
	_, _, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/context?note=travel/lisbon.md&image=tram.png", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[ContextResponse](t, w)
	if resp.Context.SectionTitle != "Day one" {
		t.Errorf("section title = %q", resp.Context.SectionTitle)
	}
	if len(resp.Context.RelatedLinks) != 1 || resp.Context.RelatedLinks[0].Path != "travel/Belem.md" {
		t.Errorf("related links = %+v", resp.Context.RelatedLinks)
	}
	if resp.Context.RelatedLinks[0].Excerpt != "Belem tower" {
		t.Errorf("excerpt = %q", resp.Context.RelatedLinks[0].Excerpt)
	}
	if len(resp.Context.Tags) != 2 {
		t.Errorf("tags = %v, want trams and travel", resp.Context.Tags)
	}
	if resp.Keys[models.ActionOCR] == "" || resp.Keys[models.ActionDescribe] == resp.Keys[models.ActionOCR] {
		t.Errorf("keys = %v", resp.Keys)
	}

	w = do(t, router, http.MethodGet, "/context?note=travel/lisbon.md", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing image = %d, want 400", w.Code)
	}
}

func TestAnalyzeThenLookup(t *testing.T) {
	_, analyzer, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/lookup", tramRequest)
	if w.Code != http.StatusNotFound {
		t.Fatalf("lookup before analyze = %d, want 404", w.Code)
	}

	w = do(t, router, http.MethodPost, "/analyze", tramRequest)
	if w.Code != http.StatusOK {
		t.Fatalf("analyze status = %d, body = %s", w.Code, w.Body.String())
	}
	first := decode[Outcome](t, w)
	if first.Cached || first.Result.Content != "describe: tram.png" {
		t.Errorf("first outcome = %+v", first)
	}

	w = do(t, router, http.MethodPost, "/analyze", tramRequest)
	second := decode[Outcome](t, w)
	if !second.Cached || second.Key != first.Key {
		t.Errorf("second outcome = %+v", second)
	}
	if n := analyzer.Calls.Load(); n != 1 {
		t.Errorf("analyzer calls = %d, want 1", n)
	}

	w = do(t, router, http.MethodPost, "/lookup", tramRequest)
	if w.Code != http.StatusOK {
		t.Errorf("lookup after analyze = %d", w.Code)
	}
}

func TestAnalyze_BadRequests(t *testing.T) {
	_, _, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/analyze", map[string]any{"note": "travel/lisbon.md", "image": "tram.png", "action": "custom"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("custom without instruction = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/analyze", map[string]any{"note": "ghost.md", "image": "tram.png", "action": "ocr"})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
}

func TestAnalyze_NoAnalyzer(t *testing.T) {
	env := testutil.NewEnv(t, nil, nil)
	router := NewRouter(env.Service, false, "", nil)

	w := do(t, router, http.MethodPost, "/analyze", tramRequest)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("no analyzer = %d, want 503", w.Code)
	}
}

func TestCacheEndpoints(t *testing.T) {
	_, _, router := testEnv(t, "")

	w := do(t, router, http.MethodPut, "/cache/42-alttext", models.AnalysisResult{Content: "A tram.", ModelUsed: "manual"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("put = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/cache/42-alttext", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	entry := decode[CacheEntry](t, w)
	if entry.Result.Content != "A tram." || entry.Action != models.ActionAltText || entry.ImageHash != "42" {
		t.Errorf("entry = %+v", entry)
	}

	_ = do(t, router, http.MethodPost, "/analyze", tramRequest)
	w = do(t, router, http.MethodGet, "/cache", nil)
	list := decode[CacheListResponse](t, w)
	if list.Total != 2 || list.Entries[0].Key != "42-alttext" {
		t.Errorf("list = %+v", list)
	}

	w = do(t, router, http.MethodGet, "/cache/stats", nil)
	stats := decode[CacheStats](t, w)
	if stats.Valid != 2 || stats.Total != 2 {
		t.Errorf("stats = %+v", stats)
	}

	w = do(t, router, http.MethodDelete, "/cache/42-alttext", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/cache/42-alttext", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}

	w = do(t, router, http.MethodDelete, "/cache", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("clear = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/cache/stats", nil)
	if stats := decode[CacheStats](t, w); stats.Total != 0 {
		t.Errorf("stats after clear = %+v", stats)
	}

	w = do(t, router, http.MethodPut, "/cache/empty", models.AnalysisResult{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("put empty content = %d, want 400", w.Code)
	}
}

func TestUsages(t *testing.T) {
	_, _, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/usages?image="+url.QueryEscape("tram.png"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[UsagesResponse](t, w)
	if len(resp.Notes) != 1 || resp.Notes[0] != "travel/lisbon.md" {
		t.Errorf("notes = %v", resp.Notes)
	}

	w = do(t, router, http.MethodGet, "/usages", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing image = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, _, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/cache/stats", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed stats = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, _, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/cache", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, _, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/cache", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, _, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/cache", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// testEnvWithSSE creates a router with a dummy SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	env := testutil.NewEnv(t, nil, nil)

	// Minimal SSE handler stub: writes headers and blocks until context done.
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	return NewRouter(env.Service, authEnabled, token, sseHandler)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	router := testEnvWithSSE(t, false, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
