package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRouteLabel_StripsMethod(t *testing.T) {
	if got := routeLabel("GET /v1/memories/{memory_id}/history"); got != "/v1/memories/{memory_id}/history" {
		t.Fatalf("routeLabel = %q, want %q", got, "/v1/memories/{memory_id}/history")
	}
}

func TestRouteLabel_EmptyFallback(t *testing.T) {
	if got := routeLabel("  "); got != "unmatched" {
		t.Fatalf("routeLabel = %q, want %q", got, "unmatched")
	}
}

func TestRouteLabel_CapsLength(t *testing.T) {
	got := routeLabel("/" + strings.Repeat("a", maxRouteLabelLen+10))
	if len(got) != maxRouteLabelLen {
		t.Fatalf("routeLabel len=%d, want %d", len(got), maxRouteLabelLen)
	}
}

func TestMiddleware_PassesStatusThrough(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /v1/memories/{memory_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	Middleware(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/memories/abc", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}
