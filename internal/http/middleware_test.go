package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestClientIP verifies identity resolution prefers the first forwarded hop
// and falls back to the remote address host.
func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr only", "10.0.0.5:41234", "", "10.0.0.5"},
		{"forwarded single hop", "10.0.0.5:41234", "203.0.113.7", "203.0.113.7"},
		{"forwarded chain takes first", "10.0.0.5:41234", "203.0.113.7, 10.0.0.1", "203.0.113.7"},
		{"forwarded with spaces", "10.0.0.5:41234", "  203.0.113.7  ", "203.0.113.7"},
		{"unparseable remote addr", "not-an-addr", "", "not-an-addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/weather", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestGetRoute verifies the metrics route label collapses unknown paths.
func TestGetRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/weather", "/weather"},
		{"/forecast", "/forecast"},
		{"/airquality", "/airquality"},
		{"/health", "/health"},
		{"/api/ping", "/ping"},
		{"/some/random/path", "other"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.path, nil)
		if got := getRoute(r); got != tt.want {
			t.Errorf("getRoute(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// TestCorrelationIDMiddleware verifies a correlation ID is assigned and the
// caller-supplied one is propagated unchanged.
func TestCorrelationIDMiddleware(t *testing.T) {
	fetcher := &stubFetcher{body: []byte(currentPayload)}
	router := newTestRouter(t, fetcher, 60)

	w := doRequest(router, "GET", "/health", "", "")
	if got := w.Header().Get("X-Correlation-ID"); got == "" {
		t.Error("X-Correlation-ID not set on response")
	}

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Correlation-ID", "caller-supplied-id")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "caller-supplied-id" {
		t.Errorf("X-Correlation-ID = %q, want caller-supplied-id", got)
	}
}

// TestStatusRecorder verifies the recorder captures explicit status writes and
// defaults to 200 when the handler never calls WriteHeader.
func TestStatusRecorder(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	rec.WriteHeader(http.StatusTeapot)
	if rec.statusCode != http.StatusTeapot {
		t.Errorf("statusCode = %d, want 418", rec.statusCode)
	}

	implicit := &statusRecorder{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	_, _ = implicit.Write([]byte("ok"))
	if implicit.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200", implicit.statusCode)
	}
}

// TestStatusCodeString verifies status codes collapse to their class label.
func TestStatusCodeString(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{404, "4xx"},
		{429, "4xx"},
		{500, "5xx"},
	}
	for _, tt := range tests {
		if got := statusCodeString(tt.code); got != tt.want {
			t.Errorf("statusCodeString(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

// TestRateLimitMiddleware_ExemptPaths verifies health, metrics, and ping are
// never rate limited.
func TestRateLimitMiddleware_ExemptPaths(t *testing.T) {
	fetcher := &stubFetcher{}
	router := newTestRouter(t, fetcher, 1)

	for i := 0; i < 5; i++ {
		if w := doRequest(router, "GET", "/health", "", ""); w.Code != http.StatusOK {
			t.Fatalf("/health request %d status = %d, want 200", i+1, w.Code)
		}
	}
	for i := 0; i < 5; i++ {
		if w := doRequest(router, "GET", "/ping", "", ""); w.Code != http.StatusOK {
			t.Fatalf("/ping request %d status = %d, want 200", i+1, w.Code)
		}
	}
}

// TestRateLimitMiddleware_PerIdentity verifies limit windows are tracked per
// caller identity rather than globally.
func TestRateLimitMiddleware_PerIdentity(t *testing.T) {
	fetcher := &stubFetcher{body: []byte(currentPayload)}
	router := newTestRouter(t, fetcher, 1)

	send := func(ip string) int {
		req := httptest.NewRequest("GET", "/weather?city=Seattle", nil)
		req.Header.Set("x-api-key", testSecret)
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("203.0.113.1"); code != http.StatusOK {
		t.Fatalf("first caller status = %d, want 200", code)
	}
	if code := send("203.0.113.1"); code != http.StatusTooManyRequests {
		t.Fatalf("first caller second request status = %d, want 429", code)
	}
	if code := send("203.0.113.2"); code != http.StatusOK {
		t.Fatalf("second caller status = %d, want 200", code)
	}
}
