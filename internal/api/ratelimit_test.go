package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medkitlab/sage/internal/log"
)

func TestRateLimiter_BurstExhaustion(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(0.0001, 3)

	for i := range 3 {
		if !rl.allow("192.0.2.1") {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if rl.allow("192.0.2.1") {
		t.Error("request beyond burst allowed")
	}
}

func TestRateLimiter_PerIPIsolation(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(0.0001, 1)

	if !rl.allow("192.0.2.1") {
		t.Fatal("first IP denied")
	}
	if rl.allow("192.0.2.1") {
		t.Error("first IP should be exhausted")
	}
	if !rl.allow("192.0.2.2") {
		t.Error("second IP should have its own bucket")
	}
}

func TestRateLimitMiddleware_Returns429(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(0.0001, 1)
	handler := rateLimitMiddleware(rl, false, log.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.5:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want %d", w.Code, http.StatusOK)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.0.2.1:5555",
			want:       "192.0.2.1",
		},
		{
			name:       "proxy headers ignored without trust",
			remoteAddr: "192.0.2.1:5555",
			realIP:     "203.0.113.9",
			want:       "192.0.2.1",
		},
		{
			name:       "x-real-ip preferred with trust",
			remoteAddr: "192.0.2.1:5555",
			realIP:     "203.0.113.9",
			forwarded:  "198.51.100.2",
			trustProxy: true,
			want:       "203.0.113.9",
		},
		{
			name:       "x-forwarded-for first entry",
			remoteAddr: "192.0.2.1:5555",
			forwarded:  "198.51.100.2, 203.0.113.9",
			trustProxy: true,
			want:       "198.51.100.2",
		},
		{
			name:       "invalid header falls back to remote addr",
			remoteAddr: "192.0.2.1:5555",
			realIP:     "not-an-ip",
			trustProxy: true,
			want:       "192.0.2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
