package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(GetRequestID(r)))
})

func TestRateLimiterOnlyLimitsMutations(t *testing.T) {
	h := NewRateLimiter(1, 2).Middleware()(okHandler)

	send := func(method, addr string) int {
		req := httptest.NewRequest(method, "/checkout/p1", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 5; i++ {
		if code := send(http.MethodGet, "10.0.0.1:1000"); code != http.StatusOK {
			t.Fatalf("GET %d = %d", i, code)
		}
	}
	if send(http.MethodPost, "10.0.0.1:1000") != http.StatusOK || send(http.MethodPost, "10.0.0.1:1001") != http.StatusOK {
		t.Fatal("burst should be allowed")
	}
	if code := send(http.MethodPost, "10.0.0.1:1002"); code != http.StatusTooManyRequests {
		t.Errorf("third POST = %d, want 429", code)
	}
	if code := send(http.MethodPost, "10.0.0.2:1000"); code != http.StatusOK {
		t.Errorf("other client = %d, want 200", code)
	}
}

func TestRequestLoggingPropagatesID(t *testing.T) {
	h := RequestLogging(zerolog.Nop())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Body.String() != "req-42" || rec.Header().Get("X-Request-ID") != "req-42" {
		t.Errorf("id = %q header %q", rec.Body.String(), rec.Header().Get("X-Request-ID"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Body.String() == "" || rec.Body.String() != rec.Header().Get("X-Request-ID") {
		t.Errorf("generated id = %q header %q", rec.Body.String(), rec.Header().Get("X-Request-ID"))
	}
}

func TestErrorHandlingRecovers(t *testing.T) {
	h := ErrorHandling(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
