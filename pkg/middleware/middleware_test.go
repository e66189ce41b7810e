package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"huddle/pkg/logger"
)

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(body))
	})
}

func TestIdempotency_ReplaysSuccessfulResponse(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	handler := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"n":` + string(rune('0'+n)) + `}`))
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{}`))
		req.Header.Set(IdempotencyHeader, "key-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
		if rec.Body.String() != `{"n":1}` {
			t.Errorf("request %d: body = %s, want first response", i, rec.Body.String())
		}
	}

	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestIdempotency_ScopesByPathAndSkipsFailures(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	handler := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	send := func(path string) {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(IdempotencyHeader, "same")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	send("/a")
	send("/b")
	send("/fail")
	send("/fail")

	if calls != 4 {
		t.Errorf("handler called %d times, want 4", calls)
	}
}

func TestIdempotency_IgnoresReads(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	handler := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil)
		req.Header.Set(IdempotencyHeader, "k")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Errorf("GET must not be cached, calls = %d", calls)
	}
}

func TestInMemoryIdempotencyStore_Expires(t *testing.T) {
	store := NewInMemoryIdempotencyStore(10 * time.Millisecond)
	defer store.Stop()

	ctx := context.Background()
	store.Set(ctx, "k", &CachedResponse{StatusCode: http.StatusOK})
	if _, ok := store.Get(ctx, "k"); !ok {
		t.Fatal("expected cached entry")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := store.Get(ctx, "k"); ok {
		t.Errorf("expected entry to expire")
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute, nil, logger.Discard())
	defer limiter.Stop()

	handler := RateLimit(limiter)(okHandler(`{}`))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("10.0.0.1:1234"); code != http.StatusCreated {
		t.Fatalf("first request status = %d", code)
	}
	if code := send("10.0.0.1:1235"); code != http.StatusCreated {
		t.Fatalf("second request status = %d", code)
	}
	if code := send("10.0.0.1:1236"); code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", code)
	}
	if code := send("10.0.0.2:1234"); code != http.StatusCreated {
		t.Errorf("other client status = %d, want allowed", code)
	}
}

func TestClientIPExtractor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5000"
	if got := ClientIPExtractor(req); got != "192.0.2.10" {
		t.Errorf("got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	if got := ClientIPExtractor(req); got != "203.0.113.5" {
		t.Errorf("got %q, want first forwarded hop", got)
	}
}

func TestRequestLogging_PropagatesRequestID(t *testing.T) {
	var seen string
	handler := RequestLogging(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "abc-123" {
		t.Errorf("context request id = %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != "abc-123" {
		t.Errorf("response header = %q", rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "abc-123" {
		t.Errorf("expected a generated id, got %q", seen)
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestContentTypeValidation(t *testing.T) {
	handler := ContentTypeValidation(logger.Discard())(okHandler(`{}`))

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{"json post", http.MethodPost, `{}`, "application/json; charset=utf-8", http.StatusCreated},
		{"text post", http.MethodPost, `x`, "text/plain", http.StatusUnsupportedMediaType},
		{"bodyless post", http.MethodPost, "", "", http.StatusCreated},
		{"get without header", http.MethodGet, "", "", http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body == "" {
				req = httptest.NewRequest(tt.method, "/", nil)
			} else {
				req = httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	handler := MaxRequestSize(8)(okHandler(`{}`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"too long"}`)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	if rec.Code != http.StatusCreated {
		t.Errorf("small body status = %d", rec.Code)
	}
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	handler := RequestTimeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}

func TestRedisIdempotencyKey(t *testing.T) {
	if got := redisIdempotencyKey("POST /api/v1/bookings k"); got != "huddle:idempotency:POST /api/v1/bookings k" {
		t.Errorf("got %q", got)
	}
}
