package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type fakeLimiterStore struct {
	counts map[string]int64
	err    error
}

func (f *fakeLimiterStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[key]++
	return f.counts[key], nil
}

func driverActionRequest(driverID string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/drivers/"+driverID+"/accept/abc", nil)
	r.RemoteAddr = "203.0.113.9:4411"
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("driverId", driverID)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestActionRateLimitBlocksDriverOverLimit(t *testing.T) {
	store := &fakeLimiterStore{}
	policy := NewActionRateLimitPolicy("action", time.Minute, 0, 2)

	var passed int
	handler := ActionRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		passed++
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, driverActionRequest("11111111-1111-1111-1111-111111111111"))
		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i, rec.Code)
		}
		if i == 2 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d should be limited, got %d", i, rec.Code)
		}
	}
	if passed != 2 {
		t.Fatalf("expected 2 passes, got %d", passed)
	}
}

func TestActionRateLimitBlocksIPOverLimit(t *testing.T) {
	store := &fakeLimiterStore{}
	policy := NewActionRateLimitPolicy("action", time.Minute, 1, 0)

	handler := ActionRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, driverActionRequest("22222222-2222-2222-2222-222222222222"))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, driverActionRequest("33333333-3333-3333-3333-333333333333"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("same IP should be limited regardless of driver, got %d", rec.Code)
	}
}

func TestActionRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := ActionRateLimit(NewActionRateLimitPolicy("action", 0, 0, 0), &fakeLimiterStore{}, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, driverActionRequest("44444444-4444-4444-4444-444444444444"))
	if rec.Code != http.StatusOK {
		t.Fatalf("disabled policy should pass through, got %d", rec.Code)
	}
}
