package wasm

import (
	"testing"
	"time"
)

func TestFunctionRateLimiterEnforcesPerKeyBudget(t *testing.T) {
	limiter := newFunctionRateLimiter(2, time.Minute)

	if !limiter.Allow("plugin-a", "http-request") {
		t.Fatal("expected first call to be allowed")
	}
	if !limiter.Allow("plugin-a", "http-request") {
		t.Fatal("expected second call to be allowed")
	}
	if limiter.Allow("plugin-a", "http-request") {
		t.Fatal("expected third call within the window to be denied")
	}
}

func TestFunctionRateLimiterKeysAreIndependent(t *testing.T) {
	limiter := newFunctionRateLimiter(1, time.Minute)

	if !limiter.Allow("plugin-a", "http-request") {
		t.Fatal("expected plugin-a/http-request to be allowed")
	}
	if !limiter.Allow("plugin-a", "read-file") {
		t.Fatal("expected plugin-a/read-file to be independently allowed")
	}
	if !limiter.Allow("plugin-b", "http-request") {
		t.Fatal("expected plugin-b/http-request to be independently allowed")
	}
	if limiter.Allow("plugin-a", "http-request") {
		t.Fatal("expected plugin-a/http-request to be exhausted")
	}
}
