package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequireAPIKey(t *testing.T) {
	store, _, owner := testAPIKeyStore(t)
	rawKey, _, err := store.Create(owner.ID, "tablet")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	var seen *User
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAPIKey(store, inner)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/api/visits", "", http.StatusUnauthorized},
		{"not bearer", "/api/visits", "Basic abc", http.StatusUnauthorized},
		{"invalid key", "/api/visits", "Bearer vg_nope", http.StatusUnauthorized},
		{"valid key", "/api/visits", "Bearer " + rawKey, http.StatusOK},
		{"health is public", "/health", "", http.StatusOK},
		{"metrics is public", "/metrics", "", http.StatusOK},
		{"photo reads are public", "/storage/visits/r1/photos/1_ab.jpg", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	if seen == nil || seen.ID != owner.ID {
		t.Errorf("context user = %+v, want %s", seen, owner.ID)
	}
}

func TestRequireAPIKeyRateLimit(t *testing.T) {
	store, _, owner := testAPIKeyStore(t)
	rawKey, _, err := store.Create(owner.ID, "tablet")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	handler := RequireAPIKey(store, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(key string) int {
		r := httptest.NewRequest("GET", "/api/visits", nil)
		r.RemoteAddr = "10.0.0.7:5555"
		r.Header.Set("Authorization", "Bearer "+key)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}

	// Successful requests never count against the limit
	for i := 0; i < rateLimitMaxFail*2; i++ {
		if code := send(rawKey); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, code)
		}
	}

	for i := 0; i < rateLimitMaxFail; i++ {
		if code := send("vg_wrong"); code != http.StatusUnauthorized {
			t.Fatalf("failure %d: status = %d, want 401", i, code)
		}
	}
	if code := send(rawKey); code != http.StatusTooManyRequests {
		t.Errorf("status after %d failures = %d, want 429", rateLimitMaxFail, code)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	rl := newRateLimiter()
	rl.now = func() time.Time { return now }

	for i := 0; i < rateLimitMaxFail; i++ {
		rl.recordFailure("1.2.3.4")
	}
	if !rl.limited("1.2.3.4") {
		t.Fatal("expected ip to be limited")
	}
	if rl.limited("5.6.7.8") {
		t.Error("other ip must not be limited")
	}

	now = now.Add(rateLimitWindow + time.Second)
	if rl.limited("1.2.3.4") {
		t.Error("expected limit to expire after the window")
	}
}

func TestUserFromContextEmpty(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if u := UserFromContext(r.Context()); u != nil {
		t.Errorf("user = %+v, want nil", u)
	}
}
