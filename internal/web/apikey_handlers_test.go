package web

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/evcraddock/vigia/internal/auth"
)

func TestCreateAPIKey(t *testing.T) {
	env := testServer(t)
	_, key := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)

	w := apiRequest(t, env.srv, http.MethodPost, "/api/keys", key, map[string]string{"name": "Tablet"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp newKeyResponse
	decodeBody(t, w, &resp)
	if !strings.HasPrefix(resp.Key, auth.KeyPrefix) {
		t.Errorf("key = %q, want %s prefix", resp.Key, auth.KeyPrefix)
	}
	if resp.APIKey.Name != "Tablet" {
		t.Errorf("name = %q, want %q", resp.APIKey.Name, "Tablet")
	}

	// the new key works
	w = apiRequest(t, env.srv, http.MethodGet, "/api/me", resp.Key, nil)
	if w.Code != http.StatusOK {
		t.Errorf("new key status = %d, want 200", w.Code)
	}
}

func TestCreateAPIKeyDefaultName(t *testing.T) {
	env := testServer(t)
	_, key := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)

	w := apiRequest(t, env.srv, http.MethodPost, "/api/keys", key, map[string]string{})
	var resp newKeyResponse
	decodeBody(t, w, &resp)
	if resp.APIKey.Name != defaultKeyName {
		t.Errorf("name = %q, want %q", resp.APIKey.Name, defaultKeyName)
	}
	if resp.APIKey.CreatedAt != "2026-03-02T14:00:00Z" {
		t.Errorf("created_at = %q", resp.APIKey.CreatedAt)
	}
}

func TestListAPIKeysOwnOnly(t *testing.T) {
	env := testServer(t)
	_, anaKey := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)
	env.addUser(t, env.org.ID, "bia@example.com", auth.RoleAgent)

	w := apiRequest(t, env.srv, http.MethodGet, "/api/keys", anaKey, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var keys []keyView
	decodeBody(t, w, &keys)
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}
	if keys[0].Name != "test" || keys[0].LastUsedAt == nil {
		t.Errorf("key = %+v, want the used test key", keys[0])
	}
}

func TestDeleteAPIKey(t *testing.T) {
	env := testServer(t)
	ana, anaKey := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)
	_, biaKey := env.addUser(t, env.org.ID, "bia@example.com", auth.RoleAgent)

	_, spare, err := env.srv.apiKeys.Create(ana.ID, "spare")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	path := fmt.Sprintf("/api/keys/%d", spare.ID)

	w := apiRequest(t, env.srv, http.MethodDelete, path, biaKey, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("other user's key status = %d, want 404", w.Code)
	}

	w = apiRequest(t, env.srv, http.MethodDelete, path, anaKey, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}

	keys, err := env.srv.apiKeys.List(ana.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("got %d keys after delete, want 1", len(keys))
	}

	w = apiRequest(t, env.srv, http.MethodDelete, "/api/keys/abc", anaKey, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}
}

func TestRevokedKeyRejected(t *testing.T) {
	env := testServer(t)
	ana, _ := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)

	raw, k, err := env.srv.apiKeys.Create(ana.ID, "temp")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.srv.apiKeys.Delete(k.ID, ana.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	w := apiRequest(t, env.srv, http.MethodGet, "/api/keys", raw, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestCreateAPIKeyLimits(t *testing.T) {
	env := testServer(t)
	ana, key := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)

	w := apiRequest(t, env.srv, http.MethodPost, "/api/keys", key, map[string]string{"name": strings.Repeat("x", maxKeyNameLen+1)})
	if w.Code != http.StatusBadRequest {
		t.Errorf("long name status = %d, want 400", w.Code)
	}

	// addUser issued one key already
	for i := 1; i < maxKeysPerUser; i++ {
		if _, _, err := env.srv.apiKeys.Create(ana.ID, fmt.Sprintf("k%d", i)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	w = apiRequest(t, env.srv, http.MethodPost, "/api/keys", key, map[string]string{"name": "one more"})
	if w.Code != http.StatusConflict {
		t.Errorf("over limit status = %d, want 409", w.Code)
	}
}

func TestAPIKeysRouteMethods(t *testing.T) {
	env := testServer(t)
	_, key := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)

	for _, tc := range []struct{ method, path string }{
		{http.MethodDelete, "/api/keys"},
		{http.MethodPut, "/api/keys"},
		{http.MethodGet, "/api/keys/1"},
	} {
		w := apiRequest(t, env.srv, tc.method, tc.path, key, nil)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s = %d, want 405", tc.method, tc.path, w.Code)
		}
	}
}
