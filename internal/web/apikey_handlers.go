package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evcraddock/vigia/internal/auth"
)

const (
	defaultKeyName = "field device"
	maxKeyNameLen  = 64
	maxKeysPerUser = 20
)

// keyView is an API key as listed to its owner; the raw key never appears.
type keyView struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	KeyPrefix  string  `json:"key_prefix"`
	CreatedAt  string  `json:"created_at,omitempty"`
	LastUsedAt *string `json:"last_used_at,omitempty"`
}

type newKeyResponse struct {
	Key    string  `json:"key"`
	APIKey keyView `json:"api_key"`
}

func viewKey(k auth.APIKey) keyView {
	v := keyView{ID: k.ID, Name: k.Name, KeyPrefix: k.KeyPrefix}
	if !k.CreatedAt.IsZero() {
		v.CreatedAt = k.CreatedAt.UTC().Format(time.RFC3339)
	}
	if k.LastUsedAt != nil {
		s := k.LastUsedAt.UTC().Format(time.RFC3339)
		v.LastUsedAt = &s
	}
	return v
}

// handleKeysRoute routes /api/keys and /api/keys/{id}. Every user manages
// only their own keys.
func (s *Server) handleKeysRoute(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/keys"), "/")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		s.apiListKeys(w, r)
	case rest == "" && r.Method == http.MethodPost:
		s.apiCreateKey(w, r)
	case rest != "" && r.Method == http.MethodDelete:
		s.apiRevokeKey(w, r, rest)
	default:
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) apiListKeys(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	keys, err := s.apiKeys.List(user.ID)
	if err != nil {
		slog.Error("listing api keys", "user", user.ID, "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	views := make([]keyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, viewKey(k))
	}
	apiJSON(w, views, http.StatusOK)
}

// apiCreateKey issues another key for the caller, e.g. for a second device.
func (s *Server) apiCreateKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		name = defaultKeyName
	}
	if len(name) > maxKeyNameLen {
		apiError(w, fmt.Sprintf("key name must be at most %d characters", maxKeyNameLen), http.StatusBadRequest)
		return
	}

	user := auth.UserFromContext(r.Context())
	existing, err := s.apiKeys.List(user.ID)
	if err != nil {
		slog.Error("listing api keys", "user", user.ID, "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if len(existing) >= maxKeysPerUser {
		apiError(w, fmt.Sprintf("at most %d keys per user, revoke one first", maxKeysPerUser), http.StatusConflict)
		return
	}

	raw, key, err := s.apiKeys.Create(user.ID, name)
	if err != nil {
		slog.Error("creating api key", "user", user.ID, "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}
	key.CreatedAt = s.now()
	slog.Info("api key created", "user", user.ID, "key", key.KeyPrefix)

	apiJSON(w, newKeyResponse{Key: raw, APIKey: viewKey(*key)}, http.StatusCreated)
}

func (s *Server) apiRevokeKey(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		apiError(w, "invalid key ID", http.StatusBadRequest)
		return
	}

	user := auth.UserFromContext(r.Context())
	if err := s.apiKeys.Delete(id, user.ID); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			apiError(w, "key not found", http.StatusNotFound)
			return
		}
		slog.Error("revoking api key", "user", user.ID, "err", err)
		apiError(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("api key revoked", "user", user.ID, "key_id", id)
	w.WriteHeader(http.StatusNoContent)
}
