package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/evcraddock/vigia/internal/auth"
	"github.com/evcraddock/vigia/internal/email"
)

// handleOrganizations lists or creates organizations (admin only).
func (s *Server) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	if auth.UserFromContext(r.Context()).Role != auth.RoleAdmin {
		apiError(w, "admin access required", http.StatusForbidden)
		return
	}

	switch r.Method {
	case http.MethodGet:
		orgs, err := s.orgs.List()
		if err != nil {
			apiError(w, "listing organizations: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if orgs == nil {
			orgs = make([]*auth.Organization, 0)
		}
		apiJSON(w, orgs, http.StatusOK)
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apiError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			apiError(w, "name is required", http.StatusBadRequest)
			return
		}
		org, err := s.orgs.Create(req.Name)
		if err != nil {
			if strings.Contains(err.Error(), "already exists") {
				apiError(w, err.Error(), http.StatusConflict)
				return
			}
			apiError(w, "adding organization: "+err.Error(), http.StatusInternalServerError)
			return
		}
		apiJSON(w, org, http.StatusCreated)
	default:
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleUsersRoute routes /api/users requests. Admins manage anyone;
// supervisors manage the agents of their own organization.
func (s *Server) handleUsersRoute(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	if caller.Role == auth.RoleAgent {
		apiError(w, "supervisor access required", http.StatusForbidden)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/users")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			s.listUsers(w, r, caller)
		case http.MethodPost:
			s.addUser(w, r, caller)
		default:
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	// /api/users/{id}
	if r.Method == http.MethodDelete {
		s.deleteUser(w, caller, path)
		return
	}

	apiError(w, "method not allowed", http.StatusMethodNotAllowed)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request, caller *auth.User) {
	orgID := r.URL.Query().Get("organization_id")
	if caller.Role != auth.RoleAdmin {
		if orgID != "" && orgID != caller.OrganizationID {
			apiError(w, "organization access denied", http.StatusForbidden)
			return
		}
		orgID = caller.OrganizationID
	}

	users, err := s.users.List(orgID)
	if err != nil {
		apiError(w, "listing users: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = make([]*auth.User, 0)
	}
	apiJSON(w, users, http.StatusOK)
}

type createUserResponse struct {
	User    *auth.User `json:"user"`
	APIKey  string     `json:"api_key,omitempty"`
	Invited bool       `json:"invited"`
}

func (s *Server) addUser(w http.ResponseWriter, r *http.Request, caller *auth.User) {
	var req struct {
		OrganizationID string    `json:"organization_id"`
		Email          string    `json:"email"`
		Name           string    `json:"name"`
		Role           auth.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Email) == "" {
		apiError(w, "email is required", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleAgent
	}
	if !req.Role.IsValid() {
		apiError(w, "role must be agent, supervisor or admin", http.StatusBadRequest)
		return
	}
	if req.OrganizationID == "" {
		req.OrganizationID = caller.OrganizationID
	}
	if !caller.CanManage(&auth.User{Role: req.Role, OrganizationID: req.OrganizationID}) {
		apiError(w, "cannot create this user", http.StatusForbidden)
		return
	}

	org, err := s.orgs.Get(req.OrganizationID)
	if errors.Is(err, auth.ErrNotFound) {
		apiError(w, "organization not found", http.StatusNotFound)
		return
	}
	if err != nil {
		apiError(w, "loading organization: "+err.Error(), http.StatusInternalServerError)
		return
	}

	user, err := s.users.Add(req.OrganizationID, req.Email, req.Name, req.Role)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			apiError(w, err.Error(), http.StatusConflict)
			return
		}
		apiError(w, "adding user: "+err.Error(), http.StatusInternalServerError)
		return
	}

	rawKey, _, err := s.apiKeys.Create(user.ID, "invite")
	if err != nil {
		apiError(w, "creating api key: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := createUserResponse{User: user}
	if s.smtp.IsConfigured() {
		body := email.FormatInvite(email.Invite{
			Name:         user.Name,
			Email:        user.Email,
			Organization: org.Name,
			Role:         string(user.Role),
			APIKey:       rawKey,
			ServerURL:    s.baseURL,
		})
		if err := s.sendMail([]string{user.Email}, email.InviteSubject, body); err != nil {
			slog.Warn("sending invite failed, returning key to caller", "user", user.Email, "error", err)
		} else {
			resp.Invited = true
		}
	}
	if !resp.Invited {
		resp.APIKey = rawKey
	}

	slog.Info("user created", "user", user.Email, "role", user.Role, "organization", user.OrganizationID, "by", caller.Email)
	apiJSON(w, resp, http.StatusCreated)
}

func (s *Server) deleteUser(w http.ResponseWriter, caller *auth.User, id string) {
	if id == caller.ID {
		apiError(w, "cannot remove yourself", http.StatusBadRequest)
		return
	}

	target, err := s.users.GetByID(id)
	if errors.Is(err, auth.ErrNotFound) {
		apiError(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		apiError(w, "loading user: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !caller.CanManage(target) {
		apiError(w, "cannot remove this user", http.StatusForbidden)
		return
	}

	if err := s.users.Delete(id); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			apiError(w, "user not found", http.StatusNotFound)
			return
		}
		apiError(w, "deleting user: "+err.Error(), http.StatusInternalServerError)
		return
	}

	apiJSON(w, map[string]interface{}{"id": id, "deleted": true}, http.StatusOK)
}
