package web

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/evcraddock/vigia/internal/auth"
	"github.com/evcraddock/vigia/internal/email"
)

func TestOrganizationsAdminOnly(t *testing.T) {
	env := testServer(t)
	_, supKey := env.addUser(t, env.org.ID, "sup@example.com", auth.RoleSupervisor)
	_, adminKey := env.addUser(t, env.org.ID, "root@example.com", auth.RoleAdmin)

	w := apiRequest(t, env.srv, http.MethodGet, "/api/organizations", supKey, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("supervisor status = %d, want 403", w.Code)
	}

	w = apiRequest(t, env.srv, http.MethodPost, "/api/organizations", adminKey, map[string]string{"name": "Sumaré"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d; body: %s", w.Code, w.Body.String())
	}

	w = apiRequest(t, env.srv, http.MethodPost, "/api/organizations", adminKey, map[string]string{"name": "Sumaré"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}

	w = apiRequest(t, env.srv, http.MethodPost, "/api/organizations", adminKey, map[string]string{"name": " "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank name status = %d, want 400", w.Code)
	}

	w = apiRequest(t, env.srv, http.MethodGet, "/api/organizations", adminKey, nil)
	var orgs []auth.Organization
	decodeBody(t, w, &orgs)
	if len(orgs) != 2 {
		t.Errorf("got %d organizations, want 2", len(orgs))
	}
}

func TestAddUserReturnsKey(t *testing.T) {
	env := testServer(t)
	_, supKey := env.addUser(t, env.org.ID, "sup@example.com", auth.RoleSupervisor)

	w := apiRequest(t, env.srv, http.MethodPost, "/api/users", supKey, map[string]string{
		"email": "Ana@Example.com",
		"name":  "Ana",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp createUserResponse
	decodeBody(t, w, &resp)
	if resp.User.Role != auth.RoleAgent || resp.User.OrganizationID != env.org.ID {
		t.Errorf("user = %+v, want agent in caller's organization", resp.User)
	}
	if resp.Invited || !strings.HasPrefix(resp.APIKey, auth.KeyPrefix) {
		t.Errorf("invited = %v, key = %q; want key returned", resp.Invited, resp.APIKey)
	}

	// the returned key authenticates as the new user
	w = apiRequest(t, env.srv, http.MethodGet, "/api/me", resp.APIKey, nil)
	var me auth.User
	decodeBody(t, w, &me)
	if me.ID != resp.User.ID {
		t.Errorf("me = %q, want %q", me.ID, resp.User.ID)
	}

	w = apiRequest(t, env.srv, http.MethodPost, "/api/users", supKey, map[string]string{"email": "ana@example.com"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}
}

func TestAddUserSendsInvite(t *testing.T) {
	env := testServer(t)
	_, adminKey := env.addUser(t, env.org.ID, "root@example.com", auth.RoleAdmin)

	env.srv.smtp = email.SMTPConfig{Host: "smtp.example.com", Port: "587", From: "vigia@example.com"}
	var sentTo []string
	var sentBody string
	env.srv.sendMail = func(to []string, subject, body string) error {
		sentTo = to
		sentBody = body
		return nil
	}

	w := apiRequest(t, env.srv, http.MethodPost, "/api/users", adminKey, map[string]string{
		"email": "sup@example.com",
		"role":  "supervisor",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp createUserResponse
	decodeBody(t, w, &resp)
	if !resp.Invited || resp.APIKey != "" {
		t.Errorf("invited = %v, key = %q; want key only in the email", resp.Invited, resp.APIKey)
	}
	if len(sentTo) != 1 || sentTo[0] != "sup@example.com" {
		t.Errorf("sent to %v", sentTo)
	}
	if !strings.Contains(sentBody, "Campinas") || !strings.Contains(sentBody, auth.KeyPrefix) {
		t.Errorf("invite body missing organization or key:\n%s", sentBody)
	}

	// a failed send falls back to returning the key
	env.srv.sendMail = func(to []string, subject, body string) error {
		return errors.New("connection refused")
	}
	w = apiRequest(t, env.srv, http.MethodPost, "/api/users", adminKey, map[string]string{"email": "bia@example.com"})
	decodeBody(t, w, &resp)
	if resp.Invited || resp.APIKey == "" {
		t.Errorf("invited = %v, key = %q; want key returned after send failure", resp.Invited, resp.APIKey)
	}
}

func TestAddUserPermissions(t *testing.T) {
	env := testServer(t)
	_, agentKey := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)
	_, supKey := env.addUser(t, env.org.ID, "sup@example.com", auth.RoleSupervisor)
	_, adminKey := env.addUser(t, env.org.ID, "root@example.com", auth.RoleAdmin)
	other, err := env.srv.orgs.Create("Sumaré")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}

	tests := []struct {
		name  string
		token string
		body  map[string]string
		want  int
	}{
		{"agent", agentKey, map[string]string{"email": "x@example.com"}, http.StatusForbidden},
		{"supervisor creates supervisor", supKey, map[string]string{"email": "x@example.com", "role": "supervisor"}, http.StatusForbidden},
		{"supervisor other org", supKey, map[string]string{"email": "x@example.com", "organization_id": other.ID}, http.StatusForbidden},
		{"bad role", adminKey, map[string]string{"email": "x@example.com", "role": "owner"}, http.StatusBadRequest},
		{"missing email", adminKey, map[string]string{"name": "X"}, http.StatusBadRequest},
		{"unknown org", adminKey, map[string]string{"email": "x@example.com", "organization_id": "nope"}, http.StatusNotFound},
		{"admin other org", adminKey, map[string]string{"email": "x@example.com", "organization_id": other.ID, "role": "supervisor"}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := apiRequest(t, env.srv, http.MethodPost, "/api/users", tt.token, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestListAndDeleteUsers(t *testing.T) {
	env := testServer(t)
	agent, _ := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)
	sup, supKey := env.addUser(t, env.org.ID, "sup@example.com", auth.RoleSupervisor)
	other, err := env.srv.orgs.Create("Sumaré")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	outsider, _ := env.addUser(t, other.ID, "out@example.com", auth.RoleAgent)

	w := apiRequest(t, env.srv, http.MethodGet, "/api/users", supKey, nil)
	var users []auth.User
	decodeBody(t, w, &users)
	if len(users) != 2 {
		t.Errorf("got %d users, want 2 in own organization", len(users))
	}

	w = apiRequest(t, env.srv, http.MethodGet, "/api/users?organization_id="+other.ID, supKey, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("cross-org list status = %d, want 403", w.Code)
	}

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"self", sup.ID, http.StatusBadRequest},
		{"other org", outsider.ID, http.StatusForbidden},
		{"missing", "nope", http.StatusNotFound},
		{"own agent", agent.ID, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := apiRequest(t, env.srv, http.MethodDelete, "/api/users/"+tt.id, supKey, nil)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}
