package web

import (
	"net/http"
	"strings"
	"testing"

	"github.com/evcraddock/vigia/internal/auth"
	"github.com/evcraddock/vigia/internal/events"
	"github.com/evcraddock/vigia/internal/visit"
)

func TestHealth(t *testing.T) {
	env := testServer(t)
	w := apiRequest(t, env.srv, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestAPIRequiresKey(t *testing.T) {
	env := testServer(t)

	w := apiRequest(t, env.srv, http.MethodGet, "/api/visits", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", w.Code)
	}

	w = apiRequest(t, env.srv, http.MethodGet, "/api/visits", "vg_bogus", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad key status = %d, want 401", w.Code)
	}
}

func TestMe(t *testing.T) {
	env := testServer(t)
	u, key := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)

	w := apiRequest(t, env.srv, http.MethodGet, "/api/me", key, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var me auth.User
	decodeBody(t, w, &me)
	if me.ID != u.ID || me.OrganizationID != env.org.ID || me.Role != auth.RoleAgent {
		t.Errorf("me = %+v", me)
	}
}

func TestCreateVisit(t *testing.T) {
	env := testServer(t)
	agent, key := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)

	in := routineVisit("local-1", env.org.ID, agent.ID)
	in.Photos = []string{"https://elsewhere.test/a.jpg"}
	doc := createVisit(t, env.srv, key, in)

	if doc.ID == "" || doc.ID == "local-1" {
		t.Errorf("id = %q, want a server id", doc.ID)
	}
	if doc.RemoteID != doc.ID {
		t.Errorf("remote id = %q, want %q", doc.RemoteID, doc.ID)
	}
	if doc.SyncStatus != visit.SyncSynced {
		t.Errorf("sync status = %q, want synced", doc.SyncStatus)
	}
	if doc.Routine == nil || doc.Routine.RiskLevel != visit.RiskMedium {
		t.Errorf("routine = %+v", doc.Routine)
	}
	if got := env.events.names(); len(got) != 1 || got[0] != events.VisitCreated {
		t.Errorf("events = %v, want [visit.created]", got)
	}

	// same client id again returns the first document
	w := apiRequest(t, env.srv, http.MethodPost, "/api/visits", key, in)
	if w.Code != http.StatusOK {
		t.Fatalf("retry status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	var again visit.Visit
	decodeBody(t, w, &again)
	if again.ID != doc.ID {
		t.Errorf("retry id = %q, want %q", again.ID, doc.ID)
	}
	if got := env.events.names(); len(got) != 1 {
		t.Errorf("events after retry = %v, want only the first create", got)
	}
}

func TestCreateVisitDefaultsToCaller(t *testing.T) {
	env := testServer(t)
	agent, key := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)

	doc := createVisit(t, env.srv, key, routineVisit("local-1", "", ""))
	if doc.OrganizationID != env.org.ID || doc.AgentID != agent.ID {
		t.Errorf("org/agent = %q/%q, want caller's", doc.OrganizationID, doc.AgentID)
	}
}

func TestCreateVisitRejected(t *testing.T) {
	env := testServer(t)
	agent, key := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)

	tests := []struct {
		name   string
		mutate func(v *visit.Visit)
		want   int
	}{
		{"other organization", func(v *visit.Visit) { v.OrganizationID = "org-x" }, http.StatusForbidden},
		{"other agent", func(v *visit.Visit) { v.AgentID = "someone-else" }, http.StatusForbidden},
		{"inline photo", func(v *visit.Visit) { v.Photos = []string{"data:image/jpeg;base64,AAAA"} }, http.StatusBadRequest},
		{"blank neighborhood", func(v *visit.Visit) { v.Neighborhood = " " }, http.StatusBadRequest},
		{"payload mismatch", func(v *visit.Visit) { v.Type = visit.LIRAa }, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := routineVisit("local-x", env.org.ID, agent.ID)
			tt.mutate(v)
			w := apiRequest(t, env.srv, http.MethodPost, "/api/visits", key, v)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}

	w := apiRequest(t, env.srv, http.MethodPost, "/api/visits", key, "not a visit")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", w.Code)
	}
}

func TestListVisits(t *testing.T) {
	env := testServer(t)
	agent, key := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)
	other, err := env.srv.orgs.Create("Sumaré")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	outsider, outsiderKey := env.addUser(t, other.ID, "bia@example.com", auth.RoleAgent)

	createVisit(t, env.srv, key, routineVisit("a", env.org.ID, agent.ID))
	createVisit(t, env.srv, key, routineVisit("b", env.org.ID, agent.ID))
	createVisit(t, env.srv, outsiderKey, routineVisit("c", other.ID, outsider.ID))

	w := apiRequest(t, env.srv, http.MethodGet, "/api/visits", key, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var visits []*visit.Visit
	decodeBody(t, w, &visits)
	if len(visits) != 2 {
		t.Errorf("got %d visits, want 2 from own organization", len(visits))
	}

	w = apiRequest(t, env.srv, http.MethodGet, "/api/visits?limit=1", key, nil)
	decodeBody(t, w, &visits)
	if len(visits) != 1 {
		t.Errorf("limit=1 returned %d", len(visits))
	}

	w = apiRequest(t, env.srv, http.MethodGet, "/api/visits?organization_id="+other.ID, key, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("cross-org status = %d, want 403", w.Code)
	}

	_, adminKey := env.addUser(t, env.org.ID, "root@example.com", auth.RoleAdmin)
	w = apiRequest(t, env.srv, http.MethodGet, "/api/visits", adminKey, nil)
	decodeBody(t, w, &visits)
	if len(visits) != 3 {
		t.Errorf("admin sees %d visits, want 3", len(visits))
	}
}

func TestListVisitsBadQuery(t *testing.T) {
	env := testServer(t)
	_, key := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)

	for _, q := range []string{"limit=0", "limit=abc", "limit=5000", "type=house", "from=yesterday"} {
		w := apiRequest(t, env.srv, http.MethodGet, "/api/visits?"+q, key, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}

	w := apiRequest(t, env.srv, http.MethodGet, "/api/visits?from=2026-01-01&to=2026-12-31T00:00:00Z&type=routine", key, nil)
	if w.Code != http.StatusOK {
		t.Errorf("valid filters status = %d; body: %s", w.Code, w.Body.String())
	}
}

func TestGetPatchDeleteVisit(t *testing.T) {
	env := testServer(t)
	agent, key := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)
	doc := createVisit(t, env.srv, key, routineVisit("a", env.org.ID, agent.ID))

	w := apiRequest(t, env.srv, http.MethodGet, "/api/visits/"+doc.ID, key, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	photos := []string{"http://localhost:8080/storage/visits/" + doc.ID + "/photos/1_aa.jpg"}
	w = apiRequest(t, env.srv, http.MethodPatch, "/api/visits/"+doc.ID, key, visit.PhotosPatch(photos))
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d; body: %s", w.Code, w.Body.String())
	}
	var patched visit.Visit
	decodeBody(t, w, &patched)
	if len(patched.Photos) != 1 || patched.Photos[0] != photos[0] {
		t.Errorf("photos = %v", patched.Photos)
	}

	w = apiRequest(t, env.srv, http.MethodPatch, "/api/visits/"+doc.ID, key, visit.Patch{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty patch status = %d, want 400", w.Code)
	}

	w = apiRequest(t, env.srv, http.MethodDelete, "/api/visits/"+doc.ID, key, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = apiRequest(t, env.srv, http.MethodGet, "/api/visits/"+doc.ID, key, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}

	names := env.events.names()
	if len(names) != 2 || names[1] != events.VisitDeleted {
		t.Errorf("events = %v", names)
	}
}

func TestVisitAccessAcrossUsers(t *testing.T) {
	env := testServer(t)
	ana, anaKey := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)
	_, biaKey := env.addUser(t, env.org.ID, "bia@example.com", auth.RoleAgent)
	_, supKey := env.addUser(t, env.org.ID, "sup@example.com", auth.RoleSupervisor)
	other, err := env.srv.orgs.Create("Sumaré")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	_, outsiderKey := env.addUser(t, other.ID, "out@example.com", auth.RoleSupervisor)

	doc := createVisit(t, env.srv, anaKey, routineVisit("a", env.org.ID, ana.ID))
	path := "/api/visits/" + doc.ID

	if w := apiRequest(t, env.srv, http.MethodGet, path, biaKey, nil); w.Code != http.StatusOK {
		t.Errorf("same-org read status = %d, want 200", w.Code)
	}
	if w := apiRequest(t, env.srv, http.MethodDelete, path, biaKey, nil); w.Code != http.StatusForbidden {
		t.Errorf("other agent delete status = %d, want 403", w.Code)
	}
	if w := apiRequest(t, env.srv, http.MethodGet, path, outsiderKey, nil); w.Code != http.StatusNotFound {
		t.Errorf("other org read status = %d, want 404", w.Code)
	}
	if w := apiRequest(t, env.srv, http.MethodDelete, path, supKey, nil); w.Code != http.StatusOK {
		t.Errorf("supervisor delete status = %d, want 200", w.Code)
	}
}

func TestVisitsRouteMethods(t *testing.T) {
	env := testServer(t)
	_, key := env.addUser(t, env.org.ID, "ana@example.com", auth.RoleAgent)

	if w := apiRequest(t, env.srv, http.MethodPut, "/api/visits", key, nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT /api/visits status = %d, want 405", w.Code)
	}
	w := apiRequest(t, env.srv, http.MethodGet, "/api/visits/a/b", key, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("nested path status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Type"), "application/json") {
		t.Errorf("content type = %q, want json", w.Header().Get("Content-Type"))
	}
}
