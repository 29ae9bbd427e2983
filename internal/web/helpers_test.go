package web

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/evcraddock/vigia/internal/auth"
	"github.com/evcraddock/vigia/internal/db"
	"github.com/evcraddock/vigia/internal/events"
	"github.com/evcraddock/vigia/internal/objectstore"
	"github.com/evcraddock/vigia/internal/visit"
)

// recordingPublisher keeps published events in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}

type testEnv struct {
	srv    *Server
	db     *sql.DB
	events *recordingPublisher
	org    *auth.Organization
}

// testServer creates a server over a temp database and object directory
// with one organization.
func testServer(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	d, err := db.OpenServer(filepath.Join(dir, "server.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if cerr := d.Close(); cerr != nil {
			t.Errorf("close db: %v", cerr)
		}
	})

	objects, err := objectstore.New(filepath.Join(dir, "storage"), "http://localhost:8080/storage")
	if err != nil {
		t.Fatalf("object store: %v", err)
	}

	pub := &recordingPublisher{}
	srv := NewServer(d, objects, Options{BaseURL: "http://localhost:8080", Events: pub})
	srv.now = func() time.Time { return time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC) }

	org, err := srv.orgs.Create("Campinas")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}

	return &testEnv{srv: srv, db: d, events: pub, org: org}
}

// addUser creates a user in orgID with an API key and returns both.
func (e *testEnv) addUser(t *testing.T, orgID, email string, role auth.Role) (*auth.User, string) {
	t.Helper()
	u, err := e.srv.users.Add(orgID, email, "", role)
	if err != nil {
		t.Fatalf("add user %s: %v", email, err)
	}
	key, _, err := e.srv.apiKeys.Create(u.ID, "test")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	return u, key
}

func apiRequest(t *testing.T, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	r := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("decode: %v; body: %s", err, w.Body.String())
	}
}

func routineVisit(id, orgID, agentID string) *visit.Visit {
	now := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	return &visit.Visit{
		ID:             id,
		Type:           visit.Routine,
		Timestamp:      now,
		Location:       visit.Location{Latitude: -22.905, Longitude: -47.06, Accuracy: 5},
		Neighborhood:   "Centro",
		AgentID:        agentID,
		OrganizationID: orgID,
		Photos:         []string{},
		Status:         visit.Completed,
		SyncStatus:     visit.SyncSyncing,
		CreatedAt:      now,
		UpdatedAt:      now,
		Routine: &visit.RoutineDetails{
			BreedingSites: visit.BreedingSites{Tires: true},
			LarvaeFound:   true,
			RiskLevel:     visit.RiskMedium,
		},
	}
}

// createVisit posts v and returns the stored document.
func createVisit(t *testing.T, srv *Server, token string, v *visit.Visit) *visit.Visit {
	t.Helper()
	w := apiRequest(t, srv, http.MethodPost, "/api/visits", token, v)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d; body: %s", w.Code, w.Body.String())
	}
	var doc visit.Visit
	decodeBody(t, w, &doc)
	return &doc
}
