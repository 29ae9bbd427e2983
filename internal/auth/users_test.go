package auth

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/evcraddock/vigia/internal/db"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.OpenServer(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if cerr := d.Close(); cerr != nil {
			t.Errorf("close db: %v", cerr)
		}
	})
	return d
}

func testOrg(t *testing.T, d *sql.DB, name string) *Organization {
	t.Helper()
	org, err := NewOrganizationStore(d).Create(name)
	if err != nil {
		t.Fatalf("create org %s: %v", name, err)
	}
	return org
}

func TestOrganizationCreateAndList(t *testing.T) {
	d := testDB(t)
	s := NewOrganizationStore(d)

	if _, err := s.Create("Sorocaba"); err != nil {
		t.Fatalf("create: %v", err)
	}
	org, err := s.Create("  Campinas ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if org.Name != "Campinas" {
		t.Errorf("name = %q, want trimmed", org.Name)
	}
	if org.ID == "" {
		t.Error("expected generated id")
	}

	orgs, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orgs) != 2 || orgs[0].Name != "Campinas" {
		t.Errorf("orgs = %+v, want ordered by name", orgs)
	}

	if _, err := s.Create("Campinas"); err == nil {
		t.Error("expected error for duplicate name")
	}
	if _, err := s.Create(" "); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestOrganizationGetNotFound(t *testing.T) {
	s := NewOrganizationStore(testDB(t))

	_, err := s.Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAddUser(t *testing.T) {
	d := testDB(t)
	org := testOrg(t, d, "Campinas")
	s := NewUserStore(d)

	user, err := s.Add(org.ID, " Bob@Example.com ", "Bob", RoleAgent)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if user.Email != "bob@example.com" {
		t.Errorf("email = %q", user.Email)
	}
	if user.Name != "Bob" {
		t.Errorf("name = %q", user.Name)
	}
	if user.Role != RoleAgent {
		t.Errorf("role = %q", user.Role)
	}
	if user.OrganizationID != org.ID {
		t.Errorf("organization = %q, want %q", user.OrganizationID, org.ID)
	}
}

func TestAddUserErrors(t *testing.T) {
	d := testDB(t)
	org := testOrg(t, d, "Campinas")
	s := NewUserStore(d)

	if _, err := s.Add(org.ID, "bob@example.com", "Bob", RoleAgent); err != nil {
		t.Fatalf("first add: %v", err)
	}

	tests := []struct {
		name  string
		org   string
		email string
		role  Role
	}{
		{"duplicate", org.ID, "bob@example.com", RoleAgent},
		{"empty email", org.ID, "", RoleAgent},
		{"invalid role", org.ID, "carol@example.com", "mayor"},
		{"unknown organization", "nope", "dave@example.com", RoleAgent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Add(tt.org, tt.email, "x", tt.role); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestListUsers(t *testing.T) {
	d := testDB(t)
	a := testOrg(t, d, "Campinas")
	b := testOrg(t, d, "Sorocaba")
	s := NewUserStore(d)

	if _, err := s.Add(a.ID, "bob@example.com", "Bob", RoleAgent); err != nil {
		t.Fatalf("add bob: %v", err)
	}
	if _, err := s.Add(a.ID, "alice@example.com", "Alice", RoleSupervisor); err != nil {
		t.Fatalf("add alice: %v", err)
	}
	if _, err := s.Add(b.ID, "carol@example.com", "Carol", RoleAgent); err != nil {
		t.Fatalf("add carol: %v", err)
	}

	users, err := s.List(a.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
	// Should be ordered by email
	if users[0].Email != "alice@example.com" {
		t.Errorf("first user = %q, want alice", users[0].Email)
	}

	all, err := s.List("")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d users, want 3", len(all))
	}
}

func TestDeleteUser(t *testing.T) {
	d := testDB(t)
	org := testOrg(t, d, "Campinas")
	s := NewUserStore(d)

	user, err := s.Add(org.ID, "bob@example.com", "Bob", RoleAgent)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := s.Delete(user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetByID(user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestCountAdmins(t *testing.T) {
	d := testDB(t)
	org := testOrg(t, d, "Campinas")
	s := NewUserStore(d)

	n, err := s.CountAdmins()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("admins = %d, want 0", n)
	}

	if _, err := s.Add(org.ID, "root@example.com", "Root", RoleAdmin); err != nil {
		t.Fatalf("add: %v", err)
	}
	n, err = s.CountAdmins()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("admins = %d, want 1", n)
	}
}

func TestPermissions(t *testing.T) {
	agent := &User{ID: "a", OrganizationID: "o1", Role: RoleAgent}
	otherAgent := &User{ID: "b", OrganizationID: "o2", Role: RoleAgent}
	supervisor := &User{ID: "s", OrganizationID: "o1", Role: RoleSupervisor}
	otherSupervisor := &User{ID: "s2", OrganizationID: "o1", Role: RoleSupervisor}
	admin := &User{ID: "x", OrganizationID: "o1", Role: RoleAdmin}

	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"agent analytics", agent.CanViewAnalytics(), false},
		{"supervisor analytics", supervisor.CanViewAnalytics(), true},
		{"admin analytics", admin.CanViewAnalytics(), true},
		{"agent own org", agent.CanAccessOrganization("o1"), true},
		{"agent other org", agent.CanAccessOrganization("o2"), false},
		{"admin other org", admin.CanAccessOrganization("o2"), true},
		{"agent manages agent", agent.CanManage(agent), false},
		{"supervisor manages own agent", supervisor.CanManage(agent), true},
		{"supervisor manages foreign agent", supervisor.CanManage(otherAgent), false},
		{"supervisor manages supervisor", supervisor.CanManage(otherSupervisor), false},
		{"admin manages supervisor", admin.CanManage(otherSupervisor), true},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}
