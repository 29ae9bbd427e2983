package auth

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Organization is a tenant: a municipality or health district.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// OrganizationStore manages organizations in SQLite.
type OrganizationStore struct {
	db *sql.DB
}

// NewOrganizationStore creates an organization store.
func NewOrganizationStore(db *sql.DB) *OrganizationStore {
	return &OrganizationStore{db: db}
}

// Create adds an organization with a generated id.
func (s *OrganizationStore) Create(name string) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("organization name is required")
	}

	id := uuid.NewString()
	if _, err := s.db.Exec("INSERT INTO organizations (id, name) VALUES (?, ?)", id, name); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("organization already exists: %s", name)
		}
		return nil, fmt.Errorf("adding organization: %w", err)
	}

	return s.Get(id)
}

// Get returns an organization by id.
func (s *OrganizationStore) Get(id string) (*Organization, error) {
	var o Organization
	err := s.db.QueryRow(
		"SELECT id, name, created_at FROM organizations WHERE id = ?", id,
	).Scan(&o.ID, &o.Name, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying organization: %w", err)
	}
	return &o, nil
}

// List returns all organizations ordered by name.
func (s *OrganizationStore) List() ([]*Organization, error) {
	rows, err := s.db.Query("SELECT id, name, created_at FROM organizations ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			fmt.Printf("warning: closing rows: %v\n", cerr)
		}
	}()

	var orgs []*Organization
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning organization: %w", err)
		}
		orgs = append(orgs, &o)
	}

	return orgs, rows.Err()
}
