package auth

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a person allowed to use the backend.
type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserStore manages users in SQLite.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a user store.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = "id, organization_id, email, name, role, created_at"

// Add creates a user in an organization.
func (s *UserStore) Add(orgID, email, name string, role Role) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	id := uuid.NewString()
	_, err := s.db.Exec(
		"INSERT INTO users (id, organization_id, email, name, role) VALUES (?, ?, ?, ?, ?)",
		id, orgID, email, name, string(role),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("user already exists: %s", email)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return nil, fmt.Errorf("organization %s: %w", orgID, ErrNotFound)
		}
		return nil, fmt.Errorf("adding user: %w", err)
	}

	return s.GetByID(id)
}

// List returns users ordered by email. An empty orgID lists every organization.
func (s *UserStore) List(orgID string) ([]*User, error) {
	query := "SELECT " + userColumns + " FROM users"
	var args []interface{}
	if orgID != "" {
		query += " WHERE organization_id = ?"
		args = append(args, orgID)
	}
	query += " ORDER BY email"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			fmt.Printf("warning: closing rows: %v\n", cerr)
		}
	}()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// GetByID returns a user by id.
func (s *UserStore) GetByID(id string) (*User, error) {
	u, err := scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// Delete removes a user and, through the foreign key, their API keys.
func (s *UserStore) Delete(id string) error {
	result, err := s.db.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	return nil
}

// CountAdmins returns the number of admin users.
func (s *UserStore) CountAdmins() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users WHERE role = ?", string(RoleAdmin)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.Name, &role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}
