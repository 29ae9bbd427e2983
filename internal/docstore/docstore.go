// Package docstore is the backend's "visits" document collection: each
// visit is kept as a JSON document with a few indexed columns beside it.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/vigia/internal/visit"
)

// ErrNotFound is returned when no document has the requested id.
var ErrNotFound = errors.New("visit not found")

// Store provides CRUD operations over the visits collection.
type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// New creates a document store over a database opened with the server schema.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now, newID: uuid.NewString}
}

// Query filters a collection read. Zero values mean no filter.
type Query struct {
	OrganizationID string
	AgentID        string
	Type           visit.Type
	From           time.Time // created at or after
	To             time.Time // created before
	Limit          int
}

// Create stores a new document. The server assigns the id and timestamps;
// the id the client sent is kept as client_id, and a second create with the
// same organization and client_id returns the first document as stored with
// created set to false. The fields of the repeated request are ignored, so a
// device retrying a sync gets back the photo list it must extend with its
// remaining uploads.
func (s *Store) Create(ctx context.Context, v *visit.Visit) (doc *visit.Visit, created bool, err error) {
	clientID := v.ID
	if clientID != "" {
		existing, err := s.byClientID(ctx, v.OrganizationID, clientID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	now := s.now().UTC()
	doc = v.Clone()
	doc.ID = s.newID()
	doc.RemoteID = doc.ID
	doc.SyncStatus = visit.SyncSynced
	doc.SyncError = ""
	doc.CreatedAt = now
	doc.UpdatedAt = now

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, false, fmt.Errorf("encoding visit: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO visits (id, organization_id, agent_id, type, document, created_at, updated_at, client_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (organization_id, client_id) WHERE client_id != '' DO NOTHING`,
		doc.ID, doc.OrganizationID, doc.AgentID, string(doc.Type), string(data),
		now.UnixNano(), now.UnixNano(), clientID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("inserting visit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("checking insert: %w", err)
	}
	if n == 0 {
		// a concurrent create with the same client id won
		existing, err := s.byClientID(ctx, v.OrganizationID, clientID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("visit %s was not stored", clientID)
		}
		return existing, false, nil
	}

	return doc, true, nil
}

// Get returns a document by id.
func (s *Store) Get(ctx context.Context, id string) (*visit.Visit, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT document FROM visits WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("visit %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying visit %s: %w", id, err)
	}
	return decode(data)
}

// Update applies a patch to a stored document and returns the result.
func (s *Store) Update(ctx context.Context, id string, patch visit.Patch) (*visit.Visit, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := patch.Apply(doc, now); err != nil {
		return nil, err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding visit: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE visits SET document = ?, updated_at = ? WHERE id = ?",
		string(data), now.UnixNano(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating visit %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("visit %s: %w", id, ErrNotFound)
	}

	return doc, nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM visits WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting visit %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("visit %s: %w", id, ErrNotFound)
	}

	return nil
}

// Query returns matching documents, most recently created first.
func (s *Store) Query(ctx context.Context, q Query) (visits []*visit.Visit, err error) {
	query := "SELECT document FROM visits"
	var args []interface{}
	var conditions []string

	if q.OrganizationID != "" {
		conditions = append(conditions, "organization_id = ?")
		args = append(args, q.OrganizationID)
	}
	if q.AgentID != "" {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, q.AgentID)
	}
	if q.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(q.Type))
	}
	if !q.From.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, q.From.UnixNano())
	}
	if !q.To.IsZero() {
		conditions = append(conditions, "created_at < ?")
		args = append(args, q.To.UnixNano())
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing visits: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning visit: %w", err)
		}
		v, err := decode(data)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating visits: %w", err)
	}

	return visits, nil
}

func (s *Store) byClientID(ctx context.Context, orgID, clientID string) (*visit.Visit, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT document FROM visits WHERE organization_id = ? AND client_id = ?",
		orgID, clientID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up client id %s: %w", clientID, err)
	}
	return decode(data)
}

func decode(data string) (*visit.Visit, error) {
	var v visit.Visit
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("decoding visit document: %w", err)
	}
	return &v, nil
}
