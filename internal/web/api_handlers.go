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
	"github.com/evcraddock/vigia/internal/docstore"
	"github.com/evcraddock/vigia/internal/events"
	"github.com/evcraddock/vigia/internal/metrics"
	"github.com/evcraddock/vigia/internal/photo"
	"github.com/evcraddock/vigia/internal/visit"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// handleVisitsRoute routes /api/visits requests.
func (s *Server) handleVisitsRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/visits")
	path = strings.TrimPrefix(path, "/")

	// /api/visits: list or create
	if path == "" {
		switch r.Method {
		case http.MethodGet:
			s.apiListVisits(w, r)
		case http.MethodPost:
			s.apiCreateVisit(w, r)
		default:
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if strings.Contains(path, "/") {
		apiError(w, "not found", http.StatusNotFound)
		return
	}

	// /api/visits/{id}
	switch r.Method {
	case http.MethodGet:
		s.apiGetVisit(w, r, path)
	case http.MethodPatch:
		s.apiPatchVisit(w, r, path)
	case http.MethodDelete:
		s.apiDeleteVisit(w, r, path)
	default:
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// parseTime accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

// scopedQuery reads the organization and time range filters shared by the
// list and analytics endpoints. Non-admins are pinned to their organization.
func scopedQuery(r *http.Request, user *auth.User) (docstore.Query, int, error) {
	q := docstore.Query{OrganizationID: r.URL.Query().Get("organization_id")}

	if user.Role != auth.RoleAdmin {
		if q.OrganizationID != "" && q.OrganizationID != user.OrganizationID {
			return q, http.StatusForbidden, errors.New("organization access denied")
		}
		q.OrganizationID = user.OrganizationID
	}

	for _, f := range []struct {
		name string
		dst  *time.Time
	}{{"from", &q.From}, {"to", &q.To}} {
		value := r.URL.Query().Get(f.name)
		if value == "" {
			continue
		}
		t, err := parseTime(value)
		if err != nil {
			return q, http.StatusBadRequest, fmt.Errorf("%s must be RFC 3339 or YYYY-MM-DD", f.name)
		}
		*f.dst = t
	}
	return q, 0, nil
}

// apiListVisits returns visits, most recently created first.
func (s *Server) apiListVisits(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	q, code, err := scopedQuery(r, user)
	if err != nil {
		apiError(w, err.Error(), code)
		return
	}
	q.AgentID = r.URL.Query().Get("agent_id")

	if t := r.URL.Query().Get("type"); t != "" {
		if !visit.Type(t).IsValid() {
			apiError(w, "type must be routine or liraa", http.StatusBadRequest)
			return
		}
		q.Type = visit.Type(t)
	}

	q.Limit = defaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > maxListLimit {
			apiError(w, fmt.Sprintf("limit must be 1-%d", maxListLimit), http.StatusBadRequest)
			return
		}
		q.Limit = n
	}

	visits, err := s.docs.Query(r.Context(), q)
	if err != nil {
		apiError(w, fmt.Sprintf("listing visits: %v", err), http.StatusInternalServerError)
		return
	}
	if visits == nil {
		visits = make([]*visit.Visit, 0)
	}

	apiJSON(w, visits, http.StatusOK)
}

// apiCreateVisit stores a visit sent by a field device. A repeated create
// for the same local id answers with the stored document, photos included.
func (s *Server) apiCreateVisit(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var v visit.Visit
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if v.OrganizationID == "" {
		v.OrganizationID = user.OrganizationID
	}
	if !user.CanAccessOrganization(v.OrganizationID) {
		apiError(w, "organization access denied", http.StatusForbidden)
		return
	}
	if v.AgentID == "" {
		v.AgentID = user.ID
	}
	if user.Role == auth.RoleAgent && v.AgentID != user.ID {
		apiError(w, "agents can only record their own visits", http.StatusForbidden)
		return
	}
	for _, p := range v.Photos {
		if !photo.IsRemote(p) {
			apiError(w, "photos must be uploaded to storage before they are referenced", http.StatusBadRequest)
			return
		}
	}
	if v.Status == "" {
		v.Status = visit.Completed
	}
	if err := v.Validate(); err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, created, err := s.docs.Create(r.Context(), &v)
	if err != nil {
		apiError(w, fmt.Sprintf("creating visit: %v", err), http.StatusInternalServerError)
		return
	}
	if !created {
		slog.Info("visit create repeated", "visit", doc.ID, "client_id", v.ID)
		apiJSON(w, doc, http.StatusOK)
		return
	}

	metrics.VisitsCreated.WithLabelValues(string(doc.Type)).Inc()
	s.publish(r.Context(), events.Created(doc, s.now().UTC()))
	slog.Info("visit created", "visit", doc.ID, "client_id", v.ID, "organization", doc.OrganizationID, "type", doc.Type)

	apiJSON(w, doc, http.StatusCreated)
}

// loadVisit fetches a visit the caller may read, writing the error response
// when it cannot.
func (s *Server) loadVisit(w http.ResponseWriter, r *http.Request, id string) (*visit.Visit, bool) {
	v, err := s.docs.Get(r.Context(), id)
	if errors.Is(err, docstore.ErrNotFound) {
		apiError(w, "visit not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		apiError(w, fmt.Sprintf("loading visit: %v", err), http.StatusInternalServerError)
		return nil, false
	}
	// Other organizations' visits are reported as missing.
	if !auth.UserFromContext(r.Context()).CanAccessOrganization(v.OrganizationID) {
		apiError(w, "visit not found", http.StatusNotFound)
		return nil, false
	}
	return v, true
}

// canModify reports whether user may edit or delete v. Agents only touch
// their own visits.
func canModify(user *auth.User, v *visit.Visit) bool {
	if user.Role == auth.RoleAgent {
		return v.AgentID == user.ID
	}
	return user.CanAccessOrganization(v.OrganizationID)
}

// apiGetVisit returns a single visit.
func (s *Server) apiGetVisit(w http.ResponseWriter, r *http.Request, id string) {
	v, ok := s.loadVisit(w, r, id)
	if !ok {
		return
	}
	apiJSON(w, v, http.StatusOK)
}

// apiPatchVisit updates the editable fields of a visit.
func (s *Server) apiPatchVisit(w http.ResponseWriter, r *http.Request, id string) {
	v, ok := s.loadVisit(w, r, id)
	if !ok {
		return
	}
	if !canModify(auth.UserFromContext(r.Context()), v) {
		apiError(w, "cannot modify this visit", http.StatusForbidden)
		return
	}

	var patch visit.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if patch.Empty() {
		apiError(w, "nothing to update", http.StatusBadRequest)
		return
	}
	if patch.Photos != nil {
		for _, p := range *patch.Photos {
			if !photo.IsRemote(p) {
				apiError(w, "photos must be uploaded to storage before they are referenced", http.StatusBadRequest)
				return
			}
		}
	}

	updated, err := s.docs.Update(r.Context(), id, patch)
	if err != nil {
		if visit.IsValidationError(err) {
			apiError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if errors.Is(err, docstore.ErrNotFound) {
			apiError(w, "visit not found", http.StatusNotFound)
			return
		}
		apiError(w, fmt.Sprintf("updating visit: %v", err), http.StatusInternalServerError)
		return
	}

	apiJSON(w, updated, http.StatusOK)
}

// apiDeleteVisit removes a visit and its stored photos.
func (s *Server) apiDeleteVisit(w http.ResponseWriter, r *http.Request, id string) {
	v, ok := s.loadVisit(w, r, id)
	if !ok {
		return
	}
	if !canModify(auth.UserFromContext(r.Context()), v) {
		apiError(w, "cannot delete this visit", http.StatusForbidden)
		return
	}

	if err := s.docs.Delete(r.Context(), id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			apiError(w, "visit not found", http.StatusNotFound)
			return
		}
		apiError(w, fmt.Sprintf("deleting visit: %v", err), http.StatusInternalServerError)
		return
	}
	if err := s.objects.DeletePrefix("visits/" + id); err != nil {
		slog.Warn("deleting visit photos", "visit", id, "error", err)
	}

	metrics.VisitsDeleted.Inc()
	s.publish(r.Context(), events.Deleted(v, s.now().UTC()))

	apiJSON(w, map[string]interface{}{"id": id, "deleted": true}, http.StatusOK)
}
