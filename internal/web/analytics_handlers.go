package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/evcraddock/vigia/internal/analytics"
	"github.com/evcraddock/vigia/internal/auth"
	"github.com/evcraddock/vigia/internal/visit"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// analyticsVisits loads the visits an analytics request covers. It writes
// the error response and returns false when the request is refused.
func (s *Server) analyticsVisits(w http.ResponseWriter, r *http.Request) ([]*visit.Visit, bool) {
	if r.Method != http.MethodGet {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	user := auth.UserFromContext(r.Context())
	if !user.CanViewAnalytics() {
		apiError(w, "supervisor access required", http.StatusForbidden)
		return nil, false
	}

	q, code, err := scopedQuery(r, user)
	if err != nil {
		apiError(w, err.Error(), code)
		return nil, false
	}

	visits, err := s.docs.Query(r.Context(), q)
	if err != nil {
		apiError(w, fmt.Sprintf("listing visits: %v", err), http.StatusInternalServerError)
		return nil, false
	}
	return visits, true
}

// handleDashboard returns the summary indicators.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	visits, ok := s.analyticsVisits(w, r)
	if !ok {
		return
	}
	apiJSON(w, analytics.Summarize(visits), http.StatusOK)
}

// handleMap returns visits aggregated into S2 cells.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	level := analytics.DefaultCellLevel
	if l := r.URL.Query().Get("level"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			apiError(w, "level must be a number", http.StatusBadRequest)
			return
		}
		level = n
	}

	visits, ok := s.analyticsVisits(w, r)
	if !ok {
		return
	}

	cells, err := analytics.MapCells(visits, level)
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cells == nil {
		cells = make([]analytics.Cell, 0)
	}
	apiJSON(w, cells, http.StatusOK)
}

// handleGeoJSON returns visits as a GeoJSON FeatureCollection.
func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	visits, ok := s.analyticsVisits(w, r)
	if !ok {
		return
	}

	data, err := analytics.GeoJSON(visits)
	if err != nil {
		apiError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if _, err := w.Write(data); err != nil {
		fmt.Printf("warning: writing geojson: %v\n", err)
	}
}

// handleExport returns an XLSX workbook of the visits.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	visits, ok := s.analyticsVisits(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := analytics.WriteWorkbook(&buf, visits); err != nil {
		apiError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	name := fmt.Sprintf("vigia-visits-%s.xlsx", s.now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		fmt.Printf("warning: writing export: %v\n", err)
	}
}
