// Package web provides the vigia backend HTTP API.
package web

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/evcraddock/vigia/internal/auth"
	"github.com/evcraddock/vigia/internal/docstore"
	"github.com/evcraddock/vigia/internal/email"
	"github.com/evcraddock/vigia/internal/events"
	"github.com/evcraddock/vigia/internal/logging"
	"github.com/evcraddock/vigia/internal/metrics"
	"github.com/evcraddock/vigia/internal/objectstore"
)

// Options configures optional server collaborators.
type Options struct {
	// BaseURL is the externally visible server URL, used in invites.
	BaseURL string
	SMTP    email.SMTPConfig
	// Events receives visit lifecycle events. Nil discards them.
	Events events.Publisher
}

// Server is the backend HTTP server.
type Server struct {
	docs    *docstore.Store
	objects *objectstore.Store
	orgs    *auth.OrganizationStore
	users   *auth.UserStore
	apiKeys *auth.APIKeyStore
	events  events.Publisher
	baseURL string
	smtp    email.SMTPConfig
	mux     *http.ServeMux
	handler http.Handler
	now     func() time.Time

	// sendMail delivers invite emails.
	sendMail func(to []string, subject, body string) error
}

// NewServer creates a backend server over a database opened with the server
// schema and an object store for photos.
func NewServer(d *sql.DB, objects *objectstore.Store, opts Options) *Server {
	pub := opts.Events
	if pub == nil {
		pub = events.Nop{}
	}

	s := &Server{
		docs:    docstore.New(d),
		objects: objects,
		orgs:    auth.NewOrganizationStore(d),
		users:   auth.NewUserStore(d),
		apiKeys: auth.NewAPIKeyStore(d),
		events:  pub,
		baseURL: opts.BaseURL,
		smtp:    opts.SMTP,
		mux:     http.NewServeMux(),
		now:     time.Now,
	}
	s.sendMail = func(to []string, subject, body string) error {
		return email.Send(s.smtp, to, subject, body)
	}

	metrics.Register()

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.HandleFunc("/storage/", s.handlePublicObject)

	s.mux.HandleFunc("/api/me", s.handleMe)
	s.mux.HandleFunc("/api/visits", s.handleVisitsRoute)
	s.mux.HandleFunc("/api/visits/", s.handleVisitsRoute)
	s.mux.HandleFunc("/api/storage/", s.handleUpload)
	s.mux.HandleFunc("/api/dashboard", s.handleDashboard)
	s.mux.HandleFunc("/api/map", s.handleMap)
	s.mux.HandleFunc("/api/map.geojson", s.handleGeoJSON)
	s.mux.HandleFunc("/api/export.xlsx", s.handleExport)
	s.mux.HandleFunc("/api/organizations", s.handleOrganizations)
	s.mux.HandleFunc("/api/users", s.handleUsersRoute)
	s.mux.HandleFunc("/api/users/", s.handleUsersRoute)
	s.mux.HandleFunc("/api/keys", s.handleKeysRoute)
	s.mux.HandleFunc("/api/keys/", s.handleKeysRoute)

	s.handler = logging.RequestLogger(auth.RequireAPIKey(s.apiKeys, s.mux))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "base_url", s.baseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("shutting down server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// handleMe returns the authenticated user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	apiJSON(w, auth.UserFromContext(r.Context()), http.StatusOK)
}

func (s *Server) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		slog.Warn("event publish failed", "event", e.Name, "visit", e.VisitID, "error", err)
	}
}
