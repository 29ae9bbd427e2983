// Package client provides an HTTP client for the vigia backend API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/evcraddock/vigia/internal/analytics"
	"github.com/evcraddock/vigia/internal/auth"
	"github.com/evcraddock/vigia/internal/visit"
)

var (
	// ErrPermissionDenied is returned for 401 and 403 responses.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnreachable is returned when the backend cannot be contacted.
	ErrUnreachable = errors.New("backend unreachable")
)

// Client is an HTTP client for the vigia API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ListOptions controls filtering for ListVisits.
type ListOptions struct {
	OrganizationID string
	AgentID        string
	Type           visit.Type
	From           time.Time
	To             time.Time
	Limit          int
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.OrganizationID != "" {
		q.Set("organization_id", o.OrganizationID)
	}
	if o.AgentID != "" {
		q.Set("agent_id", o.AgentID)
	}
	if o.Type != "" {
		q.Set("type", string(o.Type))
	}
	if !o.From.IsZero() {
		q.Set("from", o.From.UTC().Format(time.RFC3339))
	}
	if !o.To.IsZero() {
		q.Set("to", o.To.UTC().Format(time.RFC3339))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	return q
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// Ping checks that the backend answers an authenticated read.
func (c *Client) Ping(ctx context.Context) error {
	var visits []*visit.Visit
	return c.get(ctx, "/api/visits?limit=1", &visits)
}

// ListVisits returns remote visits, most recently created first.
func (c *Client) ListVisits(ctx context.Context, opts ListOptions) ([]*visit.Visit, error) {
	var visits []*visit.Visit
	if err := c.get(ctx, withQuery("/api/visits", opts.values()), &visits); err != nil {
		return nil, err
	}
	return visits, nil
}

// CreateVisit creates a remote visit document and returns it with its remote id.
func (c *Client) CreateVisit(ctx context.Context, v *visit.Visit) (*visit.Visit, error) {
	var created visit.Visit
	if err := c.send(ctx, http.MethodPost, "/api/visits", v, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetVisit returns a remote visit.
func (c *Client) GetVisit(ctx context.Context, id string) (*visit.Visit, error) {
	var v visit.Visit
	if err := c.get(ctx, "/api/visits/"+url.PathEscape(id), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateVisit patches a remote visit.
func (c *Client) UpdateVisit(ctx context.Context, id string, patch visit.Patch) (*visit.Visit, error) {
	var v visit.Visit
	if err := c.send(ctx, http.MethodPatch, "/api/visits/"+url.PathEscape(id), patch, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateVisitPhotos replaces the photo list of a remote visit.
func (c *Client) UpdateVisitPhotos(ctx context.Context, id string, photos []string) (*visit.Visit, error) {
	return c.UpdateVisit(ctx, id, visit.PhotosPatch(photos))
}

// DeleteVisit removes a remote visit and its photos.
func (c *Client) DeleteVisit(ctx context.Context, id string) error {
	return c.doDelete(ctx, "/api/visits/"+url.PathEscape(id))
}

// UploadPhoto stores a photo under a remote visit and returns its public URL.
func (c *Client) UploadPhoto(ctx context.Context, visitID, name, mime string, data []byte) (string, error) {
	path := fmt.Sprintf("/api/storage/visits/%s/photos/%s", url.PathEscape(visitID), url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mime)

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// AnalyticsOptions scopes dashboard, map and export requests.
type AnalyticsOptions struct {
	OrganizationID string
	From           time.Time
	To             time.Time
}

func (o AnalyticsOptions) values() url.Values {
	return ListOptions{OrganizationID: o.OrganizationID, From: o.From, To: o.To}.values()
}

// Dashboard returns the summary for an organization.
func (c *Client) Dashboard(ctx context.Context, opts AnalyticsOptions) (*analytics.Summary, error) {
	var s analytics.Summary
	if err := c.get(ctx, withQuery("/api/dashboard", opts.values()), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// MapCells returns visits aggregated into S2 cells at level.
func (c *Client) MapCells(ctx context.Context, opts AnalyticsOptions, level int) ([]analytics.Cell, error) {
	q := opts.values()
	q.Set("level", strconv.Itoa(level))
	var cells []analytics.Cell
	if err := c.get(ctx, withQuery("/api/map", q), &cells); err != nil {
		return nil, err
	}
	return cells, nil
}

// Export streams the XLSX export into w.
func (c *Client) Export(ctx context.Context, opts AnalyticsOptions, w io.Writer) error {
	return c.download(ctx, withQuery("/api/export.xlsx", opts.values()), w)
}

// ExportGeoJSON streams the GeoJSON export into w.
func (c *Client) ExportGeoJSON(ctx context.Context, opts AnalyticsOptions, w io.Writer) error {
	return c.download(ctx, withQuery("/api/map.geojson", opts.values()), w)
}

// Me returns the user the API key belongs to.
func (c *Client) Me(ctx context.Context) (*auth.User, error) {
	var u auth.User
	if err := c.get(ctx, "/api/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListOrganizations returns all organizations (admin only).
func (c *Client) ListOrganizations(ctx context.Context) ([]*auth.Organization, error) {
	var orgs []*auth.Organization
	if err := c.get(ctx, "/api/organizations", &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// CreateOrganization adds an organization (admin only).
func (c *Client) CreateOrganization(ctx context.Context, name string) (*auth.Organization, error) {
	var org auth.Organization
	if err := c.send(ctx, http.MethodPost, "/api/organizations", map[string]string{"name": name}, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// ListUsers returns users of an organization; empty means the caller's own.
func (c *Client) ListUsers(ctx context.Context, orgID string) ([]*auth.User, error) {
	q := url.Values{}
	if orgID != "" {
		q.Set("organization_id", orgID)
	}
	var users []*auth.User
	if err := c.get(ctx, withQuery("/api/users", q), &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUserRequest is the body of POST /api/users.
type CreateUserRequest struct {
	OrganizationID string    `json:"organization_id,omitempty"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           auth.Role `json:"role"`
}

// CreateUserResponse is the response from POST /api/users. APIKey is only
// set when no invite mail was sent.
type CreateUserResponse struct {
	User    *auth.User `json:"user"`
	APIKey  string     `json:"api_key,omitempty"`
	Invited bool       `json:"invited"`
}

// CreateUser adds a user and issues their first API key.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*CreateUserResponse, error) {
	var resp CreateUserResponse
	if err := c.send(ctx, http.MethodPost, "/api/users", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteUser removes a user and revokes their keys.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.doDelete(ctx, "/api/users/"+url.PathEscape(id))
}

// APIKey is a key as listed by /api/keys (never the raw key).
type APIKey struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	KeyPrefix  string  `json:"key_prefix"`
	CreatedAt  string  `json:"created_at,omitempty"`
	LastUsedAt *string `json:"last_used_at,omitempty"`
}

// ListKeys returns the caller's API keys.
func (c *Client) ListKeys(ctx context.Context) ([]APIKey, error) {
	var keys []APIKey
	if err := c.get(ctx, "/api/keys", &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// CreateKey issues a new API key for the caller and returns the raw key.
func (c *Client) CreateKey(ctx context.Context, name string) (string, *APIKey, error) {
	var resp struct {
		Key    string `json:"key"`
		APIKey APIKey `json:"api_key"`
	}
	if err := c.send(ctx, http.MethodPost, "/api/keys", map[string]string{"name": name}, &resp); err != nil {
		return "", nil, err
	}
	return resp.Key, &resp.APIKey, nil
}

// DeleteKey revokes one of the caller's API keys.
func (c *Client) DeleteKey(ctx context.Context, id int64) error {
	return c.doDelete(ctx, fmt.Sprintf("/api/keys/%d", id))
}

// get performs a GET request and decodes the response.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

// send performs a request with a JSON body and decodes the response.
func (c *Client) send(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

// doDelete performs a DELETE request.
func (c *Client) doDelete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, nil)
}

// download performs a GET request and copies the raw body into w.
func (c *Client) download(ctx context.Context, path string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.roundTrip(req)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return statusError(resp.StatusCode, body)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	return nil
}

// do executes an HTTP request with auth header and handles errors.
func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.roundTrip(req)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return resp, nil
}

func closeBody(resp *http.Response) {
	if cerr := resp.Body.Close(); cerr != nil {
		fmt.Printf("warning: closing response body: %v\n", cerr)
	}
}

// statusError turns an error response into an error, preferring the
// server's {"error": "..."} message.
func statusError(code int, body []byte) error {
	msg := http.StatusText(code)
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		msg = errResp.Error
	} else if text := string(bytes.TrimSpace(body)); text != "" && len(text) < 200 {
		msg = text
	}

	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
	}
	if code >= 500 {
		return fmt.Errorf("server error: %s", msg)
	}
	return fmt.Errorf("%s", msg)
}
