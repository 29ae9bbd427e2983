// Package syncer pushes locally recorded visits to the backend.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/evcraddock/vigia/internal/client"
	"github.com/evcraddock/vigia/internal/localstore"
	"github.com/evcraddock/vigia/internal/photo"
	"github.com/evcraddock/vigia/internal/visit"
)

// DefaultStaleAfter is how long a visit may stay in syncing before a new
// pass treats the previous attempt as interrupted.
const DefaultStaleAfter = 5 * time.Minute

// NothingPending is the result message of a pass with an empty queue.
const NothingPending = "No visits pending sync"

// PermissionMessage is stored on visits the backend refused to accept.
const PermissionMessage = "Permission denied: your account cannot write visits for this organization. Ask a supervisor to check your role, then retry."

var (
	// ErrSyncInProgress is returned when a pass is already running.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrBackendUnreachable is returned when the connectivity probe fails.
	ErrBackendUnreachable = errors.New("backend unreachable, check your connection and try again")
)

// Backend is the remote side of the sync.
type Backend interface {
	Ping(ctx context.Context) error
	CreateVisit(ctx context.Context, v *visit.Visit) (*visit.Visit, error)
	GetVisit(ctx context.Context, remoteID string) (*visit.Visit, error)
	UploadPhoto(ctx context.Context, remoteID, name, mime string, data []byte) (string, error)
	UpdateVisitPhotos(ctx context.Context, remoteID string, photos []string) (*visit.Visit, error)
	UpdateVisit(ctx context.Context, remoteID string, patch visit.Patch) (*visit.Visit, error)
	DeleteVisit(ctx context.Context, remoteID string) error
}

// Result is the outcome of a sync pass.
type Result struct {
	Success bool   `json:"success"`
	Synced  int    `json:"synced"`
	Errors  int    `json:"errors"`
	Message string `json:"message,omitempty"`
}

// Engine drains the local sync queue into a Backend, one visit at a time.
type Engine struct {
	store   *localstore.Store
	backend Backend
	running atomic.Bool

	// StaleAfter bounds how long a visit may stay in syncing.
	StaleAfter time.Duration

	now func() time.Time
}

// New creates a sync engine.
func New(store *localstore.Store, backend Backend) *Engine {
	return &Engine{
		store:      store,
		backend:    backend,
		StaleAfter: DefaultStaleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SyncAll pushes every visit queued when the pass starts. Visits enqueued
// while it runs wait for the next pass. Per-visit failures are recorded on
// the visit and counted, they never stop the pass.
func (e *Engine) SyncAll(ctx context.Context) (Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return Result{}, ErrSyncInProgress
	}
	defer e.running.Store(false)

	recovered, err := e.store.RecoverStale(ctx, e.StaleAfter, e.now())
	if err != nil {
		return Result{}, fmt.Errorf("recovering stale visits: %w", err)
	}
	if len(recovered) > 0 {
		slog.Info("re-queued interrupted syncs", "count", len(recovered))
	}

	snapshot, err := e.store.Queue(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reading sync queue: %w", err)
	}
	if len(snapshot) == 0 {
		return Result{Success: true, Message: NothingPending}, nil
	}

	var res Result
	for _, id := range snapshot {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		ok, err := e.syncOne(ctx, id)
		if err != nil {
			return res, err
		}
		switch {
		case ok == nil:
			// gone from the local list
		case *ok:
			res.Synced++
		default:
			res.Errors++
		}
	}

	res.Success = res.Errors == 0
	res.Message = fmt.Sprintf("%d synced, %d failed", res.Synced, res.Errors)
	slog.Info("sync pass finished", "synced", res.Synced, "errors", res.Errors)
	return res, nil
}

// RetrySyncVisit probes the backend and pushes one visit again. It reports
// false with a nil error when the visit ends in the error state. A synced
// visit only gets the inline photos it still holds uploaded to its remote
// document; it stays synced whatever the outcome.
func (e *Engine) RetrySyncVisit(ctx context.Context, id string) (bool, error) {
	v, err := e.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if err := e.backend.Ping(ctx); err != nil {
		if errors.Is(err, client.ErrPermissionDenied) {
			return false, err
		}
		return false, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}

	if !e.running.CompareAndSwap(false, true) {
		return false, ErrSyncInProgress
	}
	defer e.running.Store(false)

	if v.SyncStatus == visit.SyncSynced && v.RemoteID != "" {
		return e.pushKeptPhotos(ctx, v)
	}

	ok, err := e.syncOne(ctx, id)
	if err != nil {
		return false, err
	}
	if ok == nil {
		return false, fmt.Errorf("visit %s: %w", id, localstore.ErrNotFound)
	}
	return *ok, nil
}

// RetryFailed retries every visit in the error state once.
func (e *Engine) RetryFailed(ctx context.Context) (Result, error) {
	visits, err := e.store.ListAll(ctx)
	if err != nil {
		return Result{}, err
	}
	var failed []string
	for _, v := range visits {
		if v.SyncStatus == visit.SyncError {
			failed = append(failed, v.ID)
		}
	}
	if len(failed) == 0 {
		return Result{Success: true, Message: "No failed visits to retry"}, nil
	}

	var res Result
	for _, id := range failed {
		ok, err := e.RetrySyncVisit(ctx, id)
		if err != nil {
			return res, err
		}
		if ok {
			res.Synced++
		} else {
			res.Errors++
		}
	}
	res.Success = res.Errors == 0
	res.Message = fmt.Sprintf("%d synced, %d failed", res.Synced, res.Errors)
	return res, nil
}

// DeleteVisit removes a visit locally. Synced visits are first deleted on
// the backend; a remote failure is logged and does not block the local removal.
func (e *Engine) DeleteVisit(ctx context.Context, id string) error {
	v, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if v.RemoteID != "" {
		if err := e.backend.DeleteVisit(ctx, v.RemoteID); err != nil {
			slog.Warn("remote delete failed", "visit", id, "remote_id", v.RemoteID, "error", err)
		}
	}
	return e.store.Remove(ctx, id)
}

// UpdateVisit applies an edit locally. Synced visits also get the edit on
// the backend, best effort.
func (e *Engine) UpdateVisit(ctx context.Context, id string, patch visit.Patch) (*visit.Visit, error) {
	v, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(v, e.now()); err != nil {
		return nil, err
	}
	if err := e.store.Update(ctx, v); err != nil {
		return nil, err
	}

	if v.RemoteID != "" {
		remote := patch
		if patch.Photos != nil {
			// Inline photos only reach the backend through a sync.
			remote.Photos = visit.PhotosPatch(v.RemotePhotos()).Photos
		}
		if _, err := e.backend.UpdateVisit(ctx, v.RemoteID, remote); err != nil {
			slog.Warn("remote update failed", "visit", id, "remote_id", v.RemoteID, "error", err)
		}
	}
	return v, nil
}

// syncOne runs the single-visit path. It returns nil when the visit is no
// longer stored, otherwise whether it ended synced. The error is only set
// for local storage failures.
func (e *Engine) syncOne(ctx context.Context, id string) (*bool, error) {
	v, err := e.store.Get(ctx, id)
	if errors.Is(err, localstore.ErrNotFound) {
		if err := e.store.Dequeue(ctx, id); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	v.SyncStatus = visit.SyncSyncing
	v.SyncError = ""
	v.UpdatedAt = e.now()
	if err := e.store.Update(ctx, v); err != nil {
		return nil, err
	}
	if err := e.store.Dequeue(ctx, id); err != nil {
		return nil, err
	}

	remote, pending, syncErr := e.createRemote(ctx, v)

	ok := syncErr == nil
	if ok {
		v.SyncStatus = visit.SyncSynced
		v.RemoteID = remote.ID
		v.Photos = append(append([]string(nil), remote.Photos...), pending...)
	} else {
		slog.Warn("visit sync failed", "visit", id, "error", syncErr)
		v.SyncStatus = visit.SyncError
		v.SyncError = errorMessage(syncErr)
	}
	v.UpdatedAt = e.now()
	if err := e.store.Update(ctx, v); err != nil {
		return nil, err
	}
	return &ok, nil
}

// createRemote writes v to the backend in two phases: the document with its
// remote photos, then any inline photos uploaded under the new remote id.
// A failure in the second phase leaves the document without the new photos
// and returns them as pending so they stay on the device for a retry.
func (e *Engine) createRemote(ctx context.Context, v *visit.Visit) (*visit.Visit, []string, error) {
	doc := v.Clone()
	doc.Photos = v.RemotePhotos()
	if doc.Photos == nil {
		doc.Photos = []string{}
	}
	doc.SyncError = ""

	created, err := e.backend.CreateVisit(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	if created.ID == "" {
		return nil, nil, errors.New("backend returned a visit without an id")
	}

	inline := v.InlinePhotos()
	if len(inline) == 0 {
		return created, nil, nil
	}

	updated, err := e.uploadPhotos(ctx, created, inline)
	if err != nil {
		slog.Warn("photo upload failed, keeping photos on the device",
			"visit", v.ID, "remote_id", created.ID, "pending", len(inline), "error", err)
		return created, inline, nil
	}
	return updated, nil, nil
}

// pushKeptPhotos uploads the inline photos a synced visit kept after an
// earlier upload failure. Failures are logged and leave the visit as it was.
func (e *Engine) pushKeptPhotos(ctx context.Context, v *visit.Visit) (bool, error) {
	inline := v.InlinePhotos()
	if len(inline) == 0 {
		return true, nil
	}

	remote, err := e.backend.GetVisit(ctx, v.RemoteID)
	if err != nil {
		slog.Warn("loading remote visit failed", "visit", v.ID, "remote_id", v.RemoteID, "error", err)
		return false, nil
	}
	updated, err := e.uploadPhotos(ctx, remote, inline)
	if err != nil {
		slog.Warn("photo upload failed, keeping photos on the device",
			"visit", v.ID, "remote_id", v.RemoteID, "pending", len(inline), "error", err)
		return false, nil
	}

	v.Photos = append([]string(nil), updated.Photos...)
	v.UpdatedAt = e.now()
	if err := e.store.Update(ctx, v); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) uploadPhotos(ctx context.Context, created *visit.Visit, inline []string) (*visit.Visit, error) {
	photos := append([]string(nil), created.Photos...)
	for i, ref := range inline {
		mime, data, err := photo.DecodeDataURL(ref)
		if err != nil {
			return nil, fmt.Errorf("photo %d: %w", i, err)
		}
		mime, data, err = photo.Compress(data, mime, photo.MaxUploadBytes)
		if err != nil {
			return nil, fmt.Errorf("photo %d: %w", i, err)
		}
		url, err := e.backend.UploadPhoto(ctx, created.ID, photo.FileName(e.now(), mime), mime, data)
		if err != nil {
			return nil, fmt.Errorf("uploading photo %d: %w", i, err)
		}
		photos = append(photos, url)
	}

	updated, err := e.backend.UpdateVisitPhotos(ctx, created.ID, photos)
	if err != nil {
		return nil, fmt.Errorf("updating photo list: %w", err)
	}
	return updated, nil
}

func errorMessage(err error) string {
	if errors.Is(err, client.ErrPermissionDenied) {
		return PermissionMessage
	}
	return err.Error()
}
