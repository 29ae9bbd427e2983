// Package metrics holds the backend's Prometheus collectors.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	// VisitsCreated counts visits stored by the backend, by visit type.
	VisitsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vigia",
		Subsystem: "backend",
		Name:      "visits_created_total",
		Help:      "Total number of visits created, labeled by visit type.",
	}, []string{"type"})

	// VisitsDeleted counts deleted visits.
	VisitsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vigia",
		Subsystem: "backend",
		Name:      "visits_deleted_total",
		Help:      "Total number of visits deleted.",
	})

	// PhotosUploaded counts photos written to object storage.
	PhotosUploaded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vigia",
		Subsystem: "backend",
		Name:      "photos_uploaded_total",
		Help:      "Total number of visit photos uploaded.",
	})

	// PhotoUploadBytes is the size distribution of uploaded photos.
	PhotoUploadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vigia",
		Subsystem: "backend",
		Name:      "photo_upload_bytes",
		Help:      "Size of uploaded visit photos in bytes.",
		Buckets:   []float64{16 << 10, 64 << 10, 128 << 10, 256 << 10, 512 << 10, 768 << 10, 1 << 20},
	})
)

// Register registers the collectors with the default registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			VisitsCreated,
			VisitsDeleted,
			PhotosUploaded,
			PhotoUploadBytes,
		)
	})
}

// Handler returns the /metrics handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
