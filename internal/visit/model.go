// Package visit provides the field visit domain model, its derived
// indicators and the factory that records new visits.
package visit

import (
	"fmt"
	"strings"
	"time"
)

// Type discriminates the visit payload.
type Type string

const (
	Routine Type = "routine"
	LIRAa   Type = "liraa"
)

// ValidTypes is the set of allowed visit types.
var ValidTypes = []Type{Routine, LIRAa}

// IsValid checks if a visit type is recognized.
func (t Type) IsValid() bool {
	for _, v := range ValidTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Label returns a human-readable label for the visit type.
func (t Type) Label() string {
	switch t {
	case Routine:
		return "Routine"
	case LIRAa:
		return "LIRAa"
	default:
		return string(t)
	}
}

// Status is the lifecycle status of a visit. Only Completed is produced.
type Status string

const Completed Status = "completed"

// SyncStatus tracks a visit's progress towards the backend.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// Location is where a visit was captured.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Address   string    `json:"address,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Agent identifies the field agent recording a visit.
type Agent struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	OrganizationID string `json:"organization_id"`
}

// Visit is a recorded property visit. Exactly one of Routine or LIRAa is
// set, matching Type.
type Visit struct {
	ID             string     `json:"id"`
	Type           Type       `json:"type"`
	Timestamp      time.Time  `json:"timestamp"`
	Location       Location   `json:"location"`
	Neighborhood   string     `json:"neighborhood"`
	AgentID        string     `json:"agent_id"`
	AgentName      string     `json:"agent_name"`
	OrganizationID string     `json:"organization_id"`
	Observations   string     `json:"observations"`
	Photos         []string   `json:"photos"`
	Status         Status     `json:"status"`
	SyncStatus     SyncStatus `json:"sync_status"`
	SyncError      string     `json:"sync_error,omitempty"`
	RemoteID       string     `json:"remote_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Routine *RoutineDetails `json:"routine,omitempty"`
	LIRAa   *LIRAaDetails   `json:"liraa,omitempty"`
}

// RoutineDetails is the payload of a routine visit.
type RoutineDetails struct {
	BreedingSites   BreedingSites `json:"breeding_sites"`
	LarvaeFound     bool          `json:"larvae_found"`
	PupaeFound      bool          `json:"pupae_found"`
	ControlMeasures []string      `json:"control_measures"`
	RiskLevel       RiskLevel     `json:"risk_level"`
}

// PropertyType classifies the inspected property in a LIRAa survey.
type PropertyType string

const (
	Residential    PropertyType = "residential"
	Commercial     PropertyType = "commercial"
	VacantLot      PropertyType = "vacant_lot"
	StrategicPoint PropertyType = "strategic_point"
	OtherProperty  PropertyType = "other"
)

// ValidPropertyTypes is the set of allowed property types.
var ValidPropertyTypes = []PropertyType{Residential, Commercial, VacantLot, StrategicPoint, OtherProperty}

// IsValid checks if a property type is recognized.
func (p PropertyType) IsValid() bool {
	for _, v := range ValidPropertyTypes {
		if p == v {
			return true
		}
	}
	return false
}

// LIRAaDetails is the payload of a LIRAa survey visit.
type LIRAaDetails struct {
	PropertyType       PropertyType `json:"property_type"`
	Inspected          bool         `json:"inspected"`
	Refused            bool         `json:"refused"`
	Closed             bool         `json:"closed"`
	Containers         Containers   `json:"containers"`
	PositiveContainers Containers   `json:"positive_containers"`
	LarvaeSpecies      []string     `json:"larvae_species"`
	TreatmentApplied   bool         `json:"treatment_applied"`
	EliminationAction  bool         `json:"elimination_action"`
	LIRAaIndex         float64      `json:"liraa_index"`
}

// Positive reports whether any container was found positive.
func (d *LIRAaDetails) Positive() bool {
	return d.PositiveContainers.Total() > 0
}

// Clone returns a deep copy of the visit so callers can mutate it freely.
func (v *Visit) Clone() *Visit {
	c := *v
	c.Photos = append([]string(nil), v.Photos...)
	if v.Routine != nil {
		r := *v.Routine
		r.ControlMeasures = append([]string(nil), v.Routine.ControlMeasures...)
		c.Routine = &r
	}
	if v.LIRAa != nil {
		l := *v.LIRAa
		l.Containers = v.LIRAa.Containers.clone()
		l.PositiveContainers = v.LIRAa.PositiveContainers.clone()
		l.LarvaeSpecies = append([]string(nil), v.LIRAa.LarvaeSpecies...)
		c.LIRAa = &l
	}
	return &c
}

// RemotePhotos returns the photo references that already point at remote URLs.
func (v *Visit) RemotePhotos() []string {
	var out []string
	for _, p := range v.Photos {
		if IsRemotePhoto(p) {
			out = append(out, p)
		}
	}
	return out
}

// InlinePhotos returns the photo references still carrying encoded image data.
func (v *Visit) InlinePhotos() []string {
	var out []string
	for _, p := range v.Photos {
		if !IsRemotePhoto(p) {
			out = append(out, p)
		}
	}
	return out
}

// IsRemotePhoto reports whether a photo reference is an http(s) URL.
func IsRemotePhoto(ref string) bool {
	return strings.HasPrefix(ref, "http")
}

// Summary returns a one-line description of the visit payload.
func (v *Visit) Summary() string {
	switch v.Type {
	case Routine:
		if v.Routine == nil {
			return "routine (no details)"
		}
		return fmt.Sprintf("risk %s", v.Routine.RiskLevel)
	case LIRAa:
		if v.LIRAa == nil {
			return "liraa (no details)"
		}
		return fmt.Sprintf("index %.1f%%", v.LIRAa.LIRAaIndex)
	default:
		return string(v.Type)
	}
}
