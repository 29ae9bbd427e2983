package visit

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports input that can never be recorded. It is returned
// before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks a complete visit record, including that its payload
// matches its type.
func (v *Visit) Validate() error {
	if err := validateCommon(v.Location, v.Neighborhood, v.AgentID, v.OrganizationID, v.Photos); err != nil {
		return err
	}

	switch v.Type {
	case Routine:
		if v.Routine == nil || v.LIRAa != nil {
			return invalid("type", "routine visit must carry only routine details")
		}
		return nil
	case LIRAa:
		if v.LIRAa == nil || v.Routine != nil {
			return invalid("type", "liraa visit must carry only liraa details")
		}
		return v.LIRAa.validate()
	default:
		return invalid("type", "unknown visit type %q", v.Type)
	}
}

func validateCommon(loc Location, neighborhood, agentID, orgID string, photos []string) error {
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return invalid("latitude", "%g is out of range", loc.Latitude)
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return invalid("longitude", "%g is out of range", loc.Longitude)
	}
	if loc.Accuracy < 0 {
		return invalid("accuracy", "must not be negative")
	}
	if strings.TrimSpace(neighborhood) == "" {
		return invalid("neighborhood", "is required")
	}
	if agentID == "" {
		return invalid("agent", "agent id is required")
	}
	if orgID == "" {
		return invalid("organization", "organization id is required")
	}
	for i, p := range photos {
		if strings.TrimSpace(p) == "" {
			return invalid("photos", "photo %d is empty", i)
		}
	}
	return nil
}

func (d *LIRAaDetails) validate() error {
	if !d.PropertyType.IsValid() {
		return invalid("property_type", "unknown property type %q", d.PropertyType)
	}
	if d.Refused && d.Closed {
		return invalid("outcome", "a property cannot be both refused and closed")
	}
	if err := validateContainers(d.Containers, d.PositiveContainers); err != nil {
		return err
	}
	if (d.Refused || d.Closed) && d.Containers.Total() > 0 {
		return invalid("containers", "refused or closed properties have no inspected containers")
	}
	return nil
}

// validateContainers enforces known categories, non-negative counts and
// positive <= total per category.
func validateContainers(total, positive Containers) error {
	for cat, n := range total {
		if !cat.IsValid() {
			return invalid("containers", "unknown category %q", cat)
		}
		if n < 0 {
			return invalid("containers", "%s count must not be negative", cat)
		}
	}
	for cat, n := range positive {
		if !cat.IsValid() {
			return invalid("positive_containers", "unknown category %q", cat)
		}
		if n < 0 {
			return invalid("positive_containers", "%s count must not be negative", cat)
		}
		if n > total[cat] {
			return invalid("positive_containers", "%s has %d positive of %d examined", cat, n, total[cat])
		}
	}
	return nil
}
