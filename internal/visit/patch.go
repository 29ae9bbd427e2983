package visit

import (
	"strings"
	"time"
)

// Patch holds the fields of a recorded visit that may change after capture.
// Nil fields are left alone.
type Patch struct {
	Photos       *[]string `json:"photos,omitempty"`
	Observations *string   `json:"observations,omitempty"`
	Neighborhood *string   `json:"neighborhood,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Photos == nil && p.Observations == nil && p.Neighborhood == nil
}

// Apply writes the patch onto v and stamps UpdatedAt.
func (p Patch) Apply(v *Visit, now time.Time) error {
	if p.Neighborhood != nil {
		if strings.TrimSpace(*p.Neighborhood) == "" {
			return invalid("neighborhood", "is required")
		}
		v.Neighborhood = *p.Neighborhood
	}
	if p.Observations != nil {
		v.Observations = *p.Observations
	}
	if p.Photos != nil {
		for i, ref := range *p.Photos {
			if ref == "" {
				return invalid("photos", "entry %d is empty", i)
			}
		}
		v.Photos = append([]string(nil), (*p.Photos)...)
	}
	v.UpdatedAt = now
	return nil
}

// PhotosPatch returns a patch that only replaces the photo list.
func PhotosPatch(photos []string) Patch {
	p := append([]string{}, photos...)
	return Patch{Photos: &p}
}
