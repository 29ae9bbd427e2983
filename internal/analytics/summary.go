// Package analytics derives dashboard figures, LIRAa indicators, map
// aggregates and exports from recorded visits.
package analytics

import (
	"sort"

	"github.com/evcraddock/vigia/internal/visit"
)

// InfestationClass grades a building infestation index.
type InfestationClass string

const (
	Satisfactory InfestationClass = "satisfactory"
	Alert        InfestationClass = "alert"
	Risk         InfestationClass = "risk"
)

// Classify grades a building infestation index: below 1% is satisfactory,
// below 4% is alert, anything higher is risk.
func Classify(buildingIndex float64) InfestationClass {
	switch {
	case buildingIndex < 1:
		return Satisfactory
	case buildingIndex < 4:
		return Alert
	default:
		return Risk
	}
}

// Indicators are the LIRAa survey indices over a set of LIRAa visits.
type Indicators struct {
	Properties         int              `json:"properties"`
	Inspected          int              `json:"inspected"`
	Refused            int              `json:"refused"`
	Closed             int              `json:"closed"`
	PositiveProperties int              `json:"positive_properties"`
	Containers         int              `json:"containers"`
	PositiveContainers int              `json:"positive_containers"`
	ContainerIndex     float64          `json:"container_index"`
	BuildingIndex      float64          `json:"building_index"`
	BreteauIndex       float64          `json:"breteau_index"`
	Class              InfestationClass `json:"class,omitempty"`
}

// NeighborhoodIndicators are Indicators for one neighborhood.
type NeighborhoodIndicators struct {
	Neighborhood string `json:"neighborhood"`
	Indicators
}

// Summary is the dashboard view of a set of visits.
type Summary struct {
	Total             int                      `json:"total"`
	ByType            map[visit.Type]int       `json:"by_type"`
	ByRisk            map[visit.RiskLevel]int  `json:"by_risk"`
	BySyncStatus      map[visit.SyncStatus]int `json:"by_sync_status"`
	PositiveVisits    int                      `json:"positive_visits"`
	AverageLIRAaIndex float64                  `json:"average_liraa_index"`
	LIRAa             Indicators               `json:"liraa"`
	Neighborhoods     []NeighborhoodIndicators `json:"neighborhoods"`
}

// Summarize computes the dashboard summary.
func Summarize(visits []*visit.Visit) *Summary {
	s := &Summary{
		Total:        len(visits),
		ByType:       make(map[visit.Type]int),
		ByRisk:       make(map[visit.RiskLevel]int),
		BySyncStatus: make(map[visit.SyncStatus]int),
	}

	overall := newAccumulator()
	byHood := make(map[string]*accumulator)
	var indexSum float64
	var liraaCount int

	for _, v := range visits {
		s.ByType[v.Type]++
		s.BySyncStatus[v.SyncStatus]++
		if IsPositive(v) {
			s.PositiveVisits++
		}

		switch v.Type {
		case visit.Routine:
			if v.Routine != nil {
				s.ByRisk[v.Routine.RiskLevel]++
			}
		case visit.LIRAa:
			if v.LIRAa == nil {
				continue
			}
			liraaCount++
			indexSum += v.LIRAa.LIRAaIndex
			overall.add(v.LIRAa)
			acc, ok := byHood[v.Neighborhood]
			if !ok {
				acc = newAccumulator()
				byHood[v.Neighborhood] = acc
			}
			acc.add(v.LIRAa)
		}
	}

	if liraaCount > 0 {
		s.AverageLIRAaIndex = indexSum / float64(liraaCount)
	}
	s.LIRAa = overall.indicators()

	s.Neighborhoods = make([]NeighborhoodIndicators, 0, len(byHood))
	for name, acc := range byHood {
		s.Neighborhoods = append(s.Neighborhoods, NeighborhoodIndicators{
			Neighborhood: name,
			Indicators:   acc.indicators(),
		})
	}
	sort.Slice(s.Neighborhoods, func(i, j int) bool {
		return s.Neighborhoods[i].Neighborhood < s.Neighborhoods[j].Neighborhood
	})

	return s
}

// IsPositive reports whether a visit found the vector: larvae or pupae on
// a routine visit, any positive container on a LIRAa visit.
func IsPositive(v *visit.Visit) bool {
	switch v.Type {
	case visit.Routine:
		return v.Routine != nil && (v.Routine.LarvaeFound || v.Routine.PupaeFound)
	case visit.LIRAa:
		return v.LIRAa != nil && v.LIRAa.Positive()
	default:
		return false
	}
}

type accumulator struct {
	in                 Indicators
	containers         visit.Containers
	positiveContainers visit.Containers
}

func newAccumulator() *accumulator {
	return &accumulator{
		containers:         visit.Containers{},
		positiveContainers: visit.Containers{},
	}
}

func (a *accumulator) add(d *visit.LIRAaDetails) {
	a.in.Properties++
	switch {
	case d.Refused:
		a.in.Refused++
		return
	case d.Closed:
		a.in.Closed++
		return
	case !d.Inspected:
		return
	}

	a.in.Inspected++
	if d.Positive() {
		a.in.PositiveProperties++
	}
	for _, c := range visit.ContainerCategories {
		a.containers[c] += d.Containers[c]
		a.positiveContainers[c] += d.PositiveContainers[c]
	}
}

func (a *accumulator) indicators() Indicators {
	in := a.in
	in.Containers = a.containers.Total()
	in.PositiveContainers = a.positiveContainers.Total()
	in.ContainerIndex = visit.LIRAaIndex(a.containers, a.positiveContainers)
	if in.Inspected > 0 {
		in.BuildingIndex = 100 * float64(in.PositiveProperties) / float64(in.Inspected)
		in.BreteauIndex = 100 * float64(in.PositiveContainers) / float64(in.Inspected)
		in.Class = Classify(in.BuildingIndex)
	}
	return in
}
