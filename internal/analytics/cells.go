package analytics

import (
	"fmt"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"

	"github.com/evcraddock/vigia/internal/visit"
)

// DefaultCellLevel gives cells roughly 1km across.
const DefaultCellLevel = 13

// Cell aggregates the visits that fall in one S2 cell.
type Cell struct {
	ID          string          `json:"id"`
	Level       int             `json:"level"`
	Count       int             `json:"count"`
	Positive    int             `json:"positive"`
	HighestRisk visit.RiskLevel `json:"highest_risk,omitempty"`
	Latitude    float64         `json:"latitude"`
	Longitude   float64         `json:"longitude"`
}

type cellAcc struct {
	cell Cell
	sum  r3.Vector
}

// MapCells groups visits into S2 cells at level. Each cell carries the
// centroid of its visits rather than the cell center.
func MapCells(visits []*visit.Visit, level int) ([]Cell, error) {
	if level < 0 || level > s2.MaxLevel {
		return nil, fmt.Errorf("cell level must be 0-%d, got %d", s2.MaxLevel, level)
	}

	accs := make(map[s2.CellID]*cellAcc)
	for _, v := range visits {
		ll := s2.LatLngFromDegrees(v.Location.Latitude, v.Location.Longitude)
		id := s2.CellIDFromLatLng(ll).Parent(level)

		acc, ok := accs[id]
		if !ok {
			acc = &cellAcc{cell: Cell{ID: id.ToToken(), Level: level}}
			accs[id] = acc
		}
		acc.cell.Count++
		if IsPositive(v) {
			acc.cell.Positive++
		}
		if v.Type == visit.Routine && v.Routine != nil {
			if acc.cell.HighestRisk == "" || v.Routine.RiskLevel.Rank() > acc.cell.HighestRisk.Rank() {
				acc.cell.HighestRisk = v.Routine.RiskLevel
			}
		}
		acc.sum = acc.sum.Add(s2.PointFromLatLng(ll).Vector)
	}

	cells := make([]Cell, 0, len(accs))
	for _, acc := range accs {
		center := s2.LatLngFromPoint(s2.Point{Vector: acc.sum.Normalize()})
		acc.cell.Latitude = center.Lat.Degrees()
		acc.cell.Longitude = center.Lng.Degrees()
		cells = append(cells, acc.cell)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].ID < cells[j].ID })
	return cells, nil
}
