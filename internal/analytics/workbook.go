package analytics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/evcraddock/vigia/internal/visit"
)

// Sheet names in the exported workbook.
const (
	RoutineSheet = "Routine"
	LIRAaSheet   = "LIRAa"
)

var routineHeader = []string{
	"ID", "Captured", "Neighborhood", "Address", "Latitude", "Longitude", "Agent",
	"Risk", "Breeding sites", "Other site", "Larvae", "Pupae", "Control measures", "Observations",
}

var liraaHeader = []string{
	"ID", "Captured", "Neighborhood", "Address", "Latitude", "Longitude", "Agent",
	"Property type", "Inspected", "Refused", "Closed",
	"A1", "A2", "B", "C", "D1", "D2", "E", "Containers", "Positive containers",
	"Index (%)", "Larvae species", "Treatment", "Elimination", "Observations",
}

// WriteWorkbook writes an XLSX workbook with one sheet per visit type.
func WriteWorkbook(w io.Writer, visits []*visit.Visit) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Printf("warning: closing workbook: %v\n", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", RoutineSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(LIRAaSheet); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for sheet, header := range map[string][]string{RoutineSheet: routineHeader, LIRAaSheet: liraaHeader} {
		if err := writeRow(f, sheet, 1, toCells(header)); err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(len(header), 1)
		if err != nil {
			return fmt.Errorf("converting coordinates: %w", err)
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("setting header style: %w", err)
		}
	}

	routineRow, liraaRow := 2, 2
	for _, v := range visits {
		switch v.Type {
		case visit.Routine:
			if v.Routine == nil {
				continue
			}
			if err := writeRow(f, RoutineSheet, routineRow, routineCells(v)); err != nil {
				return err
			}
			routineRow++
		case visit.LIRAa:
			if v.LIRAa == nil {
				continue
			}
			if err := writeRow(f, LIRAaSheet, liraaRow, liraaCells(v)); err != nil {
				return err
			}
			liraaRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("converting coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func commonCells(v *visit.Visit) []interface{} {
	return []interface{}{
		v.ID,
		v.Timestamp.UTC().Format(time.RFC3339),
		v.Neighborhood,
		v.Location.Address,
		v.Location.Latitude,
		v.Location.Longitude,
		agentLabel(v),
	}
}

func routineCells(v *visit.Visit) []interface{} {
	r := v.Routine
	sites := make([]string, 0, 11)
	for _, s := range r.BreedingSites.Present() {
		sites = append(sites, string(s))
	}
	return append(commonCells(v),
		string(r.RiskLevel),
		strings.Join(sites, ", "),
		r.BreedingSites.Other,
		yesNo(r.LarvaeFound),
		yesNo(r.PupaeFound),
		strings.Join(r.ControlMeasures, ", "),
		v.Observations,
	)
}

func liraaCells(v *visit.Visit) []interface{} {
	l := v.LIRAa
	cells := append(commonCells(v),
		string(l.PropertyType),
		yesNo(l.Inspected),
		yesNo(l.Refused),
		yesNo(l.Closed),
	)
	for _, c := range visit.ContainerCategories {
		cells = append(cells, fmt.Sprintf("%d/%d", l.PositiveContainers[c], l.Containers[c]))
	}
	return append(cells,
		l.Containers.Total(),
		l.PositiveContainers.Total(),
		l.LIRAaIndex,
		strings.Join(l.LarvaeSpecies, ", "),
		yesNo(l.TreatmentApplied),
		yesNo(l.EliminationAction),
		v.Observations,
	)
}

func agentLabel(v *visit.Visit) string {
	if v.AgentName != "" {
		return v.AgentName
	}
	return v.AgentID
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
