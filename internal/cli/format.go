package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/evcraddock/vigia/internal/analytics"
	"github.com/evcraddock/vigia/internal/localstore"
	"github.com/evcraddock/vigia/internal/syncer"
	"github.com/evcraddock/vigia/internal/visit"
)

// printJSON marshals v as indented JSON and writes it to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printVisitSummary prints a single visit in text format.
func printVisitSummary(v *visit.Visit) {
	fmt.Printf("%s visit %s\n", v.Type.Label(), v.ID)
	fmt.Printf("  Recorded:     %s\n", v.Timestamp.Local().Format("2006-01-02 15:04"))
	fmt.Printf("  Neighborhood: %s\n", v.Neighborhood)
	if v.Location.Address != "" {
		fmt.Printf("  Address:      %s\n", v.Location.Address)
	}
	fmt.Printf("  Location:     %.6f, %.6f (±%gm)\n", v.Location.Latitude, v.Location.Longitude, v.Location.Accuracy)
	if v.AgentName != "" {
		fmt.Printf("  Agent:        %s\n", v.AgentName)
	}

	switch v.Type {
	case visit.Routine:
		if d := v.Routine; d != nil {
			fmt.Printf("  Risk:         %s\n", formatRisk(d.RiskLevel))
			fmt.Printf("  Sites:        %s\n", formatSites(d.BreedingSites))
			fmt.Printf("  Larvae/pupae: %s/%s\n", yesNo(d.LarvaeFound), yesNo(d.PupaeFound))
			if len(d.ControlMeasures) > 0 {
				fmt.Printf("  Measures:     %s\n", strings.Join(d.ControlMeasures, ", "))
			}
		}
	case visit.LIRAa:
		if d := v.LIRAa; d != nil {
			fmt.Printf("  Property:     %s (%s)\n", d.PropertyType, liraaOutcome(d))
			fmt.Printf("  Containers:   %s\n", formatContainers(d.Containers))
			fmt.Printf("  Positive:     %s\n", formatContainers(d.PositiveContainers))
			fmt.Printf("  LIRAa index:  %.2f%%\n", d.LIRAaIndex)
			if len(d.LarvaeSpecies) > 0 {
				fmt.Printf("  Species:      %s\n", strings.Join(d.LarvaeSpecies, ", "))
			}
		}
	}

	if v.Observations != "" {
		fmt.Printf("  Notes:        %s\n", v.Observations)
	}
	if len(v.Photos) > 0 {
		fmt.Printf("  Photos:       %d (%d uploaded)\n", len(v.Photos), len(v.RemotePhotos()))
	}
	fmt.Printf("  Sync:         %s\n", formatSync(v))
	if v.RemoteID != "" {
		fmt.Printf("  Remote ID:    %s\n", v.RemoteID)
	}
}

// printVisitTable prints a list of visits as a formatted table.
func printVisitTable(visits []*visit.Visit) error {
	if len(visits) == 0 {
		fmt.Println("No visits found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tDATE\tTYPE\tNEIGHBORHOOD\tRESULT\tSYNC"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "--\t----\t----\t------------\t------\t----"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, v := range visits {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(v.ID), v.Timestamp.Local().Format("2006-01-02 15:04"), v.Type.Label(),
			truncate(v.Neighborhood, 24), visitResult(v), v.SyncStatus); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Printf("\nTotal: %d visits\n", len(visits))
	return nil
}

// printStats prints local store statistics.
func printStats(s *localstore.Stats) {
	fmt.Printf("Visits:       %d\n", s.Total)
	fmt.Printf("  Routine:    %d\n", s.ByType[visit.Routine])
	fmt.Printf("  LIRAa:      %d\n", s.ByType[visit.LIRAa])
	fmt.Printf("Pending sync: %d\n", s.PendingSync)
	for _, st := range []visit.SyncStatus{visit.SyncPending, visit.SyncSyncing, visit.SyncSynced, visit.SyncError} {
		fmt.Printf("  %-10s  %d\n", st+":", s.BySyncStatus[st])
	}
}

// printSyncResult prints the outcome of a sync pass.
func printSyncResult(r syncer.Result) {
	if r.Message != "" {
		fmt.Println(r.Message)
		return
	}
	mark := "✓"
	if !r.Success {
		mark = "✗"
	}
	fmt.Printf("%s Synced %d, failed %d\n", mark, r.Synced, r.Errors)
	if r.Errors > 0 {
		fmt.Println("\nRun 'vigia list --sync error' to see failures and 'vigia retry' to try again.")
	}
}

// printSummary prints the dashboard summary.
func printSummary(s *analytics.Summary) error {
	fmt.Printf("Visits:          %d (routine %d, LIRAa %d)\n", s.Total, s.ByType[visit.Routine], s.ByType[visit.LIRAa])
	fmt.Printf("Positive visits: %d\n", s.PositiveVisits)
	fmt.Printf("Risk:            low %d, medium %d, high %d, critical %d\n",
		s.ByRisk[visit.RiskLow], s.ByRisk[visit.RiskMedium], s.ByRisk[visit.RiskHigh], s.ByRisk[visit.RiskCritical])
	fmt.Printf("Avg LIRAa index: %.2f%%\n", s.AverageLIRAaIndex)
	printIndicators("LIRAa", s.LIRAa)

	if len(s.Neighborhoods) == 0 {
		return nil
	}
	fmt.Println("\nBy neighborhood:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "NEIGHBORHOOD\tPROPERTIES\tIIP\tIB\tCLASS"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, n := range s.Neighborhoods {
		if _, err := fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%s\n", truncate(n.Neighborhood, 24),
			n.Properties, n.BuildingIndex, n.BreteauIndex, n.Class); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return w.Flush()
}

func printIndicators(label string, in analytics.Indicators) {
	fmt.Printf("%s: %d properties, %d inspected, %d refused, %d closed\n",
		label, in.Properties, in.Inspected, in.Refused, in.Closed)
	fmt.Printf("  containers %d (%d positive), IIP %.2f, IB %.2f, container index %.2f",
		in.Containers, in.PositiveContainers, in.BuildingIndex, in.BreteauIndex, in.ContainerIndex)
	if in.Class != "" {
		fmt.Printf(", %s", in.Class)
	}
	fmt.Println()
}

// printCells prints map cells as a table.
func printCells(cells []analytics.Cell) error {
	if len(cells) == 0 {
		fmt.Println("No visits in range.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "CELL\tCENTER\tVISITS\tPOSITIVE\tHIGHEST RISK"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, c := range cells {
		risk := "-"
		if c.HighestRisk != "" {
			risk = string(c.HighestRisk)
		}
		if _, err := fmt.Fprintf(w, "%s\t%.5f,%.5f\t%d\t%d\t%s\n",
			c.ID, c.Latitude, c.Longitude, c.Count, c.Positive, risk); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return w.Flush()
}

// formatRisk returns a risk level with a severity marker.
func formatRisk(r visit.RiskLevel) string {
	rank := r.Rank()
	if rank < 0 {
		return string(r)
	}
	return strings.Repeat("●", rank+1) + strings.Repeat("○", len(visit.RiskLevels)-rank-1) + " " + string(r)
}

// formatSites lists the breeding sites found.
func formatSites(b visit.BreedingSites) string {
	var names []string
	for _, s := range b.Present() {
		names = append(names, string(s))
	}
	if b.Other != "" {
		names = append(names, "other: "+b.Other)
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// formatContainers prints counts in survey-form order, skipping zeros.
func formatContainers(c visit.Containers) string {
	var parts []string
	for _, cat := range visit.ContainerCategories {
		if n := c[cat]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", strings.ToUpper(string(cat)), n))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

func formatSync(v *visit.Visit) string {
	if v.SyncStatus == visit.SyncError && v.SyncError != "" {
		return fmt.Sprintf("%s (%s)", v.SyncStatus, v.SyncError)
	}
	if n := len(v.Photos) - len(v.RemotePhotos()); v.SyncStatus == visit.SyncSynced && n > 0 {
		return fmt.Sprintf("%s, %d photos not uploaded", v.SyncStatus, n)
	}
	return string(v.SyncStatus)
}

func visitResult(v *visit.Visit) string {
	switch v.Type {
	case visit.Routine:
		if v.Routine != nil {
			return string(v.Routine.RiskLevel)
		}
	case visit.LIRAa:
		if v.LIRAa != nil {
			return fmt.Sprintf("%.1f%%", v.LIRAa.LIRAaIndex)
		}
	}
	return "-"
}

func liraaOutcome(d *visit.LIRAaDetails) string {
	switch {
	case d.Refused:
		return "refused"
	case d.Closed:
		return "closed"
	case d.Inspected:
		return "inspected"
	default:
		return "not inspected"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// shortID returns the first block of a UUID for table display.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return truncate(id, 8)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
