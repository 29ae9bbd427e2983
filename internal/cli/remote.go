package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/vigia/internal/analytics"
	"github.com/evcraddock/vigia/internal/client"
	"github.com/evcraddock/vigia/internal/visit"
)

// rangeFlags scope server-side queries to an organization and time range.
type rangeFlags struct {
	org  string
	from string
	to   string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.org, "org", "", "organization ID (admins only; default: your own)")
	cmd.Flags().StringVar(&f.from, "from", "", "start date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&f.to, "to", "", "end date, exclusive (YYYY-MM-DD or RFC 3339)")
}

func (f *rangeFlags) options() (client.AnalyticsOptions, error) {
	opts := client.AnalyticsOptions{OrganizationID: f.org}
	var err error
	if opts.From, err = parseDate(f.from); err != nil {
		return opts, fmt.Errorf("--from: %w", err)
	}
	if opts.To, err = parseDate(f.to); err != nil {
		return opts, fmt.Errorf("--to: %w", err)
	}
	return opts, nil
}

// parseDate accepts RFC 3339 or a local YYYY-MM-DD date; empty is zero.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

func newRemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Browse visits stored on the server",
	}
	cmd.AddCommand(newRemoteListCmd(), newRemoteShowCmd())
	return cmd
}

func newRemoteListCmd() *cobra.Command {
	var (
		rf        rangeFlags
		agent     string
		visitType string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visits on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ao, err := rf.options()
			if err != nil {
				return err
			}
			if visitType != "" && !visit.Type(visitType).IsValid() {
				return fmt.Errorf("invalid type %q (routine|liraa)", visitType)
			}

			visits, err := newAPIClient().ListVisits(cmd.Context(), client.ListOptions{
				OrganizationID: ao.OrganizationID,
				AgentID:        agent,
				Type:           visit.Type(visitType),
				From:           ao.From,
				To:             ao.To,
				Limit:          limit,
			})
			if err != nil {
				return fmt.Errorf("listing visits: %w", err)
			}

			if isJSON() {
				return printJSON(visits)
			}
			return printVisitTable(visits)
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVar(&agent, "agent", "", "filter by agent ID")
	cmd.Flags().StringVar(&visitType, "type", "", "filter by type (routine|liraa)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum visits to return (1-1000)")

	return cmd
}

func newRemoteShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a visit stored on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newAPIClient().GetVisit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(v)
			}
			printVisitSummary(v)
			for _, p := range v.RemotePhotos() {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}
}

func newDashboardCmd() *cobra.Command {
	var rf rangeFlags

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show surveillance indicators (supervisors)",
		Long: `Show visit totals, risk distribution and LIRAa indicators: building
infestation index (IIP), Breteau index (IB) and infestation class per neighborhood.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := rf.options()
			if err != nil {
				return err
			}
			summary, err := newAPIClient().Dashboard(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("loading dashboard: %w", err)
			}
			if isJSON() {
				return printJSON(summary)
			}
			return printSummary(summary)
		},
	}

	rf.register(cmd)
	return cmd
}

func newMapCmd() *cobra.Command {
	var (
		rf    rangeFlags
		level int
	)

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Show visits grouped by map cell (supervisors)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := rf.options()
			if err != nil {
				return err
			}
			cells, err := newAPIClient().MapCells(cmd.Context(), opts, level)
			if err != nil {
				return fmt.Errorf("loading map: %w", err)
			}
			if isJSON() {
				return printJSON(cells)
			}
			return printCells(cells)
		},
	}

	rf.register(cmd)
	cmd.Flags().IntVar(&level, "level", analytics.DefaultCellLevel, "S2 cell level (higher is smaller)")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		rf      rangeFlags
		output  string
		geojson bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download visits as a spreadsheet or GeoJSON (supervisors)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := rf.options()
			if err != nil {
				return err
			}

			if output == "" {
				ext := "xlsx"
				if geojson {
					ext = "geojson"
				}
				output = fmt.Sprintf("vigia-visits-%s.%s", time.Now().Format("20060102"), ext)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}

			c := newAPIClient()
			if geojson {
				err = c.ExportGeoJSON(cmd.Context(), opts, f)
			} else {
				err = c.Export(cmd.Context(), opts, f)
			}
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				if rerr := os.Remove(output); rerr != nil {
					fmt.Fprintf(os.Stderr, "warning: removing %s: %v\n", output, rerr)
				}
				return fmt.Errorf("exporting: %w", err)
			}

			if isJSON() {
				return printJSON(map[string]string{"file": output})
			}
			fmt.Printf("✓ Exported to %s\n", output)
			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: vigia-visits-YYYYMMDD.xlsx)")
	cmd.Flags().BoolVar(&geojson, "geojson", false, "export GeoJSON instead of XLSX")
	return cmd
}
