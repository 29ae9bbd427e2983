package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/vigia/internal/geocode"
	"github.com/evcraddock/vigia/internal/photo"
	"github.com/evcraddock/vigia/internal/visit"
)

// captureFlags are the fields shared by both visit forms.
type captureFlags struct {
	lat, lon, accuracy float64
	address            string
	neighborhood       string
	observations       string
	photos             []string
	noGeocode          bool
}

func (f *captureFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "latitude of the property")
	cmd.Flags().Float64Var(&f.lon, "lon", 0, "longitude of the property")
	cmd.Flags().Float64Var(&f.accuracy, "accuracy", 0, "GPS accuracy in meters")
	cmd.Flags().StringVar(&f.address, "address", "", "street address (looked up from coordinates when empty)")
	cmd.Flags().StringVar(&f.neighborhood, "neighborhood", "", "neighborhood of the property")
	cmd.Flags().StringVar(&f.observations, "notes", "", "free-text observations")
	cmd.Flags().StringArrayVar(&f.photos, "photo", nil, "photo file to attach (repeatable)")
	cmd.Flags().BoolVar(&f.noGeocode, "no-geocode", false, "do not look up the address from coordinates")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
}

// input builds the shared form input: photos are read and kept inline,
// and a missing address is looked up when possible.
func (f *captureFlags) input(ctx context.Context, cfg CLIConfig) (visit.Input, error) {
	in := visit.Input{
		Location: visit.Location{
			Latitude:  f.lat,
			Longitude: f.lon,
			Accuracy:  f.accuracy,
			Address:   f.address,
		},
		Neighborhood: strings.TrimSpace(f.neighborhood),
		Observations: f.observations,
	}

	for _, path := range f.photos {
		ref, err := readPhoto(path)
		if err != nil {
			return visit.Input{}, err
		}
		in.Photos = append(in.Photos, ref)
	}

	if in.Location.Address == "" && !f.noGeocode {
		res, err := geocode.NewClient(cfg.GeocoderURL).Reverse(ctx, f.lat, f.lon)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not look up address: %v\n", err)
		} else {
			in.Location.Address = res.Address
			if in.Neighborhood == "" {
				in.Neighborhood = res.Neighborhood
			}
		}
	}

	return in, nil
}

// readPhoto loads a photo file and returns it as an inline data URL.
func readPhoto(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading photo %s: %w", path, err)
	}
	mime, prepared, err := photo.Prepare(data)
	if err != nil {
		return "", fmt.Errorf("photo %s: %w", path, err)
	}
	return photo.EncodeDataURL(mime, prepared), nil
}

func newRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a visit on this device",
		Long:  "Record a routine or LIRAa visit. Visits are stored locally and queued for sync.",
	}
	cmd.AddCommand(newRecordRoutineCmd(), newRecordLIRAaCmd())
	return cmd
}

func newRecordRoutineCmd() *cobra.Command {
	var (
		capture  captureFlags
		sites    []string
		other    string
		larvae   bool
		pupae    bool
		measures []string
	)

	cmd := &cobra.Command{
		Use:   "routine",
		Short: "Record a routine visit",
		Long: fmt.Sprintf(`Record a routine visit. The risk level is computed from the breeding sites
found and whether larvae or pupae were present.

Breeding sites: %s`, joinSites()),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var bs visit.BreedingSites
			for _, s := range sites {
				if err := bs.Set(visit.BreedingSiteType(strings.TrimSpace(s))); err != nil {
					return err
				}
			}
			bs.Other = other

			cfg, err := requireAgent()
			if err != nil {
				return err
			}
			in, err := capture.input(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return runRecord(func(f *visit.Factory) (*visit.Visit, error) {
				return f.CreateRoutineVisit(cmd.Context(), visit.RoutineInput{
					Input:           in,
					BreedingSites:   bs,
					LarvaeFound:     larvae,
					PupaeFound:      pupae,
					ControlMeasures: measures,
				}, cfg.agent())
			})
		},
	}

	capture.register(cmd)
	cmd.Flags().StringSliceVar(&sites, "site", nil, "breeding site found (repeatable or comma-separated)")
	cmd.Flags().StringVar(&other, "other-site", "", "description of any other breeding site")
	cmd.Flags().BoolVar(&larvae, "larvae", false, "larvae found")
	cmd.Flags().BoolVar(&pupae, "pupae", false, "pupae found")
	cmd.Flags().StringSliceVar(&measures, "measure", nil, "control measure applied (repeatable)")

	return cmd
}

func newRecordLIRAaCmd() *cobra.Command {
	var (
		capture      captureFlags
		propertyType string
		inspected    bool
		refused      bool
		closed       bool
		containers   map[string]int
		positive     map[string]int
		species      []string
		treatment    bool
		elimination  bool
	)

	cmd := &cobra.Command{
		Use:   "liraa",
		Short: "Record a LIRAa survey visit",
		Long: `Record a LIRAa (rapid index survey) visit. Container counts are given per
category (a1, a2, b, c, d1, d2, e), e.g. --containers a1=2,b=5 --positive b=1.
The LIRAa index is the percentage of positive containers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := parseContainers(containers)
			if err != nil {
				return fmt.Errorf("--containers: %w", err)
			}
			pos, err := parseContainers(positive)
			if err != nil {
				return fmt.Errorf("--positive: %w", err)
			}
			if (refused || closed) && !cmd.Flags().Changed("inspected") {
				inspected = false
			}

			cfg, err := requireAgent()
			if err != nil {
				return err
			}
			in, err := capture.input(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return runRecord(func(f *visit.Factory) (*visit.Visit, error) {
				return f.CreateLIRAaVisit(cmd.Context(), visit.LIRAaInput{
					Input:              in,
					PropertyType:       visit.PropertyType(propertyType),
					Inspected:          inspected,
					Refused:            refused,
					Closed:             closed,
					Containers:         total,
					PositiveContainers: pos,
					LarvaeSpecies:      species,
					TreatmentApplied:   treatment,
					EliminationAction:  elimination,
				}, cfg.agent())
			})
		},
	}

	capture.register(cmd)
	cmd.Flags().StringVar(&propertyType, "property-type", string(visit.Residential), "residential|commercial|vacant_lot|strategic_point|other")
	cmd.Flags().BoolVar(&inspected, "inspected", true, "property was inspected")
	cmd.Flags().BoolVar(&refused, "refused", false, "owner refused the inspection")
	cmd.Flags().BoolVar(&closed, "closed", false, "property was closed")
	cmd.Flags().StringToIntVar(&containers, "containers", nil, "containers inspected per category")
	cmd.Flags().StringToIntVar(&positive, "positive", nil, "positive containers per category")
	cmd.Flags().StringSliceVar(&species, "species", nil, "larvae species collected")
	cmd.Flags().BoolVar(&treatment, "treatment", false, "larvicide treatment applied")
	cmd.Flags().BoolVar(&elimination, "elimination", false, "containers eliminated")

	return cmd
}

// runRecord opens the local store, builds the visit and prints it.
func runRecord(create func(*visit.Factory) (*visit.Visit, error)) error {
	store, database, err := newLocalStore()
	if err != nil {
		return err
	}
	defer closeDB(database)

	v, err := create(visit.NewFactory(store))
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(v)
	}

	fmt.Println("✓ Visit recorded and queued for sync.")
	printVisitSummary(v)
	return nil
}

// parseContainers converts flag counts to containers, checking categories.
func parseContainers(m map[string]int) (visit.Containers, error) {
	c := visit.Containers{}
	for k, n := range m {
		cat := visit.ContainerCategory(strings.ToLower(strings.TrimSpace(k)))
		if !cat.IsValid() {
			return nil, fmt.Errorf("unknown container category %q", k)
		}
		c[cat] = n
	}
	return c, nil
}

func joinSites() string {
	var names []string
	for _, s := range visit.BreedingSiteTypes() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
