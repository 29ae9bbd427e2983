package visit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store persists newly created visits.
type Store interface {
	Persist(ctx context.Context, v *Visit) error
}

// Input holds the fields shared by every visit form.
type Input struct {
	Location     Location
	Neighborhood string
	Observations string
	Photos       []string
}

// RoutineInput is the routine visit form.
type RoutineInput struct {
	Input
	BreedingSites   BreedingSites
	LarvaeFound     bool
	PupaeFound      bool
	ControlMeasures []string
}

// LIRAaInput is the LIRAa survey form.
type LIRAaInput struct {
	Input
	PropertyType       PropertyType
	Inspected          bool
	Refused            bool
	Closed             bool
	Containers         Containers
	PositiveContainers Containers
	LarvaeSpecies      []string
	TreatmentApplied   bool
	EliminationAction  bool
}

// Factory builds visit records from form input and hands them to the store.
type Factory struct {
	store Store
	now   func() time.Time
	newID func() string
}

// NewFactory creates a visit factory backed by store.
func NewFactory(store Store) *Factory {
	return &Factory{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// CreateRoutineVisit records a routine visit with its computed risk level.
func (f *Factory) CreateRoutineVisit(ctx context.Context, in RoutineInput, agent Agent) (*Visit, error) {
	v := f.base(Routine, in.Input, agent)
	v.Routine = &RoutineDetails{
		BreedingSites:   in.BreedingSites,
		LarvaeFound:     in.LarvaeFound,
		PupaeFound:      in.PupaeFound,
		ControlMeasures: append([]string{}, in.ControlMeasures...),
		RiskLevel:       ClassifyRisk(RiskScore(in.BreedingSites, in.LarvaeFound, in.PupaeFound)),
	}
	return f.persist(ctx, v)
}

// CreateLIRAaVisit records a LIRAa survey visit with its computed index.
func (f *Factory) CreateLIRAaVisit(ctx context.Context, in LIRAaInput, agent Agent) (*Visit, error) {
	v := f.base(LIRAa, in.Input, agent)
	containers := in.Containers.clone()
	if containers == nil {
		containers = Containers{}
	}
	positive := in.PositiveContainers.clone()
	if positive == nil {
		positive = Containers{}
	}
	v.LIRAa = &LIRAaDetails{
		PropertyType:       in.PropertyType,
		Inspected:          in.Inspected,
		Refused:            in.Refused,
		Closed:             in.Closed,
		Containers:         containers,
		PositiveContainers: positive,
		LarvaeSpecies:      append([]string{}, in.LarvaeSpecies...),
		TreatmentApplied:   in.TreatmentApplied,
		EliminationAction:  in.EliminationAction,
		LIRAaIndex:         LIRAaIndex(containers, positive),
	}
	return f.persist(ctx, v)
}

func (f *Factory) base(t Type, in Input, agent Agent) *Visit {
	now := f.now().UTC()
	loc := in.Location
	if loc.Timestamp.IsZero() {
		loc.Timestamp = now
	}
	return &Visit{
		ID:             f.newID(),
		Type:           t,
		Timestamp:      now,
		Location:       loc,
		Neighborhood:   in.Neighborhood,
		AgentID:        agent.ID,
		AgentName:      agent.Name,
		OrganizationID: agent.OrganizationID,
		Observations:   in.Observations,
		Photos:         append([]string{}, in.Photos...),
		Status:         Completed,
		SyncStatus:     SyncPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (f *Factory) persist(ctx context.Context, v *Visit) (*Visit, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if err := f.store.Persist(ctx, v); err != nil {
		return nil, fmt.Errorf("persisting visit: %w", err)
	}
	return v, nil
}
