package visit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memStore struct {
	visits []*Visit
	err    error
}

func (m *memStore) Persist(_ context.Context, v *Visit) error {
	if m.err != nil {
		return m.err
	}
	m.visits = append(m.visits, v)
	return nil
}

var testAgent = Agent{ID: "agent-1", Name: "Ana Souza", OrganizationID: "org-1"}

func testFactory(store Store) *Factory {
	f := NewFactory(store)
	f.now = func() time.Time { return time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC) }
	f.newID = func() string { return "visit-1" }
	return f
}

func testInput() Input {
	return Input{
		Location:     Location{Latitude: -23.55, Longitude: -46.63, Accuracy: 8},
		Neighborhood: "Centro",
		Photos:       []string{"https://example.com/a.jpg"},
	}
}

func TestCreateRoutineVisit(t *testing.T) {
	store := &memStore{}
	f := testFactory(store)

	v, err := f.CreateRoutineVisit(context.Background(), RoutineInput{
		Input:           testInput(),
		BreedingSites:   BreedingSites{Pools: true},
		LarvaeFound:     true,
		ControlMeasures: []string{"mechanical removal"},
	}, testAgent)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if v.ID != "visit-1" {
		t.Errorf("id = %q", v.ID)
	}
	if v.Type != Routine {
		t.Errorf("type = %q, want routine", v.Type)
	}
	if v.Status != Completed {
		t.Errorf("status = %q, want completed", v.Status)
	}
	if v.SyncStatus != SyncPending {
		t.Errorf("sync status = %q, want pending", v.SyncStatus)
	}
	if v.Routine.RiskLevel != RiskHigh {
		t.Errorf("risk = %q, want high", v.Routine.RiskLevel)
	}
	if v.AgentID != "agent-1" || v.AgentName != "Ana Souza" || v.OrganizationID != "org-1" {
		t.Errorf("agent fields not copied: %+v", v)
	}
	if v.LIRAa != nil {
		t.Error("routine visit must not carry liraa details")
	}
	if v.Location.Timestamp.IsZero() {
		t.Error("expected location timestamp to default to creation time")
	}
	if len(store.visits) != 1 || store.visits[0] != v {
		t.Fatalf("visit not handed to store")
	}
}

func TestCreateLIRAaVisit(t *testing.T) {
	store := &memStore{}
	f := testFactory(store)

	v, err := f.CreateLIRAaVisit(context.Background(), LIRAaInput{
		Input:              testInput(),
		PropertyType:       Residential,
		Inspected:          true,
		Containers:         Containers{A1: 10},
		PositiveContainers: Containers{A1: 2},
		LarvaeSpecies:      []string{"Aedes aegypti"},
	}, testAgent)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if v.Type != LIRAa {
		t.Errorf("type = %q, want liraa", v.Type)
	}
	if v.LIRAa.LIRAaIndex != 20 {
		t.Errorf("index = %v, want 20", v.LIRAa.LIRAaIndex)
	}
	if v.Routine != nil {
		t.Error("liraa visit must not carry routine details")
	}
	if !v.LIRAa.Positive() {
		t.Error("expected visit to be positive")
	}
}

func TestCreateLIRAaVisitNoContainers(t *testing.T) {
	f := testFactory(&memStore{})

	v, err := f.CreateLIRAaVisit(context.Background(), LIRAaInput{
		Input:        testInput(),
		PropertyType: Commercial,
		Closed:       true,
	}, testAgent)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.LIRAa.LIRAaIndex != 0 {
		t.Errorf("index = %v, want 0", v.LIRAa.LIRAaIndex)
	}
	if v.LIRAa.Containers == nil || v.LIRAa.PositiveContainers == nil {
		t.Error("expected empty container maps, got nil")
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		run  func(f *Factory) error
	}{
		{"positive above total", func(f *Factory) error {
			_, err := f.CreateLIRAaVisit(context.Background(), LIRAaInput{
				Input:              testInput(),
				PropertyType:       Residential,
				Containers:         Containers{B: 1},
				PositiveContainers: Containers{B: 2},
			}, testAgent)
			return err
		}},
		{"negative count", func(f *Factory) error {
			_, err := f.CreateLIRAaVisit(context.Background(), LIRAaInput{
				Input:        testInput(),
				PropertyType: Residential,
				Containers:   Containers{C: -1},
			}, testAgent)
			return err
		}},
		{"unknown category", func(f *Factory) error {
			_, err := f.CreateLIRAaVisit(context.Background(), LIRAaInput{
				Input:        testInput(),
				PropertyType: Residential,
				Containers:   Containers{"x": 1},
			}, testAgent)
			return err
		}},
		{"unknown property type", func(f *Factory) error {
			_, err := f.CreateLIRAaVisit(context.Background(), LIRAaInput{
				Input:        testInput(),
				PropertyType: "castle",
			}, testAgent)
			return err
		}},
		{"refused and closed", func(f *Factory) error {
			_, err := f.CreateLIRAaVisit(context.Background(), LIRAaInput{
				Input:        testInput(),
				PropertyType: Residential,
				Refused:      true,
				Closed:       true,
			}, testAgent)
			return err
		}},
		{"missing neighborhood", func(f *Factory) error {
			in := testInput()
			in.Neighborhood = " "
			_, err := f.CreateRoutineVisit(context.Background(), RoutineInput{Input: in}, testAgent)
			return err
		}},
		{"latitude out of range", func(f *Factory) error {
			in := testInput()
			in.Location.Latitude = 91
			_, err := f.CreateRoutineVisit(context.Background(), RoutineInput{Input: in}, testAgent)
			return err
		}},
		{"missing agent", func(f *Factory) error {
			_, err := f.CreateRoutineVisit(context.Background(), RoutineInput{Input: testInput()}, Agent{})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			err := tt.run(testFactory(store))
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsValidationError(err) {
				t.Errorf("expected validation error, got %v", err)
			}
			if len(store.visits) != 0 {
				t.Error("invalid visit must not be persisted")
			}
		})
	}
}

func TestCreateStoreFailure(t *testing.T) {
	f := testFactory(&memStore{err: errors.New("disk full")})

	_, err := f.CreateRoutineVisit(context.Background(), RoutineInput{Input: testInput()}, testAgent)
	if err == nil {
		t.Fatal("expected error")
	}
	if IsValidationError(err) {
		t.Error("store failure is not a validation error")
	}
}

func TestValidateTypeMismatch(t *testing.T) {
	v := &Visit{
		Type:           Routine,
		Neighborhood:   "Centro",
		AgentID:        "a",
		OrganizationID: "o",
		LIRAa:          &LIRAaDetails{PropertyType: Residential},
	}
	if err := v.Validate(); err == nil {
		t.Fatal("expected error for routine visit with liraa payload")
	}

	v.Type = "survey"
	if err := v.Validate(); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestClone(t *testing.T) {
	v := &Visit{
		Photos: []string{"a"},
		LIRAa: &LIRAaDetails{
			Containers:    Containers{A1: 1},
			LarvaeSpecies: []string{"Aedes aegypti"},
		},
	}
	c := v.Clone()
	c.Photos[0] = "b"
	c.LIRAa.Containers[A1] = 9
	c.LIRAa.LarvaeSpecies[0] = "Culex"

	if v.Photos[0] != "a" || v.LIRAa.Containers[A1] != 1 || v.LIRAa.LarvaeSpecies[0] != "Aedes aegypti" {
		t.Error("clone shares state with original")
	}
}

func TestPhotoPartition(t *testing.T) {
	v := &Visit{Photos: []string{
		"https://cdn.example.com/1.jpg",
		"data:image/png;base64,AAAA",
		"http://local/2.jpg",
	}}
	if got := v.RemotePhotos(); len(got) != 2 {
		t.Errorf("remote = %v, want 2 entries", got)
	}
	if got := v.InlinePhotos(); len(got) != 1 {
		t.Errorf("inline = %v, want 1 entry", got)
	}
}
