package visit

import (
	"math"
	"testing"
)

func TestLIRAaIndex(t *testing.T) {
	tests := []struct {
		name     string
		total    Containers
		positive Containers
		want     float64
	}{
		{"no containers", Containers{}, Containers{}, 0},
		{"nil maps", nil, nil, 0},
		{"single category", Containers{A1: 10}, Containers{A1: 2}, 20},
		{"across categories", Containers{A1: 4, B: 4, E: 2}, Containers{B: 1, E: 1}, 20},
		{"all positive", Containers{D1: 3}, Containers{D1: 3}, 100},
		{"unknown categories ignored", Containers{A1: 5, "z": 100}, Containers{A1: 1, "z": 50}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LIRAaIndex(tt.total, tt.positive)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("index = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContainersTotal(t *testing.T) {
	c := Containers{A1: 1, A2: 2, B: 3, C: 4, D1: 5, D2: 6, E: 7}
	if got := c.Total(); got != 28 {
		t.Errorf("total = %d, want 28", got)
	}
}

func TestContainerCategoryValid(t *testing.T) {
	if len(ContainerCategories) != 7 {
		t.Fatalf("got %d categories, want 7", len(ContainerCategories))
	}
	for _, c := range ContainerCategories {
		if !c.IsValid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if ContainerCategory("f").IsValid() {
		t.Error("f should be invalid")
	}
}
