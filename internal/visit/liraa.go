package visit

// ContainerCategory is one of the seven LIRAa container groups.
type ContainerCategory string

const (
	A1 ContainerCategory = "a1" // elevated water tanks
	A2 ContainerCategory = "a2" // ground-level water storage
	B  ContainerCategory = "b"  // small movable containers
	C  ContainerCategory = "c"  // fixed containers
	D1 ContainerCategory = "d1" // tires and rolling material
	D2 ContainerCategory = "d2" // trash and scrap
	E  ContainerCategory = "e"  // natural sites
)

// ContainerCategories lists the categories in survey-form order.
var ContainerCategories = []ContainerCategory{A1, A2, B, C, D1, D2, E}

// IsValid checks if a container category is recognized.
func (c ContainerCategory) IsValid() bool {
	for _, v := range ContainerCategories {
		if c == v {
			return true
		}
	}
	return false
}

// Containers counts containers per category.
type Containers map[ContainerCategory]int

// Total sums the counts of the known categories.
func (c Containers) Total() int {
	total := 0
	for _, cat := range ContainerCategories {
		total += c[cat]
	}
	return total
}

func (c Containers) clone() Containers {
	if c == nil {
		return nil
	}
	out := make(Containers, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// LIRAaIndex is the percentage of examined containers found positive, or 0
// when no containers were examined.
func LIRAaIndex(total, positive Containers) float64 {
	denom := total.Total()
	if denom == 0 {
		return 0
	}
	return float64(positive.Total()) / float64(denom) * 100
}
