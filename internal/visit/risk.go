package visit

import "fmt"

// RiskLevel is the priority class derived from a routine visit.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevels lists the levels from lowest to highest.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// Rank orders risk levels; unknown levels rank below low.
func (r RiskLevel) Rank() int {
	for i, l := range RiskLevels {
		if r == l {
			return i
		}
	}
	return -1
}

// BreedingSiteType names one of the fixed breeding-site categories.
type BreedingSiteType string

const (
	WaterTank   BreedingSiteType = "water_tank"
	Tires       BreedingSiteType = "tires"
	PlantPots   BreedingSiteType = "plant_pots"
	Bottles     BreedingSiteType = "bottles"
	Gutters     BreedingSiteType = "gutters"
	Pools       BreedingSiteType = "pools"
	Barrels     BreedingSiteType = "barrels"
	Buckets     BreedingSiteType = "buckets"
	Drains      BreedingSiteType = "drains"
	Debris      BreedingSiteType = "debris"
	AnimalBowls BreedingSiteType = "animal_bowls"
)

// BreedingSites records which breeding-site types were found on a property.
type BreedingSites struct {
	WaterTank   bool   `json:"water_tank"`
	Tires       bool   `json:"tires"`
	PlantPots   bool   `json:"plant_pots"`
	Bottles     bool   `json:"bottles"`
	Gutters     bool   `json:"gutters"`
	Pools       bool   `json:"pools"`
	Barrels     bool   `json:"barrels"`
	Buckets     bool   `json:"buckets"`
	Drains      bool   `json:"drains"`
	Debris      bool   `json:"debris"`
	AnimalBowls bool   `json:"animal_bowls"`
	Other       string `json:"other,omitempty"`
}

type siteWeight struct {
	site    BreedingSiteType
	weight  int
	present func(BreedingSites) bool
}

// siteWeights is the scoring table. Pools weigh the most.
var siteWeights = []siteWeight{
	{WaterTank, 3, func(b BreedingSites) bool { return b.WaterTank }},
	{Tires, 3, func(b BreedingSites) bool { return b.Tires }},
	{PlantPots, 2, func(b BreedingSites) bool { return b.PlantPots }},
	{Bottles, 1, func(b BreedingSites) bool { return b.Bottles }},
	{Gutters, 2, func(b BreedingSites) bool { return b.Gutters }},
	{Pools, 4, func(b BreedingSites) bool { return b.Pools }},
	{Barrels, 3, func(b BreedingSites) bool { return b.Barrels }},
	{Buckets, 2, func(b BreedingSites) bool { return b.Buckets }},
	{Drains, 2, func(b BreedingSites) bool { return b.Drains }},
	{Debris, 1, func(b BreedingSites) bool { return b.Debris }},
	{AnimalBowls, 1, func(b BreedingSites) bool { return b.AnimalBowls }},
}

const (
	larvaeBonus = 2
	pupaeBonus  = 3
)

// BreedingSiteTypes returns every known breeding-site type in table order.
func BreedingSiteTypes() []BreedingSiteType {
	out := make([]BreedingSiteType, len(siteWeights))
	for i, sw := range siteWeights {
		out[i] = sw.site
	}
	return out
}

// SiteWeight returns the score weight of a breeding-site type.
func SiteWeight(t BreedingSiteType) (int, bool) {
	for _, sw := range siteWeights {
		if sw.site == t {
			return sw.weight, true
		}
	}
	return 0, false
}

// Present returns the breeding-site types flagged on b.
func (b BreedingSites) Present() []BreedingSiteType {
	var out []BreedingSiteType
	for _, sw := range siteWeights {
		if sw.present(b) {
			out = append(out, sw.site)
		}
	}
	return out
}

// Set flags a breeding-site type by name.
func (b *BreedingSites) Set(t BreedingSiteType) error {
	switch t {
	case WaterTank:
		b.WaterTank = true
	case Tires:
		b.Tires = true
	case PlantPots:
		b.PlantPots = true
	case Bottles:
		b.Bottles = true
	case Gutters:
		b.Gutters = true
	case Pools:
		b.Pools = true
	case Barrels:
		b.Barrels = true
	case Buckets:
		b.Buckets = true
	case Drains:
		b.Drains = true
	case Debris:
		b.Debris = true
	case AnimalBowls:
		b.AnimalBowls = true
	default:
		return fmt.Errorf("unknown breeding site type: %q", t)
	}
	return nil
}

// RiskScore sums the weights of present breeding sites plus the larvae and
// pupae bonuses.
func RiskScore(sites BreedingSites, larvae, pupae bool) int {
	score := 0
	for _, sw := range siteWeights {
		if sw.present(sites) {
			score += sw.weight
		}
	}
	if larvae {
		score += larvaeBonus
	}
	if pupae {
		score += pupaeBonus
	}
	return score
}

// ClassifyRisk maps a risk score to its level.
func ClassifyRisk(score int) RiskLevel {
	switch {
	case score >= 8:
		return RiskCritical
	case score >= 5:
		return RiskHigh
	case score >= 3:
		return RiskMedium
	default:
		return RiskLow
	}
}
