package delay

import "penpal/internal/geo"

// Strategy maps a pair of countries with different names to a tier.
type Strategy interface {
	Mode() Mode
	// SameCountry is the tier used when both country names are identical.
	SameCountry() Tier
	// Select returns the tier for two different countries along with the
	// distance between them.
	Select(senderCountry, recipientCountry string) (Tier, float64)
}

// distanceStrategy picks the first tier whose upper distance bound exceeds
// the measured distance.
type distanceStrategy struct {
	mode        Mode
	sameCountry Tier
	bands       []distanceBand
}

type distanceBand struct {
	belowKm float64 // 0 for the open-ended final band
	tier    Tier
}

func (s *distanceStrategy) Mode() Mode        { return s.mode }
func (s *distanceStrategy) SameCountry() Tier { return s.sameCountry }

func (s *distanceStrategy) Select(senderCountry, recipientCountry string) (Tier, float64) {
	km := geo.DistanceKm(senderCountry, recipientCountry)
	for _, b := range s.bands {
		if b.belowKm == 0 || km < b.belowKm {
			return b.tier, km
		}
	}
	return s.bands[len(s.bands)-1].tier, km
}

// NewFastStrategy returns the minute-granularity simulation tiers.
func NewFastStrategy() Strategy {
	return &distanceStrategy{
		mode:        ModeFast,
		sameCountry: hoursTier("domestic", 1, 3),
		bands: []distanceBand{
			{belowKm: 100, tier: Tier{Name: "local", MinMinutes: 10, MaxMinutes: 10}},
			{belowKm: 1500, tier: Tier{Name: "regional", MinMinutes: 60, MaxMinutes: 360, MaxExclusive: true}},
			{tier: Tier{Name: "international", MinMinutes: 720, MaxMinutes: 1440, MaxExclusive: true}},
		},
	}
}

// NewRealisticStrategy returns the day-granularity postal tiers.
func NewRealisticStrategy() Strategy {
	return &distanceStrategy{
		mode:        ModeRealistic,
		sameCountry: daysTier("domestic", 1, 3),
		bands: []distanceBand{
			{belowKm: 1000, tier: daysTier("neighboring", 2, 4)},
			{belowKm: 3000, tier: daysTier("regional", 3, 6)},
			{belowKm: 8000, tier: daysTier("continental", 5, 10)},
			{belowKm: 15000, tier: daysTier("intercontinental", 8, 14)},
			{tier: daysTier("antipodal", 12, 21)},
		},
	}
}

// continentStrategy uses per-continent tiers for letters that stay on one
// continent and a single tier for everything else.
type continentStrategy struct {
	mode  Mode
	same  map[geo.Continent]Tier
	cross Tier
}

var sameContinentTiers = map[geo.Continent]Tier{
	geo.ContinentEurope:       hoursTier("europe", 4, 12),
	geo.ContinentNorthAmerica: hoursTier("north_america", 6, 18),
	geo.ContinentOceania:      hoursTier("oceania", 6, 20),
	geo.ContinentAsia:         hoursTier("asia", 8, 24),
	geo.ContinentSouthAmerica: hoursTier("south_america", 8, 24),
	geo.ContinentAfrica:       hoursTier("africa", 10, 28),
}

// NewContinentStrategy returns continent tiers with a 24-72h cross-continent
// tier.
func NewContinentStrategy() Strategy {
	return &continentStrategy{
		mode:  ModeContinent,
		same:  sameContinentTiers,
		cross: hoursTier("intercontinental", 24, 72),
	}
}

// NewContinentFarStrategy is NewContinentStrategy with a 48-120h
// cross-continent tier.
func NewContinentFarStrategy() Strategy {
	return &continentStrategy{
		mode:  ModeContinentFar,
		same:  sameContinentTiers,
		cross: hoursTier("intercontinental_far", 48, 120),
	}
}

func (s *continentStrategy) Mode() Mode        { return s.mode }
func (s *continentStrategy) SameCountry() Tier { return hoursTier("domestic", 1, 3) }

func (s *continentStrategy) Select(senderCountry, recipientCountry string) (Tier, float64) {
	km := geo.DistanceKm(senderCountry, recipientCountry)
	from := geo.ContinentOf(senderCountry)
	to := geo.ContinentOf(recipientCountry)
	if from == to {
		if tier, ok := s.same[from]; ok {
			return tier, km
		}
	}
	// Unknown continents are treated as cross-continent.
	return s.cross, km
}
