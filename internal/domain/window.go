package domain

import "strings"

type SpeedCategory string

const (
	SpeedRapid  SpeedCategory = "rapid"
	SpeedBlitz  SpeedCategory = "blitz"
	SpeedBullet SpeedCategory = "bullet"
)

// AllowedSpeeds lists the categories ingestion accepts, fastest last.
var AllowedSpeeds = []SpeedCategory{SpeedRapid, SpeedBlitz, SpeedBullet}

func ParseSpeed(raw string) (SpeedCategory, bool) {
	s := SpeedCategory(strings.ToLower(strings.TrimSpace(raw)))
	for _, allowed := range AllowedSpeeds {
		if s == allowed {
			return s, true
		}
	}
	return "", false
}

// SpeedSet is the effective filter of a fetch window.
type SpeedSet map[SpeedCategory]struct{}

// EffectiveSpeeds intersects the requested categories with AllowedSpeeds.
// An empty intersection widens to every allowed category.
func EffectiveSpeeds(requested []string) SpeedSet {
	set := make(SpeedSet, len(AllowedSpeeds))
	for _, raw := range requested {
		if s, ok := ParseSpeed(raw); ok {
			set[s] = struct{}{}
		}
	}
	if len(set) == 0 {
		for _, s := range AllowedSpeeds {
			set[s] = struct{}{}
		}
	}
	return set
}

func (s SpeedSet) Contains(c SpeedCategory) bool {
	_, ok := s[c]
	return ok
}

type Timeframe string

const (
	Timeframe3Months Timeframe = "3_months"
	Timeframe1Year   Timeframe = "1_year"
	Timeframe5Years  Timeframe = "5_years"
	Timeframe10Years Timeframe = "10_years"

	DefaultTimeframe = Timeframe3Months
)

var timeframeMonths = map[Timeframe]int{
	Timeframe3Months: 3,
	Timeframe1Year:   12,
	Timeframe5Years:  60,
	Timeframe10Years: 120,
}

func (t Timeframe) Valid() bool {
	_, ok := timeframeMonths[t]
	return ok
}

// Months returns the window length. Unknown values fall back to three months.
func (t Timeframe) Months() int {
	if n, ok := timeframeMonths[t]; ok {
		return n
	}
	return timeframeMonths[DefaultTimeframe]
}
