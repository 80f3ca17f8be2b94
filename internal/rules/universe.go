package rules

import mapset "github.com/deckarep/golang-set/v2"

// RiskType is one of the fixed environmental risks a block can carry
type RiskType string

const (
	RiskFire     RiskType = "Fire Risk"
	RiskDrought  RiskType = "Drought Risk"
	RiskFlood    RiskType = "Flood Risk"
	RiskErosion  RiskType = "Erosion Risk"
	RiskSalinity RiskType = "Salinity Risk"
	RiskSodicity RiskType = "Sodicity Risk"
	RiskPest     RiskType = "Pest Outbreak"
)

// Severity is the tier a risk was classified into
type Severity string

const (
	SeverityHigh   Severity = "High"   // alarm
	SeverityMedium Severity = "Medium" // warning
)

// RecommendationTitle names a stateful recommendation
type RecommendationTitle string

const (
	TitleWaterUseEfficiency RecommendationTitle = "Improve Water Use Efficiency"
	TitleReduceIrrigation   RecommendationTitle = "Reduce Irrigation Frequency"
	TitleManageSalinity     RecommendationTitle = "Manage Salinity"
)

// Priority of a recommendation
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

var allRiskTypes = []RiskType{
	RiskFire,
	RiskDrought,
	RiskFlood,
	RiskErosion,
	RiskSalinity,
	RiskSodicity,
	RiskPest,
}

var allRecommendationTitles = []RecommendationTitle{
	TitleWaterUseEfficiency,
	TitleReduceIrrigation,
	TitleManageSalinity,
}

// RiskTypes returns every stateful risk type in evaluation order.
func RiskTypes() []RiskType {
	out := make([]RiskType, len(allRiskTypes))
	copy(out, allRiskTypes)
	return out
}

// RecommendationTitles returns every stateful recommendation title in evaluation order.
func RecommendationTitles() []RecommendationTitle {
	out := make([]RecommendationTitle, len(allRecommendationTitles))
	copy(out, allRecommendationTitles)
	return out
}

// RiskUniverse returns a fresh set holding every risk type eligible for auto-resolution.
// Callers may mutate the returned set.
func RiskUniverse() mapset.Set[RiskType] {
	return mapset.NewThreadUnsafeSet(allRiskTypes...)
}

// RecommendationUniverse returns a fresh set holding every recommendation title
// eligible for auto-resolution.
func RecommendationUniverse() mapset.Set[RecommendationTitle] {
	return mapset.NewThreadUnsafeSet(allRecommendationTitles...)
}

// ParseRiskType maps a stored alert type back to the enum. Unknown types report false.
func ParseRiskType(s string) (RiskType, bool) {
	for _, t := range allRiskTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// ParseRecommendationTitle maps a stored title back to the enum. Ad hoc titles report false.
func ParseRecommendationTitle(s string) (RecommendationTitle, bool) {
	for _, t := range allRecommendationTitles {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}
