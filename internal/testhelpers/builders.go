package testhelpers

import (
	"time"

	"github.com/blockwatch/blockwatch/internal/database"
)

// ========================================
// Site Builder
// ========================================

// SiteBuilder builds Site instances for testing
type SiteBuilder struct {
	site database.Site
}

// NewSiteBuilder creates a new site builder with defaults
func NewSiteBuilder() *SiteBuilder {
	return &SiteBuilder{
		site: database.Site{
			Code: "Z1",
			Name: "Test Site",
		},
	}
}

// WithCode sets the site code
func (b *SiteBuilder) WithCode(code string) *SiteBuilder {
	b.site.Code = code
	return b
}

// WithName sets the site name
func (b *SiteBuilder) WithName(name string) *SiteBuilder {
	b.site.Name = name
	return b
}

// Build returns the constructed site
func (b *SiteBuilder) Build() database.Site {
	return b.site
}

// ========================================
// Observation Builder
// ========================================

// ObservationBuilder builds Observation instances for testing
type ObservationBuilder struct {
	obs database.Observation
}

// NewObservationBuilder creates a new observation builder with defaults
func NewObservationBuilder() *ObservationBuilder {
	return &ObservationBuilder{
		obs: database.Observation{
			SiteID:      "site-1",
			BlockID:     "A",
			GridNumber:  "30",
			RowNumber:   "17",
			PlantNumber: "032",
			SpeciesCode: "011",
			SubmittedBy: "field-tester",
			SubmittedOn: time.Now(),
		},
	}
}

// WithID sets the observation ID
func (b *ObservationBuilder) WithID(id string) *ObservationBuilder {
	b.obs.ID = id
	return b
}

// InBlock sets the site and block
func (b *ObservationBuilder) InBlock(siteID, blockID string) *ObservationBuilder {
	b.obs.SiteID = siteID
	b.obs.BlockID = blockID
	return b
}

// SubmittedOn sets the submission time
func (b *ObservationBuilder) SubmittedOn(t time.Time) *ObservationBuilder {
	b.obs.SubmittedOn = t
	return b
}

// WithTemperature sets the air temperature
func (b *ObservationBuilder) WithTemperature(v float64) *ObservationBuilder {
	b.obs.Temperature = &v
	return b
}

// WithMoisture sets the air humidity
func (b *ObservationBuilder) WithMoisture(v float64) *ObservationBuilder {
	b.obs.Moisture = &v
	return b
}

// WithSoilMoisture sets the soil moisture
func (b *ObservationBuilder) WithSoilMoisture(v float64) *ObservationBuilder {
	b.obs.SoilMoisture = &v
	return b
}

// WithEC sets the electrical conductivity
func (b *ObservationBuilder) WithEC(v float64) *ObservationBuilder {
	b.obs.ElectricalConductivity = &v
	return b
}

// WithRainfall sets the rainfall
func (b *ObservationBuilder) WithRainfall(v float64) *ObservationBuilder {
	b.obs.Rainfall = &v
	return b
}

// WithET sets the evapotranspiration
func (b *ObservationBuilder) WithET(v float64) *ObservationBuilder {
	b.obs.ET = &v
	return b
}

// WithSlope sets the slope category
func (b *ObservationBuilder) WithSlope(v string) *ObservationBuilder {
	b.obs.Slope = &v
	return b
}

// WithVisiblePests sets the pest sighting flag
func (b *ObservationBuilder) WithVisiblePests(v bool) *ObservationBuilder {
	b.obs.VisiblePests = &v
	return b
}

// WithRulesStatus sets the rules status
func (b *ObservationBuilder) WithRulesStatus(s database.RulesStatus) *ObservationBuilder {
	b.obs.RulesStatus = s
	return b
}

// Build returns the constructed observation
func (b *ObservationBuilder) Build() database.Observation {
	return b.obs
}

// ========================================
// Alert Builder
// ========================================

// AlertBuilder builds Alert instances for testing
type AlertBuilder struct {
	alert database.Alert
}

// NewAlertBuilder creates a new alert builder with defaults
func NewAlertBuilder() *AlertBuilder {
	return &AlertBuilder{
		alert: database.Alert{
			SiteID:    "site-1",
			AlertType: "Drought Risk",
			Severity:  "High",
			Message:   "CRITICAL DROUGHT! Soil moisture is critically low (5%) or water deficit is high.",
			Status:    database.AlertStatusActive,
		},
	}
}

// ForObservation ties the alert to obs
func (b *AlertBuilder) ForObservation(obs *database.Observation) *AlertBuilder {
	b.alert.SiteID = obs.SiteID
	b.alert.ObservationID = obs.ID
	return b
}

// WithType sets the alert type
func (b *AlertBuilder) WithType(t string) *AlertBuilder {
	b.alert.AlertType = t
	return b
}

// WithSeverity sets the severity
func (b *AlertBuilder) WithSeverity(s string) *AlertBuilder {
	b.alert.Severity = s
	return b
}

// Resolved marks the alert resolved
func (b *AlertBuilder) Resolved() *AlertBuilder {
	now := time.Now()
	b.alert.Status = database.AlertStatusResolved
	b.alert.ResolvedAt = &now
	return b
}

// Build returns the constructed alert
func (b *AlertBuilder) Build() database.Alert {
	return b.alert
}

// ========================================
// Recommendation Builder
// ========================================

// RecommendationBuilder builds Recommendation instances for testing
type RecommendationBuilder struct {
	rec database.Recommendation
}

// NewRecommendationBuilder creates a new recommendation builder with defaults
func NewRecommendationBuilder() *RecommendationBuilder {
	return &RecommendationBuilder{
		rec: database.Recommendation{
			SiteID:   "site-1",
			Title:    "Manage Salinity",
			Body:     "EC is high.",
			Priority: "High",
			Status:   database.RecommendationStatusPending,
		},
	}
}

// ForObservation ties the recommendation to obs
func (b *RecommendationBuilder) ForObservation(obs *database.Observation) *RecommendationBuilder {
	b.rec.SiteID = obs.SiteID
	b.rec.ObservationID = obs.ID
	return b
}

// WithTitle sets the title
func (b *RecommendationBuilder) WithTitle(title string) *RecommendationBuilder {
	b.rec.Title = title
	return b
}

// Resolved marks the recommendation resolved
func (b *RecommendationBuilder) Resolved() *RecommendationBuilder {
	now := time.Now()
	b.rec.Status = database.RecommendationStatusResolved
	b.rec.ResolvedAt = &now
	return b
}

// Build returns the constructed recommendation
func (b *RecommendationBuilder) Build() database.Recommendation {
	return b.rec
}
