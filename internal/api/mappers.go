package api

import (
	"strings"

	"github.com/blockwatch/blockwatch/internal/database"
	"github.com/blockwatch/blockwatch/internal/rules"
	"github.com/blockwatch/blockwatch/internal/services"
)

// ToObservationInput converts a request body into service input. Readings
// that were not sent stay out of the values map.
func (req CreateObservationRequest) ToObservationInput() services.ObservationInput {
	in := services.ObservationInput{
		Barcode: strings.TrimSpace(req.Barcode),
		Manual: services.Identity{
			SiteCode:    req.ManualSiteCode,
			BlockID:     req.ManualBlockID,
			GridNumber:  req.ManualGridNum,
			RowNumber:   req.ManualRowNum,
			PlantNumber: req.ManualPlantNum,
			SpeciesCode: req.ManualSpeciesCode,
		},
		SubmittedBy:      req.SubmittedBy,
		SubmittedOn:      req.SubmittedOn,
		SpotsOnLeaves:    req.SpotsOnLeaves,
		YellowLeaves:     req.YellowLeaves,
		DroopingLeaves:   req.DroopingLeaves,
		RecentPestDamage: req.RecentPestDamage,
		TypeOfPest:       req.TypeOfPest,
		Notes:            req.Notes,
		TransectLineName: req.TransectLineName,
		Measurements:     req.Measurements,
		Values:           rules.Values{},
	}
	if req.GPS != nil {
		in.GPS = &services.GPS{Lat: req.GPS.Lat, Lon: req.GPS.Lon}
	}

	for f, v := range map[rules.Field]interface{}{
		rules.FieldTemperature:            req.Temperature,
		rules.FieldMoisture:               req.Moisture,
		rules.FieldSoilMoisture:           req.SoilMoisture,
		rules.FieldElectricalConductivity: req.ElectricalConductivity,
		rules.FieldPHValue:                req.PHValue,
		rules.FieldRainfall:               req.Rainfall,
		rules.FieldET:                     req.ET,
		rules.FieldSlope:                  req.Slope,
		rules.FieldBulkDensity:            req.BulkDensity,
		rules.FieldESP:                    req.ESP,
		rules.FieldVisiblePests:           req.VisiblePests,
		rules.FieldFireFlag:               req.FireFlag,
	} {
		if v != nil {
			in.Values[f] = v
		}
	}
	return in
}

// IdentityToParsed converts a resolved plant identity for the response body.
func IdentityToParsed(id services.Identity) ParsedIdentity {
	return ParsedIdentity{
		SiteCode:    id.SiteCode,
		BlockID:     id.BlockID,
		GridNumber:  id.GridNumber,
		RowNumber:   id.RowNumber,
		PlantNumber: id.PlantNumber,
		SpeciesCode: id.SpeciesCode,
	}
}

// RecordResultToResponse builds the POST /api/observations response.
func RecordResultToResponse(res *services.RecordResult) CreateObservationResponse {
	out := CreateObservationResponse{
		ObservationID:          res.Observation.ID,
		Parsed:                 IdentityToParsed(res.Identity),
		RulesStatus:            string(res.Observation.RulesStatus),
		AlertsCreated:          []AlertItem{},
		RecommendationsCreated: []RecommendationItem{},
		Warning:                res.Warning,
	}
	if res.Ingest != nil {
		out.RulesStatus = string(database.RulesStatusCompleted)
		out.AlertsCreated = AlertsToItems(res.Ingest.CreatedAlerts)
		out.RecommendationsCreated = RecommendationsToItems(res.Ingest.CreatedRecommendations)
		out.AlertsResolved = res.Ingest.ResolvedAlerts
		out.RecommendationsResolved = res.Ingest.ResolvedRecommendations
	} else if res.Warning != "" {
		out.RulesStatus = string(database.RulesStatusFailed)
	}
	return out
}

// AlertToItem converts a database Alert to its API representation.
func AlertToItem(a database.Alert) AlertItem {
	return AlertItem{
		ID:            a.ID,
		SiteID:        a.SiteID,
		ObservationID: a.ObservationID,
		AlertType:     a.AlertType,
		Severity:      a.Severity,
		Message:       a.Message,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt,
		ResolvedAt:    a.ResolvedAt,
	}
}

// AlertsToItems converts a slice of database Alerts.
func AlertsToItems(alerts []database.Alert) []AlertItem {
	items := make([]AlertItem, len(alerts))
	for i, a := range alerts {
		items[i] = AlertToItem(a)
	}
	return items
}

// RecommendationToItem converts a database Recommendation to its API representation.
func RecommendationToItem(r database.Recommendation) RecommendationItem {
	return RecommendationItem{
		ID:            r.ID,
		SiteID:        r.SiteID,
		ObservationID: r.ObservationID,
		Title:         r.Title,
		Body:          r.Body,
		Priority:      r.Priority,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
		ResolvedAt:    r.ResolvedAt,
	}
}

// RecommendationsToItems converts a slice of database Recommendations.
func RecommendationsToItems(recs []database.Recommendation) []RecommendationItem {
	items := make([]RecommendationItem, len(recs))
	for i, r := range recs {
		items[i] = RecommendationToItem(r)
	}
	return items
}
