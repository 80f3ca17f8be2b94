package api

import "time"

// ========== Observation Types ==========

// GPSRequest is a device location fix.
type GPSRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// CreateObservationRequest is the request body for POST /api/observations.
// Either Barcode (13+ characters) or all six manual identity fields identify the plant.
// Environmental readings accept numbers or numeric strings; blank means not measured.
type CreateObservationRequest struct {
	Barcode           string `json:"barcode" validate:"omitempty,max=64"`
	ManualSiteCode    string `json:"manualSiteCode" validate:"omitempty,max=16"`
	ManualBlockID     string `json:"manualBlockId" validate:"omitempty,max=16"`
	ManualGridNum     string `json:"manualGridNum" validate:"omitempty,max=16"`
	ManualRowNum      string `json:"manualRowNum" validate:"omitempty,max=16"`
	ManualPlantNum    string `json:"manualPlantNum" validate:"omitempty,max=16"`
	ManualSpeciesCode string `json:"manualSpeciesCode" validate:"omitempty,max=16"`

	SubmittedBy string      `json:"submittedBy" validate:"required,max=255"`
	SubmittedOn *time.Time  `json:"submittedOn"`
	GPS         *GPSRequest `json:"gps"`

	SpotsOnLeaves    string `json:"spotsOnLeaves" validate:"omitempty,oneof=Yes No"`
	YellowLeaves     string `json:"yellowLeaves" validate:"omitempty,oneof=Yes No"`
	DroopingLeaves   string `json:"droopingLeaves" validate:"omitempty,oneof=Yes No"`
	RecentPestDamage string `json:"recentPestDamage" validate:"omitempty,oneof=Yes No"`
	TypeOfPest       string `json:"typeOfPest" validate:"omitempty,max=255"`
	Notes            string `json:"notes" validate:"omitempty,max=4096"`
	TransectLineName string `json:"transectLineName" validate:"omitempty,max=255"`

	Measurements map[string]interface{} `json:"measurements"`

	Temperature            interface{} `json:"temperature"`
	Moisture               interface{} `json:"moisture"`
	SoilMoisture           interface{} `json:"soilMoisture"`
	ElectricalConductivity interface{} `json:"electricalConductivity"`
	PHValue                interface{} `json:"pHValue"`
	Rainfall               interface{} `json:"rainfall"`
	ET                     interface{} `json:"et"`
	Slope                  interface{} `json:"slope"`
	BulkDensity            interface{} `json:"bulkDensity"`
	ESP                    interface{} `json:"esp"`
	VisiblePests           interface{} `json:"visiblePests"`
	FireFlag               interface{} `json:"fireFlag"`
}

// ParsedIdentity echoes the plant identity the server resolved.
type ParsedIdentity struct {
	SiteCode    string `json:"siteCode"`
	BlockID     string `json:"blockId"`
	GridNumber  string `json:"gridNumber"`
	RowNumber   string `json:"rowNumber"`
	PlantNumber string `json:"plantNumber"`
	SpeciesCode string `json:"speciesCode"`
}

// CreateObservationResponse is the response body for POST /api/observations.
type CreateObservationResponse struct {
	ObservationID           string               `json:"observation_id"`
	Parsed                  ParsedIdentity       `json:"parsed"`
	RulesStatus             string               `json:"rules_status"`
	AlertsCreated           []AlertItem          `json:"alerts_created"`
	RecommendationsCreated  []RecommendationItem `json:"recommendations_created"`
	AlertsResolved          int64                `json:"alerts_resolved"`
	RecommendationsResolved int64                `json:"recommendations_resolved"`
	Warning                 string               `json:"warning,omitempty"`
}

// ========== Finding Types ==========

// AlertItem is an alert as returned by the API.
type AlertItem struct {
	ID            string     `json:"id"`
	SiteID        string     `json:"site_id"`
	ObservationID string     `json:"observation_id"`
	AlertType     string     `json:"alert_type"`
	Severity      string     `json:"severity"`
	Message       string     `json:"message"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// RecommendationItem is a recommendation as returned by the API.
type RecommendationItem struct {
	ID            string     `json:"id"`
	SiteID        string     `json:"site_id"`
	ObservationID string     `json:"observation_id"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	Priority      string     `json:"priority"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// ========== Auth Types ==========

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the response body for POST /auth/login.
type LoginResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}
