package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blockwatch/blockwatch/internal/rules"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Measurements holds the free-form crop growth readings of an observation
// (fruit height, new shoots and the like) in a jsonb column.
type Measurements map[string]interface{}

func (m *Measurements) Scan(src interface{}) error {
	return scanJSONColumn("measurements", src, (*map[string]interface{})(m))
}

func (m Measurements) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// SubmittedValues keeps the environmental readings exactly as the client sent
// them, unparseable strings included, so a later rules pass sees what the first
// one saw.
type SubmittedValues map[string]interface{}

func (v *SubmittedValues) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}
	return scanJSONColumn("submitted values", src, (*map[string]interface{})(v))
}

func (v SubmittedValues) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// NewSubmittedValues copies rules values into their stored form with pointers
// dereferenced.
func NewSubmittedValues(values rules.Values) SubmittedValues {
	r := rules.Reading{Values: values}
	out := make(SubmittedValues, len(values))
	for f := range values {
		out[string(f)] = r.Raw(f)
	}
	return out
}

// Rules returns the stored values keyed by field
func (v SubmittedValues) Rules() rules.Values {
	out := make(rules.Values, len(v))
	for k, val := range v {
		out[rules.Field(k)] = val
	}
	return out
}

func scanJSONColumn(what string, src interface{}, dst *map[string]interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*dst = map[string]interface{}{}
		return nil
	case []byte:
		raw = v
	case string:
		// sqlite returns text columns as strings
		raw = []byte(v)
	default:
		return fmt.Errorf("%s: cannot scan %T", what, src)
	}
	return json.Unmarshal(raw, dst)
}

// Site is a farm or plantation; observations are keyed to it by its short code
type Site struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Code      string    `gorm:"uniqueIndex;size:16;not null" json:"code"` // barcode prefix, e.g. "Z1"
	Name      string    `gorm:"size:255" json:"name"`
	Location  string    `gorm:"size:255" json:"location"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RulesStatus tracks whether the rules pass ran for an observation
type RulesStatus string

const (
	RulesStatusPending   RulesStatus = "pending"
	RulesStatusCompleted RulesStatus = "completed"
	RulesStatusFailed    RulesStatus = "failed"
	RulesStatusSkipped   RulesStatus = "skipped" // failed, then superseded by a newer reading
)

// Observation is one field visit to a plant in a block
type Observation struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	SiteID      string    `gorm:"size:36;not null;index:idx_observations_block" json:"site_id"`
	BlockID     string    `gorm:"size:16;not null;index:idx_observations_block" json:"block_id"`
	GridNumber  string    `gorm:"size:8" json:"grid_number"`
	RowNumber   string    `gorm:"size:8" json:"row_number"`
	PlantNumber string    `gorm:"size:8" json:"plant_number"`
	SpeciesCode string    `gorm:"size:8" json:"species_code"`
	SubmittedBy string    `gorm:"size:255;not null" json:"submitted_by"`
	SubmittedOn time.Time `gorm:"not null;index" json:"submitted_on"`
	LocationGPS string    `gorm:"size:64" json:"location_gps,omitempty"`

	// Plant health
	SpotsOnLeaves    *bool        `json:"spots_on_leaves,omitempty"`
	YellowLeaves     *bool        `json:"yellow_leaves,omitempty"`
	DroopingLeaves   *bool        `json:"drooping_leaves,omitempty"`
	RecentPestDamage *bool        `json:"recent_pest_damage,omitempty"`
	TypeOfPest       string       `gorm:"size:255" json:"type_of_pest,omitempty"`
	Notes            string       `gorm:"type:text" json:"notes,omitempty"`
	TransectLineName string       `gorm:"size:255" json:"transect_line_name,omitempty"`
	Measurements     Measurements `gorm:"type:jsonb" json:"measurements,omitempty"` // crop growth measurements

	// Environmental readings; nil means not measured on this visit
	Temperature            *float64 `json:"temperature"`
	Moisture               *float64 `json:"moisture"`
	SoilMoisture           *float64 `json:"soil_moisture"`
	ElectricalConductivity *float64 `json:"electrical_conductivity"`
	PHValue                *float64 `json:"ph_value"`
	Rainfall               *float64 `json:"rainfall"`
	ET                     *float64 `json:"et"`
	Slope                  *string  `gorm:"size:16" json:"slope"`
	BulkDensity            *float64 `json:"bulk_density"`
	ESP                    *float64 `json:"esp"`
	VisiblePests           *bool    `json:"visible_pests"`
	FireFlag               *bool    `json:"fire_flag"`

	// Submitted is nil for rows written before it existed; Reading() covers those.
	Submitted SubmittedValues `gorm:"column:submitted_values;type:jsonb" json:"-"`

	RulesStatus RulesStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"rules_status"`
	RulesError  string      `gorm:"type:text" json:"rules_error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// BeforeCreate assigns the primary key and submission time
func (o *Observation) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.SubmittedOn.IsZero() {
		o.SubmittedOn = time.Now()
	}
	if o.RulesStatus == "" {
		o.RulesStatus = RulesStatusPending
	}
	return nil
}

// Reading returns the stored measurements as a rules reading. Columns that were
// not measured are left out so they read as blank.
func (o *Observation) Reading() rules.Reading {
	v := rules.Values{}
	setFloat := func(f rules.Field, p *float64) {
		if p != nil {
			v[f] = *p
		}
	}
	setFloat(rules.FieldTemperature, o.Temperature)
	setFloat(rules.FieldMoisture, o.Moisture)
	setFloat(rules.FieldSoilMoisture, o.SoilMoisture)
	setFloat(rules.FieldElectricalConductivity, o.ElectricalConductivity)
	setFloat(rules.FieldPHValue, o.PHValue)
	setFloat(rules.FieldRainfall, o.Rainfall)
	setFloat(rules.FieldET, o.ET)
	setFloat(rules.FieldBulkDensity, o.BulkDensity)
	setFloat(rules.FieldESP, o.ESP)
	if o.Slope != nil {
		v[rules.FieldSlope] = *o.Slope
	}
	if o.VisiblePests != nil {
		v[rules.FieldVisiblePests] = *o.VisiblePests
	}
	if o.FireFlag != nil {
		v[rules.FieldFireFlag] = *o.FireFlag
	}
	return rules.NewReading(o.SiteID, o.BlockID, o.SubmittedOn, v)
}

// SubmittedReading is the reading a rules pass evaluates for this observation:
// the values as submitted when they were kept, the stored columns otherwise.
func (o *Observation) SubmittedReading() rules.Reading {
	if o.Submitted == nil {
		return o.Reading()
	}
	return rules.NewReading(o.SiteID, o.BlockID, o.SubmittedOn, o.Submitted.Rules())
}

// AlertStatus is the lifecycle state of an alert
type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "active"
	AlertStatusResolved AlertStatus = "resolved"
)

// Alert is a risk raised for a block by one observation's rules pass
type Alert struct {
	ID            string      `gorm:"primaryKey;size:36" json:"id"`
	SiteID        string      `gorm:"size:36;not null;index" json:"site_id"`
	ObservationID string      `gorm:"size:36;not null;index" json:"observation_id"`
	AlertType     string      `gorm:"type:varchar(64);not null;index" json:"alert_type"`
	Severity      string      `gorm:"type:varchar(20);not null" json:"severity"`
	Message       string      `gorm:"type:text" json:"message"`
	Status        AlertStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	ResolvedAt    *time.Time  `json:"resolved_at,omitempty"`

	Observation *Observation `gorm:"foreignKey:ObservationID" json:"-"`
}

// BeforeCreate assigns the primary key
func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = AlertStatusActive
	}
	return nil
}

// RecommendationStatus is the lifecycle state of a recommendation
type RecommendationStatus string

const (
	RecommendationStatusPending  RecommendationStatus = "pending"
	RecommendationStatusResolved RecommendationStatus = "resolved"
)

// Recommendation is advice generated for a block by one observation's rules pass
type Recommendation struct {
	ID            string               `gorm:"primaryKey;size:36" json:"id"`
	SiteID        string               `gorm:"size:36;not null;index" json:"site_id"`
	ObservationID string               `gorm:"size:36;not null;index" json:"observation_id"`
	Title         string               `gorm:"type:varchar(128);not null;index" json:"title"`
	Body          string               `gorm:"type:text" json:"body"`
	Priority      string               `gorm:"type:varchar(20);not null" json:"priority"`
	Status        RecommendationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt     time.Time            `json:"created_at"`
	ResolvedAt    *time.Time           `json:"resolved_at,omitempty"`

	Observation *Observation `gorm:"foreignKey:ObservationID" json:"-"`
}

// BeforeCreate assigns the primary key
func (r *Recommendation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = RecommendationStatusPending
	}
	return nil
}

// BeforeCreate assigns the primary key
func (s *Site) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// TableName overrides for explicit table naming
func (Site) TableName() string {
	return "sites"
}

func (Observation) TableName() string {
	return "observations"
}

func (Alert) TableName() string {
	return "alerts"
}

func (Recommendation) TableName() string {
	return "recommendations"
}
