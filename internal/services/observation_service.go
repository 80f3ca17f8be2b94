package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/blockwatch/blockwatch/internal/database"
	"github.com/blockwatch/blockwatch/internal/metrics"
	"github.com/blockwatch/blockwatch/internal/rules"
	"github.com/blockwatch/blockwatch/internal/utils"
)

// BarcodeLength is the minimum length of a plant barcode
const BarcodeLength = 13

var (
	// ErrInvalidIdentity means neither a usable barcode nor a complete manual identity was given
	ErrInvalidIdentity = errors.New("either a valid barcode or all manual identity fields (site, block, grid, row, plant, species) are required")

	// ErrMissingSubmitter means submittedBy was empty
	ErrMissingSubmitter = errors.New("missing required field: submittedBy")

	// ErrSiteNotFound means the identity's site code matches no site
	ErrSiteNotFound = errors.New("site not found")
)

// Identity locates a plant: site code, block, grid, row, plant number and species
type Identity struct {
	SiteCode    string `json:"site_code"`
	BlockID     string `json:"block_id"`
	GridNumber  string `json:"grid_number"`
	RowNumber   string `json:"row_number"`
	PlantNumber string `json:"plant_number"`
	SpeciesCode string `json:"species_code"`
}

func (id Identity) complete() bool {
	for _, v := range []string{id.SiteCode, id.BlockID, id.GridNumber, id.RowNumber, id.PlantNumber, id.SpeciesCode} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// ParseBarcode splits a plant barcode such as Z1A3017032011 into site Z1, block A,
// grid 30, row 17, plant 032 and species 011. Characters past the 13th are ignored.
func ParseBarcode(code string) (Identity, error) {
	r := []rune(strings.TrimSpace(code))
	if len(r) < BarcodeLength {
		return Identity{}, fmt.Errorf("barcode %q is shorter than %d characters: %w", code, BarcodeLength, ErrInvalidIdentity)
	}
	return Identity{
		SiteCode:    string(r[0:2]),
		BlockID:     string(r[2:3]),
		GridNumber:  string(r[3:5]),
		RowNumber:   string(r[5:7]),
		PlantNumber: string(r[7:10]),
		SpeciesCode: string(r[10:13]),
	}, nil
}

// GPS is a location fix from the submitting device
type GPS struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ObservationInput is one submitted field visit
type ObservationInput struct {
	Barcode     string
	Manual      Identity
	SubmittedBy string
	SubmittedOn *time.Time
	GPS         *GPS

	// Yes/No answers
	SpotsOnLeaves    string
	YellowLeaves     string
	DroopingLeaves   string
	RecentPestDamage string

	TypeOfPest       string
	Notes            string
	TransectLineName string
	Measurements     map[string]interface{}

	// Environmental readings as submitted, including visiblePests and fireFlag
	Values rules.Values
}

// ResolveIdentity prefers the barcode and falls back to the manual fields
func (in ObservationInput) ResolveIdentity() (Identity, error) {
	if len([]rune(strings.TrimSpace(in.Barcode))) >= BarcodeLength {
		return ParseBarcode(in.Barcode)
	}
	if in.Manual.complete() {
		return in.Manual, nil
	}
	return Identity{}, ErrInvalidIdentity
}

// RecordResult is the outcome of recording an observation. Warning is set when
// the observation was saved but its rules pass failed.
type RecordResult struct {
	Observation *database.Observation
	Identity    Identity
	Ingest      *IngestResult
	Warning     string
}

// ObservationStore is the storage observation intake needs
type ObservationStore interface {
	GetSiteByCode(ctx context.Context, code string) (*database.Site, error)
	CreateObservation(ctx context.Context, obs *database.Observation) error
}

// Ingester runs the rules pass for a stored observation
type Ingester interface {
	Ingest(ctx context.Context, obs *database.Observation, raw rules.Values) (*IngestResult, error)
}

// ObservationService records field observations and triggers their rules pass
type ObservationService struct {
	store    ObservationStore
	ingester Ingester
	now      func() time.Time
}

// NewObservationService creates an observation service
func NewObservationService(store ObservationStore, ingester Ingester) *ObservationService {
	return &ObservationService{store: store, ingester: ingester, now: time.Now}
}

// Record validates and stores an observation, then runs its rules pass. The stored
// observation is kept even when the rules pass fails.
func (s *ObservationService) Record(ctx context.Context, in ObservationInput) (*RecordResult, error) {
	identity, err := in.ResolveIdentity()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.SubmittedBy) == "" {
		return nil, ErrMissingSubmitter
	}

	site, err := s.store.GetSiteByCode(ctx, identity.SiteCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("site with code %s: %w", identity.SiteCode, ErrSiteNotFound)
		}
		return nil, fmt.Errorf("failed to look up site %s: %w", identity.SiteCode, err)
	}

	obs := s.buildObservation(site, identity, in)
	if err := s.store.CreateObservation(ctx, obs); err != nil {
		return nil, err
	}
	metrics.ObservationsRecorded.Inc()
	log.Printf("Observation created: %s (site %s, block %s, plant %s)", obs.ID, identity.SiteCode, identity.BlockID, identity.PlantNumber)

	result := &RecordResult{Observation: obs, Identity: identity}
	ingest, err := s.ingester.Ingest(ctx, obs, in.Values)
	if err != nil {
		log.Printf("Warning: observation %s saved without findings: %v", obs.ID, err)
		result.Warning = fmt.Sprintf("Observation saved, but the rules pass failed: %v", err)
		return result, nil
	}
	result.Ingest = ingest
	return result, nil
}

func (s *ObservationService) buildObservation(site *database.Site, id Identity, in ObservationInput) *database.Observation {
	submittedOn := s.now()
	if in.SubmittedOn != nil && !in.SubmittedOn.IsZero() {
		submittedOn = *in.SubmittedOn
	}

	r := rules.NewReading(site.ID, id.BlockID, submittedOn, in.Values)
	obs := &database.Observation{
		SiteID:           site.ID,
		BlockID:          id.BlockID,
		GridNumber:       id.GridNumber,
		RowNumber:        id.RowNumber,
		PlantNumber:      id.PlantNumber,
		SpeciesCode:      id.SpeciesCode,
		SubmittedBy:      utils.StripControl(strings.TrimSpace(in.SubmittedBy)),
		SubmittedOn:      submittedOn,
		SpotsOnLeaves:    yesNo(in.SpotsOnLeaves),
		YellowLeaves:     yesNo(in.YellowLeaves),
		DroopingLeaves:   yesNo(in.DroopingLeaves),
		RecentPestDamage: yesNo(in.RecentPestDamage),
		TypeOfPest:       utils.StripControl(in.TypeOfPest),
		Notes:            utils.StripControl(in.Notes),
		TransectLineName: utils.StripControl(in.TransectLineName),

		Temperature:            optionalFloat(r, rules.FieldTemperature),
		Moisture:               optionalFloat(r, rules.FieldMoisture),
		SoilMoisture:           optionalFloat(r, rules.FieldSoilMoisture),
		ElectricalConductivity: optionalFloat(r, rules.FieldElectricalConductivity),
		PHValue:                optionalFloat(r, rules.FieldPHValue),
		Rainfall:               optionalFloat(r, rules.FieldRainfall),
		ET:                     optionalFloat(r, rules.FieldET),
		BulkDensity:            optionalFloat(r, rules.FieldBulkDensity),
		ESP:                    optionalFloat(r, rules.FieldESP),
		Slope:                  optionalText(r, rules.FieldSlope),
		VisiblePests:           optionalFlag(r, rules.FieldVisiblePests),
		FireFlag:               optionalFlag(r, rules.FieldFireFlag),

		Submitted: database.NewSubmittedValues(in.Values),
	}
	if in.GPS != nil {
		obs.LocationGPS = fmt.Sprintf("%v,%v", in.GPS.Lat, in.GPS.Lon)
	}
	if len(in.Measurements) > 0 {
		obs.Measurements = database.Measurements(in.Measurements)
	}
	return obs
}

// optionalFloat stores a measurement only when one was given and it parses
func optionalFloat(r rules.Reading, f rules.Field) *float64 {
	if _, isBool := r.Raw(f).(bool); isBool {
		return nil
	}
	n, ok := r.Float(f)
	if !ok {
		return nil
	}
	return &n
}

func optionalText(r rules.Reading, f rules.Field) *string {
	s, ok := r.Raw(f).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	s = strings.TrimSpace(s)
	return &s
}

// optionalFlag keeps Yes/No and boolean answers; anything else is unanswered
func optionalFlag(r rules.Reading, f rules.Field) *bool {
	switch v := r.Raw(f).(type) {
	case bool:
		return &v
	case string:
		return yesNo(v)
	case nil:
		return nil
	default:
		b := r.Bool(f)
		return &b
	}
}

func yesNo(v string) *bool {
	switch v {
	case "Yes":
		t := true
		return &t
	case "No":
		f := false
		return &f
	default:
		return nil
	}
}
