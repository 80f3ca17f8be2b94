package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockwatch/blockwatch/internal/database"
	"github.com/blockwatch/blockwatch/internal/rules"
	"github.com/blockwatch/blockwatch/internal/testhelpers"
)

func TestParseBarcode(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		want    Identity
		wantErr bool
	}{
		{
			name: "standard",
			code: "Z1A3017032011",
			want: Identity{SiteCode: "Z1", BlockID: "A", GridNumber: "30", RowNumber: "17", PlantNumber: "032", SpeciesCode: "011"},
		},
		{
			name: "trailing characters ignored",
			code: "K4C0102003100XYZ",
			want: Identity{SiteCode: "K4", BlockID: "C", GridNumber: "01", RowNumber: "02", PlantNumber: "003", SpeciesCode: "100"},
		},
		{name: "too short", code: "Z1A30170320", wantErr: true},
		{name: "empty", code: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBarcode(tt.code)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidIdentity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveIdentity(t *testing.T) {
	manual := Identity{SiteCode: "Z2", BlockID: "B", GridNumber: "1", RowNumber: "2", PlantNumber: "3", SpeciesCode: "4"}

	got, err := ObservationInput{Barcode: "Z1A3017032011", Manual: manual}.ResolveIdentity()
	require.NoError(t, err)
	assert.Equal(t, "Z1", got.SiteCode, "barcode wins over manual fields")

	got, err = ObservationInput{Barcode: "short", Manual: manual}.ResolveIdentity()
	require.NoError(t, err)
	assert.Equal(t, manual, got)

	partial := manual
	partial.SpeciesCode = " "
	_, err = ObservationInput{Manual: partial}.ResolveIdentity()
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

type stubIngester struct {
	calls int
	raw   rules.Values
	err   error
}

func (s *stubIngester) Ingest(_ context.Context, _ *database.Observation, raw rules.Values) (*IngestResult, error) {
	s.calls++
	s.raw = raw
	if s.err != nil {
		return nil, s.err
	}
	return &IngestResult{}, nil
}

func TestRecord_StoresObservation(t *testing.T) {
	store := testhelpers.NewTestStore(t)
	site := testhelpers.SeedSite(t, store, "Z1")
	ingester := &stubIngester{}
	svc := NewObservationService(store, ingester)
	submitted := time.Date(2024, 7, 3, 10, 0, 0, 0, time.UTC)

	res, err := svc.Record(context.Background(), ObservationInput{
		Barcode:       "Z1A3017032011",
		SubmittedBy:   "  ana  ",
		SubmittedOn:   &submitted,
		GPS:           &GPS{Lat: -1.5, Lon: 36.8},
		SpotsOnLeaves: "Yes",
		YellowLeaves:  "No",
		Measurements:  map[string]interface{}{"fruitHeight": 1.4},
		Values: rules.Values{
			rules.FieldTemperature:            "31.5",
			rules.FieldSoilMoisture:           "",
			rules.FieldElectricalConductivity: 4.5,
			rules.FieldSlope:                  "Moderate",
			rules.FieldVisiblePests:           "No",
			rules.FieldRainfall:               "n/a",
		},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Warning)
	assert.Equal(t, 1, ingester.calls)
	assert.Equal(t, "31.5", ingester.raw[rules.FieldTemperature], "the rules pass sees the submitted values")

	obs, err := store.GetObservation(context.Background(), res.Observation.ID)
	require.NoError(t, err)
	assert.Equal(t, site.ID, obs.SiteID)
	assert.Equal(t, "A", obs.BlockID)
	assert.Equal(t, "30", obs.GridNumber)
	assert.Equal(t, "ana", obs.SubmittedBy)
	assert.True(t, obs.SubmittedOn.Equal(submitted))
	assert.Equal(t, "-1.5,36.8", obs.LocationGPS)
	require.NotNil(t, obs.SpotsOnLeaves)
	assert.True(t, *obs.SpotsOnLeaves)
	require.NotNil(t, obs.YellowLeaves)
	assert.False(t, *obs.YellowLeaves)
	assert.Nil(t, obs.DroopingLeaves)

	require.NotNil(t, obs.Temperature)
	assert.Equal(t, 31.5, *obs.Temperature)
	assert.Nil(t, obs.SoilMoisture, "blank readings are stored as not measured")
	assert.Nil(t, obs.Rainfall, "unparseable readings are stored as not measured")
	require.NotNil(t, obs.Slope)
	assert.Equal(t, "Moderate", *obs.Slope)
	require.NotNil(t, obs.VisiblePests)
	assert.False(t, *obs.VisiblePests)
	assert.Equal(t, 1.4, obs.Measurements["fruitHeight"])
}

func TestRecord_Validation(t *testing.T) {
	store := testhelpers.NewTestStore(t)
	testhelpers.SeedSite(t, store, "Z1")
	ingester := &stubIngester{}
	svc := NewObservationService(store, ingester)

	_, err := svc.Record(context.Background(), ObservationInput{SubmittedBy: "ana"})
	assert.ErrorIs(t, err, ErrInvalidIdentity)

	_, err = svc.Record(context.Background(), ObservationInput{Barcode: "Z1A3017032011"})
	assert.ErrorIs(t, err, ErrMissingSubmitter)

	_, err = svc.Record(context.Background(), ObservationInput{Barcode: "Q9A3017032011", SubmittedBy: "ana"})
	assert.ErrorIs(t, err, ErrSiteNotFound)
	assert.Contains(t, err.Error(), "Q9")

	assert.Zero(t, ingester.calls)
}

func TestRecord_RulesFailureBecomesWarning(t *testing.T) {
	store := testhelpers.NewTestStore(t)
	testhelpers.SeedSite(t, store, "Z1")
	ingester := &stubIngester{err: &RulesPassError{ObservationID: "x", Stage: StagePersist, Err: errors.New("disk full")}}
	svc := NewObservationService(store, ingester)

	res, err := svc.Record(context.Background(), ObservationInput{Barcode: "Z1A3017032011", SubmittedBy: "ana"})

	require.NoError(t, err)
	assert.Contains(t, res.Warning, "disk full")
	assert.Nil(t, res.Ingest)

	_, err = store.GetObservation(context.Background(), res.Observation.ID)
	assert.NoError(t, err, "observation is kept")
}

func TestRecord_EndToEnd(t *testing.T) {
	store := testhelpers.NewTestStore(t)
	testhelpers.SeedSite(t, store, "Z1")
	ingestion := NewIngestionService(NewRuleStore(store), NewBlockLocks())
	svc := NewObservationService(store, ingestion)

	res, err := svc.Record(context.Background(), ObservationInput{
		Barcode:     "Z1A3017032011",
		SubmittedBy: "ana",
		Values: rules.Values{
			rules.FieldTemperature: "36",
			rules.FieldMoisture:    "15",
			rules.FieldRainfall:    "40",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Ingest)
	require.Len(t, res.Ingest.CreatedAlerts, 1)
	assert.Equal(t, "Fire Risk", res.Ingest.CreatedAlerts[0].AlertType)
	assert.Equal(t, "High", res.Ingest.CreatedAlerts[0].Severity)
}

func TestRecord_ReplayEvaluatesTheSameSubmission(t *testing.T) {
	store := testhelpers.NewTestStore(t)
	site := testhelpers.SeedSite(t, store, "Z1")
	ingestion := NewIngestionService(NewRuleStore(store), NewBlockLocks())
	svc := NewObservationService(store, ingestion)
	ctx := context.Background()

	testhelpers.SeedObservation(t, store, testhelpers.NewObservationBuilder().
		InBlock(site.ID, "A").
		SubmittedOn(time.Now().Add(-time.Hour)).
		WithEC(4.5).
		Build())

	// "n/a" is submitted, so it is not gap-filled; it evaluates as 0
	res, err := svc.Record(ctx, ObservationInput{
		Barcode:     "Z1A3017032011",
		SubmittedBy: "ana",
		Values:      rules.Values{rules.FieldElectricalConductivity: "n/a"},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Ingest)
	assert.False(t, res.Ingest.Evaluation.TriggeredRisks().Contains(rules.RiskSalinity))
	assert.NotContains(t, res.Ingest.FilledFields, rules.FieldElectricalConductivity)

	stored, err := store.GetObservation(ctx, res.Observation.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ElectricalConductivity)
	assert.Equal(t, "n/a", stored.Submitted[string(rules.FieldElectricalConductivity)])

	replay, err := ingestion.Replay(ctx, stored)
	require.NoError(t, err)
	assert.True(t, res.Ingest.Evaluation.TriggeredRisks().Equal(replay.Evaluation.TriggeredRisks()),
		"first pass %v, replay %v", res.Ingest.Evaluation.TriggeredRisks(), replay.Evaluation.TriggeredRisks())
	assert.Equal(t, res.Ingest.FilledFields, replay.FilledFields)
	assert.Equal(t, res.Ingest.Evaluation.Alerts, replay.Evaluation.Alerts)
}
