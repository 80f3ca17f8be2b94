package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/blockwatch/blockwatch/internal/database"
	"github.com/blockwatch/blockwatch/internal/metrics"
	"github.com/blockwatch/blockwatch/internal/rules"
)

// RulesStage names the step of a rules pass that failed
type RulesStage string

const (
	StageLookup    RulesStage = "lookup"
	StagePersist   RulesStage = "persist"
	StageReconcile RulesStage = "reconcile"
)

// RulesPassError reports a rules pass that could not complete. The observation
// itself stays stored; only the derived findings are missing.
type RulesPassError struct {
	ObservationID string
	Stage         RulesStage
	Err           error
}

func (e *RulesPassError) Error() string {
	return fmt.Sprintf("rules pass for observation %s failed at %s: %v", e.ObservationID, e.Stage, e.Err)
}

func (e *RulesPassError) Unwrap() error {
	return e.Err
}

// AlertSink is told about alerts a committed rules pass created
type AlertSink interface {
	AlertsCreated(ctx context.Context, obs *database.Observation, alerts []database.Alert)
}

// IngestResult summarizes one rules pass
type IngestResult struct {
	Evaluation              rules.Evaluation
	PreviousObservationID   string
	FilledFields            []rules.Field
	CreatedAlerts           []database.Alert
	CreatedRecommendations  []database.Recommendation
	ResolvedAlerts          int64
	ResolvedRecommendations int64
}

// IngestionService runs the rules pass for a stored observation: gap-fill from the
// block's previous reading, evaluate, persist findings and reconcile the block.
type IngestionService struct {
	store RuleStore
	locks *BlockLocks
	sinks []AlertSink
	now   func() time.Time
}

// NewIngestionService creates an ingestion service. A nil locks table gets a private one.
func NewIngestionService(store RuleStore, locks *BlockLocks, sinks ...AlertSink) *IngestionService {
	if locks == nil {
		locks = NewBlockLocks()
	}
	return &IngestionService{
		store: store,
		locks: locks,
		sinks: sinks,
		now:   time.Now,
	}
}

// ErrSuperseded is returned by Replay when a newer reading exists in the block
var ErrSuperseded = errors.New("a newer reading exists in the block")

// Ingest runs the rules pass for obs, which must already be persisted. raw carries
// the submitted values; nil falls back to the submission stored on obs. Failures
// come back as *RulesPassError and leave obs marked failed.
func (s *IngestionService) Ingest(ctx context.Context, obs *database.Observation, raw rules.Values) (*IngestResult, error) {
	unlock := s.locks.Lock(obs.SiteID, obs.BlockID)
	defer unlock()

	if raw == nil {
		raw = obs.SubmittedReading().Values
	}
	return s.ingestLocked(ctx, obs, raw)
}

// Replay re-runs the rules pass for a stored observation from its stored
// submission, provided it is still the latest reading of its block. The check
// and the pass share one hold of the block lock, so no newer reading can land
// in between. A superseded observation returns ErrSuperseded and is left as is.
func (s *IngestionService) Replay(ctx context.Context, obs *database.Observation) (*IngestResult, error) {
	unlock := s.locks.Lock(obs.SiteID, obs.BlockID)
	defer unlock()

	latest, err := s.store.FindLatestReading(ctx, obs.SiteID, obs.BlockID, "")
	if err != nil {
		return nil, &RulesPassError{ObservationID: obs.ID, Stage: StageLookup, Err: err}
	}
	if latest == nil || latest.ID != obs.ID {
		return nil, ErrSuperseded
	}
	return s.ingestLocked(ctx, obs, obs.SubmittedReading().Values)
}

// ingestLocked runs the pass; the caller holds the block lock
func (s *IngestionService) ingestLocked(ctx context.Context, obs *database.Observation, raw rules.Values) (*IngestResult, error) {
	start := time.Now()
	defer func() { metrics.IngestDuration.Observe(time.Since(start).Seconds()) }()

	result, err := s.runRules(ctx, obs, raw)
	if err != nil {
		var passErr *RulesPassError
		if errors.As(err, &passErr) {
			metrics.RulesPassFailures.WithLabelValues(string(passErr.Stage)).Inc()
		}
		log.Printf("Ingestion: rules pass failed for observation %s (block %s/%s): %v", obs.ID, obs.SiteID, obs.BlockID, err)
		s.markStatus(ctx, obs.ID, database.RulesStatusFailed, err.Error())
		return nil, err
	}

	s.markStatus(ctx, obs.ID, database.RulesStatusCompleted, "")
	s.record(result)

	if len(result.CreatedAlerts) > 0 {
		for _, sink := range s.sinks {
			sink.AlertsCreated(ctx, obs, result.CreatedAlerts)
		}
	}

	log.Printf("Ingestion: observation %s (block %s/%s): %d alerts, %d recommendations created; %d alerts, %d recommendations resolved",
		obs.ID, obs.SiteID, obs.BlockID,
		len(result.CreatedAlerts), len(result.CreatedRecommendations),
		result.ResolvedAlerts, result.ResolvedRecommendations)
	return result, nil
}

func (s *IngestionService) runRules(ctx context.Context, obs *database.Observation, raw rules.Values) (*IngestResult, error) {
	fail := func(stage RulesStage, err error) error {
		return &RulesPassError{ObservationID: obs.ID, Stage: stage, Err: err}
	}

	prevObs, err := s.store.FindLatestReading(ctx, obs.SiteID, obs.BlockID, obs.ID)
	if err != nil {
		return nil, fail(StageLookup, err)
	}

	result := &IngestResult{}
	current := rules.NewReading(obs.SiteID, obs.BlockID, obs.SubmittedOn, raw)
	var previous *rules.Reading
	if prevObs != nil {
		r := prevObs.Reading()
		previous = &r
		result.PreviousObservationID = prevObs.ID
	}

	merged, filled := rules.ResolveWithReport(current, previous)
	result.FilledFields = filled
	if len(filled) > 0 {
		log.Printf("Ingestion: observation %s gap-filled %v from observation %s", obs.ID, filled, result.PreviousObservationID)
	}

	eval := rules.Evaluate(merged)
	result.Evaluation = eval

	err = s.store.Transaction(ctx, func(tx RuleStore) error {
		alerts := make([]database.Alert, 0, len(eval.Alerts))
		for _, f := range eval.Alerts {
			alert := database.Alert{
				SiteID:        obs.SiteID,
				ObservationID: obs.ID,
				AlertType:     string(f.Type),
				Severity:      string(f.Severity),
				Message:       f.Message,
				Status:        database.AlertStatusActive,
			}
			if err := tx.InsertAlert(ctx, &alert); err != nil {
				return fail(StagePersist, err)
			}
			alerts = append(alerts, alert)
		}

		recs := make([]database.Recommendation, 0, len(eval.Recommendations))
		for _, f := range eval.Recommendations {
			rec := database.Recommendation{
				SiteID:        obs.SiteID,
				ObservationID: obs.ID,
				Title:         string(f.Title),
				Body:          f.Body,
				Priority:      string(f.Priority),
				Status:        database.RecommendationStatusPending,
			}
			if err := tx.InsertRecommendation(ctx, &rec); err != nil {
				return fail(StagePersist, err)
			}
			recs = append(recs, rec)
		}

		lifecycle := NewLifecycleService(tx, s.now)
		resolvedAlerts, err := lifecycle.ReconcileAlerts(ctx, obs.SiteID, obs.BlockID, eval.TriggeredRisks())
		if err != nil {
			return fail(StageReconcile, err)
		}
		resolvedRecs, err := lifecycle.ReconcileRecommendations(ctx, obs.SiteID, obs.BlockID, eval.TriggeredTitles())
		if err != nil {
			return fail(StageReconcile, err)
		}

		result.CreatedAlerts = alerts
		result.CreatedRecommendations = recs
		result.ResolvedAlerts = resolvedAlerts
		result.ResolvedRecommendations = resolvedRecs
		return nil
	})
	if err != nil {
		var passErr *RulesPassError
		if errors.As(err, &passErr) {
			return nil, err
		}
		// commit failed
		return nil, fail(StagePersist, err)
	}
	return result, nil
}

func (s *IngestionService) markStatus(ctx context.Context, id string, status database.RulesStatus, rulesErr string) {
	if err := s.store.UpdateRulesStatus(ctx, id, status, rulesErr); err != nil {
		log.Printf("Warning: failed to mark observation %s rules status %s: %v", id, status, err)
	}
}

func (s *IngestionService) record(result *IngestResult) {
	for _, a := range result.CreatedAlerts {
		metrics.AlertsCreated.WithLabelValues(a.AlertType, a.Severity).Inc()
	}
	for _, r := range result.CreatedRecommendations {
		metrics.RecommendationsCreated.WithLabelValues(r.Title).Inc()
	}
	metrics.AlertsResolved.Add(float64(result.ResolvedAlerts))
	metrics.RecommendationsResolved.Add(float64(result.ResolvedRecommendations))
}
