package testhelpers

import (
	"context"
	"slices"
	"sync"

	"github.com/blockwatch/blockwatch/internal/database"
)

// AlertBatch is one AlertsCreated call seen by a RecordingSink
type AlertBatch struct {
	ObservationID string
	Alerts        []database.Alert
}

// RecordingSink is an alert sink that keeps every batch for later inspection.
// The zero value is ready to use.
type RecordingSink struct {
	mu      sync.Mutex
	batches []AlertBatch
}

func (s *RecordingSink) AlertsCreated(_ context.Context, obs *database.Observation, alerts []database.Alert) {
	batch := AlertBatch{ObservationID: obs.ID, Alerts: slices.Clone(alerts)}
	s.mu.Lock()
	s.batches = append(s.batches, batch)
	s.mu.Unlock()
}

func (s *RecordingSink) Batches() []AlertBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.batches)
}
