package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/blockwatch/blockwatch/internal/database"
	"github.com/blockwatch/blockwatch/internal/metrics"
	"github.com/blockwatch/blockwatch/internal/services"
)

// retryBatchSize caps how many failed observations one run picks up
const retryBatchSize = 100

const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
)

// RetryStore is the storage the retry job needs
type RetryStore interface {
	FailedObservations(ctx context.Context, limit int) ([]database.Observation, error)
	UpdateRulesStatus(ctx context.Context, id string, status database.RulesStatus, rulesErr string) error
}

// Replayer re-runs a stored observation's rules pass if it is still the latest
// reading of its block, returning services.ErrSuperseded otherwise
type Replayer interface {
	Replay(ctx context.Context, obs *database.Observation) (*services.IngestResult, error)
}

// RulesRetryJob re-runs failed rules passes. Only an observation that is still
// the latest reading in its block is re-ingested; a superseded one is marked
// skipped, since a newer reading already decided the block's state.
type RulesRetryJob struct {
	store    RetryStore
	replayer Replayer
}

// NewRulesRetryJob creates a new retry job
func NewRulesRetryJob(store RetryStore, replayer Replayer) *RulesRetryJob {
	return &RulesRetryJob{store: store, replayer: replayer}
}

// RunOnce retries every failed observation it finds and returns how many completed
func (j *RulesRetryJob) RunOnce(ctx context.Context) (int, error) {
	failed, err := j.store.FailedObservations(ctx, retryBatchSize)
	if err != nil {
		return 0, err
	}

	completed := 0
	for i := range failed {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		obs := &failed[i]

		_, err := j.replayer.Replay(ctx, obs)
		var passErr *services.RulesPassError
		switch {
		case err == nil:
			metrics.RulesRetries.WithLabelValues(outcomeCompleted).Inc()
			completed++
		case errors.Is(err, services.ErrSuperseded):
			if err := j.store.UpdateRulesStatus(ctx, obs.ID, database.RulesStatusSkipped, obs.RulesError); err != nil {
				log.Printf("RulesRetry: Failed to mark observation %s skipped: %v", obs.ID, err)
				continue
			}
			metrics.RulesRetries.WithLabelValues(outcomeSkipped).Inc()
			log.Printf("RulesRetry: Observation %s superseded by a newer reading, skipped", obs.ID)
		case errors.As(err, &passErr):
			metrics.RulesRetries.WithLabelValues(outcomeFailed).Inc()
			log.Printf("RulesRetry: Observation %s failed again at %s", obs.ID, passErr.Stage)
		default:
			metrics.RulesRetries.WithLabelValues(outcomeFailed).Inc()
			log.Printf("RulesRetry: Observation %s: %v", obs.ID, err)
		}
	}

	return completed, nil
}

// Start runs the job every interval until ctx is cancelled
func (j *RulesRetryJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			completed, err := j.RunOnce(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("RulesRetry error: %v", err)
			} else if completed > 0 {
				log.Printf("RulesRetry: re-ran rules for %d observations", completed)
			}
		case <-ctx.Done():
			log.Println("RulesRetry stopped")
			return
		}
	}
}
