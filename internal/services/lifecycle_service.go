package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/blockwatch/blockwatch/internal/rules"
)

// LifecycleService auto-resolves a block's alerts and recommendations whose
// condition did not fire on the latest rules pass.
type LifecycleService struct {
	store LifecycleStore
	now   func() time.Time
}

// NewLifecycleService creates a reconciler over store. A nil clock uses time.Now.
func NewLifecycleService(store LifecycleStore, now func() time.Time) *LifecycleService {
	if now == nil {
		now = time.Now
	}
	return &LifecycleService{store: store, now: now}
}

// ReconcileAlerts resolves every active alert at (siteID, blockID) whose type is in
// the risk universe but not in triggered. Alert types outside the universe are left alone.
func (s *LifecycleService) ReconcileAlerts(ctx context.Context, siteID, blockID string, triggered mapset.Set[rules.RiskType]) (int64, error) {
	stale := rules.RiskUniverse().Difference(unsafeCopy(triggered))
	if stale.Cardinality() == 0 {
		return 0, nil
	}

	n, err := s.store.ResolveAlerts(ctx, siteID, blockID, sortedStrings(stale), s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile alerts: %w", err)
	}
	return n, nil
}

// ReconcileRecommendations resolves every pending recommendation at (siteID, blockID)
// whose title is stateful but was not generated this pass.
func (s *LifecycleService) ReconcileRecommendations(ctx context.Context, siteID, blockID string, triggered mapset.Set[rules.RecommendationTitle]) (int64, error) {
	stale := rules.RecommendationUniverse().Difference(unsafeCopy(triggered))
	if stale.Cardinality() == 0 {
		return 0, nil
	}

	n, err := s.store.ResolveRecommendations(ctx, siteID, blockID, sortedStrings(stale), s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile recommendations: %w", err)
	}
	return n, nil
}

// unsafeCopy normalizes any Set implementation (or nil) to a thread-unsafe set so
// it can be differenced against the universe.
func unsafeCopy[T comparable](s mapset.Set[T]) mapset.Set[T] {
	if s == nil {
		return mapset.NewThreadUnsafeSet[T]()
	}
	return mapset.NewThreadUnsafeSet(s.ToSlice()...)
}

func sortedStrings[T ~string](s mapset.Set[T]) []string {
	out := make([]string, 0, s.Cardinality())
	for _, v := range s.ToSlice() {
		out = append(out, string(v))
	}
	sort.Strings(out)
	return out
}
