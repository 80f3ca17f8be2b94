package services

import (
	"context"
	"time"

	"github.com/blockwatch/blockwatch/internal/database"
)

// LifecycleStore resolves a block's open findings
type LifecycleStore interface {
	ResolveAlerts(ctx context.Context, siteID, blockID string, types []string, at time.Time) (int64, error)
	ResolveRecommendations(ctx context.Context, siteID, blockID string, titles []string, at time.Time) (int64, error)
}

// RuleStore is the storage a rules pass reads from and writes to
type RuleStore interface {
	LifecycleStore
	FindLatestReading(ctx context.Context, siteID, blockID, excludeID string) (*database.Observation, error)
	InsertAlert(ctx context.Context, alert *database.Alert) error
	InsertRecommendation(ctx context.Context, rec *database.Recommendation) error
	UpdateRulesStatus(ctx context.Context, id string, status database.RulesStatus, rulesErr string) error
	Transaction(ctx context.Context, fn func(tx RuleStore) error) error
}

type gormRuleStore struct {
	*database.Store
}

// NewRuleStore adapts a database store to RuleStore
func NewRuleStore(store *database.Store) RuleStore {
	return gormRuleStore{Store: store}
}

func (s gormRuleStore) Transaction(ctx context.Context, fn func(tx RuleStore) error) error {
	return s.Store.Transaction(ctx, func(tx *database.Store) error {
		return fn(gormRuleStore{Store: tx})
	})
}
