package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the persistence layer for sites, observations and the findings their
// rules passes produce. A Store obtained inside Transaction is bound to that transaction.
type Store struct {
	db *gorm.DB
}

// NewStore wraps db
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection or transaction
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn against a Store bound to a single transaction. Any error
// returned by fn rolls the transaction back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// CreateObservation persists obs and fills in its generated ID
func (s *Store) CreateObservation(ctx context.Context, obs *Observation) error {
	if err := s.db.WithContext(ctx).Create(obs).Error; err != nil {
		return fmt.Errorf("failed to create observation: %w", err)
	}
	return nil
}

// GetObservation loads an observation by ID
func (s *Store) GetObservation(ctx context.Context, id string) (*Observation, error) {
	var obs Observation
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&obs).Error; err != nil {
		return nil, fmt.Errorf("failed to get observation %s: %w", id, err)
	}
	return &obs, nil
}

// UpdateRulesStatus records the outcome of an observation's rules pass
func (s *Store) UpdateRulesStatus(ctx context.Context, id string, status RulesStatus, rulesErr string) error {
	err := s.db.WithContext(ctx).Model(&Observation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"rules_status": status,
			"rules_error":  rulesErr,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update rules status for observation %s: %w", id, err)
	}
	return nil
}

// blockOrder sorts newest first; equal submission times fall back to insertion order
const blockOrder = "submitted_on DESC, created_at DESC, id DESC"

// FindLatestReading returns the most recent observation for (siteID, blockID),
// skipping excludeID. It returns nil without error when the block has no other observation.
func (s *Store) FindLatestReading(ctx context.Context, siteID, blockID, excludeID string) (*Observation, error) {
	q := s.db.WithContext(ctx).
		Where("site_id = ? AND block_id = ?", siteID, blockID)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var obs Observation
	err := q.Order(blockOrder).Limit(1).Take(&obs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest reading for block %s/%s: %w", siteID, blockID, err)
	}
	return &obs, nil
}

// FailedObservations returns observations whose rules pass failed, oldest first
func (s *Store) FailedObservations(ctx context.Context, limit int) ([]Observation, error) {
	var out []Observation
	q := s.db.WithContext(ctx).
		Where("rules_status = ?", RulesStatusFailed).
		Order("submitted_on ASC, created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list failed observations: %w", err)
	}
	return out, nil
}

// InsertAlert persists a new active alert
func (s *Store) InsertAlert(ctx context.Context, alert *Alert) error {
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to insert alert %q: %w", alert.AlertType, err)
	}
	return nil
}

// InsertRecommendation persists a new pending recommendation
func (s *Store) InsertRecommendation(ctx context.Context, rec *Recommendation) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to insert recommendation %q: %w", rec.Title, err)
	}
	return nil
}

// blockObservations selects the IDs of every observation in (siteID, blockID)
func (s *Store) blockObservations(siteID, blockID string) *gorm.DB {
	return s.db.Model(&Observation{}).
		Select("id").
		Where("site_id = ? AND block_id = ?", siteID, blockID)
}

// ResolveAlerts marks the block's active alerts of the given types resolved and
// returns how many rows changed.
func (s *Store) ResolveAlerts(ctx context.Context, siteID, blockID string, types []string, at time.Time) (int64, error) {
	if len(types) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&Alert{}).
		Where("site_id = ? AND status = ? AND alert_type IN ?", siteID, AlertStatusActive, types).
		Where("observation_id IN (?)", s.blockObservations(siteID, blockID)).
		Updates(map[string]interface{}{
			"status":      AlertStatusResolved,
			"resolved_at": at,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to resolve alerts for block %s/%s: %w", siteID, blockID, res.Error)
	}
	return res.RowsAffected, nil
}

// ResolveRecommendations marks the block's pending recommendations with the given
// titles resolved and returns how many rows changed.
func (s *Store) ResolveRecommendations(ctx context.Context, siteID, blockID string, titles []string, at time.Time) (int64, error) {
	if len(titles) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&Recommendation{}).
		Where("site_id = ? AND status = ? AND title IN ?", siteID, RecommendationStatusPending, titles).
		Where("observation_id IN (?)", s.blockObservations(siteID, blockID)).
		Updates(map[string]interface{}{
			"status":      RecommendationStatusResolved,
			"resolved_at": at,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to resolve recommendations for block %s/%s: %w", siteID, blockID, res.Error)
	}
	return res.RowsAffected, nil
}

// FindingFilter narrows alert and recommendation listings. Empty fields match everything.
type FindingFilter struct {
	SiteID  string
	BlockID string
	Status  string
}

func (s *Store) applyFindingFilter(q *gorm.DB, f FindingFilter) *gorm.DB {
	if f.SiteID != "" {
		q = q.Where("site_id = ?", f.SiteID)
	}
	if f.BlockID != "" {
		sub := s.db.Model(&Observation{}).Select("id").Where("block_id = ?", f.BlockID)
		if f.SiteID != "" {
			sub = sub.Where("site_id = ?", f.SiteID)
		}
		q = q.Where("observation_id IN (?)", sub)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

// ListAlerts returns one page of alerts, newest first, with the total match count
func (s *Store) ListAlerts(ctx context.Context, f FindingFilter, offset, limit int) ([]Alert, int64, error) {
	var total int64
	if err := s.applyFindingFilter(s.db.WithContext(ctx).Model(&Alert{}), f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	var out []Alert
	err := s.applyFindingFilter(s.db.WithContext(ctx).Model(&Alert{}), f).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	return out, total, nil
}

// ListRecommendations returns one page of recommendations, newest first, with the total match count
func (s *Store) ListRecommendations(ctx context.Context, f FindingFilter, offset, limit int) ([]Recommendation, int64, error) {
	var total int64
	if err := s.applyFindingFilter(s.db.WithContext(ctx).Model(&Recommendation{}), f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count recommendations: %w", err)
	}

	var out []Recommendation
	err := s.applyFindingFilter(s.db.WithContext(ctx).Model(&Recommendation{}), f).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recommendations: %w", err)
	}
	return out, total, nil
}

// GetSiteByCode looks a site up by its barcode prefix
func (s *Store) GetSiteByCode(ctx context.Context, code string) (*Site, error) {
	var site Site
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&site).Error; err != nil {
		return nil, fmt.Errorf("failed to get site %q: %w", code, err)
	}
	return &site, nil
}

// UpsertSite creates the site or updates the name and location of the site with the same code
func (s *Store) UpsertSite(ctx context.Context, site *Site) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "location", "updated_at"}),
	}).Create(site).Error
	if err != nil {
		return fmt.Errorf("failed to upsert site %q: %w", site.Code, err)
	}

	// on conflict the generated ID was discarded, reload the stored row
	stored, err := s.GetSiteByCode(ctx, site.Code)
	if err != nil {
		return err
	}
	*site = *stored
	return nil
}

// ListSites returns every site ordered by code
func (s *Store) ListSites(ctx context.Context) ([]Site, error) {
	var out []Site
	if err := s.db.WithContext(ctx).Order("code ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return out, nil
}
