package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/blockwatch/blockwatch/internal/database"
)

type countingSiteStore struct {
	ObservationStore
	sites   map[string]database.Site
	lookups int
}

func (s *countingSiteStore) GetSiteByCode(_ context.Context, code string) (*database.Site, error) {
	s.lookups++
	site, ok := s.sites[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &site, nil
}

func TestCachedSites(t *testing.T) {
	store := &countingSiteStore{sites: map[string]database.Site{"Z1": {ID: "site-1", Code: "Z1"}}}
	cached := NewCachedSites(store, time.Minute)
	defer cached.Stop()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		site, err := cached.GetSiteByCode(ctx, "Z1")
		require.NoError(t, err)
		assert.Equal(t, "site-1", site.ID)
	}
	assert.Equal(t, 1, store.lookups, "hits are served from the cache")

	_, err := cached.GetSiteByCode(ctx, "K4")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	store.sites["K4"] = database.Site{ID: "site-2", Code: "K4"}
	site, err := cached.GetSiteByCode(ctx, "K4")
	require.NoError(t, err, "misses are not cached")
	assert.Equal(t, "site-2", site.ID)
}
