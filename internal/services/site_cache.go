package services

import (
	"context"
	"time"

	"github.com/blockwatch/blockwatch/internal/cache"
	"github.com/blockwatch/blockwatch/internal/database"
)

// CachedSites serves site lookups by code from a TTL cache in front of an
// ObservationStore. Only hits are cached, so a newly seeded site is visible
// on the next request.
type CachedSites struct {
	ObservationStore
	sites *cache.Cache[string, database.Site]
}

// NewCachedSites wraps store. Call Stop when done.
func NewCachedSites(store ObservationStore, ttl time.Duration) *CachedSites {
	return &CachedSites{
		ObservationStore: store,
		sites:            cache.New[string, database.Site](ttl, ttl),
	}
}

// GetSiteByCode returns the cached site or loads it from the store
func (c *CachedSites) GetSiteByCode(ctx context.Context, code string) (*database.Site, error) {
	if site, ok := c.sites.Get(code); ok {
		return &site, nil
	}

	site, err := c.ObservationStore.GetSiteByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	c.sites.Set(code, *site)
	return site, nil
}

// Stop ends the cache's cleanup goroutine
func (c *CachedSites) Stop() {
	c.sites.Stop()
}
