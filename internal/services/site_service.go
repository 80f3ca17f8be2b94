package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/blockwatch/blockwatch/internal/database"
)

// SiteSeed is one entry of the sites file
type SiteSeed struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Location string `yaml:"location,omitempty"`
}

type sitesFile struct {
	Sites []SiteSeed `yaml:"sites"`
}

// ParseSites decodes a sites file:
//
//	sites:
//	  - code: Z1
//	    name: Zone One
func ParseSites(data []byte) ([]SiteSeed, error) {
	var f sitesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sites file: %w", err)
	}

	seen := make(map[string]bool, len(f.Sites))
	for i, s := range f.Sites {
		code := strings.TrimSpace(s.Code)
		if code == "" {
			return nil, fmt.Errorf("site #%d has no code", i+1)
		}
		if seen[code] {
			return nil, fmt.Errorf("duplicate site code %q", code)
		}
		seen[code] = true
		f.Sites[i].Code = code
	}
	return f.Sites, nil
}

// LoadSitesFile reads and parses the sites file at path
func LoadSitesFile(path string) ([]SiteSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sites file: %w", err)
	}
	return ParseSites(data)
}

// SiteStore is the storage site seeding needs
type SiteStore interface {
	UpsertSite(ctx context.Context, site *database.Site) error
}

// SiteService maintains the site registry
type SiteService struct {
	store SiteStore
}

// NewSiteService creates a site service
func NewSiteService(store SiteStore) *SiteService {
	return &SiteService{store: store}
}

// Seed creates or updates every site in seeds and returns how many were written
func (s *SiteService) Seed(ctx context.Context, seeds []SiteSeed) (int, error) {
	for i, seed := range seeds {
		site := &database.Site{Code: seed.Code, Name: seed.Name, Location: seed.Location}
		if err := s.store.UpsertSite(ctx, site); err != nil {
			return i, err
		}
	}
	log.Printf("Sites: seeded %d sites", len(seeds))
	return len(seeds), nil
}
