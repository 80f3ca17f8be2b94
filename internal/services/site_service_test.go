package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockwatch/blockwatch/internal/testhelpers"
)

const sitesYAML = `sites:
  - code: Z1
    name: Zone One
    location: Upper valley
  - code: " K4 "
    name: Kitere farm
`

func TestParseSites(t *testing.T) {
	seeds, err := ParseSites([]byte(sitesYAML))
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, "Z1", seeds[0].Code)
	assert.Equal(t, "Upper valley", seeds[0].Location)
	assert.Equal(t, "K4", seeds[1].Code, "codes are trimmed")
}

func TestParseSites_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "missing code", data: "sites:\n  - name: nowhere\n"},
		{name: "duplicate", data: "sites:\n  - code: Z1\n  - code: Z1\n"},
		{name: "not yaml", data: "sites: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSites([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestSiteService_SeedFromFile(t *testing.T) {
	path := testhelpers.WriteTestFile(t, t.TempDir(), "sites.yaml", sitesYAML)
	store := testhelpers.NewTestStore(t)

	seeds, err := LoadSitesFile(path)
	require.NoError(t, err)

	svc := NewSiteService(store)
	n, err := svc.Seed(context.Background(), seeds)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// seeding again updates in place
	_, err = svc.Seed(context.Background(), seeds)
	require.NoError(t, err)

	sites, err := store.ListSites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "K4", sites[0].Code)
	assert.Equal(t, "Kitere farm", sites[0].Name)
}

func TestLoadSitesFile_Missing(t *testing.T) {
	_, err := LoadSitesFile("/nonexistent/sites.yaml")
	assert.Error(t, err)
}
