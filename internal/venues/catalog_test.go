// internal/venues/catalog_test.go
package venues

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *StaticCatalog {
	return NewStaticCatalog([]Venue{
		{
			ID:   "mensa-nord",
			Name: "Mensa Nord",
			Geo:  Geo{Lat: 52.525, Lng: 13.375},
			MeetPoints: []MeetPoint{
				{ID: "table-7", Label: "Tisch 7", Geo: &Geo{Lat: 52.5251, Lng: 13.3752}},
				{ID: "entrance", Label: "Haupteingang"},
			},
		},
	})
}

func TestMeetPointGeoResolution(t *testing.T) {
	c := testCatalog()

	geo, ok := c.MeetPointGeo("mensa-nord", "table-7")
	require.True(t, ok)
	assert.Equal(t, 52.5251, geo.Lat)

	// A meet point without its own coordinates falls back to the venue's.
	geo, ok = c.MeetPointGeo("mensa-nord", "entrance")
	require.True(t, ok)
	assert.Equal(t, 52.525, geo.Lat)

	_, ok = c.MeetPointGeo("mensa-nord", "roof")
	assert.False(t, ok)

	_, ok = c.MeetPointGeo("unknown-venue", "table-7")
	assert.False(t, ok)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venues.json")
	payload := `[{"id":"library","name":"Library","geo":{"lat":52.51,"lng":13.39},"meetPoints":[{"id":"lobby","label":"Lobby"}]}]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	geo, ok := c.MeetPointGeo("library", "lobby")
	require.True(t, ok)
	assert.Equal(t, 13.39, geo.Lng)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
