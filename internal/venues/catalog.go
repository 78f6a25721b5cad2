// internal/venues/catalog.go

// Package venues is the thin venue/meet-point catalog collaborator. The
// engine only needs it to resolve meeting-point coordinates when defaulting a
// participant's location; full venue management lives outside this service.
package venues

import (
	"encoding/json"
	"fmt"
	"os"
)

// Geo is a coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// MeetPoint is a named in-venue meeting location.
type MeetPoint struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Geo         *Geo   `json:"geo,omitempty"`
}

// Venue is one catalog entry.
type Venue struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Geo        Geo         `json:"geo"`
	MeetPoints []MeetPoint `json:"meetPoints"`
}

// Catalog resolves meeting-point coordinates. A false second return means
// the point is unknown; callers treat that as "no defaulting", never an
// error.
type Catalog interface {
	MeetPointGeo(venueID, meetPointID string) (Geo, bool)
}

// StaticCatalog serves a fixed venue list, optionally loaded from a JSON
// file at startup.
type StaticCatalog struct {
	venues map[string]Venue
}

// NewStaticCatalog builds a catalog from the given venues.
func NewStaticCatalog(list []Venue) *StaticCatalog {
	venues := make(map[string]Venue, len(list))
	for _, v := range list {
		venues[v.ID] = v
	}
	return &StaticCatalog{venues: venues}
}

// LoadCatalog reads a venue list from a JSON file.
func LoadCatalog(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read venue catalog %s: %w", path, err)
	}
	var list []Venue
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode venue catalog %s: %w", path, err)
	}
	return NewStaticCatalog(list), nil
}

// MeetPointGeo returns the meet point's own coordinates when it has some,
// else the venue's, else reports unknown.
func (c *StaticCatalog) MeetPointGeo(venueID, meetPointID string) (Geo, bool) {
	venue, ok := c.venues[venueID]
	if !ok {
		return Geo{}, false
	}
	for _, mp := range venue.MeetPoints {
		if mp.ID == meetPointID {
			if mp.Geo != nil {
				return *mp.Geo, true
			}
			return venue.Geo, true
		}
	}
	return Geo{}, false
}
