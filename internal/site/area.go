// Package site evaluates plant sites: boundary geometry, buildable area,
// and the capacity a parcel can carry.
package site

import (
	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
)

// Site geometry works in TWD97 (EPSG:3826) meters, so planar math applies.
const (
	// defaultPanelAreaM2 is the footprint of one module including frame.
	defaultPanelAreaM2 = 2.2
	// defaultUsableFraction discounts setbacks, row spacing, and access paths.
	defaultUsableFraction = 0.65
)

// RingArea returns the planar area in square meters of a boundary ring.
// The ring need not be explicitly closed.
func RingArea(boundary [][]float64) (float64, error) {
	if len(boundary) < 3 {
		return 0, eris.Errorf("site: boundary needs at least 3 points, got %d", len(boundary))
	}

	coords := make([]geom.Coord, 0, len(boundary)+1)
	for i, pt := range boundary {
		if len(pt) < 2 {
			return 0, eris.Errorf("site: boundary point %d has %d coordinates", i, len(pt))
		}
		coords = append(coords, geom.Coord{pt[0], pt[1]})
	}
	if !coords[0].Equal(geom.XY, coords[len(coords)-1]) {
		coords = append(coords, coords[0])
	}

	poly := geom.NewPolygon(geom.XY)
	if _, err := poly.SetCoords([][]geom.Coord{coords}); err != nil {
		return 0, eris.Wrap(err, "site: build polygon")
	}

	area := poly.Area()
	if area < 0 {
		area = -area
	}
	return area, nil
}

// Estimate describes what a parcel can carry.
type Estimate struct {
	AreaM2      float64 `json:"area_m2"`
	UsableM2    float64 `json:"usable_m2"`
	PanelCount  int     `json:"panel_count"`
	CapacityKW  float64 `json:"capacity_kw"`
	PanelWatt   int     `json:"panel_watt"`
	UsableShare float64 `json:"usable_share"`
	PanelAreaM2 float64 `json:"panel_area_m2"`
}

// EstimateCapacity sizes a plant for the given boundary and module wattage.
// A zero panelWatt defaults to 450 W.
func EstimateCapacity(boundary [][]float64, panelWatt int) (*Estimate, error) {
	if panelWatt <= 0 {
		panelWatt = 450
	}

	area, err := RingArea(boundary)
	if err != nil {
		return nil, err
	}

	usable := area * defaultUsableFraction
	panels := int(usable / defaultPanelAreaM2)

	return &Estimate{
		AreaM2:      area,
		UsableM2:    usable,
		PanelCount:  panels,
		CapacityKW:  float64(panels*panelWatt) / 1000,
		PanelWatt:   panelWatt,
		UsableShare: defaultUsableFraction,
		PanelAreaM2: defaultPanelAreaM2,
	}, nil
}
