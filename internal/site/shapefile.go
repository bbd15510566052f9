package site

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Parcel is one polygon record from a cadastral shapefile.
type Parcel struct {
	Boundary [][]float64       `json:"boundary"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	AreaM2   float64           `json:"area_m2"`
}

// LoadParcels reads polygon records and their attributes from a shapefile.
// Records that are not polygons or have degenerate rings are skipped.
func LoadParcels(shpPath string) ([]Parcel, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "site: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var parcels []Parcel
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}

		boundary := firstRing(poly)
		if len(boundary) < 3 {
			skipped++
			continue
		}

		area, err := RingArea(boundary)
		if err != nil {
			skipped++
			continue
		}

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				attrs[strings.ToLower(name)] = val
			}
		}

		parcels = append(parcels, Parcel{Boundary: boundary, Attrs: attrs, AreaM2: area})
	}

	if skipped > 0 {
		zap.L().Debug("site: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return parcels, nil
}

// Largest returns the parcel with the greatest area, or nil for an empty set.
func Largest(parcels []Parcel) *Parcel {
	var best *Parcel
	for i := range parcels {
		if best == nil || parcels[i].AreaM2 > best.AreaM2 {
			best = &parcels[i]
		}
	}
	return best
}

// firstRing extracts the outer ring of a polygon record.
func firstRing(poly *shp.Polygon) [][]float64 {
	end := len(poly.Points)
	if len(poly.Parts) > 1 {
		end = int(poly.Parts[1])
	}

	ring := make([][]float64, 0, end)
	for _, pt := range poly.Points[:end] {
		ring = append(ring, []float64{pt.X, pt.Y})
	}
	return ring
}
