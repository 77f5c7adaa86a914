package main

import (
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"

	"github.com/Ottervanger/lumo/tile"
)

// loadCollection reads the geometries of a geojson feature collection.
func loadCollection(path string) (orb.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	var collection orb.Collection
	for _, f := range fc.Features {
		collection = append(collection, f.Geometry)
	}
	return collection, nil
}

// regionCoords returns the coords of every tile at the zoom that covers
// the region; with a nil region it returns the whole level.
func regionCoords(region orb.Collection, zoom int) ([]tile.Coord, error) {
	if region == nil {
		span := 1 << uint(zoom)
		coords := make([]tile.Coord, 0, span*span)
		for y := 0; y < span; y++ {
			for x := 0; x < span; x++ {
				coords = append(coords, tile.Coord{Z: zoom, X: x, Y: y})
			}
		}
		return coords, nil
	}

	covered := make(maptile.Set)
	for _, g := range region {
		set, err := tilecover.Geometry(g, maptile.Zoom(zoom))
		if err != nil {
			return nil, err
		}
		for t := range set {
			covered[t] = true
		}
	}

	coords := make([]tile.Coord, 0, len(covered))
	for t := range covered {
		coords = append(coords, tile.Coord{Z: int(t.Z), X: int(t.X), Y: int(t.Y)})
	}
	return coords, nil
}
