package main

import (
	"fmt"
	"strings"

	"github.com/Ottervanger/lumo/mb"
	"github.com/Ottervanger/lumo/pyramid"
	"github.com/Ottervanger/lumo/tile"
	"github.com/Ottervanger/lumo/view"
	"github.com/Ottervanger/lumo/xyz"
	"github.com/spf13/viper"
)

type tileSource interface {
	tile.Loader
	ReadTile(c tile.Coord) ([]byte, error)
}

func deduceFormat(format, filePath string) string {
	if format == "" && strings.HasSuffix(filePath, ".mbtiles") {
		return "mbtiles"
	}
	if format == "" {
		return "xyz"
	}
	return format
}

func openSource(inputPath, inputFormat string) (tileSource, func() error, error) {
	switch deduceFormat(inputFormat, inputPath) {
	case "mbtiles":
		source, err := mb.Open(inputPath, mb.WithDecompression())
		if err != nil {
			return nil, nil, err
		}
		return source, source.Close, nil
	case "xyz":
		source, err := xyz.NewSource(inputPath)
		if err != nil {
			return nil, nil, err
		}
		return source, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("invalid input format: %q", inputFormat)
	}
}

func pyramidConfig() pyramid.Config {
	cfg := pyramid.DefaultConfig()
	cfg.CacheSize = viper.GetInt("pyramid.cachesize")
	cfg.PersistentLevels = viper.GetInt("pyramid.persistentlevels")
	cfg.MaxZoom = viper.GetInt("pyramid.maxzoom")
	cfg.TileSize = viper.GetFloat64("pyramid.tilesize")
	return cfg
}

func newView(zoom int) *view.View {
	return view.New(
		zoom,
		viper.GetFloat64("pyramid.tilesize"),
		viper.GetFloat64("view.width"),
		viper.GetFloat64("view.height"),
	)
}

// eventCounts subscribes a counter to every pyramid event.
func eventCounts(p *pyramid.Pyramid) map[string]*int {
	counts := make(map[string]*int)
	for _, name := range []string{
		pyramid.EventTileRequest,
		pyramid.EventTileAdd,
		pyramid.EventTileFailure,
		pyramid.EventTileDiscard,
		pyramid.EventTileRemove,
		pyramid.EventLoad,
	} {
		n := new(int)
		counts[name] = n
		p.On(name, func(pyramid.Event) { *n++ })
	}
	return counts
}
