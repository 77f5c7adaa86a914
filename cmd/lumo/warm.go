package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"
	"github.com/paulmach/orb"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"

	"github.com/Ottervanger/lumo/mb"
	"github.com/Ottervanger/lumo/pyramid"
	"github.com/Ottervanger/lumo/tile"
)

type warmCmd struct {
	inputPath   string
	inputFormat string
	regionPath  string
	outputPath  string
}

func (c *warmCmd) Name() string     { return "warm" }
func (c *warmCmd) Synopsis() string { return "populate the persistent fallback levels" }
func (c *warmCmd) Usage() string {
	return "lumo warm -i <path> [-if <format>] [-region <geojson>] [-o <mbtiles>]\n"
}
func (c *warmCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input path")
	f.StringVar(&c.inputFormat, "if", "", "Input format (mbtiles, xyz)")
	f.StringVar(&c.regionPath, "region", "", "GeoJSON region to warm (default: whole world)")
	f.StringVar(&c.outputPath, "o", "", "Optional MBTiles export of the warmed set")
}

func (c *warmCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	source, closeSource, err := openSource(c.inputPath, c.inputFormat)
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	defer closeSource()

	var region orb.Collection
	if c.regionPath != "" {
		region, err = loadCollection(c.regionPath)
		if err != nil {
			log.Error(err)
			return subcommands.ExitFailure
		}
	}

	cfg := pyramidConfig()
	vp := newView(0)
	p := pyramid.New(source, vp, cfg)
	counts := eventCounts(p)

	var batch []tile.Coord
	for zoom := 0; zoom < cfg.PersistentLevels; zoom++ {
		coords, err := regionCoords(region, zoom)
		if err != nil {
			log.Error(err)
			return subcommands.ExitFailure
		}
		batch = append(batch, coords...)
	}

	// Warm tiles are classified against a view pinned on the whole world
	// so none of them are discarded as out of view.
	vp.SetZoom(0)
	vp.SetOffset(0, 0)

	bar := progressbar.NewOptions(len(batch), progressbar.OptionShowIts(), progressbar.OptionShowCount())
	p.On(pyramid.EventTileAdd, func(pyramid.Event) { bar.Add(1) })
	p.On(pyramid.EventTileFailure, func(pyramid.Event) { bar.Add(1) })
	p.RequestTiles(batch)
	bar.Finish()

	log.Infof("warmed %d/%d tiles (%d failures)",
		p.Len(), p.Capacity(), *counts[pyramid.EventTileFailure])

	if c.outputPath != "" {
		if err := c.export(p); err != nil {
			log.Error(err)
			return subcommands.ExitFailure
		}
		log.Infof("exported warmed set to %s", c.outputPath)
	}
	return subcommands.ExitSuccess
}

func (c *warmCmd) export(p *pyramid.Pyramid) error {
	writer, err := mb.NewWriter(c.outputPath, mb.WithWriterMetadata(map[string]string{
		"name": "lumo warm export",
	}))
	if err != nil {
		return err
	}
	defer writer.Close()

	for coord, t := range p.Tiles() {
		if err := writer.WriteTile(coord, t.Data); err != nil {
			return err
		}
	}
	return writer.Finalize()
}
